package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler exposes the process's Prometheus registry. Feature packages
// register their collectors at init via promauto.
func Handler() http.Handler {
	return promhttp.Handler()
}
