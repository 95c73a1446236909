package identity

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	identitiesInserted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "registrar_identities_inserted_total",
		Help: "Identity claims registered with the manager",
	})
	identitiesRemoved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "registrar_identities_removed_total",
		Help: "Identities removed after judgement or deregistration",
	})
	verificationAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "registrar_verification_attempts_total",
		Help: "Inbound proof evaluations by outcome",
	}, []string{"outcome"})
	identitiesFullyVerified = promauto.NewCounter(prometheus.CounterOpts{
		Name: "registrar_identities_fully_verified_total",
		Help: "Identities whose every required field passed its challenge",
	})
)
