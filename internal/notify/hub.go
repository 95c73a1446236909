package notify

import (
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/w3f/polkadot-registrar-bot/internal/domain"
	"github.com/w3f/polkadot-registrar-bot/internal/projection"
)

var droppedNotifications = promauto.NewCounter(prometheus.CounterOpts{
	Name: "registrar_notifications_dropped_total",
	Help: "Notifications dropped because a session buffer was full",
})

type Kind string

const (
	KindVerification Kind = "verification"
	KindJudgement    Kind = "judgement"
	KindWarning      Kind = "warning"
)

// Notification is the message shape delivered to live client sessions
// watching an address.
type Notification struct {
	Kind    Kind                        `json:"kind"`
	Address domain.NetworkAddress       `json:"net_address"`
	Message string                      `json:"message,omitempty"`
	Outcome *domain.VerificationOutcome `json:"outcome,omitempty"`
}

// Hub fans notifications out to sessions subscribed per address. Delivery is
// best-effort: a send never blocks the core, a full session buffer drops.
type Hub struct {
	mu     sync.RWMutex
	nextID int
	subs   map[domain.NetworkAddress]map[int]chan Notification
	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		subs:   make(map[domain.NetworkAddress]map[int]chan Notification),
		logger: logger,
	}
}

// Subscribe registers a session for one address. The cancel func removes the
// session and closes its channel.
func (h *Hub) Subscribe(addr domain.NetworkAddress, buffer int) (<-chan Notification, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	ch := make(chan Notification, buffer)
	sessions, ok := h.subs[addr]
	if !ok {
		sessions = make(map[int]chan Notification)
		h.subs[addr] = sessions
	}
	sessions[id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if sessions, ok := h.subs[addr]; ok {
			if ch, ok := sessions[id]; ok {
				delete(sessions, id)
				close(ch)
			}
			if len(sessions) == 0 {
				delete(h.subs, addr)
			}
		}
	}
	return ch, cancel
}

// Publish delivers to every session watching the address without blocking.
func (h *Hub) Publish(n Notification) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs[n.Address] {
		select {
		case ch <- n:
		default:
			droppedNotifications.Inc()
			h.logger.Warn("notification dropped, session buffer full",
				"address", n.Address.String(), "kind", n.Kind)
		}
	}
}

// SignalSink adapts correlator signals into session notifications.
func (h *Hub) SignalSink() projection.Sink {
	return func(sig projection.Signal) {
		switch s := sig.(type) {
		case projection.JudgementReady:
			h.Publish(Notification{
				Kind:    KindJudgement,
				Address: s.Address,
				Message: "judgement ready, remark matched",
			})
		case projection.EvidenceMismatch:
			h.Publish(Notification{
				Kind:    KindWarning,
				Address: s.Address,
				Message: "on-chain remark did not match the expected challenge",
			})
		}
	}
}
