package watcher

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/w3f/polkadot-registrar-bot/internal/domain"
	"github.com/w3f/polkadot-registrar-bot/internal/events"
	"github.com/w3f/polkadot-registrar-bot/internal/projection"
)

var (
	judgementsSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "registrar_judgements_submitted_total",
		Help: "Judgement extrinsics successfully handed to the chain watcher.",
	})
	judgementRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "registrar_judgement_submit_retries_total",
		Help: "Judgement submissions retried after a watcher error.",
	})
	judgementsAbandoned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "registrar_judgements_abandoned_total",
		Help: "Judgement submissions dropped after exhausting retries.",
	})
)

// Submitter hands a judgement for a fully verified account to the chain
// watcher, which signs and submits the extrinsic.
type Submitter interface {
	SubmitJudgement(ctx context.Context, address domain.NetworkAddress) error
}

// Remover is the slice of the identity manager the loop needs once a
// judgement lands.
type Remover interface {
	RemoveIdentity(ctx context.Context, address domain.NetworkAddress) (bool, error)
}

// RemarkIntake records watcher-observed on-chain remarks on the event log,
// where the projection pairs them with verification outcomes.
type RemarkIntake struct {
	bus    events.Publisher
	logger *slog.Logger
}

func NewRemarkIntake(bus events.Publisher, logger *slog.Logger) *RemarkIntake {
	return &RemarkIntake{bus: bus, logger: logger}
}

func (r *RemarkIntake) HandleRemark(ctx context.Context, remark domain.RemarkFound) error {
	r.logger.Info("remark observed",
		slog.String("address", remark.Address.String()),
		slog.String("remark", remark.Remark))
	return r.bus.Publish(ctx, remark)
}

// Loop drains judgement-ready signals and drives each through the submitter
// with capped exponential backoff. A landed judgement removes the identity
// and records JudgementGiven on the event log so a replay will not resubmit.
type Loop struct {
	submitter Submitter
	remover   Remover
	bus       events.Publisher
	logger    *slog.Logger
	ready     chan projection.JudgementReady

	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

func NewLoop(submitter Submitter, remover Remover, bus events.Publisher, logger *slog.Logger) *Loop {
	return &Loop{
		submitter:      submitter,
		remover:        remover,
		bus:            bus,
		logger:         logger,
		ready:          make(chan projection.JudgementReady, 64),
		maxAttempts:    5,
		initialBackoff: 2 * time.Second,
		maxBackoff:     30 * time.Second,
	}
}

// Sink adapts the loop to the projection worker. Judgement-ready signals are
// queued; everything else is ignored. A full queue drops the signal, which is
// safe: the unconsumed remark stays in the projection and re-pairs on replay.
func (l *Loop) Sink() projection.Sink {
	return func(sig projection.Signal) {
		ready, ok := sig.(projection.JudgementReady)
		if !ok {
			return
		}
		select {
		case l.ready <- ready:
		default:
			l.logger.Warn("judgement queue full, dropping signal",
				slog.String("address", ready.Address.String()))
		}
	}
}

// Run processes queued judgements until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ready := <-l.ready:
			l.submit(ctx, ready)
		}
	}
}

func (l *Loop) submit(ctx context.Context, ready projection.JudgementReady) {
	backoff := l.initialBackoff
	for attempt := 1; ; attempt++ {
		err := l.submitter.SubmitJudgement(ctx, ready.Address)
		if err == nil {
			l.settle(ctx, ready.Address)
			return
		}
		if attempt >= l.maxAttempts {
			judgementsAbandoned.Inc()
			l.logger.Error("abandoning judgement submission",
				slog.String("address", ready.Address.String()),
				slog.Int("attempts", attempt),
				slog.Any("error", err))
			return
		}
		judgementRetries.Inc()
		l.logger.Warn("judgement submission failed, retrying",
			slog.String("address", ready.Address.String()),
			slog.Int("attempt", attempt),
			slog.Duration("backoff", backoff),
			slog.Any("error", err))

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > l.maxBackoff {
			backoff = l.maxBackoff
		}
	}
}

func (l *Loop) settle(ctx context.Context, address domain.NetworkAddress) {
	judgementsSubmitted.Inc()
	l.logger.Info("judgement submitted", slog.String("address", address.String()))

	if _, err := l.remover.RemoveIdentity(ctx, address); err != nil {
		l.logger.Error("removing judged identity",
			slog.String("address", address.String()), slog.Any("error", err))
	}
	if err := l.bus.Publish(ctx, domain.JudgementGiven{Address: address}); err != nil {
		l.logger.Error("recording judgement event",
			slog.String("address", address.String()), slog.Any("error", err))
	}
}
