package projection

import (
	"context"
	"hash/fnv"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/w3f/polkadot-registrar-bot/internal/domain"
)

var (
	judgementsReady = promauto.NewCounter(prometheus.CounterOpts{
		Name: "registrar_judgements_ready_total",
		Help: "Verified identities whose on-chain remark matched",
	})
	evidenceMismatches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "registrar_evidence_mismatches_total",
		Help: "Remark/challenge pairings that failed content comparison",
	})
)

// Sink receives correlator signals. Implementations must not block; slow
// consumers buffer or drop on their side.
type Sink func(Signal)

// Worker drains the event stream into per-shard correlator state. Events are
// sharded by address hash, so per-address ordering is preserved while
// unrelated addresses proceed in parallel.
type Worker struct {
	in     <-chan domain.Event
	shards []chan domain.Event
	states []*State
	sinks  []Sink
	logger *slog.Logger
}

func NewWorker(in <-chan domain.Event, shardCount int, logger *slog.Logger, sinks ...Sink) *Worker {
	if shardCount < 1 {
		shardCount = 1
	}
	w := &Worker{
		in:     in,
		shards: make([]chan domain.Event, shardCount),
		states: make([]*State, shardCount),
		sinks:  sinks,
		logger: logger,
	}
	for i := range w.shards {
		w.shards[i] = make(chan domain.Event, 64)
		w.states[i] = NewState()
	}
	return w
}

func (w *Worker) shard(addr domain.NetworkAddress) int {
	h := fnv.New32a()
	h.Write([]byte(addr.String()))
	return int(h.Sum32() % uint32(len(w.shards)))
}

// Seed folds a replayed backlog synchronously before live consumption, so a
// restart picks up pending pairings. Call before Run.
func (w *Worker) Seed(backlog []domain.Event) {
	for _, ev := range backlog {
		w.apply(w.shard(ev.EventAddress()), ev)
	}
}

// Run consumes the stream until the channel closes or the context ends.
func (w *Worker) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for i, shard := range w.shards {
		wg.Add(1)
		go func(idx int, ch <-chan domain.Event) {
			defer wg.Done()
			for ev := range ch {
				w.apply(idx, ev)
			}
		}(i, shard)
	}

	defer func() {
		for _, shard := range w.shards {
			close(shard)
		}
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.in:
			if !ok {
				return nil
			}
			select {
			case w.shards[w.shard(ev.EventAddress())] <- ev:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func (w *Worker) apply(shard int, ev domain.Event) {
	for _, sig := range Apply(w.states[shard], ev) {
		switch s := sig.(type) {
		case JudgementReady:
			judgementsReady.Inc()
			w.logger.Info("valid remark found, judgement ready",
				"address", s.Address.String())
		case EvidenceMismatch:
			evidenceMismatches.Inc()
			w.logger.Warn("invalid remark challenge",
				"address", s.Address.String(),
				"expected", string(s.Expected),
				"received", s.Got)
		}
		for _, sink := range w.sinks {
			sink(sig)
		}
	}
}
