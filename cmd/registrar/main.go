package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/w3f/polkadot-registrar-bot/internal/chat"
	"github.com/w3f/polkadot-registrar-bot/internal/domain"
	"github.com/w3f/polkadot-registrar-bot/internal/events"
	"github.com/w3f/polkadot-registrar-bot/internal/identity"
	"github.com/w3f/polkadot-registrar-bot/internal/intake"
	"github.com/w3f/polkadot-registrar-bot/internal/notify"
	"github.com/w3f/polkadot-registrar-bot/internal/platform/config"
	"github.com/w3f/polkadot-registrar-bot/internal/platform/httpserver"
	"github.com/w3f/polkadot-registrar-bot/internal/platform/logger"
	platformredis "github.com/w3f/polkadot-registrar-bot/internal/platform/redis"
	"github.com/w3f/polkadot-registrar-bot/internal/projection"
	"github.com/w3f/polkadot-registrar-bot/internal/storage"
	httptransport "github.com/w3f/polkadot-registrar-bot/internal/transport/http"
	"github.com/w3f/polkadot-registrar-bot/internal/verifier"
	"github.com/w3f/polkadot-registrar-bot/internal/watcher"
)

// main wires high-level dependencies and keeps the process lifecycle small.
// Business logic lives in the internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)

	if err := run(cfg, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("registrar exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var health []httptransport.HealthChecker

	var store storage.IdentityStore
	if cfg.DatabaseURL != "" {
		pg, err := storage.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pg.Close()
		store = pg
		health = append(health, pg.Health)
	} else {
		log.Warn("no DATABASE_URL set, using in-memory identity store")
		store = storage.NewInMemoryIdentityStore()
	}

	var rooms storage.RoomStore
	redisClient, err := platformredis.New(ctx, cfg.Redis())
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		rooms = storage.NewRedisRoomStore(redisClient.Client)
		health = append(health, redisClient.Health)
	} else {
		log.Warn("no REDIS_URL set, using in-memory room store")
		rooms = storage.NewInMemoryRoomStore()
	}

	bus := events.NewBus(log)
	defer bus.Close()

	var eventLog *events.Log
	if len(cfg.KafkaBrokers) > 0 {
		eventLog, err = events.NewLog(ctx, cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return err
		}
		defer eventLog.Close()
		bus.AttachLog(eventLog)
	} else {
		log.Warn("no KAFKA_BROKERS set, events will not survive a restart")
	}
	stream := bus.Subscribe(256)

	manager := identity.NewManager(store, bus, log)
	if err := manager.Load(ctx); err != nil {
		return err
	}

	hub := notify.NewHub(log)
	verify := verifier.New(manager, hub, log)

	var submitter watcher.Submitter
	if cfg.WatcherURL != "" {
		submitter = watcher.NewClient(cfg.WatcherURL)
	} else {
		log.Warn("no WATCHER_URL set, judgements are logged only")
		submitter = logSubmitter{log}
	}
	loop := watcher.NewLoop(submitter, manager, bus, log)
	remarks := watcher.NewRemarkIntake(bus, log)

	worker := projection.NewWorker(stream, 8, log, hub.SignalSink(), loop.Sink())
	if eventLog != nil {
		backlog, err := eventLog.Backlog(ctx)
		if err != nil {
			return err
		}
		replay := make([]domain.Event, 0, len(backlog))
		for _, env := range backlog {
			ev, err := env.Event()
			if err != nil {
				log.Warn("skipping undecodable event in backlog", "id", env.ID, "error", err)
				continue
			}
			replay = append(replay, ev)
		}
		worker.Seed(replay)
		log.Info("projection seeded from event log", "events", len(replay))
	}

	var sender intake.ChallengeSender
	var matrix *chat.MatrixClient
	var chatSvc *chat.Service
	if cfg.ChatHomeserver != "" {
		matrix, err = chat.NewMatrixClient(ctx, cfg.ChatHomeserver, cfg.ChatUsername, cfg.ChatPassword, log)
		if err != nil {
			return err
		}
		chatSvc = chat.New(matrix, rooms, verify, log)
		sender = chatSvc
	} else {
		log.Warn("no CHAT_HOMESERVER set, challenges are not delivered")
	}

	claims := intake.New(intake.Config{
		RegistrarMatrix:  domain.NewIdentityField(domain.FieldMatrix, domain.FieldAddress(cfg.ChatUsername)),
		RegistrarEmail:   domain.NewIdentityField(domain.FieldEmail, domain.FieldAddress(cfg.RegistrarEmail)),
		RegistrarTwitter: domain.NewIdentityField(domain.FieldTwitter, domain.FieldAddress(cfg.RegistrarTwitter)),
	}, manager, sender, log)

	handler := httptransport.NewHandler(manager, manager, claims, remarks, log, health...)
	srv := httpserver.New(cfg.Addr, httptransport.NewRouter(handler, []byte(cfg.JWTSigningKey)))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return worker.Run(ctx) })
	g.Go(func() error { return loop.Run(ctx) })
	if matrix != nil {
		g.Go(func() error { return matrix.Listen(ctx, chatSvc) })
	}
	g.Go(func() error {
		log.Info("registrar listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// logSubmitter stands in for the chain watcher in local runs.
type logSubmitter struct {
	log *slog.Logger
}

func (s logSubmitter) SubmitJudgement(_ context.Context, addr domain.NetworkAddress) error {
	s.log.Info("judgement ready (no watcher configured)", "address", addr.String())
	return nil
}
