package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ariefcatur/go-shop-orders/internal/clients"
	"github.com/ariefcatur/go-shop-orders/internal/config"
	"github.com/ariefcatur/go-shop-orders/internal/events"
	"github.com/ariefcatur/go-shop-orders/internal/httpx"
	"github.com/ariefcatur/go-shop-orders/internal/inventory"
	kafkax "github.com/ariefcatur/go-shop-orders/internal/kafka"
	"github.com/ariefcatur/go-shop-orders/internal/logx"
	"github.com/ariefcatur/go-shop-orders/internal/orders"
	"github.com/ariefcatur/go-shop-orders/internal/postgres"
	"github.com/ariefcatur/go-shop-orders/internal/redisx"
	"github.com/ariefcatur/go-shop-orders/internal/saga"
	"github.com/ariefcatur/go-shop-orders/internal/telemetry"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log, err := logx.New(cfg.LogLevel, cfg.ServiceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("order api stopped", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		return err
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	// Ledger
	var ledger saga.Ledger
	switch cfg.StorageBackend {
	case "memory":
		ledger = orders.NewMemoryRepo()
	default:
		db, err := postgres.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := postgres.Migrate(ctx, db); err != nil {
			return err
		}
		ledger = &orders.Repo{DB: db}
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()
	if err := redisx.Ping(ctx, rdb); err != nil {
		log.Warn("redis unreachable, cache and idempotency will degrade", zap.Error(err))
	}

	// Kafka producer (events + reconciliation). Lives past the signal so
	// requests still draining can publish; closed after srv.Shutdown.
	prod := kafkax.NewProducer(cfg.KafkaBrokers, 1024, log.Named("producer"))
	prod.Start(context.Background())

	var sinks events.Fanout
	for _, s := range cfg.EventSinks {
		switch s {
		case "kafka":
			sinks = append(sinks, &events.KafkaPublisher{Producer: prod, Service: cfg.ServiceName})
		case "redis":
			sinks = append(sinks, &events.RedisPublisher{Client: rdb, Channel: events.ChannelEvents, Service: cfg.ServiceName})
		default:
			return fmt.Errorf("EVENT_SINKS: unknown sink %q", s)
		}
	}

	// Collaborators
	cartURL, err := cfg.Collaborator(config.CartService)
	if err != nil {
		return err
	}
	userURL, err := cfg.Collaborator(config.UserService)
	if err != nil {
		return err
	}
	invURL, err := cfg.Collaborator(config.InventoryService)
	if err != nil {
		return err
	}
	users := clients.NewUserClient(userURL, cfg.CallTimeout)
	stock := clients.NewInventoryClient(invURL, cfg.CallTimeout)

	deps := saga.Deps{
		Carts:  clients.NewCartClient(cartURL, cfg.CallTimeout),
		Users:  users,
		Stock:  stock,
		Ledger: ledger,
		Releaser: &inventory.Releaser{
			Store:           stock,
			Reconciler:      &inventory.KafkaReconciler{Producer: prod, Service: cfg.ServiceName},
			Log:             log.Named("releaser"),
			MaxAttempts:     cfg.ReleaseMaxAttempts,
			InitialInterval: cfg.ReleaseInitialBackoff,
			MaxInterval:     cfg.ReleaseMaxBackoff,
		},
		Events:      sinks,
		Log:         log.Named("saga"),
		CallTimeout: cfg.CallTimeout,
	}

	router := httpx.NewRouter(log.Named("http"))
	oh := &httpx.OrdersHandler{
		Orders: saga.NewCoordinator(deps),
		Status: saga.NewStatusMachine(deps),
		Cache:  &redisx.OrderCache{Client: rdb},
		Idem:   &redisx.Idempotency{Client: rdb, TTL: cfg.IdempotencyTTL},
		Log:    log.Named("orders"),
	}
	router.Group(func(r chi.Router) {
		r.Use(httpx.Authenticate(users, log.Named("auth")))
		oh.Register(r)
	})

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("HTTP listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down...")
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return drain(sctx, srv, prod)
	})
	return g.Wait()
}

type shutdowner interface {
	Shutdown(ctx context.Context) error
}

type flusher interface {
	Close()
	WaitClosed()
}

// drain stops accepting requests, waits for in-flight ones, then flushes
// the producer they publish through.
func drain(ctx context.Context, srv shutdowner, prod flusher) error {
	err := srv.Shutdown(ctx)
	prod.Close()      // tutup inbox -> flush & close writer
	prod.WaitClosed() // drain
	return err
}
