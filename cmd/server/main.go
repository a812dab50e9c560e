package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"

	internalapi "github.com/bna-integrations/checkout-reconciler/internal/api"
	"github.com/bna-integrations/checkout-reconciler/internal/authz"
	"github.com/bna-integrations/checkout-reconciler/internal/checkout"
	appconfig "github.com/bna-integrations/checkout-reconciler/internal/config"
	"github.com/bna-integrations/checkout-reconciler/internal/events"
	"github.com/bna-integrations/checkout-reconciler/internal/gateway"
	"github.com/bna-integrations/checkout-reconciler/internal/identity"
	"github.com/bna-integrations/checkout-reconciler/internal/matching"
	"github.com/bna-integrations/checkout-reconciler/internal/order"
	"github.com/bna-integrations/checkout-reconciler/internal/reconcile"
	"github.com/bna-integrations/checkout-reconciler/internal/secrets"
	memstore "github.com/bna-integrations/checkout-reconciler/internal/storage/memory"
	postgres "github.com/bna-integrations/checkout-reconciler/internal/storage/postgres"
	"github.com/bna-integrations/checkout-reconciler/internal/telemetry"
)

func newLogger(cfg appconfig.Config) *log.Logger {
	prefix := ""
	if cfg.ServiceName != "" {
		prefix = fmt.Sprintf("[%s] ", cfg.ServiceName)
	}
	logger := log.New(os.Stdout, prefix, log.LstdFlags|log.Lmicroseconds)
	log.SetOutput(os.Stdout)
	log.SetFlags(logger.Flags())
	log.SetPrefix(prefix)
	return logger
}

func setupTelemetry(lc fx.Lifecycle, cfg appconfig.Config, logger *log.Logger) {
	var cleanup func()
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			var err error
			cleanup, err = telemetry.InitTracer(cfg.ServiceName, cfg.Telemetry.TracesEndpoint)
			if err != nil {
				logger.Printf("WARNING: tracing disabled: %v", err)
			}
			return nil
		},
		OnStop: func(context.Context) error {
			if cleanup != nil {
				cleanup()
			}
			return nil
		},
	})
}

// newSQLDB opens the shared pool. A connection failure is logged, not fatal:
// the stores fall back to in-memory so local dev works without postgres.
func newSQLDB(lc fx.Lifecycle, cfg appconfig.Config, logger *log.Logger) *sql.DB {
	logger.Printf("Connecting to PostgreSQL database %s@%s:%d", cfg.Database.Database, cfg.Database.Host, cfg.Database.Port)
	db, err := postgres.OpenDatabase(cfg.Database)
	if err != nil {
		logger.Printf("WARNING: failed to connect to database, using in-memory stores: %v", err)
		return nil
	}
	logger.Printf("Database connection established successfully")
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return db.Close()
		},
	})
	return db
}

func newOrderStore(db *sql.DB, logger *log.Logger) order.Store {
	if db == nil {
		logger.Printf("Order store: in-memory (volatile)")
		return memstore.NewOrderStore()
	}
	return postgres.NewRepository(db)
}

func newIdentityStore(db *sql.DB, logger *log.Logger) identity.Store {
	if db == nil {
		logger.Printf("Customer identity cache: in-memory (volatile)")
		return memstore.NewIdentityStore()
	}
	return postgres.NewIdentityRepository(db)
}

func newGatewayClient(cfg appconfig.Config, ids identity.Store, logger *log.Logger) *gateway.Client {
	base := appconfig.ResolveAPIBase(cfg.Gateway.Mode)
	logger.Printf("BNA API base: %s (mode=%s)", base, cfg.Gateway.Mode)
	return gateway.New(base, cfg.Gateway, ids, logger)
}

func newCheckoutService(cfg appconfig.Config, orders order.Store, client *gateway.Client, logger *log.Logger) *checkout.Service {
	return checkout.New(cfg.Gateway, orders, client, logger)
}

// newKafkaProducer constructs a shared producer and binds its lifecycle to Fx.
func newKafkaProducer(cfg appconfig.Config, lc fx.Lifecycle) *events.Producer {
	prod := events.NewProducer(cfg.Kafka.Brokers)
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return prod.Close()
		},
	})
	return prod
}

func newWebServer(cfg appconfig.Config, logger *log.Logger, orders order.Store,
	svc *checkout.Service, az authz.Client, prod *events.Producer) *http.Server {

	matcher := matching.New(orders, cfg.Gateway.MatchScanLimit, logger)
	reconciler := reconcile.New(orders, logger)

	mux := http.NewServeMux()
	internalapi.RegisterCheckoutRoutes(mux, svc, az, logger)
	internalapi.RegisterOrdersRoutes(mux, orders, logger)
	internalapi.RegisterWebhookRoutes(mux, &internalapi.WebhookHandler{
		Matcher:    matcher,
		Reconciler: reconciler,
		Producer:   prod,
		Topic:      cfg.Kafka.PaymentsTopic,
		Logger:     logger,
	})

	return &http.Server{Addr: cfg.HTTP.Addr, Handler: mux}
}

func registerWebServer(lc fx.Lifecycle, cfg appconfig.Config, logger *log.Logger, shutdowner fx.Shutdowner, srv *http.Server) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				logger.Printf("HTTP API listening on %s", cfg.HTTP.Addr)
				logger.Printf("  POST /api/checkout      - open a BNA checkout session for an order")
				logger.Printf("  POST /webhooks/bna      - BNA transaction notifications")
				logger.Printf("  GET  /api/orders        - recent orders")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Printf("HTTP server error: %v", err)
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	})
}

func main() {
	_ = godotenv.Load()
	if err := secrets.Bootstrap(context.Background()); err != nil {
		log.Printf("WARNING: OpenBao bootstrap failed: %v", err)
	}

	app := fx.New(
		fx.Provide(
			appconfig.Load,
			newLogger,
			newSQLDB,
			newOrderStore,
			newIdentityStore,
			newKafkaProducer,
			newGatewayClient,
			newCheckoutService,
			func() authz.Client { return authz.NewFromEnv() },
			newWebServer,
		),
		fx.Invoke(
			func(logger *log.Logger, cfg appconfig.Config) {
				logger.Printf("Starting %s...", cfg.ServiceName)
				if err := cfg.Gateway.Validate(); err != nil {
					logger.Printf("WARNING: %v; checkout requests will be rejected until credentials are set", err)
				}
			},
			setupTelemetry,
			registerWebServer,
		),
	)

	app.Run()
}
