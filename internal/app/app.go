package app

import (
	"context"
	"time"

	"github.com/Dhoini/Entitlement-microservice/config"
	"github.com/Dhoini/Entitlement-microservice/internal/api/rest"
	"github.com/Dhoini/Entitlement-microservice/internal/api/rest/handlers"
	"github.com/Dhoini/Entitlement-microservice/internal/api/rest/middleware"
	"github.com/Dhoini/Entitlement-microservice/internal/kafka"
	"github.com/Dhoini/Entitlement-microservice/internal/metrics"
	"github.com/Dhoini/Entitlement-microservice/internal/service"
	"github.com/Dhoini/Entitlement-microservice/internal/stripe"
	"github.com/Dhoini/Entitlement-microservice/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

const runtimeMetricsInterval = 15 * time.Second

// App представляет собой контейнер для всех компонентов приложения
type App struct {
	cfg     *config.Config
	log     *logger.Logger
	store   *Store
	events  kafka.Producer
	server  *rest.Server
	runtime *metrics.RuntimeMetrics
}

// New собирает приложение: хранилище, клиента Stripe, сервисы и HTTP сервер.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	entitlementMetrics := metrics.NewEntitlementMetrics(registry, log)
	runtimeMetrics := metrics.NewRuntimeMetrics(registry, log)

	store, err := OpenStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	events := openEvents(ctx, cfg.Kafka, log)

	stripeClient := stripe.NewStripeClient(cfg.Stripe.SecretKey, log)
	verifier := stripe.NewWebhookVerifier(cfg.Stripe.WebhookSecret)

	checkoutSvc := service.NewCheckoutService(stripeClient, service.CheckoutConfig{
		Prices:  cfg.Stripe.Prices(),
		BaseURL: cfg.App.BaseURL,
		Timeout: cfg.Stripe.Timeout,
	}, entitlementMetrics, log)
	webhookSvc := service.NewWebhookService(verifier, store.Repo, entitlementMetrics, log).WithEvents(events)
	entitlementSvc := service.NewEntitlementService(store.Repo, entitlementMetrics, log).WithEvents(events)

	entitlementHandler := handlers.NewEntitlementHandler(entitlementSvc, cfg.App.BaseURL, log)
	auth := middleware.NewJWTMiddleware(log, &middleware.DefaultTokenValidator{Secret: []byte(cfg.Auth.JWTSecret)})

	router := rest.SetupRouter(log, registry, auth, rest.Handlers{
		Health:      handlers.NewHealthHandler(store.Checks),
		Plans:       handlers.NewPlansHandler(cfg.Stripe.Prices()),
		Checkout:    handlers.NewCheckoutHandler(checkoutSvc, log),
		Webhook:     handlers.NewWebhookHandler(webhookSvc, cfg.Server.WriteTimeout, log),
		Entitlement: entitlementHandler,
		Admin:       handlers.NewAdminHandler(entitlementSvc, log),
	})

	return &App{
		cfg:     cfg,
		log:     log,
		store:   store,
		events:  events,
		server:  rest.NewServer(router, cfg.Server, log, entitlementHandler.Close),
		runtime: runtimeMetrics,
	}, nil
}

// Run запускает HTTP сервер, слушатель изменений и сбор метрик. После отмены
// ctx сервер останавливается с таймаутом SERVER_SHUTDOWN_TIMEOUT.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(a.server.Start)
	g.Go(func() error { return a.store.Listen(gctx) })
	g.Go(func() error { return a.runtime.Run(gctx, runtimeMetricsInterval) })

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.log.Warnw("Server forced to shutdown", "error", err)
		}
		return nil
	})

	return g.Wait()
}

// Close освобождает соединения с хранилищем, кешем и Kafka
func (a *App) Close() {
	if err := a.events.Close(); err != nil {
		a.log.Errorw("Error closing Kafka producer", "error", err)
	}
	a.store.Close()
}

// openEvents создает продюсер изменений. Недоступная Kafka не мешает старту:
// запись в хранилище остается источником истины.
func openEvents(ctx context.Context, cfg config.KafkaConfig, log *logger.Logger) kafka.Producer {
	if len(cfg.Brokers) == 0 {
		return kafka.NoopProducer{}
	}
	if err := kafka.EnsureTopic(ctx, cfg.Brokers, cfg.Topic, cfg.Partitions, log); err != nil {
		log.Warnw("Failed to ensure Kafka topic", "topic", cfg.Topic, "error", err)
	}
	producer, err := kafka.NewKafkaProducer(cfg.Brokers, cfg.Topic, log)
	if err != nil {
		log.Errorw("Failed to initialize Kafka producer, continuing without event publishing", "error", err)
		return kafka.NoopProducer{}
	}
	return producer
}
