package rest

import (
	"github.com/Dhoini/Entitlement-microservice/internal/api/rest/handlers"
	"github.com/Dhoini/Entitlement-microservice/internal/api/rest/middleware"
	"github.com/Dhoini/Entitlement-microservice/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handlers набор обработчиков, собранный в app
type Handlers struct {
	Health      *handlers.HealthHandler
	Plans       *handlers.PlansHandler
	Checkout    *handlers.CheckoutHandler
	Webhook     *handlers.WebhookHandler
	Entitlement *handlers.EntitlementHandler
	Admin       *handlers.AdminHandler
}

// SetupRouter настраивает маршрутизатор Gin с маршрутами и middleware
func SetupRouter(log *logger.Logger, registry *prometheus.Registry, auth *middleware.JWTMiddleware, h Handlers) *gin.Engine {
	r := gin.New()

	// Подключение middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.LoggerMiddleware(log))
	r.Use(gin.Recovery())

	// Endpoint для проверки работоспособности сервиса
	r.GET("/health", h.Health.HealthCheck)

	// Prometheus метрики
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	// Вебхуки Stripe без JWT, подлинность проверяется подписью.
	// /api/stripe-webhook оставлен для уже настроенных endpoint'ов в Stripe
	r.POST("/api/stripe-webhook", h.Webhook.HandleStripeWebhook)
	webhooks := r.Group("/webhooks")
	{
		webhooks.POST("/stripe", h.Webhook.HandleStripeWebhook)
	}

	v1 := r.Group("/api/v1")
	{
		v1.GET("/plans", h.Plans.ListPlans)

		checkout := v1.Group("/checkout", auth.RequireAuth())
		{
			checkout.POST("/sessions", h.Checkout.CreateSession)
		}

		me := v1.Group("/me", auth.RequireAuth())
		{
			me.GET("/entitlement", h.Entitlement.GetEntitlement)
			me.POST("/entitlement", h.Entitlement.Register)
			me.GET("/entitlement/watch", h.Entitlement.Watch)
			me.GET("/servers", h.Entitlement.GetServers)
		}

		admin := v1.Group("/admin", auth.RequireAuth(middleware.ScopeAdmin))
		{
			admin.GET("/entitlements/:userId", h.Admin.GetEntitlement)
			admin.PUT("/entitlements/:userId", h.Admin.SetTier)
		}
	}

	return r
}
