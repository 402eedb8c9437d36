// Package lifecycle предоставляет маршруты внутреннего API движка.
package lifecycle

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/magabrotheeeer/numerology-bot/internal/config"
	ordercreate "github.com/magabrotheeeer/numerology-bot/internal/http/handlers/order/create"
	orderread "github.com/magabrotheeeer/numerology-bot/internal/http/handlers/order/read"
	"github.com/magabrotheeeer/numerology-bot/internal/http/handlers/payment/webhook"
	reportread "github.com/magabrotheeeer/numerology-bot/internal/http/handlers/report/read"
	subcancel "github.com/magabrotheeeer/numerology-bot/internal/http/handlers/subscription/cancel"
	subread "github.com/magabrotheeeer/numerology-bot/internal/http/handlers/subscription/read"
	subtrial "github.com/magabrotheeeer/numerology-bot/internal/http/handlers/subscription/trial"
	userupdate "github.com/magabrotheeeer/numerology-bot/internal/http/handlers/user/update"
	"github.com/magabrotheeeer/numerology-bot/internal/http/middlewarectx"
	"github.com/magabrotheeeer/numerology-bot/internal/http/response"
	deliveryservice "github.com/magabrotheeeer/numerology-bot/internal/services/delivery"
	orderservice "github.com/magabrotheeeer/numerology-bot/internal/services/order"
	paymentservice "github.com/magabrotheeeer/numerology-bot/internal/services/payment"
	subservice "github.com/magabrotheeeer/numerology-bot/internal/services/subscription"
	"github.com/magabrotheeeer/numerology-bot/internal/storage/repository"
)

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, cfg *config.Config,
	db *repository.Storage, orderService *orderservice.Service,
	subscriptionService *subservice.Service, paymentService *paymentservice.Service,
	deliveryService *deliveryservice.Service) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	r.Route("/api/v1", func(r chi.Router) {
		// Вебхук провайдера: аутентификация подписью тела, не токеном
		r.Post("/webhook/payment", webhook.New(logger, paymentService, cfg.Provider.WebhookSecret).ServeHTTP)

		// Внутреннее API для слоя бота
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.ServiceTokenMiddleware(cfg.TokenSecretKey, logger))
			r.Use(middlewarectx.RateLimitMiddleware(logger))
			r.Post("/orders", ordercreate.New(logger, paymentService).ServeHTTP)
			r.Get("/orders/{id}", orderread.New(logger, orderService).ServeHTTP)
			r.Post("/subscriptions/trial", subtrial.New(logger, subscriptionService).ServeHTTP)
			r.Post("/subscriptions/cancel", subcancel.New(logger, subscriptionService).ServeHTTP)
			r.Get("/subscriptions/{tg_id}", subread.New(logger, subscriptionService).ServeHTTP)
			r.Get("/reports/{tg_id}", reportread.New(logger, deliveryService).ServeHTTP)
			r.Post("/users/profile", userupdate.New(logger, db).ServeHTTP)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := repository.CheckDatabaseReady(db); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			render.JSON(w, r, response.Error("storage is not ready"))
			return
		}
		render.JSON(w, r, response.StatusOKWithData(nil))
	})
	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
