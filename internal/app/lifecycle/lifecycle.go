// Package lifecycle собирает HTTP-приложение движка: хранилище, кеш,
// брокер уведомлений, клиенты внешних сервисов и маршруты внутреннего API.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/numerology-bot/internal/cache"
	"github.com/magabrotheeeer/numerology-bot/internal/config"
	"github.com/magabrotheeeer/numerology-bot/internal/interpreter"
	"github.com/magabrotheeeer/numerology-bot/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/numerology-bot/internal/migrations"
	"github.com/magabrotheeeer/numerology-bot/internal/paymentprovider"
	"github.com/magabrotheeeer/numerology-bot/internal/renderer"
	deliveryservice "github.com/magabrotheeeer/numerology-bot/internal/services/delivery"
	orderservice "github.com/magabrotheeeer/numerology-bot/internal/services/order"
	paymentservice "github.com/magabrotheeeer/numerology-bot/internal/services/payment"
	subservice "github.com/magabrotheeeer/numerology-bot/internal/services/subscription"
	"github.com/magabrotheeeer/numerology-bot/internal/storage/repository"
)

// App представляет HTTP-приложение движка.
type App struct {
	server *http.Server
	logger *slog.Logger
	db     *repository.Storage
	conn   *amqp.Connection
	ch     *amqp.Channel
}

// New создает новый экземпляр приложения.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect storage: %w", err)
	}
	if err := migrations.Run(db.DB, "./migrations"); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, fmt.Errorf("cache not initialized: %w", err)
	}

	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
	}
	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetNotificationQueues())
	if err != nil {
		if cerr := conn.Close(); cerr != nil {
			logger.Error("failed to close connection", slog.Any("err", cerr))
		}
		return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
	}

	providerClient := paymentprovider.NewClient(cfg.Provider.ShopID, cfg.Provider.SecretKey)
	interpreterClient := interpreter.NewClient(cfg.InterpreterURL, cfg.RequestTimeout)
	rendererClient := renderer.NewClient(cfg.RendererURL, cfg.RequestTimeout)

	orderService := orderservice.New(db, logger)
	subscriptionService := subservice.New(db, cacheRedis, logger,
		cfg.TrialDays, cfg.BillingPeriodDays, cfg.MaxChargeAttempts)
	deliveryService := deliveryservice.New(db, interpreterClient, rendererClient, ch, logger)
	paymentService := paymentservice.New(orderService, subscriptionService,
		deliveryService, providerClient, db, cfg.Billing, logger)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, cfg, db,
		orderService, subscriptionService, paymentService, deliveryService)

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server: srv,
		logger: logger,
		db:     db,
		conn:   conn,
		ch:     ch,
	}, nil
}

// Run запускает HTTP-сервер и останавливает его при отмене контекста.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		if cerr := a.ch.Close(); cerr != nil {
			a.logger.Error("failed to close channel", slog.Any("err", cerr))
		}
		if cerr := a.conn.Close(); cerr != nil {
			a.logger.Error("failed to close connection", slog.Any("err", cerr))
		}
		if cerr := a.db.DB.Close(); cerr != nil {
			a.logger.Error("failed to close storage", slog.Any("err", cerr))
		}
		return err
	}
}
