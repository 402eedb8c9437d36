// Package scheduler собирает приложение планировщика продления подписок.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/numerology-bot/internal/cache"
	"github.com/magabrotheeeer/numerology-bot/internal/config"
	"github.com/magabrotheeeer/numerology-bot/internal/interpreter"
	"github.com/magabrotheeeer/numerology-bot/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/numerology-bot/internal/paymentprovider"
	"github.com/magabrotheeeer/numerology-bot/internal/renderer"
	deliveryservice "github.com/magabrotheeeer/numerology-bot/internal/services/delivery"
	orderservice "github.com/magabrotheeeer/numerology-bot/internal/services/order"
	schedulerservice "github.com/magabrotheeeer/numerology-bot/internal/services/scheduler"
	subservice "github.com/magabrotheeeer/numerology-bot/internal/services/subscription"
	"github.com/magabrotheeeer/numerology-bot/internal/storage/repository"
)

// App представляет приложение планировщика.
type App struct {
	schedulerService *schedulerservice.Service
	conn             *amqp.Connection
	ch               *amqp.Channel
	db               *repository.Storage
	logger           *slog.Logger
}

func waitForDB(db *repository.Storage) error {
	for range 10 {
		err := repository.CheckDatabaseReady(db)
		if err == nil {
			return nil
		}
		time.Sleep(3 * time.Second)
	}
	return fmt.Errorf("database not ready after retries")
}

// New создает новый экземпляр приложения планировщика.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
	}

	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetNotificationQueues())
	if err != nil {
		closeResources(nil, conn, logger)
		return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
	}

	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		closeResources(ch, conn, logger)
		return nil, fmt.Errorf("failed to connect storage: %w", err)
	}
	if err := waitForDB(db); err != nil {
		closeResources(ch, conn, logger)
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		closeResources(ch, conn, logger)
		return nil, fmt.Errorf("cache not initialized: %w", err)
	}

	providerClient := paymentprovider.NewClient(cfg.Provider.ShopID, cfg.Provider.SecretKey)
	interpreterClient := interpreter.NewClient(cfg.InterpreterURL, cfg.RequestTimeout)
	rendererClient := renderer.NewClient(cfg.RendererURL, cfg.RequestTimeout)
	orderService := orderservice.New(db, logger)
	subscriptionService := subservice.New(db, cacheRedis, logger,
		cfg.TrialDays, cfg.BillingPeriodDays, cfg.MaxChargeAttempts)
	deliveryService := deliveryservice.New(db, interpreterClient, rendererClient, ch, logger)
	schedulerService := schedulerservice.New(db, orderService, subscriptionService,
		providerClient, deliveryService, cfg.Billing, logger)

	return &App{
		schedulerService: schedulerService,
		conn:             conn,
		ch:               ch,
		db:               db,
		logger:           logger,
	}, nil
}

func closeResources(ch *amqp.Channel, conn *amqp.Connection, logger *slog.Logger) {
	if ch != nil {
		if err := ch.Close(); err != nil {
			logger.Error("failed to close channel", "error", err)
		}
	}
	if conn != nil {
		if err := conn.Close(); err != nil {
			logger.Error("failed to close connection", "error", err)
		}
	}
}

// Run запускает планировщик до отмены контекста.
func (a *App) Run(ctx context.Context) error {
	go a.schedulerService.Run(ctx)

	<-ctx.Done()

	a.logger.Info("shutting down renewal scheduler")

	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", slog.Any("err", err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", slog.Any("err", err))
	}
	if err := a.db.DB.Close(); err != nil {
		a.logger.Error("failed to close storage", slog.Any("err", err))
	}
	return nil
}
