// Package forecast реализует еженедельную рассылку персональных прогнозов
// пользователям с действующей подпиской и включёнными уведомлениями.
package forecast

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/numerology-bot/internal/interpreter"
	"github.com/magabrotheeeer/numerology-bot/internal/lib/numerology"
	"github.com/magabrotheeeer/numerology-bot/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/numerology-bot/internal/lib/sl"
	"github.com/magabrotheeeer/numerology-bot/internal/models"
)

// ForecastRepository определяет методы хранилища для рассылки прогнозов.
type ForecastRepository interface {
	ListActiveSubscribers(ctx context.Context, today time.Time) ([]*models.User, error)
}

// Interpreter определяет клиент сервиса интерпретации.
type Interpreter interface {
	Interpret(ctx context.Context, req interpreter.Request) (*interpreter.Response, error)
}

// weeklyProfile входные данные недельного прогноза.
type weeklyProfile struct {
	PersonalYear int `json:"personal_year"`
	WeekNumber   int `json:"week_number"`
}

// ForecastMessage уведомление с текстом прогноза для слоя бота.
type ForecastMessage struct {
	TgID int64             `json:"tg_id"`
	Text map[string]string `json:"text"`
}

// Service реализует рассылку еженедельных прогнозов.
type Service struct {
	repo        ForecastRepository
	interpreter Interpreter
	channel     rabbitmq.Publisher
	interval    time.Duration
	log         *slog.Logger
}

// New создает новый экземпляр Service.
func New(repo ForecastRepository, interp Interpreter, channel rabbitmq.Publisher,
	interval time.Duration, log *slog.Logger) *Service {
	return &Service{
		repo:        repo,
		interpreter: interp,
		channel:     channel,
		interval:    interval,
		log:         log,
	}
}

// Run запускает периодическую рассылку до отмены контекста.
// Первая рассылка выполняется сразу при старте.
func (s *Service) Run(ctx context.Context) {
	s.Sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("forecast scheduler stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep рассылает прогнозы всем активным подписчикам. Ошибка по одному
// пользователю не прерывает рассылку остальным.
func (s *Service) Sweep(ctx context.Context) {
	now := time.Now().UTC()

	subscribers, err := s.repo.ListActiveSubscribers(ctx, now)
	if err != nil {
		s.log.Error("failed to list active subscribers", sl.Err(err))
		return
	}
	s.log.Info("forecast sweep started", slog.Int("subscribers", len(subscribers)))

	sent := 0
	for _, user := range subscribers {
		if err := s.sendOne(ctx, user, now); err != nil {
			s.log.Error("failed to send forecast",
				slog.Int64("user_id", user.ID), sl.Err(err))
			continue
		}
		sent++
	}
	s.log.Info("forecast sweep finished", slog.Int("sent", sent))
}

func (s *Service) sendOne(ctx context.Context, user *models.User, now time.Time) error {
	const op = "services.forecast.sendOne"

	if user.Birthdate == nil {
		s.log.Info("skipping subscriber without birthdate",
			slog.Int64("user_id", user.ID))
		return nil
	}

	profile := weeklyProfile{
		PersonalYear: numerology.PersonalYear(*user.Birthdate, now),
		WeekNumber:   numerology.WeekNumber(now),
	}
	text, err := s.interpreter.Interpret(ctx, interpreter.Request{
		ReportType: "weekly",
		Profile:    profile,
		Lang:       user.Lang,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	msg := ForecastMessage{TgID: user.TgID, Text: text.Text}
	if err := rabbitmq.PublishMessage(s.channel,
		rabbitmq.NotificationsExchange, rabbitmq.RoutingKeyForecast, msg); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
