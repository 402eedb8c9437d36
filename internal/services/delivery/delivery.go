// Package delivery отвечает за выдачу оплаченного продукта:
// расчёт нумерологического профиля, генерацию текста у интерпретатора,
// рендеринг PDF и публикацию уведомлений для слоя бота.
package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/numerology-bot/internal/interpreter"
	"github.com/magabrotheeeer/numerology-bot/internal/lib/numerology"
	"github.com/magabrotheeeer/numerology-bot/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/numerology-bot/internal/models"
	"github.com/magabrotheeeer/numerology-bot/internal/renderer"
)

// DeliveryRepository определяет методы хранилища для выдачи отчётов.
type DeliveryRepository interface {
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByTgID(ctx context.Context, tgID int64) (*models.User, error)
	CreateReport(ctx context.Context, report models.Report) (int64, error)
	UpdateReportPDF(ctx context.Context, reportID int64, pdfURL string) error
	GetLatestUserReport(ctx context.Context, userID int64, reportType string) (*models.Report, error)
	CountReportsByUser(ctx context.Context, userID int64, reportType string) (int, error)
}

// Interpreter определяет клиент сервиса интерпретации.
type Interpreter interface {
	Interpret(ctx context.Context, req interpreter.Request) (*interpreter.Response, error)
}

// Renderer определяет клиент сервиса рендеринга.
type Renderer interface {
	Render(ctx context.Context, req renderer.Request) (string, error)
}

// compatibilityPayload параметры заказа отчёта совместимости.
type compatibilityPayload struct {
	PartnerFIO       string `json:"partner_fio"`
	PartnerBirthdate string `json:"partner_birthdate"` // формат 2006-01-02
}

// ReportReadyMessage уведомление о готовом отчёте.
type ReportReadyMessage struct {
	TgID       int64  `json:"tg_id"`
	ReportID   int64  `json:"report_id"`
	ReportType string `json:"report_type"`
	PDFURL     string `json:"pdf_url"`
}

// SubscriptionMessage уведомление о событии подписки.
type SubscriptionMessage struct {
	TgID  int64  `json:"tg_id"`
	Event string `json:"event"`
}

// События подписки, о которых уведомляется слой бота.
const (
	EventSubscriptionActivated = "activated"
	EventSubscriptionRenewed   = "renewed"
	EventSubscriptionCanceled  = "canceled"
	EventPaymentOrphaned       = "payment_orphaned"
)

// Service реализует выдачу продуктов и публикацию уведомлений.
type Service struct {
	repo        DeliveryRepository
	interpreter Interpreter
	renderer    Renderer
	channel     rabbitmq.Publisher
	log         *slog.Logger
}

// New создает новый экземпляр Service.
func New(repo DeliveryRepository, interp Interpreter, rend Renderer,
	channel rabbitmq.Publisher, log *slog.Logger) *Service {
	return &Service{
		repo:        repo,
		interpreter: interp,
		renderer:    rend,
		channel:     channel,
		log:         log,
	}
}

// Deliver генерирует отчёт по оплаченному заказу. Запись отчёта создаётся
// до рендеринга: при сбое PDF остаётся отчёт без ссылки, и выдачу можно
// повторить. Уведомление публикуется только после записи ссылки.
func (s *Service) Deliver(ctx context.Context, order *models.Order) error {
	const op = "services.delivery.Deliver"

	user, err := s.repo.GetUserByID(ctx, order.UserID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if user.FIO == "" || user.Birthdate == nil {
		return fmt.Errorf("%s: user %d has no profile data: %w",
			op, user.ID, models.ErrValidation)
	}

	reportType, profile, err := s.buildProfile(user, order)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	coreJSON, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	reportID, err := s.repo.CreateReport(ctx, models.Report{
		UserID:     user.ID,
		ReportType: reportType,
		CoreJSON:   coreJSON,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	text, err := s.interpreter.Interpret(ctx, interpreter.Request{
		ReportType: reportType,
		Profile:    profile,
		Lang:       user.Lang,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	pdfURL, err := s.renderer.Render(ctx, renderer.Request{
		FIO:        user.FIO,
		ReportType: reportType,
		Profile:    profile,
		Text:       text.Text,
		Lang:       user.Lang,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.repo.UpdateReportPDF(ctx, reportID, pdfURL); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	msg := ReportReadyMessage{
		TgID:       user.TgID,
		ReportID:   reportID,
		ReportType: reportType,
		PDFURL:     pdfURL,
	}
	if err := rabbitmq.PublishMessage(s.channel,
		rabbitmq.NotificationsExchange, rabbitmq.RoutingKeyReportReady, msg); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("report delivered",
		slog.Int64("user_id", user.ID),
		slog.Int64("report_id", reportID),
		slog.String("report_type", reportType))
	return nil
}

func (s *Service) buildProfile(user *models.User, order *models.Order) (string, any, error) {
	now := time.Now().UTC()
	own := numerology.Calculate(*user.Birthdate, user.FIO, now)

	switch order.Product {
	case models.ProductFullReport:
		return models.ReportTypeFull, own, nil
	case models.ProductCompatibility:
		var payload compatibilityPayload
		if err := json.Unmarshal(order.Payload, &payload); err != nil {
			return "", nil, fmt.Errorf("bad compatibility payload: %w", models.ErrValidation)
		}
		partnerBirth, err := time.Parse("2006-01-02", payload.PartnerBirthdate)
		if err != nil || payload.PartnerFIO == "" {
			return "", nil, fmt.Errorf("bad partner data: %w", models.ErrValidation)
		}
		partner := numerology.Calculate(partnerBirth, payload.PartnerFIO, now)
		return models.ReportTypeCompatibility, numerology.CalculateCompatibility(own, partner), nil
	default:
		return "", nil, fmt.Errorf("product %q is not deliverable: %w",
			order.Product, models.ErrValidation)
	}
}

// LatestReport возвращает последний готовый отчёт пользователя указанного
// типа и общее число сгенерированных отчётов этого типа. Слой бота
// использует его для повторной выдачи уже оплаченного отчёта.
func (s *Service) LatestReport(ctx context.Context, tgID int64, reportType string) (*models.Report, int, error) {
	const op = "services.delivery.LatestReport"

	user, err := s.repo.GetUserByTgID(ctx, tgID)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}

	report, err := s.repo.GetLatestUserReport(ctx, user.ID, reportType)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	total, err := s.repo.CountReportsByUser(ctx, user.ID, reportType)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	return report, total, nil
}

// NotifySubscription публикует уведомление о событии подписки.
func (s *Service) NotifySubscription(tgID int64, event string) error {
	const op = "services.delivery.NotifySubscription"

	msg := SubscriptionMessage{TgID: tgID, Event: event}
	if err := rabbitmq.PublishMessage(s.channel,
		rabbitmq.NotificationsExchange, rabbitmq.RoutingKeySubscription, msg); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
