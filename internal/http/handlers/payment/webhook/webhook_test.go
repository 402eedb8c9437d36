package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/numerology-bot/internal/models"
	"github.com/magabrotheeeer/numerology-bot/internal/services/payment"
)

const testSecret = "test-webhook-secret"

type MockService struct {
	mock.Mock
}

func (m *MockService) ProcessWebhookEvent(ctx context.Context, ev payment.WebhookEvent) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func successBody() []byte {
	return []byte(`{
		"type": "notification",
		"event": "payment.succeeded",
		"object": {
			"id": "prov-1",
			"status": "succeeded",
			"payment_method": {"id": "pm-1", "saved": true},
			"metadata": {"order_id": "7", "charge_id_client": "charge-1"}
		}
	}`)
}

func TestWebhookHandler_ServeHTTP(t *testing.T) {
	tests := []struct {
		name           string
		body           []byte
		signature      string
		setupMocks     func(s *MockService)
		expectedStatus int
	}{
		{
			name:      "success - event processed",
			body:      successBody(),
			signature: sign(successBody()),
			setupMocks: func(s *MockService) {
				s.On("ProcessWebhookEvent", mock.Anything, payment.WebhookEvent{
					Event:           "payment.succeeded",
					PaymentID:       "prov-1",
					PaymentMethodID: "pm-1",
					PaymentSaved:    true,
					ChargeIDClient:  "charge-1",
				}).Return(nil).Once()
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:      "duplicate delivery is acked",
			body:      successBody(),
			signature: sign(successBody()),
			setupMocks: func(s *MockService) {
				// Сервис поглощает дубликат и возвращает nil.
				s.On("ProcessWebhookEvent", mock.Anything, mock.Anything).Return(nil).Once()
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "missing signature",
			body:           successBody(),
			signature:      "",
			setupMocks:     func(_ *MockService) {},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "wrong signature",
			body:           successBody(),
			signature:      sign([]byte("another body")),
			setupMocks:     func(_ *MockService) {},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "malformed json",
			body:           []byte(`{"event":`),
			signature:      sign([]byte(`{"event":`)),
			setupMocks:     func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:      "missing metadata",
			body:      []byte(`{"event":"payment.succeeded","object":{"id":"prov-1"}}`),
			signature: sign([]byte(`{"event":"payment.succeeded","object":{"id":"prov-1"}}`)),
			setupMocks: func(s *MockService) {
				s.On("ProcessWebhookEvent", mock.Anything, mock.Anything).
					Return(models.ErrValidation).Once()
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:      "unknown order is rejected without retry",
			body:      successBody(),
			signature: sign(successBody()),
			setupMocks: func(s *MockService) {
				// Заказ фиксируется до обращения к провайдеру, поэтому
				// повтор доставки такому уведомлению не поможет.
				s.On("ProcessWebhookEvent", mock.Anything, mock.Anything).
					Return(models.ErrOrderNotFound).Once()
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:      "processing error triggers provider retry",
			body:      successBody(),
			signature: sign(successBody()),
			setupMocks: func(s *MockService) {
				s.On("ProcessWebhookEvent", mock.Anything, mock.Anything).
					Return(errors.New("db error")).Once()
			},
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := new(MockService)
			tt.setupMocks(service)
			handler := New(newNoopLogger(), service, testSecret)

			req := httptest.NewRequest(http.MethodPost, "/webhook/payment", bytes.NewReader(tt.body))
			if tt.signature != "" {
				req.Header.Set(SignatureHeader, tt.signature)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			service.AssertExpectations(t)
			if tt.expectedStatus == http.StatusUnauthorized {
				service.AssertNotCalled(t, "ProcessWebhookEvent", mock.Anything, mock.Anything)
			}
		})
	}
}
