package create

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
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

type MockService struct {
	mock.Mock
}

func (m *MockService) CreatePurchase(ctx context.Context, tgID int64, product string, payload json.RawMessage) (*payment.PurchaseResult, error) {
	args := m.Called(ctx, tgID, product, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.PurchaseResult), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestCreateOrderHandler_ServeHTTP(t *testing.T) {
	tests := []struct {
		name           string
		requestBody    any
		setupMocks     func(s *MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "success - create order",
			requestBody: CreateOrderRequest{
				TgID:    100,
				Product: models.ProductFullReport,
			},
			setupMocks: func(s *MockService) {
				s.On("CreatePurchase", mock.Anything, int64(100),
					models.ProductFullReport, mock.Anything).
					Return(&payment.PurchaseResult{
						OrderID:         7,
						ConfirmationURL: "https://pay.example/confirm",
					}, nil).Once()
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"confirmation_url":"https://pay.example/confirm"`,
		},
		{
			name:           "invalid json",
			requestBody:    "not json",
			setupMocks:     func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "unknown product fails validation",
			requestBody: CreateOrderRequest{
				TgID:    100,
				Product: "horoscope",
			},
			setupMocks:     func(_ *MockService) {},
			expectedStatus: http.StatusUnprocessableEntity,
		},
		{
			name: "missing tg_id",
			requestBody: CreateOrderRequest{
				Product: models.ProductFullReport,
			},
			setupMocks:     func(_ *MockService) {},
			expectedStatus: http.StatusUnprocessableEntity,
		},
		{
			name: "provider error",
			requestBody: CreateOrderRequest{
				TgID:    100,
				Product: models.ProductSubscriptionMonth,
			},
			setupMocks: func(s *MockService) {
				s.On("CreatePurchase", mock.Anything, int64(100),
					models.ProductSubscriptionMonth, mock.Anything).
					Return(nil, errors.New("provider unavailable")).Once()
			},
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := new(MockService)
			tt.setupMocks(service)
			handler := New(newNoopLogger(), service)

			var body bytes.Buffer
			if s, ok := tt.requestBody.(string); ok {
				body.WriteString(s)
			} else {
				assert.NoError(t, json.NewEncoder(&body).Encode(tt.requestBody))
			}
			req := httptest.NewRequest(http.MethodPost, "/orders", &body)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			if tt.expectedBody != "" {
				assert.Contains(t, rec.Body.String(), tt.expectedBody)
			}
			service.AssertExpectations(t)
		})
	}
}

func TestCreateOrderHandler_CompatibilityPayloadPassedThrough(t *testing.T) {
	payload := json.RawMessage(`{"partner_fio":"Пётр Петров","partner_birthdate":"1984-07-15"}`)
	service := new(MockService)
	service.On("CreatePurchase", mock.Anything, int64(100), models.ProductCompatibility,
		mock.MatchedBy(func(p json.RawMessage) bool {
			return bytes.Equal(p, payload)
		})).Return(&payment.PurchaseResult{OrderID: 8}, nil).Once()
	handler := New(newNoopLogger(), service)

	body := fmt.Sprintf(`{"tg_id":100,"product":"compatibility","payload":%s}`, payload)
	req := httptest.NewRequest(http.MethodPost, "/orders", bytes.NewReader([]byte(body)))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	service.AssertExpectations(t)
}
