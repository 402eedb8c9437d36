package read

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/numerology-bot/internal/models"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) Current(ctx context.Context, tgID int64) (*models.Subscription, error) {
	args := m.Called(ctx, tgID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestReadSubscriptionHandler_ServeHTTP(t *testing.T) {
	nextCharge := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name           string
		tgID           string
		setupMocks     func(s *MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "success - active subscription",
			tgID: "100",
			setupMocks: func(s *MockService) {
				s.On("Current", mock.Anything, int64(100)).
					Return(&models.Subscription{
						Status:     models.SubscriptionStatusActive,
						NextCharge: &nextCharge,
					}, nil).Once()
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"status":"active"`,
		},
		{
			name: "subscription not found",
			tgID: "100",
			setupMocks: func(s *MockService) {
				s.On("Current", mock.Anything, int64(100)).
					Return(nil, models.ErrSubscriptionNotFound).Once()
			},
			expectedStatus: http.StatusNotFound,
		},
		{
			name: "user not found",
			tgID: "100",
			setupMocks: func(s *MockService) {
				s.On("Current", mock.Anything, int64(100)).
					Return(nil, models.ErrUserNotFound).Once()
			},
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "invalid tg_id",
			tgID:           "abc",
			setupMocks:     func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "internal error",
			tgID: "100",
			setupMocks: func(s *MockService) {
				s.On("Current", mock.Anything, int64(100)).
					Return(nil, errors.New("db error")).Once()
			},
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := new(MockService)
			tt.setupMocks(service)
			handler := New(newNoopLogger(), service)

			req := httptest.NewRequest(http.MethodGet, "/subscriptions/"+tt.tgID, nil)
			rctx := chi.NewRouteContext()
			rctx.URLParams.Add("tg_id", tt.tgID)
			req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
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
