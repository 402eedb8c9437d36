package trial

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/numerology-bot/internal/models"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) StartTrial(ctx context.Context, tgID int64) (*models.Subscription, error) {
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

func TestStartTrialHandler_ServeHTTP(t *testing.T) {
	trialEnd := time.Date(2026, 9, 8, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name           string
		requestBody    any
		setupMocks     func(s *MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:        "success - trial started",
			requestBody: StartTrialRequest{TgID: 100},
			setupMocks: func(s *MockService) {
				s.On("StartTrial", mock.Anything, int64(100)).
					Return(&models.Subscription{
						Status:   models.SubscriptionStatusTrial,
						TrialEnd: &trialEnd,
					}, nil).Once()
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"status":"trial"`,
		},
		{
			name:        "subscription already exists",
			requestBody: StartTrialRequest{TgID: 100},
			setupMocks: func(s *MockService) {
				s.On("StartTrial", mock.Anything, int64(100)).
					Return(nil, models.ErrSubscriptionExists).Once()
			},
			expectedStatus: http.StatusConflict,
		},
		{
			name:           "invalid json",
			requestBody:    "not json",
			setupMocks:     func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "missing tg_id",
			requestBody:    StartTrialRequest{},
			setupMocks:     func(_ *MockService) {},
			expectedStatus: http.StatusUnprocessableEntity,
		},
		{
			name:        "internal error",
			requestBody: StartTrialRequest{TgID: 100},
			setupMocks: func(s *MockService) {
				s.On("StartTrial", mock.Anything, int64(100)).
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

			var body bytes.Buffer
			if s, ok := tt.requestBody.(string); ok {
				body.WriteString(s)
			} else {
				assert.NoError(t, json.NewEncoder(&body).Encode(tt.requestBody))
			}
			req := httptest.NewRequest(http.MethodPost, "/subscriptions/trial", &body)
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
