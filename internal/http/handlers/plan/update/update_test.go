package update

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/facility-access/internal/lib/errs"
	"github.com/magabrotheeeer/facility-access/internal/models"
)

// MockService реализует интерфейс update.Service
type MockService struct {
	mock.Mock
}

func (m *MockService) Update(ctx context.Context, id int64, patch models.DummyPlanPatch) (*models.Plan, error) {
	args := m.Called(ctx, id, patch)
	if res := args.Get(0); res != nil {
		return res.(*models.Plan), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestUpdateHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	tests := []struct {
		name           string
		planID         string
		body           string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:   "успешное обновление кастомного плана",
			planID: "7",
			body:   `{"name":"Evening pass","price":1500}`,
			setupMock: func(m *MockService) {
				m.On("Update", mock.Anything, int64(7), mock.AnythingOfType("models.DummyPlanPatch")).
					Return(&models.Plan{ID: 7, Name: "Evening pass"}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `Evening pass`,
		},
		{
			name:           "некорректный id в url",
			planID:         "abc",
			body:           `{"name":"Evening pass"}`,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `failed to decode id from url`,
		},
		{
			name:   "системный план неизменяем",
			planID: "1",
			body:   `{"price":2000}`,
			setupMock: func(m *MockService) {
				m.On("Update", mock.Anything, int64(1), mock.AnythingOfType("models.DummyPlanPatch")).
					Return(nil, errs.ErrForbidden)
			},
			expectedStatus: http.StatusForbidden,
			expectedBody:   `could not update plan`,
		},
		{
			name:   "план не найден",
			planID: "99",
			body:   `{"price":2000}`,
			setupMock: func(m *MockService) {
				m.On("Update", mock.Anything, int64(99), mock.AnythingOfType("models.DummyPlanPatch")).
					Return(nil, errs.ErrNotFound)
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `could not update plan`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockService)
			tt.setupMock(mockService)

			handler := New(logger, mockService)

			req := httptest.NewRequest(http.MethodPatch, "/plans/"+tt.planID, strings.NewReader(tt.body))
			rctx := chi.NewRouteContext()
			rctx.URLParams.Add("id", tt.planID)
			req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.True(t, strings.Contains(w.Body.String(), tt.expectedBody),
				"response body should contain %s, got %s", tt.expectedBody, w.Body.String())

			mockService.AssertExpectations(t)
		})
	}
}
