package validate

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/facility-access/internal/models"
	accessservice "github.com/magabrotheeeer/facility-access/internal/services/access"
)

// MockService реализует интерфейс validate.Service
type MockService struct {
	mock.Mock
}

func (m *MockService) Validate(ctx context.Context, req models.DummyValidate) (*accessservice.ValidationOutcome, error) {
	args := m.Called(ctx, req)
	if res := args.Get(0); res != nil {
		return res.(*accessservice.ValidationOutcome), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestValidateHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	tests := []struct {
		name           string
		body           string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "успешный проход на вход",
			body: `{"token":"123456","action":"ENTRY","scanner_location":"main gate"}`,
			setupMock: func(m *MockService) {
				m.On("Validate", mock.Anything, mock.AnythingOfType("models.DummyValidate")).
					Return(&accessservice.ValidationOutcome{
						Result: models.ResultSuccess,
						Subscription: &models.Subscription{
							UserUID: "6f9619ff-8b86-d011-b42d-00cf4fc964ff",
						},
						PlanName: "Monthly Unlimited",
					}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"validation_result":"SUCCESS"`,
		},
		{
			name: "отказ возвращается со статусом 200",
			body: `{"token":"999999","action":"ENTRY"}`,
			setupMock: func(m *MockService) {
				m.On("Validate", mock.Anything, mock.AnythingOfType("models.DummyValidate")).
					Return(&accessservice.ValidationOutcome{
						Result:  models.ResultDenied,
						Message: "subscription is not active",
					}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"validation_result":"DENIED"`,
		},
		{
			name:           "битый JSON",
			body:           `{not json`,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `invalid request body`,
		},
		{
			name:           "недопустимое направление прохода",
			body:           `{"token":"123456","action":"SIDEWAYS"}`,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `Action`,
		},
		{
			name: "ошибка сервиса",
			body: `{"token":"123456","action":"EXIT"}`,
			setupMock: func(m *MockService) {
				m.On("Validate", mock.Anything, mock.AnythingOfType("models.DummyValidate")).
					Return(nil, errors.New("storage is down"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `could not validate scan`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockService)
			tt.setupMock(mockService)

			handler := New(logger, mockService)

			req := httptest.NewRequest(http.MethodPost, "/access/validate", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.True(t, strings.Contains(w.Body.String(), tt.expectedBody),
				"response body should contain %s, got %s", tt.expectedBody, w.Body.String())

			mockService.AssertExpectations(t)
		})
	}
}
