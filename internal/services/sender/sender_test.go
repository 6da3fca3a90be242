package services

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/facility-access/internal/config"
	"github.com/magabrotheeeer/facility-access/internal/lib/smtp"
	"github.com/magabrotheeeer/facility-access/internal/models"
)

type MockTransport struct {
	mock.Mock
}

func (m *MockTransport) Connect() (smtp.Client, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(smtp.Client), args.Error(1)
}

func (m *MockTransport) Sender() string {
	args := m.Called()
	return args.String(0)
}

type MockSMTPClient struct {
	mock.Mock
}

func (m *MockSMTPClient) Mail(from string) error {
	args := m.Called(from)
	return args.Error(0)
}

func (m *MockSMTPClient) Rcpt(to string) error {
	args := m.Called(to)
	return args.Error(0)
}

func (m *MockSMTPClient) Data() (io.WriteCloser, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.WriteCloser), args.Error(1)
}

func (m *MockSMTPClient) Close() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockSMTPClient) Quit() error {
	args := m.Called()
	return args.Error(0)
}

type MockSMTPWriter struct {
	mock.Mock
}

func (m *MockSMTPWriter) Write(p []byte) (n int, err error) {
	args := m.Called(p)
	return args.Int(0), args.Error(1)
}

func (m *MockSMTPWriter) Close() error {
	args := m.Called()
	return args.Error(0)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func newTestConfig() *config.Config {
	cfg := &config.Config{}
	cfg.SMTP.NotifyTo = "admin@example.com"
	return cfg
}

func expiryBody(t *testing.T, status models.SubscriptionStatus, grace *time.Time) []byte {
	t.Helper()
	body, err := json.Marshal(models.ExpiryInfo{
		SubscriptionID: 42,
		UserUID:        "6f9619ff-8b86-d011-b42d-00cf4fc964ff",
		PlanName:       "Standard Monthly",
		EndDate:        time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC),
		GraceEndDate:   grace,
		Status:         status,
	})
	assert.NoError(t, err)
	return body
}

func setupHappySMTP(transport *MockTransport) {
	mockClient := new(MockSMTPClient)
	mockWriter := new(MockSMTPWriter)

	transport.On("Sender").Return("sender@example.com")
	transport.On("Connect").Return(mockClient, nil).Once()
	mockClient.On("Mail", "sender@example.com").Return(nil).Once()
	mockClient.On("Rcpt", "admin@example.com").Return(nil).Once()
	mockClient.On("Data").Return(mockWriter, nil).Once()
	mockWriter.On("Write", mock.AnythingOfType("[]uint8")).Return(100, nil).Once()
	mockWriter.On("Close").Return(nil).Once()
	mockClient.On("Quit").Return(nil).Once()
	mockClient.On("Close").Return(nil).Once()
}

func TestSenderService_SendInfoExpiringSubscription(t *testing.T) {
	tests := []struct {
		name          string
		body          []byte
		setupMocks    func(*MockTransport)
		expectedError bool
		errorMessage  string
	}{
		{
			name:          "success - send expiring subscription email",
			body:          expiryBody(t, models.StatusActive, nil),
			setupMocks:    setupHappySMTP,
			expectedError: false,
		},
		{
			name: "invalid JSON",
			body: []byte(`invalid json`),
			setupMocks: func(_ *MockTransport) {
				// No transport calls expected for invalid JSON
			},
			expectedError: true,
			errorMessage:  "error unmarshalling message",
		},
		{
			name: "SMTP connection error",
			body: expiryBody(t, models.StatusActive, nil),
			setupMocks: func(transport *MockTransport) {
				transport.On("Sender").Return("sender@example.com")
				transport.On("Connect").Return(nil, errors.New("connection error")).Once()
			},
			expectedError: true,
			errorMessage:  "connection error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := new(MockTransport)
			service := NewSenderService(newTestConfig(), newNoopLogger(), transport)

			tt.setupMocks(transport)

			err := service.SendInfoExpiringSubscription(tt.body)

			if tt.expectedError {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMessage)
			} else {
				assert.NoError(t, err)
			}

			transport.AssertExpectations(t)
		})
	}
}

func TestSenderService_SendInfoExpiredSubscription(t *testing.T) {
	grace := time.Date(2025, 7, 7, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name          string
		body          []byte
		setupMocks    func(*MockTransport)
		expectedError bool
	}{
		{
			name:          "grace period notification",
			body:          expiryBody(t, models.StatusInGracePeriod, &grace),
			setupMocks:    setupHappySMTP,
			expectedError: false,
		},
		{
			name:          "expired notification",
			body:          expiryBody(t, models.StatusExpired, nil),
			setupMocks:    setupHappySMTP,
			expectedError: false,
		},
		{
			name: "invalid JSON",
			body: []byte(`{broken`),
			setupMocks: func(_ *MockTransport) {
			},
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := new(MockTransport)
			service := NewSenderService(newTestConfig(), newNoopLogger(), transport)

			tt.setupMocks(transport)

			err := service.SendInfoExpiredSubscription(tt.body)

			if tt.expectedError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}

			transport.AssertExpectations(t)
		})
	}
}
