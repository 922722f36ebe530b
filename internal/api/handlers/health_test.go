package handlers

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockHealthChecker struct {
	mock.Mock
}

func (m *MockHealthChecker) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func TestHealthHandler_HealthCheck(t *testing.T) {
	tests := []struct {
		name           string
		dbError        error
		redisError     error
		noRedis        bool
		expectedStatus int
		expectedRedis  string
	}{
		{name: "all services healthy", expectedStatus: http.StatusOK, expectedRedis: "healthy"},
		{name: "redis disabled", noRedis: true, expectedStatus: http.StatusOK, expectedRedis: "disabled"},
		{name: "database down", dbError: errors.New("connection refused"), expectedStatus: http.StatusServiceUnavailable, expectedRedis: "healthy"},
		{name: "redis down", redisError: errors.New("timeout"), expectedStatus: http.StatusServiceUnavailable, expectedRedis: "unhealthy: timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := &MockHealthChecker{}
			db.On("HealthCheck", mock.Anything).Return(tt.dbError)

			var handler *HealthHandler
			if tt.noRedis {
				handler = NewHealthHandler(db, nil)
			} else {
				redis := &MockHealthChecker{}
				redis.On("HealthCheck", mock.Anything).Return(tt.redisError)
				handler = NewHealthHandler(db, redis)
			}

			w := serve(http.MethodGet, "/health", "/health", "", handler.HealthCheck)

			assert.Equal(t, tt.expectedStatus, w.Code)
			body := decode(t, w)
			services := body["services"].(map[string]interface{})
			assert.Equal(t, tt.expectedRedis, services["redis"])
			if tt.dbError == nil {
				assert.Equal(t, "healthy", services["database"])
			} else {
				assert.Contains(t, services["database"], "connection refused")
			}
			db.AssertExpectations(t)
		})
	}
}

func TestHealthHandler_ReadinessCheck(t *testing.T) {
	db := &MockHealthChecker{}
	db.On("HealthCheck", mock.Anything).Return(nil).Once()
	db.On("HealthCheck", mock.Anything).Return(errors.New("down")).Once()
	handler := NewHealthHandler(db, nil)

	w := serve(http.MethodGet, "/ready", "/ready", "", handler.ReadinessCheck)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["ready"])

	w = serve(http.MethodGet, "/ready", "/ready", "", handler.ReadinessCheck)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, false, decode(t, w)["ready"])

	assert.Equal(t, http.StatusServiceUnavailable, serve(http.MethodGet, "/ready", "/ready", "", NewHealthHandler(nil, nil).ReadinessCheck).Code)
}

func TestHealthHandler_LivenessCheck(t *testing.T) {
	w := serve(http.MethodGet, "/live", "/live", "", NewHealthHandler(nil, nil).LivenessCheck)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alive", decode(t, w)["status"])
}
