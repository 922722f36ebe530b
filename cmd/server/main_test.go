package main

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/irfndi/catalyst-ai-go/internal/api"
	"github.com/irfndi/catalyst-ai-go/internal/api/handlers"
	"github.com/irfndi/catalyst-ai-go/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestNewRouter(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	cfg := &config.Config{
		Server:    config.ServerConfig{AllowedOrigins: []string{"http://localhost:3000"}, AdminAPIKey: "k"},
		Telemetry: config.TelemetryConfig{ServiceName: "catalyst-test"},
	}

	router := newRouter(cfg, api.Handlers{Health: handlers.NewHealthHandler(nil, nil)}, logger)

	req := httptest.NewRequest(http.MethodGet, "/live", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/signals", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
