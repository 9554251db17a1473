package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/lead-manager/internal/config"
)

func TestNewLoggerFallsBackToInfo(t *testing.T) {
	logger, err := NewLogger(config.LoggerConfig{Level: "loud"})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))
}

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics()
	m.RecordRequest("/api/leads", "GET", 200, 15*time.Millisecond)
	m.RecordRequest("/api/leads", "GET", 200, 5*time.Millisecond)
	m.RecordError("/api/leads/:id", "GET", "NOT_FOUND")
	m.RecordImport(3, 2)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("GET", "/api/leads", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.errorsTotal.WithLabelValues("GET", "/api/leads/:id", "NOT_FOUND")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.importedRows))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.rejectedRows))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordRequest("/", "GET", 200, time.Millisecond)
		m.RecordError("/", "GET", "X")
		m.RecordImport(1, 1)
	})
}

func TestRequestLoggerAndMetricsEndpoint(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	m := NewMetrics()

	app := fiber.New()
	app.Use(RequestLogger(zap.New(core), m))
	app.Get("/leads/:id", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNotFound) })
	app.Get("/metrics", m.Handler())

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/leads/abc", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	entries := logs.FilterMessage("request completed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.EqualValues(t, 404, entries[0].ContextMap()["status"])

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `status="404"} 1`), string(body))
	assert.Contains(t, string(body), "go_goroutines")
}

func TestRouteLabelUsesPatternOrUnmatched(t *testing.T) {
	labels := make(chan string, 2)
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		err := c.Next()
		labels <- RouteLabel(c)
		return err
	})
	app.Get("/leads/:id", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
	app.Use(NotFound)

	_, err := app.Test(httptest.NewRequest(http.MethodGet, "/leads/abc", nil), -1)
	require.NoError(t, err)
	_, err = app.Test(httptest.NewRequest(http.MethodGet, "/elsewhere/abc", nil), -1)
	require.NoError(t, err)

	assert.Equal(t, "/leads/:id", <-labels)
	assert.Equal(t, UnmatchedRoute, <-labels)
}
