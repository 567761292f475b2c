package logger

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/student-idcard/pkg/config"
	"github.com/noah-isme/student-idcard/pkg/middleware/requestid"
)

func TestNewHonoursLevel(t *testing.T) {
	l, err := New(&config.Config{Env: config.EnvProduction, Log: config.LogConfig{Level: "warn", Format: "json"}})
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, l.Core().Enabled(zapcore.WarnLevel))
}

func TestGinMiddlewareLogsRouteNotPath(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.DebugLevel)

	r := gin.New()
	r.Use(requestid.Middleware())
	r.Use(GinMiddleware(zap.New(core)))
	r.GET("/downloads/:token", func(c *gin.Context) {
		c.Set(OperatorKey, "office")
		c.Status(http.StatusUnauthorized)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/downloads/secret-token", nil))

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	fields := entries[0].ContextMap()
	assert.Equal(t, "/downloads/:token", fields["route"])
	assert.Equal(t, "office", fields["operator"])
	assert.NotEmpty(t, fields["request_id"])
	assert.NotContains(t, entries[0].Message+fields["route"].(string), "secret-token")
}
