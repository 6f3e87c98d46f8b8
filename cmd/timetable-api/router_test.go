package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-api/internal/handler"
	"github.com/noah-isme/timetable-api/internal/models"
	"github.com/noah-isme/timetable-api/internal/service"
	"github.com/noah-isme/timetable-api/pkg/config"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
)

type staticTokens map[string]*models.JWTClaims

func (s staticTokens) ValidateToken(token string) (*models.JWTClaims, error) {
	if claims, ok := s[token]; ok {
		return claims, nil
	}
	return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
}

func testRouter(enabled bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{Env: config.EnvDevelopment, APIPrefix: "/api/v1"}
	cfg.Scheduler.Enabled = enabled
	metrics := service.NewMetricsService()
	return newRouter(cfg, zap.NewNop(), routerDeps{
		metrics: metrics,
		tokens: staticTokens{
			"teacher": {UserID: "u-1", Role: models.RoleTeacher, TeacherID: "t-1"},
		},
		timetable: handler.NewScheduleGeneratorHandler(nil, nil),
		probes:    handler.NewMetricsHandler(metrics, nil),
	})
}

func TestRouterProbesArePublic(t *testing.T) {
	r := testRouter(true)
	for _, path := range []string{"/health", "/ready", "/metrics"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}

func TestRouterRequiresToken(t *testing.T) {
	r := testRouter(true)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/timetables/generate", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRouterTeacherCannotGenerate(t *testing.T) {
	r := testRouter(true)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/timetables/generate", strings.NewReader(`{}`))
	req.Header.Set("Authorization", "Bearer teacher")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRouterGenerationDisabled(t *testing.T) {
	r := testRouter(false)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/timetables/generate", strings.NewReader(`{}`))
	req.Header.Set("Authorization", "Bearer teacher")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
