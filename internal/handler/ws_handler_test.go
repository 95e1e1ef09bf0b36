package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"typerace/internal/app/race"
	"typerace/internal/configs"
	"typerace/internal/handler"
	"typerace/internal/pkg/errs"
	"typerace/internal/pkg/limiter"
)

type noopRecorder struct{}

func (noopRecorder) AppendHistory(context.Context, string, int, int) error  { return nil }
func (noopRecorder) MergeHighScore(context.Context, string, int, int) error { return nil }

func newGatewayDeps(t *testing.T) *handler.AppDeps {
	t.Helper()

	store := race.NewStore(staticTexts{})
	t.Cleanup(store.Shutdown)

	registry := race.NewRegistry(10)
	hub := race.NewHub(store, registry, noopRecorder{}, clockwork.NewRealClock())
	t.Cleanup(hub.Shutdown)

	return &handler.AppDeps{
		Config: &configs.AppConfig{Environment: "development", JWTSecret: "test-secret"},
		Store:  store,
		Hub:    hub,
	}
}

func TestHandleWebSocketRejectsBadInstanceID(t *testing.T) {
	deps := newGatewayDeps(t)
	openLimiter := limiter.NewIPRateLimiter(rate.Limit(100), 100)

	tests := []struct {
		name   string
		target string
	}{
		{"missing cid", "/ws?token=whatever"},
		{"short cid", "/ws?token=whatever&cid=abc"},
		{"bad characters", "/ws?token=whatever&cid=bad!chars#here"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			handler.HandleWebSocket(websocket.Upgrader{}, openLimiter, deps)(w, httptest.NewRequest(http.MethodGet, tt.target, nil))

			assert.Equal(t, http.StatusBadRequest, w.Code)
			body := decodeResponse(t, w)
			assert.Equal(t, errs.ErrInvalidParams, body.Code)
		})
	}
}

func TestHandleWebSocketRateLimited(t *testing.T) {
	deps := newGatewayDeps(t)
	closedLimiter := limiter.NewIPRateLimiter(rate.Limit(0), 0)

	w := httptest.NewRecorder()
	handler.HandleWebSocket(websocket.Upgrader{}, closedLimiter, deps)(w, httptest.NewRequest(http.MethodGet, "/ws?cid=abcd1234", nil))

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	body := decodeResponse(t, w)
	assert.Equal(t, errs.ErrRateLimitExceeded, body.Code)
}

func TestRouterHealth(t *testing.T) {
	deps := newGatewayDeps(t)
	router := handler.Router(deps)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	data := dataField(t, decodeResponse(t, w))
	assert.Equal(t, "ok", data["status"])
}

func TestRouterRequiresAuthOnProtectedRoutes(t *testing.T) {
	deps := newGatewayDeps(t)
	router := handler.Router(deps)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/rooms/validate", nil)
	r.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	body := decodeResponse(t, w)
	assert.Equal(t, errs.ErrAuthRequired, body.Code)
}
