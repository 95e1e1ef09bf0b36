/*
Package handler provides the HTTP handlers and routing setup for the TypeRace server.

This file defines the main Router, applying necessary middleware like logging, CORS,
and IP-based rate limiting before delegating requests to specific handlers (API and WebSocket).
*/
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"typerace/internal/pkg/auth/jwt"
	"typerace/internal/pkg/limiter"
	"typerace/internal/pkg/logx"
	"typerace/internal/pkg/resp"
)

const (
	CreateRate  = 0.1
	CreateBurst = 3
	JoinRate    = 0.5
	JoinBurst   = 10
)

// Router sets up the main HTTP routing table (chi.Router) for the application.
// It initializes IP-based rate limiters, configures CORS, and applies global and
// per-route middleware.
func Router(deps *AppDeps) http.Handler {
	createLimiter := limiter.NewIPRateLimiter(rate.Limit(CreateRate), CreateBurst)
	joinLimiter := limiter.NewIPRateLimiter(rate.Limit(JoinRate), JoinBurst)

	r := chi.NewRouter()

	allowedOrigins := make(map[string]struct{})
	for _, origin := range deps.Config.AllowedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	var wsUpgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if deps.Config.Environment == "development" {
				return true
			}

			origin := r.Header.Get("Origin")
			if _, ok := allowedOrigins[origin]; ok {
				return true
			}

			logx.Warn("WebSocket connection rejected: Origin not allowed.", "origin", origin)
			return false
		},
	}

	corsAllowedOrigins := []string{}
	if deps.Config.Environment == "development" {
		corsAllowedOrigins = []string{"*"}
	} else if len(deps.Config.AllowedOrigins) > 0 {
		corsAllowedOrigins = deps.Config.AllowedOrigins
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   corsAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{},
		AllowCredentials: true,
		MaxAge:           300,
	})
	r.Use(c.Handler)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logx.RequestLogger())
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		data := map[string]any{
			"status":      "ok",
			"service":     "TypeRace Server",
			"connections": deps.Hub.Registry().Count(),
		}
		resp.RespondSuccess(w, r, data)
	})

	r.Route("/api", func(api chi.Router) {
		api.Use(jwt.IdentityExtractorMiddleware(deps.Config.JWTSecret))

		api.Route("/auth", func(auth chi.Router) {
			auth.Post("/register", HandleRegister(deps))
			auth.Post("/login", HandleLogin(deps))
			auth.Get("/verify", jwt.RequireAuth(HandleVerify(deps)))
		})

		api.Route("/rooms", func(rooms chi.Router) {
			rateLimitedCreate := createLimiter.Middleware(jwt.RequireAuth(HandleCreateRoom(deps)))
			rooms.Post("/create", http.HandlerFunc(rateLimitedCreate.ServeHTTP))

			rateLimitedJoin := joinLimiter.Middleware(jwt.RequireAuth(HandleJoinRoom(deps)))
			rooms.Post("/join", http.HandlerFunc(rateLimitedJoin.ServeHTTP))

			rooms.Post("/validate", jwt.RequireAuth(HandleValidateRoom(deps)))
			rooms.Get("/", HandleListRooms(deps))
			rooms.Get("/{roomId}", HandleGetRoom(deps))
		})

		api.Route("/users", func(users chi.Router) {
			users.Get("/leaderboard", HandleLeaderboard(deps))
			users.Get("/typing-history", jwt.RequireAuth(HandleTypingHistory(deps)))
		})

		api.Get("/texts/random", HandleRandomText(deps))
	})

	r.Get("/ws", HandleWebSocket(wsUpgrader, joinLimiter, deps))

	return r
}
