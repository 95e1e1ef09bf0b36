package handler

import (
	"net/http"
	"strconv"

	"typerace/internal/pkg/auth/jwt"
	"typerace/internal/pkg/resp"
)

// queryLimit parses the "limit" query parameter, falling back on bad input.
func queryLimit(r *http.Request, fallback int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return fallback
	}
	return limit
}

// HandleLeaderboard returns the global leaderboard ordered by high WPM.
func HandleLeaderboard(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, customErr := deps.Identity.Leaderboard(r.Context(), queryLimit(r, 20))
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"leaderboard": entries,
		})
	}
}

// HandleTypingHistory returns the caller's recent races, newest first.
func HandleTypingHistory(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := jwt.GetPayloadFromContext(r)

		entries, customErr := deps.Identity.History(r.Context(), payload.UserID, queryLimit(r, 50))
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"history": entries,
		})
	}
}
