package handler

import (
	"net/http"

	"typerace/internal/pkg/resp"
)

// HandleRandomText returns a random practice passage.
func HandleRandomText(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp.RespondSuccess(w, r, map[string]any{
			"text": deps.Texts.RandomPractice(),
		})
	}
}
