/*
Package handler provides the HTTP handler function for WebSocket connection
upgrading and initialization.

This file contains the HandleWebSocket function, which is responsible for rate
limiting, verifying the credential token, upgrading the HTTP connection to
WebSocket, registering the session, and initiating the client lifecycle.
*/
package handler

import (
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"typerace/internal/app/race"
	"typerace/internal/pkg/errs"
	"typerace/internal/pkg/limiter"
	"typerace/internal/pkg/logx"
	"typerace/internal/pkg/randx"
	"typerace/internal/pkg/resp"
)

// rejectUpgraded sends one roomError frame on a freshly upgraded connection and
// closes it. Used for registration failures that happen after the upgrade.
func rejectUpgraded(conn *websocket.Conn, customErr *errs.CustomError) {
	message, err := race.NewEvent(race.EventRoomError, race.RoomErrorPayload{
		Message: customErr.Message,
		Code:    customErr.EventCode(),
	})
	if err == nil {
		deadline := time.Now().Add(5 * time.Second)
		_ = conn.SetWriteDeadline(deadline)
		_ = conn.WriteMessage(websocket.TextMessage, message)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, customErr.EventCode()), deadline)
	}
	conn.Close()
}

// HandleWebSocket creates an HTTP HandlerFunc to process WebSocket connection requests.
func HandleWebSocket(upgrader websocket.Upgrader, rateLimiter *limiter.IPRateLimiter, deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}
		if ip == "" {
			ip = "unknown_ip"
		}

		if !rateLimiter.GetLimiter(ip).Allow() {
			logx.Warn("WebSocket connection rejected: Rate limit exceeded.", "ip", ip)
			resp.RespondError(w, r, errs.NewError(errs.ErrRateLimitExceeded))
			return
		}

		query := r.URL.Query()
		token := query.Get("token")
		instanceID := query.Get("cid")

		if !randx.IsValidConnInstanceID(instanceID) {
			logx.Warn("WebSocket request rejected: Missing or malformed cid parameter")
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		user, customErr := deps.Identity.VerifyCredential(r.Context(), token)
		if customErr != nil {
			logx.Warn("WebSocket request rejected: Credential verification failed.", "code", customErr.Code)
			resp.RespondError(w, r, customErr)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket")
			return
		}

		client := race.NewClient(deps.Hub, conn, user.ID, user.Username, instanceID)

		evicted, customErr := deps.Hub.Registry().Register(client)
		if customErr != nil {
			logx.Warn("WebSocket connection rejected after upgrade.",
				"user_id", user.ID, "code", customErr.EventCode())
			rejectUpgraded(conn, customErr)
			return
		}

		if evicted != nil {
			deps.Hub.EvictClient(evicted)
		}

		logx.Info("WebSocket connection established and session registered",
			"user_id", user.ID, "connection_id", client.ConnectionID())

		go client.WritePump()

		client.ReadPump()
	}
}
