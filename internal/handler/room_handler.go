/*
Package handler provides HTTP handler functions for room creation, discovery,
and the pre-join validation flow.

Joining is a two-step flow: clients validate/join over REST first to resolve a
room code into a room id, then attach over the WebSocket gateway with a joinRoom
event. Membership itself is only committed by the gateway.
*/
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"typerace/internal/app/race"
	"typerace/internal/pkg/auth/jwt"
	"typerace/internal/pkg/errs"
	"typerace/internal/pkg/logx"
	"typerace/internal/pkg/randx"
	"typerace/internal/pkg/req"
	"typerace/internal/pkg/resp"
)

type CreateRoomInput struct {
	MaxParticipants int `json:"maxParticipants"`
}

// HandleCreateRoom creates a waiting room with a fresh join code and a passage.
func HandleCreateRoom(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input CreateRoomInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if input.MaxParticipants < 0 || input.MaxParticipants > race.DefaultMaxParticipants {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams, "maxParticipants out of range"))
			return
		}

		room, customErr := deps.Store.CreateRoom(input.MaxParticipants)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		payload := jwt.GetPayloadFromContext(r)
		logx.Info("Room created", "room_id", room.ID, "room_code", room.Code, "user_id", payload.UserID)

		resp.RespondSuccess(w, r, room)
	}
}

// HandleListRooms returns summaries of all rooms that are not completed.
func HandleListRooms(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp.RespondSuccess(w, r, deps.Store.ListActive())
	}
}

// HandleGetRoom returns the full state of one room.
func HandleGetRoom(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := chi.URLParam(r, "roomId")
		if roomID == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		room, customErr := deps.Store.FindByID(roomID)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		resp.RespondSuccess(w, r, room)
	}
}

type RoomCodeInput struct {
	RoomCode string `json:"roomCode"`
}

// HandleValidateRoom checks whether a room code can still be joined without
// committing anything. Used by clients before navigating to the race screen.
func HandleValidateRoom(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input RoomCodeInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if !randx.IsValidRoomCode(input.RoomCode) {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams, "room code must be 5 digits"))
			return
		}

		room, customErr := deps.Store.FindByCode(input.RoomCode)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if room.Status != race.StatusWaiting {
			resp.RespondError(w, r, errs.NewError(errs.ErrRoomNotAccepting))
			return
		}
		if room.IsFull() {
			resp.RespondError(w, r, errs.NewError(errs.ErrRoomFull))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"valid":  true,
			"roomId": room.ID,
		})
	}
}

// HandleJoinRoom resolves a room code into a room id after checking the room
// still accepts the caller. The WebSocket joinRoom event commits membership;
// the two checks race benignly because the gateway re-checks on attach.
func HandleJoinRoom(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := jwt.GetPayloadFromContext(r)

		var input RoomCodeInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if !randx.IsValidRoomCode(input.RoomCode) {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams, "room code must be 5 digits"))
			return
		}

		room, customErr := deps.Store.FindByCode(input.RoomCode)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if room.Status != race.StatusWaiting {
			resp.RespondError(w, r, errs.NewError(errs.ErrRoomNotAccepting))
			return
		}
		if room.IsFull() {
			resp.RespondError(w, r, errs.NewError(errs.ErrRoomFull))
			return
		}
		if room.HasUser(payload.UserID) {
			resp.RespondError(w, r, errs.NewError(errs.ErrAlreadyMember))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"roomId":   room.ID,
			"isJoined": true,
		})
	}
}
