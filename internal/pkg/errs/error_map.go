/*
Package errs provides custom error types and application-level error code constants.

This file defines the map from error codes to the CustomError struct, used to standardize
HTTP responses and roomError event payloads.
*/
package errs

import "net/http"

// errorMap stores the detailed CustomError struct corresponding to every application error code.
// The key is the error code (int), and the value contains the user message and HTTP status code.
var errorMap = map[int]CustomError{
	// 1xxx: General Request Handling Errors
	ErrInvalidParams:        {Code: ErrInvalidParams, Message: "Invalid request parameters.", Status: http.StatusBadRequest},
	ErrUnsupportedMediaType: {Code: ErrUnsupportedMediaType, Message: "Unsupported request format.", Status: http.StatusUnsupportedMediaType},
	ErrInvalidJSONFormat:    {Code: ErrInvalidJSONFormat, Message: "Unsupported request format.", Status: http.StatusBadRequest},
	ErrExtraContentInBody:   {Code: ErrExtraContentInBody, Message: "Request contains unexpected data.", Status: http.StatusBadRequest},
	ErrRateLimitExceeded:    {Code: ErrRateLimitExceeded, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},
	ErrInvalidUsername:      {Code: ErrInvalidUsername, Message: "Username must be 3-20 letters, digits, or underscores.", Status: http.StatusBadRequest},
	ErrInvalidPassword:      {Code: ErrInvalidPassword, Message: "Password must be between 6 and 50 characters.", Status: http.StatusBadRequest},

	// 2xxx: Room and Race Business Logic Errors
	ErrRoomNotFound:     {Code: ErrRoomNotFound, Message: "Room not found. Please check the room code and try again.", Status: http.StatusNotFound},
	ErrRoomFull:         {Code: ErrRoomFull, Message: "Room is full. Please try another room.", Status: http.StatusForbidden},
	ErrRoomNotAccepting: {Code: ErrRoomNotAccepting, Message: "Room is no longer accepting participants.", Status: http.StatusForbidden},
	ErrAlreadyMember:    {Code: ErrAlreadyMember, Message: "You are already in this room.", Status: http.StatusBadRequest},
	ErrNotCreator:       {Code: ErrNotCreator, Message: "Only the room creator can start the game.", Status: http.StatusForbidden},
	ErrNotEnoughPlayers: {Code: ErrNotEnoughPlayers, Message: "At least two players are required to start the race.", Status: http.StatusBadRequest},
	ErrGameInProgress:   {Code: ErrGameInProgress, Message: "The race has already started in this room.", Status: http.StatusForbidden},
	ErrStartGameError:   {Code: ErrStartGameError, Message: "Failed to start the game.", Status: http.StatusConflict},

	// 3xxx: Authentication, Session, and Connection Errors
	ErrAuthRequired:        {Code: ErrAuthRequired, Message: "Authentication required.", Status: http.StatusUnauthorized},
	ErrAuthExpired:         {Code: ErrAuthExpired, Message: "Your session has expired. Please sign in again.", Status: http.StatusUnauthorized},
	ErrAuthInvalid:         {Code: ErrAuthInvalid, Message: "Invalid authentication token.", Status: http.StatusUnauthorized},
	ErrCapacityExceeded:    {Code: ErrCapacityExceeded, Message: "Server is at maximum capacity. Please try again later.", Status: http.StatusServiceUnavailable},
	ErrDuplicateConnection: {Code: ErrDuplicateConnection, Message: "Duplicate connection detected.", Status: http.StatusConflict},
	ErrSessionReplaced:     {Code: ErrSessionReplaced, Message: "You connected from another device or tab.", Status: http.StatusConflict},
	ErrInvalidCredentials:  {Code: ErrInvalidCredentials, Message: "Incorrect email or password.", Status: http.StatusUnauthorized},
	ErrUserAlreadyExists:   {Code: ErrUserAlreadyExists, Message: "Email or username already exists.", Status: http.StatusBadRequest},
	ErrUserNotFound:        {Code: ErrUserNotFound, Message: "Account not found.", Status: http.StatusNotFound},

	// 5xxx: Internal System Errors
	ErrUnknown: {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
}

// EventCode maps an error code to the short string identifier carried in
// real-time roomError payloads, mirroring what REST clients see as codes.
var eventCodes = map[int]string{
	ErrRoomNotFound:        "ROOM_NOT_FOUND",
	ErrRoomFull:            "ROOM_FULL",
	ErrRoomNotAccepting:    "ROOM_NOT_ACCEPTING",
	ErrAlreadyMember:       "ALREADY_IN_ROOM",
	ErrNotCreator:          "NOT_CREATOR",
	ErrNotEnoughPlayers:    "NOT_ENOUGH_PLAYERS",
	ErrGameInProgress:      "GAME_IN_PROGRESS",
	ErrStartGameError:      "START_GAME_ERROR",
	ErrAuthRequired:        "AUTH_REQUIRED",
	ErrAuthExpired:         "TOKEN_EXPIRED",
	ErrAuthInvalid:         "INVALID_TOKEN",
	ErrCapacityExceeded:    "MAX_CONNECTIONS",
	ErrDuplicateConnection: "DUPLICATE_CONNECTION",
	ErrSessionReplaced:     "NEW_CONNECTION",
}

// EventCode returns the string code used in real-time error payloads for the
// given CustomError. Codes without a dedicated identifier report as UNKNOWN.
func (e *CustomError) EventCode() string {
	if code, ok := eventCodes[e.Code]; ok {
		return code
	}
	return "UNKNOWN"
}
