/*
Package race contains the core logic for coordinating real-time multiplayer typing races.

This file defines the closed set of real-time event types exchanged over a
connection, with one fixed payload shape per event. Client-to-server events are
decoded from a typed envelope; server events are built through NewEvent so every
broadcast is marshaled exactly once.
*/
package race

import (
	"encoding/json"
	"time"
)

// EventType identifies a real-time event.
type EventType string

// Client-to-server events.
const (
	// EventJoinRoom adds the sender to the room named in the payload.
	EventJoinRoom EventType = "joinRoom"

	// EventTypingProgress reports the sender's live race metrics.
	EventTypingProgress EventType = "typingProgress"

	// EventStartGame requests the countdown; only the room creator may send it.
	EventStartGame EventType = "startGame"
)

// Server-to-client events.
const (
	// EventUserJoined announces a new participant to the room.
	EventUserJoined EventType = "userJoined"

	// EventCountdown carries one integer countdown tick.
	EventCountdown EventType = "countdown"

	// EventGameStart announces the transition to active with the race text.
	EventGameStart EventType = "gameStart"

	// EventUserProgress carries the ranked participant list after an update.
	EventUserProgress EventType = "userProgress"

	// EventGameEnd announces the completed race with a winner or a reason.
	EventGameEnd EventType = "gameEnd"

	// EventUserLeft announces a departed participant.
	EventUserLeft EventType = "userLeft"

	// EventRoomError carries a structured error back to a single client.
	EventRoomError EventType = "roomError"

	// EventConnectionReplaced notifies a connection that it is being closed
	// because the same identity connected again elsewhere.
	EventConnectionReplaced EventType = "connectionReplaced"
)

// ReasonPlayerDisconnected is the gameEnd reason used when a race ends because
// a disconnect left fewer than two racers. It is an outcome, not a failure.
const ReasonPlayerDisconnected = "PLAYER_DISCONNECTED"

// Event is the wire envelope for every real-time message.
type Event struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEvent marshals the payload into a ready-to-send envelope.
func NewEvent(eventType EventType, payload any) ([]byte, error) {
	var raw json.RawMessage
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		raw = encoded
	}

	return json.Marshal(Event{Type: eventType, Payload: raw})
}

// JoinRoomPayload is the client payload for EventJoinRoom.
type JoinRoomPayload struct {
	RoomID string `json:"roomId"`
}

// TypingProgressPayload is the client payload for EventTypingProgress.
type TypingProgressPayload struct {
	RoomID   string `json:"roomId"`
	Progress int    `json:"progress"`
	WPM      int    `json:"wpm"`
	Accuracy int    `json:"accuracy"`
}

// StartGamePayload is the client payload for EventStartGame.
type StartGamePayload struct {
	RoomID string `json:"roomId"`
}

// UserJoinedPayload is broadcast to the room after a successful join.
type UserJoinedPayload struct {
	Participants []Participant `json:"participants"`
	RoomCode     string        `json:"roomCode"`
}

// GameStartPayload is broadcast to the room when the countdown completes.
type GameStartPayload struct {
	Text      string    `json:"text"`
	StartTime time.Time `json:"startTime"`
}

// UserProgressPayload is broadcast to the room after every progress update.
// Participants are ordered by rank; the raw metrics identify the update that
// triggered the recomputation.
type UserProgressPayload struct {
	Participants []Participant `json:"participants"`
	UserID       string        `json:"userId"`
	Progress     int           `json:"progress"`
	WPM          int           `json:"wpm"`
	Accuracy     int           `json:"accuracy"`
}

// GameEndPayload is broadcast to the room exactly once when the race completes.
// Winner carries the winning connection id on the win path; Reason is set
// instead when the race ended without a winner.
type GameEndPayload struct {
	Winner      string        `json:"winner,omitempty"`
	Reason      string        `json:"reason,omitempty"`
	FinalScores []Participant `json:"finalScores"`
}

// UserLeftPayload is broadcast to the room after a participant leaves.
type UserLeftPayload struct {
	Participants []Participant `json:"participants"`
	ConnectionID string        `json:"connectionId"`
}

// RoomErrorPayload carries a structured {message, code} pair to a single client.
type RoomErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}
