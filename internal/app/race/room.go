/*
Package race contains the core logic for coordinating real-time multiplayer typing races.

This file defines the Room and Participant data model: room status values, the
capacity bound, join-order semantics (the first participant is the room creator),
and the ranking order used for live progress broadcasts and final scores.
*/
package race

import (
	"sort"
	"time"
)

// Status enumerates the lifecycle states of a room.
type Status string

const (
	// StatusWaiting means the room is accepting participants and the race has not started.
	StatusWaiting Status = "waiting"

	// StatusActive means the race is underway.
	StatusActive Status = "active"

	// StatusCompleted is terminal: the race finished or was abandoned.
	StatusCompleted Status = "completed"
)

const (
	// DefaultMaxParticipants is the room capacity used when the creator does not
	// specify one.
	DefaultMaxParticipants = 10
)

// Participant is a room membership record binding an identity, a live-connection
// key, and live race metrics.
type Participant struct {
	// UserID references the external identity. The room holds a lookup key only.
	UserID string `json:"userId"`

	// ConnectionID is the live-connection key used for delivery. It changes
	// across reconnects.
	ConnectionID string `json:"connectionId"`

	// Username is the cached display name.
	Username string `json:"username"`

	// Progress is the percentage of the race text typed, in [0,100].
	Progress int `json:"progress"`

	// WPM is the participant's live typing speed in words per minute.
	WPM int `json:"wpm"`

	// Accuracy is the typing accuracy percentage, in [0,100].
	Accuracy int `json:"accuracy"`
}

// rankedAbove reports whether p outranks other: descending by progress,
// ties broken descending by WPM, remaining ties descending by accuracy.
func (p Participant) rankedAbove(other Participant) bool {
	if p.Progress != other.Progress {
		return p.Progress > other.Progress
	}
	if p.WPM != other.WPM {
		return p.WPM > other.WPM
	}
	return p.Accuracy > other.Accuracy
}

// Room is a snapshot of one race instance grouping participants around a shared
// text and status. Snapshots are plain data: the Store owns the authoritative
// records and hands out copies, so holders can read them without locking.
type Room struct {
	// ID is the opaque unique identifier, generated at creation, immutable.
	ID string `json:"roomId"`

	// Code is the short human-shareable code, unique across non-completed rooms.
	Code string `json:"roomCode"`

	// Participants in join order. Index 0 is the creator.
	Participants []Participant `json:"participants"`

	// Status is the current lifecycle state.
	Status Status `json:"status"`

	// Text is the race passage, fixed at creation.
	Text string `json:"text"`

	// StartTime is stamped on the transition into active.
	StartTime *time.Time `json:"startTime,omitempty"`

	// EndTime is stamped on the transition into completed.
	EndTime *time.Time `json:"endTime,omitempty"`

	// MaxParticipants is the capacity bound.
	MaxParticipants int `json:"maxParticipants"`

	// CreatedAt records when the room was created.
	CreatedAt time.Time `json:"createdAt"`
}

// Summary is the reduced projection of a room used for active-room listings.
type Summary struct {
	ID           string        `json:"roomId"`
	Participants []Participant `json:"participants"`
	Status       Status        `json:"status"`
	StartTime    *time.Time    `json:"startTime,omitempty"`
}

// IsFull reports whether the room has reached its participant capacity.
func (r Room) IsFull() bool {
	return r.MaxParticipants > 0 && len(r.Participants) >= r.MaxParticipants
}

// Creator returns the participant holding index 0 and true, or false for an
// empty room. Join order determines creatorship.
func (r Room) Creator() (Participant, bool) {
	if len(r.Participants) == 0 {
		return Participant{}, false
	}
	return r.Participants[0], true
}

// HasUser reports whether the given identity is already a participant.
func (r Room) HasUser(userID string) bool {
	for _, p := range r.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

// Ranked returns a new slice of the room's participants in ranking order.
// The ranking is a pure function of the (progress, wpm, accuracy) tuples and is
// stable under recomputation; the receiver is not modified.
func (r Room) Ranked() []Participant {
	ranked := make([]Participant, len(r.Participants))
	copy(ranked, r.Participants)

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].rankedAbove(ranked[j])
	})

	return ranked
}

// Summary returns the reduced listing projection of the room.
func (r Room) Summary() Summary {
	return Summary{
		ID:           r.ID,
		Participants: r.Participants,
		Status:       r.Status,
		StartTime:    r.StartTime,
	}
}
