/*
Package race contains the core logic for coordinating real-time multiplayer typing races.

This file defines the Store, the exclusive owner of all Room and Participant records.
Every mutating operation is a single critical section per room, so concurrent joins,
leaves, and progress updates cannot corrupt the participant list or double-count
capacity. Readers receive deep-copied snapshots and never observe partial updates.
*/
package race

import (
	"sync"
	"time"

	"typerace/internal/pkg/errs"
	"typerace/internal/pkg/logx"
	"typerace/internal/pkg/randx"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// roomCodeAttempts bounds the retries for generating a collision-free room code.
	roomCodeAttempts = 10

	// completedRetention is how long completed rooms are kept before the janitor
	// removes them.
	completedRetention = 10 * time.Minute

	// janitorInterval is the cadence of the completed-room sweep.
	janitorInterval = time.Minute
)

// TextProvider supplies race passages. The Store picks one per room at creation.
type TextProvider interface {
	Random() string
}

// roomState pairs the authoritative room record with its lock. The mutex is the
// per-room serialization point required for all mutations.
type roomState struct {
	mu   sync.Mutex
	room Room
}

// snapshot returns a deep copy of the room. Callers must hold s.mu.
func (s *roomState) snapshot() Room {
	copied := s.room
	copied.Participants = make([]Participant, len(s.room.Participants))
	copy(copied.Participants, s.room.Participants)
	return copied
}

// Store is the durable-ish record of rooms for the lifetime of the process.
type Store struct {
	// mu protects the rooms and byCode maps, not the room contents.
	mu sync.RWMutex

	// rooms maps room id to its state.
	rooms map[string]*roomState

	// byCode maps the human-shareable code to the room id for every
	// non-completed room, enforcing code uniqueness at creation time.
	byCode map[string]string

	texts TextProvider

	stopJanitor chan struct{}
	janitorDone chan struct{}

	logger zerolog.Logger
}

// NewStore constructs a Store and starts its background janitor, which removes
// completed rooms after a retention period.
func NewStore(texts TextProvider) *Store {
	s := &Store{
		rooms:       make(map[string]*roomState),
		byCode:      make(map[string]string),
		texts:       texts,
		stopJanitor: make(chan struct{}),
		janitorDone: make(chan struct{}),
		logger:      logx.Logger().With().Str("component", "RoomStore").Logger(),
	}

	go s.runJanitor()

	return s
}

// Shutdown stops the janitor goroutine.
func (s *Store) Shutdown() {
	close(s.stopJanitor)
	<-s.janitorDone
}

// runJanitor periodically sweeps completed rooms older than the retention window.
func (s *Store) runJanitor() {
	defer close(s.janitorDone)

	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			removed := s.purgeCompleted(completedRetention)
			if removed > 0 {
				s.logger.Info().Int("removed", removed).Msg("Purged completed rooms.")
			}
		case <-s.stopJanitor:
			return
		}
	}
}

// purgeCompleted removes completed rooms whose end time is older than the
// retention window and returns how many were removed.
func (s *Store) purgeCompleted(retention time.Duration) int {
	cutoff := time.Now().Add(-retention)

	// Room locks are never taken while holding the map lock: status changes
	// acquire them in the opposite order when releasing a room code.
	s.mu.RLock()
	candidates := make(map[string]*roomState, len(s.rooms))
	for id, state := range s.rooms {
		candidates[id] = state
	}
	s.mu.RUnlock()

	expired := make([]string, 0)
	for id, state := range candidates {
		state.mu.Lock()
		if state.room.Status == StatusCompleted &&
			state.room.EndTime != nil && state.room.EndTime.Before(cutoff) {
			expired = append(expired, id)
		}
		state.mu.Unlock()
	}

	s.mu.Lock()
	removed := 0
	for _, id := range expired {
		if _, ok := s.rooms[id]; ok {
			delete(s.rooms, id)
			removed++
		}
	}
	s.mu.Unlock()

	return removed
}

// CreateRoom generates a collision-checked id and code, selects a race passage,
// and registers a new room in the waiting state. A non-positive maxParticipants
// falls back to the default capacity.
func (s *Store) CreateRoom(maxParticipants int) (Room, *errs.CustomError) {
	if maxParticipants <= 0 {
		maxParticipants = DefaultMaxParticipants
	}

	room := Room{
		ID:              uuid.New().String(),
		Participants:    []Participant{},
		Status:          StatusWaiting,
		Text:            s.texts.Random(),
		MaxParticipants: maxParticipants,
		CreatedAt:       time.Now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Codes of completed rooms are released, so collisions are only checked
	// against rooms that are still live.
	for attempt := 0; ; attempt++ {
		if attempt >= roomCodeAttempts {
			s.logger.Error().Msg("Exhausted room code generation attempts.")
			return Room{}, errs.NewError(errs.ErrUnknown)
		}

		code, err := randx.RoomCode()
		if err != nil {
			logx.Error(err, "Failed to generate room code")
			return Room{}, errs.NewError(errs.ErrUnknown)
		}

		if _, taken := s.byCode[code]; !taken {
			room.Code = code
			break
		}
	}

	s.rooms[room.ID] = &roomState{room: room}
	s.byCode[room.Code] = room.ID

	s.logger.Info().
		Str("room_id", room.ID).
		Str("room_code", room.Code).
		Int("max_participants", maxParticipants).
		Msg("Room created.")

	return s.rooms[room.ID].snapshot(), nil
}

// lookup returns the roomState for the given id, or nil.
func (s *Store) lookup(roomID string) *roomState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rooms[roomID]
}

// FindByID returns a snapshot of the room with the given id.
func (s *Store) FindByID(roomID string) (Room, *errs.CustomError) {
	state := s.lookup(roomID)
	if state == nil {
		return Room{}, errs.NewError(errs.ErrRoomNotFound)
	}

	state.mu.Lock()
	defer state.mu.Unlock()
	return state.snapshot(), nil
}

// FindByCode returns a snapshot of the non-completed room holding the given code.
func (s *Store) FindByCode(code string) (Room, *errs.CustomError) {
	s.mu.RLock()
	roomID, ok := s.byCode[code]
	var state *roomState
	if ok {
		state = s.rooms[roomID]
	}
	s.mu.RUnlock()

	if state == nil {
		return Room{}, errs.NewError(errs.ErrRoomNotFound)
	}

	state.mu.Lock()
	defer state.mu.Unlock()
	return state.snapshot(), nil
}

// ListActive returns summaries of every room whose status is not completed,
// in no particular order.
func (s *Store) ListActive() []Summary {
	s.mu.RLock()
	states := make([]*roomState, 0, len(s.rooms))
	for _, state := range s.rooms {
		states = append(states, state)
	}
	s.mu.RUnlock()

	summaries := make([]Summary, 0, len(states))
	for _, state := range states {
		state.mu.Lock()
		if state.room.Status != StatusCompleted {
			summaries = append(summaries, state.snapshot().Summary())
		}
		state.mu.Unlock()
	}

	return summaries
}

// AddParticipant atomically checks capacity, membership, and status, then appends
// a new participant. The capacity invariant len(participants) <= maxParticipants
// is enforced here, at the single insertion point.
func (s *Store) AddParticipant(roomID, userID, connectionID, username string) (Room, *errs.CustomError) {
	state := s.lookup(roomID)
	if state == nil {
		return Room{}, errs.NewError(errs.ErrRoomNotFound)
	}

	state.mu.Lock()
	defer state.mu.Unlock()

	if state.room.Status != StatusWaiting {
		return Room{}, errs.NewError(errs.ErrRoomNotAccepting)
	}

	if state.room.HasUser(userID) {
		return Room{}, errs.NewError(errs.ErrAlreadyMember)
	}

	if state.room.IsFull() {
		return Room{}, errs.NewError(errs.ErrRoomFull)
	}

	state.room.Participants = append(state.room.Participants, Participant{
		UserID:       userID,
		ConnectionID: connectionID,
		Username:     username,
	})

	return state.snapshot(), nil
}

// RemoveParticipant removes the participant with the given connection id.
// It is idempotent: removing an absent participant (or from an absent room)
// reports removed=false without error.
func (s *Store) RemoveParticipant(roomID, connectionID string) (Room, bool) {
	state := s.lookup(roomID)
	if state == nil {
		return Room{}, false
	}

	state.mu.Lock()
	defer state.mu.Unlock()

	kept := state.room.Participants[:0]
	removed := false
	for _, p := range state.room.Participants {
		if p.ConnectionID == connectionID {
			removed = true
			continue
		}
		kept = append(kept, p)
	}
	state.room.Participants = kept

	return state.snapshot(), removed
}

// UpdateParticipantStats atomically updates the race metrics of the matching
// participant. A missing room or participant reports ok=false; concurrent
// leave/disconnect makes that a benign race, not an error.
func (s *Store) UpdateParticipantStats(roomID, connectionID string, progress, wpm, accuracy int) (Room, bool) {
	state := s.lookup(roomID)
	if state == nil {
		return Room{}, false
	}

	state.mu.Lock()
	defer state.mu.Unlock()

	for i := range state.room.Participants {
		if state.room.Participants[i].ConnectionID == connectionID {
			state.room.Participants[i].Progress = clamp(progress, 0, 100)
			state.room.Participants[i].WPM = max(wpm, 0)
			state.room.Participants[i].Accuracy = clamp(accuracy, 0, 100)
			return state.snapshot(), true
		}
	}

	return Room{}, false
}

// SetStatus unconditionally transitions the room status and stamps the
// start/end time accordingly.
func (s *Store) SetStatus(roomID string, status Status, at time.Time) (Room, *errs.CustomError) {
	state := s.lookup(roomID)
	if state == nil {
		return Room{}, errs.NewError(errs.ErrRoomNotFound)
	}

	state.mu.Lock()
	snapshot := s.applyStatusLocked(state, status, at)
	state.mu.Unlock()

	return snapshot, nil
}

// Transition performs a guarded status change: the room moves to the target
// status only if its current status still matches from. It reports whether the
// transition was applied, which callers use to guarantee exactly-once side
// effects under concurrent completion paths.
func (s *Store) Transition(roomID string, from, to Status, at time.Time) (Room, bool) {
	state := s.lookup(roomID)
	if state == nil {
		return Room{}, false
	}

	state.mu.Lock()
	if state.room.Status != from {
		snapshot := state.snapshot()
		state.mu.Unlock()
		return snapshot, false
	}
	snapshot := s.applyStatusLocked(state, to, at)
	state.mu.Unlock()

	return snapshot, true
}

// applyStatusLocked updates the status and timestamps, releasing the room code
// when the room completes. Callers must hold state.mu.
func (s *Store) applyStatusLocked(state *roomState, status Status, at time.Time) Room {
	state.room.Status = status

	switch status {
	case StatusActive:
		t := at
		state.room.StartTime = &t
	case StatusCompleted:
		t := at
		state.room.EndTime = &t

		// Completed rooms release their code for reuse.
		s.mu.Lock()
		if current, ok := s.byCode[state.room.Code]; ok && current == state.room.ID {
			delete(s.byCode, state.room.Code)
		}
		s.mu.Unlock()
	}

	return state.snapshot()
}

// clamp bounds v to the inclusive range [lo, hi].
func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
