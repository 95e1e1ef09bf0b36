/*
Package race contains the core logic for coordinating real-time multiplayer typing races.

This file defines the Machine, which governs per-room transitions
waiting -> countdown -> active -> completed. It owns the countdown timers (one
cancellable task per room, driven by an injectable clock) and the win-condition
and disconnect-completion paths. All status changes go through the Store's
guarded Transition so each completion happens exactly once.
*/
package race

import (
	"context"
	"sync"
	"time"

	"typerace/internal/pkg/errs"
	"typerace/internal/pkg/logx"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

const (
	// CountdownStart is the first countdown tick value. Ticks run from this
	// value down to zero, the "go" moment.
	CountdownStart = 3

	// countdownTickInterval is the spacing between countdown ticks.
	countdownTickInterval = time.Second

	// recorderTimeout bounds the best-effort identity updates on the win path.
	recorderTimeout = 5 * time.Second
)

// StatsRecorder is the slice of the external identity collaborator the race
// engine needs: per-race history appends and max-merge high-score updates.
// Both are best-effort; the race result is the primary contract.
type StatsRecorder interface {
	AppendHistory(ctx context.Context, userID string, wpm, accuracy int) error
	MergeHighScore(ctx context.Context, userID string, wpm, accuracy int) error
}

// broadcaster fans an event out to every connection subscribed to a room.
type broadcaster interface {
	Broadcast(roomID string, eventType EventType, payload any)
}

// countdown is one pending countdown task. Cancellation closes the channel
// exactly once; the timer goroutine observes it between ticks and before the
// final transition.
type countdown struct {
	cancel chan struct{}
	once   sync.Once
}

func (cd *countdown) abort() {
	cd.once.Do(func() { close(cd.cancel) })
}

// Machine owns per-room lifecycle transitions and countdown timing.
type Machine struct {
	store    *Store
	events   broadcaster
	recorder StatsRecorder
	clock    clockwork.Clock

	// mu guards countdowns.
	mu         sync.Mutex
	countdowns map[string]*countdown

	logger zerolog.Logger
}

// NewMachine constructs a Machine. The clock is injectable so countdown timing
// is testable; production callers pass clockwork.NewRealClock().
func NewMachine(store *Store, events broadcaster, recorder StatsRecorder, clock clockwork.Clock) *Machine {
	return &Machine{
		store:      store,
		events:     events,
		recorder:   recorder,
		clock:      clock,
		countdowns: make(map[string]*countdown),
		logger:     logx.Logger().With().Str("component", "Machine").Logger(),
	}
}

// StartGame validates the start preconditions and launches the countdown.
// Only the creator (participant index 0) may start; at least two participants
// must be present; the room must still be waiting with no countdown pending.
func (m *Machine) StartGame(roomID, connectionID string) *errs.CustomError {
	room, cerr := m.store.FindByID(roomID)
	if cerr != nil {
		return cerr
	}

	creator, ok := room.Creator()
	if !ok || creator.ConnectionID != connectionID {
		return errs.NewError(errs.ErrNotCreator)
	}

	if len(room.Participants) < 2 {
		return errs.NewError(errs.ErrNotEnoughPlayers)
	}

	if room.Status != StatusWaiting {
		return errs.NewError(errs.ErrGameInProgress)
	}

	m.mu.Lock()
	if _, pending := m.countdowns[roomID]; pending {
		m.mu.Unlock()
		return errs.NewError(errs.ErrGameInProgress)
	}

	cd := &countdown{cancel: make(chan struct{})}
	m.countdowns[roomID] = cd
	m.mu.Unlock()

	m.logger.Info().
		Str("room_id", roomID).
		Int("participants", len(room.Participants)).
		Msg("Countdown starting.")

	go m.runCountdown(roomID, cd)

	return nil
}

// AbortCountdown cancels any pending countdown for the room. Safe to call when
// none is pending. Used when membership drops below two participants before
// activation, and when the room completes through another path.
func (m *Machine) AbortCountdown(roomID string) {
	m.mu.Lock()
	cd, ok := m.countdowns[roomID]
	m.mu.Unlock()

	if ok {
		m.logger.Info().Str("room_id", roomID).Msg("Countdown aborted.")
		cd.abort()
	}
}

// clearCountdown removes the room's countdown entry once its task has finished.
func (m *Machine) clearCountdown(roomID string, cd *countdown) {
	m.mu.Lock()
	if current, ok := m.countdowns[roomID]; ok && current == cd {
		delete(m.countdowns, roomID)
	}
	m.mu.Unlock()
}

// runCountdown emits ticks CountdownStart..0 at one-second spacing, then
// performs the guarded waiting -> active transition. The zero tick is the "go"
// moment; the transition happens-after the last tick. A cancelled countdown
// emits nothing further and never activates the room.
func (m *Machine) runCountdown(roomID string, cd *countdown) {
	defer m.clearCountdown(roomID, cd)

	for tick := CountdownStart; tick >= 0; tick-- {
		select {
		case <-cd.cancel:
			return
		default:
		}

		m.events.Broadcast(roomID, EventCountdown, tick)

		if tick == 0 {
			break
		}

		select {
		case <-cd.cancel:
			return
		case <-m.clock.After(countdownTickInterval):
		}
	}

	m.activate(roomID)
}

// activate performs the guarded transition into active. The guard protects
// against a room that was concurrently completed (e.g. mass disconnect) while
// the countdown ran; on guard failure the room is told explicitly rather than
// left waiting forever.
func (m *Machine) activate(roomID string) {
	startTime := m.clock.Now()

	room, ok := m.store.Transition(roomID, StatusWaiting, StatusActive, startTime)
	if !ok {
		m.logger.Warn().
			Str("room_id", roomID).
			Str("status", string(room.Status)).
			Msg("Activation guard failed: room no longer waiting.")

		startErr := errs.NewError(errs.ErrStartGameError)
		m.events.Broadcast(roomID, EventRoomError, RoomErrorPayload{
			Message: startErr.Message,
			Code:    startErr.EventCode(),
		})
		return
	}

	m.logger.Info().Str("room_id", roomID).Msg("Race started.")

	m.events.Broadcast(roomID, EventGameStart, GameStartPayload{
		Text:      room.Text,
		StartTime: startTime,
	})
}

// CompleteWin performs the win-path completion for the participant who reached
// 100% progress. The guarded transition ensures a single completion even when
// several participants report 100 concurrently; only the transition winner
// records history, merges the high score, and reports ended=true. Identity
// updates are best-effort: failures are logged and never block the completion.
func (m *Machine) CompleteWin(roomID string, winner Participant) (Room, bool) {
	room, ok := m.store.Transition(roomID, StatusActive, StatusCompleted, m.clock.Now())
	if !ok {
		return room, false
	}

	m.AbortCountdown(roomID)

	m.logger.Info().
		Str("room_id", roomID).
		Str("winner_user_id", winner.UserID).
		Int("wpm", winner.WPM).
		Msg("Race completed: winner declared.")

	ctx, cancel := context.WithTimeout(context.Background(), recorderTimeout)
	defer cancel()

	if err := m.recorder.AppendHistory(ctx, winner.UserID, winner.WPM, winner.Accuracy); err != nil {
		m.logger.Error().Err(err).
			Str("user_id", winner.UserID).
			Msg("Failed to append typing history; race result stands.")
	}

	if err := m.recorder.MergeHighScore(ctx, winner.UserID, winner.WPM, winner.Accuracy); err != nil {
		m.logger.Error().Err(err).
			Str("user_id", winner.UserID).
			Msg("Failed to merge high score; race result stands.")
	}

	return room, true
}

// CompleteDisconnect performs the disconnect-path completion after a removal
// left the active room with at most one racer. The guard ensures the room
// completes once even when the last racers disconnect concurrently.
func (m *Machine) CompleteDisconnect(roomID string) (Room, bool) {
	room, ok := m.store.Transition(roomID, StatusActive, StatusCompleted, m.clock.Now())
	if !ok {
		return room, false
	}

	m.AbortCountdown(roomID)

	m.logger.Info().Str("room_id", roomID).Msg("Race completed: player disconnected.")

	return room, true
}
