/*
Package race contains the core logic for coordinating real-time multiplayer typing races.

This file defines the Hub, the session gateway between live connections and the
race engine. It owns one broadcast group per room and serializes all mutating
operations for a room behind that group's lock, so concurrent events from
different connections in the same room commit and broadcast in one linear order.
*/
package race

import (
	"sync"

	"typerace/internal/pkg/errs"
	"typerace/internal/pkg/logx"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// group is the broadcast group for one room: the set of subscribed connections
// plus the per-room serialization lock.
type group struct {
	// mu serializes every mutating operation for the room (join, leave,
	// progress update) together with its broadcast. Unrelated rooms never
	// contend on it.
	mu sync.Mutex

	// clients maps connection id to the subscribed connection.
	clients map[string]*Client
}

// Hub routes events between connections, the Store, and the state machine.
type Hub struct {
	store    *Store
	registry *Registry
	machine  *Machine

	// mu protects the groups map, not group contents.
	mu     sync.RWMutex
	groups map[string]*group

	logger zerolog.Logger
}

// NewHub constructs the Hub and its state machine. The clock drives countdown
// timing; production callers pass clockwork.NewRealClock().
func NewHub(store *Store, registry *Registry, recorder StatsRecorder, clock clockwork.Clock) *Hub {
	h := &Hub{
		store:    store,
		registry: registry,
		groups:   make(map[string]*group),
		logger:   logx.Logger().With().Str("component", "Hub").Logger(),
	}

	h.machine = NewMachine(store, h, recorder, clock)

	return h
}

// Registry returns the connection registry the hub routes through.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// lookupGroup returns the broadcast group for the room, or nil.
func (h *Hub) lookupGroup(roomID string) *group {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.groups[roomID]
}

// ensureGroup returns the broadcast group for the room, creating it on first use.
func (h *Hub) ensureGroup(roomID string) *group {
	h.mu.Lock()
	defer h.mu.Unlock()

	g, ok := h.groups[roomID]
	if !ok {
		g = &group{clients: make(map[string]*Client)}
		h.groups[roomID] = g
	}
	return g
}

// dropGroupIfEmpty removes the room's broadcast group once no connection is
// subscribed to it.
func (h *Hub) dropGroupIfEmpty(roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	g, ok := h.groups[roomID]
	if !ok {
		return
	}

	g.mu.Lock()
	empty := len(g.clients) == 0
	g.mu.Unlock()

	if empty {
		delete(h.groups, roomID)
	}
}

// Broadcast fans one event out to every connection subscribed to the room.
func (h *Hub) Broadcast(roomID string, eventType EventType, payload any) {
	g := h.lookupGroup(roomID)
	if g == nil {
		return
	}

	g.mu.Lock()
	h.broadcastLocked(g, eventType, payload)
	g.mu.Unlock()
}

// broadcastLocked marshals the event once and queues it to every subscribed
// connection. Callers must hold g.mu.
func (h *Hub) broadcastLocked(g *group, eventType EventType, payload any) {
	message, err := NewEvent(eventType, payload)
	if err != nil {
		h.logger.Error().Err(err).Str("event_type", string(eventType)).Msg("Failed to marshal broadcast event.")
		return
	}

	for _, client := range g.clients {
		client.sendRaw(message)
	}
}

// JoinRoom subscribes the connection to the room named in the event payload and
// adds it as a participant. A connection is subscribed to at most one room, so
// joining a second room implicitly leaves the first. Validation failures are
// returned to the initiating connection as roomError events.
func (h *Hub) JoinRoom(c *Client, roomID string) {
	if roomID == "" {
		c.SendError(errs.NewError(errs.ErrRoomNotFound))
		return
	}

	if current := c.room(); current != "" && current != roomID {
		h.leave(c, current)
	}

	g := h.ensureGroup(roomID)

	g.mu.Lock()
	room, cerr := h.store.AddParticipant(roomID, c.userID, c.connID, c.username)
	if cerr != nil {
		g.mu.Unlock()
		h.dropGroupIfEmpty(roomID)
		c.SendError(cerr)
		return
	}

	g.clients[c.connID] = c
	c.setRoom(roomID)

	h.logger.Info().
		Str("room_id", roomID).
		Str("user_id", c.userID).
		Msg("Participant joined room.")

	h.broadcastLocked(g, EventUserJoined, UserJoinedPayload{
		Participants: room.Participants,
		RoomCode:     room.Code,
	})
	g.mu.Unlock()
}

// StartGame forwards a start request to the state machine; failures go back to
// the initiating connection as a roomError event.
func (h *Hub) StartGame(c *Client, roomID string) {
	if cerr := h.machine.StartGame(roomID, c.connID); cerr != nil {
		c.SendError(cerr)
	}
}

// ReportProgress applies one typing-progress update: atomic stats commit,
// ranked broadcast to the room, then the win check. A missing room or
// participant is a benign race with a concurrent leave and is silently ignored.
func (h *Hub) ReportProgress(c *Client, p TypingProgressPayload) {
	g := h.lookupGroup(p.RoomID)
	if g == nil {
		return
	}

	g.mu.Lock()
	room, ok := h.store.UpdateParticipantStats(p.RoomID, c.connID, p.Progress, p.WPM, p.Accuracy)
	if !ok {
		g.mu.Unlock()
		return
	}

	// Committed values, post-clamping.
	var reporter Participant
	for _, participant := range room.Participants {
		if participant.ConnectionID == c.connID {
			reporter = participant
			break
		}
	}

	h.broadcastLocked(g, EventUserProgress, UserProgressPayload{
		Participants: room.Ranked(),
		UserID:       c.connID,
		Progress:     reporter.Progress,
		WPM:          reporter.WPM,
		Accuracy:     reporter.Accuracy,
	})
	g.mu.Unlock()

	if reporter.Progress == 100 && room.Status == StatusActive {
		final, ended := h.machine.CompleteWin(p.RoomID, reporter)
		if ended {
			h.Broadcast(p.RoomID, EventGameEnd, GameEndPayload{
				Winner:      c.connID,
				FinalScores: final.Ranked(),
			})
		}
	}
}

// leave removes the connection from the room, notifies remaining members, and
// evaluates the disconnect-completion rule: removing a racer from an active
// room that leaves at most one behind completes the race.
func (h *Hub) leave(c *Client, roomID string) {
	g := h.lookupGroup(roomID)
	if g == nil {
		// No broadcast group survives, but the membership record may: keep
		// removal idempotent.
		h.store.RemoveParticipant(roomID, c.connID)
		c.setRoom("")
		return
	}

	g.mu.Lock()
	delete(g.clients, c.connID)
	c.setRoom("")

	room, removed := h.store.RemoveParticipant(roomID, c.connID)
	if removed {
		h.broadcastLocked(g, EventUserLeft, UserLeftPayload{
			Participants: room.Participants,
			ConnectionID: c.connID,
		})

		switch {
		case room.Status == StatusActive && len(room.Participants) <= 1:
			if final, ended := h.machine.CompleteDisconnect(roomID); ended {
				h.broadcastLocked(g, EventGameEnd, GameEndPayload{
					Reason:      ReasonPlayerDisconnected,
					FinalScores: final.Ranked(),
				})
			}

		case room.Status == StatusWaiting && len(room.Participants) < 2:
			// A countdown must not activate a room that emptied under it.
			h.machine.AbortCountdown(roomID)
		}
	}

	empty := len(g.clients) == 0
	g.mu.Unlock()

	if empty {
		h.dropGroupIfEmpty(roomID)
	}
}

// HandleDisconnect runs the mandatory disconnect sequence for a connection:
// leave the current room, evaluate the disconnect-completion rule, release the
// registry slot. It runs for clean and abnormal transport closures alike and is
// safe to invoke more than once for the same connection.
func (h *Hub) HandleDisconnect(c *Client) {
	if roomID := c.room(); roomID != "" {
		h.leave(c, roomID)
	}

	h.registry.Unregister(c.userID, c.instanceID)
}

// EvictClient notifies a superseded connection and closes it. The notification
// is queued before the close so a well-behaved client learns why it was
// dropped; the newest connection has already taken its registry slot.
func (h *Hub) EvictClient(old *Client) {
	cerr := errs.NewError(errs.ErrSessionReplaced)

	old.SendEvent(EventConnectionReplaced, RoomErrorPayload{
		Message: cerr.Message,
		Code:    cerr.EventCode(),
	})

	if roomID := old.room(); roomID != "" {
		h.leave(old, roomID)
	}

	old.Kick(cerr.Message)
}

// Shutdown aborts all pending countdowns and closes every live connection.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	groups := h.groups
	h.groups = make(map[string]*group)
	h.mu.Unlock()

	for roomID, g := range groups {
		h.machine.AbortCountdown(roomID)

		g.mu.Lock()
		for _, client := range g.clients {
			client.Kick("server shutting down")
		}
		g.mu.Unlock()
	}

	h.logger.Info().Msg("Hub shutdown complete.")
}
