/*
Package race contains the core logic for coordinating real-time multiplayer typing races.

This file defines the Registry, which tracks at most one live connection per
authenticated identity, rejects replayed connection instance ids, and enforces
the global concurrent-connection ceiling. The Registry owns the identity map
exclusively; eviction of a superseded connection is carried out by the caller
using the handle the Registry returns.
*/
package race

import (
	"sync"

	"typerace/internal/pkg/errs"
	"typerace/internal/pkg/logx"

	"github.com/rs/zerolog"
)

// DefaultMaxConnections is the global concurrent connection ceiling used when
// no configuration is supplied.
const DefaultMaxConnections = 100

// Registry maps identities to their single live connection.
type Registry struct {
	// mu is the single critical section for all registry mutations. At the
	// expected scale (<100 connections) one lock is sufficient.
	mu sync.Mutex

	// capacity is the global ceiling on concurrent connections.
	capacity int

	// clients maps user id to the live connection handle.
	clients map[string]*Client

	// instances is the set of currently-accepted connection instance ids,
	// used to reject replays of the same handshake.
	instances map[string]struct{}

	logger zerolog.Logger
}

// NewRegistry constructs a Registry with the given connection ceiling.
// A non-positive capacity falls back to the default.
func NewRegistry(capacity int) *Registry {
	if capacity <= 0 {
		capacity = DefaultMaxConnections
	}

	return &Registry{
		capacity:  capacity,
		clients:   make(map[string]*Client),
		instances: make(map[string]struct{}),
		logger:    logx.Logger().With().Str("component", "Registry").Logger(),
	}
}

// Register installs the client as the live connection for its identity.
// It fails with DuplicateConnection if the connection instance id was already
// accepted, and with CapacityExceeded at the global ceiling. If the identity
// already has a live connection, that prior handle is returned and the caller
// must notify and terminate it: newest connection wins.
func (r *Registry) Register(c *Client) (*Client, *errs.CustomError) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, replay := r.instances[c.instanceID]; replay {
		r.logger.Warn().
			Str("user_id", c.userID).
			Str("instance_id", c.instanceID).
			Msg("Rejected replayed connection instance id.")
		return nil, errs.NewError(errs.ErrDuplicateConnection)
	}

	evicted := r.clients[c.userID]

	// A superseded connection frees its slot, so replacement never counts
	// against the ceiling.
	if evicted == nil && len(r.clients) >= r.capacity {
		r.logger.Warn().
			Int("capacity", r.capacity).
			Str("user_id", c.userID).
			Msg("Rejected connection: server at capacity.")
		return nil, errs.NewError(errs.ErrCapacityExceeded)
	}

	if evicted != nil {
		delete(r.instances, evicted.instanceID)
		r.logger.Info().
			Str("user_id", c.userID).
			Str("old_connection_id", evicted.connID).
			Str("new_connection_id", c.connID).
			Msg("Existing connection superseded by new connection.")
	}

	r.clients[c.userID] = c
	r.instances[c.instanceID] = struct{}{}

	return evicted, nil
}

// Unregister removes the registry entry for the identity, but only if the
// stored connection still carries the given instance id. Disconnects of
// already-superseded connections are stale and ignored.
func (r *Registry) Unregister(userID, instanceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.clients[userID]
	if !ok || current.instanceID != instanceID {
		return
	}

	delete(r.clients, userID)
	delete(r.instances, instanceID)
}

// Count returns the number of live connections.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}
