/*
Package race contains the core logic for coordinating real-time multiplayer typing races.

This file defines the Client struct, representing one live WebSocket connection.
It manages the connection's communication loops (ReadPump and WritePump), decodes
the closed set of inbound events, and routes them to the Hub.
*/
package race

import (
	"encoding/json"
	"sync"
	"time"

	"typerace/internal/pkg/errs"
	"typerace/internal/pkg/logx"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	// writeWait is the timeout for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// pongWait is the maximum time the server waits for a Pong from the client.
	pongWait = 60 * time.Second

	// pingPeriod is the frequency at which the server sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize is the maximum allowed size (in bytes) of an inbound message.
	maxMessageSize = 4096

	// sendQueueSize is the capacity of the per-client outbound queue.
	sendQueueSize = 256

	// WsCloseCodeSessionReplaced is a custom WebSocket Close Code (4000-4999
	// range) signaling that the session was replaced by a newer connection.
	WsCloseCodeSessionReplaced = 4001
)

// Client represents one live WebSocket connection bound to an authenticated identity.
type Client struct {
	// hub routes this client's events to rooms and broadcast groups.
	hub *Hub

	// conn is the underlying WebSocket connection.
	conn *websocket.Conn

	// userID is the authenticated identity this connection belongs to.
	userID string

	// username is the cached display name.
	username string

	// instanceID is the per-connect-attempt token supplied by the client,
	// distinguishing genuine reconnects from replays.
	instanceID string

	// connID is the server-generated delivery key for this connection. A
	// reconnect produces a new connID.
	connID string

	// send queues outbound frames for the WritePump.
	send chan []byte

	// mu guards roomID.
	mu sync.Mutex

	// roomID is the room this connection is currently subscribed to, or empty.
	// A connection is subscribed to at most one room at a time.
	roomID string

	logger zerolog.Logger
}

// NewClient constructs a Client for an upgraded WebSocket connection.
func NewClient(hub *Hub, conn *websocket.Conn, userID, username, instanceID string) *Client {
	connID := uuid.New().String()

	clientLogger := logx.Logger().With().
		Str("user_id", userID).
		Str("connection_id", connID).
		Logger()

	return &Client{
		hub:        hub,
		conn:       conn,
		userID:     userID,
		username:   username,
		instanceID: instanceID,
		connID:     connID,
		send:       make(chan []byte, sendQueueSize),
		logger:     clientLogger,
	}
}

// ConnectionID returns the server-generated delivery key for this connection.
func (c *Client) ConnectionID() string {
	return c.connID
}

// room returns the room id this connection is currently subscribed to.
func (c *Client) room() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomID
}

// setRoom records the room this connection is subscribed to.
func (c *Client) setRoom(roomID string) {
	c.mu.Lock()
	c.roomID = roomID
	c.mu.Unlock()
}

// ReadPump reads events from the WebSocket connection until it closes.
// It handles heartbeats (Pong) and performs full disconnect cleanup on exit,
// whether or not the transport closed cleanly.
func (c *Client) ReadPump() {
	defer c.cleanupOnDisconnect()

	c.conn.SetReadLimit(maxMessageSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, messageBytes, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Error reading message (client close/going away)")
			}
			break
		}

		c.processInboundEvent(messageBytes)
	}
}

// cleanupOnDisconnect runs the mandatory disconnect sequence when the ReadPump
// terminates: leave the current room, evaluate the disconnect-completion rule,
// and release the registry slot. The Hub owns the sequence so it also runs for
// abnormal transport closures.
func (c *Client) cleanupOnDisconnect() {
	c.logger.Info().Msg("Client connection cleanup starting.")

	c.hub.HandleDisconnect(c)

	if err := c.conn.Close(); err != nil {
		c.logger.Debug().Err(err).Msg("Client connection close error")
	}
}

// processInboundEvent decodes one inbound frame and dispatches it to the Hub.
// Unknown event types and malformed payloads are logged and ignored; they never
// terminate the connection.
func (c *Client) processInboundEvent(messageBytes []byte) {
	var event Event
	if err := json.Unmarshal(messageBytes, &event); err != nil {
		c.logger.Warn().Err(err).
			Bytes("message_bytes", messageBytes).
			Msg("Client sent invalid JSON")
		return
	}

	switch event.Type {
	case EventJoinRoom:
		var payload JoinRoomPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			c.logger.Warn().Err(err).Msg("Client sent invalid joinRoom payload")
			return
		}
		c.hub.JoinRoom(c, payload.RoomID)

	case EventTypingProgress:
		var payload TypingProgressPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			c.logger.Warn().Err(err).Msg("Client sent invalid typingProgress payload")
			return
		}
		c.hub.ReportProgress(c, payload)

	case EventStartGame:
		var payload StartGamePayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			c.logger.Warn().Err(err).Msg("Client sent invalid startGame payload")
			return
		}
		c.hub.StartGame(c, payload.RoomID)

	default:
		c.logger.Warn().Str("event_type", string(event.Type)).Msg("Client sent unsupported event type")
	}
}

// WritePump writes queued frames to the WebSocket connection and maintains the
// ping heartbeat. It exits when the connection errors or closes.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()

		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Client connection close error in WritePump")
		}
	}()

	for {
		select {
		case message := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Error().Err(err).Msg("Failed to set write deadline")
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Error().Err(err).Msg("Error writing message")
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Error().Err(err).Msg("Failed to set write deadline on ping")
				return
			}

			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Error().Err(err).Msg("Error writing ping")
				return
			}
		}
	}
}

// sendRaw queues a pre-marshaled frame for delivery. A full queue drops the
// frame rather than blocking the sender.
func (c *Client) sendRaw(message []byte) {
	select {
	case c.send <- message:
	default:
		c.logger.Warn().Int("queue_len", len(c.send)).Msg("Client send channel full, dropping message")
	}
}

// SendEvent marshals and queues one event for this client.
func (c *Client) SendEvent(eventType EventType, payload any) {
	message, err := NewEvent(eventType, payload)
	if err != nil {
		c.logger.Error().Err(err).Str("event_type", string(eventType)).Msg("Failed to marshal event")
		return
	}

	c.sendRaw(message)
}

// SendError queues a roomError event carrying the structured {message, code} pair.
func (c *Client) SendError(customErr *errs.CustomError) {
	if customErr == nil {
		customErr = errs.NewError(errs.ErrUnknown)
	}

	c.SendEvent(EventRoomError, RoomErrorPayload{
		Message: customErr.Message,
		Code:    customErr.EventCode(),
	})
}

// Kick closes the connection with the session-replaced close code after the
// given reason. Used when a newer connection for the same identity wins.
func (c *Client) Kick(reason string) {
	c.logger.Warn().
		Int("close_code", WsCloseCodeSessionReplaced).
		Str("reason", reason).
		Msg("Closing connection: session replaced.")

	if c.conn == nil {
		return
	}

	closeMessage := websocket.FormatCloseMessage(WsCloseCodeSessionReplaced, reason)

	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(websocket.CloseMessage, closeMessage); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to send close message.")
	}

	c.conn.Close()
}
