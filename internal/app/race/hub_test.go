package race

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type hubFixture struct {
	store    *Store
	registry *Registry
	hub      *Hub
	recorder *memoryRecorder
	clock    *clockwork.FakeClock
}

func newHubFixture(t *testing.T) *hubFixture {
	t.Helper()

	store := newTestStore(t)
	registry := NewRegistry(100)
	recorder := &memoryRecorder{}
	clock := clockwork.NewFakeClock()

	return &hubFixture{
		store:    store,
		registry: registry,
		hub:      NewHub(store, registry, recorder, clock),
		recorder: recorder,
		clock:    clock,
	}
}

// attach builds a client without a transport; events queue on its send channel.
func (f *hubFixture) attach(t *testing.T, userID, username, instanceID string) *Client {
	t.Helper()

	c := NewClient(f.hub, nil, userID, username, instanceID)
	evicted, cerr := f.registry.Register(c)
	require.Nil(t, cerr)
	require.Nil(t, evicted)
	return c
}

// recv returns the next event queued to the client.
func recv(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case message := <-c.send:
		var event Event
		require.NoError(t, json.Unmarshal(message, &event))
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for client event")
		return Event{}
	}
}

// recvType asserts the next event's type and decodes its payload into dst.
func recvType(t *testing.T, c *Client, want EventType, dst any) {
	t.Helper()
	event := recv(t, c)
	require.Equal(t, want, event.Type)
	if dst != nil {
		require.NoError(t, json.Unmarshal(event.Payload, dst))
	}
}

// expectSilence asserts no event reaches the client in a short window.
func expectSilence(t *testing.T, c *Client) {
	t.Helper()
	select {
	case message := <-c.send:
		t.Fatalf("unexpected event: %s", message)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestJoinRoomBroadcastsMembership(t *testing.T) {
	f := newHubFixture(t)
	room, _ := f.store.CreateRoom(5)

	c1 := f.attach(t, "u1", "alice", "inst-1")
	f.hub.JoinRoom(c1, room.ID)

	var joined UserJoinedPayload
	recvType(t, c1, EventUserJoined, &joined)
	assert.Len(t, joined.Participants, 1)
	assert.Equal(t, room.Code, joined.RoomCode)

	c2 := f.attach(t, "u2", "bob", "inst-2")
	f.hub.JoinRoom(c2, room.ID)

	// Both members see the updated roster.
	recvType(t, c1, EventUserJoined, &joined)
	require.Len(t, joined.Participants, 2)
	assert.Equal(t, "u1", joined.Participants[0].UserID)
	assert.Equal(t, "u2", joined.Participants[1].UserID)

	recvType(t, c2, EventUserJoined, &joined)
	assert.Len(t, joined.Participants, 2)
}

func TestJoinRoomFailuresGoToSenderOnly(t *testing.T) {
	f := newHubFixture(t)

	c1 := f.attach(t, "u1", "alice", "inst-1")

	t.Run("unknown room", func(t *testing.T) {
		f.hub.JoinRoom(c1, "nope")

		var roomErr RoomErrorPayload
		recvType(t, c1, EventRoomError, &roomErr)
		assert.Equal(t, "ROOM_NOT_FOUND", roomErr.Code)
	})

	t.Run("full room", func(t *testing.T) {
		room, _ := f.store.CreateRoom(1)
		f.hub.JoinRoom(c1, room.ID)
		recvType(t, c1, EventUserJoined, nil)

		c2 := f.attach(t, "u2", "bob", "inst-2")
		f.hub.JoinRoom(c2, room.ID)

		var roomErr RoomErrorPayload
		recvType(t, c2, EventRoomError, &roomErr)
		assert.Equal(t, "ROOM_FULL", roomErr.Code)

		// The member inside hears nothing about the failed join.
		expectSilence(t, c1)
	})
}

func TestJoinSecondRoomLeavesFirst(t *testing.T) {
	f := newHubFixture(t)
	roomA, _ := f.store.CreateRoom(5)
	roomB, _ := f.store.CreateRoom(5)

	c1 := f.attach(t, "u1", "alice", "inst-1")
	c2 := f.attach(t, "u2", "bob", "inst-2")

	f.hub.JoinRoom(c1, roomA.ID)
	recvType(t, c1, EventUserJoined, nil)
	f.hub.JoinRoom(c2, roomA.ID)
	recvType(t, c1, EventUserJoined, nil)
	recvType(t, c2, EventUserJoined, nil)

	f.hub.JoinRoom(c2, roomB.ID)

	var left UserLeftPayload
	recvType(t, c1, EventUserLeft, &left)
	assert.Equal(t, c2.connID, left.ConnectionID)

	recvType(t, c2, EventUserJoined, nil)

	stateA, _ := f.store.FindByID(roomA.ID)
	assert.Len(t, stateA.Participants, 1)
	stateB, _ := f.store.FindByID(roomB.ID)
	assert.Len(t, stateB.Participants, 1)
}

// Full race walkthrough: join, countdown, progress, win.
func TestRaceLifecycle(t *testing.T) {
	f := newHubFixture(t)
	room, _ := f.store.CreateRoom(5)

	c1 := f.attach(t, "u1", "alice", "inst-1")
	c2 := f.attach(t, "u2", "bob", "inst-2")

	f.hub.JoinRoom(c1, room.ID)
	recvType(t, c1, EventUserJoined, nil)
	f.hub.JoinRoom(c2, room.ID)
	recvType(t, c1, EventUserJoined, nil)
	recvType(t, c2, EventUserJoined, nil)

	// Only the creator may start.
	f.hub.StartGame(c2, room.ID)
	var roomErr RoomErrorPayload
	recvType(t, c2, EventRoomError, &roomErr)
	assert.Equal(t, "NOT_CREATOR", roomErr.Code)

	f.hub.StartGame(c1, room.ID)

	for tick := CountdownStart; tick >= 0; tick-- {
		var got int

		recvType(t, c1, EventCountdown, &got)
		assert.Equal(t, tick, got)
		recvType(t, c2, EventCountdown, &got)
		assert.Equal(t, tick, got)

		if tick > 0 {
			f.clock.BlockUntil(1)
			f.clock.Advance(countdownTickInterval)
		}
	}

	var start GameStartPayload
	recvType(t, c1, EventGameStart, &start)
	assert.Equal(t, "the quick brown fox", start.Text)
	recvType(t, c2, EventGameStart, nil)

	// Mid-race progress: ranked roster reaches everyone.
	f.hub.ReportProgress(c2, TypingProgressPayload{RoomID: room.ID, Progress: 60, WPM: 72, Accuracy: 95})

	var progress UserProgressPayload
	recvType(t, c1, EventUserProgress, &progress)
	assert.Equal(t, c2.connID, progress.UserID)
	require.Len(t, progress.Participants, 2)
	assert.Equal(t, "u2", progress.Participants[0].UserID, "leader ranks first")
	recvType(t, c2, EventUserProgress, nil)

	// Reaching 100% ends the race.
	f.hub.ReportProgress(c2, TypingProgressPayload{RoomID: room.ID, Progress: 100, WPM: 75, Accuracy: 96})
	recvType(t, c1, EventUserProgress, nil)
	recvType(t, c2, EventUserProgress, nil)

	var end GameEndPayload
	recvType(t, c1, EventGameEnd, &end)
	assert.Equal(t, c2.connID, end.Winner)
	assert.Empty(t, end.Reason)
	require.Len(t, end.FinalScores, 2)
	assert.Equal(t, "u2", end.FinalScores[0].UserID)
	recvType(t, c2, EventGameEnd, nil)

	final, _ := f.store.FindByID(room.ID)
	assert.Equal(t, StatusCompleted, final.Status)
	require.NotNil(t, final.EndTime)

	history, highScores := f.recorder.counts()
	assert.Equal(t, 1, history)
	assert.Equal(t, 1, highScores)
}

// startActiveRace fast-forwards a room with the given clients into the active state.
func startActiveRace(t *testing.T, f *hubFixture, roomID string, clients ...*Client) {
	t.Helper()

	for i, c := range clients {
		f.hub.JoinRoom(c, roomID)
		for j := 0; j <= i; j++ {
			recvType(t, clients[j], EventUserJoined, nil)
		}
	}

	f.hub.StartGame(clients[0], roomID)

	for tick := CountdownStart; tick >= 0; tick-- {
		for _, c := range clients {
			var got int
			recvType(t, c, EventCountdown, &got)
			require.Equal(t, tick, got)
		}
		if tick > 0 {
			f.clock.BlockUntil(1)
			f.clock.Advance(countdownTickInterval)
		}
	}

	for _, c := range clients {
		recvType(t, c, EventGameStart, nil)
	}
}

// Concurrent 100% reports must produce exactly one gameEnd.
func TestConcurrentFinishersSingleGameEnd(t *testing.T) {
	f := newHubFixture(t)
	room, _ := f.store.CreateRoom(5)

	c1 := f.attach(t, "u1", "alice", "inst-1")
	c2 := f.attach(t, "u2", "bob", "inst-2")
	c3 := f.attach(t, "u3", "carol", "inst-3")
	startActiveRace(t, f, room.ID, c1, c2, c3)

	var wg sync.WaitGroup
	for _, c := range []*Client{c1, c2} {
		wg.Add(1)
		go func(c *Client) {
			defer wg.Done()
			f.hub.ReportProgress(c, TypingProgressPayload{
				RoomID: room.ID, Progress: 100, WPM: 80, Accuracy: 95,
			})
		}(c)
	}
	wg.Wait()

	// The bystander sees two progress updates and exactly one gameEnd.
	gameEnds := 0
	for i := 0; i < 3; i++ {
		event := recv(t, c3)
		if event.Type == EventGameEnd {
			gameEnds++
		} else {
			require.Equal(t, EventUserProgress, event.Type)
		}
	}
	assert.Equal(t, 1, gameEnds)
	expectSilence(t, c3)

	history, highScores := f.recorder.counts()
	assert.Equal(t, 1, history)
	assert.Equal(t, 1, highScores)
}

// Disconnects that leave at most one active racer end the race.
func TestDisconnectEndsTwoPlayerRace(t *testing.T) {
	f := newHubFixture(t)
	room, _ := f.store.CreateRoom(5)

	c1 := f.attach(t, "u1", "alice", "inst-1")
	c2 := f.attach(t, "u2", "bob", "inst-2")
	startActiveRace(t, f, room.ID, c1, c2)

	f.hub.HandleDisconnect(c2)

	var left UserLeftPayload
	recvType(t, c1, EventUserLeft, &left)
	assert.Equal(t, c2.connID, left.ConnectionID)

	var end GameEndPayload
	recvType(t, c1, EventGameEnd, &end)
	assert.Empty(t, end.Winner)
	assert.Equal(t, ReasonPlayerDisconnected, end.Reason)
	require.Len(t, end.FinalScores, 1)

	final, _ := f.store.FindByID(room.ID)
	assert.Equal(t, StatusCompleted, final.Status)

	// No winner path, no stats.
	history, _ := f.recorder.counts()
	assert.Equal(t, 0, history)

	assert.Equal(t, 1, f.registry.Count())
}

func TestDisconnectWithEnoughRacersContinues(t *testing.T) {
	f := newHubFixture(t)
	room, _ := f.store.CreateRoom(5)

	c1 := f.attach(t, "u1", "alice", "inst-1")
	c2 := f.attach(t, "u2", "bob", "inst-2")
	c3 := f.attach(t, "u3", "carol", "inst-3")
	startActiveRace(t, f, room.ID, c1, c2, c3)

	f.hub.HandleDisconnect(c3)

	recvType(t, c1, EventUserLeft, nil)
	recvType(t, c2, EventUserLeft, nil)
	expectSilence(t, c1)

	final, _ := f.store.FindByID(room.ID)
	assert.Equal(t, StatusActive, final.Status)
	assert.Len(t, final.Participants, 2)
}

// Losing a waiting-room member below two racers cancels the pending countdown.
func TestLeaveDuringCountdownAborts(t *testing.T) {
	f := newHubFixture(t)
	room, _ := f.store.CreateRoom(5)

	c1 := f.attach(t, "u1", "alice", "inst-1")
	c2 := f.attach(t, "u2", "bob", "inst-2")

	f.hub.JoinRoom(c1, room.ID)
	recvType(t, c1, EventUserJoined, nil)
	f.hub.JoinRoom(c2, room.ID)
	recvType(t, c1, EventUserJoined, nil)
	recvType(t, c2, EventUserJoined, nil)

	f.hub.StartGame(c1, room.ID)

	var got int
	recvType(t, c1, EventCountdown, &got)
	require.Equal(t, CountdownStart, got)
	recvType(t, c2, EventCountdown, nil)

	f.clock.BlockUntil(1)
	f.hub.HandleDisconnect(c2)
	recvType(t, c1, EventUserLeft, nil)

	f.clock.Advance(10 * countdownTickInterval)
	expectSilence(t, c1)

	final, _ := f.store.FindByID(room.ID)
	assert.Equal(t, StatusWaiting, final.Status, "an aborted countdown must never activate the room")
}

func TestHandleDisconnectIsIdempotent(t *testing.T) {
	f := newHubFixture(t)
	room, _ := f.store.CreateRoom(5)

	c1 := f.attach(t, "u1", "alice", "inst-1")
	f.hub.JoinRoom(c1, room.ID)
	recvType(t, c1, EventUserJoined, nil)

	f.hub.HandleDisconnect(c1)
	f.hub.HandleDisconnect(c1)

	assert.Equal(t, 0, f.registry.Count())
	final, _ := f.store.FindByID(room.ID)
	assert.Empty(t, final.Participants)
}

func TestEvictClientNotifiesAndRemoves(t *testing.T) {
	f := newHubFixture(t)
	room, _ := f.store.CreateRoom(5)

	old := f.attach(t, "u1", "alice", "inst-1")
	peer := f.attach(t, "u2", "bob", "inst-2")

	f.hub.JoinRoom(old, room.ID)
	recvType(t, old, EventUserJoined, nil)
	f.hub.JoinRoom(peer, room.ID)
	recvType(t, old, EventUserJoined, nil)
	recvType(t, peer, EventUserJoined, nil)

	// The same identity reconnects with a fresh instance id.
	replacement := NewClient(f.hub, nil, "u1", "alice", "inst-3")
	evicted, cerr := f.registry.Register(replacement)
	require.Nil(t, cerr)
	require.Same(t, old, evicted)

	f.hub.EvictClient(evicted)

	var notice RoomErrorPayload
	recvType(t, old, EventConnectionReplaced, &notice)
	assert.Equal(t, "NEW_CONNECTION", notice.Code)

	recvType(t, peer, EventUserLeft, nil)

	final, _ := f.store.FindByID(room.ID)
	require.Len(t, final.Participants, 1)
	assert.Equal(t, "u2", final.Participants[0].UserID)
}

func TestProgressForUnknownRoomIsIgnored(t *testing.T) {
	f := newHubFixture(t)

	c1 := f.attach(t, "u1", "alice", "inst-1")
	f.hub.ReportProgress(c1, TypingProgressPayload{RoomID: "nope", Progress: 50})

	expectSilence(t, c1)
}
