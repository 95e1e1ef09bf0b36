package race

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRanked(t *testing.T) {
	tests := []struct {
		name         string
		participants []Participant
		wantOrder    []string
	}{
		{
			name: "descending by progress",
			participants: []Participant{
				{ConnectionID: "a", Progress: 40},
				{ConnectionID: "b", Progress: 90},
				{ConnectionID: "c", Progress: 70},
			},
			wantOrder: []string{"b", "c", "a"},
		},
		{
			name: "progress tie broken by wpm",
			participants: []Participant{
				{ConnectionID: "a", Progress: 80, WPM: 50},
				{ConnectionID: "b", Progress: 80, WPM: 72},
			},
			wantOrder: []string{"b", "a"},
		},
		{
			name: "progress and wpm tie broken by accuracy",
			participants: []Participant{
				{ConnectionID: "a", Progress: 80, WPM: 60, Accuracy: 91},
				{ConnectionID: "b", Progress: 80, WPM: 60, Accuracy: 97},
			},
			wantOrder: []string{"b", "a"},
		},
		{
			name: "full tie preserves join order",
			participants: []Participant{
				{ConnectionID: "a", Progress: 80, WPM: 60, Accuracy: 95},
				{ConnectionID: "b", Progress: 80, WPM: 60, Accuracy: 95},
			},
			wantOrder: []string{"a", "b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			room := Room{Participants: tt.participants}

			ranked := room.Ranked()

			require.Len(t, ranked, len(tt.wantOrder))
			for i, want := range tt.wantOrder {
				assert.Equal(t, want, ranked[i].ConnectionID, "rank %d", i)
			}
		})
	}
}

func TestRankedDoesNotMutateRoom(t *testing.T) {
	room := Room{Participants: []Participant{
		{ConnectionID: "a", Progress: 10},
		{ConnectionID: "b", Progress: 90},
	}}

	first := room.Ranked()
	second := room.Ranked()

	assert.Equal(t, first, second)
	assert.Equal(t, "a", room.Participants[0].ConnectionID, "join order must survive ranking")
}

func TestIsFull(t *testing.T) {
	room := Room{MaxParticipants: 2}
	assert.False(t, room.IsFull())

	room.Participants = []Participant{{ConnectionID: "a"}, {ConnectionID: "b"}}
	assert.True(t, room.IsFull())
}

func TestCreatorIsFirstParticipant(t *testing.T) {
	room := Room{}
	_, ok := room.Creator()
	assert.False(t, ok)

	room.Participants = []Participant{
		{ConnectionID: "first", UserID: "u1"},
		{ConnectionID: "second", UserID: "u2"},
	}

	creator, ok := room.Creator()
	require.True(t, ok)
	assert.Equal(t, "first", creator.ConnectionID)
}

func TestHasUser(t *testing.T) {
	room := Room{Participants: []Participant{{UserID: "u1"}}}

	assert.True(t, room.HasUser("u1"))
	assert.False(t, room.HasUser("u2"))
}
