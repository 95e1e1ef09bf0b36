package race

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"typerace/internal/pkg/errs"
)

func TestRegistryRegister(t *testing.T) {
	r := NewRegistry(10)

	c1 := NewClient(nil, nil, "u1", "alice", "inst-1")
	evicted, cerr := r.Register(c1)
	require.Nil(t, cerr)
	assert.Nil(t, evicted)
	assert.Equal(t, 1, r.Count())
}

func TestRegistryRejectsReplayedInstanceID(t *testing.T) {
	r := NewRegistry(10)

	c1 := NewClient(nil, nil, "u1", "alice", "inst-1")
	_, cerr := r.Register(c1)
	require.Nil(t, cerr)

	// Same instance id again, even from another identity.
	c2 := NewClient(nil, nil, "u2", "bob", "inst-1")
	evicted, cerr := r.Register(c2)
	require.NotNil(t, cerr)
	assert.Equal(t, errs.ErrDuplicateConnection, cerr.Code)
	assert.Nil(t, evicted)
	assert.Equal(t, 1, r.Count())
}

func TestRegistryNewestConnectionWins(t *testing.T) {
	r := NewRegistry(10)

	old := NewClient(nil, nil, "u1", "alice", "inst-1")
	_, cerr := r.Register(old)
	require.Nil(t, cerr)

	// A reconnect carries a fresh instance id.
	replacement := NewClient(nil, nil, "u1", "alice", "inst-2")
	evicted, cerr := r.Register(replacement)
	require.Nil(t, cerr)
	require.NotNil(t, evicted)
	assert.Same(t, old, evicted)
	assert.Equal(t, 1, r.Count())

	// The superseded instance id is released and may be seen again.
	retry := NewClient(nil, nil, "u2", "bob", "inst-1")
	_, cerr = r.Register(retry)
	require.Nil(t, cerr)
	assert.Equal(t, 2, r.Count())
}

func TestRegistryCapacity(t *testing.T) {
	r := NewRegistry(3)

	for i := 0; i < 3; i++ {
		c := NewClient(nil, nil, fmt.Sprintf("u%d", i), "racer", fmt.Sprintf("inst-%d", i))
		_, cerr := r.Register(c)
		require.Nil(t, cerr)
	}

	overflow := NewClient(nil, nil, "u99", "late", "inst-99")
	_, cerr := r.Register(overflow)
	require.NotNil(t, cerr)
	assert.Equal(t, errs.ErrCapacityExceeded, cerr.Code)
	assert.Equal(t, 3, r.Count())
}

// Replacing an existing identity at the ceiling must not count as growth.
func TestRegistryReplacementAtCapacity(t *testing.T) {
	r := NewRegistry(2)

	r.Register(NewClient(nil, nil, "u1", "alice", "inst-1"))
	r.Register(NewClient(nil, nil, "u2", "bob", "inst-2"))

	replacement := NewClient(nil, nil, "u1", "alice", "inst-3")
	evicted, cerr := r.Register(replacement)
	require.Nil(t, cerr)
	require.NotNil(t, evicted)
	assert.Equal(t, 2, r.Count())
}

func TestRegistryUnregisterIgnoresStaleInstance(t *testing.T) {
	r := NewRegistry(10)

	old := NewClient(nil, nil, "u1", "alice", "inst-1")
	r.Register(old)

	replacement := NewClient(nil, nil, "u1", "alice", "inst-2")
	r.Register(replacement)

	// The evicted connection's cleanup races the replacement; it must not
	// remove the newer registration.
	r.Unregister("u1", "inst-1")
	assert.Equal(t, 1, r.Count())

	r.Unregister("u1", "inst-2")
	assert.Equal(t, 0, r.Count())
}

func TestRegistryDefaultCapacity(t *testing.T) {
	r := NewRegistry(0)
	assert.Equal(t, DefaultMaxConnections, r.capacity)
}
