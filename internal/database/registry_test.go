package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectionLifecycleState(t *testing.T) {
	conn := newConnection(&stubClient{})
	require.NotEmpty(t, conn.ID())
	assert.False(t, conn.IsActive())
	assert.Equal(t, uint64(0), conn.QueryCount())

	conn.markActive()
	assert.True(t, conn.IsActive())

	before := conn.LastUsedAt()
	time.Sleep(time.Millisecond)
	conn.recordQuery()
	assert.Equal(t, uint64(1), conn.QueryCount())
	assert.True(t, conn.LastUsedAt().After(before))

	conn.markIdle()
	assert.False(t, conn.IsActive())
	require.NoError(t, conn.close())
}

func TestRegistryCounts(t *testing.T) {
	reg := NewConnectionRegistry()
	assert.Equal(t, 0, reg.Size())

	a := newConnection(&stubClient{})
	b := newConnection(&stubClient{})
	reg.add(a)
	reg.add(b)
	a.markActive()

	total, active, idle := reg.Counts()
	assert.Equal(t, 2, total)
	assert.Equal(t, 1, active)
	assert.Equal(t, 1, idle)
	assert.Len(t, reg.All(), 2)

	reg.remove(a.ID())
	assert.Equal(t, 1, reg.Size())
}

func TestRegistryCutoffQueries(t *testing.T) {
	reg := NewConnectionRegistry()

	idle := newConnection(&stubClient{})
	held := newConnection(&stubClient{})
	held.markActive()
	reg.add(idle)
	reg.add(held)

	future := time.Now().Add(time.Minute)

	stale := reg.IdleSince(future)
	require.Len(t, stale, 1)
	assert.Equal(t, idle.ID(), stale[0].ID())

	suspects := reg.HeldSince(future)
	require.Len(t, suspects, 1)
	assert.Equal(t, held.ID(), suspects[0].ID())

	assert.Empty(t, reg.IdleSince(time.Now().Add(-time.Minute)))
	assert.Empty(t, reg.HeldSince(time.Now().Add(-time.Minute)))
}
