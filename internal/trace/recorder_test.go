package trace

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"roombot/internal/clock"
	"roombot/internal/command"
	"roombot/internal/engine"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_StartFinish(t *testing.T) {
	clk := clock.NewMockClock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	r := NewRecorder(10, clk)
	cmd := command.New(900, "11", 31, "alice", "poll", "list")

	inv := r.Start("poll/poll", cmd)
	_, err := uuid.Parse(inv.ID)
	require.NoError(t, err)
	assert.Equal(t, "poll", inv.Verb)
	assert.Equal(t, "11", inv.Room)
	assert.Equal(t, int64(31), inv.UserID)
	assert.Equal(t, "alice", inv.UserName)

	clk.Advance(250 * time.Millisecond)
	inv = r.Finish(inv, []engine.RequestKind{engine.RequestExists, engine.RequestPostReply}, nil)

	assert.Equal(t, []string{"exists", "post-reply"}, inv.Requests)
	assert.Equal(t, 250*time.Millisecond, inv.Duration())
	assert.False(t, inv.Failed())

	recent := r.Recent(0)
	require.Len(t, recent, 1)
	assert.Equal(t, inv, recent[0])
}

func TestRecorder_FailureStats(t *testing.T) {
	r := NewRecorder(10, nil)
	cmd := command.New(900, "11", 31, "alice", "poll", "del Asahi")

	r.Finish(r.Start("poll/poll", cmd), nil, nil)
	failed := r.Finish(r.Start("poll/poll", cmd), nil, errors.New("storage down"))
	r.Finish(r.Start("builtin/plugin", cmd), nil, nil)

	assert.True(t, failed.Failed())
	assert.Equal(t, "storage down", failed.Error)

	stats := r.Stats()
	assert.Equal(t, 2, stats["poll/poll"].Runs)
	assert.Equal(t, 1, stats["poll/poll"].Failures)
	assert.Equal(t, 1, stats["builtin/plugin"].Runs)
	assert.Equal(t, 0, stats["builtin/plugin"].Failures)
}

func TestRecorder_RingBufferKeepsNewest(t *testing.T) {
	r := NewRecorder(3, nil)

	for i := 0; i < 5; i++ {
		cmd := command.New(int64(i), "11", 31, "alice", "poll", "list")
		r.Finish(r.Start(fmt.Sprintf("h%d", i), cmd), nil, nil)
	}

	recent := r.Recent(0)
	require.Len(t, recent, 3)
	assert.Equal(t, "h4", recent[0].Handler)
	assert.Equal(t, "h3", recent[1].Handler)
	assert.Equal(t, "h2", recent[2].Handler)

	limited := r.Recent(2)
	require.Len(t, limited, 2)
	assert.Equal(t, "h4", limited[0].Handler)

	assert.Equal(t, 1, r.Stats()["h0"].Runs, "stats outlive evicted entries")
}

func TestRecorder_Empty(t *testing.T) {
	r := NewRecorder(0, nil)
	assert.Empty(t, r.Recent(5))
	assert.Empty(t, r.Stats())
}

func TestRecorder_Concurrent(t *testing.T) {
	r := NewRecorder(50, nil)
	cmd := command.New(1, "11", 31, "alice", "poll", "list")

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Finish(r.Start("poll/poll", cmd), nil, nil)
		}()
	}
	wg.Wait()

	assert.Len(t, r.Recent(0), 50)
	assert.Equal(t, 100, r.Stats()["poll/poll"].Runs)
}
