package mdreveal

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoopRunsInOrder(t *testing.T) {
	loop := NewLoop()
	var got []int
	for i := 0; i < 5; i++ {
		i := i
		require.True(t, loop.Do(func() { got = append(got, i) }))
	}
	loop.Do(loop.Stop)
	require.NoError(t, loop.Run(context.Background()))
	assert.Equal(t, []int{0, 1, 2, 3, 4}, got)
	assert.False(t, loop.Do(func() {}))
}

func TestLoopPostNeverRunsSynchronously(t *testing.T) {
	loop := NewLoop()
	ran := false
	loop.Post(0, func() { ran = true })
	assert.False(t, ran)
	loop.Do(loop.Stop)
	require.NoError(t, loop.Run(context.Background()))
	assert.True(t, ran)
}

func TestLoopPostDelayAndCancel(t *testing.T) {
	loop := NewLoop()
	var mu sync.Mutex
	var got []string
	record := func(s string) func() {
		return func() {
			mu.Lock()
			got = append(got, s)
			mu.Unlock()
		}
	}
	cancelled := loop.Post(5*time.Millisecond, record("cancelled"))
	loop.Post(10*time.Millisecond, record("kept"))
	loop.Post(20*time.Millisecond, loop.Stop)
	require.True(t, cancelled.Cancel())
	require.False(t, cancelled.Cancel())
	require.NoError(t, loop.Run(context.Background()))
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"kept"}, got)
}

func TestLoopRunHonoursContext(t *testing.T) {
	loop := NewLoop()
	ctx, cancel := context.WithCancel(context.Background())
	loop.Post(5*time.Millisecond, cancel)
	err := loop.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, loop.Do(func() {}))
}

func TestLoopDoFromOtherGoroutines(t *testing.T) {
	loop := NewLoop()
	count := 0
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				loop.Do(func() { count++ })
			}
		}()
	}
	go func() {
		wg.Wait()
		loop.Do(loop.Stop)
	}()
	require.NoError(t, loop.Run(context.Background()))
	assert.Equal(t, 800, count)
}

func TestManualSchedulerAdvance(t *testing.T) {
	s := NewManualScheduler()
	var got []string
	s.Post(20*time.Millisecond, func() { got = append(got, "b") })
	s.Post(10*time.Millisecond, func() {
		got = append(got, "a")
		s.Post(5*time.Millisecond, func() { got = append(got, "a2") })
	})
	s.Post(10*time.Millisecond, func() { got = append(got, "a1") })
	late := s.Post(50*time.Millisecond, func() { got = append(got, "late") })
	assert.Equal(t, 4, s.Pending())

	ran := s.Advance(20 * time.Millisecond)
	assert.Equal(t, 4, ran)
	assert.Equal(t, []string{"a", "a1", "a2", "b"}, got)
	assert.Equal(t, 20*time.Millisecond, s.Now())

	require.True(t, late.Cancel())
	assert.Equal(t, 0, s.Pending())
	assert.False(t, s.RunNext())
}

func TestManualSchedulerRunNextJumpsClock(t *testing.T) {
	s := NewManualScheduler()
	ran := false
	s.Post(time.Second, func() { ran = true })
	require.True(t, s.RunNext())
	assert.True(t, ran)
	assert.Equal(t, time.Second, s.Now())
}

func TestManualSchedulerRunAllLimit(t *testing.T) {
	s := NewManualScheduler()
	var tick func()
	n := 0
	tick = func() {
		n++
		s.Post(time.Millisecond, tick)
	}
	s.Post(0, tick)
	assert.Equal(t, 10, s.RunAll(10))
	assert.Equal(t, 10, n)
	assert.Equal(t, 1, s.Pending())
}
