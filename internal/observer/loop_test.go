package observer

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoopRunsInOrder(t *testing.T) {
	loop := NewLoop()
	defer loop.Close()

	var mu sync.Mutex
	var got []int
	done := make(chan struct{})
	for i := 0; i < 100; i++ {
		require.True(t, loop.Post(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
			if i == 99 {
				close(done)
			}
		}, nil))
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("tasks did not run")
	}
	mu.Lock()
	defer mu.Unlock()
	for i, v := range got {
		if v != i {
			t.Fatalf("task %d ran at position %d", v, i)
		}
	}
}

func TestLoopCloseDropsQueued(t *testing.T) {
	loop := NewLoop()

	block := make(chan struct{})
	started := make(chan struct{})
	require.True(t, loop.Post(func() {
		close(started)
		<-block
	}, nil))
	<-started

	var dropped, ran int
	var mu sync.Mutex
	for i := 0; i < 3; i++ {
		loop.Post(func() {
			mu.Lock()
			ran++
			mu.Unlock()
		}, func() {
			mu.Lock()
			dropped++
			mu.Unlock()
		})
	}
	loop.Close()
	close(block)

	select {
	case <-loop.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not exit")
	}
	assert.Equal(t, 0, ran)
	assert.Equal(t, 3, dropped)
	assert.False(t, loop.Post(func() {}, nil))
}

func TestLoopCloseFromTask(t *testing.T) {
	loop := NewLoop()
	loop.Post(loop.Close, nil)

	select {
	case <-loop.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not exit")
	}
}
