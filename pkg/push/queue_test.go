package push_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-push-gateway/pkg/push"
)

func TestSendQueue_DrainsAndReportsIdle(t *testing.T) {
	q := push.NewSendQueue(4)
	defer q.Close()

	var wg sync.WaitGroup
	wg.Add(3)
	for i := 0; i < 3; i++ {
		require.NoError(t, q.Submit(func() { wg.Done() }))
	}
	wg.Wait()

	// The pending count drops just after the job returns; give the drain
	// loop a moment to account for the last one.
	assert.Eventually(t, q.Idle, time.Second, 5*time.Millisecond)
}

func TestSendQueue_RejectsWhenFull(t *testing.T) {
	q := push.NewSendQueue(1)
	defer q.Close()

	release := make(chan struct{})
	started := make(chan struct{})

	// First job occupies the drain loop.
	require.NoError(t, q.Submit(func() {
		close(started)
		<-release
	}))
	<-started

	// Second job sits in the buffer; the third exceeds the bound.
	require.NoError(t, q.Submit(func() {}))
	err := q.Submit(func() {})
	require.ErrorIs(t, err, push.ErrQueueFull)
	assert.False(t, q.Idle())

	close(release)
	assert.Eventually(t, q.Idle, time.Second, 5*time.Millisecond)
}
