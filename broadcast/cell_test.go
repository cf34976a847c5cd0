package broadcast

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCell_LoadBeforePublish(t *testing.T) {
	cell := NewCell[int]()

	_, ok := cell.Load()
	assert.False(t, ok)
	assert.Equal(t, uint64(0), cell.Version())

	cell.Publish(7)
	v, ok := cell.Load()
	assert.True(t, ok)
	assert.Equal(t, 7, v)
	assert.Equal(t, uint64(1), cell.Version())
}

func TestReceiver_LateSubscriberSeesCurrentValue(t *testing.T) {
	cell := NewCell[string]()
	cell.Publish("first")
	cell.Publish("second")

	rx := cell.Subscribe()
	assert.True(t, rx.HasChanged())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, rx.Changed(ctx))
	assert.Equal(t, "second", rx.Borrow())
	assert.False(t, rx.HasChanged())
}

func TestReceiver_CoalescesMissedValues(t *testing.T) {
	cell := NewCell[int]()
	rx := cell.Subscribe()

	for i := 1; i <= 100; i++ {
		cell.Publish(i)
	}

	require.NoError(t, rx.Changed(context.Background()))
	assert.Equal(t, 100, rx.Borrow())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, rx.Changed(ctx), context.DeadlineExceeded, "no new value after borrow")
}

func TestReceiver_WakesOnPublish(t *testing.T) {
	cell := NewCell[int]()
	rx := cell.Subscribe()

	done := make(chan int, 1)
	go func() {
		if err := rx.Changed(context.Background()); err != nil {
			done <- -1
			return
		}
		done <- rx.Borrow()
	}()

	time.Sleep(10 * time.Millisecond)
	cell.Publish(42)

	select {
	case v := <-done:
		assert.Equal(t, 42, v)
	case <-time.After(time.Second):
		t.Fatal("receiver was not woken")
	}
}

func TestReceiver_Close(t *testing.T) {
	cell := NewCell[int]()
	cell.Publish(1)

	rx := cell.Subscribe()
	cell.Close()

	// the pending value is still delivered before the close is reported
	require.NoError(t, rx.Changed(context.Background()))
	assert.Equal(t, 1, rx.Borrow())
	assert.ErrorIs(t, rx.Changed(context.Background()), ErrClosed)

	cell.Publish(2)
	v, _ := cell.Load()
	assert.Equal(t, 1, v, "publish after close is ignored")
	cell.Close()
}

func TestCell_ManyReaders(t *testing.T) {
	cell := NewCell[int]()
	const readers = 16
	const last = 500

	var wg sync.WaitGroup
	results := make([]int, readers)
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rx := cell.Subscribe()
			prev := 0
			for {
				if err := rx.Changed(context.Background()); err != nil {
					results[i] = prev
					return
				}
				v := rx.Borrow()
				if v < prev {
					results[i] = -1
					return
				}
				prev = v
			}
		}(i)
	}

	for i := 1; i <= last; i++ {
		cell.Publish(i)
	}
	cell.Close()
	wg.Wait()

	for i, v := range results {
		assert.Equal(t, last, v, "reader %d", i)
	}
}
