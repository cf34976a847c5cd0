// Package broadcast holds the latest value of something that changes often and
// lets many readers wait for the next change without ever blocking the writer.
package broadcast

import (
	"context"
	"errors"
	"sync"
)

var ErrClosed = errors.New("broadcast: cell closed")

// Cell is a single-writer, many-reader slot. Every Publish bumps the version
// and wakes all waiting receivers; readers that fall behind skip straight to
// the newest value.
type Cell[T any] struct {
	mu      sync.RWMutex
	value   T
	version uint64
	changed chan struct{}
	closed  bool
}

func NewCell[T any]() *Cell[T] {
	return &Cell[T]{changed: make(chan struct{})}
}

// Publish stores v and notifies receivers. It never blocks on readers.
// Publishing to a closed cell is a no-op.
func (c *Cell[T]) Publish(v T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	c.value = v
	c.version++
	close(c.changed)
	c.changed = make(chan struct{})
}

// Load returns the current value and whether anything has been published yet.
func (c *Cell[T]) Load() (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.value, c.version > 0
}

func (c *Cell[T]) Version() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.version
}

// Close wakes every receiver; receivers that already saw the latest value get
// ErrClosed from Changed.
func (c *Cell[T]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.changed)
}

// Subscribe returns a receiver that has seen nothing yet, so a value published
// before the call is reported by the first Changed.
func (c *Cell[T]) Subscribe() *Receiver[T] {
	return &Receiver[T]{cell: c}
}

// Receiver tracks the last version one reader has consumed. It must not be
// shared between goroutines.
type Receiver[T any] struct {
	cell *Cell[T]
	seen uint64
}

// Changed blocks until the cell holds a version this receiver has not
// borrowed yet, the cell is closed, or ctx is done.
func (r *Receiver[T]) Changed(ctx context.Context) error {
	for {
		r.cell.mu.RLock()
		version, changed, closed := r.cell.version, r.cell.changed, r.cell.closed
		r.cell.mu.RUnlock()

		if version != r.seen {
			return nil
		}
		if closed {
			return ErrClosed
		}

		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// HasChanged reports whether a newer value is available without waiting.
func (r *Receiver[T]) HasChanged() bool {
	return r.cell.Version() != r.seen
}

// Borrow returns the newest value and marks it as seen.
func (r *Receiver[T]) Borrow() T {
	r.cell.mu.RLock()
	defer r.cell.mu.RUnlock()

	r.seen = r.cell.version
	return r.cell.value
}
