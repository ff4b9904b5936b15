package buffer

import (
	"errors"
	"fmt"
	"io"
	"sync"
)

// ErrIteratorDone is returned by Next once the buffer is closed for writing
// and fully drained.
var ErrIteratorDone = errors.New("iterator done")

// Buffer is an unbounded FIFO queue safe for concurrent producers and
// consumers.
type Buffer[T any] struct {
	writeNotify chan struct{}

	mu         sync.Mutex
	closeWrite bool
	closeErr   error
	buf        []T
	head       int
}

// N creates a new Buffer with the specified initial capacity.
func N[T any](n int) *Buffer[T] {
	return &Buffer[T]{
		writeNotify: make(chan struct{}, 1),
		buf:         make([]T, 0, n),
	}
}

// Add appends an element. It fails once the buffer is closed for writing.
func (b *Buffer[T]) Add(t T) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closeErr != nil {
		return fmt.Errorf("buffer: write to closed buffer: %w", b.closeErr)
	}
	if b.closeWrite {
		return fmt.Errorf("buffer: write to closed buffer: %w", io.ErrClosedPipe)
	}
	b.buf = append(b.buf, t)
	select {
	case b.writeNotify <- struct{}{}:
	default:
	}
	return nil
}

// Next removes and returns the oldest element, blocking until one is
// available. It returns ErrIteratorDone when the buffer is closed for writing
// and empty, or the close error after CloseWithError.
func (b *Buffer[T]) Next() (t T, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for {
		if b.closeErr != nil {
			err = fmt.Errorf("buffer: read from closed buffer: %w", b.closeErr)
			return
		}
		if b.head < len(b.buf) {
			break
		}
		if b.closeWrite {
			err = ErrIteratorDone
			return
		}
		b.mu.Unlock()
		<-b.writeNotify
		b.mu.Lock()
	}
	var zero T
	t = b.buf[b.head]
	b.buf[b.head] = zero
	b.head++
	if b.head == len(b.buf) {
		b.buf = b.buf[:0]
		b.head = 0
	}
	return
}

// CloseWrite prevents further writes. Remaining elements can still be read.
func (b *Buffer[T]) CloseWrite() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closeWrite {
		return nil
	}
	b.closeWrite = true
	close(b.writeNotify)
	return nil
}

// CloseWithError closes both ends and drops buffered elements. Pending and
// future calls return err, or io.ErrClosedPipe if err is nil.
func (b *Buffer[T]) CloseWithError(err error) error {
	if err == nil {
		err = io.ErrClosedPipe
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closeErr != nil {
		return nil
	}
	b.closeErr = err
	b.buf = nil
	b.head = 0
	if !b.closeWrite {
		b.closeWrite = true
		close(b.writeNotify)
	}
	return nil
}

// Close is CloseWithError(io.ErrClosedPipe).
func (b *Buffer[T]) Close() error {
	return b.CloseWithError(io.ErrClosedPipe)
}

// Error returns the error the buffer was closed with, if any.
func (b *Buffer[T]) Error() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closeErr
}

// Len returns the number of buffered elements.
func (b *Buffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buf) - b.head
}

// Drain removes and returns every buffered element without blocking.
func (b *Buffer[T]) Drain() []T {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := append([]T(nil), b.buf[b.head:]...)
	clear(b.buf)
	b.buf = b.buf[:0]
	b.head = 0
	return out
}

// Reset discards all buffered elements.
func (b *Buffer[T]) Reset() {
	b.Drain()
}
