package voicecall

import (
	"context"
	"sync"
)

// Line holds at most one active call. Dialing a new call stops the previous
// one first, so two calls never hold the devices at the same time.
type Line struct {
	mu   sync.Mutex
	call *Call
}

// Dial stops the current call, if any, then creates and starts a new one.
// The new call is returned even when Start fails so its Err and state can be
// inspected.
func (l *Line) Dial(ctx context.Context, cfg Config, devs Devices, cbs Callbacks, opts ...Option) (*Call, error) {
	call, err := New(cfg, devs, cbs, opts...)
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	prev := l.call
	l.call = call
	l.mu.Unlock()

	if prev != nil {
		prev.Stop()
	}
	return call, call.Start(ctx)
}

// Current returns the most recently dialed call, or nil.
func (l *Line) Current() *Call {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.call
}

// Hangup stops the current call and empties the line.
func (l *Line) Hangup() error {
	l.mu.Lock()
	call := l.call
	l.call = nil
	l.mu.Unlock()
	if call == nil {
		return nil
	}
	return call.Stop()
}
