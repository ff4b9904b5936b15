package voicecall

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/haivivi/callkit/pkg/buffer"
	"github.com/haivivi/callkit/pkg/jsontime"
)

// stopFlushTimeout bounds how long teardown waits for queued outbound
// messages, including stop, to be written.
const stopFlushTimeout = time.Second

// Option configures a Call.
type Option func(*Call)

// WithLogger sets the logger of a call. Defaults to DefaultLogger().
func WithLogger(l Logger) Option {
	return func(c *Call) {
		c.logger = l
	}
}

// Call is one voice call session. A Call is started once; create a new Call
// (or use a Line) to call again.
//
// It is safe to call methods on Call from multiple goroutines.
type Call struct {
	cfg    Config
	devs   Devices
	cbs    Callbacks
	logger Logger

	accountID string
	streamID  string
	callID    string

	muted   atomic.Bool
	history *buffer.RingBuffer[FunctionEvent]
	events  *buffer.Buffer[func()]
	schema  *FrameSchema
	active  atomic.Pointer[session]

	mu       sync.Mutex
	state    State
	err      error
	attempts int
	started  bool
	stopped  bool
	cancel   context.CancelCauseFunc
	finished chan struct{}
	done     chan struct{}
}

// New creates a call. Config defaults are applied here; the config is
// validated by Start.
func New(cfg Config, devs Devices, cbs Callbacks, opts ...Option) (*Call, error) {
	if devs.Microphone == nil {
		return nil, errors.New("voicecall: no microphone")
	}
	if devs.Speaker == nil && cbs.OnAudioChunkReceived == nil {
		return nil, errors.New("voicecall: no speaker and no audio callback")
	}
	cfg = cfg.withDefaults()
	if devs.Dialer == nil {
		devs.Dialer = &WebSocketDialer{HandshakeTimeout: cfg.HandshakeTimeout.Std()}
	}
	if devs.SchemaLoader == nil {
		devs.SchemaLoader = FileSchemaLoader{}
	}
	c := &Call{
		cfg:       cfg,
		devs:      devs,
		cbs:       cbs,
		accountID: orNewID(cfg.AccountID),
		streamID:  orNewID(cfg.StreamID),
		callID:    orNewID(cfg.CallID),
		history:   newFunctionHistory(),
		events:    buffer.N[func()](32),
		finished:  make(chan struct{}),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = DefaultLogger()
	}
	return c, nil
}

func orNewID(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}

// Config returns the effective configuration of the call.
func (c *Call) Config() Config {
	return c.cfg
}

// StreamID returns the stream id sent in the handshake.
func (c *Call) StreamID() string {
	return c.streamID
}

// State returns the current connection state.
func (c *Call) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns why the call ended or failed to connect. It is ErrStopped
// after Stop and nil while the call is live.
func (c *Call) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Attempts returns the number of connection attempts made so far.
func (c *Call) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// Done is closed once the call has ended and every callback has run.
func (c *Call) Done() <-chan struct{} {
	return c.done
}

// Muted reports whether outbound audio is muted.
func (c *Call) Muted() bool {
	return c.muted.Load()
}

// SetMuted mutes or unmutes outbound audio. Capture keeps running while
// muted, so unmuting is immediate. Frames already queued are still sent.
func (c *Call) SetMuted(muted bool) {
	if c.muted.Swap(muted) != muted {
		c.logger.InfoPrintf("muted=%v", muted)
	}
}

// ToggleMute flips the mute state and returns the new one.
func (c *Call) ToggleMute() bool {
	for {
		old := c.muted.Load()
		if c.muted.CompareAndSwap(old, !old) {
			c.logger.InfoPrintf("muted=%v", !old)
			return !old
		}
	}
}

// FunctionHistory returns the most recent function call events, oldest
// first.
func (c *Call) FunctionHistory() []FunctionEvent {
	return c.history.Items()
}

// ClearFunctionHistory forgets every recorded function call event.
func (c *Call) ClearFunctionHistory() {
	c.history.Reset()
}

// QueueStats is a snapshot of the queues of a connected call.
type QueueStats struct {
	// PendingAudio is the number of played or queued items waiting for a
	// mark.
	PendingAudio int `json:"pending_audio"`
	// PendingMarks is the number of marks waiting for an item.
	PendingMarks int `json:"pending_marks"`
	// Paired is the number of marks whose item has not finished playing.
	Paired int `json:"paired"`
	// Outbound is the number of messages waiting for the writer.
	Outbound int `json:"outbound"`
}

// Queues returns the queue sizes of the current connection, or zeros when
// the call is not connected.
func (c *Call) Queues() QueueStats {
	s := c.active.Load()
	if s == nil {
		return QueueStats{}
	}
	return QueueStats{
		PendingAudio: int(s.pendingAudio.Load()),
		PendingMarks: int(s.pendingMarks.Load()),
		Paired:       int(s.paired.Load()),
		Outbound:     s.outbound.Len(),
	}
}

// Start connects the call. It returns once the call is connected, or with
// the error that ended the last attempt.
//
// ErrConfigMissing, ErrPermissionDenied and schema errors fail immediately.
// The frame schema is loaded once, before the first attempt. ErrTransport and
// ErrHandshakeTimeout are retried after Config.RetryDelay until
// Config.MaxAttempts attempts have been made. Every attempt acquires the
// microphone, the speaker and the connection anew.
//
// ctx bounds the whole call, not only Start.
func (c *Call) Start(ctx context.Context) error {
	c.mu.Lock()
	switch {
	case c.stopped:
		c.mu.Unlock()
		return ErrStopped
	case c.started:
		c.mu.Unlock()
		return errors.New("voicecall: call already started")
	}
	c.started = true
	ctx, c.cancel = context.WithCancelCause(ctx)
	c.mu.Unlock()

	go c.dispatch()

	if err := c.cfg.Validate(); err != nil {
		return c.fail(err)
	}
	if c.cfg.Protocol == ProtocolFrames {
		schema, err := loadSchema(ctx, c.devs.SchemaLoader, c.cfg.Schema, c.cfg.FrameMessage)
		if err != nil {
			return c.fail(fmt.Errorf("voicecall: load schema: %w", err))
		}
		c.schema = schema
	}
	s, err := c.connectWithRetry(ctx)
	if err != nil {
		return c.fail(err)
	}
	go c.run(ctx, s)
	return nil
}

// Stop ends the call and waits for teardown: capture stops, a stop message
// is sent if the connection is still open, the connection closes, playback
// stops and every queue is cleared. Stop is idempotent and may be called in
// any state, including from a callback.
func (c *Call) Stop() error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		<-c.finished
		return nil
	}
	c.stopped = true
	if !c.started {
		c.state = StateDisconnected
		c.err = ErrStopped
		close(c.finished)
		close(c.done)
		c.mu.Unlock()
		return nil
	}
	cancel := c.cancel
	c.mu.Unlock()

	cancel(ErrStopped)
	<-c.finished
	return nil
}

func (c *Call) connectWithRetry(ctx context.Context) (*session, error) {
	for attempt := 1; ; attempt++ {
		c.mu.Lock()
		c.attempts = attempt
		c.mu.Unlock()

		s, err := c.connect(ctx)
		if err == nil {
			return s, nil
		}
		if ctx.Err() != nil {
			return nil, context.Cause(ctx)
		}
		if !retryable(err) {
			return nil, err
		}
		if attempt >= c.cfg.MaxAttempts {
			c.logger.ErrorPrintf("attempt %d/%d failed: %v; giving up", attempt, c.cfg.MaxAttempts, err)
			return nil, err
		}
		c.logger.WarnPrintf("attempt %d/%d failed: %v; retrying in %s", attempt, c.cfg.MaxAttempts, err, c.cfg.RetryDelay)

		timer := time.NewTimer(c.cfg.RetryDelay.Std())
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, context.Cause(ctx)
		case <-timer.C:
		}
	}
}

// connect runs one attempt. The state moves to connecting only once the
// microphone is granted.
func (c *Call) connect(ctx context.Context) (s *session, err error) {
	capture, err := c.devs.Microphone.Open(ctx)
	if err != nil {
		if errors.Is(err, ErrPermissionDenied) {
			return nil, err
		}
		return nil, fmt.Errorf("voicecall: open microphone: %w", err)
	}
	if err := c.setState(StateConnecting); err != nil {
		capture.Close()
		return nil, err
	}

	s = newSession(c, capture)
	defer func() {
		if err != nil {
			s.release()
		}
	}()

	if s.proto, err = newProtocol(c.cfg.Protocol, c.schema); err != nil {
		return nil, err
	}
	if c.cbs.OnAudioChunkReceived == nil {
		if err := s.openOutput(ctx); err != nil {
			return nil, err
		}
	}

	hctx, cancel := context.WithTimeout(ctx, c.cfg.HandshakeTimeout.Std())
	defer cancel()
	if err := s.dial(hctx); err != nil {
		return nil, c.handshakeErr(ctx, hctx, err)
	}
	if err := s.handshake(hctx); err != nil {
		return nil, c.handshakeErr(ctx, hctx, err)
	}
	if err := c.setState(StateConnected); err != nil {
		return nil, err
	}
	c.logger.InfoPrintf("connected to %s (%s)", s.url, s.proto.Name())
	return s, nil
}

func (c *Call) handshakeErr(ctx, hctx context.Context, err error) error {
	if ctx.Err() != nil {
		return context.Cause(ctx)
	}
	if errors.Is(hctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s", ErrHandshakeTimeout, c.cfg.HandshakeTimeout)
	}
	return err
}

// run pumps a connected session until it ends, then tears it down.
func (c *Call) run(ctx context.Context, s *session) {
	g, gctx := errgroup.WithContext(ctx)
	captureDone := make(chan struct{})
	writerDone := make(chan struct{})
	loopDone := make(chan struct{})

	g.Go(func() error {
		defer close(captureDone)
		return s.captureLoop(gctx)
	})
	g.Go(func() error {
		defer close(writerDone)
		return s.writeLoop(gctx)
	})
	g.Go(func() error {
		return s.readLoop(gctx)
	})
	g.Go(func() error {
		defer close(loopDone)
		return s.eventLoop(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		s.shutdown(captureDone, loopDone, writerDone)
		return nil
	})

	c.active.Store(s)
	err := g.Wait()
	c.active.Store(nil)
	s.release()
	if err == nil {
		err = context.Cause(ctx)
	} else {
		c.logger.ErrorPrintf("call ended: %v", err)
	}
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
	c.setState(StateDisconnected)
	c.finish()
}

// fail ends a call that never connected.
func (c *Call) fail(err error) error {
	c.mu.Lock()
	c.err = err
	connecting := c.state == StateConnecting
	c.mu.Unlock()
	if connecting {
		c.setState(StateDisconnected)
	}
	c.finish()
	return err
}

func (c *Call) finish() {
	c.cancel(nil)
	close(c.finished)
	c.emit(func() { close(c.done) })
	c.events.CloseWrite()
}

func (c *Call) setState(next State) error {
	c.mu.Lock()
	prev := c.state
	if !prev.canTransition(next) {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, prev, next)
	}
	c.state = next
	c.mu.Unlock()

	c.logger.DebugPrintf("state %s -> %s", prev, next)
	if cb := c.cbs.OnConnectionStatusChanged; cb != nil {
		c.emit(func() { cb(next) })
	}
	return nil
}

// emit queues fn for the callback goroutine.
func (c *Call) emit(fn func()) {
	if err := c.events.Add(fn); err != nil {
		c.logger.DebugPrintf("drop callback: %v", err)
	}
}

func (c *Call) dispatch() {
	for {
		fn, err := c.events.Next()
		if err != nil {
			return
		}
		fn()
	}
}

func (c *Call) emitJSON(cb func(json.RawMessage), data json.RawMessage) {
	if cb != nil {
		c.emit(func() { cb(data) })
	}
}

func (c *Call) recordFunction(typ FunctionEventType, data json.RawMessage) {
	c.history.Add(FunctionEvent{
		Type:      typ,
		Data:      data,
		Timestamp: jsontime.NowEpochMilli(),
	})
}

func (c *Call) customParameters() map[string]string {
	params := map[string]string{
		"direction": "inbound",
		"type":      "client",
		"caller":    userAgent(c.cfg),
	}
	maps.Copy(params, c.cfg.CustomParameters)
	return params
}

// describe builds the device descriptor. A missing or refused location is
// not an error.
func (c *Call) describe(ctx context.Context) *DeviceInfo {
	dev := describeDevice(c.cfg, c.cfg.SampleRate)
	if c.devs.Locator == nil {
		return dev
	}
	lctx, cancel := context.WithTimeout(ctx, c.cfg.LocationTimeout.Std())
	defer cancel()
	loc, err := c.devs.Locator.Locate(lctx)
	switch {
	case err == nil:
		dev.Location = &loc
	case errors.Is(err, ErrPermissionDenied):
		c.logger.InfoPrintf("location permission denied, continuing without location")
	default:
		c.logger.WarnPrintf("location unavailable: %v", err)
	}
	return dev
}
