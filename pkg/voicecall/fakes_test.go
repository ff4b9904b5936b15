package voicecall

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/haivivi/callkit/pkg/audio/pcm"
)

const testTimeout = 2 * time.Second

// fakeConn is an in-memory Conn. The test plays the remote peer through
// send and written.
type fakeConn struct {
	in      chan Message
	written chan Message
	closed  chan struct{}
	once    sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:      make(chan Message, 64),
		written: make(chan Message, 1024),
		closed:  make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() (Message, error) {
	select {
	case m := <-c.in:
		return m, nil
	case <-c.closed:
		return Message{}, io.EOF
	}
}

func (c *fakeConn) WriteMessage(m Message) error {
	select {
	case <-c.closed:
		return io.ErrClosedPipe
	default:
	}
	select {
	case c.written <- m:
		return nil
	case <-c.closed:
		return io.ErrClosedPipe
	}
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// sendText delivers a JSON text message from the peer.
func (c *fakeConn) sendText(t *testing.T, v any) {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	c.in <- Message{Type: TextMessage, Data: b}
}

// next returns the next written message accepted by keep.
func (c *fakeConn) next(t *testing.T, keep func(Message) bool) Message {
	t.Helper()
	timeout := time.After(testTimeout)
	for {
		select {
		case m := <-c.written:
			if keep == nil || keep(m) {
				return m
			}
		case <-timeout:
			t.Fatal("timed out waiting for an outbound message")
			return Message{}
		}
	}
}

// nextEvent returns the next written JSON message with the given event.
func (c *fakeConn) nextEvent(t *testing.T, event string) map[string]any {
	t.Helper()
	var out map[string]any
	c.next(t, func(m Message) bool {
		if m.Type != TextMessage {
			return false
		}
		var v map[string]any
		if err := json.Unmarshal(m.Data, &v); err != nil {
			return false
		}
		if v["event"] == event {
			out = v
			return true
		}
		return false
	})
	return out
}

// connDialer hands out conn on every dial and counts them.
type connDialer struct {
	conn  *fakeConn
	dials atomic.Int32
	urls  chan string
}

func (d *connDialer) Dial(ctx context.Context, url string, header http.Header) (Conn, error) {
	d.dials.Add(1)
	if d.urls != nil {
		d.urls <- url
	}
	return d.conn, nil
}

type fakeMic struct {
	err      error
	opens    atomic.Int32
	chunks   chan pcm.FloatChunk
	mu       sync.Mutex
	captures []*fakeCapture
}

func newFakeMic() *fakeMic {
	return &fakeMic{chunks: make(chan pcm.FloatChunk, 64)}
}

func (m *fakeMic) Open(ctx context.Context) (Capture, error) {
	m.opens.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	c := &fakeCapture{chunks: m.chunks, closed: make(chan struct{})}
	m.mu.Lock()
	m.captures = append(m.captures, c)
	m.mu.Unlock()
	return c, nil
}

func (m *fakeMic) allClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.captures {
		if !c.isClosed() {
			return false
		}
	}
	return true
}

type fakeCapture struct {
	chunks chan pcm.FloatChunk
	closed chan struct{}
	once   sync.Once
}

func (c *fakeCapture) Read() (pcm.FloatChunk, error) {
	select {
	case ch := <-c.chunks:
		return ch, nil
	case <-c.closed:
		return pcm.FloatChunk{}, io.EOF
	}
}

func (c *fakeCapture) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeCapture) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// fakeSpeaker never pulls on its own; tests advance the output clock with
// pull.
type fakeSpeaker struct {
	mu     sync.Mutex
	src    io.Reader
	format pcm.Format
	opens  int
	closes int
}

func (s *fakeSpeaker) Open(ctx context.Context, format pcm.Format, src io.Reader) (io.Closer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.src, s.format = src, format
	s.opens++
	return closerFunc(func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.closes++
		return nil
	}), nil
}

func (s *fakeSpeaker) pull(t *testing.T, d time.Duration) {
	t.Helper()
	s.mu.Lock()
	src, format := s.src, s.format
	s.mu.Unlock()
	if src == nil {
		t.Fatal("speaker not open")
	}
	buf := make([]byte, format.BytesInDuration(d))
	if _, err := src.Read(buf); err != nil {
		t.Fatalf("pull: %v", err)
	}
}

func (s *fakeSpeaker) counts() (opens, closes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opens, s.closes
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// stateRecorder collects state callbacks.
type stateRecorder struct {
	mu     sync.Mutex
	states []State
}

func (r *stateRecorder) record(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *stateRecorder) get() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.states...)
}

func waitDone(t *testing.T, c *Call) {
	t.Helper()
	select {
	case <-c.Done():
	case <-time.After(testTimeout):
		t.Fatal("call did not finish")
	}
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(testTimeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func testConfig(p ProtocolKind) Config {
	return Config{
		DeploymentURL: "wss://agent.example.com",
		DeploymentID:  "dep-1",
		Protocol:      p,
		StreamID:      "stream-1",
		RetryDelay:    1,
	}
}

// samples returns n samples of value v.
func samples(n int, v float32) []float32 {
	s := make([]float32, n)
	for i := range s {
		s[i] = v
	}
	return s
}
