package voicecall

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/haivivi/callkit/pkg/audio/pcm"
	"github.com/haivivi/callkit/pkg/audio/resampler"
	"github.com/haivivi/callkit/pkg/buffer"
)

// outgoing is an outbound queue entry, framed on the writer goroutine.
type outgoing struct {
	audio   *EncodedFrame
	control *ControlEvent
}

// maxOutboundFrames caps the audio frames waiting for the writer. Frames
// captured beyond it are dropped; control messages are always queued.
const maxOutboundFrames = 250

// session holds every resource of one connection attempt. Nothing is shared
// between attempts.
type session struct {
	call   *Call
	cfg    Config
	logger Logger
	url    string

	proto   Protocol
	capture Capture
	mixer   *pcm.Mixer
	output  io.Closer
	conn    Conn

	encoder   *Encoder
	scheduler *Scheduler
	marks     *MarkQueue
	outbound  *buffer.Buffer[outgoing]

	inRate      int
	inResampler resampler.Stream

	inbound     chan Message
	played      *buffer.Buffer[uint64]
	playedReady chan struct{}
	broken      atomic.Bool
	nextID      uint64
	dropped     int
	releaseOnce sync.Once

	pendingAudio atomic.Int32
	pendingMarks atomic.Int32
	paired       atomic.Int32
}

func newSession(c *Call, capture Capture) *session {
	kind, _ := resampler.ParseKind(c.cfg.Resampler)
	return &session{
		call:        c,
		cfg:         c.cfg,
		logger:      c.logger,
		capture:     capture,
		encoder:     NewEncoder(c.cfg.encodedFormat(), c.cfg.FrameDuration.Std(), kind),
		marks:       NewMarkQueue(),
		outbound:    buffer.N[outgoing](64),
		inbound:     make(chan Message, 64),
		played:      buffer.N[uint64](64),
		playedReady: make(chan struct{}, 1),
	}
}

func (s *session) openOutput(ctx context.Context) error {
	s.mixer = pcm.NewMixer(s.cfg.outputFormat())
	out, err := s.call.devs.Speaker.Open(ctx, s.mixer.Output(), s.mixer)
	if err != nil {
		return fmt.Errorf("voicecall: open speaker: %w", err)
	}
	s.output = out
	s.scheduler = NewScheduler(s.mixer, SchedulerConfig{
		Lookahead:      s.cfg.PlaybackLookahead.Std(),
		ResetThreshold: s.cfg.CursorResetThreshold.Std(),
		Backoff:        s.cfg.DecodeBackoff.Std(),
		Gain:           s.cfg.PlaybackGain,
		Fade:           s.cfg.PlaybackFade.Std(),
		HighPass:       s.cfg.HighPassHz,
	}, s.onPlayed)
	return nil
}

// onPlayed runs on the goroutine driving the mixer, or on the event loop
// when playback is cleared. It never blocks.
func (s *session) onPlayed(item *PlaybackItem, interrupted bool) {
	if interrupted {
		return
	}
	if err := s.played.Add(item.ID); err != nil {
		return
	}
	select {
	case s.playedReady <- struct{}{}:
	default:
	}
}

func (s *session) dial(ctx context.Context) error {
	url, err := s.cfg.URL()
	if err != nil {
		return err
	}
	s.url = url
	header := make(http.Header, len(s.cfg.Headers))
	for k, v := range s.cfg.Headers {
		header.Set(k, v)
	}
	s.logger.DebugPrintf("dialing %s", url)
	conn, err := s.call.devs.Dialer.Dial(ctx, url, header)
	if err != nil {
		return asTransport("dial "+url, err)
	}
	s.conn = conn
	return nil
}

func (s *session) handshake(ctx context.Context) error {
	sess := &Session{
		AccountID:        s.call.accountID,
		StreamID:         s.call.streamID,
		CallID:           s.call.callID,
		Format:           s.encoder.Format(),
		CustomParameters: s.call.customParameters(),
	}
	if s.proto.Name() == ProtocolFrames {
		sess.Device = s.call.describe(ctx)
	}
	msgs, err := s.proto.Handshake(sess)
	if err != nil {
		return fmt.Errorf("voicecall: handshake: %w", err)
	}

	errc := make(chan error, 1)
	go func() {
		for _, m := range msgs {
			if err := s.conn.WriteMessage(m); err != nil {
				errc <- asTransport("handshake", err)
				return
			}
		}
		errc <- nil
	}()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		s.conn.Close()
		<-errc
		return ctx.Err()
	}
}

func asTransport(op string, err error) error {
	if errors.Is(err, ErrTransport) {
		return err
	}
	return transportErr(op, err)
}

// captureLoop feeds encoded microphone frames to the outbound queue. Muted
// frames are dropped before framing.
func (s *session) captureLoop(ctx context.Context) error {
	for {
		chunk, err := s.capture.Read()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("voicecall: capture: %w", err)
		}
		frames, err := s.encoder.Encode(chunk)
		if err != nil {
			return err
		}
		if s.call.muted.Load() {
			continue
		}
		for _, f := range frames {
			if s.outbound.Len() >= maxOutboundFrames {
				if s.dropped++; s.dropped == 1 {
					s.logger.WarnPrintf("outbound backlog over %d frames, dropping audio", maxOutboundFrames)
				}
				continue
			}
			if s.dropped > 0 {
				s.logger.InfoPrintf("outbound backlog drained, %d frames dropped", s.dropped)
				s.dropped = 0
			}
			if err := s.outbound.Add(outgoing{audio: &f}); err != nil {
				return nil
			}
		}
	}
}

// writeLoop is the only writer of the connection. It drains the outbound
// queue until teardown closes it.
func (s *session) writeLoop(ctx context.Context) error {
	for {
		out, err := s.outbound.Next()
		if err != nil {
			return nil
		}
		var m Message
		if out.audio != nil {
			m, err = s.proto.FrameAudio(*out.audio)
		} else {
			m, err = s.proto.FrameControl(*out.control)
		}
		if err != nil {
			s.logger.WarnPrintf("drop outbound message: %v", err)
			continue
		}
		if err := s.conn.WriteMessage(m); err != nil {
			s.broken.Store(true)
			if ctx.Err() != nil {
				return nil
			}
			return asTransport("write", err)
		}
	}
}

func (s *session) readLoop(ctx context.Context) error {
	for {
		m, err := s.conn.ReadMessage()
		if err != nil {
			s.broken.Store(true)
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, io.EOF) {
				return transportErr("read", errors.New("connection closed by peer"))
			}
			return asTransport("read", err)
		}
		select {
		case s.inbound <- m:
		case <-ctx.Done():
			return nil
		}
	}
}

// eventLoop owns the scheduler and the mark queue.
func (s *session) eventLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case m := <-s.inbound:
			s.handleMessage(m)
		case <-s.playedReady:
			for _, id := range s.played.Drain() {
				s.complete(id)
			}
		}
		s.publishQueues()
	}
}

func (s *session) publishQueues() {
	s.pendingAudio.Store(int32(s.marks.PendingAudio()))
	s.pendingMarks.Store(int32(s.marks.PendingMarks()))
	s.paired.Store(int32(s.marks.Paired()))
}

func (s *session) handleMessage(m Message) {
	in, err := s.proto.Decode(m)
	if err != nil {
		s.logger.WarnPrintf("drop inbound %s message: %v", m.Type, err)
		return
	}
	switch {
	case in.Control != nil:
		s.handleControl(in.Control)
	case len(in.Audio) > 0:
		s.handleAudio(in)
	default:
		s.logger.DebugPrintf("ignore frame without audio")
	}
}

func (s *session) handleControl(ev *ControlEvent) {
	c := s.call
	switch ev.Event {
	case EventMark:
		if id, ok := s.marks.AddMark(ev.Mark); ok {
			s.logger.DebugPrintf("mark %q paired with item %d", ev.Mark, id)
		}
	case EventClear:
		s.clear()
	case EventFunctionCallInProgress:
		c.recordFunction(FunctionCall, ev.Raw)
		c.emitJSON(c.cbs.OnFunctionCallStarted, ev.Raw)
	case EventFunctionCallResult:
		c.recordFunction(FunctionResult, ev.Raw)
		c.emitJSON(c.cbs.OnFunctionCallResult, ev.Raw)
	default:
		c.emitJSON(c.cbs.OnGenericMessage, ev.Raw)
	}
}

func (s *session) handleAudio(in Inbound) {
	s.nextID++
	id := s.nextID

	if cb := s.call.cbs.OnAudioChunkReceived; cb != nil {
		s.marks.AddItem(id)
		audio := in.Audio
		s.call.emit(func() { cb(audio) })
		s.complete(id)
		return
	}

	rate := in.SampleRate
	if rate <= 0 {
		rate = s.cfg.InboundSampleRate
	}
	chunk, err := DecodeAudio(in.Audio, s.cfg.InboundEncoding, rate, in.Channels)
	if err != nil {
		s.logger.WarnPrintf("drop audio: %v", err)
		s.scheduler.Backoff()
		return
	}
	samples, err := s.toOutputRate(chunk)
	if err != nil {
		s.logger.WarnPrintf("drop audio: %v", err)
		return
	}
	if len(samples) == 0 {
		return
	}

	item := &PlaybackItem{ID: id, Samples: samples}
	s.marks.AddItem(id)
	if _, err := s.scheduler.Schedule(item); err != nil {
		s.logger.WarnPrintf("schedule item %d: %v", id, err)
		s.complete(id)
	}
}

// toOutputRate resamples inbound audio to the output rate. The resampler is
// kept across chunks of the same rate so chunk boundaries stay continuous.
func (s *session) toOutputRate(chunk pcm.FloatChunk) ([]float32, error) {
	out := s.mixer.Output().SampleRate()
	if chunk.SampleRate == out {
		return chunk.Samples, nil
	}
	if s.inResampler == nil || s.inRate != chunk.SampleRate {
		s.inResampler = resampler.NewLinear(chunk.SampleRate, out)
		s.inRate = chunk.SampleRate
	}
	return s.inResampler.Process(chunk.Samples)
}

// complete acknowledges the mark paired with item id, if any.
func (s *session) complete(id uint64) {
	if mark, ok := s.marks.Complete(id); ok {
		s.sendMark(mark)
	}
}

// clear stops all playback and acknowledges every mark still waiting.
func (s *session) clear() {
	if s.scheduler != nil {
		s.scheduler.StopAll()
	}
	marks := s.marks.Clear()
	for _, m := range marks {
		s.sendMark(m)
	}
	if s.scheduler != nil {
		s.scheduler.Reset()
	}
	if s.inResampler != nil {
		s.inResampler.Reset()
	}
	s.played.Reset()
	s.logger.DebugPrintf("clear: flushed %d marks", len(marks))
}

func (s *session) sendMark(name string) {
	if err := s.outbound.Add(outgoing{control: &ControlEvent{Event: EventMark, Mark: name}}); err != nil {
		s.logger.DebugPrintf("drop mark %q: %v", name, err)
	}
}

// shutdown runs once the pumps are cancelled: it stops capture, lets the
// writer flush a final stop, then closes the connection.
func (s *session) shutdown(captureDone, loopDone, writerDone <-chan struct{}) {
	s.capture.Close()
	<-captureDone
	<-loopDone

	if !s.broken.Load() {
		s.outbound.Add(outgoing{control: &ControlEvent{Event: EventStop}})
	}
	s.outbound.CloseWrite()
	select {
	case <-writerDone:
	case <-time.After(stopFlushTimeout):
		s.logger.WarnPrintf("outbound queue not flushed after %s", stopFlushTimeout)
	}
	s.conn.Close()
}

// release frees every resource of the attempt. It is safe to call more than
// once and on a partially acquired session.
func (s *session) release() {
	s.releaseOnce.Do(func() {
		s.played.Close()
		s.capture.Close()
		s.outbound.Close()
		if s.conn != nil {
			s.conn.Close()
		}
		if s.mixer != nil {
			s.mixer.Close()
		}
		if s.output != nil {
			s.output.Close()
		}
		s.marks.Reset()
		if s.scheduler != nil {
			s.scheduler.Reset()
		}
	})
}
