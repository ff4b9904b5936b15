package voicecall

import (
	"time"

	"github.com/haivivi/callkit/pkg/audio/pcm"
)

// PlaybackItem is one decoded inbound audio buffer.
type PlaybackItem struct {
	ID      uint64
	Samples []float32
	Format  pcm.Format

	// Start and Duration are set once the item is scheduled, in the output
	// clock domain.
	Start    time.Duration
	Duration time.Duration
}

// SchedulerConfig tunes the playback scheduler.
type SchedulerConfig struct {
	// Lookahead is added to the output clock when the cursor snaps.
	Lookahead time.Duration
	// ResetThreshold is the arrival gap after which the cursor snaps.
	ResetThreshold time.Duration
	// Backoff is how far Backoff pushes the cursor past now.
	Backoff time.Duration

	Gain     float32
	Fade     time.Duration
	HighPass float64
}

// Scheduler places playback items back to back on the output clock of a
// mixer. It is owned by a single goroutine.
type Scheduler struct {
	mixer  *pcm.Mixer
	cfg    SchedulerConfig
	onDone func(item *PlaybackItem, interrupted bool)

	cursor      time.Duration
	cursorSet   bool
	lastArrival time.Duration
	arrived     bool
}

// NewScheduler creates a Scheduler. onDone, if not nil, is called once per
// scheduled item when it finishes or is stopped; it runs on the goroutine
// driving the mixer.
func NewScheduler(mixer *pcm.Mixer, cfg SchedulerConfig, onDone func(item *PlaybackItem, interrupted bool)) *Scheduler {
	return &Scheduler{mixer: mixer, cfg: cfg, onDone: onDone}
}

// Schedule starts item at the play cursor and advances the cursor by its
// duration. The cursor snaps to now+Lookahead when it is unset, when it has
// fallen behind the output clock, or when more than ResetThreshold passed
// since the previous arrival. Schedule returns the start time and never
// blocks.
func (s *Scheduler) Schedule(item *PlaybackItem) (time.Duration, error) {
	now := s.mixer.Now()
	if !s.cursorSet || s.cursor < now || (s.arrived && now-s.lastArrival > s.cfg.ResetThreshold) {
		s.cursor = now + s.cfg.Lookahead
		s.cursorSet = true
	}
	s.lastArrival, s.arrived = now, true

	opts := []pcm.VoiceOption{pcm.WithGain(s.cfg.Gain)}
	if s.cfg.Fade > 0 {
		opts = append(opts, pcm.WithFade(s.cfg.Fade))
	}
	if s.cfg.HighPass > 0 {
		opts = append(opts, pcm.WithHighPass(s.cfg.HighPass))
	}
	if s.onDone != nil {
		opts = append(opts, pcm.OnDone(func(_ *pcm.Voice, interrupted bool) {
			s.onDone(item, interrupted)
		}))
	}
	v, err := s.mixer.Schedule(s.cursor, item.Samples, opts...)
	if err != nil {
		return 0, err
	}
	item.Format = s.mixer.Output()
	item.Start = v.Start()
	item.Duration = v.Duration()
	s.cursor = v.End()
	return item.Start, nil
}

// Backoff pushes the cursor to now+Backoff after an undecodable buffer.
func (s *Scheduler) Backoff() {
	now := s.mixer.Now()
	s.cursor = now + s.cfg.Backoff
	s.cursorSet = true
	s.lastArrival, s.arrived = now, true
}

// Cursor returns the play cursor and whether it is set.
func (s *Scheduler) Cursor() (time.Duration, bool) {
	return s.cursor, s.cursorSet
}

// StopAll stops every scheduled item.
func (s *Scheduler) StopAll() {
	s.mixer.StopAll()
}

// Reset unsets the cursor.
func (s *Scheduler) Reset() {
	s.cursor, s.cursorSet = 0, false
	s.lastArrival, s.arrived = 0, false
}
