package cli

import (
	"strings"

	"github.com/haivivi/callkit/pkg/buffer"
)

// LogWriter implements io.Writer and keeps the last lines written for
// display. New lines are also offered on a channel without blocking.
type LogWriter struct {
	buf *buffer.RingBuffer[string]
	ch  chan string
}

// NewLogWriter creates a new log writer with the given max lines.
func NewLogWriter(maxLines int) *LogWriter {
	return &LogWriter{
		buf: buffer.RingN[string](maxLines),
		ch:  make(chan string, 100),
	}
}

// Write implements io.Writer.
func (w *LogWriter) Write(p []byte) (n int, err error) {
	text := strings.TrimRight(string(p), "\n")
	for _, line := range strings.Split(text, "\n") {
		w.buf.Add(line)
		select {
		case w.ch <- line:
		default:
		}
	}
	return len(p), nil
}

// Lines returns all buffered lines.
func (w *LogWriter) Lines() []string {
	return w.buf.Items()
}

// Channel returns the notification channel for new lines.
func (w *LogWriter) Channel() <-chan string {
	return w.ch
}
