package voicecall

import (
	"fmt"

	"github.com/haivivi/callkit/pkg/audio/pcm"
)

// Session is the identity and format information a protocol needs for its
// handshake.
type Session struct {
	AccountID        string
	StreamID         string
	CallID           string
	Format           pcm.Format
	CustomParameters map[string]string
	Device           *DeviceInfo
}

// Protocol frames outbound audio and control events and decodes inbound
// messages for one wire format. A Protocol instance serves a single
// connection attempt. Handshake and the Frame methods are called from one
// goroutine; Decode is called from another and must not share state with
// them.
type Protocol interface {
	// Name returns the protocol name.
	Name() ProtocolKind
	// Handshake returns the messages sent once after the connection opens,
	// before any audio.
	Handshake(s *Session) ([]Message, error)
	// FrameAudio frames one encoded audio frame.
	FrameAudio(f EncodedFrame) (Message, error)
	// FrameControl frames an outgoing control event (mark, stop).
	FrameControl(ev ControlEvent) (Message, error)
	// Decode turns an inbound message into a control event or audio. A
	// malformed message returns an error matching ErrDecode.
	Decode(m Message) (Inbound, error)
}

// newProtocol creates a protocol instance for one connection attempt.
// ProtocolFrames needs the loaded frame schema.
func newProtocol(kind ProtocolKind, schema *FrameSchema) (Protocol, error) {
	switch kind {
	case ProtocolTelephony:
		return NewTelephonyProtocol(), nil
	case ProtocolFrames:
		if schema == nil {
			return nil, fmt.Errorf("voicecall: %s protocol without a schema", kind)
		}
		return NewFrameProtocol(schema), nil
	}
	return nil, fmt.Errorf("voicecall: unknown protocol %q", kind)
}
