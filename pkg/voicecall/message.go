package voicecall

import (
	"encoding/json"
	"time"

	"github.com/bytedance/sonic"

	"github.com/haivivi/callkit/pkg/audio/pcm"
)

// wireJSON encodes control messages. ConfigStd keeps the output identical to
// encoding/json.
var wireJSON = sonic.ConfigStd

// MessageType tells text and binary WebSocket messages apart.
type MessageType int

const (
	TextMessage MessageType = iota + 1
	BinaryMessage
)

// String returns the string representation of the message type.
func (t MessageType) String() string {
	switch t {
	case TextMessage:
		return "text"
	case BinaryMessage:
		return "binary"
	}
	return "unknown"
}

// Message is one message on the duplex connection.
type Message struct {
	Type MessageType
	Data []byte
}

func textMessage(v any) (Message, error) {
	b, err := wireJSON.Marshal(v)
	if err != nil {
		return Message{}, err
	}
	return Message{Type: TextMessage, Data: b}, nil
}

// Control event names.
const (
	EventConnected              = "connected"
	EventStart                  = "start"
	EventMedia                  = "media"
	EventMark                   = "mark"
	EventStop                   = "stop"
	EventClear                  = "clear"
	EventFunctionCallInProgress = "function_call_in_progress"
	EventFunctionCallResult     = "function_call_result"
)

// ControlEvent is a decoded or outgoing control message.
type ControlEvent struct {
	// Event is the discriminator.
	Event string
	// Mark is the token of a mark event.
	Mark string
	// Raw is the complete JSON message as received.
	Raw json.RawMessage
}

// Inbound is a decoded inbound message: either a control event or an audio
// payload.
type Inbound struct {
	Control *ControlEvent

	// Audio is an encoded payload (PCM16LE, WAV, or G.711 per config).
	Audio []byte
	// SampleRate and Channels come from the frame when it carries them.
	SampleRate int
	Channels   int
}

// EncodedFrame is a fixed-rate PCM16LE frame ready for framing.
type EncodedFrame struct {
	Data     []byte
	Format   pcm.Format
	Seq      uint64
	Captured time.Time
}

// Duration returns the playing time of the frame.
func (f EncodedFrame) Duration() time.Duration {
	return f.Format.Duration(int64(len(f.Data)))
}
