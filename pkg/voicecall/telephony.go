package voicecall

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/haivivi/callkit/pkg/jsontime"
)

const (
	telephonyProtocolName    = "Call"
	telephonyProtocolVersion = "1.0.0"
	telephonyTrack           = "inbound"
	telephonyEncoding        = "linear16"
)

type telephonyMessage struct {
	Event          string          `json:"event"`
	SequenceNumber string          `json:"sequenceNumber,omitempty"`
	Protocol       string          `json:"protocol,omitempty"`
	Version        string          `json:"version,omitempty"`
	Start          *telephonyStart `json:"start,omitempty"`
	Media          *telephonyMedia `json:"media,omitempty"`
	Mark           string          `json:"mark,omitempty"`
	StreamID       string          `json:"streamId,omitempty"`
}

// telephonyInbound is the lenient shape of messages sent by the peer.
type telephonyInbound struct {
	Event string          `json:"event"`
	Mark  json.RawMessage `json:"mark,omitempty"`
	Media *struct {
		Payload string `json:"payload"`
	} `json:"media,omitempty"`
}

func (m telephonyInbound) markName() (string, error) {
	return parseMarkName(m.Mark)
}

// parseMarkName accepts both "mark":"token" and "mark":{"name":"token"}.
func parseMarkName(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	var name string
	if err := wireJSON.Unmarshal(raw, &name); err == nil {
		return name, nil
	}
	var obj struct {
		Name string `json:"name"`
	}
	if err := wireJSON.Unmarshal(raw, &obj); err != nil {
		return "", err
	}
	return obj.Name, nil
}

type telephonyStart struct {
	AccountID        string            `json:"accountId"`
	StreamID         string            `json:"streamId"`
	CallID           string            `json:"callId"`
	Tracks           []string          `json:"tracks"`
	MediaFormat      telephonyFormat   `json:"mediaFormat"`
	CustomParameters map[string]string `json:"customParameters"`
}

type telephonyFormat struct {
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sampleRate"`
	Channels   int    `json:"channels"`
}

type telephonyMedia struct {
	Track     string         `json:"track,omitempty"`
	Chunk     string         `json:"chunk,omitempty"`
	Timestamp jsontime.Milli `json:"timestamp"`
	Payload   string         `json:"payload"`
}

// TelephonyProtocol is the JSON/base64 telephony media stream protocol:
// connected and start envelopes, then one media envelope per frame; marks
// acknowledge played audio and stop ends the stream.
type TelephonyProtocol struct {
	streamID string
	seq      int
	chunk    int
	now      func() time.Time
}

// NewTelephonyProtocol creates a TelephonyProtocol.
func NewTelephonyProtocol() *TelephonyProtocol {
	return &TelephonyProtocol{now: time.Now}
}

// Name implements Protocol.
func (p *TelephonyProtocol) Name() ProtocolKind {
	return ProtocolTelephony
}

func (p *TelephonyProtocol) nextSeq() string {
	p.seq++
	return strconv.Itoa(p.seq)
}

// Handshake implements Protocol. It returns the connected and start events;
// start carries sequence number 1.
func (p *TelephonyProtocol) Handshake(s *Session) ([]Message, error) {
	p.streamID = s.StreamID
	connected, err := textMessage(telephonyMessage{
		Event:    EventConnected,
		Protocol: telephonyProtocolName,
		Version:  telephonyProtocolVersion,
	})
	if err != nil {
		return nil, err
	}
	params := s.CustomParameters
	if params == nil {
		params = map[string]string{}
	}
	start, err := textMessage(telephonyMessage{
		Event:          EventStart,
		SequenceNumber: p.nextSeq(),
		Start: &telephonyStart{
			AccountID: s.AccountID,
			StreamID:  s.StreamID,
			CallID:    s.CallID,
			Tracks:    []string{telephonyTrack},
			MediaFormat: telephonyFormat{
				Encoding:   telephonyEncoding,
				SampleRate: s.Format.SampleRate(),
				Channels:   s.Format.Channels(),
			},
			CustomParameters: params,
		},
		StreamID: s.StreamID,
	})
	if err != nil {
		return nil, err
	}
	return []Message{connected, start}, nil
}

// FrameAudio implements Protocol.
func (p *TelephonyProtocol) FrameAudio(f EncodedFrame) (Message, error) {
	p.chunk++
	ts := f.Captured
	if ts.IsZero() {
		ts = p.now()
	}
	return textMessage(telephonyMessage{
		Event:          EventMedia,
		SequenceNumber: p.nextSeq(),
		Media: &telephonyMedia{
			Track:     telephonyTrack,
			Chunk:     strconv.Itoa(p.chunk),
			Timestamp: jsontime.Milli(ts),
			Payload:   base64.StdEncoding.EncodeToString(f.Data),
		},
		StreamID: p.streamID,
	})
}

// FrameControl implements Protocol.
func (p *TelephonyProtocol) FrameControl(ev ControlEvent) (Message, error) {
	switch ev.Event {
	case EventMark:
		return textMessage(telephonyMessage{Event: EventMark, Mark: ev.Mark, StreamID: p.streamID})
	case EventStop:
		return textMessage(telephonyMessage{Event: EventStop, StreamID: p.streamID})
	}
	if len(ev.Raw) > 0 {
		return Message{Type: TextMessage, Data: ev.Raw}, nil
	}
	return textMessage(telephonyMessage{Event: ev.Event, StreamID: p.streamID})
}

// Decode implements Protocol.
func (p *TelephonyProtocol) Decode(m Message) (Inbound, error) {
	if m.Type != TextMessage {
		return Inbound{}, decodeErr("telephony message", errors.New("unexpected binary message"))
	}
	var msg telephonyInbound
	if err := wireJSON.Unmarshal(m.Data, &msg); err != nil {
		return Inbound{}, decodeErr("telephony message", err)
	}
	switch msg.Event {
	case "":
		return Inbound{}, decodeErr("telephony message", errors.New("missing event"))
	case EventMedia:
		if msg.Media == nil || msg.Media.Payload == "" {
			return Inbound{}, decodeErr("media", errors.New("missing payload"))
		}
		audio, err := base64.StdEncoding.DecodeString(msg.Media.Payload)
		if err != nil {
			return Inbound{}, decodeErr("media payload", err)
		}
		return Inbound{Audio: audio}, nil
	}
	mark, err := msg.markName()
	if err != nil {
		return Inbound{}, decodeErr("mark", err)
	}
	return Inbound{Control: &ControlEvent{
		Event: msg.Event,
		Mark:  mark,
		Raw:   json.RawMessage(m.Data),
	}}, nil
}
