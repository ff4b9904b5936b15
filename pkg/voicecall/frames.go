package voicecall

import (
	"encoding/json"
	"errors"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
)

type frameControl struct {
	Event string `json:"event"`
	Mark  string `json:"mark,omitempty"`
}

// FrameProtocol carries audio in binary protobuf frames and control events
// as JSON text. The handshake is the device descriptor.
type FrameProtocol struct {
	schema *FrameSchema
}

// NewFrameProtocol creates a FrameProtocol for schema.
func NewFrameProtocol(schema *FrameSchema) *FrameProtocol {
	return &FrameProtocol{schema: schema}
}

// Name implements Protocol.
func (p *FrameProtocol) Name() ProtocolKind {
	return ProtocolFrames
}

// Handshake implements Protocol.
func (p *FrameProtocol) Handshake(s *Session) ([]Message, error) {
	dev := s.Device
	if dev == nil {
		dev = &DeviceInfo{MessageType: "deviceInfo", SampleRate: s.Format.SampleRate()}
	}
	m, err := textMessage(dev)
	if err != nil {
		return nil, err
	}
	return []Message{m}, nil
}

// FrameAudio implements Protocol.
func (p *FrameProtocol) FrameAudio(f EncodedFrame) (Message, error) {
	s := p.schema
	audio := dynamicpb.NewMessage(s.audio.Message())
	audio.Set(s.data, protoreflect.ValueOfBytes(f.Data))
	if s.sampleRate != nil {
		audio.Set(s.sampleRate, intValue(s.sampleRate.Kind(), int64(f.Format.SampleRate())))
	}
	if s.numChannels != nil {
		audio.Set(s.numChannels, intValue(s.numChannels.Kind(), int64(f.Format.Channels())))
	}
	frame := dynamicpb.NewMessage(s.Frame)
	frame.Set(s.audio, protoreflect.ValueOfMessage(audio))
	b, err := proto.Marshal(frame)
	if err != nil {
		return Message{}, err
	}
	return Message{Type: BinaryMessage, Data: b}, nil
}

// FrameControl implements Protocol.
func (p *FrameProtocol) FrameControl(ev ControlEvent) (Message, error) {
	if len(ev.Raw) > 0 && ev.Event != EventMark && ev.Event != EventStop {
		return Message{Type: TextMessage, Data: ev.Raw}, nil
	}
	return textMessage(frameControl{Event: ev.Event, Mark: ev.Mark})
}

// Decode implements Protocol. Text that is not valid JSON is decoded as a
// binary frame. Frames without audio decode to an empty Inbound.
func (p *FrameProtocol) Decode(m Message) (Inbound, error) {
	if m.Type == TextMessage && wireJSON.Valid(m.Data) {
		return p.decodeControl(m.Data)
	}
	frame := dynamicpb.NewMessage(p.schema.Frame)
	if err := proto.Unmarshal(m.Data, frame); err != nil {
		return Inbound{}, decodeErr("frame", err)
	}
	if !frame.Has(p.schema.audio) {
		return Inbound{}, nil
	}
	audio := frame.Get(p.schema.audio).Message()
	data := audio.Get(p.schema.data).Bytes()
	if len(data) == 0 {
		return Inbound{}, decodeErr("audio frame", errors.New("empty audio"))
	}
	in := Inbound{Audio: data}
	if f := p.schema.sampleRate; f != nil {
		in.SampleRate = intOf(f.Kind(), audio.Get(f))
	}
	if f := p.schema.numChannels; f != nil {
		in.Channels = intOf(f.Kind(), audio.Get(f))
	}
	return in, nil
}

func (p *FrameProtocol) decodeControl(data []byte) (Inbound, error) {
	var head struct {
		Event string          `json:"event"`
		Mark  json.RawMessage `json:"mark"`
	}
	ev := &ControlEvent{Raw: json.RawMessage(data)}
	if err := wireJSON.Unmarshal(data, &head); err != nil {
		// Valid JSON that is not an object is a generic message.
		return Inbound{Control: ev}, nil
	}
	ev.Event = head.Event
	if head.Event == EventMark {
		mark, err := parseMarkName(head.Mark)
		if err != nil {
			return Inbound{}, decodeErr("mark", err)
		}
		ev.Mark = mark
	}
	return Inbound{Control: ev}, nil
}

func intValue(k protoreflect.Kind, n int64) protoreflect.Value {
	switch k {
	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind:
		return protoreflect.ValueOfInt32(int32(n))
	case protoreflect.Uint32Kind, protoreflect.Fixed32Kind:
		return protoreflect.ValueOfUint32(uint32(n))
	case protoreflect.Uint64Kind, protoreflect.Fixed64Kind:
		return protoreflect.ValueOfUint64(uint64(n))
	default:
		return protoreflect.ValueOfInt64(n)
	}
}

func intOf(k protoreflect.Kind, v protoreflect.Value) int {
	switch k {
	case protoreflect.Uint32Kind, protoreflect.Fixed32Kind,
		protoreflect.Uint64Kind, protoreflect.Fixed64Kind:
		return int(v.Uint())
	default:
		return int(v.Int())
	}
}
