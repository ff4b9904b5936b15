package voicecall

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/haivivi/callkit/pkg/audio/pcm"
)

func TestTelephonyHandshake(t *testing.T) {
	p := NewTelephonyProtocol()
	msgs, err := p.Handshake(&Session{
		AccountID:        "acc",
		StreamID:         "str",
		CallID:           "call",
		Format:           pcm.L16Mono16K,
		CustomParameters: map[string]string{"caller": "me"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 {
		t.Fatalf("handshake has %d messages, want 2", len(msgs))
	}

	var connected map[string]any
	json.Unmarshal(msgs[0].Data, &connected)
	if connected["event"] != "connected" || connected["protocol"] != "Call" || connected["version"] != "1.0.0" {
		t.Errorf("connected = %s", msgs[0].Data)
	}

	var start struct {
		Event          string `json:"event"`
		SequenceNumber string `json:"sequenceNumber"`
		StreamID       string `json:"streamId"`
		Start          struct {
			AccountID   string   `json:"accountId"`
			StreamID    string   `json:"streamId"`
			CallID      string   `json:"callId"`
			Tracks      []string `json:"tracks"`
			MediaFormat struct {
				Encoding   string `json:"encoding"`
				SampleRate int    `json:"sampleRate"`
				Channels   int    `json:"channels"`
			} `json:"mediaFormat"`
			CustomParameters map[string]string `json:"customParameters"`
		} `json:"start"`
	}
	if err := json.Unmarshal(msgs[1].Data, &start); err != nil {
		t.Fatal(err)
	}
	if start.Event != "start" || start.SequenceNumber != "1" || start.StreamID != "str" {
		t.Errorf("start envelope = %s", msgs[1].Data)
	}
	s := start.Start
	if s.AccountID != "acc" || s.CallID != "call" || len(s.Tracks) != 1 || s.Tracks[0] != "inbound" {
		t.Errorf("start = %+v", s)
	}
	if s.MediaFormat.Encoding != "linear16" || s.MediaFormat.SampleRate != 16000 || s.MediaFormat.Channels != 1 {
		t.Errorf("mediaFormat = %+v", s.MediaFormat)
	}
	if s.CustomParameters["caller"] != "me" {
		t.Errorf("customParameters = %v", s.CustomParameters)
	}
}

func TestTelephonyMediaSequence(t *testing.T) {
	p := NewTelephonyProtocol()
	p.Handshake(&Session{StreamID: "str", Format: pcm.L16Mono16K})
	at := time.UnixMilli(1700000000123)
	data := pcm.Encode([]float32{0.5, -0.5})

	var last struct {
		SequenceNumber string `json:"sequenceNumber"`
		Media          struct {
			Track     string `json:"track"`
			Chunk     string `json:"chunk"`
			Timestamp int64  `json:"timestamp"`
			Payload   string `json:"payload"`
		} `json:"media"`
	}
	for range 2 {
		m, err := p.FrameAudio(EncodedFrame{Data: data, Format: pcm.L16Mono16K, Captured: at})
		if err != nil {
			t.Fatal(err)
		}
		if err := json.Unmarshal(m.Data, &last); err != nil {
			t.Fatal(err)
		}
	}
	if last.SequenceNumber != "3" || last.Media.Chunk != "2" {
		t.Errorf("sequenceNumber/chunk = %s/%s, want 3/2", last.SequenceNumber, last.Media.Chunk)
	}
	if last.Media.Track != "inbound" || last.Media.Timestamp != 1700000000123 {
		t.Errorf("media = %+v", last.Media)
	}
	if got, _ := base64.StdEncoding.DecodeString(last.Media.Payload); string(got) != string(data) {
		t.Errorf("payload = %x, want %x", got, data)
	}
}

func TestTelephonyControl(t *testing.T) {
	p := NewTelephonyProtocol()
	p.Handshake(&Session{StreamID: "str", Format: pcm.L16Mono16K})

	m, _ := p.FrameControl(ControlEvent{Event: EventMark, Mark: "m1"})
	if string(m.Data) != `{"event":"mark","mark":"m1","streamId":"str"}` {
		t.Errorf("mark = %s", m.Data)
	}
	m, _ = p.FrameControl(ControlEvent{Event: EventStop})
	if string(m.Data) != `{"event":"stop","streamId":"str"}` {
		t.Errorf("stop = %s", m.Data)
	}
}

func TestTelephonyDecode(t *testing.T) {
	p := NewTelephonyProtocol()
	text := func(s string) Message { return Message{Type: TextMessage, Data: []byte(s)} }

	in, err := p.Decode(text(`{"event":"media","media":{"payload":"AQID"}}`))
	if err != nil || string(in.Audio) != "\x01\x02\x03" {
		t.Fatalf("media = %v, %v", in.Audio, err)
	}
	for _, raw := range []string{`{"event":"mark","mark":"m1"}`, `{"event":"mark","mark":{"name":"m1"}}`} {
		in, err := p.Decode(text(raw))
		if err != nil || in.Control == nil || in.Control.Mark != "m1" {
			t.Errorf("Decode(%s) = %+v, %v", raw, in.Control, err)
		}
	}
	in, err = p.Decode(text(`{"event":"clear","streamId":"x"}`))
	if err != nil || in.Control.Event != EventClear || string(in.Control.Raw) != `{"event":"clear","streamId":"x"}` {
		t.Errorf("clear = %+v, %v", in.Control, err)
	}

	for _, bad := range []Message{
		text(`not json`),
		text(`{"streamId":"x"}`),
		text(`{"event":"media","media":{"payload":"%%%"}}`),
		{Type: BinaryMessage, Data: []byte{1}},
	} {
		_, err := p.Decode(bad)
		var de *DecodeError
		if !errors.Is(err, ErrDecode) || !errors.As(err, &de) {
			t.Errorf("Decode(%q) = %v, want a DecodeError", bad.Data, err)
		}
	}
}
