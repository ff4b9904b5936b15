package voicecall

import (
	"errors"
	"testing"
	"time"
)

func TestConfigURL(t *testing.T) {
	for _, tt := range []struct {
		base, id string
		proto    ProtocolKind
		want     string
	}{
		{"wss://agent.example.com", "dep-1", ProtocolTelephony, "wss://agent.example.com/dep-1"},
		{"https://agent.example.com/", "dep-1", ProtocolTelephony, "wss://agent.example.com/dep-1"},
		{"http://localhost:8080/v1", "dep-1", ProtocolFrames, "ws://localhost:8080/v1/browser/dep-1"},
		{"https://agent.example.com", "", ProtocolFrames, "wss://agent.example.com/ws"},
		{"ws://agent.example.com", "", "", "ws://agent.example.com/ws"},
	} {
		got, err := Config{DeploymentURL: tt.base, DeploymentID: tt.id, Protocol: tt.proto}.URL()
		if err != nil || got != tt.want {
			t.Errorf("URL(%s, %q, %s) = %q, %v; want %q", tt.base, tt.id, tt.proto, got, err, tt.want)
		}
	}
	if _, err := (Config{DeploymentURL: "ftp://x"}).URL(); err == nil {
		t.Error("ftp scheme accepted")
	}
}

func TestConfigValidate(t *testing.T) {
	ok := Config{DeploymentURL: "wss://a", DeploymentID: "d", Protocol: ProtocolTelephony}
	if err := ok.Validate(); err != nil {
		t.Fatal(err)
	}
	missing := []Config{
		{},
		{DeploymentURL: "wss://a", Protocol: ProtocolTelephony},
	}
	for _, c := range missing {
		if err := c.Validate(); !errors.Is(err, ErrConfigMissing) {
			t.Errorf("Validate(%+v) = %v, want ErrConfigMissing", c, err)
		}
	}
	invalid := []Config{
		{DeploymentURL: "wss://a", Protocol: "sip"},
		{DeploymentURL: "wss://a", SampleRate: 44100},
		{DeploymentURL: "wss://a", InboundEncoding: "opus"},
		{DeploymentURL: "wss://a", Resampler: "cubic"},
	}
	for _, c := range invalid {
		if err := c.Validate(); err == nil || errors.Is(err, ErrConfigMissing) {
			t.Errorf("Validate(%+v) = %v", c, err)
		}
	}
}

func TestConfigDefaults(t *testing.T) {
	c := DefaultConfig()
	if c.Protocol != ProtocolFrames || c.SampleRate != 16000 || c.MaxAttempts != 3 {
		t.Errorf("defaults = %+v", c)
	}
	if c.FrameDuration.Std() != 20*time.Millisecond || c.PlaybackLookahead.Std() != 50*time.Millisecond {
		t.Errorf("durations = %s, %s", c.FrameDuration, c.PlaybackLookahead)
	}
	if c.CursorResetThreshold.Std() != time.Second || c.DecodeBackoff.Std() != 100*time.Millisecond {
		t.Errorf("scheduler defaults = %s, %s", c.CursorResetThreshold, c.DecodeBackoff)
	}
}
