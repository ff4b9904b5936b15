package voicecall

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/haivivi/callkit/pkg/audio/pcm"
	"github.com/haivivi/callkit/pkg/audio/resampler"
	"github.com/haivivi/callkit/pkg/jsontime"
)

// ProtocolKind selects the wire protocol of a deployment.
type ProtocolKind string

const (
	// ProtocolTelephony streams JSON envelopes with base64 PCM16 media.
	ProtocolTelephony ProtocolKind = "telephony"
	// ProtocolFrames streams protobuf frames and JSON control messages.
	ProtocolFrames ProtocolKind = "frames"
)

// Inbound audio encodings for payloads that are not WAV files.
const (
	EncodingPCM16 = "pcm16"
	EncodingMulaw = "mulaw"
	EncodingAlaw  = "alaw"
)

// DefaultFrameMessage is the full name of the protobuf message carrying
// frames in the built-in schema.
const DefaultFrameMessage = "brabble.Frame"

// Config describes one call. Zero values are replaced by defaults; see
// DefaultConfig.
type Config struct {
	// DeploymentURL is the ws(s):// or http(s):// base URL of the voice agent.
	DeploymentURL string `json:"deployment_url" yaml:"deployment_url"`
	// DeploymentID selects the deployment. Required for ProtocolTelephony.
	DeploymentID string `json:"deployment_id,omitempty" yaml:"deployment_id,omitempty"`
	// Protocol defaults to ProtocolFrames.
	Protocol ProtocolKind `json:"protocol,omitempty" yaml:"protocol,omitempty"`
	// Headers are added to the WebSocket handshake request.
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`

	// Identity of the stream. Random UUIDs are generated when empty.
	AccountID        string            `json:"account_id,omitempty" yaml:"account_id,omitempty"`
	StreamID         string            `json:"stream_id,omitempty" yaml:"stream_id,omitempty"`
	CallID           string            `json:"call_id,omitempty" yaml:"call_id,omitempty"`
	CustomParameters map[string]string `json:"custom_parameters,omitempty" yaml:"custom_parameters,omitempty"`

	// SampleRate of the outbound PCM16 stream. Defaults to 16000.
	SampleRate int `json:"sample_rate,omitempty" yaml:"sample_rate,omitempty"`
	// FrameDuration of outbound audio frames. Defaults to 20ms.
	FrameDuration jsontime.Duration `json:"frame_duration,omitempty" yaml:"frame_duration,omitempty"`
	// Resampler is "linear" (default) or "hq".
	Resampler string `json:"resampler,omitempty" yaml:"resampler,omitempty"`

	// OutputSampleRate is the playback device rate. Defaults to SampleRate.
	OutputSampleRate int `json:"output_sample_rate,omitempty" yaml:"output_sample_rate,omitempty"`
	// InboundEncoding of non-WAV audio payloads: pcm16 (default), mulaw or alaw.
	InboundEncoding string `json:"inbound_encoding,omitempty" yaml:"inbound_encoding,omitempty"`
	// InboundSampleRate of non-WAV payloads without a rate of their own.
	// Defaults to SampleRate.
	InboundSampleRate int `json:"inbound_sample_rate,omitempty" yaml:"inbound_sample_rate,omitempty"`

	// Schema is a path or http(s) URL of a .proto file or a serialized
	// FileDescriptorSet. The built-in schema is used when empty.
	Schema string `json:"schema,omitempty" yaml:"schema,omitempty"`
	// FrameMessage is the full name of the frame message in Schema.
	FrameMessage string `json:"frame_message,omitempty" yaml:"frame_message,omitempty"`

	MaxAttempts          int               `json:"max_attempts,omitempty" yaml:"max_attempts,omitempty"`
	RetryDelay           jsontime.Duration `json:"retry_delay,omitempty" yaml:"retry_delay,omitempty"`
	HandshakeTimeout     jsontime.Duration `json:"handshake_timeout,omitempty" yaml:"handshake_timeout,omitempty"`
	LocationTimeout      jsontime.Duration `json:"location_timeout,omitempty" yaml:"location_timeout,omitempty"`
	PlaybackLookahead    jsontime.Duration `json:"playback_lookahead,omitempty" yaml:"playback_lookahead,omitempty"`
	CursorResetThreshold jsontime.Duration `json:"cursor_reset_threshold,omitempty" yaml:"cursor_reset_threshold,omitempty"`
	DecodeBackoff        jsontime.Duration `json:"decode_backoff,omitempty" yaml:"decode_backoff,omitempty"`

	// Playback voice shaping.
	PlaybackGain float32           `json:"playback_gain,omitempty" yaml:"playback_gain,omitempty"`
	PlaybackFade jsontime.Duration `json:"playback_fade,omitempty" yaml:"playback_fade,omitempty"`
	HighPassHz   float64           `json:"high_pass_hz,omitempty" yaml:"high_pass_hz,omitempty"`

	// Device descriptor overrides for the frames handshake.
	ScreenWidth    int    `json:"screen_width,omitempty" yaml:"screen_width,omitempty"`
	ScreenHeight   int    `json:"screen_height,omitempty" yaml:"screen_height,omitempty"`
	ConnectionType string `json:"connection_type,omitempty" yaml:"connection_type,omitempty"`
	UserAgent      string `json:"user_agent,omitempty" yaml:"user_agent,omitempty"`
}

// DefaultConfig returns a Config with every default filled in.
func DefaultConfig() Config {
	return Config{}.withDefaults()
}

func (c Config) withDefaults() Config {
	if c.Protocol == "" {
		c.Protocol = ProtocolFrames
	}
	if c.SampleRate == 0 {
		c.SampleRate = 16000
	}
	if c.FrameDuration == 0 {
		c.FrameDuration = jsontime.Duration(20 * time.Millisecond)
	}
	if c.OutputSampleRate == 0 {
		c.OutputSampleRate = c.SampleRate
	}
	if c.InboundEncoding == "" {
		c.InboundEncoding = EncodingPCM16
	}
	if c.InboundSampleRate == 0 {
		c.InboundSampleRate = c.SampleRate
	}
	if c.FrameMessage == "" {
		c.FrameMessage = DefaultFrameMessage
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	c.RetryDelay = jsontime.Duration(c.RetryDelay.Or(time.Second))
	c.HandshakeTimeout = jsontime.Duration(c.HandshakeTimeout.Or(10 * time.Second))
	c.LocationTimeout = jsontime.Duration(c.LocationTimeout.Or(5 * time.Second))
	c.PlaybackLookahead = jsontime.Duration(c.PlaybackLookahead.Or(50 * time.Millisecond))
	c.CursorResetThreshold = jsontime.Duration(c.CursorResetThreshold.Or(time.Second))
	c.DecodeBackoff = jsontime.Duration(c.DecodeBackoff.Or(100 * time.Millisecond))
	if c.PlaybackGain == 0 {
		c.PlaybackGain = 0.8
	}
	c.PlaybackFade = jsontime.Duration(c.PlaybackFade.Or(10 * time.Millisecond))
	if c.ConnectionType == "" {
		c.ConnectionType = "unknown"
	}
	return c
}

// Validate checks the settings a call cannot start without. Missing
// identifiers wrap ErrConfigMissing.
func (c Config) Validate() error {
	c = c.withDefaults()
	if c.DeploymentURL == "" {
		return fmt.Errorf("%w: deployment url", ErrConfigMissing)
	}
	if c.Protocol == ProtocolTelephony && c.DeploymentID == "" {
		return fmt.Errorf("%w: deployment id", ErrConfigMissing)
	}
	switch c.Protocol {
	case ProtocolTelephony, ProtocolFrames:
	default:
		return fmt.Errorf("voicecall: unknown protocol %q", c.Protocol)
	}
	switch c.InboundEncoding {
	case EncodingPCM16, EncodingMulaw, EncodingAlaw:
	default:
		return fmt.Errorf("voicecall: unknown inbound encoding %q", c.InboundEncoding)
	}
	if _, err := pcm.FormatForRate(c.SampleRate); err != nil {
		return fmt.Errorf("voicecall: sample rate: %w", err)
	}
	if _, err := pcm.FormatForRate(c.OutputSampleRate); err != nil {
		return fmt.Errorf("voicecall: output sample rate: %w", err)
	}
	if _, err := resampler.ParseKind(c.Resampler); err != nil {
		return fmt.Errorf("voicecall: %w", err)
	}
	if _, err := c.URL(); err != nil {
		return err
	}
	return nil
}

// URL returns the WebSocket URL of the deployment.
//
//	telephony: <base>/<deploymentId>
//	frames:    <base>/browser/<deploymentId>, or <base>/ws without an id
func (c Config) URL() (string, error) {
	c = c.withDefaults()
	u, err := url.Parse(strings.TrimRight(c.DeploymentURL, "/"))
	if err != nil {
		return "", fmt.Errorf("voicecall: deployment url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("voicecall: deployment url: unsupported scheme %q", u.Scheme)
	}
	switch {
	case c.Protocol == ProtocolTelephony:
		u = u.JoinPath(c.DeploymentID)
	case c.DeploymentID != "":
		u = u.JoinPath("browser", c.DeploymentID)
	default:
		u = u.JoinPath("ws")
	}
	return u.String(), nil
}

func (c Config) outputFormat() pcm.Format {
	f, _ := pcm.FormatForRate(c.OutputSampleRate)
	return f
}

func (c Config) encodedFormat() pcm.Format {
	f, _ := pcm.FormatForRate(c.SampleRate)
	return f
}
