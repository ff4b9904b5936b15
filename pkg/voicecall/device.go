package voicecall

import (
	"context"
	"os"
	"runtime"
	"strings"
	"time"
)

// DeviceInfo describes the client. It is sent once as the frames protocol
// handshake.
type DeviceInfo struct {
	MessageType    string    `json:"messageType"`
	SampleRate     int       `json:"sampleRate"`
	UserAgent      string    `json:"userAgent"`
	Platform       string    `json:"platform"`
	ScreenWidth    int       `json:"screenWidth"`
	ScreenHeight   int       `json:"screenHeight"`
	Language       string    `json:"language"`
	TimeZone       string    `json:"timeZone"`
	ConnectionType string    `json:"connectionType"`
	Location       *Location `json:"location,omitempty"`
}

// Location is a geographic position.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy"`
}

// Locator provides the device position. Returning an error wrapping
// ErrPermissionDenied means the user refused; the call continues without a
// location either way.
type Locator interface {
	Locate(ctx context.Context) (Location, error)
}

// LocatorFunc adapts a function to Locator.
type LocatorFunc func(ctx context.Context) (Location, error)

// Locate implements Locator.
func (f LocatorFunc) Locate(ctx context.Context) (Location, error) {
	return f(ctx)
}

const defaultUserAgent = "callkit"

func userAgent(cfg Config) string {
	if cfg.UserAgent != "" {
		return cfg.UserAgent
	}
	return defaultUserAgent + " (" + runtime.GOOS + "; " + runtime.GOARCH + ")"
}

func describeDevice(cfg Config, rate int) *DeviceInfo {
	return &DeviceInfo{
		MessageType:    "deviceInfo",
		SampleRate:     rate,
		UserAgent:      userAgent(cfg),
		Platform:       runtime.GOOS,
		ScreenWidth:    cfg.ScreenWidth,
		ScreenHeight:   cfg.ScreenHeight,
		Language:       systemLanguage(),
		TimeZone:       time.Local.String(),
		ConnectionType: cfg.ConnectionType,
	}
}

// systemLanguage turns LANG style values ("en_US.UTF-8") into a language tag.
func systemLanguage() string {
	for _, key := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		v := os.Getenv(key)
		if v == "" || v == "C" || v == "POSIX" {
			continue
		}
		if i := strings.IndexAny(v, ".@"); i >= 0 {
			v = v[:i]
		}
		return strings.ReplaceAll(v, "_", "-")
	}
	return "en-US"
}
