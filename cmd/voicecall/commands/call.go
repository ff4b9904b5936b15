package commands

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/haivivi/callkit/cmd/voicecall/internal/build"
	"github.com/haivivi/callkit/pkg/audio/pcm"
	"github.com/haivivi/callkit/pkg/audio/portaudio"
	"github.com/haivivi/callkit/pkg/cli"
	"github.com/haivivi/callkit/pkg/voicecall"
)

var callOpts struct {
	profile    string
	protocol   string
	sampleRate int
	resampler  string
	muted      bool
	tui        bool
	dumpAudio  string
	saveLog    bool
}

var callCmd = &cobra.Command{
	Use:   "call",
	Short: "Start a call",
	Long: `Start a full-duplex call with the deployment of the current (or -c)
context, using the default microphone and speaker.

While the call runs, type a command and press enter:
  m   toggle mute
  h   show function call history
  q   hang up

A call profile (-f) is a YAML or JSON file with any call setting, for
example:

  sample_rate: 16000
  frame_duration: 20ms
  playback_lookahead: 80ms
  max_attempts: 5
  custom_parameters:
    caller: "+15550100"`,
	RunE: runCall,
}

func init() {
	f := callCmd.Flags()
	f.StringVarP(&callOpts.profile, "file", "f", "", "call profile (YAML or JSON, - for stdin)")
	f.StringVar(&callOpts.protocol, "protocol", "", "override the context protocol")
	f.IntVar(&callOpts.sampleRate, "sample-rate", 0, "outbound sample rate (8000, 16000, 24000 or 48000)")
	f.StringVar(&callOpts.resampler, "resampler", "", "capture resampler: linear or hq")
	f.BoolVar(&callOpts.muted, "muted", false, "start with the microphone muted")
	f.BoolVar(&callOpts.tui, "tui", false, "show a status screen instead of plain logs")
	f.StringVar(&callOpts.dumpAudio, "dump-audio", "", "write inbound audio payloads to a file instead of playing them")
	f.BoolVar(&callOpts.saveLog, "save-log", false, "also write the call log to ~/.callkit/voicecall/logs")
}

// contextConfig maps a context onto call settings.
func contextConfig(ctx *cli.Context) voicecall.Config {
	return voicecall.Config{
		DeploymentURL:    ctx.DeploymentURL,
		DeploymentID:     ctx.DeploymentID,
		Protocol:         voicecall.ProtocolKind(ctx.Protocol),
		Headers:          ctx.HandshakeHeaders(),
		Schema:           ctx.Schema,
		CustomParameters: ctx.Extra,
	}
}

// buildCallConfig layers the profile file, the context, and flags. The
// context decides where to call; the profile tunes how.
func buildCallConfig(ctx *cli.Context, profile string) (voicecall.Config, error) {
	var cfg voicecall.Config
	if profile != "" {
		if err := cli.LoadRequest(profile, &cfg); err != nil {
			return cfg, fmt.Errorf("load call profile: %w", err)
		}
	}
	base := contextConfig(ctx)
	cfg.DeploymentURL = base.DeploymentURL
	cfg.DeploymentID = base.DeploymentID
	if base.Protocol != "" {
		cfg.Protocol = base.Protocol
	}
	if base.Schema != "" {
		cfg.Schema = base.Schema
	}
	cfg.Headers = merge(cfg.Headers, base.Headers)
	cfg.CustomParameters = merge(cfg.CustomParameters, base.CustomParameters)

	if callOpts.protocol != "" {
		cfg.Protocol = voicecall.ProtocolKind(callOpts.protocol)
	}
	if callOpts.sampleRate != 0 {
		cfg.SampleRate = callOpts.sampleRate
	}
	if callOpts.resampler != "" {
		cfg.Resampler = callOpts.resampler
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = build.UserAgent()
	}
	return cfg, cfg.Validate()
}

func merge(dst, src map[string]string) map[string]string {
	if len(src) == 0 {
		return dst
	}
	if dst == nil {
		dst = make(map[string]string, len(src))
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// microphone opens the default input device.
var microphone = voicecall.MicrophoneFunc(func(ctx context.Context) (voicecall.Capture, error) {
	c, err := portaudio.OpenCapture(20 * time.Millisecond)
	if err != nil {
		if errors.Is(err, portaudio.ErrDeviceUnavailable) {
			return nil, fmt.Errorf("%w: %v", voicecall.ErrPermissionDenied, err)
		}
		return nil, err
	}
	slog.Debug("microphone open", "rate", c.SampleRate())
	return c, nil
})

// speaker plays through the default output device.
type speaker struct{}

func (speaker) Open(ctx context.Context, format pcm.Format, src io.Reader) (io.Closer, error) {
	return portaudio.Play(format, src, 20*time.Millisecond)
}

func runCall(cmd *cobra.Command, args []string) error {
	cctx, err := getContext()
	if err != nil {
		return err
	}
	cfg, err := buildCallConfig(cctx, callOpts.profile)
	if err != nil {
		return err
	}

	ui := newCallUI(cctx.Name, callOpts.tui)
	logOut := ui.logWriter()
	if callOpts.saveLog {
		f, err := openCallLog()
		if err != nil {
			return err
		}
		defer f.Close()
		logOut = io.MultiWriter(logOut, f)
	}
	initLogger(logOut)
	if callOpts.tui {
		go func() {
			for range ui.logs.Channel() {
				ui.redraw()
			}
		}()
	}

	devs := voicecall.Devices{Microphone: microphone, Speaker: speaker{}}
	cbs := voicecall.Callbacks{
		OnConnectionStatusChanged: ui.state,
		OnFunctionCallStarted:     func(d json.RawMessage) { ui.event("function call", d) },
		OnFunctionCallResult:      func(d json.RawMessage) { ui.event("function result", d) },
	}
	if verbose {
		cbs.OnGenericMessage = func(d json.RawMessage) { ui.event("message", d) }
	}
	var dumped atomic.Int64
	if callOpts.dumpAudio != "" {
		f, err := os.Create(callOpts.dumpAudio)
		if err != nil {
			return err
		}
		defer f.Close()
		devs.Speaker = nil
		cbs.OnAudioChunkReceived = func(audio []byte) {
			n, _ := f.Write(audio)
			dumped.Add(int64(n))
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var line voicecall.Line
	started := time.Now()
	call, err := line.Dial(ctx, cfg, devs, cbs, voicecall.WithLogger(voicecall.DefaultLogger()))
	if err != nil {
		if call == nil {
			return err
		}
		return fmt.Errorf("call failed after %d attempt(s): %w", call.Attempts(), err)
	}
	call.SetMuted(callOpts.muted)
	ui.muted(call.Muted())

	go readCommands(os.Stdin, call, ui, stop)

	select {
	case <-ctx.Done():
	case <-call.Done():
	}
	line.Hangup()
	ui.close()

	cli.PrintInfo("Call %s lasted %s", call.StreamID(), cli.FormatDuration(time.Since(started)))
	if callOpts.dumpAudio != "" {
		cli.PrintInfo("Wrote %s of agent audio to %s", cli.FormatBytes(dumped.Load()), callOpts.dumpAudio)
	}
	if err := call.Err(); err != nil && !errors.Is(err, voicecall.ErrStopped) {
		return err
	}
	return nil
}

func openCallLog() (*os.File, error) {
	paths, err := cli.NewPaths(appName)
	if err != nil {
		return nil, err
	}
	path, err := paths.LogPath(time.Now().Format("20060102-150405") + ".log")
	if err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
}

// readCommands handles the interactive keys until stdin closes.
func readCommands(r io.Reader, call *voicecall.Call, ui *callUI, hangup func()) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		switch strings.TrimSpace(sc.Text()) {
		case "m", "mute":
			ui.muted(call.ToggleMute())
		case "h", "history":
			for _, ev := range call.FunctionHistory() {
				ui.event("history "+string(ev.Type), ev.Data)
			}
		case "q", "quit", "exit":
			hangup()
			return
		case "":
		default:
			ui.note("unknown command; use m, h or q")
		}
	}
}

// callUI prints call events either as plain lines or as a status frame
// redrawn in place.
type callUI struct {
	name string
	tui  bool
	logs *cli.LogWriter

	mu     sync.Mutex
	status string
	mute   bool
	events []string
}

func newCallUI(name string, tui bool) *callUI {
	return &callUI{name: name, tui: tui, logs: cli.NewLogWriter(200), status: "disconnected"}
}

func (u *callUI) logWriter() io.Writer {
	if u.tui {
		return u.logs
	}
	return os.Stderr
}

func (u *callUI) state(s voicecall.State) {
	u.mu.Lock()
	u.status = s.String()
	u.mu.Unlock()
	if !u.tui {
		cli.PrintInfo("Call %s", s)
	}
	u.redraw()
}

func (u *callUI) muted(m bool) {
	u.mu.Lock()
	u.mute = m
	u.mu.Unlock()
	if !u.tui {
		if m {
			cli.PrintWarning("Microphone muted")
		} else {
			cli.PrintInfo("Microphone live")
		}
	}
	u.redraw()
}

func (u *callUI) event(kind string, data json.RawMessage) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		v = string(data)
	}
	if jqQuery != "" {
		q, err := cli.Query(v, jqQuery)
		if err != nil {
			u.note(err.Error())
			return
		}
		v = q
	}
	b, _ := json.Marshal(v)
	u.note(kind + ": " + string(b))
}

func (u *callUI) note(text string) {
	u.mu.Lock()
	u.events = append(u.events, time.Now().Format("15:04:05 ")+text)
	if len(u.events) > 100 {
		u.events = u.events[len(u.events)-100:]
	}
	u.mu.Unlock()
	if !u.tui {
		fmt.Println(text)
	}
	u.redraw()
}

func (u *callUI) redraw() {
	if !u.tui {
		return
	}
	u.mu.Lock()
	status := u.status
	if u.mute {
		status += ", muted"
	}
	f := cli.Frame{
		Styles: cli.NewStyles(cli.DefaultTheme),
		Title:  "voicecall " + u.name,
		Status: status,
		Sections: []cli.Section{
			{Label: "Events", Lines: append([]string(nil), u.events...)},
			{Label: "Log", Lines: u.logs.Lines()},
		},
		Help: "m: mute  h: history  q: hang up",
	}
	u.mu.Unlock()
	fmt.Print("\033[H\033[2J" + f.Render(80, 24) + "\n")
}

func (u *callUI) close() {
	if u.tui {
		u.redraw()
		fmt.Println()
	}
}
