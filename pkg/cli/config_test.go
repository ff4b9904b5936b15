package cli

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestMaskAPIKey(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"", ""},
		{"1234", "****"},
		{"12345678", "********"},
		{"123456789", "1234*6789"},
		{"sk-1234567890abcdef", "sk-1***********cdef"},
	}

	for _, tt := range tests {
		if got := MaskAPIKey(tt.key); got != tt.want {
			t.Errorf("MaskAPIKey(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestLoadConfigIfExists_Missing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voicecall", "config.yaml")

	cfg, err := LoadConfigIfExists("voicecall", path)
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err = %v, want ErrNotExist", err)
	}
	if cfg == nil || len(cfg.Contexts) != 0 {
		t.Fatalf("cfg = %+v", cfg)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("config file created")
	}
}

func TestLoadConfigWithPath_Creates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voicecall", "config.yaml")

	cfg, err := LoadConfigWithPath("voicecall", path)
	if err != nil {
		t.Fatalf("LoadConfigWithPath error: %v", err)
	}
	if cfg.AppName != "voicecall" || cfg.Path() != path {
		t.Errorf("cfg = %q at %q", cfg.AppName, cfg.Path())
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("config file not created: %v", err)
	}
}

func TestConfig_Contexts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg, err := LoadConfigWithPath("voicecall", path)
	if err != nil {
		t.Fatal(err)
	}

	if err := cfg.AddContext("broken", &Context{}); err == nil {
		t.Error("context without url accepted")
	}
	if err := cfg.AddContext("prod", &Context{
		DeploymentURL: "wss://agent.example.com",
		DeploymentID:  "dep-1",
		APIKey:        "secret",
		Extra:         map[string]string{"caller": "+100"},
	}); err != nil {
		t.Fatal(err)
	}
	if err := cfg.AddContext("local", &Context{DeploymentURL: "ws://localhost:8080", Protocol: "telephony"}); err != nil {
		t.Fatal(err)
	}
	if cfg.CurrentContext != "prod" {
		t.Errorf("current = %q, want the first context", cfg.CurrentContext)
	}
	if got := cfg.ListContexts(); !slices.Equal(got, []string{"local", "prod"}) {
		t.Errorf("contexts = %v", got)
	}

	// Everything survives a reload.
	loaded, err := LoadConfigIfExists("voicecall", path)
	if err != nil {
		t.Fatal(err)
	}
	ctx, err := loaded.ResolveContext("")
	if err != nil {
		t.Fatal(err)
	}
	if ctx.Name != "prod" || ctx.DeploymentID != "dep-1" || ctx.GetExtra("caller") != "+100" {
		t.Errorf("ctx = %+v", ctx)
	}
	if h := ctx.HandshakeHeaders(); h["Authorization"] != "Bearer secret" {
		t.Errorf("headers = %v", h)
	}

	if err := loaded.UseContext("local"); err != nil {
		t.Fatal(err)
	}
	if err := loaded.UseContext("nope"); err == nil {
		t.Error("UseContext(nope) succeeded")
	}
	if err := loaded.DeleteContext("local"); err != nil {
		t.Fatal(err)
	}
	if loaded.CurrentContext != "" {
		t.Errorf("current = %q after deleting it", loaded.CurrentContext)
	}
	if _, err := loaded.ResolveContext(""); err == nil {
		t.Error("ResolveContext without current succeeded")
	}
	if err := loaded.DeleteContext("local"); err == nil {
		t.Error("deleted a missing context")
	}
}

func TestContext_SetExtra_NilMap(t *testing.T) {
	ctx := &Context{Name: "test"}
	if got := ctx.GetExtra("key"); got != "" {
		t.Errorf("GetExtra on nil map = %q", got)
	}
	ctx.SetExtra("key", "value")
	if got := ctx.GetExtra("key"); got != "value" {
		t.Errorf("GetExtra(key) = %q, want %q", got, "value")
	}
}

func TestPaths(t *testing.T) {
	home := t.TempDir()
	p := &Paths{AppName: "voicecall", HomeDir: home}

	if want := filepath.Join(home, DefaultBaseDir, "voicecall", DefaultConfigFile); p.ConfigFile() != want {
		t.Errorf("ConfigFile() = %q, want %q", p.ConfigFile(), want)
	}
	path, err := p.LogPath("call.log")
	if err != nil {
		t.Fatal(err)
	}
	if path != filepath.Join(p.LogDir(), "call.log") {
		t.Errorf("LogPath = %q", path)
	}
	if info, err := os.Stat(p.LogDir()); err != nil || !info.IsDir() {
		t.Errorf("log dir not created: %v", err)
	}
}
