package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/goccy/go-yaml"
)

const (
	// DefaultBaseDir is the base configuration directory name
	DefaultBaseDir = ".callkit"
	// DefaultConfigFile is the default configuration filename
	DefaultConfigFile = "config.yaml"
)

// Config is the context file of a CLI app: named deployments, one of
// which is current.
type Config struct {
	// AppName is the application name (e.g., "voicecall")
	AppName string `json:"-" yaml:"-"`

	CurrentContext string              `json:"current_context,omitempty" yaml:"current_context,omitempty"`
	Contexts       map[string]*Context `json:"contexts,omitempty" yaml:"contexts,omitempty"`

	configPath string
}

// Context is one voice agent deployment.
type Context struct {
	Name string `json:"name" yaml:"name"`

	// DeploymentURL is the ws(s):// or http(s):// base URL of the agent.
	DeploymentURL string `json:"deployment_url" yaml:"deployment_url"`
	DeploymentID  string `json:"deployment_id,omitempty" yaml:"deployment_id,omitempty"`
	// Protocol is "frames" or "telephony".
	Protocol string `json:"protocol,omitempty" yaml:"protocol,omitempty"`

	// APIKey is sent as a bearer token on the WebSocket handshake.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	// Schema overrides the built-in frames schema (.proto or descriptor set).
	Schema  string            `json:"schema,omitempty" yaml:"schema,omitempty"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`

	// Extra stores custom parameters sent with the start message.
	Extra map[string]string `json:"extra,omitempty" yaml:"extra,omitempty"`
}

// LoadConfig loads or creates configuration for the specified app
func LoadConfig(appName string) (*Config, error) {
	return LoadConfigWithPath(appName, "")
}

// LoadConfigWithPath loads configuration from a custom path, creating an
// empty file when there is none.
func LoadConfigWithPath(appName, customPath string) (*Config, error) {
	cfg, err := LoadConfigIfExists(appName, customPath)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(cfg.configPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}
	return cfg, cfg.Save()
}

// LoadConfigIfExists loads configuration without creating anything. When the
// file is missing it returns an empty Config together with an error wrapping
// os.ErrNotExist.
func LoadConfigIfExists(appName, customPath string) (*Config, error) {
	configPath := customPath
	if configPath == "" {
		paths, err := NewPaths(appName)
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = paths.ConfigFile()
	}

	cfg := &Config{
		AppName:    appName,
		Contexts:   make(map[string]*Context),
		configPath: configPath,
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, fmt.Errorf("config %s: %w", configPath, os.ErrNotExist)
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Contexts == nil {
		cfg.Contexts = make(map[string]*Context)
	}
	for name, ctx := range cfg.Contexts {
		ctx.Name = name
	}
	cfg.AppName = appName
	cfg.configPath = configPath
	return cfg, nil
}

// Save saves the configuration to disk
func (c *Config) Save() error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(c.configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Path returns the config file path
func (c *Config) Path() string {
	return c.configPath
}

// AddContext adds or replaces a context. The first context added becomes
// current.
func (c *Config) AddContext(name string, ctx *Context) error {
	if ctx.DeploymentURL == "" {
		return fmt.Errorf("context %q has no deployment url", name)
	}
	ctx.Name = name
	c.Contexts[name] = ctx
	if c.CurrentContext == "" {
		c.CurrentContext = name
	}
	return c.Save()
}

// DeleteContext removes a context
func (c *Config) DeleteContext(name string) error {
	if _, ok := c.Contexts[name]; !ok {
		return fmt.Errorf("context %q not found", name)
	}
	delete(c.Contexts, name)
	if c.CurrentContext == name {
		c.CurrentContext = ""
	}
	return c.Save()
}

// UseContext sets the current context
func (c *Config) UseContext(name string) error {
	if _, ok := c.Contexts[name]; !ok {
		return fmt.Errorf("context %q not found", name)
	}
	c.CurrentContext = name
	return c.Save()
}

// ResolveContext returns the context by name, or current context if name is empty
func (c *Config) ResolveContext(name string) (*Context, error) {
	if name == "" {
		if c.CurrentContext == "" {
			return nil, fmt.Errorf("no current context set")
		}
		name = c.CurrentContext
	}
	ctx, ok := c.Contexts[name]
	if !ok {
		return nil, fmt.Errorf("context %q not found", name)
	}
	return ctx, nil
}

// ListContexts returns all context names in order.
func (c *Config) ListContexts() []string {
	names := make([]string, 0, len(c.Contexts))
	for name := range c.Contexts {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// GetExtra returns an extra value for the context
func (ctx *Context) GetExtra(key string) string {
	return ctx.Extra[key]
}

// SetExtra sets an extra value for the context
func (ctx *Context) SetExtra(key, value string) {
	if ctx.Extra == nil {
		ctx.Extra = make(map[string]string)
	}
	ctx.Extra[key] = value
}

// HandshakeHeaders returns Headers plus the bearer token, if any.
func (ctx *Context) HandshakeHeaders() map[string]string {
	h := make(map[string]string, len(ctx.Headers)+1)
	for k, v := range ctx.Headers {
		h[k] = v
	}
	if ctx.APIKey != "" {
		h["Authorization"] = "Bearer " + ctx.APIKey
	}
	return h
}

// MaskAPIKey masks the API key for display
func MaskAPIKey(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}
