package cli

import (
	"os"
	"path/filepath"
)

// Paths locates the files of an app under ~/.callkit/<app>.
type Paths struct {
	AppName string
	HomeDir string
}

// NewPaths creates a new Paths instance for the given app
func NewPaths(appName string) (*Paths, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return &Paths{AppName: appName, HomeDir: home}, nil
}

// AppDir returns the app-specific directory (~/.callkit/<app>)
func (p *Paths) AppDir() string {
	return filepath.Join(p.HomeDir, DefaultBaseDir, p.AppName)
}

// ConfigFile returns the config file path (~/.callkit/<app>/config.yaml)
func (p *Paths) ConfigFile() string {
	return filepath.Join(p.AppDir(), DefaultConfigFile)
}

// LogDir returns the directory of call logs (~/.callkit/<app>/logs)
func (p *Paths) LogDir() string {
	return filepath.Join(p.AppDir(), "logs")
}

// LogPath returns a path within the log directory, creating the directory.
func (p *Paths) LogPath(name string) (string, error) {
	if err := os.MkdirAll(p.LogDir(), 0755); err != nil {
		return "", err
	}
	return filepath.Join(p.LogDir(), name), nil
}
