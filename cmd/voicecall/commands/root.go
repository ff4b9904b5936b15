package commands

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/haivivi/callkit/pkg/cli"
)

const appName = "voicecall"

var (
	// Global flags
	cfgFile     string
	contextName string
	outputFile  string
	outputJSON  bool
	jqQuery     string
	verbose     bool

	globalConfig *cli.Config
)

var rootCmd = &cobra.Command{
	Use:   "voicecall",
	Short: "Full-duplex voice calls with a voice agent",
	Long: `voicecall - talk to a voice agent deployment from the terminal.

The microphone is streamed to the agent while its audio is played back
gaplessly. Contexts store deployments in ~/.callkit/voicecall/config.yaml,
similar to kubectl's context management.

Examples:
  # Add a deployment and call it
  voicecall config add-context prod --url wss://agent.example.com --id dep-1
  voicecall call

  # Call a telephony-style deployment with a call profile
  voicecall -c legacy call -f profile.yaml

  # Pick the default input device
  voicecall devices --json --jq '.[] | select(.is_default_input)'`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		initLogger(os.Stderr)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.callkit/voicecall/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&contextName, "context", "c", "", "context name to use")
	rootCmd.PersistentFlags().StringVarP(&outputFile, "output", "o", "", "output file (default: stdout)")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output as JSON (for piping)")
	rootCmd.PersistentFlags().StringVar(&jqQuery, "jq", "", "jq expression applied to the output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(callCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(versionCmd)
}

// configLoadErr stores the error from loading the config for deferred
// reporting, so that commands like 'voicecall version' always work.
var configLoadErr error

func initConfig() {
	cfg, err := cli.LoadConfigIfExists(appName, cfgFile)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		configLoadErr = err
		return
	}
	globalConfig = cfg
}

// getConfig returns the loaded configuration.
func getConfig() (*cli.Config, error) {
	if globalConfig == nil {
		if configLoadErr != nil {
			return nil, fmt.Errorf("config not available: %w", configLoadErr)
		}
		return nil, fmt.Errorf("configuration not initialized")
	}
	return globalConfig, nil
}

// getWritableConfig returns the configuration, creating the file if needed.
func getWritableConfig() (*cli.Config, error) {
	if _, err := getConfig(); err != nil {
		return nil, err
	}
	cfg, err := cli.LoadConfigWithPath(appName, cfgFile)
	if err != nil {
		return nil, err
	}
	globalConfig = cfg
	return cfg, nil
}

// getContext returns the context configuration to use
func getContext() (*cli.Context, error) {
	cfg, err := getConfig()
	if err != nil {
		return nil, err
	}
	ctx, err := cfg.ResolveContext(contextName)
	if err != nil {
		if contextName == "" {
			return nil, fmt.Errorf("no context specified. Use -c flag or set a default context with 'voicecall config use-context'")
		}
		return nil, err
	}
	return ctx, nil
}

func initLogger(w io.Writer) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

// outputResult outputs the result using cli package
func outputResult(result any) error {
	format := cli.FormatYAML
	if outputJSON {
		format = cli.FormatJSON
	}
	return cli.Output(result, cli.OutputOptions{
		Format: format,
		File:   outputFile,
		Query:  jqQuery,
	})
}
