package commands

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/haivivi/callkit/pkg/cli"
	"github.com/haivivi/callkit/pkg/voicecall"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage deployment contexts",
	Long: `Manage deployment contexts.

A context names one voice agent deployment: its URL, deployment id, wire
protocol and credentials.

Configuration is stored in ~/.callkit/voicecall/config.yaml`,
}

var configAddContextCmd = &cobra.Command{
	Use:   "add-context <name>",
	Short: "Add or replace a context",
	Long: `Add or replace a context with the specified name.

Example:
  voicecall config add-context prod --url wss://agent.example.com --id dep-1
  voicecall config add-context legacy --url https://calls.example.com --id dep-2 \
    --protocol telephony --param caller=+15550100`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		url, _ := flags.GetString("url")
		id, _ := flags.GetString("id")
		protocol, _ := flags.GetString("protocol")
		apiKey, _ := flags.GetString("api-key")
		schema, _ := flags.GetString("schema")
		headers, _ := flags.GetStringToString("header")
		params, _ := flags.GetStringToString("param")

		if apiKey == "" {
			apiKey = os.Getenv("VOICECALL_API_KEY")
		}
		ctx := &cli.Context{
			DeploymentURL: url,
			DeploymentID:  id,
			Protocol:      protocol,
			APIKey:        apiKey,
			Schema:        schema,
			Headers:       headers,
			Extra:         params,
		}
		// Catch typos before they are saved.
		if _, err := contextConfig(ctx).URL(); err != nil {
			return err
		}

		cfg, err := getWritableConfig()
		if err != nil {
			return err
		}
		if err := cfg.AddContext(args[0], ctx); err != nil {
			return err
		}
		cli.PrintSuccess("Context %q added", args[0])
		return nil
	},
}

var configDeleteContextCmd = &cobra.Command{
	Use:   "delete-context <name>",
	Short: "Delete a context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getWritableConfig()
		if err != nil {
			return err
		}
		if err := cfg.DeleteContext(args[0]); err != nil {
			return err
		}
		cli.PrintSuccess("Context %q deleted", args[0])
		return nil
	},
}

var configUseContextCmd = &cobra.Command{
	Use:   "use-context <name>",
	Short: "Set the current context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getWritableConfig()
		if err != nil {
			return err
		}
		if err := cfg.UseContext(args[0]); err != nil {
			return err
		}
		cli.PrintSuccess("Switched to context %q", args[0])
		return nil
	},
}

var configGetContextCmd = &cobra.Command{
	Use:   "get-context",
	Short: "Display the current context",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfig()
		if err != nil {
			return err
		}
		if cfg.CurrentContext == "" {
			fmt.Println("No current context set")
			return nil
		}
		fmt.Println(cfg.CurrentContext)
		return nil
	},
}

var configListContextsCmd = &cobra.Command{
	Use:     "list-contexts",
	Aliases: []string{"get-contexts"},
	Short:   "List all contexts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfig()
		if err != nil {
			return err
		}
		if len(cfg.Contexts) == 0 {
			fmt.Println("No contexts configured")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "CURRENT\tNAME\tPROTOCOL\tURL")
		for _, name := range cfg.ListContexts() {
			ctx := cfg.Contexts[name]
			current := ""
			if name == cfg.CurrentContext {
				current = "*"
			}
			url, err := contextConfig(ctx).URL()
			if err != nil {
				url = "(" + err.Error() + ")"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", current, name, contextConfig(ctx).Protocol, url)
		}
		return w.Flush()
	},
}

var configViewCmd = &cobra.Command{
	Use:   "view [name]",
	Short: "Show a context with secrets masked",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := contextName
		if len(args) == 1 {
			name = args[0]
		}
		cfg, err := getConfig()
		if err != nil {
			return err
		}
		ctx, err := cfg.ResolveContext(name)
		if err != nil {
			return err
		}
		shown := *ctx
		shown.APIKey = cli.MaskAPIKey(ctx.APIKey)
		shown.Headers = make(map[string]string, len(ctx.Headers))
		for k, v := range ctx.Headers {
			if strings.EqualFold(k, "Authorization") {
				v = cli.MaskAPIKey(v)
			}
			shown.Headers[k] = v
		}
		return outputResult(shown)
	},
}

func init() {
	f := configAddContextCmd.Flags()
	f.String("url", "", "deployment base URL (ws, wss, http or https)")
	f.String("id", "", "deployment id")
	f.String("protocol", string(voicecall.ProtocolFrames), "wire protocol: frames or telephony")
	f.String("api-key", "", "bearer token for the handshake (default $VOICECALL_API_KEY)")
	f.String("schema", "", "frames schema: .proto file or descriptor set, path or URL")
	f.StringToString("header", nil, "extra handshake header (key=value)")
	f.StringToString("param", nil, "custom parameter sent with the start message (key=value)")
	configAddContextCmd.MarkFlagRequired("url")

	configCmd.AddCommand(configAddContextCmd)
	configCmd.AddCommand(configDeleteContextCmd)
	configCmd.AddCommand(configUseContextCmd)
	configCmd.AddCommand(configGetContextCmd)
	configCmd.AddCommand(configListContextsCmd)
	configCmd.AddCommand(configViewCmd)
}
