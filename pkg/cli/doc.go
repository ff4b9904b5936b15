// Package cli provides the command-line plumbing of the voicecall tool.
//
// This package includes:
//   - Context management: named deployments in ~/.callkit/<app>/config.yaml,
//     one of which is current, similar to kubectl
//   - Output formatting (YAML, JSON, raw) with optional jq filtering
//   - Call profile loading (YAML/JSON)
//   - A framed terminal status view and a log capture writer
//
// Example usage:
//
//	cfg, err := cli.LoadConfig("voicecall")
//	ctx, err := cfg.ResolveContext("")
//
//	cli.Output(devices, cli.OutputOptions{
//	    Format: cli.FormatJSON,
//	    Query:  ".[] | select(.is_default_input)",
//	})
package cli
