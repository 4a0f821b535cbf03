package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haivivi/rtvoice/pkg/cli"
	"github.com/haivivi/rtvoice/pkg/realtime"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
	Long: `Manage rtvoice configuration.

Configuration is stored in ~/.giztoy/rtvoice/config.yaml.
Multiple contexts can be defined for different accounts or environments.`,
}

var configAddContextCmd = &cobra.Command{
	Use:   "add-context <name>",
	Short: "Add a new context",
	Long: `Add a new context. Either --mediator-url or --api-key is required.

Examples:
  rtvoice config add-context dev --mediator-url https://example.com/session
  rtvoice config add-context dev --mediator-url https://example.com/session --token-path .token
  rtvoice config add-context local --api-key sk-xxxxx --voice verse --transport websocket`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		f := cmd.Flags()
		ctx := &cli.Context{Name: name}
		ctx.APIKey, _ = f.GetString("api-key")
		ctx.MediatorURL, _ = f.GetString("mediator-url")
		ctx.TokenPath, _ = f.GetString("token-path")
		ctx.BaseURL, _ = f.GetString("base-url")
		ctx.Model, _ = f.GetString("model")
		ctx.Voice, _ = f.GetString("voice")
		ctx.Instructions, _ = f.GetString("instructions")
		ctx.Transport, _ = f.GetString("transport")
		ctx.PreOpen, _ = f.GetString("pre-open")
		ctx.ICEServers, _ = f.GetStringSlice("ice-server")
		ctx.Timeout, _ = f.GetInt("timeout")

		if _, err := realtime.ParseTransportKind(ctx.Transport); err != nil {
			return err
		}
		if _, err := realtime.ParsePreOpenPolicy(ctx.PreOpen); err != nil {
			return err
		}

		cfg, err := getConfig()
		if err != nil {
			return err
		}
		if err := cfg.AddContext(name, ctx); err != nil {
			return err
		}

		printer().Success("Context '%s' added successfully", name)
		return nil
	},
}

var configDeleteContextCmd = &cobra.Command{
	Use:   "delete-context <name>",
	Short: "Delete a context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfig()
		if err != nil {
			return err
		}
		if err := cfg.DeleteContext(args[0]); err != nil {
			return err
		}
		printer().Success("Context '%s' deleted", args[0])
		return nil
	},
}

var configUseContextCmd = &cobra.Command{
	Use:   "use-context <name>",
	Short: "Set the default context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfig()
		if err != nil {
			return err
		}
		if err := cfg.UseContext(args[0]); err != nil {
			return err
		}
		printer().Success("Switched to context '%s'", args[0])
		return nil
	},
}

var configGetContextCmd = &cobra.Command{
	Use:   "get-context [name]",
	Short: "Show a context (default: the current one)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfig()
		if err != nil {
			return err
		}
		name := cfg.CurrentContext
		if len(args) == 1 {
			name = args[0]
		}
		if name == "" {
			printer().Info("No current context set")
			return nil
		}
		ctx, err := cfg.GetContext(name)
		if err != nil {
			return err
		}
		return outputResult(ctx.Redacted())
	},
}

var configListContextsCmd = &cobra.Command{
	Use:   "list-contexts",
	Short: "List all contexts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfig()
		if err != nil {
			return err
		}
		names := cfg.ListContexts()
		if len(names) == 0 {
			printer().Info("No contexts configured")
			return nil
		}
		for _, name := range names {
			marker := "  "
			if name == cfg.CurrentContext {
				marker = "* "
			}
			fmt.Printf("%s%s\n", marker, name)
		}
		return nil
	},
}

var configViewCmd = &cobra.Command{
	Use:   "view",
	Short: "View full configuration (API keys masked)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfig()
		if err != nil {
			return err
		}
		view := struct {
			CurrentContext string                  `yaml:"current_context,omitempty" json:"current_context,omitempty"`
			Contexts       map[string]*cli.Context `yaml:"contexts,omitempty" json:"contexts,omitempty"`
		}{
			CurrentContext: cfg.CurrentContext,
			Contexts:       make(map[string]*cli.Context, len(cfg.Contexts)),
		}
		for name, ctx := range cfg.Contexts {
			view.Contexts[name] = ctx.Redacted()
		}
		return outputResult(view)
	},
}

func init() {
	f := configAddContextCmd.Flags()
	f.StringP("api-key", "k", "", "API key for minting ephemeral credentials locally")
	f.StringP("mediator-url", "m", "", "endpoint returning an ephemeral credential")
	f.String("token-path", "", "jq path of the token in the mediator response (default .client_secret.value)")
	f.StringP("base-url", "u", "", "realtime HTTP endpoint (default "+realtime.DefaultHTTPURL+")")
	f.String("model", "", "model (default "+realtime.DefaultModel+")")
	f.String("voice", "", "output voice")
	f.String("instructions", "", "system instructions")
	f.String("transport", "", "webrtc or websocket (default webrtc)")
	f.String("pre-open", "", "messages sent before the channel opens: drop or queue (default drop)")
	f.StringSlice("ice-server", nil, "STUN/TURN URL, repeatable")
	f.Int("timeout", 0, "session init timeout in seconds")

	configCmd.AddCommand(configAddContextCmd)
	configCmd.AddCommand(configDeleteContextCmd)
	configCmd.AddCommand(configUseContextCmd)
	configCmd.AddCommand(configGetContextCmd)
	configCmd.AddCommand(configListContextsCmd)
	configCmd.AddCommand(configViewCmd)
}
