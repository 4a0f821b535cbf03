package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/haivivi/rtvoice/pkg/cli"
)

const appName = "rtvoice"

var (
	// Global flags
	cfgFile     string
	contextName string
	outputJSON  bool
	verbose     bool

	// Global configuration
	globalConfig *cli.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "rtvoice",
	Short: "Realtime voice conversation CLI",
	Long: `rtvoice - talk to a realtime voice model from the terminal.

The microphone is captured, processed and streamed to the model over
WebRTC (default) or a WebSocket. The session credential comes from your
own mediator endpoint, or is minted with an API key on trusted machines.

Configuration is stored in ~/.giztoy/rtvoice/ and supports multiple contexts,
similar to kubectl's context management.

Examples:
  # Use your backend to hand out ephemeral credentials
  rtvoice config add-context dev --mediator-url https://example.com/realtime/session

  # Or mint them locally
  rtvoice config add-context local --api-key sk-xxxxx --transport websocket

  # Start talking
  rtvoice -c dev chat
`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Command returns the root cobra command for mounting into a parent CLI.
func Command() *cobra.Command {
	return rootCmd
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "", "", "config file (default is ~/.giztoy/rtvoice/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&contextName, "context", "c", "", "context name to use")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output as JSON (for piping)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(chatCmd)
}

func initConfig() {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})))

	var err error
	globalConfig, err = cli.LoadConfigWithPath(appName, cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %s config: %v\n", appName, err)
	}
}

// getConfig returns the global configuration
func getConfig() (*cli.Config, error) {
	if globalConfig == nil {
		return nil, fmt.Errorf("configuration not initialized")
	}
	return globalConfig, nil
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
			return nil, fmt.Errorf("no context specified. Use -c flag or set a default context with 'rtvoice config use-context'")
		}
		return nil, err
	}
	return ctx, nil
}

// printer returns the result printer for the --json setting.
func printer() *cli.Printer {
	return cli.NewPrinter(outputJSON)
}

// outputResult prints result as YAML, or JSON with --json.
func outputResult(result any) error {
	return printer().Result(result)
}
	return cli.Output(result, cli.OutputOptions{Format: format})
}
