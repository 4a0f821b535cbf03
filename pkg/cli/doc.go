// Package cli provides configuration and output helpers for the rtvoice
// command-line tool.
//
// Configuration is stored in ~/.giztoy/rtvoice/config.yaml and holds
// multiple named contexts, similar to kubectl. A context says where the
// session credential comes from (a mediator endpoint or an API key) and
// which model, voice and transport to use.
//
//	cfg, err := cli.LoadConfig("rtvoice")
//	ctx, err := cfg.ResolveContext(name)
//	cli.NewPrinter(false).Result(ctx.Redacted())
package cli
