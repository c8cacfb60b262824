package commands

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/five82/plume/internal/app"
	"github.com/five82/plume/internal/config"
)

// Version is set at build time with -ldflags "-X".
var Version = "dev"

type rootOptions struct {
	configPath string
	baseURL    string
	credential string
	debug      bool
}

// appOptions maps the persistent flags onto app.Options. console receives a
// copy of the log when --debug is set.
func (o *rootOptions) appOptions(console io.Writer) app.Options {
	opts := app.Options{
		ConfigPath: o.configPath,
		Overrides:  config.Overrides{BaseURL: o.baseURL, Credential: o.credential},
	}
	if o.debug {
		opts.LogLevel = "debug"
		opts.Console = console
	}
	return opts
}

func (o *rootOptions) bootstrap(cmd *cobra.Command) (*app.Env, error) {
	return app.Bootstrap(o.appOptions(cmd.ErrOrStderr()))
}

// NewRootCmd builds the plume command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "plume [flags]",
		Short: "Explore Parseable logs from the terminal",
		Long: `plume is a terminal client for Parseable log streams.

Run without a subcommand to open the interactive explorer. The subcommands
run a single request and print the result.

Connection settings come from ~/.config/plume/config.toml, then
PARSEABLE_BASE_URL and PARSEABLE_B64_CRED, then the flags below.

Examples:
  plume                                         # Interactive explorer
  plume datasets                                # List datasets
  plume schema web                              # Print a dataset schema as JSON
  plume query web --filter timeout --since 15m  # Text search over the last 15 minutes
  plume query web --filter "status >= 500" -o csv
  plume export web --filter error --out web.csv.gz`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.Run(cmd.Context(), opts.appOptions(nil))
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "",
		"Config file path (default ~/.config/plume/config.toml)")
	pf.StringVar(&opts.baseURL, "base-url", "",
		"Parseable base URL (overrides config and "+config.EnvBaseURL+")")
	pf.StringVar(&opts.credential, "credential", "",
		"Base64 user:password credential (overrides config and "+config.EnvCredential+")")
	pf.BoolVar(&opts.debug, "debug", false,
		"Enable debug logging (mirrored to stderr for subcommands)")

	cmd.AddCommand(
		newDatasetsCmd(opts),
		newSchemaCmd(opts),
		newQueryCmd(opts),
		newExportCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// Execute runs the command tree with ctx.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}
