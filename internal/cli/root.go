// Package cli implements the catalogctl commands.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sternrassler/multiverse-catalog/internal/config"
	"github.com/Sternrassler/multiverse-catalog/internal/site"
	"github.com/Sternrassler/multiverse-catalog/pkg/logging"
)

// rootOptions holds the global flags and the state PersistentPreRunE builds.
type rootOptions struct {
	cfgFile string
	verbose bool
	noColor bool

	cfg *config.Config
}

// NewRootCommand builds the catalogctl command tree.
func NewRootCommand(version string) *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "catalogctl",
		Short: "Browse the Rick and Morty and Pokémon catalogs",
		Long: `catalogctl reads two public catalogs, the Rick and Morty characters and
the first generation Pokédex, through a shared response cache.

Example usage:
  catalogctl list rickandmorty         # Walk the full character catalog
  catalogctl show pokemon pikachu      # Show one Pokémon
  catalogctl search                    # Live search, one field=value per line
  catalogctl prewarm                   # Warm the cache for every detail entry
  catalogctl serve                     # Serve the JSON API`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.init()
		},
	}

	root.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "config file (default is ./catalog.yaml)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")
	root.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "disable colored output")

	root.AddCommand(
		newServeCommand(opts),
		newListCommand(opts),
		newShowCommand(opts),
		newSearchCommand(opts),
		newPrewarmCommand(opts),
	)

	return root
}

// Execute runs the command tree with os.Args.
func Execute(version string) error {
	return NewRootCommand(version).Execute()
}

func (o *rootOptions) init() error {
	cfg, err := config.Load(o.cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logCfg := cfg.LoggingSetup()
	if o.verbose {
		logCfg.Level = logging.LevelDebug
	}
	logging.Setup(logCfg)

	o.cfg = cfg
	return nil
}

func (o *rootOptions) app(ctx context.Context) (*App, error) {
	return NewApp(ctx, o.cfg)
}

func (o *rootOptions) printer(cmd *cobra.Command) *printer {
	return newPrinter(cmd.OutOrStdout(), cmd.ErrOrStderr(), !o.noColor)
}

// validDomain rejects domains outside site.Domains.
func validDomain(domain string) error {
	for _, d := range site.Domains {
		if d == domain {
			return nil
		}
	}
	return fmt.Errorf("%w: %q (want one of %v)", site.ErrUnknownDomain, domain, site.Domains)
}

func completeDomains(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return site.Domains, cobra.ShellCompDirectiveNoFileComp
}
