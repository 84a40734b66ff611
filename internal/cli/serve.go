package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Sternrassler/multiverse-catalog/internal/server"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the catalog JSON API",
		Long: `Serve the catalogs over HTTP until interrupted.

Routes:
  GET /health
  GET /metrics
  GET /api/rickandmorty[/:id | /search?name=&status=&gender=&species=]
  GET /api/pokemon[/:name]
  GET /api/static-params/:domain`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			app, err := opts.app(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			if addr == "" {
				addr = opts.cfg.Server.Addr
			}
			srv := server.New(app.Characters, app.Pokedex, app.Generator)
			return srv.Run(ctx, addr, opts.cfg.Server.ShutdownTimeout)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}
