package cli

import (
	"errors"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sternrassler/multiverse-catalog/internal/site"
)

func newPrewarmCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prewarm [domain...]",
		Short: "Warm the cache for every detail entry",
		Long: `Walk each catalog and fetch every detail entry once, so later reads are
answered from the cache. Without arguments every domain is warmed.

Examples:
  catalogctl prewarm
  catalogctl prewarm pokemon`,
		ValidArgsFunction: completeDomains,
		RunE: func(cmd *cobra.Command, args []string) error {
			domains := args
			if len(domains) == 0 {
				domains = site.Domains
			}
			for _, d := range domains {
				if err := validDomain(d); err != nil {
					return err
				}
			}

			app, err := opts.app(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			p := opts.printer(cmd)
			rows := make([][]string, 0, len(domains))
			var errs []error
			for _, d := range domains {
				report, err := app.Generator.Prewarm(cmd.Context(), d)
				if err != nil {
					p.Warning("%s: %v", d, err)
					errs = append(errs, err)
				}
				rows = append(rows, []string{
					p.Bold(d),
					strconv.Itoa(report.Entries),
					strconv.Itoa(report.Warmed),
					strconv.Itoa(report.NotFound),
					strconv.Itoa(report.Failed),
					strconv.FormatBool(report.Complete),
					report.Duration.Round(time.Millisecond).String(),
				})
			}

			if err := p.Table([]string{"DOMAIN", "ENTRIES", "WARMED", "NOT FOUND", "FAILED", "COMPLETE", "DURATION"}, rows); err != nil {
				return err
			}
			return errors.Join(errs...)
		},
	}
	return cmd
}
