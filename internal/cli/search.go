package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sternrassler/multiverse-catalog/pkg/rickandmorty"
	"github.com/Sternrassler/multiverse-catalog/pkg/search"
)

func newSearchCommand(opts *rootOptions) *cobra.Command {
	var settle time.Duration

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Live character search",
		Long: `Read filter edits from stdin, one per line, and print results once the
input has been quiet for 500ms. Each edit replaces one field:

  name=rick
  status=alive        (alive, dead, unknown)
  gender=female       (female, male, genderless, unknown)
  species=human
  name=               (clears one field)
  clear               (clears every field)
  retry               (repeats a failed search)

Only the newest search is shown; answers to superseded filters are dropped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.app(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			ctrl := search.NewController[rickandmorty.Character](app.Characters)
			defer ctrl.Close()

			return runSearch(cmd.Context(), ctrl, cmd.InOrStdin(), opts.printer(cmd), settle)
		},
	}

	cmd.Flags().DurationVar(&settle, "settle", 10*time.Second, "how long to wait for the last search after input ends")
	return cmd
}

// runSearch feeds input lines into ctrl and renders every settled state. It
// returns when input ends and the last search has settled, or after settle.
func runSearch(ctx context.Context, ctrl *search.Controller[rickandmorty.Character], in io.Reader, p *printer, settle time.Duration) error {
	updates, unsubscribe := ctrl.Subscribe()
	defer unsubscribe()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	var (
		deadline <-chan time.Time
		rendered uint64
		eof      bool
	)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case line, ok := <-lines:
			if !ok {
				if s := ctrl.State(); settled(s) && s.Generation == rendered {
					return nil
				}
				eof, lines = true, nil
				deadline = time.After(settle)
				continue
			}
			if err := applyEdit(ctrl, line); err != nil {
				p.Warning("%v", err)
			}

		case s, ok := <-updates:
			if !ok {
				return nil
			}
			if settled(s) && s.Generation != rendered {
				rendered = s.Generation
				if err := renderSearch(p, s); err != nil {
					return err
				}
			}
			if eof && settled(s) {
				return nil
			}

		case <-deadline:
			return fmt.Errorf("search did not settle within %s", settle)
		}
	}
}

// applyEdit interprets one input line.
func applyEdit(ctrl *search.Controller[rickandmorty.Character], line string) error {
	line = strings.TrimSpace(line)
	switch line {
	case "":
		return nil
	case "clear":
		return ctrl.Clear()
	case "retry":
		return ctrl.Retry()
	}

	field, value, ok := strings.Cut(line, "=")
	if !ok {
		return fmt.Errorf("expected field=value, got %q", line)
	}
	return ctrl.SetField(strings.TrimSpace(field), strings.TrimSpace(value))
}

func settled(s search.State[rickandmorty.Character]) bool {
	return s.Phase == search.PhaseIdle || s.Phase == search.PhaseResults || s.Phase == search.PhaseError
}

func renderSearch(p *printer, s search.State[rickandmorty.Character]) error {
	switch s.Phase {
	case search.PhaseError:
		p.Error("%s", s.Error)
		return nil
	case search.PhaseIdle:
		p.Info("Filter cleared.")
		return nil
	}

	p.Info("%d characters match %s", len(s.Results), s.Filter.Query().Encode())
	if len(s.Results) == 0 {
		return nil
	}
	_, rows := characterRows(s.Results)
	return p.Table([]string{"ID", "NAME", "STATUS", "SPECIES", "GENDER"}, rows)
}
