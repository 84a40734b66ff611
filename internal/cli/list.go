package cli

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Sternrassler/multiverse-catalog/internal/site"
	"github.com/Sternrassler/multiverse-catalog/pkg/pagination"
	"github.com/Sternrassler/multiverse-catalog/pkg/pokemon"
	"github.com/Sternrassler/multiverse-catalog/pkg/rickandmorty"
)

func newListCommand(opts *rootOptions) *cobra.Command {
	var (
		jsonOutput bool
		strict     bool
	)

	cmd := &cobra.Command{
		Use:     "list <domain>",
		Aliases: []string{"ls"},
		Short:   "Walk a full catalog",
		Long: `Walk every page of a catalog and print its entries in upstream order.

A walk that stops early prints the entries gathered so far and a warning;
with --strict it fails instead.

Examples:
  catalogctl list rickandmorty
  catalogctl list pokemon --json`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeDomains,
		RunE: func(cmd *cobra.Command, args []string) error {
			domain := args[0]
			if err := validDomain(domain); err != nil {
				return err
			}

			app, err := opts.app(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			p := opts.printer(cmd)
			switch domain {
			case site.DomainRickAndMorty:
				res := app.Characters.Characters(cmd.Context())
				if err := renderList(cmd, p, res, jsonOutput, characterRows); err != nil {
					return err
				}
				return partialOutcome(p, res, rickandmorty.ErrorMessage, strict)
			default:
				res := app.Pokedex.Pokedex(cmd.Context())
				if err := renderList(cmd, p, res, jsonOutput, pokemonRows); err != nil {
					return err
				}
				return partialOutcome(p, res, pokemon.ErrorMessage, strict)
			}
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	cmd.Flags().BoolVar(&strict, "strict", false, "fail when the catalog is incomplete")
	return cmd
}

func renderList[T any](cmd *cobra.Command, p *printer, res pagination.Result[T], jsonOutput bool, rows func([]T) ([]string, [][]string)) error {
	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res.Items)
	}
	if len(res.Items) == 0 {
		return nil
	}
	headers, body := rows(res.Items)
	return p.Table(headers, body)
}

// partialOutcome reports an incomplete walk.
func partialOutcome[T any](p *printer, res pagination.Result[T], message string, strict bool) error {
	if res.Complete {
		p.Success("%d entries from %d pages", len(res.Items), res.Pages)
		return nil
	}
	p.Warning("%s Showing %d entries gathered before the failure.", message, len(res.Items))
	if strict || len(res.Items) == 0 {
		return res.Err()
	}
	return nil
}

func characterRows(items []rickandmorty.Character) ([]string, [][]string) {
	rows := make([][]string, 0, len(items))
	for _, c := range items {
		rows = append(rows, []string{strconv.Itoa(c.ID), c.Name, c.Status, c.Species, c.Gender})
	}
	return []string{"ID", "NAME", "STATUS", "SPECIES", "GENDER"}, rows
}

func pokemonRows(items []pokemon.Entry) ([]string, [][]string) {
	rows := make([][]string, 0, len(items))
	for _, e := range items {
		rows = append(rows, []string{fmt.Sprintf("#%03d", e.ID), e.Name})
	}
	return []string{"NO", "NAME"}, rows
}
