package cli

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Sternrassler/multiverse-catalog/internal/site"
	"github.com/Sternrassler/multiverse-catalog/pkg/client"
	"github.com/Sternrassler/multiverse-catalog/pkg/pokemon"
	"github.com/Sternrassler/multiverse-catalog/pkg/rickandmorty"
)

func newShowCommand(opts *rootOptions) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <domain> <id>",
		Short: "Show one catalog entry",
		Long: `Fetch a single character by id or a single Pokémon by id or name.

Examples:
  catalogctl show rickandmorty 1
  catalogctl show pokemon pikachu --json`,
		Args:              cobra.ExactArgs(2),
		ValidArgsFunction: completeDomains,
		RunE: func(cmd *cobra.Command, args []string) error {
			domain, id := args[0], args[1]
			if err := validDomain(domain); err != nil {
				return err
			}

			app, err := opts.app(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			p := opts.printer(cmd)

			var (
				entity   any
				rows     [][]string
				notFound = rickandmorty.NotFoundMessage
				failure  = rickandmorty.ErrorMessage
			)
			if domain == site.DomainRickAndMorty {
				var c *rickandmorty.Character
				c, err = app.Characters.CharacterByID(cmd.Context(), id)
				if err == nil {
					entity, rows = c, characterDetail(c)
				}
			} else {
				notFound, failure = pokemon.NotFoundMessage, pokemon.ErrorMessage
				var pk *pokemon.Pokemon
				pk, err = app.Pokedex.Pokemon(cmd.Context(), id)
				if err == nil {
					entity, rows = pk, pokemonDetail(pk)
				}
			}

			if err != nil {
				if client.IsNotFound(err) || isInvalidKey(err) {
					p.Error("%s", notFound)
				} else {
					p.Error("%s", failure)
				}
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(entity)
			}
			return p.Table([]string{"FIELD", "VALUE"}, rows)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func characterDetail(c *rickandmorty.Character) [][]string {
	species := c.Species
	if c.Type != "" {
		species += " (" + c.Type + ")"
	}
	return [][]string{
		{"ID", strconv.Itoa(c.ID)},
		{"Name", c.Name},
		{"Status", c.Status},
		{"Species", species},
		{"Gender", c.Gender},
		{"Origin", c.Origin.Name},
		{"Location", c.Location.Name},
		{"Episodes", strconv.Itoa(len(c.Episode))},
		{"Image", c.Image},
	}
}

func pokemonDetail(p *pokemon.Pokemon) [][]string {
	abilities := make([]string, 0, len(p.Abilities))
	for _, a := range p.Abilities {
		abilities = append(abilities, a.Ability.Name)
	}
	rows := [][]string{
		{"ID", strconv.Itoa(p.ID)},
		{"Name", p.Name},
		{"Types", strings.Join(p.TypeNames(), ", ")},
		{"Abilities", strings.Join(abilities, ", ")},
		{"Height", strconv.Itoa(p.Height)},
		{"Weight", strconv.Itoa(p.Weight)},
	}
	for _, s := range p.Stats {
		rows = append(rows, []string{s.Stat.Name, strconv.Itoa(s.BaseStat)})
	}
	return append(rows, []string{"Sprite", p.Sprites.FrontDefault})
}

func isInvalidKey(err error) bool {
	return errors.Is(err, rickandmorty.ErrInvalidID) || errors.Is(err, pokemon.ErrInvalidName)
}
