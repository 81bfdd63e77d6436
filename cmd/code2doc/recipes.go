package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/caffeineduck/code2doc/language"
)

func newRecipesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recipes",
		Short: "List languages and whether their toolchains are installed",
		Args:  cobra.NoArgs,
		RunE:  runRecipes,
	}
}

func runRecipes(cmd *cobra.Command, args []string) error {
	recipesFile, _ := cmd.Flags().GetString("recipes")
	registry, err := language.LoadRegistry(recipesFile)
	if err != nil {
		return err
	}
	tc, err := language.NewToolchain(64)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tEXTENSIONS\tFAMILY\tTOOLCHAIN")
	for _, r := range registry.Recipes() {
		status := "ok"
		switch {
		case r.Family == language.FamilyWebAssembly:
			status = "built in"
		case !r.Executable():
			status = "browser"
		default:
			if err := tc.Available(r); err != nil {
				status = "missing (" + strings.TrimPrefix(err.Error(), language.ErrToolNotFound.Error()+": ") + ")"
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Name, strings.Join(r.Extensions, " "), r.Family, status)
	}
	return w.Flush()
}
