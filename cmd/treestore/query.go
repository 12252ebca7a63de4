package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/treestore/pkg/observability"
)

// ErrForestRequired indicates a command was run without an input forest.
var ErrForestRequired = errors.New("forest file required")

type queryOptions struct {
	inputFormat string
	page        int
	size        int
	expand      bool
}

func queryCmd(flags *globalFlags) *cobra.Command {
	opts := queryOptions{}

	cmd := &cobra.Command{
		Use:   "query <file|-> [term...]",
		Short: "Filter a forest and print one page",
		Long: `Filter a forest by a case-insensitive substring of the display field and print
one page of top-level results. Ancestors of matching nodes are kept.

Examples:
  treestore query tree.json                 # First page, no filter
  treestore query tree.yaml docs            # Nodes whose name contains "docs"
  treestore query tree.json docs --page 2   # Second page of the filtered view
  treestore query - guide < tree.json       # Read the forest from stdin`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			return runQuery(cobraCmd, flags, args[0], strings.Join(args[1:], " "), opts)
		},
	}

	cmd.Flags().StringVar(&opts.inputFormat, "input-format", "", "input format (json, yaml); default from extension")
	cmd.Flags().IntVarP(&opts.page, "page", "p", 1, "page number")
	cmd.Flags().IntVarP(&opts.size, "size", "s", 0, "page size (default from config)")
	cmd.Flags().BoolVarP(&opts.expand, "expand", "e", true, "expand ancestors of matches")

	return cmd
}

func runQuery(cobraCmd *cobra.Command, flags *globalFlags, path, term string, opts queryOptions) error {
	if path == "" {
		return ErrForestRequired
	}

	env, err := setup(flags, observability.ModeCLI)
	if err != nil {
		return err
	}

	defer env.close()

	store, err := env.openForest(path, opts.inputFormat)
	if err != nil {
		return err
	}

	if opts.size != 0 {
		err = store.SetPageSize(opts.size)
		if err != nil {
			return err
		}
	}

	store.Search(term)

	if opts.expand && term != "" {
		store.ExpandMatches()
	}

	view := store.GoToPage(opts.page)
	if len(view.Items) == 0 {
		fmt.Fprintln(cobraCmd.OutOrStdout(), "No matching nodes")

		return nil
	}

	renderPage(cobraCmd.OutOrStdout(), store, view)

	return nil
}
