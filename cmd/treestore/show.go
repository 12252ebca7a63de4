package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/treestore/pkg/observability"
)

const showArgCount = 2

func showCmd(flags *globalFlags) *cobra.Command {
	var inputFormat string

	cmd := &cobra.Command{
		Use:   "show <file|-> <ref>",
		Short: "Print one node with its path",
		Long: `Print one node and its subtree, preceded by the path from its root.
The ref is an internal id or a natural key.

Examples:
  treestore show tree.json guide`,
		Args: cobra.ExactArgs(showArgCount),
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			env, err := setup(flags, observability.ModeCLI)
			if err != nil {
				return err
			}

			defer env.close()

			store, err := env.openForest(args[0], inputFormat)
			if err != nil {
				return err
			}

			internalID, err := store.Resolve(args[1])
			if err != nil {
				return err
			}

			record, err := store.Get(internalID)
			if err != nil {
				return err
			}

			path, err := store.Path(internalID)
			if err != nil {
				return err
			}

			out := cobraCmd.OutOrStdout()
			renderPath(out, path, displayOf(record, store.DisplayField()))

			encoded, err := json.MarshalIndent(record, "", "  ")
			if err != nil {
				return fmt.Errorf("encode node: %w", err)
			}

			fmt.Fprintln(out, string(encoded))

			return nil
		},
	}

	cmd.Flags().StringVar(&inputFormat, "input-format", "", "input format (json, yaml); default from extension")

	return cmd
}
