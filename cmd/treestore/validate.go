package main

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/treestore/pkg/forest/serialize"
	"github.com/Sumatoshi-tech/treestore/pkg/observability"
)

// ErrValidationFailed indicates the document does not describe a forest.
var ErrValidationFailed = errors.New("validation failed")

func validateCmd(flags *globalFlags) *cobra.Command {
	var inputFormat string

	cmd := &cobra.Command{
		Use:   "validate <file|->",
		Short: "Check a document against the forest schema",
		Long: `Check that a JSON or YAML document is a forest: a sequence of records whose
children, when present, are sequences of records.

Examples:
  treestore validate tree.json
  treestore validate - < tree.yaml --input-format yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			env, err := setup(flags, observability.ModeCLI)
			if err != nil {
				return err
			}

			defer env.close()

			data, err := readForestFile(args[0], inputFormat, env.maxImport)
			if err != nil {
				return err
			}

			issues, err := serialize.ValidateData(data)
			if err != nil {
				return err
			}

			out := cobraCmd.OutOrStdout()

			if len(issues) > 0 {
				red := color.New(color.FgRed)
				red.Fprintf(out, "%s is not a valid forest (%s issues)\n", args[0], humanize.Comma(int64(len(issues))))

				for _, issue := range issues {
					red.Fprintf(out, "  - %s\n", issue.String())
				}

				return fmt.Errorf("%w: %s", ErrValidationFailed, args[0])
			}

			store, err := env.openForest(args[0], inputFormat)
			if err != nil {
				return fmt.Errorf("%w: %w", ErrValidationFailed, err)
			}

			color.New(color.FgGreen).Fprintf(out, "%s is valid: %s nodes in %s roots\n",
				args[0], humanize.Comma(int64(store.Len())), humanize.Comma(int64(store.Roots())))

			return nil
		},
	}

	cmd.Flags().StringVar(&inputFormat, "input-format", "", "input format (json, yaml); default from extension")

	return cmd
}
