package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/treestore/pkg/forest/node"
	"github.com/Sumatoshi-tech/treestore/pkg/forest/serialize"
	"github.com/Sumatoshi-tech/treestore/pkg/observability"
)

const diffArgCount = 2

// ErrForestsDiffer is returned with --exit-code when the forests differ.
var ErrForestsDiffer = errors.New("forests differ")

func diffCmd(flags *globalFlags) *cobra.Command {
	var (
		inputFormat string
		exitCode    bool
		changedOnly bool
	)

	cmd := &cobra.Command{
		Use:   "diff <before> <after>",
		Short: "Compare the outlines of two forests",
		Long: `Compare two forests line by line over their depth-annotated outline
(the CSV export), printing added and removed rows.

Examples:
  treestore diff old.json new.json
  treestore diff old.yaml new.yaml --changed --exit-code`,
		Args: cobra.ExactArgs(diffArgCount),
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			env, err := setup(flags, observability.ModeCLI)
			if err != nil {
				return err
			}

			defer env.close()

			before, err := loadRoots(args[0], inputFormat, env.maxImport)
			if err != nil {
				return err
			}

			after, err := loadRoots(args[1], inputFormat, env.maxImport)
			if err != nil {
				return err
			}

			lines := serialize.Diff(before, after, env.cfg.Tree.DisplayField)
			printDiff(cobraCmd.OutOrStdout(), lines, changedOnly)

			if exitCode && serialize.Changed(lines) {
				return ErrForestsDiffer
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&inputFormat, "input-format", "", "input format (json, yaml); default from extension")
	cmd.Flags().BoolVar(&exitCode, "exit-code", false, "fail when the forests differ")
	cmd.Flags().BoolVar(&changedOnly, "changed", false, "print only added and removed rows")

	return cmd
}

func loadRoots(path, inputFormat string, limit int64) ([]*node.Node, error) {
	data, err := readForestFile(path, inputFormat, limit)
	if err != nil {
		return nil, err
	}

	roots, err := serialize.Import(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return roots, nil
}

func printDiff(w io.Writer, lines []serialize.DiffLine, changedOnly bool) {
	for _, line := range lines {
		switch line.Op {
		case serialize.DiffInsert:
			addColor.Fprintf(w, "+ %s\n", line.Text)
		case serialize.DiffDelete:
			delColor.Fprintf(w, "- %s\n", line.Text)
		default:
			if !changedOnly {
				fmt.Fprintf(w, "  %s\n", line.Text)
			}
		}
	}
}
