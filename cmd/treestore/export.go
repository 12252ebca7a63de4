package main

import (
	"bytes"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/treestore/pkg/forest/serialize"
	"github.com/Sumatoshi-tech/treestore/pkg/observability"
)

type exportOptions struct {
	inputFormat string
	format      string
	output      string
	withIDs     bool
	compress    bool
}

func exportCmd(flags *globalFlags) *cobra.Command {
	opts := exportOptions{}

	cmd := &cobra.Command{
		Use:   "export <file|->",
		Short: "Convert a forest to JSON, YAML or CSV",
		Long: `Read a forest and write it back out in another format.

Examples:
  treestore export tree.json -f yaml            # JSON to YAML on stdout
  treestore export tree.yaml -f csv -o out.csv  # Flat outline with depth
  treestore export tree.json --ids --compress -o tree.json.lz4`,
		Args: cobra.ExactArgs(1),
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			env, err := setup(flags, observability.ModeCLI)
			if err != nil {
				return err
			}

			defer env.close()

			return runExport(cobraCmd, env, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.inputFormat, "input-format", "", "input format (json, yaml); default from extension")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "json", "output format (json, yaml, csv)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().BoolVar(&opts.withIDs, "ids", false, "include internal ids")
	cmd.Flags().BoolVar(&opts.compress, "compress", false, "lz4-compress the output")

	return cmd
}

func runExport(cobraCmd *cobra.Command, env *app, path string, opts exportOptions) error {
	format, err := serialize.ParseFormat(opts.format)
	if err != nil {
		return err
	}

	store, err := env.openForest(path, opts.inputFormat)
	if err != nil {
		return err
	}

	var buf bytes.Buffer

	err = store.Encode(&buf, format, serialize.Options{IncludeInternalIDs: opts.withIDs})
	if err != nil {
		return err
	}

	data := buf.Bytes()

	if opts.compress {
		data, err = serialize.Compress(data)
		if err != nil {
			return err
		}
	}

	return writeOutput(cobraCmd.OutOrStdout(), opts.output, data)
}
