package main

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/treestore/pkg/forest"
	"github.com/Sumatoshi-tech/treestore/pkg/forest/node"
	"github.com/Sumatoshi-tech/treestore/pkg/forest/serialize"
	"github.com/Sumatoshi-tech/treestore/pkg/observability"
)

// rootRef addresses the root sequence in explore commands.
const rootRef = "."

// ErrUsage reports a malformed explore command.
var ErrUsage = errors.New("usage")

func exploreCmd(flags *globalFlags) *cobra.Command {
	var inputFormat string

	cmd := &cobra.Command{
		Use:   "explore [file|-]",
		Short: "Interactive forest session",
		Long: `Start an interactive session over a forest: page, search, expand, select
and restructure it, then save the result.

Examples:
  treestore explore tree.json
  treestore explore                # Start from an empty forest`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			env, err := setup(flags, observability.ModeCLI)
			if err != nil {
				return err
			}

			defer env.close()

			path := ""
			if len(args) > 0 {
				path = args[0]
			}

			store, err := env.openForest(path, inputFormat)
			if err != nil {
				return err
			}

			return runExplore(store, cobraCmd.InOrStdin(), cobraCmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&inputFormat, "input-format", "", "input format (json, yaml); default from extension")

	return cmd
}

// runExplore reads commands from in until quit or end of input.
func runExplore(store *forest.Store, in io.Reader, out io.Writer) error {
	fmt.Fprintf(out, "Exploring %d nodes\n", store.Len())
	fmt.Fprintln(out, "Type 'help' for commands, 'quit' to exit")
	fmt.Fprintln(out)

	scanner := bufio.NewScanner(in)

	for {
		fmt.Fprint(out, "treestore> ")

		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if line == "quit" || line == "exit" {
			break
		}

		err := execExplore(store, strings.Fields(line), out)
		if err != nil {
			delColor.Fprintf(out, "error: %v\n", err)
		}

		fmt.Fprintln(out)
	}

	err := scanner.Err()
	if err != nil {
		return fmt.Errorf("read commands: %w", err)
	}

	return nil
}

func execExplore(store *forest.Store, parts []string, out io.Writer) error {
	name, args := parts[0], parts[1:]

	switch name {
	case "help":
		printExploreHelp(out)
	case "ls", "page":
		return explorePage(store, args, out)
	case "next":
		renderPage(out, store, store.NextPage())
	case "prev":
		renderPage(out, store, store.PrevPage())
	case "size":
		return exploreSize(store, args, out)
	case "search", "/":
		view := store.Search(strings.Join(args, " "))
		if view.Term != "" {
			store.ExpandMatches()
			view = store.CurrentPage()
		}

		renderPage(out, store, view)
	case "clear":
		renderPage(out, store, store.Search(""))
	case "open", "close", "toggle", "show", "rm":
		return exploreNodeCommand(store, name, args, out)
	case "selected":
		for _, key := range store.Selected() {
			fmt.Fprintln(out, key)
		}
	case "add":
		return exploreAdd(store, args, out)
	case "rename":
		return exploreRename(store, args)
	case "mv":
		return exploreMove(store, args)
	case "save":
		return exploreSave(store, args, out)
	default:
		return fmt.Errorf("%w: unknown command %q, try 'help'", ErrUsage, name)
	}

	return nil
}

func printExploreHelp(out io.Writer) {
	fmt.Fprintln(out, "Commands:")
	fmt.Fprintln(out, "  ls [page]                  Show a page of the current view")
	fmt.Fprintln(out, "  next, prev                 Move between pages")
	fmt.Fprintln(out, "  size <n>                   Set the page size")
	fmt.Fprintln(out, "  search <term>              Filter by display name; 'clear' resets")
	fmt.Fprintln(out, "  open <ref>, close <ref>    Expand or collapse a node")
	fmt.Fprintln(out, "  toggle <ref>               Toggle selection")
	fmt.Fprintln(out, "  selected                   List selected keys")
	fmt.Fprintln(out, "  show <ref>                 Print a node with its path")
	fmt.Fprintln(out, "  add <parent|.> <name>      Append a child, '.' for a root")
	fmt.Fprintln(out, "  rename <ref> <name>        Change the display name")
	fmt.Fprintln(out, "  mv <ref> <parent|.> [pos]  Move a node (pos: first, last)")
	fmt.Fprintln(out, "  rm <ref>                   Remove a node and its subtree")
	fmt.Fprintln(out, "  save <file> [format]       Write the forest (json, yaml, csv)")
	fmt.Fprintln(out, "  quit                       Exit")
}

func explorePage(store *forest.Store, args []string, out io.Writer) error {
	if len(args) == 0 {
		renderPage(out, store, store.CurrentPage())

		return nil
	}

	number, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("%w: ls [page]", ErrUsage)
	}

	renderPage(out, store, store.GoToPage(number))

	return nil
}

func exploreSize(store *forest.Store, args []string, out io.Writer) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: size <n>", ErrUsage)
	}

	size, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("%w: size <n>", ErrUsage)
	}

	err = store.SetPageSize(size)
	if err != nil {
		return err
	}

	renderPage(out, store, store.CurrentPage())

	return nil
}

func exploreNodeCommand(store *forest.Store, name string, args []string, out io.Writer) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: %s <ref>", ErrUsage, name)
	}

	internalID, err := store.Resolve(args[0])
	if err != nil {
		return err
	}

	switch name {
	case "open":
		return store.Expand(internalID)
	case "close":
		return store.Collapse(internalID)
	case "rm":
		return store.Remove(internalID)
	case "toggle":
		selected, err := store.Toggle(internalID)
		if err != nil {
			return err
		}

		count, total, err := store.SelectionCounts(internalID)
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "selected=%t (%d of %d descendants)\n", selected, count, total)
	case "show":
		record, err := store.Get(internalID)
		if err != nil {
			return err
		}

		path, err := store.Path(internalID)
		if err != nil {
			return err
		}

		renderPath(out, path, displayOf(record, store.DisplayField()))
		fmt.Fprintf(out, "iid: %s, descendants: %d\n", internalID, countDescendants(record))
	}

	return nil
}

func exploreParent(store *forest.Store, ref string) (string, error) {
	if ref == rootRef {
		return forest.RootID, nil
	}

	return store.Resolve(ref)
}

func exploreAdd(store *forest.Store, args []string, out io.Writer) error {
	if len(args) < 2 {
		return fmt.Errorf("%w: add <parent|.> <name>", ErrUsage)
	}

	parent, err := exploreParent(store, args[0])
	if err != nil {
		return err
	}

	record := node.Record{store.DisplayField(): strings.Join(args[1:], " ")}

	internalID, err := store.Insert(parent, record, forest.AtLast())
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "added %s\n", internalID)

	return nil
}

func exploreRename(store *forest.Store, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("%w: rename <ref> <name>", ErrUsage)
	}

	internalID, err := store.Resolve(args[0])
	if err != nil {
		return err
	}

	return store.Update(internalID, node.Record{store.DisplayField(): strings.Join(args[1:], " ")})
}

func exploreMove(store *forest.Store, args []string) error {
	if len(args) < 2 || len(args) > 3 {
		return fmt.Errorf("%w: mv <ref> <parent|.> [first|last]", ErrUsage)
	}

	internalID, err := store.Resolve(args[0])
	if err != nil {
		return err
	}

	parent, err := exploreParent(store, args[1])
	if err != nil {
		return err
	}

	placement := forest.AtLast()

	if len(args) == 3 {
		where, err := forest.ParsePosition(args[2])
		if err != nil {
			return err
		}

		placement = forest.Placement{Where: where}
	}

	return store.Move(internalID, parent, placement)
}

func exploreSave(store *forest.Store, args []string, out io.Writer) error {
	if len(args) < 1 || len(args) > 2 {
		return fmt.Errorf("%w: save <file> [format]", ErrUsage)
	}

	formatName := string(serialize.FormatFromPath(args[0]))
	if len(args) == 2 {
		formatName = args[1]
	}

	format, err := serialize.ParseFormat(formatName)
	if err != nil {
		return err
	}

	var buf bytes.Buffer

	err = store.Encode(&buf, format, serialize.Options{})
	if err != nil {
		return err
	}

	err = writeOutput(out, args[0], buf.Bytes())
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "saved %d nodes to %s\n", store.Len(), args[0])

	return nil
}
