package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Sumatoshi-tech/treestore/pkg/forest"
	"github.com/Sumatoshi-tech/treestore/pkg/forest/node"
)

const (
	markSelected = "*"
	markExpanded = "-"
	markFolded   = "+"
)

var (
	matchColor = color.New(color.FgYellow, color.Bold) //nolint:gochecknoglobals // shared palette
	addColor   = color.New(color.FgGreen)              //nolint:gochecknoglobals // shared palette
	delColor   = color.New(color.FgRed)                //nolint:gochecknoglobals // shared palette
	dimColor   = color.New(color.Faint)                //nolint:gochecknoglobals // shared palette
)

// renderPage writes one page of the view as a table. Matches of the current
// term are highlighted and expanded items list their visible children.
func renderPage(w io.Writer, store *forest.Store, view forest.PageView) {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"#", "Sel", "Name", "Descendants", "IID"})

	field := store.DisplayField()

	for idx, item := range view.Items {
		appendItemRows(tbl, store, item, field, view.Term, view.Page.Start+idx+1)
	}

	footer := fmt.Sprintf("Page %d of %d", view.Page.Number, view.Page.Total)
	if view.Term != "" {
		footer += fmt.Sprintf(", %s matches for %q", humanize.Comma(int64(view.Matches)), view.Term)
	}

	tbl.AppendFooter(table.Row{"", "", footer})
	tbl.Render()
}

func appendItemRows(tbl table.Writer, store *forest.Store, item node.Record, field, term string, position int) {
	type row struct {
		rec   node.Record
		depth int
	}

	stack := []row{{rec: item}}

	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		iid, _ := current.rec[node.FieldInternalID].(string)
		children := childRecords(current.rec)

		fold := ""
		if len(children) > 0 {
			fold = markFolded
			if store.IsExpanded(iid) {
				fold = markExpanded
			}
		}

		sel := ""
		if store.IsSelected(iid) {
			sel = markSelected
		}

		label := strings.Repeat("  ", current.depth) + fold + " " + highlight(displayOf(current.rec, field), term)

		index := ""
		if current.depth == 0 {
			index = humanize.Comma(int64(position))
		}

		tbl.AppendRow(table.Row{index, sel, label, humanize.Comma(int64(countDescendants(current.rec))), dimColor.Sprint(iid)})

		if fold != markExpanded {
			continue
		}

		for idx := len(children) - 1; idx >= 0; idx-- {
			stack = append(stack, row{rec: children[idx], depth: current.depth + 1})
		}
	}
}

// highlight marks every case-insensitive occurrence of term in text.
func highlight(text, term string) string {
	if term == "" {
		return text
	}

	lowerText := strings.ToLower(text)
	lowerTerm := strings.ToLower(term)

	if len(lowerText) != len(text) || len(lowerTerm) != len(term) {
		return text
	}

	var buf strings.Builder

	for {
		idx := strings.Index(lowerText, lowerTerm)
		if idx < 0 {
			buf.WriteString(text)

			return buf.String()
		}

		buf.WriteString(text[:idx])
		buf.WriteString(matchColor.Sprint(text[idx : idx+len(term)]))

		text = text[idx+len(term):]
		lowerText = lowerText[idx+len(term):]
	}
}

func displayOf(rec node.Record, field string) string {
	value, ok := rec[field]
	if !ok || value == nil {
		return ""
	}

	return fmt.Sprint(value)
}

func childRecords(rec node.Record) []node.Record {
	raw, _ := rec[node.FieldChildren].([]any)
	children := make([]node.Record, 0, len(raw))

	for _, child := range raw {
		switch typed := child.(type) {
		case node.Record:
			children = append(children, typed)
		}
	}

	return children
}

func countDescendants(rec node.Record) int {
	count := 0
	stack := childRecords(rec)

	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		count++

		stack = append(stack, childRecords(current)...)
	}

	return count
}

// renderPath writes the ancestry of a node as a breadcrumb.
func renderPath(w io.Writer, path []forest.PathEntry, leaf string) {
	parts := make([]string, 0, len(path)+1)

	for _, entry := range path {
		parts = append(parts, entry.Display)
	}

	parts = append(parts, leaf)

	fmt.Fprintln(w, strings.Join(parts, " / "))
}
