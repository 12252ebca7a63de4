package serialize

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/Sumatoshi-tech/treestore/pkg/forest/node"
)

// DiffOp classifies a line of a forest diff.
type DiffOp string

// Diff operations.
const (
	DiffEqual  DiffOp = "="
	DiffInsert DiffOp = "+"
	DiffDelete DiffOp = "-"
)

// DiffLine is one line of the CSV outline diff between two forests.
type DiffLine struct {
	Op   DiffOp `json:"op"`
	Text string `json:"text"`
}

// Diff compares the CSV outlines of two forests line by line.
func Diff(before, after []*node.Node, displayField string) []DiffLine {
	dmp := diffmatchpatch.New()

	src, dst, lines := dmp.DiffLinesToRunes(CSV(before, displayField), CSV(after, displayField))
	diffs := dmp.DiffCharsToLines(dmp.DiffMainRunes(src, dst, false), lines)

	var result []DiffLine

	for _, chunk := range diffs {
		op := DiffEqual

		switch chunk.Type {
		case diffmatchpatch.DiffInsert:
			op = DiffInsert
		case diffmatchpatch.DiffDelete:
			op = DiffDelete
		case diffmatchpatch.DiffEqual:
		}

		for _, line := range strings.SplitAfter(chunk.Text, "\n") {
			if line == "" {
				continue
			}

			result = append(result, DiffLine{Op: op, Text: strings.TrimSuffix(line, "\n")})
		}
	}

	return result
}

// Changed reports whether a diff contains any insertions or deletions.
func Changed(lines []DiffLine) bool {
	for _, line := range lines {
		if line.Op != DiffEqual {
			return true
		}
	}

	return false
}
