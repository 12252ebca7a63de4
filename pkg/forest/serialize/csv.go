package serialize

import (
	"strconv"
	"strings"

	"github.com/Sumatoshi-tech/treestore/pkg/forest/node"
)

// CSVHeader is the first row of every CSV export.
const CSVHeader = "Level,Parent,Name,HasChildren,Children Count"

// CSV renders forest as one row per node in pre-order. Level is the 0-based
// depth. Commas inside display values are removed rather than quoted, so the
// output is lossy for such values.
func CSV(forest []*node.Node, displayField string) string {
	var sb strings.Builder

	sb.WriteString(CSVHeader)
	sb.WriteByte('\n')

	node.Walk(forest, func(current, parent *node.Node, depth int) bool {
		sb.WriteString(strconv.Itoa(depth))
		sb.WriteByte(',')
		sb.WriteString(csvValue(parent.Display(displayField)))
		sb.WriteByte(',')
		sb.WriteString(csvValue(current.Display(displayField)))
		sb.WriteByte(',')
		sb.WriteString(strconv.FormatBool(!current.IsLeaf()))
		sb.WriteByte(',')
		sb.WriteString(strconv.Itoa(len(current.Children)))
		sb.WriteByte('\n')

		return true
	})

	return sb.String()
}

func csvValue(value string) string {
	value = strings.ReplaceAll(value, ",", "")

	return strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(value)
}
