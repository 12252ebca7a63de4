package forest

import (
	"fmt"
	"strings"
)

// Position selects where Insert and Move place a node.
type Position int

// Positions. The zero value appends.
const (
	Last Position = iota
	First
	Before
	After
)

var positionNames = map[Position]string{
	Last:   "last",
	First:  "first",
	Before: "before",
	After:  "after",
}

// String returns the lower-case name of the position.
func (p Position) String() string {
	if name, ok := positionNames[p]; ok {
		return name
	}

	return fmt.Sprintf("Position(%d)", int(p))
}

// ParsePosition parses a position name. The empty name means Last.
func ParsePosition(name string) (Position, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	if normalized == "" {
		return Last, nil
	}

	for pos, candidate := range positionNames {
		if candidate == normalized {
			return pos, nil
		}
	}

	return Last, fmt.Errorf("%w: unknown position %q", ErrInvalidArgument, name)
}

// Placement is a position plus, for Before and After, the internal id of the
// reference node. When the reference does not resolve the node is appended to
// the end of the target list instead.
type Placement struct {
	Where Position
	Ref   string
}

// AtFirst places a node at the start of the target list.
func AtFirst() Placement {
	return Placement{Where: First}
}

// AtLast places a node at the end of the target list.
func AtLast() Placement {
	return Placement{Where: Last}
}

// BeforeNode places a node directly before ref, in ref's own parent list.
func BeforeNode(ref string) Placement {
	return Placement{Where: Before, Ref: ref}
}

// AfterNode places a node directly after ref, in ref's own parent list.
func AfterNode(ref string) Placement {
	return Placement{Where: After, Ref: ref}
}

func (p Placement) relative() bool {
	return p.Where == Before || p.Where == After
}

// ResolvePlacement resolves user-facing references, each an internal id or a
// natural key, into a parent id and placement. An empty parentRef addresses
// the roots. A relative ref that does not resolve is passed through as is, so
// the node is appended.
func (s *Store) ResolvePlacement(parentRef, position, ref string) (string, Placement, error) {
	where, err := ParsePosition(position)
	if err != nil {
		return "", Placement{}, err
	}

	parent := RootID

	if parentRef != "" {
		parent, err = s.Resolve(parentRef)
		if err != nil {
			return "", Placement{}, err
		}
	}

	placement := Placement{Where: where, Ref: ref}

	if ref != "" {
		if resolved, resolveErr := s.Resolve(ref); resolveErr == nil {
			placement.Ref = resolved
		}
	}

	return parent, placement, nil
}
