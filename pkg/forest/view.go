package forest

import (
	"fmt"

	"github.com/Sumatoshi-tech/treestore/pkg/forest/node"
	"github.com/Sumatoshi-tech/treestore/pkg/forest/paginate"
	"github.com/Sumatoshi-tech/treestore/pkg/forest/query"
)

// PageView is one page of the current search view. Items are copies that
// include internal ids; children of an item are never paginated.
type PageView struct {
	Term    string        `json:"term"`
	Page    paginate.Page `json:"page"`
	Matches int           `json:"matches"`
	Items   []node.Record `json:"items"`
}

func (s *Store) filtered() []*node.Node {
	return query.Filter(s.roots, s.term, s.displayField)
}

// Term returns the active search term.
func (s *Store) Term() string {
	return s.term
}

// Search sets the search term and returns the first page of the new view.
// It does not touch the expansion markers; see ExpandMatches.
func (s *Store) Search(term string) PageView {
	s.term = term
	s.view = s.filtered()
	s.pager.Clamp(len(s.view))
	s.pager.First()

	return s.CurrentPage()
}

// ExpandMatches marks every node of the current view as expanded so that all
// hits are revealed. It does nothing for an empty term and returns the number
// of markers added.
func (s *Store) ExpandMatches() int {
	if s.term == "" {
		return 0
	}

	added := 0

	for key := range query.ExpansionSet(s.view) {
		if _, ok := s.expanded[key]; !ok {
			s.expanded[key] = struct{}{}
			added++
		}
	}

	return added
}

// CurrentPage returns the current page of the view.
func (s *Store) CurrentPage() PageView {
	items := paginate.Slice(s.pager, s.view)

	records := make([]node.Record, 0, len(items))
	for _, item := range items {
		records = append(records, node.ToRecord(item, true))
	}

	return PageView{
		Term:    s.term,
		Page:    s.pager.Current(),
		Matches: len(query.Matches(s.roots, s.term, s.displayField)),
		Items:   records,
	}
}

// GoToPage moves to page number, clamped into range.
func (s *Store) GoToPage(number int) PageView {
	s.pager.GoTo(number)

	return s.CurrentPage()
}

// NextPage moves one page forward.
func (s *Store) NextPage() PageView {
	s.pager.Next()

	return s.CurrentPage()
}

// PrevPage moves one page back.
func (s *Store) PrevPage() PageView {
	s.pager.Prev()

	return s.CurrentPage()
}

// FirstPage moves to page one.
func (s *Store) FirstPage() PageView {
	s.pager.First()

	return s.CurrentPage()
}

// LastPage moves to the final page.
func (s *Store) LastPage() PageView {
	s.pager.Last()

	return s.CurrentPage()
}

// PageSize returns the number of top-level nodes per page.
func (s *Store) PageSize() int {
	return s.pager.PageSize()
}

// SetPageSize changes the page size. Non-positive sizes are rejected and the
// previous size is kept.
func (s *Store) SetPageSize(size int) error {
	err := s.pager.SetPageSize(size)
	if err != nil {
		s.logger.Warn("page size rejected", "size", size, "page_size", s.pager.PageSize())

		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	return nil
}
