package bib

import (
	"fmt"
	"slices"

	"bibr/config"
	"bibr/utils/debug"
)

// DuplicateIdentifierError is returned by Store.Load when two records share
// the same identifier and duplicates are rejected.
type DuplicateIdentifierError struct {
	ID string
}

func (e *DuplicateIdentifierError) Error() string {
	return fmt.Sprintf("duplicate record identifier %q", e.ID)
}

// Store keeps records of a single load keyed by identifier. Iteration follows
// load order.
type Store struct {
	policy  config.DuplicatePolicy
	records []*Record
	index   map[string]int
}

func NewStore(policy config.DuplicatePolicy) *Store {
	return &Store{policy: policy, index: make(map[string]int)}
}

// Load replaces store content. With DuplicatePolicyLastWins later record
// replaces earlier one keeping position of the first occurrence. Store is
// left unchanged on error.
func (s *Store) Load(records []Record) error {
	owned := slices.Clone(records)
	list := make([]*Record, 0, len(owned))
	index := make(map[string]int, len(owned))

	for i := range owned {
		rec := &owned[i]
		if len(rec.ID) == 0 {
			return fmt.Errorf("record %d: %w", i, ErrMissingIdentifier)
		}
		if pos, exists := index[rec.ID]; exists {
			if s.policy != config.DuplicatePolicyLastWins {
				return &DuplicateIdentifierError{ID: rec.ID}
			}
			list[pos] = rec
			continue
		}
		index[rec.ID] = len(list)
		list = append(list, rec)
	}

	s.records, s.index = list, index
	return nil
}

func (s *Store) Get(id string) (*Record, bool) {
	pos, ok := s.index[id]
	if !ok {
		return nil, false
	}
	return s.records[pos], true
}

// All returns records in load order.
func (s *Store) All() []*Record {
	return append([]*Record(nil), s.records...)
}

// Filter returns records satisfying predicate in load order, nil predicate
// selects everything.
func (s *Store) Filter(pred Predicate) []*Record {
	if pred == nil {
		return s.All()
	}
	var res []*Record
	for _, rec := range s.records {
		if pred(rec) {
			res = append(res, rec)
		}
	}
	return res
}

func (s *Store) Len() int {
	return len(s.records)
}

// Dump returns human readable representation of store content for debugging.
func (s *Store) Dump() string {
	tw := debug.NewTreeWriter()
	tw.Line(0, "Store: %d records, duplicates=%s", len(s.records), s.policy)
	for i, rec := range s.records {
		tw.Line(1, "[%d] %s (%s)", i, rec.ID, rec.Type)
		tw.TextBlock(2, "title", rec.Title)
		tw.TextBlock(2, "url", rec.URL)
		tw.List(2, "author", names(rec.Author))
		tw.List(2, "editor", names(rec.Editor))
		tw.TextBlock(2, "container-title", rec.ContainerTitle.String())
		tw.TextBlock(2, "issued", rec.Issued.String())
		tw.TextBlock(2, "publisher", rec.Publisher.String())
		if len(rec.Extra) > 0 {
			tw.Line(2, "extra: %d field(s)", len(rec.Extra))
		}
	}
	return tw.String()
}

func names(persons []Person) []string {
	res := make([]string, 0, len(persons))
	for _, p := range persons {
		res = append(res, p.Name())
	}
	return res
}
