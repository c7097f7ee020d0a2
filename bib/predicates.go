package bib

import (
	"slices"
	"strconv"
	"strings"
)

// Predicate selects records.
type Predicate func(rec *Record) bool

// All selects every record.
func All(*Record) bool {
	return true
}

// MatchQuery returns predicate performing case insensitive search. Every
// whitespace separated term of the query must be found in one of the record
// text fields. Empty query matches everything.
func MatchQuery(query string) Predicate {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return All
	}
	return func(rec *Record) bool {
		haystack := searchText(rec)
		for _, term := range terms {
			if !strings.Contains(haystack, term) {
				return false
			}
		}
		return true
	}
}

// OfType selects records with one of the listed types (case insensitive).
// Empty list matches everything.
func OfType(types ...string) Predicate {
	if len(types) == 0 {
		return All
	}
	wanted := make([]string, 0, len(types))
	for _, t := range types {
		wanted = append(wanted, strings.ToLower(strings.TrimSpace(t)))
	}
	return func(rec *Record) bool {
		return slices.Contains(wanted, strings.ToLower(rec.Type))
	}
}

// And combines predicates, nil predicates are ignored.
func And(preds ...Predicate) Predicate {
	return func(rec *Record) bool {
		for _, p := range preds {
			if p != nil && !p(rec) {
				return false
			}
		}
		return true
	}
}

func searchText(rec *Record) string {
	var b strings.Builder
	add := func(s string) {
		if len(s) == 0 {
			return
		}
		b.WriteString(strings.ToLower(s))
		b.WriteByte('\n')
	}
	add(rec.ID)
	add(rec.Type)
	add(rec.Title)
	add(JoinNames(rec.Author))
	add(JoinNames(rec.Editor))
	add(rec.ContainerTitle.String())
	add(rec.Publisher.String())
	if y := rec.Year(); y != 0 {
		add(strconv.Itoa(y))
	}
	return b.String()
}
