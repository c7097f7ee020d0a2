package bib

import (
	"cmp"

	"github.com/maruel/natural"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"bibr/config"
)

// Comparator orders records, result follows cmp.Compare convention.
type Comparator func(a, b *Record) int

// ByID orders identifiers naturally, so "smith2" goes before "smith10".
func ByID(a, b *Record) int {
	switch {
	case a.ID == b.ID:
		return 0
	case natural.Less(a.ID, b.ID):
		return -1
	default:
		return 1
	}
}

// ByTitle orders titles using collation rules of the language.
func ByTitle(tag language.Tag) Comparator {
	col := collate.New(tag, collate.Loose, collate.Numeric)
	return func(a, b *Record) int {
		return compareText(col, a.Title, b.Title)
	}
}

// ByAuthor orders by family name of the first author (first editor if there
// are no authors) using collation rules of the language.
func ByAuthor(tag language.Tag) Comparator {
	col := collate.New(tag, collate.Loose, collate.Numeric)
	return func(a, b *Record) int {
		return compareText(col, leadName(a), leadName(b))
	}
}

// ByYear orders by year of issue, undated records go last.
func ByYear(a, b *Record) int {
	ya, yb := a.Year(), b.Year()
	switch {
	case ya == yb:
		return 0
	case ya == 0:
		return 1
	case yb == 0:
		return -1
	}
	return cmp.Compare(ya, yb)
}

// Reverse inverts comparator, nil stays nil.
func Reverse(c Comparator) Comparator {
	if c == nil {
		return nil
	}
	return func(a, b *Record) int {
		return c(b, a)
	}
}

// ComparatorFor maps configured sort key to comparator. SortKeyNone gives nil
// which keeps load order.
func ComparatorFor(key config.SortKey, tag language.Tag) Comparator {
	switch key {
	case config.SortKeyId:
		return ByID
	case config.SortKeyTitle:
		return ByTitle(tag)
	case config.SortKeyAuthor:
		return ByAuthor(tag)
	case config.SortKeyYear:
		return ByYear
	default:
		return nil
	}
}

// compareText sorts empty values after non empty ones.
func compareText(col *collate.Collator, a, b string) int {
	switch {
	case a == b:
		return 0
	case len(a) == 0:
		return 1
	case len(b) == 0:
		return -1
	}
	return col.CompareString(a, b)
}

func leadName(rec *Record) string {
	for _, list := range [][]Person{rec.Author, rec.Editor} {
		for _, p := range list {
			if n := p.SortName(); len(n) > 0 {
				return n
			}
		}
	}
	return ""
}
