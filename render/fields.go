package render

import (
	"math"
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"bibr/bib"
	"bibr/bibtex"
)

// BibTeXFormatter produces consumer specific element for the record stanza,
// for example copy to clipboard control or embedded source block.
type BibTeXFormatter func(id, stanza string) *etree.Element

// SourceFunc gives access to BibTeX source loaded by the time entries are
// rendered, nil when BibTeX is not configured.
type SourceFunc func() *bibtex.Source

// DefaultRegistry returns built in field renderers.
func DefaultRegistry(source SourceFunc, formatter BibTeXFormatter) Registry {
	return Registry{
		FieldTitle:      TitleField(),
		FieldAuthor:     AuthorField(),
		FieldEditor:     EditorField(),
		FieldPublishing: PublishingField(),
		FieldBibTeX:     BibTeXField(source, formatter),
	}
}

func span(class, text string) *etree.Element {
	el := etree.NewElement("span")
	el.CreateAttr("class", class)
	if len(text) > 0 {
		el.SetText(text)
	}
	return el
}

// TitleField renders title, as a link when record has URL.
func TitleField() FieldRenderer {
	return FieldRendererFunc(func(rec *bib.Record) (*etree.Element, error) {
		title := strings.TrimSpace(rec.Title)
		if len(title) == 0 {
			return nil, nil
		}
		el := span("title", "")
		if len(rec.URL) == 0 {
			el.SetText(title)
			return el, nil
		}
		a := el.CreateElement("a")
		a.CreateAttr("href", rec.URL)
		a.SetText(title)
		return el, nil
	})
}

func personsField(class string, get func(rec *bib.Record) []bib.Person) FieldRenderer {
	return FieldRendererFunc(func(rec *bib.Record) (*etree.Element, error) {
		names := bib.JoinNames(get(rec))
		if len(names) == 0 {
			return nil, nil
		}
		return span(class, names), nil
	})
}

// AuthorField renders comma separated author names.
func AuthorField() FieldRenderer {
	return personsField("author", func(rec *bib.Record) []bib.Person { return rec.Author })
}

// EditorField renders comma separated editor names.
func EditorField() FieldRenderer {
	return personsField("editor", func(rec *bib.Record) []bib.Person { return rec.Editor })
}

// PublishingField renders publication details in fixed order: container
// title, collection number, issue and date, volume, pages, publisher. Only
// present values contribute.
func PublishingField() FieldRenderer {
	return FieldRendererFunc(func(rec *bib.Record) (*etree.Element, error) {
		clauses := PublishingClauses(rec)
		if len(clauses) == 0 {
			return nil, nil
		}
		return span("publishing", strings.Join(clauses, ", ")), nil
	})
}

// PublishingClauses returns publishing details of the record.
func PublishingClauses(rec *bib.Record) []string {
	var clauses []string
	if rec.ContainerTitle.Present() {
		clauses = append(clauses, rec.ContainerTitle.String())
	}
	if rec.CollectionNumber.Present() {
		clauses = append(clauses, "number "+rec.CollectionNumber.String())
	}
	if issued := rec.Issued.Parts(); rec.Issue.Present() && len(issued) > 0 {
		sep := "."
		if !isNumeric(rec.Issue.String()) {
			sep = ". "
		}
		clauses = append(clauses, rec.Issue.String()+sep+issued)
	}
	if rec.Volume.Present() {
		clauses = append(clauses, "volume "+rec.Volume.String())
	}
	if rec.Page.Present() {
		clauses = append(clauses, "page "+rec.Page.String())
	}
	if rec.Publisher.Present() {
		clauses = append(clauses, rec.Publisher.String())
	}
	return clauses
}

// isNumeric reports whether issue is a plain finite number.
func isNumeric(s string) bool {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return err == nil && !math.IsInf(f, 0) && !math.IsNaN(f)
}

// BibTeXField checks that loaded BibTeX source has stanza for the record
// and, when formatter is supplied, renders it. Without BibTeX source or
// formatter the field is absent.
func BibTeXField(source SourceFunc, formatter BibTeXFormatter) FieldRenderer {
	return bibtexField(source, formatter, true)
}

// LenientBibTeXField renders stanza for records which have one and omits the
// field for the rest.
func LenientBibTeXField(source SourceFunc, formatter BibTeXFormatter) FieldRenderer {
	return bibtexField(source, formatter, false)
}

func bibtexField(source SourceFunc, formatter BibTeXFormatter, verify bool) FieldRenderer {
	return FieldRendererFunc(func(rec *bib.Record) (*etree.Element, error) {
		if source == nil {
			return nil, nil
		}
		src := source()
		if src == nil {
			return nil, nil
		}
		stanza, found := src.Locate(rec.ID)
		if !found {
			if verify {
				return nil, src.Check(rec.ID)
			}
			return nil, nil
		}
		if formatter == nil {
			return nil, nil
		}
		return formatter(rec.ID, stanza), nil
	})
}
