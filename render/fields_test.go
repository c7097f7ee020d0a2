package render

import (
	"errors"
	"testing"

	"github.com/beevik/etree"

	"bibr/bib"
	"bibr/bibtex"
)

func renderField(t *testing.T, fr FieldRenderer, rec *bib.Record) *etree.Element {
	t.Helper()
	el, err := fr.Render(rec)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	return el
}

func TestTitleField(t *testing.T) {
	t.Run("plain", func(t *testing.T) {
		el := renderField(t, TitleField(), &bib.Record{ID: "k1", Title: "Foo"})
		if el == nil || el.Text() != "Foo" || el.SelectElement("a") != nil {
			t.Fatalf("unexpected title element")
		}
		if el.SelectAttrValue("class", "") != "title" {
			t.Errorf("class = %q, want title", el.SelectAttrValue("class", ""))
		}
	})

	t.Run("link", func(t *testing.T) {
		el := renderField(t, TitleField(), &bib.Record{ID: "k1", Title: "Foo", URL: "https://example.com"})
		a := el.SelectElement("a")
		if a == nil {
			t.Fatal("title with URL must be a link")
		}
		if a.SelectAttrValue("href", "") != "https://example.com" || a.Text() != "Foo" {
			t.Errorf("unexpected link: href=%q text=%q", a.SelectAttrValue("href", ""), a.Text())
		}
	})

	t.Run("absent", func(t *testing.T) {
		if el := renderField(t, TitleField(), &bib.Record{ID: "k1", URL: "https://example.com"}); el != nil {
			t.Error("record without title must not render title")
		}
	})
}

func TestPersonsFields(t *testing.T) {
	rec := &bib.Record{
		ID:     "k1",
		Author: []bib.Person{{Given: "A", Family: "B"}, {}, {Literal: "C Consortium"}},
		Editor: []bib.Person{{Given: "E", DroppingParticle: "de", Family: "F"}},
	}

	if el := renderField(t, AuthorField(), rec); el == nil || el.Text() != "A B, C Consortium" {
		t.Errorf("author text unexpected")
	}
	if el := renderField(t, EditorField(), rec); el == nil || el.Text() != "E de F" {
		t.Errorf("editor text unexpected")
	}
	if el := renderField(t, AuthorField(), &bib.Record{ID: "k2"}); el != nil {
		t.Error("record without authors must not render author")
	}
	if el := renderField(t, AuthorField(), &bib.Record{ID: "k3", Author: []bib.Person{{Family: "only"}}}); el != nil {
		t.Error("authors contributing nothing must not render author")
	}
}

func TestPublishingField(t *testing.T) {
	tests := []struct {
		name string
		rec  bib.Record
		want string
	}{
		{
			name: "all clauses",
			rec: bib.Record{
				ContainerTitle: "Journal", CollectionNumber: "4", Issue: "2",
				Issued: &bib.Date{DateParts: [][]bib.Text{{"2020", "5"}}},
				Volume: "12", Page: "1-10", Publisher: "ACM",
			},
			want: "Journal, number 4, 2.2020 5, volume 12, page 1-10, ACM",
		},
		{name: "issue only", rec: bib.Record{Issue: "3"}, want: ""},
		{name: "issued only", rec: bib.Record{Issued: &bib.Date{DateParts: [][]bib.Text{{"1999"}}}}, want: ""},
		{
			name: "named issue",
			rec:  bib.Record{Issue: "Spring", Issued: &bib.Date{DateParts: [][]bib.Text{{"2020"}}}},
			want: "Spring. 2020",
		},
		{
			name: "date range",
			rec:  bib.Record{Issue: "7", Issued: &bib.Date{DateParts: [][]bib.Text{{"2019", "12"}, {"2020", "1"}}}},
			want: "7.2019 12,2020 1",
		},
		{
			name: "literal date",
			rec:  bib.Record{Issue: "7", Issued: &bib.Date{Literal: "Winter"}},
			want: "",
		},
		{name: "publisher only", rec: bib.Record{Publisher: "O'Reilly"}, want: "O'Reilly"},
		{name: "nothing", rec: bib.Record{Title: "No details"}, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			el := renderField(t, PublishingField(), &tt.rec)
			if tt.want == "" {
				if el != nil {
					t.Errorf("expected absent publishing, got %q", el.Text())
				}
				return
			}
			if el == nil || el.Text() != tt.want {
				t.Fatalf("publishing element unexpected, want %q", tt.want)
			}
		})
	}
}

func TestBibTeXField(t *testing.T) {
	src := bibtex.NewSource("@article{k1, title={Foo}}\n@book{k2, title={Bar}}")
	formatter := func(id, stanza string) *etree.Element {
		el := etree.NewElement("pre")
		el.CreateAttr("data-for", id)
		el.SetText(stanza)
		return el
	}

	t.Run("no source", func(t *testing.T) {
		if el := renderField(t, BibTeXField(nil, formatter), &bib.Record{ID: "zz"}); el != nil {
			t.Error("without source nothing must be rendered")
		}
		noSource := func() *bibtex.Source { return nil }
		if el := renderField(t, BibTeXField(noSource, formatter), &bib.Record{ID: "zz"}); el != nil {
			t.Error("without loaded source nothing must be rendered")
		}
	})

	t.Run("verified without formatter", func(t *testing.T) {
		fr := BibTeXField(func() *bibtex.Source { return src }, nil)
		if el := renderField(t, fr, &bib.Record{ID: "k1"}); el != nil {
			t.Error("without formatter nothing must be rendered")
		}
	})

	t.Run("formatter", func(t *testing.T) {
		fr := BibTeXField(func() *bibtex.Source { return src }, formatter)
		el := renderField(t, fr, &bib.Record{ID: "k2"})
		if el == nil || el.Text() != "@book{k2, title={Bar}}" || el.SelectAttrValue("data-for", "") != "k2" {
			t.Error("formatter output unexpected")
		}
	})

	t.Run("desync", func(t *testing.T) {
		fr := BibTeXField(func() *bibtex.Source { return src }, formatter)
		_, err := fr.Render(&bib.Record{ID: "a"})
		var desync *bibtex.SourceDesyncError
		if !errors.As(err, &desync) || desync.ID != "a" {
			t.Errorf("Render() error = %v, want SourceDesyncError naming a", err)
		}
	})

	t.Run("lenient", func(t *testing.T) {
		fr := LenientBibTeXField(func() *bibtex.Source { return src }, formatter)
		if el := renderField(t, fr, &bib.Record{ID: "a"}); el != nil {
			t.Error("missing stanza must be omitted")
		}
		if el := renderField(t, fr, &bib.Record{ID: "k1"}); el == nil || el.Text() != "@article{k1, title={Foo}}" {
			t.Error("present stanza must be rendered")
		}
	})
}

func TestRegistry(t *testing.T) {
	reg := DefaultRegistry(nil, nil)

	fields, err := reg.Resolve(DefaultFieldOrder)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(fields) != 4 || fields[0].Name != FieldTitle || fields[3].Name != FieldBibTeX {
		t.Errorf("Resolve() = %v", fields)
	}

	if _, err := reg.Resolve([]string{"title", "abstract"}); err == nil {
		t.Error("Resolve() must fail on unknown field")
	}

	custom := FieldRendererFunc(func(*bib.Record) (*etree.Element, error) { return nil, nil })
	merged := reg.Merge(Registry{"abstract": custom, FieldTitle: custom})
	if len(merged) != 6 {
		t.Errorf("Merge() has %d renderers, want 6", len(merged))
	}
	if len(reg) != 5 {
		t.Error("Merge() must not modify receiver")
	}
	if _, err := merged.Resolve([]string{"abstract", "title"}); err != nil {
		t.Errorf("Resolve() error = %v", err)
	}
}
