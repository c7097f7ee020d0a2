package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/beevik/etree"
	"go.uber.org/zap/zaptest"
	"golang.org/x/text/encoding/charmap"

	"bibr/bib"
	"bibr/bibtex"
	"bibr/config"
	"bibr/render"
)

const (
	jsonLoc = "mem://records.json"
	bibLoc  = "mem://refs.bib"
)

// memFetcher serves sources from memory, missing locations fail.
type memFetcher map[string][]byte

func (m memFetcher) Fetch(_ context.Context, location string) ([]byte, error) {
	data, ok := m[location]
	if !ok {
		return nil, fmt.Errorf("%s: not found", location)
	}
	return data, nil
}

func newContainer(id string) *etree.Element {
	el := etree.NewElement("div")
	if len(id) > 0 {
		el.CreateAttr("id", id)
	}
	return el
}

const threeRecords = `[
	{"id": "smith10", "type": "book", "title": "Zebra", "issued": {"date-parts": [["2010"]]}},
	{"id": "jones", "type": "article-journal", "title": "Apple", "author": [{"given": "Ann", "family": "Jones"}]},
	{"id": "smith2", "type": "book", "title": "Mango", "publisher": "ACM"}
]`

const threeStanzas = `@book{smith10,
  title = {Zebra}
}
@article{jones, title={Apple}, note={mail a@b.org}}
@book{smith2,   title={Mango}}`

func idsOf(p *Pipeline) []string {
	var ids []string
	for _, rec := range p.Records() {
		ids = append(ids, rec.ID)
	}
	return ids
}

func TestPipeline_Scenario(t *testing.T) {
	fetcher := memFetcher{jsonLoc: []byte(`[{"id":"k1","title":"Foo","author":[{"given":"A","family":"B"}]}]`)}
	readyCalls := 0
	p := New(Config{
		BibJSONSource: jsonLoc,
		OnReady:       func(*Pipeline) { readyCalls++ },
	}, fetcher, zaptest.NewLogger(t))

	if p.State() != Unloaded {
		t.Fatalf("initial state = %s, want unloaded", p.State())
	}

	container := newContainer("pubs")
	if err := p.Load(context.Background(), container); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if p.State() != Ready {
		t.Errorf("state = %s, want ready", p.State())
	}

	entries := container.ChildElements()
	if len(entries) != 1 {
		t.Fatalf("rendered %d entries, want 1", len(entries))
	}
	entry := entries[0]
	if got := entry.SelectAttrValue("id", ""); got != "pubs-k1" {
		t.Errorf("entry id = %q, want pubs-k1", got)
	}
	if got := entry.SelectAttrValue("data-bibtexid", ""); got != "k1" {
		t.Errorf("data-bibtexid = %q, want k1", got)
	}
	author := entry.FindElement("./span[@class='author']")
	if author == nil || author.Text() != "A B" {
		t.Fatal("author node with text \"A B\" expected")
	}
	if entry.FindElement("./span[@class='bibtex']") != nil {
		t.Error("no bibtex node expected without BibTeX source")
	}
	if _, ok := p.LookupSource("k1"); ok {
		t.Error("LookupSource() must miss without BibTeX source")
	}

	if err := p.Load(context.Background(), container); err != nil {
		t.Fatalf("second Load() error = %v", err)
	}
	if len(container.ChildElements()) != 1 {
		t.Errorf("reload must replace entries, got %d", len(container.ChildElements()))
	}
	if readyCalls != 1 {
		t.Errorf("OnReady called %d times, want 1", readyCalls)
	}
}

func TestPipeline_NotReady(t *testing.T) {
	p := New(Config{BibJSONSource: jsonLoc}, memFetcher{}, zaptest.NewLogger(t))
	if err := p.Filter(nil); !errors.Is(err, ErrNotReady) {
		t.Errorf("Filter() error = %v, want ErrNotReady", err)
	}
	if err := p.Sort(bib.ByID); !errors.Is(err, ErrNotReady) {
		t.Errorf("Sort() error = %v, want ErrNotReady", err)
	}
	if p.Store() != nil || len(p.Records()) != 0 {
		t.Error("nothing expected before load")
	}
}

func TestPipeline_LoadErrors(t *testing.T) {
	tests := []struct {
		name      string
		cfg       Config
		fetcher   memFetcher
		container string
		check     func(t *testing.T, err error)
	}{
		{
			name:    "missing container id",
			cfg:     Config{BibJSONSource: jsonLoc},
			fetcher: memFetcher{jsonLoc: []byte(threeRecords)},
			check: func(t *testing.T, err error) {
				if !errors.Is(err, render.ErrMissingContainerIdentifier) {
					t.Errorf("error = %v, want ErrMissingContainerIdentifier", err)
				}
			},
		},
		{
			name:      "bibjson unavailable",
			cfg:       Config{BibJSONSource: jsonLoc},
			fetcher:   memFetcher{},
			container: "pubs",
			check: func(t *testing.T, err error) {
				var sue *SourceUnavailableError
				if !errors.As(err, &sue) || sue.Source != SourceBibJSON || sue.Location != jsonLoc {
					t.Errorf("error = %v, want bibjson SourceUnavailableError", err)
				}
			},
		},
		{
			name:      "bibjson malformed",
			cfg:       Config{BibJSONSource: jsonLoc},
			fetcher:   memFetcher{jsonLoc: []byte(`{"id":"k1"}`)},
			container: "pubs",
			check: func(t *testing.T, err error) {
				var sue *SourceUnavailableError
				if !errors.As(err, &sue) || sue.Source != SourceBibJSON {
					t.Errorf("error = %v, want bibjson SourceUnavailableError", err)
				}
			},
		},
		{
			name:      "bibtex unavailable",
			cfg:       Config{BibJSONSource: jsonLoc, BibTeXSource: bibLoc},
			fetcher:   memFetcher{jsonLoc: []byte(threeRecords)},
			container: "pubs",
			check: func(t *testing.T, err error) {
				var sue *SourceUnavailableError
				if !errors.As(err, &sue) || sue.Source != SourceBibTeX || sue.Location != bibLoc {
					t.Errorf("error = %v, want bibtex SourceUnavailableError", err)
				}
			},
		},
		{
			name:      "unknown charset",
			cfg:       Config{BibJSONSource: jsonLoc, BibTeXSource: bibLoc, BibTeXCharset: "no-such-charset"},
			fetcher:   memFetcher{jsonLoc: []byte(threeRecords), bibLoc: []byte(threeStanzas)},
			container: "pubs",
			check: func(t *testing.T, err error) {
				var sue *SourceUnavailableError
				if !errors.As(err, &sue) || sue.Source != SourceBibTeX {
					t.Errorf("error = %v, want bibtex SourceUnavailableError", err)
				}
			},
		},
		{
			name:      "desync with cross check",
			cfg:       Config{BibJSONSource: jsonLoc, BibTeXSource: bibLoc, CrossCheck: true, FieldOrder: []string{render.FieldTitle}},
			fetcher:   memFetcher{jsonLoc: []byte(`[{"id":"a","title":"A"}]`), bibLoc: []byte(`@book{b, title={B}}`)},
			container: "pubs",
			check: func(t *testing.T, err error) {
				var de *bibtex.SourceDesyncError
				if !errors.As(err, &de) || de.ID != "a" {
					t.Errorf("error = %v, want SourceDesyncError for \"a\"", err)
				}
			},
		},
		{
			name:      "desync in bibtex field",
			cfg:       Config{BibJSONSource: jsonLoc, BibTeXSource: bibLoc},
			fetcher:   memFetcher{jsonLoc: []byte(`[{"id":"a","title":"A"}]`), bibLoc: []byte(`@book{b, title={B}}`)},
			container: "pubs",
			check: func(t *testing.T, err error) {
				var de *bibtex.SourceDesyncError
				if !errors.As(err, &de) || de.ID != "a" {
					t.Errorf("error = %v, want SourceDesyncError for \"a\"", err)
				}
			},
		},
		{
			name:      "duplicates rejected",
			cfg:       Config{BibJSONSource: jsonLoc},
			fetcher:   memFetcher{jsonLoc: []byte(`[{"id":"a"},{"id":"a"}]`)},
			container: "pubs",
			check: func(t *testing.T, err error) {
				var de *bib.DuplicateIdentifierError
				if !errors.As(err, &de) || de.ID != "a" {
					t.Errorf("error = %v, want DuplicateIdentifierError", err)
				}
			},
		},
		{
			name:      "unknown field renderer",
			cfg:       Config{BibJSONSource: jsonLoc, FieldOrder: []string{"title", "isbn"}},
			fetcher:   memFetcher{jsonLoc: []byte(threeRecords)},
			container: "pubs",
			check: func(t *testing.T, err error) {
				if err == nil || !strings.Contains(err.Error(), "isbn") {
					t.Errorf("error = %v, want unknown renderer error", err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(tt.cfg, tt.fetcher, zaptest.NewLogger(t))
			container := newContainer(tt.container)
			container.CreateElement("p").SetText("placeholder")

			err := p.Load(context.Background(), container)
			if err == nil {
				t.Fatal("Load() expected error")
			}
			tt.check(t, err)

			if p.State() != Failed {
				t.Errorf("state = %s, want failed", p.State())
			}
			if len(container.ChildElements()) != 1 || container.ChildElements()[0].Tag != "p" {
				t.Error("container must stay untouched on failure")
			}
		})
	}
}

func TestPipeline_LoadInProgress(t *testing.T) {
	container := newContainer("pubs")
	var (
		p        *Pipeline
		innerErr error
	)
	fetcher := FetcherFunc(func(ctx context.Context, location string) ([]byte, error) {
		innerErr = p.Load(ctx, container)
		return []byte(threeRecords), nil
	})
	p = New(Config{BibJSONSource: jsonLoc}, fetcher, zaptest.NewLogger(t))

	if err := p.Load(context.Background(), container); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !errors.Is(innerErr, ErrLoadInProgress) {
		t.Errorf("nested Load() error = %v, want ErrLoadInProgress", innerErr)
	}
}

func TestPipeline_DuplicatesLastWins(t *testing.T) {
	fetcher := memFetcher{jsonLoc: []byte(`[{"id":"a","title":"First"},{"id":"b"},{"id":"a","title":"Second"}]`)}
	p := New(Config{BibJSONSource: jsonLoc, Duplicates: config.DuplicatePolicyLastWins}, fetcher, zaptest.NewLogger(t))
	container := newContainer("pubs")
	if err := p.Load(context.Background(), container); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := strings.Join(idsOf(p), ","); got != "a,b" {
		t.Errorf("records = %s, want a,b", got)
	}
	if title := container.FindElement("./div/span[@class='title']"); title == nil || title.Text() != "Second" {
		t.Error("later record must win")
	}
}

func loadThree(t *testing.T, cfg Config) (*Pipeline, *etree.Element) {
	t.Helper()
	cfg.BibJSONSource = jsonLoc
	fetcher := memFetcher{jsonLoc: []byte(threeRecords), bibLoc: []byte(threeStanzas)}
	p := New(cfg, fetcher, zaptest.NewLogger(t))
	container := newContainer("pubs")
	if err := p.Load(context.Background(), container); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return p, container
}

func hiddenState(p *Pipeline) string {
	var b strings.Builder
	for _, entry := range p.Entries() {
		if render.HasClass(entry, "hidden") {
			b.WriteString("h")
		} else {
			b.WriteString("v")
		}
	}
	return b.String()
}

func TestPipeline_Filter(t *testing.T) {
	p, _ := loadThree(t, Config{})
	before := p.Entries()

	if err := p.Filter(bib.OfType("book")); err != nil {
		t.Fatalf("Filter() error = %v", err)
	}
	if got := hiddenState(p); got != "vhv" {
		t.Errorf("visibility = %s, want vhv", got)
	}
	if err := p.Filter(bib.OfType("book")); err != nil {
		t.Fatalf("Filter() error = %v", err)
	}
	if got := hiddenState(p); got != "vhv" {
		t.Errorf("repeated filter visibility = %s, want vhv", got)
	}
	if got := len(p.Visible()); got != 2 {
		t.Errorf("Visible() = %d records, want 2", got)
	}

	if err := p.Filter(bib.MatchQuery("apple")); err != nil {
		t.Fatalf("Filter() error = %v", err)
	}
	if got := hiddenState(p); got != "hvh" {
		t.Errorf("visibility = %s, want hvh", got)
	}

	if err := p.Filter(nil); err != nil {
		t.Fatalf("Filter() error = %v", err)
	}
	if got := hiddenState(p); got != "vvv" {
		t.Errorf("reset visibility = %s, want vvv", got)
	}
	for i, entry := range p.Entries() {
		if entry != before[i] {
			t.Errorf("entry %d was recreated", i)
		}
		if entry.SelectAttr("class") == nil || !render.HasClass(entry, "publication") {
			t.Errorf("entry %d lost its classes", i)
		}
	}
}

func TestPipeline_Sort(t *testing.T) {
	p, container := loadThree(t, Config{})
	// unrelated content before and after entries stays where it is
	header := etree.NewElement("h2")
	container.InsertChildAt(0, header)
	container.CreateElement("footer")

	if err := p.Sort(func(a, b *bib.Record) int { return 0 }); err != nil {
		t.Fatalf("Sort() error = %v", err)
	}
	if got := strings.Join(idsOf(p), ","); got != "smith10,jones,smith2" {
		t.Errorf("zero comparator order = %s", got)
	}

	if err := p.Sort(bib.ByID); err != nil {
		t.Fatalf("Sort() error = %v", err)
	}
	if got := strings.Join(idsOf(p), ","); got != "jones,smith2,smith10" {
		t.Errorf("ByID order = %s", got)
	}

	var tags []string
	for _, el := range container.ChildElements() {
		tags = append(tags, el.SelectAttrValue("data-bibtexid", el.Tag))
	}
	if got := strings.Join(tags, ","); got != "h2,jones,smith2,smith10,footer" {
		t.Errorf("container children = %s", got)
	}

	before := p.Entries()
	if err := p.Sort(nil); err != nil {
		t.Fatalf("Sort(nil) error = %v", err)
	}
	for i, entry := range p.Entries() {
		if entry != before[i] {
			t.Errorf("nil comparator moved entry %d", i)
		}
	}

	if err := p.Sort(bib.Reverse(bib.ByID)); err != nil {
		t.Fatalf("Sort() error = %v", err)
	}
	if got := strings.Join(idsOf(p), ","); got != "smith10,smith2,jones" {
		t.Errorf("reverse ByID order = %s", got)
	}
}

func TestPipeline_BibTeX(t *testing.T) {
	var formatted []string
	p, container := loadThree(t, Config{
		BibTeXSource: bibLoc,
		CrossCheck:   true,
		BibTeXFormatter: func(id, stanza string) *etree.Element {
			formatted = append(formatted, id)
			el := etree.NewElement("pre")
			el.SetText(stanza)
			return el
		},
	})

	if len(formatted) != 3 {
		t.Errorf("formatter called %d times, want 3", len(formatted))
	}
	pre := container.FindElement("./div[@data-bibtexid='smith2']/pre")
	if pre == nil || pre.Text() != "@book{smith2, title={Mango}}" {
		t.Error("stanza for smith2 expected in rendered entry")
	}

	got, ok := p.LookupSource("jones")
	if !ok {
		t.Fatal("LookupSource(jones) missed")
	}
	if got != "@article{jones, title={Apple}, note={mail a@b.org}}" {
		t.Errorf("LookupSource(jones) = %q", got)
	}
	if _, ok := p.LookupSource("smith"); ok {
		t.Error("LookupSource(smith) must miss")
	}
	if p.Source() == nil {
		t.Error("Source() expected after load")
	}
}

func TestPipeline_Lenient(t *testing.T) {
	fetcher := memFetcher{
		jsonLoc: []byte(`[{"id":"a","title":"A"},{"id":"b","title":"B"}]`),
		bibLoc:  []byte(`@book{b, title={B}}`),
	}
	var formatted []string
	p := New(Config{
		BibJSONSource: jsonLoc,
		BibTeXSource:  bibLoc,
		CrossCheck:    true,
		Lenient:       true,
		BibTeXFormatter: func(id, stanza string) *etree.Element {
			formatted = append(formatted, id)
			return etree.NewElement("pre")
		},
	}, fetcher, zaptest.NewLogger(t))

	container := newContainer("pubs")
	if err := p.Load(context.Background(), container); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(container.ChildElements()) != 2 {
		t.Errorf("rendered %d entries, want 2", len(container.ChildElements()))
	}
	if strings.Join(formatted, ",") != "b" {
		t.Errorf("formatted %v, want only b", formatted)
	}
	if container.FindElement("./div[@data-bibtexid='a']/pre") != nil {
		t.Error("record without stanza must render without BibTeX field")
	}
}

func TestPipeline_Charset(t *testing.T) {
	encoded, err := charmap.Windows1251.NewEncoder().String(`@book{ivanov, title={Сказки}}`)
	if err != nil {
		t.Fatal(err)
	}
	fetcher := memFetcher{
		jsonLoc: []byte(`[{"id":"ivanov","title":"Сказки"}]`),
		bibLoc:  []byte(encoded),
	}
	p := New(Config{BibJSONSource: jsonLoc, BibTeXSource: bibLoc, BibTeXCharset: "windows-1251"}, fetcher, zaptest.NewLogger(t))
	if err := p.Load(context.Background(), newContainer("pubs")); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	got, ok := p.LookupSource("ivanov")
	if !ok || !strings.Contains(got, "Сказки") {
		t.Errorf("LookupSource() = %q, want decoded stanza", got)
	}
}

func TestPipeline_CustomRenderers(t *testing.T) {
	tmpl, err := render.TemplateField("year", `{{ .Year }}`)
	if err != nil {
		t.Fatal(err)
	}
	_, container := loadThree(t, Config{
		FieldOrder: []string{"year", render.FieldTitle},
		Renderers:  render.Registry{"year": tmpl},
		EntryClass: "pub",
		Shell:      func() *etree.Element { return etree.NewElement("li") },
	})

	first := container.SelectElement("li")
	if first == nil {
		t.Fatal("li entries expected")
	}
	if !render.HasClass(first, "pub") {
		t.Errorf("class = %q, want custom entry class", first.SelectAttrValue("class", ""))
	}
	children := first.ChildElements()
	if len(children) != 2 || children[0].Text() != "2010" || children[1].Text() != "Zebra" {
		t.Error("year then title expected in first entry")
	}
}

func TestState_String(t *testing.T) {
	for s, want := range map[State]string{Unloaded: "unloaded", Loading: "loading", Ready: "ready", Failed: "failed", State(9): "State(9)"} {
		if got := s.String(); got != want {
			t.Errorf("String() = %q, want %q", got, want)
		}
	}
}
