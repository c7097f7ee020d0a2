// Package pipeline loads bibliography sources, renders entries into a
// caller supplied container and manipulates rendered entries afterwards.
package pipeline

import (
	"context"
	"fmt"
	"slices"

	"github.com/beevik/etree"
	"go.uber.org/zap"

	"bibr/bib"
	"bibr/bibtex"
	"bibr/config"
	"bibr/render"
)

// State of the pipeline.
type State int

const (
	Unloaded State = iota
	Loading
	Ready
	Failed
)

func (s State) String() string {
	switch s {
	case Unloaded:
		return "unloaded"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Config describes sources and rendering of the pipeline. Zero values are
// replaced with defaults by New.
type Config struct {
	BibJSONSource string
	// BibTeXSource is optional, when empty entries are rendered without
	// BibTeX correlation.
	BibTeXSource string
	// BibTeXCharset forces IANA charset of BibTeX source, detected when empty.
	BibTeXCharset string

	HiddenClass     string
	EntryClass      string
	IdentifierField string
	FieldOrder      []string

	Shell render.ShellFactory
	// Renderers replace or extend built in field renderers by name.
	Renderers          render.Registry
	IDGeneratorFactory render.IDGeneratorFactory

	// CrossCheck requires opening stanza in BibTeX source for every record
	// before anything is rendered.
	CrossCheck bool
	// Lenient turns off BibTeX verification: cross check is skipped and
	// records without stanza render without BibTeX field.
	Lenient         bool
	Duplicates      config.DuplicatePolicy
	BibTeXFormatter render.BibTeXFormatter

	// OnReady is called once after the first successful render.
	OnReady func(p *Pipeline)
}

func (cfg Config) withDefaults() Config {
	if len(cfg.HiddenClass) == 0 {
		cfg.HiddenClass = "hidden"
	}
	if len(cfg.EntryClass) == 0 {
		cfg.EntryClass = "publication"
	}
	if len(cfg.IdentifierField) == 0 {
		cfg.IdentifierField = "bibtexid"
	}
	if len(cfg.FieldOrder) == 0 {
		cfg.FieldOrder = slices.Clone(render.DefaultFieldOrder)
	}
	if cfg.Shell == nil {
		cfg.Shell = render.DivShell
	}
	if cfg.IDGeneratorFactory == nil {
		cfg.IDGeneratorFactory = render.NewIDGenerator
	}
	return cfg
}

// Pipeline owns record store and rendered entries of a single load. It is not
// safe for concurrent use.
type Pipeline struct {
	cfg     Config
	fetcher Fetcher
	log     *zap.Logger

	state     State
	notified  bool
	store     *bib.Store
	source    *bibtex.Source
	container *etree.Element
	entries   []*etree.Element
	byID      map[string]*etree.Element
	dataAttr  string
}

func New(cfg Config, fetcher Fetcher, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{
		cfg:     cfg.withDefaults(),
		fetcher: fetcher,
		log:     log.Named("pipeline"),
	}
}

// Load fetches sources and renders all records into container replacing
// entries of previous load. Nothing in container is changed unless every
// record renders successfully.
func (p *Pipeline) Load(ctx context.Context, container *etree.Element) error {
	if p.state == Loading {
		return ErrLoadInProgress
	}
	if container == nil {
		return fmt.Errorf("no container to render into: %w", render.ErrMissingContainerIdentifier)
	}

	p.state = Loading
	res, err := p.load(ctx, container)
	if err != nil {
		p.state = Failed
		p.log.Debug("Load failed", zap.Error(err))
		return err
	}

	p.attach(container, res)
	p.state = Ready
	p.log.Info("Bibliography ready",
		zap.Int("records", res.store.Len()),
		zap.Bool("bibtex", res.source != nil),
		zap.String("container", container.SelectAttrValue("id", "")))

	if !p.notified {
		p.notified = true
		if p.cfg.OnReady != nil {
			p.cfg.OnReady(p)
		}
	}
	return nil
}

type loadResult struct {
	store   *bib.Store
	source  *bibtex.Source
	entries []*etree.Element
	attr    string
}

func (p *Pipeline) load(ctx context.Context, container *etree.Element) (*loadResult, error) {
	ids, err := p.cfg.IDGeneratorFactory(container.SelectAttrValue("id", ""))
	if err != nil {
		return nil, err
	}

	data, err := p.fetcher.Fetch(ctx, p.cfg.BibJSONSource)
	if err != nil {
		return nil, &SourceUnavailableError{Source: SourceBibJSON, Location: p.cfg.BibJSONSource, Err: err}
	}
	p.log.Debug("BibJSON fetched", zap.String("location", p.cfg.BibJSONSource), zap.Int("size", len(data)))

	records, err := bib.ParseRecords(data)
	if err != nil {
		return nil, &SourceUnavailableError{Source: SourceBibJSON, Location: p.cfg.BibJSONSource, Err: err}
	}

	res := &loadResult{store: bib.NewStore(p.cfg.Duplicates)}
	if err := res.store.Load(records); err != nil {
		return nil, err
	}

	if len(p.cfg.BibTeXSource) > 0 {
		if res.source, err = p.loadBibTeX(ctx); err != nil {
			return nil, err
		}
		p.reportOrphans(res.store, res.source)
	}

	if p.cfg.CrossCheck && !p.cfg.Lenient && res.source != nil {
		for _, rec := range res.store.All() {
			if err := res.source.Check(rec.ID); err != nil {
				return nil, err
			}
		}
	}

	source := func() *bibtex.Source { return res.source }
	registry := render.DefaultRegistry(source, p.cfg.BibTeXFormatter)
	if p.cfg.Lenient {
		registry[render.FieldBibTeX] = render.LenientBibTeXField(source, p.cfg.BibTeXFormatter)
	}
	registry = registry.Merge(p.cfg.Renderers)
	fields, err := registry.Resolve(p.cfg.FieldOrder)
	if err != nil {
		return nil, err
	}

	renderer := &render.EntryRenderer{
		Shell:      p.cfg.Shell,
		Fields:     fields,
		EntryClass: p.cfg.EntryClass,
		DataAttr:   p.cfg.IdentifierField,
	}
	res.attr = renderer.DataAttrName()
	for _, rec := range res.store.All() {
		entry, err := renderer.Render(rec, ids)
		if err != nil {
			return nil, fmt.Errorf("record %q: %w", rec.ID, err)
		}
		res.entries = append(res.entries, entry)
	}
	return res, nil
}

func (p *Pipeline) loadBibTeX(ctx context.Context) (*bibtex.Source, error) {
	src, err := LoadBibTeX(ctx, p.fetcher, p.cfg.BibTeXSource, p.cfg.BibTeXCharset)
	if err != nil {
		return nil, err
	}
	p.log.Debug("BibTeX loaded", zap.String("location", p.cfg.BibTeXSource), zap.Int("stanzas", len(src.Keys())))
	return src, nil
}

// LoadBibTeX fetches BibTeX text, converts it to UTF-8 (charset is IANA name,
// empty means detect) and prepares it for stanza lookups.
func LoadBibTeX(ctx context.Context, fetcher Fetcher, location, charset string) (*bibtex.Source, error) {
	data, err := fetcher.Fetch(ctx, location)
	if err != nil {
		return nil, &SourceUnavailableError{Source: SourceBibTeX, Location: location, Err: err}
	}
	text, _, err := decodeText(data, charset)
	if err != nil {
		return nil, &SourceUnavailableError{Source: SourceBibTeX, Location: location, Err: err}
	}
	return bibtex.NewSource(text), nil
}

// reportOrphans warns about stanzas without matching records.
func (p *Pipeline) reportOrphans(store *bib.Store, source *bibtex.Source) {
	for _, key := range source.Keys() {
		if _, ok := store.Get(key); !ok {
			p.log.Warn("BibTeX stanza has no matching record", zap.String("key", key))
		}
	}
}

// attach replaces previously rendered entries in container.
func (p *Pipeline) attach(container *etree.Element, res *loadResult) {
	if p.container != nil {
		for _, old := range p.entries {
			if parent := old.Parent(); parent != nil {
				parent.RemoveChild(old)
			}
		}
	}
	for _, el := range slices.Clone(container.ChildElements()) {
		if el.SelectAttr(res.attr) != nil {
			container.RemoveChild(el)
		}
	}

	byID := make(map[string]*etree.Element, len(res.entries))
	for _, entry := range res.entries {
		container.AddChild(entry)
		byID[entry.SelectAttrValue(res.attr, "")] = entry
	}

	p.store, p.source, p.container = res.store, res.source, container
	p.entries, p.byID, p.dataAttr = res.entries, byID, res.attr
}

// Filter hides entries of records not satisfying predicate and shows the rest.
// Nil predicate shows everything. Entries are never recreated.
func (p *Pipeline) Filter(pred bib.Predicate) error {
	if p.state != Ready {
		return ErrNotReady
	}
	if pred == nil {
		pred = bib.All
	}
	for _, rec := range p.store.All() {
		if entry, ok := p.byID[rec.ID]; ok {
			render.ToggleClass(entry, p.cfg.HiddenClass, !pred(rec))
		}
	}
	return nil
}

// Sort reorders rendered entries in place using comparator over their
// records. Sort is stable, nil comparator keeps current order.
func (p *Pipeline) Sort(cmp bib.Comparator) error {
	if p.state != Ready {
		return ErrNotReady
	}
	if cmp == nil || len(p.entries) < 2 {
		return nil
	}

	type pair struct {
		entry *etree.Element
		rec   *bib.Record
	}
	pairs := make([]pair, 0, len(p.entries))
	for _, entry := range p.entries {
		id := entry.SelectAttrValue(p.dataAttr, "")
		rec, ok := p.store.Get(id)
		if !ok {
			return fmt.Errorf("rendered entry %q has no record", id)
		}
		pairs = append(pairs, pair{entry: entry, rec: rec})
	}
	slices.SortStableFunc(pairs, func(a, b pair) int { return cmp(a.rec, b.rec) })

	// put sorted entries into slots occupied by entries before sorting so
	// that unrelated container content keeps its place
	slots := make([]int, 0, len(p.entries))
	for _, entry := range p.entries {
		slots = append(slots, entry.Index())
	}
	slices.Sort(slots)
	for i := len(slots) - 1; i >= 0; i-- {
		p.container.RemoveChildAt(slots[i])
	}
	for i, slot := range slots {
		p.container.InsertChildAt(slot, pairs[i].entry)
		p.entries[i] = pairs[i].entry
	}
	return nil
}

// LookupSource returns normalized BibTeX stanza for record identifier. It
// reports false when BibTeX source was not loaded or has no such stanza.
func (p *Pipeline) LookupSource(id string) (string, bool) {
	return p.source.Locate(id)
}

// Records returns records in current display order.
func (p *Pipeline) Records() []*bib.Record {
	res := make([]*bib.Record, 0, len(p.entries))
	for _, entry := range p.entries {
		if rec, ok := p.store.Get(entry.SelectAttrValue(p.dataAttr, "")); ok {
			res = append(res, rec)
		}
	}
	return res
}

// Visible returns records of entries not hidden by Filter in display order.
func (p *Pipeline) Visible() []*bib.Record {
	res := make([]*bib.Record, 0, len(p.entries))
	for _, entry := range p.entries {
		if render.HasClass(entry, p.cfg.HiddenClass) {
			continue
		}
		if rec, ok := p.store.Get(entry.SelectAttrValue(p.dataAttr, "")); ok {
			res = append(res, rec)
		}
	}
	return res
}

// Entries returns rendered entries in current display order.
func (p *Pipeline) Entries() []*etree.Element {
	return slices.Clone(p.entries)
}

func (p *Pipeline) State() State {
	return p.state
}

// Store returns record store of the last successful load, nil before that.
func (p *Pipeline) Store() *bib.Store {
	return p.store
}

// Source returns BibTeX source of the last successful load, nil when not
// configured.
func (p *Pipeline) Source() *bibtex.Source {
	return p.source
}
