package convert

import (
	"fmt"
	"strings"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.org/x/text/language"

	"bibr/bib"
	"bibr/config"
)

// Options are per run settings, command line flags take precedence over
// configuration.
type Options struct {
	BibJSON       string
	BibTeX        string
	BibTeXCharset string
	ContainerID   string

	Query   string
	Types   []string
	Sort    config.SortKey
	Reverse bool

	NoVerify    bool
	EmbedBibTeX bool
	CrossCheck  bool
}

// optionsFromConfig returns options with configured defaults.
func optionsFromConfig(cfg *config.Config) *Options {
	return &Options{
		BibJSON:       cfg.Sources.BibJSON,
		BibTeX:        cfg.Sources.BibTeX,
		BibTeXCharset: cfg.Sources.BibTeXCharset,
		ContainerID:   cfg.Render.ContainerID,
		Sort:          cfg.Render.Sort,
		EmbedBibTeX:   cfg.Render.EmbedBibTeX,
		CrossCheck:    cfg.Render.CrossCheck,
	}
}

// optionsFromCommand overlays configuration with whatever was set on the
// command line.
func optionsFromCommand(cmd *cli.Command, cfg *config.Config) (*Options, error) {
	opts := optionsFromConfig(cfg)

	if src := cmd.Args().First(); len(src) > 0 {
		opts.BibJSON = src
	}
	if cmd.IsSet("bibtex") {
		opts.BibTeX = cmd.String("bibtex")
	}
	if cmd.IsSet("bibtex-charset") {
		opts.BibTeXCharset = cmd.String("bibtex-charset")
	}
	if cmd.IsSet("container-id") {
		opts.ContainerID = cmd.String("container-id")
	}
	if cmd.IsSet("sort") {
		key, err := config.ParseSortKey(cmd.String("sort"))
		if err != nil {
			return nil, err
		}
		opts.Sort = key
	}
	if cmd.IsSet("embed-bibtex") {
		opts.EmbedBibTeX = cmd.Bool("embed-bibtex")
	}
	opts.Query = cmd.String("filter")
	opts.Types = cmd.StringSlice("type")
	opts.Reverse = cmd.Bool("reverse")
	opts.NoVerify = cmd.Bool("no-verify")

	if len(opts.BibJSON) == 0 {
		return nil, fmt.Errorf("no BibJSON source has been specified")
	}
	return opts, nil
}

// Predicate combines query and type selection, nil when nothing is selected.
func (o *Options) Predicate() bib.Predicate {
	var preds []bib.Predicate
	if q := strings.TrimSpace(o.Query); len(q) > 0 {
		preds = append(preds, bib.MatchQuery(q))
	}
	if len(o.Types) > 0 {
		preds = append(preds, bib.OfType(o.Types...))
	}
	switch len(preds) {
	case 0:
		return nil
	case 1:
		return preds[0]
	}
	return bib.And(preds...)
}

// Comparator for selected sort key, nil keeps load order. Reverse has no
// effect without a sort key.
func (o *Options) Comparator(tag language.Tag) bib.Comparator {
	cmp := bib.ComparatorFor(o.Sort, tag)
	if !o.Reverse {
		return cmp
	}
	if cmp == nil {
		return nil
	}
	return bib.Reverse(cmp)
}

// collationTag parses configured language, undetermined language is used
// when configuration is empty or broken.
func collationTag(name string, log *zap.Logger) language.Tag {
	if len(name) == 0 {
		return language.Und
	}
	tag, err := language.Parse(name)
	if err != nil {
		log.Warn("Unable to parse collation language, using default", zap.String("language", name), zap.Error(err))
		return language.Und
	}
	return tag
}
