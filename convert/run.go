// Package convert implements program commands: rendering bibliography into
// HTML document, BibTeX lookups and record listings.
package convert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/beevik/etree"
	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"bibr/pipeline"
	"bibr/render"
	"bibr/state"
)

// Render is "render" command action.
func Render(ctx context.Context, cmd *cli.Command) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("render")

	opts, err := optionsFromCommand(cmd, env.Cfg)
	if err != nil {
		return err
	}

	dst := cmd.Args().Get(1)
	if len(dst) == 0 {
		if dst, err = os.Getwd(); err != nil {
			return fmt.Errorf("unable to get working directory: %w", err)
		}
	}
	if dst, err = filepath.Abs(dst); err != nil {
		return err
	}
	if cmd.Args().Len() > 2 {
		log.Warn("Malformed command line, too many destinations", zap.Strings("ignoring", cmd.Args().Slice()[2:]))
	}

	env.Overwrite = cmd.Bool("overwrite")

	log.Info("Processing starting", zap.String("source", opts.BibJSON), zap.String("destination", dst), zap.Stringer("run", env.RunID))
	defer func(start time.Time) {
		log.Info("Processing completed", zap.Duration("elapsed", time.Since(start)))
	}(time.Now())

	return renderBibliography(ctx, opts, dst, log)
}

// Lookup is "lookup" command action.
func Lookup(ctx context.Context, cmd *cli.Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("lookup")

	opts := optionsFromConfig(env.Cfg)
	if cmd.IsSet("bibtex") {
		opts.BibTeX = cmd.String("bibtex")
	}
	if cmd.IsSet("bibtex-charset") {
		opts.BibTeXCharset = cmd.String("bibtex-charset")
	}
	if len(opts.BibTeX) == 0 {
		return errors.New("no BibTeX source has been specified")
	}
	ids := cmd.Args().Slice()
	if len(ids) == 0 {
		return errors.New("no identifiers to look up")
	}
	return lookupStanzas(ctx, opts, ids, os.Stdout, log)
}

// List is "list" command action.
func List(ctx context.Context, cmd *cli.Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("list")

	opts, err := optionsFromCommand(cmd, env.Cfg)
	if err != nil {
		return err
	}
	return listRecords(ctx, opts, os.Stdout, log)
}

// pipelineConfig translates configuration and options into pipeline settings.
func pipelineConfig(env *state.LocalEnv, opts *Options) (pipeline.Config, error) {
	renderers, err := render.TemplateRegistry(env.Cfg.Render.Templates)
	if err != nil {
		return pipeline.Config{}, err
	}

	cfg := pipeline.Config{
		BibJSONSource:   opts.BibJSON,
		BibTeXSource:    opts.BibTeX,
		BibTeXCharset:   opts.BibTeXCharset,
		HiddenClass:     env.Cfg.Render.HiddenClass,
		EntryClass:      env.Cfg.Render.EntryClass,
		IdentifierField: env.Cfg.Render.IdentifierField,
		FieldOrder:      env.Cfg.Render.FieldOrder,
		Renderers:       renderers,
		CrossCheck:      opts.CrossCheck,
		Lenient:         opts.NoVerify,
		Duplicates:      env.Cfg.Render.Duplicates,
		OnReady: func(p *pipeline.Pipeline) {
			if env.Rpt != nil {
				env.Rpt.StoreData("records.txt", []byte(p.Store().Dump()))
			}
		},
	}
	if opts.EmbedBibTeX {
		cfg.BibTeXFormatter = bibtexDetails
	}
	return cfg, nil
}

// loadPipeline loads records into container and applies selection and
// ordering from options.
func loadPipeline(ctx context.Context, opts *Options, container *etree.Element, log *zap.Logger) (*pipeline.Pipeline, error) {
	env := state.EnvFromContext(ctx)

	cfg, err := pipelineConfig(env, opts)
	if err != nil {
		return nil, err
	}
	p := pipeline.New(cfg, newFetcher(env, log), log)
	if err := p.Load(ctx, container); err != nil {
		return nil, fmt.Errorf("unable to load bibliography: %w", err)
	}
	if err := p.Filter(opts.Predicate()); err != nil {
		return nil, err
	}
	if err := p.Sort(opts.Comparator(collationTag(env.Cfg.Render.CollationLanguage, log))); err != nil {
		return nil, err
	}
	return p, nil
}

// renderBibliography handles the core rendering logic independently of CLI
// framework. "dst" is the destination directory.
func renderBibliography(ctx context.Context, opts *Options, dst string, log *zap.Logger) error {
	env := state.EnvFromContext(ctx)

	style, err := stylesheet(env, log)
	if err != nil {
		return err
	}

	doc, container := newDocument(env.Cfg.Render.DocumentTitle, opts.ContainerID, style, env.RunID)
	p, err := loadPipeline(ctx, opts, container, log)
	if err != nil {
		return err
	}

	values := Values{
		SourceFile:  sourceBaseName(opts.BibJSON),
		ContainerID: opts.ContainerID,
		Count:       len(p.Visible()),
		Date:        env.Started().Format("2006-01-02"),
		RunID:       env.RunID.String(),
	}
	outputName := buildOutputPath(values, dst, env)

	// Check if output file already exists
	if _, err := os.Stat(outputName); err == nil {
		if !env.Overwrite {
			return fmt.Errorf("output file already exists: %s", outputName)
		}
		log.Warn("Overwriting existing file", zap.String("file", outputName))
		if err = os.Remove(outputName); err != nil {
			return err
		}
	} else if !os.IsNotExist(err) {
		return err
	} else if err := os.MkdirAll(filepath.Dir(outputName), 0755); err != nil {
		return fmt.Errorf("unable to create output directory: %w", err)
	}

	if err := writeDocument(doc, outputName); err != nil {
		return fmt.Errorf("unable to write output: %w", err)
	}
	log.Info("Bibliography rendered",
		zap.String("to", outputName), zap.Int("records", len(p.Records())), zap.Int("visible", values.Count))

	// Store rendering result for debugging
	env.Rpt.Store(fmt.Sprintf("result-%s%s", env.RunID, outputExt), outputName)
	return nil
}

// stylesheet returns configured style or embedded default one. Style which
// does not hide filtered out entries is accepted with a warning.
func stylesheet(env *state.LocalEnv, log *zap.Logger) ([]byte, error) {
	name := env.Cfg.Render.StylesheetPath
	if name == "" {
		return env.DefaultStyle, nil
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("unable to read style css from %q: %w", name, err)
	}
	if err := env.Rpt.StoreCopy("stylesheet.css", name); err != nil {
		log.Warn("Unable to store stylesheet in report", zap.Error(err))
	}

	sum, err := inspectStylesheet(data, env.Cfg.Render.HiddenClass)
	if err != nil {
		return nil, fmt.Errorf("bad style css %q: %w", name, err)
	}
	if !sum.Classes[env.Cfg.Render.HiddenClass] {
		log.Warn("Stylesheet has no rules for hidden class, filtered out entries will be visible",
			zap.String("file", name), zap.String("class", env.Cfg.Render.HiddenClass))
	}
	log.Debug("Using stylesheet", zap.String("file", name), zap.Int("rules", sum.Rules))
	return data, nil
}

// lookupStanzas prints stanza for every requested identifier found in BibTeX
// source. It fails only when nothing was found.
func lookupStanzas(ctx context.Context, opts *Options, ids []string, out io.Writer, log *zap.Logger) error {
	env := state.EnvFromContext(ctx)

	src, err := pipeline.LoadBibTeX(ctx, newFetcher(env, log), opts.BibTeX, opts.BibTeXCharset)
	if err != nil {
		return err
	}

	found := 0
	for _, id := range ids {
		stanza, ok := src.Locate(id)
		if !ok {
			log.Warn("Stanza not found", zap.String("id", id))
			continue
		}
		found++
		if _, err := fmt.Fprintln(out, stanza); err != nil {
			return err
		}
	}
	if found == 0 {
		return fmt.Errorf("none of requested identifiers found in %s", opts.BibTeX)
	}
	log.Debug("Lookup completed", zap.Int("requested", len(ids)), zap.Int("found", found))
	return nil
}

// listRecords prints table of selected records in requested order. Listing
// never fails on records without BibTeX stanza.
func listRecords(ctx context.Context, opts *Options, out io.Writer, log *zap.Logger) error {
	listOpts := *opts
	listOpts.NoVerify, listOpts.EmbedBibTeX = true, false

	container := etree.NewElement("div")
	container.CreateAttr("id", opts.ContainerID)

	p, err := loadPipeline(ctx, &listOpts, container, log)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, renderRecordsTable(p.Visible(), p.Source()))
	return err
}
