// Package render turns bibliographic records into element trees. Entry is
// composed from an ordered list of named field renderers which installations
// may reorder or replace.
package render

import (
	"fmt"
	"slices"
	"strings"

	"github.com/beevik/etree"

	"bibr/bib"
)

// Names of built in field renderers.
const (
	FieldTitle      = "title"
	FieldAuthor     = "author"
	FieldEditor     = "editor"
	FieldPublishing = "publishing"
	FieldBibTeX     = "bibtex"
)

// DefaultFieldOrder is used when configuration does not specify one.
var DefaultFieldOrder = []string{FieldTitle, FieldAuthor, FieldPublishing, FieldBibTeX}

// FieldRenderer renders a single field of the record. Nil element with nil
// error means the field is absent and is skipped.
type FieldRenderer interface {
	Render(rec *bib.Record) (*etree.Element, error)
}

// FieldRendererFunc adapts function to FieldRenderer.
type FieldRendererFunc func(rec *bib.Record) (*etree.Element, error)

func (f FieldRendererFunc) Render(rec *bib.Record) (*etree.Element, error) {
	return f(rec)
}

// Field is a named renderer in the entry order.
type Field struct {
	Name     string
	Renderer FieldRenderer
}

// Registry maps field names to renderers.
type Registry map[string]FieldRenderer

// Merge returns new registry with overrides applied on top of r.
func (r Registry) Merge(overrides Registry) Registry {
	res := make(Registry, len(r)+len(overrides))
	for name, fr := range r {
		res[name] = fr
	}
	for name, fr := range overrides {
		res[name] = fr
	}
	return res
}

// Names returns sorted list of registered field names.
func (r Registry) Names() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Resolve builds ordered field list, unknown names are reported.
func (r Registry) Resolve(order []string) ([]Field, error) {
	fields := make([]Field, 0, len(order))
	for _, name := range order {
		fr, ok := r[name]
		if !ok || fr == nil {
			return nil, fmt.Errorf("unknown field renderer %q, available: %s", name, strings.Join(r.Names(), ", "))
		}
		fields = append(fields, Field{Name: name, Renderer: fr})
	}
	return fields, nil
}
