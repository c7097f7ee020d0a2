package render

import (
	"fmt"

	"github.com/beevik/etree"

	"bibr/bib"
)

// ShellFactory creates empty entry element.
type ShellFactory func() *etree.Element

// DivShell is the default entry shell.
func DivShell() *etree.Element {
	return etree.NewElement("div")
}

// EntryRenderer composes field renderers into a single entry element.
type EntryRenderer struct {
	Shell      ShellFactory
	Fields     []Field
	EntryClass string
	// DataAttr is name of data attribute ("data-" prefix is added) carrying
	// raw record identifier for reverse lookups.
	DataAttr string
}

// DataAttrName returns full attribute name holding record identifier.
func (r *EntryRenderer) DataAttrName() string {
	return "data-" + r.DataAttr
}

// Render builds entry for the record. Absent fields are skipped, field errors
// abort rendering of the entry.
func (r *EntryRenderer) Render(rec *bib.Record, ids IDGenerator) (*etree.Element, error) {
	shell := r.Shell
	if shell == nil {
		shell = DivShell
	}
	entry := shell()
	entry.CreateAttr(r.DataAttrName(), rec.ID)
	entry.CreateAttr("id", ids(rec.ID))
	if len(rec.Type) > 0 {
		AddClass(entry, Sanitize(rec.Type))
	}
	AddClass(entry, r.EntryClass)

	appended := 0
	for _, f := range r.Fields {
		el, err := f.Renderer.Render(rec)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		if el == nil {
			continue
		}
		if appended > 0 {
			entry.CreateText(" ")
		}
		entry.AddChild(el)
		appended++
	}
	return entry, nil
}
