package convert

import (
	"encoding/base64"
	"os"

	"github.com/beevik/etree"
	"github.com/google/uuid"
	"go.uber.org/multierr"

	"bibr/misc"
)

const containerClass = "bibliography"

// newDocument builds HTML5 document skeleton and returns it together with
// empty container for rendered entries.
func newDocument(title, containerID string, style []byte, runID uuid.UUID) (*etree.Document, *etree.Element) {
	doc := etree.NewDocument()
	// no self closing tags in html, end tags of void elements are ignored
	doc.WriteSettings.CanonicalEndTags = true
	doc.WriteSettings.CanonicalText = true

	doc.CreateDirective("DOCTYPE html")
	html := doc.CreateElement("html")

	head := html.CreateElement("head")
	head.CreateElement("meta").CreateAttr("charset", "utf-8")
	meta := head.CreateElement("meta")
	meta.CreateAttr("name", "generator")
	meta.CreateAttr("content", misc.GetAppName()+" "+misc.GetVersion())
	meta = head.CreateElement("meta")
	meta.CreateAttr("name", misc.GetAppName()+"-run")
	meta.CreateAttr("content", runID.String())
	head.CreateElement("title").SetText(title)
	if len(style) > 0 {
		link := head.CreateElement("link")
		link.CreateAttr("rel", "stylesheet")
		link.CreateAttr("href", "data:text/css;base64,"+base64.StdEncoding.EncodeToString(style))
	}

	body := html.CreateElement("body")
	if len(title) > 0 {
		body.CreateElement("h1").SetText(title)
	}
	container := body.CreateElement("div")
	container.CreateAttr("id", containerID)
	container.CreateAttr("class", containerClass)
	return doc, container
}

// bibtexDetails presents BibTeX stanza as collapsed block.
func bibtexDetails(_ string, stanza string) *etree.Element {
	details := etree.NewElement("details")
	details.CreateAttr("class", "bibtex")
	details.CreateElement("summary").SetText("BibTeX")
	details.CreateElement("pre").SetText(stanza)
	return details
}

func writeDocument(doc *etree.Document, name string) (err error) {
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, f.Close())
	}()
	_, err = doc.WriteTo(f)
	return err
}
