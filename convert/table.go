package convert

import (
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"bibr/bib"
	"bibr/bibtex"
)

const maxTextColumnWidth = 48

// renderRecordsTable formats records for terminal, BibTeX column is present
// only when source was loaded.
func renderRecordsTable(records []*bib.Record, source *bibtex.Source) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := table.Row{"#", "ID", "Type", "Year", "Authors", "Title"}
	if source != nil {
		header = append(header, "BibTeX")
	}
	tw.AppendHeader(header)

	for i, rec := range records {
		year := ""
		if y := rec.Year(); y != 0 {
			year = strconv.Itoa(y)
		}
		row := table.Row{i + 1, rec.ID, rec.Type, year, bib.JoinNames(rec.Author), rec.Title}
		if source != nil {
			mark := "-"
			if source.Verify(rec.ID) {
				mark = "yes"
			}
			row = append(row, mark)
		}
		tw.AppendRow(row)
	}

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 4, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 5, WidthMax: maxTextColumnWidth, WidthMaxEnforcer: text.WrapSoft},
		{Number: 6, WidthMax: maxTextColumnWidth, WidthMaxEnforcer: text.WrapSoft},
	})
	return tw.Render()
}
