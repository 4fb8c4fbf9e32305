package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/nao1215/autoarchiver/internal/module"
	"github.com/nao1215/autoarchiver/internal/pipeline"
)

// newTable returns a rounded table with the given header.
func newTable(header ...any) table.Writer {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row(header))
	return tw
}

// optionTable lists the options of one module, one row per option flag.
func optionTable(m *module.Manifest, rows []table.Row) string {
	tw := newTable("Option", "Type", "Default", "Flags", "Help")
	tw.AppendRows(rows)
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Help", WidthMax: 60},
	})
	tw.SetCaption("%d option(s) for %s", len(rows), m.Module())
	return tw.Render()
}

// summaryTable lists run outcomes in feed order with a totals footer.
func summaryTable(s *pipeline.Summary, rows []table.Row, media int) string {
	tw := newTable("#", "URL", "State", "Status", "Media")
	tw.AppendRows(rows)
	failed := s.Count(pipeline.StateFailed) + s.Count(pipeline.StateAborted)
	tw.AppendFooter(table.Row{
		"", fmt.Sprintf("%d processed", s.Processed),
		fmt.Sprintf("%d done, %d failed", s.Count(pipeline.StateDone), failed),
		"", media,
	})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Name: "#", Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Name: "Media", Align: text.AlignRight, AlignHeader: text.AlignLeft, AlignFooter: text.AlignRight},
	})
	return tw.Render()
}
