package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/autoarchiver/internal/model"
)

// MarkdownWriter outputs items in Markdown format with
// github.com/nao1215/markdown.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the item in Markdown format.
func (w *MarkdownWriter) Write(item *model.Item) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, item)
	w.writeStatus(md, item)
	w.writeAttributes(md, item)
	w.writeMedia(md, item)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, item *model.Item) {
	md.H1(Heading(item))
	md.PlainText("")

	u, _ := item.URL()
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"URL", "`" + u + "`"},
			{"Status", item.Status},
			{"Archived At", item.ProcessedAt.UTC().Format("2006-01-02 15:04:05 MST")},
			{"Assets", strconv.Itoa(len(item.AllMedia()))},
		},
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeStatus(md *markdown.Markdown, item *model.Item) {
	switch {
	case item.IsSuccess():
		md.Tip(fmt.Sprintf("Archived by %s.", item.Origin()))
	case item.Status == model.StatusNothingArchived:
		md.Note("The archiver ran but nothing was archived.")
	default:
		md.Warningf("No archiver could handle this URL (%s).", item.Status)
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeAttributes(md *markdown.Markdown, item *model.Item) {
	md.H2("Attributes")
	md.PlainText("")

	attrs := Attributes(item)
	if len(attrs) == 0 {
		md.PlainText("No attributes recorded.")
		md.PlainText("")
		return
	}

	rows := make([][]string, 0, len(attrs))
	var long []Attribute
	for _, a := range attrs {
		value := a.Value
		if value == "" {
			value = "-"
		}
		if len([]rune(value)) > 80 || strings.Contains(value, "\n") {
			long = append(long, a)
		}
		rows = append(rows, []string{a.Key, escapeCell(truncateString(value, 80))})
	}
	md.Table(markdown.TableSet{Header: []string{"Key", "Value"}, Rows: rows})
	md.PlainText("")

	for _, a := range long {
		md.Details(a.Key, a.Value)
	}
	if len(long) > 0 {
		md.PlainText("")
	}
}

func (w *MarkdownWriter) writeMedia(md *markdown.Markdown, item *model.Item) {
	md.H2("Media")
	md.PlainText("")

	media := item.AllMedia()
	if len(media) == 0 {
		md.PlainText("No media archived.")
		md.PlainText("")
		return
	}

	rows := make([][]string, 0, len(media))
	for _, m := range media {
		location := "-"
		if len(m.URLs) > 0 {
			location = strings.Join(m.URLs, "<br>")
		}
		mt := m.Mimetype()
		if mt == "" {
			mt = "-"
		}
		hash := m.Hash()
		if hash == "" {
			hash = "-"
		}
		rows = append(rows, []string{m.Key(), mt, truncateString(hash, 30), location})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Key", "Type", "Hash", "Stored At"},
		Rows:   rows,
	})
	md.PlainText("")

	kinds, counts := mediaTypes(media)
	if len(kinds) > 1 {
		w.writePieChart(md, kinds, counts)
	}
}

func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, kinds []string, counts map[string]int) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Media Types"),
		piechart.WithShowData(true),
	)
	for _, k := range kinds {
		chart.LabelAndIntValue(k, uint64(counts[k]))
	}
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Generated by autoarchiver on %s*", time.Now().UTC().Format(time.RFC3339))
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}
