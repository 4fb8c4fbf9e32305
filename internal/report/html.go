package report

import (
	"bytes"
	"embed"
	"html/template"
	"io"
	"time"

	"github.com/nao1215/autoarchiver/internal/model"
)

//go:embed templates/item.html.tmpl
var templateFS embed.FS

var itemTemplate = template.Must(template.ParseFS(templateFS, "templates/item.html.tmpl"))

// HTMLWriter outputs items as a standalone HTML page.
type HTMLWriter struct {
	baseWriter
	tmpl *template.Template
}

// NewHTMLWriter creates an HTMLWriter. A nil tmpl selects the built-in page.
func NewHTMLWriter(output io.Writer, tmpl *template.Template) *HTMLWriter {
	if tmpl == nil {
		tmpl = itemTemplate
	}
	return &HTMLWriter{baseWriter: newBaseWriter(output), tmpl: tmpl}
}

type htmlMedia struct {
	Key      string
	Mimetype string
	Hash     string
	URLs     []string
	Image    bool
}

type htmlPage struct {
	Heading     string
	URL         string
	Status      string
	Success     bool
	ArchivedAt  string
	GeneratedAt string
	Attributes  []Attribute
	Media       []htmlMedia
}

// Write renders the item. Nothing is written when the template fails.
func (w *HTMLWriter) Write(item *model.Item) (int, error) {
	u, _ := item.URL()
	page := htmlPage{
		Heading:     Heading(item),
		URL:         u,
		Status:      item.Status,
		Success:     item.IsSuccess(),
		ArchivedAt:  item.ProcessedAt.UTC().Format(time.RFC3339),
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Attributes:  Attributes(item),
	}
	for _, m := range item.AllMedia() {
		page.Media = append(page.Media, htmlMedia{
			Key:      m.Key(),
			Mimetype: m.Mimetype(),
			Hash:     m.Hash(),
			URLs:     m.URLs,
			Image:    m.IsImage(),
		})
	}

	var buf bytes.Buffer
	if err := w.tmpl.Execute(&buf, page); err != nil {
		return 0, err
	}
	return w.output.Write(buf.Bytes())
}
