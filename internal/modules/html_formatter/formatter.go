// Package htmlformatter renders items as HTML pages.
package htmlformatter

import (
	"context"
	"fmt"
	"html/template"
	"io"

	"github.com/nao1215/autoarchiver/internal/model"
	"github.com/nao1215/autoarchiver/internal/module"
	hashenricher "github.com/nao1215/autoarchiver/internal/modules/hash_enricher"
	"github.com/nao1215/autoarchiver/internal/report"
)

// Formatter implements module.Formatter.
type Formatter struct {
	env  *module.Env
	tmpl *template.Template
	out  report.FileOutput
}

// New is the module factory. A custom template is parsed here so a broken
// file fails before the run.
func New(env *module.Env) (any, error) {
	f := &Formatter{env: env}
	if path := env.Options.String("template"); path != "" {
		tmpl, err := template.ParseFiles(path)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template: %w", err)
		}
		f.tmpl = tmpl
	}
	f.out = report.FileOutput{
		NewWriter: func(w io.Writer) report.Writer { return report.NewHTMLWriter(w, f.tmpl) },
		Ext:       ".html",
		Mimetype:  "text/html",
	}
	return f, nil
}

// Setup implements module.Setuper.
func (f *Formatter) Setup(ctx context.Context) error {
	if h := hashenricher.Sibling(ctx, f.env); h != nil {
		f.out.Hasher = h
	}
	return nil
}

// Format implements module.Formatter.
func (f *Formatter) Format(_ context.Context, item *model.Item) (*model.Media, error) {
	return f.out.Render(item)
}
