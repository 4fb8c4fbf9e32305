// Package markdownformatter renders items as Markdown documents.
package markdownformatter

import (
	"context"
	"io"

	"github.com/nao1215/autoarchiver/internal/model"
	"github.com/nao1215/autoarchiver/internal/module"
	hashenricher "github.com/nao1215/autoarchiver/internal/modules/hash_enricher"
	"github.com/nao1215/autoarchiver/internal/report"
)

// Formatter implements module.Formatter.
type Formatter struct {
	env *module.Env
	out report.FileOutput
}

// New is the module factory.
func New(env *module.Env) (any, error) {
	return &Formatter{
		env: env,
		out: report.FileOutput{
			NewWriter: func(w io.Writer) report.Writer { return report.NewMarkdownWriter(w) },
			Ext:       ".md",
			Mimetype:  "text/markdown",
		},
	}, nil
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
