// Package jsonformatter writes items as metadata.json.
package jsonformatter

import (
	"context"
	"io"

	"github.com/nao1215/autoarchiver/internal/model"
	"github.com/nao1215/autoarchiver/internal/module"
	"github.com/nao1215/autoarchiver/internal/report"
)

// Stem is the file name written for every item. Storages keep it as is.
const Stem = "metadata"

// Formatter implements module.Formatter.
type Formatter struct {
	out report.FileOutput
}

// New is the module factory.
func New(env *module.Env) (any, error) {
	var opts []report.JSONWriterOption
	if !env.Options.Has("indent") || env.Options.Bool("indent") {
		opts = append(opts, report.WithPrettyPrint())
	}
	return &Formatter{out: report.FileOutput{
		NewWriter: func(w io.Writer) report.Writer { return report.NewJSONWriter(w, opts...) },
		Stem:      Stem,
		Ext:       ".json",
		Mimetype:  "application/json",
	}}, nil
}

// Format implements module.Formatter.
func (f *Formatter) Format(_ context.Context, item *model.Item) (*model.Media, error) {
	return f.out.Render(item)
}
