// Package muteformatter provides a formatter that formats nothing.
package muteformatter

import (
	"context"

	"github.com/nao1215/autoarchiver/internal/model"
	"github.com/nao1215/autoarchiver/internal/module"
)

// Formatter implements module.Formatter.
type Formatter struct{}

// New is the module factory.
func New(*module.Env) (any, error) { return Formatter{}, nil }

// Format implements module.Formatter. It always returns nil.
func (Formatter) Format(context.Context, *model.Item) (*model.Media, error) {
	return nil, nil
}
