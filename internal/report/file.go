package report

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/nao1215/autoarchiver/internal/model"
	"github.com/nao1215/autoarchiver/internal/storage"
)

// ErrNoTmpDir is returned when an item has no working directory to write to.
var ErrNoTmpDir = errors.New("item has no working directory")

// FileOutput writes an item with one Writer into a file of the item's
// working directory and wraps that file as a media asset.
type FileOutput struct {
	// NewWriter creates the writer for the open file.
	NewWriter func(w io.Writer) Writer
	// Stem is the base file name; empty selects a random one.
	Stem string
	// Ext is the file extension, dot included.
	Ext string
	// Mimetype is recorded on the asset.
	Mimetype string
	// Hasher sets the hash property of the asset when not nil.
	Hasher storage.Hasher
}

// Render writes item and returns the asset. Items with nothing archived
// yield nil.
func (o *FileOutput) Render(item *model.Item) (*model.Media, error) {
	if item.IsEmpty() {
		return nil, nil
	}
	dir := item.ContextString(model.CtxTmpDir)
	if dir == "" {
		return nil, ErrNoTmpDir
	}
	stem := o.Stem
	if stem == "" {
		stem = "formatted-" + storage.RandomToken()
	}
	path := filepath.Join(dir, stem+o.Ext)

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	if _, err := o.NewWriter(f).Write(item); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to render %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return nil, err
	}

	m := model.NewMedia(path)
	if o.Mimetype != "" {
		m.SetMimetype(o.Mimetype)
	}
	if o.Hasher != nil {
		sum, err := o.Hasher.HashFile(path)
		if err != nil {
			return nil, err
		}
		m.Set(model.PropHash, sum)
	}
	return m, nil
}
