// Package localstorage stores media on the local file system.
package localstorage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"github.com/nao1215/autoarchiver/internal/model"
	"github.com/nao1215/autoarchiver/internal/module"
	hashenricher "github.com/nao1215/autoarchiver/internal/modules/hash_enricher"
	"github.com/nao1215/autoarchiver/internal/storage"
)

// MaxFileLength bounds the length of a destination path.
const MaxFileLength = 255

// Storage copies media into saveTo.
type Storage struct {
	*storage.Base

	env      *module.Env
	saveTo   string
	absolute bool
	logger   *slog.Logger
}

// New is the module factory. The key generator is finished in Setup, once
// the hasher is known.
func New(env *module.Env) (any, error) {
	saveTo := env.Options.String("save_to")
	if saveTo == "" {
		saveTo = "./archived"
	}
	s := &Storage{
		env:      env,
		saveTo:   saveTo,
		absolute: env.Options.Bool("save_absolute"),
		logger:   env.Logger,
	}
	s.Base = s.newBase(nil)
	return s, nil
}

func (s *Storage) newBase(h storage.Hasher) *storage.Base {
	opts := []storage.Option{storage.WithLogger(s.logger)}
	if p := s.env.Options.String("path_generator"); p != "" {
		opts = append(opts, storage.WithPathPolicy(p))
	}
	if f := s.env.Options.String("filename_generator"); f != "" {
		opts = append(opts, storage.WithFilenamePolicy(f))
	}
	if h != nil {
		opts = append(opts, storage.WithHasher(h))
	}
	return storage.NewBase(s.env.Name, s, opts...)
}

// Setup creates the target folder and wires the content hasher of the
// hash_enricher module. Without that module a SHA-256 hasher is used.
func (s *Storage) Setup(ctx context.Context) error {
	if err := os.MkdirAll(s.saveTo, 0o750); err != nil {
		return fmt.Errorf("failed to create %s: %w", s.saveTo, err)
	}
	h := hashenricher.Sibling(ctx, s.env)
	if h == nil {
		fallback, err := hashenricher.NewEnricher(hashenricher.SHA256, 0, s.logger)
		if err != nil {
			return err
		}
		h = fallback
	}
	s.Base = s.newBase(h)
	return nil
}

// CDNURL returns the destination path, absolute when save_absolute is set.
func (s *Storage) CDNURL(m *model.Media) string {
	dest := filepath.Join(s.saveTo, filepath.FromSlash(m.Key()))
	if s.absolute {
		if abs, err := filepath.Abs(dest); err == nil {
			return abs
		}
	}
	return dest
}

// Upload copies r to saveTo/key, creating directories as needed.
func (s *Storage) Upload(ctx context.Context, r io.Reader, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dest := filepath.Join(s.saveTo, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dest, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", dest, err)
	}
	return f.Close()
}

// Store assigns a key that fits MaxFileLength before delegating to the
// shared storage behavior.
func (s *Storage) Store(ctx context.Context, m *model.Media, item *model.Item) error {
	if m.Key() == "" && !m.IsStoredIn(s.Name()) {
		key, err := s.Key(m, item)
		if err != nil {
			return err
		}
		if short := fitKey(s.saveTo, key); short != key {
			s.logger.Warn("file name too long, truncating", "key", key, "truncated", short)
			key = short
		}
		m.SetKey(key)
	}
	return s.Base.Store(ctx, m, item)
}

// fitKey shortens the longer of the directory and file stem of key so that
// saveTo/key fits MaxFileLength. The extension is kept.
func fitKey(saveTo, key string) string {
	excess := len(filepath.Join(saveTo, key)) - MaxFileLength
	if excess <= 0 {
		return key
	}
	ext := path.Ext(key)
	dir, stem := path.Split(key[:len(key)-len(ext)])
	dir = path.Clean(dir)
	if dir == "." {
		dir = ""
	}
	if len(dir) > len(stem) {
		dir = dir[:max(1, len(dir)-excess)]
	} else {
		stem = stem[:max(1, len(stem)-excess)]
	}
	return path.Join(dir, stem+ext)
}
