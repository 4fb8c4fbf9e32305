package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/nao1215/autoarchiver/internal/model"
)

// PathPolicy selects the directory part of a key.
type PathPolicy string

// FilenamePolicy selects the file name part of a key.
type FilenamePolicy string

const (
	// PathFlat stores every asset at the root.
	PathFlat PathPolicy = "flat"
	// PathURL uses a slug of the item URL.
	PathURL PathPolicy = "url"
	// PathRandom uses one random token per storage instance.
	PathRandom PathPolicy = "random"

	// FilenameRandom uses a random token per asset.
	FilenameRandom FilenamePolicy = "random"
	// FilenameStatic derives the name from the content hash.
	FilenameStatic FilenamePolicy = "static"
)

const (
	tokenLength      = 24
	metadataFileStem = "metadata"
)

// Backend is what a concrete storage implements.
type Backend interface {
	CDNURL(m *model.Media) string
	Upload(ctx context.Context, r io.Reader, key string) error
}

// Hasher hashes a file and returns its hex digest, optionally prefixed with
// the algorithm name ("SHA-256:ab12...").
type Hasher interface {
	HashFile(path string) (string, error)
}

// Base provides Store on top of a Backend.
type Base struct {
	name     string
	backend  Backend
	path     PathPolicy
	filename FilenamePolicy
	hasher   Hasher
	logger   *slog.Logger

	tokenOnce sync.Once
	token     string
	newToken  func() string
}

// Option configures a Base.
type Option func(*Base)

// WithPathPolicy sets the path policy. Unknown values fail at upload time.
func WithPathPolicy(p string) Option {
	return func(b *Base) { b.path = PathPolicy(p) }
}

// WithFilenamePolicy sets the filename policy. Unknown values fail at upload
// time.
func WithFilenamePolicy(p string) Option {
	return func(b *Base) { b.filename = FilenamePolicy(p) }
}

// WithHasher sets the content hasher used by the static filename policy.
func WithHasher(h Hasher) Option {
	return func(b *Base) { b.hasher = h }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Base) {
		if l != nil {
			b.logger = l
		}
	}
}

// NewBase creates the shared storage behavior for the storage called name.
// Defaults are the url path policy and the random filename policy.
func NewBase(name string, backend Backend, opts ...Option) *Base {
	b := &Base{
		name:     name,
		backend:  backend,
		path:     PathURL,
		filename: FilenameRandom,
		logger:   slog.Default(),
		newToken: RandomToken,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name returns the storage name used for the stored markers.
func (b *Base) Name() string { return b.name }

// Store assigns the key of m if it has none, uploads the file and records its
// URL. An asset already stored by this storage is skipped.
func (b *Base) Store(ctx context.Context, m *model.Media, item *model.Item) error {
	if m.IsStoredIn(b.name) {
		b.logger.Debug("media already stored, skipping", "key", m.Key())
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.Key() == "" {
		key, err := b.Key(m, item)
		if err != nil {
			return err
		}
		m.SetKey(key)
	}

	f, err := os.Open(m.Filename)
	if err != nil {
		return fmt.Errorf("failed to open media file: %w", err)
	}
	defer f.Close()

	b.logger.Debug("storing media", "file", m.Filename, "key", m.Key())
	if err := b.backend.Upload(ctx, f, m.Key()); err != nil {
		return fmt.Errorf("failed to upload %s: %w", m.Key(), err)
	}
	m.AddURL(b.backend.CDNURL(m))
	m.MarkStored(b.name)
	return nil
}

// Key derives the key of m as folder/path/filename.ext.
func (b *Base) Key(m *model.Media, item *model.Item) (string, error) {
	dir, err := b.pathPart(item)
	if err != nil {
		return "", err
	}
	ext := filepath.Ext(m.Filename)
	stem := strings.TrimSuffix(filepath.Base(m.Filename), ext)
	name, err := b.filenamePart(m, stem)
	if err != nil {
		return "", err
	}
	return path.Join(item.ContextString(model.CtxFolder), dir, name+ext), nil
}

func (b *Base) pathPart(item *model.Item) (string, error) {
	switch b.path {
	case PathFlat:
		return "", nil
	case PathURL:
		u, _ := item.URL()
		return Slugify(u), nil
	case PathRandom:
		b.tokenOnce.Do(func() { b.token = b.newToken() })
		return b.token, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPathPolicy, b.path)
}

func (b *Base) filenamePart(m *model.Media, stem string) (string, error) {
	if strings.HasSuffix(stem, metadataFileStem) {
		return metadataFileStem, nil
	}
	switch b.filename {
	case FilenameRandom:
		return b.newToken(), nil
	case FilenameStatic:
		if b.hasher == nil {
			return "", ErrNoHasher
		}
		digest, err := b.hasher.HashFile(m.Filename)
		if err != nil {
			return "", fmt.Errorf("failed to hash media file: %w", err)
		}
		if _, hexPart, ok := strings.Cut(digest, ":"); ok {
			digest = hexPart
		}
		if len(digest) > tokenLength {
			digest = digest[:tokenLength]
		}
		return digest, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidFilenamePolicy, b.filename)
}

// RandomToken returns a random 24 character lowercase hex token.
func RandomToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:tokenLength]
}
