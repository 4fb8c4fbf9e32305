// Package hashenricher computes content hashes of media files.
package hashenricher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"log/slog"
	"os"

	"golang.org/x/crypto/sha3"

	"github.com/nao1215/autoarchiver/internal/model"
	"github.com/nao1215/autoarchiver/internal/module"
)

// Supported algorithms.
const (
	SHA256  = "SHA-256"
	SHA3512 = "SHA3-512"
)

// DefaultChunkSize is used when chunksize is not positive.
const DefaultChunkSize = 16_000_000

// ErrUnknownAlgorithm is returned for algorithms other than SHA256 and SHA3512.
var ErrUnknownAlgorithm = errors.New("unknown hash algorithm")

// Enricher hashes media files. It also serves as the storage.Hasher of
// storages that name files after their content.
type Enricher struct {
	algorithm string
	chunkSize int
	logger    *slog.Logger
}

// New is the module factory.
func New(env *module.Env) (any, error) {
	algo := env.Options.String("algorithm")
	if algo == "" {
		algo = SHA256
	}
	return NewEnricher(algo, env.Options.Int("chunksize"), env.Logger)
}

// Name is the registry key other modules use to reach this module.
const Name = "hash_enricher"

// Sibling returns the hash_enricher of env's registry, or nil when it is
// not available.
func Sibling(ctx context.Context, env *module.Env) *Enricher {
	inst, err := env.Sibling(ctx, Name)
	if err != nil {
		env.Logger.Debug("hash enricher unavailable", "error", err)
		return nil
	}
	e, _ := inst.(*Enricher)
	return e
}

// NewEnricher validates the algorithm and creates an Enricher.
func NewEnricher(algorithm string, chunkSize int, logger *slog.Logger) (*Enricher, error) {
	if _, err := newHash(algorithm); err != nil {
		return nil, err
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Enricher{algorithm: algorithm, chunkSize: chunkSize, logger: logger}, nil
}

func newHash(algorithm string) (hash.Hash, error) {
	switch algorithm {
	case SHA256:
		return sha256.New(), nil
	case SHA3512:
		return sha3.New512(), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, algorithm)
}

// Enrich implements module.Enricher. Every asset, nested ones included, gets
// a hash property. A file that cannot be read fails the enrichment after the
// remaining assets were hashed.
func (e *Enricher) Enrich(ctx context.Context, item *model.Item) error {
	e.logger.Debug("calculating media hashes", "url", item.MustURL(), "algorithm", e.algorithm)
	var errs []error
	for _, m := range item.AllMedia() {
		if err := ctx.Err(); err != nil {
			return err
		}
		sum, err := e.HashFile(m.Filename)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		m.Set(model.PropHash, sum)
	}
	return errors.Join(errs...)
}

// HashFile returns "<algorithm>:<hex>" for the file at path, reading it
// chunkSize bytes at a time.
func (e *Enricher) HashFile(path string) (string, error) {
	h, err := newHash(e.algorithm)
	if err != nil {
		return "", err
	}
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open media file: %w", err)
	}
	defer f.Close()

	buf := make([]byte, min(e.chunkSize, fileSize(f)+1))
	if _, err := io.CopyBuffer(h, struct{ io.Reader }{f}, buf); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return e.algorithm + ":" + hex.EncodeToString(h.Sum(nil)), nil
}

func fileSize(f *os.File) int {
	fi, err := f.Stat()
	if err != nil || fi.Size() <= 0 {
		return 32 * 1024
	}
	return int(min(fi.Size(), 1<<30))
}
