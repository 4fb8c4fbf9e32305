// Package exifenricher extracts EXIF metadata from image media.
package exifenricher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	exif "github.com/dsoprea/go-exif/v3"

	"github.com/nao1215/autoarchiver/internal/model"
	"github.com/nao1215/autoarchiver/internal/module"
)

// Media property keys.
const (
	PropExif      = "exif"
	PropSensitive = "exif_sensitive"
)

const defaultMaxSize = 50 << 20

// exifTypes are the mimetypes that can carry EXIF.
var exifTypes = []string{"image/jpeg", "image/tiff", "image/heic", "image/heif"}

var exifExtensions = []string{".jpg", ".jpeg", ".tif", ".tiff", ".heic", ".heif"}

// sensitiveTags maps tags that can identify a device or place to a category.
var sensitiveTags = map[string]string{
	"GPSLatitude":        "gps",
	"GPSLongitude":       "gps",
	"GPSLatitudeRef":     "gps",
	"GPSLongitudeRef":    "gps",
	"GPSAltitude":        "gps",
	"SerialNumber":       "serial",
	"CameraSerialNumber": "serial",
	"BodySerialNumber":   "serial",
	"LensSerialNumber":   "serial",
	"Artist":             "author",
	"Author":             "author",
	"Copyright":          "author",
	"XPAuthor":           "author",
	"OwnerName":          "author",
	"CameraOwnerName":    "author",
	"HostComputer":       "computer",
}

// Enricher reads EXIF tags.
type Enricher struct {
	maxSize int64
	logger  *slog.Logger
}

// New is the module factory.
func New(env *module.Env) (any, error) {
	maxSize := int64(env.Options.Int("max_size"))
	if maxSize <= 0 {
		maxSize = defaultMaxSize
	}
	return &Enricher{maxSize: maxSize, logger: env.Logger}, nil
}

// Enrich implements module.Enricher. Images without EXIF are skipped.
func (e *Enricher) Enrich(ctx context.Context, item *model.Item) error {
	for _, m := range item.AllMedia() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !mayHaveExif(m) {
			continue
		}
		tags, err := e.read(m.Filename)
		if err != nil {
			e.logger.Debug("no exif data", "file", m.Filename, "error", err)
			continue
		}
		m.Set(PropExif, tags)
		if s := Sensitive(tags); len(s) > 0 {
			m.Set(PropSensitive, s)
			e.logger.Warn("image exif contains identifying data", "url", item.MustURL(), "file", filepath.Base(m.Filename), "categories", s)
		}
	}
	return nil
}

func mayHaveExif(m *model.Media) bool {
	if slices.Contains(exifTypes, m.Mimetype()) {
		return true
	}
	return slices.Contains(exifExtensions, strings.ToLower(filepath.Ext(m.Filename)))
}

// read returns the formatted EXIF tags of the file.
func (e *Enricher) read(path string) (map[string]any, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if fi.Size() > e.maxSize {
		return nil, fmt.Errorf("file larger than %d bytes", e.maxSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Extract(data)
}

// ErrNoExif is returned by Extract when the data carries no EXIF block.
var ErrNoExif = errors.New("no exif data")

// Extract parses the EXIF block of raw image bytes into tag name to
// formatted value. Repeated tags (thumbnail IFDs) keep the first value.
func Extract(data []byte) (map[string]any, error) {
	rawExif, err := exif.SearchAndExtractExif(data)
	if err != nil || rawExif == nil {
		return nil, ErrNoExif
	}
	entries, _, err := exif.GetFlatExifData(rawExif, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to parse exif: %w", err)
	}
	tags := make(map[string]any, len(entries))
	for _, entry := range entries {
		if entry.TagName == "" {
			continue
		}
		if _, seen := tags[entry.TagName]; seen {
			continue
		}
		tags[entry.TagName] = entry.Formatted
	}
	return tags, nil
}

// Sensitive returns the sorted categories of identifying tags present.
func Sensitive(tags map[string]any) []string {
	var out []string
	for name := range tags {
		if c, ok := sensitiveTags[name]; ok && !slices.Contains(out, c) {
			out = append(out, c)
		}
	}
	slices.Sort(out)
	return out
}
