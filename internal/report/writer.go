package report

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/nao1215/autoarchiver/internal/model"
)

// Writer renders an item to its configured destination.
type Writer interface {
	// Write outputs the item and returns the number of bytes written.
	Write(item *model.Item) (int, error)
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// Attribute is one displayed key/value pair.
type Attribute struct {
	Key   string
	Value string
}

// Attributes returns the item attributes in key order, formatted for
// display. Internal keys starting with "_" are left out.
func Attributes(item *model.Item) []Attribute {
	keys := item.Keys()
	out := make([]Attribute, 0, len(keys))
	for _, k := range keys {
		if strings.HasPrefix(k, "_") {
			continue
		}
		out = append(out, Attribute{Key: k, Value: FormatValue(item.Metadata[k])})
	}
	return out
}

// FormatValue renders an attribute value as a single string.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case time.Time:
		return x.UTC().Format(time.RFC3339)
	case []string:
		return strings.Join(x, ", ")
	case []any:
		parts := make([]string, 0, len(x))
		for _, e := range x {
			parts = append(parts, FormatValue(e))
		}
		return strings.Join(parts, ", ")
	case map[string]any:
		data, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(data)
	}
	return fmt.Sprint(v)
}

// Heading returns the title of the item, falling back to its URL.
func Heading(item *model.Item) string {
	if t := item.Title(); t != "" {
		return t
	}
	if u, err := item.URL(); err == nil {
		return u
	}
	return "Archived item"
}

// mediaTypes counts assets per kind: image, video, audio, document or unknown.
func mediaTypes(media []*model.Media) ([]string, map[string]int) {
	counts := make(map[string]int)
	for _, m := range media {
		counts[mediaKind(m)]++
	}
	kinds := make([]string, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds, counts
}

// mediaKind groups an asset for the media chart.
func mediaKind(m *model.Media) string {
	switch {
	case m.IsImage():
		return "image"
	case m.IsVideo():
		return "video"
	case m.IsAudio():
		return "audio"
	case m.Mimetype() == "":
		return "unknown"
	}
	return "document"
}

// truncateString truncates a string to maxLen runes with ellipsis.
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
