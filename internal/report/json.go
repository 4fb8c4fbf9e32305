package report

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/nao1215/autoarchiver/internal/model"
)

// JSONWriter writes one item per call using the same encoding the databases
// persist, so the output can be read back with model.Item.UnmarshalJSON.
type JSONWriter struct {
	baseWriter
	prefix, indent string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent indents nested values with indent, each line starting with prefix.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.prefix, w.indent = prefix, indent
	}
}

// WithPrettyPrint indents with two spaces.
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// NewJSONWriter creates a JSONWriter. Output is compact unless an indent
// option is given.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write encodes item followed by a newline. URLs are written unescaped.
func (w *JSONWriter) Write(item *model.Item) (int, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent(w.prefix, w.indent)
	if err := enc.Encode(item); err != nil {
		return 0, err
	}
	return w.output.Write(buf.Bytes())
}
