package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
)

// Well-known media property keys.
const (
	PropHash     = "hash"
	PropDuration = "duration"
	PropID       = "id"
)

// Media is a derived asset of an Item: a local file that storages upload and
// whose public locations accumulate in URLs.
type Media struct {
	// Filename is the local path of the asset.
	Filename string

	// URLs lists every location the asset was stored at, in order.
	URLs []string

	// Properties holds asset attributes. Values may be *Media or []*Media for
	// derived children such as thumbnails.
	Properties map[string]any

	mu       sync.Mutex
	key      string
	mimetype string
	storedIn map[string]struct{}
}

// NewMedia creates an asset for a local file.
func NewMedia(filename string) *Media {
	return &Media{Filename: filename, Properties: make(map[string]any)}
}

// Key returns the storage key, or "" before it was assigned.
func (m *Media) Key() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.key
}

// SetKey assigns the storage key. Only the first call has an effect; it
// reports whether the key was assigned by this call.
func (m *Media) SetKey(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.key != "" || key == "" {
		return false
	}
	m.key = key
	return true
}

// AddURL records a location the asset was stored at.
func (m *Media) AddURL(u string) {
	if u == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.URLs = append(m.URLs, u)
}

// IsStored reports whether at least one storage recorded a URL.
func (m *Media) IsStored() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.URLs) > 0
}

// IsStoredIn reports whether the named storage already stored the asset.
func (m *Media) IsStoredIn(storage string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.storedIn[storage]
	return ok
}

// MarkStored records that the named storage stored the asset.
func (m *Media) MarkStored(storage string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.storedIn == nil {
		m.storedIn = make(map[string]struct{})
	}
	m.storedIn[storage] = struct{}{}
}

// Set stores a property.
func (m *Media) Set(key string, value any) *Media {
	if m.Properties == nil {
		m.Properties = make(map[string]any)
	}
	m.Properties[key] = value
	return m
}

// Get returns a property or nil.
func (m *Media) Get(key string) any {
	if m.Properties == nil {
		return nil
	}
	return m.Properties[key]
}

// Hash returns the "hash" property or "".
func (m *Media) Hash() string {
	s, _ := m.Get(PropHash).(string)
	return s
}

// ComputeHash hashes the file with SHA-256 and stores it as the "hash"
// property in "SHA-256:<hex>" form.
func (m *Media) ComputeHash() (string, error) {
	f, err := os.Open(m.Filename)
	if err != nil {
		return "", fmt.Errorf("failed to open media file: %w", err)
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash media file: %w", err)
	}
	sum := "SHA-256:" + hex.EncodeToString(h.Sum(nil))
	m.Set(PropHash, sum)
	return sum, nil
}

// SetMimetype overrides the inferred mimetype.
func (m *Media) SetMimetype(mt string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mimetype = mt
}

// Mimetype returns the explicit mimetype or infers it from the file
// extension on first use.
func (m *Media) Mimetype() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mimetype == "" {
		if mt := mime.TypeByExtension(filepath.Ext(m.Filename)); mt != "" {
			m.mimetype, _, _ = strings.Cut(mt, ";")
		}
	}
	return m.mimetype
}

// IsImage reports whether the mimetype is image/*.
func (m *Media) IsImage() bool { return strings.HasPrefix(m.Mimetype(), "image/") }

// IsVideo reports whether the mimetype is video/*.
func (m *Media) IsVideo() bool { return strings.HasPrefix(m.Mimetype(), "video/") }

// IsAudio reports whether the mimetype is audio/*.
func (m *Media) IsAudio() bool { return strings.HasPrefix(m.Mimetype(), "audio/") }

// Children returns the nested assets held in properties, in key order.
func (m *Media) Children() []*Media {
	var out []*Media
	keys := make([]string, 0, len(m.Properties))
	for k := range m.Properties {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		switch v := m.Properties[k].(type) {
		case *Media:
			out = append(out, v)
		case []*Media:
			out = append(out, v...)
		}
	}
	return out
}

// Flatten returns the asset followed by all of its descendants.
func (m *Media) Flatten() []*Media {
	out := []*Media{m}
	for _, c := range m.Children() {
		out = append(out, c.Flatten()...)
	}
	return out
}

type mediaJSON struct {
	Filename   string         `json:"filename"`
	Key        string         `json:"key,omitempty"`
	URLs       []string       `json:"urls"`
	Mimetype   string         `json:"mimetype,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
}

// MarshalJSON encodes the asset including its key and mimetype.
func (m *Media) MarshalJSON() ([]byte, error) {
	urls := m.URLs
	if urls == nil {
		urls = []string{}
	}
	return json.Marshal(mediaJSON{
		Filename:   m.Filename,
		Key:        m.Key(),
		URLs:       urls,
		Mimetype:   m.Mimetype(),
		Properties: m.Properties,
	})
}

// UnmarshalJSON decodes an asset. Property values that look like encoded
// assets are decoded back into *Media or []*Media.
func (m *Media) UnmarshalJSON(data []byte) error {
	var in struct {
		mediaJSON
		Properties map[string]json.RawMessage `json:"properties,omitempty"`
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	m.Filename = in.Filename
	m.URLs = in.URLs
	m.key = in.Key
	m.mimetype = in.Mimetype
	m.Properties = make(map[string]any, len(in.Properties))
	for k, raw := range in.Properties {
		m.Properties[k] = decodeProperty(raw)
	}
	return nil
}

func decodeProperty(raw json.RawMessage) any {
	var child Media
	if looksLikeMedia(raw) && json.Unmarshal(raw, &child) == nil {
		return &child
	}
	var children []json.RawMessage
	if json.Unmarshal(raw, &children) == nil && len(children) > 0 {
		out := make([]*Media, 0, len(children))
		for _, c := range children {
			if !looksLikeMedia(c) {
				out = nil
				break
			}
			var cm Media
			if err := json.Unmarshal(c, &cm); err != nil {
				out = nil
				break
			}
			out = append(out, &cm)
		}
		if out != nil {
			return out
		}
	}
	var v any
	_ = json.Unmarshal(raw, &v)
	return v
}

func looksLikeMedia(raw json.RawMessage) bool {
	var probe map[string]json.RawMessage
	if json.Unmarshal(raw, &probe) != nil {
		return false
	}
	_, hasFile := probe["filename"]
	_, hasURLs := probe["urls"]
	return hasFile && hasURLs
}
