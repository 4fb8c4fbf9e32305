package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"
)

const (
	// StatusNoArchiver is the initial status of every item. It stays in place
	// when no extractor produced a result.
	StatusNoArchiver = "no archiver"

	// StatusNothingArchived is set when processing finished without producing
	// any media or attribute beyond the URL itself.
	StatusNothingArchived = "nothing archived"

	// successSuffix marks a status produced by Item.Success.
	successSuffix = ": success"
)

// Well-known attribute keys.
const (
	KeyURL         = "url"
	KeyOriginalURL = "original_url"
	KeyTitle       = "title"
	KeyContent     = "content"
	KeyTimestamp   = "timestamp"
	KeyProcessedAt = "_processed_at"
	KeyFolder      = "folder"
)

// Well-known ephemeral context keys.
const (
	// CtxFolder holds the storage folder prefix for the item's assets.
	CtxFolder = "folder"
	// CtxTmpDir holds the per-item working directory.
	CtxTmpDir = "tmp_dir"
)

// finalMediaID is the media id reserved for the formatter output.
const finalMediaID = "_final_media"

// emptyIgnoredKeys are attribute keys that do not count as archived content.
var emptyIgnoredKeys = []string{KeyURL, KeyOriginalURL, KeyProcessedAt, KeyFolder}

var (
	// ErrURLNotSet is returned when the URL of an item is read before being set.
	ErrURLNotSet = errors.New("item url is not set")

	// ErrInvalidURL is returned by SetURL for empty or non-http(s) URLs.
	ErrInvalidURL = errors.New("invalid item url")

	// ErrDuplicateMediaID is returned by AddMedia when the id is already taken.
	ErrDuplicateMediaID = errors.New("duplicate media id")
)

// Item is one unit of work: a URL together with the status, attributes and
// media gathered about it while moving through the pipeline.
//
// Attributes are a free-form map. Scalars, lists ([]any or typed slices),
// nested maps and time.Time values are all allowed; Merge defines how two
// items combine.
type Item struct {
	// Status is a short human-readable outcome, e.g. "page_extractor: success".
	Status string

	// Metadata holds the archived attributes, e.g. url, title, content.
	Metadata map[string]any

	// Media is the ordered list of derived assets.
	Media []*Media

	// ProcessedAt is the time the item was created.
	ProcessedAt time.Time

	mu       sync.Mutex
	mediaIDs map[string]*Media
	context  map[string]any
}

// NewItem creates an empty item with the initial "no archiver" status.
func NewItem() *Item {
	return &Item{
		Status:      StatusNoArchiver,
		Metadata:    make(map[string]any),
		ProcessedAt: time.Now().UTC(),
		mediaIDs:    make(map[string]*Media),
		context:     make(map[string]any),
	}
}

// NewItemFromURL creates an item and sets its URL.
func NewItemFromURL(rawURL string) (*Item, error) {
	item := NewItem()
	if err := item.SetURL(rawURL); err != nil {
		return nil, err
	}
	return item, nil
}

// SetURL validates and stores the URL of the item.
func (i *Item) SetURL(rawURL string) error {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return fmt.Errorf("%w: empty", ErrInvalidURL)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	i.Set(KeyURL, rawURL)
	return nil
}

// URL returns the item URL or ErrURLNotSet.
func (i *Item) URL() (string, error) {
	v, ok := i.Get(KeyURL).(string)
	if !ok || v == "" {
		return "", ErrURLNotSet
	}
	return v, nil
}

// MustURL returns the item URL and panics if it was never set.
// Only use it after the item passed through a feeder.
func (i *Item) MustURL() string {
	u, err := i.URL()
	if err != nil {
		panic(err)
	}
	return u
}

// Set stores an attribute.
func (i *Item) Set(key string, value any) *Item {
	i.ensure()
	i.Metadata[key] = value
	return i
}

// Get returns an attribute or nil.
func (i *Item) Get(key string) any {
	if i.Metadata == nil {
		return nil
	}
	return i.Metadata[key]
}

// GetString returns a string attribute or "".
func (i *Item) GetString(key string) string {
	s, _ := i.Get(key).(string)
	return s
}

// SetTitle sets the title attribute.
func (i *Item) SetTitle(title string) *Item { return i.Set(KeyTitle, title) }

// Title returns the title attribute.
func (i *Item) Title() string { return i.GetString(KeyTitle) }

// AppendContent appends a line to the content attribute.
func (i *Item) AppendContent(content string) *Item {
	if prev := i.GetString(KeyContent); prev != "" {
		content = prev + "\n" + content
	}
	return i.Set(KeyContent, content)
}

// SetTimestamp sets the timestamp attribute, normalized to UTC.
func (i *Item) SetTimestamp(ts time.Time) *Item { return i.Set(KeyTimestamp, ts.UTC()) }

// Timestamp returns the timestamp attribute. String values in RFC 3339 form
// are parsed, which is what a JSON round trip produces.
func (i *Item) Timestamp() (time.Time, bool) {
	switch v := i.Get(KeyTimestamp).(type) {
	case time.Time:
		return v, true
	case string:
		t, err := time.Parse(time.RFC3339Nano, v)
		return t, err == nil
	}
	return time.Time{}, false
}

// Success marks the item as successfully produced by origin.
func (i *Item) Success(origin string) *Item {
	if origin == "" {
		i.Status = "success"
		return i
	}
	i.Status = origin + successSuffix
	return i
}

// IsSuccess reports whether the status was produced by Success.
func (i *Item) IsSuccess() bool {
	return i.Status == "success" || strings.HasSuffix(i.Status, successSuffix)
}

// Origin returns the producer recorded in a success status, or "".
func (i *Item) Origin() string {
	if before, ok := strings.CutSuffix(i.Status, successSuffix); ok {
		return before
	}
	return ""
}

// SetContext stores an ephemeral value that is never serialized.
func (i *Item) SetContext(key string, value any) *Item {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.context == nil {
		i.context = make(map[string]any)
	}
	i.context[key] = value
	return i
}

// Context returns an ephemeral value or nil.
func (i *Item) Context(key string) any {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.context[key]
}

// ContextString returns an ephemeral string value or "".
func (i *Item) ContextString(key string) string {
	s, _ := i.Context(key).(string)
	return s
}

// AddMedia appends a media asset. A non-empty id tags the asset so it can be
// retrieved with MediaByID; ids are unique within an item.
func (i *Item) AddMedia(m *Media, id string) error {
	if m == nil {
		return nil
	}
	i.ensure()
	if id != "" {
		if _, exists := i.mediaIDs[id]; exists {
			return fmt.Errorf("%w: %s", ErrDuplicateMediaID, id)
		}
		i.mediaIDs[id] = m
	}
	i.Media = append(i.Media, m)
	return nil
}

// MediaByID returns the asset tagged with id, or nil.
func (i *Item) MediaByID(id string) *Media {
	if i.mediaIDs == nil {
		return nil
	}
	return i.mediaIDs[id]
}

// SetFinalMedia records the formatter output and appends it to the media list.
// A previous final asset is replaced.
func (i *Item) SetFinalMedia(m *Media) {
	if m == nil {
		return
	}
	i.ensure()
	if prev, ok := i.mediaIDs[finalMediaID]; ok {
		i.Media = slices.DeleteFunc(i.Media, func(x *Media) bool { return x == prev })
		delete(i.mediaIDs, finalMediaID)
	}
	_ = i.AddMedia(m, finalMediaID)
}

// FinalMedia returns the formatter output, falling back to the first asset.
func (i *Item) FinalMedia() *Media {
	if m := i.MediaByID(finalMediaID); m != nil {
		return m
	}
	if len(i.Media) > 0 {
		return i.Media[0]
	}
	return nil
}

// AllMedia returns every asset including nested children, depth first, in
// order.
func (i *Item) AllMedia() []*Media {
	var out []*Media
	for _, m := range i.Media {
		out = append(out, m.Flatten()...)
	}
	return out
}

// RemoveDuplicateMediaByHash drops assets whose "hash" property repeats an
// earlier one. A missing hash is computed from the file when it is readable.
func (i *Item) RemoveDuplicateMediaByHash() {
	seen := make(map[string]struct{}, len(i.Media))
	kept := i.Media[:0]
	for _, m := range i.Media {
		h := m.Hash()
		if h == "" {
			if computed, err := m.ComputeHash(); err == nil {
				h = computed
			}
		}
		if h != "" {
			if _, dup := seen[h]; dup {
				continue
			}
			seen[h] = struct{}{}
		}
		kept = append(kept, m)
	}
	clear(i.Media[len(kept):])
	i.Media = kept
}

// IsEmpty reports whether nothing beyond the URL was archived.
func (i *Item) IsEmpty() bool {
	if len(i.Media) > 0 {
		return false
	}
	for k, v := range i.Metadata {
		if slices.Contains(emptyIgnoredKeys, k) {
			continue
		}
		if populated(v) {
			return false
		}
	}
	return true
}

// Keys returns the attribute keys in sorted order.
func (i *Item) Keys() []string {
	return slices.Sorted(maps.Keys(i.Metadata))
}

// Merge folds other into i and returns i.
//
// Scalars keep the left value when present and take the right one otherwise;
// lists concatenate without duplicates; maps merge recursively. Media from
// other are appended unless the same asset is already present. The status only
// changes when other succeeded and i did not.
func (i *Item) Merge(other *Item) *Item {
	if other == nil || other == i {
		return i
	}
	i.ensure()
	for k, rv := range other.Metadata {
		lv, ok := i.Metadata[k]
		if !ok {
			i.Metadata[k] = deepCopy(rv)
			continue
		}
		i.Metadata[k] = mergeValue(lv, rv)
	}
	for _, m := range other.Media {
		if slices.Contains(i.Media, m) {
			continue
		}
		i.Media = append(i.Media, m)
	}
	for id, m := range other.mediaIDs {
		if _, taken := i.mediaIDs[id]; !taken {
			i.mediaIDs[id] = m
		}
	}
	if other.IsSuccess() && !i.IsSuccess() {
		i.Status = other.Status
	}
	other.mu.Lock()
	ctx := maps.Clone(other.context)
	other.mu.Unlock()
	i.mu.Lock()
	for k, v := range ctx {
		if _, ok := i.context[k]; !ok {
			i.context[k] = v
		}
	}
	i.mu.Unlock()
	return i
}

// ChooseMostComplete returns the item with the most populated attributes.
// Ties go to the item with more media, then to the earlier item.
func ChooseMostComplete(items []*Item) *Item {
	var best *Item
	bestKeys, bestMedia := -1, -1
	for _, it := range items {
		if it == nil {
			continue
		}
		keys := it.populatedKeys()
		media := len(it.Media)
		if keys > bestKeys || (keys == bestKeys && media > bestMedia) {
			best, bestKeys, bestMedia = it, keys, media
		}
	}
	return best
}

func (i *Item) populatedKeys() int {
	n := 0
	for _, v := range i.Metadata {
		if populated(v) {
			n++
		}
	}
	return n
}

func (i *Item) ensure() {
	if i.Metadata == nil {
		i.Metadata = make(map[string]any)
	}
	if i.mediaIDs == nil {
		i.mediaIDs = make(map[string]*Media)
	}
	i.mu.Lock()
	if i.context == nil {
		i.context = make(map[string]any)
	}
	i.mu.Unlock()
}

type itemJSON struct {
	Status      string         `json:"status"`
	Metadata    map[string]any `json:"metadata"`
	Media       []*Media       `json:"media"`
	MediaIDs    map[string]int `json:"media_ids,omitempty"`
	ProcessedAt time.Time      `json:"processed_at"`
}

// MarshalJSON encodes the item without its ephemeral context.
func (i *Item) MarshalJSON() ([]byte, error) {
	out := itemJSON{
		Status:      i.Status,
		Metadata:    i.Metadata,
		Media:       i.Media,
		ProcessedAt: i.ProcessedAt,
	}
	if out.Media == nil {
		out.Media = []*Media{}
	}
	for id, m := range i.mediaIDs {
		if idx := slices.Index(i.Media, m); idx >= 0 {
			if out.MediaIDs == nil {
				out.MediaIDs = make(map[string]int)
			}
			out.MediaIDs[id] = idx
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes an item produced by MarshalJSON.
func (i *Item) UnmarshalJSON(data []byte) error {
	var in itemJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	i.Status = in.Status
	i.Metadata = in.Metadata
	i.Media = in.Media
	i.ProcessedAt = in.ProcessedAt
	i.mediaIDs = nil
	i.ensure()
	for id, idx := range in.MediaIDs {
		if idx >= 0 && idx < len(i.Media) {
			i.mediaIDs[id] = i.Media[idx]
		}
	}
	return nil
}
