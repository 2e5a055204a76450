package singer

import (
	"os"
	"strings"

	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/errors"
	jsonpool "github.com/ajitpratap0/nebula-tiktok-ads/pkg/json"
)

// Metadata keys
const (
	MetaSelected                = "selected"
	MetaSelectedByDefault       = "selected-by-default"
	MetaInclusion               = "inclusion"
	MetaTableKeyProperties      = "table-key-properties"
	MetaValidReplicationKeys    = "valid-replication-keys"
	MetaForcedReplicationMethod = "forced-replication-method"
	MetaReplicationKey          = "replication-key"
	MetaReplicationMethod       = "replication-method"

	InclusionAutomatic   = "automatic"
	InclusionAvailable   = "available"
	InclusionUnsupported = "unsupported"

	ReplicationIncremental = "INCREMENTAL"
	ReplicationFullTable   = "FULL_TABLE"
)

// Catalog lists the streams a source can replicate
type Catalog struct {
	Streams []*CatalogEntry `json:"streams"`
}

// CatalogEntry describes one stream
type CatalogEntry struct {
	TapStreamID       string          `json:"tap_stream_id"`
	Stream            string          `json:"stream"`
	Schema            *Schema         `json:"schema"`
	KeyProperties     []string        `json:"key_properties"`
	ReplicationKey    string          `json:"replication_key,omitempty"`
	ReplicationMethod string          `json:"replication_method,omitempty"`
	Metadata          []MetadataEntry `json:"metadata"`
}

// MetadataEntry attaches metadata to the stream (empty breadcrumb) or to
// a property (breadcrumb ["properties", name]).
type MetadataEntry struct {
	Breadcrumb []string               `json:"breadcrumb"`
	Metadata   map[string]interface{} `json:"metadata"`
}

// LoadCatalog reads a catalog file
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: catalog path is provided by the operator
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to read catalog").WithDetail("path", path)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes a catalog document
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := jsonpool.UnmarshalNumber(data, &c); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse catalog")
	}
	return &c, nil
}

// Get returns the entry for streamID, or nil
func (c *Catalog) Get(streamID string) *CatalogEntry {
	for _, e := range c.Streams {
		if e.TapStreamID == streamID {
			return e
		}
	}
	return nil
}

// SelectedStreams returns the selected entries in catalog order. When a
// stream was in flight at the last checkpoint, iteration starts at that
// stream and wraps around, so an interrupted run resumes where it stopped.
func (c *Catalog) SelectedStreams(currentlySyncing string) []*CatalogEntry {
	start := 0
	if currentlySyncing != "" {
		for i, e := range c.Streams {
			if e.TapStreamID == currentlySyncing {
				start = i
				break
			}
		}
	}

	ordered := append(append([]*CatalogEntry{}, c.Streams[start:]...), c.Streams[:start]...)
	selected := make([]*CatalogEntry, 0, len(ordered))
	for _, e := range ordered {
		if e.IsSelected() {
			selected = append(selected, e)
		}
	}
	return selected
}

// SelectAll marks every stream as selected
func (c *Catalog) SelectAll() {
	for _, e := range c.Streams {
		e.SetStreamMetadata(MetaSelected, true)
	}
}

// StreamMetadata returns the stream-level metadata map
func (e *CatalogEntry) StreamMetadata() map[string]interface{} {
	return e.metadataFor(nil)
}

// FieldMetadata returns the metadata map of a top-level property
func (e *CatalogEntry) FieldMetadata(field string) map[string]interface{} {
	return e.metadataFor([]string{"properties", field})
}

func (e *CatalogEntry) metadataFor(breadcrumb []string) map[string]interface{} {
	for _, m := range e.Metadata {
		if equalBreadcrumb(m.Breadcrumb, breadcrumb) {
			return m.Metadata
		}
	}
	return nil
}

// SetStreamMetadata sets a stream-level metadata key
func (e *CatalogEntry) SetStreamMetadata(key string, value interface{}) {
	for i := range e.Metadata {
		if len(e.Metadata[i].Breadcrumb) == 0 {
			if e.Metadata[i].Metadata == nil {
				e.Metadata[i].Metadata = make(map[string]interface{})
			}
			e.Metadata[i].Metadata[key] = value
			return
		}
	}
	e.Metadata = append([]MetadataEntry{{
		Breadcrumb: []string{},
		Metadata:   map[string]interface{}{key: value},
	}}, e.Metadata...)
}

// IsSelected reports whether the stream is selected, falling back to
// selected-by-default when no explicit choice was made
func (e *CatalogEntry) IsSelected() bool {
	md := e.StreamMetadata()
	if v, ok := md[MetaSelected]; ok {
		return truthy(v)
	}
	return truthy(md[MetaSelectedByDefault])
}

// ReplicationKeyField returns the replication key, read from the entry or
// from the stream's valid-replication-keys metadata
func (e *CatalogEntry) ReplicationKeyField() string {
	if e.ReplicationKey != "" {
		return e.ReplicationKey
	}
	md := e.StreamMetadata()
	if rk, ok := md[MetaReplicationKey].(string); ok && rk != "" {
		return rk
	}
	if keys := stringList(md[MetaValidReplicationKeys]); len(keys) > 0 {
		return keys[0]
	}
	return ""
}

// KeyPropertyFields returns the primary key fields of the stream
func (e *CatalogEntry) KeyPropertyFields() []string {
	if len(e.KeyProperties) > 0 {
		return e.KeyProperties
	}
	return stringList(e.StreamMetadata()[MetaTableKeyProperties])
}

// FieldSelected reports whether a property is emitted. Unsupported fields
// never are; automatic fields always are; others follow selected, then
// selected-by-default, then default to true.
func (e *CatalogEntry) FieldSelected(field string) bool {
	md := e.FieldMetadata(field)
	if md == nil {
		return true
	}
	switch md[MetaInclusion] {
	case InclusionUnsupported:
		return false
	case InclusionAutomatic:
		return true
	}
	if v, ok := md[MetaSelected]; ok {
		return truthy(v)
	}
	if v, ok := md[MetaSelectedByDefault]; ok {
		return truthy(v)
	}
	return true
}

// StandardMetadata builds the metadata of a stream from its schema, in the
// layout discovery tools expect
func StandardMetadata(schema *Schema, keyProperties, replicationKeys []string, replicationMethod string) []MetadataEntry {
	streamMD := map[string]interface{}{
		MetaTableKeyProperties: keyProperties,
		MetaSelectedByDefault:  true,
	}
	if len(replicationKeys) > 0 {
		streamMD[MetaValidReplicationKeys] = replicationKeys
	}
	if replicationMethod != "" {
		streamMD[MetaForcedReplicationMethod] = replicationMethod
	}

	entries := []MetadataEntry{{Breadcrumb: []string{}, Metadata: streamMD}}

	automatic := make(map[string]bool, len(keyProperties)+len(replicationKeys))
	for _, k := range keyProperties {
		automatic[k] = true
	}
	for _, k := range replicationKeys {
		automatic[k] = true
	}

	for _, name := range sortedKeys(schema.Properties) {
		inclusion := InclusionAvailable
		if automatic[name] {
			inclusion = InclusionAutomatic
		}
		entries = append(entries, MetadataEntry{
			Breadcrumb: []string{"properties", name},
			Metadata: map[string]interface{}{
				MetaInclusion:         inclusion,
				MetaSelectedByDefault: true,
			},
		})
	}
	return entries
}

func equalBreadcrumb(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func truthy(v interface{}) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		return strings.EqualFold(b, "true")
	}
	return false
}

func stringList(v interface{}) []string {
	switch l := v.(type) {
	case []string:
		return l
	case []interface{}:
		out := make([]string, 0, len(l))
		for _, item := range l {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
