package tiktokads

import (
	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/singer"
)

// CatalogEntry builds the catalog entry of a stream
func CatalogEntry(s *Stream) *singer.CatalogEntry {
	schema := SchemaFor(s)
	return &singer.CatalogEntry{
		TapStreamID:   s.ID,
		Stream:        s.ID,
		Schema:        schema,
		KeyProperties: append([]string(nil), s.KeyProperties...),
		Metadata: singer.StandardMetadata(schema, s.KeyProperties,
			[]string{s.ReplicationKey}, singer.ReplicationIncremental),
	}
}

// BuildCatalog returns the catalog of every stream, each selected by default
func BuildCatalog() *singer.Catalog {
	catalog := &singer.Catalog{}
	for _, s := range streams {
		catalog.Streams = append(catalog.Streams, CatalogEntry(s))
	}
	return catalog
}
