package core

import (
	"context"
	"net/url"
	"time"

	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/config"
	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/singer"
)

// ConnectorType represents the type of connector
type ConnectorType string

const (
	ConnectorTypeSource ConnectorType = "source"
)

// Record is a single API object as decoded from JSON. Numbers are kept
// as json.Number so identifiers survive without float rounding.
type Record = map[string]interface{}

// APIResponse is the envelope every TikTok Business API endpoint returns
type APIResponse struct {
	Code      int         `json:"code"`
	Message   string      `json:"message"`
	RequestID string      `json:"request_id"`
	Data      interface{} `json:"data"`
}

// OK reports whether the envelope carries a successful payload
func (r *APIResponse) OK() bool {
	return r != nil && r.Message == "OK"
}

// TotalNumber returns data.page_info.total_number, or 0 when absent
func (r *APIResponse) TotalNumber() int {
	data, ok := r.Data.(map[string]interface{})
	if !ok {
		return 0
	}
	pageInfo, ok := data["page_info"].(map[string]interface{})
	if !ok {
		return 0
	}
	return toInt(pageInfo["total_number"])
}

// List returns the records of the payload. Paged endpoints nest them under
// data.list, while some listing endpoints return the array as data itself.
// Anything that is not an object is skipped.
func (r *APIResponse) List() []Record {
	var items []interface{}
	switch data := r.Data.(type) {
	case []interface{}:
		items = data
	case map[string]interface{}:
		items, _ = data["list"].([]interface{})
	}

	records := make([]Record, 0, len(items))
	for _, item := range items {
		if rec, ok := item.(map[string]interface{}); ok {
			records = append(records, rec)
		}
	}
	return records
}

func toInt(v interface{}) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case interface{ Int64() (int64, error) }:
		i, err := n.Int64()
		if err != nil {
			return 0
		}
		return int(i)
	}
	return 0
}

// APIClient performs authenticated GET requests against the Business API.
// Implementations own retries, rate limiting and envelope error mapping.
type APIClient interface {
	Get(ctx context.Context, path string, params url.Values) (*APIResponse, error)
}

// Emitter writes the message stream consumed by downstream loaders
type Emitter interface {
	WriteSchema(stream string, schema *singer.Schema, keyProperties, bookmarkProperties []string) error
	WriteRecord(stream string, record Record, extracted time.Time) error
	WriteState(value interface{}) error
}

// Bookmarks is the checkpoint surface the sync engine reads and advances
type Bookmarks interface {
	GetBookmark(streamID string) interface{}
	WriteBookmark(ctx context.Context, streamID string, value interface{}) error
	GetCursorForAccount(streamID, accountID string) (string, bool)
	SetAccountCursor(ctx context.Context, streamID, accountID, cursor string) error
	SetCurrentlySyncing(ctx context.Context, streamID string) error
	CurrentlySyncing() string
}

// Source defines the interface for source connectors
type Source interface {
	Name() string

	// Check verifies credentials and account access
	Check(ctx context.Context) error

	// Discover returns the catalog of streams the source can replicate
	Discover(ctx context.Context) (*singer.Catalog, error)

	// Sync replicates every selected stream of the catalog
	Sync(ctx context.Context, catalog *singer.Catalog, bookmarks Bookmarks) error

	Close(ctx context.Context) error
}

// SourceFactory creates source connector instances
type SourceFactory func(opts SourceOptions) (Source, error)

// SourceOptions carries what a source needs at construction time.
// A nil Client makes the source build its own transport from Config.
type SourceOptions struct {
	Config  *config.TikTokAdsSourceConfig
	Emitter Emitter
	Client  APIClient
}
