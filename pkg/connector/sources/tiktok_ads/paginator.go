package tiktokads

import (
	"context"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/connector/core"
	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/logger"
)

// Paginator reads every page of a paginated endpoint
type Paginator struct {
	client   core.APIClient
	pageSize int
	logger   *zap.Logger

	// OnPage is called after each page with the number of records it held
	OnPage func(page, records int)
}

// NewPaginator creates a paginator requesting pageSize records per page
func NewPaginator(client core.APIClient, pageSize int, log *zap.Logger) *Paginator {
	if log == nil {
		log = logger.Get()
	}
	return &Paginator{client: client, pageSize: pageSize, logger: log}
}

// FetchAll is a convenience wrapper around Paginator.FetchAll
func FetchAll(ctx context.Context, client core.APIClient, path string, params url.Values, pageSize int) ([]core.Record, error) {
	return NewPaginator(client, pageSize, nil).FetchAll(ctx, path, params)
}

// FetchAll requests pages starting at 1 until the accumulated records
// reach the reported total. params is not modified.
func (p *Paginator) FetchAll(ctx context.Context, path string, params url.Values) ([]core.Record, error) {
	q := cloneValues(params)
	q.Set("page_size", strconv.Itoa(p.pageSize))

	var records []core.Record
	total := 0
	for page := 1; page == 1 || len(records) < total; page++ {
		q.Set("page", strconv.Itoa(page))

		resp, err := p.client.Get(ctx, path, q)
		if err != nil {
			return nil, err
		}

		got := 0
		if resp.OK() {
			total = resp.TotalNumber()
			list := resp.List()
			got = len(list)
			records = append(records, list...)
		}
		if p.OnPage != nil {
			p.OnPage(page, got)
		}

		if got == 0 && len(records) < total {
			p.logger.Warn("page returned no records before the reported total was reached",
				zap.String("path", path),
				zap.Int("page", page),
				zap.Int("records", len(records)),
				zap.Int("total", total))
			break
		}
	}
	return records, nil
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v)+2)
	for k, vals := range v {
		out[k] = append([]string(nil), vals...)
	}
	return out
}
