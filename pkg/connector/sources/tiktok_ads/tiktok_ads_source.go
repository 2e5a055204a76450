// Package tiktokads implements the TikTok Ads source connector: stream
// descriptors, report window planning, pagination, record normalization
// and the incremental sync of every selected stream.
package tiktokads

import (
	"context"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/clients"
	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/config"
	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/connector/base"
	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/connector/core"
	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/errors"
	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/singer"
)

const (
	// SourceName is the registry name of the connector
	SourceName = "tiktok_ads"
	// Version is reported by the connector and the CLI
	Version = "1.0.0"
)

// accessChecker is implemented by clients that can verify the access token
type accessChecker interface {
	CheckAccessToken(ctx context.Context) error
}

// TikTokAdsSource replicates advertiser, management and report streams
// from the TikTok Business API
type TikTokAdsSource struct {
	*base.BaseConnector

	config   *config.TikTokAdsSourceConfig
	accounts []string
	client   core.APIClient
	emitter  core.Emitter

	// closer is set when the source built its own client
	closer io.Closer
	now    func() time.Time
}

var _ core.Source = (*TikTokAdsSource)(nil)

// NewTikTokAdsSource creates the source. When opts.Client is nil a
// Business API client is built from the configuration.
func NewTikTokAdsSource(opts core.SourceOptions) (*TikTokAdsSource, error) {
	if opts.Config == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "tiktok_ads source requires a configuration")
	}
	accounts, err := config.NormalizeAccounts(opts.Config.Accounts)
	if err != nil {
		return nil, err
	}

	src := &TikTokAdsSource{
		BaseConnector: base.NewBaseConnector(SourceName, core.ConnectorTypeSource, Version),
		config:        opts.Config,
		accounts:      accounts,
		client:        opts.Client,
		emitter:       opts.Emitter,
		now:           time.Now,
	}

	if src.client == nil {
		clientCfg := clients.TikTokClientConfigFromSource(opts.Config)
		clientCfg.Accounts = accounts
		client, err := clients.NewTikTokClient(clientCfg, src.GetLogger())
		if err != nil {
			return nil, err
		}
		src.client = client
		src.closer = client
	}
	return src, nil
}

// Accounts returns the normalized advertiser account IDs
func (s *TikTokAdsSource) Accounts() []string {
	return append([]string(nil), s.accounts...)
}

// Check verifies the access token and that every account is readable
func (s *TikTokAdsSource) Check(ctx context.Context) error {
	if err := s.CheckOpen(); err != nil {
		return err
	}
	return s.Tracer().Trace(ctx, "check", func(ctx context.Context) error {
		if checker, ok := s.client.(accessChecker); ok {
			return checker.CheckAccessToken(ctx)
		}
		_, err := s.client.Get(ctx, "user/info/", nil)
		return err
	})
}

// Discover returns the catalog of every stream
func (s *TikTokAdsSource) Discover(ctx context.Context) (*singer.Catalog, error) {
	if err := s.CheckOpen(); err != nil {
		return nil, err
	}
	catalog := BuildCatalog()
	s.LoggerFor(ctx).Info("discovered streams", zap.Int("streams", len(catalog.Streams)))
	return catalog, nil
}

// Sync replicates the selected streams of catalog, checkpointing through
// bookmarks
func (s *TikTokAdsSource) Sync(ctx context.Context, catalog *singer.Catalog, bookmarks core.Bookmarks) error {
	if err := s.CheckOpen(); err != nil {
		return err
	}
	if s.emitter == nil {
		return errors.New(errors.ErrorTypeConfig, "tiktok_ads source has no emitter")
	}

	start, err := s.config.StartTime()
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "invalid start_date")
	}
	var end time.Time
	if s.config.EndDate != "" {
		if end, err = s.config.EndTime(s.now()); err != nil {
			return errors.Wrap(err, errors.ErrorTypeConfig, "invalid end_date")
		}
	}

	syncer, err := NewSyncer(SyncerOptions{
		Client:          s.client,
		Emitter:         s.emitter,
		Bookmarks:       bookmarks,
		Accounts:        s.accounts,
		StartDate:       start,
		EndDate:         end,
		PageSize:        s.config.PageSize,
		ValidateRecords: s.config.ValidateRecords,
		Now:             s.now,
		Logger:          s.LoggerFor(ctx),
		Collector:       s.GetMetricsCollector(),
		Tracer:          s.Tracer(),
	})
	if err != nil {
		return err
	}
	return syncer.Sync(ctx, catalog)
}

// Close releases the client the source created
func (s *TikTokAdsSource) Close(ctx context.Context) error {
	if !s.BaseConnector.Close(ctx) {
		return nil
	}
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}
