package tiktokads

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/connector/core"
	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/errors"
	jsonpool "github.com/ajitpratap0/nebula-tiktok-ads/pkg/json"
	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/logger"
	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/metrics"
	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/observability"
	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/singer"
	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/timeutil"
)

// SyncerOptions configures a Syncer
type SyncerOptions struct {
	Client    core.APIClient
	Emitter   core.Emitter
	Bookmarks core.Bookmarks

	Accounts  []string
	StartDate time.Time
	// EndDate bounds insight windows; zero means the time of the sync
	EndDate  time.Time
	PageSize int

	// ValidateRecords checks every formatted record against its schema
	ValidateRecords bool

	Now       func() time.Time
	Logger    *zap.Logger
	Collector *metrics.Collector
	Tracer    *observability.ConnectorTracer
}

// Syncer replicates the selected streams of a catalog, one stream at a
// time, checkpointing after every emitted record
type Syncer struct {
	client    core.APIClient
	emitter   core.Emitter
	bookmarks core.Bookmarks

	accounts  []string
	startDate time.Time
	endDate   time.Time
	pageSize  int
	validate  bool

	now       func() time.Time
	logger    *zap.Logger
	collector *metrics.Collector
	tracer    *observability.ConnectorTracer
}

// NewSyncer creates a syncer
func NewSyncer(opts SyncerOptions) (*Syncer, error) {
	if opts.Client == nil || opts.Emitter == nil || opts.Bookmarks == nil {
		return nil, errors.New(errors.ErrorTypeInternal, "syncer requires a client, an emitter and bookmarks")
	}
	s := &Syncer{
		client:    opts.Client,
		emitter:   opts.Emitter,
		bookmarks: opts.Bookmarks,
		accounts:  opts.Accounts,
		startDate: opts.StartDate.UTC(),
		endDate:   opts.EndDate,
		pageSize:  opts.PageSize,
		validate:  opts.ValidateRecords,
		now:       opts.Now,
		logger:    opts.Logger,
		collector: opts.Collector,
		tracer:    opts.Tracer,
	}
	if s.pageSize <= 0 {
		s.pageSize = 1000
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	if s.collector == nil {
		s.collector = metrics.NewCollector("tiktok_ads")
	}
	if s.tracer == nil {
		s.tracer = observability.NewConnectorTracer(string(core.ConnectorTypeSource), "tiktok_ads")
	}
	return s, nil
}

// Sync replicates every selected stream of catalog. A stream that was in
// flight at the last checkpoint is synced first.
func (s *Syncer) Sync(ctx context.Context, catalog *singer.Catalog) error {
	selected := catalog.SelectedStreams(s.bookmarks.CurrentlySyncing())
	s.logger.Info("starting sync",
		zap.Int("streams", len(selected)),
		zap.Strings("accounts", s.accounts))

	for _, entry := range selected {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, errors.ErrorTypeInternal, "sync cancelled")
		}
		if err := s.SyncStream(ctx, entry); err != nil {
			return err
		}
	}
	return nil
}

// SyncStream replicates a single catalog entry
func (s *Syncer) SyncStream(ctx context.Context, entry *singer.CatalogEntry) error {
	stream := StreamByID(entry.TapStreamID)
	if stream == nil {
		return errors.Newf(errors.ErrorTypeConfig, "unknown stream %s", entry.TapStreamID)
	}

	ctx = logger.ContextWith(ctx, logger.StreamKey, stream.ID)
	log := logger.WithContext(ctx)
	timer := metrics.NewTimer(stream.ID)

	return s.tracer.Trace(ctx, "sync."+stream.ID, func(ctx context.Context) error {
		log.Info("syncing stream", zap.String("category", stream.Category.Name()))

		if err := s.bookmarks.SetCurrentlySyncing(ctx, stream.ID); err != nil {
			return err
		}

		replicationKey := entry.ReplicationKeyField()
		if replicationKey == "" {
			replicationKey = stream.ReplicationKey
		}
		keys := entry.KeyPropertyFields()
		if err := s.emitter.WriteSchema(stream.ID, entry.Schema, keys, []string{replicationKey}); err != nil {
			return errors.Wrap(err, errors.ErrorTypeInternal, "failed to write schema").
				WithDetail("stream", stream.ID)
		}

		formatter, err := singer.NewFormatter(entry, s.validate)
		if err != nil {
			return err
		}
		run := &streamRun{
			Syncer:         s,
			stream:         stream,
			replicationKey: replicationKey,
			formatter:      formatter,
			extracted:      s.now().UTC(),
		}

		switch stream.Category.(type) {
		case Advertisers:
			err = run.syncAdvertisers(ctx)
		case Insights:
			err = run.syncInsights(ctx)
		default:
			err = run.syncAccounts(ctx)
		}
		if err != nil {
			return err
		}

		if removed := formatter.Removed(); len(removed) > 0 {
			log.Debug("fields not in schema were dropped", zap.Strings("fields", removed))
		}
		if err := s.bookmarks.SetCurrentlySyncing(ctx, ""); err != nil {
			return err
		}

		elapsed := timer.Stop()
		s.collector.ObserveStream(stream.ID, elapsed)
		log.Info("stream synced",
			zap.Int64("records", s.collector.Emitted(stream.ID)),
			zap.Duration("duration", elapsed))
		return nil
	})
}

// streamRun holds what one stream sync needs between batches
type streamRun struct {
	*Syncer
	stream         *Stream
	replicationKey string
	formatter      *singer.Formatter
	extracted      time.Time
}

// syncAdvertisers requests every account in a single call and checkpoints
// a scalar bookmark
func (r *streamRun) syncAdvertisers(ctx context.Context) error {
	cutoff, err := r.scalarCutoff()
	if err != nil {
		return err
	}

	ids, err := jsonpool.Marshal(r.accounts)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "failed to encode advertiser ids")
	}
	params := r.stream.Params()
	params.Set("advertiser_ids", string(ids))

	resp, err := r.client.Get(ctx, r.stream.Path, params)
	if err != nil {
		return err
	}
	r.collector.RecordPage(r.stream.ID)

	var records []core.Record
	if resp.OK() {
		records = resp.List()
	}
	return r.processBatch(ctx, records, cutoff, "", func(ctx context.Context, value string) error {
		return r.bookmarks.WriteBookmark(ctx, r.stream.ID, value)
	})
}

// syncAccounts pages through a management endpoint once per account
func (r *streamRun) syncAccounts(ctx context.Context) error {
	for _, account := range r.accounts {
		actx := logger.ContextWith(ctx, logger.AccountKey, account)

		cutoff, err := r.accountCutoff(account)
		if err != nil {
			return err
		}

		params := r.stream.Params()
		params.Set("advertiser_id", account)
		records, err := r.paginator(actx).FetchAll(actx, r.stream.Path, params)
		if err != nil {
			return err
		}
		if err := r.processBatch(actx, records, cutoff, account, r.accountBookmark(account)); err != nil {
			return err
		}
	}
	return nil
}

// syncInsights requests each account's report one date window at a time,
// resuming the day after the account's cursor
func (r *streamRun) syncInsights(ctx context.Context) error {
	end := r.endDate
	if end.IsZero() {
		end = r.now()
	}
	end = end.UTC()

	for _, account := range r.accounts {
		actx := logger.ContextWith(ctx, logger.AccountKey, account)
		log := logger.WithContext(actx)

		cursor, err := r.accountCutoff(account)
		if err != nil {
			return err
		}
		start := r.startDate
		if cursor != nil {
			start = cursor.Add(day)
		}

		windows := PlanWindows(start, end)
		r.collector.RecordWindows(r.stream.ID, len(windows))
		if len(windows) == 0 {
			log.Info("no report windows to request",
				zap.String("start", timeutil.FormatDate(start)),
				zap.String("end", timeutil.FormatDate(end)))
			continue
		}

		for _, w := range windows {
			params := r.stream.Params()
			params.Set("advertiser_id", account)
			params.Set("start_date", w.StartDate())
			params.Set("end_date", w.EndDate())

			log.Debug("requesting report window",
				zap.String("start_date", w.StartDate()),
				zap.String("end_date", w.EndDate()))

			records, err := r.paginator(actx).FetchAll(actx, r.stream.Path, params)
			if err != nil {
				return err
			}
			if err := r.processBatch(actx, records, nil, account, r.accountBookmark(account)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *streamRun) paginator(ctx context.Context) *Paginator {
	p := NewPaginator(r.client, r.pageSize, logger.WithContext(ctx))
	p.OnPage = func(int, int) { r.collector.RecordPage(r.stream.ID) }
	return p
}

func (r *streamRun) accountBookmark(account string) func(context.Context, string) error {
	return func(ctx context.Context, value string) error {
		return r.bookmarks.SetAccountCursor(ctx, r.stream.ID, account, value)
	}
}

// scalarCutoff reads a stream-level bookmark. Anything but a string, such
// as the empty map of a fresh state, means no cutoff.
func (r *streamRun) scalarCutoff() (*time.Time, error) {
	value, ok := r.bookmarks.GetBookmark(r.stream.ID).(string)
	if !ok || value == "" {
		return nil, nil
	}
	t, err := timeutil.Parse(value)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeState, "invalid bookmark").
			WithDetail("stream", r.stream.ID)
	}
	return &t, nil
}

func (r *streamRun) accountCutoff(account string) (*time.Time, error) {
	value, ok := r.bookmarks.GetCursorForAccount(r.stream.ID, account)
	if !ok || value == "" {
		return nil, nil
	}
	t, err := timeutil.Parse(value)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeState, "invalid bookmark").
			WithDetail("stream", r.stream.ID).
			WithDetail("account", account)
	}
	return &t, nil
}

// processBatch transforms, orders, formats and emits records, advancing
// the bookmark after each one. account is injected as advertiser_id when
// set.
func (r *streamRun) processBatch(ctx context.Context, raw []core.Record, cutoff *time.Time, account string, advance func(context.Context, string) error) error {
	records, err := r.stream.Category.Transform(raw, cutoff)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "failed to transform records").
			WithDetail("stream", r.stream.ID)
	}
	r.collector.RecordFiltered(r.stream.ID, len(raw)-len(records))

	if err := r.sortRecords(records); err != nil {
		return err
	}

	for _, rec := range records {
		if account != "" {
			rec["advertiser_id"] = account
		}
		formatted, err := r.formatter.Format(rec)
		if err != nil {
			return err
		}
		if err := r.emitter.WriteRecord(r.stream.ID, formatted, r.extracted); err != nil {
			return errors.Wrap(err, errors.ErrorTypeInternal, "failed to write record").
				WithDetail("stream", r.stream.ID)
		}
		r.collector.RecordEmitted(r.stream.ID, 1)

		value, ok := formatted[r.replicationKey].(string)
		if !ok || value == "" {
			continue
		}
		if err := advance(ctx, value); err != nil {
			return err
		}
	}
	return nil
}

// sortRecords orders records ascending on the replication key, keeping the
// API order of equal keys
func (r *streamRun) sortRecords(records []core.Record) error {
	type keyed struct {
		at  time.Time
		rec core.Record
	}
	items := make([]keyed, len(records))
	for i, rec := range records {
		t, err := parseCursor(rec[r.replicationKey])
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeData, "invalid replication key value").
				WithDetail("stream", r.stream.ID).
				WithDetail("field", r.replicationKey)
		}
		items[i] = keyed{at: t, rec: rec}
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].at.Before(items[j].at)
	})
	for i := range items {
		records[i] = items[i].rec
	}
	return nil
}
