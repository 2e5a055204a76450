package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/compression"
	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/config"
	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/connector/core"
	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/connector/registry"
	tiktokads "github.com/ajitpratap0/nebula-tiktok-ads/pkg/connector/sources/tiktok_ads"
	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/errors"
	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/logger"
	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/metrics"
	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/observability"
	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/singer"
	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/state"
)

// syncOptions are the flags of the sync command. Flags left empty fall
// back to the configuration file.
type syncOptions struct {
	ConfigFile  string
	StateFile   string
	CatalogFile string
	Output      string
	Compression string
	MetricsAddr string
	LogLevel    string
}

func (o syncOptions) apply(cfg *config.TikTokAdsSourceConfig) {
	if o.Output != "" {
		cfg.Output.Path = o.Output
	}
	if o.Compression != "" {
		cfg.Output.Compression = o.Compression
	}
	if o.MetricsAddr != "" {
		cfg.Observability.MetricsAddr = o.MetricsAddr
	}
	if o.LogLevel != "" {
		cfg.Observability.LogLevel = o.LogLevel
	}
}

func initLogging(cfg *config.TikTokAdsSourceConfig) error {
	return logger.Init(logger.Config{
		Level:    cfg.Observability.LogLevel,
		Encoding: cfg.Observability.LogFormat,
	})
}

// runSync executes one sync run. Messages go to stdout unless the
// configuration names an output file.
func runSync(ctx context.Context, stdout io.Writer, opts syncOptions) error {
	cfg, err := config.LoadTikTokAds(opts.ConfigFile)
	if err != nil {
		return err
	}
	opts.apply(cfg)
	if err := initLogging(cfg); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to initialize logger")
	}
	defer func() { _ = logger.Sync() }()

	ctx = logger.ContextWith(ctx, logger.SyncIDKey, uuid.NewString())
	ctx = logger.ContextWith(ctx, logger.ConnectorKey, tiktokads.SourceName)
	log := logger.WithContext(ctx)

	if cfg.Observability.EnableTracing {
		tc := observability.DefaultTracingConfig(version)
		tc.SamplingRate = cfg.Observability.TracingSampleRate
		if err := observability.InitTracing(ctx, tc); err != nil {
			return errors.Wrap(err, errors.ErrorTypeConfig, "failed to initialize tracing")
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = observability.Shutdown(shutdownCtx)
		}()
	}

	if addr := cfg.Observability.MetricsAddr; addr != "" {
		metricsCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			if err := metrics.Serve(metricsCtx, addr); err != nil {
				log.Warn("metrics server stopped", zap.String("addr", addr), zap.Error(err))
			}
		}()
		log.Info("serving metrics", zap.String("addr", addr))
	}

	out, err := openOutput(cfg.Output, stdout)
	if err != nil {
		return err
	}
	writer := singer.NewWriter(out)

	backend, err := state.NewBackend(ctx, cfg.State)
	if err != nil {
		_ = out.Close()
		return err
	}
	if backend != nil {
		defer func() { _ = backend.Close() }()
	}

	initial, err := loadInitialState(ctx, opts.StateFile, backend)
	if err != nil {
		_ = out.Close()
		return err
	}
	store := state.NewStore(initial, writer, backend, log)

	start := time.Now()
	runErr := syncWith(ctx, cfg, opts.CatalogFile, writer, store)
	closeErr := out.Close()
	if runErr != nil {
		return runErr
	}
	if closeErr != nil {
		return errors.Wrap(closeErr, errors.ErrorTypeFile, "failed to close output")
	}

	schemas, records, states := writer.Counts()
	log.Info("sync completed",
		zap.Duration("duration", time.Since(start)),
		zap.Int64("schemas", schemas),
		zap.Int64("records", records),
		zap.Int64("states", states),
		zap.Int64("flushes", store.Flushes()))
	return nil
}

func syncWith(ctx context.Context, cfg *config.TikTokAdsSourceConfig, catalogFile string, emitter core.Emitter, store *state.Store) error {
	source, err := registry.CreateSource(tiktokads.SourceName, core.SourceOptions{Config: cfg, Emitter: emitter})
	if err != nil {
		return err
	}
	defer func() { _ = source.Close(ctx) }()

	var catalog *singer.Catalog
	if catalogFile != "" {
		if catalog, err = singer.LoadCatalog(catalogFile); err != nil {
			return err
		}
	} else {
		if catalog, err = source.Discover(ctx); err != nil {
			return err
		}
		catalog.SelectAll()
	}

	return source.Sync(ctx, catalog, store)
}

// loadInitialState reads the state file when given, otherwise the
// checkpoint of backend. Missing checkpoints start from an empty state.
func loadInitialState(ctx context.Context, path string, backend state.Backend) (*state.State, error) {
	if path != "" {
		return state.LoadStateFile(path)
	}
	if backend == nil {
		return state.New(), nil
	}
	st, err := backend.Load(ctx)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return state.New(), nil
	}
	return st, nil
}

// output closes the compressor before the file beneath it. Flush is
// promoted from the compressor so STATE messages reach the file as they
// are written.
type output struct {
	compression.Writer
	file *os.File
}

func (o *output) Close() error {
	err := o.Writer.Close()
	if o.file != nil {
		if ferr := o.file.Close(); err == nil {
			err = ferr
		}
	}
	return err
}

// openOutput returns the message sink described by cfg, falling back to
// stdout when no path is set
func openOutput(cfg config.OutputConfig, stdout io.Writer) (*output, error) {
	algo, err := compression.ParseAlgorithm(cfg.Compression)
	if err != nil {
		return nil, err
	}

	var (
		dst  io.Writer = stdout
		file *os.File
	)
	if cfg.Path != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o750); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to create output directory")
		}
		file, err = os.Create(cfg.Path) //nolint:gosec // G304: output path is provided by the operator
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to create output file").
				WithDetail("path", cfg.Path)
		}
		dst = file
	}

	w, err := compression.NewWriter(dst, algo)
	if err != nil {
		if file != nil {
			_ = file.Close()
		}
		return nil, err
	}
	return &output{Writer: w, file: file}, nil
}
