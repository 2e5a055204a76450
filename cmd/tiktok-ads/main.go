package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/config"
	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/connector/core"
	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/connector/registry"
	tiktokads "github.com/ajitpratap0/nebula-tiktok-ads/pkg/connector/sources/tiktok_ads"
	jsonpool "github.com/ajitpratap0/nebula-tiktok-ads/pkg/json"
)

var version = tiktokads.Version

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "tiktok-ads",
		Short: "Incremental replication of TikTok Ads data",
		Long: `tiktok-ads replicates advertisers, campaigns, ad groups, ads and daily ad
reports from the TikTok Business API as a stream of SCHEMA, RECORD and STATE
messages on stdout.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newVersionCmd(), newStreamsCmd(), newDiscoverCmd(), newSyncCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "tiktok-ads v%s\n", version)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

func newStreamsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "streams",
		Short: "List replicated streams",
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "STREAM\tCATEGORY\tREPLICATION KEY\tPATH")
			for _, s := range tiktokads.Streams() {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.ID, s.Category.Name(), s.ReplicationKey, s.Path)
			}
			return tw.Flush()
		},
	}
}

func newDiscoverCmd() *cobra.Command {
	var configFile, writeConfig string

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Write the catalog of every stream to stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadTikTokAds(configFile)
			if err != nil {
				return err
			}
			if err := initLogging(cfg); err != nil {
				return err
			}
			if writeConfig != "" {
				if err := config.Save(writeConfig, cfg); err != nil {
					return err
				}
			}

			source, err := registry.CreateSource(tiktokads.SourceName, core.SourceOptions{Config: cfg})
			if err != nil {
				return err
			}
			defer func() { _ = source.Close(cmd.Context()) }()

			catalog, err := source.Discover(cmd.Context())
			if err != nil {
				return err
			}
			data, err := jsonpool.MarshalIndent(catalog, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to the connector configuration file (required)")
	cmd.Flags().StringVar(&writeConfig, "write-config", "", "Also write the resolved configuration, with defaults applied, as YAML to this path")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

func newSyncCmd() *cobra.Command {
	var opts syncOptions

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Replicate the selected streams",
		Long: `Replicate the selected streams incrementally, writing SCHEMA, RECORD and
STATE messages. Without --catalog every stream is selected. Without --state
the checkpoint of the configured state backend is resumed.

Example:
  tiktok-ads sync --config config.json --state state.json > out.jsonl`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigFile, "config", "c", "", "Path to the connector configuration file (required)")
	cmd.Flags().StringVarP(&opts.StateFile, "state", "s", "", "Path to a state file to resume from")
	cmd.Flags().StringVar(&opts.CatalogFile, "catalog", "", "Path to a catalog file selecting streams")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "Write messages to this file instead of stdout")
	cmd.Flags().StringVar(&opts.Compression, "compression", "", "Compress the output (none, gzip, zstd, snappy, s2, lz4)")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "Expose Prometheus metrics on this address, e.g. :9090")
	cmd.Flags().StringVar(&opts.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}
