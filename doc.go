// Package nebula replicates TikTok Ads data incrementally.
//
// The connector reads advertisers, campaigns, ad groups, ads and daily ad
// performance reports from the TikTok Business API and writes them as a
// stream of SCHEMA, RECORD and STATE messages. Bookmarks persisted in the
// state let each run resume where the previous one stopped.
//
// # Quick Start
//
//	tiktok-ads discover --config config.json > catalog.json
//	tiktok-ads sync --config config.json --catalog catalog.json --state state.json > out.jsonl
//
// A minimal configuration:
//
//	{
//	  "access_token": "...",
//	  "accounts": "1234567890,2345678901",
//	  "start_date": "2021-01-01T00:00:00Z",
//	  "state": {"backend": "file", "path": "state/state.json"}
//	}
//
// Every key may also be set through the environment with the TIKTOK_ADS_
// prefix, e.g. TIKTOK_ADS_ACCESS_TOKEN.
//
// # Key Packages
//
//	pkg/connector/sources/tiktok_ads - Streams, date windows, pagination and transforms
//	pkg/connector/registry           - Source registration
//	pkg/clients                      - Business API client with retries and rate limiting
//	pkg/singer                       - Catalog, schema and message encoding
//	pkg/state                        - Bookmark store and checkpoint backends (file, S3, GCS, PostgreSQL)
//	pkg/config                       - Configuration loading and validation
//	pkg/errors                       - Structured error handling
//	pkg/logger                       - Structured logging
//	pkg/metrics                      - Prometheus metrics
//	pkg/observability                - OpenTelemetry tracing
//
// # Streams
//
// Management streams (campaigns, adgroups, ads) are synced per advertiser
// account and filtered by modify_time. Report streams (ad_insights and its
// age/gender, country and platform breakdowns) are requested in date windows
// ending at most 29 days after their start and bookmarked by stat_time_day.
package nebula
