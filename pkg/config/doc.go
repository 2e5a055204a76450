// Package config provides configuration management for the TikTok Ads connector.
//
// # Key Features
//
// - BaseConfig: the ambient sections shared by connectors (timeouts, reliability, observability)
// - TikTokAdsSourceConfig: credentials, accounts, replication range and output settings
// - JSON or YAML files read through viper, with ${VAR_NAME} substitution
// - TIKTOK_ADS_* environment overrides for the main keys
// - Defaults from `default` struct tags and constraints from `validate` tags
//
// # Usage
//
//	cfg, err := config.LoadTikTokAds("config.json")
//	if err != nil {
//		log.Fatal(err)
//	}
//
// Flexible value forms accepted by the loader:
//
//	accounts:        ["123", "456"] or "123, 456"
//	page_size:       1000 or "1000"
//	sandbox:         true or "true"
//	request_timeout: 300, "300", 100.5 or "5m"; empty or zero means 300 seconds
package config
