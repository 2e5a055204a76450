package tiktokads

import (
	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/connector/core"
	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/connector/registry"
)

func init() {
	// Register TikTok Ads source connector in the global registry
	_ = registry.RegisterSource(SourceName, func(opts core.SourceOptions) (core.Source, error) {
		src, err := NewTikTokAdsSource(opts)
		if err != nil {
			return nil, err
		}
		return src, nil
	})
}
