package tiktokads

import (
	"net/url"
	"strings"

	jsonpool "github.com/ajitpratap0/nebula-tiktok-ads/pkg/json"
)

// Stream identifiers
const (
	StreamAdvertisers              = "advertisers"
	StreamCampaigns                = "campaigns"
	StreamAdGroups                 = "adgroups"
	StreamAds                      = "ads"
	StreamAdInsights               = "ad_insights"
	StreamAdInsightsByAgeAndGender = "ad_insights_by_age_and_gender"
	StreamAdInsightsByCountry      = "ad_insights_by_country"
	StreamAdInsightsByPlatform     = "ad_insights_by_platform"
)

const (
	reportsPath            = "reports/integrated/get/"
	replicationModifyTime  = "modify_time"
	replicationStatTimeDay = "stat_time_day"
	replicationCreateTime  = "create_time"
)

// auctionFields are the metrics requested for the basic auction report
var auctionFields = []string{
	"ad_name", "ad_text", "adgroup_id", "adgroup_name", "campaign_id", "campaign_name",
	"placement", "spend", "cpc", "cpm", "impressions", "clicks", "ctr", "reach",
	"cost_per_1000_reached", "conversion", "cost_per_conversion", "conversion_rate",
	"real_time_conversion", "real_time_cost_per_conversion", "real_time_conversion_rate",
	"result", "cost_per_result", "result_rate", "real_time_result",
	"real_time_cost_per_result", "real_time_result_rate", "secondary_goal_result",
	"cost_per_secondary_goal_result", "secondary_goal_result_rate", "frequency",
	"video_play_actions", "video_watched_2s", "video_watched_6s", "average_video_play",
	"average_video_play_per_user", "video_views_p25", "video_views_p50", "video_views_p75",
	"video_views_p100", "profile_visits", "profile_visits_rate", "likes", "comments",
	"shares", "follows", "clicks_on_music_disc", "tt_app_id", "tt_app_name",
	"mobile_app_id", "promotion_type", "dpa_target_audience_type",
}

// audienceFields are the metrics requested for audience reports
var audienceFields = []string{
	"ad_name", "ad_text", "adgroup_id", "adgroup_name", "campaign_id", "campaign_name",
	"spend", "cpc", "cpm", "impressions", "clicks", "ctr", "conversion",
	"cost_per_conversion", "conversion_rate", "real_time_conversion",
	"real_time_cost_per_conversion", "real_time_conversion_rate", "result",
	"cost_per_result", "result_rate", "real_time_result", "real_time_cost_per_result",
	"real_time_result_rate", "tt_app_id", "tt_app_name", "mobile_app_id",
	"promotion_type", "dpa_target_audience_type",
}

// Stream describes one replicated endpoint
type Stream struct {
	ID             string
	KeyProperties  []string
	ReplicationKey string
	Path           string
	Category       Category

	// dimensions and metrics of report streams
	Dimensions []string
	Metrics    []string
	ReportType string
}

// Params returns the fixed query parameters of the stream
func (s *Stream) Params() url.Values {
	params := url.Values{}
	if _, ok := s.Category.(Insights); !ok {
		return params
	}
	params.Set("service_type", "AUCTION")
	params.Set("report_type", s.ReportType)
	params.Set("data_level", "AUCTION_AD")
	params.Set("dimensions", jsonList(s.Dimensions))
	params.Set("metrics", jsonList(s.Metrics))
	params.Set("lifetime", "false")
	return params
}

func jsonList(values []string) string {
	data, err := jsonpool.Marshal(values)
	if err != nil {
		return "[" + strings.Join(values, ",") + "]"
	}
	return string(data)
}

func insightKeys(extra ...string) []string {
	keys := []string{"advertiser_id", "ad_id", "adgroup_id", "campaign_id", replicationStatTimeDay}
	return append(keys, extra...)
}

func audienceStream(id string, extra ...string) *Stream {
	dims := append([]string{"ad_id"}, extra...)
	return &Stream{
		ID:             id,
		KeyProperties:  insightKeys(extra...),
		ReplicationKey: replicationStatTimeDay,
		Path:           reportsPath,
		Category:       Insights{},
		Dimensions:     append(dims, replicationStatTimeDay),
		Metrics:        audienceFields,
		ReportType:     "AUDIENCE",
	}
}

// streams in catalog order
var streams = []*Stream{
	{
		ID:             StreamAdvertisers,
		KeyProperties:  []string{"id", replicationCreateTime},
		ReplicationKey: replicationCreateTime,
		Path:           "advertiser/info/",
		Category:       Advertisers{},
	},
	{
		ID:             StreamCampaigns,
		KeyProperties:  []string{"advertiser_id", "campaign_id", replicationModifyTime},
		ReplicationKey: replicationModifyTime,
		Path:           "campaign/get/",
		Category:       AdManagement{},
	},
	{
		ID:             StreamAdGroups,
		KeyProperties:  []string{"advertiser_id", "campaign_id", "adgroup_id", replicationModifyTime},
		ReplicationKey: replicationModifyTime,
		Path:           "adgroup/get/",
		Category:       AdManagement{},
	},
	{
		ID:             StreamAds,
		KeyProperties:  []string{"advertiser_id", "campaign_id", "adgroup_id", "ad_id", replicationModifyTime},
		ReplicationKey: replicationModifyTime,
		Path:           "ad/get/",
		Category:       AdManagement{},
	},
	{
		ID:             StreamAdInsights,
		KeyProperties:  insightKeys(),
		ReplicationKey: replicationStatTimeDay,
		Path:           reportsPath,
		Category:       Insights{},
		Dimensions:     []string{"ad_id", replicationStatTimeDay},
		Metrics:        auctionFields,
		ReportType:     "BASIC",
	},
	audienceStream(StreamAdInsightsByAgeAndGender, "age", "gender"),
	audienceStream(StreamAdInsightsByCountry, "country_code"),
	audienceStream(StreamAdInsightsByPlatform, "platform"),
}

// Streams returns every stream in catalog order
func Streams() []*Stream {
	return append([]*Stream(nil), streams...)
}

// StreamByID returns the stream with the given ID, or nil
func StreamByID(id string) *Stream {
	for _, s := range streams {
		if s.ID == id {
			return s
		}
	}
	return nil
}
