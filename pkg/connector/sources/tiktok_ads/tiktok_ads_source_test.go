package tiktokads

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/config"
	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/connector/core"
	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/connector/registry"
	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/errors"
	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/singer"
	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/state"
	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/testutil"
)

func newTestConfig(baseURL string) *config.TikTokAdsSourceConfig {
	cfg := config.NewTikTokAdsSourceConfig()
	cfg.AccessToken = "test_access_token"
	cfg.UserAgent = "test_user_agent"
	cfg.Accounts = []string{" 111 "}
	cfg.StartDate = "2021-01-01T00:00:00Z"
	cfg.EndDate = "2021-01-10T00:00:00Z"
	cfg.BaseURL = baseURL
	cfg.PageSize = 50
	cfg.Reliability.RateLimitPerSec = 0
	cfg.Reliability.RetryDelay = time.Millisecond
	cfg.Reliability.MaxRetryDelay = 5 * time.Millisecond
	return cfg
}

func newTestSource(t *testing.T, server *testutil.APIServer, emitter core.Emitter) *TikTokAdsSource {
	t.Helper()
	src, err := NewTikTokAdsSource(core.SourceOptions{Config: newTestConfig(server.URL), Emitter: emitter})
	require.NoError(t, err)
	src.SetLogger(testutil.TestLogger(t))
	t.Cleanup(func() { _ = src.Close(testutil.TestContext(t)) })
	return src
}

func TestNewTikTokAdsSourceValidatesConfig(t *testing.T) {
	_, err := NewTikTokAdsSource(core.SourceOptions{})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	cfg := newTestConfig("http://127.0.0.1:0")
	cfg.Accounts = nil
	_, err = NewTikTokAdsSource(core.SourceOptions{Config: cfg})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Please provide atleast 1 Account ID.")

	cfg.Accounts = []string{"123", "abc"}
	_, err = NewTikTokAdsSource(core.SourceOptions{Config: cfg})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Provided list of account IDs contains invalid IDs. Kindly check your Account IDs.")

	cfg.Accounts = []string{"123"}
	cfg.AccessToken = ""
	_, err = NewTikTokAdsSource(core.SourceOptions{Config: cfg})
	require.Error(t, err)
}

func TestSourceCheck(t *testing.T) {
	server := testutil.NewAPIServer(t)
	server.OK("user/info/", map[string]interface{}{"display_name": "me"})
	server.OK("advertiser/info/", map[string]interface{}{"list": []interface{}{}})
	src := newTestSource(t, server, nil)

	require.NoError(t, src.Check(testutil.TestContext(t)))
	reqs := server.Requests("advertiser/info/")
	require.Len(t, reqs, 1)
	assert.Equal(t, `["111"]`, reqs[0].Query.Get("advertiser_ids"))
	assert.Equal(t, []string{"111"}, src.Accounts())
}

func TestSourceCheckWithInjectedClient(t *testing.T) {
	client := newFakeClient()
	src, err := NewTikTokAdsSource(core.SourceOptions{Config: newTestConfig(""), Client: client})
	require.NoError(t, err)

	require.NoError(t, src.Check(testutil.TestContext(t)))
	assert.Len(t, client.callsTo("user/info/"), 1)
}

func TestSourceDiscover(t *testing.T) {
	src, err := NewTikTokAdsSource(core.SourceOptions{Config: newTestConfig(""), Client: newFakeClient()})
	require.NoError(t, err)

	catalog, err := src.Discover(testutil.TestContext(t))
	require.NoError(t, err)
	require.Len(t, catalog.Streams, 8)

	var ids []string
	for _, e := range catalog.Streams {
		ids = append(ids, e.TapStreamID)
		s := StreamByID(e.TapStreamID)
		require.NotNil(t, s)

		assert.True(t, e.IsSelected(), e.TapStreamID)
		assert.Equal(t, s.ReplicationKey, e.ReplicationKeyField())
		assert.Equal(t, s.KeyProperties, e.KeyPropertyFields())

		md := e.StreamMetadata()
		assert.Equal(t, singer.ReplicationIncremental, md[singer.MetaForcedReplicationMethod])
		assert.Equal(t, []string{s.ReplicationKey}, md[singer.MetaValidReplicationKeys])

		for _, k := range s.KeyProperties {
			require.Contains(t, e.Schema.Properties, k, "%s.%s", e.TapStreamID, k)
			assert.Equal(t, singer.InclusionAutomatic, e.FieldMetadata(k)[singer.MetaInclusion])
		}
	}
	assert.Equal(t, []string{
		StreamAdvertisers, StreamCampaigns, StreamAdGroups, StreamAds,
		StreamAdInsights, StreamAdInsightsByAgeAndGender, StreamAdInsightsByCountry, StreamAdInsightsByPlatform,
	}, ids)

	insights := catalog.Get(StreamAdInsights)
	assert.Equal(t, singer.InclusionAvailable, insights.FieldMetadata("spend")[singer.MetaInclusion])
	assert.True(t, insights.Schema.Properties["secondary_goal_result"].HasType("null"))
}

func TestSourceSyncEndToEnd(t *testing.T) {
	server := testutil.NewAPIServer(t)
	server.OK("campaign/get/", map[string]interface{}{
		"list": []interface{}{
			map[string]interface{}{"campaign_id": 1800000000000000001, "campaign_name": "spring", "modify_time": "2021-01-05 10:00:00"},
		},
		"page_info": map[string]interface{}{"total_number": 1},
	})
	server.OK("reports/integrated/get/", map[string]interface{}{
		"list": []interface{}{
			map[string]interface{}{
				"metrics":    map[string]interface{}{"spend": "4.00", "secondary_goal_result": "-", "adgroup_id": "30", "campaign_id": "40"},
				"dimensions": map[string]interface{}{"ad_id": "1001", "stat_time_day": "2021-01-03 00:00:00"},
			},
		},
		"page_info": map[string]interface{}{"total_number": 1},
	})

	emitter := testutil.NewCapturingEmitter()
	src := newTestSource(t, server, emitter)
	store := state.NewStore(state.New(), emitter, nil, testutil.TestLogger(t))

	require.NoError(t, src.Sync(testutil.TestContext(t), catalogOf(StreamCampaigns, StreamAdInsights), store))

	campaigns := emitter.Records(StreamCampaigns)
	require.Len(t, campaigns, 1)
	assert.Equal(t, int64(1800000000000000001), campaigns[0].Record["campaign_id"])
	assert.Equal(t, int64(111), campaigns[0].Record["advertiser_id"])

	insights := emitter.Records(StreamAdInsights)
	require.Len(t, insights, 1)
	assert.Nil(t, insights[0].Record["secondary_goal_result"])

	reports := server.Requests("reports/integrated/get/")
	require.Len(t, reports, 1)
	assert.Equal(t, "2021-01-01", reports[0].Query.Get("start_date"))
	assert.Equal(t, "2021-01-10", reports[0].Query.Get("end_date"))
	assert.Equal(t, "50", reports[0].Query.Get("page_size"))
	assert.Equal(t, "test_access_token", reports[0].Header.Get("Access-Token"))

	assert.Equal(t, map[string]interface{}{
		StreamCampaigns:  map[string]interface{}{"111": "2021-01-05T10:00:00.000000Z"},
		StreamAdInsights: map[string]interface{}{"111": "2021-01-03T00:00:00.000000Z"},
	}, emitter.LastState()["bookmarks"])
	assert.Equal(t, int64(1), src.GetMetricsCollector().Emitted(StreamCampaigns))
}

func TestSourceSyncRequiresEmitter(t *testing.T) {
	src, err := NewTikTokAdsSource(core.SourceOptions{Config: newTestConfig(""), Client: newFakeClient()})
	require.NoError(t, err)
	store := state.NewStore(state.New(), testutil.NewCapturingEmitter(), nil, testutil.TestLogger(t))

	err = src.Sync(testutil.TestContext(t), catalogOf(StreamAds), store)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestSourceClosed(t *testing.T) {
	src, err := NewTikTokAdsSource(core.SourceOptions{Config: newTestConfig(""), Client: newFakeClient()})
	require.NoError(t, err)

	ctx := testutil.TestContext(t)
	require.NoError(t, src.Close(ctx))
	require.NoError(t, src.Close(ctx))

	_, err = src.Discover(ctx)
	assert.Error(t, err)
}

func TestSourceIsRegistered(t *testing.T) {
	assert.True(t, registry.HasSource(SourceName))

	src, err := registry.CreateSource(SourceName, core.SourceOptions{
		Config: newTestConfig(""),
		Client: newFakeClient(),
	})
	require.NoError(t, err)
	assert.Equal(t, SourceName, src.Name())
	require.NoError(t, src.Close(testutil.TestContext(t)))
}
