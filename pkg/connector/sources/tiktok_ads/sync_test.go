package tiktokads

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/connector/core"
	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/errors"
	jsonpool "github.com/ajitpratap0/nebula-tiktok-ads/pkg/json"
	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/singer"
	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/state"
)

func TestSyncManagementStreamPerAccount(t *testing.T) {
	initial := state.New()
	initial.Bookmarks[StreamCampaigns] = map[string]interface{}{"111": "2021-01-05T00:00:00.000000Z"}

	f := newSyncFixture(t, initial, "111", "222")
	f.client.queue("campaign/get/",
		page(3,
			map[string]interface{}{"campaign_id": "1", "modify_time": "2021-01-04 00:00:00"},
			map[string]interface{}{"campaign_id": "2", "modify_time": "2021-01-07 00:00:00", "campaign_name": "later"},
			map[string]interface{}{"campaign_id": "3", "modify_time": "2021-01-06 00:00:00", "campaign_name": "earlier"},
		),
		page(1,
			map[string]interface{}{"campaign_id": "4", "create_time": "2021-01-02 10:00:00"},
		),
	)

	require.NoError(t, f.run(t, catalogOf(StreamCampaigns)))

	assert.Equal(t, []string{
		"STATE", "SCHEMA:campaigns",
		"RECORD:campaigns", "STATE",
		"RECORD:campaigns", "STATE",
		"RECORD:campaigns", "STATE",
		"STATE",
	}, f.emitter.Order())

	schemas := f.emitter.Schemas()
	require.Len(t, schemas, 1)
	assert.Equal(t, []string{"advertiser_id", "campaign_id", "modify_time"}, schemas[0].KeyProperties)
	assert.Equal(t, []string{"modify_time"}, schemas[0].BookmarkProperties)

	records := f.emitter.Records(StreamCampaigns)
	require.Len(t, records, 3)
	assert.Equal(t, int64(3), records[0].Record["campaign_id"])
	assert.Equal(t, "2021-01-06T00:00:00.000000Z", records[0].Record["modify_time"])
	assert.Equal(t, int64(111), records[0].Record["advertiser_id"])
	assert.Equal(t, int64(2), records[1].Record["campaign_id"])
	assert.Equal(t, int64(222), records[2].Record["advertiser_id"])
	assert.Equal(t, "2021-01-02T10:00:00.000000Z", records[2].Record["modify_time"])
	assert.Equal(t, time.Date(2021, 3, 30, 12, 0, 0, 0, time.UTC), records[0].Extracted)

	assert.Equal(t, map[string]interface{}{
		"bookmarks": map[string]interface{}{
			StreamCampaigns: map[string]interface{}{
				"111": "2021-01-07T00:00:00.000000Z",
				"222": "2021-01-02T10:00:00.000000Z",
			},
		},
	}, f.emitter.LastState())

	calls := f.client.callsTo("campaign/get/")
	require.Len(t, calls, 2)
	assert.Equal(t, "111", calls[0].params.Get("advertiser_id"))
	assert.Equal(t, "222", calls[1].params.Get("advertiser_id"))
	assert.Equal(t, "100", calls[0].params.Get("page_size"))
	assert.Equal(t, "1", calls[0].params.Get("page"))
}

func TestSyncInsightsWindows(t *testing.T) {
	f := newSyncFixture(t, nil, "111")
	f.opts.EndDate = date(2021, 3, 30)
	f.client.queue(reportsPath, page(2,
		insightRow("1001", "2021-01-02 00:00:00", map[string]interface{}{"secondary_goal_result": "-"}),
		insightRow("1001", "2021-01-01 00:00:00", nil),
	))

	require.NoError(t, f.run(t, catalogOf(StreamAdInsights)))

	calls := f.client.callsTo(reportsPath)
	require.Len(t, calls, 3)
	want := [][2]string{
		{"2021-01-01", "2021-01-30"},
		{"2021-01-31", "2021-03-01"},
		{"2021-03-02", "2021-03-30"},
	}
	for i, c := range calls {
		assert.Equal(t, want[i][0], c.params.Get("start_date"))
		assert.Equal(t, want[i][1], c.params.Get("end_date"))
		assert.Equal(t, "111", c.params.Get("advertiser_id"))
		assert.Equal(t, "BASIC", c.params.Get("report_type"))
		assert.Equal(t, "AUCTION", c.params.Get("service_type"))
		assert.Equal(t, "AUCTION_AD", c.params.Get("data_level"))
		assert.Equal(t, "false", c.params.Get("lifetime"))
		assert.Equal(t, `["ad_id","stat_time_day"]`, c.params.Get("dimensions"))
	}

	records := f.emitter.Records(StreamAdInsights)
	require.Len(t, records, 2)
	first, second := records[0].Record, records[1].Record
	assert.Equal(t, "2021-01-01T00:00:00.000000Z", first["stat_time_day"])
	assert.Equal(t, "2021-01-02T00:00:00.000000Z", second["stat_time_day"])
	assert.Equal(t, int64(111), first["advertiser_id"])
	assert.Equal(t, int64(1001), first["ad_id"])
	assert.Equal(t, int64(30), first["adgroup_id"])
	assert.Equal(t, jsonpool.Number("12.50"), first["spend"])
	assert.Contains(t, second, "secondary_goal_result")
	assert.Nil(t, second["secondary_goal_result"])

	cursor, ok := f.store.GetCursorForAccount(StreamAdInsights, "111")
	require.True(t, ok)
	assert.Equal(t, "2021-01-02T00:00:00.000000Z", cursor)
	assert.Empty(t, f.store.CurrentlySyncing())
}

func TestSyncInsightsResumesAfterCursor(t *testing.T) {
	initial := state.New()
	initial.Bookmarks[StreamAdInsightsByCountry] = map[string]interface{}{
		"111": "2021-03-28T00:00:00.000000Z",
		"222": "2021-03-30T00:00:00.000000Z",
	}
	f := newSyncFixture(t, initial, "111", "222")
	f.opts.EndDate = date(2021, 3, 30)

	require.NoError(t, f.run(t, catalogOf(StreamAdInsightsByCountry)))

	calls := f.client.callsTo(reportsPath)
	require.Len(t, calls, 1, "an account already at the end date requests nothing")
	assert.Equal(t, "111", calls[0].params.Get("advertiser_id"))
	assert.Equal(t, "2021-03-29", calls[0].params.Get("start_date"))
	assert.Equal(t, "2021-03-30", calls[0].params.Get("end_date"))
	assert.Equal(t, "AUDIENCE", calls[0].params.Get("report_type"))
	assert.Equal(t, `["ad_id","country_code","stat_time_day"]`, calls[0].params.Get("dimensions"))

	cursor, _ := f.store.GetCursorForAccount(StreamAdInsightsByCountry, "222")
	assert.Equal(t, "2021-03-30T00:00:00.000000Z", cursor)
}

func TestSyncAdvertisers(t *testing.T) {
	response := func() *core.APIResponse {
		return &core.APIResponse{Message: "OK", Data: []interface{}{
			map[string]interface{}{"id": jsonpool.Number("111"), "name": "first", "create_time": jsonpool.Number("1609459200")},
			map[string]interface{}{"id": 222, "name": "second", "create_time": 1609372800},
		}}
	}

	f := newSyncFixture(t, nil, "111", "222")
	f.client.queue("advertiser/info/", response())
	require.NoError(t, f.run(t, catalogOf(StreamAdvertisers)))

	calls := f.client.callsTo("advertiser/info/")
	require.Len(t, calls, 1)
	assert.Equal(t, `["111","222"]`, calls[0].params.Get("advertiser_ids"))
	assert.Empty(t, calls[0].params.Get("page"))

	records := f.emitter.Records(StreamAdvertisers)
	require.Len(t, records, 2)
	assert.EqualValues(t, 222, records[0].Record["id"])
	assert.Equal(t, "2020-12-31T00:00:00.000000Z", records[0].Record["create_time"])
	assert.EqualValues(t, 111, records[1].Record["id"])
	assert.NotContains(t, records[0].Record, "advertiser_id")
	assert.Equal(t, "2021-01-01T00:00:00.000000Z", f.store.GetBookmark(StreamAdvertisers))

	// A second run from the saved state finds nothing newer
	next := newSyncFixture(t, f.store.Snapshot(), "111", "222")
	next.client.queue("advertiser/info/", response())
	require.NoError(t, next.run(t, catalogOf(StreamAdvertisers)))
	assert.Empty(t, next.emitter.Records(StreamAdvertisers))
}

func TestSyncResumesCurrentlySyncingStream(t *testing.T) {
	initial := state.New()
	initial.CurrentlySyncing = StreamAds
	f := newSyncFixture(t, initial, "111")

	require.NoError(t, f.run(t, catalogOf(StreamCampaigns, StreamAdGroups, StreamAds)))

	var order []string
	for _, s := range f.emitter.Schemas() {
		order = append(order, s.Stream)
	}
	assert.Equal(t, []string{StreamAds, StreamCampaigns, StreamAdGroups}, order)
	assert.Empty(t, f.store.CurrentlySyncing())
	assert.NotContains(t, f.emitter.LastState(), "currently_syncing")
}

func TestSyncErrorKeepsCheckpoint(t *testing.T) {
	f := newSyncFixture(t, nil, "111")
	f.client.queue("campaign/get/", page(1,
		map[string]interface{}{"campaign_id": "1", "modify_time": "2021-02-01 00:00:00"},
	))
	f.client.fail("adgroup/get/", errors.New(errors.ErrorTypeUpstream, "Requests made too frequently"))

	err := f.run(t, catalogOf(StreamCampaigns, StreamAdGroups, StreamAds))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Requests made too frequently")

	assert.Equal(t, StreamAdGroups, f.store.CurrentlySyncing())
	cursor, ok := f.store.GetCursorForAccount(StreamCampaigns, "111")
	require.True(t, ok)
	assert.Equal(t, "2021-02-01T00:00:00.000000Z", cursor)
	assert.Empty(t, f.client.callsTo("ad/get/"), "later streams are not attempted")
}

func TestSyncInsightsResumesAfterFailedWindow(t *testing.T) {
	f := newSyncFixture(t, nil, "111")
	f.opts.EndDate = date(2021, 3, 30)
	f.client.queue(reportsPath, page(2,
		insightRow("1001", "2021-01-05 00:00:00", nil),
		insightRow("1001", "2021-01-02 00:00:00", nil),
	))
	f.client.failAfter(reportsPath, 1, errors.New(errors.ErrorTypeUpstream, "Requests made too frequently"))

	err := f.run(t, catalogOf(StreamAdInsights))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Requests made too frequently")

	calls := f.client.callsTo(reportsPath)
	require.Len(t, calls, 2)
	assert.Equal(t, "2021-01-31", calls[1].params.Get("start_date"))

	// Every record of the first window was checkpointed before the failure
	assert.Equal(t, []string{
		"STATE", "SCHEMA:ad_insights",
		"RECORD:ad_insights", "STATE",
		"RECORD:ad_insights", "STATE",
	}, f.emitter.Order())
	assert.Equal(t, map[string]interface{}{
		"currently_syncing": StreamAdInsights,
		"bookmarks": map[string]interface{}{
			StreamAdInsights: map[string]interface{}{"111": "2021-01-05T00:00:00.000000Z"},
		},
	}, f.emitter.LastState())

	// A rerun from the checkpoint starts the day after the cursor
	next := newSyncFixture(t, f.store.Snapshot(), "111")
	next.opts.EndDate = date(2021, 3, 30)
	require.NoError(t, next.run(t, catalogOf(StreamAdInsights)))

	resumed := next.client.callsTo(reportsPath)
	require.NotEmpty(t, resumed)
	assert.Equal(t, "2021-01-06", resumed[0].params.Get("start_date"))
	assert.Equal(t, "2021-02-04", resumed[0].params.Get("end_date"))
	assert.Equal(t, "2021-03-30", resumed[len(resumed)-1].params.Get("end_date"))
}

func TestSyncStateFailureAborts(t *testing.T) {
	f := newSyncFixture(t, nil, "111")
	f.emitter.FailStateAfter = 1
	f.client.queue("campaign/get/", page(1,
		map[string]interface{}{"campaign_id": "1", "modify_time": "2021-02-01 00:00:00"},
	))

	err := f.run(t, catalogOf(StreamCampaigns))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeState))
	assert.Len(t, f.emitter.Records(StreamCampaigns), 1)
}

func TestSyncHonoursFieldSelection(t *testing.T) {
	f := newSyncFixture(t, nil, "111")
	f.client.queue("campaign/get/", page(1,
		map[string]interface{}{"campaign_id": "1", "campaign_name": "hidden", "budget": "10.5", "modify_time": "2021-02-01 00:00:00"},
	))

	catalog := catalogOf(StreamCampaigns)
	catalog.Streams[0].FieldMetadata("campaign_name")[singer.MetaSelected] = false
	catalog.Streams[0].FieldMetadata("modify_time")[singer.MetaSelected] = false

	require.NoError(t, f.run(t, catalog))

	records := f.emitter.Records(StreamCampaigns)
	require.Len(t, records, 1)
	assert.NotContains(t, records[0].Record, "campaign_name")
	assert.Contains(t, records[0].Record, "modify_time", "replication keys are always emitted")
	assert.Equal(t, jsonpool.Number("10.5"), records[0].Record["budget"])
}

func TestSyncSkipsUnselectedStreams(t *testing.T) {
	f := newSyncFixture(t, nil, "111")
	catalog := catalogOf(StreamCampaigns, StreamAds)
	catalog.Streams[0].SetStreamMetadata(singer.MetaSelected, false)

	require.NoError(t, f.run(t, catalog))
	assert.Empty(t, f.client.callsTo("campaign/get/"))
	assert.Len(t, f.client.callsTo("ad/get/"), 1)
}

func TestSyncRejectsUnknownStream(t *testing.T) {
	f := newSyncFixture(t, nil, "111")
	entry := CatalogEntry(StreamByID(StreamAds))
	entry.TapStreamID = "creatives"

	err := f.run(t, &singer.Catalog{Streams: []*singer.CatalogEntry{entry}})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestNewSyncerRequiresDependencies(t *testing.T) {
	_, err := NewSyncer(SyncerOptions{})
	assert.Error(t, err)
}
