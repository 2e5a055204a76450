package tiktokads

import (
	"context"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/connector/core"
	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/singer"
	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/state"
	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/testutil"
	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/timeutil"
)

type fakeCall struct {
	path   string
	params url.Values
}

type fakeFailure struct {
	after int
	err   error
}

// fakeClient replays queued responses per path. A drained queue answers
// with an empty page.
type fakeClient struct {
	mu        sync.Mutex
	responses map[string][]*core.APIResponse
	errs      map[string]fakeFailure
	calls     []fakeCall
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		responses: make(map[string][]*core.APIResponse),
		errs:      make(map[string]fakeFailure),
	}
}

func (f *fakeClient) queue(path string, resp ...*core.APIResponse) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[path] = append(f.responses[path], resp...)
}

func (f *fakeClient) fail(path string, err error) {
	f.failAfter(path, 0, err)
}

// failAfter answers every call to path after the first n with err
func (f *fakeClient) failAfter(path string, n int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[path] = fakeFailure{after: n, err: err}
}

func (f *fakeClient) Get(_ context.Context, path string, params url.Values) (*core.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fakeCall{path: path, params: cloneValues(params)})
	if failure, ok := f.errs[path]; ok {
		seen := 0
		for _, c := range f.calls {
			if c.path == path {
				seen++
			}
		}
		if seen > failure.after {
			return nil, failure.err
		}
	}
	q := f.responses[path]
	if len(q) == 0 {
		return page(0), nil
	}
	f.responses[path] = q[1:]
	return q[0], nil
}

func (f *fakeClient) callsTo(path string) []fakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []fakeCall
	for _, c := range f.calls {
		if c.path == path {
			out = append(out, c)
		}
	}
	return out
}

// page builds a successful paged envelope
func page(total int, records ...map[string]interface{}) *core.APIResponse {
	list := make([]interface{}, len(records))
	for i, r := range records {
		list[i] = r
	}
	return &core.APIResponse{
		Code:    0,
		Message: "OK",
		Data: map[string]interface{}{
			"list":      list,
			"page_info": map[string]interface{}{"total_number": total},
		},
	}
}

func insightRow(adID, day string, metrics map[string]interface{}) map[string]interface{} {
	m := map[string]interface{}{
		"adgroup_id":  "30",
		"campaign_id": "40",
		"spend":       "12.50",
	}
	for k, v := range metrics {
		m[k] = v
	}
	return map[string]interface{}{
		"metrics":    m,
		"dimensions": map[string]interface{}{"ad_id": adID, "stat_time_day": day},
	}
}

func catalogOf(ids ...string) *singer.Catalog {
	catalog := &singer.Catalog{}
	for _, id := range ids {
		catalog.Streams = append(catalog.Streams, CatalogEntry(StreamByID(id)))
	}
	return catalog
}

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	v, err := timeutil.Parse(s)
	require.NoError(t, err)
	return v
}

type syncFixture struct {
	client  *fakeClient
	emitter *testutil.CapturingEmitter
	store   *state.Store
	opts    SyncerOptions
}

func newSyncFixture(t *testing.T, initial *state.State, accounts ...string) *syncFixture {
	t.Helper()
	if initial == nil {
		initial = state.New()
	}
	f := &syncFixture{
		client:  newFakeClient(),
		emitter: testutil.NewCapturingEmitter(),
	}
	f.store = state.NewStore(initial, f.emitter, nil, testutil.TestLogger(t))
	f.opts = SyncerOptions{
		Client:    f.client,
		Emitter:   f.emitter,
		Bookmarks: f.store,
		Accounts:  accounts,
		StartDate: mustTime(t, "2021-01-01T00:00:00Z"),
		PageSize:  100,
		Now:       func() time.Time { return time.Date(2021, 3, 30, 12, 0, 0, 0, time.UTC) },
		Logger:    testutil.TestLogger(t),
	}
	return f
}

func (f *syncFixture) run(t *testing.T, catalog *singer.Catalog) error {
	t.Helper()
	syncer, err := NewSyncer(f.opts)
	require.NoError(t, err)
	return syncer.Sync(testutil.TestContext(t), catalog)
}
