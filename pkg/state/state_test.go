package state

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/compression"
	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/config"
	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/errors"
	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/testutil"
)

func TestStoreFlushesOnlyOnChange(t *testing.T) {
	ctx := testutil.TestContext(t)
	emitter := testutil.NewCapturingEmitter()
	store := NewStore(nil, emitter, nil, testutil.TestLogger(t))

	assert.Equal(t, map[string]interface{}{}, store.GetBookmark("advertisers"))

	require.NoError(t, store.WriteBookmark(ctx, "advertisers", "2021-01-01T00:00:00.000000Z"))
	require.NoError(t, store.WriteBookmark(ctx, "advertisers", "2021-01-01T00:00:00.000000Z"))
	assert.Equal(t, int64(1), store.Flushes())

	require.NoError(t, store.WriteBookmark(ctx, "advertisers", "2021-01-02T00:00:00.000000Z"))
	assert.Equal(t, int64(2), store.Flushes())
	assert.Equal(t, "2021-01-02T00:00:00.000000Z", store.GetBookmark("advertisers"))

	states := emitter.States()
	require.Len(t, states, 2)
	assert.Equal(t, map[string]interface{}{
		"bookmarks": map[string]interface{}{"advertisers": "2021-01-02T00:00:00.000000Z"},
	}, states[1])
}

func TestStoreAccountCursors(t *testing.T) {
	ctx := testutil.TestContext(t)
	emitter := testutil.NewCapturingEmitter()
	store := NewStore(&State{Bookmarks: map[string]interface{}{
		"campaigns": map[string]interface{}{"1": "2021-01-01T00:00:00.000000Z"},
	}}, emitter, nil, testutil.TestLogger(t))

	cursor, ok := store.GetCursorForAccount("campaigns", "1")
	assert.True(t, ok)
	assert.Equal(t, "2021-01-01T00:00:00.000000Z", cursor)

	_, ok = store.GetCursorForAccount("campaigns", "2")
	assert.False(t, ok)
	_, ok = store.GetCursorForAccount("ads", "1")
	assert.False(t, ok)

	require.NoError(t, store.SetAccountCursor(ctx, "campaigns", "2", "2021-02-01T00:00:00.000000Z"))
	require.NoError(t, store.SetAccountCursor(ctx, "campaigns", "2", "2021-02-01T00:00:00.000000Z"))
	assert.Equal(t, int64(1), store.Flushes())

	assert.Equal(t, map[string]interface{}{
		"1": "2021-01-01T00:00:00.000000Z",
		"2": "2021-02-01T00:00:00.000000Z",
	}, store.GetBookmark("campaigns"))
}

func TestStoreCurrentlySyncing(t *testing.T) {
	ctx := testutil.TestContext(t)
	emitter := testutil.NewCapturingEmitter()
	store := NewStore(New(), emitter, nil, testutil.TestLogger(t))

	require.NoError(t, store.SetCurrentlySyncing(ctx, "ads"))
	assert.Equal(t, "ads", store.CurrentlySyncing())
	assert.Equal(t, "ads", emitter.LastState()["currently_syncing"])

	require.NoError(t, store.SetCurrentlySyncing(ctx, ""))
	assert.Empty(t, store.CurrentlySyncing())
	_, present := emitter.LastState()["currently_syncing"]
	assert.False(t, present)
	assert.Equal(t, int64(2), store.Flushes())
}

func TestStoreSnapshotIsDeepCopy(t *testing.T) {
	ctx := testutil.TestContext(t)
	store := NewStore(nil, nil, nil, testutil.TestLogger(t))
	require.NoError(t, store.SetAccountCursor(ctx, "ads", "1", "a"))

	snap := store.Snapshot()
	snap.Bookmarks["ads"].(map[string]interface{})["1"] = "mutated"

	cursor, _ := store.GetCursorForAccount("ads", "1")
	assert.Equal(t, "a", cursor)
}

func TestStoreEmitFailure(t *testing.T) {
	emitter := testutil.NewCapturingEmitter()
	emitter.FailStateAfter = 0
	store := NewStore(nil, emitter, nil, testutil.TestLogger(t))

	err := store.WriteBookmark(testutil.TestContext(t), "ads", map[string]interface{}{"1": "x"})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeState))
	assert.Equal(t, int64(0), store.Flushes())
}

func TestParseState(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		syncing string
		streams int
	}{
		{"empty", "", "", 0},
		{"object", `{"currently_syncing":"ads","bookmarks":{"ads":{"1":"x"}}}`, "ads", 1},
		{"state message", `{"type":"STATE","value":{"bookmarks":{"ads":{"1":"x"},"advertisers":"y"}}}`, "", 2},
		{"pretty printed", "{\n  \"bookmarks\": {}\n}\n", "", 0},
		{"message stream", `{"type":"STATE","value":{"bookmarks":{}}}
{"type":"RECORD","stream":"ads","record":{"ad_id":1}}
{"type":"STATE","value":{"currently_syncing":"ads","bookmarks":{"ads":{"1":"x"}}}}
{"type":"RECORD","stream":"ads","rec`, "ads", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, err := ParseState([]byte(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.syncing, st.CurrentlySyncing)
			assert.Len(t, st.Bookmarks, tt.streams)
		})
	}

	_, err := ParseState([]byte(`not json`))
	assert.True(t, errors.IsType(err, errors.ErrorTypeState))
}

func TestLoadStateFile(t *testing.T) {
	path := testutil.WriteFile(t, "state.json", `{"bookmarks":{"advertisers":"2021-01-01T00:00:00.000000Z"}}`)
	st, err := LoadStateFile(path)
	require.NoError(t, err)
	assert.Equal(t, "2021-01-01T00:00:00.000000Z", st.Bookmarks["advertisers"])

	_, err = LoadStateFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.True(t, errors.IsType(err, errors.ErrorTypeFile))
}

func TestLoadStateFileFromCompressedOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jsonl.gz")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w, err := compression.NewWriter(f, compression.Gzip)
	require.NoError(t, err)
	_, err = io.WriteString(w, `{"type":"RECORD","stream":"ads","record":{"ad_id":1}}`+"\n"+
		`{"type":"STATE","value":{"bookmarks":{"ads":{"111":"2021-01-02T00:00:00.000000Z"}}}}`+"\n")
	require.NoError(t, err)
	// Flushed but never closed, as a killed run leaves it
	require.NoError(t, w.Flush())

	st, err := LoadStateFile(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"111": "2021-01-02T00:00:00.000000Z"}, st.Bookmarks["ads"])
}

func TestFileBackend(t *testing.T) {
	ctx := testutil.TestContext(t)
	b := NewFileBackend(filepath.Join(t.TempDir(), "nested", "state.json"))

	st, err := b.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, st)

	emitter := testutil.NewCapturingEmitter()
	store := NewStore(nil, emitter, b, testutil.TestLogger(t))
	require.NoError(t, store.SetAccountCursor(ctx, "ads", "1", "2021-03-01T00:00:00.000000Z"))

	st, err = b.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, map[string]interface{}{"1": "2021-03-01T00:00:00.000000Z"}, st.Bookmarks["ads"])
}

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[*in.Bucket+"/"+*in.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) Upload(_ context.Context, in *s3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[*in.Bucket+"/"+*in.Key] = data
	return &manager.UploadOutput{}, nil
}

func TestS3Backend(t *testing.T) {
	ctx := testutil.TestContext(t)
	fake := &fakeS3{objects: map[string][]byte{}}
	b := NewS3BackendWithClients("bucket", "tiktok-ads/state.json", fake, fake)
	assert.Equal(t, "s3", b.Name())

	st, err := b.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, st)

	require.NoError(t, b.Save(ctx, &State{CurrentlySyncing: "ads", Bookmarks: map[string]interface{}{"advertisers": "x"}}))
	assert.Contains(t, string(fake.objects["bucket/tiktok-ads/state.json"]), `"currently_syncing":"ads"`)

	st, err = b.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ads", st.CurrentlySyncing)
	assert.Equal(t, "x", st.Bookmarks["advertisers"])
}

type fakeGCS struct {
	objects map[string]*bytes.Buffer
	closed  bool
}

type gcsWriter struct {
	buf    *bytes.Buffer
	commit func()
}

func (w *gcsWriter) Write(p []byte) (int, error) { return w.buf.Write(p) }
func (w *gcsWriter) Close() error {
	w.commit()
	return nil
}

func (f *fakeGCS) NewReader(_ context.Context, bucket, object string) (io.ReadCloser, error) {
	buf, ok := f.objects[bucket+"/"+object]
	if !ok {
		return nil, storage.ErrObjectNotExist
	}
	return io.NopCloser(bytes.NewReader(buf.Bytes())), nil
}

func (f *fakeGCS) NewWriter(_ context.Context, bucket, object string) io.WriteCloser {
	w := &gcsWriter{buf: &bytes.Buffer{}}
	w.commit = func() { f.objects[bucket+"/"+object] = w.buf }
	return w
}

func (f *fakeGCS) Close() error {
	f.closed = true
	return nil
}

func TestGCSBackend(t *testing.T) {
	ctx := testutil.TestContext(t)
	fake := &fakeGCS{objects: map[string]*bytes.Buffer{}}
	b := NewGCSBackendWithStore("bucket", "state.json", fake)

	st, err := b.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, st)

	require.NoError(t, b.Save(ctx, &State{Bookmarks: map[string]interface{}{"ads": map[string]interface{}{"1": "x"}}}))
	st, err = b.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"1": "x"}, st.Bookmarks["ads"])

	require.NoError(t, b.Close())
	assert.True(t, fake.closed)
}

type fakeRow struct {
	data []byte
	err  error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*[]byte)) = r.data
	return nil
}

type fakePg struct {
	queries []string
	stored  map[string][]byte
}

func (f *fakePg) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.queries = append(f.queries, sql)
	if strings.HasPrefix(sql, "INSERT") {
		f.stored[args[0].(string)] = []byte(args[1].(string))
		return pgconn.NewCommandTag("INSERT 0 1"), nil
	}
	return pgconn.NewCommandTag("CREATE TABLE"), nil
}

func (f *fakePg) QueryRow(_ context.Context, _ string, args ...any) pgx.Row {
	data, ok := f.stored[args[0].(string)]
	if !ok {
		return fakeRow{err: pgx.ErrNoRows}
	}
	return fakeRow{data: data}
}

func TestPostgresBackend(t *testing.T) {
	ctx := testutil.TestContext(t)
	fake := &fakePg{stored: map[string][]byte{}}
	b := NewPostgresBackendWithQuerier(fake, "connector_state", "tiktok_ads")

	require.NoError(t, b.EnsureTable(ctx))
	assert.Contains(t, fake.queries[0], `CREATE TABLE IF NOT EXISTS "connector_state"`)

	st, err := b.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, st)

	require.NoError(t, b.Save(ctx, &State{Bookmarks: map[string]interface{}{"advertisers": "x"}}))
	assert.Contains(t, fake.queries[1], "ON CONFLICT (state_id)")

	st, err = b.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "x", st.Bookmarks["advertisers"])
}

func TestNewBackend(t *testing.T) {
	ctx := testutil.TestContext(t)

	b, err := NewBackend(ctx, config.StateConfig{Backend: "none"})
	require.NoError(t, err)
	assert.Nil(t, b)

	b, err = NewBackend(ctx, config.StateConfig{Backend: "file", Path: filepath.Join(t.TempDir(), "s.json")})
	require.NoError(t, err)
	assert.Equal(t, "file", b.Name())

	_, err = NewBackend(ctx, config.StateConfig{Backend: "redis"})
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}
