package observability

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestInitTracingExportsToWriter(t *testing.T) {
	ctx := context.Background()
	out := &syncBuffer{}

	cfg := DefaultTracingConfig("test")
	cfg.Writer = out
	require.NoError(t, InitTracing(ctx, cfg))

	tracer := NewConnectorTracer("source", "tiktok_ads")
	err := tracer.Trace(ctx, "sync_stream", func(ctx context.Context) error {
		_, span := StartSpan(ctx, "fetch_page", attribute.String("endpoint", "campaign/get/"))
		span.SetAttribute("page", 1)
		span.End(nil)
		return errors.New("boom")
	})
	require.Error(t, err)

	require.NoError(t, Shutdown(ctx))

	exported := out.String()
	assert.Contains(t, exported, "source.tiktok_ads.sync_stream")
	assert.Contains(t, exported, "fetch_page")
	assert.Contains(t, exported, "campaign/get/")
	assert.Contains(t, exported, "boom")
}

func TestShutdownWithoutInit(t *testing.T) {
	assert.NoError(t, Shutdown(context.Background()))
}

func TestSpansWithoutProviderAreNoop(t *testing.T) {
	_, span := StartSpan(context.Background(), "noop")
	span.SetAttribute("k", struct{}{})
	span.AddEvent("event")
	span.End(nil)
}
