package observability

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartSpanLogsOnlyWhenEnabled(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	shutdown, err := Setup(context.Background(), Config{Enabled: false}, logger)
	require.NoError(t, err)
	buf.Reset()

	_, end := StartSpan(context.Background(), "caption", "fetch")
	end(nil)
	assert.Empty(t, buf.String())
	require.NoError(t, shutdown(context.Background()))

	shutdown, err = Setup(context.Background(), Config{Enabled: true}, logger)
	require.NoError(t, err)
	defer shutdown(context.Background())
	buf.Reset()

	_, end = StartSpan(context.Background(), "caption", "fetch")
	end(errors.New("boom"))
	out := buf.String()
	assert.Contains(t, out, "obs span start")
	assert.Contains(t, out, "obs span end")
	assert.Contains(t, out, "boom")

	buf.Reset()
	RecordMetric(context.Background(), "caption.length", 12, map[string]string{"bundle": "image"})
	assert.Contains(t, buf.String(), "caption.length")
	assert.True(t, Enabled())
}

func TestCaptionCounters(t *testing.T) {
	before := testutil.ToFloat64(CaptionRequests.WithLabelValues(OutcomeCaptioned))
	CountCaption(OutcomeCaptioned)
	assert.Equal(t, before+1, testutil.ToFloat64(CaptionRequests.WithLabelValues(OutcomeCaptioned)))

	ObserveInference("binary", nil, 50*time.Millisecond)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "media_caption_events_total")
	assert.Contains(t, rec.Body.String(), "media_caption_inference_seconds")
}
