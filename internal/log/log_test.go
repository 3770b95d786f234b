package log_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/getherald/herald/internal/log"

	"github.com/stretchr/testify/require"
)

func TestContextAttrs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := log.NewAt(&buf, false)

	ctx := log.ContextAttrs(t.Context(), slog.String("job_id", "0198"), slog.String("tenant_id", "acme"))
	logger.InfoContext(ctx, "delivering")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	require.Equal(t, "delivering", rec["msg"])
	require.Equal(t, "0198", rec["job_id"])
	require.Equal(t, "acme", rec["tenant_id"])
}

func TestContextAttrsSiblings(t *testing.T) {
	t.Parallel()

	root := log.ContextAttrs(t.Context(), slog.String("tenant_id", "acme"))
	a := log.ContextAttrs(root, slog.String("job_id", "a"))
	b := log.ContextAttrs(root, slog.String("job_id", "b"))

	var buf bytes.Buffer
	logger := log.NewAt(&buf, false)
	logger.InfoContext(a, "first")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	require.Equal(t, "a", rec["job_id"])

	buf.Reset()
	logger.InfoContext(b, "second")
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	require.Equal(t, "b", rec["job_id"])
}

func TestWithKeepsContextAttrs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := log.NewAt(&buf, false).With("transform", "geoip")

	ctx := log.ContextAttrs(t.Context(), slog.String("job_id", "0199"))
	logger.InfoContext(ctx, "progress")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	require.Equal(t, "geoip", rec["transform"])
	require.Equal(t, "0199", rec["job_id"])
}

func TestVerbose(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := log.NewAt(&buf, false)
	logger.Debug("hidden")
	require.Empty(t, buf.Bytes())

	logger = log.NewAt(&buf, true)
	logger.Debug("visible")
	require.NotEmpty(t, buf.Bytes())
}
