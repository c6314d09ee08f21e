package telemetry

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latticehq/lattice/pkg/types"
)

func TestParquetHandlerPassesToNext(t *testing.T) {
	var buf bytes.Buffer
	next := slog.NewTextHandler(&buf, nil)

	h, err := NewParquetHandler(next, t.TempDir())
	require.NoError(t, err)

	log := slog.New(h)
	log.Info("hello")

	assert.Contains(t, buf.String(), "hello")
}

func TestParquetHandlerBuffersOnlyErrors(t *testing.T) {
	h, err := NewParquetHandler(slog.NewTextHandler(os.Stderr, nil), t.TempDir())
	require.NoError(t, err)

	log := slog.New(h)
	log.Info("not archived")
	log.Warn("not archived either")
	assert.Empty(t, h.buffer)

	log.Error("archived")
	assert.Len(t, h.buffer, 1)
	assert.Equal(t, "archived", h.buffer[0].Message)
}

func TestParquetHandlerCapturesContext(t *testing.T) {
	h, err := NewParquetHandler(slog.NewTextHandler(os.Stderr, nil), t.TempDir())
	require.NoError(t, err)

	ctx := context.WithValue(context.Background(), types.ContextKeyTenantID, "acme")
	ctx = context.WithValue(ctx, types.ContextKeyProjectID, "docs")

	slog.New(h).ErrorContext(ctx, "boom", "detail", 42)

	require.Len(t, h.buffer, 1)
	rec := h.buffer[0]
	assert.Equal(t, "acme", rec.TenantID)
	assert.Equal(t, "docs", rec.ProjectID)
	assert.Contains(t, rec.Attributes, "detail")
}

func TestParquetHandlerFlushWritesFile(t *testing.T) {
	dir := t.TempDir()
	h, err := NewParquetHandler(slog.NewTextHandler(os.Stderr, nil), dir)
	require.NoError(t, err)

	slog.New(h).Error("flush me")
	require.NoError(t, h.Flush())

	files, err := filepath.Glob(filepath.Join(dir, "execution_errors_*.parquet"))
	require.NoError(t, err)
	assert.Len(t, files, 1)

	// Buffer drained after flush.
	assert.Empty(t, h.buffer)
}
