package nlp

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latticehq/lattice/pkg/types"
)

func TestParquetTokenTracker(t *testing.T) {
	tokenDir := filepath.Join(t.TempDir(), "tokens")

	tracker, err := NewTokenTracker(tokenDir)
	require.NoError(t, err)
	tracker.batchSize = 1 // Force flush on every write for testing

	ctx := context.WithValue(context.Background(), types.ContextKeyComponent, "classifier")

	usage := &types.TokenUsage{
		PromptTokens:     10,
		CompletionTokens: 20,
		TotalTokens:      30,
	}

	err = tracker.AddUsage(ctx, usage, "gpt-4o-mini")
	require.NoError(t, err)

	// Verify token data file created
	entries, err := os.ReadDir(tokenDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.True(t, strings.HasSuffix(entries[0].Name(), ".parquet"))
	assert.True(t, strings.HasPrefix(entries[0].Name(), "token_usage_"))
}

func TestTokenTrackerIgnoresNilUsage(t *testing.T) {
	tracker, err := NewTokenTracker(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, tracker.AddUsage(context.Background(), nil, "model"))
	require.NoError(t, tracker.Flush())
}
