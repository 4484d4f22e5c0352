package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLocalFileStorage_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewLocalFileStorage(t.TempDir(), zap.NewNop())

	path := "invoices/2026/03/INV1_scan.pdf"
	require.NoError(t, s.Save(ctx, path, []byte("%PDF-1.7")))
	assert.True(t, s.Exists(ctx, path))

	data, err := s.Read(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7", string(data))

	require.NoError(t, s.Delete(ctx, path))
	assert.False(t, s.Exists(ctx, path))
	assert.NoError(t, s.Delete(ctx, path))
}

func TestLocalFileStorage_RejectsEscapingPaths(t *testing.T) {
	ctx := context.Background()
	s := NewLocalFileStorage(t.TempDir(), zap.NewNop())

	assert.Error(t, s.Save(ctx, "../outside.pdf", []byte("x")))
	_, err := s.Read(ctx, "../../etc/passwd")
	assert.Error(t, err)
	assert.False(t, s.Exists(ctx, "../outside.pdf"))
	assert.Error(t, s.Delete(ctx, "."))
}
