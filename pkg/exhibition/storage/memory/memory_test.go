package memory_test

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-exhibition/pkg/exhibition"
	"github.com/tendant/simple-exhibition/pkg/exhibition/storage/memory"
)

var _ exhibition.BlobStore = (*memory.Backend)(nil)

func TestMemoryBackend_BasicOps(t *testing.T) {
	ctx := context.Background()
	b := memory.New()

	params := exhibition.UploadParams{ObjectKey: "images/ab/cd.png", MimeType: "image/png"}
	require.NoError(t, b.Upload(ctx, bytes.NewReader([]byte("png-bytes")), params))

	ok, err := b.Exists(ctx, params.ObjectKey)
	require.NoError(t, err)
	assert.True(t, ok)

	mt, ok := b.MimeType(params.ObjectKey)
	assert.True(t, ok)
	assert.Equal(t, "image/png", mt)

	rc, err := b.Download(ctx, params.ObjectKey)
	require.NoError(t, err)
	got, _ := io.ReadAll(rc)
	_ = rc.Close()
	assert.Equal(t, "png-bytes", string(got))

	assert.Equal(t, []string{"images/ab/cd.png"}, b.Keys())

	require.NoError(t, b.Delete(ctx, params.ObjectKey))
	ok, err = b.Exists(ctx, params.ObjectKey)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryBackend_MissingKey(t *testing.T) {
	ctx := context.Background()
	b := memory.New()

	_, err := b.Download(ctx, "nope")
	assert.ErrorIs(t, err, exhibition.ErrBlobNotFound)

	err = b.Delete(ctx, "nope")
	assert.ErrorIs(t, err, exhibition.ErrBlobNotFound)
}
