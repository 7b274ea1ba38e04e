package storage

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBackend_PutGetStat(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()

	require.NoError(t, b.Put(ctx, "k", bytes.NewReader([]byte("hello")), 5, "text/plain"))

	body, err := b.Get(ctx, "k")
	require.NoError(t, err)
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	info, err := b.Stat(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, int64(5), info.Size)

	require.NoError(t, b.Delete(ctx, "k"))
	_, err = b.Get(ctx, "k")
	assert.True(t, ErrObjectNotFound.Has(err))
}

func TestMemoryBackend_MultipartLifecycle(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()

	id, err := b.CreateMultipartUpload(ctx, "archive.zip")
	require.NoError(t, err)

	url, err := b.PresignPartURL(ctx, "archive.zip", id, 1, 0)
	require.NoError(t, err)
	assert.Contains(t, url, "partNumber=1")

	require.NoError(t, b.UploadPart(id, 2, []byte("world")))
	require.NoError(t, b.UploadPart(id, 1, []byte("hello ")))

	parts := []CompletedPart{{PartNumber: 1}, {PartNumber: 2}}
	require.NoError(t, b.CompleteMultipartUpload(ctx, "archive.zip", id, parts))

	body, err := b.Get(ctx, "archive.zip")
	require.NoError(t, err)
	data, err := io.ReadAll(body)
	require.NoError(t, err)

	// Parts assemble in part number order regardless of upload order
	assert.Equal(t, "hello world", string(data))

	// Session is gone after completion
	_, err = b.PresignPartURL(ctx, "archive.zip", id, 3, 0)
	assert.Error(t, err)
}

func TestMemoryBackend_AbortMultipart(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()

	id, err := b.CreateMultipartUpload(ctx, "archive.zip")
	require.NoError(t, err)
	require.NoError(t, b.UploadPart(id, 1, []byte("data")))

	require.NoError(t, b.AbortMultipartUpload(ctx, "archive.zip", id))

	_, err = b.Get(ctx, "archive.zip")
	assert.True(t, ErrObjectNotFound.Has(err))
	assert.Error(t, b.UploadPart(id, 2, []byte("more")))
}
