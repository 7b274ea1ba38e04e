package blobstore

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDigest(t *testing.T) {
	content := []byte("package archive bytes")
	want := sha256.Sum256(content)

	digest, size, err := Digest(bytes.NewReader(content))
	require.NoError(t, err)
	assert.Equal(t, hex.EncodeToString(want[:]), digest)
	assert.Equal(t, int64(len(content)), size)
}

func TestDigest_RewindsReader(t *testing.T) {
	r := bytes.NewReader([]byte("content"))

	// Leave the reader mid-stream before hashing
	_, err := r.Seek(3, io.SeekStart)
	require.NoError(t, err)

	digest1, size, err := Digest(r)
	require.NoError(t, err)
	assert.Equal(t, int64(7), size)

	// The reader must be back at the start afterwards
	rest, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "content", string(rest))

	digest2, _, err := Digest(bytes.NewReader([]byte("content")))
	require.NoError(t, err)
	assert.Equal(t, digest2, digest1)
}

func TestDigest_Deterministic(t *testing.T) {
	a, _, err := Digest(bytes.NewReader([]byte("same")))
	require.NoError(t, err)
	b, _, err := Digest(bytes.NewReader([]byte("same")))
	require.NoError(t, err)
	c, _, err := Digest(bytes.NewReader([]byte("different")))
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
