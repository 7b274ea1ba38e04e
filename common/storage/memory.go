package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryBackend is an in-process Backend used by tests.
type MemoryBackend struct {
	mu         sync.Mutex
	objects    map[string][]byte
	multiparts map[string]*multipartSession
	// PutCount tracks backend writes per key, for dedup assertions
	PutCount map[string]int
}

type multipartSession struct {
	key   string
	parts map[int][]byte
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		objects:    map[string][]byte{},
		multiparts: map[string]*multipartSession{},
		PutCount:   map[string]int{},
	}
}

func (b *MemoryBackend) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return Error.Wrap(err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = data
	b.PutCount[key]++
	return nil
}

func (b *MemoryBackend) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[key]
	if !ok {
		return nil, ErrObjectNotFound.New("%s", key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (b *MemoryBackend) Stat(ctx context.Context, key string) (ObjectInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[key]
	if !ok {
		return ObjectInfo{}, ErrObjectNotFound.New("%s", key)
	}
	return ObjectInfo{Key: key, Size: int64(len(data))}, nil
}

func (b *MemoryBackend) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, key)
	return nil
}

func (b *MemoryBackend) CreateMultipartUpload(ctx context.Context, key string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := uuid.NewString()
	b.multiparts[id] = &multipartSession{key: key, parts: map[int][]byte{}}
	return id, nil
}

func (b *MemoryBackend) PresignPartURL(ctx context.Context, key, multipartID string, partNumber int, expires time.Duration) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.multiparts[multipartID]; !ok {
		return "", Error.New("no such upload: %s", multipartID)
	}
	return fmt.Sprintf("memory://%s?uploadId=%s&partNumber=%d", key, multipartID, partNumber), nil
}

// UploadPart stages part data directly, standing in for the client's
// presigned PUT.
func (b *MemoryBackend) UploadPart(multipartID string, partNumber int, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	session, ok := b.multiparts[multipartID]
	if !ok {
		return Error.New("no such upload: %s", multipartID)
	}
	session.parts[partNumber] = data
	return nil
}

func (b *MemoryBackend) CompleteMultipartUpload(ctx context.Context, key, multipartID string, parts []CompletedPart) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	session, ok := b.multiparts[multipartID]
	if !ok {
		return Error.New("no such upload: %s", multipartID)
	}

	numbers := make([]int, 0, len(session.parts))
	for n := range session.parts {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)

	var buf bytes.Buffer
	for _, n := range numbers {
		buf.Write(session.parts[n])
	}

	b.objects[key] = buf.Bytes()
	b.PutCount[key]++
	delete(b.multiparts, multipartID)
	return nil
}

func (b *MemoryBackend) AbortMultipartUpload(ctx context.Context, key, multipartID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.multiparts, multipartID)
	return nil
}
