// Package blobstore is the content-addressed storage layer. Bytes live in the
// object store under their SHA-256 digest; metadata lives in the blobs table.
// Identical content is stored once no matter how many owners reference it.
package blobstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/thunderstore/registry/common/apierrors"
	"github.com/thunderstore/registry/common/db"
	"github.com/thunderstore/registry/common/logger"
	"github.com/thunderstore/registry/common/models"
	"github.com/thunderstore/registry/common/repository"
	"github.com/thunderstore/registry/common/storage"
)

// Store provides deduplicated blob storage on top of an object store backend.
type Store struct {
	db      *db.DB
	blobs   *repository.BlobRepository
	backend storage.Backend
	log     *logger.Logger
}

// New creates a blob store
func New(database *db.DB, blobs *repository.BlobRepository, backend storage.Backend, log *logger.Logger) *Store {
	return &Store{
		db:      database,
		blobs:   blobs,
		backend: backend,
		log:     log,
	}
}

// Digest computes the hex-encoded SHA-256 of content and its size, leaving
// the reader positioned at the start.
func Digest(content io.ReadSeeker) (digest string, size int64, err error) {
	if _, err := content.Seek(0, io.SeekStart); err != nil {
		return "", 0, fmt.Errorf("seek content: %w", err)
	}

	h := sha256.New()
	size, err = io.Copy(h, content)
	if err != nil {
		return "", 0, fmt.Errorf("hash content: %w", err)
	}

	if _, err := content.Seek(0, io.SeekStart); err != nil {
		return "", 0, fmt.Errorf("rewind content: %w", err)
	}

	return hex.EncodeToString(h.Sum(nil)), size, nil
}

// Put stores content and returns its blob record. If a blob with the same
// digest already exists the bytes are not written again. Concurrent writers
// of the same digest serialize on a per-digest advisory lock so the object
// is uploaded exactly once.
func (s *Store) Put(ctx context.Context, content io.ReadSeeker, contentType, contentEncoding string) (*models.Blob, error) {
	digest, size, err := Digest(content)
	if err != nil {
		return nil, err
	}

	existing, err := s.blobs.GetByDigest(ctx, digest)
	if err != nil {
		return nil, err
	}
	if existing != nil && !existing.IsDeleted {
		return existing, nil
	}

	blob := &models.Blob{
		Digest:          digest,
		SizeBytes:       size,
		ContentType:     contentType,
		ContentEncoding: contentEncoding,
		CreatedAt:       time.Now().UTC(),
	}

	err = s.db.InTx(ctx, func(txCtx context.Context, tx pgx.Tx) error {
		acquired, err := db.TryAdvisoryXactLock(txCtx, tx, db.LockKey("blob", digest))
		if err != nil {
			return err
		}
		if !acquired {
			return apierrors.Transient.New("blob %s is being stored by another writer", digest)
		}

		repo := s.blobs.WithTx(tx)

		// Re-check under the lock: the previous holder may have finished.
		current, err := repo.GetByDigest(txCtx, digest)
		if err != nil {
			return err
		}
		if current != nil && !current.IsDeleted {
			blob = current
			return nil
		}

		// Object bytes go in before the row commits, so a visible row always
		// has backing bytes.
		if err := s.backend.Put(ctx, blob.ObjectKey(), content, size, contentType); err != nil {
			return err
		}

		if current != nil {
			return repo.Restore(txCtx, digest)
		}
		_, err = repo.Create(txCtx, blob)
		return err
	})
	if err != nil {
		return nil, err
	}

	return blob, nil
}

// Open returns the blob record and a reader over its bytes. The caller must
// close the reader.
func (s *Store) Open(ctx context.Context, digest string) (*models.Blob, io.ReadCloser, error) {
	blob, err := s.blobs.GetByDigest(ctx, digest)
	if err != nil {
		return nil, nil, err
	}
	if blob == nil || blob.IsDeleted {
		return nil, nil, apierrors.NotFound.New("blob %s not found", digest)
	}

	body, err := s.backend.Get(ctx, blob.ObjectKey())
	if err != nil {
		return nil, nil, err
	}
	return blob, body, nil
}

// Stat returns the blob record without opening the bytes.
func (s *Store) Stat(ctx context.Context, digest string) (*models.Blob, error) {
	blob, err := s.blobs.GetByDigest(ctx, digest)
	if err != nil {
		return nil, err
	}
	if blob == nil || blob.IsDeleted {
		return nil, apierrors.NotFound.New("blob %s not found", digest)
	}
	return blob, nil
}

// Delete tombstones the blob and then erases the backend object. Deletion is
// a two-step process so a crash between the steps leaves a tombstone the
// sweeper can finish, never a dangling row. Must not be called inside a
// transaction: the backend delete cannot be rolled back.
func (s *Store) Delete(ctx context.Context, digest string) error {
	if db.InTransaction(ctx) {
		return apierrors.Conflict.New("blob delete is not allowed inside a transaction")
	}

	blob, err := s.blobs.GetByDigest(ctx, digest)
	if err != nil {
		return err
	}
	if blob == nil {
		return nil
	}

	if err := s.blobs.MarkDeleted(ctx, digest); err != nil {
		return err
	}

	if err := s.backend.Delete(ctx, models.BlobObjectKey(digest)); err != nil && !storage.ErrObjectNotFound.Has(err) {
		// Leave the tombstone; the sweeper retries the erase.
		return err
	}

	return s.blobs.Erase(ctx, digest)
}

// SweepTombstones finishes interrupted deletions: for every tombstoned row it
// erases the backend object and then the row. Returns how many blobs were
// fully erased.
func (s *Store) SweepTombstones(ctx context.Context, limit int) (int, error) {
	digests, err := s.blobs.ListTombstoned(ctx, limit)
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, digest := range digests {
		if err := s.backend.Delete(ctx, models.BlobObjectKey(digest)); err != nil && !storage.ErrObjectNotFound.Has(err) {
			s.log.Warn("tombstone sweep failed", "digest", digest, "error", err)
			continue
		}
		if err := s.blobs.Erase(ctx, digest); err != nil {
			s.log.Warn("tombstone erase failed", "digest", digest, "error", err)
			continue
		}
		swept++
	}

	if swept > 0 {
		s.log.Info("swept tombstoned blobs", "count", swept)
	}
	return swept, nil
}

// NewCacheID returns a time-sortable id for derived artifacts.
func NewCacheID() uuid.UUID {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return id
}
