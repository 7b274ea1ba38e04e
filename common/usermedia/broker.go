// Package usermedia brokers client uploads into the object store. Clients
// never stream bytes through the API: they receive presigned part URLs and
// upload directly to the backend, then finalize through the broker.
package usermedia

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/thunderstore/registry/common/apierrors"
	"github.com/thunderstore/registry/common/config"
	"github.com/thunderstore/registry/common/logger"
	"github.com/thunderstore/registry/common/models"
	"github.com/thunderstore/registry/common/repository"
	"github.com/thunderstore/registry/common/storage"
)

// Broker manages the multipart upload lifecycle.
type Broker struct {
	uploads *repository.UploadRepository
	backend storage.Backend
	cfg     *config.Config
	log     *logger.Logger
}

// NewBroker creates an upload broker
func NewBroker(uploads *repository.UploadRepository, backend storage.Backend, cfg *config.Config, log *logger.Logger) *Broker {
	return &Broker{
		uploads: uploads,
		backend: backend,
		cfg:     cfg,
		log:     log,
	}
}

// PartCount returns how many parts an upload of size bytes needs.
func PartCount(size, partSize int64) int {
	return int((size + partSize - 1) / partSize)
}

// SanitizeFilename strips characters that are unsafe in object keys. The
// result is never empty.
func SanitizeFilename(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	s := b.String()
	if len(s) > 128 {
		s = s[len(s)-128:]
	}
	if s == "" || strings.Trim(s, "._") == "" {
		s = "upload.bin"
	}
	return s
}

// CreateUpload registers a new multipart upload and opens it on the backend.
// The declared size is validated against the configured bounds before any
// backend call.
func (b *Broker) CreateUpload(ctx context.Context, owner, filename string, size int64) (*models.Upload, error) {
	if owner == "" {
		return nil, apierrors.PermissionDenied.New("authentication required")
	}
	if size < b.cfg.Limits.MinUploadSize {
		return nil, apierrors.FieldValidation("file_size_bytes", "Upload size is below the minimum")
	}
	if size > b.cfg.Limits.MaxUploadSize {
		return nil, apierrors.TooLarge.New("upload of %d bytes exceeds the maximum of %d", size, b.cfg.Limits.MaxUploadSize)
	}

	uploadID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate upload id: %w", err)
	}

	now := time.Now().UTC()
	expiry := now.Add(b.cfg.Limits.UploadURLExpiry)
	clean := SanitizeFilename(filename)

	upload := &models.Upload{
		UploadID:  uploadID,
		Owner:     owner,
		Filename:  clean,
		ObjectKey: fmt.Sprintf("%s/%s/%s", b.cfg.Storage.UsermediaPrefix, uploadID, clean),
		SizeBytes: size,
		Status:    models.UploadInitial,
		Expiry:    &expiry,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := b.uploads.Create(ctx, upload); err != nil {
		return nil, err
	}

	multipartID, err := b.backend.CreateMultipartUpload(ctx, upload.ObjectKey)
	if err != nil {
		if serr := b.uploads.SetStatus(ctx, uploadID, models.UploadError); serr != nil {
			b.log.Error("failed to mark upload errored", "upload_id", uploadID, "error", serr)
		}
		return nil, err
	}

	if err := b.uploads.SetMultipartID(ctx, uploadID, multipartID); err != nil {
		return nil, err
	}

	upload.MultipartID = &multipartID
	upload.Status = models.UploadCreated
	return upload, nil
}

// PartURLs returns presigned URLs for every part of the upload. Callable any
// number of times while the upload is writable; URLs for already uploaded
// parts simply overwrite the part.
func (b *Broker) PartURLs(ctx context.Context, user string, uploadID uuid.UUID) ([]storage.PartURL, error) {
	upload, err := b.writableUpload(ctx, user, uploadID)
	if err != nil {
		return nil, err
	}

	count := PartCount(upload.SizeBytes, b.cfg.Limits.UploadPartSize)
	urls := make([]storage.PartURL, 0, count)
	for part := 1; part <= count; part++ {
		u, err := b.backend.PresignPartURL(ctx, upload.ObjectKey, *upload.MultipartID, part, b.cfg.Limits.UploadURLExpiry)
		if err != nil {
			return nil, err
		}
		urls = append(urls, storage.PartURL{PartNumber: part, URL: u})
	}
	return urls, nil
}

// Finalize completes the multipart upload from the client-reported part ETags
// and replaces the declared size with the backend-reported one.
func (b *Broker) Finalize(ctx context.Context, user string, uploadID uuid.UUID, parts []storage.CompletedPart) (*models.Upload, error) {
	upload, err := b.writableUpload(ctx, user, uploadID)
	if err != nil {
		return nil, err
	}

	sorted := make([]storage.CompletedPart, len(parts))
	copy(sorted, parts)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].PartNumber < sorted[j].PartNumber })

	if err := b.backend.CompleteMultipartUpload(ctx, upload.ObjectKey, *upload.MultipartID, sorted); err != nil {
		return nil, err
	}

	// The declared size is client-supplied; trust only what the backend
	// reports after assembly.
	info, err := b.backend.Stat(ctx, upload.ObjectKey)
	if err != nil {
		return nil, err
	}
	// Parts bypass the API, so the size bound must hold for the assembled
	// object too, not just the declared size.
	if info.Size > b.cfg.Limits.MaxUploadSize {
		if derr := b.backend.Delete(ctx, upload.ObjectKey); derr != nil {
			b.log.Warn("oversized upload cleanup failed", "upload_id", uploadID, "error", derr)
		}
		if serr := b.uploads.SetStatus(ctx, uploadID, models.UploadError); serr != nil {
			b.log.Error("failed to mark upload errored", "upload_id", uploadID, "error", serr)
		}
		return nil, apierrors.TooLarge.New("upload of %d bytes exceeds the maximum of %d", info.Size, b.cfg.Limits.MaxUploadSize)
	}
	if err := b.uploads.SetSize(ctx, uploadID, info.Size); err != nil {
		return nil, err
	}

	ok, err := b.uploads.TransitionStatus(ctx, uploadID, models.UploadCreated, models.UploadComplete)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apierrors.Conflict.New("upload %s was finalized concurrently", uploadID)
	}

	upload.SizeBytes = info.Size
	upload.Status = models.UploadComplete
	return upload, nil
}

// Abort cancels the upload and releases backend resources. Aborting an
// already aborted or errored upload is a no-op; aborting a completed upload
// is rejected.
func (b *Broker) Abort(ctx context.Context, user string, uploadID uuid.UUID) error {
	upload, err := b.ownedUpload(ctx, user, uploadID)
	if err != nil {
		return err
	}

	switch upload.Status {
	case models.UploadComplete:
		return apierrors.Conflict.New("completed upload cannot be aborted")
	case models.UploadAborted, models.UploadError:
		return nil
	}

	if upload.MultipartID != nil {
		if err := b.backend.AbortMultipartUpload(ctx, upload.ObjectKey, *upload.MultipartID); err != nil {
			return err
		}
	}
	return b.uploads.SetStatus(ctx, uploadID, models.UploadAborted)
}

// Open returns a reader over a completed upload's bytes.
func (b *Broker) Open(ctx context.Context, uploadID uuid.UUID) (*models.Upload, io.ReadCloser, error) {
	upload, err := b.uploads.GetByID(ctx, uploadID)
	if err != nil {
		return nil, nil, err
	}
	if upload == nil {
		return nil, nil, apierrors.NotFound.New("upload %s not found", uploadID)
	}
	if upload.Status != models.UploadComplete {
		return nil, nil, apierrors.Conflict.New("upload %s is not complete", uploadID)
	}

	body, err := b.backend.Get(ctx, upload.ObjectKey)
	if err != nil {
		return nil, nil, err
	}
	return upload, body, nil
}

// DownloadToTemp copies a completed upload into a temp file so it can be
// read repeatedly (hashing, zip listing). The caller must call cleanup.
func (b *Broker) DownloadToTemp(ctx context.Context, uploadID uuid.UUID) (upload *models.Upload, file *os.File, cleanup func(), err error) {
	upload, body, err := b.Open(ctx, uploadID)
	if err != nil {
		return nil, nil, nil, err
	}
	defer body.Close()

	file, err = os.CreateTemp("", "usermedia-*.zip")
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create temp file: %w", err)
	}
	cleanup = func() {
		file.Close()
		os.Remove(file.Name())
	}

	if _, err := io.Copy(file, body); err != nil {
		cleanup()
		return nil, nil, nil, fmt.Errorf("download upload: %w", err)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		cleanup()
		return nil, nil, nil, fmt.Errorf("rewind temp file: %w", err)
	}

	return upload, file, cleanup, nil
}

// SweepExpired aborts uploads whose expiry has passed without completion and
// returns how many were cleaned.
func (b *Broker) SweepExpired(ctx context.Context, limit int) (int, error) {
	expired, err := b.uploads.ListExpired(ctx, time.Now().UTC(), limit)
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, upload := range expired {
		// Records without a multipart id never reached the backend; they are
		// marked errored instead of aborted.
		status := models.UploadError
		if upload.MultipartID != nil {
			if err := b.backend.AbortMultipartUpload(ctx, upload.ObjectKey, *upload.MultipartID); err != nil {
				b.log.Warn("expired upload abort failed", "upload_id", upload.UploadID, "error", err)
				continue
			}
			status = models.UploadAborted
		}
		if err := b.uploads.SetStatus(ctx, upload.UploadID, status); err != nil {
			b.log.Warn("expired upload status update failed", "upload_id", upload.UploadID, "error", err)
			continue
		}
		swept++
	}

	if swept > 0 {
		b.log.Info("swept expired uploads", "count", swept)
	}
	return swept, nil
}

func (b *Broker) ownedUpload(ctx context.Context, user string, uploadID uuid.UUID) (*models.Upload, error) {
	upload, err := b.uploads.GetByID(ctx, uploadID)
	if err != nil {
		return nil, err
	}
	if upload == nil {
		return nil, apierrors.NotFound.New("upload %s not found", uploadID)
	}
	if !upload.CanWrite(user) {
		return nil, apierrors.PermissionDenied.New("upload belongs to another user")
	}
	return upload, nil
}

func (b *Broker) writableUpload(ctx context.Context, user string, uploadID uuid.UUID) (*models.Upload, error) {
	upload, err := b.ownedUpload(ctx, user, uploadID)
	if err != nil {
		return nil, err
	}
	if upload.Status != models.UploadCreated || upload.MultipartID == nil {
		return nil, apierrors.Conflict.New("upload %s is not writable in state %s", uploadID, upload.Status)
	}
	if upload.HasExpired(time.Now().UTC()) {
		return nil, apierrors.Conflict.New("upload %s has expired", uploadID)
	}
	return upload, nil
}
