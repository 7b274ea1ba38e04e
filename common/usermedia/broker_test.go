package usermedia

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thunderstore/registry/common/apierrors"
	"github.com/thunderstore/registry/common/config"
	"github.com/thunderstore/registry/common/logger"
	"github.com/thunderstore/registry/common/models"
	"github.com/thunderstore/registry/common/repository"
	"github.com/thunderstore/registry/common/storage"
)

// fakeUploadQuerier serves a single upload row and records writes.
type execCall struct {
	sql  string
	args []any
}

type fakeUploadQuerier struct {
	upload *models.Upload
	execs  []execCall
}

func (q *fakeUploadQuerier) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	q.execs = append(q.execs, execCall{sql: sql, args: args})
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func (q *fakeUploadQuerier) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, pgx.ErrNoRows
}

func (q *fakeUploadQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return uploadRow{u: q.upload}
}

type uploadRow struct{ u *models.Upload }

func (r uploadRow) Scan(dest ...any) error {
	*(dest[0].(*uuid.UUID)) = r.u.UploadID
	*(dest[1].(*string)) = r.u.Owner
	*(dest[2].(*string)) = r.u.Filename
	*(dest[3].(*string)) = r.u.ObjectKey
	*(dest[4].(*int64)) = r.u.SizeBytes
	*(dest[5].(**string)) = r.u.MultipartID
	*(dest[6].(*models.UploadStatus)) = r.u.Status
	*(dest[7].(**time.Time)) = r.u.Expiry
	*(dest[8].(*time.Time)) = r.u.CreatedAt
	*(dest[9].(*time.Time)) = r.u.UpdatedAt
	return nil
}

func TestPartCount(t *testing.T) {
	const partSize = 6 * 1024 * 1024

	assert.Equal(t, 1, PartCount(1, partSize))
	assert.Equal(t, 1, PartCount(partSize, partSize))
	assert.Equal(t, 2, PartCount(partSize+1, partSize))
	assert.Equal(t, 3, PartCount(3*partSize, partSize))
	assert.Equal(t, 0, PartCount(0, partSize))
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "mod-1.0.0.zip", SanitizeFilename("mod-1.0.0.zip"))
	assert.Equal(t, "my_mod.zip", SanitizeFilename("my mod.zip"))
	assert.Equal(t, ".._.._etc_passwd", SanitizeFilename("../../etc/passwd"))
	assert.Equal(t, "upload.bin", SanitizeFilename(""))
	assert.Equal(t, "upload.bin", SanitizeFilename("..."))
	assert.Equal(t, "upload.bin", SanitizeFilename("___"))

	long := SanitizeFilename(strings.Repeat("a", 200) + ".zip")
	assert.Len(t, long, 128)
	assert.True(t, strings.HasSuffix(long, ".zip"))
}

func TestFinalize_OversizedUpload(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemoryBackend()
	cfg := &config.Config{
		Limits: config.LimitConfig{
			MaxUploadSize:   10,
			UploadPartSize:  6 * 1024 * 1024,
			UploadURLExpiry: time.Hour,
		},
	}

	// Assemble an object larger than the declared (and allowed) size through
	// the multipart path, the way a client pushing through presigned URLs can.
	key := "usermedia/test/upload.zip"
	multipartID, err := backend.CreateMultipartUpload(ctx, key)
	require.NoError(t, err)
	require.NoError(t, backend.UploadPart(multipartID, 1, []byte("well over the ten byte limit")))

	expiry := time.Now().UTC().Add(time.Hour)
	fq := &fakeUploadQuerier{upload: &models.Upload{
		UploadID:    uuid.New(),
		Owner:       "alice",
		Filename:    "upload.zip",
		ObjectKey:   key,
		SizeBytes:   5,
		MultipartID: &multipartID,
		Status:      models.UploadCreated,
		Expiry:      &expiry,
	}}
	broker := NewBroker(repository.NewUploadRepository(fq), backend, cfg, logger.New("error", "json"))

	_, err = broker.Finalize(ctx, "alice", fq.upload.UploadID, []storage.CompletedPart{{PartNumber: 1, ETag: "etag"}})
	require.Error(t, err)
	assert.True(t, apierrors.TooLarge.Has(err))

	// The assembled object is removed and the record marked errored
	_, err = backend.Stat(ctx, key)
	assert.True(t, storage.ErrObjectNotFound.Has(err))
	require.NotEmpty(t, fq.execs)
	assert.Contains(t, fq.execs[len(fq.execs)-1].args, models.UploadError)
}
