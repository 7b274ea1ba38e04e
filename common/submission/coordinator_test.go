package submission

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thunderstore/registry/common/config"
	"github.com/thunderstore/registry/common/logger"
	"github.com/thunderstore/registry/common/models"
	"github.com/thunderstore/registry/common/queue"
	"github.com/thunderstore/registry/common/redis"
	"github.com/thunderstore/registry/common/repository"
)

// stubQuerier accepts writes and answers reads with no rows.
type stubQuerier struct{}

func (stubQuerier) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func (stubQuerier) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, pgx.ErrNoRows
}

func (stubQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return noRow{}
}

type noRow struct{}

func (noRow) Scan(dest ...any) error { return pgx.ErrNoRows }

func newTestCoordinator(t *testing.T) (*Coordinator, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	log := logger.New("error", "json")
	client := redis.NewClient(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}), log)
	t.Cleanup(func() { client.Close() })

	cfg := &config.Config{Worker: config.WorkerConfig{MaxTaskRetries: 3}}
	c := NewCoordinator(nil, cfg, client, queue.New(client, log),
		repository.NewSubmissionRepository(stubQuerier{}), nil, nil, nil, nil, nil, log)
	return c, mr
}

func taskCount(t *testing.T, mr *miniredis.Miniredis) int {
	t.Helper()
	tasks, err := mr.List("registry:tasks")
	if err != nil {
		return 0
	}
	return len(tasks)
}

func TestScheduleIfAppropriate_Dedup(t *testing.T) {
	c, mr := newTestCoordinator(t)
	ctx := context.Background()

	sub := &models.AsyncSubmission{SubmissionID: uuid.New(), Status: models.SubmissionPending}

	require.NoError(t, c.ScheduleIfAppropriate(ctx, sub))
	assert.Equal(t, 1, taskCount(t, mr))

	// A second schedule while the slot is held is a no-op
	require.NoError(t, c.ScheduleIfAppropriate(ctx, sub))
	assert.Equal(t, 1, taskCount(t, mr))

	// Only a release frees the slot for rescheduling
	c.releaseSchedule(ctx, sub.SubmissionID)
	require.NoError(t, c.ScheduleIfAppropriate(ctx, sub))
	assert.Equal(t, 2, taskCount(t, mr))
}

func TestScheduleIfAppropriate_TerminalStatus(t *testing.T) {
	c, mr := newTestCoordinator(t)

	sub := &models.AsyncSubmission{SubmissionID: uuid.New(), Status: models.SubmissionFinished}
	require.NoError(t, c.ScheduleIfAppropriate(context.Background(), sub))
	assert.Equal(t, 0, taskCount(t, mr))
}
