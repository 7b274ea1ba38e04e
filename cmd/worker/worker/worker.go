// Package worker runs the background side of the registry: submission
// processing, cache rebuilds and periodic sweeps. The API service only
// enqueues; everything that mutates the package graph asynchronously
// happens here.
package worker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/thunderstore/registry/common/apicache"
	"github.com/thunderstore/registry/common/blobstore"
	"github.com/thunderstore/registry/common/config"
	"github.com/thunderstore/registry/common/logger"
	"github.com/thunderstore/registry/common/queue"
	"github.com/thunderstore/registry/common/submission"
	"github.com/thunderstore/registry/common/usermedia"
)

// sweepBatchSize bounds how many expired uploads or tombstoned blobs a
// single sweep pass handles.
const sweepBatchSize = 100

// Worker consumes the shared task queue and drives the periodic jobs.
type Worker struct {
	cfg         *config.Config
	queue       *queue.Queue
	coordinator *submission.Coordinator
	builder     *apicache.Builder
	broker      *usermedia.Broker
	store       *blobstore.Store
	log         *logger.Logger
}

// New creates a worker on top of the shared services.
func New(
	cfg *config.Config,
	taskQueue *queue.Queue,
	coordinator *submission.Coordinator,
	builder *apicache.Builder,
	broker *usermedia.Broker,
	store *blobstore.Store,
	log *logger.Logger,
) *Worker {
	return &Worker{
		cfg:         cfg,
		queue:       taskQueue,
		coordinator: coordinator,
		builder:     builder,
		broker:      broker,
		store:       store,
		log:         log,
	}
}

// Start runs the consume loop and the periodic tickers until the context is
// cancelled.
func (w *Worker) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		errChan <- w.consumeLoop(ctx)
	}()

	go w.rebuildLoop(ctx)
	go w.sweepLoop(ctx)

	select {
	case <-ctx.Done():
		w.log.Info("worker stopping")
		return nil
	case err := <-errChan:
		return err
	}
}

// consumeLoop blocks on the task queue and dispatches each task.
func (w *Worker) consumeLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		task, err := w.queue.Dequeue(ctx, w.cfg.Worker.QueuePollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			w.log.Error("failed to dequeue task", "error", err)
			time.Sleep(1 * time.Second)
			continue
		}
		if task == nil {
			continue
		}

		if err := w.dispatch(ctx, task); err != nil {
			w.log.Error("task failed", "kind", task.Kind, "attempt", task.Attempt, "error", err)
			w.maybeRetry(ctx, task)
		}
	}
}

// dispatch routes a task to its handler.
func (w *Worker) dispatch(ctx context.Context, task *queue.Task) error {
	switch task.Kind {
	case queue.KindProcessSubmission:
		submissionID, err := uuid.Parse(task.SubmissionID)
		if err != nil {
			w.log.Error("dropping task with malformed submission id", "submission_id", task.SubmissionID)
			return nil
		}
		return w.coordinator.Process(ctx, submissionID)
	case queue.KindRebuildCommunity:
		return w.builder.RebuildCommunity(ctx, task.Community)
	case queue.KindRebuildIndex:
		return w.builder.RebuildIndex(ctx)
	default:
		w.log.Error("dropping task of unknown kind", "kind", task.Kind)
		return nil
	}
}

// maybeRetry re-enqueues a failed task with the attempt counter bumped, up
// to the configured retry cap.
func (w *Worker) maybeRetry(ctx context.Context, task *queue.Task) {
	if task.Attempt+1 >= w.cfg.Worker.MaxTaskRetries {
		w.log.Error("task exhausted retries", "kind", task.Kind, "submission_id", task.SubmissionID, "community", task.Community)
		return
	}
	retry := *task
	retry.Attempt++
	if err := w.queue.Enqueue(ctx, retry); err != nil {
		w.log.Error("failed to re-enqueue task", "kind", task.Kind, "error", err)
	}
}

// rebuildLoop periodically rebuilds every cache artifact so derived state
// converges even when individual rebuild tasks were lost.
func (w *Worker) rebuildLoop(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.Worker.CacheInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.builder.RebuildAll(ctx); err != nil {
				w.log.Error("periodic cache rebuild failed", "error", err)
			}
		}
	}
}

// sweepLoop periodically reclaims expired uploads, tombstoned blobs and old
// submission records.
func (w *Worker) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.Worker.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *Worker) sweep(ctx context.Context) {
	if n, err := w.broker.SweepExpired(ctx, sweepBatchSize); err != nil {
		w.log.Error("upload sweep failed", "error", err)
	} else if n > 0 {
		w.log.Info("swept expired uploads", "count", n)
	}

	if n, err := w.store.SweepTombstones(ctx, sweepBatchSize); err != nil {
		w.log.Error("blob sweep failed", "error", err)
	} else if n > 0 {
		w.log.Info("swept tombstoned blobs", "count", n)
	}

	if n, err := w.coordinator.CleanupOld(ctx); err != nil {
		w.log.Error("submission cleanup failed", "error", err)
	} else if n > 0 {
		w.log.Info("cleaned up old submissions", "count", n)
	}
}
