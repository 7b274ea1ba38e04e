// Package submission implements the asynchronous submission coordinator: it
// accepts (upload, metadata) pairs, drives validation and dependency
// resolution, and atomically materializes the package graph.
package submission

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/thunderstore/registry/common/apierrors"
	"github.com/thunderstore/registry/common/config"
	"github.com/thunderstore/registry/common/db"
	"github.com/thunderstore/registry/common/logger"
	"github.com/thunderstore/registry/common/models"
	"github.com/thunderstore/registry/common/packages"
	"github.com/thunderstore/registry/common/queue"
	"github.com/thunderstore/registry/common/redis"
	"github.com/thunderstore/registry/common/repository"
	"github.com/thunderstore/registry/common/usermedia"
	"github.com/thunderstore/registry/common/validation"
)

// SubmitRequest is the wire payload of an async submission.
type SubmitRequest struct {
	UploadUUID     uuid.UUID           `json:"upload_uuid"`
	AuthorName     string              `json:"author_name"`
	Communities    []string            `json:"communities"`
	Categories     map[string][]string `json:"community_categories"`
	HasNsfwContent bool                `json:"has_nsfw_content"`
}

// Coordinator owns the async submission state machine.
type Coordinator struct {
	db          *db.DB
	cfg         *config.Config
	redis       *redis.Client
	queue       *queue.Queue
	submissions *repository.SubmissionRepository
	uploads     *repository.UploadRepository
	broker      *usermedia.Broker
	validator   *validation.Validator
	resolver    *packages.Resolver
	graph       *packages.Graph
	log         *logger.Logger
}

// NewCoordinator creates a submission coordinator
func NewCoordinator(
	database *db.DB,
	cfg *config.Config,
	redisClient *redis.Client,
	taskQueue *queue.Queue,
	submissions *repository.SubmissionRepository,
	uploads *repository.UploadRepository,
	broker *usermedia.Broker,
	validator *validation.Validator,
	resolver *packages.Resolver,
	graph *packages.Graph,
	log *logger.Logger,
) *Coordinator {
	return &Coordinator{
		db:          database,
		cfg:         cfg,
		redis:       redisClient,
		queue:       taskQueue,
		submissions: submissions,
		uploads:     uploads,
		broker:      broker,
		validator:   validator,
		resolver:    resolver,
		graph:       graph,
		log:         log,
	}
}

func scheduleKey(submissionID uuid.UUID) string {
	return "registry:submission:schedule:" + submissionID.String()
}

// Submit registers a new async submission against a completed upload and
// schedules its processing.
func (c *Coordinator) Submit(ctx context.Context, owner string, req *SubmitRequest) (*models.AsyncSubmission, error) {
	if owner == "" {
		return nil, apierrors.PermissionDenied.New("authentication required")
	}

	upload, err := c.uploads.GetByID(ctx, req.UploadUUID)
	if err != nil {
		return nil, err
	}
	if upload == nil {
		return nil, apierrors.NotFound.New("upload %s not found", req.UploadUUID)
	}
	if !upload.CanWrite(owner) {
		return nil, apierrors.PermissionDenied.New("upload belongs to another user")
	}
	if upload.Status != models.UploadComplete {
		return nil, apierrors.Conflict.New("upload %s is in state %s, expected %s", upload.UploadID, upload.Status, models.UploadComplete)
	}

	submissionID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate submission id: %w", err)
	}

	now := time.Now().UTC()
	sub := &models.AsyncSubmission{
		SubmissionID: submissionID,
		Owner:        owner,
		UploadID:     upload.UploadID,
		Status:       models.SubmissionPending,
		FormData: models.SubmissionMetadata{
			AuthorName:     req.AuthorName,
			Communities:    req.Communities,
			Categories:     req.Categories,
			HasNsfwContent: req.HasNsfwContent,
		},
		DatetimePolled: now,
		CreatedAt:      now,
	}
	if err := c.submissions.Create(ctx, sub); err != nil {
		return nil, err
	}

	if err := c.ScheduleIfAppropriate(ctx, sub); err != nil {
		c.log.Error("initial submission scheduling failed", "submission_id", submissionID, "error", err)
	}
	return sub, nil
}

// Poll returns the submission's current state to its owner and reschedules
// processing when a previous schedule appears lost.
func (c *Coordinator) Poll(ctx context.Context, owner string, submissionID uuid.UUID) (*models.AsyncSubmission, error) {
	sub, err := c.submissions.GetByID(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, apierrors.NotFound.New("submission %s not found", submissionID)
	}
	if sub.Owner != owner {
		return nil, apierrors.PermissionDenied.New("submission belongs to another user")
	}

	now := time.Now().UTC()
	if err := c.submissions.TouchPolled(ctx, submissionID, now); err != nil {
		c.log.Warn("poll timestamp update failed", "submission_id", submissionID, "error", err)
	}

	if c.shouldReschedule(sub, now) {
		if err := c.ScheduleIfAppropriate(ctx, sub); err != nil {
			c.log.Error("poll-driven scheduling failed", "submission_id", submissionID, "error", err)
		}
	}
	return sub, nil
}

func (c *Coordinator) shouldReschedule(sub *models.AsyncSubmission, now time.Time) bool {
	if !sub.ScheduleExpired(now) {
		return false
	}
	switch sub.Status {
	case models.SubmissionPending:
		return true
	case models.SubmissionTaskError:
		return sub.RetryCount < c.cfg.Worker.MaxTaskRetries
	}
	return false
}

// ScheduleIfAppropriate enqueues a processing task unless one was recently
// scheduled. The redis SETNX key expires with the task TTL, so a lost task
// becomes schedulable again.
func (c *Coordinator) ScheduleIfAppropriate(ctx context.Context, sub *models.AsyncSubmission) error {
	if sub.Status.Terminal() {
		return nil
	}

	wasSet, err := c.redis.SetNX(ctx, scheduleKey(sub.SubmissionID), "1", models.SubmissionTaskTTL)
	if err != nil {
		return err
	}
	if !wasSet {
		return nil
	}

	if err := c.queue.Enqueue(ctx, queue.Task{
		Kind:         queue.KindProcessSubmission,
		SubmissionID: sub.SubmissionID.String(),
	}); err != nil {
		return err
	}
	return c.submissions.SetScheduled(ctx, sub.SubmissionID, time.Now().UTC())
}

// Process runs one submission end to end. Exclusivity is enforced by a
// transaction-scoped advisory lock on the submission id, so a crash releases
// it. Validation failures commit as form_errors; anything else rolls the
// transaction back and is recorded as task_error for platform retry.
func (c *Coordinator) Process(ctx context.Context, submissionID uuid.UUID) error {
	log := c.log.WithSubmission(submissionID.String())

	claimed := false
	err := c.db.InTx(ctx, func(txCtx context.Context, tx pgx.Tx) error {
		acquired, err := db.TryAdvisoryXactLock(txCtx, tx, db.LockKey("submission", submissionID.String()))
		if err != nil {
			return err
		}
		if !acquired {
			log.Debug("submission lock held by another worker, skipping")
			return nil
		}

		sub, err := c.submissions.AcquireForProcessing(txCtx, tx, submissionID)
		if err != nil {
			return err
		}
		if sub == nil {
			log.Debug("submission already finished or claimed, skipping")
			return nil
		}
		claimed = true

		procCtx, cancel := context.WithTimeout(txCtx, c.cfg.Worker.SubmissionTimeout)
		defer cancel()

		version, communities, perr := c.process(procCtx, tx, sub)
		if perr != nil {
			if v, ok := apierrors.AsValidation(perr); ok {
				log.Info("submission rejected with form errors", "errors", v.Fields)
				return c.submissions.WithTx(tx).MarkFormErrors(txCtx, submissionID, v.Fields)
			}
			return perr
		}

		if err := c.submissions.WithTx(tx).MarkFinished(txCtx, submissionID, version.VersionID); err != nil {
			return err
		}

		// Cache rebuilds are a transactional outbox: enqueued only after the
		// version is durably visible.
		for _, community := range communities {
			community := community
			db.AfterCommit(txCtx, func(hookCtx context.Context) {
				c.enqueueRebuild(hookCtx, community)
			})
		}
		db.AfterCommit(txCtx, func(hookCtx context.Context) {
			if err := c.queue.Enqueue(hookCtx, queue.Task{Kind: queue.KindRebuildIndex}); err != nil {
				log.Error("package index rebuild enqueue failed", "error", err)
			}
		})

		log.Info("submission finished", "version_id", version.VersionID)
		return nil
	})

	// Release the schedule slot so subsequent polls may reschedule promptly.
	// When another worker holds the claim, the slot stays with that worker.
	if claimed {
		c.releaseSchedule(ctx, submissionID)
	}

	if err != nil {
		log.Error("submission processing failed", "error", err)
		if merr := c.submissions.MarkTaskError(ctx, submissionID, err.Error()); merr != nil {
			log.Error("task error bookkeeping failed", "error", merr)
		}
		return err
	}
	return nil
}

// process performs the validate / resolve / materialize pipeline inside the
// coordinator's transaction.
func (c *Coordinator) process(ctx context.Context, tx pgx.Tx, sub *models.AsyncSubmission) (*models.PackageVersion, []string, error) {
	_, file, cleanup, err := c.broker.DownloadToTemp(ctx, sub.UploadID)
	if err != nil {
		if apierrors.Conflict.Has(err) || apierrors.NotFound.Has(err) {
			return nil, nil, apierrors.Validation("Upload is not available for processing")
		}
		return nil, nil, err
	}
	defer cleanup()

	payload, err := c.validator.ValidateSubmission(ctx, file, sub.Owner, &sub.FormData)
	if err != nil {
		return nil, nil, err
	}

	deps, err := c.resolver.Resolve(ctx, payload.Manifest.Dependencies, payload.TeamName, payload.Manifest.Name)
	if err != nil {
		return nil, nil, err
	}

	version, err := c.graph.CreateVersion(ctx, tx, payload, deps, sub.Owner)
	if err != nil {
		return nil, nil, err
	}

	communities := make([]string, 0, len(payload.Communities))
	for _, community := range payload.Communities {
		communities = append(communities, community.Identifier)
	}
	return version, communities, nil
}

// releaseSchedule frees the dedup slot so the next poll may reschedule.
func (c *Coordinator) releaseSchedule(ctx context.Context, submissionID uuid.UUID) {
	if err := c.redis.Delete(ctx, scheduleKey(submissionID)); err != nil {
		c.log.Warn("schedule key cleanup failed", "submission_id", submissionID, "error", err)
	}
}

func (c *Coordinator) enqueueRebuild(ctx context.Context, community string) {
	err := c.queue.Enqueue(ctx, queue.Task{
		Kind:      queue.KindRebuildCommunity,
		Community: community,
	})
	if err != nil {
		c.log.Error("community cache rebuild enqueue failed", "community", community, "error", err)
	}
}

// CleanupOld removes stale submission records past the retention TTL.
func (c *Coordinator) CleanupOld(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().Add(-models.SubmissionCleanupTTL)
	removed, err := c.submissions.DeleteOld(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		c.log.Info("cleaned up old submissions", "count", removed)
	}
	return removed, nil
}
