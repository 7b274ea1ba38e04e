// Package queue provides the background task queue shared by the API service
// (producer) and the worker (consumer). Tasks are JSON envelopes on a redis
// list; a blocked BLPOP drives the worker loop.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/thunderstore/registry/common/logger"
	"github.com/thunderstore/registry/common/redis"
)

// TaskKind identifies a background task type.
type TaskKind string

const (
	KindProcessSubmission TaskKind = "process_submission"
	KindRebuildCommunity  TaskKind = "rebuild_community_cache"
	KindRebuildIndex      TaskKind = "rebuild_package_index"
)

const taskList = "registry:tasks"

// Task is the envelope pushed onto the queue.
type Task struct {
	Kind TaskKind `json:"kind"`
	// SubmissionID for process_submission tasks
	SubmissionID string `json:"submission_id,omitempty"`
	// Community identifier for rebuild_community_cache tasks
	Community string `json:"community,omitempty"`
	// Attempt count, incremented on retry
	Attempt int `json:"attempt"`
}

// Queue produces and consumes background tasks.
type Queue struct {
	redis *redis.Client
	log   *logger.Logger
}

// New creates a task queue on top of the redis client.
func New(redisClient *redis.Client, log *logger.Logger) *Queue {
	return &Queue{redis: redisClient, log: log}
}

// Enqueue pushes a task onto the shared list.
func (q *Queue) Enqueue(ctx context.Context, task Task) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	if err := q.redis.PushToList(ctx, taskList, string(payload)); err != nil {
		return fmt.Errorf("enqueue %s: %w", task.Kind, err)
	}
	q.log.Debug("task enqueued", "kind", task.Kind, "submission_id", task.SubmissionID, "community", task.Community)
	return nil
}

// Dequeue blocks up to timeout for the next task. Returns (nil, nil) when the
// wait times out.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*Task, error) {
	result, err := q.redis.BlockingPopList(ctx, timeout, taskList)
	if err != nil {
		return nil, err
	}
	if len(result) < 2 {
		return nil, nil
	}

	var task Task
	if err := json.Unmarshal([]byte(result[1]), &task); err != nil {
		q.log.Error("dropping malformed task payload", "error", err)
		return nil, nil
	}
	return &task, nil
}
