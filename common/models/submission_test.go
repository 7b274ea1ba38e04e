package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSubmissionStatusTerminal(t *testing.T) {
	assert.True(t, SubmissionFinished.Terminal())
	assert.False(t, SubmissionPending.Terminal())
	assert.False(t, SubmissionInProgress.Terminal())
	// Reprocessing after form errors or task errors is allowed
	assert.False(t, SubmissionFormErrors.Terminal())
	assert.False(t, SubmissionTaskError.Terminal())
}

func TestScheduleExpired(t *testing.T) {
	now := time.Now()

	sub := &AsyncSubmission{}
	assert.True(t, sub.ScheduleExpired(now), "never scheduled counts as expired")

	recent := now.Add(-time.Minute)
	sub.DatetimeScheduled = &recent
	assert.False(t, sub.ScheduleExpired(now))

	old := now.Add(-SubmissionTaskTTL - time.Second)
	sub.DatetimeScheduled = &old
	assert.True(t, sub.ScheduleExpired(now))
}
