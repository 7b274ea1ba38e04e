package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLockKey(t *testing.T) {
	a := LockKey("blob", "abc123")
	b := LockKey("blob", "abc123")
	assert.Equal(t, a, b)

	assert.NotEqual(t, LockKey("blob", "abc123"), LockKey("blob", "def456"))
	// The kind partitions the key space
	assert.NotEqual(t, LockKey("blob", "abc123"), LockKey("submission", "abc123"))
}

func TestInTransaction(t *testing.T) {
	ctx := context.Background()
	assert.False(t, InTransaction(ctx))

	// AfterCommit outside a transaction runs the hook immediately
	ran := false
	AfterCommit(ctx, func(context.Context) { ran = true })
	assert.True(t, ran)
}
