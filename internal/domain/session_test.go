package domain

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSessionUIDSuffix(t *testing.T) {
	s := VisitorSession{VisitorID: "abc"}
	assert.Equal(t, "abc-vtr", s.UID())

	s.VisitorID = "abc-vtr"
	assert.Equal(t, "abc-vtr", s.UID(), "suffix is not doubled")
}

func TestSessionExpired(t *testing.T) {
	now := time.Now()

	s := VisitorSession{}
	assert.False(t, s.Expired(now), "zero expiry never expires")

	s.ExpiresAt = now.Add(-time.Minute)
	assert.True(t, s.Expired(now))

	s.ExpiresAt = now.Add(time.Minute)
	assert.False(t, s.Expired(now))
}

func TestIsAbort(t *testing.T) {
	assert.True(t, IsAbort(ErrAborted))
	assert.True(t, IsAbort(context.Canceled))
	assert.True(t, IsAbort(UploadError(context.Canceled)))
	assert.False(t, IsAbort(errors.New("boom")))
	assert.False(t, IsAbort(context.DeadlineExceeded))
}

func TestRemoteErrorUnwrap(t *testing.T) {
	inner := errors.New("boom")
	err := SyncError(inner)
	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "sync")
}

func TestIsTimeout(t *testing.T) {
	assert.True(t, IsTimeout(context.DeadlineExceeded))
	assert.False(t, IsTimeout(context.Canceled))
}
