package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_PartialUpsert(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Upsert(ctx, "u1", SessionUpdate{
		Email:       Ptr("a@gmail.com"),
		AccessToken: Ptr("tok"),
		Active:      Ptr(true),
	}))

	// A later partial update leaves untouched fields alone.
	require.NoError(t, s.Upsert(ctx, "u1", SessionUpdate{
		LatestCode:        Ptr("code 12345"),
		IncrementCaptured: 1,
	}))

	session, err := s.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "a@gmail.com", session.Email)
	assert.Equal(t, "tok", session.AccessToken)
	assert.True(t, session.Active)
	assert.Equal(t, "code 12345", session.LatestCode)
	assert.Equal(t, 1, session.CapturedCount)
}

func TestMemoryStore_GetUnknown(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestMemoryStore_Delete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Upsert(ctx, "u1", SessionUpdate{Email: Ptr("a@gmail.com")}))
	require.NoError(t, s.Delete(ctx, "u1"))

	_, err := s.Get(ctx, "u1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestMemoryStore_ResetCaptured(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Upsert(ctx, "u1", SessionUpdate{IncrementCaptured: 3}))
	require.NoError(t, s.Upsert(ctx, "u1", SessionUpdate{ResetCaptured: true}))

	session, err := s.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, session.CapturedCount)
}

func TestMemoryStore_ListPollable(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Upsert(ctx, "active", SessionUpdate{
		AccessToken: Ptr("tok"),
		Active:      Ptr(true),
	}))
	require.NoError(t, s.Upsert(ctx, "paused", SessionUpdate{
		AccessToken: Ptr("tok"),
		Active:      Ptr(false),
	}))
	require.NoError(t, s.Upsert(ctx, "logged-out", SessionUpdate{
		Active: Ptr(true),
	}))

	sessions, err := s.ListPollable(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "active", sessions[0].UserID)
}

func TestMemoryStore_Ledger(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	seen, err := s.IsSeen(ctx, "u1", "m1")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, s.MarkSeen(ctx, "u1", "m1"))

	seen, err = s.IsSeen(ctx, "u1", "m1")
	require.NoError(t, err)
	assert.True(t, seen)

	// Pairs are scoped per user.
	seen, err = s.IsSeen(ctx, "u2", "m1")
	require.NoError(t, err)
	assert.False(t, seen)

	// MarkSeen is idempotent.
	require.NoError(t, s.MarkSeen(ctx, "u1", "m1"))
	seen, err = s.IsSeen(ctx, "u1", "m1")
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestMemoryStore_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Upsert(ctx, "u1", SessionUpdate{Email: Ptr("a@gmail.com")}))

	first, err := s.Get(ctx, "u1")
	require.NoError(t, err)
	first.Email = "mutated@gmail.com"
	first.LatestCodeAt = time.Now()

	second, err := s.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "a@gmail.com", second.Email)
}
