package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEntry(id, action string) OutboxEntry {
	return OutboxEntry{
		ID:        id,
		Action:    action,
		Payload:   []byte(`{"id":"` + id + `"}`),
		CreatedAt: time.Date(2024, 9, 5, 8, 0, 0, 0, time.UTC),
	}
}

func TestOutbox_FIFO(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	// Append in an order that differs from lexical ID order.
	for _, id := range []string{"c", "a", "b"} {
		require.NoError(t, s.AppendOutbox(ctx, testEntry(id, "students.update")))
	}

	entries, err := s.PendingOutbox(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	var ids []string
	for _, e := range entries {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{"c", "a", "b"}, ids)
	assert.Less(t, entries[0].Seq, entries[1].Seq)

	head, ok, err := s.HeadOutbox(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "c", head.ID)
}

func TestOutbox_AppendDuplicateIgnored(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AppendOutbox(ctx, testEntry("e1", "classes.create")))
	require.NoError(t, s.AppendOutbox(ctx, testEntry("e1", "classes.delete")))

	n, err := s.CountOutbox(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	head, _, err := s.HeadOutbox(ctx)
	require.NoError(t, err)
	assert.Equal(t, "classes.create", head.Action)
}

func TestOutbox_EmptyHead(t *testing.T) {
	s := createTestStore(t)

	_, ok, err := s.HeadOutbox(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	entries, err := s.PendingOutbox(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestOutbox_RescheduleAndDelete(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	e := testEntry("e1", "tasks.create")
	e.Local = []byte(`{"id":"e1","title":"Homework"}`)
	require.NoError(t, s.AppendOutbox(ctx, e))

	next := time.Date(2024, 9, 5, 8, 0, 4, 0, time.UTC)
	require.NoError(t, s.RescheduleOutbox(ctx, "e1", 2, next, "backend unavailable"))

	head, ok, err := s.HeadOutbox(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, head.Attempts)
	assert.True(t, next.Equal(head.NextAttemptAt))
	assert.Equal(t, "backend unavailable", head.LastError)
	assert.JSONEq(t, `{"id":"e1","title":"Homework"}`, string(head.Local))
	assert.True(t, e.CreatedAt.Equal(head.CreatedAt))

	require.NoError(t, s.DeleteOutbox(ctx, "e1"))
	n, err := s.CountOutbox(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestOutbox_NilLocalStaysNil(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AppendOutbox(ctx, testEntry("e1", "classes.delete")))

	head, _, err := s.HeadOutbox(ctx)
	require.NoError(t, err)
	assert.Nil(t, head.Local)
	assert.True(t, head.NextAttemptAt.IsZero())
}
