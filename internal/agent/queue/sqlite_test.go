package queue

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/ottimo/presence/internal/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestStore(t *testing.T) (Store, *clock.FakeClock) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&Event{}))

	fake := clock.NewFakeClock(time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC))
	return NewStore(db, fake), fake
}

func newEvent(eventType string, capturedAt time.Time) *Event {
	return &Event{
		EventID:    uuid.NewString(),
		SubjectID:  "12345",
		EventType:  eventType,
		CapturedAt: capturedAt,
		SourceCode: "qr-head-office",
		Status:     StatusPending,
	}
}

func TestEnqueueAndPeekOrder(t *testing.T) {
	store, fake := newTestStore(t)
	ctx := context.Background()

	checkOut := newEvent("CHECK_OUT", fake.Now().Add(time.Hour))
	checkIn := newEvent("CHECK_IN", fake.Now())

	// Enqueue out of order; peek must come back captured_at order.
	require.NoError(t, store.Enqueue(ctx, checkOut))
	require.NoError(t, store.Enqueue(ctx, checkIn))

	batch, err := store.PeekBatch(ctx, 10)
	require.NoError(t, err)
	require.Len(t, batch, 2)
	assert.Equal(t, checkIn.EventID, batch[0].EventID)
	assert.Equal(t, checkOut.EventID, batch[1].EventID)

	limited, err := store.PeekBatch(ctx, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, checkIn.EventID, limited[0].EventID)
}

func TestPeekIncludesSubmitting(t *testing.T) {
	store, fake := newTestStore(t)
	ctx := context.Background()

	event := newEvent("CHECK_IN", fake.Now())
	require.NoError(t, store.Enqueue(ctx, event))
	require.NoError(t, store.MarkSubmitting(ctx, event.EventID))

	// An event stranded in SUBMITTING by a crash must surface again.
	batch, err := store.PeekBatch(ctx, 10)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, StatusSubmitting, batch[0].Status)
}

func TestMarkAcknowledgedRemoves(t *testing.T) {
	store, fake := newTestStore(t)
	ctx := context.Background()

	event := newEvent("CHECK_IN", fake.Now())
	require.NoError(t, store.Enqueue(ctx, event))
	require.NoError(t, store.MarkAcknowledged(ctx, event.EventID))

	depth, err := store.Depth(ctx)
	require.NoError(t, err)
	assert.Zero(t, depth)

	// Idempotent: acknowledging again is a no-op.
	require.NoError(t, store.MarkAcknowledged(ctx, event.EventID))
}

func TestTerminalMarksAreIdempotent(t *testing.T) {
	store, fake := newTestStore(t)
	ctx := context.Background()

	rejected := newEvent("CHECK_IN", fake.Now())
	abandoned := newEvent("CHECK_OUT", fake.Now().Add(time.Minute))
	require.NoError(t, store.Enqueue(ctx, rejected))
	require.NoError(t, store.Enqueue(ctx, abandoned))

	require.NoError(t, store.MarkRejected(ctx, rejected.EventID, "subject_not_approved"))
	require.NoError(t, store.MarkRejected(ctx, rejected.EventID, "subject_not_approved"))
	require.NoError(t, store.MarkAbandoned(ctx, abandoned.EventID, ReasonMaxAttempts))
	require.NoError(t, store.MarkAbandoned(ctx, abandoned.EventID, ReasonMaxAttempts))

	// Terminal events leave the deliverable queue but stay resolvable.
	pending, err := store.ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	resolvable, err := store.ListResolvable(ctx)
	require.NoError(t, err)
	require.Len(t, resolvable, 2)
	assert.Equal(t, StatusRejected, resolvable[0].Status)
	require.NotNil(t, resolvable[0].FailReason)
	assert.Equal(t, "subject_not_approved", *resolvable[0].FailReason)
	assert.Equal(t, StatusAbandoned, resolvable[1].Status)

	require.NoError(t, store.Delete(ctx, rejected.EventID))
	resolvable, err = store.ListResolvable(ctx)
	require.NoError(t, err)
	assert.Len(t, resolvable, 1)
}

func TestIncrementAttemptAndReset(t *testing.T) {
	store, fake := newTestStore(t)
	ctx := context.Background()

	event := newEvent("CHECK_IN", fake.Now())
	require.NoError(t, store.Enqueue(ctx, event))

	count, err := store.IncrementAttempt(ctx, event.EventID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = store.IncrementAttempt(ctx, event.EventID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, store.MarkSubmitting(ctx, event.EventID))
	require.NoError(t, store.ResetToPending(ctx, event.EventID))

	batch, err := store.PeekBatch(ctx, 1)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, StatusPending, batch[0].Status)
	assert.Equal(t, 2, batch[0].AttemptCount)
}
