package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/sickpay-engine/disbursement"
	"github.com/warp/sickpay-engine/store/sqlite"
	"github.com/warp/sickpay-engine/timeline"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func snapshot(correlationID uuid.UUID, state disbursement.State) disbursement.Snapshot {
	maksdato := timeline.NewDate(2026, time.May, 1)
	consumed, remaining := 3, 245
	return disbursement.Snapshot{
		ID:            uuid.New(),
		CorrelationID: correlationID,
		Type:          disbursement.TypeOrdinary,
		State:         state,
		Period: timeline.NewPeriod(
			timeline.NewDate(2025, time.June, 2),
			timeline.NewDate(2025, time.June, 20),
		),
		EmployerNet:   3600,
		Maksdato:      &maksdato,
		ConsumedDays:  &consumed,
		RemainingDays: &remaining,
	}
}

// =============================================================================
// REVISIONS
// =============================================================================

func TestSQLiteStore_AppendAndReadBack(t *testing.T) {
	// GIVEN: Two appended revisions of one correlation
	// WHEN: Reading back
	// THEN: Revisions come oldest first and the latest survives intact

	s := newTestStore(t)
	ctx := context.Background()
	cid := uuid.New()

	require.NoError(t, s.AppendRevision(ctx, snapshot(cid, disbursement.StateUnpaid)))
	require.NoError(t, s.AppendRevision(ctx, snapshot(cid, disbursement.StateApproved)))

	revs, err := s.Revisions(ctx, cid)
	require.NoError(t, err)
	require.Len(t, revs, 2)
	assert.Equal(t, disbursement.StateUnpaid, revs[0].State)
	assert.Equal(t, disbursement.StateApproved, revs[1].State)

	latest, err := s.LatestRevision(ctx, cid)
	require.NoError(t, err)
	assert.Equal(t, disbursement.StateApproved, latest.State)
	assert.Equal(t, int64(3600), latest.EmployerNet)
	require.NotNil(t, latest.Maksdato)
	assert.True(t, latest.Maksdato.Equal(timeline.NewDate(2026, time.May, 1)))
	require.NotNil(t, latest.ConsumedDays)
	assert.Equal(t, 3, *latest.ConsumedDays)
}

func TestSQLiteStore_CorrelationsAreIndependent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()

	require.NoError(t, s.AppendRevision(ctx, snapshot(a, disbursement.StateUnpaid)))
	require.NoError(t, s.AppendRevision(ctx, snapshot(b, disbursement.StateSettled)))

	revsA, err := s.Revisions(ctx, a)
	require.NoError(t, err)
	require.Len(t, revsA, 1)
	assert.Equal(t, disbursement.StateUnpaid, revsA[0].State)
}

func TestSQLiteStore_UnknownCorrelation(t *testing.T) {
	s := newTestStore(t)
	_, err := s.LatestRevision(context.Background(), uuid.New())
	assert.ErrorIs(t, err, disbursement.ErrRevisionNotFound)
}

// =============================================================================
// PROCESSED MESSAGES
// =============================================================================

func TestSQLiteStore_MarkHandledIsTestAndSet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	orderID := uuid.New()

	seen, err := s.WasHandled(ctx, "msg-1")
	require.NoError(t, err)
	assert.False(t, seen, "nothing recorded yet")

	first, err := s.MarkHandled(ctx, "msg-1", orderID)
	require.NoError(t, err)
	assert.True(t, first)

	seen, err = s.WasHandled(ctx, "msg-1")
	require.NoError(t, err)
	assert.True(t, seen)

	second, err := s.MarkHandled(ctx, "msg-1", orderID)
	require.NoError(t, err)
	assert.False(t, second, "replayed message id")
}

// =============================================================================
// POLICY CONFIGURATION
// =============================================================================

func TestSQLiteStore_PolicyRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SavePolicy(ctx, "active", `{"basic_amounts":[]}`))
	require.NoError(t, s.SavePolicy(ctx, "active", `{"basic_amounts":[{"effective_from":"2025-05-01","amount":130160}]}`))

	config, err := s.LoadPolicy(ctx, "active")
	require.NoError(t, err)
	assert.Contains(t, config, "130160", "latest version wins")

	_, err = s.LoadPolicy(ctx, "missing")
	assert.Error(t, err)
}
