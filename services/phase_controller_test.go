package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"pkm-review-api/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countTrue(toggles map[models.ToggleKey]bool) int {
	n := 0
	for _, v := range toggles {
		if v {
			n++
		}
	}
	return n
}

func TestApplyToggleEnablesExactlyOne(t *testing.T) {
	for _, key := range models.ToggleKeys {
		key := key
		t.Run(string(key), func(t *testing.T) {
			db := newTestDB(t)
			c, _ := newTestController(db)
			ctx := context.Background()

			// Start from a different active toggle so exclusivity is exercised.
			other := models.ToggleUploadProposal
			if key == other {
				other = models.ToggleReview
			}
			_, err := c.ApplyToggle(ctx, other, true, testAdmin)
			require.NoError(t, err)

			res, err := c.ApplyToggle(ctx, key, true, testAdmin)
			require.NoError(t, err)
			assert.True(t, res.Changed)

			all, err := NewToggleStore(db).GetAll(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, countTrue(all))
			assert.True(t, all[key])
		})
	}
}

func TestApplyToggleDisablingOnlyActiveClosesPhase(t *testing.T) {
	db := newTestDB(t)
	c, _ := newTestController(db)
	ctx := context.Background()

	_, err := c.ApplyToggle(ctx, models.ToggleUploadProposal, true, testAdmin)
	require.NoError(t, err)
	res, err := c.ApplyToggle(ctx, models.ToggleUploadProposal, false, testAdmin)
	require.NoError(t, err)

	assert.Equal(t, models.PhaseClosed, res.Phase)
	assert.Equal(t, 0, countTrue(res.Toggles))
}

func TestApplyToggleUnknownKey(t *testing.T) {
	db := newTestDB(t)
	c, _ := newTestController(db)

	_, err := c.ApplyToggle(context.Background(), models.ToggleKey("maintenance"), true, testAdmin)
	assert.True(t, errors.Is(err, ErrUnknownToggle))

	entries, err := NewAuditLogService(db).Query(context.Background(), AuditFilter{}, 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestApplyToggleIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	c, notifier := newTestController(db)
	ctx := context.Background()
	p := seedProposal(t, db, models.StatusSubmitted)

	first, err := c.ApplyToggle(ctx, models.ToggleReview, true, testAdmin)
	require.NoError(t, err)
	assert.True(t, first.Changed)
	assert.Equal(t, 1, first.AffectedCount)
	assert.NotEmpty(t, first.BatchID)

	second, err := c.ApplyToggle(ctx, models.ToggleReview, true, testAdmin)
	require.NoError(t, err)
	assert.False(t, second.Changed)
	assert.Empty(t, second.BatchID)
	assert.Equal(t, 0, second.AffectedCount)
	assert.Empty(t, second.Flips)

	entries, err := NewAuditLogService(db).Query(ctx, AuditFilter{}, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Len(t, notifier.results, 1)

	var history int64
	require.NoError(t, db.Model(&models.ProposalStatusHistory{}).Where("proposal_id = ?", p.ProposalID).Count(&history).Error)
	assert.Equal(t, int64(1), history, "the cascade ran once")
}

func TestOpenReviewMovesSubmittedAndRevised(t *testing.T) {
	db := newTestDB(t)
	c, _ := newTestController(db)
	ctx := context.Background()

	submitted := seedProposal(t, db, models.StatusSubmitted)
	revised := seedProposal(t, db, models.StatusRevised)
	draft := seedProposal(t, db, models.StatusDraft)
	reviewed := seedProposal(t, db, models.StatusReviewed)

	res, err := c.ApplyToggle(ctx, models.ToggleReview, true, testAdmin)
	require.NoError(t, err)
	assert.Equal(t, 2, res.AffectedCount)
	require.Len(t, res.Cascades, 1)
	assert.Equal(t, "open_review", res.Cascades[0].Rule)

	assert.Equal(t, models.StatusUnderReview, reloadProposal(t, db, submitted.ProposalID).Status)
	assert.Equal(t, models.StatusUnderReview, reloadProposal(t, db, revised.ProposalID).Status)
	assert.Equal(t, models.StatusDraft, reloadProposal(t, db, draft.ProposalID).Status)
	assert.Equal(t, models.StatusReviewed, reloadProposal(t, db, reviewed.ProposalID).Status)

	var hist models.ProposalStatusHistory
	require.NoError(t, db.Where("proposal_id = ?", submitted.ProposalID).Take(&hist).Error)
	require.NotNil(t, hist.OldStatus)
	assert.Equal(t, models.StatusSubmitted, *hist.OldStatus)
	assert.Equal(t, models.StatusUnderReview, hist.NewStatus)
	assert.Equal(t, testAdmin, hist.ChangedBy)
}

func TestCloseReviewFinalizesProposals(t *testing.T) {
	db := newTestDB(t)
	cat := seedCatalog(t, db)
	seedTeam(t, db)
	c, _ := newTestController(db)
	ctx := context.Background()

	_, err := c.ApplyToggle(ctx, models.ToggleReview, true, testAdmin)
	require.NoError(t, err)

	complete := seedProposal(t, db, models.StatusUnderReview)
	a1 := seedAssignment(t, db, complete.ProposalID, testReviewer, 1)
	a2 := seedAssignment(t, db, complete.ProposalID, testReviewer+1, 2)
	seedCompleteReview(t, db, cat, a1.AssignmentID, 4, 4)
	seedCompleteReview(t, db, cat, a2.AssignmentID, 5, 4)

	partial := seedProposal(t, db, models.StatusUnderReview)
	b1 := seedAssignment(t, db, partial.ProposalID, testReviewer, 1)
	b2 := seedAssignment(t, db, partial.ProposalID, testReviewer+1, 2)
	seedCompleteReview(t, db, cat, b1.AssignmentID, 4, 4)
	seedSubstantive(t, db, cat, b2.AssignmentID, 5) // no admin sheet, one score missing

	res, err := c.ApplyToggle(ctx, models.ToggleReview, false, testAdmin)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseClosed, res.Phase)
	assert.Equal(t, 2, res.AffectedCount)
	assert.Empty(t, res.Failures)

	got := reloadProposal(t, db, complete.ProposalID)
	assert.Equal(t, models.StatusReviewed, got.Status)
	require.True(t, got.ReviewScore.Valid)
	assert.Equal(t, "85.00", got.ReviewScore.Decimal.StringFixed(2))
	assert.NotNil(t, got.ReviewedAt)

	got = reloadProposal(t, db, partial.ProposalID)
	assert.Equal(t, models.StatusNotReviewed, got.Status)
	assert.False(t, got.ReviewScore.Valid)
	assert.Nil(t, got.ReviewedAt)
}

func TestEnableRevisionDuringReviewFinalizesThenRequestsRevision(t *testing.T) {
	db := newTestDB(t)
	cat := seedCatalog(t, db)
	seedTeam(t, db)
	c, _ := newTestController(db)
	ctx := context.Background()

	_, err := c.ApplyToggle(ctx, models.ToggleReview, true, testAdmin)
	require.NoError(t, err)
	p := seedProposal(t, db, models.StatusUnderReview)
	a := seedAssignment(t, db, p.ProposalID, testReviewer, 1)
	seedCompleteReview(t, db, cat, a.AssignmentID, 3, 3)

	res, err := c.ApplyToggle(ctx, models.ToggleUploadRevision, true, testAdmin)
	require.NoError(t, err)
	require.Len(t, res.Flips, 2)
	assert.Equal(t, ToggleFlip{Key: models.ToggleReview, Previous: true, New: false}, res.Flips[0])
	assert.Equal(t, ToggleFlip{Key: models.ToggleUploadRevision, Previous: false, New: true}, res.Flips[1])
	require.Len(t, res.Cascades, 2)
	assert.Equal(t, "close_review", res.Cascades[0].Rule)
	assert.Equal(t, "open_revision", res.Cascades[1].Rule)

	got := reloadProposal(t, db, p.ProposalID)
	assert.Equal(t, models.StatusNeedsRevision, got.Status)
	assert.Equal(t, "60.00", got.ReviewScore.Decimal.StringFixed(2))

	entries, err := NewAuditLogService(db).Query(ctx, AuditFilter{BatchID: res.BatchID}, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

// failingFinalizer rejects one proposal and finalizes the rest normally.
type failingFinalizer struct {
	next   ProposalFinalizer
	failID int
}

func (f failingFinalizer) FinalizeProposal(ctx context.Context, p *models.Proposal) (*Finalization, error) {
	if p.ProposalID == f.failID {
		return nil, errors.New("criteria out of sync")
	}
	return f.next.FinalizeProposal(ctx, p)
}

func TestCloseReviewPersistenceFailureKeepsPhaseChange(t *testing.T) {
	db := newTestDB(t)
	seedCatalog(t, db)
	seedTeam(t, db)
	c, _ := newTestController(db)
	ctx := context.Background()

	_, err := c.ApplyToggle(ctx, models.ToggleReview, true, testAdmin)
	require.NoError(t, err)
	first := seedProposal(t, db, models.StatusUnderReview)
	second := seedProposal(t, db, models.StatusUnderReview)
	require.NoError(t, db.Migrator().DropTable(&models.ReviewAssignment{}))

	res, err := c.ApplyToggle(ctx, models.ToggleReview, false, testAdmin)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPersistence)
	require.NotNil(t, res, "partial result is returned with the error")
	assert.True(t, res.Changed)
	assert.Equal(t, models.PhaseClosed, res.Phase)
	assert.Equal(t, 0, res.AffectedCount)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, first.ProposalID, res.Failures[0].ProposalID)

	toggles, err := NewToggleStore(db).GetAll(ctx)
	require.NoError(t, err)
	assert.Zero(t, countTrue(toggles), "toggle change stays committed")

	assert.Equal(t, models.StatusUnderReview, reloadProposal(t, db, first.ProposalID).Status)
	assert.Equal(t, models.StatusUnderReview, reloadProposal(t, db, second.ProposalID).Status, "remaining batch is not attempted")
}

func TestCloseReviewRecordsProposalErrorAndContinues(t *testing.T) {
	db := newTestDB(t)
	seedCatalog(t, db)
	seedTeam(t, db)
	ctx := context.Background()

	_, err := NewPhaseController(db).WithNotifier(&recordingNotifier{}).ApplyToggle(ctx, models.ToggleReview, true, testAdmin)
	require.NoError(t, err)
	bad := seedProposal(t, db, models.StatusUnderReview)
	good := seedProposal(t, db, models.StatusUnderReview)

	c := NewPhaseController(db).
		WithNotifier(&recordingNotifier{}).
		WithFinalizer(failingFinalizer{next: NewReviewAggregator(db).WithQuorum(0), failID: bad.ProposalID})
	res, err := c.ApplyToggle(ctx, models.ToggleReview, false, testAdmin)
	require.NoError(t, err)
	assert.Equal(t, 1, res.AffectedCount)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, bad.ProposalID, res.Failures[0].ProposalID)
	assert.Contains(t, res.Failures[0].Error, "criteria out of sync")

	assert.Equal(t, models.StatusUnderReview, reloadProposal(t, db, bad.ProposalID).Status)
	got := reloadProposal(t, db, good.ProposalID)
	assert.Equal(t, models.StatusNotReviewed, got.Status)
	assert.Nil(t, got.ReviewedAt)
}

func TestAuditTrailFollowsCallOrder(t *testing.T) {
	db := newTestDB(t)
	c, _ := newTestController(db)
	ctx := context.Background()

	_, err := c.ApplyToggle(ctx, models.ToggleUploadProposal, true, testAdmin)
	require.NoError(t, err)
	_, err = c.ApplyToggle(ctx, models.ToggleUploadProposal, false, testAdmin+1)
	require.NoError(t, err)
	_, err = c.ApplyToggle(ctx, models.ToggleReview, true, testAdmin+2)
	require.NoError(t, err)

	entries, err := NewAuditLogService(db).Query(ctx, AuditFilter{}, 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	// Query is newest first.
	want := []models.ToggleAuditLog{
		{ToggleKey: models.ToggleUploadProposal, PreviousValue: false, NewValue: true, ActorID: testAdmin},
		{ToggleKey: models.ToggleUploadProposal, PreviousValue: true, NewValue: false, ActorID: testAdmin + 1},
		{ToggleKey: models.ToggleReview, PreviousValue: false, NewValue: true, ActorID: testAdmin + 2},
	}
	for i, w := range want {
		got := entries[len(entries)-1-i]
		assert.Equal(t, w.ToggleKey, got.ToggleKey, "entry %d", i)
		assert.Equal(t, w.PreviousValue, got.PreviousValue, "entry %d", i)
		assert.Equal(t, w.NewValue, got.NewValue, "entry %d", i)
		assert.Equal(t, w.ActorID, got.ActorID, "entry %d", i)
		assert.Len(t, got.BatchID, 36)
	}
	assert.NotEqual(t, entries[0].BatchID, entries[1].BatchID)
}

func TestConcurrentTogglesStayExclusive(t *testing.T) {
	db := newTestDB(t)
	c, _ := newTestController(db)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 40)
	for i := 0; i < 20; i++ {
		for _, key := range []models.ToggleKey{models.ToggleUploadProposal, models.ToggleUploadRevision} {
			wg.Add(1)
			go func(key models.ToggleKey) {
				defer wg.Done()
				_, err := c.ApplyToggle(ctx, key, true, testAdmin)
				errs <- err
			}(key)
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	all, err := NewToggleStore(db).GetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, countTrue(all))

	// Every audit batch must describe a legal single-active transition.
	entries, err := NewAuditLogService(db).Query(ctx, AuditFilter{}, 200)
	require.NoError(t, err)
	batches := map[string]int{}
	for _, e := range entries {
		if e.NewValue {
			batches[e.BatchID]++
		}
	}
	for batch, enabled := range batches {
		assert.Equal(t, 1, enabled, "batch %s enabled more than one toggle", batch)
	}
}
