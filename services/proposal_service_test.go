package services

import (
	"context"
	"errors"
	"testing"

	"pkm-review-api/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitRequiresSubmissionPhase(t *testing.T) {
	db := newTestDB(t)
	seedTeam(t, db)
	p := seedProposal(t, db, models.StatusDraft)
	svc := NewProposalService(db)
	ctx := context.Background()

	_, err := svc.Submit(ctx, p.ProposalID, testStudent)
	assert.True(t, errors.Is(err, ErrPhaseClosed))

	setPhase(t, db, models.PhaseSubmission)
	got, err := svc.Submit(ctx, p.ProposalID, testStudent)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSubmitted, got.Status)
	assert.NotNil(t, got.SubmittedAt)

	history, err := svc.History(ctx, p.ProposalID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.StatusSubmitted, history[0].NewStatus)
	assert.Equal(t, testStudent, history[0].ChangedBy)

	_, err = svc.Submit(ctx, p.ProposalID, testStudent)
	assert.True(t, errors.Is(err, ErrInvalidTransition), "already submitted")
}

func TestSubmitByOutsiderIsForbidden(t *testing.T) {
	db := newTestDB(t)
	seedTeam(t, db)
	setPhase(t, db, models.PhaseSubmission)
	p := seedProposal(t, db, models.StatusDraft)

	_, err := NewProposalService(db).Submit(context.Background(), p.ProposalID, testStudent+1)
	assert.True(t, errors.Is(err, ErrForbidden))
	assert.Equal(t, models.StatusDraft, reloadProposal(t, db, p.ProposalID).Status)
}

func TestSubmitRevision(t *testing.T) {
	db := newTestDB(t)
	seedTeam(t, db)
	setPhase(t, db, models.PhaseRevision)
	p := seedProposal(t, db, models.StatusNeedsRevision)
	draft := seedProposal(t, db, models.StatusDraft)
	svc := NewProposalService(db)
	ctx := context.Background()

	got, err := svc.SubmitRevision(ctx, p.ProposalID, testStudent)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRevised, got.Status)

	_, err = svc.SubmitRevision(ctx, draft.ProposalID, testStudent)
	var ite *InvalidTransitionError
	require.True(t, errors.As(err, &ite))
	assert.Equal(t, models.StatusDraft, ite.From)
	assert.Equal(t, models.StatusRevised, ite.To)
}

func TestGetProposalNotFound(t *testing.T) {
	db := newTestDB(t)
	_, err := NewProposalService(db).Get(context.Background(), 12345)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestStatusSummaryListsEveryStatus(t *testing.T) {
	db := newTestDB(t)
	seedProposal(t, db, models.StatusDraft)
	seedProposal(t, db, models.StatusDraft)
	seedProposal(t, db, models.StatusReviewed)

	counts, err := NewProposalService(db).StatusSummary(context.Background())
	require.NoError(t, err)
	require.Len(t, counts, len(models.ProposalStatuses))

	byStatus := map[models.ProposalStatus]int64{}
	for _, c := range counts {
		byStatus[c.Status] = c.Count
	}
	assert.Equal(t, int64(2), byStatus[models.StatusDraft])
	assert.Equal(t, int64(1), byStatus[models.StatusReviewed])
	assert.Equal(t, int64(0), byStatus[models.StatusUnderReview])
}

func TestStatusSummaryRestrictedToStatuses(t *testing.T) {
	db := newTestDB(t)
	seedProposal(t, db, models.StatusDraft)
	seedProposal(t, db, models.StatusReviewed)

	counts, err := NewProposalService(db).StatusSummary(context.Background(), models.StatusReviewed, models.StatusRevised)
	require.NoError(t, err)
	assert.Equal(t, []StatusCount{
		{Status: models.StatusReviewed, Count: 1},
		{Status: models.StatusRevised, Count: 0},
	}, counts)
}
