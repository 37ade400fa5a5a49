package services

import (
	"errors"
	"testing"

	"pkm-review-api/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransitionFollowsLifecycle(t *testing.T) {
	legal := [][2]models.ProposalStatus{
		{models.StatusDraft, models.StatusSubmitted},
		{models.StatusSubmitted, models.StatusUnderReview},
		{models.StatusUnderReview, models.StatusReviewed},
		{models.StatusUnderReview, models.StatusNotReviewed},
		{models.StatusReviewed, models.StatusNeedsRevision},
		{models.StatusNeedsRevision, models.StatusRevised},
		{models.StatusRevised, models.StatusUnderReview},
	}
	for _, edge := range legal {
		assert.Truef(t, CanTransition(edge[0], edge[1]), "%s -> %s should be legal", edge[0], edge[1])
	}

	illegal := [][2]models.ProposalStatus{
		{models.StatusDraft, models.StatusUnderReview},
		{models.StatusSubmitted, models.StatusReviewed},
		{models.StatusNotReviewed, models.StatusUnderReview},
		{models.StatusReviewed, models.StatusUnderReview},
		{models.StatusRevised, models.StatusReviewed},
		{models.StatusUnderReview, models.StatusUnderReview},
	}
	for _, edge := range illegal {
		assert.Falsef(t, CanTransition(edge[0], edge[1]), "%s -> %s should be illegal", edge[0], edge[1])
	}
}

func TestValidateTransitionReturnsTypedError(t *testing.T) {
	err := ValidateTransition(models.StatusDraft, models.StatusReviewed)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidTransition))

	var ite *InvalidTransitionError
	require.True(t, errors.As(err, &ite))
	assert.Equal(t, models.StatusDraft, ite.From)
	assert.Equal(t, models.StatusReviewed, ite.To)
	assert.Equal(t, "invalid_transition", ErrorCode(err))

	assert.NoError(t, ValidateTransition(models.StatusDraft, models.StatusSubmitted))
}

func TestNextStatusesReturnsCopy(t *testing.T) {
	next := NextStatuses(models.StatusUnderReview)
	require.Len(t, next, 2)
	next[0] = models.StatusDraft
	assert.Equal(t, models.StatusReviewed, NextStatuses(models.StatusUnderReview)[0])
	assert.Empty(t, NextStatuses(models.StatusNotReviewed))
}
