package services

import "pkm-review-api/models"

// statusEdges is the complete set of legal proposal status transitions.
var statusEdges = map[models.ProposalStatus][]models.ProposalStatus{
	models.StatusDraft:         {models.StatusSubmitted},
	models.StatusSubmitted:     {models.StatusUnderReview},
	models.StatusUnderReview:   {models.StatusReviewed, models.StatusNotReviewed},
	models.StatusReviewed:      {models.StatusNeedsRevision},
	models.StatusNeedsRevision: {models.StatusRevised},
	models.StatusRevised:       {models.StatusUnderReview},
}

// CanTransition reports whether from -> to is a legal edge.
func CanTransition(from, to models.ProposalStatus) bool {
	for _, next := range statusEdges[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns an *InvalidTransitionError when from -> to is
// not a legal edge.
func ValidateTransition(from, to models.ProposalStatus) error {
	if !CanTransition(from, to) {
		return &InvalidTransitionError{From: from, To: to}
	}
	return nil
}

// NextStatuses returns the statuses reachable from s in one step.
func NextStatuses(s models.ProposalStatus) []models.ProposalStatus {
	next := statusEdges[s]
	out := make([]models.ProposalStatus, len(next))
	copy(out, next)
	return out
}
