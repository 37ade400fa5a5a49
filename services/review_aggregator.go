package services

import (
	"context"

	"pkm-review-api/config"
	"pkm-review-api/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// scorePlaces is the precision of the recorded proposal score.
const scorePlaces = 2

// IsAdministrativeComplete reports whether every administrative criterion
// has exactly one entry in a.
func IsAdministrativeComplete(a *models.AdministrativeAssessment, criteria []models.AdminCriterion) bool {
	if a == nil {
		return false
	}
	ids := make([]int, 0, len(a.Entries))
	for _, e := range a.Entries {
		ids = append(ids, e.CriterionID)
	}
	required := make([]int, 0, len(criteria))
	for _, c := range criteria {
		required = append(required, c.CriterionID)
	}
	return coversExactlyOnce(required, ids)
}

// IsSubstantiveComplete reports whether every substantive criterion has
// exactly one entry in a.
func IsSubstantiveComplete(a *models.SubstantiveAssessment, criteria []models.SubstantiveCriterion) bool {
	if a == nil {
		return false
	}
	ids := make([]int, 0, len(a.Entries))
	for _, e := range a.Entries {
		ids = append(ids, e.CriterionID)
	}
	required := make([]int, 0, len(criteria))
	for _, c := range criteria {
		required = append(required, c.CriterionID)
	}
	return coversExactlyOnce(required, ids)
}

// coversExactlyOnce is true when each required id occurs exactly once in
// recorded. Ids outside required are ignored.
func coversExactlyOnce(required, recorded []int) bool {
	counts := make(map[int]int, len(recorded))
	for _, id := range recorded {
		counts[id]++
	}
	for _, id := range required {
		if counts[id] != 1 {
			return false
		}
	}
	return true
}

// ComputeAdminErrorCount counts the entries flagged as errors.
func ComputeAdminErrorCount(a *models.AdministrativeAssessment) int {
	if a == nil {
		return 0
	}
	total := 0
	for _, e := range a.Entries {
		if e.HasError {
			total++
		}
	}
	return total
}

// ComputeSubstantiveScore returns Σ score × weight over the entries whose
// criterion belongs to criteria.
func ComputeSubstantiveScore(a *models.SubstantiveAssessment, criteria []models.SubstantiveCriterion) decimal.Decimal {
	total := decimal.Zero
	if a == nil {
		return total
	}
	weights := make(map[int]decimal.Decimal, len(criteria))
	for _, c := range criteria {
		weights[c.CriterionID] = c.Weight
	}
	for _, e := range a.Entries {
		w, ok := weights[e.CriterionID]
		if !ok {
			continue
		}
		total = total.Add(decimal.NewFromInt(int64(e.Score)).Mul(w))
	}
	return total
}

// AssignmentOutcome is the evaluated state of one reviewer slot.
type AssignmentOutcome struct {
	AssignmentID           int             `json:"assignment_id"`
	ReviewerID             int             `json:"reviewer_id"`
	SlotNumber             int             `json:"slot_number"`
	AdministrativeComplete bool            `json:"administrative_complete"`
	SubstantiveComplete    bool            `json:"substantive_complete"`
	AdminErrors            int             `json:"admin_errors"`
	SubstantiveScore       decimal.Decimal `json:"substantive_score"`
}

// Complete is true when both assessments of the slot are complete.
func (o AssignmentOutcome) Complete() bool {
	return o.AdministrativeComplete && o.SubstantiveComplete
}

// Finalization is the aggregated review decision for a proposal.
type Finalization struct {
	ProposalID    int                   `json:"proposal_id"`
	Status        models.ProposalStatus `json:"status"`
	Score         decimal.NullDecimal   `json:"score"`
	Required      int                   `json:"required"`
	CompleteCount int                   `json:"complete_count"`
	Assignments   []AssignmentOutcome   `json:"assignments"`
}

// EvaluateAssignment scores one assignment against the criteria set.
func EvaluateAssignment(a models.ReviewAssignment, criteria *CriteriaSet) AssignmentOutcome {
	return AssignmentOutcome{
		AssignmentID:           a.AssignmentID,
		ReviewerID:             a.ReviewerID,
		SlotNumber:             a.SlotNumber,
		AdministrativeComplete: IsAdministrativeComplete(a.AdministrativeAssessment, criteria.Administrative),
		SubstantiveComplete:    IsSubstantiveComplete(a.SubstantiveAssessment, criteria.Substantive),
		AdminErrors:            ComputeAdminErrorCount(a.AdministrativeAssessment),
		SubstantiveScore:       ComputeSubstantiveScore(a.SubstantiveAssessment, criteria.Substantive),
	}
}

// Finalize decides reviewed/not_reviewed for a proposal. quorum <= 0 requires
// every assignment to be complete; otherwise at least quorum complete
// assignments are needed. The score is the mean of the complete assignments'
// substantive scores, rounded to two places.
func Finalize(proposalID int, assignments []models.ReviewAssignment, criteria *CriteriaSet, quorum int) *Finalization {
	f := &Finalization{
		ProposalID:  proposalID,
		Status:      models.StatusNotReviewed,
		Assignments: make([]AssignmentOutcome, 0, len(assignments)),
	}

	sum := decimal.Zero
	for _, a := range assignments {
		outcome := EvaluateAssignment(a, criteria)
		f.Assignments = append(f.Assignments, outcome)
		if outcome.Complete() {
			f.CompleteCount++
			sum = sum.Add(outcome.SubstantiveScore)
		}
	}

	f.Required = quorum
	if quorum <= 0 {
		f.Required = len(assignments)
	}
	if len(assignments) == 0 || f.CompleteCount == 0 || f.CompleteCount < f.Required {
		return f
	}

	mean := sum.Div(decimal.NewFromInt(int64(f.CompleteCount))).Round(scorePlaces)
	f.Status = models.StatusReviewed
	f.Score = decimal.NullDecimal{Decimal: mean, Valid: true}
	return f
}

// ReviewAggregator loads assignments and criteria to finalize proposals.
type ReviewAggregator struct {
	db      *gorm.DB
	catalog *CriteriaCatalog
	quorum  int
}

// NewReviewAggregator instantiates the aggregator with the configured quorum.
func NewReviewAggregator(db *gorm.DB) *ReviewAggregator {
	if db == nil {
		db = config.DB
	}
	return &ReviewAggregator{
		db:      db,
		catalog: NewCriteriaCatalog(db),
		quorum:  config.CurrentSettings().ReviewQuorum,
	}
}

// WithQuorum returns a copy using quorum instead of the configured value.
func (r *ReviewAggregator) WithQuorum(quorum int) *ReviewAggregator {
	cp := *r
	cp.quorum = quorum
	return &cp
}

// LoadAssignments returns the proposal's assignments with both assessments.
func (r *ReviewAggregator) LoadAssignments(ctx context.Context, proposalID int) ([]models.ReviewAssignment, error) {
	var assignments []models.ReviewAssignment
	if err := r.db.WithContext(ctx).
		Preload("AdministrativeAssessment.Entries").
		Preload("SubstantiveAssessment.Entries").
		Where("proposal_id = ?", proposalID).
		Order("slot_number ASC").
		Find(&assignments).Error; err != nil {
		return nil, persistenceErr("load review assignments", err)
	}
	return assignments, nil
}

// FinalizeProposal evaluates the proposal's assignments without writing.
func (r *ReviewAggregator) FinalizeProposal(ctx context.Context, proposal *models.Proposal) (*Finalization, error) {
	criteria, err := r.catalog.ForPkmType(ctx, proposal.PkmTypeID)
	if err != nil {
		return nil, err
	}
	assignments, err := r.LoadAssignments(ctx, proposal.ProposalID)
	if err != nil {
		return nil, err
	}
	return Finalize(proposal.ProposalID, assignments, criteria, r.quorum), nil
}
