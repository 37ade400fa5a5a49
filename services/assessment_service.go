package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pkm-review-api/config"
	"pkm-review-api/models"
	"pkm-review-api/utils"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AdministrativeEntryInput marks one administrative criterion.
type AdministrativeEntryInput struct {
	CriterionID int   `json:"criterion_id" validate:"required,gt=0"`
	HasError    *bool `json:"has_error" validate:"required"`
}

// AdministrativeInput is a (partial) administrative checklist upsert.
type AdministrativeInput struct {
	Entries []AdministrativeEntryInput `json:"entries" validate:"required,min=1,dive"`
	Notes   *string                    `json:"notes" validate:"omitempty,max=4000"`
}

// SubstantiveEntryInput scores one substantive criterion.
type SubstantiveEntryInput struct {
	CriterionID int  `json:"criterion_id" validate:"required,gt=0"`
	Score       *int `json:"score" validate:"required"`
}

// SubstantiveInput is a (partial) substantive score sheet upsert.
type SubstantiveInput struct {
	Entries []SubstantiveEntryInput `json:"entries" validate:"required,min=1,dive"`
	Comment *string                 `json:"comment" validate:"omitempty,max=4000"`
}

// AssessmentSummary is the reviewer-facing state of one assignment.
type AssessmentSummary struct {
	AssignmentID           int                              `json:"assignment_id"`
	ProposalID             int                              `json:"proposal_id"`
	ReviewerID             int                              `json:"reviewer_id"`
	SlotNumber             int                              `json:"slot_number"`
	AdministrativeComplete bool                             `json:"administrative_complete"`
	SubstantiveComplete    bool                             `json:"substantive_complete"`
	AdminErrors            int                              `json:"admin_errors"`
	SubstantiveScore       decimal.Decimal                  `json:"substantive_score"`
	Administrative         *models.AdministrativeAssessment `json:"administrative,omitempty"`
	Substantive            *models.SubstantiveAssessment    `json:"substantive,omitempty"`
	Criteria               *CriteriaSet                     `json:"criteria"`
}

// AssessmentService lets reviewers record assessments for their own
// assignments while the review phase is open.
type AssessmentService struct {
	db      *gorm.DB
	catalog *CriteriaCatalog
	toggles *ToggleStore
}

// NewAssessmentService instantiates the service.
func NewAssessmentService(db *gorm.DB) *AssessmentService {
	if db == nil {
		db = config.DB
	}
	return &AssessmentService{
		db:      db,
		catalog: NewCriteriaCatalog(db),
		toggles: NewToggleStore(db),
	}
}

// SaveAdministrative upserts administrative entries for the reviewer's assignment.
func (s *AssessmentService) SaveAdministrative(ctx context.Context, assignmentID, reviewerID int, input AdministrativeInput) (*AssessmentSummary, error) {
	summary, err := s.saveAdministrative(ctx, assignmentID, reviewerID, input)
	assessmentSavesTotal.WithLabelValues("administrative", ErrorCodeOrOK(err)).Inc()
	return summary, err
}

func (s *AssessmentService) saveAdministrative(ctx context.Context, assignmentID, reviewerID int, input AdministrativeInput) (*AssessmentSummary, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	assignment, criteria, err := s.loadOwned(ctx, assignmentID, reviewerID)
	if err != nil {
		return nil, err
	}

	known := make(map[int]bool, len(criteria.Administrative))
	for _, c := range criteria.Administrative {
		known[c.CriterionID] = true
	}
	seen := make(map[int]bool, len(input.Entries))
	for _, e := range input.Entries {
		if !known[e.CriterionID] {
			return nil, validationErr("criterion %d is not an administrative criterion of PKM type %d", e.CriterionID, criteria.PkmTypeID)
		}
		if seen[e.CriterionID] {
			return nil, validationErr("criterion %d appears more than once", e.CriterionID)
		}
		seen[e.CriterionID] = true
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.ensureEditable(ctx, tx, assignment.ProposalID); err != nil {
			return err
		}

		now := time.Now()
		assessment := models.AdministrativeAssessment{}
		if err := tx.Where(models.AdministrativeAssessment{AssignmentID: assignment.AssignmentID}).
			Attrs(models.AdministrativeAssessment{CreatedAt: now, UpdatedAt: now}).
			FirstOrCreate(&assessment).Error; err != nil {
			return err
		}

		entries := make([]models.AdministrativeEntry, 0, len(input.Entries))
		for _, e := range input.Entries {
			entries = append(entries, models.AdministrativeEntry{
				AssessmentID: assessment.AssessmentID,
				CriterionID:  e.CriterionID,
				HasError:     *e.HasError,
				UpdatedAt:    now,
			})
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "assessment_id"}, {Name: "criterion_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"has_error", "updated_at"}),
		}).Create(&entries).Error; err != nil {
			return err
		}

		if err := tx.Where("assessment_id = ?", assessment.AssessmentID).Find(&assessment.Entries).Error; err != nil {
			return err
		}
		updates := map[string]interface{}{
			"total_errors": ComputeAdminErrorCount(&assessment),
			"is_complete":  IsAdministrativeComplete(&assessment, criteria.Administrative),
			"updated_at":   now,
		}
		if input.Notes != nil {
			updates["notes"] = utils.SanitizeInput(*input.Notes)
		}
		return tx.Model(&models.AdministrativeAssessment{}).
			Where("assessment_id = ?", assessment.AssessmentID).
			Updates(updates).Error
	})
	if err != nil {
		return nil, persistenceErr("save administrative assessment", err)
	}
	return s.Summary(ctx, assignmentID, reviewerID)
}

// SaveSubstantive upserts substantive scores for the reviewer's assignment.
func (s *AssessmentService) SaveSubstantive(ctx context.Context, assignmentID, reviewerID int, input SubstantiveInput) (*AssessmentSummary, error) {
	summary, err := s.saveSubstantive(ctx, assignmentID, reviewerID, input)
	assessmentSavesTotal.WithLabelValues("substantive", ErrorCodeOrOK(err)).Inc()
	return summary, err
}

func (s *AssessmentService) saveSubstantive(ctx context.Context, assignmentID, reviewerID int, input SubstantiveInput) (*AssessmentSummary, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	assignment, criteria, err := s.loadOwned(ctx, assignmentID, reviewerID)
	if err != nil {
		return nil, err
	}

	byID := criteria.SubstantiveByID()
	seen := make(map[int]bool, len(input.Entries))
	for _, e := range input.Entries {
		crit, ok := byID[e.CriterionID]
		if !ok {
			return nil, validationErr("criterion %d is not a substantive criterion of PKM type %d", e.CriterionID, criteria.PkmTypeID)
		}
		if seen[e.CriterionID] {
			return nil, validationErr("criterion %d appears more than once", e.CriterionID)
		}
		seen[e.CriterionID] = true
		if !crit.InRange(*e.Score) {
			return nil, validationErr("score %d for criterion %q is outside [%d,%d]", *e.Score, crit.Name, crit.MinScore, crit.MaxScore)
		}
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.ensureEditable(ctx, tx, assignment.ProposalID); err != nil {
			return err
		}

		now := time.Now()
		assessment := models.SubstantiveAssessment{}
		if err := tx.Where(models.SubstantiveAssessment{AssignmentID: assignment.AssignmentID}).
			Attrs(models.SubstantiveAssessment{TotalScore: decimal.Zero, CreatedAt: now, UpdatedAt: now}).
			FirstOrCreate(&assessment).Error; err != nil {
			return err
		}

		entries := make([]models.SubstantiveEntry, 0, len(input.Entries))
		for _, e := range input.Entries {
			entries = append(entries, models.SubstantiveEntry{
				AssessmentID: assessment.AssessmentID,
				CriterionID:  e.CriterionID,
				Score:        *e.Score,
				UpdatedAt:    now,
			})
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "assessment_id"}, {Name: "criterion_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"score", "updated_at"}),
		}).Create(&entries).Error; err != nil {
			return err
		}

		if err := tx.Where("assessment_id = ?", assessment.AssessmentID).Find(&assessment.Entries).Error; err != nil {
			return err
		}
		updates := map[string]interface{}{
			"total_score": ComputeSubstantiveScore(&assessment, criteria.Substantive),
			"is_complete": IsSubstantiveComplete(&assessment, criteria.Substantive),
			"updated_at":  now,
		}
		if input.Comment != nil {
			updates["comment"] = utils.SanitizeInput(*input.Comment)
		}
		return tx.Model(&models.SubstantiveAssessment{}).
			Where("assessment_id = ?", assessment.AssessmentID).
			Updates(updates).Error
	})
	if err != nil {
		return nil, persistenceErr("save substantive assessment", err)
	}
	return s.Summary(ctx, assignmentID, reviewerID)
}

// Summary returns the assignment's assessments with computed totals.
// reviewerID 0 skips the ownership check (administrators).
func (s *AssessmentService) Summary(ctx context.Context, assignmentID, reviewerID int) (*AssessmentSummary, error) {
	var assignment models.ReviewAssignment
	if err := s.db.WithContext(ctx).
		Preload("Proposal").
		Preload("AdministrativeAssessment.Entries").
		Preload("SubstantiveAssessment.Entries").
		Where("assignment_id = ?", assignmentID).
		Take(&assignment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: assignment %d", ErrNotFound, assignmentID)
		}
		return nil, persistenceErr("load assignment", err)
	}
	if reviewerID != 0 && assignment.ReviewerID != reviewerID {
		return nil, fmt.Errorf("%w: assignment %d belongs to another reviewer", ErrForbidden, assignmentID)
	}
	if assignment.Proposal == nil {
		return nil, fmt.Errorf("%w: proposal %d", ErrNotFound, assignment.ProposalID)
	}

	criteria, err := s.catalog.ForPkmType(ctx, assignment.Proposal.PkmTypeID)
	if err != nil {
		return nil, err
	}
	outcome := EvaluateAssignment(assignment, criteria)
	return &AssessmentSummary{
		AssignmentID:           assignment.AssignmentID,
		ProposalID:             assignment.ProposalID,
		ReviewerID:             assignment.ReviewerID,
		SlotNumber:             assignment.SlotNumber,
		AdministrativeComplete: outcome.AdministrativeComplete,
		SubstantiveComplete:    outcome.SubstantiveComplete,
		AdminErrors:            outcome.AdminErrors,
		SubstantiveScore:       outcome.SubstantiveScore,
		Administrative:         assignment.AdministrativeAssessment,
		Substantive:            assignment.SubstantiveAssessment,
		Criteria:               criteria,
	}, nil
}

func (s *AssessmentService) loadOwned(ctx context.Context, assignmentID, reviewerID int) (*models.ReviewAssignment, *CriteriaSet, error) {
	var assignment models.ReviewAssignment
	if err := s.db.WithContext(ctx).
		Preload("Proposal").
		Where("assignment_id = ?", assignmentID).
		Take(&assignment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, fmt.Errorf("%w: assignment %d", ErrNotFound, assignmentID)
		}
		return nil, nil, persistenceErr("load assignment", err)
	}
	if assignment.ReviewerID != reviewerID {
		return nil, nil, fmt.Errorf("%w: assignment %d belongs to another reviewer", ErrForbidden, assignmentID)
	}
	if assignment.Proposal == nil {
		return nil, nil, fmt.Errorf("%w: proposal %d", ErrNotFound, assignment.ProposalID)
	}
	criteria, err := s.catalog.ForPkmType(ctx, assignment.Proposal.PkmTypeID)
	if err != nil {
		return nil, nil, err
	}
	return &assignment, criteria, nil
}

// ensureEditable checks, inside the save transaction, that the review phase
// is open and the proposal is still under review. The shared lock on the
// phase row makes a concurrent review close wait for this save.
func (s *AssessmentService) ensureEditable(ctx context.Context, tx *gorm.DB, proposalID int) error {
	open, err := s.toggles.WithTx(tx).Get(ctx, models.ToggleReview)
	if err != nil {
		return err
	}
	if !open {
		return fmt.Errorf("%w: review phase is not open", ErrPhaseClosed)
	}
	var status models.ProposalStatus
	if err := tx.Model(&models.Proposal{}).
		Select("status").
		Where("proposal_id = ? AND deleted_at IS NULL", proposalID).
		Scan(&status).Error; err != nil {
		return err
	}
	if status == "" {
		return fmt.Errorf("%w: proposal %d", ErrNotFound, proposalID)
	}
	if status != models.StatusUnderReview {
		return fmt.Errorf("%w: proposal %d is %s, not under review", ErrPhaseClosed, proposalID, status)
	}
	return nil
}

// ErrorCodeOrOK is ErrorCode with "ok" for a nil error, for metric labels.
func ErrorCodeOrOK(err error) string {
	if err == nil {
		return "ok"
	}
	return ErrorCode(err)
}
