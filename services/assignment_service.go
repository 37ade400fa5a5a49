package services

import (
	"context"
	"fmt"

	"pkm-review-api/config"
	"pkm-review-api/models"

	"gorm.io/gorm"
)

// AssignmentService lists and creates reviewer assignments.
type AssignmentService struct {
	db *gorm.DB
}

// NewAssignmentService instantiates the service.
func NewAssignmentService(db *gorm.DB) *AssignmentService {
	if db == nil {
		db = config.DB
	}
	return &AssignmentService{db: db}
}

// ListForReviewer returns the reviewer's assignments with their proposal and
// the assessment headers (entries are not loaded).
func (s *AssignmentService) ListForReviewer(ctx context.Context, reviewerID int) ([]models.ReviewAssignment, error) {
	var rows []models.ReviewAssignment
	if err := s.db.WithContext(ctx).
		Preload("Proposal").
		Preload("AdministrativeAssessment").
		Preload("SubstantiveAssessment").
		Where("reviewer_id = ?", reviewerID).
		Order("assignment_id ASC").
		Find(&rows).Error; err != nil {
		return nil, persistenceErr("list assignments", err)
	}
	return rows, nil
}

// ListForProposal returns every slot of a proposal ordered by slot number.
func (s *AssignmentService) ListForProposal(ctx context.Context, proposalID int) ([]models.ReviewAssignment, error) {
	var rows []models.ReviewAssignment
	if err := s.db.WithContext(ctx).
		Where("proposal_id = ?", proposalID).
		Order("slot_number ASC").
		Find(&rows).Error; err != nil {
		return nil, persistenceErr("list proposal assignments", err)
	}
	return rows, nil
}

// Assign places a reviewer in a slot of the proposal. A slot holds one
// reviewer and a reviewer holds at most one slot per proposal.
func (s *AssignmentService) Assign(ctx context.Context, proposalID, reviewerID, slot int) (*models.ReviewAssignment, error) {
	if slot < 1 {
		return nil, validationErr("slot_number must be >= 1")
	}
	if reviewerID <= 0 {
		return nil, validationErr("reviewer_id must be > 0")
	}
	var out models.ReviewAssignment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.Proposal{}).
			Where("proposal_id = ? AND deleted_at IS NULL", proposalID).
			Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: proposal %d", ErrNotFound, proposalID)
		}
		if err := tx.Model(&models.ReviewAssignment{}).
			Where("proposal_id = ? AND (slot_number = ? OR reviewer_id = ?)", proposalID, slot, reviewerID).
			Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return validationErr("slot %d or reviewer %d is already assigned on proposal %d", slot, reviewerID, proposalID)
		}
		out = models.ReviewAssignment{ProposalID: proposalID, ReviewerID: reviewerID, SlotNumber: slot}
		return tx.Create(&out).Error
	})
	if err != nil {
		return nil, persistenceErr("assign reviewer", err)
	}
	return &out, nil
}
