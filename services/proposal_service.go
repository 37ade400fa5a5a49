package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pkm-review-api/config"
	"pkm-review-api/models"

	"gorm.io/gorm"
)

// ProposalService covers the student side of the proposal lifecycle and
// read access for all roles.
type ProposalService struct {
	db      *gorm.DB
	toggles *ToggleStore
}

// NewProposalService instantiates the service.
func NewProposalService(db *gorm.DB) *ProposalService {
	if db == nil {
		db = config.DB
	}
	return &ProposalService{db: db, toggles: NewToggleStore(db)}
}

// Get loads a live proposal with its team.
func (s *ProposalService) Get(ctx context.Context, proposalID int) (*models.Proposal, error) {
	var proposal models.Proposal
	err := s.db.WithContext(ctx).
		Preload("Team").
		Where("proposal_id = ? AND deleted_at IS NULL", proposalID).
		Take(&proposal).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: proposal %d", ErrNotFound, proposalID)
		}
		return nil, persistenceErr("load proposal", err)
	}
	return &proposal, nil
}

// History lists the proposal's status changes, oldest first.
func (s *ProposalService) History(ctx context.Context, proposalID int) ([]models.ProposalStatusHistory, error) {
	var rows []models.ProposalStatusHistory
	if err := s.db.WithContext(ctx).
		Where("proposal_id = ?", proposalID).
		Order("history_id ASC").
		Find(&rows).Error; err != nil {
		return nil, persistenceErr("load status history", err)
	}
	return rows, nil
}

// IsTeamMember reports whether userID belongs to the proposal's team.
func (s *ProposalService) IsTeamMember(ctx context.Context, proposal *models.Proposal, userID int) (bool, error) {
	return isTeamMember(s.db.WithContext(ctx), proposal.TeamID, userID)
}

// Submit moves a draft to submitted while proposal upload is open.
func (s *ProposalService) Submit(ctx context.Context, proposalID, userID int) (*models.Proposal, error) {
	now := time.Now()
	return s.studentTransition(ctx, proposalID, userID, models.ToggleUploadProposal, models.StatusSubmitted,
		map[string]interface{}{"submitted_at": now}, "submitted by team")
}

// SubmitRevision moves a proposal from needs_revision to revised while
// revision upload is open.
func (s *ProposalService) SubmitRevision(ctx context.Context, proposalID, userID int) (*models.Proposal, error) {
	return s.studentTransition(ctx, proposalID, userID, models.ToggleUploadRevision, models.StatusRevised,
		nil, "revision uploaded")
}

func (s *ProposalService) studentTransition(ctx context.Context, proposalID, userID int, gate models.ToggleKey, to models.ProposalStatus, extra map[string]interface{}, reason string) (*models.Proposal, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		open, err := s.toggles.WithTx(tx).Get(ctx, gate)
		if err != nil {
			return err
		}
		if !open {
			return fmt.Errorf("%w: %s is off", ErrPhaseClosed, gate)
		}

		var proposal models.Proposal
		if err := tx.Where("proposal_id = ? AND deleted_at IS NULL", proposalID).Take(&proposal).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: proposal %d", ErrNotFound, proposalID)
			}
			return err
		}
		member, err := isTeamMember(tx, proposal.TeamID, userID)
		if err != nil {
			return err
		}
		if !member {
			return fmt.Errorf("%w: user %d is not on team %d", ErrForbidden, userID, proposal.TeamID)
		}

		moved, err := compareAndSetStatus(tx, statusChange{
			ProposalID: proposalID,
			From:       proposal.Status,
			To:         to,
			ChangedBy:  userID,
			Reason:     reason,
			Extra:      extra,
		})
		if err != nil {
			return err
		}
		if !moved {
			return fmt.Errorf("%w: proposal %d changed concurrently", ErrInvalidTransition, proposalID)
		}
		return nil
	})
	if err != nil {
		return nil, persistenceErr("transition proposal", err)
	}
	return s.Get(ctx, proposalID)
}

// StatusCount is one row of StatusSummary.
type StatusCount struct {
	Status models.ProposalStatus `json:"status"`
	Count  int64                 `json:"count"`
}

// StatusSummary counts live proposals per status. Every status is present
// unless only is given, in which case just those statuses are listed.
func (s *ProposalService) StatusSummary(ctx context.Context, only ...models.ProposalStatus) ([]StatusCount, error) {
	var rows []StatusCount
	if err := s.db.WithContext(ctx).
		Model(&models.Proposal{}).
		Select("status, COUNT(*) AS count").
		Where("deleted_at IS NULL").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, persistenceErr("count proposals", err)
	}
	counts := make(map[models.ProposalStatus]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	statuses := models.ProposalStatuses
	if len(only) > 0 {
		statuses = only
	}
	out := make([]StatusCount, 0, len(statuses))
	for _, st := range statuses {
		out = append(out, StatusCount{Status: st, Count: counts[st]})
	}
	return out, nil
}

func isTeamMember(db *gorm.DB, teamID, userID int) (bool, error) {
	var n int64
	if err := db.Model(&models.TeamMember{}).
		Where("team_id = ? AND user_id = ?", teamID, userID).
		Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}
