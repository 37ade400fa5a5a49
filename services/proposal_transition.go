package services

import (
	"context"
	"time"

	"pkm-review-api/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const cascadeChunkSize = 500

// statusChange is a compare-and-set request for one proposal.
type statusChange struct {
	ProposalID int
	From       models.ProposalStatus
	To         models.ProposalStatus
	ChangedBy  int
	Reason     string
	Extra      map[string]interface{}
}

// compareAndSetStatus moves a proposal from change.From to change.To only if
// it is still in change.From, and records the history row. It returns false
// when another writer moved the proposal first.
func compareAndSetStatus(tx *gorm.DB, change statusChange) (bool, error) {
	if err := ValidateTransition(change.From, change.To); err != nil {
		return false, err
	}

	now := time.Now()
	updates := map[string]interface{}{
		"status":     change.To,
		"updated_at": now,
	}
	for k, v := range change.Extra {
		updates[k] = v
	}

	res := tx.Model(&models.Proposal{}).
		Where("proposal_id = ? AND status = ? AND deleted_at IS NULL", change.ProposalID, change.From).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}

	old := change.From
	history := models.ProposalStatusHistory{
		ProposalID: change.ProposalID,
		OldStatus:  &old,
		NewStatus:  change.To,
		ChangedBy:  change.ChangedBy,
		CreatedAt:  now,
	}
	if change.Reason != "" {
		reason := change.Reason
		history.Reason = &reason
	}
	if err := tx.Create(&history).Error; err != nil {
		return false, err
	}
	return true, nil
}

type proposalStatusRow struct {
	ProposalID int
	PkmTypeID  int
	Status     models.ProposalStatus
}

// bulkTransition moves every live proposal in one of sources to target in a
// single transaction and returns the number of rows changed.
func bulkTransition(ctx context.Context, db *gorm.DB, sources []models.ProposalStatus, target models.ProposalStatus, changedBy int, reason string) (int, error) {
	for _, src := range sources {
		if err := ValidateTransition(src, target); err != nil {
			return 0, err
		}
	}

	affected := 0
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Model(&models.Proposal{}).
			Select("proposal_id, pkm_type_id, status").
			Where("status IN ? AND deleted_at IS NULL", sources)
		if tx.Dialector.Name() == "mysql" {
			q = q.Clauses(clause.Locking{Strength: lockUpdate})
		}
		var rows []proposalStatusRow
		if err := q.Order("proposal_id ASC").Find(&rows).Error; err != nil {
			return err
		}

		now := time.Now()
		for start := 0; start < len(rows); start += cascadeChunkSize {
			end := start + cascadeChunkSize
			if end > len(rows) {
				end = len(rows)
			}
			chunk := rows[start:end]

			ids := make([]int, 0, len(chunk))
			history := make([]models.ProposalStatusHistory, 0, len(chunk))
			for _, r := range chunk {
				ids = append(ids, r.ProposalID)
				old := r.Status
				rsn := reason
				history = append(history, models.ProposalStatusHistory{
					ProposalID: r.ProposalID,
					OldStatus:  &old,
					NewStatus:  target,
					ChangedBy:  changedBy,
					Reason:     &rsn,
					CreatedAt:  now,
				})
			}

			res := tx.Model(&models.Proposal{}).
				Where("proposal_id IN ? AND status IN ?", ids, sources).
				Updates(map[string]interface{}{
					"status":     target,
					"updated_at": now,
				})
			if res.Error != nil {
				return res.Error
			}
			if err := tx.Create(&history).Error; err != nil {
				return err
			}
			affected += int(res.RowsAffected)
		}
		return nil
	})
	if err != nil {
		return 0, persistenceErr("bulk status transition", err)
	}
	return affected, nil
}
