package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"pkm-review-api/config"
	"pkm-review-api/models"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

// CascadeAction selects how a rule resolves the target status.
type CascadeAction int

const (
	// CascadeMove sends every matching proposal to Target.
	CascadeMove CascadeAction = iota
	// CascadeFinalize asks the ReviewAggregator for reviewed or not_reviewed.
	CascadeFinalize
)

// CascadeRule is a bulk status change triggered by one toggle edge.
type CascadeRule struct {
	Name    string
	Toggle  models.ToggleKey
	From    bool
	To      bool
	Sources []models.ProposalStatus
	Target  models.ProposalStatus
	Action  CascadeAction
}

// cascadeTable lists every side effect of a toggle transition. Adding a
// phase means adding rows here.
var cascadeTable = []CascadeRule{
	{
		Name:    "open_review",
		Toggle:  models.ToggleReview,
		From:    false,
		To:      true,
		Sources: []models.ProposalStatus{models.StatusSubmitted, models.StatusRevised},
		Target:  models.StatusUnderReview,
		Action:  CascadeMove,
	},
	{
		Name:    "close_review",
		Toggle:  models.ToggleReview,
		From:    true,
		To:      false,
		Sources: []models.ProposalStatus{models.StatusUnderReview},
		Action:  CascadeFinalize,
	},
	{
		Name:    "open_revision",
		Toggle:  models.ToggleUploadRevision,
		From:    false,
		To:      true,
		Sources: []models.ProposalStatus{models.StatusReviewed},
		Target:  models.StatusNeedsRevision,
		Action:  CascadeMove,
	},
}

// CascadeRulesFor returns the rules fired by key going from -> to.
func CascadeRulesFor(key models.ToggleKey, from, to bool) []CascadeRule {
	var rules []CascadeRule
	for _, rule := range cascadeTable {
		if rule.Toggle == key && rule.From == from && rule.To == to {
			rules = append(rules, rule)
		}
	}
	return rules
}

// CascadeFailure names a proposal the cascade could not move.
type CascadeFailure struct {
	Rule       string `json:"rule"`
	ProposalID int    `json:"proposal_id,omitempty"`
	Error      string `json:"error"`
}

// CascadeOutcome summarises one rule execution.
type CascadeOutcome struct {
	Rule     string           `json:"rule"`
	Affected int              `json:"affected"`
	Skipped  int              `json:"skipped"`
	Failures []CascadeFailure `json:"failures,omitempty"`
}

// ProposalFinalizer decides the end-of-review status of one proposal.
// *ReviewAggregator is the production implementation.
type ProposalFinalizer interface {
	FinalizeProposal(ctx context.Context, proposal *models.Proposal) (*Finalization, error)
}

// CascadeRunner applies cascade rules to the proposals table. Execution is
// best-effort: rows already moved stay moved when a later row fails.
type CascadeRunner struct {
	db        *gorm.DB
	finalizer ProposalFinalizer
}

// NewCascadeRunner instantiates the runner. A nil finalizer uses a
// ReviewAggregator with the configured quorum.
func NewCascadeRunner(db *gorm.DB, finalizer ProposalFinalizer) *CascadeRunner {
	if db == nil {
		db = config.DB
	}
	if finalizer == nil {
		finalizer = NewReviewAggregator(db)
	}
	return &CascadeRunner{db: db, finalizer: finalizer}
}

// Run executes rule. A persistence failure aborts the remaining batch and is
// returned with the partial outcome.
func (r *CascadeRunner) Run(ctx context.Context, rule CascadeRule, actorID int) (*CascadeOutcome, error) {
	timer := prometheus.NewTimer(cascadeDuration.WithLabelValues(rule.Name))
	defer timer.ObserveDuration()

	var (
		outcome *CascadeOutcome
		err     error
	)
	switch rule.Action {
	case CascadeMove:
		outcome, err = r.runMove(ctx, rule, actorID)
	case CascadeFinalize:
		outcome, err = r.runFinalize(ctx, rule, actorID)
	default:
		return &CascadeOutcome{Rule: rule.Name}, fmt.Errorf("cascade %s: unsupported action %d", rule.Name, rule.Action)
	}

	cascadeProposalsTotal.WithLabelValues(rule.Name).Add(float64(outcome.Affected))
	cascadeFailuresTotal.WithLabelValues(rule.Name).Add(float64(len(outcome.Failures)))
	return outcome, err
}

func (r *CascadeRunner) runMove(ctx context.Context, rule CascadeRule, actorID int) (*CascadeOutcome, error) {
	outcome := &CascadeOutcome{Rule: rule.Name}
	affected, err := bulkTransition(ctx, r.db, rule.Sources, rule.Target, actorID, "cascade:"+rule.Name)
	outcome.Affected = affected
	if err != nil {
		outcome.Failures = append(outcome.Failures, CascadeFailure{Rule: rule.Name, Error: err.Error()})
		return outcome, fmt.Errorf("cascade %s: %w", rule.Name, err)
	}
	log.Printf("cascade %s moved %d proposals to %s", rule.Name, affected, rule.Target)
	return outcome, nil
}

func (r *CascadeRunner) runFinalize(ctx context.Context, rule CascadeRule, actorID int) (*CascadeOutcome, error) {
	outcome := &CascadeOutcome{Rule: rule.Name}

	var rows []proposalStatusRow
	if err := r.db.WithContext(ctx).Model(&models.Proposal{}).
		Select("proposal_id, pkm_type_id, status").
		Where("status IN ? AND deleted_at IS NULL", rule.Sources).
		Order("proposal_id ASC").
		Find(&rows).Error; err != nil {
		err = persistenceErr("list proposals to finalize", err)
		outcome.Failures = append(outcome.Failures, CascadeFailure{Rule: rule.Name, Error: err.Error()})
		return outcome, fmt.Errorf("cascade %s: %w", rule.Name, err)
	}

	fail := func(id int, err error) {
		outcome.Failures = append(outcome.Failures, CascadeFailure{Rule: rule.Name, ProposalID: id, Error: err.Error()})
		log.Printf("cascade %s: proposal %d failed: %v", rule.Name, id, err)
	}

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			fail(row.ProposalID, err)
			return outcome, fmt.Errorf("cascade %s: %w", rule.Name, err)
		}

		proposal := &models.Proposal{ProposalID: row.ProposalID, PkmTypeID: row.PkmTypeID, Status: row.Status}
		fin, err := r.finalizer.FinalizeProposal(ctx, proposal)
		if err != nil {
			fail(row.ProposalID, err)
			if errors.Is(err, ErrPersistence) {
				return outcome, fmt.Errorf("cascade %s: %w", rule.Name, err)
			}
			continue
		}
		if err := ValidateTransition(row.Status, fin.Status); err != nil {
			fail(row.ProposalID, err)
			continue
		}

		extra := map[string]interface{}{"review_score": fin.Score}
		if fin.Status == models.StatusReviewed {
			extra["reviewed_at"] = time.Now()
		}
		var moved bool
		err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var txErr error
			moved, txErr = compareAndSetStatus(tx, statusChange{
				ProposalID: row.ProposalID,
				From:       row.Status,
				To:         fin.Status,
				ChangedBy:  actorID,
				Reason:     "cascade:" + rule.Name,
				Extra:      extra,
			})
			return txErr
		})
		if err != nil {
			err = persistenceErr("finalize proposal", err)
			fail(row.ProposalID, err)
			return outcome, fmt.Errorf("cascade %s: %w", rule.Name, err)
		}
		if !moved {
			outcome.Skipped++
			log.Printf("cascade %s: proposal %d left %s before finalization, skipped", rule.Name, row.ProposalID, row.Status)
			continue
		}
		outcome.Affected++
	}

	log.Printf("cascade %s finalized %d proposals (%d skipped, %d failed)", rule.Name, outcome.Affected, outcome.Skipped, len(outcome.Failures))
	return outcome, nil
}
