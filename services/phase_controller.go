package services

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"pkm-review-api/config"
	"pkm-review-api/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// phaseToggleMu serialises every toggle change in this process. The MySQL
// advisory lock extends the exclusion across processes.
var phaseToggleMu sync.Mutex

// ToggleFlip is one toggle value actually changed by ApplyToggle.
type ToggleFlip struct {
	Key      models.ToggleKey `json:"key"`
	Previous bool             `json:"previous"`
	New      bool             `json:"new"`
}

// ToggleResult reports what ApplyToggle did.
type ToggleResult struct {
	BatchID       string                    `json:"batch_id,omitempty"`
	Phase         models.Phase              `json:"phase"`
	Toggles       map[models.ToggleKey]bool `json:"toggles"`
	Changed       bool                      `json:"changed"`
	AffectedCount int                       `json:"affected_count"`
	Flips         []ToggleFlip              `json:"flips"`
	Cascades      []CascadeOutcome          `json:"cascades,omitempty"`
	Failures      []CascadeFailure          `json:"failures,omitempty"`
}

// PhaseController is the only writer of the phase toggles.
type PhaseController struct {
	db       *gorm.DB
	toggles  *ToggleStore
	audit    *AuditLogService
	cascades *CascadeRunner
	notifier PhaseNotifier

	lockName string
	lockWait time.Duration
}

// NewPhaseController wires the controller with the configured quorum, lock
// and notification settings.
func NewPhaseController(db *gorm.DB) *PhaseController {
	if db == nil {
		db = config.DB
	}
	settings := config.CurrentSettings()
	return &PhaseController{
		db:       db,
		toggles:  NewToggleStore(db),
		audit:    NewAuditLogService(db),
		cascades: NewCascadeRunner(db, NewReviewAggregator(db)),
		notifier: NewMailPhaseNotifier(),
		lockName: settings.PhaseLockName,
		lockWait: time.Duration(settings.PhaseLockWaitSeconds) * time.Second,
	}
}

// WithNotifier replaces the phase notifier.
func (c *PhaseController) WithNotifier(n PhaseNotifier) *PhaseController {
	c.notifier = n
	return c
}

// WithFinalizer replaces the finalizer used by the close_review cascade.
func (c *PhaseController) WithFinalizer(f ProposalFinalizer) *PhaseController {
	c.cascades = NewCascadeRunner(c.db, f)
	return c
}

// CurrentPhase returns the phase and its derived toggles.
func (c *PhaseController) CurrentPhase(ctx context.Context) (*models.SystemPhase, map[models.ToggleKey]bool, error) {
	row, err := c.toggles.Phase(ctx)
	if err != nil {
		return nil, nil, err
	}
	return row, row.CurrentPhase.Toggles(), nil
}

// ApplyToggle sets key to desired. Enabling a toggle first disables every
// other enabled toggle. Each flip gets one audit entry, written in flip
// order in the same transaction as the flips. Cascades run after commit and
// are not rolled back on failure: the returned result carries the count of
// proposals moved so far together with the error.
func (c *PhaseController) ApplyToggle(ctx context.Context, key models.ToggleKey, desired bool, actorID int) (*ToggleResult, error) {
	if !key.Valid() {
		toggleChangesTotal.WithLabelValues("unknown", strconv.FormatBool(desired), "error").Inc()
		return nil, fmt.Errorf("%w: %q", ErrUnknownToggle, key)
	}

	phaseToggleMu.Lock()
	defer phaseToggleMu.Unlock()

	release, err := c.acquireLock(ctx)
	if err != nil {
		toggleChangesTotal.WithLabelValues(string(key), strconv.FormatBool(desired), "error").Inc()
		return nil, err
	}
	defer func() {
		if relErr := release(); relErr != nil {
			log.Printf("failed to release phase toggle lock: %v", relErr)
		}
	}()

	result := &ToggleResult{BatchID: uuid.NewString()}
	err = c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		toggles := c.toggles.WithTx(tx)
		audit := c.audit.WithTx(tx)

		locked, err := toggles.Lock(ctx)
		if err != nil {
			return err
		}
		current := locked.CurrentPhase.Toggles()

		var flips []ToggleFlip
		if desired {
			for _, other := range models.ToggleKeys {
				if other != key && current[other] {
					flips = append(flips, ToggleFlip{Key: other, Previous: true, New: false})
				}
			}
			if !current[key] {
				flips = append(flips, ToggleFlip{Key: key, Previous: false, New: true})
			}
		} else if current[key] {
			flips = append(flips, ToggleFlip{Key: key, Previous: true, New: false})
		}

		for _, flip := range flips {
			previous, err := toggles.Set(ctx, flip.Key, flip.New, actorID)
			if err != nil {
				return err
			}
			if previous != flip.Previous {
				return fmt.Errorf("toggle %s moved underneath the phase lock", flip.Key)
			}
			if err := audit.Append(ctx, &models.ToggleAuditLog{
				BatchID:       result.BatchID,
				ToggleKey:     flip.Key,
				PreviousValue: flip.Previous,
				NewValue:      flip.New,
				ActorID:       actorID,
			}); err != nil {
				return err
			}
		}

		row, err := toggles.Phase(ctx)
		if err != nil {
			return err
		}
		result.Phase = row.CurrentPhase
		result.Toggles = row.CurrentPhase.Toggles()
		result.Flips = flips
		result.Changed = len(flips) > 0
		return nil
	})
	if err != nil {
		toggleChangesTotal.WithLabelValues(string(key), strconv.FormatBool(desired), "error").Inc()
		return nil, persistenceErr("apply toggle", err)
	}

	if !result.Changed {
		result.BatchID = ""
		toggleChangesTotal.WithLabelValues(string(key), strconv.FormatBool(desired), "noop").Inc()
		return result, nil
	}
	toggleChangesTotal.WithLabelValues(string(key), strconv.FormatBool(desired), "changed").Inc()
	recordPhaseGauge(result.Phase)
	log.Printf("phase toggle %s=%t by user %d: phase %s (batch %s)", key, desired, actorID, result.Phase, result.BatchID)

	// Cascades run to completion once the flips are committed.
	cascadeErr := c.runCascades(persistentContext(ctx), result, actorID)
	if c.notifier != nil {
		c.notifier.PhaseChanged(result, actorID)
	}
	if cascadeErr != nil {
		return result, cascadeErr
	}
	return result, nil
}

func (c *PhaseController) runCascades(ctx context.Context, result *ToggleResult, actorID int) error {
	for _, flip := range result.Flips {
		for _, rule := range CascadeRulesFor(flip.Key, flip.Previous, flip.New) {
			outcome, err := c.cascades.Run(ctx, rule, actorID)
			if outcome != nil {
				result.Cascades = append(result.Cascades, *outcome)
				result.AffectedCount += outcome.Affected
				result.Failures = append(result.Failures, outcome.Failures...)
			}
			if err != nil {
				log.Printf("phase changed to %s but cascade %s aborted after %d proposals: %v", result.Phase, rule.Name, result.AffectedCount, err)
				return err
			}
		}
	}
	return nil
}

// acquireLock takes the MySQL advisory lock on a dedicated connection so the
// release runs on the same session. Other dialects rely on phaseToggleMu.
func (c *PhaseController) acquireLock(ctx context.Context) (func() error, error) {
	noop := func() error { return nil }
	if c.lockName == "" || c.db.Dialector.Name() != "mysql" {
		return noop, nil
	}

	sqlDB, err := c.db.DB()
	if err != nil {
		return nil, persistenceErr("phase lock", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return nil, persistenceErr("phase lock", err)
	}

	var ok sql.NullInt64
	wait := int(c.lockWait / time.Second)
	if err := conn.QueryRowContext(ctx, "SELECT GET_LOCK(?, ?)", c.lockName, wait).Scan(&ok); err != nil {
		_ = conn.Close()
		return nil, persistenceErr("phase lock", err)
	}
	if !ok.Valid || ok.Int64 != 1 {
		_ = conn.Close()
		return nil, ErrPhaseToggleBusy
	}

	return func() error {
		defer conn.Close()
		var released sql.NullInt64
		return conn.QueryRowContext(context.Background(), "SELECT RELEASE_LOCK(?)", c.lockName).Scan(&released)
	}, nil
}

func recordPhaseGauge(current models.Phase) {
	for _, p := range []models.Phase{models.PhaseClosed, models.PhaseSubmission, models.PhaseReview, models.PhaseRevision} {
		v := 0.0
		if p == current {
			v = 1
		}
		currentPhaseGauge.WithLabelValues(string(p)).Set(v)
	}
}
