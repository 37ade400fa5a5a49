package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pkm-review-api/config"
	"pkm-review-api/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var errPhaseVersionConflict = errors.New("system_phase row changed concurrently")

const (
	lockUpdate = "UPDATE"
	lockShare  = "SHARE"
)

// ToggleStore persists the phase switches as the single system_phase row.
// It does not enforce exclusivity between toggles beyond what the phase
// enum allows; the PhaseController decides which flips to perform.
type ToggleStore struct {
	db   *gorm.DB
	inTx bool
}

// NewToggleStore instantiates the store.
func NewToggleStore(db *gorm.DB) *ToggleStore {
	if db == nil {
		db = config.DB
	}
	return &ToggleStore{db: db}
}

// WithTx binds the store to an open transaction. Reads then take a shared
// row lock and writes join the caller's transaction.
func (s *ToggleStore) WithTx(tx *gorm.DB) *ToggleStore {
	return &ToggleStore{db: tx, inTx: true}
}

// Phase returns the current phase record, creating the CLOSED row on first use.
func (s *ToggleStore) Phase(ctx context.Context) (*models.SystemPhase, error) {
	strength := ""
	if s.inTx {
		strength = lockShare
	}
	row, err := loadPhaseRow(s.db.WithContext(ctx), strength)
	if err != nil {
		return nil, persistenceErr("load system phase", err)
	}
	return row, nil
}

// Lock reads the phase record with an exclusive row lock. Only meaningful
// on a store bound with WithTx.
func (s *ToggleStore) Lock(ctx context.Context) (*models.SystemPhase, error) {
	row, err := loadPhaseRow(s.db.WithContext(ctx), lockUpdate)
	if err != nil {
		return nil, persistenceErr("lock system phase", err)
	}
	return row, nil
}

// Get returns the value of a single toggle.
func (s *ToggleStore) Get(ctx context.Context, key models.ToggleKey) (bool, error) {
	target, ok := key.Phase()
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownToggle, key)
	}
	row, err := s.Phase(ctx)
	if err != nil {
		return false, err
	}
	return row.CurrentPhase == target, nil
}

// GetAll returns every toggle keyed by name.
func (s *ToggleStore) GetAll(ctx context.Context) (map[models.ToggleKey]bool, error) {
	row, err := s.Phase(ctx)
	if err != nil {
		return nil, err
	}
	return row.CurrentPhase.Toggles(), nil
}

// Set writes key=value and returns the previous value. Setting a toggle
// true replaces whatever phase was active; setting an inactive toggle
// false leaves the row untouched. The write is committed before Set
// returns unless the store is bound to a caller transaction.
func (s *ToggleStore) Set(ctx context.Context, key models.ToggleKey, value bool, actorID int) (bool, error) {
	target, ok := key.Phase()
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownToggle, key)
	}

	var previous bool
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		row, err := loadPhaseRow(tx, lockUpdate)
		if err != nil {
			return err
		}

		previous = row.CurrentPhase == target
		next := row.CurrentPhase
		if value {
			next = target
		} else if previous {
			next = models.PhaseClosed
		}
		if next == row.CurrentPhase {
			return nil
		}

		res := tx.Model(&models.SystemPhase{}).
			Where("id = ? AND version = ?", row.ID, row.Version).
			Updates(map[string]interface{}{
				"current_phase": next,
				"version":       row.Version + 1,
				"updated_by":    actorID,
				"updated_at":    time.Now(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errPhaseVersionConflict
		}
		return nil
	})
	if err != nil {
		return false, persistenceErr("set toggle "+string(key), err)
	}
	return previous, nil
}

func (s *ToggleStore) transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s.inTx {
		return fn(s.db.WithContext(ctx))
	}
	return s.db.WithContext(ctx).Transaction(fn)
}

func phaseRowQuery(db *gorm.DB, strength string) *gorm.DB {
	q := db.Model(&models.SystemPhase{})
	// Row locks only exist on MySQL; SQLite serialises writers itself.
	if strength != "" && db.Dialector.Name() == "mysql" {
		q = q.Clauses(clause.Locking{Strength: strength})
	}
	return q.Where("id = ?", models.SystemPhaseRowID)
}

func loadPhaseRow(db *gorm.DB, strength string) (*models.SystemPhase, error) {
	var row models.SystemPhase
	err := phaseRowQuery(db, strength).Take(&row).Error
	if err == nil {
		return &row, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	seed := models.SystemPhase{
		ID:           models.SystemPhaseRowID,
		CurrentPhase: models.PhaseClosed,
		UpdatedAt:    time.Now(),
	}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return nil, err
	}
	if err := phaseRowQuery(db, strength).Take(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}
