package services

import (
	"context"
	"fmt"
	"io"
	"strings"

	"pkm-review-api/config"
	"pkm-review-api/models"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// weightPlaces and maxWeight mirror the decimal(8,2) weight column.
const weightPlaces = 2

var maxWeight = decimal.New(1, 6)

// CriteriaSet is the administrative and substantive catalog of one PKM type.
type CriteriaSet struct {
	PkmTypeID      int                           `json:"pkm_type_id"`
	Administrative []models.AdminCriterion       `json:"administrative"`
	Substantive    []models.SubstantiveCriterion `json:"substantive"`
}

// SubstantiveByID indexes the substantive criteria by id.
func (c *CriteriaSet) SubstantiveByID() map[int]models.SubstantiveCriterion {
	out := make(map[int]models.SubstantiveCriterion, len(c.Substantive))
	for _, crit := range c.Substantive {
		out[crit.CriterionID] = crit
	}
	return out
}

// CriteriaCatalog reads the per-PKM-type criteria master data.
type CriteriaCatalog struct {
	db *gorm.DB
}

// NewCriteriaCatalog instantiates the catalog.
func NewCriteriaCatalog(db *gorm.DB) *CriteriaCatalog {
	if db == nil {
		db = config.DB
	}
	return &CriteriaCatalog{db: db}
}

// ForPkmType loads both criteria lists ordered by sort_order.
func (c *CriteriaCatalog) ForPkmType(ctx context.Context, pkmTypeID int) (*CriteriaSet, error) {
	set := &CriteriaSet{PkmTypeID: pkmTypeID}
	if err := c.db.WithContext(ctx).
		Where("pkm_type_id = ?", pkmTypeID).
		Order("sort_order ASC, criterion_id ASC").
		Find(&set.Administrative).Error; err != nil {
		return nil, persistenceErr("load administrative criteria", err)
	}
	if err := c.db.WithContext(ctx).
		Where("pkm_type_id = ?", pkmTypeID).
		Order("sort_order ASC, criterion_id ASC").
		Find(&set.Substantive).Error; err != nil {
		return nil, persistenceErr("load substantive criteria", err)
	}
	return set, nil
}

// CriteriaSeedFile is the YAML layout accepted by SeedFromYAML.
type CriteriaSeedFile struct {
	PkmTypes []CriteriaSeedType `yaml:"pkm_types"`
}

type CriteriaSeedType struct {
	ID             int                     `yaml:"id"`
	Name           string                  `yaml:"name"`
	Administrative []CriteriaSeedAdmin     `yaml:"administrative"`
	Substantive    []CriteriaSeedSubstance `yaml:"substantive"`
}

type CriteriaSeedAdmin struct {
	Name string `yaml:"name"`
}

type CriteriaSeedSubstance struct {
	Name     string `yaml:"name"`
	Weight   string `yaml:"weight"`
	MinScore int    `yaml:"min_score"`
	MaxScore int    `yaml:"max_score"`
}

// SeedSummary counts the rows written by SeedFromYAML.
type SeedSummary struct {
	PkmTypes       int `json:"pkm_types"`
	Administrative int `json:"administrative"`
	Substantive    int `json:"substantive"`
}

// ParseCriteriaSeed decodes and validates a seed document.
func ParseCriteriaSeed(r io.Reader) (*CriteriaSeedFile, error) {
	var seed CriteriaSeedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil {
		return nil, validationErr("decode criteria seed: %v", err)
	}
	for _, t := range seed.PkmTypes {
		if t.ID <= 0 {
			return nil, validationErr("pkm type %q has no id", t.Name)
		}
		for _, s := range t.Substantive {
			if strings.TrimSpace(s.Name) == "" {
				return nil, validationErr("pkm type %d has an unnamed substantive criterion", t.ID)
			}
			w, err := decimal.NewFromString(s.Weight)
			if err != nil || !w.IsPositive() {
				return nil, validationErr("criterion %q: weight %q must be a positive decimal", s.Name, s.Weight)
			}
			if !w.Equal(w.Round(weightPlaces)) || w.GreaterThanOrEqual(maxWeight) {
				return nil, validationErr("criterion %q: weight %q must fit decimal(8,2)", s.Name, s.Weight)
			}
			if s.MinScore > s.MaxScore {
				return nil, validationErr("criterion %q: min_score %d exceeds max_score %d", s.Name, s.MinScore, s.MaxScore)
			}
		}
		for _, a := range t.Administrative {
			if strings.TrimSpace(a.Name) == "" {
				return nil, validationErr("pkm type %d has an unnamed administrative criterion", t.ID)
			}
		}
	}
	return &seed, nil
}

// SeedFromYAML upserts the catalog described by r, keyed by (pkm type, name).
func (c *CriteriaCatalog) SeedFromYAML(ctx context.Context, r io.Reader) (*SeedSummary, error) {
	seed, err := ParseCriteriaSeed(r)
	if err != nil {
		return nil, err
	}

	summary := &SeedSummary{}
	err = c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, t := range seed.PkmTypes {
			summary.PkmTypes++
			for i, a := range t.Administrative {
				row := models.AdminCriterion{
					PkmTypeID: t.ID,
					Name:      strings.TrimSpace(a.Name),
					SortOrder: i + 1,
				}
				if err := tx.Clauses(clause.OnConflict{
					Columns:   []clause.Column{{Name: "pkm_type_id"}, {Name: "name"}},
					DoUpdates: clause.AssignmentColumns([]string{"sort_order"}),
				}).Create(&row).Error; err != nil {
					return fmt.Errorf("admin criterion %q: %w", a.Name, err)
				}
				summary.Administrative++
			}
			for i, s := range t.Substantive {
				row := models.SubstantiveCriterion{
					PkmTypeID: t.ID,
					Name:      strings.TrimSpace(s.Name),
					Weight:    decimal.RequireFromString(s.Weight),
					MinScore:  s.MinScore,
					MaxScore:  s.MaxScore,
					SortOrder: i + 1,
				}
				if err := tx.Clauses(clause.OnConflict{
					Columns:   []clause.Column{{Name: "pkm_type_id"}, {Name: "name"}},
					DoUpdates: clause.AssignmentColumns([]string{"weight", "min_score", "max_score", "sort_order"}),
				}).Create(&row).Error; err != nil {
					return fmt.Errorf("substantive criterion %q: %w", s.Name, err)
				}
				summary.Substantive++
			}
		}
		return nil
	})
	if err != nil {
		return nil, persistenceErr("seed criteria", err)
	}
	return summary, nil
}
