package models

import "github.com/shopspring/decimal"

// AdminCriterion is one item of the administrative checklist of a PKM type.
type AdminCriterion struct {
	CriterionID int    `gorm:"primaryKey;column:criterion_id" json:"criterion_id"`
	PkmTypeID   int    `gorm:"column:pkm_type_id;uniqueIndex:uq_admin_criterion_name,priority:1" json:"pkm_type_id"`
	Name        string `gorm:"column:name;type:varchar(191);uniqueIndex:uq_admin_criterion_name,priority:2" json:"name"`
	SortOrder   int    `gorm:"column:sort_order" json:"sort_order"`
}

func (AdminCriterion) TableName() string {
	return "admin_criteria"
}

// SubstantiveCriterion is one weighted scoring item of a PKM type.
type SubstantiveCriterion struct {
	CriterionID int             `gorm:"primaryKey;column:criterion_id" json:"criterion_id"`
	PkmTypeID   int             `gorm:"column:pkm_type_id;uniqueIndex:uq_substantive_criterion_name,priority:1" json:"pkm_type_id"`
	Name        string          `gorm:"column:name;type:varchar(191);uniqueIndex:uq_substantive_criterion_name,priority:2" json:"name"`
	Weight      decimal.Decimal `gorm:"column:weight;type:decimal(8,2)" json:"weight"`
	MinScore    int             `gorm:"column:min_score" json:"min_score"`
	MaxScore    int             `gorm:"column:max_score" json:"max_score"`
	SortOrder   int             `gorm:"column:sort_order" json:"sort_order"`
}

func (SubstantiveCriterion) TableName() string {
	return "substantive_criteria"
}

// InRange reports whether score lies inside the criterion's bounds.
func (c SubstantiveCriterion) InRange(score int) bool {
	return score >= c.MinScore && score <= c.MaxScore
}
