package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AdministrativeAssessment is a reviewer's error checklist for one assignment.
// TotalErrors and IsComplete are denormalised on every save; the entries stay
// the source of truth.
type AdministrativeAssessment struct {
	AssessmentID int                   `gorm:"primaryKey;column:assessment_id" json:"assessment_id"`
	AssignmentID int                   `gorm:"column:assignment_id;uniqueIndex" json:"assignment_id"`
	TotalErrors  int                   `gorm:"column:total_errors" json:"total_errors"`
	IsComplete   bool                  `gorm:"column:is_complete" json:"is_complete"`
	Notes        *string               `gorm:"column:notes;type:text" json:"notes,omitempty"`
	CreatedAt    time.Time             `gorm:"column:created_at" json:"created_at"`
	UpdatedAt    time.Time             `gorm:"column:updated_at" json:"updated_at"`
	Entries      []AdministrativeEntry `gorm:"foreignKey:AssessmentID;references:AssessmentID" json:"entries"`
}

func (AdministrativeAssessment) TableName() string {
	return "administrative_assessments"
}

// AdministrativeEntry records whether one administrative criterion has an error.
type AdministrativeEntry struct {
	EntryID      int       `gorm:"primaryKey;column:entry_id" json:"entry_id"`
	AssessmentID int       `gorm:"column:assessment_id;uniqueIndex:uq_admin_entry_criterion,priority:1" json:"assessment_id"`
	CriterionID  int       `gorm:"column:criterion_id;uniqueIndex:uq_admin_entry_criterion,priority:2" json:"criterion_id"`
	HasError     bool      `gorm:"column:has_error" json:"has_error"`
	UpdatedAt    time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (AdministrativeEntry) TableName() string {
	return "administrative_assessment_entries"
}

// SubstantiveAssessment is a reviewer's weighted scoring sheet for one assignment.
type SubstantiveAssessment struct {
	AssessmentID int                `gorm:"primaryKey;column:assessment_id" json:"assessment_id"`
	AssignmentID int                `gorm:"column:assignment_id;uniqueIndex" json:"assignment_id"`
	TotalScore   decimal.Decimal    `gorm:"column:total_score;type:decimal(12,2)" json:"total_score"`
	IsComplete   bool               `gorm:"column:is_complete" json:"is_complete"`
	Comment      *string            `gorm:"column:comment;type:text" json:"comment,omitempty"`
	CreatedAt    time.Time          `gorm:"column:created_at" json:"created_at"`
	UpdatedAt    time.Time          `gorm:"column:updated_at" json:"updated_at"`
	Entries      []SubstantiveEntry `gorm:"foreignKey:AssessmentID;references:AssessmentID" json:"entries"`
}

func (SubstantiveAssessment) TableName() string {
	return "substantive_assessments"
}

// SubstantiveEntry is the score given for one substantive criterion.
type SubstantiveEntry struct {
	EntryID      int       `gorm:"primaryKey;column:entry_id" json:"entry_id"`
	AssessmentID int       `gorm:"column:assessment_id;uniqueIndex:uq_substantive_entry_criterion,priority:1" json:"assessment_id"`
	CriterionID  int       `gorm:"column:criterion_id;uniqueIndex:uq_substantive_entry_criterion,priority:2" json:"criterion_id"`
	Score        int       `gorm:"column:score" json:"score"`
	UpdatedAt    time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (SubstantiveEntry) TableName() string {
	return "substantive_assessment_entries"
}
