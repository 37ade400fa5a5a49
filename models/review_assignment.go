package models

import "time"

// ReviewAssignment links one reviewer to one proposal in a reviewer slot.
type ReviewAssignment struct {
	AssignmentID int       `gorm:"primaryKey;column:assignment_id" json:"assignment_id"`
	ProposalID   int       `gorm:"column:proposal_id;uniqueIndex:uq_assignment_slot,priority:1" json:"proposal_id"`
	ReviewerID   int       `gorm:"column:reviewer_id;index" json:"reviewer_id"`
	SlotNumber   int       `gorm:"column:slot_number;uniqueIndex:uq_assignment_slot,priority:2" json:"slot_number"`
	CreatedAt    time.Time `gorm:"column:created_at" json:"created_at"`

	// Relations
	Proposal                 *Proposal                 `gorm:"foreignKey:ProposalID;references:ProposalID" json:"proposal,omitempty"`
	AdministrativeAssessment *AdministrativeAssessment `gorm:"foreignKey:AssignmentID;references:AssignmentID" json:"administrative_assessment,omitempty"`
	SubstantiveAssessment    *SubstantiveAssessment    `gorm:"foreignKey:AssignmentID;references:AssignmentID" json:"substantive_assessment,omitempty"`
}

func (ReviewAssignment) TableName() string {
	return "review_assignments"
}
