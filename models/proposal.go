package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProposalStatus is the lifecycle state of a proposal.
type ProposalStatus string

const (
	StatusDraft         ProposalStatus = "draft"
	StatusSubmitted     ProposalStatus = "submitted"
	StatusUnderReview   ProposalStatus = "under_review"
	StatusReviewed      ProposalStatus = "reviewed"
	StatusNotReviewed   ProposalStatus = "not_reviewed"
	StatusNeedsRevision ProposalStatus = "needs_revision"
	StatusRevised       ProposalStatus = "revised"
)

// ProposalStatuses lists every status in happy-path order.
var ProposalStatuses = []ProposalStatus{
	StatusDraft,
	StatusSubmitted,
	StatusUnderReview,
	StatusReviewed,
	StatusNotReviewed,
	StatusNeedsRevision,
	StatusRevised,
}

// Valid reports whether s is one of the seven known statuses.
func (s ProposalStatus) Valid() bool {
	for _, known := range ProposalStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Proposal represents the proposals table
type Proposal struct {
	ProposalID  int                 `gorm:"primaryKey;column:proposal_id" json:"proposal_id"`
	TeamID      int                 `gorm:"column:team_id;index" json:"team_id"`
	PkmTypeID   int                 `gorm:"column:pkm_type_id;index" json:"pkm_type_id"`
	Title       string              `gorm:"column:title;type:varchar(255)" json:"title"`
	Status      ProposalStatus      `gorm:"column:status;type:varchar(32);index;default:draft" json:"status"`
	ReviewScore decimal.NullDecimal `gorm:"column:review_score;type:decimal(10,2)" json:"review_score"`
	SubmittedAt *time.Time          `gorm:"column:submitted_at" json:"submitted_at,omitempty"`
	ReviewedAt  *time.Time          `gorm:"column:reviewed_at" json:"reviewed_at,omitempty"`
	CreatedAt   time.Time           `gorm:"column:created_at" json:"created_at"`
	UpdatedAt   time.Time           `gorm:"column:updated_at" json:"updated_at"`
	DeletedAt   *time.Time          `gorm:"column:deleted_at" json:"deleted_at,omitempty"`

	// Relations
	Team *Team `gorm:"foreignKey:TeamID;references:TeamID" json:"team,omitempty"`
}

func (Proposal) TableName() string {
	return "proposals"
}

// Team groups the students that own a proposal.
type Team struct {
	TeamID    int          `gorm:"primaryKey;column:team_id" json:"team_id"`
	Name      string       `gorm:"column:name;type:varchar(150)" json:"name"`
	CreatedAt time.Time    `gorm:"column:created_at" json:"created_at"`
	Members   []TeamMember `gorm:"foreignKey:TeamID;references:TeamID" json:"members,omitempty"`
}

func (Team) TableName() string {
	return "teams"
}

// TeamMember links a student user to a team.
type TeamMember struct {
	TeamMemberID int    `gorm:"primaryKey;column:team_member_id" json:"team_member_id"`
	TeamID       int    `gorm:"column:team_id;uniqueIndex:uq_team_member,priority:1" json:"team_id"`
	UserID       int    `gorm:"column:user_id;uniqueIndex:uq_team_member,priority:2;index" json:"user_id"`
	IsLeader     bool   `gorm:"column:is_leader" json:"is_leader"`
	Role         string `gorm:"column:role;type:varchar(32)" json:"role,omitempty"`
}

func (TeamMember) TableName() string {
	return "team_members"
}
