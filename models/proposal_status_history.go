package models

import "time"

// ProposalStatusHistory tracks every accepted status change of a proposal.
type ProposalStatusHistory struct {
	HistoryID  int             `gorm:"primaryKey;column:history_id" json:"history_id"`
	ProposalID int             `gorm:"column:proposal_id;index" json:"proposal_id"`
	OldStatus  *ProposalStatus `gorm:"column:old_status;type:varchar(32)" json:"old_status"`
	NewStatus  ProposalStatus  `gorm:"column:new_status;type:varchar(32)" json:"new_status"`
	ChangedBy  int             `gorm:"column:changed_by" json:"changed_by"`
	Reason     *string         `gorm:"column:reason;type:varchar(64)" json:"reason"`
	CreatedAt  time.Time       `gorm:"column:created_at" json:"created_at"`
}

// TableName specifies the table for ProposalStatusHistory.
func (ProposalStatusHistory) TableName() string {
	return "proposal_status_history"
}
