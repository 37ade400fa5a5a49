package models

import "time"

// ToggleAuditLog is an append-only record of one toggle flip.
type ToggleAuditLog struct {
	AuditID       int64     `gorm:"primaryKey;autoIncrement;column:audit_id" json:"audit_id"`
	BatchID       string    `gorm:"column:batch_id;type:char(36);index" json:"batch_id"`
	ToggleKey     ToggleKey `gorm:"column:toggle_key;type:varchar(64);index" json:"toggle_key"`
	PreviousValue bool      `gorm:"column:previous_value" json:"previous_value"`
	NewValue      bool      `gorm:"column:new_value" json:"new_value"`
	ActorID       int       `gorm:"column:actor_id;index" json:"actor_id"`
	CreatedAt     time.Time `gorm:"column:created_at;index" json:"created_at"`
}

func (ToggleAuditLog) TableName() string {
	return "toggle_audit_logs"
}
