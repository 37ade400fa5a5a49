package models

import "time"

// Phase is the system-wide workflow mode.
type Phase string

const (
	PhaseClosed     Phase = "CLOSED"
	PhaseSubmission Phase = "SUBMISSION"
	PhaseReview     Phase = "REVIEW"
	PhaseRevision   Phase = "REVISION"
)

// ToggleKey names one of the phase switches exposed to administrators.
type ToggleKey string

const (
	ToggleUploadProposal ToggleKey = "uploadProposalEnabled"
	ToggleReview         ToggleKey = "reviewEnabled"
	ToggleUploadRevision ToggleKey = "uploadRevisionEnabled"
)

// ToggleKeys lists the toggles in their canonical order.
var ToggleKeys = []ToggleKey{
	ToggleUploadProposal,
	ToggleReview,
	ToggleUploadRevision,
}

var togglePhases = map[ToggleKey]Phase{
	ToggleUploadProposal: PhaseSubmission,
	ToggleReview:         PhaseReview,
	ToggleUploadRevision: PhaseRevision,
}

// Phase returns the phase a toggle switches on.
func (k ToggleKey) Phase() (Phase, bool) {
	p, ok := togglePhases[k]
	return p, ok
}

// Valid reports whether k is a known toggle.
func (k ToggleKey) Valid() bool {
	_, ok := togglePhases[k]
	return ok
}

// Toggles derives the toggle view of a phase. At most one entry is true.
func (p Phase) Toggles() map[ToggleKey]bool {
	out := make(map[ToggleKey]bool, len(ToggleKeys))
	for _, key := range ToggleKeys {
		out[key] = togglePhases[key] == p
	}
	return out
}

// SystemPhase is the single versioned row holding the current phase.
// The toggle values are derived from CurrentPhase so that two toggles can
// never be stored as enabled at the same time.
type SystemPhase struct {
	ID           int       `gorm:"primaryKey;column:id" json:"id"`
	CurrentPhase Phase     `gorm:"column:current_phase;type:varchar(16);not null;default:CLOSED" json:"current_phase"`
	Version      int64     `gorm:"column:version;not null;default:0" json:"version"`
	UpdatedBy    *int      `gorm:"column:updated_by" json:"updated_by"`
	UpdatedAt    time.Time `gorm:"column:updated_at" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (SystemPhase) TableName() string {
	return "system_phase"
}

// SystemPhaseRowID is the primary key of the only system_phase row.
const SystemPhaseRowID = 1
