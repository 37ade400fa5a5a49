package models

// All returns every model managed by AutoMigrate.
func All() []interface{} {
	return []interface{}{
		&Team{},
		&TeamMember{},
		&Proposal{},
		&ProposalStatusHistory{},
		&SystemPhase{},
		&ToggleAuditLog{},
		&ReviewAssignment{},
		&AdministrativeAssessment{},
		&AdministrativeEntry{},
		&SubstantiveAssessment{},
		&SubstantiveEntry{},
		&AdminCriterion{},
		&SubstantiveCriterion{},
	}
}
