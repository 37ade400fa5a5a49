package utils

import (
	"fmt"
	"strings"

	"pkm-review-api/models"
)

var (
	toggleKeySynonyms = map[models.ToggleKey][]string{
		models.ToggleUploadProposal: {
			"uploadProposalEnabled",
			"upload_proposal_enabled",
			"upload_proposal",
			"submission",
		},
		models.ToggleReview: {
			"reviewEnabled",
			"review_enabled",
			"review",
		},
		models.ToggleUploadRevision: {
			"uploadRevisionEnabled",
			"upload_revision_enabled",
			"upload_revision",
			"revision",
		},
	}
	toggleAliasToCanonical = buildToggleAliasMap()

	statusSynonyms = map[models.ProposalStatus][]string{
		models.StatusDraft:         {"draft"},
		models.StatusSubmitted:     {"submitted"},
		models.StatusUnderReview:   {"under_review", "under-review", "in_review"},
		models.StatusReviewed:      {"reviewed"},
		models.StatusNotReviewed:   {"not_reviewed", "not-reviewed", "unreviewed"},
		models.StatusNeedsRevision: {"needs_revision", "needs-revision", "revision_requested"},
		models.StatusRevised:       {"revised"},
	}
	statusAliasToCanonical = buildStatusAliasMap()
)

func normalizeKey(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func buildToggleAliasMap() map[string]models.ToggleKey {
	aliasMap := make(map[string]models.ToggleKey)
	for canonical, synonyms := range toggleKeySynonyms {
		aliasMap[normalizeKey(string(canonical))] = canonical
		for _, alias := range synonyms {
			if normalized := normalizeKey(alias); normalized != "" {
				aliasMap[normalized] = canonical
			}
		}
	}
	return aliasMap
}

func buildStatusAliasMap() map[string]models.ProposalStatus {
	aliasMap := make(map[string]models.ProposalStatus)
	for canonical, synonyms := range statusSynonyms {
		aliasMap[normalizeKey(string(canonical))] = canonical
		for _, alias := range synonyms {
			if normalized := normalizeKey(alias); normalized != "" {
				aliasMap[normalized] = canonical
			}
		}
	}
	return aliasMap
}

// NormalizeToggleKey maps an API or CLI spelling of a toggle to its key.
// Unknown names are returned unchanged with ok=false so callers can report
// them as unknown toggles.
func NormalizeToggleKey(name string) (models.ToggleKey, bool) {
	if key, ok := toggleAliasToCanonical[normalizeKey(name)]; ok {
		return key, true
	}
	return models.ToggleKey(strings.TrimSpace(name)), false
}

// NormalizeStatus maps a status spelling to the canonical proposal status.
func NormalizeStatus(name string) (models.ProposalStatus, error) {
	if st, ok := statusAliasToCanonical[normalizeKey(name)]; ok {
		return st, nil
	}
	return "", fmt.Errorf("unknown proposal status %q", name)
}

// ParseStatusList normalizes a comma separated status filter such as
// "under-review,reviewed". Empty input yields nil.
func ParseStatusList(raw string) ([]models.ProposalStatus, error) {
	var out []models.ProposalStatus
	seen := make(map[models.ProposalStatus]bool)
	for _, part := range strings.Split(raw, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		st, err := NormalizeStatus(part)
		if err != nil {
			return nil, err
		}
		if !seen[st] {
			seen[st] = true
			out = append(out, st)
		}
	}
	return out, nil
}

// ParseSwitch reads on/off style values used by the CLI.
func ParseSwitch(value string) (bool, error) {
	switch normalizeKey(value) {
	case "on", "true", "1", "yes", "enable", "enabled":
		return true, nil
	case "off", "false", "0", "no", "disable", "disabled":
		return false, nil
	}
	return false, fmt.Errorf("expected on or off, got %q", value)
}
