// utils/validator.go - Input sanitising helpers
package utils

import (
	"regexp"
	"strings"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// ValidateEmail checks if email is valid
func ValidateEmail(email string) bool {
	return emailRegex.MatchString(email)
}

// FilterEmails keeps the valid, de-duplicated addresses and returns the
// rejected ones separately.
func FilterEmails(list []string) (valid, rejected []string) {
	seen := make(map[string]struct{}, len(list))
	for _, raw := range list {
		addr := strings.TrimSpace(raw)
		if addr == "" {
			continue
		}
		if !ValidateEmail(addr) {
			rejected = append(rejected, addr)
			continue
		}
		key := strings.ToLower(addr)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		valid = append(valid, addr)
	}
	return valid, rejected
}

// SanitizeInput removes potentially harmful characters
func SanitizeInput(input string) string {
	// Remove leading/trailing spaces
	input = strings.TrimSpace(input)

	// Remove null bytes
	input = strings.ReplaceAll(input, "\x00", "")

	return input
}
