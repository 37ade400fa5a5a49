package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
)

// Settings holds the environment driven knobs of the review service.
type Settings struct {
	Environment string
	GinMode     string
	ServerPort  string
	JWTSecret   string
	LogDir      string

	// ReviewQuorum is the number of complete reviewer assignments a proposal
	// needs to be finalized as reviewed. Zero means every assignment.
	ReviewQuorum int

	// PhaseLockName is the MySQL advisory lock taken around toggle changes.
	// Empty disables the advisory lock.
	PhaseLockName        string
	PhaseLockWaitSeconds int

	PhaseNotifyEmails []string
}

var (
	settingsOnce sync.Once
	settings     Settings
)

// LoadSettings reads Settings from the process environment.
func LoadSettings() Settings {
	s := Settings{
		Environment:          strings.ToLower(os.Getenv("ENVIRONMENT")),
		GinMode:              os.Getenv("GIN_MODE"),
		ServerPort:           envOr("SERVER_PORT", "8080"),
		JWTSecret:            os.Getenv("JWT_SECRET"),
		LogDir:               envOr("LOG_DIR", "logs"),
		ReviewQuorum:         envInt("REVIEW_QUORUM", 0),
		PhaseLockName:        envOr("PHASE_LOCK_NAME", "pkm_phase_toggle"),
		PhaseLockWaitSeconds: envInt("PHASE_LOCK_WAIT_SECONDS", 5),
		PhaseNotifyEmails:    splitList(os.Getenv("PHASE_NOTIFY_EMAILS")),
	}
	if strings.EqualFold(os.Getenv("PHASE_LOCK_NAME"), "off") {
		s.PhaseLockName = ""
	}
	if s.ReviewQuorum < 0 {
		log.Printf("Warning: REVIEW_QUORUM=%d is negative, falling back to all assignments", s.ReviewQuorum)
		s.ReviewQuorum = 0
	}
	return s
}

// CurrentSettings returns the settings loaded on first use.
func CurrentSettings() Settings {
	settingsOnce.Do(func() {
		settings = LoadSettings()
	})
	return settings
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("Warning: invalid %s=%q, using %d", key, raw, fallback)
		return fallback
	}
	return v
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
