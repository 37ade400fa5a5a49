package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadSettingsDefaults(t *testing.T) {
	for _, k := range []string{"SERVER_PORT", "REVIEW_QUORUM", "PHASE_LOCK_NAME", "PHASE_LOCK_WAIT_SECONDS", "PHASE_NOTIFY_EMAILS", "LOG_DIR"} {
		t.Setenv(k, "")
	}
	s := LoadSettings()
	assert.Equal(t, "8080", s.ServerPort)
	assert.Equal(t, 0, s.ReviewQuorum)
	assert.Equal(t, "pkm_phase_toggle", s.PhaseLockName)
	assert.Equal(t, 5, s.PhaseLockWaitSeconds)
	assert.Empty(t, s.PhaseNotifyEmails)
	assert.Equal(t, "logs", s.LogDir)
}

func TestLoadSettingsOverrides(t *testing.T) {
	t.Setenv("REVIEW_QUORUM", "2")
	t.Setenv("PHASE_LOCK_NAME", "off")
	t.Setenv("PHASE_NOTIFY_EMAILS", "a@example.com, ,b@example.com")
	t.Setenv("PHASE_LOCK_WAIT_SECONDS", "soon")

	s := LoadSettings()
	assert.Equal(t, 2, s.ReviewQuorum)
	assert.Equal(t, "", s.PhaseLockName)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, s.PhaseNotifyEmails)
	assert.Equal(t, 5, s.PhaseLockWaitSeconds, "invalid numbers fall back")

	t.Setenv("REVIEW_QUORUM", "-3")
	assert.Equal(t, 0, LoadSettings().ReviewQuorum)
}

func TestLogFilePath(t *testing.T) {
	assert.Equal(t, filepath.Join("logs", "pkm-api.log"), LogFilePath(""))
	assert.Equal(t, filepath.Join("/var/log/pkm", "pkm-api.log"), LogFilePath("/var/log/pkm"))
}

func TestOpenDBRejectsUnknownDriver(t *testing.T) {
	t.Setenv("DB_DRIVER", "postgres")
	_, err := OpenDB()
	assert.Error(t, err)
}

func TestOpenDBSQLite(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_PATH", filepath.Join(t.TempDir(), "pkm.db"))
	db, err := OpenDB()
	if assert.NoError(t, err) {
		assert.Equal(t, "sqlite", db.Dialector.Name())
		sqlDB, _ := db.DB()
		_ = sqlDB.Close()
	}
}
