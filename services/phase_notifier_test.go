package services

import (
	"testing"
	"time"

	"pkm-review-api/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMailPhaseNotifierSendsSummary(t *testing.T) {
	type sent struct {
		to      []string
		subject string
		body    string
	}
	ch := make(chan sent, 1)
	n := &MailPhaseNotifier{
		Recipients: []string{"ops@example.com"},
		Send: func(to []string, subject, html string) error {
			ch <- sent{to, subject, html}
			return nil
		},
	}

	n.PhaseChanged(&ToggleResult{
		Changed:       true,
		Phase:         models.PhaseReview,
		AffectedCount: 3,
		Flips:         []ToggleFlip{{Key: models.ToggleReview, Previous: false, New: true}},
	}, 9)

	select {
	case got := <-ch:
		assert.Equal(t, []string{"ops@example.com"}, got.to)
		assert.Equal(t, "[PKM] Phase is now REVIEW", got.subject)
		assert.Contains(t, got.body, "reviewEnabled: false &rarr; true")
		assert.Contains(t, got.body, "Proposals affected: 3")
	case <-time.After(2 * time.Second):
		require.Fail(t, "notification was not sent")
	}
}

func TestMailPhaseNotifierSkipsNoOps(t *testing.T) {
	called := false
	n := &MailPhaseNotifier{
		Recipients: []string{"ops@example.com"},
		Send:       func([]string, string, string) error { called = true; return nil },
	}
	n.PhaseChanged(&ToggleResult{Changed: false}, 1)
	(&MailPhaseNotifier{}).PhaseChanged(&ToggleResult{Changed: true}, 1)
	assert.False(t, called)
}
