package services

import (
	"fmt"
	"html"
	"log"
	"strings"
	"sync"
	"time"

	"pkm-review-api/config"
	"pkm-review-api/utils"
)

// PhaseNotifier is told about every toggle change that flipped something.
type PhaseNotifier interface {
	PhaseChanged(result *ToggleResult, actorID int)
}

// MailPhaseNotifier emails a summary of the change to the operators.
type MailPhaseNotifier struct {
	Recipients []string
	Send       func(to []string, subject, html string) error

	pending sync.WaitGroup
}

// NewMailPhaseNotifier uses config.SendMail and the PHASE_NOTIFY_EMAILS list.
func NewMailPhaseNotifier() *MailPhaseNotifier {
	recipients, rejected := utils.FilterEmails(config.CurrentSettings().PhaseNotifyEmails)
	if len(rejected) > 0 {
		log.Printf("PHASE_NOTIFY_EMAILS: ignoring invalid addresses %v", rejected)
	}
	return &MailPhaseNotifier{
		Recipients: recipients,
		Send:       config.SendMail,
	}
}

// PhaseChanged sends the mail in the background; failures are only logged.
func (n *MailPhaseNotifier) PhaseChanged(result *ToggleResult, actorID int) {
	if n == nil || len(n.Recipients) == 0 || result == nil || !result.Changed {
		return
	}
	subject := fmt.Sprintf("[PKM] Phase is now %s", result.Phase)
	body := renderPhaseMail(result, actorID)
	to := append([]string(nil), n.Recipients...)
	send := n.Send
	n.pending.Add(1)
	go func() {
		defer n.pending.Done()
		if err := send(to, subject, body); err != nil {
			log.Printf("phase notification email send failed (subject=%q to=%v): %v", subject, to, err)
		}
	}()
}

// Wait blocks until every send started so far has returned or timeout
// elapses. It reports whether all sends finished.
func (n *MailPhaseNotifier) Wait(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		n.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

func renderPhaseMail(result *ToggleResult, actorID int) string {
	var b strings.Builder
	b.WriteString("<p>The review phase was changed by user ")
	b.WriteString(fmt.Sprintf("%d", actorID))
	b.WriteString(".</p><ul>")
	for _, f := range result.Flips {
		b.WriteString(fmt.Sprintf("<li>%s: %t &rarr; %t</li>", html.EscapeString(string(f.Key)), f.Previous, f.New))
	}
	b.WriteString("</ul>")
	b.WriteString(fmt.Sprintf("<p>Current phase: <b>%s</b>. Proposals affected: %d.</p>", html.EscapeString(string(result.Phase)), result.AffectedCount))
	if len(result.Failures) > 0 {
		b.WriteString(fmt.Sprintf("<p>%d proposals need manual reconciliation.</p>", len(result.Failures)))
	}
	return b.String()
}
