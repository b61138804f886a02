package testutil

import (
	"context"
	"regexp"
	"sync"
	"testing"

	"github.com/dalemusser/shepherd/internal/app/system/mailer"
)

// Outbox is a mailer.Notifier that records messages instead of sending them.
// While Fail is set every Send returns it.
type Outbox struct {
	mu   sync.Mutex
	sent []mailer.Email
	Fail error
}

func (o *Outbox) Send(_ context.Context, e mailer.Email) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.Fail != nil {
		return o.Fail
	}
	o.sent = append(o.sent, e)
	return nil
}

// Sent returns a copy of the recorded messages.
func (o *Outbox) Sent() []mailer.Email {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]mailer.Email(nil), o.sent...)
}

var codeRE = regexp.MustCompile(`\n\s+(\d{4})\n`)

// LastCode extracts the one-time code from the most recent message.
func (o *Outbox) LastCode(t *testing.T) string {
	t.Helper()
	sent := o.Sent()
	if len(sent) == 0 {
		t.Fatal("no mail sent")
	}
	m := codeRE.FindStringSubmatch(sent[len(sent)-1].TextBody)
	if m == nil {
		t.Fatalf("no code in mail body %q", sent[len(sent)-1].TextBody)
	}
	return m[1]
}
