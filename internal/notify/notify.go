// Package notify delivers alert notifications to the desktop.
package notify

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/Dicklesworthstone/activity_monitor/internal/model"
)

// Notifier sends a notification. Failures are informational only.
type Notifier interface {
	Send(ctx context.Context, n model.Notification) error
}

// execCommand is swapped by tests.
var execCommand = exec.CommandContext

// Desktop shells out to notify-send.
type Desktop struct {
	Binary  string
	Timeout time.Duration
}

func NewDesktop() *Desktop {
	return &Desktop{Binary: "notify-send", Timeout: 2 * time.Second}
}

func (d *Desktop) Send(ctx context.Context, n model.Notification) error {
	ctx, cancel := context.WithTimeout(ctx, d.Timeout)
	defer cancel()

	out, err := execCommand(ctx, d.Binary, Args(n)...).CombinedOutput()
	if ctx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("%s timed out after %v", d.Binary, d.Timeout)
	}
	if err != nil {
		return fmt.Errorf("%s: %w: %s", d.Binary, err, out)
	}
	return nil
}

// Args builds the notify-send argument list.
func Args(n model.Notification) []string {
	urgency, icon := "normal", "dialog-information"
	if n.Urgent {
		urgency, icon = "critical", "dialog-warning"
	}
	return []string{"-u", urgency, "-i", icon, n.Title, n.Body}
}

// Discard drops every notification.
type Discard struct{}

func (Discard) Send(context.Context, model.Notification) error { return nil }
