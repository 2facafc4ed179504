package notify

import (
	"context"
	"fmt"

	"github.com/gen2brain/beeep"
)

// Desktop shows platform notifications through beeep. Clicks are not
// reported, so OnClick is never called.
type Desktop struct {
	// Icon is an optional path to the notification icon.
	Icon string

	notify func(title, message, icon string) error
}

// NewDesktop creates a desktop notifier.
func NewDesktop(icon string) *Desktop {
	return &Desktop{Icon: icon, notify: func(title, message, icon string) error {
		return beeep.Notify(title, message, icon)
	}}
}

// Notify shows n.
func (d *Desktop) Notify(ctx context.Context, n Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := d.notify(n.Title, n.Body, d.Icon); err != nil {
		return fmt.Errorf("failed to show desktop notification: %w", err)
	}
	return nil
}
