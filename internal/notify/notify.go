// Package notify shows the system notification that accompanies a fired
// reminder.
package notify

import (
	"context"
	"errors"
)

// ErrUnsupported is returned when no notification channel is available.
var ErrUnsupported = errors.New("notifications not supported")

// Notification is one platform notification.
type Notification struct {
	Title string
	Body  string
	// Silent suppresses the platform sound; the overlay plays its own.
	Silent bool
	// OnClick is called when the user clicks the notification, on
	// platforms that report clicks.
	OnClick func()
}

// Notifier delivers notifications.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notification) error

// Notify calls fn.
func (fn NotifierFunc) Notify(ctx context.Context, n Notification) error {
	return fn(ctx, n)
}

// Multi sends to every notifier and joins their errors. With no notifiers
// it reports ErrUnsupported.
type Multi []Notifier

// Notify delivers n to every channel.
func (m Multi) Notify(ctx context.Context, n Notification) error {
	if len(m) == 0 {
		return ErrUnsupported
	}
	var errs []error
	for _, nt := range m {
		if err := nt.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
