// Package notify delivers operator alerts to the bot superusers, for
// example when the companion API starts blocking this host.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
)

// Notifier sends a plain text alert to the superusers.
type Notifier interface {
	NotifySuperusers(ctx context.Context, message string) error
}

// Config holds notifier configuration
type Config struct {
	WebhookURL string        // endpoint receiving JSON alerts
	Timeout    time.Duration // HTTP request timeout
	APIKey     string        // Resend API key
	FromEmail  string
	FromName   string
	To         []string
}

// LogNotifier writes alerts to the log. It is the fallback when nothing
// else is configured.
type LogNotifier struct{}

func (LogNotifier) NotifySuperusers(_ context.Context, message string) error {
	log.Warn().Str("component", "notify").Str("alert", message).Msg("superuser alert")
	return nil
}

// Multi fans an alert out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) NotifySuperusers(ctx context.Context, message string) error {
	var errs []error
	for _, n := range m {
		if err := n.NotifySuperusers(ctx, message); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
