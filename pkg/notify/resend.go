package notify

import (
	"context"
	"fmt"
	"html"

	"github.com/resend/resend-go/v2"
	"github.com/rs/zerolog/log"
)

// ResendNotifier mails alerts to the superusers through Resend
type ResendNotifier struct {
	client *resend.Client
	config *Config
}

// NewResendNotifier creates a notifier sending from config.FromEmail
func NewResendNotifier(config *Config) (*ResendNotifier, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("resend API key is required")
	}

	if config.FromEmail == "" {
		return nil, fmt.Errorf("from email is required")
	}

	if len(config.To) == 0 {
		return nil, fmt.Errorf("at least one recipient is required")
	}

	return &ResendNotifier{
		client: resend.NewClient(config.APIKey),
		config: config,
	}, nil
}

func (n *ResendNotifier) NotifySuperusers(ctx context.Context, message string) error {
	params := &resend.SendEmailRequest{
		From:    fmt.Sprintf("%s <%s>", n.config.FromName, n.config.FromEmail),
		To:      n.config.To,
		Subject: "Wuthering Waves companion alert",
		Html:    alertTemplate(message),
		Text:    message,
	}

	sent, err := n.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return fmt.Errorf("failed to send alert email: %w", err)
	}

	log.Debug().Str("component", "notify").Str("email_id", sent.Id).Msg("superuser alert mailed")
	return nil
}

func alertTemplate(message string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif;">
    <h2 style="color: #B91C1C;">Companion API alert</h2>
    <pre style="white-space: pre-wrap;">%s</pre>
</body>
</html>`, html.EscapeString(message))
}
