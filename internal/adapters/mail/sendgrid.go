package mail

import (
	"context"
	"fmt"

	sendgrid "github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

// SendGridNotifier implements domain.Notifier over the SendGrid v3 API. Send
// reports failure on transport errors and non-2xx API responses, so a
// workflow never treats an unconfirmed notification as delivered.
type SendGridNotifier struct {
	client *sendgrid.Client
	from   string
}

func NewSendGridNotifier(apiKey, from string) *SendGridNotifier {
	return &SendGridNotifier{
		client: sendgrid.NewSendClient(apiKey),
		from:   from,
	}
}

func (n *SendGridNotifier) Send(ctx context.Context, to, subject, htmlBody string) error {
	message := sgmail.NewSingleEmail(
		sgmail.NewEmail("", n.from),
		subject,
		sgmail.NewEmail("", to),
		"",
		htmlBody,
	)

	resp, err := n.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("sendgrid send to %s: %w", to, err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid send to %s: status %d: %s", to, resp.StatusCode, resp.Body)
	}
	return nil
}
