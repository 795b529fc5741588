package mail

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

type Mailer interface {
	SendPasswordReset(ctx context.Context, to, resetURL string) error
}

type SendGridMailer struct {
	APIKey string
	From   string
}

func NewSendGridMailer(apiKey, from string) *SendGridMailer {
	return &SendGridMailer{APIKey: apiKey, From: from}
}

func (m *SendGridMailer) SendPasswordReset(ctx context.Context, to, resetURL string) error {
	if m.APIKey == "" {
		return fmt.Errorf("sendgrid api key is empty")
	}

	fromEmail := sgmail.NewEmail("Shop API", m.From)
	toEmail := sgmail.NewEmail("", to)

	subject := "Your password reset token"
	plain := "Follow this link to reset your password: " + resetURL
	html := fmt.Sprintf(`<div style="font-family: sans-serif; line-height: 2;">
	<h2>Password reset requested</h2>
	<p>This link is valid for one hour and can be used once.</p>
	<p><a href="%s">Click here to reset your password</a></p>
</div>`, resetURL)

	message := sgmail.NewSingleEmail(fromEmail, subject, toEmail, plain, html)

	client := sendgrid.NewSendClient(m.APIKey)
	response, err := client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("sendgrid send error: %w", err)
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("sendgrid send failed: status=%d, body=%s", response.StatusCode, response.Body)
	}
	return nil
}
