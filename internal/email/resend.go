package email

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	resend "github.com/resend/resend-go/v3"
)

// ResendProvider delivers mail through the Resend API.
type ResendProvider struct {
	from   string
	client *resend.Client
}

func NewResendProvider(apiKey, from string, httpClient *http.Client) *ResendProvider {
	var client *resend.Client
	if httpClient != nil {
		client = resend.NewCustomClient(httpClient, apiKey)
	} else {
		client = resend.NewClient(apiKey)
	}
	return &ResendProvider{from: from, client: client}
}

func (r *ResendProvider) SendEmail(ctx context.Context, email *Email) error {
	request, err := r.request(email)
	if err != nil {
		return err
	}
	if _, err := r.client.Emails.SendWithContext(ctx, request); err != nil {
		return fmt.Errorf("resend: send %q: %w", email.Category, err)
	}
	return nil
}

func (r *ResendProvider) request(email *Email) (*resend.SendEmailRequest, error) {
	switch {
	case email == nil:
		return nil, fmt.Errorf("email is required")
	case strings.TrimSpace(email.To) == "":
		return nil, fmt.Errorf("recipient is required")
	case email.HTML == "" && email.Text == "":
		return nil, fmt.Errorf("email body is empty")
	}

	request := &resend.SendEmailRequest{
		From:    r.from,
		To:      []string{email.To},
		Subject: email.Subject,
		Html:    email.HTML,
		Text:    email.Text,
	}
	if email.Category != "" {
		request.Tags = []resend.Tag{{Name: "category", Value: email.Category}}
	}
	return request, nil
}
