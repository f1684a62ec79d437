package email

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingProvider struct {
	sent []*Email
	err  error
}

func (p *recordingProvider) SendEmail(_ context.Context, email *Email) error {
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, email)
	return nil
}

func TestRenderOrderConfirmation(t *testing.T) {
	t.Parallel()

	renderer, err := NewRenderer()
	require.NoError(t, err)

	email, err := renderer.Render(TemplateOrderConfirmation, "ada@example.com", &OrderInfo{
		OrderNumber:     "AH-1700000000000-ABC123",
		CustomerName:    "Ada <Obi>",
		StoreName:       "Ankara House",
		ShippingAddress: "1 Allen Ave\nIkeja, Lagos",
		Items:           []OrderItem{{Name: "Adire Kaftan", Variant: "M", Quantity: 2, TotalPrice: "₦18,000.00"}},
		Subtotal:        "₦18,000.00",
		Shipping:        "₦2,000.00",
		Tax:             "₦0.00",
		Total:           "₦20,000.00",
	})
	require.NoError(t, err)

	assert.Equal(t, "ada@example.com", email.To)
	assert.Equal(t, "Order Confirmed - AH-1700000000000-ABC123 - Ankara House", email.Subject)
	assert.Contains(t, email.Text, "Adire Kaftan (M) x2 - ₦18,000.00")
	assert.Contains(t, email.Text, "Total: ₦20,000.00")
	assert.Contains(t, email.HTML, "Ada &lt;Obi&gt;", "HTML output escapes customer input")
	assert.NotContains(t, email.HTML, "<Obi>")
}

func TestRenderEventTicketListsEveryCode(t *testing.T) {
	t.Parallel()

	renderer, err := NewRenderer()
	require.NoError(t, err)

	email, err := renderer.Render(TemplateEventTicket, "ada@example.com", &TicketInfo{
		AttendeeName: "Ada",
		EventTitle:   "Lagos Pop-up",
		TicketCodes:  []string{"LAGOS-POP-UP-1-AAAAAA", "LAGOS-POP-UP-1-BBBBBB"},
	})
	require.NoError(t, err)

	assert.Equal(t, "Your tickets for Lagos Pop-up", email.Subject)
	assert.Equal(t, 2, strings.Count(email.Text, "LAGOS-POP-UP-1-"))
}

func TestRenderUnknownTemplate(t *testing.T) {
	t.Parallel()

	renderer, err := NewRenderer()
	require.NoError(t, err)

	_, err = renderer.Render("missing", "ada@example.com", nil)
	require.Error(t, err)
}

func TestMailerSend(t *testing.T) {
	t.Parallel()

	provider := &recordingProvider{}
	mailer, err := NewMailer(provider)
	require.NoError(t, err)

	require.NoError(t, mailer.SendOrderShipped(context.Background(), &OrderInfo{
		OrderNumber:     "AH-1",
		CustomerEmail:   "ada@example.com",
		TrackingNumber:  "123456",
		TrackingCarrier: "DHL",
	}))
	require.Len(t, provider.sent, 1)
	assert.Contains(t, provider.sent[0].Text, "Tracking Number: 123456")
	assert.Equal(t, TemplateOrderShipped, provider.sent[0].Category)

	require.Error(t, mailer.SendOrderDelivered(context.Background(), &OrderInfo{OrderNumber: "AH-2"}), "recipient is required")

	provider.err = errors.New("rate limited")
	require.ErrorContains(t, mailer.SendEventTicket(context.Background(), &TicketInfo{AttendeeEmail: "ada@example.com"}), "rate limited")
}

func TestFormatMoney(t *testing.T) {
	t.Parallel()

	tests := []struct {
		amount   string
		currency string
		want     string
	}{
		{"20000", "ngn", "₦20,000.00"},
		{"999.5", "NGN", "₦999.50"},
		{"1234567.891", "USD", "$1,234,567.89"},
		{"0", "NGN", "₦0.00"},
		{"-1500", "NGN", "-₦1,500.00"},
		{"12", "XOF", "XOF 12.00"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, FormatMoney(decimal.RequireFromString(tt.amount), tt.currency))
		})
	}
}

func TestResendRequest(t *testing.T) {
	t.Parallel()

	provider := NewResendProvider("re_test", "Ankara House <orders@ankarahouse.ng>", nil)

	request, err := provider.request(&Email{
		To:       "ada@example.com",
		Subject:  "Your order",
		Text:     "Thanks",
		Category: TemplateOrderConfirmation,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"ada@example.com"}, request.To)
	require.Len(t, request.Tags, 1)
	assert.Equal(t, "order_confirmation", request.Tags[0].Value)

	_, err = provider.request(&Email{To: "ada@example.com"})
	require.ErrorContains(t, err, "body is empty")
	_, err = provider.request(&Email{Text: "Thanks"})
	require.ErrorContains(t, err, "recipient is required")
}
