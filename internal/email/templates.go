package email

import (
	"bytes"
	"context"
	"fmt"
	htmltemplate "html/template"
	"text/template"
)

// Template names.
const (
	TemplateOrderConfirmation = "order_confirmation"
	TemplateOrderShipped      = "order_shipped"
	TemplateOrderDelivered    = "order_delivered"
	TemplateEventTicket       = "event_ticket"
)

// OrderInfo contains everything the order templates render. Money values are
// preformatted in the store currency.
type OrderInfo struct {
	OrderNumber     string
	OrderURL        string
	CustomerName    string
	CustomerEmail   string
	StoreName       string
	StoreURL        string
	ShippingAddress string
	ShippingMethod  string
	DeliveryTime    string
	TrackingNumber  string
	TrackingURL     string
	TrackingCarrier string
	OrderDate       string
	Items           []OrderItem
	Subtotal        string
	Shipping        string
	Tax             string
	Discount        string
	Total           string
}

type OrderItem struct {
	Name       string
	Variant    string
	SKU        string
	Quantity   int
	UnitPrice  string
	TotalPrice string
}

// TicketInfo is rendered once per registration and lists every ticket code.
type TicketInfo struct {
	AttendeeName  string
	AttendeeEmail string
	EventTitle    string
	Venue         string
	StartsAt      string
	TicketCodes   []string
	Amount        string
	StoreName     string
	StoreURL      string
}

type emailTemplate struct {
	subject *template.Template
	text    *template.Template
	html    *htmltemplate.Template
}

// Renderer renders the built-in templates. It is safe for concurrent use.
type Renderer struct {
	templates map[string]emailTemplate
}

func NewRenderer() (*Renderer, error) {
	sources := map[string]struct{ subject, text, html string }{
		TemplateOrderConfirmation: {"Order Confirmed - {{.OrderNumber}} - {{.StoreName}}", orderConfirmationText, orderConfirmationHTML},
		TemplateOrderShipped:      {"Your Order Has Shipped - {{.OrderNumber}} - {{.StoreName}}", orderShippedText, orderShippedHTML},
		TemplateOrderDelivered:    {"Your Order Has Been Delivered - {{.OrderNumber}}", orderDeliveredText, orderDeliveredHTML},
		TemplateEventTicket:       {"Your tickets for {{.EventTitle}}", eventTicketText, eventTicketHTML},
	}

	templates := make(map[string]emailTemplate, len(sources))
	for name, src := range sources {
		subject, err := template.New(name + "_subject").Parse(src.subject)
		if err != nil {
			return nil, fmt.Errorf("failed to parse subject template %s: %w", name, err)
		}
		text, err := template.New(name + "_text").Parse(src.text)
		if err != nil {
			return nil, fmt.Errorf("failed to parse text template %s: %w", name, err)
		}
		html, err := htmltemplate.New(name + "_html").Parse(src.html)
		if err != nil {
			return nil, fmt.Errorf("failed to parse HTML template %s: %w", name, err)
		}
		templates[name] = emailTemplate{subject: subject, text: text, html: html}
	}

	return &Renderer{templates: templates}, nil
}

// Render renders the named template for the given recipient.
func (r *Renderer) Render(templateName, to string, data any) (*Email, error) {
	tmpl, ok := r.templates[templateName]
	if !ok {
		return nil, fmt.Errorf("unknown email template %q", templateName)
	}

	var subjectBuf, textBuf, htmlBuf bytes.Buffer
	if err := tmpl.subject.Execute(&subjectBuf, data); err != nil {
		return nil, fmt.Errorf("failed to render subject: %w", err)
	}
	if err := tmpl.text.Execute(&textBuf, data); err != nil {
		return nil, fmt.Errorf("failed to render text template: %w", err)
	}
	if err := tmpl.html.Execute(&htmlBuf, data); err != nil {
		return nil, fmt.Errorf("failed to render HTML template: %w", err)
	}

	return &Email{
		To:       to,
		Subject:  subjectBuf.String(),
		Text:     textBuf.String(),
		HTML:     htmlBuf.String(),
		Category: templateName,
	}, nil
}

// Mailer pairs a provider with the renderer.
type Mailer struct {
	provider Provider
	renderer *Renderer
}

func NewMailer(provider Provider) (*Mailer, error) {
	renderer, err := NewRenderer()
	if err != nil {
		return nil, fmt.Errorf("failed to create renderer: %w", err)
	}
	return &Mailer{provider: provider, renderer: renderer}, nil
}

func (m *Mailer) SendOrderConfirmation(ctx context.Context, info *OrderInfo) error {
	return m.send(ctx, TemplateOrderConfirmation, info.CustomerEmail, info)
}

func (m *Mailer) SendOrderShipped(ctx context.Context, info *OrderInfo) error {
	return m.send(ctx, TemplateOrderShipped, info.CustomerEmail, info)
}

func (m *Mailer) SendOrderDelivered(ctx context.Context, info *OrderInfo) error {
	return m.send(ctx, TemplateOrderDelivered, info.CustomerEmail, info)
}

func (m *Mailer) SendEventTicket(ctx context.Context, info *TicketInfo) error {
	return m.send(ctx, TemplateEventTicket, info.AttendeeEmail, info)
}

func (m *Mailer) send(ctx context.Context, templateName, to string, data any) error {
	if m == nil || m.provider == nil {
		return nil
	}
	if to == "" {
		return fmt.Errorf("recipient is required")
	}

	email, err := m.renderer.Render(templateName, to, data)
	if err != nil {
		return fmt.Errorf("failed to render template: %w", err)
	}

	return m.provider.SendEmail(ctx, email)
}

const orderConfirmationText = `Thank you for your order, {{.CustomerName}}!

Order Number: {{.OrderNumber}}
Order Date: {{.OrderDate}}

Items:
{{range .Items}}
- {{.Name}}{{if .Variant}} ({{.Variant}}){{end}} x{{.Quantity}} - {{.TotalPrice}}
{{end}}

Subtotal: {{.Subtotal}}
Shipping: {{.Shipping}}{{if .ShippingMethod}} ({{.ShippingMethod}}{{if .DeliveryTime}}, {{.DeliveryTime}}{{end}}){{end}}
Tax: {{.Tax}}
Total: {{.Total}}

Shipping to:
{{.ShippingAddress}}

{{if .OrderURL}}View your order: {{.OrderURL}}{{end}}

We'll send you another email when your order ships.

{{.StoreName}}
{{.StoreURL}}
`

const orderConfirmationHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>Order Confirmation</title>
  <style>
    body { font-family: Georgia, 'Times New Roman', serif; line-height: 1.6; color: #222; max-width: 600px; margin: 0 auto; padding: 20px; }
    .header { background: #1f1a17; color: #f5efe6; padding: 20px; text-align: center; }
    .content { background: #faf7f2; padding: 20px; border: 1px solid #e8e0d4; }
    .items-table { width: 100%; border-collapse: collapse; margin: 15px 0; }
    .items-table th { text-align: left; padding: 10px; border-bottom: 2px solid #e8e0d4; }
    .items-table td { padding: 10px; border-bottom: 1px solid #e8e0d4; }
    .total { text-align: right; padding: 15px 0; }
    .footer { text-align: center; padding: 20px; color: #7a6f63; font-size: 14px; }
    .button { display: inline-block; background: #1f1a17; color: #f5efe6; padding: 12px 24px; text-decoration: none; margin-top: 15px; }
  </style>
</head>
<body>
  <div class="header">
    <h1>Order Confirmed</h1>
    <p>Thank you for your order, {{.CustomerName}}</p>
  </div>
  <div class="content">
    <p><strong>Order Number:</strong> {{.OrderNumber}}<br>
    <strong>Order Date:</strong> {{.OrderDate}}</p>

    <table class="items-table">
      <thead>
        <tr><th>Item</th><th>Qty</th><th>Price</th></tr>
      </thead>
      <tbody>
        {{range .Items}}
        <tr>
          <td>{{.Name}}{{if .Variant}}<br><small>{{.Variant}}</small>{{end}}</td>
          <td>{{.Quantity}}</td>
          <td>{{.TotalPrice}}</td>
        </tr>
        {{end}}
      </tbody>
    </table>

    <div class="total">
      <p>Subtotal: {{.Subtotal}}</p>
      <p>Shipping: {{.Shipping}}{{if .ShippingMethod}} <small>({{.ShippingMethod}})</small>{{end}}</p>
      <p>Tax: {{.Tax}}</p>
      <p><strong>Total: {{.Total}}</strong></p>
    </div>

    <h3>Shipping to</h3>
    <p style="white-space: pre-line">{{.ShippingAddress}}</p>
    {{if .OrderURL}}<p><a href="{{.OrderURL}}" class="button">View your order</a></p>{{end}}
  </div>
  <div class="footer">
    <p><a href="{{.StoreURL}}">{{.StoreName}}</a></p>
  </div>
</body>
</html>
`

const orderShippedText = `Your order is on its way!

Order Number: {{.OrderNumber}}

{{if .TrackingNumber}}
Tracking Number: {{.TrackingNumber}}
Carrier: {{.TrackingCarrier}}
{{if .TrackingURL}}Track your package: {{.TrackingURL}}{{end}}
{{end}}

Shipping Address:
{{.ShippingAddress}}

We'll let you know when your package is delivered.

{{.StoreName}}
{{.StoreURL}}
`

const orderShippedHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>Order Shipped</title>
  <style>
    body { font-family: Georgia, 'Times New Roman', serif; line-height: 1.6; color: #222; max-width: 600px; margin: 0 auto; padding: 20px; }
    .header { background: #3b5d4a; color: #f5efe6; padding: 20px; text-align: center; }
    .content { background: #faf7f2; padding: 20px; border: 1px solid #e8e0d4; }
    .tracking { background: white; padding: 20px; margin: 15px 0; border-left: 4px solid #3b5d4a; }
    .tracking-number { font-size: 22px; font-weight: bold; color: #3b5d4a; }
    .button { display: inline-block; background: #3b5d4a; color: #f5efe6; padding: 12px 24px; text-decoration: none; margin-top: 15px; }
    .footer { text-align: center; padding: 20px; color: #7a6f63; font-size: 14px; }
  </style>
</head>
<body>
  <div class="header">
    <h1>Your Order Has Shipped</h1>
    <p>Good news, {{.CustomerName}}! Your order is on its way.</p>
  </div>
  <div class="content">
    <p><strong>Order Number:</strong> {{.OrderNumber}}</p>
    {{if .TrackingNumber}}
    <div class="tracking">
      <p><strong>Carrier:</strong> {{.TrackingCarrier}}</p>
      <p class="tracking-number">{{.TrackingNumber}}</p>
      {{if .TrackingURL}}<a href="{{.TrackingURL}}" class="button">Track Your Package</a>{{end}}
    </div>
    {{end}}
    <h3>Shipping Address</h3>
    <p style="white-space: pre-line">{{.ShippingAddress}}</p>
  </div>
  <div class="footer">
    <p><a href="{{.StoreURL}}">{{.StoreName}}</a></p>
  </div>
</body>
</html>
`

const orderDeliveredText = `Your order has been delivered!

Order Number: {{.OrderNumber}}

Your package should have arrived at:
{{.ShippingAddress}}

We hope you love your pieces. Reply to this email if anything is not right.

{{.StoreName}}
{{.StoreURL}}
`

const orderDeliveredHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>Order Delivered</title>
  <style>
    body { font-family: Georgia, 'Times New Roman', serif; line-height: 1.6; color: #222; max-width: 600px; margin: 0 auto; padding: 20px; }
    .header { background: #7a4b2a; color: #f5efe6; padding: 20px; text-align: center; }
    .content { background: #faf7f2; padding: 20px; border: 1px solid #e8e0d4; }
    .footer { text-align: center; padding: 20px; color: #7a6f63; font-size: 14px; }
  </style>
</head>
<body>
  <div class="header">
    <h1>Your Order Has Been Delivered</h1>
    <p>Your package has arrived, {{.CustomerName}}.</p>
  </div>
  <div class="content">
    <p><strong>Order Number:</strong> {{.OrderNumber}}</p>
    <h3>Delivered To</h3>
    <p style="white-space: pre-line">{{.ShippingAddress}}</p>
    <p>We hope you love your pieces. Reply to this email if anything is not right.</p>
  </div>
  <div class="footer">
    <p><a href="{{.StoreURL}}">{{.StoreName}}</a></p>
  </div>
</body>
</html>
`

const eventTicketText = `Hi {{.AttendeeName}},

You're registered for {{.EventTitle}}.

When: {{.StartsAt}}
{{if .Venue}}Where: {{.Venue}}
{{end}}{{if .Amount}}Amount: {{.Amount}}
{{end}}
Ticket codes:
{{range .TicketCodes}}- {{.}}
{{end}}
Show a ticket code at the door to check in.

{{.StoreName}}
{{.StoreURL}}
`

const eventTicketHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>Your Tickets</title>
  <style>
    body { font-family: Georgia, 'Times New Roman', serif; line-height: 1.6; color: #222; max-width: 600px; margin: 0 auto; padding: 20px; }
    .header { background: #1f1a17; color: #f5efe6; padding: 20px; text-align: center; }
    .content { background: #faf7f2; padding: 20px; border: 1px solid #e8e0d4; }
    .ticket { font-family: monospace; font-size: 18px; background: white; padding: 10px; margin: 8px 0; border: 1px dashed #7a6f63; }
    .footer { text-align: center; padding: 20px; color: #7a6f63; font-size: 14px; }
  </style>
</head>
<body>
  <div class="header">
    <h1>{{.EventTitle}}</h1>
    <p>You're registered, {{.AttendeeName}}.</p>
  </div>
  <div class="content">
    <p><strong>When:</strong> {{.StartsAt}}</p>
    {{if .Venue}}<p><strong>Where:</strong> {{.Venue}}</p>{{end}}
    {{if .Amount}}<p><strong>Amount:</strong> {{.Amount}}</p>{{end}}
    <h3>Ticket codes</h3>
    {{range .TicketCodes}}<div class="ticket">{{.}}</div>{{end}}
    <p>Show a ticket code at the door to check in.</p>
  </div>
  <div class="footer">
    <p><a href="{{.StoreURL}}">{{.StoreName}}</a></p>
  </div>
</body>
</html>
`
