package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/yuditriaji/restopos-backend/pkg/email"
)

// EmailNotifier renders order events as HTML mail
type EmailNotifier struct {
	mail *email.EmailService
}

func NewEmailNotifier(mail *email.EmailService) *EmailNotifier {
	return &EmailNotifier{mail: mail}
}

func (n *EmailNotifier) Channel() Channel { return ChannelEmail }

func (n *EmailNotifier) Notify(ctx context.Context, recipient string, event Event, summary OrderSummary) Result {
	if strings.TrimSpace(recipient) == "" {
		return Result{Error: ErrNoRecipient}
	}
	if !n.mail.IsConfigured() {
		return Result{Error: "email service not configured"}
	}

	subject, body, err := renderEmail(event, summary)
	if err != nil {
		return failed(err)
	}
	if err := n.mail.SendEmail(ctx, recipient, subject, body); err != nil {
		// the message may have gone out anyway; a retry could mail the customer twice
		if errors.Is(err, email.ErrOutcomeUnknown) {
			return Result{Error: err.Error(), Final: true}
		}
		return failed(err)
	}
	return ok()
}

func renderEmail(event Event, s OrderSummary) (string, string, error) {
	name := html.EscapeString(fallback(s.CustomerName, "Valued Customer"))
	shop := html.EscapeString(fallback(s.ShopName, "our restaurant"))

	var subject, heading, content string
	switch event {
	case EventPlaced:
		subject = fmt.Sprintf("Order #%s confirmed - %s", s.ShortID(), s.ShopName)
		heading = "Thank you for your order!"
		content = fmt.Sprintf(`<p>Hello <strong>%s</strong>, your order has been placed successfully. We'll notify you when it's ready.</p>%s`,
			name, cartTable(s))
	case EventReady:
		subject = fmt.Sprintf("Order #%s is ready - %s", s.ShortID(), s.ShopName)
		heading = "Your order is on its way"
		content = fmt.Sprintf(`<p>Hello <strong>%s</strong>, your order is ready and is being prepared for delivery.</p>
<p>Estimated arrival: <strong>%s</strong></p>`, name, html.EscapeString(fallback(s.EstimatedTime, "30 minutes")))
	case EventCancelled:
		subject = fmt.Sprintf("Order #%s cancelled - %s", s.ShortID(), s.ShopName)
		heading = "Your order has been cancelled"
		content = fmt.Sprintf(`<p>Hello <strong>%s</strong>, we regret to inform you that your order has been cancelled due to %s.</p>
<p>Please contact us if you have any questions.</p>`, name, html.EscapeString(fallback(s.Reason, "unavoidable circumstances")))
	default:
		return "", "", fmt.Errorf("unknown event %q", event)
	}

	body := fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"></head>
<body style="font-family: Arial, sans-serif; margin: 0; padding: 0; background-color: #f5f5f5;">
    <div style="max-width: 600px; margin: 0 auto; padding: 32px 20px;">
        <div style="background: #b91c1c; border-radius: 12px 12px 0 0; padding: 24px; text-align: center;">
            <h1 style="color: white; margin: 0; font-size: 24px;">%s</h1>
        </div>
        <div style="background: white; padding: 24px; border-radius: 0 0 12px 12px;">
            %s
            <p style="color: #6b7280; font-size: 13px;">Order #%s &middot; %s</p>
        </div>
    </div>
</body>
</html>`, heading, content, html.EscapeString(s.ShortID()), shop)

	return subject, body, nil
}

func cartTable(s OrderSummary) string {
	var b strings.Builder
	b.WriteString(`<table style="width: 100%; border-collapse: collapse;">`)
	b.WriteString(`<tr><th align="left">Item</th><th align="right">Qty</th><th align="right">Price</th></tr>`)
	for _, l := range s.Lines {
		fmt.Fprintf(&b, `<tr><td>%s</td><td align="right">%d</td><td align="right">%s</td></tr>`,
			html.EscapeString(l.Name), l.Quantity, l.Price.StringFixed(2))
	}
	fmt.Fprintf(&b, `<tr><td colspan="2"><strong>Grand total</strong></td><td align="right"><strong>%s</strong></td></tr>`,
		s.GrandTotal.StringFixed(2))
	b.WriteString(`</table>`)
	if s.Address != "" {
		fmt.Fprintf(&b, `<p>Delivering to: %s</p>`, html.EscapeString(s.Address))
	}
	return b.String()
}

func fallback(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
