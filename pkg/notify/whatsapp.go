package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/oauth2"

	"github.com/yuditriaji/restopos-backend/pkg/config"
)

// WhatsAppNotifier sends template messages through the WhatsApp Cloud API
type WhatsAppNotifier struct {
	client      *http.Client
	apiURL      string
	language    string
	countryCode string
	templates   map[Event]string
}

// NewWhatsAppNotifier builds a notifier whose HTTP client attaches the API token as a bearer credential.
// It returns nil when no token is configured.
func NewWhatsAppNotifier(ctx context.Context, cfg config.WhatsAppConfig) *WhatsAppNotifier {
	if cfg.APIToken == "" {
		return nil
	}
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: cfg.APIToken,
		TokenType:   "Bearer",
	}))
	return &WhatsAppNotifier{
		client:      client,
		apiURL:      cfg.APIURL,
		language:    cfg.Language,
		countryCode: cfg.CountryCode,
		templates: map[Event]string{
			EventPlaced:    cfg.TemplatePlaced,
			EventReady:     cfg.TemplateReady,
			EventCancelled: cfg.TemplateCancelled,
		},
	}
}

func (n *WhatsAppNotifier) Channel() Channel { return ChannelChat }

type templateParameter struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type templateComponent struct {
	Type       string              `json:"type"`
	Parameters []templateParameter `json:"parameters"`
}

type templateLanguage struct {
	Code string `json:"code"`
}

type messageTemplate struct {
	Name       string              `json:"name"`
	Language   templateLanguage    `json:"language"`
	Components []templateComponent `json:"components,omitempty"`
}

type messageRequest struct {
	MessagingProduct string          `json:"messaging_product"`
	To               string          `json:"to"`
	Type             string          `json:"type"`
	Template         messageTemplate `json:"template"`
}

// FormatPhone keeps numbers that already carry a + prefix; otherwise it drops one leading zero and
// prepends countryCode.
func FormatPhone(phone, countryCode string) string {
	phone = strings.TrimSpace(phone)
	phone = strings.NewReplacer(" ", "", "-", "").Replace(phone)
	if strings.HasPrefix(phone, "+") {
		return phone
	}
	return countryCode + strings.TrimPrefix(phone, "0")
}

func parameters(event Event, s OrderSummary) []templateParameter {
	name := fallback(s.CustomerName, "Valued Customer")
	var second string
	switch event {
	case EventReady:
		second = fallback(s.EstimatedTime, "30 minutes")
	case EventCancelled:
		second = fallback(s.Reason, "unavoidable circumstances")
	default:
		second = fallback(s.ShortID(), "####")
	}
	return []templateParameter{
		{Type: "text", Text: name},
		{Type: "text", Text: second},
	}
}

func (n *WhatsAppNotifier) Notify(ctx context.Context, recipient string, event Event, summary OrderSummary) Result {
	if strings.TrimSpace(recipient) == "" {
		return Result{Error: ErrNoRecipient}
	}
	templateName, known := n.templates[event]
	if !known || templateName == "" {
		return Result{Error: fmt.Sprintf("no template for event %q", event)}
	}

	body := messageRequest{
		MessagingProduct: "whatsapp",
		To:               FormatPhone(recipient, n.countryCode),
		Type:             "template",
		Template: messageTemplate{
			Name:     templateName,
			Language: templateLanguage{Code: n.language},
			Components: []templateComponent{
				{Type: "body", Parameters: parameters(event, summary)},
			},
		},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return failed(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.apiURL, bytes.NewReader(payload))
	if err != nil {
		return failed(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return failed(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Result{Error: fmt.Sprintf("whatsapp API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))}
	}
	return ok()
}
