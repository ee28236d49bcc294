package notify

import (
	"context"

	"github.com/shopspring/decimal"
)

// Channel is a delivery medium for customer notifications
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelChat  Channel = "chat"
)

// Event is the order event a notification reports
type Event string

const (
	EventPlaced    Event = "placed"
	EventReady     Event = "ready"
	EventCancelled Event = "cancelled"
)

// ErrNoRecipient is the Result.Error of a call made without a recipient
const ErrNoRecipient = "no recipient"

// Line is one cart line as shown to the customer
type Line struct {
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// OrderSummary is the order snapshot a notification renders
type OrderSummary struct {
	OrderID       string          `json:"order_id"`
	ShopName      string          `json:"shop_name"`
	BranchName    string          `json:"branch_name"`
	CustomerName  string          `json:"customer_name"`
	Lines         []Line          `json:"lines"`
	GrandTotal    decimal.Decimal `json:"grand_total"`
	Address       string          `json:"address"`
	EstimatedTime string          `json:"estimated_time,omitempty"`
	Reason        string          `json:"reason,omitempty"`
}

// ShortID is the human-facing order number
func (s OrderSummary) ShortID() string {
	if len(s.OrderID) > 8 {
		return s.OrderID[:8]
	}
	return s.OrderID
}

// Result reports one delivery attempt. Notifiers never panic or return errors; failures land here.
// Final marks a failure that must not be retried.
type Result struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Final   bool   `json:"-"`
}

func ok() Result { return Result{Success: true} }

func failed(err error) Result { return Result{Error: err.Error()} }

// Notifier delivers an order event over one channel
type Notifier interface {
	Channel() Channel
	Notify(ctx context.Context, recipient string, event Event, summary OrderSummary) Result
}
