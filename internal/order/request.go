package order

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/yuditriaji/restopos-backend/pkg/apperr"
	"github.com/yuditriaji/restopos-backend/pkg/database"
)

var (
	paymentMethods = []string{database.PaymentCash, database.PaymentCard, database.PaymentOnline}
	orderTypes     = []string{database.OrderTypeDelivery, database.OrderTypeTakeaway, database.OrderTypeDineIn}
	sources        = []string{database.SourcePOS, database.SourceOrderingSystem, database.SourceWebsite, database.SourceMobileApp}
)

// CartLineRequest accepts both the POS shape (_id, name) and the stored shape (product_id, product_name)
type CartLineRequest struct {
	ID          string          `json:"_id"`
	ProductID   string          `json:"product_id"`
	Name        string          `json:"name"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	Price       json.RawMessage `json:"price"`
}

// CreateRequest is the body of an order-add call. Money fields stay raw so a missing value, a JSON null
// and the string "null" can be told apart.
type CreateRequest struct {
	Products        []CartLineRequest `json:"products"`
	Total           json.RawMessage   `json:"total"`
	GrandTotal      json.RawMessage   `json:"grand_total"`
	Tax             json.RawMessage   `json:"tax"`
	Discount        json.RawMessage   `json:"discount"`
	DeliveryCharges json.RawMessage   `json:"delivery_charges"`
	CustomerName    string            `json:"customer_name"`
	CustomerPhone   string            `json:"customer_phone"`
	CustomerEmail   string            `json:"customer_email"`
	PaymentMethod   string            `json:"payment_method"`
	OrderType       string            `json:"order_type"`
	Address         string            `json:"address"`
	Comment         string            `json:"comment"`
	Source          string            `json:"source"`
	BranchID        string            `json:"branch_id"`
}

// LineInput is a validated cart line
type LineInput struct {
	ProductID string
	Name      string
	Quantity  int
	Price     decimal.Decimal
}

// CreateInput is a validated order
type CreateInput struct {
	Lines           []LineInput
	Total           decimal.Decimal
	GrandTotal      decimal.Decimal
	Tax             decimal.Decimal
	Discount        decimal.Decimal
	DeliveryCharges decimal.Decimal
	CustomerName    string
	CustomerPhone   string
	CustomerEmail   string
	PaymentMethod   string
	OrderType       string
	Address         string
	Comment         string
	Source          string
}

type moneyState int

const (
	moneyOK moneyState = iota
	moneyMissing
	moneyInvalid
)

// parseMoney reads a JSON number or numeric string. Absent values, JSON null, "" and the string "null"
// count as missing. Amounts are stored with two decimal places, so finer amounts are invalid.
func parseMoney(raw json.RawMessage) (decimal.Decimal, moneyState) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return decimal.Zero, moneyMissing
	}

	text := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return decimal.Zero, moneyInvalid
		}
		text = strings.TrimSpace(text)
		if text == "" || text == "null" {
			return decimal.Zero, moneyMissing
		}
	}

	d, err := decimal.NewFromString(text)
	if err != nil || !d.Equal(d.Round(2)) {
		return decimal.Zero, moneyInvalid
	}
	return d, moneyOK
}

// Validate checks the request and names every missing field in one error
func (r CreateRequest) Validate(defaultSource string) (CreateInput, error) {
	var (
		missing []string
		invalid []string
		in      CreateInput
	)

	money := func(name string, raw json.RawMessage, required bool) decimal.Decimal {
		d, state := parseMoney(raw)
		switch {
		case state == moneyMissing && required:
			missing = append(missing, name)
		case state == moneyInvalid:
			invalid = append(invalid, name)
		case state == moneyOK && d.IsNegative():
			invalid = append(invalid, name)
		}
		return d
	}

	if len(r.Products) == 0 {
		missing = append(missing, "products")
	}
	in.Total = money("total", r.Total, true)
	in.GrandTotal = money("grand_total", r.GrandTotal, true)
	in.Tax = money("tax", r.Tax, true)
	in.Discount = money("discount", r.Discount, true)
	in.DeliveryCharges = money("delivery_charges", r.DeliveryCharges, false)

	in.CustomerName = strings.TrimSpace(r.CustomerName)
	in.PaymentMethod = strings.ToLower(strings.TrimSpace(r.PaymentMethod))
	in.OrderType = strings.ToLower(strings.TrimSpace(r.OrderType))
	in.Address = strings.TrimSpace(r.Address)
	for name, v := range map[string]string{
		"customer_name":  in.CustomerName,
		"payment_method": in.PaymentMethod,
		"order_type":     in.OrderType,
		"address":        in.Address,
	} {
		if v == "" {
			missing = append(missing, name)
		}
	}

	if in.PaymentMethod != "" && !slices.Contains(paymentMethods, in.PaymentMethod) {
		invalid = append(invalid, "payment_method")
	}
	if in.OrderType != "" && !slices.Contains(orderTypes, in.OrderType) {
		invalid = append(invalid, "order_type")
	}

	in.Source = strings.ToLower(strings.TrimSpace(r.Source))
	if in.Source == "" {
		in.Source = defaultSource
	}
	if !slices.Contains(sources, in.Source) {
		invalid = append(invalid, "source")
	}

	for i, p := range r.Products {
		line := LineInput{ProductID: p.ID, Name: p.Name, Quantity: p.Quantity}
		if line.ProductID == "" {
			line.ProductID = p.ProductID
		}
		if line.Name == "" {
			line.Name = p.ProductName
		}

		if line.ProductID == "" {
			missing = append(missing, fmt.Sprintf("products[%d]._id", i))
		}
		if strings.TrimSpace(line.Name) == "" {
			missing = append(missing, fmt.Sprintf("products[%d].name", i))
		}
		if line.Quantity <= 0 {
			invalid = append(invalid, fmt.Sprintf("products[%d].quantity", i))
		}
		line.Price = money(fmt.Sprintf("products[%d].price", i), p.Price, true)
		in.Lines = append(in.Lines, line)
	}

	if len(missing) > 0 {
		slices.Sort(missing)
		return in, apperr.Validation("Please provide all required fields: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		slices.Sort(invalid)
		return in, apperr.Validation("Invalid value for: %s", strings.Join(invalid, ", "))
	}

	in.CustomerPhone = strings.TrimSpace(r.CustomerPhone)
	in.CustomerEmail = strings.TrimSpace(r.CustomerEmail)
	in.Comment = r.Comment
	return in, nil
}
