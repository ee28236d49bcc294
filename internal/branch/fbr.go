package branch

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// TaxRates are the card and cash rates published by the tax authority (FBR)
type TaxRates struct {
	CardTax   decimal.Decimal `json:"card_tax"`
	CashTax   decimal.Decimal `json:"cash_tax"`
	FetchedAt time.Time       `json:"fetched_at"`
	IsMock    bool            `json:"is_mock"`
}

// RateSource fetches the current FBR tax rates
type RateSource interface {
	Rates(ctx context.Context) (TaxRates, error)
}

// MockRates serves fixed rates until the FBR integration exists
type MockRates struct {
	now func() time.Time
}

func NewMockRates() *MockRates {
	return &MockRates{now: func() time.Time { return time.Now().UTC() }}
}

func (m *MockRates) Rates(ctx context.Context) (TaxRates, error) {
	return TaxRates{
		CardTax:   decimal.RequireFromString("2.5"),
		CashTax:   decimal.RequireFromString("1.5"),
		FetchedAt: m.now(),
		IsMock:    true,
	}, nil
}
