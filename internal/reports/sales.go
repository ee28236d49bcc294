package reports

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/yuditriaji/restopos-backend/pkg/apperr"
	"github.com/yuditriaji/restopos-backend/pkg/database"
)

const dateLayout = "2006-01-02"

// Range is an inclusive date range; a nil bound is open
type Range struct {
	Start *time.Time
	End   *time.Time
}

// ParseRange reads startDate/endDate query values. Plain dates cover the whole day in UTC and RFC 3339
// timestamps are taken as given.
func ParseRange(startRaw, endRaw string) (Range, error) {
	var r Range
	if startRaw != "" {
		start, _, err := parseBound(startRaw)
		if err != nil {
			return r, err
		}
		r.Start = &start
	}
	if endRaw != "" {
		end, dateOnly, err := parseBound(endRaw)
		if err != nil {
			return r, err
		}
		if dateOnly {
			end = end.Add(24*time.Hour - time.Nanosecond)
		}
		r.End = &end
	}
	if r.Start != nil && r.End != nil && r.End.Before(*r.Start) {
		return r, apperr.Validation("endDate must not be before startDate")
	}
	return r, nil
}

func parseBound(raw string) (time.Time, bool, error) {
	if t, err := time.Parse(dateLayout, raw); err == nil {
		return t.UTC(), true, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), false, nil
	}
	return time.Time{}, false, apperr.Validation("Invalid date format")
}

func (r Range) apply(query *gorm.DB) *gorm.DB {
	if r.Start != nil {
		query = query.Where("date >= ?", *r.Start)
	}
	if r.End != nil {
		query = query.Where("date <= ?", *r.End)
	}
	return query
}

func (r Range) startString() string {
	if r.Start == nil {
		return ""
	}
	return r.Start.Format(dateLayout)
}

func (r Range) endString() string {
	if r.End == nil {
		return ""
	}
	return r.End.Format(dateLayout)
}

type DailySales struct {
	Date   string          `json:"date"`
	Sales  decimal.Decimal `json:"sales"`
	Orders int             `json:"orders"`
}

type BranchSales struct {
	BranchID   uuid.UUID       `json:"branch_id"`
	BranchName string          `json:"branch"`
	Sales      decimal.Decimal `json:"sales"`
	Orders     int             `json:"orders"`
}

// SalesReport is the aggregate of a shop or a single branch over a range
type SalesReport struct {
	StartDate  string                `json:"start_date,omitempty"`
	EndDate    string                `json:"end_date,omitempty"`
	TotalSales decimal.Decimal       `json:"total_sales"`
	Orders     int                   `json:"orders"`
	DailySales []DailySales          `json:"daily_sales"`
	Entries    []database.SalesEntry `json:"sales,omitempty"`
}

// Service sums the append-only sales ledger. Amounts are added as decimals in Go so the total does not
// depend on how the driver sums numeric columns.
type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// each streams the ledger rows of shopID inside r, optionally restricted to one branch, oldest first
func (s *Service) each(ctx context.Context, shopID, branchID uuid.UUID, r Range, fn func(database.SalesEntry)) error {
	query := s.db.WithContext(ctx).Model(&database.SalesEntry{}).Where("shop_id = ?", shopID)
	if branchID != uuid.Nil {
		query = query.Where("branch_id = ?", branchID)
	}

	rows, err := r.apply(query).Order("date ASC").Rows()
	if err != nil {
		return apperr.Unexpected("Failed to fetch sales", err)
	}
	defer rows.Close()

	for rows.Next() {
		var entry database.SalesEntry
		if err := s.db.ScanRows(rows, &entry); err != nil {
			return apperr.Unexpected("Failed to fetch sales", err)
		}
		fn(entry)
	}
	if err := rows.Err(); err != nil {
		return apperr.Unexpected("Failed to fetch sales", err)
	}
	return nil
}

// Report aggregates the shop, or only branchID when it is not uuid.Nil. withEntries includes the raw
// ledger rows.
func (s *Service) Report(ctx context.Context, shopID, branchID uuid.UUID, r Range, withEntries bool) (*SalesReport, error) {
	report := &SalesReport{
		StartDate:  r.startString(),
		EndDate:    r.endString(),
		TotalSales: decimal.Zero,
		DailySales: []DailySales{},
	}

	daily := map[string]*DailySales{}
	var days []string
	err := s.each(ctx, shopID, branchID, r, func(e database.SalesEntry) {
		report.TotalSales = report.TotalSales.Add(e.Amount)
		report.Orders++
		if withEntries {
			report.Entries = append(report.Entries, e)
		}

		day := e.Date.UTC().Format(dateLayout)
		d, ok := daily[day]
		if !ok {
			d = &DailySales{Date: day, Sales: decimal.Zero}
			daily[day] = d
			days = append(days, day)
		}
		d.Sales = d.Sales.Add(e.Amount)
		d.Orders++
	})
	if err != nil {
		return nil, err
	}

	for _, day := range days {
		report.DailySales = append(report.DailySales, *daily[day])
	}
	if withEntries && report.Entries == nil {
		report.Entries = []database.SalesEntry{}
	}
	return report, nil
}

// Total is the shop-wide sum over r; it equals the sum of PerBranch
func (s *Service) Total(ctx context.Context, shopID uuid.UUID, r Range) (decimal.Decimal, error) {
	total := decimal.Zero
	err := s.each(ctx, shopID, uuid.Nil, r, func(e database.SalesEntry) {
		total = total.Add(e.Amount)
	})
	return total, err
}

// PerBranch breaks the shop's sales down by branch. Live branches without sales are listed with zero;
// deleted branches only show up when they still carry sales in the range.
func (s *Service) PerBranch(ctx context.Context, shopID uuid.UUID, r Range) ([]BranchSales, error) {
	var branches []database.Branch
	if err := s.db.WithContext(ctx).Unscoped().Select("id", "name", "deleted_at").
		Where("shop_id = ?", shopID).
		Order("name").
		Find(&branches).Error; err != nil {
		return nil, apperr.Unexpected("Failed to fetch branches", err)
	}

	result := make([]BranchSales, len(branches))
	index := make(map[uuid.UUID]int, len(branches))
	for i, b := range branches {
		result[i] = BranchSales{BranchID: b.ID, BranchName: b.Name, Sales: decimal.Zero}
		index[b.ID] = i
	}

	err := s.each(ctx, shopID, uuid.Nil, r, func(e database.SalesEntry) {
		if i, ok := index[e.BranchID]; ok {
			result[i].Sales = result[i].Sales.Add(e.Amount)
			result[i].Orders++
		}
	})
	if err != nil {
		return nil, err
	}

	kept := result[:0]
	for i, b := range branches {
		if b.DeletedAt.Valid && result[i].Orders == 0 {
			continue
		}
		kept = append(kept, result[i])
	}
	result = kept

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Sales.GreaterThan(result[j].Sales)
	})
	return result, nil
}
