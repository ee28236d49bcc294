package branch

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/yuditriaji/restopos-backend/pkg/apperr"
	"github.com/yuditriaji/restopos-backend/pkg/database"
)

var maxTaxRate = decimal.NewFromInt(100)

// Store runs branch queries and shift bookkeeping, always scoped to one shop
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Input holds the fields of a new branch
type Input struct {
	Name        string
	Address     string
	City        string
	Contact     string
	TotalTables int
	OpeningTime string
	ClosingTime string
	CardTax     decimal.Decimal
	CashTax     decimal.Decimal
}

// Patch holds the fields an update may change; nil leaves a field alone
type Patch struct {
	Name        *string
	Address     *string
	City        *string
	Contact     *string
	TotalTables *int
	OpeningTime *string
	ClosingTime *string
}

func validClock(s string) bool {
	_, err := time.Parse("15:04", s)
	return err == nil
}

func validTax(d decimal.Decimal) bool {
	return !d.IsNegative() && d.LessThanOrEqual(maxTaxRate)
}

// nameTaken also counts deleted branches: they keep their name for the sales history and the unique index
func (s *Store) nameTaken(tx *gorm.DB, shopID uuid.UUID, name string, except uuid.UUID) (bool, error) {
	var count int64
	query := tx.Unscoped().Model(&database.Branch{}).Where("shop_id = ? AND LOWER(name) = LOWER(?)", shopID, name)
	if except != uuid.Nil {
		query = query.Where("id <> ?", except)
	}
	err := query.Count(&count).Error
	return count > 0, err
}

// List returns the shop's branches oldest first
func (s *Store) List(ctx context.Context, shopID uuid.UUID) ([]database.Branch, error) {
	var branches []database.Branch
	if err := s.db.WithContext(ctx).Where("shop_id = ?", shopID).
		Order("created_at ASC").
		Find(&branches).Error; err != nil {
		return nil, apperr.Unexpected("Failed to fetch branches", err)
	}
	return branches, nil
}

func (s *Store) Count(ctx context.Context, shopID uuid.UUID) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&database.Branch{}).Where("shop_id = ?", shopID).Count(&count).Error; err != nil {
		return 0, apperr.Unexpected("Failed to count branches", err)
	}
	return count, nil
}

func (s *Store) Get(ctx context.Context, shopID, branchID uuid.UUID) (*database.Branch, error) {
	var branch database.Branch
	if err := s.db.WithContext(ctx).Where("id = ? AND shop_id = ?", branchID, shopID).First(&branch).Error; err != nil {
		return nil, apperr.FromDB(err, "Branch")
	}
	return &branch, nil
}

// FindByName resolves a branch by its name within the shop, ignoring case
func (s *Store) FindByName(ctx context.Context, shopID uuid.UUID, name string) (*database.Branch, error) {
	var branch database.Branch
	if err := s.db.WithContext(ctx).
		Where("shop_id = ? AND LOWER(name) = LOWER(?)", shopID, strings.TrimSpace(name)).
		First(&branch).Error; err != nil {
		return nil, apperr.FromDB(err, "Branch")
	}
	return &branch, nil
}

func (s *Store) Create(ctx context.Context, shopID uuid.UUID, in Input) (*database.Branch, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" || strings.TrimSpace(in.Address) == "" || strings.TrimSpace(in.Contact) == "" {
		return nil, apperr.Validation("Please fill in all fields")
	}
	if in.OpeningTime != "" && !validClock(in.OpeningTime) || in.ClosingTime != "" && !validClock(in.ClosingTime) {
		return nil, apperr.Validation("Timings must be in HH:MM format")
	}
	if !validTax(in.CardTax) || !validTax(in.CashTax) {
		return nil, apperr.Validation("Tax rates must be between 0 and 100")
	}
	if in.TotalTables < 0 {
		return nil, apperr.Validation("total_tables must not be negative")
	}

	branch := database.Branch{
		ShopID:      shopID,
		Name:        in.Name,
		Address:     strings.TrimSpace(in.Address),
		City:        strings.TrimSpace(in.City),
		Contact:     strings.TrimSpace(in.Contact),
		TotalTables: in.TotalTables,
		OpeningTime: in.OpeningTime,
		ClosingTime: in.ClosingTime,
		CashOnHand:  decimal.Zero,
		CardTax:     in.CardTax,
		CashTax:     in.CashTax,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		taken, err := s.nameTaken(tx, shopID, in.Name, uuid.Nil)
		if err != nil {
			return apperr.Unexpected("Failed to create branch", err)
		}
		if taken {
			return apperr.Conflict("Branch %s already exists", in.Name)
		}
		if err := tx.Create(&branch).Error; err != nil {
			return apperr.Unexpected("Failed to create branch", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &branch, nil
}

func (s *Store) Update(ctx context.Context, shopID, branchID uuid.UUID, p Patch) (*database.Branch, error) {
	var branch database.Branch
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND shop_id = ?", branchID, shopID).First(&branch).Error; err != nil {
			return apperr.FromDB(err, "Branch")
		}

		updates := map[string]interface{}{}
		if p.Name != nil {
			name := strings.TrimSpace(*p.Name)
			if name == "" {
				return apperr.Validation("Branch name cannot be empty")
			}
			if name != branch.Name {
				taken, err := s.nameTaken(tx, shopID, name, branch.ID)
				if err != nil {
					return apperr.Unexpected("Failed to update branch", err)
				}
				if taken {
					return apperr.Conflict("Branch %s already exists", name)
				}
			}
			updates["name"] = name
		}
		if p.Address != nil && strings.TrimSpace(*p.Address) != "" {
			updates["address"] = strings.TrimSpace(*p.Address)
		}
		if p.City != nil {
			updates["city"] = strings.TrimSpace(*p.City)
		}
		if p.Contact != nil && strings.TrimSpace(*p.Contact) != "" {
			updates["contact"] = strings.TrimSpace(*p.Contact)
		}
		if p.TotalTables != nil {
			if *p.TotalTables < 0 {
				return apperr.Validation("total_tables must not be negative")
			}
			updates["total_tables"] = *p.TotalTables
		}
		for column, value := range map[string]*string{"opening_time": p.OpeningTime, "closing_time": p.ClosingTime} {
			if value == nil {
				continue
			}
			if !validClock(*value) {
				return apperr.Validation("Timings must be in HH:MM format")
			}
			updates[column] = *value
		}
		if len(updates) == 0 {
			return nil
		}

		if err := tx.Model(&branch).Updates(updates).Error; err != nil {
			return apperr.Unexpected("Failed to update branch", err)
		}
		return tx.First(&branch, "id = ?", branch.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return &branch, nil
}

// Delete soft-deletes a branch that has no staff assigned
func (s *Store) Delete(ctx context.Context, shopID, branchID uuid.UUID) (*database.Branch, error) {
	var branch database.Branch
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND shop_id = ?", branchID, shopID).First(&branch).Error; err != nil {
			return apperr.FromDB(err, "Branch")
		}

		for _, model := range []interface{}{&database.Manager{}, &database.Cashier{}, &database.Kitchen{}} {
			var count int64
			if err := tx.Model(model).Where("branch_id = ?", branch.ID).Count(&count).Error; err != nil {
				return apperr.Unexpected("Failed to delete branch", err)
			}
			if count > 0 {
				return apperr.Conflict("Branch still has staff assigned; reassign or remove them first")
			}
		}

		if err := tx.Delete(&branch).Error; err != nil {
			return apperr.Unexpected("Failed to delete branch", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &branch, nil
}

// UpdateTimings sets the opening and closing times, both HH:MM
func (s *Store) UpdateTimings(ctx context.Context, shopID, branchID uuid.UUID, opening, closing string) (*database.Branch, error) {
	if opening == "" || closing == "" {
		return nil, apperr.Validation("Please provide timings")
	}
	return s.Update(ctx, shopID, branchID, Patch{OpeningTime: &opening, ClosingTime: &closing})
}

// Open starts a new shift: the branch flips to open, day_number advances by one and a Shift row records it.
// Opening an open branch is a conflict.
func (s *Store) Open(ctx context.Context, shopID, branchID, actor uuid.UUID) (*database.Branch, *database.Shift, error) {
	var (
		branch database.Branch
		shift  database.Shift
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&database.Branch{}).
			Where("id = ? AND shop_id = ? AND shift_status = ?", branchID, shopID, false).
			Updates(map[string]interface{}{
				"shift_status": true,
				"day_number":   gorm.Expr("day_number + 1"),
			})
		if res.Error != nil {
			return apperr.Unexpected("Failed to open branch", res.Error)
		}

		if err := tx.Where("id = ? AND shop_id = ?", branchID, shopID).First(&branch).Error; err != nil {
			return apperr.FromDB(err, "Branch")
		}
		if res.RowsAffected == 0 {
			return apperr.Conflict("Branch is already open")
		}

		shift = database.Shift{
			ShopID:    shopID,
			BranchID:  branch.ID,
			DayNumber: branch.DayNumber,
			OpenedAt:  s.now(),
			OpenedBy:  actor,
		}
		if err := tx.Create(&shift).Error; err != nil {
			return apperr.Unexpected("Failed to open branch", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return &branch, &shift, nil
}

// Close ends the current shift. Closing a closed branch changes nothing and reports changed=false.
func (s *Store) Close(ctx context.Context, shopID, branchID, actor uuid.UUID) (*database.Branch, bool, error) {
	var (
		branch  database.Branch
		changed bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&database.Branch{}).
			Where("id = ? AND shop_id = ? AND shift_status = ?", branchID, shopID, true).
			Update("shift_status", false)
		if res.Error != nil {
			return apperr.Unexpected("Failed to close branch", res.Error)
		}

		if err := tx.Where("id = ? AND shop_id = ?", branchID, shopID).First(&branch).Error; err != nil {
			return apperr.FromDB(err, "Branch")
		}
		if res.RowsAffected == 0 {
			return nil
		}
		changed = true

		closedAt := s.now()
		updates := map[string]interface{}{"closed_at": &closedAt}
		if actor != uuid.Nil {
			updates["closed_by"] = actor
		}
		if err := tx.Model(&database.Shift{}).
			Where("branch_id = ? AND closed_at IS NULL", branch.ID).
			Updates(updates).Error; err != nil {
			return apperr.Unexpected("Failed to close branch", err)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return &branch, changed, nil
}

// Shifts returns the branch's shift history, newest first
func (s *Store) Shifts(ctx context.Context, shopID, branchID uuid.UUID, limit int) ([]database.Shift, error) {
	if limit <= 0 || limit > 200 {
		limit = 30
	}
	var shifts []database.Shift
	if err := s.db.WithContext(ctx).
		Where("shop_id = ? AND branch_id = ?", shopID, branchID).
		Order("day_number DESC").
		Limit(limit).
		Find(&shifts).Error; err != nil {
		return nil, apperr.Unexpected("Failed to fetch shifts", err)
	}
	return shifts, nil
}

func (s *Store) UpdateCashOnHand(ctx context.Context, shopID, branchID uuid.UUID, amount decimal.Decimal) (*database.Branch, error) {
	if amount.IsNegative() {
		return nil, apperr.Validation("Cash on hand must not be negative")
	}
	return s.set(ctx, shopID, branchID, map[string]interface{}{"cash_on_hand": amount})
}

// UpdateTax changes whichever of the two rates is given and stamps tax_last_updated
func (s *Store) UpdateTax(ctx context.Context, shopID, branchID uuid.UUID, cardTax, cashTax *decimal.Decimal) (*database.Branch, error) {
	if cardTax == nil && cashTax == nil {
		return nil, apperr.Validation("Please provide tax")
	}

	updates := map[string]interface{}{"tax_last_updated": s.now()}
	if cardTax != nil {
		if !validTax(*cardTax) {
			return nil, apperr.Validation("Tax rates must be between 0 and 100")
		}
		updates["card_tax"] = *cardTax
	}
	if cashTax != nil {
		if !validTax(*cashTax) {
			return nil, apperr.Validation("Tax rates must be between 0 and 100")
		}
		updates["cash_tax"] = *cashTax
	}
	return s.set(ctx, shopID, branchID, updates)
}

func (s *Store) set(ctx context.Context, shopID, branchID uuid.UUID, updates map[string]interface{}) (*database.Branch, error) {
	var branch database.Branch
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND shop_id = ?", branchID, shopID).First(&branch).Error; err != nil {
			return apperr.FromDB(err, "Branch")
		}
		if err := tx.Model(&branch).Updates(updates).Error; err != nil {
			return apperr.Unexpected("Failed to update branch", err)
		}
		return tx.First(&branch, "id = ?", branch.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return &branch, nil
}
