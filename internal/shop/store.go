package shop

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/yuditriaji/restopos-backend/internal/reports"
	"github.com/yuditriaji/restopos-backend/pkg/apperr"
	"github.com/yuditriaji/restopos-backend/pkg/database"
)

const minPasswordLength = 4

// Store manages the shop account itself. Shop name and e-mail are the login keys, so both are unique
// across the system.
type Store struct {
	db    *gorm.DB
	sales *reports.Service
	cost  int
	now   func() time.Time
}

func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:    db,
		sales: reports.NewService(db),
		cost:  bcrypt.DefaultCost,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Input holds a new shop
type Input struct {
	Name             string
	Email            string
	Password         string
	Address          string
	WebsiteLink      string
	Logo             string
	NTN              string
	TotalTables      int
	SocialMediaLinks []string
	Currency         string
	Timezone         string
}

// Patch changes the given profile fields. Changing the e-mail or the password needs CurrentPassword.
type Patch struct {
	Name             *string
	Email            *string
	Address          *string
	WebsiteLink      *string
	Logo             *string
	NTN              *string
	TaxIntegration   *bool
	TotalTables      *int
	SocialMediaLinks *[]string
	Currency         *string
	Timezone         *string
	CurrentPassword  string
	NewPassword      string
}

// Overview is the admin landing page summary
type Overview struct {
	Shop         database.Shop   `json:"shop"`
	Branches     int64           `json:"branches"`
	OpenBranches int64           `json:"open_branches"`
	Managers     int64           `json:"managers"`
	Cashiers     int64           `json:"cashiers"`
	Kitchens     int64           `json:"kitchens"`
	Products     int64           `json:"products"`
	Categories   int64           `json:"categories"`
	ActiveOrders int64           `json:"active_orders"`
	TodaySales   decimal.Decimal `json:"today_sales"`
	TotalSales   decimal.Decimal `json:"total_sales"`
}

func (s *Store) hash(password string) (string, error) {
	if len(password) < minPasswordLength {
		return "", apperr.Validation("Password must be at least %d characters long", minPasswordLength)
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", apperr.Unexpected("Failed to hash password", err)
	}
	return string(h), nil
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

func (s *Store) taken(tx *gorm.DB, column, value string, except uuid.UUID) (bool, error) {
	var count int64
	query := tx.Model(&database.Shop{}).Where("LOWER("+column+") = LOWER(?)", value)
	if except != uuid.Nil {
		query = query.Where("id <> ?", except)
	}
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Create signs a new shop up
func (s *Store) Create(ctx context.Context, in Input) (*database.Shop, error) {
	name := strings.TrimSpace(in.Name)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if name == "" || email == "" || in.Password == "" {
		return nil, apperr.Validation("Please provide shop name, email and password")
	}
	if !validEmail(email) {
		return nil, apperr.Validation("Invalid email address")
	}
	if in.TotalTables < 0 {
		return nil, apperr.Validation("Total tables cannot be negative")
	}
	hash, err := s.hash(in.Password)
	if err != nil {
		return nil, err
	}

	shop := database.Shop{
		Name:             name,
		Email:            email,
		PasswordHash:     hash,
		Address:          strings.TrimSpace(in.Address),
		WebsiteLink:      strings.TrimSpace(in.WebsiteLink),
		Logo:             in.Logo,
		NTN:              strings.TrimSpace(in.NTN),
		TotalTables:      in.TotalTables,
		SocialMediaLinks: pq.StringArray(in.SocialMediaLinks),
		Currency:         strings.ToUpper(strings.TrimSpace(in.Currency)),
		Timezone:         strings.TrimSpace(in.Timezone),
	}
	if shop.Currency == "" {
		shop.Currency = "PKR"
	}
	if shop.Timezone == "" {
		shop.Timezone = "Asia/Karachi"
	}
	if shop.SocialMediaLinks == nil {
		shop.SocialMediaLinks = pq.StringArray{}
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if dup, err := s.taken(tx, "name", name, uuid.Nil); err != nil {
			return apperr.Unexpected("Failed to create shop", err)
		} else if dup {
			return apperr.Conflict("Shop name already exists")
		}
		if dup, err := s.taken(tx, "email", email, uuid.Nil); err != nil {
			return apperr.Unexpected("Failed to create shop", err)
		} else if dup {
			return apperr.Conflict("Email already registered")
		}
		if err := tx.Create(&shop).Error; err != nil {
			return apperr.Unexpected("Failed to create shop", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &shop, nil
}

func (s *Store) Get(ctx context.Context, shopID uuid.UUID) (*database.Shop, error) {
	var shop database.Shop
	if err := s.db.WithContext(ctx).Where("id = ?", shopID).First(&shop).Error; err != nil {
		return nil, apperr.FromDB(err, "Shop")
	}
	return &shop, nil
}

// FindByName looks a shop up case-insensitively
func (s *Store) FindByName(ctx context.Context, name string) (*database.Shop, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validation("Please provide shop name")
	}
	var shop database.Shop
	if err := s.db.WithContext(ctx).Where("LOWER(name) = LOWER(?)", name).First(&shop).Error; err != nil {
		return nil, apperr.FromDB(err, "Shop")
	}
	return &shop, nil
}

// Names lists every shop name for the login picker
func (s *Store) Names(ctx context.Context) ([]string, error) {
	names := []string{}
	if err := s.db.WithContext(ctx).Model(&database.Shop{}).Order("name").Pluck("name", &names).Error; err != nil {
		return nil, apperr.Unexpected("Failed to fetch shops", err)
	}
	return names, nil
}

// BranchNames lists the branch names of the named shop
func (s *Store) BranchNames(ctx context.Context, shopName string) ([]string, error) {
	shop, err := s.FindByName(ctx, shopName)
	if err != nil {
		return nil, err
	}
	names := []string{}
	if err := s.db.WithContext(ctx).Model(&database.Branch{}).
		Where("shop_id = ?", shop.ID).
		Order("name").
		Pluck("name", &names).Error; err != nil {
		return nil, apperr.Unexpected("Failed to fetch branches", err)
	}
	return names, nil
}

// Overview counts the shop's branches, staff and catalog and sums today's and all-time sales
func (s *Store) Overview(ctx context.Context, shopID uuid.UUID) (*Overview, error) {
	shop, err := s.Get(ctx, shopID)
	if err != nil {
		return nil, err
	}
	o := &Overview{Shop: *shop}

	db := s.db.WithContext(ctx)
	counts := []struct {
		model interface{}
		where string
		args  []interface{}
		dest  *int64
	}{
		{&database.Branch{}, "shop_id = ?", []interface{}{shopID}, &o.Branches},
		{&database.Branch{}, "shop_id = ? AND shift_status = ?", []interface{}{shopID, true}, &o.OpenBranches},
		{&database.Manager{}, "shop_id = ?", []interface{}{shopID}, &o.Managers},
		{&database.Cashier{}, "shop_id = ?", []interface{}{shopID}, &o.Cashiers},
		{&database.Kitchen{}, "shop_id = ?", []interface{}{shopID}, &o.Kitchens},
		{&database.Product{}, "shop_id = ? AND status = ?", []interface{}{shopID, true}, &o.Products},
		{&database.Category{}, "shop_id = ? AND status = ?", []interface{}{shopID, true}, &o.Categories},
	}
	for _, q := range counts {
		if err := db.Model(q.model).Where(q.where, q.args...).Count(q.dest).Error; err != nil {
			return nil, apperr.Unexpected("Failed to load overview", err)
		}
	}
	if err := db.Model(&database.Order{}).
		Where("shop_id = ? AND status IN ?", shopID, []string{database.OrderPending, database.OrderReady}).
		Count(&o.ActiveOrders).Error; err != nil {
		return nil, apperr.Unexpected("Failed to load overview", err)
	}

	now := s.now()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	end := start.Add(24*time.Hour - time.Nanosecond)
	if o.TodaySales, err = s.sales.Total(ctx, shopID, reports.Range{Start: &start, End: &end}); err != nil {
		return nil, apperr.Unexpected("Failed to load overview", err)
	}
	if o.TotalSales, err = s.sales.Total(ctx, shopID, reports.Range{}); err != nil {
		return nil, apperr.Unexpected("Failed to load overview", err)
	}
	return o, nil
}

// UpdateProfile applies p to the shop
func (s *Store) UpdateProfile(ctx context.Context, shopID uuid.UUID, p Patch) (*database.Shop, error) {
	shop, err := s.Get(ctx, shopID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	sensitive := p.NewPassword != ""
	if p.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*p.Email))
		if !validEmail(email) {
			return nil, apperr.Validation("Invalid email address")
		}
		if email != shop.Email {
			sensitive = true
			updates["email"] = email
		}
	}
	if sensitive {
		if p.CurrentPassword == "" {
			return nil, apperr.Validation("Current password is required for updates")
		}
		if bcrypt.CompareHashAndPassword([]byte(shop.PasswordHash), []byte(p.CurrentPassword)) != nil {
			return nil, apperr.Validation("Current password is incorrect")
		}
	}
	if p.NewPassword != "" {
		hash, err := s.hash(p.NewPassword)
		if err != nil {
			return nil, err
		}
		updates["password_hash"] = hash
	}

	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if name == "" {
			return nil, apperr.Validation("Shop name cannot be empty")
		}
		if name != shop.Name {
			updates["name"] = name
		}
	}
	if p.TotalTables != nil {
		if *p.TotalTables < 0 {
			return nil, apperr.Validation("Total tables cannot be negative")
		}
		updates["total_tables"] = *p.TotalTables
	}
	for column, v := range map[string]*string{
		"address":      p.Address,
		"website_link": p.WebsiteLink,
		"logo":         p.Logo,
		"ntn":          p.NTN,
		"timezone":     p.Timezone,
	} {
		if v != nil {
			updates[column] = strings.TrimSpace(*v)
		}
	}
	if p.Currency != nil {
		updates["currency"] = strings.ToUpper(strings.TrimSpace(*p.Currency))
	}
	if p.TaxIntegration != nil {
		updates["tax_integration"] = *p.TaxIntegration
	}
	if p.SocialMediaLinks != nil {
		links := pq.StringArray(*p.SocialMediaLinks)
		if links == nil {
			links = pq.StringArray{}
		}
		updates["social_media_links"] = links
	}
	if len(updates) == 0 {
		return shop, nil
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if name, ok := updates["name"].(string); ok {
			if dup, err := s.taken(tx, "name", name, shop.ID); err != nil {
				return apperr.Unexpected("Failed to update profile", err)
			} else if dup {
				return apperr.Conflict("Shop name already exists")
			}
		}
		if email, ok := updates["email"].(string); ok {
			if dup, err := s.taken(tx, "email", email, shop.ID); err != nil {
				return apperr.Unexpected("Failed to update profile", err)
			} else if dup {
				return apperr.Conflict("Email already registered")
			}
		}
		if err := tx.Model(&database.Shop{}).Where("id = ?", shop.ID).Updates(updates).Error; err != nil {
			return apperr.Unexpected("Failed to update profile", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, shopID)
}
