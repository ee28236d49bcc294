package database

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Order statuses
const (
	OrderPending   = "pending"
	OrderReady     = "ready"
	OrderCompleted = "completed"
	OrderCancelled = "cancelled"
)

// Order types, payment methods and sources accepted at order creation
const (
	OrderTypeDelivery = "delivery"
	OrderTypeTakeaway = "takeaway"
	OrderTypeDineIn   = "dine-in"

	PaymentCash   = "cash"
	PaymentCard   = "card"
	PaymentOnline = "online"

	SourcePOS            = "pos"
	SourceOrderingSystem = "ordering-system"
	SourceWebsite        = "website"
	SourceMobileApp      = "mobile-app"
)

// ErrLedgerAppendOnly is returned when code tries to change or remove a sales entry
var ErrLedgerAppendOnly = errors.New("sales ledger is append-only")

// Base model for all entities
type BaseModel struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// BeforeCreate assigns a UUID when the caller did not
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// Shop is the tenant: the account that owns branches, staff and catalog
type Shop struct {
	BaseModel
	Name             string         `gorm:"uniqueIndex;not null" json:"shop_name"`
	Email            string         `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash     string         `gorm:"not null" json:"-"`
	Address          string         `json:"address"`
	WebsiteLink      string         `json:"website_link"`
	Logo             string         `json:"logo"`
	NTN              string         `json:"ntn"` // national tax number
	TaxIntegration   bool           `json:"tax_integration"`
	TotalTables      int            `json:"total_tables"`
	SocialMediaLinks pq.StringArray `gorm:"type:text[]" json:"social_media_links"`
	Currency         string         `gorm:"default:'PKR'" json:"currency"`
	Timezone         string         `gorm:"default:'Asia/Karachi'" json:"timezone"`
	SubscriptionPlan string         `gorm:"default:'basic'" json:"subscription_plan"`
}

// Branch is a physical location of a shop
type Branch struct {
	BaseModel
	ShopID         uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_branch_shop_name" json:"shop_id"`
	Name           string          `gorm:"not null;uniqueIndex:idx_branch_shop_name" json:"branch_name"`
	Address        string          `json:"address"`
	City           string          `json:"city"`
	Contact        string          `json:"contact"`
	TotalTables    int             `json:"total_tables"`
	OpeningTime    string          `json:"opening_time"` // HH:MM
	ClosingTime    string          `json:"closing_time"`
	ShiftStatus    bool            `json:"shift_status"`
	DayNumber      int             `gorm:"not null" json:"day_number"`
	CashOnHand     decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"cash_on_hand"`
	CardTax        decimal.Decimal `gorm:"type:numeric(5,2);not null" json:"card_tax"`
	CashTax        decimal.Decimal `gorm:"type:numeric(5,2);not null" json:"cash_tax"`
	TaxLastUpdated *time.Time      `json:"tax_last_updated,omitempty"`
}

// SalesEntry is one append-only row of a branch's sales ledger
type SalesEntry struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	ShopID    uuid.UUID       `gorm:"type:uuid;not null;index" json:"shop_id"`
	BranchID  uuid.UUID       `gorm:"type:uuid;not null;index:idx_sales_branch_date" json:"branch_id"`
	OrderID   uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex" json:"order_id"`
	Date      time.Time       `gorm:"not null;index:idx_sales_branch_date" json:"date"`
	Amount    decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	CreatedAt time.Time       `json:"created_at"`
}

func (e *SalesEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

func (e *SalesEntry) BeforeUpdate(tx *gorm.DB) error {
	return ErrLedgerAppendOnly
}

func (e *SalesEntry) BeforeDelete(tx *gorm.DB) error {
	return ErrLedgerAppendOnly
}

// Shift records one opening of a branch; DayNumber mirrors the branch counter at open time
type Shift struct {
	BaseModel
	ShopID    uuid.UUID  `gorm:"type:uuid;not null;index" json:"shop_id"`
	BranchID  uuid.UUID  `gorm:"type:uuid;not null;index" json:"branch_id"`
	DayNumber int        `gorm:"not null" json:"day_number"`
	OpenedAt  time.Time  `gorm:"not null" json:"opened_at"`
	ClosedAt  *time.Time `json:"closed_at"`
	OpenedBy  uuid.UUID  `gorm:"type:uuid" json:"opened_by"`
	ClosedBy  *uuid.UUID `gorm:"type:uuid" json:"closed_by,omitempty"`
}

// Manager runs one branch; username is unique within the shop
type Manager struct {
	BaseModel
	ShopID       uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_manager_shop_username" json:"shop_id"`
	BranchID     uuid.UUID `gorm:"type:uuid;not null;index" json:"branch_id"`
	Branch       *Branch   `gorm:"foreignKey:BranchID" json:"branch,omitempty"`
	Username     string    `gorm:"not null;uniqueIndex:idx_manager_shop_username" json:"username"`
	PasswordHash string    `gorm:"not null" json:"-"`
	Email        string    `json:"email"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Contact      string    `json:"contact"`
}

// Cashier username is unique within the branch
type Cashier struct {
	BaseModel
	ShopID       uuid.UUID `gorm:"type:uuid;not null;index" json:"shop_id"`
	BranchID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_cashier_branch_username" json:"branch_id"`
	Username     string    `gorm:"not null;uniqueIndex:idx_cashier_branch_username" json:"username"`
	PasswordHash string    `gorm:"not null" json:"-"`
}

// Kitchen username is unique within the branch
type Kitchen struct {
	BaseModel
	ShopID       uuid.UUID `gorm:"type:uuid;not null;index" json:"shop_id"`
	BranchID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_kitchen_branch_username" json:"branch_id"`
	Username     string    `gorm:"not null;uniqueIndex:idx_kitchen_branch_username" json:"username"`
	PasswordHash string    `gorm:"not null" json:"-"`
}

// Category for products; Status false hides it from listings
type Category struct {
	BaseModel
	ShopID uuid.UUID `gorm:"type:uuid;not null;index" json:"shop_id"`
	Name   string    `gorm:"not null" json:"name"`
	Status bool      `gorm:"not null" json:"status"`
}

// Product represents a sellable item; name is unique within the shop
type Product struct {
	BaseModel
	ShopID      uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_product_shop_name" json:"shop_id"`
	CategoryID  uuid.UUID       `gorm:"type:uuid;not null;index" json:"category_id"`
	Category    *Category       `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	Name        string          `gorm:"not null;uniqueIndex:idx_product_shop_name" json:"name"`
	Price       decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	Description string          `json:"description"`
	Image       string          `json:"image"`
	Variations  pq.StringArray  `gorm:"type:text[]" json:"variations"`
	Status      bool            `gorm:"not null" json:"status"`
}

// Order is a customer order; cart lines snapshot product name and price at purchase time
type Order struct {
	BaseModel
	ShopID          uuid.UUID       `gorm:"type:uuid;not null;index:idx_order_scope" json:"shop_id"`
	BranchID        uuid.UUID       `gorm:"type:uuid;not null;index:idx_order_scope" json:"branch_id"`
	Status          string          `gorm:"not null;index:idx_order_scope" json:"status"`
	Cart            []OrderLine     `gorm:"foreignKey:OrderID" json:"cart"`
	Total           decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total"`
	GrandTotal      decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"grand_total"`
	Tax             decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"tax"`
	Discount        decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"discount"`
	DeliveryCharges decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"delivery_charges"`
	CustomerName    string          `gorm:"not null" json:"customer_name"`
	CustomerPhone   string          `json:"customer_phone,omitempty"`
	CustomerEmail   string          `json:"customer_email,omitempty"`
	PaymentMethod   string          `gorm:"not null" json:"payment_method"`
	OrderType       string          `gorm:"not null" json:"order_type"`
	Address         string          `gorm:"not null" json:"address"`
	Comment         string          `json:"comment,omitempty"`
	Source          string          `gorm:"not null" json:"source"`
	EstimatedTime   string          `json:"estimated_time,omitempty"`
	CancelReason    string          `json:"cancel_reason,omitempty"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
}

// OrderLine is one cart line; Position keeps the cart order
type OrderLine struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey" json:"-"`
	OrderID     uuid.UUID       `gorm:"type:uuid;not null;index" json:"-"`
	Position    int             `gorm:"not null" json:"-"`
	ProductID   string          `gorm:"not null" json:"product_id"`
	ProductName string          `gorm:"not null" json:"product_name"`
	Quantity    int             `gorm:"not null" json:"quantity"`
	Price       decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
}

func (l *OrderLine) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

// Notification outbox statuses
const (
	OutboxPending    = "pending"
	OutboxProcessing = "processing"
	OutboxSent       = "sent"
	OutboxFailed     = "failed"
)

// NotificationOutbox is a queued customer notification written in the same transaction as the order change
type NotificationOutbox struct {
	BaseModel
	ShopID        uuid.UUID  `gorm:"type:uuid;not null;index" json:"shop_id"`
	OrderID       uuid.UUID  `gorm:"type:uuid;not null;index" json:"order_id"`
	Channel       string     `gorm:"not null" json:"channel"` // email, chat
	Event         string     `gorm:"not null" json:"event"`   // placed, ready, cancelled
	Recipient     string     `gorm:"not null" json:"recipient"`
	Payload       string     `gorm:"type:text" json:"payload"` // JSON order summary
	Status        string     `gorm:"not null;index:idx_outbox_due" json:"status"`
	Attempts      int        `gorm:"not null" json:"attempts"`
	NextAttemptAt time.Time  `gorm:"not null;index:idx_outbox_due" json:"next_attempt_at"`
	LastError     string     `gorm:"type:text" json:"last_error,omitempty"`
	SentAt        *time.Time `json:"sent_at,omitempty"`
}

// ActivityLog tracks staff actions for audit trail
type ActivityLog struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ShopID     uuid.UUID  `gorm:"type:uuid;not null;index" json:"shop_id"`
	BranchID   *uuid.UUID `gorm:"type:uuid" json:"branch_id,omitempty"`
	ActorID    string     `gorm:"not null" json:"actor_id"`
	ActorRole  string     `gorm:"not null" json:"actor_role"`
	Action     string     `gorm:"not null" json:"action"` // create, update, delete, open_shift, ...
	EntityType string     `json:"entity_type"`
	EntityID   *uuid.UUID `gorm:"type:uuid" json:"entity_id"`
	Details    string     `gorm:"type:text" json:"details"` // JSON details
	IPAddress  string     `json:"ip_address"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

func (a *ActivityLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// Migrate runs database migrations
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Shop{},
		&Branch{},
		&SalesEntry{},
		&Shift{},
		&Manager{},
		&Cashier{},
		&Kitchen{},
		&Category{},
		&Product{},
		&Order{},
		&OrderLine{},
		&NotificationOutbox{},
		&ActivityLog{},
	)
}
