package staff

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/yuditriaji/restopos-backend/pkg/apperr"
	"github.com/yuditriaji/restopos-backend/pkg/database"
	"github.com/yuditriaji/restopos-backend/pkg/rbac"
)

const minPasswordLength = 4

// Store manages branch staff accounts. Managers are unique by username within the shop, cashiers and
// kitchen accounts within their branch.
type Store struct {
	db   *gorm.DB
	cost int
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db, cost: bcrypt.DefaultCost}
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

// Account is the public view of a cashier or kitchen login
type Account struct {
	ID        uuid.UUID `json:"id"`
	BranchID  uuid.UUID `json:"branch_id"`
	Username  string    `json:"username"`
	Role      rbac.Role `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// ManagerInput holds a new manager; Branch is a branch id or name inside the shop
type ManagerInput struct {
	Branch    string
	Username  string
	Password  string
	Email     string
	FirstName string
	LastName  string
	Contact   string
}

// ManagerPatch changes the given fields; BranchID moves the manager to another branch of the same shop
type ManagerPatch struct {
	Username  *string
	Password  *string
	Email     *string
	FirstName *string
	LastName  *string
	Contact   *string
	BranchID  *uuid.UUID
}

func findBranch(tx *gorm.DB, shopID uuid.UUID, ref string) (*database.Branch, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, apperr.Validation("Please provide branch")
	}
	query := tx.Where("shop_id = ?", shopID)
	if id, err := uuid.Parse(ref); err == nil {
		query = query.Where("id = ?", id)
	} else {
		query = query.Where("LOWER(name) = LOWER(?)", ref)
	}

	var branch database.Branch
	if err := query.First(&branch).Error; err != nil {
		return nil, apperr.FromDB(err, "Branch")
	}
	return &branch, nil
}

func managerTaken(tx *gorm.DB, shopID uuid.UUID, username string, except uuid.UUID) (bool, error) {
	var count int64
	err := tx.Model(&database.Manager{}).
		Where("shop_id = ? AND username = ? AND id <> ?", shopID, username, except).
		Count(&count).Error
	return count > 0, err
}

func (s *Store) ListManagers(ctx context.Context, shopID uuid.UUID) ([]database.Manager, error) {
	var managers []database.Manager
	if err := s.db.WithContext(ctx).
		Preload("Branch", func(db *gorm.DB) *gorm.DB { return db.Select("id", "name", "shop_id") }).
		Where("shop_id = ?", shopID).
		Order("username").
		Find(&managers).Error; err != nil {
		return nil, apperr.Unexpected("Failed to fetch managers", err)
	}
	return managers, nil
}

func (s *Store) CreateManager(ctx context.Context, shopID uuid.UUID, in ManagerInput) (*database.Manager, error) {
	in.Username = strings.TrimSpace(in.Username)
	if in.Username == "" || in.Password == "" || strings.TrimSpace(in.Branch) == "" {
		return nil, apperr.Validation("Please fill in all fields")
	}
	hash, err := s.hash(in.Password)
	if err != nil {
		return nil, err
	}

	var manager database.Manager
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		branch, err := findBranch(tx, shopID, in.Branch)
		if err != nil {
			return err
		}
		taken, err := managerTaken(tx, shopID, in.Username, uuid.Nil)
		if err != nil {
			return apperr.Unexpected("Failed to create manager", err)
		}
		if taken {
			return apperr.Conflict("Manager %s already exists", in.Username)
		}

		manager = database.Manager{
			ShopID:       shopID,
			BranchID:     branch.ID,
			Username:     in.Username,
			PasswordHash: hash,
			Email:        strings.TrimSpace(in.Email),
			FirstName:    strings.TrimSpace(in.FirstName),
			LastName:     strings.TrimSpace(in.LastName),
			Contact:      strings.TrimSpace(in.Contact),
		}
		if err := tx.Create(&manager).Error; err != nil {
			return apperr.Unexpected("Failed to create manager", err)
		}
		manager.Branch = branch
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &manager, nil
}

func (s *Store) UpdateManager(ctx context.Context, shopID, managerID uuid.UUID, p ManagerPatch) (*database.Manager, error) {
	updates := map[string]interface{}{}
	if p.Password != nil && *p.Password != "" {
		hash, err := s.hash(*p.Password)
		if err != nil {
			return nil, err
		}
		updates["password_hash"] = hash
	}

	var manager database.Manager
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND shop_id = ?", managerID, shopID).First(&manager).Error; err != nil {
			return apperr.FromDB(err, "Manager")
		}

		if p.Username != nil {
			username := strings.TrimSpace(*p.Username)
			if username != "" && username != manager.Username {
				taken, err := managerTaken(tx, shopID, username, manager.ID)
				if err != nil {
					return apperr.Unexpected("Failed to update manager", err)
				}
				if taken {
					return apperr.Conflict("Manager %s already exists", username)
				}
				updates["username"] = username
			}
		}
		if p.BranchID != nil && *p.BranchID != manager.BranchID {
			branch, err := findBranch(tx, shopID, p.BranchID.String())
			if err != nil {
				return err
			}
			updates["branch_id"] = branch.ID
		}
		for column, value := range map[string]*string{
			"email":      p.Email,
			"first_name": p.FirstName,
			"last_name":  p.LastName,
			"contact":    p.Contact,
		} {
			if value != nil && strings.TrimSpace(*value) != "" {
				updates[column] = strings.TrimSpace(*value)
			}
		}

		if len(updates) > 0 {
			if err := tx.Model(&manager).Updates(updates).Error; err != nil {
				return apperr.Unexpected("Failed to update manager", err)
			}
		}
		return tx.Preload("Branch").First(&manager, "id = ?", manager.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return &manager, nil
}

// DeleteManager removes the account outright so the username can be reused
func (s *Store) DeleteManager(ctx context.Context, shopID, managerID uuid.UUID) (*database.Manager, error) {
	var manager database.Manager
	if err := s.db.WithContext(ctx).Where("id = ? AND shop_id = ?", managerID, shopID).First(&manager).Error; err != nil {
		return nil, apperr.FromDB(err, "Manager")
	}
	if err := s.db.WithContext(ctx).Unscoped().Delete(&manager).Error; err != nil {
		return nil, apperr.Unexpected("Failed to delete manager", err)
	}
	return &manager, nil
}

// AddAccount creates a cashier or kitchen login on the branch
func (s *Store) AddAccount(ctx context.Context, shopID, branchID uuid.UUID, role rbac.Role, username, password string) (*Account, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, apperr.Validation("Please fill in all fields")
	}
	hash, err := s.hash(password)
	if err != nil {
		return nil, err
	}

	var account Account
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var branch database.Branch
		if err := tx.Where("id = ? AND shop_id = ?", branchID, shopID).First(&branch).Error; err != nil {
			return apperr.FromDB(err, "Branch")
		}

		var (
			row   interface{}
			model interface{}
		)
		switch role {
		case rbac.Cashier:
			model = &database.Cashier{}
			row = &database.Cashier{ShopID: shopID, BranchID: branchID, Username: username, PasswordHash: hash}
		case rbac.Kitchen:
			model = &database.Kitchen{}
			row = &database.Kitchen{ShopID: shopID, BranchID: branchID, Username: username, PasswordHash: hash}
		default:
			return apperr.Validation("Unsupported staff role %s", role)
		}

		var count int64
		if err := tx.Model(model).Where("branch_id = ? AND username = ?", branchID, username).Count(&count).Error; err != nil {
			return apperr.Unexpected("Failed to create account", err)
		}
		if count > 0 {
			return apperr.Conflict("Username %s is already taken in this branch", username)
		}
		if err := tx.Create(row).Error; err != nil {
			return apperr.Unexpected("Failed to create account", err)
		}

		switch r := row.(type) {
		case *database.Cashier:
			account = Account{ID: r.ID, BranchID: r.BranchID, Username: r.Username, Role: rbac.Cashier, CreatedAt: r.CreatedAt}
		case *database.Kitchen:
			account = Account{ID: r.ID, BranchID: r.BranchID, Username: r.Username, Role: rbac.Kitchen, CreatedAt: r.CreatedAt}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// ListAccounts returns the cashier or kitchen logins of the branch
func (s *Store) ListAccounts(ctx context.Context, shopID, branchID uuid.UUID, role rbac.Role) ([]Account, error) {
	var table string
	switch role {
	case rbac.Cashier:
		table = "cashiers"
	case rbac.Kitchen:
		table = "kitchens"
	default:
		return nil, apperr.Validation("Unsupported staff role %s", role)
	}

	accounts := []Account{}
	if err := s.db.WithContext(ctx).Table(table).
		Select("id", "branch_id", "username", "created_at").
		Where("shop_id = ? AND branch_id = ? AND deleted_at IS NULL", shopID, branchID).
		Order("username").
		Scan(&accounts).Error; err != nil {
		return nil, apperr.Unexpected("Failed to fetch accounts", err)
	}
	for i := range accounts {
		accounts[i].Role = role
	}
	return accounts, nil
}

// Profile is a manager with the branch and shop they work for
type Profile struct {
	Manager *database.Manager `json:"manager"`
	Branch  *database.Branch  `json:"branch"`
	Shop    struct {
		ID   uuid.UUID `json:"id"`
		Name string    `json:"name"`
	} `json:"shop"`
}

func (s *Store) Profile(ctx context.Context, shopID, managerID uuid.UUID) (*Profile, error) {
	var manager database.Manager
	if err := s.db.WithContext(ctx).Preload("Branch").
		Where("id = ? AND shop_id = ?", managerID, shopID).
		First(&manager).Error; err != nil {
		return nil, apperr.FromDB(err, "Manager")
	}
	var shop database.Shop
	if err := s.db.WithContext(ctx).Select("id", "name").First(&shop, "id = ?", shopID).Error; err != nil {
		return nil, apperr.FromDB(err, "Shop")
	}

	p := &Profile{Manager: &manager, Branch: manager.Branch}
	p.Shop.ID = shop.ID
	p.Shop.Name = shop.Name
	return p, nil
}

// ProfilePatch is a manager editing their own account. Changing the e-mail or password needs the current
// password.
type ProfilePatch struct {
	Username        string
	Email           string
	CurrentPassword string
	NewPassword     string
}

func (s *Store) UpdateProfile(ctx context.Context, shopID, managerID uuid.UUID, p ProfilePatch) (*database.Manager, error) {
	var manager database.Manager
	if err := s.db.WithContext(ctx).Where("id = ? AND shop_id = ?", managerID, shopID).First(&manager).Error; err != nil {
		return nil, apperr.FromDB(err, "Manager")
	}

	email := strings.TrimSpace(p.Email)
	sensitive := (email != "" && email != manager.Email) || p.NewPassword != ""
	if sensitive && p.CurrentPassword == "" {
		return nil, apperr.Validation("Current password is required for updates")
	}
	if p.CurrentPassword != "" {
		if bcrypt.CompareHashAndPassword([]byte(manager.PasswordHash), []byte(p.CurrentPassword)) != nil {
			return nil, apperr.Validation("Current password is incorrect")
		}
	}

	patch := ManagerPatch{}
	if username := strings.TrimSpace(p.Username); username != "" {
		patch.Username = &username
	}
	if email != "" && email != manager.Email {
		var count int64
		if err := s.db.WithContext(ctx).Model(&database.Manager{}).
			Where("shop_id = ? AND email = ? AND id <> ?", shopID, email, manager.ID).
			Count(&count).Error; err != nil {
			return nil, apperr.Unexpected("Failed to update profile", err)
		}
		if count > 0 {
			return nil, apperr.Conflict("Email already in use")
		}
		patch.Email = &email
	}
	if p.NewPassword != "" {
		patch.Password = &p.NewPassword
	}
	return s.UpdateManager(ctx, shopID, manager.ID, patch)
}
