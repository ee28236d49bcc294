package catalog

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/yuditriaji/restopos-backend/pkg/apperr"
	"github.com/yuditriaji/restopos-backend/pkg/database"
)

// DeleteOutcome says what DeleteCategory did
type DeleteOutcome string

const (
	CategoryDeleted     DeleteOutcome = "deleted"
	CategoryDeactivated DeleteOutcome = "deactivated" // active products still reference it
	CategoryUnchanged   DeleteOutcome = "unchanged"
)

// Store reads and writes the shop-scoped catalog
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// ListCategories returns the shop's categories, active ones only unless includeInactive
func (s *Store) ListCategories(shopID uuid.UUID, includeInactive bool) ([]database.Category, error) {
	query := s.db.Where("shop_id = ?", shopID)
	if !includeInactive {
		query = query.Where("status = ?", true)
	}

	var categories []database.Category
	if err := query.Order("name").Find(&categories).Error; err != nil {
		return nil, apperr.Unexpected("Failed to fetch categories", err)
	}
	return categories, nil
}

// CreateCategory adds a category. A deactivated category with the same name is reactivated instead.
func (s *Store) CreateCategory(shopID uuid.UUID, name string) (*database.Category, bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, false, apperr.Validation("Please provide category name")
	}

	var existing database.Category
	err := s.db.Where("shop_id = ? AND name = ?", shopID, name).First(&existing).Error
	switch {
	case err == nil && existing.Status:
		return nil, false, apperr.Conflict("Category already exists")
	case err == nil:
		if err := s.db.Model(&existing).Update("status", true).Error; err != nil {
			return nil, false, apperr.Unexpected("Failed to add category", err)
		}
		existing.Status = true
		return &existing, false, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, false, apperr.Unexpected("Failed to add category", err)
	}

	category := database.Category{ShopID: shopID, Name: name, Status: true}
	if err := s.db.Create(&category).Error; err != nil {
		return nil, false, apperr.Unexpected("Failed to add category", err)
	}
	return &category, true, nil
}

func (s *Store) findCategory(db *gorm.DB, shopID, categoryID uuid.UUID) (*database.Category, error) {
	var category database.Category
	if err := db.Where("id = ? AND shop_id = ?", categoryID, shopID).First(&category).Error; err != nil {
		return nil, apperr.FromDB(err, "Category")
	}
	return &category, nil
}

// RenameCategory rejects a name already used by another active category of the shop
func (s *Store) RenameCategory(shopID, categoryID uuid.UUID, name string) (*database.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validation("Please provide category ID and name")
	}

	category, err := s.findCategory(s.db, shopID, categoryID)
	if err != nil {
		return nil, err
	}

	var clashes int64
	if err := s.db.Model(&database.Category{}).
		Where("shop_id = ? AND name = ? AND status = ? AND id <> ?", shopID, name, true, categoryID).
		Count(&clashes).Error; err != nil {
		return nil, apperr.Unexpected("Failed to update category", err)
	}
	if clashes > 0 {
		return nil, apperr.Conflict("Category name already exists")
	}

	if err := s.db.Model(category).Update("name", name).Error; err != nil {
		return nil, apperr.Unexpected("Failed to update category", err)
	}
	category.Name = name
	return category, nil
}

// DeleteCategory deactivates a category. One that no active product references is also removed from
// listings for good; one that is still referenced stays deactivated. Deleting twice is a no-op.
func (s *Store) DeleteCategory(shopID, categoryID uuid.UUID) (DeleteOutcome, error) {
	var category database.Category
	if err := s.db.Unscoped().Where("id = ? AND shop_id = ?", categoryID, shopID).First(&category).Error; err != nil {
		return "", apperr.FromDB(err, "Category")
	}
	if !category.Status || category.DeletedAt.Valid {
		return CategoryUnchanged, nil
	}

	outcome := CategoryDeleted
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var inUse int64
		if err := tx.Model(&database.Product{}).
			Where("shop_id = ? AND category_id = ? AND status = ?", shopID, categoryID, true).
			Count(&inUse).Error; err != nil {
			return err
		}

		if err := tx.Model(&category).Update("status", false).Error; err != nil {
			return err
		}
		if inUse > 0 {
			outcome = CategoryDeactivated
			return nil
		}
		return tx.Delete(&category).Error
	})
	if err != nil {
		return "", apperr.Unexpected("Failed to delete category", err)
	}
	return outcome, nil
}

// ProductInput is a new product
type ProductInput struct {
	Name        string
	Description string
	Price       decimal.Decimal
	Image       string
	Variations  []string
	// CategoryRef is a category id or, failing that, a category name
	CategoryRef string
}

// ProductPatch holds the fields an update sets; nil fields are left alone
type ProductPatch struct {
	Name        *string
	Description *string
	Price       *decimal.Decimal
	Image       *string
	Variations  *[]string
	CategoryRef *string
	Status      *bool
}

// activeCategory resolves ref by id, then by name, and requires the category to be active
func (s *Store) activeCategory(db *gorm.DB, shopID uuid.UUID, ref string) (*database.Category, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, apperr.Validation("Please provide category")
	}

	query := db.Where("shop_id = ?", shopID)
	if id, err := uuid.Parse(ref); err == nil {
		query = query.Where("id = ?", id)
	} else {
		query = query.Where("name = ?", ref)
	}

	var category database.Category
	if err := query.First(&category).Error; err != nil {
		return nil, apperr.FromDB(err, "Category")
	}
	if !category.Status {
		return nil, apperr.Validation("Category %s is not active", category.Name)
	}
	return &category, nil
}

func (s *Store) nameTaken(db *gorm.DB, shopID uuid.UUID, name string, except uuid.UUID) (bool, error) {
	var count int64
	query := db.Model(&database.Product{}).Where("shop_id = ? AND name = ?", shopID, name)
	if except != uuid.Nil {
		query = query.Where("id <> ?", except)
	}
	err := query.Count(&count).Error
	return count > 0, err
}

// ListProducts returns the shop's products with their category, active ones only unless includeInactive
func (s *Store) ListProducts(shopID uuid.UUID, includeInactive bool) ([]database.Product, error) {
	query := s.db.Where("shop_id = ?", shopID)
	if !includeInactive {
		query = query.Where("status = ?", true)
	}

	var products []database.Product
	if err := query.Preload("Category").Order("name").Find(&products).Error; err != nil {
		return nil, apperr.Unexpected("Failed to fetch products", err)
	}
	return products, nil
}

// GetProduct loads one product of the shop
func (s *Store) GetProduct(shopID, productID uuid.UUID) (*database.Product, error) {
	var product database.Product
	if err := s.db.Where("id = ? AND shop_id = ?", productID, shopID).
		Preload("Category").
		First(&product).Error; err != nil {
		return nil, apperr.FromDB(err, "Product")
	}
	return &product, nil
}

// CreateProduct rejects a name already used in the shop and an inactive category
func (s *Store) CreateProduct(shopID uuid.UUID, in ProductInput) (*database.Product, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, apperr.Validation("Please provide product name")
	}
	if !in.Price.IsPositive() {
		return nil, apperr.Validation("Price must be greater than zero")
	}

	var product database.Product
	err := s.db.Transaction(func(tx *gorm.DB) error {
		taken, err := s.nameTaken(tx, shopID, in.Name, uuid.Nil)
		if err != nil {
			return apperr.Unexpected("Failed to create product", err)
		}
		if taken {
			return apperr.Conflict("Product already exists")
		}

		category, err := s.activeCategory(tx, shopID, in.CategoryRef)
		if err != nil {
			return err
		}

		product = database.Product{
			ShopID:      shopID,
			CategoryID:  category.ID,
			Name:        in.Name,
			Price:       in.Price,
			Description: in.Description,
			Image:       in.Image,
			Variations:  pq.StringArray(in.Variations),
			Status:      true,
		}
		if err := tx.Create(&product).Error; err != nil {
			return apperr.Unexpected("Failed to create product", err)
		}
		product.Category = category
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// UpdateProduct applies patch. A changed category, and the category of a product being reactivated, must be active.
func (s *Store) UpdateProduct(shopID, productID uuid.UUID, patch ProductPatch) (*database.Product, error) {
	var product database.Product
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND shop_id = ?", productID, shopID).First(&product).Error; err != nil {
			return apperr.FromDB(err, "Product")
		}

		updates := map[string]interface{}{}
		if patch.Name != nil {
			name := strings.TrimSpace(*patch.Name)
			if name == "" {
				return apperr.Validation("Product name cannot be empty")
			}
			taken, err := s.nameTaken(tx, shopID, name, productID)
			if err != nil {
				return apperr.Unexpected("Failed to update product", err)
			}
			if taken {
				return apperr.Conflict("Product already exists")
			}
			updates["name"] = name
		}
		if patch.Price != nil {
			if !patch.Price.IsPositive() {
				return apperr.Validation("Price must be greater than zero")
			}
			updates["price"] = *patch.Price
		}
		if patch.Description != nil {
			updates["description"] = *patch.Description
		}
		if patch.Image != nil {
			updates["image"] = *patch.Image
		}
		if patch.Variations != nil {
			updates["variations"] = pq.StringArray(*patch.Variations)
		}
		if patch.Status != nil {
			updates["status"] = *patch.Status
		}
		if patch.CategoryRef != nil {
			category, err := s.activeCategory(tx, shopID, *patch.CategoryRef)
			if err != nil {
				return err
			}
			updates["category_id"] = category.ID
		} else if patch.Status != nil && *patch.Status && !product.Status {
			// reactivating keeps the current category, which may have been retired meanwhile
			if _, err := s.activeCategory(tx, shopID, product.CategoryID.String()); err != nil {
				if apperr.Is(err, apperr.KindNotFound) {
					return apperr.Validation("The product's category no longer exists, please choose another")
				}
				return err
			}
		}

		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(&product).Updates(updates).Error; err != nil {
			return apperr.Unexpected("Failed to update product", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetProduct(shopID, productID)
}

// DeleteProduct sets status=false; deleting an inactive product again succeeds without change
func (s *Store) DeleteProduct(shopID, productID uuid.UUID) (*database.Product, error) {
	var product database.Product
	if err := s.db.Where("id = ? AND shop_id = ?", productID, shopID).First(&product).Error; err != nil {
		return nil, apperr.FromDB(err, "Product")
	}
	if !product.Status {
		return &product, nil
	}
	if err := s.db.Model(&product).Update("status", false).Error; err != nil {
		return nil, apperr.Unexpected("Failed to delete product", err)
	}
	return &product, nil
}
