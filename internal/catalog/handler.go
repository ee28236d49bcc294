package catalog

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/yuditriaji/restopos-backend/pkg/activitylog"
	"github.com/yuditriaji/restopos-backend/pkg/apperr"
	"github.com/yuditriaji/restopos-backend/pkg/middleware"
	"github.com/yuditriaji/restopos-backend/pkg/rbac"
)

type Handler struct {
	store  *Store
	logger *activitylog.Logger
}

func NewHandler(db *gorm.DB) *Handler {
	return &Handler{
		store:  NewStore(db),
		logger: activitylog.NewLogger(db),
	}
}

type CategoryRequest struct {
	CategoryID   string `json:"categoryId"`
	CategoryName string `json:"categoryName"`
}

type CreateProductRequest struct {
	Name        string          `json:"name" binding:"required"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	CategoryID  string          `json:"category_id"`
	Image       string          `json:"image"`
	Variations  []string        `json:"variations"`
}

type UpdateProductRequest struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	Category    *string          `json:"category"`
	Image       *string          `json:"image"`
	Variations  *[]string        `json:"variations"`
	Status      *bool            `json:"status"`
}

// includeInactive honours ?include_inactive=true for managers and above
func includeInactive(c *gin.Context) bool {
	return c.Query("include_inactive") == "true" &&
		rbac.Role(c.GetString(middleware.KeyRole)).Satisfies(rbac.Manager)
}

func parseID(raw, entity string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, apperr.Validation("Please provide %s ID", entity)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperr.Validation("Invalid %s ID", entity)
	}
	return id, nil
}

// ListCategories returns the shop's active categories
func (h *Handler) ListCategories(c *gin.Context) {
	shopID, err := middleware.ShopID(c)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	categories, err := h.store.ListCategories(shopID, includeInactive(c))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": categories})
}

// CreateCategory adds a category to the shop
func (h *Handler) CreateCategory(c *gin.Context) {
	shopID, err := middleware.ShopID(c)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	var req CategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Respond(c, apperr.Validation("Please provide category name"))
		return
	}

	category, created, err := h.store.CreateCategory(shopID, req.CategoryName)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	if created {
		h.logger.LogCreate(c, "category", category.ID, map[string]interface{}{"name": category.Name})
		c.JSON(http.StatusCreated, gin.H{"data": category, "message": "Category added successfully"})
		return
	}
	h.logger.LogToggle(c, "category", category.ID, true, category.Name)
	c.JSON(http.StatusOK, gin.H{"data": category, "message": "Category reactivated"})
}

// UpdateCategory renames a category
func (h *Handler) UpdateCategory(c *gin.Context) {
	shopID, err := middleware.ShopID(c)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	var req CategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Respond(c, apperr.Validation("Please provide category ID and name"))
		return
	}
	categoryID, err := parseID(req.CategoryID, "category")
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	category, err := h.store.RenameCategory(shopID, categoryID, req.CategoryName)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	h.logger.LogUpdate(c, "category", category.ID, nil, map[string]interface{}{"name": category.Name})
	c.JSON(http.StatusOK, gin.H{"data": category, "message": "Category updated successfully"})
}

// DeleteCategory soft-deletes a category given as ?categoryId= or in the body
func (h *Handler) DeleteCategory(c *gin.Context) {
	shopID, err := middleware.ShopID(c)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	raw := c.Query("categoryId")
	if raw == "" {
		var req CategoryRequest
		_ = c.ShouldBindJSON(&req)
		raw = req.CategoryID
	}
	categoryID, err := parseID(raw, "category")
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	outcome, err := h.store.DeleteCategory(shopID, categoryID)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	message := "Category deleted successfully"
	switch outcome {
	case CategoryDeactivated:
		message = "Category has been deactivated as it is being used by products"
		h.logger.LogToggle(c, "category", categoryID, false, "")
	case CategoryDeleted:
		h.logger.LogDelete(c, "category", categoryID, nil)
	}
	c.JSON(http.StatusOK, gin.H{"message": message, "outcome": outcome})
}

// ListProducts returns the shop's active products
func (h *Handler) ListProducts(c *gin.Context) {
	shopID, err := middleware.ShopID(c)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	products, err := h.store.ListProducts(shopID, includeInactive(c))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": products})
}

// CreateProduct adds a product under an active category
func (h *Handler) CreateProduct(c *gin.Context) {
	shopID, err := middleware.ShopID(c)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	var req CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Respond(c, apperr.Validation("Please fill in all fields"))
		return
	}

	ref := req.CategoryID
	if ref == "" {
		ref = req.Category
	}
	product, err := h.store.CreateProduct(shopID, ProductInput{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Image:       req.Image,
		Variations:  req.Variations,
		CategoryRef: ref,
	})
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	h.logger.LogCreate(c, "product", product.ID, map[string]interface{}{
		"name":  product.Name,
		"price": product.Price,
	})
	c.JSON(http.StatusCreated, gin.H{"data": product, "message": "Product created successfully"})
}

// UpdateProduct applies a partial update to the product in the path
func (h *Handler) UpdateProduct(c *gin.Context) {
	shopID, err := middleware.ShopID(c)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	productID, err := parseID(c.Param("id"), "product")
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	var req UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Respond(c, apperr.Validation("Invalid request body"))
		return
	}

	before, err := h.store.GetProduct(shopID, productID)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	product, err := h.store.UpdateProduct(shopID, productID, ProductPatch{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Image:       req.Image,
		Variations:  req.Variations,
		CategoryRef: req.Category,
		Status:      req.Status,
	})
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	h.logger.LogUpdate(c, "product", product.ID,
		map[string]interface{}{"name": before.Name, "price": before.Price, "status": before.Status},
		map[string]interface{}{"name": product.Name, "price": product.Price, "status": product.Status},
	)
	c.JSON(http.StatusOK, gin.H{"data": product, "message": "Product updated successfully"})
}

// DeleteProduct soft-deletes the product in the path
func (h *Handler) DeleteProduct(c *gin.Context) {
	shopID, err := middleware.ShopID(c)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	productID, err := parseID(c.Param("id"), "product")
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	product, err := h.store.DeleteProduct(shopID, productID)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	h.logger.LogDelete(c, "product", product.ID, map[string]interface{}{"name": product.Name})
	c.JSON(http.StatusOK, gin.H{"message": "Product deleted successfully"})
}
