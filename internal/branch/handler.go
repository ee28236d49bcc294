package branch

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/yuditriaji/restopos-backend/pkg/activitylog"
	"github.com/yuditriaji/restopos-backend/pkg/apperr"
	"github.com/yuditriaji/restopos-backend/pkg/database"
	"github.com/yuditriaji/restopos-backend/pkg/middleware"
)

type Handler struct {
	store  *Store
	rates  RateSource
	logger *activitylog.Logger
}

func NewHandler(db *gorm.DB, rates RateSource) *Handler {
	return &Handler{
		store:  NewStore(db),
		rates:  rates,
		logger: activitylog.NewLogger(db),
	}
}

type CreateBranchRequest struct {
	BranchName  string          `json:"branchName" binding:"required"`
	Address     string          `json:"address"`
	City        string          `json:"city"`
	Contact     string          `json:"contact"`
	TotalTables int             `json:"total_tables"`
	OpeningTime string          `json:"opening_time"`
	ClosingTime string          `json:"closing_time"`
	CardTax     decimal.Decimal `json:"card_tax"`
	CashTax     decimal.Decimal `json:"cash_tax"`
}

// UpdateBranchRequest identifies the branch by branchId, or by its current branchName
type UpdateBranchRequest struct {
	BranchID    string  `json:"branchId"`
	BranchName  string  `json:"branchName"`
	NewName     *string `json:"newName"`
	Address     *string `json:"address"`
	City        *string `json:"city"`
	Contact     *string `json:"contact"`
	TotalTables *int    `json:"totalTables"`
	OpeningTime *string `json:"openingTime"`
	ClosingTime *string `json:"closingTime"`
}

type TimingsRequest struct {
	OpeningTime string `json:"opening_time"`
	ClosingTime string `json:"closing_time"`
	BranchGot   *struct {
		OpeningTime string `json:"opening_time"`
		ClosingTime string `json:"closing_time"`
	} `json:"branchGot"`
}

type CashOnHandRequest struct {
	CashOnHand *decimal.Decimal `json:"cash_on_hand"`
}

type TaxRequest struct {
	CardTax *decimal.Decimal `json:"cardTax"`
	CashTax *decimal.Decimal `json:"cashTax"`
}

type BranchRef struct {
	BranchID   string `json:"branchId"`
	BranchName string `json:"branchName"`
}

func actorID(c *gin.Context) uuid.UUID {
	id, err := uuid.Parse(c.GetString(middleware.KeyUserID))
	if err != nil {
		return uuid.Nil
	}
	return id
}

// resolve finds the branch named by id (preferred) or by name
func (h *Handler) resolve(c *gin.Context, shopID uuid.UUID, ref BranchRef) (*database.Branch, error) {
	switch {
	case ref.BranchID != "":
		id, err := uuid.Parse(ref.BranchID)
		if err != nil {
			return nil, apperr.Validation("Invalid branch ID")
		}
		return h.store.Get(c.Request.Context(), shopID, id)
	case ref.BranchName != "":
		return h.store.FindByName(c.Request.Context(), shopID, ref.BranchName)
	default:
		return nil, apperr.Validation("Please provide branch ID")
	}
}

// scope returns the shop and the branch the caller operates on
func scope(c *gin.Context) (uuid.UUID, uuid.UUID, error) {
	shopID, err := middleware.ShopID(c)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	branchID, err := middleware.BranchScope(c)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return shopID, branchID, nil
}

// ListBranches returns all branches of the shop
func (h *Handler) ListBranches(c *gin.Context) {
	shopID, err := middleware.ShopID(c)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	branches, err := h.store.List(c.Request.Context(), shopID)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": branches})
}

func (h *Handler) CountBranches(c *gin.Context) {
	shopID, err := middleware.ShopID(c)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	count, err := h.store.Count(c.Request.Context(), shopID)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

func (h *Handler) CreateBranch(c *gin.Context) {
	shopID, err := middleware.ShopID(c)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	var req CreateBranchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Respond(c, apperr.Validation("Please fill in all fields"))
		return
	}

	branch, err := h.store.Create(c.Request.Context(), shopID, Input{
		Name:        req.BranchName,
		Address:     req.Address,
		City:        req.City,
		Contact:     req.Contact,
		TotalTables: req.TotalTables,
		OpeningTime: req.OpeningTime,
		ClosingTime: req.ClosingTime,
		CardTax:     req.CardTax,
		CashTax:     req.CashTax,
	})
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	h.logger.LogCreate(c, "branch", branch.ID, map[string]interface{}{
		"name":    branch.Name,
		"address": branch.Address,
	})
	c.JSON(http.StatusCreated, gin.H{"data": branch, "message": "Branch created successfully"})
}

func (h *Handler) UpdateBranch(c *gin.Context) {
	shopID, err := middleware.ShopID(c)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	var req UpdateBranchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Respond(c, apperr.Validation("Please fill in all required fields"))
		return
	}

	before, err := h.resolve(c, shopID, BranchRef{BranchID: req.BranchID, BranchName: req.BranchName})
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	branch, err := h.store.Update(c.Request.Context(), shopID, before.ID, Patch{
		Name:        req.NewName,
		Address:     req.Address,
		City:        req.City,
		Contact:     req.Contact,
		TotalTables: req.TotalTables,
		OpeningTime: req.OpeningTime,
		ClosingTime: req.ClosingTime,
	})
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	h.logger.LogUpdate(c, "branch", branch.ID,
		map[string]interface{}{"name": before.Name, "address": before.Address},
		map[string]interface{}{"name": branch.Name, "address": branch.Address},
	)
	c.JSON(http.StatusOK, gin.H{"data": branch, "message": "Branch updated successfully"})
}

// DeleteBranch takes the branch from ?branchId= or the body
func (h *Handler) DeleteBranch(c *gin.Context) {
	shopID, err := middleware.ShopID(c)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	ref := BranchRef{BranchID: c.Query("branchId")}
	if ref.BranchID == "" {
		_ = c.ShouldBindJSON(&ref)
	}
	target, err := h.resolve(c, shopID, ref)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	branch, err := h.store.Delete(c.Request.Context(), shopID, target.ID)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	h.logger.LogDelete(c, "branch", branch.ID, map[string]interface{}{"name": branch.Name})
	c.JSON(http.StatusOK, gin.H{"message": "Branch deleted successfully"})
}

// GetFBRRates returns the current FBR tax rates
func (h *Handler) GetFBRRates(c *gin.Context) {
	rates, err := h.rates.Rates(c.Request.Context())
	if err != nil {
		apperr.Respond(c, apperr.Unexpected("Failed to fetch FBR rates", err))
		return
	}
	c.JSON(http.StatusOK, rates)
}

// UpdateFBRTaxes copies the current FBR rates onto a branch
func (h *Handler) UpdateFBRTaxes(c *gin.Context) {
	shopID, err := middleware.ShopID(c)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	var ref BranchRef
	if err := c.ShouldBindJSON(&ref); err != nil || ref.BranchID == "" {
		apperr.Respond(c, apperr.Validation("Please provide branch ID"))
		return
	}
	target, err := h.resolve(c, shopID, BranchRef{BranchID: ref.BranchID})
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	rates, err := h.rates.Rates(c.Request.Context())
	if err != nil {
		apperr.Respond(c, apperr.Unexpected("Failed to fetch FBR rates", err))
		return
	}

	branch, err := h.store.UpdateTax(c.Request.Context(), shopID, target.ID, &rates.CardTax, &rates.CashTax)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	h.logger.LogActivity(c, "update_tax", "branch", &branch.ID, map[string]interface{}{
		"card_tax": branch.CardTax,
		"cash_tax": branch.CashTax,
		"source":   "fbr",
	})
	c.JSON(http.StatusOK, gin.H{
		"message": "Branch tax rates updated successfully with FBR rates",
		"updatedRates": gin.H{
			"card_tax":     branch.CardTax,
			"cash_tax":     branch.CashTax,
			"last_updated": branch.TaxLastUpdated,
		},
	})
}

// GetBranch returns the caller's own branch
func (h *Handler) GetBranch(c *gin.Context) {
	shopID, branchID, err := scope(c)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	branch, err := h.store.Get(c.Request.Context(), shopID, branchID)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": branch})
}

func (h *Handler) UpdateTimings(c *gin.Context) {
	shopID, branchID, err := scope(c)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	var req TimingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Respond(c, apperr.Validation("Please provide timings"))
		return
	}
	opening, closing := req.OpeningTime, req.ClosingTime
	if req.BranchGot != nil {
		opening, closing = req.BranchGot.OpeningTime, req.BranchGot.ClosingTime
	}

	branch, err := h.store.UpdateTimings(c.Request.Context(), shopID, branchID, opening, closing)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	h.logger.LogActivity(c, "update_timings", "branch", &branch.ID, map[string]interface{}{
		"opening_time": branch.OpeningTime,
		"closing_time": branch.ClosingTime,
	})
	c.JSON(http.StatusOK, gin.H{"data": branch, "message": "Timings updated successfully"})
}

func (h *Handler) OpenBranch(c *gin.Context) {
	shopID, branchID, err := scope(c)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	branch, shift, err := h.store.Open(c.Request.Context(), shopID, branchID, actorID(c))
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	h.logger.LogActivity(c, "open_shift", "branch", &branch.ID, map[string]interface{}{
		"day_number": shift.DayNumber,
	})
	c.JSON(http.StatusOK, gin.H{"data": branch, "shift": shift, "message": "Branch opened successfully"})
}

func (h *Handler) CloseBranch(c *gin.Context) {
	shopID, branchID, err := scope(c)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	branch, changed, err := h.store.Close(c.Request.Context(), shopID, branchID, actorID(c))
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	if !changed {
		c.JSON(http.StatusOK, gin.H{"data": branch, "message": "Branch is already closed"})
		return
	}
	h.logger.LogActivity(c, "close_shift", "branch", &branch.ID, map[string]interface{}{
		"day_number":   branch.DayNumber,
		"cash_on_hand": branch.CashOnHand,
	})
	c.JSON(http.StatusOK, gin.H{"data": branch, "message": "Branch closed successfully"})
}

func (h *Handler) UpdateCashOnHand(c *gin.Context) {
	shopID, branchID, err := scope(c)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	var req CashOnHandRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.CashOnHand == nil {
		apperr.Respond(c, apperr.Validation("Please provide cash on hand"))
		return
	}

	branch, err := h.store.UpdateCashOnHand(c.Request.Context(), shopID, branchID, *req.CashOnHand)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	h.logger.LogActivity(c, "update_cash", "branch", &branch.ID, map[string]interface{}{
		"cash_on_hand": branch.CashOnHand,
	})
	c.JSON(http.StatusOK, gin.H{"data": branch, "message": "Cash on hand updated successfully"})
}

func (h *Handler) UpdateTax(c *gin.Context) {
	shopID, branchID, err := scope(c)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	var req TaxRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Respond(c, apperr.Validation("Please provide tax"))
		return
	}

	branch, err := h.store.UpdateTax(c.Request.Context(), shopID, branchID, req.CardTax, req.CashTax)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	h.logger.LogActivity(c, "update_tax", "branch", &branch.ID, map[string]interface{}{
		"card_tax": branch.CardTax,
		"cash_tax": branch.CashTax,
	})
	c.JSON(http.StatusOK, gin.H{"data": branch, "message": "Tax updated successfully"})
}

// ListShifts returns the shift history of the caller's branch
func (h *Handler) ListShifts(c *gin.Context) {
	shopID, branchID, err := scope(c)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	shifts, err := h.store.Shifts(c.Request.Context(), shopID, branchID, 0)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": shifts})
}

// GetTaxes returns the rates the POS applies at checkout
func (h *Handler) GetTaxes(c *gin.Context) {
	shopID, branchID, err := scope(c)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	h.taxes(c, shopID, branchID)
}

func (h *Handler) taxes(c *gin.Context, shopID, branchID uuid.UUID) {
	branch, err := h.store.Get(c.Request.Context(), shopID, branchID)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"card_tax":         branch.CardTax,
		"cash_tax":         branch.CashTax,
		"tax_last_updated": branch.TaxLastUpdated,
	})
}

// GetStatus reports whether the caller's branch is open
func (h *Handler) GetStatus(c *gin.Context) {
	shopID, branchID, err := scope(c)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	branch, err := h.store.Get(c.Request.Context(), shopID, branchID)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"branch_name":  branch.Name,
		"shift_status": branch.ShiftStatus,
		"day_number":   branch.DayNumber,
	})
}

// ServiceBranches lists the branches of the shop in the path for the ordering system
func (h *Handler) ServiceBranches(c *gin.Context) {
	h.ListBranches(c)
}

// ServiceTaxes returns the rates of the branch in the path; the shop comes from the service token
func (h *Handler) ServiceTaxes(c *gin.Context) {
	shopID, err := middleware.ShopID(c)
	if err != nil {
		apperr.Respond(c, apperr.Authorization("Service token is not bound to a shop"))
		return
	}
	branchID, err := uuid.Parse(c.Param("branchId"))
	if err != nil {
		apperr.Respond(c, apperr.Validation("Invalid branch ID"))
		return
	}
	h.taxes(c, shopID, branchID)
}
