package order

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yuditriaji/restopos-backend/pkg/activitylog"
	"github.com/yuditriaji/restopos-backend/pkg/apperr"
	"github.com/yuditriaji/restopos-backend/pkg/database"
	"github.com/yuditriaji/restopos-backend/pkg/middleware"
)

type Handler struct {
	engine *Engine
	logger *activitylog.Logger
}

func NewHandler(db *gorm.DB, outbox Outbox) *Handler {
	return &Handler{
		engine: NewEngine(db, outbox),
		logger: activitylog.NewLogger(db),
	}
}

type TransitionRequest struct {
	EstimatedTime string `json:"estimated_time"`
	Reason        string `json:"reason"`
}

// Create places an order for the caller's branch
func (h *Handler) Create(c *gin.Context) {
	shopID, err := middleware.ShopID(c)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	branchID, err := middleware.BranchScope(c)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	h.create(c, shopID, branchID, database.SourcePOS)
}

// ServiceCreate places an order from the external ordering system; the branch comes from the body
func (h *Handler) ServiceCreate(c *gin.Context) {
	shopID, err := middleware.ShopID(c)
	if err != nil {
		apperr.Respond(c, apperr.Validation("Missing required information (shop ID or branch ID)"))
		return
	}
	h.create(c, shopID, uuid.Nil, database.SourceOrderingSystem)
}

func (h *Handler) create(c *gin.Context, shopID, branchID uuid.UUID, defaultSource string) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Respond(c, apperr.Validation("Invalid order payload"))
		return
	}

	if branchID == uuid.Nil {
		id, err := uuid.Parse(req.BranchID)
		if err != nil {
			apperr.Respond(c, apperr.Validation("Missing required information (shop ID or branch ID)"))
			return
		}
		branchID = id
	}

	in, err := req.Validate(defaultSource)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	order, err := h.engine.Create(c.Request.Context(), shopID, branchID, in)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	h.logger.LogCreate(c, "order", order.ID, map[string]interface{}{
		"grand_total": order.GrandTotal,
		"source":      order.Source,
		"lines":       len(order.Cart),
	})
	c.JSON(http.StatusCreated, gin.H{"message": "Order placed successfully", "data": order})
}

// Transition returns a handler that moves the order in the path to status
func (h *Handler) Transition(status, message string) gin.HandlerFunc {
	return func(c *gin.Context) {
		shopID, err := middleware.ShopID(c)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		orderID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			apperr.Respond(c, apperr.Validation("Please provide order id"))
			return
		}

		var req TransitionRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				apperr.Respond(c, apperr.Validation("Invalid request body"))
				return
			}
		}

		order, changed, err := h.engine.Transition(c.Request.Context(), shopID, middleware.OptionalBranch(c), orderID, status,
			TransitionOptions{
				EstimatedTime: strings.TrimSpace(req.EstimatedTime),
				Reason:        strings.TrimSpace(req.Reason),
			})
		if err != nil {
			apperr.Respond(c, err)
			return
		}

		if changed {
			h.logger.LogTransition(c, order.ID, status)
		}
		c.JSON(http.StatusOK, gin.H{"message": message, "data": order})
	}
}

func (h *Handler) list(c *gin.Context, branchID uuid.UUID, statuses ...string) {
	shopID, err := middleware.ShopID(c)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	orders, err := h.engine.List(c.Request.Context(), shopID, ListFilter{BranchID: branchID, Statuses: statuses})
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": orders})
}

func (h *Handler) branchList(statuses ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		branchID, err := middleware.BranchScope(c)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		if status := c.Query("status"); status != "" && len(statuses) == 0 {
			h.list(c, branchID, strings.Split(status, ",")...)
			return
		}
		h.list(c, branchID, statuses...)
	}
}

// BranchOrders lists every order of the caller's branch, optionally filtered by ?status=
func (h *Handler) BranchOrders(c *gin.Context) {
	h.branchList()(c)
}

// ActiveOrders lists pending and ready orders of the caller's branch
func (h *Handler) ActiveOrders(c *gin.Context) {
	h.branchList(database.OrderPending, database.OrderReady)(c)
}

// PendingOrders lists pending orders of the caller's branch
func (h *Handler) PendingOrders(c *gin.Context) {
	h.branchList(database.OrderPending)(c)
}

// ShopOrders lists orders across the shop with optional ?branch_id= and ?status= filters
func (h *Handler) ShopOrders(c *gin.Context) {
	var branchID uuid.UUID
	if raw := c.Query("branch_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			apperr.Respond(c, apperr.Validation("Invalid branch id"))
			return
		}
		branchID = id
	}

	var statuses []string
	if status := c.Query("status"); status != "" {
		statuses = strings.Split(status, ",")
	}
	h.list(c, branchID, statuses...)
}
