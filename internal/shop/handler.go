package shop

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yuditriaji/restopos-backend/pkg/activitylog"
	"github.com/yuditriaji/restopos-backend/pkg/apperr"
	"github.com/yuditriaji/restopos-backend/pkg/middleware"
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

type UpdateProfileRequest struct {
	ShopName         *string   `json:"shopName"`
	Email            *string   `json:"email"`
	Address          *string   `json:"address"`
	WebsiteLink      *string   `json:"websiteLink"`
	Logo             *string   `json:"logo"`
	NTN              *string   `json:"NTN"`
	TaxIntegration   *bool     `json:"tax_integration"`
	TotalTables      *int      `json:"total_tables"`
	SocialMediaLinks *[]string `json:"social_media_links"`
	Currency         *string   `json:"currency"`
	Timezone         *string   `json:"timezone"`
	CurrentPassword  string    `json:"currentPassword"`
	NewPassword      string    `json:"newPassword"`
}

// Overview returns the shop with its headline counts and sales
func (h *Handler) Overview(c *gin.Context) {
	shopID, err := middleware.ShopID(c)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	overview, err := h.store.Overview(c.Request.Context(), shopID)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": overview})
}

func (h *Handler) GetProfile(c *gin.Context) {
	shopID, err := middleware.ShopID(c)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	shop, err := h.store.Get(c.Request.Context(), shopID)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": shop})
}

// UpdateProfile applies a partial update to the shop profile
func (h *Handler) UpdateProfile(c *gin.Context) {
	shopID, err := middleware.ShopID(c)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Respond(c, apperr.Validation("Invalid request body"))
		return
	}

	shop, err := h.store.UpdateProfile(c.Request.Context(), shopID, Patch{
		Name:             req.ShopName,
		Email:            req.Email,
		Address:          req.Address,
		WebsiteLink:      req.WebsiteLink,
		Logo:             req.Logo,
		NTN:              req.NTN,
		TaxIntegration:   req.TaxIntegration,
		TotalTables:      req.TotalTables,
		SocialMediaLinks: req.SocialMediaLinks,
		Currency:         req.Currency,
		Timezone:         req.Timezone,
		CurrentPassword:  req.CurrentPassword,
		NewPassword:      req.NewPassword,
	})
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	h.logger.LogUpdate(c, "shop", shop.ID, nil, map[string]interface{}{
		"shop_name":        shop.Name,
		"password_changed": req.NewPassword != "",
	})
	c.JSON(http.StatusOK, gin.H{"data": shop, "message": "Profile updated successfully"})
}

// Activity lists the shop's audit trail. Optional filters: branch_id, entity_type, since, limit.
func (h *Handler) Activity(c *gin.Context) {
	shopID, err := middleware.ShopID(c)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	var filter activitylog.Filter
	if raw := c.Query("branch_id"); raw != "" {
		if filter.BranchID, err = uuid.Parse(raw); err != nil {
			apperr.Respond(c, apperr.Validation("Invalid branch id"))
			return
		}
	}
	filter.EntityType = c.Query("entity_type")
	if raw := c.Query("since"); raw != "" {
		since, err := time.Parse("2006-01-02", raw)
		if err != nil {
			if since, err = time.Parse(time.RFC3339, raw); err != nil {
				apperr.Respond(c, apperr.Validation("Invalid date format"))
				return
			}
		}
		filter.Since = since
	}
	if raw := c.Query("limit"); raw != "" {
		if filter.Limit, err = strconv.Atoi(raw); err != nil {
			apperr.Respond(c, apperr.Validation("Invalid limit"))
			return
		}
	}

	entries, err := h.logger.List(shopID, filter)
	if err != nil {
		apperr.Respond(c, apperr.Unexpected("Failed to fetch activity", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": entries})
}
