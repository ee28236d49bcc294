package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/yuditriaji/restopos-backend/internal/shop"
	"github.com/yuditriaji/restopos-backend/pkg/apperr"
	"github.com/yuditriaji/restopos-backend/pkg/database"
	"github.com/yuditriaji/restopos-backend/pkg/logger"
	"github.com/yuditriaji/restopos-backend/pkg/middleware"
	"github.com/yuditriaji/restopos-backend/pkg/rbac"
	"github.com/yuditriaji/restopos-backend/pkg/token"
)

type Handler struct {
	db           *gorm.DB
	shops        *shop.Store
	tokens       *token.Manager
	cookieSecure bool
}

func NewHandler(db *gorm.DB, tokens *token.Manager, cookieSecure bool) *Handler {
	return &Handler{
		db:           db,
		shops:        shop.NewStore(db),
		tokens:       tokens,
		cookieSecure: cookieSecure,
	}
}

type SignupRequest struct {
	ShopName         string   `json:"shopName" binding:"required"`
	Email            string   `json:"email" binding:"required"`
	Password         string   `json:"password" binding:"required"`
	Address          string   `json:"address"`
	WebsiteLink      string   `json:"websiteLink"`
	Logo             string   `json:"logo"`
	NTN              string   `json:"NTN"`
	TotalTables      int      `json:"total_tables"`
	SocialMediaLinks []string `json:"social_media_links"`
	Currency         string   `json:"currency"`
	Timezone         string   `json:"timezone"`
}

type LoginRequest struct {
	ShopName   string `json:"shopName" binding:"required"`
	BranchName string `json:"branchName"`
	Username   string `json:"username"`
	Password   string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Role       rbac.Role `json:"role"`
	ShopID     string    `json:"shopId"`
	ShopName   string    `json:"shopName"`
	BranchID   string    `json:"branchId,omitempty"`
	BranchName string    `json:"branchName,omitempty"`
	UserID     string    `json:"userId"`
	Token      string    `json:"token"`
}

var errInvalidCredentials = apperr.Authentication("Invalid credentials")

// staffTables maps each branch-scoped role to the table holding its logins
var staffTables = map[rbac.Role]string{
	rbac.Manager: "managers",
	rbac.Cashier: "cashiers",
	rbac.Kitchen: "kitchens",
}

// Signup creates a shop account. The route is not advertised to clients.
func (h *Handler) Signup(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Respond(c, apperr.Validation("Please provide shop name, email and password"))
		return
	}

	created, err := h.shops.Create(c.Request.Context(), shop.Input{
		Name:             req.ShopName,
		Email:            req.Email,
		Password:         req.Password,
		Address:          req.Address,
		WebsiteLink:      req.WebsiteLink,
		Logo:             req.Logo,
		NTN:              req.NTN,
		TotalTables:      req.TotalTables,
		SocialMediaLinks: req.SocialMediaLinks,
		Currency:         req.Currency,
		Timezone:         req.Timezone,
	})
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	logger.FromGin(c).Info("shop signed up", zap.String("shop_id", created.ID.String()))
	c.JSON(http.StatusCreated, gin.H{"data": created, "message": "Shop created successfully"})
}

// AdminLogin authenticates the shop account
func (h *Handler) AdminLogin(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Respond(c, apperr.Validation("Please provide shop name and password"))
		return
	}

	s, err := h.shops.FindByName(c.Request.Context(), req.ShopName)
	if err != nil {
		h.fail(c, err)
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(s.PasswordHash), []byte(req.Password)) != nil {
		apperr.Respond(c, errInvalidCredentials)
		return
	}

	h.issue(c, token.Principal{
		ID:       s.ID.String(),
		Role:     rbac.Admin,
		ShopID:   s.ID.String(),
		ShopName: s.Name,
	})
}

// StaffLogin returns the login handler for a branch-scoped role
func (h *Handler) StaffLogin(role rbac.Role) gin.HandlerFunc {
	table := staffTables[role]
	return func(c *gin.Context) {
		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.BranchName == "" || req.Username == "" {
			apperr.Respond(c, apperr.Validation("Please provide shop name, branch name, username and password"))
			return
		}
		ctx := c.Request.Context()

		s, err := h.shops.FindByName(ctx, req.ShopName)
		if err != nil {
			h.fail(c, err)
			return
		}
		var branch database.Branch
		if err := h.db.WithContext(ctx).
			Where("shop_id = ? AND LOWER(name) = LOWER(?)", s.ID, strings.TrimSpace(req.BranchName)).
			First(&branch).Error; err != nil {
			h.fail(c, apperr.FromDB(err, "Branch"))
			return
		}

		var account struct {
			ID           uuid.UUID
			PasswordHash string
		}
		res := h.db.WithContext(ctx).Table(table).
			Select("id", "password_hash").
			Where("shop_id = ? AND branch_id = ? AND username = ? AND deleted_at IS NULL",
				s.ID, branch.ID, strings.TrimSpace(req.Username)).
			Limit(1).
			Scan(&account)
		if res.Error != nil {
			apperr.Respond(c, apperr.Unexpected("Failed to log in", res.Error))
			return
		}
		if res.RowsAffected == 0 || bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(req.Password)) != nil {
			apperr.Respond(c, errInvalidCredentials)
			return
		}

		h.issue(c, token.Principal{
			ID:         account.ID.String(),
			Role:       role,
			ShopID:     s.ID.String(),
			ShopName:   s.Name,
			BranchID:   branch.ID.String(),
			BranchName: branch.Name,
		})
	}
}

// fail hides which part of a login did not match; infrastructure errors still surface as 500
func (h *Handler) fail(c *gin.Context, err error) {
	if apperr.Is(err, apperr.KindNotFound) {
		err = errInvalidCredentials
	}
	apperr.Respond(c, err)
}

func (h *Handler) issue(c *gin.Context, p token.Principal) {
	raw, err := h.tokens.Issue(p)
	if err != nil {
		apperr.Respond(c, apperr.Unexpected("Failed to issue token", err))
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.CookieName, raw, int(h.tokens.TTL().Seconds()), "/", "", h.cookieSecure, true)

	logger.FromGin(c).Info("login",
		zap.String("role", string(p.Role)),
		zap.String("shop_id", p.ShopID),
		zap.String("user_id", p.ID),
	)
	c.JSON(http.StatusOK, LoginResponse{
		Role:       p.Role,
		ShopID:     p.ShopID,
		ShopName:   p.ShopName,
		BranchID:   p.BranchID,
		BranchName: p.BranchName,
		UserID:     p.ID,
		Token:      raw,
	})
}

// Logout clears the token cookie
func (h *Handler) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.CookieName, "", -1, "/", "", h.cookieSecure, true)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

// Shops lists shop names for the login screen
func (h *Handler) Shops(c *gin.Context) {
	names, err := h.shops.Names(c.Request.Context())
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": names})
}

// Branches lists the branch names of ?shopName= for the login screen
func (h *Handler) Branches(c *gin.Context) {
	shopName := c.Query("shopName")
	if shopName == "" {
		shopName = c.Param("shopName")
	}
	names, err := h.shops.BranchNames(c.Request.Context(), shopName)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": names})
}

// GetMe returns the principal of the current token
func (h *Handler) GetMe(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": middleware.CurrentPrincipal(c)})
}
