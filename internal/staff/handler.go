package staff

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
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

type CreateManagerRequest struct {
	BranchName string `json:"branchName"`
	BranchID   string `json:"branchId"`
	Username   string `json:"username" binding:"required"`
	Password   string `json:"password" binding:"required"`
	Email      string `json:"email"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Contact    string `json:"contact"`
}

type UpdateManagerRequest struct {
	ManagerID string  `json:"managerId"`
	Username  *string `json:"username"`
	Password  *string `json:"password"`
	Email     *string `json:"email"`
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Contact   *string `json:"contact"`
	BranchID  *string `json:"branchId"`
}

type AccountRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type ProfileRequest struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func parseManagerID(raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, apperr.Validation("Please provide manager ID")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperr.Validation("Invalid manager ID")
	}
	return id, nil
}

func (h *Handler) ListManagers(c *gin.Context) {
	shopID, err := middleware.ShopID(c)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	managers, err := h.store.ListManagers(c.Request.Context(), shopID)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": managers})
}

func (h *Handler) CreateManager(c *gin.Context) {
	shopID, err := middleware.ShopID(c)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	var req CreateManagerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Respond(c, apperr.Validation("Please fill in all fields"))
		return
	}
	branch := req.BranchID
	if branch == "" {
		branch = req.BranchName
	}

	manager, err := h.store.CreateManager(c.Request.Context(), shopID, ManagerInput{
		Branch:    branch,
		Username:  req.Username,
		Password:  req.Password,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Contact:   req.Contact,
	})
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	h.logger.LogCreate(c, "manager", manager.ID, map[string]interface{}{
		"username":  manager.Username,
		"branch_id": manager.BranchID,
	})
	c.JSON(http.StatusCreated, gin.H{"data": manager, "message": "Manager created successfully"})
}

func (h *Handler) UpdateManager(c *gin.Context) {
	shopID, err := middleware.ShopID(c)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	var req UpdateManagerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Respond(c, apperr.Validation("Invalid request body"))
		return
	}
	managerID, err := parseManagerID(req.ManagerID)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	patch := ManagerPatch{
		Username:  req.Username,
		Password:  req.Password,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Contact:   req.Contact,
	}
	if req.BranchID != nil && *req.BranchID != "" {
		branchID, err := uuid.Parse(*req.BranchID)
		if err != nil {
			apperr.Respond(c, apperr.Validation("Invalid branch ID"))
			return
		}
		patch.BranchID = &branchID
	}

	manager, err := h.store.UpdateManager(c.Request.Context(), shopID, managerID, patch)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	h.logger.LogUpdate(c, "manager", manager.ID, nil, map[string]interface{}{
		"username":  manager.Username,
		"branch_id": manager.BranchID,
	})
	c.JSON(http.StatusOK, gin.H{"data": manager, "message": "Manager updated successfully"})
}

// DeleteManager takes the manager from ?managerId= or the body
func (h *Handler) DeleteManager(c *gin.Context) {
	shopID, err := middleware.ShopID(c)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	raw := c.Query("managerId")
	if raw == "" {
		var req UpdateManagerRequest
		_ = c.ShouldBindJSON(&req)
		raw = req.ManagerID
	}
	managerID, err := parseManagerID(raw)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	manager, err := h.store.DeleteManager(c.Request.Context(), shopID, managerID)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	h.logger.LogDelete(c, "manager", manager.ID, map[string]interface{}{"username": manager.Username})
	c.JSON(http.StatusOK, gin.H{"message": "Manager deleted successfully"})
}

// AddAccount returns a handler that creates a cashier or kitchen login on the caller's branch
func (h *Handler) AddAccount(role rbac.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
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

		var req AccountRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			apperr.Respond(c, apperr.Validation("Please fill in all fields"))
			return
		}

		account, err := h.store.AddAccount(c.Request.Context(), shopID, branchID, role, req.Username, req.Password)
		if err != nil {
			apperr.Respond(c, err)
			return
		}

		h.logger.LogCreate(c, string(role), account.ID, map[string]interface{}{"username": account.Username})
		c.JSON(http.StatusCreated, gin.H{"data": account, "message": "Account created successfully"})
	}
}

// ListAccounts returns a handler listing the cashier or kitchen logins of the caller's branch
func (h *Handler) ListAccounts(role rbac.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
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

		accounts, err := h.store.ListAccounts(c.Request.Context(), shopID, branchID, role)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": accounts, "branchName": c.GetString(middleware.KeyBranchName)})
	}
}

func currentManager(c *gin.Context) (uuid.UUID, uuid.UUID, error) {
	shopID, err := middleware.ShopID(c)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	managerID, err := uuid.Parse(c.GetString(middleware.KeyUserID))
	if err != nil {
		return uuid.Nil, uuid.Nil, apperr.Validation("Manager ID not found")
	}
	return shopID, managerID, nil
}

func (h *Handler) GetProfile(c *gin.Context) {
	shopID, managerID, err := currentManager(c)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	profile, err := h.store.Profile(c.Request.Context(), shopID, managerID)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": profile})
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	shopID, managerID, err := currentManager(c)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	var req ProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Respond(c, apperr.Validation("Invalid request body"))
		return
	}

	manager, err := h.store.UpdateProfile(c.Request.Context(), shopID, managerID, ProfilePatch{
		Username:        req.Username,
		Email:           req.Email,
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
	})
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	h.logger.LogUpdate(c, "manager", manager.ID, nil, map[string]interface{}{
		"username": manager.Username,
		"email":    manager.Email,
	})
	c.JSON(http.StatusOK, gin.H{"data": manager, "message": "Profile updated successfully"})
}
