package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yuditriaji/restopos-backend/pkg/apperr"
	"github.com/yuditriaji/restopos-backend/pkg/rbac"
	"github.com/yuditriaji/restopos-backend/pkg/token"
)

// ShopID returns the caller's tenant id
func ShopID(c *gin.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.GetString(KeyShopID))
	if err != nil {
		return uuid.Nil, apperr.Validation("Please provide shop id")
	}
	return id, nil
}

// BranchScope returns the branch the caller operates on. Branch-scoped principals use the branch in
// their token; admins pick one with ?branch_id=.
func BranchScope(c *gin.Context) (uuid.UUID, error) {
	raw := c.GetString(KeyBranchID)
	if raw == "" && rbac.Role(c.GetString(KeyRole)).Satisfies(rbac.Admin) {
		raw = c.Query("branch_id")
	}
	if raw == "" {
		return uuid.Nil, apperr.Validation("Please provide branch id")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperr.Validation("Invalid branch id")
	}
	return id, nil
}

// OptionalBranch returns the caller's own branch, or uuid.Nil when the caller is not branch-scoped
func OptionalBranch(c *gin.Context) uuid.UUID {
	id, err := uuid.Parse(c.GetString(KeyBranchID))
	if err != nil {
		return uuid.Nil
	}
	return id
}

// CurrentPrincipal rebuilds the principal from the gin context
func CurrentPrincipal(c *gin.Context) token.Principal {
	return token.Principal{
		ID:         c.GetString(KeyUserID),
		Role:       rbac.Role(c.GetString(KeyRole)),
		ShopID:     c.GetString(KeyShopID),
		ShopName:   c.GetString(KeyShopName),
		BranchID:   c.GetString(KeyBranchID),
		BranchName: c.GetString(KeyBranchName),
	}
}
