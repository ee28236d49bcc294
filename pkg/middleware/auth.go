package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yuditriaji/restopos-backend/pkg/apperr"
	"github.com/yuditriaji/restopos-backend/pkg/rbac"
	"github.com/yuditriaji/restopos-backend/pkg/token"
)

// Context keys populated by AuthRequired and ServiceAuth
const (
	KeyUserID     = "user_id"
	KeyRole       = "role"
	KeyShopID     = "shop_id"
	KeyShopName   = "shop_name"
	KeyBranchID   = "branch_id"
	KeyBranchName = "branch_name"
	KeyService    = "service"
)

// CookieName is the http-only cookie that carries the principal token
const CookieName = "token"

// ServiceTokenHeader carries the server-to-server token
const ServiceTokenHeader = "x-service-token"

// extractToken prefers the cookie and falls back to a bearer header
func extractToken(c *gin.Context) string {
	if cookie, err := c.Cookie(CookieName); err == nil && cookie != "" {
		return cookie
	}
	header := c.GetHeader("Authorization")
	if raw, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(raw)
	}
	return ""
}

// AuthRequired verifies the principal token and copies its claims into the gin context
func AuthRequired(tokens *token.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := extractToken(c)
		if raw == "" {
			apperr.Respond(c, apperr.Authentication("No token provided"))
			return
		}

		p, err := tokens.Verify(raw)
		if err != nil {
			msg := "Unauthorized"
			if errors.Is(err, token.ErrExpiredToken) {
				msg = "Token expired"
			}
			apperr.Respond(c, apperr.Authentication(msg))
			return
		}

		c.Set(KeyUserID, p.ID)
		c.Set(KeyRole, string(p.Role))
		c.Set(KeyShopID, p.ShopID)
		c.Set(KeyShopName, p.ShopName)
		c.Set(KeyBranchID, p.BranchID)
		c.Set(KeyBranchName, p.BranchName)
		c.Next()
	}
}

// RequireRole passes callers whose role satisfies at least one of roles in the hierarchy
func RequireRole(roles ...rbac.Role) gin.HandlerFunc {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = strings.ToUpper(string(r[:1])) + string(r[1:])
	}
	msg := "Require " + strings.Join(names, " or ") + " Role!"

	return func(c *gin.Context) {
		if !rbac.Role(c.GetString(KeyRole)).SatisfiesAny(roles...) {
			apperr.Respond(c, apperr.Authorization(msg))
			return
		}
		c.Next()
	}
}

// ServiceAuth verifies the x-service-token header of the external ordering system
func ServiceAuth(tokens *token.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(ServiceTokenHeader)
		if raw == "" {
			apperr.Respond(c, apperr.Authentication("No service token provided"))
			return
		}

		claims, err := tokens.VerifyService(raw)
		switch {
		case errors.Is(err, token.ErrUnknownService):
			apperr.Respond(c, apperr.Authorization("Unauthorized service"))
			return
		case err != nil:
			apperr.Respond(c, apperr.Authentication("Invalid service token"))
			return
		}

		shopID := claims.ShopID
		if pathShop := c.Param("shopId"); pathShop != "" {
			if shopID != "" && shopID != pathShop {
				apperr.Respond(c, apperr.Authorization("Service token is not valid for this shop"))
				return
			}
			shopID = pathShop
		}

		c.Set(KeyService, claims.Service)
		c.Set(KeyRole, "")
		c.Set(KeyShopID, shopID)
		c.Next()
	}
}
