package activitylog

import (
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/yuditriaji/restopos-backend/pkg/database"
	"github.com/yuditriaji/restopos-backend/pkg/logger"
	"github.com/yuditriaji/restopos-backend/pkg/middleware"
)

// Logger handles activity logging for audit trail
type Logger struct {
	db *gorm.DB
}

// NewLogger creates a new activity logger
func NewLogger(db *gorm.DB) *Logger {
	return &Logger{db: db}
}

// LogActivity creates an activity log entry. A failed write is logged and never fails the request.
func (l *Logger) LogActivity(c *gin.Context, action, entityType string, entityID *uuid.UUID, details interface{}) {
	shopID, err := middleware.ShopID(c)
	if err != nil {
		return
	}

	var branchID *uuid.UUID
	if id := middleware.OptionalBranch(c); id != uuid.Nil {
		branchID = &id
	}

	actor := c.GetString(middleware.KeyUserID)
	role := c.GetString(middleware.KeyRole)
	if service := c.GetString(middleware.KeyService); service != "" {
		actor, role = service, "service"
	}

	detailsJSON := ""
	if details != nil {
		if jsonBytes, err := json.Marshal(details); err == nil {
			detailsJSON = string(jsonBytes)
		}
	}

	entry := database.ActivityLog{
		ShopID:     shopID,
		BranchID:   branchID,
		ActorID:    actor,
		ActorRole:  role,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Details:    detailsJSON,
		IPAddress:  c.ClientIP(),
	}

	if err := l.db.Create(&entry).Error; err != nil {
		logger.FromGin(c).Warn("failed to write activity log",
			zap.String("action", action),
			zap.String("entity_type", entityType),
			zap.Error(err),
		)
	}
}

// LogCreate logs a create action
func (l *Logger) LogCreate(c *gin.Context, entityType string, entityID uuid.UUID, newData interface{}) {
	l.LogActivity(c, "create", entityType, &entityID, map[string]interface{}{
		"new": newData,
	})
}

// LogUpdate logs an update action with old and new values
func (l *Logger) LogUpdate(c *gin.Context, entityType string, entityID uuid.UUID, oldData, newData interface{}) {
	l.LogActivity(c, "update", entityType, &entityID, map[string]interface{}{
		"old": oldData,
		"new": newData,
	})
}

// LogDelete logs a delete action
func (l *Logger) LogDelete(c *gin.Context, entityType string, entityID uuid.UUID, oldData interface{}) {
	l.LogActivity(c, "delete", entityType, &entityID, map[string]interface{}{
		"deleted": oldData,
	})
}

// LogToggle logs a toggle active/inactive action
func (l *Logger) LogToggle(c *gin.Context, entityType string, entityID uuid.UUID, isActive bool, name string) {
	status := "deactivated"
	if isActive {
		status = "activated"
	}
	l.LogActivity(c, "toggle", entityType, &entityID, map[string]interface{}{
		"name":      name,
		"is_active": isActive,
		"status":    status,
	})
}

// LogTransition logs an order status change
func (l *Logger) LogTransition(c *gin.Context, orderID uuid.UUID, status string) {
	l.LogActivity(c, "transition", "order", &orderID, map[string]interface{}{
		"status": status,
	})
}

// Filter narrows List results
type Filter struct {
	BranchID   uuid.UUID
	EntityType string
	Since      time.Time
	Limit      int
}

// List returns the newest entries of a shop first
func (l *Logger) List(shopID uuid.UUID, f Filter) ([]database.ActivityLog, error) {
	query := l.db.Where("shop_id = ?", shopID)
	if f.BranchID != uuid.Nil {
		query = query.Where("branch_id = ?", f.BranchID)
	}
	if f.EntityType != "" {
		query = query.Where("entity_type = ?", f.EntityType)
	}
	if !f.Since.IsZero() {
		query = query.Where("created_at >= ?", f.Since.UTC())
	}

	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var entries []database.ActivityLog
	err := query.Order("created_at DESC").Limit(limit).Find(&entries).Error
	return entries, err
}
