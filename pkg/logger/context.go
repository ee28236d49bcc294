package logger

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type contextKey string

const (
	loggerKey contextKey = "logger"
	ginKey               = "logger"

	// RequestIDKey is the gin context key the request-id middleware writes to
	RequestIDKey = "request_id"
)

// FromContext retrieves the logger from the context
func FromContext(ctx context.Context) *zap.Logger {
	if ctx == nil {
		return L()
	}
	logger, ok := ctx.Value(loggerKey).(*zap.Logger)
	if !ok {
		return L()
	}
	return logger
}

// WithContext adds the logger to the context
func WithContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromGin retrieves the request logger stored by Middleware
func FromGin(c *gin.Context) *zap.Logger {
	if v, ok := c.Get(ginKey); ok {
		if logger, ok := v.(*zap.Logger); ok {
			return logger
		}
	}
	return L()
}
