// Package router mounts every HTTP route of the service.
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yuditriaji/restopos-backend/internal/auth"
	"github.com/yuditriaji/restopos-backend/internal/branch"
	"github.com/yuditriaji/restopos-backend/internal/catalog"
	"github.com/yuditriaji/restopos-backend/internal/order"
	"github.com/yuditriaji/restopos-backend/internal/reports"
	"github.com/yuditriaji/restopos-backend/internal/shop"
	"github.com/yuditriaji/restopos-backend/internal/staff"
	"github.com/yuditriaji/restopos-backend/pkg/database"
	"github.com/yuditriaji/restopos-backend/pkg/logger"
	"github.com/yuditriaji/restopos-backend/pkg/metrics"
	"github.com/yuditriaji/restopos-backend/pkg/middleware"
	"github.com/yuditriaji/restopos-backend/pkg/rbac"
	"github.com/yuditriaji/restopos-backend/pkg/token"
)

// Deps are the collaborators the routes are built from
type Deps struct {
	DB           *gorm.DB
	Tokens       *token.Manager
	Outbox       order.Outbox
	Rates        branch.RateSource
	ServiceName  string
	CORSOrigins  []string
	CookieSecure bool
}

func New(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(logger.Middleware())
	r.Use(metrics.NewHTTPMetrics(d.ServiceName).Middleware())
	r.Use(middleware.CORS(d.CORSOrigins))

	r.GET("/health", func(c *gin.Context) {
		status, code := "ok", http.StatusOK
		if sqlDB, err := d.DB.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			status, code = "degraded", http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{"status": status})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	rates := d.Rates
	if rates == nil {
		rates = branch.NewMockRates()
	}

	authHandler := auth.NewHandler(d.DB, d.Tokens, d.CookieSecure)
	shopHandler := shop.NewHandler(d.DB)
	branchHandler := branch.NewHandler(d.DB, rates)
	staffHandler := staff.NewHandler(d.DB)
	catalogHandler := catalog.NewHandler(d.DB)
	orderHandler := order.NewHandler(d.DB, d.Outbox)
	reportsHandler := reports.NewHandler(d.DB)

	authRequired := middleware.AuthRequired(d.Tokens)

	// Auth routes (public)
	authGroup := r.Group("/auth")
	{
		authGroup.POST("/admin/signup", authHandler.Signup)
		authGroup.POST("/admin/login", authHandler.AdminLogin)
		authGroup.POST("/manager/login", authHandler.StaffLogin(rbac.Manager))
		authGroup.POST("/cashier/login", authHandler.StaffLogin(rbac.Cashier))
		authGroup.POST("/kitchen/login", authHandler.StaffLogin(rbac.Kitchen))
		authGroup.POST("/logout", authHandler.Logout)
		authGroup.GET("/shops", authHandler.Shops)
		authGroup.GET("/branches", authHandler.Branches)
		authGroup.GET("/branches/:shopName", authHandler.Branches)
		authGroup.GET("/me", authRequired, authHandler.GetMe)
	}

	admin := r.Group("/admin", authRequired, middleware.RequireRole(rbac.Admin))
	{
		admin.GET("", shopHandler.Overview)
		admin.GET("/profile", shopHandler.GetProfile)
		admin.PUT("/profile/update", shopHandler.UpdateProfile)
		admin.GET("/activity", shopHandler.Activity)

		admin.GET("/branches", branchHandler.ListBranches)
		admin.GET("/branches/count", branchHandler.CountBranches)
		admin.POST("/branch/add", branchHandler.CreateBranch)
		admin.PUT("/branch/update", branchHandler.UpdateBranch)
		admin.DELETE("/branch/delete", branchHandler.DeleteBranch)
		admin.GET("/tax/fbr-rates", branchHandler.GetFBRRates)
		admin.PUT("/branch/update-fbr-taxes", branchHandler.UpdateFBRTaxes)

		admin.GET("/managers", staffHandler.ListManagers)
		admin.POST("/manager/add", staffHandler.CreateManager)
		admin.PUT("/manager/update", staffHandler.UpdateManager)
		admin.DELETE("/manager/delete", staffHandler.DeleteManager)

		admin.GET("/categories", catalogHandler.ListCategories)
		admin.POST("/category/add", catalogHandler.CreateCategory)
		admin.PUT("/category/update", catalogHandler.UpdateCategory)
		admin.DELETE("/category/delete", catalogHandler.DeleteCategory)
		admin.GET("/products", catalogHandler.ListProducts)
		admin.POST("/products/import", catalogHandler.ImportProducts)
		admin.GET("/products/import/template", catalogHandler.DownloadTemplate)

		admin.GET("/orders", orderHandler.ShopOrders)

		admin.GET("/sales", reportsHandler.GetShopSales)
		admin.GET("/branches/sales", reportsHandler.GetBranchesSales)
		admin.GET("/sales/export", reportsHandler.ExportSales)
	}

	manager := r.Group("/manager", authRequired, middleware.RequireRole(rbac.Manager))
	{
		manager.GET("", branchHandler.GetBranch)
		manager.GET("/sales", reportsHandler.GetBranchSales)

		manager.GET("/cashiers", staffHandler.ListAccounts(rbac.Cashier))
		manager.POST("/cashier/add", staffHandler.AddAccount(rbac.Cashier))
		manager.GET("/kitchens", staffHandler.ListAccounts(rbac.Kitchen))
		manager.POST("/kitchen/add", staffHandler.AddAccount(rbac.Kitchen))
		manager.GET("/profile", staffHandler.GetProfile)
		manager.PUT("/profile/update", staffHandler.UpdateProfile)

		manager.GET("/products", catalogHandler.ListProducts)
		manager.POST("/product/add", catalogHandler.CreateProduct)
		manager.PUT("/product/:id", catalogHandler.UpdateProduct)
		manager.DELETE("/product/:id", catalogHandler.DeleteProduct)
		manager.GET("/categories", catalogHandler.ListCategories)

		manager.PUT("/branch/timings", branchHandler.UpdateTimings)
		manager.PUT("/branch/openBranch", branchHandler.OpenBranch)
		manager.PUT("/branch/closeBranch", branchHandler.CloseBranch)
		manager.PUT("/branch/updateCashOnHand", branchHandler.UpdateCashOnHand)
		manager.PUT("/branch/tax", branchHandler.UpdateTax)
		manager.GET("/branch/shifts", branchHandler.ListShifts)
		manager.GET("/branch/orders", orderHandler.BranchOrders)
	}

	cashier := r.Group("/cashier", authRequired, middleware.RequireRole(rbac.Cashier))
	{
		cashier.GET("/products", catalogHandler.ListProducts)
		cashier.GET("/orders", orderHandler.BranchOrders)
		cashier.GET("/orders/active", orderHandler.ActiveOrders)
		cashier.GET("/orders/pending", orderHandler.PendingOrders)
		cashier.GET("/taxes", branchHandler.GetTaxes)
		cashier.GET("/branch/status", branchHandler.GetStatus)

		cashier.POST("/order/add", orderHandler.Create)
		cashier.PUT("/order/:id/ready", orderHandler.Transition(database.OrderReady, "Order is ready"))
		cashier.PUT("/order/:id/complete", orderHandler.Transition(database.OrderCompleted, "Order completed"))
		cashier.PUT("/order/:id/cancel", orderHandler.Transition(database.OrderCancelled, "Order cancelled"))
	}

	kitchen := r.Group("/kitchen", authRequired, middleware.RequireRole(rbac.Kitchen, rbac.Cashier))
	{
		kitchen.GET("/orders/pending", orderHandler.PendingOrders)
		kitchen.PUT("/order/:id/ready", orderHandler.Transition(database.OrderReady, "Order is ready"))
	}

	// Server-to-server routes for the external ordering system
	service := r.Group("/service", middleware.ServiceAuth(d.Tokens))
	{
		service.GET("/products/:shopId", catalogHandler.ListProducts)
		service.GET("/categories/:shopId", catalogHandler.ListCategories)
		service.GET("/branches/:shopId", branchHandler.ServiceBranches)
		service.GET("/branch/:branchId/taxes", branchHandler.ServiceTaxes)
		service.POST("/order/add", orderHandler.ServiceCreate)
	}

	return r
}
