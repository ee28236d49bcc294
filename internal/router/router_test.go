package router

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuditriaji/restopos-backend/pkg/config"
	"github.com/yuditriaji/restopos-backend/pkg/database"
	"github.com/yuditriaji/restopos-backend/pkg/database/dbtest"
	"github.com/yuditriaji/restopos-backend/pkg/middleware"
	"github.com/yuditriaji/restopos-backend/pkg/notify"
	"github.com/yuditriaji/restopos-backend/pkg/token"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type client struct {
	t      *testing.T
	r      *gin.Engine
	cookie *http.Cookie
	header map[string]string
}

func (c *client) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}
	for k, v := range c.header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	c.r.ServeHTTP(w, req)
	return w
}

func login(t *testing.T, r *gin.Engine, path string, body gin.H) *client {
	t.Helper()
	anon := &client{t: t, r: r}
	w := anon.do(http.MethodPost, path, body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	for _, c := range w.Result().Cookies() {
		if c.Name == middleware.CookieName {
			return &client{t: t, r: r, cookie: c}
		}
	}
	t.Fatalf("no token cookie from %s", path)
	return nil
}

func TestOrderFlowAcrossRoles(t *testing.T) {
	db := dbtest.Open(t)
	tokens := token.NewManager("test-secret", "test-service-secret", 12*time.Hour)
	dispatcher := notify.NewDispatcher(db, config.NotifyConfig{MaxAttempts: 1, BatchSize: 10})
	r := New(Deps{DB: db, Tokens: tokens, Outbox: dispatcher, ServiceName: "restopos-test"})

	f := dbtest.SeedShop(t, db, "Acme", "Downtown")
	dbtest.SeedManager(t, db, f, "ali")

	admin := login(t, r, "/auth/admin/login", gin.H{"shopName": "Acme", "password": dbtest.Password})
	w := admin.do(http.MethodPost, "/admin/category/add", gin.H{"categoryName": "Mains"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	manager := login(t, r, "/auth/manager/login", gin.H{
		"shopName": "Acme", "branchName": "Downtown", "username": "ali", "password": dbtest.Password,
	})
	w = manager.do(http.MethodPost, "/manager/product/add", gin.H{"name": "Burger", "price": 50, "category": "Mains"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = manager.do(http.MethodPost, "/manager/cashier/add", gin.H{"username": "till1", "password": "till-pass"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = manager.do(http.MethodPut, "/manager/branch/openBranch", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// managers cannot reach admin routes
	w = manager.do(http.MethodGet, "/admin/managers", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	cashier := login(t, r, "/auth/cashier/login", gin.H{
		"shopName": "Acme", "branchName": "Downtown", "username": "till1", "password": "till-pass",
	})
	w = cashier.do(http.MethodPost, "/cashier/order/add", gin.H{
		"products":       []gin.H{{"_id": "p1", "name": "Burger", "quantity": 2, "price": 50}},
		"total":          100,
		"grand_total":    112,
		"tax":            5,
		"discount":       0,
		"customer_name":  "Bob",
		"payment_method": "card",
		"order_type":     "delivery",
		"address":        "123 St",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		Data database.Order `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, database.OrderPending, created.Data.Status)
	orderID := created.Data.ID.String()

	w = cashier.do(http.MethodPut, "/kitchen/order/"+orderID+"/ready", gin.H{"estimated_time": "15 minutes"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = cashier.do(http.MethodPut, "/cashier/order/"+orderID+"/complete", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = cashier.do(http.MethodPut, "/cashier/order/"+orderID+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = admin.do(http.MethodGet, "/admin/sales", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var sales struct {
		TotalSales decimal.Decimal `json:"totalSales"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sales))
	assert.Equal(t, "112", sales.TotalSales.String())

	w = admin.do(http.MethodGet, "/admin/orders?status=completed", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), orderID)

	raw, err := tokens.IssueService(token.OrderingSystem, f.Shop.ID.String(), 0)
	require.NoError(t, err)
	service := &client{t: t, r: r, header: map[string]string{middleware.ServiceTokenHeader: raw}}
	w = service.do(http.MethodGet, "/service/products/"+f.Shop.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "Burger")

	w = service.do(http.MethodGet, "/service/products/"+dbtest.SeedShop(t, db, "Other", "Main").Shop.ID.String(), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	db := dbtest.Open(t)
	tokens := token.NewManager("test-secret", "test-service-secret", time.Hour)
	r := New(Deps{DB: db, Tokens: tokens, ServiceName: "restopos-test"})
	anon := &client{t: t, r: r}

	w := anon.do(http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = anon.do(http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_requests_total")

	w = anon.do(http.MethodGet, "/cashier/orders", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
