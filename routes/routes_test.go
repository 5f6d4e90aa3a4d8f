package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"backoffice/controllers"
	"backoffice/handlers"
	"backoffice/middleware"
	"backoffice/repository"
	"backoffice/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testServer struct {
	router *gin.Engine
	svc    *services.Services
}

func newTestServer(t *testing.T, rateLimit gin.HandlerFunc) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc := services.New(repository.NewMemoryStore(), nil, zap.NewNop(), services.Options{
		JWTSecret: []byte("test-secret"),
		Metrics:   middleware.LedgerMetrics{},
	})
	_, err := svc.Auth.CreateAdmin(context.Background(), "admin", "secret123", "Admin")
	require.NoError(t, err)

	middleware.InitMetrics()
	r := gin.New()
	r.Use(middleware.PrometheusMiddleware())
	InitializeRoutes(r, Deps{
		Controller:      controllers.NewController(svc, zap.NewNop(), false, 0),
		Public:          handlers.NewPublic(svc, zap.NewNop()),
		Auth:            svc.Auth,
		PublicRateLimit: rateLimit,
		MetricsIPs:      []string{"127.0.0.1"},
	})
	return &testServer{router: r, svc: svc}
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	code, raw := s.raw(t, method, path, token, body)
	out := map[string]interface{}{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return code, out
}

func (s *testServer) raw(t *testing.T, method, path, token string, body interface{}) (int, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w.Code, w.Body.Bytes()
}

func (s *testServer) login(t *testing.T, username, password string) (string, string) {
	t.Helper()
	code, body := s.do(t, http.MethodPost, "/login", "", gin.H{"username": username, "password": password})
	require.Equal(t, http.StatusOK, code, body)
	return body["token"].(string), body["userID"].(string)
}

func TestOrderLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t, nil)
	token, _ := s.login(t, "admin", "secret123")

	code, product := s.do(t, http.MethodPost, "/staff/products", token, gin.H{
		"name": "Glucose strips", "category": "reagents", "quantity": 10, "criticalStock": 2, "pricePerPiece": 2.5,
	})
	require.Equal(t, http.StatusCreated, code, product)
	productID := product["id"].(string)

	code, body := s.do(t, http.MethodPost, "/staff/products/"+productID+"/restock", token, gin.H{"quantityAdded": 5})
	require.Equal(t, http.StatusCreated, code, body)
	assert.Equal(t, float64(15), body["stockAfter"])

	code, order := s.do(t, http.MethodPost, "/staff/orders", token, gin.H{
		"buyerInfo": gin.H{"name": "Clinic One"},
		"lines":     []gin.H{{"productId": productID, "quantity": 4}},
	})
	require.Equal(t, http.StatusCreated, code, order)
	orderID := order["id"].(string)
	assert.Equal(t, 10.0, order["totalAmount"])

	code, invoice := s.do(t, http.MethodPost, "/staff/invoices", token, gin.H{"orderId": orderID})
	require.Equal(t, http.StatusCreated, code, invoice)
	assert.Equal(t, "000001", invoice["invoiceNumber"])

	code, _ = s.do(t, http.MethodPost, "/staff/invoices", token, gin.H{"orderId": orderID})
	assert.Equal(t, http.StatusConflict, code)

	code, body = s.do(t, http.MethodPost, "/staff/orders/"+orderID+"/paid", token, nil)
	require.Equal(t, http.StatusOK, code, body)
	assert.NotNil(t, body["sale"])

	code, body = s.do(t, http.MethodGet, "/staff/products/"+productID, token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(11), body["quantity"])

	code, body = s.do(t, http.MethodGet, "/staff/products/"+productID+"/reconcile", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["consistent"])

	code, body = s.do(t, http.MethodPost, "/admin/orders/"+orderID+"/cancel", token, nil)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "Cancelled", body["paymentStatus"])

	code, body = s.do(t, http.MethodGet, "/staff/products/"+productID, token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(15), body["quantity"])

	code, _ = s.do(t, http.MethodPost, "/staff/orders/"+orderID+"/paid", token, nil)
	assert.Equal(t, http.StatusConflict, code)
}

func TestErrorStatuses(t *testing.T) {
	s := newTestServer(t, nil)
	token, _ := s.login(t, "admin", "secret123")

	code, _ := s.do(t, http.MethodGet, "/staff/orders/not-an-id", token, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(t, http.MethodGet, "/staff/orders/65f0c0ffee0000000000beef", token, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = s.do(t, http.MethodPost, "/staff/products", token, gin.H{"category": "no name"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(t, http.MethodPost, "/login", "", gin.H{"username": "admin", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestRolesAreEnforced(t *testing.T) {
	s := newTestServer(t, nil)
	adminToken, _ := s.login(t, "admin", "secret123")

	code, _ := s.do(t, http.MethodGet, "/staff/products", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, body := s.do(t, http.MethodPost, "/admin/users", adminToken, gin.H{"username": "emp", "password": "secret123", "name": "Employee"})
	require.Equal(t, http.StatusCreated, code, body)

	empToken, _ := s.login(t, "emp", "secret123")
	code, _ = s.do(t, http.MethodGet, "/staff/products", empToken, nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = s.do(t, http.MethodGet, "/admin/audit", empToken, nil)
	assert.Equal(t, http.StatusForbidden, code)
	code, _ = s.do(t, http.MethodGet, "/admin/audit", adminToken, nil)
	assert.Equal(t, http.StatusOK, code)

	code, _ = s.do(t, http.MethodPost, "/logout", empToken, nil)
	require.Equal(t, http.StatusOK, code)
	code, _ = s.do(t, http.MethodGet, "/staff/products", empToken, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestPublicRequestOrderFlow(t *testing.T) {
	s := newTestServer(t, nil)
	token, ownerID := s.login(t, "admin", "secret123")

	code, product := s.do(t, http.MethodPost, "/staff/products", token, gin.H{"name": "Swabs", "category": "consumables", "quantity": 3, "pricePerPiece": 1})
	require.Equal(t, http.StatusCreated, code)
	productID := product["id"].(string)

	code, raw := s.raw(t, http.MethodGet, "/public/catalog", "", nil)
	require.Equal(t, http.StatusOK, code)
	var catalog []map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &catalog))
	require.Len(t, catalog, 1)
	assert.Equal(t, true, catalog[0]["available"])
	assert.NotContains(t, catalog[0], "quantity")

	code, submitted := s.do(t, http.MethodPost, "/public/owners/"+ownerID+"/request-orders", "", gin.H{
		"buyerInfo": gin.H{"name": "Walk-in"},
		"lines":     []gin.H{{"productId": productID, "quantity": 2}},
	})
	require.Equal(t, http.StatusCreated, code, submitted)
	viewToken := submitted["viewToken"].(string)
	requestID := submitted["id"].(string)

	code, view := s.do(t, http.MethodGet, "/public/request-orders/"+viewToken, "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "pending", view["status"])
	assert.Greater(t, view["remainingSeconds"].(float64), float64(0))

	code, body := s.do(t, http.MethodPost, "/staff/request-orders/"+requestID+"/confirm", token, nil)
	require.Equal(t, http.StatusOK, code, body)
	order := body["order"].(map[string]interface{})
	assert.Equal(t, "Unpaid", order["paymentStatus"])

	code, _ = s.do(t, http.MethodPost, "/staff/request-orders/"+requestID+"/confirm", token, nil)
	assert.Equal(t, http.StatusConflict, code)

	code, _ = s.do(t, http.MethodGet, "/public/request-orders/unknown", "", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestPublicRoutesAreRateLimited(t *testing.T) {
	limit, err := middleware.RateLimit("2-M")
	require.NoError(t, err)
	s := newTestServer(t, limit)

	for i := 0; i < 2; i++ {
		code, _ := s.raw(t, http.MethodGet, "/public/catalog", "", nil)
		require.Equal(t, http.StatusOK, code)
	}
	code, _ := s.raw(t, http.MethodGet, "/public/catalog", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, code)

	code, _ = s.raw(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestMetricsAreRestrictedByIP(t *testing.T) {
	s := newTestServer(t, nil)

	code, _ := s.raw(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusForbidden, code)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.RemoteAddr = "127.0.0.1:40000"
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_requests_total")
}

func TestPublicRequestOrderUsesCatalogPrice(t *testing.T) {
	s := newTestServer(t, nil)
	token, ownerID := s.login(t, "admin", "secret123")

	code, product := s.do(t, http.MethodPost, "/staff/products", token, gin.H{"name": "Test kit", "category": "kits", "quantity": 5, "pricePerPiece": 100})
	require.Equal(t, http.StatusCreated, code)
	productID := product["id"].(string)

	code, _ = s.do(t, http.MethodPost, "/public/owners/"+ownerID+"/request-orders", "", gin.H{
		"buyerInfo": gin.H{"name": "Walk-in"},
		"lines":     []gin.H{{"productId": productID, "quantity": 2, "price": 0.01}},
	})
	assert.Equal(t, http.StatusBadRequest, code)

	code, submitted := s.do(t, http.MethodPost, "/public/owners/"+ownerID+"/request-orders", "", gin.H{
		"buyerInfo": gin.H{"name": "Walk-in"},
		"lines":     []gin.H{{"productId": productID, "quantity": 2}},
	})
	require.Equal(t, http.StatusCreated, code, submitted)
	assert.Equal(t, 200.0, submitted["totalAmount"])
}
