package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/lamiti/shopsync/internal/lifecycle"
	"github.com/lamiti/shopsync/internal/queue"
	"github.com/lamiti/shopsync/internal/store"
	syncpkg "github.com/lamiti/shopsync/internal/sync"
	"github.com/lamiti/shopsync/internal/types"
)

const testAPIKey = "test-admin-key"

// stubBackend is a remote backend that accepts everything.
type stubBackend struct{}

func (stubBackend) FetchProducts(context.Context) ([]types.Product, error)   { return nil, nil }
func (stubBackend) FetchCategories(context.Context) ([]types.Category, error) {
	return nil, nil
}
func (stubBackend) FetchOrders(context.Context) ([]types.Order, error)        { return nil, nil }
func (stubBackend) UpsertProducts(context.Context, []types.Product) error     { return nil }
func (stubBackend) CreateOrder(context.Context, types.Order) error            { return nil }
func (stubBackend) UpdateOrderStatus(context.Context, string, types.OrderStatus, string) error {
	return nil
}

func newTestServer(t *testing.T) (http.Handler, *store.SQLiteStore) {
	t.Helper()
	db, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	coordinator := syncpkg.New(db, stubBackend{}, queue.New(db, 5), lifecycle.New(), syncpkg.Options{})
	handler := NewHandler(coordinator, testAPIKey, "test")
	return NewRouter(handler), db
}

func doRequest(t *testing.T, router http.Handler, method, path string, body any, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	var reqBody *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reqBody = bytes.NewBuffer(data)
	} else {
		reqBody = &bytes.Buffer{}
	}

	req := httptest.NewRequest(method, path, reqBody)
	if authed {
		req.Header.Set("Authorization", "Bearer "+testAPIKey)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func seedCatalog(t *testing.T, db *store.SQLiteStore) {
	t.Helper()
	err := db.ReplaceProducts(context.Background(), []types.Product{
		{ID: "PRD-1", Name: "Linen Shirt", Category: "Shirts", Price: 45, Stock: 5, Active: true, AddedAt: time.Now().UTC()},
	})
	if err != nil {
		t.Fatal(err)
	}
}

func validOrderBody() map[string]any {
	return map[string]any{
		"cart": []map[string]any{
			{"product_id": "PRD-1", "quantity": 2},
		},
		"customer": map[string]any{
			"name":  "Ana",
			"email": "ana@example.com",
		},
		"shipping_address": map[string]any{
			"address": "Rr. e Dibres 1",
			"city":    "Tirana",
			"country": "AL",
		},
		"payment_method": "cash",
	}
}

func TestHandler_Health(t *testing.T) {
	router, _ := newTestServer(t)

	rec := doRequest(t, router, http.MethodGet, "/health", nil, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var health types.HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
		t.Fatal(err)
	}
	if health.Status != "healthy" || health.Version != "test" {
		t.Errorf("Unexpected health payload: %+v", health)
	}
}

func TestHandler_ListProducts(t *testing.T) {
	router, db := newTestServer(t)
	seedCatalog(t, db)

	rec := doRequest(t, router, http.MethodGet, "/api/v1/products", nil, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var products []types.Product
	if err := json.Unmarshal(rec.Body.Bytes(), &products); err != nil {
		t.Fatal(err)
	}
	if len(products) != 1 || products[0].ID != "PRD-1" {
		t.Errorf("Expected seeded product, got %v", products)
	}
}

func TestHandler_CreateOrder(t *testing.T) {
	router, db := newTestServer(t)
	seedCatalog(t, db)

	rec := doRequest(t, router, http.MethodPost, "/api/v1/orders", validOrderBody(), false)
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var order types.Order
	if err := json.Unmarshal(rec.Body.Bytes(), &order); err != nil {
		t.Fatal(err)
	}
	if order.ID == "" || order.TrackingCode == "" {
		t.Errorf("Expected generated identifiers, got %+v", order)
	}
	if order.Total != 90 {
		t.Errorf("Expected total 90, got %v", order.Total)
	}
	if order.Status != types.StatusPending {
		t.Errorf("Expected pending, got %s", order.Status)
	}
}

func TestHandler_CreateOrder_ValidationError(t *testing.T) {
	router, _ := newTestServer(t)

	body := validOrderBody()
	body["customer"] = map[string]any{"name": "", "email": "not-an-email"}

	rec := doRequest(t, router, http.MethodPost, "/api/v1/orders", body, false)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("Expected 422, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Errorf("Expected problem+json, got %s", ct)
	}

	var problem ProblemWithErrors
	if err := json.Unmarshal(rec.Body.Bytes(), &problem); err != nil {
		t.Fatal(err)
	}
	if len(problem.Errors) == 0 {
		t.Error("Expected field errors in problem response")
	}
}

func TestHandler_CreateOrder_MalformedJSON(t *testing.T) {
	router, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", rec.Code)
	}
}

func TestHandler_TrackOrder(t *testing.T) {
	router, db := newTestServer(t)
	seedCatalog(t, db)

	rec := doRequest(t, router, http.MethodPost, "/api/v1/orders", validOrderBody(), false)
	var created types.Order
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}

	rec = doRequest(t, router, http.MethodGet, "/api/v1/track/"+created.TrackingCode, nil, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var tracked types.Order
	if err := json.Unmarshal(rec.Body.Bytes(), &tracked); err != nil {
		t.Fatal(err)
	}
	if tracked.ID != created.ID {
		t.Errorf("Expected order %s, got %s", created.ID, tracked.ID)
	}

	rec = doRequest(t, router, http.MethodGet, "/api/v1/track/TRK-NOPE", nil, false)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown code, got %d", rec.Code)
	}
}

func TestHandler_AdminRequiresAuth(t *testing.T) {
	router, _ := newTestServer(t)

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/orders"},
		{http.MethodGet, "/api/v1/sync/status"},
		{http.MethodPost, "/api/v1/products"},
		{http.MethodGet, "/api/v1/products/low-stock"},
	}

	for _, p := range paths {
		rec := doRequest(t, router, p.method, p.path, nil, false)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s: Expected 401, got %d", p.method, p.path, rec.Code)
		}
	}
}

func TestHandler_UpdateOrderStatus(t *testing.T) {
	router, db := newTestServer(t)
	seedCatalog(t, db)

	rec := doRequest(t, router, http.MethodPost, "/api/v1/orders", validOrderBody(), false)
	var created types.Order
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}

	rec = doRequest(t, router, http.MethodPut, "/api/v1/orders/"+created.ID+"/status",
		map[string]any{"status": "confirmed", "note": "Payment received"}, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var updated types.Order
	if err := json.Unmarshal(rec.Body.Bytes(), &updated); err != nil {
		t.Fatal(err)
	}
	if updated.Status != types.StatusConfirmed {
		t.Errorf("Expected confirmed, got %s", updated.Status)
	}
	if len(updated.StatusHistory) != 2 {
		t.Errorf("Expected 2 history entries, got %d", len(updated.StatusHistory))
	}

	// Invalid transition maps to 409.
	rec = doRequest(t, router, http.MethodPut, "/api/v1/orders/"+created.ID+"/status",
		map[string]any{"status": "delivered"}, true)
	if rec.Code != http.StatusConflict {
		t.Errorf("Expected 409 for invalid transition, got %d", rec.Code)
	}

	// Unknown status maps to 422.
	rec = doRequest(t, router, http.MethodPut, "/api/v1/orders/"+created.ID+"/status",
		map[string]any{"status": "lost"}, true)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("Expected 422 for unknown status, got %d", rec.Code)
	}

	// Unknown order maps to 404.
	rec = doRequest(t, router, http.MethodPut, "/api/v1/orders/ORD-MISSING/status",
		map[string]any{"status": "confirmed"}, true)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown order, got %d", rec.Code)
	}
}

func TestHandler_ProductAdmin(t *testing.T) {
	router, _ := newTestServer(t)

	rec := doRequest(t, router, http.MethodPost, "/api/v1/products",
		types.Product{Name: "Wool Scarf", Category: "Accessories", Price: 20, Stock: 3}, true)
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created types.Product
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}
	if created.ID == "" || !created.Active {
		t.Errorf("Expected generated ID and active product, got %+v", created)
	}

	created.Price = 18
	rec = doRequest(t, router, http.MethodPut, "/api/v1/products/"+created.ID, created, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	rec = doRequest(t, router, http.MethodDelete, "/api/v1/products/"+created.ID, nil, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var deactivated types.Product
	if err := json.Unmarshal(rec.Body.Bytes(), &deactivated); err != nil {
		t.Fatal(err)
	}
	if deactivated.Active {
		t.Error("Expected product deactivated")
	}

	// Invalid payload maps to 422.
	rec = doRequest(t, router, http.MethodPost, "/api/v1/products",
		types.Product{Name: "", Price: -1}, true)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("Expected 422, got %d", rec.Code)
	}
}

func TestHandler_LowStock(t *testing.T) {
	router, db := newTestServer(t)
	err := db.ReplaceProducts(context.Background(), []types.Product{
		{ID: "PRD-1", Name: "A", Stock: 2, Active: true, AddedAt: time.Now()},
		{ID: "PRD-2", Name: "B", Stock: 50, Active: true, AddedAt: time.Now()},
	})
	if err != nil {
		t.Fatal(err)
	}

	rec := doRequest(t, router, http.MethodGet, "/api/v1/products/low-stock?threshold=5", nil, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var low []types.Product
	if err := json.Unmarshal(rec.Body.Bytes(), &low); err != nil {
		t.Fatal(err)
	}
	if len(low) != 1 || low[0].ID != "PRD-1" {
		t.Errorf("Expected [PRD-1], got %v", low)
	}
}

func TestHandler_CustomerEndpoints(t *testing.T) {
	router, db := newTestServer(t)
	seedCatalog(t, db)

	if rec := doRequest(t, router, http.MethodPost, "/api/v1/orders", validOrderBody(), false); rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", rec.Code)
	}

	rec := doRequest(t, router, http.MethodGet, "/api/v1/customers/ana@example.com/orders", nil, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var orders []types.Order
	if err := json.Unmarshal(rec.Body.Bytes(), &orders); err != nil {
		t.Fatal(err)
	}
	if len(orders) != 1 {
		t.Errorf("Expected 1 customer order, got %d", len(orders))
	}

	rec = doRequest(t, router, http.MethodGet, "/api/v1/customers/ana@example.com/stats", nil, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var stats types.CustomerStats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatal(err)
	}
	if stats.TotalOrders != 1 || stats.TotalSpent != 90 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
}

func TestHandler_SyncEndpoints(t *testing.T) {
	router, _ := newTestServer(t)

	rec := doRequest(t, router, http.MethodGet, "/api/v1/sync/status", nil, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var status types.SyncStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatal(err)
	}
	if status.Online {
		t.Error("Expected coordinator to start offline")
	}

	rec = doRequest(t, router, http.MethodPut, "/api/v1/sync/online",
		map[string]any{"online": true}, true)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("Expected 204, got %d", rec.Code)
	}

	rec = doRequest(t, router, http.MethodGet, "/api/v1/sync/status", nil, true)
	json.Unmarshal(rec.Body.Bytes(), &status)
	if !status.Online {
		t.Error("Expected online after flip")
	}

	rec = doRequest(t, router, http.MethodPost, "/api/v1/sync/trigger", nil, true)
	if rec.Code != http.StatusAccepted {
		t.Errorf("Expected 202, got %d", rec.Code)
	}
}

func TestHandler_MarkOrderRead(t *testing.T) {
	router, db := newTestServer(t)
	seedCatalog(t, db)

	rec := doRequest(t, router, http.MethodPost, "/api/v1/orders", validOrderBody(), false)
	var created types.Order
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}

	rec = doRequest(t, router, http.MethodPost, "/api/v1/orders/"+created.ID+"/read", nil, true)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("Expected 204, got %d", rec.Code)
	}

	rec = doRequest(t, router, http.MethodGet, "/api/v1/orders/"+created.ID, nil, true)
	var got types.Order
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if !got.AdminRead {
		t.Error("Expected admin_read set")
	}
}
