package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cosmetiquera/backend/internal/cache"
	"cosmetiquera/backend/internal/domain"
	"cosmetiquera/backend/internal/service"
	"cosmetiquera/backend/internal/shift"
	"cosmetiquera/backend/internal/store/memory"
)

// newTestAPI builds a full API with an in-memory store, real AuthManager and
// real Service so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	repo := memory.NewSeeded()
	svc := service.New(repo, cache.NoopCatalogCache{}, shift.New(-5, 6), "es-CO", time.Minute)
	auth := NewAuthManager(svc, "test-secret-key", time.Hour)

	return New(svc, auth, "*")
}

func login(t *testing.T, api *API, username string, password string) string {
	t.Helper()

	payload, _ := json.Marshal(domain.LoginRequest{Username: username, Password: password})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = fmt.Sprintf("10.0.0.%d:4000", len(username))
	rec := httptest.NewRecorder()

	api.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("login as %s: expected 200, got %d (body: %s)", username, rec.Code, rec.Body.String())
	}

	var resp domain.LoginResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return resp.AccessToken
}

func loginAsAdmin(t *testing.T, api *API) string {
	return login(t, api, "admin", "admin123")
}

func loginAsSeller(t *testing.T, api *API) string {
	return login(t, api, "gabi", "seller123")
}

func doJSON(t *testing.T, api *API, method string, path string, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestHandleLogin_Success(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsAdmin(t, api)
	if token == "" {
		t.Fatal("expected non-empty access token")
	}
}

func TestHandleLogin_InvalidCredentials(t *testing.T) {
	api := newTestAPI(t)

	payload, _ := json.Marshal(domain.LoginRequest{Username: "admin", Password: "wrongpassword"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	api.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestProductsRequireAuth(t *testing.T) {
	api := newTestAPI(t)

	rec := doJSON(t, api, http.MethodGet, "/api/v1/products", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
}

func TestListProductsReturnsSeededCatalog(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsSeller(t, api)

	rec := doJSON(t, api, http.MethodGet, "/api/v1/products", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var body struct {
		Products []domain.Product `json:"products"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Products) == 0 {
		t.Fatal("expected seeded products in listing")
	}
}

func TestCreateProductForbiddenForSeller(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsSeller(t, api)

	rec := doJSON(t, api, http.MethodPost, "/api/v1/products", token, domain.ProductCreateRequest{
		Name:           "Delineador",
		Quantity:       10,
		SalePriceCents: 1200000,
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for seller, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestCreateProductAsAdmin(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsAdmin(t, api)

	rec := doJSON(t, api, http.MethodPost, "/api/v1/products", token, domain.ProductCreateRequest{
		Name:           "Delineador Negro",
		Quantity:       10,
		SalePriceCents: 1200000,
		MinStock:       3,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var body struct {
		Product domain.Product `json:"product"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Product.ID == 0 {
		t.Fatal("expected assigned product id")
	}
	if len(body.Product.Code) != 12 {
		t.Fatalf("expected backfilled 12-digit code, got %q", body.Product.Code)
	}
}

func TestCreateSaleDecrementsStock(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsSeller(t, api)

	rec := doJSON(t, api, http.MethodPost, "/api/v1/sales", token, domain.SaleCreateRequest{
		Lines: []domain.SaleLineInput{
			{ProductID: 1, Qty: 2},
		},
		Payments: map[string]int64{"cash": 5000000},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var saleBody struct {
		Sale domain.Sale `json:"sale"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&saleBody); err != nil {
		t.Fatalf("decode sale: %v", err)
	}
	if saleBody.Sale.TotalCents != 5000000 {
		t.Fatalf("expected total 5000000, got %d", saleBody.Sale.TotalCents)
	}
	if saleBody.Sale.TenderLabel != "Cash" {
		t.Fatalf("expected tender label Cash, got %q", saleBody.Sale.TenderLabel)
	}

	rec = doJSON(t, api, http.MethodGet, "/api/v1/products/1", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 fetching product, got %d", rec.Code)
	}
	var productBody struct {
		Product domain.Product `json:"product"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&productBody); err != nil {
		t.Fatalf("decode product: %v", err)
	}
	if productBody.Product.Quantity != 22 {
		t.Fatalf("expected stock 22 after sale, got %d", productBody.Product.Quantity)
	}
}

func TestCreateSaleInsufficientStockReturnsConflict(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsSeller(t, api)

	rec := doJSON(t, api, http.MethodPost, "/api/v1/sales", token, domain.SaleCreateRequest{
		Lines: []domain.SaleLineInput{
			{ProductID: 6, Qty: 999},
		},
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for insufficient stock, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestSaleReceiptEndpoint(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsSeller(t, api)

	rec := doJSON(t, api, http.MethodPost, "/api/v1/sales", token, domain.SaleCreateRequest{
		Lines: []domain.SaleLineInput{
			{ProductID: 3, Qty: 1},
		},
		Payments:      map[string]int64{"nequi": 3900000},
		ReferenceCode: "NQ-5521",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var saleBody struct {
		Sale domain.Sale `json:"sale"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&saleBody); err != nil {
		t.Fatalf("decode sale: %v", err)
	}

	rec = doJSON(t, api, http.MethodGet, fmt.Sprintf("/api/v1/sales/%d/receipt", saleBody.Sale.ID), token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for receipt, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var receipt domain.Receipt
	if err := json.NewDecoder(rec.Body).Decode(&receipt); err != nil {
		t.Fatalf("decode receipt: %v", err)
	}
	if len(receipt.Payments) != 1 {
		t.Fatalf("expected 1 payment row, got %d", len(receipt.Payments))
	}
	if receipt.Payments[0].ReferenceCode != "NQ-5521" {
		t.Fatalf("expected reference on nequi payment, got %q", receipt.Payments[0].ReferenceCode)
	}
}

func TestVoidSaleForbiddenForSeller(t *testing.T) {
	api := newTestAPI(t)
	sellerToken := loginAsSeller(t, api)

	rec := doJSON(t, api, http.MethodPost, "/api/v1/sales", sellerToken, domain.SaleCreateRequest{
		Lines: []domain.SaleLineInput{
			{ProductID: 2, Qty: 1},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var saleBody struct {
		Sale domain.Sale `json:"sale"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&saleBody); err != nil {
		t.Fatalf("decode sale: %v", err)
	}

	rec = doJSON(t, api, http.MethodDelete, fmt.Sprintf("/api/v1/sales/%d", saleBody.Sale.ID), sellerToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for seller void, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	adminToken := loginAsAdmin(t, api)
	rec = doJSON(t, api, http.MethodDelete, fmt.Sprintf("/api/v1/sales/%d", saleBody.Sale.ID), adminToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin void, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestShiftTotalsAndClose(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsSeller(t, api)

	rec := doJSON(t, api, http.MethodPost, "/api/v1/sales", token, domain.SaleCreateRequest{
		Lines: []domain.SaleLineInput{
			{ProductID: 5, Qty: 2},
		},
		Payments: map[string]int64{"cash": 3000000},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, api, http.MethodGet, "/api/v1/shift/totals", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for shift totals, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var totals domain.ShiftTotals
	if err := json.NewDecoder(rec.Body).Decode(&totals); err != nil {
		t.Fatalf("decode totals: %v", err)
	}
	if totals.CashCents != 3000000 {
		t.Fatalf("expected cash 3000000, got %d", totals.CashCents)
	}

	rec = doJSON(t, api, http.MethodPost, "/api/v1/shift/close", token, domain.CloseRegisterRequest{})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for close, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, api, http.MethodGet, "/api/v1/shift/closing", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 fetching closing, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	// A seller cannot close the same business day twice.
	rec = doJSON(t, api, http.MethodPost, "/api/v1/shift/close", token, domain.CloseRegisterRequest{})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 on seller reclose, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestUsersEndpointAdminOnly(t *testing.T) {
	api := newTestAPI(t)
	sellerToken := loginAsSeller(t, api)

	rec := doJSON(t, api, http.MethodGet, "/api/v1/users", sellerToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for seller, got %d", rec.Code)
	}

	adminToken := loginAsAdmin(t, api)
	rec = doJSON(t, api, http.MethodGet, "/api/v1/users", adminToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var body struct {
		Users []domain.User `json:"users"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode users: %v", err)
	}
	if len(body.Users) < 2 {
		t.Fatalf("expected seeded users, got %d", len(body.Users))
	}
}

func TestGenericCustomerCannotBeDeleted(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsAdmin(t, api)

	rec := doJSON(t, api, http.MethodDelete, "/api/v1/customers/1", token, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 deleting generic customer, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestUnknownSaleReturns404(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsSeller(t, api)

	rec := doJSON(t, api, http.MethodGet, "/api/v1/sales/99999", token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}
