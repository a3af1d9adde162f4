package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"medpos/backend/internal/alert"
	"medpos/backend/internal/auth"
	"medpos/backend/internal/domain"
	"medpos/backend/internal/inventory"
	"medpos/backend/internal/sales"
	"medpos/backend/internal/service"
	"medpos/backend/internal/store"
	"medpos/backend/internal/store/memory"
)

const (
	testAdminPassword   = "Adm1n-pass!"
	testCashierPassword = "kasir-pass"
)

// newTestAPI builds a full API over the seeded in-memory store with an admin
// and a cashier account, so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := memory.NewSeeded()
	dir := auth.NewDirectory(repo, logger)
	if _, err := dir.EnsureAdmin(ctx, "admin", testAdminPassword); err != nil {
		t.Fatalf("bootstrap admin: %v", err)
	}
	hashed, err := auth.HashPassword(testCashierPassword)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := repo.CreateUser(ctx, domain.UserAccount{
		Username: "kasir",
		Password: hashed,
		Role:     domain.RoleCashier,
		Status:   domain.UserStatusActive,
	}); err != nil {
		t.Fatalf("create cashier: %v", err)
	}

	engine := service.New(
		repo,
		inventory.New(repo, repo, alert.NewLogNotifier(logger), logger),
		auth.NewGate(dir, logger),
		sales.NewAggregator(repo, logger, sales.WithLocation(time.UTC)),
		logger,
	)
	manager, err := NewAuthManager("test-secret-key-that-is-long-enough", time.Hour, dir)
	if err != nil {
		t.Fatalf("auth manager: %v", err)
	}
	return New(engine, manager, "http://127.0.0.1:3000", logger)
}

func login(t *testing.T, api *API, username, password string) string {
	t.Helper()

	body, _ := json.Marshal(loginRequest{Username: username, Password: password})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()

	api.Handler().ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("login %s failed, status %d: %s", username, res.Code, res.Body.String())
	}

	var payload LoginResponse
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode login response failed: %v", err)
	}
	if strings.TrimSpace(payload.AccessToken) == "" {
		t.Fatalf("expected access token in login response")
	}
	return payload.AccessToken
}

func send(t *testing.T, api *API, method, path, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res := httptest.NewRecorder()
	api.Handler().ServeHTTP(res, req)
	return res
}

func decode[T any](t *testing.T, res *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return out
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)

	res := send(t, api, http.MethodGet, "/healthz", "", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	body := decode[map[string]any](t, res)
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	api := newTestAPI(t)

	res := send(t, api, http.MethodPost, "/api/v1/auth/login", "", loginRequest{Username: "kasir", Password: "nope"})
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.Code)
	}
}

func TestRoutesRequireBearerToken(t *testing.T) {
	api := newTestAPI(t)

	if res := send(t, api, http.MethodGet, "/api/v1/inventory", "", nil); res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", res.Code)
	}
	if res := send(t, api, http.MethodGet, "/api/v1/inventory", "garbage", nil); res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with bad token, got %d", res.Code)
	}
}

func TestCheckoutCommitsAndMovesStock(t *testing.T) {
	api := newTestAPI(t)
	token := login(t, api, "kasir", testCashierPassword)

	res := send(t, api, http.MethodPost, "/api/v1/checkout", token, checkoutRequest{
		Items:         []cartLineRequest{{ItemID: "MED001", Qty: 3}},
		CashPaidCents: 3500,
		PaymentMethod: "cash",
	})
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", res.Code, res.Body.String())
	}
	result := decode[domain.CheckoutResult](t, res)
	if result.Transaction.Status != domain.TxStatusCompleted {
		t.Fatalf("expected completed, got %s", result.Transaction.Status)
	}
	if result.ChangeCents != 500 {
		t.Fatalf("expected change 500, got %d", result.ChangeCents)
	}

	res = send(t, api, http.MethodGet, "/api/v1/inventory/MED001", token, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("get item: %d", res.Code)
	}
	if item := decode[domain.InventoryItem](t, res); item.Quantity != 97 {
		t.Fatalf("expected 97 left, got %d", item.Quantity)
	}

	res = send(t, api, http.MethodGet, "/api/v1/transactions?status=Completed", token, nil)
	listed := decode[map[string][]domain.Transaction](t, res)
	if len(listed["transactions"]) != 1 {
		t.Fatalf("expected one transaction, got %d", len(listed["transactions"]))
	}
}

func TestCheckoutErrorStatuses(t *testing.T) {
	api := newTestAPI(t)
	token := login(t, api, "kasir", testCashierPassword)

	cases := []struct {
		name string
		req  checkoutRequest
		want int
	}{
		{"short payment", checkoutRequest{Items: []cartLineRequest{{ItemID: "MED001", Qty: 3}}, CashPaidCents: 2500}, http.StatusPaymentRequired},
		{"over stock", checkoutRequest{Items: []cartLineRequest{{ItemID: "MED001", Qty: 101}}, CashPaidCents: 1_000_000}, http.StatusConflict},
		{"unknown item", checkoutRequest{Items: []cartLineRequest{{ItemID: "NOPE", Qty: 1}}, CashPaidCents: 1000}, http.StatusNotFound},
		{"empty cart", checkoutRequest{CashPaidCents: 1000}, http.StatusBadRequest},
		{"discount without password", checkoutRequest{Items: []cartLineRequest{{ItemID: "MED001", Qty: 2, Discount: true}}, CashPaidCents: 2000}, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := send(t, api, http.MethodPost, "/api/v1/checkout", token, tc.req)
			if res.Code != tc.want {
				t.Fatalf("expected %d, got %d: %s", tc.want, res.Code, res.Body.String())
			}
		})
	}

	res := send(t, api, http.MethodGet, "/api/v1/inventory/MED001", token, nil)
	if item := decode[domain.InventoryItem](t, res); item.Quantity != 100 {
		t.Fatalf("failed checkouts moved stock: %d", item.Quantity)
	}
}

func TestCheckoutWithAuthorizedDiscount(t *testing.T) {
	api := newTestAPI(t)
	token := login(t, api, "kasir", testCashierPassword)

	res := send(t, api, http.MethodPost, "/api/v1/checkout", token, checkoutRequest{
		Items:         []cartLineRequest{{ItemID: "MED001", Qty: 2, Discount: true}},
		CashPaidCents: 1600,
		AdminPassword: testAdminPassword,
	})
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", res.Code, res.Body.String())
	}
	result := decode[domain.CheckoutResult](t, res)
	if result.Transaction.TotalCents != 1600 || result.DiscountCents != 400 {
		t.Fatalf("unexpected totals: %+v", result)
	}
}

func TestHoldResumeAndDiscard(t *testing.T) {
	api := newTestAPI(t)
	token := login(t, api, "kasir", testCashierPassword)

	res := send(t, api, http.MethodPost, "/api/v1/holds", token, holdRequest{
		Items: []cartLineRequest{{ItemID: "MED002", Qty: 2}, {ItemID: "MED004", Qty: 1}},
	})
	if res.Code != http.StatusCreated {
		t.Fatalf("hold: %d %s", res.Code, res.Body.String())
	}
	held := decode[domain.Transaction](t, res)
	if held.Status != domain.TxStatusHeld {
		t.Fatalf("expected held, got %s", held.Status)
	}

	res = send(t, api, http.MethodGet, "/api/v1/holds", token, nil)
	if list := decode[map[string][]domain.Transaction](t, res); len(list["held"]) != 1 {
		t.Fatalf("expected one held cart, got %d", len(list["held"]))
	}

	res = send(t, api, http.MethodPost, "/api/v1/holds/"+held.ID+"/resume", token, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("resume: %d %s", res.Code, res.Body.String())
	}
	resumed := decode[struct {
		Cart cartView `json:"cart"`
	}](t, res)
	if len(resumed.Cart.Lines) != 2 || resumed.Cart.Totals.FinalCents != 4200 {
		t.Fatalf("unexpected resumed cart: %+v", resumed.Cart)
	}

	res = send(t, api, http.MethodPost, "/api/v1/holds/"+held.ID+"/resume", token, nil)
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on second resume, got %d", res.Code)
	}

	res = send(t, api, http.MethodPost, "/api/v1/holds", token, holdRequest{Items: []cartLineRequest{{ItemID: "MED003", Qty: 1}}})
	second := decode[domain.Transaction](t, res)
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/holds/"+second.ID, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set(adminPasswordHeader, testAdminPassword)
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("discard: %d %s", rec.Code, rec.Body.String())
	}
}

func TestReturnTwiceConflicts(t *testing.T) {
	api := newTestAPI(t)
	token := login(t, api, "kasir", testCashierPassword)

	res := send(t, api, http.MethodPost, "/api/v1/checkout", token, checkoutRequest{
		Items:         []cartLineRequest{{ItemID: "MED005", Qty: 1}},
		CashPaidCents: 2400,
	})
	tx := decode[domain.CheckoutResult](t, res).Transaction

	path := fmt.Sprintf("/api/v1/transactions/%s/return", tx.ID)
	if res := send(t, api, http.MethodPost, path, token, adminRequest{AdminPassword: "wrong"}); res.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", res.Code)
	}
	if res := send(t, api, http.MethodPost, path, token, adminRequest{AdminPassword: testAdminPassword}); res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if res := send(t, api, http.MethodPost, path, token, adminRequest{AdminPassword: testAdminPassword}); res.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", res.Code)
	}

	res = send(t, api, http.MethodGet, "/api/v1/transactions/"+tx.ID+"/receipt", token, nil)
	receipt := decode[domain.Receipt](t, res)
	if receipt.Transaction.Status != domain.TxStatusReturned || len(receipt.Lines) != 1 {
		t.Fatalf("unexpected receipt: %+v", receipt)
	}
}

func TestImportInventoryFromRawCSV(t *testing.T) {
	api := newTestAPI(t)
	token := login(t, api, "kasir", testCashierPassword)

	csv := "id;name;category;unit_cost;retail_price;quantity;supplier\n" +
		"MED200;Loratadine 10mg;Antihistamine;2,50;4,00;40;Dexa\n"
	req := httptest.NewRequest(http.MethodPost, "/api/v1/inventory/import", strings.NewReader(csv))
	req.Header.Set("Content-Type", "text/csv")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set(adminPasswordHeader, testAdminPassword)
	res := httptest.NewRecorder()
	api.Handler().ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("import: %d %s", res.Code, res.Body.String())
	}
	report := decode[service.ImportReport](t, res)
	if report.Created != 1 {
		t.Fatalf("expected one created, got %+v", report)
	}

	got := send(t, api, http.MethodGet, "/api/v1/inventory/suggest?prefix=lora", token, nil)
	items := decode[map[string][]domain.InventoryItem](t, got)
	if len(items["items"]) != 1 || items["items"][0].ID != "MED200" {
		t.Fatalf("expected suggestion MED200, got %+v", items["items"])
	}
}

func TestDailyReportReflectsCheckout(t *testing.T) {
	api := newTestAPI(t)
	token := login(t, api, "kasir", testCashierPassword)

	send(t, api, http.MethodPost, "/api/v1/checkout", token, checkoutRequest{
		Items:         []cartLineRequest{{ItemID: "MED001", Qty: 3}},
		CashPaidCents: 3000,
	})
	today := time.Now().UTC().Format(time.DateOnly)
	res := send(t, api, http.MethodGet, "/api/v1/reports/daily?date="+today, token, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("daily: %d %s", res.Code, res.Body.String())
	}
	record := decode[domain.DailySalesRecord](t, res)
	if record.TotalSalesCents != 3000 || record.NetProfitCents != 600 || record.LastUser != "kasir" {
		t.Fatalf("unexpected record: %+v", record)
	}

	if res := send(t, api, http.MethodGet, "/api/v1/reports/monthly?month=13", token, nil); res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for month 13, got %d", res.Code)
	}
}

func TestStatusForMapsSentinels(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{store.ErrNotFound, http.StatusNotFound},
		{store.ErrUnauthorized, http.StatusForbidden},
		{store.ErrInsufficientPayment, http.StatusPaymentRequired},
		{store.NewStockError("MED001", 5, 1), http.StatusConflict},
		{store.ErrAlreadyReturned, http.StatusConflict},
		{store.ErrItemReferenced, http.StatusConflict},
		{store.ErrEmptyCart, http.StatusBadRequest},
		{fmt.Errorf("wrap: %w", store.ErrInvalidInput), http.StatusBadRequest},
		{store.Storage("commit", io.ErrUnexpectedEOF), http.StatusServiceUnavailable},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{io.EOF, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := statusFor(tc.err); got != tc.want {
			t.Fatalf("statusFor(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}
