package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"medpos/backend/internal/cart"
	"medpos/backend/internal/domain"
	"medpos/backend/internal/service"
	"medpos/backend/internal/store"
)

type cartLineRequest struct {
	ItemID   string `json:"item_id"`
	Qty      int    `json:"qty"`
	Discount bool   `json:"discount"`
}

type checkoutRequest struct {
	Items         []cartLineRequest `json:"items"`
	CashPaidCents int64             `json:"cash_paid_cents"`
	PaymentMethod string            `json:"payment_method"`
	CustomerID    string            `json:"customer_id"`
	AdminPassword string            `json:"admin_password"`
}

type holdRequest struct {
	Items      []cartLineRequest `json:"items"`
	CustomerID string            `json:"customer_id"`
}

type cartView struct {
	Lines      []cart.Line          `json:"lines"`
	Totals     cart.Totals          `json:"totals"`
	CustomerID string               `json:"customer_id,omitempty"`
	State      domain.CheckoutState `json:"state"`
}

type adminRequest struct {
	AdminPassword string `json:"admin_password"`
}

type editRequest struct {
	Quantities    map[string]int `json:"quantities"`
	CashPaidCents *int64         `json:"cash_paid_cents,omitempty"`
	AdminPassword string         `json:"admin_password"`
}

func viewOf(sess *cart.Session) cartView {
	return cartView{
		Lines:      sess.Lines(),
		Totals:     sess.Totals(),
		CustomerID: sess.CustomerID(),
		State:      sess.State(),
	}
}

// buildCart replays the posted lines into a fresh session. Discounted lines
// go through the admin gate once per distinct item.
func (a *API) buildCart(ctx context.Context, lines []cartLineRequest, customerID string, adminPassword string) (*cart.Session, error) {
	sess := a.engine.NewCart()
	for _, line := range lines {
		if err := sess.AddItem(ctx, strings.TrimSpace(line.ItemID), line.Qty); err != nil {
			return nil, err
		}
	}
	for _, line := range lines {
		if !line.Discount {
			continue
		}
		idx := lineIndex(sess, strings.TrimSpace(line.ItemID))
		if idx < 0 || sess.Lines()[idx].DiscountApplied {
			continue
		}
		if _, err := a.engine.ApplyDiscount(ctx, sess, idx, adminPassword); err != nil {
			return nil, err
		}
	}
	if err := a.engine.AttachCustomer(ctx, sess, customerID); err != nil {
		return nil, err
	}
	return sess, nil
}

func lineIndex(sess *cart.Session, itemID string) int {
	for i, line := range sess.Lines() {
		if line.ItemID == itemID {
			return i
		}
	}
	return -1
}

func hasDiscount(lines []cartLineRequest) bool {
	for _, line := range lines {
		if line.Discount {
			return true
		}
	}
	return false
}

func (a *API) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if len(req.Items) == 0 {
		a.fail(w, r, store.ErrEmptyCart)
		return
	}

	password := ""
	if hasDiscount(req.Items) {
		var ok bool
		if password, ok = a.adminPassword(w, r, req.AdminPassword); !ok {
			return
		}
	}
	sess, err := a.buildCart(r.Context(), req.Items, req.CustomerID, password)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	result, err := a.engine.Checkout(r.Context(), sess, req.CashPaidCents, req.PaymentMethod)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (a *API) handleListHeld(w http.ResponseWriter, r *http.Request) {
	held, err := a.engine.ListHeld(r.Context(), parsePositiveLimit(r.URL.Query().Get("limit"), 50, 500))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"held": held})
}

func (a *API) handleHold(w http.ResponseWriter, r *http.Request) {
	var req holdRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	sess, err := a.buildCart(r.Context(), req.Items, req.CustomerID, "")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	tx, err := a.engine.Hold(r.Context(), sess)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

func (a *API) handleResume(w http.ResponseWriter, r *http.Request) {
	sess, report, err := a.engine.Resume(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Cart   cartView             `json:"cart"`
		Report service.ResumeReport `json:"report"`
	}{Cart: viewOf(sess), Report: report})
}

func (a *API) handleDiscardHeld(w http.ResponseWriter, r *http.Request) {
	password, ok := a.adminPassword(w, r, "")
	if !ok {
		return
	}
	if err := a.engine.DiscardHeld(r.Context(), chi.URLParam(r, "id"), password); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := domain.TransactionFilter{
		Status:     domain.TransactionStatus(query.Get("status")),
		Query:      query.Get("q"),
		CustomerID: query.Get("customer_id"),
		Limit:      parsePositiveLimit(query.Get("limit"), 100, 1000),
	}
	var err error
	if filter.From, err = a.parseDate(query.Get("from")); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if filter.To, err = a.parseDate(query.Get("to")); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if !filter.To.IsZero() {
		// the end day is inclusive; stores treat To as exclusive
		filter.To = filter.To.AddDate(0, 0, 1)
	}

	txs, err := a.engine.ListTransactions(r.Context(), filter)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": txs})
}

func (a *API) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := a.engine.GetTransaction(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (a *API) handleReceipt(w http.ResponseWriter, r *http.Request) {
	receipt, err := a.engine.GetReceipt(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

func (a *API) handleReturn(w http.ResponseWriter, r *http.Request) {
	var req adminRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	password, ok := a.adminPassword(w, r, req.AdminPassword)
	if !ok {
		return
	}
	tx, err := a.engine.Return(r.Context(), chi.URLParam(r, "id"), password)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (a *API) handleEditTransaction(w http.ResponseWriter, r *http.Request) {
	var req editRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	password, ok := a.adminPassword(w, r, req.AdminPassword)
	if !ok {
		return
	}
	tx, err := a.engine.EditTransaction(r.Context(), chi.URLParam(r, "id"), req.Quantities, req.CashPaidCents, password)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

// parseDate reads YYYY-MM-DD in the shop's zone; an empty value is the zero
// time.
func (a *API) parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	day, err := time.ParseInLocation(time.DateOnly, raw, a.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q must be YYYY-MM-DD", raw)
	}
	return day, nil
}
