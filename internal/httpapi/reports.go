package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"medpos/backend/internal/domain"
)

type customerRequest struct {
	Name    string `json:"name"`
	Contact string `json:"contact"`
	Address string `json:"address"`
}

type userRequest struct {
	Username      string `json:"username"`
	Password      string `json:"password"`
	Role          string `json:"role"`
	AdminPassword string `json:"admin_password"`
}

type userStatusRequest struct {
	Active        bool   `json:"active"`
	AdminPassword string `json:"admin_password"`
}

func (a *API) handleDailyReport(w http.ResponseWriter, r *http.Request) {
	day, err := a.parseDate(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if day.IsZero() {
		day = time.Now().In(a.loc)
	}
	record, err := a.engine.DailySales(r.Context(), day)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (a *API) handleRangeReport(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	from, err := a.parseDate(query.Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	to, err := a.parseDate(query.Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if from.IsZero() || to.IsZero() {
		writeError(w, http.StatusBadRequest, errors.New("from and to are required"))
		return
	}
	records, err := a.engine.SalesRange(r.Context(), from, to)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"days": records})
}

func (a *API) handleMonthlyReport(w http.ResponseWriter, r *http.Request) {
	now := time.Now().In(a.loc)
	year, err := intParam(r, "year", now.Year())
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	month, err := intParam(r, "month", int(now.Month()))
	if err != nil || month < 1 || month > 12 {
		writeError(w, http.StatusBadRequest, errors.New("month must be 1-12"))
		return
	}
	summary, err := a.engine.MonthlySales(r.Context(), year, time.Month(month))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (a *API) handleYearReport(w http.ResponseWriter, r *http.Request) {
	year, err := intParam(r, "year", time.Now().In(a.loc).Year())
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	months, err := a.engine.YearSales(r.Context(), year)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"year": year, "months": months})
}

func (a *API) handleListLog(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	from, err := a.parseDate(query.Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	to, err := a.parseDate(query.Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if !to.IsZero() {
		to = to.AddDate(0, 0, 1)
	}
	entries, err := a.engine.ListLog(r.Context(), from, to, parsePositiveLimit(query.Get("limit"), 200, 2000))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (a *API) handleListCustomers(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	customers, err := a.engine.ListCustomers(r.Context(), query.Get("q"), parsePositiveLimit(query.Get("limit"), 100, 1000))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"customers": customers})
}

func (a *API) handleCreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req customerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	customer, err := a.engine.CreateCustomer(r.Context(), domain.Customer{
		Name:    req.Name,
		Contact: req.Contact,
		Address: req.Address,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, customer)
}

func (a *API) handleGetCustomer(w http.ResponseWriter, r *http.Request) {
	customer, err := a.engine.GetCustomer(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, customer)
}

func (a *API) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := a.engine.ListUsers(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (a *API) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	password, ok := a.adminPassword(w, r, req.AdminPassword)
	if !ok {
		return
	}
	account, err := a.engine.CreateUser(r.Context(), req.Username, req.Password, req.Role, password)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, account)
}

func (a *API) handleSetUserStatus(w http.ResponseWriter, r *http.Request) {
	var req userStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	password, ok := a.adminPassword(w, r, req.AdminPassword)
	if !ok {
		return
	}
	username := chi.URLParam(r, "username")
	if err := a.engine.SetUserActive(r.Context(), username, req.Active, password); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"username": username, "active": req.Active})
}

func intParam(r *http.Request, name string, fallback int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New(name + " must be an integer")
	}
	return value, nil
}
