package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"cero/internal/apperr"
	"cero/internal/auth"
	"cero/internal/billing"
	"cero/internal/middleware"
	"cero/internal/model"
	"cero/internal/store"
)

// AdminHandler implements the manual billing workflow: an admin confirms a
// payment out of band and marks the account paid here.
type AdminHandler struct {
	accounts *store.AccountStore
	events   *store.BillingEventStore
	audit    *store.AuditStore
	billing  *billing.Engine
	renderer *Renderer
	logger   *slog.Logger
}

func NewAdminHandler(
	accounts *store.AccountStore,
	events *store.BillingEventStore,
	audit *store.AuditStore,
	billingEngine *billing.Engine,
	renderer *Renderer,
	logger *slog.Logger,
) *AdminHandler {
	return &AdminHandler{
		accounts: accounts,
		events:   events,
		audit:    audit,
		billing:  billingEngine,
		renderer: renderer,
		logger:   logger,
	}
}

// BillingPage renders the mark-paid form plus the most recent ledger
// entries across all accounts.
func (h *AdminHandler) BillingPage(w http.ResponseWriter, r *http.Request) {
	recent, err := h.events.ListRecent(20)
	if err != nil {
		h.renderer.serverError(w, r, err)
		return
	}
	h.renderer.render(w, r, "admin_billing.html", map[string]any{
		"Title":        "Admin Billing",
		"RecentEvents": recent,
	})
}

// MarkPaid processes the mark-paid form. The amount arrives in dollars
// and is stored in integer cents.
func (h *AdminHandler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.formError(w, r, http.StatusBadRequest, "Invalid form data")
		return
	}

	accountID, err := strconv.ParseInt(r.FormValue("account_id"), 10, 64)
	if err != nil || accountID <= 0 {
		h.formError(w, r, http.StatusBadRequest, "A valid account ID is required")
		return
	}
	planStr := r.FormValue("plan")
	if !model.ValidPlan(planStr) {
		h.formError(w, r, http.StatusBadRequest, "Unknown plan")
		return
	}
	duration, err := strconv.Atoi(r.FormValue("duration"))
	if err != nil || duration <= 0 {
		h.formError(w, r, http.StatusBadRequest, "Duration must be a positive number of days")
		return
	}
	amountDollars, err := strconv.ParseFloat(r.FormValue("amount"), 64)
	if err != nil || amountDollars < 0 {
		h.formError(w, r, http.StatusBadRequest, "Amount must be a non-negative number")
		return
	}
	amountCents := int64(amountDollars*100 + 0.5)

	account, err := h.accounts.GetByID(accountID)
	if err != nil {
		h.renderer.serverError(w, r, err)
		return
	}
	if account == nil {
		h.formError(w, r, http.StatusNotFound, "No such account")
		return
	}

	ac, _ := auth.FromContext(r.Context())
	method := strings.TrimSpace(r.FormValue("payment_method"))
	reference := strings.TrimSpace(r.FormValue("reference"))
	notes := strings.TrimSpace(r.FormValue("notes"))

	err = h.billing.MarkPaid(accountID, model.Plan(planStr), duration, amountCents, method, reference, ac.UserID, notes)
	if err != nil {
		if errors.Is(err, apperr.ErrInvalidInput) {
			h.formError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		// Storage or consistency failure: the transaction rolled back and
		// the admin must see an explicit failure, not a silent no-op.
		h.logger.Error("mark paid failed", "account_id", accountID, "error", err)
		h.formError(w, r, http.StatusInternalServerError, "Failed to process payment; no changes were made")
		return
	}

	if err := h.audit.Append(ac.UserID, accountID, store.AuditSubscriptionChange, planStr, middleware.RealIP(r)); err != nil {
		h.logger.Error("audit append", "error", err)
	}

	recent, err := h.events.ListRecent(20)
	if err != nil {
		h.renderer.serverError(w, r, err)
		return
	}
	h.renderer.render(w, r, "admin_billing.html", map[string]any{
		"Title":        "Admin Billing",
		"Success":      "Payment recorded",
		"RecentEvents": recent,
	})
}

// Accounts is the admin account search page.
func (h *AdminHandler) Accounts(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	accounts, err := h.accounts.Search(query, 50)
	if err != nil {
		h.renderer.serverError(w, r, err)
		return
	}
	h.renderer.render(w, r, "accounts.html", map[string]any{
		"Title":    "Accounts",
		"Query":    query,
		"Accounts": accounts,
	})
}

func (h *AdminHandler) formError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	recent, err := h.events.ListRecent(20)
	if err != nil {
		h.logger.Error("list recent events", "error", err)
	}
	h.renderer.renderStatus(w, r, status, "admin_billing.html", map[string]any{
		"Title":        "Admin Billing",
		"Error":        msg,
		"RecentEvents": recent,
	})
}
