package handler

import (
	"log/slog"
	"net/http"
	"time"

	"cero/internal/auth"
	"cero/internal/entitlement"
	"cero/internal/store"
)

// BillingHandler shows the signed-in account's own subscription and ledger.
type BillingHandler struct {
	subs     *store.SubscriptionStore
	events   *store.BillingEventStore
	renderer *Renderer
	logger   *slog.Logger
}

func NewBillingHandler(subs *store.SubscriptionStore, events *store.BillingEventStore, renderer *Renderer, logger *slog.Logger) *BillingHandler {
	return &BillingHandler{subs: subs, events: events, renderer: renderer, logger: logger}
}

func (h *BillingHandler) BillingPage(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())

	sub, err := h.subs.GetByAccountID(ac.AccountID)
	if err != nil {
		h.renderer.serverError(w, r, err)
		return
	}
	events, err := h.events.ListByAccount(ac.AccountID)
	if err != nil {
		h.renderer.serverError(w, r, err)
		return
	}

	data := map[string]any{
		"Title":  "Billing",
		"Events": events,
	}
	if sub != nil {
		data["Subscription"] = sub
		data["Valid"] = entitlement.IsValid(sub, time.Now().UTC())
	}
	h.renderer.render(w, r, "billing.html", data)
}
