package handler

import (
	"log/slog"
	"net/http"

	"cero/internal/auth"
	"cero/internal/entitlement"
	"cero/internal/store"
)

type DashboardHandler struct {
	accounts     *store.AccountStore
	entitlements *entitlement.Engine
	renderer     *Renderer
	logger       *slog.Logger
}

func NewDashboardHandler(accounts *store.AccountStore, entitlements *entitlement.Engine, renderer *Renderer, logger *slog.Logger) *DashboardHandler {
	return &DashboardHandler{accounts: accounts, entitlements: entitlements, renderer: renderer, logger: logger}
}

// LandingPage is the public home page.
func (h *DashboardHandler) LandingPage(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	h.renderer.render(w, r, "index.html", map[string]any{"Title": "Cero"})
}

// Dashboard shows the signed-in overview with the account's feature list.
func (h *DashboardHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())

	account, err := h.accounts.GetByID(ac.AccountID)
	if err != nil {
		h.renderer.serverError(w, r, err)
		return
	}
	if account == nil {
		http.NotFound(w, r)
		return
	}

	features := []entitlement.Feature{
		entitlement.FeatureBasicReports,
		entitlement.FeatureAdvancedReports,
		entitlement.FeatureCSVExport,
		entitlement.FeatureReportGrouping,
		entitlement.FeatureAPIAccess,
		entitlement.FeaturePrioritySupport,
	}
	type featureRow struct {
		Name    string
		Enabled bool
	}
	featureRows := make([]featureRow, 0, len(features))
	for _, f := range features {
		featureRows = append(featureRows, featureRow{
			Name:    entitlement.FeatureName(f),
			Enabled: h.entitlements.HasFeature(ac.AccountID, f),
		})
	}

	h.renderer.render(w, r, "dashboard.html", map[string]any{
		"Title":    "Dashboard",
		"Account":  account,
		"Role":     ac.Role,
		"Features": featureRows,
		"MaxDays":  h.entitlements.MaxReportDays(ac.AccountID),
	})
}
