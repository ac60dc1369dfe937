package handler

import (
	"encoding/csv"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"cero/internal/apperr"
	"cero/internal/auth"
	"cero/internal/entitlement"
	"cero/internal/report"
)

type ReportsHandler struct {
	reports      *report.Service
	entitlements *entitlement.Engine
	renderer     *Renderer
	logger       *slog.Logger
}

func NewReportsHandler(reports *report.Service, entitlements *entitlement.Engine, renderer *Renderer, logger *slog.Logger) *ReportsHandler {
	return &ReportsHandler{reports: reports, entitlements: entitlements, renderer: renderer, logger: logger}
}

// ReportsPage renders the report form with the account's current limits.
func (h *ReportsHandler) ReportsPage(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	h.renderer.render(w, r, "reports.html", map[string]any{
		"Title":      "Reports",
		"MaxDays":    h.entitlements.MaxReportDays(ac.AccountID),
		"CanExport":  h.entitlements.HasFeature(ac.AccountID, entitlement.FeatureCSVExport),
		"CanGroup":   h.entitlements.HasFeature(ac.AccountID, entitlement.FeatureReportGrouping),
	})
}

// Generate validates the requested range against entitlements and renders
// the report, as a CSV attachment when export was requested and allowed.
func (h *ReportsHandler) Generate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderStatus(w, r, http.StatusBadRequest, "reports.html", map[string]any{
			"Title": "Reports", "Error": "Invalid form data",
		})
		return
	}

	start, err1 := time.Parse("2006-01-02", r.FormValue("start_date"))
	end, err2 := time.Parse("2006-01-02", r.FormValue("end_date"))
	if err1 != nil || err2 != nil {
		h.renderer.renderStatus(w, r, http.StatusBadRequest, "reports.html", map[string]any{
			"Title": "Reports", "Error": "Dates must be in YYYY-MM-DD format",
		})
		return
	}

	params := report.Params{
		StartDate: start,
		EndDate:   end,
		ExportCSV: r.FormValue("export_csv") == "1",
		Grouping:  report.ParseGrouping(r.FormValue("grouping")),
	}

	ac, _ := auth.FromContext(r.Context())
	if err := h.reports.Validate(ac.AccountID, params); err != nil {
		status := http.StatusForbidden
		if errors.Is(err, apperr.ErrInvalidInput) {
			status = http.StatusBadRequest
		}
		h.renderer.renderStatus(w, r, status, "reports.html", map[string]any{
			"Title": "Reports", "Error": err.Error(),
		})
		return
	}

	rows, err := h.reports.Generate(ac.AccountID, params)
	if err != nil {
		h.renderer.serverError(w, r, err)
		return
	}

	if params.ExportCSV {
		h.writeCSV(w, rows)
		return
	}

	h.renderer.render(w, r, "report_result.html", map[string]any{
		"Title":  "Report",
		"Header": report.Header,
		"Rows":   rows,
		"Start":  params.StartDate.Format("2006-01-02"),
		"End":    params.EndDate.Format("2006-01-02"),
	})
}

func (h *ReportsHandler) writeCSV(w http.ResponseWriter, rows []report.Row) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="report.csv"`)

	cw := csv.NewWriter(w)
	if err := cw.Write(report.Header); err != nil {
		h.logger.Error("write csv header", "error", err)
		return
	}
	for _, row := range rows {
		if err := cw.Write(row.Values()); err != nil {
			h.logger.Error("write csv row", "error", err)
			return
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		h.logger.Error("flush csv", "error", err)
	}
}
