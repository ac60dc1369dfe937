package handler

import (
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"cero/internal/auth"
)

// pages rendered against the shared layout. Per-page sets avoid
// {{define "content"}} collisions.
var pages = []string{
	"index.html",
	"login.html",
	"signup.html",
	"dashboard.html",
	"billing.html",
	"admin_billing.html",
	"accounts.html",
	"reports.html",
	"report_result.html",
	"error.html",
}

// Renderer holds the parsed template sets and the shared render helper
// used by every handler.
type Renderer struct {
	templates map[string]*template.Template
	baseURL   string
	logger    *slog.Logger
}

// NewRenderer parses the layout plus each page into its own template set.
func NewRenderer(templatesDir, baseURL string, logger *slog.Logger) *Renderer {
	layoutFile := templatesDir + "/layout.html"
	templates := make(map[string]*template.Template)
	for _, page := range pages {
		templates[page] = template.Must(template.ParseFiles(layoutFile, templatesDir+"/"+page))
	}
	return &Renderer{templates: templates, baseURL: baseURL, logger: logger}
}

func (rn *Renderer) render(w http.ResponseWriter, r *http.Request, name string, data map[string]any) {
	if data == nil {
		data = map[string]any{}
	}
	data["BaseURL"] = rn.baseURL
	data["Year"] = time.Now().Year()
	if ac, ok := auth.FromContext(r.Context()); ok {
		data["Authenticated"] = true
		data["UserEmail"] = ac.Email
		data["IsAdmin"] = ac.Role == "admin"
	}

	tmpl, ok := rn.templates[name]
	if !ok {
		rn.logger.Error("template not found", "name", name)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, "layout.html", data); err != nil {
		rn.logger.Error("template render", "name", name, "error", err)
	}
}

// renderStatus renders a page with an explicit HTTP status code.
func (rn *Renderer) renderStatus(w http.ResponseWriter, r *http.Request, status int, name string, data map[string]any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	rnData := data
	if rnData == nil {
		rnData = map[string]any{}
	}
	rnData["BaseURL"] = rn.baseURL
	rnData["Year"] = time.Now().Year()
	if ac, ok := auth.FromContext(r.Context()); ok {
		rnData["Authenticated"] = true
		rnData["UserEmail"] = ac.Email
		rnData["IsAdmin"] = ac.Role == "admin"
	}
	tmpl, ok := rn.templates[name]
	if !ok {
		rn.logger.Error("template not found", "name", name)
		return
	}
	if err := tmpl.ExecuteTemplate(w, "layout.html", rnData); err != nil {
		rn.logger.Error("template render", "name", name, "error", err)
	}
}

// serverError hides storage detail behind a generic page.
func (rn *Renderer) serverError(w http.ResponseWriter, r *http.Request, err error) {
	rn.logger.Error("request failed", "path", r.URL.Path, "error", err)
	rn.renderStatus(w, r, http.StatusInternalServerError, "error.html", map[string]any{
		"Title":   "Something went wrong",
		"Message": "An internal error occurred. Please try again.",
	})
}
