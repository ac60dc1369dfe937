package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"cero/internal/auth"
	"cero/internal/billing"
	"cero/internal/config"
	"cero/internal/entitlement"
	"cero/internal/handler"
	"cero/internal/middleware"
	"cero/internal/report"
	"cero/internal/session"
	"cero/internal/store"
)

type Server struct {
	db             *sql.DB
	cfg            config.Config
	sessionManager *session.Manager
	userStore      *store.UserStore
	accountStore   *store.AccountStore
	billingEngine  *billing.Engine
	authH          *handler.AuthHandler
	dashboardH     *handler.DashboardHandler
	billingH       *handler.BillingHandler
	adminH         *handler.AdminHandler
	reportsH       *handler.ReportsHandler
	rateLimiter    *middleware.RateLimiter
	hasher         *auth.Hasher
	logger         *slog.Logger
}

func New(db *sql.DB, cfg config.Config, logger *slog.Logger) *Server {
	accountStore := store.NewAccountStore(db)
	userStore := store.NewUserStore(db)
	sessionStore := store.NewSessionStore(db)
	subscriptionStore := store.NewSubscriptionStore(db)
	eventStore := store.NewBillingEventStore(db)
	auditStore := store.NewAuditStore(db)

	sessionManager := session.NewManager(
		sessionStore, userStore,
		cfg.SessionDuration.Std(), cfg.InactivityWindow.Std(),
		logger.With("component", "session"),
	)
	entitlementEngine := entitlement.NewEngine(subscriptionStore, logger.With("component", "entitlement"))
	billingEngine := billing.NewEngine(db, subscriptionStore, eventStore, logger.With("component", "billing"))
	reportService := report.NewService(entitlementEngine)
	hasher := auth.NewHasher(cfg.BcryptCost)

	renderer := handler.NewRenderer(cfg.TemplatesDir, cfg.BaseURL, logger.With("component", "render"))

	authH := handler.NewAuthHandler(
		userStore, accountStore, auditStore, sessionManager, billingEngine, hasher,
		cfg.SessionDuration.Std(), cfg.Secrets.CookieSecure,
		renderer, logger.With("component", "auth"),
	)
	dashboardH := handler.NewDashboardHandler(accountStore, entitlementEngine, renderer, logger.With("component", "dashboard"))
	billingH := handler.NewBillingHandler(subscriptionStore, eventStore, renderer, logger.With("component", "billing"))
	adminH := handler.NewAdminHandler(accountStore, eventStore, auditStore, billingEngine, renderer, logger.With("component", "admin"))
	reportsH := handler.NewReportsHandler(reportService, entitlementEngine, renderer, logger.With("component", "reports"))

	return &Server{
		db:             db,
		cfg:            cfg,
		sessionManager: sessionManager,
		userStore:      userStore,
		accountStore:   accountStore,
		billingEngine:  billingEngine,
		authH:          authH,
		dashboardH:     dashboardH,
		billingH:       billingH,
		adminH:         adminH,
		reportsH:       reportsH,
		rateLimiter:    middleware.NewRateLimiter(),
		hasher:         hasher,
		logger:         logger,
	}
}

// SessionManager returns the session manager for startup and periodic
// cleanup tasks.
func (s *Server) SessionManager() *session.Manager {
	return s.sessionManager
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// EnsureBootstrapAdmin creates the configured bootstrap account, admin
// user, and free subscription, but only when no users exist yet.
func (s *Server) EnsureBootstrapAdmin() error {
	email := s.cfg.Secrets.BootstrapAdminEmail
	password := s.cfg.Secrets.BootstrapAdminPassword
	if email == "" || password == "" {
		return nil
	}

	n, err := s.userStore.Count()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return err
	}
	account, err := s.accountStore.Create("Bootstrap")
	if err != nil {
		return err
	}
	if _, err := s.userStore.Create(account.ID, email, hash, "admin"); err != nil {
		return err
	}
	if err := s.billingEngine.Provision(account.ID); err != nil {
		return err
	}
	s.logger.Info("bootstrap admin created", "email", email, "account_id", account.ID)
	return nil
}

// Router builds the immutable route table. Middleware order per route is
// fixed: rate limit, then session resolution, then route policy, so an
// over-limit or unauthenticated caller is rejected before any entitlement
// work runs. Route policy is one of public, session required, or admin
// required.
func (s *Server) Router() http.Handler {
	resolve := middleware.ResolveSession(s.sessionManager)
	limit := middleware.RateLimit(s.rateLimiter, middleware.RealIP, s.cfg.RateLimitPerMinute, time.Minute)

	// Session resolution runs on public routes too so pages can show
	// signed-in state; policy enforcement is separate and per route.
	public := func(h http.HandlerFunc) http.Handler {
		return resolve(h)
	}
	publicLimited := func(h http.HandlerFunc) http.Handler {
		return limit(resolve(h))
	}
	authed := func(h http.HandlerFunc) http.Handler {
		return resolve(middleware.RequireAuth(h))
	}
	authedLimited := func(h http.HandlerFunc) http.Handler {
		return limit(resolve(middleware.RequireAuth(h)))
	}
	admin := func(h http.HandlerFunc) http.Handler {
		return resolve(middleware.RequireAdmin(h))
	}

	mux := http.NewServeMux()

	// Public routes
	mux.Handle("GET /", public(s.dashboardH.LandingPage))
	mux.HandleFunc("GET /health", s.healthCheck)
	mux.Handle("GET /login", public(s.authH.LoginPage))
	mux.Handle("POST /login", publicLimited(s.authH.Login))
	mux.Handle("GET /signup", public(s.authH.SignupPage))
	mux.Handle("POST /signup", publicLimited(s.authH.Signup))

	// Session-gated routes
	mux.Handle("POST /logout", authed(s.authH.Logout))
	mux.Handle("GET /dashboard", authed(s.dashboardH.Dashboard))
	mux.Handle("GET /billing", authed(s.billingH.BillingPage))
	mux.Handle("GET /reports", authed(s.reportsH.ReportsPage))
	mux.Handle("POST /reports/generate", authedLimited(s.reportsH.Generate))

	// Admin routes
	mux.Handle("GET /admin/billing", admin(s.adminH.BillingPage))
	mux.Handle("POST /admin/billing/mark-paid", admin(s.adminH.MarkPaid))
	mux.Handle("GET /admin/accounts", admin(s.adminH.Accounts))

	// Recovery and request logging sit outermost: exactly one response
	// per request even when a handler fails.
	var h http.Handler = mux
	h = middleware.Recover(s.logger)(h)
	h = middleware.RequestLogger(s.logger)(h)
	return h
}

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
