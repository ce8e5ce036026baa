package server

import (
	"crypto/tls"
	"database/sql"
	"net/http"
	"strings"
	"time"

	"github.com/gerenciause-netizen/smart-trader/src/audit"
	"github.com/gerenciause-netizen/smart-trader/src/config"
	"github.com/gerenciause-netizen/smart-trader/src/handlers"
	"github.com/gerenciause-netizen/smart-trader/src/logger"
	"github.com/gerenciause-netizen/smart-trader/src/processors"
	"github.com/gerenciause-netizen/smart-trader/src/security"
	"github.com/gerenciause-netizen/smart-trader/src/services"
	"github.com/gerenciause-netizen/smart-trader/src/storage"
	"github.com/gerenciause-netizen/smart-trader/src/utils"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"
)

// Deps are the process-wide resources the router is built from.
type Deps struct {
	DB    *sql.DB
	Store storage.ObjectStore
	Email services.EmailService
	// AI may be nil; the AI endpoints then answer 503.
	AI     services.AIService
	Images audit.ImageLoader
	Events *services.SessionEvents
	Clock  services.Clock
}

func proxyHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Forwarded-Proto") == "https" {
			r.URL.Scheme = "https"
			r.TLS = &tls.ConnectionState{}
		}
		next.ServeHTTP(w, r)
	})
}

func rateLimitMiddleware(limiter *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				logger.FromContext(r.Context()).Warn("Rate limit exceeded", "path", r.URL.Path)
				utils.SendJSONError(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if allowed[origin] {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE, PATCH")
				w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, X-Requested-With, X-Account, Cookie, If-None-Match")
				w.Header().Set("Access-Control-Expose-Headers", "X-CSRF-Token, ETag, X-Request-ID")
				w.Header().Add("Vary", "Origin")
			} else if origin == "" {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// NewRouter wires services and handlers into the HTTP API.
func NewRouter(cfg *config.AppConfig, deps Deps) http.Handler {
	db := deps.DB
	events := deps.Events
	if events == nil {
		events = services.NewSessionEvents()
	}
	images := deps.Images
	if images == nil {
		images = services.NewCachedImageLoader(deps.Store)
	}

	authService := security.NewAuthService(cfg.JWTSecret)
	transactions := services.NewTransactionService(db)
	balances := services.NewBalanceService(db, cfg.DefaultDemoCash)
	imports := services.NewImportService(transactions, balances, deps.Clock)
	dashboards := services.NewDashboardService(transactions, balances, processors.NewTradeConsolidator())
	calendars := services.NewCalendarService(db, deps.Store, deps.Clock)
	strategies := services.NewStrategyService(db, deps.Store, images, deps.Clock)
	charts := services.NewChartService(db, deps.Store, deps.AI, images, calendars, strategies, deps.Clock)
	workspace := services.NewWorkspaceService(db)
	accounts := services.NewAccountService(db, deps.Store)
	aiLimiter := handlers.DefaultAILimiter()

	userHandler := handlers.NewUserHandler(db, authService, deps.Email, services.NewMFAService(), workspace, accounts, events)
	userHandler.InitializeGoogleOAuthConfig(cfg)
	importHandler := handlers.NewImportHandler(imports)
	txHandler := handlers.NewTransactionHandler(transactions, charts)
	dashboardHandler := handlers.NewDashboardHandler(dashboards, balances)
	analysisHandler := handlers.NewAnalysisHandler(charts, calendars, aiLimiter)
	strategyHandler := handlers.NewStrategyHandler(strategies)
	insightHandler := handlers.NewInsightHandler(transactions, deps.AI, aiLimiter)

	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(handlers.ContextualLoggerMiddleware)
	r.Use(proxyHeadersMiddleware)
	r.Use(corsMiddleware(cfg.AllowedOrigins))
	r.Use(rateLimitMiddleware(rate.NewLimiter(rate.Every(100*time.Millisecond), 30)))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		utils.WriteJSON(w, http.StatusOK, map[string]string{"message": "Smart Trader backend is running"})
	})
	r.Handle("/storage/"+storage.ChartImagesBucket+"/*", deps.Store.Handler())

	r.Route("/api", func(r chi.Router) {
		// Public
		r.Group(func(r chi.Router) {
			r.Get("/auth/csrf", handlers.CSRFTokenHandler(cfg.CSRFAuthKey))
			r.Get("/auth/verify-email", userHandler.VerifyEmailHandler)
			r.Get("/auth/google/login", userHandler.HandleGoogleLogin)
			r.Get("/auth/google/callback", userHandler.HandleGoogleCallback)
		})

		// Auth flows, CSRF protected
		r.Group(func(r chi.Router) {
			r.Use(handlers.CSRFMiddleware(cfg.CSRFAuthKey))
			r.Post("/auth/login", userHandler.LoginUserHandler)
			r.Post("/auth/login/mfa", userHandler.LoginMFAHandler)
			r.Post("/auth/register", userHandler.RegisterUserHandler)
			r.Post("/auth/refresh", userHandler.RefreshTokenHandler)
			r.With(userHandler.AuthMiddleware).Post("/auth/logout", userHandler.LogoutUserHandler)
			r.Post("/auth/request-password-reset", userHandler.RequestPasswordResetHandler)
			r.Post("/auth/reset-password", userHandler.ResetPasswordHandler)
		})

		// Authenticated
		r.Group(func(r chi.Router) {
			r.Use(handlers.CSRFMiddleware(cfg.CSRFAuthKey))
			r.Use(userHandler.AuthMiddleware)

			r.Get("/auth/me", userHandler.HandleGetCurrentUser)
			r.Get("/auth/events", userHandler.HandleSessionEvents)
			r.Post("/auth/mfa/setup", userHandler.HandleSetupMFA)
			r.Post("/auth/mfa/activate", userHandler.HandleActivateMFA)
			r.Post("/auth/mfa/disable", userHandler.HandleDisableMFA)
			r.Post("/user/change-password", userHandler.ChangePasswordHandler)
			r.Delete("/user/account", userHandler.DeleteAccountHandler)

			r.Get("/workspace/account", userHandler.HandleGetWorkspace)
			r.Put("/workspace/account", userHandler.HandleSetWorkspace)

			r.Get("/strategies", strategyHandler.ListStrategies)
			r.Post("/strategies", strategyHandler.CreateStrategy)
			r.Delete("/strategies/{id}", strategyHandler.DeleteStrategy)

			r.Get("/calendar/today", analysisHandler.HandleGetTodayCalendar)
			r.Put("/calendar/today", analysisHandler.HandleSetTodayCalendar)

			// Partition-scoped
			r.Group(func(r chi.Router) {
				r.Use(userHandler.AccountMiddleware)

				r.Get("/transactions", txHandler.HandleListTransactions)
				r.Post("/transactions/import", importHandler.HandleImport)
				r.Patch("/transactions/{id}", txHandler.HandleUpdateTransaction)
				r.Delete("/transactions/{id}", txHandler.HandleDeleteTransaction)

				r.Get("/trades", dashboardHandler.HandleGetTrades)
				r.Put("/trades/{symbol}/strategy", txHandler.HandleSetTradeStrategy)
				r.Put("/trades/{symbol}/analysis", txHandler.HandleLinkAnalysis)
				r.Post("/trades/{symbol}/evidence", txHandler.HandleUploadTradeEvidence)

				r.Get("/balance", dashboardHandler.HandleGetBalance)
				r.Put("/balance", dashboardHandler.HandleSetBalance)
				r.Get("/dashboard", dashboardHandler.HandleGetDashboard)

				r.Post("/insights/performance", insightHandler.HandlePerformanceInsight)

				r.Get("/analyses", analysisHandler.HandleListAnalyses)
				r.Post("/analyses", analysisHandler.HandleAnalyzeChart)
				r.Get("/analyses/{id}", analysisHandler.HandleGetAnalysis)
				r.Delete("/analyses/{id}", analysisHandler.HandleDeleteAnalysis)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			utils.SendJSONError(w, "Not found", http.StatusNotFound)
			return
		}
		http.NotFound(w, r)
	})

	return r
}

// NewHTTPServer applies the server timeouts. Chart audits wait on the model,
// so the write timeout is longer than a plain CRUD API needs.
func NewHTTPServer(cfg *config.AppConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
}
