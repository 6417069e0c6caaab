package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/unrolled/secure"

	"github.com/Dan9191/installment-service/internal/config"
	"github.com/Dan9191/installment-service/internal/metrics"
	"github.com/Dan9191/installment-service/internal/middleware"
	"github.com/Dan9191/installment-service/internal/service"
)

// NewRouter wires every route. Staff routes need a staff token; check-in
// needs a mobile token. m may be nil.
func NewRouter(h *Handler, cfg *config.Config, m *metrics.Metrics, logger *logrus.Logger) *mux.Router {
	secureMiddleware := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "no-referrer",
		ContentSecurityPolicy: "default-src 'none'",
	})

	r := mux.NewRouter()
	r.Use(middleware.RequestID(logger))
	r.Use(secureMiddleware.Handler)
	r.Use(m.Middleware)

	// Public routes
	login := loginLimiter(cfg)
	r.HandleFunc("/register", h.Register).Methods("POST")
	r.Handle("/login", login(http.HandlerFunc(h.Login))).Methods("POST")
	r.Handle("/mobile/login", login(http.HandlerFunc(h.MobileLogin))).Methods("POST")
	r.Handle("/metrics", m.Handler()).Methods("GET")

	// Mobile routes
	mobile := r.PathPrefix("/mobile").Subrouter()
	mobile.Use(middleware.AuthMiddleware(cfg, logger, service.AudienceMobile))
	mobile.HandleFunc("/checkin", h.CheckIn).Methods("POST")
	mobile.HandleFunc("/checkout", h.CheckOut).Methods("POST")

	// Staff routes
	staff := r.PathPrefix("/").Subrouter()
	staff.Use(middleware.AuthMiddleware(cfg, logger, service.AudienceStaff))
	staff.HandleFunc("/registrations/{id:[0-9]+}/schedule/preview", h.PreviewSchedule).Methods("GET")
	staff.HandleFunc("/registrations/{id:[0-9]+}/approve", h.ApproveRegistration).Methods("POST")
	staff.HandleFunc("/registrations/{id:[0-9]+}/schedule", h.GetSchedule).Methods("GET")
	staff.HandleFunc("/registrations/{id:[0-9]+}/schedule.xml", h.ExportSchedule).Methods("GET")
	staff.HandleFunc("/installments/split", h.Split).Methods("POST")
	staff.HandleFunc("/installments/{id:[0-9]+}/invoice", h.InvoiceInstallment).Methods("POST")
	staff.HandleFunc("/installments/{id:[0-9]+}/pay", h.PayInstallment).Methods("POST")
	staff.HandleFunc("/expenses", h.CreateExpense).Methods("POST")
	staff.HandleFunc("/expenses/{id:[0-9]+}/distribute", h.DistributeExpense).Methods("POST")
	staff.HandleFunc("/expenses/{id:[0-9]+}/totals", h.ExpenseTotals).Methods("GET")
	staff.HandleFunc("/expenses/{id:[0-9]+}/post", h.PostExpense).Methods("POST")
	staff.HandleFunc("/expenses/{id:[0-9]+}/cancel", h.CancelExpense).Methods("POST")
	staff.HandleFunc("/employees/{id:[0-9]+}/pin", h.SetPIN).Methods("POST")

	return r
}

// loginLimiter caps login attempts per client IP.
func loginLimiter(cfg *config.Config) func(http.Handler) http.Handler {
	if cfg.LoginRateLimit <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(cfg.LoginRateLimit, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP))
}
