package rest

import (
	"context"
	"net/http"
	"time"

	"gremio-backoffice/internal/domain"
	"gremio-backoffice/internal/service"
	"gremio-backoffice/internal/transport/auth"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type CreditOrders interface {
	PreviewSchedule(ctx context.Context, tenant domain.TenantID, in domain.ScheduleInput) (domain.Schedule, error)
	CreateOrder(ctx context.Context, tenant domain.TenantID, in service.CreateOrderInput) (*domain.CreditOrder, error)
	GetOrder(ctx context.Context, tenant domain.TenantID, id uuid.UUID) (*domain.CreditOrder, error)
	MaterializeNext(ctx context.Context, tenant domain.TenantID, orderID uuid.UUID) (*service.MaterializeResult, error)
	Materialize(ctx context.Context, tenant domain.TenantID, orderID uuid.UUID, number int) (*service.MaterializeResult, error)
	VoidOrder(ctx context.Context, tenant domain.TenantID, orderID uuid.UUID) (*domain.CreditOrder, error)
}

type CashSessions interface {
	OpenSession(ctx context.Context, tenant domain.TenantID, site string, operatorID int64) (*domain.CashSession, error)
	GetSession(ctx context.Context, tenant domain.TenantID, id uuid.UUID) (*domain.CashSession, error)
	RegisterCollection(ctx context.Context, tenant domain.TenantID, sessionID uuid.UUID, in service.CollectionInput) (*domain.Collection, error)
	PreviewClose(ctx context.Context, tenant domain.TenantID, sessionID uuid.UUID, declared []service.DeclaredLine) (domain.ReconcileResult, error)
	CloseSession(ctx context.Context, tenant domain.TenantID, sessionID uuid.UUID, declared []service.DeclaredLine) (*service.CloseResult, error)
}

type Novelties interface {
	ResolvePeriod(ctx context.Context, tenant domain.TenantID, eventDate time.Time) (service.PeriodResolution, error)
	SetCutoff(ctx context.Context, tenant domain.TenantID, period domain.Period, day int) error
	RegisterNovelty(ctx context.Context, tenant domain.TenantID, in service.NoveltyInput) (*domain.Novelty, error)
	ListByPeriod(ctx context.Context, tenant domain.TenantID, period domain.Period) ([]domain.Novelty, error)
}

type Reports interface {
	StartScheduleReport(ctx context.Context, tenant domain.TenantID, userID int64, orderID uuid.UUID) (service.ReportStatus, error)
	StartCloseReport(ctx context.Context, tenant domain.TenantID, userID int64, sessionID uuid.UUID) (service.ReportStatus, error)
	StartNoveltyReport(ctx context.Context, tenant domain.TenantID, userID int64, period domain.Period) (service.ReportStatus, error)
	GetReports(ctx context.Context, tenant domain.TenantID, userID int64) ([]service.ReportView, error)
	GetReport(ctx context.Context, tenant domain.TenantID, userID int64, id string) (service.ReportView, error)
}

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

type Handler struct {
	credit       CreditOrders
	cash         CashSessions
	novelties    Novelties
	reports      Reports
	health       map[string]HealthCheck
	tenantHeader string
	log          *zap.Logger
}

type Services struct {
	Credit    CreditOrders
	Cash      CashSessions
	Novelties Novelties
	Reports   Reports
}

func NewHandler(s Services, health map[string]HealthCheck, tenantHeader string, log *zap.Logger) *Handler {
	if tenantHeader == "" {
		tenantHeader = auth.DefaultTenantHeader
	}
	return &Handler{
		credit:       s.Credit,
		cash:         s.Cash,
		novelties:    s.Novelties,
		reports:      s.Reports,
		health:       health,
		tenantHeader: tenantHeader,
		log:          log,
	}
}

// InitRouter builds the API router. authMiddleware authenticates the caller; the tenant is then
// resolved from the tenant header for every /api route.
func (h *Handler) InitRouter(authMiddleware func(http.Handler) http.Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		RequestLogger(h.log, h.tenantHeader),
		middleware.Recoverer,
		middleware.Timeout(60*time.Second),
	)

	r.Get("/health", h.healthCheck)

	r.Route("/api", func(r chi.Router) {
		if authMiddleware != nil {
			r.Use(authMiddleware)
		}
		r.Use(auth.TenantMiddleware(h.tenantHeader))

		r.Route("/credit-orders", func(r chi.Router) {
			r.Post("/preview", h.previewSchedule)
			r.Post("/", h.createOrder)
			r.Get("/{id}", h.getOrder)
			r.Post("/{id}/materialize", h.materializeNext)
			r.Post("/{id}/installments/{number}/materialize", h.materializeInstallment)
			r.Post("/{id}/void", h.voidOrder)
		})

		r.Route("/cash-sessions", func(r chi.Router) {
			r.Post("/", h.openSession)
			r.Get("/{id}", h.getSession)
			r.Post("/{id}/collections", h.registerCollection)
			r.Post("/{id}/close/preview", h.previewClose)
			r.Post("/{id}/close", h.closeSession)
		})

		r.Route("/novelties", func(r chi.Router) {
			r.Get("/", h.listNovelties)
			r.Post("/", h.registerNovelty)
			r.Get("/period", h.resolvePeriod)
			r.Put("/cutoffs/{period}", h.setCutoff)
		})

		r.Route("/reports", func(r chi.Router) {
			r.Get("/", h.listReports)
			r.Get("/{report_id}", h.getReport)
			r.Post("/credit-orders/{id}/schedule", h.reportSchedule)
			r.Post("/cash-sessions/{id}/close", h.reportClose)
			r.Post("/novelties", h.reportNovelties)
		})
	})

	return r
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status := make(map[string]string, len(h.health))
	healthy := true
	for name, check := range h.health {
		if err := check(ctx); err != nil {
			h.log.Warn("health check failed", zap.String("dependency", name), zap.Error(err))
			status[name] = "down"
			healthy = false
			continue
		}
		status[name] = "up"
	}

	if !healthy {
		Response(w, "degraded", status, 503, "error", http.StatusServiceUnavailable)
		return
	}
	Success(w, "ok", status)
}

// tenantOf reads the tenant resolved by the tenant middleware.
func tenantOf(w http.ResponseWriter, r *http.Request) (domain.TenantID, bool) {
	tenant, err := auth.GetTenant(r.Context())
	if err != nil {
		WriteError(w, r, err)
		return "", false
	}
	return tenant, true
}

func callerOf(w http.ResponseWriter, r *http.Request) (domain.TenantID, int64, bool) {
	tenant, ok := tenantOf(w, r)
	if !ok {
		return "", 0, false
	}
	userID, err := auth.GetUserID(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return "", 0, false
	}
	return tenant, userID, true
}
