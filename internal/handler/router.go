// Package handler exposes the banking services over HTTP. Handlers stay
// thin: decode, call the service, map errors. All business rules live in
// the service and domain layers.
package handler

import (
	"net/http"
	"time"

	"github.com/corebank-io/corebank-go/internal/infra/observability"
	"github.com/corebank-io/corebank-go/internal/port"
	"github.com/corebank-io/corebank-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// Services bundles the service-layer dependencies for the router.
type Services struct {
	Accounts  *service.AccountService
	Transfers *service.TransferService
	Loans     *service.LoanService
	Savings   *service.SavingsService
	Accrual   *service.AccrualService
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(svcs Services, store port.Store, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(store))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		// Accounts
		r.Post("/accounts", createAccountHandler(svcs.Accounts, logger))
		r.Get("/accounts/{accountId}", getAccountHandler(svcs.Accounts, logger))
		r.Get("/accounts/{accountId}/transactions", listTransactionsHandler(svcs.Accounts, logger))
		r.Post("/accounts/{accountId}/deposit", depositHandler(svcs.Accounts, logger))
		r.Post("/accounts/{accountId}/withdraw", withdrawHandler(svcs.Accounts, logger))
		r.Post("/accounts/{accountId}/freeze", freezeHandler(svcs.Accounts, logger))
		r.Post("/accounts/{accountId}/unfreeze", unfreezeHandler(svcs.Accounts, logger))
		r.Post("/accounts/{accountId}/close", closeAccountHandler(svcs.Accounts, logger))
		r.Get("/users/{userId}/accounts", listAccountsHandler(svcs.Accounts, logger))

		// Transfers
		r.Post("/transfers", transferHandler(svcs.Transfers, logger))

		// Loans
		r.Post("/loans/applications", loanApplyHandler(svcs.Loans, logger))
		r.Get("/loans/applications/{applicationId}", getLoanApplicationHandler(svcs.Loans, logger))
		r.Get("/loans/applications/{applicationId}/schedule", loanScheduleHandler(svcs.Loans, logger))
		r.Post("/loans/applications/{applicationId}/approve", loanApproveHandler(svcs.Loans, logger))
		r.Post("/loans/applications/{applicationId}/reject", loanRejectHandler(svcs.Loans, logger))
		r.Post("/loans/repayments/{repaymentId}/pay", loanPayHandler(svcs.Loans, logger))
		r.Get("/users/{userId}/loans", listLoanApplicationsHandler(svcs.Loans, logger))

		// Savings plans
		r.Post("/savings/fixed-deposits", openFixedDepositHandler(svcs.Savings, logger))
		r.Post("/savings/recurring-deposits", openRecurringDepositHandler(svcs.Savings, logger))
		r.Get("/savings/plans/{planId}", getSavingsPlanHandler(svcs.Savings, logger))
		r.Post("/savings/plans/{planId}/close", closeSavingsPlanHandler(svcs.Savings, logger))
		r.Get("/users/{userId}/savings", listSavingsPlansHandler(svcs.Savings, logger))

		// Batch jobs
		r.Post("/jobs/interest-run", interestRunHandler(svcs.Accrual, logger))
		r.Get("/metrics/accrual", accrualMetricsHandler(metrics))
	})

	return r
}

func healthzHandler(store port.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "healthy"
		code := http.StatusOK
		if err := store.Ping(r.Context()); err != nil {
			status = "unhealthy"
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, map[string]string{"status": status})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

// interestRunHandler triggers the accrual job on demand, outside the
// monthly schedule. The job is idempotent within a month.
func interestRunHandler(accrual *service.AccrualService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/jobs/interest-run")
		defer span.End()

		report, err := accrual.RunMonthlyInterestJob(ctx, time.Now().UTC())
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}

func accrualMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.GetAccrualSnapshot())
	}
}
