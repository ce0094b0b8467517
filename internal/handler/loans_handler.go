package handler

import (
	"encoding/json"
	"net/http"

	"github.com/corebank-io/corebank-go/internal/domain"
	"github.com/corebank-io/corebank-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

func loanApplyHandler(svc *service.LoanService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/loans/applications")
		defer span.End()

		var req domain.LoanApplicationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		app, err := svc.Apply(ctx, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, app)
	}
}

func getLoanApplicationHandler(svc *service.LoanService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/loans/applications/{applicationId}")
		defer span.End()

		app, err := svc.GetApplication(ctx, chi.URLParam(r, "applicationId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, app)
	}
}

func listLoanApplicationsHandler(svc *service.LoanService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/users/{userId}/loans")
		defer span.End()

		apps, err := svc.ListApplications(ctx, chi.URLParam(r, "userId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"applications": apps})
	}
}

func loanApproveHandler(svc *service.LoanService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/loans/applications/{applicationId}/approve")
		defer span.End()

		applicationID := chi.URLParam(r, "applicationId")
		span.SetAttributes(attribute.String("application.id", applicationID))

		var req struct {
			DecidedBy    string          `json:"decided_by"`
			InterestRate decimal.Decimal `json:"interest_rate"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		app, err := svc.Approve(ctx, applicationID, req.DecidedBy, req.InterestRate)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, app)
	}
}

func loanRejectHandler(svc *service.LoanService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/loans/applications/{applicationId}/reject")
		defer span.End()

		applicationID := chi.URLParam(r, "applicationId")

		var req struct {
			DecidedBy string `json:"decided_by"`
			Reason    string `json:"reason,omitempty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		app, err := svc.Reject(ctx, applicationID, req.DecidedBy, req.Reason)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, app)
	}
}

func loanScheduleHandler(svc *service.LoanService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/loans/applications/{applicationId}/schedule")
		defer span.End()

		schedule, err := svc.GetRepaymentSchedule(ctx, chi.URLParam(r, "applicationId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"repayments": schedule})
	}
}

func loanPayHandler(svc *service.LoanService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/loans/repayments/{repaymentId}/pay")
		defer span.End()

		repaymentID := chi.URLParam(r, "repaymentId")
		span.SetAttributes(attribute.String("repayment.id", repaymentID))

		var req struct {
			FromAccountID string `json:"from_account_id"`
			UserID        string `json:"user_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		result, err := svc.PayRepayment(ctx, repaymentID, req.FromAccountID, req.UserID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}
