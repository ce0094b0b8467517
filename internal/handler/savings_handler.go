package handler

import (
	"encoding/json"
	"net/http"

	"github.com/corebank-io/corebank-go/internal/domain"
	"github.com/corebank-io/corebank-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

func openFixedDepositHandler(svc *service.SavingsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/savings/fixed-deposits")
		defer span.End()

		var req domain.OpenFixedDepositRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		span.SetAttributes(attribute.String("account.id", req.SourceAccountID))

		plan, err := svc.OpenFixedDeposit(ctx, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, plan)
	}
}

func openRecurringDepositHandler(svc *service.SavingsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/savings/recurring-deposits")
		defer span.End()

		var req domain.OpenRecurringDepositRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		span.SetAttributes(attribute.String("account.id", req.SourceAccountID))

		plan, err := svc.OpenRecurringDeposit(ctx, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, plan)
	}
}

func getSavingsPlanHandler(svc *service.SavingsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/savings/plans/{planId}")
		defer span.End()

		plan, err := svc.GetPlan(ctx, chi.URLParam(r, "planId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, plan)
	}
}

func listSavingsPlansHandler(svc *service.SavingsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/users/{userId}/savings")
		defer span.End()

		plans, err := svc.ListPlans(ctx, chi.URLParam(r, "userId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"plans": plans})
	}
}

func closeSavingsPlanHandler(svc *service.SavingsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/savings/plans/{planId}/close")
		defer span.End()

		planID := chi.URLParam(r, "planId")
		span.SetAttributes(attribute.String("plan.id", planID))

		var req struct {
			UserID string `json:"user_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		plan, err := svc.ClosePlan(ctx, planID, req.UserID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, plan)
	}
}
