package handlers

import (
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"

	"microlearn-backend/internal/middleware"
	"microlearn-backend/internal/models"
	"microlearn-backend/internal/repository"
	"microlearn-backend/internal/services"
)

type SubscriptionHandler struct {
	userRepo *repository.UserRepo
	quota    *services.QuotaService
}

func NewSubscriptionHandler(userRepo *repository.UserRepo, quota *services.QuotaService) *SubscriptionHandler {
	return &SubscriptionHandler{userRepo: userRepo, quota: quota}
}

// Status reports the caller's plan and today's upload quota usage.
func (h *SubscriptionHandler) Status(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	user, err := h.userRepo.GetByID(r.Context(), userID)
	if err != nil {
		if err == pgx.ErrNoRows {
			writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "User not found", r))
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load user", r))
		return
	}

	_, used, err := h.quota.Allow(r.Context(), userID, user.Plan)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to read quota", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"plan": user.Plan,
		"quota": map[string]interface{}{
			"used":      used,
			"limit":     h.quota.Limit(),
			"unlimited": user.Plan == models.PlanPremium,
		},
	})
}

// Upgrade simulates a successful payment and switches the account to the
// premium plan. There is no payment provider behind this endpoint.
func (h *SubscriptionHandler) Upgrade(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	user, err := h.userRepo.GetByID(r.Context(), userID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load user", r))
		return
	}

	if user.Plan == models.PlanPremium {
		writeJSON(w, http.StatusConflict, errorResp("CONFLICT", "Account is already premium", r))
		return
	}

	if err := h.userRepo.UpdatePlan(r.Context(), userID, models.PlanPremium); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to upgrade plan", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"plan":       models.PlanPremium,
		"upgraded_at": time.Now().UTC(),
		"message":    "Upgrade successful. Log in again to refresh your access token.",
	})
}
