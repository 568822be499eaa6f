package promo_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"ms-bookstore/internal/auth"
	"ms-bookstore/internal/logger"
	"ms-bookstore/internal/models"
	"ms-bookstore/internal/promo"
	promodb "ms-bookstore/internal/promo/db"
	"ms-bookstore/internal/utils"
)

type Handler struct {
	Promos *promodb.DB
	Logger *logger.Logger
}

func NewHandler(promos *promodb.DB, log *logger.Logger) *Handler {
	return &Handler{
		Promos: promos,
		Logger: log,
	}
}

func (h *Handler) writeError(w http.ResponseWriter, op string, err error) {
	var rejection *models.RejectionError
	if errors.As(err, &rejection) {
		h.Logger.Warn("API", fmt.Sprintf("%s rejected: %v", op, rejection))
		utils.WriteJSON(w, rejection.StatusCode(), utils.RejectionResponse(rejection.Reason, rejection.Message))
		return
	}
	h.Logger.Error("API", fmt.Sprintf("%s failed: %v", op, err))
	utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("internal error", "internal error"))
}

// Validate prices a code against a cart total without redeeming anything.
// The answer is advisory; checkout re-checks everything.
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	var req models.PromoValidationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("API", fmt.Sprintf("Validate: failed to decode request body: %v", err))
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", err.Error()))
		return
	}
	h.Logger.Info("API", fmt.Sprintf("Validate: code=%s cart=%.2f", req.Code, req.CartTotal))

	code, err := h.Promos.FindByCode(r.Context(), req.Code)
	if err != nil {
		h.writeError(w, "Validate", err)
		return
	}

	var userUsage int
	if code != nil {
		userUsage, err = h.Promos.CountUsage(r.Context(), code.PromoID, auth.UserID(r.Context()))
		if err != nil {
			h.writeError(w, "Validate", err)
			return
		}
	}

	result, rej := promo.Validate(code, userUsage, req.CartTotal, time.Now())
	if rej != nil {
		h.writeError(w, "Validate", rej)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("promo code valid", models.PromoValidationResponse{
		Code:        result.Code,
		Discount:    result.Discount,
		FinalAmount: result.FinalAmount,
	}))
}

// ---------------- ADMIN ----------------

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var pc models.PromoCode
	if err := json.NewDecoder(r.Body).Decode(&pc); err != nil {
		h.Logger.Error("API", fmt.Sprintf("Create: failed to decode request body: %v", err))
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", err.Error()))
		return
	}

	if rej := validatePromoRules(&pc); rej != nil {
		h.writeError(w, "Create", rej)
		return
	}

	if err := h.Promos.Create(r.Context(), &pc); err != nil {
		h.writeError(w, "Create", err)
		return
	}

	h.Logger.Info("API", fmt.Sprintf("Create: promo %s (%s) created", pc.Code, pc.PromoID))
	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("promo code created", pc))
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	promoID := chi.URLParam(r, "promoId")

	var pc models.PromoCode
	if err := json.NewDecoder(r.Body).Decode(&pc); err != nil {
		h.Logger.Error("API", fmt.Sprintf("Update: failed to decode request body: %v", err))
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", err.Error()))
		return
	}
	pc.PromoID = promoID

	if rej := validatePromoRules(&pc); rej != nil {
		h.writeError(w, "Update", rej)
		return
	}

	if err := h.Promos.Update(r.Context(), &pc); err != nil {
		h.writeError(w, "Update", err)
		return
	}

	h.Logger.Info("API", fmt.Sprintf("Update: promo %s updated", promoID))
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("promo code updated", pc))
}

func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	promoID := chi.URLParam(r, "promoId")
	h.Logger.Info("API", fmt.Sprintf("Deactivate: promoId=%s", promoID))

	if err := h.Promos.Deactivate(r.Context(), promoID); err != nil {
		h.writeError(w, "Deactivate", err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("promo code deactivated", nil))
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	codes, err := h.Promos.List(r.Context())
	if err != nil {
		h.writeError(w, "List", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("promo codes", codes))
}

func (h *Handler) UsageHistory(w http.ResponseWriter, r *http.Request) {
	promoID := chi.URLParam(r, "promoId")

	usages, err := h.Promos.UsageHistory(r.Context(), promoID)
	if err != nil {
		h.writeError(w, "UsageHistory", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("usage history", usages))
}

func validatePromoRules(pc *models.PromoCode) *models.RejectionError {
	if pc.Code == "" {
		return models.Reject(models.ReasonValidationFailed, "code is required")
	}
	if pc.DiscountType != models.DiscountPercent && pc.DiscountType != models.DiscountFlat {
		return models.Reject(models.ReasonValidationFailed, "discount_type must be PERCENT or FLAT")
	}
	if pc.DiscountValue <= 0 {
		return models.Reject(models.ReasonValidationFailed, "discount_value must be positive")
	}
	if pc.DiscountType == models.DiscountPercent && pc.DiscountValue > 100 {
		return models.Reject(models.ReasonValidationFailed, "percent discount cannot exceed 100")
	}
	if pc.UsageLimit <= 0 || pc.PerUserLimit <= 0 {
		return models.Reject(models.ReasonValidationFailed, "usage limits must be positive")
	}
	if pc.ExpiryDate.IsZero() {
		return models.Reject(models.ReasonValidationFailed, "expiry_date is required")
	}
	return nil
}
