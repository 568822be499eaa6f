package order_api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-bookstore/internal/auth"
	"ms-bookstore/internal/logger"
	"ms-bookstore/internal/models"
	"ms-bookstore/internal/payment"
	"ms-bookstore/internal/utils"
)

// PaymentHandler exposes the payment session and verification endpoints.
type PaymentHandler struct {
	Payments *payment.Service
	Logger   *logger.Logger
}

func NewPaymentHandler(payments *payment.Service, log *logger.Logger) *PaymentHandler {
	return &PaymentHandler{
		Payments: payments,
		Logger:   log,
	}
}

// CreateSession opens a gateway session for an unpaid online order.
func (h *PaymentHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	h.Logger.Info("API", fmt.Sprintf("CreateSession: orderId=%s", orderID))

	session, err := h.Payments.CreateSession(r.Context(), orderID, auth.UserID(r.Context()), auth.IsAdmin(r.Context()))
	if err != nil {
		writePaymentError(w, h.Logger, "CreateSession", err)
		return
	}

	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("payment session created", session))
}

// VerifyCallback validates the gateway callback signature and settles the
// order. Safe to replay; the duplicate just returns the settled order.
func (h *PaymentHandler) VerifyCallback(w http.ResponseWriter, r *http.Request) {
	var cb models.PaymentCallback
	if err := json.NewDecoder(r.Body).Decode(&cb); err != nil {
		h.Logger.Error("API", fmt.Sprintf("VerifyCallback: failed to decode request body: %v", err))
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", err.Error()))
		return
	}
	h.Logger.Info("API", fmt.Sprintf("VerifyCallback: orderId=%s payment=%s", cb.OrderID, cb.PaymentID))

	order, err := h.Payments.VerifyCallback(r.Context(), cb)
	if err != nil {
		writePaymentError(w, h.Logger, "VerifyCallback", err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("payment verified", order))
}

func writePaymentError(w http.ResponseWriter, log *logger.Logger, op string, err error) {
	if rejection, ok := err.(*models.RejectionError); ok {
		log.Warn("API", fmt.Sprintf("%s rejected: %v", op, rejection))
		utils.WriteJSON(w, rejection.StatusCode(), utils.RejectionResponse(rejection.Reason, rejection.Message))
		return
	}
	log.Error("API", fmt.Sprintf("%s failed: %v", op, err))
	utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("internal error", "internal error"))
}
