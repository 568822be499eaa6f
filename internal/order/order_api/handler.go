package order_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-bookstore/internal/auth"
	"ms-bookstore/internal/logger"
	"ms-bookstore/internal/models"
	"ms-bookstore/internal/order"
	"ms-bookstore/internal/utils"
)

type Handler struct {
	OrderService *order.OrderService
	Logger       *logger.Logger
}

func NewHandler(orderService *order.OrderService, log *logger.Logger) *Handler {
	return &Handler{
		OrderService: orderService,
		Logger:       log,
	}
}

// writeServiceError maps a rejection to its status and reason code; anything
// else is an internal error and the detail stays in the logs.
func (h *Handler) writeServiceError(w http.ResponseWriter, op string, err error) {
	var rejection *models.RejectionError
	if errors.As(err, &rejection) {
		h.Logger.Warn("API", fmt.Sprintf("%s rejected: %v", op, rejection))
		utils.WriteJSON(w, rejection.StatusCode(), utils.RejectionResponse(rejection.Reason, rejection.Message))
		return
	}
	h.Logger.Error("API", fmt.Sprintf("%s failed: %v", op, err))
	utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("internal error", "internal error"))
}

// Checkout places an order for the authenticated user.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	h.Logger.Info("API", fmt.Sprintf("Checkout: user=%s", userID))

	var req models.CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("API", fmt.Sprintf("Checkout: failed to decode request body: %v", err))
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", err.Error()))
		return
	}

	resp, err := h.OrderService.Checkout(r.Context(), userID, auth.Email(r.Context()), req)
	if err != nil {
		h.writeServiceError(w, "Checkout", err)
		return
	}

	h.Logger.Info("API", fmt.Sprintf("Checkout: order %s created", resp.OrderID))
	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("order placed", resp))
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	h.Logger.Info("API", fmt.Sprintf("GetOrder: orderId=%s", orderID))

	orderData, err := h.OrderService.GetOrder(r.Context(), orderID, auth.UserID(r.Context()), auth.IsAdmin(r.Context()))
	if err != nil {
		h.writeServiceError(w, "GetOrder", err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("order", orderData))
}

// GetMyOrders lists the authenticated user's orders, newest first.
func (h *Handler) GetMyOrders(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	h.Logger.Info("API", fmt.Sprintf("GetMyOrders: user=%s", userID))

	orders, err := h.OrderService.GetMyOrders(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, "GetMyOrders", err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("orders", orders))
}

// CancelOrder cancels an unshipped order and returns its stock.
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	h.Logger.Info("API", fmt.Sprintf("CancelOrder: orderId=%s", orderID))

	err := h.OrderService.Cancel(r.Context(), orderID, auth.UserID(r.Context()), auth.IsAdmin(r.Context()))
	if err != nil {
		h.writeServiceError(w, "CancelOrder", err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("order cancelled", nil))
}

// UpdateStatus moves an order along the fulfilment lifecycle. Admin only.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	var req models.StatusTransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("API", fmt.Sprintf("UpdateStatus: failed to decode request body: %v", err))
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", err.Error()))
		return
	}
	h.Logger.Info("API", fmt.Sprintf("UpdateStatus: orderId=%s -> %s", orderID, req.Status))

	updated, err := h.OrderService.Transition(r.Context(), orderID, req.Status)
	if err != nil {
		h.writeServiceError(w, "UpdateStatus", err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("status updated", updated))
}
