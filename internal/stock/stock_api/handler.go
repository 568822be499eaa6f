package stock_api

import (
	"fmt"
	"net/http"
	"strconv"

	"ms-bookstore/internal/logger"
	"ms-bookstore/internal/stock"
	"ms-bookstore/internal/utils"
)

// Handler exposes the back-office stock report.
type Handler struct {
	Ledger           *stock.Ledger
	Logger           *logger.Logger
	DefaultThreshold int
}

func NewHandler(ledger *stock.Ledger, log *logger.Logger, defaultThreshold int) *Handler {
	return &Handler{
		Ledger:           ledger,
		Logger:           log,
		DefaultThreshold: defaultThreshold,
	}
}

// LowStock lists books at or below the threshold, including the sold-out ones.
func (h *Handler) LowStock(w http.ResponseWriter, r *http.Request) {
	threshold := h.DefaultThreshold
	if raw := r.URL.Query().Get("threshold"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid threshold", raw))
			return
		}
		threshold = parsed
	}
	h.Logger.Info("API", fmt.Sprintf("LowStock: threshold=%d", threshold))

	books, err := h.Ledger.LowStock(r.Context(), threshold)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("LowStock failed: %v", err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("internal error", "internal error"))
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("low stock report", books))
}
