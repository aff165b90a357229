package handlers

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/ruralpay/pointledger/internal/models"
	"github.com/ruralpay/pointledger/internal/services"
)

type PointHandler struct {
	service   *services.PointService
	validator *services.ValidationHelper
}

func NewPointHandler(service *services.PointService) *PointHandler {
	return &PointHandler{
		service:   service,
		validator: services.NewValidationHelper(),
	}
}

type amountRequest struct {
	Amount int64 `json:"amount" validate:"required,gt=0"`
}

// Routes mounts the point endpoints on r.
func (h *PointHandler) Routes(r chi.Router) {
	r.Route("/point/{id}", func(r chi.Router) {
		r.Get("/", h.GetPoint)
		r.Get("/histories", h.GetHistories)
		r.Patch("/charge", h.Charge)
		r.Patch("/use", h.Use)
	})
}

// GetPoint returns the balance of an account
// @Summary Get point balance
// @Tags Point
// @Produce json
// @Param id path int true "Account ID"
// @Success 200 {object} models.AccountPoint
// @Failure 400 {object} services.ErrorResponse
// @Router /point/{id} [get]
func (h *PointHandler) GetPoint(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}

	p, err := h.service.Point(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, p)
}

// GetHistories returns the charge and use history of an account
// @Summary List point histories
// @Tags Point
// @Produce json
// @Param id path int true "Account ID"
// @Success 200 {array} models.PointHistory
// @Failure 400 {object} services.ErrorResponse
// @Router /point/{id}/histories [get]
func (h *PointHandler) GetHistories(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}

	histories, err := h.service.Histories(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, histories)
}

// Charge adds points to an account
// @Summary Charge points
// @Tags Point
// @Accept json
// @Produce json
// @Param id path int true "Account ID"
// @Param request body object{amount=int64} true "Charge request"
// @Success 200 {object} models.AccountPoint
// @Failure 400 {object} services.ErrorResponse
// @Failure 500 {object} services.ErrorResponse
// @Router /point/{id}/charge [patch]
func (h *PointHandler) Charge(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, models.TransactionTypeCharge)
}

// Use spends points from an account
// @Summary Use points
// @Tags Point
// @Accept json
// @Produce json
// @Param id path int true "Account ID"
// @Param request body object{amount=int64} true "Use request"
// @Success 200 {object} models.AccountPoint
// @Failure 400 {object} services.ErrorResponse
// @Failure 500 {object} services.ErrorResponse
// @Router /point/{id}/use [patch]
func (h *PointHandler) Use(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, models.TransactionTypeUse)
}

func (h *PointHandler) mutate(w http.ResponseWriter, r *http.Request, txType models.TransactionType) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}

	var req amountRequest

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		services.SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	var (
		p   *models.AccountPoint
		err error
	)
	if txType == models.TransactionTypeCharge {
		p, err = h.service.Charge(r.Context(), id, req.Amount)
	} else {
		p, err = h.service.Use(r.Context(), id, req.Amount)
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, p)
}

func accountID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		services.SendErrorResponse(w, "Invalid account id", http.StatusBadRequest, nil)
		return 0, false
	}
	return id, true
}

// writeServiceError maps balance rule violations to 400 and everything else to 500.
func writeServiceError(w http.ResponseWriter, err error) {
	if models.IsBalanceError(err) {
		services.SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}
	log.Printf("[PointHandler] request failed: %v", err)
	services.SendErrorResponse(w, "internal server error", http.StatusInternalServerError, nil)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[PointHandler] failed to encode response: %v", err)
	}
}
