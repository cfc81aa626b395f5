package sales

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/tillworks/tillworks/internal/platform/httpx"
	"github.com/tillworks/tillworks/internal/shared"
)

// Handler exposes the sale workflow over HTTP.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	approver  *shared.ApproverVerifier
	validator *validator.Validate
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service, approver *shared.ApproverVerifier) *Handler {
	return &Handler{logger: logger, service: service, approver: approver, validator: validator.New()}
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateSaleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	input := CreateInput{
		LocationID:     req.LocationID,
		ShiftID:        req.ShiftID,
		CustomerID:     req.CustomerID,
		ActorID:        shared.ActorFromContext(r.Context()),
		DiscountAmount: req.DiscountAmount,
		DiscountReason: req.DiscountReason,
		TaxAmount:      req.TaxAmount,
		Notes:          req.Notes,
		ParkedSaleID:   req.ParkedSaleID,
	}
	for _, item := range req.Items {
		input.Items = append(input.Items, ItemInput(item))
	}
	for _, p := range req.Payments {
		input.Payments = append(input.Payments, PaymentInput(p))
	}

	result, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.respondErr(w, "create sale", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"sale_id":      result.SaleID,
		"sale_number":  result.SaleNumber,
		"total_amount": result.TotalAmount,
	})
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid sale id")
		return
	}
	sale, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondErr(w, "get sale", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toSaleResponse(sale))
}

func (h *Handler) Void(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid sale id")
		return
	}
	var req VoidSaleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	sale, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondErr(w, "get sale", err)
		return
	}

	approverID, err := h.approver.Verify(r.Context(), sale.LocationID, req.ApproverPIN)
	if err != nil {
		if errors.Is(err, shared.ErrApproverDenied) {
			httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrForbidden, err))
			return
		}
		h.logger.Error("verify approver", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	if err := h.service.Void(r.Context(), id, approverID, req.Reason); err != nil {
		h.respondErr(w, "void sale", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"sale_id": id, "status": string(StatusVoided)})
}

func (h *Handler) Park(w http.ResponseWriter, r *http.Request) {
	var req ParkSaleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input := ParkInput{
		LocationID: req.LocationID,
		ShiftID:    req.ShiftID,
		CustomerID: req.CustomerID,
		ActorID:    shared.ActorFromContext(r.Context()),
		Notes:      req.Notes,
	}
	for _, item := range req.Items {
		input.Items = append(input.Items, ItemInput(item))
	}
	parkedID, err := h.service.Park(r.Context(), input)
	if err != nil {
		h.respondErr(w, "park sale", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"sale_id": parkedID, "status": string(StatusParked)})
}

func (h *Handler) ListParked(w http.ResponseWriter, r *http.Request) {
	locationID, err := strconv.ParseInt(r.URL.Query().Get("location_id"), 10, 64)
	if err != nil || locationID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "location_id is required")
		return
	}
	parked, err := h.service.ListParked(r.Context(), locationID)
	if err != nil {
		h.respondErr(w, "list parked sales", err)
		return
	}
	out := make([]SaleResponse, 0, len(parked))
	for i := range parked {
		out = append(out, toSaleResponse(&parked[i]))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) RetrieveParked(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid sale id")
		return
	}
	sale, err := h.service.RetrieveParked(r.Context(), id)
	if err != nil {
		h.respondErr(w, "retrieve parked sale", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toSaleResponse(sale))
}

func (h *Handler) DeleteParked(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid sale id")
		return
	}
	if err := h.service.DeleteParked(r.Context(), id); err != nil {
		h.respondErr(w, "delete parked sale", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondErr(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrSaleNotFound):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrNotFound, err))
	case errors.Is(err, ErrCannotVoid), errors.Is(err, ErrNotParked):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrConflict, err))
	case errors.Is(err, ErrApproverRequired):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrForbidden, err))
	case errors.Is(err, ErrEmptyItems), errors.Is(err, ErrInvalidItem),
		errors.Is(err, ErrNoPayments), errors.Is(err, ErrInsufficientPayment),
		errors.Is(err, ErrInvalidDiscount):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err))
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
