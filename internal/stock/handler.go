package stock

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/tillworks/tillworks/internal/platform/httpx"
	"github.com/tillworks/tillworks/internal/shared"
)

// Handler exposes the stock ledger over HTTP.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

func (h *Handler) Adjust(w http.ResponseWriter, r *http.Request) {
	var req AdjustRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	movement, err := h.service.Adjust(r.Context(), AdjustInput{
		VariantID:  req.VariantID,
		LocationID: req.LocationID,
		Delta:      req.Delta,
		ActorID:    shared.ActorFromContext(r.Context()),
		Notes:      req.Notes,
	})
	if err != nil {
		h.respondErr(w, "adjust stock", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toMovementResponse(movement))
}

func (h *Handler) Receive(w http.ResponseWriter, r *http.Request) {
	var req ReceiveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	movement, err := h.service.Receive(r.Context(), ReceiveInput{
		VariantID:  req.VariantID,
		LocationID: req.LocationID,
		Quantity:   req.Quantity,
		ActorID:    shared.ActorFromContext(r.Context()),
		Notes:      req.Notes,
	})
	if err != nil {
		h.respondErr(w, "receive stock", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toMovementResponse(movement))
}

func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	out, in, err := h.service.Transfer(r.Context(), TransferInput{
		VariantID:    req.VariantID,
		FromLocation: req.FromLocation,
		ToLocation:   req.ToLocation,
		Quantity:     req.Quantity,
		ActorID:      shared.ActorFromContext(r.Context()),
		Notes:        req.Notes,
	})
	if err != nil {
		h.respondErr(w, "transfer stock", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"out": toMovementResponse(out),
		"in":  toMovementResponse(in),
	})
}

func (h *Handler) Availability(w http.ResponseWriter, r *http.Request) {
	variantID, err1 := strconv.ParseInt(r.URL.Query().Get("variant_id"), 10, 64)
	locationID, err2 := strconv.ParseInt(r.URL.Query().Get("location_id"), 10, 64)
	if err1 != nil || err2 != nil || variantID <= 0 || locationID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "variant_id and location_id are required")
		return
	}
	availability, err := h.service.Availability(r.Context(), variantID, locationID)
	if err != nil {
		h.respondErr(w, "check availability", err)
		return
	}
	httpx.JSON(w, http.StatusOK, availability)
}

func (h *Handler) Movements(w http.ResponseWriter, r *http.Request) {
	variantID, err1 := strconv.ParseInt(r.URL.Query().Get("variant_id"), 10, 64)
	locationID, err2 := strconv.ParseInt(r.URL.Query().Get("location_id"), 10, 64)
	if err1 != nil || err2 != nil || variantID <= 0 || locationID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "variant_id and location_id are required")
		return
	}
	filter := MovementFilter{VariantID: variantID, LocationID: locationID}
	if from := r.URL.Query().Get("from"); from != "" {
		if t, err := time.Parse("2006-01-02", from); err == nil {
			filter.From = t
		}
	}
	if to := r.URL.Query().Get("to"); to != "" {
		if t, err := time.Parse("2006-01-02", to); err == nil {
			filter.To = t
		}
	}
	movements, err := h.service.Movements(r.Context(), filter)
	if err != nil {
		h.respondErr(w, "list movements", err)
		return
	}
	out := make([]MovementResponse, 0, len(movements))
	for _, m := range movements {
		out = append(out, toMovementResponse(m))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) respondErr(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNegativeAdjustment), errors.Is(err, ErrInvalidDelta):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err))
	case errors.Is(err, ErrLevelNotFound):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrNotFound, err))
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
