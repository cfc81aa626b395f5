package shift

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

// Handler exposes the shift ledger over HTTP.
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

func (h *Handler) ClockIn(w http.ResponseWriter, r *http.Request) {
	var req ClockInRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	shiftID, err := h.service.ClockIn(r.Context(), ClockInInput{
		ActorID:     shared.ActorFromContext(r.Context()),
		LocationID:  req.LocationID,
		OpeningCash: req.OpeningCash,
		Terminal:    req.Terminal,
	})
	if err != nil {
		h.respondErr(w, "clock in", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]int64{"shift_id": shiftID})
}

func (h *Handler) ClockOut(w http.ResponseWriter, r *http.Request) {
	var req ClockOutRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	result, err := h.service.ClockOut(r.Context(), ClockOutInput{
		ActorID:     shared.ActorFromContext(r.Context()),
		ClosingCash: req.ClosingCash,
		Notes:       req.Notes,
	})
	if err != nil {
		h.respondErr(w, "clock out", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toCloseResponse(result))
}

func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	shiftID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || shiftID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid shift id")
		return
	}
	var req ReconcileRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	sh, err := h.service.Get(r.Context(), shiftID)
	if err != nil {
		h.respondErr(w, "load shift", err)
		return
	}
	approverID, err := h.approver.Verify(r.Context(), sh.LocationID, req.ApproverPIN)
	if err != nil {
		h.respondErr(w, "verify approver", err)
		return
	}
	if err := h.service.Reconcile(r.Context(), shiftID, approverID, req.Notes); err != nil {
		h.respondErr(w, "reconcile shift", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": string(StatusReconciled)})
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	shiftID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || shiftID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid shift id")
		return
	}
	sh, err := h.service.Get(r.Context(), shiftID)
	if err != nil {
		h.respondErr(w, "load shift", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toShiftResponse(sh))
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	locationID, err := strconv.ParseInt(r.URL.Query().Get("location_id"), 10, 64)
	if err != nil || locationID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "location_id is required")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	shifts, err := h.service.ListByLocation(r.Context(), locationID, limit)
	if err != nil {
		h.respondErr(w, "list shifts", err)
		return
	}
	out := make([]ShiftResponse, 0, len(shifts))
	for i := range shifts {
		out = append(out, toShiftResponse(&shifts[i]))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) respondErr(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrShiftAlreadyOpen), errors.Is(err, ErrInvalidCash):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err))
	case errors.Is(err, ErrShiftNotFound), errors.Is(err, ErrNoOpenShift):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrNotFound, err))
	case errors.Is(err, ErrShiftNotClosed):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrConflict, err))
	case errors.Is(err, shared.ErrApproverDenied):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrForbidden, err))
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
