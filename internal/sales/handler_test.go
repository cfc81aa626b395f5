package sales

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRespondErrStatusMapping(t *testing.T) {
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), nil, nil)

	cases := []struct {
		err    error
		status int
	}{
		{ErrSaleNotFound, http.StatusNotFound},
		{ErrCannotVoid, http.StatusConflict},
		{ErrNotParked, http.StatusConflict},
		{ErrInsufficientPayment, http.StatusBadRequest},
		// Missing approver authority is a permissions failure, not bad input.
		{ErrApproverRequired, http.StatusForbidden},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		h.respondErr(rec, "test", tc.err)
		require.Equalf(t, tc.status, rec.Code, "mapping %v", tc.err)
	}
}
