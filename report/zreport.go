package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tillworks/tillworks/internal/zreport"
)

// ZReportSource loads the snapshot rendered into the printable document.
type ZReportSource interface {
	Get(ctx context.Context, locationID int64, date time.Time) (*zreport.Report, error)
}

// Handler renders z-reports as PDF through Gotenberg.
type Handler struct {
	client  *Client
	reports ZReportSource
	logger  *slog.Logger
}

// NewHandler creates a report handler.
func NewHandler(client *Client, reports ZReportSource, logger *slog.Logger) *Handler {
	return &Handler{client: client, reports: reports, logger: logger}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/ping", h.ping)
	r.Get("/zreport", h.zreportPDF)
}

func (h *Handler) ping(w http.ResponseWriter, r *http.Request) {
	if err := h.client.Ping(r.Context()); err != nil {
		h.logger.Warn("gotenberg ping failed", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (h *Handler) zreportPDF(w http.ResponseWriter, r *http.Request) {
	locationID, err := strconv.ParseInt(r.URL.Query().Get("location_id"), 10, 64)
	if err != nil || locationID <= 0 {
		http.Error(w, "location_id is required", http.StatusBadRequest)
		return
	}
	date, err := time.Parse("2006-01-02", r.URL.Query().Get("date"))
	if err != nil {
		http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	snapshot, err := h.reports.Get(r.Context(), locationID, date)
	if errors.Is(err, zreport.ErrReportNotFound) {
		http.Error(w, "z-report not generated for this date", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("load z-report", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	html, err := renderZReportHTML(snapshot)
	if err != nil {
		h.logger.Error("render z-report html", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	pdf, err := h.client.RenderHTML(r.Context(), html)
	if err != nil {
		h.logger.Error("render z-report pdf", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		return
	}

	filename := fmt.Sprintf("zreport-%d-%s.pdf", locationID, date.Format("20060102"))
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "inline; filename="+filename)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

var zreportTemplate = template.Must(template.New("zreport").Funcs(template.FuncMap{
	"money": formatMinor,
}).Parse(`<html>
<head><title>Z-Report {{.ReportDate.Format "2006-01-02"}}</title></head>
<body>
<h1>End of Day Report</h1>
<p>Location {{.LocationID}} &mdash; {{.ReportDate.Format "Monday, 2 January 2006"}}</p>
<table border="1" cellpadding="4" cellspacing="0">
<tr><td>Gross sales</td><td align="right">{{money .GrossSales}}</td></tr>
<tr><td>Discounts</td><td align="right">{{money .Discounts}}</td></tr>
<tr><td>Returns</td><td align="right">{{money .Returns}}</td></tr>
<tr><td><b>Net sales</b></td><td align="right"><b>{{money .NetSales}}</b></td></tr>
<tr><td>Tax collected</td><td align="right">{{money .TaxCollected}}</td></tr>
<tr><td>Cash</td><td align="right">{{money .CashTotal}}</td></tr>
<tr><td>Card</td><td align="right">{{money .CardTotal}}</td></tr>
<tr><td>Wallet</td><td align="right">{{money .WalletTotal}}</td></tr>
<tr><td>Opening cash</td><td align="right">{{money .OpeningCash}}</td></tr>
<tr><td>Expected cash</td><td align="right">{{money .ExpectedCash}}</td></tr>
<tr><td>Counted cash</td><td align="right">{{money .ActualCash}}</td></tr>
<tr><td><b>Variance</b></td><td align="right"><b>{{money .Variance}}</b></td></tr>
<tr><td>Sales</td><td align="right">{{.SaleCount}}</td></tr>
</table>
</body>
</html>`))

func renderZReportHTML(snapshot *zreport.Report) (string, error) {
	var buf bytes.Buffer
	if err := zreportTemplate.Execute(&buf, snapshot); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func formatMinor(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return fmt.Sprintf("%s%d.%02d", sign, amount/100, amount%100)
}
