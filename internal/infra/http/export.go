package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/volanclub/courtd/internal/domain/reports"
)

// ExportHandler serves a customer's balance history as an XLSX download.
type ExportHandler struct {
	log     *slog.Logger
	reports *reports.Service
}

func NewExportHandler(log *slog.Logger, reportsSvc *reports.Service) *ExportHandler {
	return &ExportHandler{log: log, reports: reportsSvc}
}

func (h *ExportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	customerID, err := strconv.ParseInt(r.URL.Query().Get("customer"), 10, 64)
	if err != nil || customerID <= 0 {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("invalid customer parameter"))
		return
	}

	to := time.Now()
	from := to.AddDate(0, -3, 0)
	if v := r.URL.Query().Get("from"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			from = t
		}
	}
	if v := r.URL.Query().Get("to"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			to = t.AddDate(0, 0, 1)
		}
	}

	f, err := h.reports.BalanceHistoryExport(ctx, customerID, from, to)
	if err != nil {
		h.log.Error("history export failed", "customer_id", customerID, "err", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="balance_history_%d.xlsx"`, customerID))
	if err := f.Write(w); err != nil {
		h.log.Error("history export write failed", "customer_id", customerID, "err", err)
	}
}
