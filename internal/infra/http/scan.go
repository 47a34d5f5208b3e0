package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/volanclub/courtd/internal/domain/customers"
	"github.com/volanclub/courtd/internal/domain/ledger"
	"github.com/volanclub/courtd/internal/domain/sessions"
)

type scanResponse struct {
	Status      string `json:"status"`
	Message     string `json:"message"`
	SessionID   int64  `json:"session_id,omitempty"`
	QueueNumber int    `json:"queue_number,omitempty"`
}

// ScanHandler is the identity-scan admission flow: a badge scan queues a
// pending session after a read-only balance pre-flight. The operator still
// confirms admission through Start, which is where capacity and the actual
// debit are enforced.
type ScanHandler struct {
	log          *slog.Logger
	customers    *customers.Repo
	ledger       *ledger.Repo
	sessions     *sessions.Service
	defaultHours func() float64
}

func NewScanHandler(log *slog.Logger, customersRepo *customers.Repo, ledgerRepo *ledger.Repo,
	sessionsSvc *sessions.Service, defaultHours func() float64) *ScanHandler {

	return &ScanHandler{
		log:          log,
		customers:    customersRepo,
		ledger:       ledgerRepo,
		sessions:     sessionsSvc,
		defaultHours: defaultHours,
	}
}

func (h *ScanHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	code := r.FormValue("code")
	if code == "" {
		writeScan(w, http.StatusBadRequest, scanResponse{Status: "error", Message: "missing code parameter"})
		return
	}

	customer, err := h.customers.GetByBadge(ctx, code)
	if err != nil {
		if errors.Is(err, customers.ErrBadBadgeCode) {
			writeScan(w, http.StatusBadRequest, scanResponse{Status: "error", Message: "malformed badge code"})
			return
		}
		h.log.Error("badge lookup failed", "err", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if customer == nil {
		writeScan(w, http.StatusNotFound, scanResponse{Status: "error", Message: "customer not found"})
		return
	}

	occupied, err := h.sessions.CustomerOccupying(ctx, customer.ID)
	if err != nil {
		h.log.Error("occupancy check failed", "customer_id", customer.ID, "err", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if occupied {
		writeScan(w, http.StatusConflict, scanResponse{
			Status:  "error",
			Message: fmt.Sprintf("%s already has an active session", customer.FullName),
		})
		return
	}

	hours := h.defaultHours()
	available, err := h.ledger.AvailableHours(ctx, customer.ID)
	if err != nil {
		h.log.Error("balance pre-check failed", "customer_id", customer.ID, "err", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if !ledger.Sufficient(hours, available) {
		writeScan(w, http.StatusPaymentRequired, scanResponse{
			Status:  "error",
			Message: fmt.Sprintf("insufficient balance: %.2f h available, %.2f h required", available, hours),
		})
		return
	}

	sess, err := h.sessions.Create(ctx, sessions.CreateParams{
		CustomerID:    customer.ID,
		DurationHours: hours,
	})
	if err != nil {
		h.log.Error("session create failed", "customer_id", customer.ID, "err", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	writeScan(w, http.StatusOK, scanResponse{
		Status:      "ok",
		Message:     fmt.Sprintf("session queued for %s", customer.FullName),
		SessionID:   sess.ID,
		QueueNumber: sess.QueueNumber,
	})
}

func writeScan(w http.ResponseWriter, status int, resp scanResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
