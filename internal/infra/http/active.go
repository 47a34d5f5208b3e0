package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/volanclub/courtd/internal/domain/sessions"
)

type activeLister interface {
	ListActive(ctx context.Context) ([]sessions.Session, error)
}

type activeSession struct {
	SessionID        int64     `json:"session_id"`
	CustomerID       int64     `json:"customer_id"`
	State            string    `json:"state"`
	TotalHours       float64   `json:"total_hours"`
	EndTime          time.Time `json:"end_time"`
	MinutesRemaining int       `json:"minutes_remaining"`
}

// ActiveHandler feeds the courts dashboard: every session currently holding
// a slot, soonest to end first.
type ActiveHandler struct {
	log      *slog.Logger
	sessions activeLister
}

func NewActiveHandler(log *slog.Logger, lister activeLister) *ActiveHandler {
	return &ActiveHandler{log: log, sessions: lister}
}

func (h *ActiveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	list, err := h.sessions.ListActive(r.Context())
	if err != nil {
		h.log.Error("active sessions lookup failed", "err", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	now := time.Now()
	out := make([]activeSession, 0, len(list))
	for i := range list {
		s := &list[i]
		a := activeSession{
			SessionID:        s.ID,
			CustomerID:       s.CustomerID,
			State:            string(s.State),
			TotalHours:       s.TotalHours(),
			MinutesRemaining: s.MinutesRemaining(now),
		}
		if s.EndTime != nil {
			a.EndTime = *s.EndTime
		}
		out = append(out, a)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(out)
}
