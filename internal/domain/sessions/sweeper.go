package sessions

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/volanclub/courtd/internal/infra/metrics"
	"github.com/volanclub/courtd/internal/infra/notify"
)

// SweepStore is what the sweeper needs from the session repo.
type SweepStore interface {
	ExpireDue(ctx context.Context) ([]CompletedSession, error)
	DueForWarning(ctx context.Context, within time.Duration) ([]WarningDue, error)
	ClaimWarning(ctx context.Context, id int64) (bool, error)
	UnclaimWarning(ctx context.Context, id int64) error
}

// LineExpirer is what the sweeper needs from the ledger repo to retire
// overdue monthly package lines.
type LineExpirer interface {
	DueLineIDs(ctx context.Context) ([]int64, error)
	ExpireLine(ctx context.Context, id int64) error
}

type Sweeper struct {
	log      *slog.Logger
	store    SweepStore
	lines    LineExpirer
	notifier notify.Notifier

	// one mutex per sweep kind: a new sweep must not start while the
	// previous one of the same kind is still running
	expiryMu sync.Mutex
	warnMu   sync.Mutex
	linesMu  sync.Mutex
}

func NewSweeper(log *slog.Logger, store SweepStore, lines LineExpirer, notifier notify.Notifier) *Sweeper {
	return &Sweeper{log: log, store: store, lines: lines, notifier: notifier}
}

// RunExpirySweep auto-completes sessions past their end time. Idempotent:
// completed sessions no longer match the sweep predicate.
func (s *Sweeper) RunExpirySweep(ctx context.Context) (int, error) {
	s.expiryMu.Lock()
	defer s.expiryMu.Unlock()

	done, err := s.store.ExpireDue(ctx)
	if err != nil {
		return 0, err
	}
	for _, c := range done {
		metrics.SessionsCompleted.WithLabelValues("sweep").Inc()
		s.log.Info("session auto-completed",
			"session_id", c.ID,
			"customer_id", c.CustomerID,
			"ended_at", c.EndTime,
		)
	}
	return len(done), nil
}

// RunWarningSweep notifies each qualifying session once per expiry window.
// The warning flag is claimed before the notification goes out so two sweeps
// cannot deliver the same warning; a failed delivery releases the claim and
// the next sweep retries it.
func (s *Sweeper) RunWarningSweep(ctx context.Context, window time.Duration) (int, error) {
	s.warnMu.Lock()
	defer s.warnMu.Unlock()

	due, err := s.store.DueForWarning(ctx, window)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, d := range due {
		claimed, err := s.store.ClaimWarning(ctx, d.SessionID)
		if err != nil {
			s.log.Error("warning claim failed", "session_id", d.SessionID, "err", err)
			continue
		}
		if !claimed {
			continue
		}
		if err := s.notifier.Notify(ctx, d.SessionID, warningMessage(d, time.Now())); err != nil {
			s.log.Error("warning delivery failed", "session_id", d.SessionID, "err", err)
			if err := s.store.UnclaimWarning(ctx, d.SessionID); err != nil {
				s.log.Error("warning unclaim failed", "session_id", d.SessionID, "err", err)
			}
			continue
		}
		metrics.WarningsSent.Inc()
		sent++
	}
	return sent, nil
}

// RunLineExpirySweep zeroes overdue monthly package lines, one ledger
// transaction per line so a failing record does not abort the rest.
func (s *Sweeper) RunLineExpirySweep(ctx context.Context) (int, error) {
	if s.lines == nil {
		return 0, nil
	}
	s.linesMu.Lock()
	defer s.linesMu.Unlock()

	ids, err := s.lines.DueLineIDs(ctx)
	if err != nil {
		return 0, err
	}
	expired := 0
	for _, id := range ids {
		if err := s.lines.ExpireLine(ctx, id); err != nil {
			s.log.Error("line expiry failed", "line_id", id, "err", err)
			continue
		}
		expired++
	}
	return expired, nil
}

// Run drives all sweeps from a single goroutine on a fixed interval until the
// context is cancelled.
func (s *Sweeper) Run(ctx context.Context, interval, warningWindow time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n, err := s.RunExpirySweep(ctx); err != nil {
				s.log.Error("expiry sweep failed", "err", err)
			} else if n > 0 {
				s.log.Info("expiry sweep", "completed", n)
			}
			if _, err := s.RunWarningSweep(ctx, warningWindow); err != nil {
				s.log.Error("warning sweep failed", "err", err)
			}
			if n, err := s.RunLineExpirySweep(ctx); err != nil {
				s.log.Error("line expiry sweep failed", "err", err)
			} else if n > 0 {
				s.log.Info("line expiry sweep", "expired", n)
			}
		}
	}
}

func warningMessage(d WarningDue, now time.Time) string {
	mins := minutesRemaining(d.EndTime, now)
	return fmt.Sprintf("session %d (customer %d) ends in %d min", d.SessionID, d.CustomerID, mins)
}

func minutesRemaining(end, now time.Time) int {
	left := end.Sub(now)
	if left < 0 {
		return 0
	}
	return int(left.Round(time.Minute) / time.Minute)
}
