package sessions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/volanclub/courtd/internal/domain/ledger"
	"github.com/volanclub/courtd/internal/infra/metrics"
)

// admissionLockKey serializes the capacity-check-then-admit window across
// concurrent transactions (pg_advisory_xact_lock).
const admissionLockKey = int64(0x636f757274)

// CapacityFunc supplies the current facility limit; re-read on every
// admission so config changes apply without a restart.
type CapacityFunc func() int

// txRunner runs fn inside one transaction; the Querier it hands to fn is the
// transaction itself, so every statement commits or rolls back together.
type txRunner func(ctx context.Context, fn func(q ledger.Querier) error) error

type Service struct {
	db       ledger.Querier
	runTx    txRunner
	repo     *Repo
	ledger   *ledger.Repo
	capacity CapacityFunc
}

func NewService(pool *pgxpool.Pool, repo *Repo, ledgerRepo *ledger.Repo, capacity CapacityFunc) *Service {
	return &Service{
		db: pool,
		runTx: func(ctx context.Context, fn func(q ledger.Querier) error) error {
			return pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error { return fn(tx) })
		},
		repo:     repo,
		ledger:   ledgerRepo,
		capacity: capacity,
	}
}

// Create queues a session in pending state. Queueing is free: no capacity or
// balance check happens until Start.
func (s *Service) Create(ctx context.Context, p CreateParams) (*Session, error) {
	if p.DurationHours <= 0 {
		return nil, ErrInvalidDuration
	}
	if p.MonthlyLineID != nil {
		line, err := s.ledger.GetMonthlyLine(ctx, *p.MonthlyLineID)
		if err != nil {
			return nil, err
		}
		if line == nil || line.CustomerID != p.CustomerID ||
			line.State != ledger.LineActive || ledger.Exhausted(line.RemainingUnits) {
			return nil, ledger.ErrStaleLine
		}
	}

	sess, err := s.repo.Create(ctx, p)
	if err != nil {
		return nil, err
	}
	sess.QueueNumber, err = s.repo.QueuePosition(ctx, sess)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// Start admits a pending session: capacity gate, per-customer duplicate
// check, balance debit (unless comped) and the state stamp are one atomic
// transaction.
func (s *Service) Start(ctx context.Context, id int64) (*Session, error) {
	var (
		sess    *Session
		channel ledger.Channel
	)
	err := s.runTx(ctx, func(q ledger.Querier) error {
		cur, err := s.repo.getForUpdate(ctx, q, id)
		if err != nil {
			return err
		}
		if cur.State != StatePending {
			return ErrInvalidTransition
		}

		if _, err := q.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, admissionLockKey); err != nil {
			return err
		}
		occ, err := s.repo.occupancy(ctx, q)
		if err != nil {
			return err
		}
		if occ >= s.capacity() {
			metrics.CapacityRejections.Inc()
			return ErrCapacityExceeded
		}

		occupied, err := s.repo.hasOccupant(ctx, q, cur.CustomerID)
		if err != nil {
			return err
		}
		if occupied {
			return ErrDuplicateActiveSession
		}

		switch mode := cur.AdmissionMode().(type) {
		case Comped:
			// promo admission, balance untouched
		case Paid:
			res, err := s.ledger.DebitTx(ctx, q, ledger.DebitRequest{
				CustomerID:      cur.CustomerID,
				Hours:           cur.DurationHours,
				MonthlyLineID:   mode.MonthlyLineID,
				SessionID:       &cur.ID,
				TransactionType: ledger.TxUsage,
				Description:     fmt.Sprintf("session %d started (%g h)", cur.ID, cur.DurationHours),
			})
			if err != nil {
				if errors.Is(err, ledger.ErrInsufficientBalance) {
					metrics.InsufficientBalance.Inc()
				}
				return err
			}
			channel = res.Channel
		}

		now := time.Now()
		end := now.Add(hoursToDuration(cur.DurationHours))
		if err := s.repo.markStarted(ctx, q, id, now, end); err != nil {
			return err
		}

		cur.State = StateActive
		cur.StartTime = &now
		cur.EndTime = &end
		cur.WarningSent = false
		sess = cur
		return nil
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateActiveSession
		}
		return nil, err
	}

	metrics.SessionsStarted.Inc()
	if channel != "" {
		metrics.BalanceDebits.WithLabelValues(string(channel)).Inc()
	}
	return sess, nil
}

// Extend debits additional hours the same way Start does and pushes the end
// time out, opening a fresh warning window.
func (s *Service) Extend(ctx context.Context, id int64, additionalHours float64) (*Session, error) {
	if additionalHours <= 0 {
		return nil, ErrInvalidDuration
	}

	var (
		sess    *Session
		channel ledger.Channel
	)
	err := s.runTx(ctx, func(q ledger.Querier) error {
		cur, err := s.repo.getForUpdate(ctx, q, id)
		if err != nil {
			return err
		}
		if !cur.State.Occupying() {
			return ErrInvalidTransition
		}

		switch mode := cur.AdmissionMode().(type) {
		case Comped:
			// comped sessions extend free as well
		case Paid:
			res, err := s.ledger.DebitTx(ctx, q, ledger.DebitRequest{
				CustomerID:      cur.CustomerID,
				Hours:           additionalHours,
				MonthlyLineID:   mode.MonthlyLineID,
				SessionID:       &cur.ID,
				TransactionType: ledger.TxExtension,
				Description:     fmt.Sprintf("session %d extended (+%g h)", cur.ID, additionalHours),
			})
			if err != nil {
				if errors.Is(err, ledger.ErrInsufficientBalance) {
					metrics.InsufficientBalance.Inc()
				}
				return err
			}
			channel = res.Channel
		}

		sess, err = s.repo.markExtended(ctx, q, id, additionalHours)
		return err
	})
	if err != nil {
		return nil, err
	}

	if channel != "" {
		metrics.BalanceDebits.WithLabelValues(string(channel)).Inc()
	}
	return sess, nil
}

// Complete ends an occupying session. No balance effect: time was debited at
// start and extend time.
func (s *Service) Complete(ctx context.Context, id int64) (*Session, error) {
	sess, err := s.repo.Complete(ctx, id)
	if err != nil {
		return nil, err
	}
	metrics.SessionsCompleted.WithLabelValues("manual").Inc()
	return sess, nil
}

// Cancel drops a session before or during play. Already-debited balance is
// not refunded.
func (s *Service) Cancel(ctx context.Context, id int64) (*Session, error) {
	return s.repo.Cancel(ctx, id)
}

func (s *Service) Get(ctx context.Context, id int64) (*Session, error) {
	sess, err := s.repo.Get(ctx, id)
	if err != nil || sess == nil {
		return sess, err
	}
	if sess.State == StatePending {
		sess.QueueNumber, err = s.repo.QueuePosition(ctx, sess)
		if err != nil {
			return nil, err
		}
	}
	return sess, nil
}

// ListActive is the courts dashboard feed: occupying sessions ordered by how
// soon they end.
func (s *Service) ListActive(ctx context.Context) ([]Session, error) {
	return s.repo.ListActive(ctx)
}

// CustomerOccupying reports whether the customer already holds a court slot.
func (s *Service) CustomerOccupying(ctx context.Context, customerID int64) (bool, error) {
	return s.repo.hasOccupant(ctx, s.db, customerID)
}

func hoursToDuration(h float64) time.Duration {
	return time.Duration(h * float64(time.Hour))
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
