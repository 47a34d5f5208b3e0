package sessions

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/volanclub/courtd/internal/domain/ledger"
)

const sessionColumns = `id, customer_id, state, duration_hours, extended_hours, comp_tag,
	monthly_line_id, start_time, end_time, completion_time, warning_sent, notes, created_at, updated_at`

type Repo struct{ db ledger.Querier }

func NewRepo(db ledger.Querier) *Repo { return &Repo{db: db} }

type CreateParams struct {
	CustomerID    int64
	DurationHours float64
	CompTag       *string
	MonthlyLineID *int64
	Notes         string
}

func (r *Repo) Create(ctx context.Context, p CreateParams) (*Session, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO sessions (customer_id, duration_hours, comp_tag, monthly_line_id, notes)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING `+sessionColumns+`
	`, p.CustomerID, p.DurationHours, p.CompTag, p.MonthlyLineID, p.Notes)

	var s Session
	if err := scanSession(row, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *Repo) Get(ctx context.Context, id int64) (*Session, error) {
	row := r.db.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id=$1`, id)
	var s Session
	if err := scanSession(row, &s); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

func (r *Repo) getForUpdate(ctx context.Context, q ledger.Querier, id int64) (*Session, error) {
	row := q.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id=$1 FOR UPDATE`, id)
	var s Session
	if err := scanSession(row, &s); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

// ActiveOccupancy counts sessions currently holding a court slot. Always an
// indexed scan, never a cached counter.
func (r *Repo) ActiveOccupancy(ctx context.Context) (int, error) {
	return r.occupancy(ctx, r.db)
}

func (r *Repo) occupancy(ctx context.Context, q ledger.Querier) (int, error) {
	var n int
	err := q.QueryRow(ctx,
		`SELECT count(*) FROM sessions WHERE state IN ('active','extended')`,
	).Scan(&n)
	return n, err
}

func (r *Repo) hasOccupant(ctx context.Context, q ledger.Querier, customerID int64) (bool, error) {
	var exists bool
	err := q.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM sessions WHERE customer_id=$1 AND state IN ('active','extended')
		)
	`, customerID).Scan(&exists)
	return exists, err
}

// QueuePosition ranks a pending session among still-pending ones by creation
// time. Recomputed on every call so admissions and cancellations out of order
// keep it consistent.
func (r *Repo) QueuePosition(ctx context.Context, s *Session) (int, error) {
	var ahead int
	err := r.db.QueryRow(ctx, `
		SELECT count(*) FROM sessions
		WHERE state='pending' AND created_at < $1 AND id <> $2
	`, s.CreatedAt, s.ID).Scan(&ahead)
	if err != nil {
		return 0, err
	}
	return ahead + 1, nil
}

func (r *Repo) markStarted(ctx context.Context, q ledger.Querier, id int64, start, end time.Time) error {
	tag, err := q.Exec(ctx, `
		UPDATE sessions
		SET state='active', start_time=$2, end_time=$3, warning_sent=false, updated_at=now()
		WHERE id=$1 AND state='pending'
	`, id, start, end)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidTransition
	}
	return nil
}

func (r *Repo) markExtended(ctx context.Context, q ledger.Querier, id int64, hours float64) (*Session, error) {
	row := q.QueryRow(ctx, `
		UPDATE sessions
		SET extended_hours = extended_hours + $2,
		    end_time       = end_time + make_interval(secs => $3),
		    state          = 'extended',
		    warning_sent   = false,
		    updated_at     = now()
		WHERE id=$1 AND state IN ('active','extended')
		RETURNING `+sessionColumns+`
	`, id, hours, hours*3600)

	var s Session
	if err := scanSession(row, &s); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidTransition
		}
		return nil, err
	}
	return &s, nil
}

func (r *Repo) Complete(ctx context.Context, id int64) (*Session, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE sessions
		SET state='completed', completion_time=now(), updated_at=now()
		WHERE id=$1 AND state IN ('active','extended')
		RETURNING `+sessionColumns+`
	`, id)

	var s Session
	if err := scanSession(row, &s); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.classifyMiss(ctx, id)
		}
		return nil, err
	}
	return &s, nil
}

// Cancel never refunds balance already debited at start or extend time.
func (r *Repo) Cancel(ctx context.Context, id int64) (*Session, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE sessions
		SET state='cancelled', updated_at=now()
		WHERE id=$1 AND state IN ('pending','active','extended')
		RETURNING `+sessionColumns+`
	`, id)

	var s Session
	if err := scanSession(row, &s); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.classifyMiss(ctx, id)
		}
		return nil, err
	}
	return &s, nil
}

// classifyMiss tells a missing session apart from one in the wrong state after
// a guarded update matched no row.
func (r *Repo) classifyMiss(ctx context.Context, id int64) error {
	s, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if s == nil {
		return ErrNotFound
	}
	return ErrInvalidTransition
}

type CompletedSession struct {
	ID         int64
	CustomerID int64
	EndTime    time.Time
}

// ExpireDue auto-completes every occupying session past its end time. The
// predicate excludes non-occupying states, so repeated runs are no-ops.
func (r *Repo) ExpireDue(ctx context.Context) ([]CompletedSession, error) {
	rows, err := r.db.Query(ctx, `
		UPDATE sessions
		SET state='completed', completion_time=now(), updated_at=now()
		WHERE state IN ('active','extended') AND end_time < now()
		RETURNING id, customer_id, end_time
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CompletedSession
	for rows.Next() {
		var c CompletedSession
		if err := rows.Scan(&c.ID, &c.CustomerID, &c.EndTime); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type WarningDue struct {
	SessionID  int64
	CustomerID int64
	EndTime    time.Time
}

// DueForWarning lists occupying sessions ending within the window that have
// not been warned in the current expiry window.
func (r *Repo) DueForWarning(ctx context.Context, within time.Duration) ([]WarningDue, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, customer_id, end_time FROM sessions
		WHERE state IN ('active','extended') AND warning_sent = false
		  AND end_time > now() AND end_time <= now() + make_interval(secs => $1)
		ORDER BY end_time
	`, within.Seconds())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []WarningDue
	for rows.Next() {
		var w WarningDue
		if err := rows.Scan(&w.SessionID, &w.CustomerID, &w.EndTime); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// ClaimWarning flips warning_sent and reports whether this caller won the
// claim, so a session is never notified twice for one window.
func (r *Repo) ClaimWarning(ctx context.Context, id int64) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE sessions SET warning_sent=true, updated_at=now()
		WHERE id=$1 AND warning_sent=false AND state IN ('active','extended')
	`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// UnclaimWarning releases a claim after a failed delivery so the next sweep
// retries the notification.
func (r *Repo) UnclaimWarning(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx, `
		UPDATE sessions SET warning_sent=false, updated_at=now()
		WHERE id=$1 AND state IN ('active','extended')
	`, id)
	return err
}

// ListActive returns occupying sessions ordered by how soon they end.
func (r *Repo) ListActive(ctx context.Context) ([]Session, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+sessionColumns+` FROM sessions
		WHERE state IN ('active','extended')
		ORDER BY end_time
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var s Session
		if err := scanSession(rows, &s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func scanSession(row pgx.Row, s *Session) error {
	return row.Scan(
		&s.ID,
		&s.CustomerID,
		&s.State,
		&s.DurationHours,
		&s.ExtendedHours,
		&s.CompTag,
		&s.MonthlyLineID,
		&s.StartTime,
		&s.EndTime,
		&s.CompletionTime,
		&s.WarningSent,
		&s.Notes,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
}
