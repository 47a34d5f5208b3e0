package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier is satisfied by both *pgxpool.Pool and pgx.Tx so debits can join the
// session state machine's transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Repo struct{ pool *pgxpool.Pool }

func NewRepo(pool *pgxpool.Pool) *Repo { return &Repo{pool: pool} }

type DebitRequest struct {
	CustomerID      int64
	Hours           float64
	MonthlyLineID   *int64 // nil -> debit the flat channel
	SessionID       *int64
	TransactionType TransactionType
	Description     string
}

type DebitResult struct {
	Channel       Channel
	AmountDebited float64 // hours for the flat channel, units for a monthly line
	BalanceBefore float64
	BalanceAfter  float64
	MonthlyLineID *int64
}

func (r *Repo) Debit(ctx context.Context, req DebitRequest) (DebitResult, error) {
	var res DebitResult
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		res, err = r.DebitTx(ctx, tx, req)
		return err
	})
	return res, err
}

// DebitTx performs the debit inside the caller's transaction. A failed debit
// leaves no history entry: the caller's rollback discards everything.
func (r *Repo) DebitTx(ctx context.Context, q Querier, req DebitRequest) (DebitResult, error) {
	if req.Hours <= 0 {
		return DebitResult{}, ErrInvalidAmount
	}
	if req.MonthlyLineID != nil {
		return r.debitMonthly(ctx, q, req)
	}
	return r.debitNormal(ctx, q, req)
}

func (r *Repo) debitNormal(ctx context.Context, q Querier, req DebitRequest) (DebitResult, error) {
	var before float64
	err := q.QueryRow(ctx,
		`SELECT flat_hours FROM customers WHERE id=$1 FOR UPDATE`,
		req.CustomerID,
	).Scan(&before)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return DebitResult{}, ErrCustomerNotFound
		}
		return DebitResult{}, err
	}

	if !Sufficient(req.Hours, before) {
		return DebitResult{}, ErrInsufficientBalance
	}
	after := ClampZero(before - req.Hours)

	if _, err := q.Exec(ctx,
		`UPDATE customers SET flat_hours=$2, updated_at=now() WHERE id=$1`,
		req.CustomerID, after,
	); err != nil {
		return DebitResult{}, err
	}

	res := DebitResult{
		Channel:       ChannelNormal,
		AmountDebited: req.Hours,
		BalanceBefore: before,
		BalanceAfter:  after,
	}
	if err := insertHistory(ctx, q, HistoryEntry{
		CustomerID:      req.CustomerID,
		SessionID:       req.SessionID,
		Channel:         ChannelNormal,
		TransactionType: req.TransactionType,
		AmountDebited:   req.Hours,
		BalanceBefore:   before,
		BalanceAfter:    after,
		Description:     req.Description,
	}); err != nil {
		return DebitResult{}, err
	}
	return res, nil
}

func (r *Repo) debitMonthly(ctx context.Context, q Querier, req DebitRequest) (DebitResult, error) {
	lineID := *req.MonthlyLineID

	var (
		ownerID   int64
		state     LineState
		remaining float64
		factor    float64
	)
	err := q.QueryRow(ctx,
		`SELECT customer_id, state, remaining_units, deduction_factor
		 FROM monthly_lines WHERE id=$1 FOR UPDATE`,
		lineID,
	).Scan(&ownerID, &state, &remaining, &factor)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return DebitResult{}, ErrStaleLine
		}
		return DebitResult{}, err
	}

	if ownerID != req.CustomerID || state != LineActive || Exhausted(remaining) {
		return DebitResult{}, ErrStaleLine
	}

	units := UnitsNeeded(req.Hours, factor)
	if !Sufficient(units, remaining) {
		return DebitResult{}, ErrInsufficientBalance
	}
	after := ClampZero(remaining - units)

	newState := LineActive
	if Exhausted(after) {
		newState = LineConsumed
	}
	if _, err := q.Exec(ctx,
		`UPDATE monthly_lines SET remaining_units=$2, state=$3, updated_at=now() WHERE id=$1`,
		lineID, after, newState,
	); err != nil {
		return DebitResult{}, err
	}

	res := DebitResult{
		Channel:       ChannelMonthly,
		AmountDebited: units,
		BalanceBefore: remaining,
		BalanceAfter:  after,
		MonthlyLineID: req.MonthlyLineID,
	}
	if err := insertHistory(ctx, q, HistoryEntry{
		CustomerID:      req.CustomerID,
		SessionID:       req.SessionID,
		MonthlyLineID:   req.MonthlyLineID,
		Channel:         ChannelMonthly,
		TransactionType: req.TransactionType,
		AmountDebited:   units,
		BalanceBefore:   remaining,
		BalanceAfter:    after,
		Description:     req.Description,
	}); err != nil {
		return DebitResult{}, err
	}
	return res, nil
}

type CreditRequest struct {
	CustomerID      int64
	Hours           float64
	SessionID       *int64
	TransactionType TransactionType
	Description     string
}

// Credit adds hours to the flat channel and returns the new balance. Monthly
// lines are only credited at purchase time via CreateMonthlyLine.
func (r *Repo) Credit(ctx context.Context, req CreditRequest) (float64, error) {
	if req.Hours <= 0 {
		return 0, ErrInvalidAmount
	}

	var balance float64
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var before float64
		err := tx.QueryRow(ctx,
			`SELECT flat_hours FROM customers WHERE id=$1 FOR UPDATE`,
			req.CustomerID,
		).Scan(&before)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrCustomerNotFound
			}
			return err
		}

		after := before + req.Hours
		if _, err := tx.Exec(ctx,
			`UPDATE customers SET flat_hours=$2, updated_at=now() WHERE id=$1`,
			req.CustomerID, after,
		); err != nil {
			return err
		}

		balance = after
		return insertHistory(ctx, tx, HistoryEntry{
			CustomerID:      req.CustomerID,
			SessionID:       req.SessionID,
			Channel:         ChannelNormal,
			TransactionType: req.TransactionType,
			AmountCredited:  req.Hours,
			BalanceBefore:   before,
			BalanceAfter:    after,
			Description:     req.Description,
		})
	})
	return balance, err
}

// AvailableHours is the read-only pre-flight total: flat hours plus the hour
// equivalent of every active monthly line.
func (r *Repo) AvailableHours(ctx context.Context, customerID int64) (float64, error) {
	var total float64
	err := r.pool.QueryRow(ctx, `
		SELECT c.flat_hours + COALESCE(SUM(ml.remaining_units / ml.deduction_factor), 0)
		FROM customers c
		LEFT JOIN monthly_lines ml ON ml.customer_id = c.id AND ml.state = 'active'
		WHERE c.id = $1
		GROUP BY c.flat_hours
	`, customerID).Scan(&total)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrCustomerNotFound
		}
		return 0, err
	}
	return total, nil
}

type CreateLineParams struct {
	CustomerID      int64
	PackageName     string
	Units           float64
	DeductionFactor float64
	ExpiryDate      time.Time
}

// CreateMonthlyLine records a purchased package allocation and its purchase
// history entry in one transaction.
func (r *Repo) CreateMonthlyLine(ctx context.Context, p CreateLineParams) (*MonthlyLine, error) {
	if p.Units <= 0 {
		return nil, ErrInvalidAmount
	}
	if p.DeductionFactor < 1 {
		p.DeductionFactor = 1
	}

	var line MonthlyLine
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			INSERT INTO monthly_lines (customer_id, package_name, initial_units, remaining_units, deduction_factor, expiry_date)
			VALUES ($1,$2,$3,$3,$4,$5)
			RETURNING id, customer_id, package_name, initial_units, remaining_units, deduction_factor, expiry_date, state, created_at, updated_at
		`, p.CustomerID, p.PackageName, p.Units, p.DeductionFactor, p.ExpiryDate)
		if err := scanLine(row, &line); err != nil {
			return err
		}

		return insertHistory(ctx, tx, HistoryEntry{
			CustomerID:      p.CustomerID,
			MonthlyLineID:   &line.ID,
			Channel:         ChannelMonthly,
			TransactionType: TxPurchase,
			AmountCredited:  p.Units,
			BalanceBefore:   0,
			BalanceAfter:    p.Units,
			Description:     fmt.Sprintf("package purchase: %s", p.PackageName),
		})
	})
	if err != nil {
		return nil, err
	}
	return &line, nil
}

func (r *Repo) GetMonthlyLine(ctx context.Context, id int64) (*MonthlyLine, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, customer_id, package_name, initial_units, remaining_units, deduction_factor, expiry_date, state, created_at, updated_at
		FROM monthly_lines WHERE id=$1
	`, id)
	var line MonthlyLine
	if err := scanLine(row, &line); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &line, nil
}

// DueLineIDs lists active lines past their expiry date with units remaining.
func (r *Repo) DueLineIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id FROM monthly_lines
		WHERE state='active' AND expiry_date < CURRENT_DATE AND remaining_units > $1
		ORDER BY expiry_date
	`, Epsilon)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ExpireLine zeroes a due line and writes the expiry history entry. Re-checks
// the guards under a row lock so a concurrent debit cannot be lost.
func (r *Repo) ExpireLine(ctx context.Context, id int64) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var (
			customerID int64
			state      LineState
			remaining  float64
			expiry     time.Time
		)
		err := tx.QueryRow(ctx,
			`SELECT customer_id, state, remaining_units, expiry_date
			 FROM monthly_lines WHERE id=$1 FOR UPDATE`,
			id,
		).Scan(&customerID, &state, &remaining, &expiry)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil
			}
			return err
		}
		if state != LineActive || Exhausted(remaining) {
			return nil
		}

		if _, err := tx.Exec(ctx,
			`UPDATE monthly_lines SET remaining_units=0, state=$2, updated_at=now() WHERE id=$1`,
			id, LineExpired,
		); err != nil {
			return err
		}

		return insertHistory(ctx, tx, HistoryEntry{
			CustomerID:      customerID,
			MonthlyLineID:   &id,
			Channel:         ChannelMonthly,
			TransactionType: TxExpiry,
			AmountDebited:   remaining,
			BalanceBefore:   remaining,
			BalanceAfter:    0,
			Description:     fmt.Sprintf("package expired %s", expiry.Format("2006-01-02")),
		})
	})
}

func (r *Repo) ListHistory(ctx context.Context, customerID int64, from, to time.Time) ([]HistoryEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, customer_id, session_id, monthly_line_id, channel, transaction_type,
		       amount_debited, amount_credited, balance_before, balance_after, description, created_at
		FROM balance_history
		WHERE customer_id=$1 AND created_at >= $2 AND created_at < $3
		ORDER BY created_at
	`, customerID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(
			&e.ID,
			&e.CustomerID,
			&e.SessionID,
			&e.MonthlyLineID,
			&e.Channel,
			&e.TransactionType,
			&e.AmountDebited,
			&e.AmountCredited,
			&e.BalanceBefore,
			&e.BalanceAfter,
			&e.Description,
			&e.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func insertHistory(ctx context.Context, q Querier, e HistoryEntry) error {
	_, err := q.Exec(ctx, `
		INSERT INTO balance_history
		(customer_id, session_id, monthly_line_id, channel, transaction_type,
		 amount_debited, amount_credited, balance_before, balance_after, description)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, e.CustomerID, e.SessionID, e.MonthlyLineID, e.Channel, e.TransactionType,
		e.AmountDebited, e.AmountCredited, e.BalanceBefore, e.BalanceAfter, e.Description)
	return err
}

func scanLine(row pgx.Row, line *MonthlyLine) error {
	return row.Scan(
		&line.ID,
		&line.CustomerID,
		&line.PackageName,
		&line.InitialUnits,
		&line.RemainingUnits,
		&line.DeductionFactor,
		&line.ExpiryDate,
		&line.State,
		&line.CreatedAt,
		&line.UpdatedAt,
	)
}
