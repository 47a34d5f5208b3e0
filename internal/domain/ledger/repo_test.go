package ledger

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func TestDebitFlatBalanceDownToZero(t *testing.T) {
	mock := newMock(t)
	sessionID := int64(11)

	mock.ExpectQuery(`SELECT flat_hours FROM customers`).
		WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows([]string{"flat_hours"}).AddRow(1.0))
	mock.ExpectExec(`UPDATE customers SET flat_hours`).
		WithArgs(int64(7), 0.0).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`INSERT INTO balance_history`).
		WithArgs(int64(7), pgxmock.AnyArg(), pgxmock.AnyArg(), ChannelNormal, TxUsage,
			1.0, 0.0, 1.0, 0.0, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	r := &Repo{}
	res, err := r.DebitTx(context.Background(), mock, DebitRequest{
		CustomerID:      7,
		Hours:           1.0,
		SessionID:       &sessionID,
		TransactionType: TxUsage,
		Description:     "session 11 started (1 h)",
	})
	require.NoError(t, err)

	assert.Equal(t, ChannelNormal, res.Channel)
	assert.Equal(t, 1.0, res.AmountDebited)
	assert.Equal(t, 1.0, res.BalanceBefore)
	assert.Zero(t, res.BalanceAfter)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDebitMonthlyLineFlipsConsumed(t *testing.T) {
	mock := newMock(t)
	lineID := int64(3)

	mock.ExpectQuery(`SELECT customer_id, state, remaining_units, deduction_factor`).
		WithArgs(lineID).
		WillReturnRows(pgxmock.NewRows([]string{"customer_id", "state", "remaining_units", "deduction_factor"}).
			AddRow(int64(7), LineActive, 2.0, 2.0))
	mock.ExpectExec(`UPDATE monthly_lines SET remaining_units`).
		WithArgs(lineID, 0.0, LineConsumed).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`INSERT INTO balance_history`).
		WithArgs(int64(7), pgxmock.AnyArg(), pgxmock.AnyArg(), ChannelMonthly, TxUsage,
			2.0, 0.0, 2.0, 0.0, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	r := &Repo{}
	res, err := r.DebitTx(context.Background(), mock, DebitRequest{
		CustomerID:      7,
		Hours:           1.0,
		MonthlyLineID:   &lineID,
		TransactionType: TxUsage,
	})
	require.NoError(t, err)

	// one booked hour at factor 2 burns two units and exhausts the line
	assert.Equal(t, ChannelMonthly, res.Channel)
	assert.Equal(t, 2.0, res.AmountDebited)
	assert.Zero(t, res.BalanceAfter)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDebitInsufficientBalanceWritesNothing(t *testing.T) {
	mock := newMock(t)

	mock.ExpectQuery(`SELECT flat_hours FROM customers`).
		WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows([]string{"flat_hours"}).AddRow(0.25))

	r := &Repo{}
	_, err := r.DebitTx(context.Background(), mock, DebitRequest{
		CustomerID:      7,
		Hours:           1.0,
		TransactionType: TxUsage,
	})
	require.ErrorIs(t, err, ErrInsufficientBalance)

	// no balance update and no history row for a refused debit
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDebitStaleLineOwnership(t *testing.T) {
	mock := newMock(t)
	lineID := int64(3)

	mock.ExpectQuery(`SELECT customer_id, state, remaining_units, deduction_factor`).
		WithArgs(lineID).
		WillReturnRows(pgxmock.NewRows([]string{"customer_id", "state", "remaining_units", "deduction_factor"}).
			AddRow(int64(9), LineActive, 2.0, 2.0))

	r := &Repo{}
	_, err := r.DebitTx(context.Background(), mock, DebitRequest{
		CustomerID:      7,
		Hours:           1.0,
		MonthlyLineID:   &lineID,
		TransactionType: TxUsage,
	})
	require.ErrorIs(t, err, ErrStaleLine)
	assert.NoError(t, mock.ExpectationsWereMet())
}
