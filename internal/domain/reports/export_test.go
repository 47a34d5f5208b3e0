package reports

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/volanclub/courtd/internal/domain/ledger"
)

func TestBalanceHistoryWorkbook(t *testing.T) {
	created := time.Date(2026, 8, 1, 18, 30, 0, 0, time.UTC)
	entries := []ledger.HistoryEntry{
		{
			CustomerID:      42,
			Channel:         ledger.ChannelNormal,
			TransactionType: ledger.TxPurchase,
			AmountCredited:  10,
			BalanceBefore:   0,
			BalanceAfter:    10,
			Description:     "prepaid hours",
			CreatedAt:       created,
		},
		{
			CustomerID:      42,
			Channel:         ledger.ChannelNormal,
			TransactionType: ledger.TxUsage,
			AmountDebited:   1,
			BalanceBefore:   10,
			BalanceAfter:    9,
			Description:     "session 7 started (1 h)",
			CreatedAt:       created.Add(time.Hour),
		},
	}

	f, err := BalanceHistoryWorkbook(42, entries)
	require.NoError(t, err)
	sheet := f.GetSheetName(0)

	title, err := f.GetCellValue(sheet, "A1")
	require.NoError(t, err)
	assert.Equal(t, "Balance history, customer 42", title)

	header, err := f.GetCellValue(sheet, "B3")
	require.NoError(t, err)
	assert.Equal(t, "Type", header)

	txType, err := f.GetCellValue(sheet, "B4")
	require.NoError(t, err)
	assert.Equal(t, "purchase", txType)

	debited, err := f.GetCellValue(sheet, "D5")
	require.NoError(t, err)
	assert.Equal(t, "1", debited)

	desc, err := f.GetCellValue(sheet, "H5")
	require.NoError(t, err)
	assert.Equal(t, "session 7 started (1 h)", desc)
}

func TestBalanceHistoryWorkbookEmpty(t *testing.T) {
	f, err := BalanceHistoryWorkbook(1, nil)
	require.NoError(t, err)

	sheet := f.GetSheetName(0)
	header, err := f.GetCellValue(sheet, "A3")
	require.NoError(t, err)
	assert.Equal(t, "Date", header)
}
