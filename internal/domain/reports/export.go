package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/volanclub/courtd/internal/domain/ledger"
)

type HistorySource interface {
	ListHistory(ctx context.Context, customerID int64, from, to time.Time) ([]ledger.HistoryEntry, error)
}

type Service struct {
	history HistorySource
}

func NewService(history HistorySource) *Service { return &Service{history: history} }

// BalanceHistoryExport builds an XLSX workbook of a customer's balance
// history for reconciliation.
func (s *Service) BalanceHistoryExport(ctx context.Context, customerID int64, from, to time.Time) (*excelize.File, error) {
	entries, err := s.history.ListHistory(ctx, customerID, from, to)
	if err != nil {
		return nil, err
	}
	return BalanceHistoryWorkbook(customerID, entries)
}

func BalanceHistoryWorkbook(customerID int64, entries []ledger.HistoryEntry) (*excelize.File, error) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	if err := f.SetCellValue(sheet, "A1", fmt.Sprintf("Balance history, customer %d", customerID)); err != nil {
		return nil, err
	}

	rowIdx := 3
	_ = f.SetCellValue(sheet, fmt.Sprintf("A%d", rowIdx), "Date")
	_ = f.SetCellValue(sheet, fmt.Sprintf("B%d", rowIdx), "Type")
	_ = f.SetCellValue(sheet, fmt.Sprintf("C%d", rowIdx), "Channel")
	_ = f.SetCellValue(sheet, fmt.Sprintf("D%d", rowIdx), "Debited")
	_ = f.SetCellValue(sheet, fmt.Sprintf("E%d", rowIdx), "Credited")
	_ = f.SetCellValue(sheet, fmt.Sprintf("F%d", rowIdx), "Before")
	_ = f.SetCellValue(sheet, fmt.Sprintf("G%d", rowIdx), "After")
	_ = f.SetCellValue(sheet, fmt.Sprintf("H%d", rowIdx), "Description")

	for _, e := range entries {
		rowIdx++
		_ = f.SetCellValue(sheet, fmt.Sprintf("A%d", rowIdx), e.CreatedAt.Format("2006-01-02 15:04"))
		_ = f.SetCellValue(sheet, fmt.Sprintf("B%d", rowIdx), string(e.TransactionType))
		_ = f.SetCellValue(sheet, fmt.Sprintf("C%d", rowIdx), string(e.Channel))
		_ = f.SetCellValue(sheet, fmt.Sprintf("D%d", rowIdx), e.AmountDebited)
		_ = f.SetCellValue(sheet, fmt.Sprintf("E%d", rowIdx), e.AmountCredited)
		_ = f.SetCellValue(sheet, fmt.Sprintf("F%d", rowIdx), e.BalanceBefore)
		_ = f.SetCellValue(sheet, fmt.Sprintf("G%d", rowIdx), e.BalanceAfter)
		_ = f.SetCellValue(sheet, fmt.Sprintf("H%d", rowIdx), e.Description)
	}

	return f, nil
}
