package ledger

import "time"

type Channel string

const (
	ChannelNormal  Channel = "normal"
	ChannelMonthly Channel = "monthly"
)

type TransactionType string

const (
	TxPurchase   TransactionType = "purchase"
	TxUsage      TransactionType = "usage"
	TxExtension  TransactionType = "extension"
	TxRefund     TransactionType = "refund"
	TxAdjustment TransactionType = "adjustment"
	TxExpiry     TransactionType = "expiry"
)

type LineState string

const (
	LineActive   LineState = "active"
	LineConsumed LineState = "consumed"
	LineExpired  LineState = "expired"
)

// MonthlyLine is one purchased package allocation. Hours consumed from it are
// multiplied by DeductionFactor to get units debited.
type MonthlyLine struct {
	ID              int64
	CustomerID      int64
	PackageName     string
	InitialUnits    float64
	RemainingUnits  float64
	DeductionFactor float64
	ExpiryDate      time.Time
	State           LineState
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (l MonthlyLine) HoursAvailable() float64 {
	if l.DeductionFactor <= 0 {
		return l.RemainingUnits
	}
	return l.RemainingUnits / l.DeductionFactor
}

// HistoryEntry is an append-only audit record. Exactly one exists for every
// balance mutation performed by this engine.
type HistoryEntry struct {
	ID              int64
	CustomerID      int64
	SessionID       *int64
	MonthlyLineID   *int64
	Channel         Channel
	TransactionType TransactionType
	AmountDebited   float64
	AmountCredited  float64
	BalanceBefore   float64
	BalanceAfter    float64
	Description     string
	CreatedAt       time.Time
}
