package sessions

import (
	"errors"
	"time"
)

type State string

const (
	StatePending   State = "pending"
	StateActive    State = "active"
	StateExtended  State = "extended"
	StateCompleted State = "completed"
	StateCancelled State = "cancelled"
)

// Occupying reports whether a session in this state holds a court slot.
func (s State) Occupying() bool {
	return s == StateActive || s == StateExtended
}

func (s State) Terminal() bool {
	return s == StateCompleted || s == StateCancelled
}

var (
	ErrNotFound               = errors.New("sessions: session not found")
	ErrInvalidTransition      = errors.New("sessions: invalid state transition")
	ErrCapacityExceeded       = errors.New("sessions: facility capacity exceeded")
	ErrDuplicateActiveSession = errors.New("sessions: customer already has an active session")
	ErrInvalidDuration        = errors.New("sessions: duration must be positive")
)

type Session struct {
	ID             int64
	CustomerID     int64
	State          State
	DurationHours  float64
	ExtendedHours  float64
	CompTag        *string
	MonthlyLineID  *int64
	StartTime      *time.Time
	EndTime        *time.Time
	CompletionTime *time.Time
	WarningSent    bool
	Notes          string
	CreatedAt      time.Time
	UpdatedAt      time.Time

	// QueueNumber is a derived projection, only meaningful while pending.
	QueueNumber int
}

// AdmissionMode is the tagged variant driving the debit step: either the
// session is comped through a promo channel, or it pays from a balance
// channel (the flat balance, or a pinned monthly line).
type AdmissionMode interface{ isAdmissionMode() }

type Comped struct{ Tag string }

type Paid struct{ MonthlyLineID *int64 }

func (Comped) isAdmissionMode() {}
func (Paid) isAdmissionMode()   {}

func (s *Session) AdmissionMode() AdmissionMode {
	if s.CompTag != nil && *s.CompTag != "" {
		return Comped{Tag: *s.CompTag}
	}
	return Paid{MonthlyLineID: s.MonthlyLineID}
}

// TotalHours is the booked time including extensions.
func (s *Session) TotalHours() float64 {
	return s.DurationHours + s.ExtendedHours
}

// MinutesRemaining is the whole minutes until the session's end time, zero
// once overdue or when no end time is set yet.
func (s *Session) MinutesRemaining(now time.Time) int {
	if s.EndTime == nil {
		return 0
	}
	return minutesRemaining(*s.EndTime, now)
}
