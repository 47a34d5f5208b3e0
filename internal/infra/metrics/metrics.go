package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "courtd_sessions_started_total",
		Help: "Sessions admitted to the court.",
	})

	SessionsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "courtd_sessions_completed_total",
		Help: "Sessions completed, by trigger.",
	}, []string{"trigger"}) // manual|sweep

	CapacityRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "courtd_capacity_rejections_total",
		Help: "Admissions rejected because the facility was full.",
	})

	InsufficientBalance = promauto.NewCounter(prometheus.CounterOpts{
		Name: "courtd_insufficient_balance_total",
		Help: "Debits rejected for insufficient balance.",
	})

	BalanceDebits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "courtd_balance_debits_total",
		Help: "Successful balance debits, by channel.",
	}, []string{"channel"}) // normal|monthly

	WarningsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "courtd_expiry_warnings_sent_total",
		Help: "Near-expiry warnings delivered to the notification sink.",
	})
)
