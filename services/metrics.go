package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	loanTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "loan_tracker",
		Name:      "loan_transitions_total",
		Help:      "Loans entering each status.",
	}, []string{"status"})

	reportsGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "loan_tracker",
		Name:      "reports_generated_total",
		Help:      "Generated reports by kind.",
	}, []string{"kind"})

	loginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "loan_tracker",
		Name:      "login_attempts_total",
		Help:      "Login attempts by method and result.",
	}, []string{"method", "result"})
)
