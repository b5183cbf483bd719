package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Journal metrics
	TransactionsCreated  prometheus.Counter
	TransactionsPosted   prometheus.Counter
	TransactionsReversed prometheus.Counter
	PostingDuration      prometheus.Histogram
	PostingErrors        *prometheus.CounterVec
	IdempotentReplays    prometheus.Counter

	// Account metrics
	AccountsCreated   prometheus.Counter
	AccountsClosed    prometheus.Counter
	AccountOperations *prometheus.CounterVec

	// Balance metrics
	BalanceQueries       *prometheus.CounterVec
	SnapshotsCreated     prometheus.Counter
	ImbalancesDetected   prometheus.Counter
	ReconciliationDrifts prometheus.Counter

	// Coordinator metrics
	ContextsStarted      prometheus.Counter
	ContextsCommitted    prometheus.Counter
	ContextsRolledBack   *prometheus.CounterVec
	ContextsExpired      prometheus.Counter
	OperationDuration    *prometheus.HistogramVec
	CompensationFailures *prometheus.CounterVec
	ActiveContexts       prometheus.Gauge

	// Outbox metrics
	EventsPublished  *prometheus.CounterVec
	PublishErrors    prometheus.Counter
	OutboxLagSeconds prometheus.Histogram

	// API metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Database metrics
	DBQueries     *prometheus.CounterVec
	DBDuration    *prometheus.HistogramVec
	DBConnections prometheus.Gauge
	DBErrors      *prometheus.CounterVec

	// Redis metrics
	RedisOperations *prometheus.CounterVec
	RedisErrors     *prometheus.CounterVec

	// Rate limiting metrics
	RateLimitHits *prometheus.CounterVec

	// Audit metrics
	AuditRecordsCreated *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics
func New() *Metrics {
	return &Metrics{
		// Journal metrics
		TransactionsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "finledger_transactions_created_total",
			Help: "Total number of journal transactions created",
		}),
		TransactionsPosted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "finledger_transactions_posted_total",
			Help: "Total number of journal transactions posted",
		}),
		TransactionsReversed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "finledger_transactions_reversed_total",
			Help: "Total number of journal transactions reversed",
		}),
		PostingDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "finledger_posting_duration_seconds",
			Help:    "Duration of posting operations",
			Buckets: prometheus.DefBuckets,
		}),
		PostingErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finledger_posting_errors_total",
				Help: "Total number of posting errors by type",
			},
			[]string{"error_type"},
		),
		IdempotentReplays: promauto.NewCounter(prometheus.CounterOpts{
			Name: "finledger_idempotent_replays_total",
			Help: "Total number of duplicate submissions served from the existing record",
		}),

		// Account metrics
		AccountsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "finledger_accounts_created_total",
			Help: "Total number of accounts created",
		}),
		AccountsClosed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "finledger_accounts_closed_total",
			Help: "Total number of accounts closed",
		}),
		AccountOperations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finledger_account_operations_total",
				Help: "Total account operations by type",
			},
			[]string{"operation"},
		),

		// Balance metrics
		BalanceQueries: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finledger_balance_queries_total",
				Help: "Total balance queries by type",
			},
			[]string{"query"},
		),
		SnapshotsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "finledger_snapshots_created_total",
			Help: "Total number of balance snapshots created",
		}),
		ImbalancesDetected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "finledger_imbalances_detected_total",
			Help: "Total number of trial balance imbalances detected",
		}),
		ReconciliationDrifts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "finledger_reconciliation_drifts_total",
			Help: "Total number of discrepancies found by reconciliation",
		}),

		// Coordinator metrics
		ContextsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "finledger_contexts_started_total",
			Help: "Total number of distributed transaction contexts started",
		}),
		ContextsCommitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "finledger_contexts_committed_total",
			Help: "Total number of distributed transaction contexts committed",
		}),
		ContextsRolledBack: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finledger_contexts_rolled_back_total",
				Help: "Total number of contexts rolled back by outcome",
			},
			[]string{"outcome"},
		),
		ContextsExpired: promauto.NewCounter(prometheus.CounterOpts{
			Name: "finledger_contexts_expired_total",
			Help: "Total number of contexts expired by the sweeper",
		}),
		OperationDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "finledger_operation_duration_seconds",
				Help:    "Duration of collaborator operations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"service", "operation"},
		),
		CompensationFailures: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finledger_compensation_failures_total",
				Help: "Total number of failed compensations by service",
			},
			[]string{"service"},
		),
		ActiveContexts: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "finledger_active_contexts",
			Help: "Current number of active distributed transaction contexts",
		}),

		// Outbox metrics
		EventsPublished: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finledger_events_published_total",
				Help: "Total outbox events published by type",
			},
			[]string{"event_type"},
		),
		PublishErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "finledger_publish_errors_total",
			Help: "Total outbox publish failures",
		}),
		OutboxLagSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "finledger_outbox_lag_seconds",
			Help:    "Delay between event creation and publication",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}),

		// API metrics
		HTTPRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finledger_http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "finledger_http_duration_seconds",
				Help:    "HTTP request duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		// Database metrics
		DBQueries: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finledger_db_queries_total",
				Help: "Total database queries",
			},
			[]string{"operation", "table"},
		),
		DBDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "finledger_db_query_duration_seconds",
				Help:    "Database query duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "table"},
		),
		DBConnections: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "finledger_db_connections",
			Help: "Current number of database connections",
		}),
		DBErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finledger_db_errors_total",
				Help: "Total database errors",
			},
			[]string{"operation"},
		),

		// Redis metrics
		RedisOperations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finledger_redis_operations_total",
				Help: "Total Redis operations",
			},
			[]string{"operation"},
		),
		RedisErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finledger_redis_errors_total",
				Help: "Total Redis errors",
			},
			[]string{"operation"},
		),

		// Rate limiting metrics
		RateLimitHits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finledger_rate_limit_hits_total",
				Help: "Total rate limit hits",
			},
			[]string{"ip"},
		),

		// Audit metrics
		AuditRecordsCreated: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finledger_audit_records_total",
				Help: "Total audit records created",
			},
			[]string{"action", "status"},
		),
	}
}
