package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Total number of orders created",
	})

	OrderTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_transitions_total",
		Help: "Total number of committed order status transitions",
	}, []string{"status"})

	OrderOperationsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_operations_failed_total",
		Help: "Total number of failed order operations",
	}, []string{"operation", "reason"})

	ReservationsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reservations_created_total",
		Help: "Total number of reservations created",
	})

	ReservationsRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reservations_rejected_total",
		Help: "Total number of rejected reservation requests",
	}, []string{"reason"})

	ReservationsTerminatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reservations_terminated_total",
		Help: "Total number of reservations consumed or released",
	}, []string{"status"})

	ReservationLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "reservation_latency_seconds",
		Help:    "Latency of reservation creation",
		Buckets: prometheus.DefBuckets,
	})

	InventoryTransactionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_transactions_total",
		Help: "Total number of recorded inventory transactions",
	}, []string{"type"})

	StockMutationsRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_mutations_rejected_total",
		Help: "Total number of stock mutations rejected by quantity guards",
	}, []string{"reason"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
