package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PaymentMetrics tracks checkout orders and gateway callbacks.
type PaymentMetrics struct {
	OrdersCreatedTotal        *prometheus.CounterVec
	OrdersCreatedAmount       *prometheus.CounterVec
	OrderCreateFailures       *prometheus.CounterVec
	CallbacksTotal            *prometheus.CounterVec
	OrdersResolvedTotal       *prometheus.CounterVec
	GatewayRequestDuration    *prometheus.HistogramVec
	ReconciliationSweepsTotal prometheus.Counter
}

func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	f := promauto.With(reg)
	return &PaymentMetrics{
		OrdersCreatedTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "momo_orders_created_total",
				Help: "Orders created with a pay URL from the gateway",
			},
			[]string{"plan_id", "period"},
		),
		OrdersCreatedAmount: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "momo_orders_created_amount_total",
				Help: "Sum of created order amounts in VND",
			},
			[]string{"plan_id"},
		),
		OrderCreateFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "momo_order_create_failures_total",
				Help: "Order creation attempts that did not produce an order",
			},
			[]string{"reason"},
		),
		CallbacksTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "momo_callbacks_total",
				Help: "Gateway notifications by outcome",
			},
			[]string{"outcome"},
		),
		OrdersResolvedTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "momo_orders_resolved_total",
				Help: "Orders moved out of pending, by final status and source",
			},
			[]string{"status", "source"},
		),
		GatewayRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "momo_gateway_request_duration_seconds",
				Help:    "Latency of gateway API calls",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
			},
			[]string{"operation", "ok"},
		),
		ReconciliationSweepsTotal: f.NewCounter(
			prometheus.CounterOpts{
				Name: "momo_reconciliation_sweeps_total",
				Help: "Stale pending order sweeps run",
			},
		),
	}
}

func (m *PaymentMetrics) RecordOrderCreated(planID, period string, amount int64) {
	if m == nil {
		return
	}
	m.OrdersCreatedTotal.WithLabelValues(planID, period).Inc()
	m.OrdersCreatedAmount.WithLabelValues(planID).Add(float64(amount))
}

func (m *PaymentMetrics) RecordCreateFailure(reason string) {
	if m == nil {
		return
	}
	m.OrderCreateFailures.WithLabelValues(reason).Inc()
}

func (m *PaymentMetrics) RecordCallback(outcome string) {
	if m == nil {
		return
	}
	m.CallbacksTotal.WithLabelValues(outcome).Inc()
}

func (m *PaymentMetrics) RecordResolved(status, source string) {
	if m == nil {
		return
	}
	m.OrdersResolvedTotal.WithLabelValues(status, source).Inc()
}

func (m *PaymentMetrics) ObserveGateway(operation string, started time.Time, err error) {
	if m == nil {
		return
	}
	ok := "true"
	if err != nil {
		ok = "false"
	}
	m.GatewayRequestDuration.WithLabelValues(operation, ok).Observe(time.Since(started).Seconds())
}

func (m *PaymentMetrics) RecordSweep() {
	if m == nil {
		return
	}
	m.ReconciliationSweepsTotal.Inc()
}
