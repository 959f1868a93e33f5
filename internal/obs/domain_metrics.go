package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// CRMOperationTotal counts CRM REST calls by operation and outcome.
	CRMOperationTotal *prometheus.CounterVec
	// CRMOperationLatency records CRM call latency in milliseconds.
	CRMOperationLatency *prometheus.HistogramVec
	// OrderSubmitTotal counts order placement attempts by outcome.
	OrderSubmitTotal *prometheus.CounterVec
	// GRNUpdateTotal counts goods receipt line updates by outcome.
	GRNUpdateTotal *prometheus.CounterVec
	// InventoryPushTotal counts asynchronous inventory pushes to the CRM.
	InventoryPushTotal *prometheus.CounterVec
	// InventoryPushDLQ counts inventory pushes moved to the dead-letter queue.
	InventoryPushDLQ prometheus.Counter
	// CartMutationTotal counts cart write operations by kind.
	CartMutationTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		CRMOperationTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "crm_operation_total",
			Help:      "Count of CRM REST operations by outcome.",
		}, []string{"operation", "result"})
		CRMOperationLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "crm_operation_duration_ms",
			Help:      "Latency of CRM REST operations in milliseconds.",
			Buckets:   []float64{25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		}, []string{"operation"})
		OrderSubmitTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_submit_total",
			Help:      "Count of order placement attempts by outcome.",
		}, []string{"result"})
		GRNUpdateTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grn_update_total",
			Help:      "Count of goods receipt line updates by outcome.",
		}, []string{"result"})
		InventoryPushTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inventory_push_total",
			Help:      "Count of asynchronous inventory updates pushed to the CRM.",
		}, []string{"result"})
		InventoryPushDLQ = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inventory_push_dlq_total",
			Help:      "Number of inventory pushes moved to the dead-letter queue.",
		})
		CartMutationTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_mutation_total",
			Help:      "Count of cart write operations by kind.",
		}, []string{"kind"})

		mustRegisterCollector(reg, CRMOperationTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CRMOperationTotal = v
			}
		})
		mustRegisterCollector(reg, CRMOperationLatency, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.HistogramVec); ok {
				CRMOperationLatency = v
			}
		})
		mustRegisterCollector(reg, OrderSubmitTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				OrderSubmitTotal = v
			}
		})
		mustRegisterCollector(reg, GRNUpdateTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				GRNUpdateTotal = v
			}
		})
		mustRegisterCollector(reg, InventoryPushTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				InventoryPushTotal = v
			}
		})
		mustRegisterCollector(reg, InventoryPushDLQ, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				InventoryPushDLQ = v
			}
		})
		mustRegisterCollector(reg, CartMutationTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CartMutationTotal = v
			}
		})
	})
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
