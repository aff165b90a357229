package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/ruralpay/pointledger/internal/locks"
)

const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Collector holds the point ledger's domain metrics.
type Collector struct {
	mutations *prometheus.CounterVec
	lockWait  prometheus.Histogram
}

// NewCollector registers the metrics on reg. When lp is non-nil the number of locks it holds
// is exported as a gauge.
func NewCollector(reg prometheus.Registerer, lp locks.Provider) *Collector {
	factory := promauto.With(reg)

	c := &Collector{
		mutations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "point_mutations_total",
			Help: "Charge and use attempts by outcome",
		}, []string{"type", "outcome"}),
		lockWait: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "point_lock_wait_seconds",
			Help:    "Time spent waiting for an account lock",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
	}

	if lp != nil {
		factory.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "point_lock_registry_size",
			Help: "Distinct account locks held by the registry",
		}, func() float64 { return float64(lp.Len()) })
	}

	return c
}

func (c *Collector) ObserveMutation(txType, outcome string) {
	if c == nil {
		return
	}
	c.mutations.WithLabelValues(txType, outcome).Inc()
}

func (c *Collector) ObserveLockWait(d time.Duration) {
	if c == nil {
		return
	}
	c.lockWait.Observe(d.Seconds())
}
