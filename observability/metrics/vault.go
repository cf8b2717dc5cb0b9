package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// VaultMetrics records vault engine activity.
type VaultMetrics struct {
	Operations   *prometheus.CounterVec
	Claims       prometheus.Counter
	EpochsOpened prometheus.Counter
	Clamps       prometheus.Counter
	EpochPower   prometheus.Gauge
}

var (
	vaultOnce     sync.Once
	vaultRegistry *VaultMetrics
)

// Vault returns the lazily-initialised vault metrics registry.
func Vault() *VaultMetrics {
	vaultOnce.Do(func() {
		vaultRegistry = &VaultMetrics{
			Operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lockvault",
				Subsystem: "engine",
				Name:      "operations_total",
				Help:      "Total vault operations segmented by kind and outcome.",
			}, []string{"op", "outcome"}),
			Claims: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "lockvault",
				Subsystem: "engine",
				Name:      "claims_total",
				Help:      "Total settled reward claims.",
			}),
			EpochsOpened: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "lockvault",
				Subsystem: "engine",
				Name:      "epochs_opened_total",
				Help:      "Total reward epochs opened.",
			}),
			Clamps: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "lockvault",
				Subsystem: "engine",
				Name:      "accumulator_clamps_total",
				Help:      "Accumulator subtractions floored at zero.",
			}),
			EpochPower: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "lockvault",
				Subsystem: "engine",
				Name:      "current_epoch_total_power",
				Help:      "Running integrated power total of the current epoch.",
			}),
		}
	})
	return vaultRegistry
}

// Register attaches the vault collectors to the supplied registry.
func (m *VaultMetrics) Register(reg prometheus.Registerer) {
	reg.MustRegister(m.Operations, m.Claims, m.EpochsOpened, m.Clamps, m.EpochPower)
}

// ObserveOperation counts one engine operation with its outcome.
func (m *VaultMetrics) ObserveOperation(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.Operations.WithLabelValues(op, outcome).Inc()
}
