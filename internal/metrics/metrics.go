package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus metrics del token endpoint y de los writer consumers. Viven en
// un paquete propio para evitar ciclos de import entre HTTP y writers.

var (
	TokenRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "token_requests_total",
		Help: "Requests al token endpoint por resultado (issued|rate_limited|<error code>)",
	}, []string{"outcome"})

	TokenGenerationLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "token_generation_latency_ms",
		Help:    "Latencia end-to-end de emisión en milisegundos",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})

	AuditFallbackWrites = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "audit_fallback_writes_total",
		Help: "Registros de auditoría que cayeron al object storage",
	})

	WriterEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "writer_events_total",
		Help: "Eventos procesados por dominio y tipo",
	}, []string{"domain", "type"})

	WriterFanoutPatches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "writer_fanout_patches_total",
		Help: "Entradas del token-generation index parcheadas en fan-out",
	}, []string{"domain"})
)

// Register registra todas las métricas en el registry dado (default si nil).
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{
		TokenRequests,
		TokenGenerationLatency,
		AuditFallbackWrites,
		WriterEvents,
		WriterFanoutPatches,
	} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}
