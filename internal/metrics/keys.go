package metrics

import (
	"time"

	"github.com/dropDatabas3/civicauth/internal/jwt"
	"github.com/prometheus/client_golang/prometheus"
)

// Métricas de dominio (claves, tokens, rotación). Viven en un paquete aparte para que
// rotation y http puedan registrar sin importarse entre sí.

var (
	RotationRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "key_rotation_runs_total",
		Help: "Ejecuciones de triggers de rotación por resultado",
	}, []string{"task", "result"}) // result: ok|error|skipped

	RotationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "key_rotation_duration_seconds",
		Help:    "Duración de cada trigger de rotación",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
	}, []string{"task"})

	TokensIssued = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tokens_issued_total",
		Help: "Tokens emitidos por tipo",
	}, []string{"kind"}) // access|refresh

	TokenVerifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "token_verifications_total",
		Help: "Verificaciones de token por resultado",
	}, []string{"result"})
)

// KeySource es lo que necesita el collector; *jwt.KeyStore lo cumple.
type KeySource interface {
	Keys() []jwt.KeyInfo
}

type keyCollector struct {
	src        KeySource
	countDesc  *prometheus.Desc
	currentAge *prometheus.Desc
}

func newKeyCollector(src KeySource) *keyCollector {
	return &keyCollector{
		src:        src,
		countDesc:  prometheus.NewDesc("signing_keys", "Claves de firma por estado", []string{"status"}, nil),
		currentAge: prometheus.NewDesc("signing_key_current_age_seconds", "Antigüedad de la clave de firma actual", nil, nil),
	}
}

func (c *keyCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.countDesc
	ch <- c.currentAge
}

func (c *keyCollector) Collect(ch chan<- prometheus.Metric) {
	counts := map[jwt.KeyStatus]int{jwt.KeyActive: 0, jwt.KeyDeprecated: 0}
	for _, k := range c.src.Keys() {
		counts[k.Status]++
		if k.Current {
			ch <- prometheus.MustNewConstMetric(c.currentAge, prometheus.GaugeValue, time.Since(k.CreatedAt).Seconds())
		}
	}
	for status, n := range counts {
		ch <- prometheus.MustNewConstMetric(c.countDesc, prometheus.GaugeValue, float64(n), string(status))
	}
}

// Register registra las métricas de dominio (y el collector de claves si src != nil).
func Register(reg prometheus.Registerer, src KeySource) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	cs := []prometheus.Collector{RotationRuns, RotationDuration, TokensIssued, TokenVerifications}
	if src != nil {
		cs = append(cs, newKeyCollector(src))
	}
	for _, c := range cs {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}

// ObserveRotation registra una corrida de un trigger.
func ObserveRotation(task, result string, d time.Duration) {
	RotationRuns.WithLabelValues(task, result).Inc()
	if result != "skipped" {
		RotationDuration.WithLabelValues(task).Observe(d.Seconds())
	}
}

// TokenIssued cuenta un token emitido (kind: access|refresh).
func TokenIssued(kind string) {
	TokensIssued.WithLabelValues(kind).Inc()
}

// TokenVerified cuenta una verificación (result: ok|expired|invalid_signature|...).
func TokenVerified(result string) {
	TokenVerifications.WithLabelValues(result).Inc()
}
