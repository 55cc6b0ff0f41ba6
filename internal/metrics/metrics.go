package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

// Balance query outcomes.
const (
	BalanceOK    = "ok"
	BalanceError = "error"
	BalanceStale = "stale"
)

var statuses = []string{"idle", "activating", "connected", "error"}

type Metrics struct {
	registry *prometheus.Registry

	balanceQueries *prometheus.CounterVec
	activations    *prometheus.CounterVec
	status         *prometheus.GaugeVec
	balance        *prometheus.GaugeVec
}

// New registers the bursa metrics on a fresh registry.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}
	m.balanceQueries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bursa",
		Name:      "balance_queries_total",
		Help:      "Balance queries by outcome (ok, error, stale)",
	}, []string{"status"})
	m.activations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bursa",
		Name:      "activations_total",
		Help:      "Connector activations by connector and result",
	}, []string{"connector", "result"})
	m.status = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "bursa",
		Name:      "connection_status",
		Help:      "1 for the current status of the connect control",
	}, []string{"status"})
	m.balance = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "bursa",
		Name:      "account_balance",
		Help:      "Last displayed balance in the display unit",
	}, []string{"account"})

	m.registry.MustRegister(m.balanceQueries, m.activations, m.status, m.balance)
	m.SetStatus("idle")
	return m
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveBalanceQuery(status string) {
	m.balanceQueries.WithLabelValues(status).Inc()
}

// BalanceQueries returns how many balance queries ended with status.
func (m *Metrics) BalanceQueries(status string) float64 {
	var metric dto.Metric
	if err := m.balanceQueries.WithLabelValues(status).Write(&metric); err != nil {
		return 0
	}
	return metric.GetCounter().GetValue()
}

func (m *Metrics) ObserveActivation(connector string, ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	m.activations.WithLabelValues(connector, result).Inc()
}

// SetStatus sets the gauge of status to 1 and every other status to 0.
func (m *Metrics) SetStatus(status string) {
	for _, s := range statuses {
		v := 0.0
		if s == status {
			v = 1
		}
		m.status.WithLabelValues(s).Set(v)
	}
}

func (m *Metrics) SetBalance(account string, value float64) {
	m.balance.WithLabelValues(account).Set(value)
}

// ResetBalances drops every account balance series.
func (m *Metrics) ResetBalances() {
	m.balance.Reset()
}
