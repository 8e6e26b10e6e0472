// Package metrics exposes exchange activity as Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nulln0ne/uniswapv2-engine/pkg/amm"
)

const namespace = "amm"

// Metrics holds the exchange collectors and the registry they live in.
type Metrics struct {
	registry *prometheus.Registry

	PairsTotal      prometheus.Gauge
	EventsTotal     *prometheus.CounterVec
	SwapVolume      *prometheus.CounterVec
	Reserves        *prometheus.GaugeVec
	ShareSupply     *prometheus.GaugeVec
	OperationErrors *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		PairsTotal: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pairs_total",
			Help:      "Number of registered pairs",
		}),
		EventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Committed ledger events by kind",
		}, []string{"kind"}),
		SwapVolume: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "swap",
			Name:      "volume_total",
			Help:      "Swap input volume in base units",
		}, []string{"pair", "token"}),
		Reserves: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pair",
			Name:      "reserve",
			Help:      "Current pair reserves in base units",
		}, []string{"pair", "token"}),
		ShareSupply: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pair",
			Name:      "share_supply",
			Help:      "Outstanding liquidity shares",
		}, []string{"pair"}),
		OperationErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operation_errors_total",
			Help:      "Failed exchange operations by operation",
		}, []string{"op"}),
	}
}

// Observe subscribes to x and keeps the collectors in step with its events.
func (m *Metrics) Observe(x *amm.Exchange) {
	m.PairsTotal.Set(float64(x.Factory().AllPairsLength()))
	for _, p := range x.Factory().Pairs() {
		m.recordPair(p)
	}
	x.Subscribe(func(ev amm.Event) {
		m.EventsTotal.WithLabelValues(ev.Kind.String()).Inc()
		p, ok := x.Factory().PairAt(ev.Pair)
		if !ok {
			return
		}
		switch ev.Kind {
		case amm.EventPairCreated:
			m.PairsTotal.Set(float64(x.Factory().AllPairsLength()))
		case amm.EventSync:
			m.Reserves.WithLabelValues(p.Address().Hex(), p.Token0().Hex()).Set(ev.Reserve0.Float64())
			m.Reserves.WithLabelValues(p.Address().Hex(), p.Token1().Hex()).Set(ev.Reserve1.Float64())
		case amm.EventSwap:
			if ev.Amount0In != nil && !ev.Amount0In.IsZero() {
				m.SwapVolume.WithLabelValues(p.Address().Hex(), p.Token0().Hex()).Add(ev.Amount0In.Float64())
			}
			if ev.Amount1In != nil && !ev.Amount1In.IsZero() {
				m.SwapVolume.WithLabelValues(p.Address().Hex(), p.Token1().Hex()).Add(ev.Amount1In.Float64())
			}
		case amm.EventMint, amm.EventBurn:
			m.ShareSupply.WithLabelValues(p.Address().Hex()).Set(p.TotalSupply().Float64())
		}
	})
}

func (m *Metrics) recordPair(p *amm.Pair) {
	r0, r1, _ := p.Reserves()
	m.Reserves.WithLabelValues(p.Address().Hex(), p.Token0().Hex()).Set(r0.Float64())
	m.Reserves.WithLabelValues(p.Address().Hex(), p.Token1().Hex()).Set(r1.Float64())
	m.ShareSupply.WithLabelValues(p.Address().Hex()).Set(p.TotalSupply().Float64())
}

// Failed counts a failed operation.
func (m *Metrics) Failed(op string) {
	m.OperationErrors.WithLabelValues(op).Inc()
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
