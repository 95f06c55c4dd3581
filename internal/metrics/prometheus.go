package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const promNamespace = "jlp_hedge_bot"

type promCounter struct {
	counter prometheus.Counter
}

func (p promCounter) Inc() {
	p.counter.Inc()
}

type Prometheus struct {
	Metrics *Metrics

	registry     *prometheus.Registry
	cyclesRun    prometheus.Counter
	cyclesFailed prometheus.Counter
	rebalances   prometheus.Counter
	ordersPlaced prometheus.Counter
	ordersFailed prometheus.Counter
}

func NewPrometheus() *Prometheus {
	registry := prometheus.NewRegistry()
	cyclesRun := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "cycles_total",
		Help:      "Total number of rebalancing cycles completed.",
	})
	cyclesFailed := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "cycles_failed_total",
		Help:      "Total number of cycles that finished in ERROR.",
	})
	rebalances := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "rebalances_total",
		Help:      "Total number of cycles that issued adjustment orders.",
	})
	ordersPlaced := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "orders_placed_total",
		Help:      "Total number of adjustment orders placed.",
	})
	ordersFailed := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "orders_failed_total",
		Help:      "Total number of order placement failures.",
	})

	registry.MustRegister(cyclesRun, cyclesFailed, rebalances, ordersPlaced, ordersFailed)

	m := &Metrics{
		CyclesRun:    promCounter{cyclesRun},
		CyclesFailed: promCounter{cyclesFailed},
		Rebalances:   promCounter{rebalances},
		OrdersPlaced: promCounter{ordersPlaced},
		OrdersFailed: promCounter{ordersFailed},
	}

	return &Prometheus{
		Metrics:      m,
		registry:     registry,
		cyclesRun:    cyclesRun,
		cyclesFailed: cyclesFailed,
		rebalances:   rebalances,
		ordersPlaced: ordersPlaced,
		ordersFailed: ordersFailed,
	}
}

func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
