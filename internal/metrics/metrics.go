package metrics

type Counter interface {
	Inc()
}

type Metrics struct {
	CyclesRun    Counter
	CyclesFailed Counter
	Rebalances   Counter
	OrdersPlaced Counter
	OrdersFailed Counter
}

type noopCounter struct{}

func (noopCounter) Inc() {}

func NewNoop() *Metrics {
	n := noopCounter{}
	return &Metrics{
		CyclesRun:    n,
		CyclesFailed: n,
		Rebalances:   n,
		OrdersPlaced: n,
		OrdersFailed: n,
	}
}
