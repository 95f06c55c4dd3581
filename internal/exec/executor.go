package exec

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"jlp-hedge-bot/internal/bot"
	"jlp-hedge-bot/internal/hedge"
	"jlp-hedge-bot/internal/metrics"
	"jlp-hedge-bot/internal/state"

	"go.uber.org/zap"
)

// Order is one adjustment to submit. SignedSize follows the controller's
// convention: positive sells (adds short exposure), negative buys.
type Order struct {
	Asset         hedge.Asset
	SignedSize    float64
	ClientOrderID string
}

// Venue places a single order at the exchange.
type Venue interface {
	PlaceOrder(ctx context.Context, order Order) (bot.OrderResult, error)
}

// Executor is the controller's OrderExecutor. The client order id is derived
// from the caller's cycle key and the asset, so the same logical adjustment
// always re-keys identically: a crash between submit and persist replays the
// stored result on restart instead of double-placing. The store is an
// optimization; if it misbehaves the order still goes out. There is
// deliberately no retry here: a failed order waits for the bot's next
// scheduled cycle.
type Executor struct {
	venue   Venue
	store   state.Store
	metrics *metrics.Metrics
	log     *zap.Logger

	mu    sync.Mutex
	cache map[string]bot.OrderResult
}

func New(venue Venue, store state.Store, m *metrics.Metrics, log *zap.Logger) *Executor {
	if m == nil {
		m = metrics.NewNoop()
	}
	return &Executor{
		venue:   venue,
		store:   store,
		metrics: m,
		log:     log,
		cache:   make(map[string]bot.OrderResult),
	}
}

func (e *Executor) SubmitMarketOrder(ctx context.Context, cycleKey string, asset hedge.Asset, signedSize float64) (bot.OrderResult, error) {
	cloid := fmt.Sprintf("adj-%s-%s", cycleKey, asset)
	cacheKey := "cloid:" + cloid

	e.mu.Lock()
	if res, ok := e.cache[cacheKey]; ok {
		e.mu.Unlock()
		return res, nil
	}
	e.mu.Unlock()
	if e.store != nil {
		if raw, ok, err := e.store.Get(ctx, cacheKey); err != nil {
			e.log.Warn("order cache read failed, submitting anyway", zap.String("cloid", cloid), zap.Error(err))
		} else if ok {
			var res bot.OrderResult
			if err := json.Unmarshal([]byte(raw), &res); err == nil {
				e.mu.Lock()
				e.cache[cacheKey] = res
				e.mu.Unlock()
				return res, nil
			}
			e.log.Warn("discarding unreadable cached order result", zap.String("cloid", cloid))
		}
	}

	res, err := e.venue.PlaceOrder(ctx, Order{Asset: asset, SignedSize: signedSize, ClientOrderID: cloid})
	if err != nil {
		e.metrics.OrdersFailed.Inc()
		return bot.OrderResult{}, err
	}
	e.metrics.OrdersPlaced.Inc()

	if e.store != nil {
		payload, err := json.Marshal(res)
		if err == nil {
			if err := e.store.Set(ctx, cacheKey, string(payload)); err != nil {
				e.log.Warn("failed to persist order result", zap.String("cloid", cloid), zap.Error(err))
			}
		}
	}
	e.mu.Lock()
	e.cache[cacheKey] = res
	e.mu.Unlock()
	return res, nil
}
