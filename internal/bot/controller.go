package bot

import (
	"context"
	"fmt"
	"math"
	"time"

	"jlp-hedge-bot/internal/hedge"

	"go.uber.org/zap"
)

// dustFloor is the smallest adjustment worth sending to the venue. Flagged
// adjustments below it are reported as skipped, never submitted.
const dustFloor = 1e-6

// MarketDataGateway supplies the account's collateral position, its live
// hedge positions, and current mark prices. Failures surface as
// hedge.ErrDataUnavailable to the caller.
type MarketDataGateway interface {
	CollateralPosition(ctx context.Context) (hedge.Position, error)
	HedgePositions(ctx context.Context) (hedge.Allocation, error)
	Price(ctx context.Context, asset hedge.Asset) (float64, error)
}

// OrderResult reports a filled market order.
type OrderResult struct {
	TxID      string  `json:"tx_id"`
	Direction string  `json:"direction"`
	Filled    float64 `json:"filled"`
}

// OrderExecutor submits one market order. Sign convention: a positive
// signedSize increases short exposure (a sell), a negative signedSize
// reduces it (a buy). The controller never calls it with |signedSize| below
// the dust floor. cycleKey identifies the logical cycle: resubmitting the
// same cycleKey and asset must not place a second order.
type OrderExecutor interface {
	SubmitMarketOrder(ctx context.Context, cycleKey string, asset hedge.Asset, signedSize float64) (OrderResult, error)
}

// AssetOutcome is the per-asset record of one cycle.
type AssetOutcome struct {
	Adjustment float64      `json:"adjustment"`
	Deviation  float64      `json:"deviation_pct"`
	Skipped    bool         `json:"skipped,omitempty"`
	SkipReason string       `json:"skip_reason,omitempty"`
	Order      *OrderResult `json:"order,omitempty"`
	Error      string       `json:"error,omitempty"`
}

// CycleResult is what one rebalancing cycle reports back to the scheduler.
// The scheduler, not the controller, applies Status and Error to the
// persisted bot.
type CycleResult struct {
	BotID      string
	Rebalanced bool
	Outcomes   map[hedge.Asset]AssetOutcome
	Status     Status
	Error      string
	Elapsed    time.Duration
}

type ControllerConfig struct {
	CollateralAsset string
	Weights         hedge.Weights
	MinOrderSizes   map[hedge.Asset]float64
	// CallTimeout bounds every external call so a hung venue cannot stall
	// a bot past its next tick.
	CallTimeout time.Duration
}

// Controller runs one rebalancing cycle for a bot: fetch positions, compute
// the ideal allocation, reconcile, and execute whatever adjustments clear
// the bot's threshold. It borrows the bot's configuration for the cycle and
// never stores registry state of its own.
type Controller struct {
	cfg      ControllerConfig
	gateway  MarketDataGateway
	executor OrderExecutor
	log      *zap.Logger
}

func NewController(cfg ControllerConfig, gateway MarketDataGateway, executor OrderExecutor, log *zap.Logger) *Controller {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 10 * time.Second
	}
	return &Controller{cfg: cfg, gateway: gateway, executor: executor, log: log}
}

// cycleKey identifies one logical cycle for order idempotency. It derives
// from the bot's persisted last run time, which only advances after a cycle
// finishes: a crash mid-cycle reruns under the same key, so the executor can
// reuse any order it already placed.
func cycleKey(b Bot) string {
	tag := "genesis"
	if b.LastRunTime != nil {
		tag = b.LastRunTime.UTC().Format("20060102T150405Z")
	}
	return b.ID + "-" + tag
}

func (c *Controller) RunCycle(ctx context.Context, b Bot) CycleResult {
	start := time.Now()
	res := CycleResult{
		BotID:    b.ID,
		Outcomes: make(map[hedge.Asset]AssetOutcome, len(hedge.HedgeAssets())),
		Status:   StatusRunning,
	}

	collateral, err := c.fetchCollateral(ctx)
	if err != nil {
		return c.fail(res, start, fmt.Errorf("%w: %v", hedge.ErrDataUnavailable, err))
	}
	current, err := c.fetchHedgePositions(ctx)
	if err != nil {
		return c.fail(res, start, fmt.Errorf("%w: %v", hedge.ErrDataUnavailable, err))
	}
	prices, err := c.fetchPrices(ctx)
	if err != nil {
		return c.fail(res, start, fmt.Errorf("%w: %v", hedge.ErrDataUnavailable, err))
	}

	if collateral.USDValue == 0 && collateral.Amount != 0 {
		c.log.Warn("collateral usd value is zero for non-zero amount, treating as suspect input",
			zap.String("bot_id", b.ID),
			zap.Float64("amount", collateral.Amount),
		)
	}

	ideal, err := hedge.IdealAllocation(collateral, c.cfg.Weights, prices)
	if err != nil {
		return c.fail(res, start, err)
	}
	plan := hedge.Reconcile(current, ideal, c.cfg.MinOrderSizes, b.MinRebalanceThreshold)
	if !plan.RebalanceNeeded {
		for _, asset := range hedge.HedgeAssets() {
			res.Outcomes[asset] = AssetOutcome{
				Adjustment: plan.Plan[asset],
				Deviation:  plan.Deviations[asset],
				Skipped:    true,
				SkipReason: "within threshold",
			}
		}
		res.Elapsed = time.Since(start)
		c.log.Info("no rebalance needed",
			zap.String("bot_id", b.ID),
			zap.Float64("collateral_usd", collateral.USDValue),
		)
		return res
	}

	res.Rebalanced = true
	key := cycleKey(b)
	for _, asset := range hedge.HedgeAssets() {
		outcome := AssetOutcome{
			Adjustment: plan.Plan[asset],
			Deviation:  plan.Deviations[asset],
		}
		switch {
		case plan.Deviations[asset] <= b.MinRebalanceThreshold:
			outcome.Skipped = true
			outcome.SkipReason = "within threshold"
		case math.Abs(plan.Plan[asset]) < dustFloor:
			outcome.Skipped = true
			outcome.SkipReason = "dust"
		default:
			order, err := c.submit(ctx, key, asset, plan.Plan[asset])
			if err != nil {
				// One failed leg must not abandon the others.
				outcome.Error = err.Error()
				res.Status = StatusError
				res.Error = fmt.Sprintf("%s order failed: %v", asset, err)
				c.log.Warn("adjustment order failed",
					zap.String("bot_id", b.ID),
					zap.String("asset", string(asset)),
					zap.Float64("adjustment", plan.Plan[asset]),
					zap.Error(err),
				)
			} else {
				outcome.Order = &order
				c.log.Info("adjustment order filled",
					zap.String("bot_id", b.ID),
					zap.String("asset", string(asset)),
					zap.Float64("adjustment", plan.Plan[asset]),
					zap.String("tx_id", order.TxID),
				)
			}
		}
		res.Outcomes[asset] = outcome
	}
	res.Elapsed = time.Since(start)
	return res
}

func (c *Controller) fail(res CycleResult, start time.Time, err error) CycleResult {
	res.Status = StatusError
	res.Error = err.Error()
	res.Elapsed = time.Since(start)
	return res
}

func (c *Controller) fetchCollateral(ctx context.Context) (hedge.Position, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()
	return c.gateway.CollateralPosition(ctx)
}

func (c *Controller) fetchHedgePositions(ctx context.Context) (hedge.Allocation, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()
	return c.gateway.HedgePositions(ctx)
}

func (c *Controller) fetchPrices(ctx context.Context) (map[hedge.Asset]float64, error) {
	prices := make(map[hedge.Asset]float64, len(hedge.HedgeAssets()))
	for _, asset := range hedge.HedgeAssets() {
		if c.cfg.Weights[asset] == 0 {
			continue
		}
		callCtx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
		price, err := c.gateway.Price(callCtx, asset)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("price %s: %w", asset, err)
		}
		prices[asset] = price
	}
	return prices, nil
}

func (c *Controller) submit(ctx context.Context, cycleKey string, asset hedge.Asset, signedSize float64) (OrderResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()
	return c.executor.SubmitMarketOrder(ctx, cycleKey, asset, signedSize)
}
