package venue

import (
	"context"
	"fmt"
	"time"

	"jlp-hedge-bot/internal/bot"
	"jlp-hedge-bot/internal/exec"
	"jlp-hedge-bot/internal/hedge"
	"jlp-hedge-bot/internal/venue/exchange"
	"jlp-hedge-bot/internal/venue/rest"
	"jlp-hedge-bot/internal/venue/ws"

	"go.uber.org/zap"
)

type Config struct {
	// AccountAddress is the wallet whose positions are hedged.
	AccountAddress string
	// CollateralToken is the spot token symbol treated as the collateral
	// position (the LP token).
	CollateralToken string
	// SlippagePct caps how far an IOC "market" order's limit price sits
	// from the reference mid.
	SlippagePct float64
	// PriceMaxAge bounds how stale a cached ws mid may be before the
	// gateway falls back to REST.
	PriceMaxAge time.Duration
}

// Gateway binds the venue's rest/ws/exchange clients into the core's
// MarketDataGateway and the executor's Venue. Hedge positions are mapped to
// short magnitude: the venue reports signed sizes (negative = short), the
// core works with positive short sizes.
type Gateway struct {
	cfg      Config
	rest     *rest.Client
	feed     *ws.Feed
	exchange *exchange.Client
	log      *zap.Logger
}

var _ bot.MarketDataGateway = (*Gateway)(nil)
var _ exec.Venue = (*Gateway)(nil)

func NewGateway(cfg Config, restClient *rest.Client, feed *ws.Feed, exchangeClient *exchange.Client, log *zap.Logger) *Gateway {
	if cfg.SlippagePct <= 0 {
		cfg.SlippagePct = 1
	}
	if cfg.PriceMaxAge <= 0 {
		cfg.PriceMaxAge = 30 * time.Second
	}
	return &Gateway{
		cfg:      cfg,
		rest:     restClient,
		feed:     feed,
		exchange: exchangeClient,
		log:      log,
	}
}

func (g *Gateway) CollateralPosition(ctx context.Context) (hedge.Position, error) {
	amount, err := g.rest.SpotBalance(ctx, g.cfg.AccountAddress, g.cfg.CollateralToken)
	if err != nil {
		return hedge.Position{}, fmt.Errorf("collateral balance: %w", err)
	}
	if amount == 0 {
		return hedge.Position{}, nil
	}
	price, err := g.mid(ctx, g.cfg.CollateralToken)
	if err != nil {
		return hedge.Position{}, fmt.Errorf("collateral price: %w", err)
	}
	return hedge.Position{Amount: amount, USDValue: amount * price}, nil
}

func (g *Gateway) HedgePositions(ctx context.Context) (hedge.Allocation, error) {
	positions, err := g.rest.PerpPositions(ctx, g.cfg.AccountAddress)
	if err != nil {
		return nil, fmt.Errorf("perp positions: %w", err)
	}
	alloc := hedge.NewAllocation()
	for _, pos := range positions {
		asset := hedge.Asset(pos.Coin)
		if _, ok := alloc[asset]; !ok {
			continue
		}
		price, err := g.mid(ctx, pos.Coin)
		if err != nil {
			return nil, fmt.Errorf("hedge price %s: %w", pos.Coin, err)
		}
		// Negative szi (a short) becomes positive short magnitude.
		amount := -pos.Szi
		alloc[asset] = hedge.Position{Amount: amount, USDValue: amount * price}
	}
	return alloc, nil
}

func (g *Gateway) Price(ctx context.Context, asset hedge.Asset) (float64, error) {
	return g.mid(ctx, string(asset))
}

// PlaceOrder turns a signed adjustment into an IOC limit at the mid shifted
// by the slippage cap: selling prices below mid, buying above, so the order
// crosses the book like a market order without unbounded slippage.
func (g *Gateway) PlaceOrder(ctx context.Context, order exec.Order) (bot.OrderResult, error) {
	if order.SignedSize == 0 {
		return bot.OrderResult{}, fmt.Errorf("zero-size order for %s", order.Asset)
	}
	isBuy := order.SignedSize < 0
	size := order.SignedSize
	direction := "short"
	if isBuy {
		size = -size
		direction = "long"
	}
	mid, err := g.mid(ctx, string(order.Asset))
	if err != nil {
		return bot.OrderResult{}, fmt.Errorf("reference price %s: %w", order.Asset, err)
	}
	limit := mid * (1 - g.cfg.SlippagePct/100)
	if isBuy {
		limit = mid * (1 + g.cfg.SlippagePct/100)
	}
	price, err := exchange.FloatToWire(limit)
	if err != nil {
		return bot.OrderResult{}, err
	}
	sizeWire, err := exchange.FloatToWire(size)
	if err != nil {
		return bot.OrderResult{}, err
	}
	fill, err := g.exchange.PlaceOrder(ctx, exchange.OrderWire{
		Coin:  string(order.Asset),
		IsBuy: isBuy,
		Price: price,
		Size:  sizeWire,
		Tif:   exchange.TifIoc,
		Cloid: order.ClientOrderID,
	})
	if err != nil {
		return bot.OrderResult{}, err
	}
	g.log.Info("order filled",
		zap.String("coin", string(order.Asset)),
		zap.String("direction", direction),
		zap.Float64("size", fill.Size),
		zap.Float64("avg_px", fill.AvgPx),
	)
	return bot.OrderResult{TxID: fill.OrderID, Direction: direction, Filled: fill.Size}, nil
}

func (g *Gateway) mid(ctx context.Context, coin string) (float64, error) {
	if g.feed != nil {
		if price, ok := g.feed.Mid(coin, g.cfg.PriceMaxAge); ok {
			return price, nil
		}
	}
	mids, err := g.rest.AllMids(ctx)
	if err != nil {
		return 0, err
	}
	price, ok := mids[coin]
	if !ok || price <= 0 {
		return 0, fmt.Errorf("%w: no mid for %s", hedge.ErrInvalidPrice, coin)
	}
	return price, nil
}
