package hedge

import "errors"

// Asset identifies a hedgeable perp market. The set is closed: stable-coin
// balances are collateral, never hedged.
type Asset string

const (
	AssetSOL Asset = "SOL"
	AssetETH Asset = "ETH"
	AssetBTC Asset = "BTC"
)

var (
	ErrInvalidPrice    = errors.New("invalid market price")
	ErrDataUnavailable = errors.New("market data unavailable")
)

// HedgeAssets returns the closed set of hedgeable assets.
func HedgeAssets() []Asset {
	return []Asset{AssetSOL, AssetETH, AssetBTC}
}

// Position is a signed holding. Hedge positions are expressed as short
// magnitude: a positive Amount is the size of the short perp offsetting the
// collateral's long exposure. Amount and USDValue share sign whenever the
// mark price is positive.
type Position struct {
	Amount   float64 `json:"amount"`
	USDValue float64 `json:"usd_value"`
}

// Allocation maps every hedgeable asset to a position. It is always fully
// populated; assets with no exposure carry a zero Position.
type Allocation map[Asset]Position

// NewAllocation returns a zero-filled allocation over the hedgeable set.
func NewAllocation() Allocation {
	alloc := make(Allocation, len(HedgeAssets()))
	for _, asset := range HedgeAssets() {
		alloc[asset] = Position{}
	}
	return alloc
}

// Weights is the fraction of collateral USD value mirrored by each asset's
// hedge. The fractions need not sum to 1; the residual is treated as
// stable-denominated and left unhedged.
type Weights map[Asset]float64

// DefaultWeights mirrors the pool's published target weightage for the
// volatile legs.
func DefaultWeights() Weights {
	return Weights{
		AssetSOL: 0.47,
		AssetETH: 0.08,
		AssetBTC: 0.13,
	}
}
