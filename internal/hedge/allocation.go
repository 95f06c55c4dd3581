package hedge

import "fmt"

// IdealAllocation converts the collateral's USD value into the per-asset
// hedge that would neutralize it under the target weights. For each asset
// the USD leg is weight * collateral USD value and the size is that USD leg
// at the current mark price. Pure and deterministic.
//
// A zero, negative, or missing price for any weighted asset fails with
// ErrInvalidPrice: a bad quote must abort the computation, never be treated
// as zero exposure.
func IdealAllocation(collateral Position, weights Weights, prices map[Asset]float64) (Allocation, error) {
	ideal := NewAllocation()
	for _, asset := range HedgeAssets() {
		weight := weights[asset]
		if weight == 0 {
			continue
		}
		price, ok := prices[asset]
		if !ok || price <= 0 {
			return nil, fmt.Errorf("%w: %s price %v", ErrInvalidPrice, asset, price)
		}
		usd := weight * collateral.USDValue
		ideal[asset] = Position{
			Amount:   usd / price,
			USDValue: usd,
		}
	}
	return ideal, nil
}
