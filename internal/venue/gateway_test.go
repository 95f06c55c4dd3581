package venue

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"jlp-hedge-bot/internal/exec"
	"jlp-hedge-bot/internal/hedge"
	"jlp-hedge-bot/internal/venue/exchange"
	"jlp-hedge-bot/internal/venue/rest"

	"go.uber.org/zap"
)

const testKey = "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

type fakeVenue struct {
	mids      map[string]string
	positions string
	balances  string
	orders    []exchange.SignedAction
}

func (v *fakeVenue) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/info":
			var req struct {
				Type string `json:"type"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			switch req.Type {
			case "allMids":
				_ = json.NewEncoder(w).Encode(v.mids)
			case "clearinghouseState":
				_, _ = w.Write([]byte(v.positions))
			case "spotClearinghouseState":
				_, _ = w.Write([]byte(v.balances))
			default:
				w.WriteHeader(http.StatusBadRequest)
			}
		case "/exchange":
			var req exchange.SignedAction
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			v.orders = append(v.orders, req)
			_, _ = w.Write([]byte(`{"status":"ok","response":{"data":{"statuses":[{"filled":{"oid":42,"totalSz":"23.5","avgPx":"198.5"}}]}}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

func newTestGateway(t *testing.T, fake *fakeVenue) *Gateway {
	t.Helper()
	server := httptest.NewServer(fake.handler())
	t.Cleanup(server.Close)

	log := zap.NewNop()
	signer, err := exchange.NewSigner(testKey)
	if err != nil {
		t.Fatal(err)
	}
	exClient, err := exchange.NewClient(server.URL, time.Second, signer, log)
	if err != nil {
		t.Fatal(err)
	}
	return NewGateway(Config{
		AccountAddress:  "0xabc",
		CollateralToken: "JLP",
		SlippagePct:     1,
		PriceMaxAge:     time.Minute,
	}, rest.New(server.URL, time.Second, log), nil, exClient, log)
}

func defaultFake() *fakeVenue {
	return &fakeVenue{
		mids: map[string]string{
			"JLP": "4",
			"SOL": "200",
			"ETH": "3000",
			"BTC": "60000",
		},
		positions: `{"assetPositions":[{"position":{"coin":"SOL","szi":"-23.5"}}]}`,
		balances:  `{"balances":[{"coin":"JLP","total":"2500"}]}`,
	}
}

func TestCollateralPositionValuesBalance(t *testing.T) {
	g := newTestGateway(t, defaultFake())
	pos, err := g.CollateralPosition(context.Background())
	if err != nil {
		t.Fatalf("collateral: %v", err)
	}
	if pos.Amount != 2500 {
		t.Fatalf("expected amount 2500, got %v", pos.Amount)
	}
	if pos.USDValue != 10000 {
		t.Fatalf("expected usd value 10000, got %v", pos.USDValue)
	}
}

func TestHedgePositionsMapShortsToPositiveMagnitude(t *testing.T) {
	g := newTestGateway(t, defaultFake())
	alloc, err := g.HedgePositions(context.Background())
	if err != nil {
		t.Fatalf("hedge positions: %v", err)
	}
	sol := alloc[hedge.AssetSOL]
	if sol.Amount != 23.5 {
		t.Fatalf("short szi -23.5 must map to magnitude 23.5, got %v", sol.Amount)
	}
	if sol.USDValue != 23.5*200 {
		t.Fatalf("unexpected usd value %v", sol.USDValue)
	}
	if eth := alloc[hedge.AssetETH]; eth.Amount != 0 {
		t.Fatalf("unreported assets stay zero, got %v", eth.Amount)
	}
}

func TestPlaceOrderSellCrossesBelowMid(t *testing.T) {
	fake := defaultFake()
	g := newTestGateway(t, fake)

	res, err := g.PlaceOrder(context.Background(), exec.Order{
		Asset:         hedge.AssetSOL,
		SignedSize:    23.5,
		ClientOrderID: "adj-SOL-1",
	})
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	if res.Direction != "short" {
		t.Fatalf("positive size must sell, got %q", res.Direction)
	}
	if res.TxID != "42" || res.Filled != 23.5 {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(fake.orders) != 1 {
		t.Fatalf("expected one exchange call, got %d", len(fake.orders))
	}
	wire := fake.orders[0].Action.Orders[0]
	if wire.IsBuy {
		t.Fatalf("sell must have isBuy=false")
	}
	if wire.Tif != exchange.TifIoc {
		t.Fatalf("market orders go out as IOC, got %q", wire.Tif)
	}
	if wire.Cloid != "adj-SOL-1" {
		t.Fatalf("client order id must ride the wire, got %q", wire.Cloid)
	}
	// 1% slippage cap under the 200 mid.
	if wire.Price != "198" {
		t.Fatalf("expected limit 198, got %q", wire.Price)
	}
	if wire.Size != "23.5" {
		t.Fatalf("expected size 23.5, got %q", wire.Size)
	}
}

func TestPlaceOrderBuyCrossesAboveMid(t *testing.T) {
	fake := defaultFake()
	g := newTestGateway(t, fake)

	res, err := g.PlaceOrder(context.Background(), exec.Order{
		Asset:         hedge.AssetSOL,
		SignedSize:    -6.5,
		ClientOrderID: "adj-SOL-2",
	})
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	if res.Direction != "long" {
		t.Fatalf("negative size must buy, got %q", res.Direction)
	}
	wire := fake.orders[0].Action.Orders[0]
	if !wire.IsBuy {
		t.Fatalf("buy must have isBuy=true")
	}
	if wire.Size != "6.5" {
		t.Fatalf("size travels unsigned, got %q", wire.Size)
	}
	if wire.Price != "202" {
		t.Fatalf("expected limit 202, got %q", wire.Price)
	}
}

func TestPlaceOrderRejectsZeroSize(t *testing.T) {
	g := newTestGateway(t, defaultFake())
	if _, err := g.PlaceOrder(context.Background(), exec.Order{Asset: hedge.AssetSOL}); err == nil {
		t.Fatalf("expected error for zero size")
	}
}

func TestPriceFallsBackToRestMids(t *testing.T) {
	g := newTestGateway(t, defaultFake())
	price, err := g.Price(context.Background(), hedge.AssetBTC)
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if math.Abs(price-60000) > 1e-9 {
		t.Fatalf("expected 60000, got %v", price)
	}
	if _, err := g.Price(context.Background(), hedge.Asset("DOGE")); err == nil {
		t.Fatalf("expected error for missing mid")
	}
}
