package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
)

func infoServer(t *testing.T, handler func(req infoRequest) (int, string)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/info" || r.Method != http.MethodPost {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var req infoRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		status, body := handler(req)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
}

func TestAllMidsSkipsUnparseableEntries(t *testing.T) {
	server := infoServer(t, func(req infoRequest) (int, string) {
		if req.Type != "allMids" {
			return http.StatusBadRequest, `{}`
		}
		return http.StatusOK, `{"SOL":"200.5","BTC":"60000","JUNK":"not-a-number"}`
	})
	defer server.Close()

	client := New(server.URL, time.Second, zap.NewNop())
	mids, err := client.AllMids(context.Background())
	if err != nil {
		t.Fatalf("all mids: %v", err)
	}
	if mids["SOL"] != 200.5 || mids["BTC"] != 60000 {
		t.Fatalf("unexpected mids: %v", mids)
	}
	if _, ok := mids["JUNK"]; ok {
		t.Fatalf("unparseable mid should be dropped")
	}
}

func TestPerpPositionsFiltersFlatAssets(t *testing.T) {
	var gotUser string
	server := infoServer(t, func(req infoRequest) (int, string) {
		gotUser = req.User
		return http.StatusOK, `{"assetPositions":[
			{"position":{"coin":"SOL","szi":"-23.5"}},
			{"position":{"coin":"ETH","szi":"0"}}
		]}`
	})
	defer server.Close()

	client := New(server.URL, time.Second, zap.NewNop())
	positions, err := client.PerpPositions(context.Background(), "0xabc")
	if err != nil {
		t.Fatalf("perp positions: %v", err)
	}
	if gotUser != "0xabc" {
		t.Fatalf("expected user forwarded, got %q", gotUser)
	}
	if len(positions) != 1 {
		t.Fatalf("expected flat ETH dropped, got %v", positions)
	}
	if positions[0].Coin != "SOL" || positions[0].Szi != -23.5 {
		t.Fatalf("unexpected position: %+v", positions[0])
	}
}

func TestPerpPositionsRejectsBadSize(t *testing.T) {
	server := infoServer(t, func(infoRequest) (int, string) {
		return http.StatusOK, `{"assetPositions":[{"position":{"coin":"SOL","szi":"??"}}]}`
	})
	defer server.Close()

	client := New(server.URL, time.Second, zap.NewNop())
	if _, err := client.PerpPositions(context.Background(), "0xabc"); err == nil {
		t.Fatalf("expected error for malformed szi")
	}
}

func TestSpotBalanceFindsToken(t *testing.T) {
	server := infoServer(t, func(req infoRequest) (int, string) {
		if req.Type != "spotClearinghouseState" {
			return http.StatusBadRequest, `{}`
		}
		return http.StatusOK, `{"balances":[
			{"coin":"USDC","total":"12.5"},
			{"coin":"JLP","total":"2500.75"}
		]}`
	})
	defer server.Close()

	client := New(server.URL, time.Second, zap.NewNop())
	total, err := client.SpotBalance(context.Background(), "0xabc", "JLP")
	if err != nil {
		t.Fatalf("spot balance: %v", err)
	}
	if total != 2500.75 {
		t.Fatalf("expected 2500.75, got %v", total)
	}

	missing, err := client.SpotBalance(context.Background(), "0xabc", "WIF")
	if err != nil {
		t.Fatalf("missing token is not an error: %v", err)
	}
	if missing != 0 {
		t.Fatalf("expected zero balance for missing token, got %v", missing)
	}
}

func TestPostSurfacesHTTPError(t *testing.T) {
	server := infoServer(t, func(infoRequest) (int, string) {
		return http.StatusInternalServerError, `{"error":"down"}`
	})
	defer server.Close()

	client := New(server.URL, time.Second, zap.NewNop())
	if _, err := client.AllMids(context.Background()); err == nil {
		t.Fatalf("expected error for http 500")
	}
}
