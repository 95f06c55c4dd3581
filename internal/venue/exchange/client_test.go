package exchange

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestParseFillSuccess(t *testing.T) {
	var resp map[string]any
	payload := `{"status":"ok","response":{"data":{"statuses":[{"filled":{"oid":12345,"totalSz":"23.5","avgPx":"198.75"}}]}}}`
	if err := json.Unmarshal([]byte(payload), &resp); err != nil {
		t.Fatal(err)
	}
	fill, err := parseFill(resp)
	if err != nil {
		t.Fatalf("parse fill: %v", err)
	}
	if fill.OrderID != "12345" {
		t.Fatalf("expected oid 12345, got %q", fill.OrderID)
	}
	if fill.Size != 23.5 || fill.AvgPx != 198.75 {
		t.Fatalf("unexpected fill %+v", fill)
	}
}

func TestParseFillRejected(t *testing.T) {
	var resp map[string]any
	payload := `{"status":"ok","response":{"data":{"statuses":[{"rejected":{"reason":"insufficient margin"}}]}}}`
	if err := json.Unmarshal([]byte(payload), &resp); err != nil {
		t.Fatal(err)
	}
	if _, err := parseFill(resp); err == nil {
		t.Fatalf("expected error for rejected order")
	}
}

func TestParseFillStatusError(t *testing.T) {
	resp := map[string]any{"status": "err", "error": "bad signature"}
	if _, err := parseFill(resp); err == nil {
		t.Fatalf("expected error for non-ok status")
	}
}

func TestParseFillMissingFill(t *testing.T) {
	resp := map[string]any{"status": "ok", "response": map[string]any{}}
	if _, err := parseFill(resp); err == nil {
		t.Fatalf("expected error when no fill is present")
	}
}

func TestPlaceOrderPostsSignedAction(t *testing.T) {
	var requests []SignedAction
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/exchange" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var req SignedAction
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		requests = append(requests, req)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok","response":{"data":{"statuses":[{"filled":{"oid":7,"totalSz":"1.5","avgPx":"200"}}]}}}`))
	}))
	defer server.Close()

	signer, err := NewSigner(testKey)
	if err != nil {
		t.Fatal(err)
	}
	client, err := NewClient(server.URL, time.Second, signer, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}

	order := sampleAction().Orders[0]
	fill, err := client.PlaceOrder(context.Background(), order)
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	if fill.OrderID != "7" || fill.Size != 1.5 {
		t.Fatalf("unexpected fill %+v", fill)
	}
	if _, err := client.PlaceOrder(context.Background(), order); err != nil {
		t.Fatalf("second order: %v", err)
	}

	if len(requests) != 2 {
		t.Fatalf("expected two requests, got %d", len(requests))
	}
	first := requests[0]
	if first.Action.Type != "order" || len(first.Action.Orders) != 1 {
		t.Fatalf("unexpected action %+v", first.Action)
	}
	if first.Action.Orders[0].Coin != "SOL" || first.Action.Orders[0].Tif != TifIoc {
		t.Fatalf("unexpected order wire %+v", first.Action.Orders[0])
	}
	if first.Signature.R == "" || first.Signature.S == "" {
		t.Fatalf("expected signature on the wire")
	}
	if requests[1].Nonce <= first.Nonce {
		t.Fatalf("nonces must be strictly increasing: %d then %d", first.Nonce, requests[1].Nonce)
	}
}

func TestNewClientRequiresSigner(t *testing.T) {
	if _, err := NewClient("http://x", time.Second, nil, zap.NewNop()); err == nil {
		t.Fatalf("expected error for nil signer")
	}
}
