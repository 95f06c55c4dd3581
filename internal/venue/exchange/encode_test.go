package exchange

import (
	"bytes"
	"testing"
)

func sampleAction() OrderAction {
	return OrderAction{
		Type: "order",
		Orders: []OrderWire{{
			Coin:  "SOL",
			IsBuy: false,
			Price: "198.5",
			Size:  "23.5",
			Tif:   TifIoc,
			Cloid: "adj-SOL-20260301T120000Z",
		}},
	}
}

func TestEncodeOrderActionIsDeterministic(t *testing.T) {
	first, err := EncodeOrderAction(sampleAction())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	second, err := EncodeOrderAction(sampleAction())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("same action must encode to identical bytes")
	}
}

func TestEncodeOrderActionCloidChangesPayload(t *testing.T) {
	withCloid, err := EncodeOrderAction(sampleAction())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	action := sampleAction()
	action.Orders[0].Cloid = ""
	withoutCloid, err := EncodeOrderAction(action)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if bytes.Equal(withCloid, withoutCloid) {
		t.Fatalf("cloid must be part of the signed payload")
	}
}

func TestEncodeOrderActionRejectsEmptyAction(t *testing.T) {
	if _, err := EncodeOrderAction(OrderAction{Type: "order"}); err == nil {
		t.Fatalf("expected error for action without orders")
	}
	if _, err := EncodeOrderAction(OrderAction{Orders: sampleAction().Orders}); err == nil {
		t.Fatalf("expected error for action without type")
	}
}

func TestFloatToWire(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{23.5, "23.5"},
		{-6.5, "-6.5"},
		{100, "100"},
		{0.001, "0.001"},
		{0, "0"},
		{0.00000001, "0.00000001"},
	}
	for _, tc := range cases {
		got, err := FloatToWire(tc.in)
		if err != nil {
			t.Fatalf("FloatToWire(%v): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("FloatToWire(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFloatToWireRejectsPrecisionLoss(t *testing.T) {
	if _, err := FloatToWire(1e-9); err == nil {
		t.Fatalf("expected error for value below wire precision")
	}
}
