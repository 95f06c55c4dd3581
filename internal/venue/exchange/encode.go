package exchange

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// EncodeOrderAction produces the canonical msgpack payload the venue hashes
// for signature verification. Field order is part of the protocol; encoding
// goes through explicit Encode* calls rather than struct reflection so the
// byte stream cannot drift with struct changes.
func EncodeOrderAction(action OrderAction) ([]byte, error) {
	if action.Type == "" {
		return nil, errors.New("action type is required")
	}
	if len(action.Orders) == 0 {
		return nil, errors.New("action orders are required")
	}
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	if err := enc.EncodeMapLen(2); err != nil {
		return nil, err
	}
	if err := enc.EncodeString("type"); err != nil {
		return nil, err
	}
	if err := enc.EncodeString(action.Type); err != nil {
		return nil, err
	}
	if err := enc.EncodeString("orders"); err != nil {
		return nil, err
	}
	if err := enc.EncodeArrayLen(len(action.Orders)); err != nil {
		return nil, err
	}
	for _, order := range action.Orders {
		if err := encodeOrderWire(enc, order); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func encodeOrderWire(enc *msgpack.Encoder, order OrderWire) error {
	mapLen := 6
	if order.Cloid != "" {
		mapLen++
	}
	if err := enc.EncodeMapLen(mapLen); err != nil {
		return err
	}
	fields := []struct {
		key    string
		encode func() error
	}{
		{"coin", func() error { return enc.EncodeString(order.Coin) }},
		{"isBuy", func() error { return enc.EncodeBool(order.IsBuy) }},
		{"price", func() error { return enc.EncodeString(order.Price) }},
		{"size", func() error { return enc.EncodeString(order.Size) }},
		{"reduceOnly", func() error { return enc.EncodeBool(order.ReduceOnly) }},
		{"tif", func() error { return enc.EncodeString(string(order.Tif)) }},
	}
	for _, field := range fields {
		if err := enc.EncodeString(field.key); err != nil {
			return err
		}
		if err := field.encode(); err != nil {
			return err
		}
	}
	if order.Cloid != "" {
		if err := enc.EncodeString("cloid"); err != nil {
			return err
		}
		if err := enc.EncodeString(order.Cloid); err != nil {
			return err
		}
	}
	return nil
}

// FloatToWire renders a price or size as the venue's trimmed decimal string.
// Values that cannot round-trip at 8 decimals are rejected rather than
// silently rounded.
func FloatToWire(x float64) (string, error) {
	rounded := fmt.Sprintf("%.8f", x)
	parsed, err := strconv.ParseFloat(rounded, 64)
	if err != nil {
		return "", err
	}
	if math.Abs(parsed-x) >= 1e-12 {
		return "", fmt.Errorf("value %v loses precision on the wire", x)
	}
	trimmed := strings.TrimRight(rounded, "0")
	trimmed = strings.TrimRight(trimmed, ".")
	if trimmed == "" || trimmed == "-0" {
		trimmed = "0"
	}
	return trimmed, nil
}
