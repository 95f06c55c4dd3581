package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Client submits signed actions to the venue's /exchange endpoint. Nonces
// are millisecond timestamps, bumped monotonically when orders land inside
// the same millisecond; replay protection across restarts comes from the
// executor's client-order-id dedupe, not from nonce persistence.
type Client struct {
	baseURL   string
	http      *http.Client
	signer    *Signer
	lastNonce atomic.Uint64
	log       *zap.Logger
}

func NewClient(baseURL string, timeout time.Duration, signer *Signer, log *zap.Logger) (*Client, error) {
	if signer == nil {
		return nil, errors.New("signer is required")
	}
	if baseURL == "" {
		return nil, errors.New("base url is required")
	}
	return &Client{
		baseURL: baseURL,
		http: &http.Client{
			Timeout: timeout,
		},
		signer: signer,
		log:    log,
	}, nil
}

// PlaceOrder signs and submits a single order, returning the venue's fill
// report.
func (c *Client) PlaceOrder(ctx context.Context, order OrderWire) (Fill, error) {
	action := OrderAction{Type: "order", Orders: []OrderWire{order}}
	nonce := c.nextNonce()
	sig, err := c.signer.SignOrderAction(action, nonce)
	if err != nil {
		return Fill{}, err
	}
	resp, err := c.post(ctx, SignedAction{Action: action, Nonce: nonce, Signature: sig})
	if err != nil {
		return Fill{}, err
	}
	return parseFill(resp)
}

func (c *Client) nextNonce() uint64 {
	now := uint64(time.Now().UnixMilli())
	for {
		prev := c.lastNonce.Load()
		next := now
		if prev >= next {
			next = prev + 1
		}
		if c.lastNonce.CompareAndSwap(prev, next) {
			return next
		}
	}
}

func (c *Client) post(ctx context.Context, payload SignedAction) (map[string]any, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	url := c.baseURL + "/exchange"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, string(data))
	}
	var data map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, err
	}
	return data, nil
}

// parseFill digs the fill report out of the venue's response envelope:
//
//	{"status":"ok","response":{"statuses":[{"filled":{"oid":1,"totalSz":"1.5","avgPx":"142.3"}}]}}
//
// A status of "error" or a "rejected" entry fails the order.
func parseFill(resp map[string]any) (Fill, error) {
	if resp == nil {
		return Fill{}, errors.New("empty exchange response")
	}
	if status, _ := resp["status"].(string); status != "" && status != "ok" {
		detail, _ := resp["error"].(string)
		if detail == "" {
			detail = status
		}
		return Fill{}, fmt.Errorf("exchange rejected action: %s", detail)
	}
	filled := findMapKey(resp, "filled")
	if filled == nil {
		if rejected := findMapKey(resp, "rejected"); rejected != nil {
			reason, _ := rejected["reason"].(string)
			if reason == "" {
				reason = "unspecified"
			}
			return Fill{}, fmt.Errorf("order rejected: %s", reason)
		}
		return Fill{}, errors.New("missing fill in exchange response")
	}
	fill := Fill{
		OrderID: stringFromAny(filled["oid"]),
		Size:    floatFromAny(filled["totalSz"]),
		AvgPx:   floatFromAny(filled["avgPx"]),
	}
	if fill.OrderID == "" {
		return Fill{}, errors.New("missing order id in exchange response")
	}
	return fill, nil
}

func findMapKey(v any, key string) map[string]any {
	switch val := v.(type) {
	case map[string]any:
		if nested, ok := val[key].(map[string]any); ok {
			return nested
		}
		for _, nested := range val {
			if found := findMapKey(nested, key); found != nil {
				return found
			}
		}
	case []any:
		for _, nested := range val {
			if found := findMapKey(nested, key); found != nil {
				return found
			}
		}
	}
	return nil
}

func stringFromAny(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatInt(int64(val), 10)
	case int64:
		return strconv.FormatInt(val, 10)
	default:
		return ""
	}
}

func floatFromAny(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case string:
		parsed, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0
		}
		return parsed
	default:
		return 0
	}
}
