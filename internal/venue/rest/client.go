package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// Client is the venue's read-only info endpoint. All queries POST a typed
// request to /info; prices and sizes come back as decimal strings.
type Client struct {
	baseURL string
	http    *http.Client
	log     *zap.Logger
}

func New(baseURL string, timeout time.Duration, log *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http: &http.Client{
			Timeout: timeout,
		},
		log: log,
	}
}

type infoRequest struct {
	Type string `json:"type"`
	User string `json:"user,omitempty"`
}

// PerpPosition is one signed perp holding. Szi is negative for shorts.
type PerpPosition struct {
	Coin string
	Szi  float64
}

// AllMids returns the current mid price per coin symbol.
func (c *Client) AllMids(ctx context.Context) (map[string]float64, error) {
	var raw map[string]string
	if err := c.post(ctx, infoRequest{Type: "allMids"}, &raw); err != nil {
		return nil, err
	}
	mids := make(map[string]float64, len(raw))
	for coin, value := range raw {
		price, err := strconv.ParseFloat(value, 64)
		if err != nil {
			c.log.Warn("skipping unparseable mid", zap.String("coin", coin), zap.String("value", value))
			continue
		}
		mids[coin] = price
	}
	return mids, nil
}

// PerpPositions returns the account's signed perp positions.
func (c *Client) PerpPositions(ctx context.Context, user string) ([]PerpPosition, error) {
	var raw struct {
		AssetPositions []struct {
			Position struct {
				Coin string `json:"coin"`
				Szi  string `json:"szi"`
			} `json:"position"`
		} `json:"assetPositions"`
	}
	if err := c.post(ctx, infoRequest{Type: "clearinghouseState", User: user}, &raw); err != nil {
		return nil, err
	}
	positions := make([]PerpPosition, 0, len(raw.AssetPositions))
	for _, entry := range raw.AssetPositions {
		szi, err := strconv.ParseFloat(entry.Position.Szi, 64)
		if err != nil {
			return nil, fmt.Errorf("perp position %s: bad szi %q", entry.Position.Coin, entry.Position.Szi)
		}
		if szi == 0 {
			continue
		}
		positions = append(positions, PerpPosition{Coin: entry.Position.Coin, Szi: szi})
	}
	return positions, nil
}

// SpotBalance returns the account's balance of one spot token.
func (c *Client) SpotBalance(ctx context.Context, user, token string) (float64, error) {
	var raw struct {
		Balances []struct {
			Coin  string `json:"coin"`
			Total string `json:"total"`
		} `json:"balances"`
	}
	if err := c.post(ctx, infoRequest{Type: "spotClearinghouseState", User: user}, &raw); err != nil {
		return 0, err
	}
	for _, balance := range raw.Balances {
		if balance.Coin != token {
			continue
		}
		total, err := strconv.ParseFloat(balance.Total, 64)
		if err != nil {
			return 0, fmt.Errorf("spot balance %s: bad total %q", token, balance.Total)
		}
		return total, nil
	}
	return 0, nil
}

func (c *Client) post(ctx context.Context, req any, out any) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}
	url := c.baseURL + "/info"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("http %d: %s", resp.StatusCode, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
