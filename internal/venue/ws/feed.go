package ws

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

// Feed keeps a live mid-price cache from the venue's allMids stream. It
// reconnects on read failure and resubscribes after every reconnect.
type Feed struct {
	url            string
	reconnectDelay time.Duration
	pingInterval   time.Duration
	log            *zap.Logger

	mu   sync.RWMutex
	conn *websocket.Conn
	mids map[string]midEntry
}

type midEntry struct {
	price float64
	at    time.Time
}

func NewFeed(url string, reconnectDelay, pingInterval time.Duration, log *zap.Logger) *Feed {
	return &Feed{
		url:            url,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
		log:            log,
		mids:           make(map[string]midEntry),
	}
}

// Mid returns the cached mid for a coin if it is younger than maxAge.
func (f *Feed) Mid(coin string, maxAge time.Duration) (float64, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	entry, ok := f.mids[coin]
	if !ok {
		return 0, false
	}
	if maxAge > 0 && time.Since(entry.at) > maxAge {
		return 0, false
	}
	return entry.price, true
}

// Start connects and runs the read loop in the background until the context
// is cancelled.
func (f *Feed) Start(ctx context.Context) error {
	if err := f.connect(ctx); err != nil {
		return err
	}
	go f.run(ctx)
	return nil
}

func (f *Feed) run(ctx context.Context) {
	for {
		pingCtx, cancel := context.WithCancel(ctx)
		pingDone := make(chan struct{})
		go func() {
			defer close(pingDone)
			f.pingLoop(pingCtx)
		}()
		err := f.readLoop(ctx)
		cancel()
		<-pingDone
		if ctx.Err() != nil {
			f.close()
			return
		}
		f.log.Warn("price feed read loop ended", zap.Error(err))
		f.close()
		select {
		case <-ctx.Done():
			return
		case <-time.After(f.reconnectDelay):
		}
		if err := f.connect(ctx); err != nil {
			f.log.Warn("price feed reconnect failed", zap.Error(err))
		}
	}
}

func (f *Feed) connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conn != nil {
		return nil
	}
	conn, _, err := websocket.Dial(ctx, f.url, nil)
	if err != nil {
		return err
	}
	sub := map[string]any{"method": "subscribe", "subscription": map[string]any{"type": "allMids"}}
	if err := writeJSON(ctx, conn, sub); err != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "subscribe failed")
		return err
	}
	f.conn = conn
	return nil
}

func (f *Feed) readLoop(ctx context.Context) error {
	f.mu.RLock()
	conn := f.conn
	f.mu.RUnlock()
	if conn == nil {
		return errors.New("price feed not connected")
	}
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		f.handle(data)
	}
}

func (f *Feed) handle(data []byte) {
	var msg struct {
		Channel string `json:"channel"`
		Data    struct {
			Mids map[string]string `json:"mids"`
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &msg); err != nil || msg.Channel != "allMids" {
		return
	}
	now := time.Now()
	f.mu.Lock()
	for coin, value := range msg.Data.Mids {
		price, err := strconv.ParseFloat(value, 64)
		if err != nil || price <= 0 {
			continue
		}
		f.mids[coin] = midEntry{price: price, at: now}
	}
	f.mu.Unlock()
}

func (f *Feed) pingLoop(ctx context.Context) {
	f.mu.RLock()
	conn := f.conn
	interval := f.pingInterval
	f.mu.RUnlock()
	if conn == nil || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := writeJSON(ctx, conn, map[string]any{"method": "ping"}); err != nil {
				return
			}
		}
	}
}

func (f *Feed) close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conn != nil {
		_ = f.conn.Close(websocket.StatusNormalClosure, "reset")
		f.conn = nil
	}
}

func writeJSON(ctx context.Context, conn *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}
