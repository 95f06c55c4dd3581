package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"jlp-hedge-bot/internal/alerts"
	"jlp-hedge-bot/internal/bot"
	"jlp-hedge-bot/internal/config"
	"jlp-hedge-bot/internal/exec"
	"jlp-hedge-bot/internal/hedge"
	"jlp-hedge-bot/internal/history"
	"jlp-hedge-bot/internal/metrics"
	"jlp-hedge-bot/internal/state"
	"jlp-hedge-bot/internal/state/sqlite"
	"jlp-hedge-bot/internal/venue"
	"jlp-hedge-bot/internal/venue/exchange"
	"jlp-hedge-bot/internal/venue/rest"
	"jlp-hedge-bot/internal/venue/ws"

	"go.uber.org/zap"
)

// App wires the venue clients, executor, controller, and scheduler into one
// runnable process.
type App struct {
	cfg       *config.Config
	log       *zap.Logger
	store     *sqlite.Store
	feed      *ws.Feed
	history   *history.Writer
	prom      *metrics.Prometheus
	scheduler *bot.Scheduler
}

func New(cfg *config.Config, log *zap.Logger) (*App, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.State.SQLitePath), 0o755); err != nil {
		return nil, err
	}
	store, err := sqlite.New(cfg.State.SQLitePath)
	if err != nil {
		return nil, err
	}

	walletAddress := strings.TrimSpace(os.Getenv("JLP_WALLET_ADDRESS"))
	if walletAddress == "" {
		return nil, errors.New("JLP_WALLET_ADDRESS is required")
	}
	privateKey := strings.TrimSpace(os.Getenv("JLP_PRIVATE_KEY"))
	if privateKey == "" {
		return nil, errors.New("JLP_PRIVATE_KEY is required")
	}
	accountAddress := strings.TrimSpace(os.Getenv("JLP_ACCOUNT_ADDRESS"))
	if accountAddress == "" {
		accountAddress = walletAddress
	}
	signer, err := exchange.NewSigner(privateKey)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(walletAddress, signer.Address().Hex()) {
		return nil, fmt.Errorf("wallet address does not match private key: got %s expected %s", walletAddress, signer.Address().Hex())
	}
	exClient, err := exchange.NewClient(cfg.Venue.RESTURL, cfg.Venue.Timeout, signer, log)
	if err != nil {
		return nil, err
	}

	restClient := rest.New(cfg.Venue.RESTURL, cfg.Venue.Timeout, log)
	feed := ws.NewFeed(cfg.Venue.WSURL, cfg.Venue.ReconnectDelay, cfg.Venue.PingInterval, log)
	gateway := venue.NewGateway(venue.Config{
		AccountAddress:  accountAddress,
		CollateralToken: cfg.Hedge.CollateralToken,
		SlippagePct:     cfg.Venue.SlippagePct,
		PriceMaxAge:     cfg.Venue.PriceMaxAge,
	}, restClient, feed, exClient, log)

	var prom *metrics.Prometheus
	m := metrics.NewNoop()
	if cfg.Metrics.Listen != "" {
		prom = metrics.NewPrometheus()
		m = prom.Metrics
	}

	executor := exec.New(gateway, store, m, log)
	controller := bot.NewController(bot.ControllerConfig{
		CollateralAsset: cfg.Hedge.CollateralToken,
		Weights:         weightsFromConfig(cfg.Hedge.TargetWeights),
		MinOrderSizes:   sizesFromConfig(cfg.Hedge.MinOrderSizes),
		CallTimeout:     cfg.Scheduler.CallTimeout,
	}, gateway, executor, log)

	writer, err := history.New(cfg.History, log)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	var recorder bot.Recorder
	if writer != nil {
		recorder = writer
	}

	scheduler := bot.NewScheduler(bot.SchedulerConfig{
		TickInterval:     cfg.Scheduler.TickInterval,
		CycleTimeout:     cfg.Scheduler.CycleTimeout,
		DefaultThreshold: cfg.Hedge.DefaultThresholdPct,
	}, controller, state.NewBotRegistry(store, log), alerts.NewTelegram(cfg.Telegram, log), recorder, m, log)

	return &App{
		cfg:       cfg,
		log:       log,
		store:     store,
		feed:      feed,
		history:   writer,
		prom:      prom,
		scheduler: scheduler,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	defer a.store.Close()
	defer a.history.Close()

	if err := a.scheduler.Init(ctx); err != nil {
		return err
	}
	// A dead feed is not fatal: the gateway falls back to REST mids.
	if err := a.feed.Start(ctx); err != nil {
		a.log.Warn("price feed start failed, using rest prices", zap.Error(err))
	}
	a.history.Start(ctx)
	if a.prom != nil {
		a.serveMetrics(ctx)
	}
	a.log.Info("scheduler starting",
		zap.Duration("tick_interval", a.cfg.Scheduler.TickInterval),
		zap.Int("bots", len(a.scheduler.ListBots())),
	)
	return a.scheduler.Run(ctx)
}

func (a *App) serveMetrics(ctx context.Context) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.prom.Handler())
	srv := &http.Server{Addr: a.cfg.Metrics.Listen, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.log.Warn("metrics server stopped", zap.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	a.log.Info("metrics server listening", zap.String("addr", a.cfg.Metrics.Listen))
}

func weightsFromConfig(raw map[string]float64) hedge.Weights {
	weights := make(hedge.Weights, len(raw))
	for asset, weight := range raw {
		weights[hedge.Asset(asset)] = weight
	}
	return weights
}

func sizesFromConfig(raw map[string]float64) map[hedge.Asset]float64 {
	sizes := make(map[hedge.Asset]float64, len(raw))
	for asset, size := range raw {
		sizes[hedge.Asset(asset)] = size
	}
	return sizes
}
