package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"jlp-hedge-bot/internal/bot"
	"jlp-hedge-bot/internal/config"
	"jlp-hedge-bot/internal/logging"
	"jlp-hedge-bot/internal/state"
	"jlp-hedge-bot/internal/state/sqlite"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// botctl manages the bot registry against the same sqlite store the daemon
// uses. Create bots while the daemon is stopped; it picks them up on start.
func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	create := flag.Bool("create", false, "create a new bot")
	list := flag.Bool("list", false, "list registered bots")
	botType := flag.String("type", string(bot.TypeJLPHedge), "bot type for -create")
	intervalHours := flag.Float64("interval", 1, "run interval in hours for -create")
	threshold := flag.Float64("threshold", -1, "rebalance threshold pct for -create (negative uses the default, 0 rebalances on any deviation)")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	log := logging.New(cfg.Log)

	store, err := sqlite.New(cfg.State.SQLitePath)
	if err != nil {
		log.Error("failed to open state store", zap.Error(err))
		os.Exit(1)
	}
	defer store.Close()

	// The scheduler is only used as the registry owner here; it never runs.
	scheduler := bot.NewScheduler(bot.SchedulerConfig{
		DefaultThreshold: cfg.Hedge.DefaultThresholdPct,
	}, nil, state.NewBotRegistry(store, log), nil, nil, nil, log)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := scheduler.Init(ctx); err != nil {
		log.Error("failed to load bot registry", zap.Error(err))
		os.Exit(1)
	}

	switch {
	case *create:
		opts := bot.CreateOptions{
			Type:          bot.Type(*botType),
			IntervalHours: *intervalHours,
		}
		if *threshold >= 0 {
			opts.MinRebalanceThreshold = threshold
		}
		created, err := scheduler.CreateBot(ctx, opts)
		if err != nil {
			fmt.Fprintf(os.Stderr, "create failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("created %s type=%s interval=%.2fh threshold=%.2f%%\n",
			created.ID, created.Type, created.IntervalHours, created.MinRebalanceThreshold)
	case *list:
		bots := scheduler.ListBots()
		if len(bots) == 0 {
			fmt.Println("no bots registered")
			return
		}
		for _, b := range bots {
			lastRun := "never"
			if b.LastRunTime != nil {
				lastRun = b.LastRunTime.UTC().Format(time.RFC3339)
			}
			fmt.Printf("%s type=%s status=%s interval=%.2fh threshold=%.2f%% last_run=%s\n",
				b.ID, b.Type, b.Status, b.IntervalHours, b.MinRebalanceThreshold, lastRun)
			if b.Error != "" {
				fmt.Printf("  last error: %s\n", b.Error)
			}
		}
	default:
		flag.Usage()
		os.Exit(2)
	}
}
