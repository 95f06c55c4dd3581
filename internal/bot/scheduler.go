package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"jlp-hedge-bot/internal/hedge"
	"jlp-hedge-bot/internal/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CycleRunner runs one rebalancing cycle for a bot.
type CycleRunner interface {
	RunCycle(ctx context.Context, b Bot) CycleResult
}

// Registry persists the full bot set. Load must treat an absent store as
// zero bots and must not fail on malformed content.
type Registry interface {
	Load(ctx context.Context) ([]Bot, error)
	Save(ctx context.Context, bots []Bot) error
}

// Notifier is the fire-and-forget message sink.
type Notifier interface {
	Send(ctx context.Context, message string) error
}

// Recorder receives completed cycle results, best effort.
type Recorder interface {
	Record(res CycleResult)
}

type SchedulerConfig struct {
	// TickInterval is the wall-clock period between due checks.
	TickInterval time.Duration
	// CycleTimeout bounds one full cycle end to end.
	CycleTimeout time.Duration
	// DefaultThreshold applies when CreateOptions leaves the rebalance
	// threshold unset.
	DefaultThreshold float64
}

// Scheduler owns the bot registry: it is the only writer of persisted bot
// state, enforces at most one active bot per type, and guarantees a bot
// never has two cycles in flight. Cycles for distinct bots run
// concurrently.
type Scheduler struct {
	cfg      SchedulerConfig
	runner   CycleRunner
	registry Registry
	notifier Notifier
	recorder Recorder
	metrics  *metrics.Metrics
	log      *zap.Logger

	// now is swappable so tests can drive due checks without real delays.
	now func() time.Time

	mu          sync.Mutex
	bots        map[string]*Bot
	running     map[string]bool
	initialized bool

	saveMu sync.Mutex
	wg     sync.WaitGroup
}

func NewScheduler(cfg SchedulerConfig, runner CycleRunner, registry Registry, notifier Notifier, recorder Recorder, m *metrics.Metrics, log *zap.Logger) *Scheduler {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Minute
	}
	if cfg.CycleTimeout <= 0 {
		cfg.CycleTimeout = 2 * time.Minute
	}
	if cfg.DefaultThreshold <= 0 {
		cfg.DefaultThreshold = 5
	}
	if m == nil {
		m = metrics.NewNoop()
	}
	return &Scheduler{
		cfg:      cfg,
		runner:   runner,
		registry: registry,
		notifier: notifier,
		recorder: recorder,
		metrics:  m,
		log:      log,
		now:      time.Now,
		bots:     make(map[string]*Bot),
		running:  make(map[string]bool),
	}
}

// Init loads persisted bots into memory. Idempotent: repeated calls never
// double-load. A corrupt or absent store starts the scheduler empty.
func (s *Scheduler) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initialized {
		return nil
	}
	bots, err := s.registry.Load(ctx)
	if err != nil {
		s.log.Warn("bot registry load failed, starting empty", zap.Error(err))
		bots = nil
	}
	for i := range bots {
		b := bots[i]
		s.bots[b.ID] = &b
	}
	s.initialized = true
	s.log.Info("bot registry loaded", zap.Int("bots", len(s.bots)))
	return nil
}

// CreateBot registers a new bot. At most one active bot may exist per type;
// violations fail with ErrDuplicateBotType and leave the registry untouched.
func (s *Scheduler) CreateBot(ctx context.Context, opts CreateOptions) (Bot, error) {
	if err := opts.validate(); err != nil {
		return Bot{}, err
	}
	threshold := s.cfg.DefaultThreshold
	if opts.MinRebalanceThreshold != nil {
		threshold = *opts.MinRebalanceThreshold
	}
	s.mu.Lock()
	for _, existing := range s.bots {
		if existing.Type == opts.Type {
			id := existing.ID
			s.mu.Unlock()
			return Bot{}, fmt.Errorf("%w: %s (id %s)", ErrDuplicateBotType, opts.Type, id)
		}
	}
	b := &Bot{
		ID:                    "bot_" + uuid.NewString(),
		Type:                  opts.Type,
		Status:                StatusRunning,
		IntervalHours:         opts.IntervalHours,
		MinRebalanceThreshold: threshold,
	}
	s.bots[b.ID] = b
	created := *b
	s.mu.Unlock()

	s.persist(ctx)
	s.log.Info("bot created",
		zap.String("bot_id", created.ID),
		zap.String("type", string(created.Type)),
		zap.Float64("interval_hours", created.IntervalHours),
		zap.Float64("threshold_pct", created.MinRebalanceThreshold),
	)
	return created, nil
}

// ListBots returns a snapshot of the registry. Order is not significant.
func (s *Scheduler) ListBots() []Bot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Bot, 0, len(s.bots))
	for _, b := range s.bots {
		out = append(out, *b)
	}
	return out
}

// Run drives the tick loop until the context is cancelled, then waits for
// in-flight cycles to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick launches a cycle for every due bot that has none in flight. The tick
// itself never blocks on a cycle.
func (s *Scheduler) tick(ctx context.Context) {
	now := s.now()
	s.mu.Lock()
	due := make([]Bot, 0, len(s.bots))
	for id, b := range s.bots {
		if s.running[id] || !b.Due(now) {
			continue
		}
		s.running[id] = true
		due = append(due, *b)
	}
	s.mu.Unlock()

	for _, b := range due {
		s.wg.Add(1)
		go s.runBot(ctx, b)
	}
}

func (s *Scheduler) runBot(ctx context.Context, b Bot) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.running, b.ID)
		s.mu.Unlock()
	}()

	cycleCtx, cancel := context.WithTimeout(ctx, s.cfg.CycleTimeout)
	res := s.runner.RunCycle(cycleCtx, b)
	cancel()

	s.metrics.CyclesRun.Inc()
	if res.Status == StatusError {
		s.metrics.CyclesFailed.Inc()
	}
	if res.Rebalanced {
		s.metrics.Rebalances.Inc()
	}

	finished := s.now()
	s.mu.Lock()
	if stored, ok := s.bots[b.ID]; ok {
		stored.Status = res.Status
		stored.Error = res.Error
		stored.LastRunTime = &finished
	}
	s.mu.Unlock()

	// Persist exactly once per cycle, after the result is applied. A failed
	// save is logged; the next cycle's save is the retry.
	s.persist(ctx)

	if s.recorder != nil {
		s.recorder.Record(res)
	}
	s.notify(ctx, summarize(b, res))
	s.log.Info("cycle finished",
		zap.String("bot_id", b.ID),
		zap.Bool("rebalanced", res.Rebalanced),
		zap.String("status", string(res.Status)),
		zap.Duration("elapsed", res.Elapsed),
	)
}

// persist writes the full registry. Saves are serialized: cycles for
// distinct bots may finish near-simultaneously and each triggers one.
func (s *Scheduler) persist(ctx context.Context) {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	bots := s.ListBots()
	if err := s.registry.Save(ctx, bots); err != nil {
		s.log.Warn("bot registry save failed", zap.Error(err))
	}
}

func (s *Scheduler) notify(ctx context.Context, message string) {
	if s.notifier == nil || message == "" {
		return
	}
	if err := s.notifier.Send(ctx, message); err != nil {
		s.log.Warn("notification failed", zap.Error(err))
	}
}

func summarize(b Bot, res CycleResult) string {
	var sb strings.Builder
	switch {
	case res.Status == StatusError && !res.Rebalanced:
		fmt.Fprintf(&sb, "Bot %s (%s) cycle failed: %s", b.ID, b.Type, res.Error)
	case !res.Rebalanced:
		fmt.Fprintf(&sb, "Bot %s (%s): hedge within threshold, no action", b.ID, b.Type)
	default:
		fmt.Fprintf(&sb, "Bot %s (%s) rebalanced:", b.ID, b.Type)
		for _, asset := range hedge.HedgeAssets() {
			outcome, ok := res.Outcomes[asset]
			if !ok || outcome.Skipped {
				continue
			}
			if outcome.Error != "" {
				fmt.Fprintf(&sb, "\n%s %+.6f FAILED (%s)", asset, outcome.Adjustment, outcome.Error)
			} else if outcome.Order != nil {
				fmt.Fprintf(&sb, "\n%s %+.6f %s tx %s", asset, outcome.Adjustment, outcome.Order.Direction, outcome.Order.TxID)
			}
		}
	}
	return sb.String()
}
