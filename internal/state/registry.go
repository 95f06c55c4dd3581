package state

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"jlp-hedge-bot/internal/bot"

	"go.uber.org/zap"
)

const botRegistryKey = "bots:registry"

// BotRegistry persists the full bot set as JSON under a single key. An
// absent key means zero bots; malformed content degrades to zero bots with
// a warning instead of failing startup.
type BotRegistry struct {
	store Store
	log   *zap.Logger
}

func NewBotRegistry(store Store, log *zap.Logger) *BotRegistry {
	return &BotRegistry{store: store, log: log}
}

func (r *BotRegistry) Load(ctx context.Context) ([]bot.Bot, error) {
	raw, ok, err := r.store.Get(ctx, botRegistryKey)
	if err != nil {
		return nil, err
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var bots []bot.Bot
	if err := json.Unmarshal([]byte(raw), &bots); err != nil {
		r.log.Warn("bot registry payload is malformed, starting empty", zap.Error(err))
		return nil, nil
	}
	return bots, nil
}

func (r *BotRegistry) Save(ctx context.Context, bots []bot.Bot) error {
	// Stable order keeps save(load()) byte-identical when nothing changed.
	sorted := append([]bot.Bot(nil), bots...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	payload, err := json.Marshal(sorted)
	if err != nil {
		return err
	}
	return r.store.Set(ctx, botRegistryKey, string(payload))
}
