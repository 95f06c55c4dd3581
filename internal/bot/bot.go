package bot

import (
	"errors"
	"fmt"
	"time"
)

type Status string

const (
	StatusRunning Status = "RUNNING"
	StatusStopped Status = "STOPPED"
	StatusError   Status = "ERROR"
)

type Type string

const (
	TypeJLPHedge Type = "JLP_HEDGE"
)

var (
	ErrDuplicateBotType = errors.New("bot of this type already exists")
	ErrUnknownBotType   = errors.New("unknown bot type")
)

// Bot is one scheduled hedge instance. The scheduler owns all mutation;
// everyone else works with copies.
type Bot struct {
	ID                    string     `json:"id"`
	Type                  Type       `json:"type"`
	Status                Status     `json:"status"`
	IntervalHours         float64    `json:"interval_hours"`
	MinRebalanceThreshold float64    `json:"min_rebalance_threshold"`
	LastRunTime           *time.Time `json:"last_run_time,omitempty"`
	Error                 string     `json:"error,omitempty"`
}

// CreateOptions describes a bot to register. A nil MinRebalanceThreshold
// takes the scheduler's default; an explicit 0 means rebalance on any
// deviation.
type CreateOptions struct {
	Type                  Type
	IntervalHours         float64
	MinRebalanceThreshold *float64
}

func (o CreateOptions) validate() error {
	switch o.Type {
	case TypeJLPHedge:
	default:
		return fmt.Errorf("%w: %s", ErrUnknownBotType, o.Type)
	}
	if o.IntervalHours <= 0 {
		return errors.New("interval hours must be > 0")
	}
	if o.MinRebalanceThreshold != nil && (*o.MinRebalanceThreshold < 0 || *o.MinRebalanceThreshold > 100) {
		return errors.New("rebalance threshold must be within [0, 100]")
	}
	return nil
}

// Due reports whether the bot's interval has elapsed. A bot that never ran
// is immediately due.
func (b *Bot) Due(now time.Time) bool {
	if b.LastRunTime == nil {
		return true
	}
	interval := time.Duration(b.IntervalHours * float64(time.Hour))
	return now.Sub(*b.LastRunTime) >= interval
}
