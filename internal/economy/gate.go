// Package economy implements the point-balance admission control consulted
// before any cost-bearing operation. The gate owns the only mutable balance
// state; callers must treat Cost + TryDeduct as a single logical step.
package economy

import (
	"strings"
	"sync"
	"time"

	"parley/internal/logging"
	"parley/internal/types"
)

// Command is a recognized cost-bearing command prefix.
type Command string

const (
	CommandImage   Command = "/image"
	CommandSearch  Command = "/search"
	CommandResume  Command = "/resume"
	CommandReport  Command = "/report"
	CommandProject Command = "/project"
	CommandChart   Command = "/chart"
	CommandTable   Command = "/table"
	CommandNews    Command = "/news"
)

// Config holds the cost constants. Command costs are flat and mutually
// exclusive with the mode surcharges.
type Config struct {
	DailyAllotment        int
	DeepThinkingSurcharge int
	ScientificSurcharge   int
	CommandCosts          map[Command]int
}

// DefaultConfig returns the standard point economy.
func DefaultConfig() Config {
	return Config{
		DailyAllotment:        100,
		DeepThinkingSurcharge: 5,
		ScientificSurcharge:   10,
		CommandCosts: map[Command]int{
			CommandImage:   20,
			CommandSearch:  10,
			CommandResume:  15,
			CommandReport:  15,
			CommandProject: 25,
			CommandChart:   10,
			CommandTable:   10,
			CommandNews:    10,
		},
	}
}

// Gate guards the point balance. All access is serialized by one mutex so
// check-then-deduct is atomic even under a multi-threaded caller.
type Gate struct {
	mu       sync.Mutex
	cfg      Config
	state    types.EconomyState
	now      func() time.Time
	onChange func(types.EconomyState)
}

// Option customizes a Gate.
type Option func(*Gate)

// WithClock injects the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

// WithOnChange registers a persistence hook invoked (while unlocked state is
// already copied) after every state mutation.
func WithOnChange(fn func(types.EconomyState)) Option {
	return func(g *Gate) { g.onChange = fn }
}

// New creates a gate seeded with a previously persisted state. A zero state
// starts with a full allotment dated today.
func New(cfg Config, state types.EconomyState, opts ...Option) *Gate {
	g := &Gate{cfg: cfg, state: state, now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	if g.state.LastResetDay == "" {
		g.state = types.EconomyState{
			Balance:      cfg.DailyAllotment,
			LastResetDay: types.DayKey(g.now()),
		}
	}
	return g
}

// ParseCommand returns the recognized command the prompt starts with.
func ParseCommand(promptText string) (Command, bool) {
	trimmed := strings.TrimSpace(promptText)
	first, _, _ := strings.Cut(trimmed, " ")
	for _, c := range []Command{
		CommandImage, CommandSearch, CommandResume, CommandReport,
		CommandProject, CommandChart, CommandTable, CommandNews,
	} {
		if strings.EqualFold(first, string(c)) {
			return c, true
		}
	}
	return "", false
}

// Cost computes the point cost of a prompt under the given settings.
// A recognized command carries its flat cost and suppresses the mode
// surcharges; otherwise the cost is the sum of enabled-mode surcharges,
// zero when neither mode is on.
func (g *Gate) Cost(promptText string, settings types.Settings) int {
	if cmd, ok := ParseCommand(promptText); ok {
		return g.cfg.CommandCosts[cmd]
	}

	cost := 0
	if settings.DeepThinking {
		cost += g.cfg.DeepThinkingSurcharge
	}
	if settings.ScientificMode {
		cost += g.cfg.ScientificSurcharge
	}
	return cost
}

// TryDeduct atomically checks and deducts. It succeeds only when the
// (possibly just reset) balance covers the amount; the balance never goes
// negative. A zero amount always succeeds without spending.
func (g *Gate) TryDeduct(amount int) bool {
	g.mu.Lock()
	changed := g.resetIfNewDay()

	ok, deducted := true, false
	if amount > 0 {
		if g.state.Balance < amount {
			ok = false
		} else {
			g.state.Balance -= amount
			changed, deducted = true, true
		}
	}
	snapshot := g.state
	g.mu.Unlock()

	if !ok {
		logging.Economy("deduction of %d rejected (balance=%d)", amount, snapshot.Balance)
		return false
	}
	if deducted {
		logging.Economy("deducted %d (balance=%d)", amount, snapshot.Balance)
	}
	if changed {
		g.notify(snapshot)
	}
	return true
}

// Snapshot returns the current state, applying the daily reset first.
func (g *Gate) Snapshot() types.EconomyState {
	g.mu.Lock()
	changed := g.resetIfNewDay()
	state := g.state
	g.mu.Unlock()

	if changed {
		g.notify(state)
	}
	return state
}

// resetIfNewDay restores the full allotment on the first access after local
// midnight since the last recorded reset. Callers hold g.mu and notify the
// persistence hook after unlocking when it reports a change.
func (g *Gate) resetIfNewDay() bool {
	today := types.DayKey(g.now())
	if g.state.LastResetDay == today {
		return false
	}
	g.state = types.EconomyState{Balance: g.cfg.DailyAllotment, LastResetDay: today}
	logging.Economy("daily reset to %d (day=%s)", g.state.Balance, today)
	return true
}

func (g *Gate) notify(state types.EconomyState) {
	if g.onChange != nil {
		g.onChange(state)
	}
}
