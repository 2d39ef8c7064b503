// Package matching computes and posts matching bonuses: a percentage of the
// commissions earned by a member's downline, paid back to the member.
package matching

import (
	"fmt"
	"time"

	"github.com/HSouheill/barrim_matching/models"
)

const (
	defaultLockTTL = 30 * time.Second
	defaultWorkers = 8
)

// Engine runs eligibility, downline enumeration, calculation and posting.
// It holds no mutable state and is safe for concurrent use.
type Engine struct {
	directory Directory
	ledger    Ledger
	policies  PolicyStore
	bonuses   BonusStore

	locker       Locker
	notifier     Notifier
	matchedTypes []string
	lockTTL      time.Duration
	workers      int
	now          func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithLocker serializes postings through l.
func WithLocker(l Locker) Option {
	return func(e *Engine) { e.locker = l }
}

// WithNotifier registers the notifier called after each posting.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithMatchedTypes overrides the income types a matching bonus is computed from.
func WithMatchedTypes(types []string) Option {
	return func(e *Engine) {
		if len(types) > 0 {
			e.matchedTypes = append([]string(nil), types...)
		}
	}
}

// WithLockTTL sets how long a posting lock is held before it expires.
func WithLockTTL(ttl time.Duration) Option {
	return func(e *Engine) {
		if ttl > 0 {
			e.lockTTL = ttl
		}
	}
}

// WithWorkers bounds the number of members posted concurrently by RunCycle.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine builds an engine over the given stores.
func NewEngine(directory Directory, ledger Ledger, policies PolicyStore, bonuses BonusStore, opts ...Option) *Engine {
	e := &Engine{
		directory:    directory,
		ledger:       ledger,
		policies:     policies,
		bonuses:      bonuses,
		matchedTypes: append([]string(nil), models.DefaultMatchedTypes...),
		lockTTL:      defaultLockTTL,
		workers:      defaultWorkers,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// MatchedTypes returns the income types the engine matches.
func (e *Engine) MatchedTypes() []string {
	return append([]string(nil), e.matchedTypes...)
}

func computationFailed(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrComputationFailed, op, err)
}
