package provider

import (
	"context"
	"sync"
	"time"

	"github.com/meridianbi/meridian/internal/observability"
	"github.com/meridianbi/meridian/internal/tracing"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

// CallFunc invokes one provider and returns its completion
type CallFunc func(ctx context.Context, p Provider) (string, error)

// Selector routes calls across a priority-ordered provider list with a
// sticky index: calls start from the last provider that succeeded instead of
// re-probing dead providers from the top every time.
type Selector struct {
	providers []Provider
	quota     *QuotaTracker
	cooldown  time.Duration
	logger    zerolog.Logger

	// sticky is shared across concurrent callers and mutex-serialized
	mu     sync.Mutex
	sticky int
}

// SelectorOption configures a Selector
type SelectorOption func(*Selector)

// WithCooldown overrides the cool-down applied on rate-limit errors
func WithCooldown(d time.Duration) SelectorOption {
	return func(s *Selector) {
		s.cooldown = d
	}
}

// WithLogger sets the selector's logger
func WithLogger(logger zerolog.Logger) SelectorOption {
	return func(s *Selector) {
		s.logger = logger
	}
}

// NewSelector creates a failover selector. The provider list must already be
// priority-ordered (see BuildProviders).
func NewSelector(providers []Provider, quota *QuotaTracker, opts ...SelectorOption) (*Selector, error) {
	if len(providers) == 0 {
		return nil, ErrNoProviders
	}
	if quota == nil {
		return nil, ErrNoProviders
	}

	s := &Selector{
		providers: providers,
		quota:     quota,
		cooldown:  DefaultCooldown,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Call tries providers starting at the sticky index, skipping providers
// without quota. A provider error logs and advances to the next candidate;
// rate-limit errors additionally mark the provider exhausted. When nothing
// is usable the selector returns a terminal outcome instead of panicking, so
// non-critical callers keep running.
func (s *Selector) Call(ctx context.Context, fn CallFunc) Outcome {
	ctx, span := tracing.StartSpan(ctx, "meridian.provider", "provider.call")
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, s.logger)

	start := s.stickyIndex()
	n := len(s.providers)

	var lastErr error
	tried := 0

	for i := 0; i < n; i++ {
		idx := (start + i) % n
		p := s.providers[idx]

		if !s.quota.HasQuota(p.Name()) {
			logger.Debug().Str("provider", p.Name()).Msg("Skipping provider without quota")
			continue
		}

		tried++
		callStart := time.Now()
		text, err := fn(ctx, p)
		if err == nil {
			s.quota.RecordUse(p.Name())
			s.setSticky(idx)
			observability.RecordProviderCall(p.Name(), "ok", time.Since(callStart))
			span.SetAttributes(attribute.String("provider", p.Name()))
			return Ok(p.Name(), text)
		}

		lastErr = err

		if IsRateLimitError(err) {
			s.quota.MarkExhausted(p.Name(), s.cooldown)
			observability.RecordProviderCall(p.Name(), "rate_limited", time.Since(callStart))
			logger.Warn().Str("provider", p.Name()).Err(err).Msg("Provider rate-limited, advancing")
		} else {
			observability.RecordProviderCall(p.Name(), "error", time.Since(callStart))
			logger.Warn().Str("provider", p.Name()).Err(err).Msg("Provider failed, advancing")
		}
	}

	if tried == 0 {
		logger.Error().Msg("All providers quota exhausted")
		return Exhausted()
	}

	logger.Error().Err(lastErr).Msg("All providers failed")
	return Failed(lastErr)
}

// Generate runs a single-prompt completion through the failover order
func (s *Selector) Generate(ctx context.Context, prompt string) Outcome {
	return s.Call(ctx, func(ctx context.Context, p Provider) (string, error) {
		return p.Generate(ctx, prompt)
	})
}

// Chat runs a conversation completion through the failover order
func (s *Selector) Chat(ctx context.Context, messages []Message) Outcome {
	return s.Call(ctx, func(ctx context.Context, p Provider) (string, error) {
		return p.Chat(ctx, messages)
	})
}

// Providers returns the priority-ordered provider list
func (s *Selector) Providers() []Provider {
	return s.providers
}

func (s *Selector) stickyIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sticky
}

func (s *Selector) setSticky(idx int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sticky = idx
}
