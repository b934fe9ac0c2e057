package provider

import (
	"sync"
	"time"

	"github.com/meridianbi/meridian/internal/config"
	"github.com/meridianbi/meridian/internal/observability"
)

// DefaultCooldown is how long a rate-limited provider stays out of rotation
// when the provider did not report its own reset time.
const DefaultCooldown = time.Hour

type quotaEntry struct {
	dailyLimit  int // 0 = unlimited
	used        int
	exhausted   bool
	resetAt     time.Time
	lastUsedDay string
}

// QuotaTracker tracks per-provider daily usage and exhaustion state. It is an
// explicit instance owned by the composition root and injected into the
// failover selector; all mutation is serialized behind one mutex because
// concurrent swarm tasks share it.
type QuotaTracker struct {
	mu      sync.Mutex
	entries map[string]*quotaEntry

	// now is injectable for tests
	now func() time.Time
}

// NewQuotaTracker creates a tracker for the given provider descriptors
func NewQuotaTracker(descriptors []config.ProviderConfig) *QuotaTracker {
	observability.EnsureRegistered()

	entries := make(map[string]*quotaEntry, len(descriptors))
	for _, d := range descriptors {
		entries[d.ID] = &quotaEntry{dailyLimit: d.DailyLimit}
	}

	return &QuotaTracker{
		entries: entries,
		now:     time.Now,
	}
}

func dayOf(t time.Time) string {
	return t.Format("2006-01-02")
}

// HasQuota reports whether a provider may serve a call right now. An expired
// exhaustion window is cleared as a side effect.
func (q *QuotaTracker) HasQuota(providerID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	entry, ok := q.entries[providerID]
	if !ok {
		return false
	}

	now := q.now()

	if entry.exhausted {
		if now.Before(entry.resetAt) {
			return false
		}
		entry.exhausted = false
		entry.resetAt = time.Time{}
		observability.SetProviderCooldown(providerID, false)
	}

	if entry.dailyLimit <= 0 {
		return true
	}

	// A new calendar day gets a fresh counter
	if entry.lastUsedDay != dayOf(now) {
		return true
	}

	return entry.used < entry.dailyLimit
}

// RecordUse increments the provider's daily counter after a successful call.
// The counter resets to 1 on the first call of a new calendar day.
func (q *QuotaTracker) RecordUse(providerID string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	entry, ok := q.entries[providerID]
	if !ok {
		return
	}

	today := dayOf(q.now())
	if entry.lastUsedDay != today {
		entry.used = 1
		entry.lastUsedDay = today
	} else {
		entry.used++
	}

	observability.SetProviderQuotaUsed(providerID, entry.used)
}

// MarkExhausted flags a provider as rate-limited until now+cooldown.
// A non-positive cooldown falls back to DefaultCooldown.
func (q *QuotaTracker) MarkExhausted(providerID string, cooldown time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()

	entry, ok := q.entries[providerID]
	if !ok {
		return
	}

	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}

	entry.exhausted = true
	entry.resetAt = q.now().Add(cooldown)
	observability.SetProviderCooldown(providerID, true)
}

// Usage returns the current counter and limit for a provider
func (q *QuotaTracker) Usage(providerID string) (used, limit int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	entry, ok := q.entries[providerID]
	if !ok {
		return 0, 0
	}

	// A stale counter from a previous day reads as zero
	if entry.lastUsedDay != dayOf(q.now()) {
		return 0, entry.dailyLimit
	}

	return entry.used, entry.dailyLimit
}

// Exhausted reports whether the provider is currently flagged exhausted
// without clearing an expired window.
func (q *QuotaTracker) Exhausted(providerID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	entry, ok := q.entries[providerID]
	if !ok {
		return false
	}
	return entry.exhausted && q.now().Before(entry.resetAt)
}

// UpdateLimits applies freshly loaded descriptor limits without discarding
// usage counters or exhaustion state. New providers get a fresh entry;
// descriptors for unknown selectors are ignored.
func (q *QuotaTracker) UpdateLimits(descriptors []config.ProviderConfig) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, d := range descriptors {
		if entry, ok := q.entries[d.ID]; ok {
			entry.dailyLimit = d.DailyLimit
		} else {
			q.entries[d.ID] = &quotaEntry{dailyLimit: d.DailyLimit}
		}
	}
}

// ResetDaily clears all usage counters. Called by the midnight reset job so
// long-lived processes do not depend solely on the lazy calendar-day check.
func (q *QuotaTracker) ResetDaily() {
	q.mu.Lock()
	defer q.mu.Unlock()

	today := dayOf(q.now())
	for id, entry := range q.entries {
		entry.used = 0
		entry.lastUsedDay = today
		observability.SetProviderQuotaUsed(id, 0)
	}
}
