package provider

import (
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// ResetScheduler clears daily quota counters at midnight. The tracker also
// resets lazily on the first call of a new day; the scheduled job keeps
// published metrics honest in long-lived processes.
type ResetScheduler struct {
	cron    *cron.Cron
	tracker *QuotaTracker
}

// NewResetScheduler creates a scheduler bound to a quota tracker
func NewResetScheduler(tracker *QuotaTracker) (*ResetScheduler, error) {
	c := cron.New()

	_, err := c.AddFunc("0 0 * * *", func() {
		tracker.ResetDaily()
		log.Info().Msg("Daily provider quota counters reset")
	})
	if err != nil {
		return nil, err
	}

	return &ResetScheduler{
		cron:    c,
		tracker: tracker,
	}, nil
}

// Start starts the midnight reset job
func (s *ResetScheduler) Start() {
	s.cron.Start()
}

// Stop stops the scheduler and waits for a running job to finish
func (s *ResetScheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
