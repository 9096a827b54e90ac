/*
scheduler.go - Forced selection refresher

PURPOSE:
  Timelines configured with a forced selection ("current period", "latest
  30 days") must move with the calendar. The scheduler re-applies them to
  every stored timeline once per day, so the stored filter and the filter
  log follow the date even when nobody opens the timeline.

DESIGN:
  - Runs a background goroutine with a configurable check interval
  - Only does work when the local date changed since the last run
  - Each run goes through Handler.RefreshForced, under the handler lock

CONFIGURATION:
  - CheckInterval: How often to look at the date (default: 1 hour)
  - Enabled: Whether the scheduler runs at all

USAGE:
  scheduler := NewForcedSelectionScheduler(handler)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: RefreshForced, TriggerRefresh (manual run)
*/
package api

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/warp/timeline-engine/calendar"
)

// ForcedSelectionScheduler re-applies forced selections when the day
// rolls over.
type ForcedSelectionScheduler struct {
	Handler       *Handler
	CheckInterval time.Duration
	Enabled       bool

	logger  *slog.Logger
	lastDay calendar.Date
	ticker  *time.Ticker
	stop    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
}

// NewForcedSelectionScheduler creates a new scheduler.
func NewForcedSelectionScheduler(h *Handler) *ForcedSelectionScheduler {
	return &ForcedSelectionScheduler{
		Handler:       h,
		CheckInterval: time.Hour,
		Enabled:       true,
		logger:        h.Logger.With(slog.String("component", "scheduler")),
	}
}

// Start begins the scheduler.
func (s *ForcedSelectionScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		s.logger.Info("disabled, not starting")
		return
	}
	if s.ticker != nil {
		return
	}

	s.ticker = time.NewTicker(s.CheckInterval)
	s.stop = make(chan struct{})
	s.wg.Add(1)
	go s.run()

	s.logger.Info("started", slog.Duration("interval", s.CheckInterval))
}

// Stop stops the scheduler and waits for a running check to finish.
func (s *ForcedSelectionScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker == nil {
		return
	}
	s.ticker.Stop()
	close(s.stop)
	s.wg.Wait()
	s.ticker = nil
	s.logger.Info("stopped")
}

func (s *ForcedSelectionScheduler) run() {
	defer s.wg.Done()

	// Run immediately on start
	s.check()

	for {
		select {
		case <-s.ticker.C:
			s.check()
		case <-s.stop:
			return
		}
	}
}

// check refreshes once per date.
func (s *ForcedSelectionScheduler) check() {
	today := s.Handler.today()
	if !s.lastDay.IsZero() && s.lastDay.Equal(today) {
		return
	}
	if _, err := s.RunNow(context.Background()); err != nil {
		return
	}
	s.lastDay = today
}

// RunNow refreshes immediately, whatever the date, and returns how many
// timelines changed.
func (s *ForcedSelectionScheduler) RunNow(ctx context.Context) (int, error) {
	checked, refreshed, err := s.Handler.RefreshForced(ctx)
	if err != nil {
		s.logger.Error("refresh failed", slog.String("error", err.Error()))
		return refreshed, err
	}
	if checked > 0 {
		s.logger.Info("forced selections refreshed",
			slog.Int("checked", checked),
			slog.Int("refreshed", refreshed))
	}
	return refreshed, nil
}
