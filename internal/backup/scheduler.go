package backup

import (
	"context"
	"sync"
	"time"

	"github.com/juju/clock"

	"muwi-backup/internal/logging"
)

// Auto-backup frequencies.
const (
	FrequencyHourly = "hourly"
	FrequencyDaily  = "daily"
	FrequencyWeekly = "weekly"
)

// AutoBackupConfig configures unattended backups.
type AutoBackupConfig struct {
	Enabled    bool   `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	Frequency  string `json:"frequency" yaml:"frequency" mapstructure:"frequency"`
	Location   string `json:"location" yaml:"location" mapstructure:"location"`
	MaxBackups int    `json:"maxBackups" yaml:"max_backups" mapstructure:"max_backups"`
	LastBackup string `json:"lastBackup,omitempty" yaml:"last_backup,omitempty" mapstructure:"last_backup"`
}

// IntervalFor returns the cadence of a frequency. Unknown values run daily.
func IntervalFor(frequency string) time.Duration {
	switch frequency {
	case FrequencyHourly:
		return time.Hour
	case FrequencyWeekly:
		return 7 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// Runner performs one unattended backup.
type Runner interface {
	PerformAutoBackup(ctx context.Context, location string, maxBackups int) BackupResult
}

// Scheduler owns the single recurring auto-backup timer.
type Scheduler struct {
	runner Runner
	clock  clock.Clock
	logger *logging.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool
	loops   sync.WaitGroup

	// held while a scheduled backup runs
	inFlight sync.Mutex
}

// NewScheduler creates an idle scheduler.
func NewScheduler(runner Runner, clk clock.Clock, logger *logging.Logger) *Scheduler {
	if clk == nil {
		clk = clock.WallClock
	}
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &Scheduler{runner: runner, clock: clk, logger: logger}
}

// Start replaces any active schedule with one built from config. A disabled config or
// one without a location leaves the scheduler idle. onComplete may be nil.
func (s *Scheduler) Start(ctx context.Context, config AutoBackupConfig, onComplete func(BackupResult)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()

	if !config.Enabled || config.Location == "" {
		return
	}

	interval := IntervalFor(config.Frequency)
	timer := s.clock.NewTimer(interval)
	runCtx, cancel := context.WithCancel(ctx)

	catchUp := false
	if last, ok := parseTimestamp(config.LastBackup); ok && s.clock.Now().Sub(last) >= interval {
		catchUp = true
	}

	s.cancel = cancel
	s.running = true
	schedulerRunning.Set(1)

	s.logger.LogSchedulerEvent("started", map[string]interface{}{
		"frequency":   config.Frequency,
		"interval":    interval.String(),
		"location":    config.Location,
		"max_backups": config.MaxBackups,
		"catch_up":    catchUp,
	})

	s.loops.Add(1)
	go func() {
		defer s.loops.Done()
		s.loop(runCtx, timer, interval, config, catchUp, onComplete)
	}()
}

// Stop cancels the active schedule. It is safe to call when idle.
// A backup already in progress runs to completion.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

// StopAndWait cancels the active schedule and blocks until every schedule loop has
// returned, including one still finishing a backup.
func (s *Scheduler) StopAndWait() {
	s.Stop()
	s.loops.Wait()
}

func (s *Scheduler) stopLocked() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.cancel = nil
	s.running = false
	schedulerRunning.Set(0)
	s.logger.LogSchedulerEvent("stopped", nil)
}

// IsRunning reports whether a schedule is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) loop(ctx context.Context, timer clock.Timer, interval time.Duration, config AutoBackupConfig, catchUp bool, onComplete func(BackupResult)) {
	defer timer.Stop()

	if catchUp {
		s.run(ctx, "catch_up", config, onComplete)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.Chan():
			if ctx.Err() != nil {
				return
			}
			timer.Reset(interval)
			s.run(ctx, "tick", config, onComplete)
		}
	}
}

func (s *Scheduler) run(ctx context.Context, trigger string, config AutoBackupConfig, onComplete func(BackupResult)) {
	if !s.inFlight.TryLock() {
		skippedTicksTotal.Inc()
		s.logger.LogSchedulerEvent("skipped", map[string]interface{}{"trigger": trigger})
		return
	}
	defer s.inFlight.Unlock()

	result := s.runner.PerformAutoBackup(context.WithoutCancel(ctx), config.Location, config.MaxBackups)

	fields := map[string]interface{}{
		"trigger": trigger,
		"success": result.Success,
	}
	if result.Success {
		fields["path"] = result.FilePath
		fields["records"] = result.RecordCount
	} else {
		fields["error"] = result.Error
	}
	s.logger.LogSchedulerEvent("completed", fields)

	if onComplete != nil {
		onComplete(result)
	}
}

func parseTimestamp(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range createdAtLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
