package backup

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/juju/clock"
	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"muwi-backup/internal/logging"
)

const (
	shortWait = 50 * time.Millisecond
	longWait  = 5 * time.Second
)

type autoBackupCall struct {
	location   string
	maxBackups int
}

type fakeRunner struct {
	calls   chan autoBackupCall
	release chan struct{}
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{calls: make(chan autoBackupCall, 10)}
}

func (r *fakeRunner) PerformAutoBackup(_ context.Context, location string, maxBackups int) BackupResult {
	r.calls <- autoBackupCall{location: location, maxBackups: maxBackups}
	if r.release != nil {
		<-r.release
	}
	return BackupResult{Success: true, FilePath: location + "/muwi-backup-1.json", RecordCount: 3}
}

func (r *fakeRunner) expectCall(t *testing.T) autoBackupCall {
	t.Helper()
	select {
	case call := <-r.calls:
		return call
	case <-time.After(longWait):
		t.Fatal("expected an auto-backup run")
		return autoBackupCall{}
	}
}

func (r *fakeRunner) expectNoCall(t *testing.T) {
	t.Helper()
	select {
	case call := <-r.calls:
		t.Fatalf("unexpected auto-backup run: %+v", call)
	case <-time.After(shortWait):
	}
}

func newTestScheduler(runner Runner, clk *testclock.Clock) *Scheduler {
	return NewScheduler(runner, clk, logging.NewDiscardLogger())
}

func enabledConfig(frequency string) AutoBackupConfig {
	return AutoBackupConfig{Enabled: true, Frequency: frequency, Location: "/tmp", MaxBackups: 5}
}

func TestIntervalFor(t *testing.T) {
	tests := []struct {
		frequency string
		wantMs    int64
	}{
		{FrequencyHourly, 3600000},
		{FrequencyDaily, 86400000},
		{FrequencyWeekly, 604800000},
		{"fortnightly", 86400000},
		{"", 86400000},
	}

	for _, tt := range tests {
		t.Run(tt.frequency, func(t *testing.T) {
			assert.Equal(t, tt.wantMs, IntervalFor(tt.frequency).Milliseconds())
		})
	}
}

func TestScheduler_DisabledOrMissingLocationIsNoop(t *testing.T) {
	clk := testclock.NewClock(testNow)
	runner := newFakeRunner()
	s := newTestScheduler(runner, clk)

	s.Start(context.Background(), AutoBackupConfig{Enabled: false, Frequency: FrequencyHourly, Location: "/tmp"}, nil)
	assert.False(t, s.IsRunning())

	s.Start(context.Background(), AutoBackupConfig{Enabled: true, Frequency: FrequencyHourly}, nil)
	assert.False(t, s.IsRunning())

	runner.expectNoCall(t)
}

func TestScheduler_StartReplacesRunningSchedule(t *testing.T) {
	clk := testclock.NewClock(testNow)
	s := newTestScheduler(newFakeRunner(), clk)

	s.Start(context.Background(), enabledConfig(FrequencyHourly), nil)
	assert.True(t, s.IsRunning())

	s.Start(context.Background(), AutoBackupConfig{Enabled: false}, nil)
	assert.False(t, s.IsRunning(), "a disabled config must stop the previous schedule")
}

func TestScheduler_TicksAtCadence(t *testing.T) {
	clk := testclock.NewClock(testNow)
	runner := newFakeRunner()
	s := newTestScheduler(runner, clk)

	var mu sync.Mutex
	var results []BackupResult
	s.Start(context.Background(), enabledConfig(FrequencyHourly), func(r BackupResult) {
		mu.Lock()
		results = append(results, r)
		mu.Unlock()
	})
	defer s.Stop()

	require.NoError(t, clk.WaitAdvance(59*time.Minute, longWait, 1))
	runner.expectNoCall(t)

	require.NoError(t, clk.WaitAdvance(time.Minute, longWait, 1))
	assert.Equal(t, autoBackupCall{location: "/tmp", maxBackups: 5}, runner.expectCall(t))

	require.NoError(t, clk.WaitAdvance(time.Hour, longWait, 1))
	runner.expectCall(t)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(results) == 2
	}, longWait, 10*time.Millisecond)
}

func TestScheduler_CatchUpWhenOverdue(t *testing.T) {
	clk := testclock.NewClock(testNow)
	runner := newFakeRunner()
	s := newTestScheduler(runner, clk)

	config := enabledConfig(FrequencyDaily)
	config.LastBackup = testNow.Add(-25 * time.Hour).Format(time.RFC3339)

	s.Start(context.Background(), config, nil)
	defer s.Stop()

	runner.expectCall(t)
	runner.expectNoCall(t)
}

func TestScheduler_NoCatchUpWhenRecent(t *testing.T) {
	clk := testclock.NewClock(testNow)
	runner := newFakeRunner()
	s := newTestScheduler(runner, clk)

	config := enabledConfig(FrequencyHourly)
	config.LastBackup = testNow.Add(-10 * time.Minute).Format("2006-01-02T15:04:05.000Z")

	s.Start(context.Background(), config, nil)
	defer s.Stop()

	runner.expectNoCall(t)
}

func TestScheduler_StopIsIdempotent(t *testing.T) {
	clk := testclock.NewClock(testNow)
	runner := newFakeRunner()
	s := newTestScheduler(runner, clk)

	s.Stop()
	s.Start(context.Background(), enabledConfig(FrequencyHourly), nil)
	s.Stop()
	s.Stop()
	assert.False(t, s.IsRunning())

	clk.Advance(2 * time.Hour)
	runner.expectNoCall(t)
}

func TestScheduler_SkipsWhileBackupInFlight(t *testing.T) {
	clk := testclock.NewClock(testNow)
	runner := newFakeRunner()
	runner.release = make(chan struct{})
	s := newTestScheduler(runner, clk)

	overdue := enabledConfig(FrequencyHourly)
	overdue.LastBackup = testNow.Add(-2 * time.Hour).Format(time.RFC3339)

	s.Start(context.Background(), overdue, nil)
	runner.expectCall(t)

	// a second schedule starts while the first catch-up is still running
	s.Start(context.Background(), overdue, nil)
	runner.expectNoCall(t)

	close(runner.release)
	s.Stop()
}

func TestScheduler_CatchUpAtExactInterval(t *testing.T) {
	for _, frequency := range []string{FrequencyHourly, FrequencyDaily, FrequencyWeekly} {
		t.Run(frequency, func(t *testing.T) {
			clk := testclock.NewClock(testNow)
			runner := newFakeRunner()
			s := newTestScheduler(runner, clk)

			config := enabledConfig(frequency)
			config.LastBackup = testNow.Add(-IntervalFor(frequency)).Format("2006-01-02T15:04:05.000Z")

			s.Start(context.Background(), config, nil)
			defer s.Stop()

			runner.expectCall(t)
		})
	}
}

func TestScheduler_NoCatchUpJustInsideInterval(t *testing.T) {
	clk := testclock.NewClock(testNow)
	runner := newFakeRunner()
	s := newTestScheduler(runner, clk)

	config := enabledConfig(FrequencyHourly)
	config.LastBackup = testNow.Add(-time.Hour + time.Millisecond).Format("2006-01-02T15:04:05.000Z")

	s.Start(context.Background(), config, nil)
	defer s.Stop()

	runner.expectNoCall(t)
}

// gatedClock parks the first NewTimer call until proceed is closed.
type gatedClock struct {
	*testclock.Clock
	once    sync.Once
	entered chan struct{}
	proceed chan struct{}
}

func (c *gatedClock) NewTimer(d time.Duration) clock.Timer {
	c.once.Do(func() {
		close(c.entered)
		<-c.proceed
	})
	return c.Clock.NewTimer(d)
}

func TestScheduler_ConcurrentStartKeepsOneSchedule(t *testing.T) {
	base := testclock.NewClock(testNow)
	clk := &gatedClock{Clock: base, entered: make(chan struct{}), proceed: make(chan struct{})}
	runner := newFakeRunner()
	s := NewScheduler(runner, clk, logging.NewDiscardLogger())

	firstDone := make(chan struct{})
	go func() {
		defer close(firstDone)
		s.Start(context.Background(), enabledConfig(FrequencyHourly), nil)
	}()
	<-clk.entered

	secondDone := make(chan struct{})
	go func() {
		defer close(secondDone)
		s.Start(context.Background(), enabledConfig(FrequencyHourly), nil)
	}()

	select {
	case <-secondDone:
		t.Fatal("second Start must wait for the first to finish")
	case <-time.After(shortWait):
	}

	close(clk.proceed)
	<-firstDone
	<-secondDone
	assert.True(t, s.IsRunning())

	s.StopAndWait()
	assert.False(t, s.IsRunning())

	base.Advance(time.Hour)
	base.Advance(time.Hour)
	runner.expectNoCall(t)
}

func TestScheduler_StopAndWaitLetsBackupFinish(t *testing.T) {
	clk := testclock.NewClock(testNow)
	runner := newFakeRunner()
	runner.release = make(chan struct{})
	s := newTestScheduler(runner, clk)

	var completed sync.WaitGroup
	completed.Add(1)
	overdue := enabledConfig(FrequencyHourly)
	overdue.LastBackup = testNow.Add(-2 * time.Hour).Format(time.RFC3339)
	s.Start(context.Background(), overdue, func(BackupResult) { completed.Done() })
	runner.expectCall(t)

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		s.StopAndWait()
	}()

	select {
	case <-stopped:
		t.Fatal("StopAndWait returned while a backup was still running")
	case <-time.After(shortWait):
	}

	close(runner.release)
	select {
	case <-stopped:
	case <-time.After(longWait):
		t.Fatal("StopAndWait did not return after the backup finished")
	}
	completed.Wait()
	assert.False(t, s.IsRunning())
}
