package backup

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Operation labels.
const (
	opSave    = "save"
	opLoad    = "load"
	opRestore = "restore"
	opAuto    = "auto"
)

// Prometheus metrics for backup operations
var (
	// operationsTotal counts finished operations by kind and outcome.
	operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "muwi_backup_operations_total",
		Help: "Total number of backup operations by operation and result",
	}, []string{"operation", "result"})

	// operationDuration measures operation latency.
	operationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "muwi_backup_operation_duration_seconds",
		Help:    "Backup operation duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	// recordsRestoredTotal counts records written by restores.
	recordsRestoredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "muwi_backup_records_restored_total",
		Help: "Total number of records written by restores",
	})

	// lastSnapshotRecords is the record count of the most recent snapshot.
	lastSnapshotRecords = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "muwi_backup_last_snapshot_records",
		Help: "Number of records in the most recent snapshot",
	})

	// lastSuccessTimestamp is the unix time of the last successful save.
	lastSuccessTimestamp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "muwi_backup_last_success_timestamp_seconds",
		Help: "Unix time of the last successful backup save",
	})

	// schedulerRunning is 1 while an auto-backup schedule is active.
	schedulerRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "muwi_backup_scheduler_running",
		Help: "Whether an auto-backup schedule is active",
	})

	// skippedTicksTotal counts scheduler ticks skipped because a backup was in flight.
	skippedTicksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "muwi_backup_scheduler_skipped_ticks_total",
		Help: "Total number of scheduler ticks skipped while a backup was running",
	})
)

func observeOperation(operation string, start time.Time, success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	operationsTotal.WithLabelValues(operation, result).Inc()
	operationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func observeSave(result BackupResult, now time.Time) {
	if result.Success {
		lastSnapshotRecords.Set(float64(result.RecordCount))
		lastSuccessTimestamp.Set(float64(now.Unix()))
	}
}
