// Package mirror keeps compressed offsite copies of saved backup snapshots.
package mirror

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"muwi-backup/internal/backup"
	apperrors "muwi-backup/internal/errors"
	"muwi-backup/internal/logging"
)

var (
	mirrorUploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "muwi_backup_mirror_uploads_total",
		Help: "Total number of mirror uploads by result",
	}, []string{"result"})

	mirrorRotatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "muwi_backup_mirror_rotated_total",
		Help: "Total number of mirror copies removed by rotation",
	})
)

// Mirror copies every saved snapshot to a Provider and rotates old copies.
type Mirror struct {
	provider    Provider
	compression CompressionConfig
	maxCopies   int
	compressor  *CompressionManager
	retry       *apperrors.RetryHandler
	logger      *logging.Logger
}

// New creates a Mirror over provider. config should already carry defaults.
func New(provider Provider, config Config, logger *logging.Logger) *Mirror {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	m := &Mirror{
		provider:    provider,
		compression: config.Compression,
		maxCopies:   config.MaxCopies,
		compressor:  NewCompressionManager(),
		retry:       apperrors.NewDefaultRetryHandler(),
		logger:      logger,
	}
	if config.Retry.MaxAttempts > 0 {
		m.WithRetryConfig(config.Retry.handlerConfig())
	}
	return m
}

// WithRetryConfig replaces the upload retry policy.
func (m *Mirror) WithRetryConfig(config apperrors.RetryConfig) *Mirror {
	m.retry = apperrors.NewRetryHandler(config)
	return m
}

// SnapshotSaved uploads a compressed copy of content named after path, then
// trims the mirror to maxBackups copies (or the configured limit when 0).
func (m *Mirror) SnapshotSaved(ctx context.Context, path string, content []byte, maxBackups int) error {
	name := filepath.Base(path) + m.compression.Algorithm.Extension()

	compressed, stats, err := m.compressor.Compress(content, m.compression.Algorithm, m.compression.Level)
	if err != nil {
		mirrorUploadsTotal.WithLabelValues("failure").Inc()
		return apperrors.WrapError(err, "failed to compress mirror copy")
	}

	err = m.retry.Retry(ctx, func() error {
		return m.provider.Put(ctx, name, compressed)
	})
	if err != nil {
		// recoverable errors reach here only after every attempt failed
		result := "failure"
		if apperrors.IsRecoverableError(err) {
			result = "retries_exhausted"
		}
		mirrorUploadsTotal.WithLabelValues(result).Inc()
		return err
	}
	mirrorUploadsTotal.WithLabelValues("success").Inc()

	m.logger.WithContext(ctx).WithFields(map[string]interface{}{
		"mirror":            m.provider.Describe(),
		"name":              name,
		"original_size":     stats.OriginalSize,
		"compressed_size":   stats.CompressedSize,
		"compression_ratio": fmt.Sprintf("%.2f", stats.CompressionRatio),
	}).Info("Snapshot mirrored")

	keep := maxBackups
	if keep <= 0 {
		keep = m.maxCopies
	}
	return m.rotate(ctx, keep)
}

// List returns mirrored copies, newest first.
func (m *Mirror) List(ctx context.Context) ([]Object, error) {
	objects, err := m.provider.List(ctx)
	if err != nil {
		return nil, err
	}
	sortNewestFirst(objects)
	return objects, nil
}

// Pull downloads and decompresses a mirrored copy. The result is bounded by
// the same size limit as a backup file picked from disk.
func (m *Mirror) Pull(ctx context.Context, name string) (content []byte, err error) {
	done := m.logger.LogOperationStart("mirror_pull", map[string]interface{}{
		"mirror": m.provider.Describe(),
		"name":   name,
	})
	defer func() { done(err) }()

	compressed, err := m.provider.Get(ctx, name)
	if err != nil {
		return nil, err
	}

	content, err = m.compressor.Decompress(compressed, CompressionTypeForName(name))
	if err != nil {
		return nil, backup.NewValidationError(backup.MsgInvalidBackupFormat, err)
	}
	if len(content) > backup.MaxBackupFileSize {
		return nil, backup.NewValidationError(backup.MsgFileTooLarge, nil)
	}
	return content, nil
}

// Describe names the mirror destination.
func (m *Mirror) Describe() string {
	return m.provider.Describe()
}

func (m *Mirror) rotate(ctx context.Context, keep int) error {
	if keep <= 0 {
		return nil
	}

	objects, err := m.List(ctx)
	if err != nil {
		return err
	}
	if len(objects) <= keep {
		return nil
	}

	stale := make([]string, 0, len(objects)-keep)
	for _, obj := range objects[keep:] {
		stale = append(stale, obj.Name)
	}
	if err := m.provider.Delete(ctx, stale); err != nil {
		return err
	}
	mirrorRotatedTotal.Add(float64(len(stale)))

	m.logger.WithContext(ctx).WithFields(map[string]interface{}{
		"mirror":  m.provider.Describe(),
		"removed": strings.Join(stale, ","),
	}).Debug("Rotated mirror copies")
	return nil
}

func sortNewestFirst(objects []Object) {
	sort.SliceStable(objects, func(i, j int) bool {
		if !objects[i].ModTime.Equal(objects[j].ModTime) {
			return objects[i].ModTime.After(objects[j].ModTime)
		}
		return objects[i].Name > objects[j].Name
	})
}

// Age reports how long ago the copy was written.
func (o Object) Age(now time.Time) time.Duration {
	return now.Sub(o.ModTime)
}
