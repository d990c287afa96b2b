package backup

import (
	"context"
	"fmt"

	"muwi-backup/internal/store"
)

// EstimatedBytesPerRecord is the fixed per-record size used for estimates.
const EstimatedBytesPerRecord = 500

// TableStat is the record count of one collection.
type TableStat struct {
	Key   string `json:"key"`
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// BackupStats summarizes the record store.
type BackupStats struct {
	Tables        []TableStat `json:"tables"`
	TotalRecords  int         `json:"totalRecords"`
	EstimatedSize string      `json:"estimatedSize"`
}

// NonEmpty returns the tables holding at least one record.
func (s *BackupStats) NonEmpty() []TableStat {
	var tables []TableStat
	for _, t := range s.Tables {
		if t.Count > 0 {
			tables = append(tables, t)
		}
	}
	return tables
}

// CollectStats counts every managed collection of st.
func CollectStats(ctx context.Context, st store.Store) (*BackupStats, error) {
	stats := &BackupStats{Tables: make([]TableStat, 0, len(managedCollections))}

	for _, collection := range managedCollections {
		count, err := st.Count(ctx, collection)
		if err != nil {
			return nil, NewStorageError(fmt.Sprintf("Failed to count %s", DisplayName(collection)), err)
		}
		stats.Tables = append(stats.Tables, TableStat{
			Key:   collection,
			Name:  DisplayName(collection),
			Count: count,
		})
		stats.TotalRecords += count
	}

	stats.EstimatedSize = FormatSize(int64(stats.TotalRecords) * EstimatedBytesPerRecord)
	return stats, nil
}

// FormatSize renders a byte count as B, KB or MB with one decimal place.
func FormatSize(bytes int64) string {
	const (
		kb = 1024
		mb = 1024 * 1024
	)
	switch {
	case bytes < kb:
		return fmt.Sprintf("%d B", bytes)
	case bytes < mb:
		return fmt.Sprintf("%.1f KB", float64(bytes)/kb)
	default:
		return fmt.Sprintf("%.1f MB", float64(bytes)/mb)
	}
}
