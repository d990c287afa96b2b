package mirror

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressionManager_RoundTrip(t *testing.T) {
	cm := NewCompressionManager()
	payload := bytes.Repeat([]byte(`{"id":"draft-1","title":"Chapter One"},`), 200)

	tests := []struct {
		algorithm CompressionType
		level     int
	}{
		{CompressionTypeNone, 0},
		{CompressionTypeGzip, 6},
		{CompressionTypeGzip, 42},
		{CompressionTypeLZ4, 1},
		{CompressionTypeLZ4, 9},
		{CompressionTypeZstd, 3},
		{CompressionTypeZstd, 19},
	}

	for _, tt := range tests {
		t.Run(string(tt.algorithm), func(t *testing.T) {
			compressed, stats, err := cm.Compress(payload, tt.algorithm, tt.level)
			require.NoError(t, err)
			assert.Equal(t, int64(len(payload)), stats.OriginalSize)
			if tt.algorithm != CompressionTypeNone {
				assert.Less(t, stats.CompressedSize, stats.OriginalSize)
			}

			decompressed, err := cm.Decompress(compressed, tt.algorithm)
			require.NoError(t, err)
			assert.Equal(t, payload, decompressed)
		})
	}
}

func TestCompressionManager_UnknownAlgorithm(t *testing.T) {
	cm := NewCompressionManager()

	_, _, err := cm.Compress([]byte("x"), "BROTLI", 1)
	assert.Error(t, err)

	_, err = cm.Decompress([]byte("x"), "BROTLI")
	assert.Error(t, err)
}

func TestCompressionManager_CorruptInput(t *testing.T) {
	cm := NewCompressionManager()

	_, err := cm.Decompress([]byte("not gzip"), CompressionTypeGzip)
	assert.Error(t, err)

	_, err = cm.Decompress([]byte("not zstd"), CompressionTypeZstd)
	assert.Error(t, err)
}

func TestCompressionTypeForName(t *testing.T) {
	tests := []struct {
		name string
		want CompressionType
	}{
		{"muwi-backup-1.json.gz", CompressionTypeGzip},
		{"muwi-backup-1.json.lz4", CompressionTypeLZ4},
		{"muwi-backup-1.json.zst", CompressionTypeZstd},
		{"muwi-backup-1.json", CompressionTypeNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CompressionTypeForName(tt.name))
		})
	}
}

func TestCalculateCompressionRatio(t *testing.T) {
	assert.Equal(t, 1.0, CalculateCompressionRatio(0, 0))
	assert.Equal(t, 0.25, CalculateCompressionRatio(400, 100))
}
