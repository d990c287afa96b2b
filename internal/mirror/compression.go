package mirror

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// CompressionType names a compression algorithm for mirror copies.
type CompressionType string

const (
	CompressionTypeNone CompressionType = "NONE"
	CompressionTypeGzip CompressionType = "GZIP"
	CompressionTypeLZ4  CompressionType = "LZ4"
	CompressionTypeZstd CompressionType = "ZSTD"
)

var extensions = map[CompressionType]string{
	CompressionTypeNone: "",
	CompressionTypeGzip: ".gz",
	CompressionTypeLZ4:  ".lz4",
	CompressionTypeZstd: ".zst",
}

// Extension returns the file suffix appended to copies compressed with t.
func (t CompressionType) Extension() string {
	return extensions[t]
}

// CompressionTypeForName infers the algorithm of a copy from its suffix.
func CompressionTypeForName(name string) CompressionType {
	for algorithm, ext := range extensions {
		if ext != "" && strings.HasSuffix(name, ext) {
			return algorithm
		}
	}
	return CompressionTypeNone
}

// CompressionStats contains statistics about compression operations
type CompressionStats struct {
	OriginalSize     int64           `json:"original_size"`
	CompressedSize   int64           `json:"compressed_size"`
	CompressionRatio float64         `json:"compression_ratio"`
	Algorithm        CompressionType `json:"algorithm"`
	Level            int             `json:"level"`
	Duration         time.Duration   `json:"duration"`
}

// Compressor interface defines compression operations
type Compressor interface {
	Compress(data []byte, level int) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
	DefaultLevel() int
	LevelRange() (int, int)
}

// CompressionManager manages compression operations
type CompressionManager struct {
	compressors map[CompressionType]Compressor
}

// NewCompressionManager creates a new compression manager
func NewCompressionManager() *CompressionManager {
	return &CompressionManager{
		compressors: map[CompressionType]Compressor{
			CompressionTypeGzip: gzipCompressor{},
			CompressionTypeLZ4:  lz4Compressor{},
			CompressionTypeZstd: zstdCompressor{},
		},
	}
}

// Compress compresses data using the specified algorithm and level.
// Out of range levels fall back to the algorithm default.
func (cm *CompressionManager) Compress(data []byte, algorithm CompressionType, level int) ([]byte, *CompressionStats, error) {
	start := time.Now()
	if algorithm == CompressionTypeNone {
		return data, newStats(data, data, algorithm, 0, start), nil
	}

	compressor, ok := cm.compressors[algorithm]
	if !ok {
		return nil, nil, fmt.Errorf("unsupported compression algorithm: %s", algorithm)
	}

	if lo, hi := compressor.LevelRange(); level < lo || level > hi {
		level = compressor.DefaultLevel()
	}

	compressed, err := compressor.Compress(data, level)
	if err != nil {
		return nil, nil, err
	}
	return compressed, newStats(data, compressed, algorithm, level, start), nil
}

// Decompress decompresses data using the specified algorithm
func (cm *CompressionManager) Decompress(data []byte, algorithm CompressionType) ([]byte, error) {
	if algorithm == CompressionTypeNone {
		return data, nil
	}

	compressor, ok := cm.compressors[algorithm]
	if !ok {
		return nil, fmt.Errorf("unsupported compression algorithm: %s", algorithm)
	}
	return compressor.Decompress(data)
}

func newStats(original, compressed []byte, algorithm CompressionType, level int, start time.Time) *CompressionStats {
	return &CompressionStats{
		OriginalSize:     int64(len(original)),
		CompressedSize:   int64(len(compressed)),
		CompressionRatio: CalculateCompressionRatio(int64(len(original)), int64(len(compressed))),
		Algorithm:        algorithm,
		Level:            level,
		Duration:         time.Since(start),
	}
}

// CalculateCompressionRatio calculates the compression ratio
func CalculateCompressionRatio(originalSize, compressedSize int64) float64 {
	if originalSize == 0 {
		return 1.0
	}
	return float64(compressedSize) / float64(originalSize)
}

type gzipCompressor struct{}

func (gzipCompressor) Compress(data []byte, level int) ([]byte, error) {
	var buf bytes.Buffer
	writer, err := gzip.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip writer: %w", err)
	}
	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return nil, fmt.Errorf("failed to write gzip data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close gzip writer: %w", err)
	}
	return buf.Bytes(), nil
}

func (gzipCompressor) Decompress(data []byte) ([]byte, error) {
	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer reader.Close()

	decompressed, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress gzip data: %w", err)
	}
	return decompressed, nil
}

func (gzipCompressor) DefaultLevel() int      { return gzip.DefaultCompression }
func (gzipCompressor) LevelRange() (int, int) { return gzip.BestSpeed, gzip.BestCompression }

type lz4Compressor struct{}

func (lz4Compressor) Compress(data []byte, level int) ([]byte, error) {
	var buf bytes.Buffer
	writer := lz4.NewWriter(&buf)

	// LZ4 only distinguishes fast and high compression
	if level > 6 {
		if err := writer.Apply(lz4.CompressionLevelOption(lz4.Level9)); err != nil {
			return nil, fmt.Errorf("failed to set LZ4 high compression: %w", err)
		}
	}

	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return nil, fmt.Errorf("failed to write LZ4 data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close LZ4 writer: %w", err)
	}
	return buf.Bytes(), nil
}

func (lz4Compressor) Decompress(data []byte) ([]byte, error) {
	decompressed, err := io.ReadAll(lz4.NewReader(bytes.NewReader(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to decompress LZ4 data: %w", err)
	}
	return decompressed, nil
}

func (lz4Compressor) DefaultLevel() int      { return 1 }
func (lz4Compressor) LevelRange() (int, int) { return 1, 12 }

type zstdCompressor struct{}

func (zstdCompressor) Compress(data []byte, level int) ([]byte, error) {
	var encoderLevel zstd.EncoderLevel
	switch {
	case level <= 1:
		encoderLevel = zstd.SpeedFastest
	case level <= 3:
		encoderLevel = zstd.SpeedDefault
	case level <= 6:
		encoderLevel = zstd.SpeedBetterCompression
	default:
		encoderLevel = zstd.SpeedBestCompression
	}

	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(encoderLevel))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	defer encoder.Close()

	return encoder.EncodeAll(data, make([]byte, 0, len(data))), nil
}

func (zstdCompressor) Decompress(data []byte) ([]byte, error) {
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	defer decoder.Close()

	decompressed, err := decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress zstd data: %w", err)
	}
	return decompressed, nil
}

func (zstdCompressor) DefaultLevel() int      { return 3 }
func (zstdCompressor) LevelRange() (int, int) { return 1, 22 }
