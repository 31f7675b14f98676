package observability

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog for structured logging.
type Logger struct {
	logger zerolog.Logger
}

// NewLogger creates a new structured logger.
func NewLogger(service, version string, output io.Writer) *Logger {
	if output == nil {
		output = os.Stdout
	}

	zerolog.TimeFieldFormat = time.RFC3339

	logger := zerolog.New(output).With().
		Timestamp().
		Str("service", service).
		Str("version", version).
		Str("host", getHostname()).
		Logger()

	return &Logger{
		logger: logger,
	}
}

// NewNopLogger returns a logger that discards everything.
func NewNopLogger() *Logger {
	return &Logger{logger: zerolog.Nop()}
}

// WithLevel returns a copy of the logger filtering below level.
// Unknown level names leave the logger unchanged.
func (l *Logger) WithLevel(level string) *Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		return l
	}
	return &Logger{logger: l.logger.Level(lvl)}
}

// WithFile adds file context to logger.
func (l *Logger) WithFile(filePath string) *Logger {
	return &Logger{
		logger: l.logger.With().Str("file_path", filePath).Logger(),
	}
}

// WithAlgorithm adds algorithm context to logger.
func (l *Logger) WithAlgorithm(algorithm string) *Logger {
	return &Logger{
		logger: l.logger.With().Str("algorithm", algorithm).Logger(),
	}
}

// Info logs an info message.
func (l *Logger) Info(msg string) {
	l.logger.Info().Msg(msg)
}

// Error logs an error message.
func (l *Logger) Error(err error, msg string) {
	l.logger.Error().Err(err).Msg(msg)
}

// HashStarted logs the start of a hash computation. File and algorithm come
// from WithFile and WithAlgorithm.
func (l *Logger) HashStarted(fileSize int64, chunkSize int) {
	l.logger.Debug().
		Int64("file_size", fileSize).
		Int("chunk_size", chunkSize).
		Msg("hash started")
}

// HashCompleted logs a finished hash computation.
func (l *Logger) HashCompleted(bytesHashed int64, chunks int, duration time.Duration) {
	var throughput float64
	if secs := duration.Seconds(); secs > 0 {
		throughput = float64(bytesHashed) / secs
	}

	l.logger.Info().
		Int64("bytes_hashed", bytesHashed).
		Int("chunks", chunks).
		Float64("duration_seconds", duration.Seconds()).
		Float64("throughput_bytes_per_second", throughput).
		Msg("hash completed")
}

// HashFailed logs a failed hash computation.
func (l *Logger) HashFailed(err error) {
	l.logger.Error().Err(err).Msg("hash failed")
}

// DigestMismatch logs a verification failure.
func (l *Logger) DigestMismatch(expected, actual string) {
	l.logger.Warn().
		Str("expected", expected).
		Str("actual", actual).
		Msg("digest mismatch")
}

// ChunksMismatched logs chunks that no longer match a manifest.
func (l *Logger) ChunksMismatched(indexes []int) {
	l.logger.Warn().
		Ints("chunks", indexes).
		Msg("manifest chunks mismatch")
}

// WeakAlgorithm warns that a collision-prone algorithm was selected.
func (l *Logger) WeakAlgorithm() {
	l.logger.Warn().
		Msg("algorithm is not collision resistant; use only for accidental corruption checks")
}

// Helper function to get hostname.
func getHostname() string {
	hostname, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return hostname
}
