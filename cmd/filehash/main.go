package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/quantarax/filehash/internal/chunker"
	"github.com/quantarax/filehash/internal/config"
	"github.com/quantarax/filehash/internal/hashing"
	"github.com/quantarax/filehash/internal/manifest"
	"github.com/quantarax/filehash/internal/observability"
	"github.com/quantarax/filehash/internal/validation"
)

var version = "dev"

const (
	exitOK = iota
	exitUsage
	exitFileAccess
	exitUnsupported
	exitMismatch
	exitFailure
)

var errUsage = errors.New("usage error")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		printUsage(stderr)
		return exitUsage
	}

	command, args := args[0], args[1:]
	var err error
	switch command {
	case "sum":
		err = sumCmd(ctx, args, stdout, stderr)
	case "verify":
		err = verifyCmd(ctx, args, stdout, stderr)
	case "manifest":
		err = manifestCmd(ctx, args, stdout, stderr)
	case "algorithms":
		err = algorithmsCmd(stdout)
	case "version":
		fmt.Fprintln(stdout, version)
	case "-h", "-help", "--help", "help":
		printUsage(stdout)
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", command)
		printUsage(stderr)
		return exitUsage
	}

	if err != nil && !errors.Is(err, flag.ErrHelp) {
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	return exitCode(err)
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "filehash - file digest tool")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  filehash sum [flags] <file>                     - Print the file digest")
	fmt.Fprintln(w, "  filehash verify -expected <digest> [flags] <file> - Compare against a known digest")
	fmt.Fprintln(w, "  filehash manifest [flags] <file>                - Emit a per-chunk JSON manifest")
	fmt.Fprintln(w, "  filehash algorithms                             - List supported algorithms")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run 'filehash <command> -h' for command-specific help")
}

// exitCode maps an error to a process exit code.
func exitCode(err error) int {
	switch {
	case err == nil, errors.Is(err, flag.ErrHelp):
		return exitOK
	case errors.Is(err, errUsage), errors.Is(err, validation.ErrOutOfRange),
		errors.Is(err, manifest.ErrInvalidManifest), errors.Is(err, chunker.ErrInvalidSize):
		return exitUsage
	case errors.Is(err, hashing.ErrUnsupportedAlgorithm):
		return exitUnsupported
	case errors.Is(err, hashing.ErrFileAccess), errors.Is(err, validation.ErrPathNotExists), errors.Is(err, validation.ErrNotRegular):
		return exitFileAccess
	case errors.Is(err, hashing.ErrMismatch):
		return exitMismatch
	default:
		return exitFailure
	}
}

// env bundles what every hashing command needs.
type env struct {
	cfg     *config.Config
	logger  *observability.Logger
	metrics *observability.Metrics
	hasher  *hashing.Hasher
	path    string
}

type commonFlags struct {
	configPath  string
	algorithm   string
	encoding    string
	chunkSize   int
	rateLimit   int64
	logLevel    string
	metricsFile string
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	defaults := config.DefaultConfig()
	fs.StringVar(&c.configPath, "config", "", "YAML config file")
	fs.StringVar(&c.algorithm, "algorithm", defaults.Algorithm, "Digest algorithm (see 'filehash algorithms')")
	fs.StringVar(&c.encoding, "encoding", defaults.Encoding, "Output encoding: hex, lower, base64")
	fs.IntVar(&c.chunkSize, "chunk-size", defaults.ChunkSize, "Read buffer size in bytes")
	fs.Int64Var(&c.rateLimit, "rate-limit", 0, "Maximum read rate in bytes per second (0 = unlimited)")
	fs.StringVar(&c.logLevel, "log-level", defaults.LogLevel, "Log level: debug, info, warn, error")
	fs.StringVar(&c.metricsFile, "metrics-file", "", "Write Prometheus metrics to this file on exit")
}

// resolve loads the config file and lets explicitly set flags override it.
func (c *commonFlags) resolve(fs *flag.FlagSet) (*config.Config, error) {
	cfg, err := config.LoadConfig(c.configPath)
	if err != nil {
		return nil, err
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "algorithm":
			cfg.Algorithm = c.algorithm
		case "encoding":
			cfg.Encoding = c.encoding
		case "chunk-size":
			cfg.ChunkSize = c.chunkSize
		case "rate-limit":
			cfg.RateLimit = c.rateLimit
		case "log-level":
			cfg.LogLevel = c.logLevel
		case "metrics-file":
			cfg.MetricsFile = c.metricsFile
		}
	})
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseArgs(fs *flag.FlagSet, common *commonFlags, args []string, stderr io.Writer) (*env, error) {
	fs.SetOutput(stderr)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", errUsage, err)
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return nil, fmt.Errorf("%w: expected exactly one file, got %d", errUsage, fs.NArg())
	}

	cfg, err := common.resolve(fs)
	if err != nil {
		if errors.Is(err, hashing.ErrUnsupportedAlgorithm) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", errUsage, err)
	}

	path := fs.Arg(0)
	if err := validation.ValidateFilePath(path, true); err != nil {
		return nil, err
	}

	logger := observability.NewLogger(cfg.ServiceName, version, logWriter(stderr)).WithLevel(cfg.LogLevel)
	opts := append(cfg.HasherOptions(), hashing.WithLogger(logger), hashing.WithTracer(observability.Tracer()))

	var metrics *observability.Metrics
	if cfg.MetricsFile != "" {
		metrics = observability.NewMetrics()
		opts = append(opts, hashing.WithMetrics(metrics))
	}

	return &env{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		hasher:  hashing.New(opts...),
		path:    path,
	}, nil
}

// logWriter renders human-readable logs on a terminal and JSON otherwise.
func logWriter(w io.Writer) io.Writer {
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return zerolog.ConsoleWriter{Out: f, TimeFormat: time.TimeOnly}
	}
	return w
}

// withTelemetry runs fn inside a tracing session and flushes metrics afterwards.
func (e *env) withTelemetry(ctx context.Context, fn func(context.Context) error) error {
	shutdown, err := observability.InitTracing(ctx, e.cfg.ServiceName, e.cfg.TracingEndpoint)
	if err != nil {
		e.logger.Error(err, "tracing disabled")
		shutdown = func(context.Context) error { return nil }
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(sctx); err != nil {
			e.logger.Error(err, "tracing shutdown failed")
		}
	}()

	runErr := fn(ctx)

	if e.metrics != nil {
		if err := e.metrics.WriteTextfile(e.cfg.MetricsFile); err != nil {
			e.logger.Error(err, "failed to write metrics")
		}
	}
	return runErr
}

func sumCmd(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("sum", flag.ContinueOnError)
	var common commonFlags
	common.register(fs)

	e, err := parseArgs(fs, &common, args, stderr)
	if err != nil {
		return err
	}

	return e.withTelemetry(ctx, func(ctx context.Context) error {
		digest, err := e.hasher.HashFile(ctx, e.path, e.cfg.HashAlgorithm(), e.cfg.HashEncoding())
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "%s  %s\n", digest, e.path)
		return nil
	})
}

func verifyCmd(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	var common commonFlags
	common.register(fs)
	expected := fs.String("expected", "", "Expected digest, hex or base64")

	e, err := parseArgs(fs, &common, args, stderr)
	if err != nil {
		return err
	}
	if err := validation.ValidateStringNonEmpty(*expected); err != nil {
		return fmt.Errorf("%w: -expected: %v", errUsage, err)
	}

	alg := e.cfg.HashAlgorithm()
	if alg.Broken() {
		e.logger.WithAlgorithm(alg.String()).WeakAlgorithm()
	}

	return e.withTelemetry(ctx, func(ctx context.Context) error {
		if _, err := e.hasher.Verify(ctx, e.path, alg, *expected); err != nil {
			if errors.Is(err, hashing.ErrMismatch) {
				fmt.Fprintf(stdout, "%s: FAILED\n", e.path)
			}
			return err
		}
		fmt.Fprintf(stdout, "%s: OK\n", e.path)
		return nil
	})
}

func manifestCmd(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("manifest", flag.ContinueOnError)
	var common commonFlags
	common.register(fs)
	output := fs.String("output", "", "Write the manifest to this file (default: stdout)")
	pretty := fs.Bool("pretty", true, "Pretty-print JSON output")
	check := fs.String("verify", "", "Verify the file against this manifest instead of creating one")
	index := fs.Int("chunk", -1, "With -verify, check only this chunk index")
	manifestChunk := fs.Int("manifest-chunk-size", 0, "Manifest chunk size in bytes (default from config, 1 MiB)")

	e, err := parseArgs(fs, &common, args, stderr)
	if err != nil {
		return err
	}

	// Manifests default to their own algorithm and chunk size; -algorithm
	// still applies when given explicitly.
	alg := e.cfg.ManifestHashAlgorithm()
	chunkSize := e.cfg.ManifestChunkSize
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "algorithm":
			alg = e.cfg.HashAlgorithm()
		case "manifest-chunk-size":
			chunkSize = *manifestChunk
		}
	})

	if *check != "" {
		return e.withTelemetry(ctx, func(ctx context.Context) error {
			return verifyManifest(ctx, e, *check, *index, stdout)
		})
	}
	if *index >= 0 {
		return fmt.Errorf("%w: -chunk requires -verify", errUsage)
	}

	if alg.Broken() {
		e.logger.WithAlgorithm(alg.String()).WeakAlgorithm()
	}

	return e.withTelemetry(ctx, func(ctx context.Context) error {
		m, err := manifest.Compute(ctx, e.path, manifest.Options{ChunkSize: chunkSize, Algorithm: alg, Hasher: e.hasher})
		if err != nil {
			return err
		}

		var data []byte
		if *pretty {
			data, err = json.MarshalIndent(m, "", "  ")
		} else {
			data, err = json.Marshal(m)
		}
		if err != nil {
			return fmt.Errorf("failed to serialize manifest: %w", err)
		}

		if *output != "" {
			if err := os.WriteFile(*output, append(data, '\n'), 0644); err != nil {
				return fmt.Errorf("failed to write manifest: %w", err)
			}
			e.logger.Info("manifest written to " + *output)
			return nil
		}
		fmt.Fprintln(stdout, string(data))
		return nil
	})
}

// verifyManifest checks e.path against the manifest at manifestPath, either
// whole or, when index is non-negative, a single chunk.
func verifyManifest(ctx context.Context, e *env, manifestPath string, index int, stdout io.Writer) error {
	m, err := manifest.Load(manifestPath)
	if err != nil {
		return err
	}

	var bad []int
	if index >= 0 {
		ok, err := manifest.VerifyChunk(e.path, m, index)
		if err != nil {
			return err
		}
		if !ok {
			bad = []int{index}
		}
	} else {
		bad, err = manifest.Verify(ctx, e.hasher, e.path, m)
		if err != nil {
			return err
		}
	}

	if e.metrics != nil {
		e.metrics.RecordVerification(len(bad) == 0)
	}
	if len(bad) > 0 {
		e.logger.WithFile(e.path).WithAlgorithm(m.Algorithm.String()).ChunksMismatched(bad)
		fmt.Fprintf(stdout, "%s: FAILED chunks %s\n", e.path, joinInts(bad))
		return &hashing.MismatchError{Path: e.path, Algorithm: m.Algorithm, Expected: m.MerkleRoot, Actual: fmt.Sprintf("%d bad chunks", len(bad))}
	}
	fmt.Fprintf(stdout, "%s: OK\n", e.path)
	return nil
}

func algorithmsCmd(stdout io.Writer) error {
	for _, alg := range hashing.Algorithms() {
		note := ""
		if alg.Broken() {
			note = "  (not collision resistant)"
		}
		fmt.Fprintf(stdout, "%-12s %3d bytes%s\n", alg, alg.Size(), note)
	}
	return nil
}

func joinInts(vs []int) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, ",")
}
