package obslog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var global atomic.Pointer[zap.Logger]

func init() { global.Store(zap.NewNop()) }

// L returns the process logger; a no-op logger until InitFromEnv succeeds.
func L() *zap.Logger { return global.Load() }

// Options mirrors the LOG_* environment variables.
type Options struct {
	Level   zapcore.Level
	Format  string // legacy | json | console
	Console bool
	File    string // empty disables file output
	Caller  bool
}

// OptionsFromEnv reads LOG_LEVEL, LOG_FORMAT, LOG_TO_CONSOLE, LOG_TO_FILE,
// LOG_FILE and LOG_CALLER.
func OptionsFromEnv() Options {
	o := Options{
		Level:   parseLevel(getenv("LOG_LEVEL", "info")),
		Format:  strings.ToLower(strings.TrimSpace(getenv("LOG_FORMAT", "legacy"))),
		Console: strings.EqualFold(getenv("LOG_TO_CONSOLE", "true"), "true"),
		Caller:  strings.EqualFold(getenv("LOG_CALLER", "false"), "true"),
	}
	switch o.Format {
	case "legacy", "json", "console":
	default:
		o.Format = "legacy"
	}
	if strings.EqualFold(getenv("LOG_TO_FILE", "true"), "true") {
		o.File = strings.TrimSpace(getenv("LOG_FILE", filepath.Join("logs", "chessfront.log")))
	}
	return o
}

// InitFromEnv builds a logger from the environment and installs it as L().
func InitFromEnv() error {
	logger, err := New(OptionsFromEnv())
	if err != nil {
		return err
	}
	global.Store(logger)
	return nil
}

// New builds a tee of console and file cores. With neither enabled it falls
// back to a development console encoder on stdout.
func New(o Options) (*zap.Logger, error) {
	var cores []zapcore.Core
	if o.Console {
		cores = append(cores, zapcore.NewCore(encoder(o.Format), zapcore.AddSync(os.Stdout), o.Level))
	}
	if o.File != "" {
		if err := ensureDir(filepath.Dir(o.File)); err != nil {
			return nil, err
		}
		f, err := os.OpenFile(o.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		cores = append(cores, zapcore.NewCore(encoder(o.Format), zapcore.AddSync(f), o.Level))
	}
	if len(cores) == 0 {
		enc := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
		cores = append(cores, zapcore.NewCore(enc, zapcore.AddSync(os.Stdout), o.Level))
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddStacktrace(zapcore.ErrorLevel))
	if o.Caller || o.Format == "legacy" {
		logger = logger.WithOptions(zap.AddCaller())
	}
	return logger, nil
}

func encoder(format string) zapcore.Encoder {
	switch format {
	case "json":
		cfg := zap.NewProductionEncoderConfig()
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.EncodeLevel = zapcore.LowercaseLevelEncoder
		return zapcore.NewJSONEncoder(cfg)
	case "console":
		cfg := zap.NewProductionEncoderConfig()
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.EncodeLevel = zapcore.CapitalLevelEncoder
		return zapcore.NewConsoleEncoder(cfg)
	default:
		cfg := zap.NewProductionEncoderConfig()
		cfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
		cfg.EncodeLevel = zapcore.CapitalLevelEncoder
		cfg.ConsoleSeparator = " | "
		return zapcore.NewConsoleEncoder(cfg)
	}
}

func ensureDir(dir string) error {
	if strings.TrimSpace(dir) == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func parseLevel(s string) zapcore.Level {
	lvl, err := zapcore.ParseLevel(strings.TrimSpace(s))
	if err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

func getenv(k, def string) string {
	if v := os.Getenv(k); strings.TrimSpace(v) != "" {
		return v
	}
	return def
}
