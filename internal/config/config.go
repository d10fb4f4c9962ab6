package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/park285/Cheese-ChessFront/internal/board"
)

// Per-move time budget bounds, in seconds.
const (
	MinSecsPerMove  = 0.3
	MaxSecsPerMove  = 5.0
	SecsPerMoveStep = 0.05
)

type AppConfig struct {
	SecsPerMove float64
	EnginePlays [2]bool // indexed by board.Side
	TickRate    int

	AnimAccel float64
	AnimVMax  float64

	StockfishPath  string
	EngineThreads  int
	EngineHashMB   int
	EngineElo      int
	SearchMaxDepth int

	OpeningBookPath   string
	OpeningBookMaxPly int

	RedisURL        string
	EvalCacheTTLSec int

	BridgeBaseURL   string
	BridgeWSURL     string
	BridgeTransport string
	BridgeDryRun    bool
	XSessionID      string

	MessagesDir  string
	ConsoleInput bool
}

// Headless reports whether no presentation bridge is configured.
func (c *AppConfig) Headless() bool {
	return c.BridgeBaseURL == "" && c.BridgeWSURL == ""
}

// ClampSecs bounds a per-move budget to [MinSecsPerMove, MaxSecsPerMove].
func ClampSecs(s float64) float64 {
	switch {
	case s < MinSecsPerMove:
		return MinSecsPerMove
	case s > MaxSecsPerMove:
		return MaxSecsPerMove
	}
	return s
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		SecsPerMove:       board.DefaultSecsPerMove,
		EnginePlays:       [2]bool{false, true},
		TickRate:          60,
		AnimAccel:         1.0,
		AnimVMax:          3.0,
		EngineThreads:     1,
		EngineHashMB:      64,
		SearchMaxDepth:    64,
		OpeningBookMaxPly: 20,
		EvalCacheTTLSec:   3600,
		BridgeTransport:   "auto",
		ConsoleInput:      true,
	}

	if v := env("TIME_PER_MOVE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.SecsPerMove = ClampSecs(f)
		}
	}
	if v := env("ENGINE_PLAYS"); v != "" {
		plays, err := ParseEnginePlays(v)
		if err != nil {
			return nil, err
		}
		cfg.EnginePlays = plays
	}
	if v := env("TICK_RATE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.TickRate = n
		}
	}
	if v := env("ANIM_ACCEL"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.AnimAccel = f
		}
	}
	if v := env("ANIM_VMAX"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.AnimVMax = f
		}
	}

	// Engine
	cfg.StockfishPath = env("STOCKFISH_PATH")
	if v := env("ENGINE_THREADS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.EngineThreads = n
		}
	}
	if v := env("ENGINE_HASH_MB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.EngineHashMB = n
		}
	}
	if v := env("ENGINE_ELO"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.EngineElo = n
		}
	}
	if v := env("SEARCH_MAX_DEPTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.SearchMaxDepth = n
		}
	}

	cfg.OpeningBookPath = env("OPENING_BOOK_PATH")
	if v := env("OPENING_BOOK_MAX_PLY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.OpeningBookMaxPly = n
		}
	}

	cfg.RedisURL = env("REDIS_URL")
	if v := env("EVAL_CACHE_TTL_SEC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.EvalCacheTTLSec = n
		}
	}

	cfg.BridgeBaseURL = strings.TrimRight(env("BRIDGE_BASE_URL"), "/")
	cfg.BridgeWSURL = env("BRIDGE_WS_URL")
	if v := env("BRIDGE_TRANSPORT"); v != "" {
		cfg.BridgeTransport = strings.ToLower(v)
	}
	if v := env("BRIDGE_DRYRUN"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.BridgeDryRun = b
		}
	}
	cfg.XSessionID = env("X_SESSION_ID")

	cfg.MessagesDir = env("MESSAGES_DIR")
	if v := env("CONSOLE_INPUT"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.ConsoleInput = b
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) validate() error {
	switch c.BridgeTransport {
	case "http", "ws", "auto":
	default:
		return fmt.Errorf("BRIDGE_TRANSPORT must be http, ws or auto, got %q", c.BridgeTransport)
	}
	if c.BridgeTransport == "ws" && c.BridgeWSURL == "" && !c.BridgeDryRun {
		return errors.New("BRIDGE_WS_URL is required for BRIDGE_TRANSPORT=ws")
	}
	if c.BridgeTransport == "http" && c.BridgeBaseURL == "" && c.BridgeWSURL != "" {
		return errors.New("BRIDGE_BASE_URL is required for BRIDGE_TRANSPORT=http")
	}
	if c.TickRate > 1000 {
		return fmt.Errorf("TICK_RATE %d is out of range (1..1000)", c.TickRate)
	}
	return nil
}

// ParseEnginePlays accepts black, white, both, none, or a comma list such as
// "white,black".
func ParseEnginePlays(v string) ([2]bool, error) {
	var out [2]bool
	for _, part := range strings.Split(strings.ToLower(v), ",") {
		switch strings.TrimSpace(part) {
		case "white", "1":
			out[board.White] = true
		case "black", "2":
			out[board.Black] = true
		case "both":
			out = [2]bool{true, true}
		case "none", "":
		default:
			return out, fmt.Errorf("ENGINE_PLAYS: unknown side %q", part)
		}
	}
	return out, nil
}

func env(k string) string { return strings.TrimSpace(os.Getenv(k)) }
