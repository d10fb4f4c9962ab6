// Package builder wires the application from an AppConfig.
package builder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/park285/Cheese-ChessFront/internal/adapter/presenter"
	"github.com/park285/Cheese-ChessFront/internal/bridge"
	corechess "github.com/park285/Cheese-ChessFront/internal/chess"
	"github.com/park285/Cheese-ChessFront/internal/chess/openingbook"
	"github.com/park285/Cheese-ChessFront/internal/config"
	"github.com/park285/Cheese-ChessFront/internal/evalcache"
	"github.com/park285/Cheese-ChessFront/internal/msgcat"
	"github.com/park285/Cheese-ChessFront/internal/orchestrator"
	"github.com/park285/Cheese-ChessFront/internal/render"
	"github.com/park285/Cheese-ChessFront/internal/session"
	"github.com/park285/Cheese-ChessFront/internal/visual"
	"go.uber.org/zap"
)

type App struct {
	Config     *config.AppConfig
	Controller *orchestrator.Controller
	Searcher   orchestrator.Searcher
	WebSocket  *bridge.WebSocket
	Presenter  *presenter.Presenter

	logger  *zap.Logger
	closers []func(context.Context) error
}

// New builds every collaborator. Nothing touches the network except the
// Redis ping; call Start to connect the bridge.
func New(ctx context.Context, cfg *config.AppConfig, console io.Writer, logger *zap.Logger) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	app := &App{Config: cfg, logger: logger}

	cat, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}

	searcher, err := app.searcher(ctx)
	if err != nil {
		_ = app.Close(ctx)
		return nil, err
	}
	app.Searcher = searcher

	var sinks presenter.Fanout
	if cfg.Headless() || cfg.ConsoleInput {
		sinks = append(sinks, presenter.NewConsole(console))
	}
	if !cfg.Headless() || cfg.BridgeDryRun {
		p, err := app.presenter()
		if err != nil {
			_ = app.Close(ctx)
			return nil, err
		}
		sinks = append(sinks, p)
	}

	anim := visual.DefaultAnimator()
	anim.Accel = cfg.AnimAccel
	anim.MaxSpeed = cfg.AnimVMax

	shared := session.New(cfg.SecsPerMove, logger.Named("session"))
	ctrl, err := orchestrator.New(shared, searcher, sinks, cat, orchestrator.Options{
		EnginePlays: cfg.EnginePlays,
		SecsPerMove: cfg.SecsPerMove,
		Animator:    anim,
	}, logger.Named("controller"))
	if err != nil {
		_ = app.Close(ctx)
		return nil, err
	}
	app.Controller = ctrl
	app.closers = append(app.closers, func(context.Context) error { ctrl.Close(); return nil })

	if app.WebSocket != nil {
		presenter.BindInput(app.WebSocket, ctrl.Input(), logger.Named("bridge"))
	}
	return app, nil
}

func (a *App) searcher(ctx context.Context) (orchestrator.Searcher, error) {
	cfg := a.Config
	var base orchestrator.Searcher
	if path := strings.TrimSpace(cfg.StockfishPath); path != "" {
		uciSearcher, err := corechess.NewUCISearcher(corechess.UCIConfig{
			BinaryPath: path,
			Threads:    cfg.EngineThreads,
			HashMB:     cfg.EngineHashMB,
			Elo:        cfg.EngineElo,
			MaxDepth:   cfg.SearchMaxDepth,
		}, a.logger.Named("uci"))
		if err != nil {
			return nil, fmt.Errorf("init engine: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { return uciSearcher.Close() })
		base = uciSearcher
		a.logger.Info("searcher_selected", zap.String("kind", "uci"), zap.String("path", path))
	} else {
		base = corechess.NewNegamax(cfg.SearchMaxDepth, a.logger.Named("negamax"))
		a.logger.Info("searcher_selected", zap.String("kind", "negamax"), zap.Int("max_depth", cfg.SearchMaxDepth))
	}

	if cfg.EvalCacheTTLSec > 0 {
		store, err := a.cacheStore(ctx)
		if err != nil {
			return nil, err
		}
		cached, err := evalcache.New(base, store, time.Duration(cfg.EvalCacheTTLSec)*time.Second, a.logger.Named("evalcache"))
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		a.closers = append(a.closers, func(context.Context) error { return cached.Close() })
		base = cached
	}

	// Book moves are drawn at random, so the book sits outside the cache.
	if path := strings.TrimSpace(cfg.OpeningBookPath); path != "" {
		bk, err := openingbook.Load(path)
		if err != nil {
			return nil, err
		}
		booked, err := openingbook.NewSearcher(bk, base, cfg.OpeningBookMaxPly, a.logger.Named("book"))
		if err != nil {
			return nil, err
		}
		a.logger.Info("opening_book_loaded", zap.String("path", path), zap.Int("max_ply", cfg.OpeningBookMaxPly))
		base = booked
	}
	return base, nil
}

// cacheStore prefers Redis. An unreachable Redis downgrades to the in-process
// map rather than refusing to start.
func (a *App) cacheStore(ctx context.Context) (evalcache.Store, error) {
	raw := strings.TrimSpace(a.Config.RedisURL)
	if raw == "" {
		return evalcache.NewMemoryStore(), nil
	}
	st, err := evalcache.NewRedisStore(ctx, raw)
	if err == nil {
		a.logger.Info("evalcache_backend", zap.String("kind", "redis"))
		return st, nil
	}
	if errors.Is(err, context.Canceled) {
		return nil, err
	}
	a.logger.Warn("evalcache_redis_unavailable", zap.Error(err))
	return evalcache.NewMemoryStore(), nil
}

func (a *App) presenter() (*presenter.Presenter, error) {
	cfg := a.Config
	headers := bridge.SessionHeaders(cfg.XSessionID)

	var client *bridge.Client
	if cfg.BridgeBaseURL != "" {
		client = bridge.NewClient(cfg.BridgeBaseURL, bridge.WithHeaderProvider(headers))
	}
	if cfg.BridgeWSURL != "" {
		ws := bridge.NewWebSocket(cfg.BridgeWSURL, 5, a.logger.Named("ws"))
		ws.SetHeaderProvider(headers)
		ws.OnStateChange(func(s bridge.WebSocketState) {
			a.logger.Info("ws_state", zap.Stringer("state", s))
		})
		a.WebSocket = ws
		a.closers = append(a.closers, ws.Close)
	}

	egress, err := bridge.NewEgress(cfg.BridgeTransport, cfg.BridgeDryRun, client, a.WebSocket, a.logger.Named("egress"))
	if err != nil {
		return nil, err
	}
	renderer, err := render.NewRenderer(render.DefaultSquareSize)
	if err != nil {
		return nil, err
	}
	p := presenter.New(egress, renderer, a.logger.Named("presenter"))
	a.Presenter = p
	a.closers = append(a.closers, p.Close)
	return p, nil
}

// Start connects the WebSocket when one is configured. A failed first dial is
// logged and left to the reconnect loop.
func (a *App) Start(ctx context.Context) {
	if a.WebSocket == nil || a.Config.BridgeDryRun {
		return
	}
	if err := a.WebSocket.Connect(ctx); err != nil {
		a.logger.Warn("ws_connect_failed", zap.String("url", a.Config.BridgeWSURL), zap.Error(err))
	}
}

// Close releases everything in reverse order of construction.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
