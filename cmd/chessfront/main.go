package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/park285/Cheese-ChessFront/internal/builder"
	appcfg "github.com/park285/Cheese-ChessFront/internal/config"
	"github.com/park285/Cheese-ChessFront/internal/obslog"
	"github.com/park285/Cheese-ChessFront/internal/orchestrator"
	"go.uber.org/zap"
)

func main() {
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()
	defer func() { _ = logger.Sync() }()

	cfg, err := appcfg.Load()
	if err != nil {
		logger.Fatal("config error", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := builder.New(ctx, cfg, os.Stdout, logger)
	if err != nil {
		logger.Fatal("init error", zap.Error(err))
	}
	app.Start(ctx)

	if cfg.ConsoleInput {
		go readConsole(ctx, os.Stdin, app.Controller.Input(), stop)
	}

	logger.Info("chessfront_started",
		zap.String("game_id", app.Controller.GameID()),
		zap.Bool("headless", cfg.Headless()),
		zap.Int("tick_rate", cfg.TickRate),
	)
	if err := app.Controller.Run(ctx, cfg.TickRate); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("loop_stopped", zap.Error(err))
	}

	shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := app.Close(shutdown); err != nil {
		logger.Warn("shutdown_incomplete", zap.Error(err))
	}
}

// readConsole feeds stdin commands into the controller until quit or EOF.
func readConsole(ctx context.Context, r io.Reader, q *orchestrator.InputQueue, quit func()) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if ctx.Err() != nil {
			return
		}
		inputs, err := orchestrator.ParseCommand(sc.Text())
		if errors.Is(err, orchestrator.ErrQuit) {
			quit()
			return
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "? %v\n", err)
			continue
		}
		q.Push(inputs...)
	}
}
