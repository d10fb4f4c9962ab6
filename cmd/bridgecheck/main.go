package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/park285/Cheese-ChessFront/internal/bridge"
	"github.com/park285/Cheese-ChessFront/pkg/framedto"
)

func main() {
	baseURL := os.Getenv("BRIDGE_BASE_URL")
	wsURL := os.Getenv("BRIDGE_WS_URL")
	headers := bridge.SessionHeaders(os.Getenv("X_SESSION_ID"))

	if baseURL == "" && wsURL == "" {
		log.Fatal("BRIDGE_BASE_URL or BRIDGE_WS_URL is required")
	}

	failed := false
	if baseURL != "" {
		client := bridge.NewClient(baseURL,
			bridge.WithHeaderProvider(headers),
			bridge.WithTimeout(5*time.Second),
		)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		h, err := client.Health(ctx)
		cancel()
		if err != nil {
			log.Printf("/health error: %v", err)
			failed = true
		} else {
			log.Printf("/health ok: status=%s version=%s", h.Status, h.Version)
		}
	}

	if wsURL == "" {
		log.Println("BRIDGE_WS_URL not set; skipping WS check")
	} else if !checkWS(wsURL, headers) {
		failed = true
	}
	if failed {
		os.Exit(1)
	}
}

func checkWS(wsURL string, headers bridge.HeaderProvider) bool {
	ws := bridge.NewWebSocket(wsURL, 0, nil)
	ws.SetHeaderProvider(headers)
	ws.OnStateChange(func(state bridge.WebSocketState) {
		log.Printf("WS state: %s", state)
	})
	ws.OnInput(func(in framedto.Input) {
		log.Printf("WS input kind=%s cell=%s side=%d seconds=%.2f", in.Kind, in.Cell, in.Side, in.Seconds)
	})
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = ws.Close(ctx)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := ws.Connect(ctx); err != nil {
		log.Printf("WS connect error: %v", err)
		return false
	}
	hello := framedto.Status{Type: framedto.TypeStatus, GameID: "bridgecheck", State: "probe", UI: "bridgecheck"}
	if err := ws.WriteJSON(ctx, hello); err != nil {
		log.Printf("WS write error: %v", err)
		return false
	}

	// observe inbound input for a short window
	t := time.NewTimer(5 * time.Second)
	defer t.Stop()
	<-t.C
	return true
}
