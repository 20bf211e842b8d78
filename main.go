package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fractal-desktop/internal/config"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	endpoint := flag.String("endpoint", "", "render server websocket URL (overrides config)")
	width := flag.Int("width", 1024, "canvas width in pixels")
	height := flag.Int("height", 768, "canvas height in pixels")
	snapshot := flag.String("snapshot", "", "render one frame to this PNG file and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("[Main] Failed to load config: %v", err)
	}
	if *endpoint != "" {
		cfg.Server.URL = *endpoint
	}

	app, err := NewApp(cfg, *configPath, *width, *height)
	if err != nil {
		log.Fatalf("[Main] Failed to initialize: %v", err)
	}
	defer app.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *snapshot != "" {
		go snapshotWhenIdle(ctx, stop, app, *snapshot)
	}

	log.Printf("[Main] Connecting to %s", cfg.Server.URL)
	app.Run(ctx)
}

// snapshotWhenIdle waits for the first complete tile set, writes the PNG,
// and stops the app.
func snapshotWhenIdle(ctx context.Context, stop func(), app *App, path string) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !app.Idle() {
				continue
			}
			if err := app.Snapshot(path); err != nil {
				log.Printf("[Main] Snapshot failed: %v", err)
			}
			stop()
			return
		}
	}
}
