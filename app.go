package main

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/posthog/posthog-go"

	"fractal-desktop/internal/cache"
	"fractal-desktop/internal/config"
	"fractal-desktop/internal/conn"
	"fractal-desktop/internal/fractal"
	"fractal-desktop/internal/input"
	"fractal-desktop/internal/protocol"
	"fractal-desktop/internal/render"
	"fractal-desktop/internal/scheduler"
	"fractal-desktop/internal/session"
)

// Linker flags
var (
	PostHogKey  string
	PostHogHost string
	AppVersion  string = "0.0.0-dev"
)

// App wires the session, tile pipeline, and connection together and runs
// the frame loop.
type App struct {
	cfg        *config.Config
	configPath string

	state      *session.State
	tileCache  *cache.TileCache
	sched      *scheduler.Scheduler
	manager    *conn.Manager
	compositor *render.Compositor
	controller *input.Controller

	phClient posthog.Client
	distinct string

	mu        sync.Mutex
	frame     *image.RGBA
	fullFrame *image.RGBA
}

// NewApp builds the application from loaded configuration.
func NewApp(cfg *config.Config, configPath string, width, height int) (*App, error) {
	tileCache, err := cache.New(cfg.Tiles.CacheCapacity)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tile cache: %w", err)
	}
	log.Printf("[App] Tile cache initialized (capacity %d)", cfg.Tiles.CacheCapacity)

	state := session.New(width, height, cfg.Tiles.Size)

	manager := conn.New(conn.Config{
		URL:              cfg.Server.URL,
		TileSize:         cfg.Tiles.Size,
		HandshakeTimeout: config.Duration(cfg.Server.HandshakeTimeoutMS),
		WriteTimeout:     config.Duration(cfg.Server.WriteTimeoutMS),
		Backoff: &conn.Backoff{
			Initial: config.Duration(cfg.Server.ReconnectInitialMS),
			Max:     config.Duration(cfg.Server.ReconnectMaxMS),
			Jitter:  0.2,
		},
	})

	sched := scheduler.New(scheduler.Config{
		TileSize:    cfg.Tiles.Size,
		CoarseLOD:   cfg.Scheduler.CoarseLOD,
		FastSettle:  config.Duration(cfg.Scheduler.FastSettleMS),
		SlowSettle:  config.Duration(cfg.Scheduler.SlowSettleMS),
		RefineDelay: config.Duration(cfg.Scheduler.RefineDelayMS),
		RequestTTL:  config.Duration(cfg.Scheduler.RequestTTLMS),
	}, tileCache, manager)

	compositor := render.New(cfg.Tiles.Size)
	compositor.SetOverlay(cfg.Render.ShowTileGrid, cfg.Render.ShowCoordinates)

	// Initialize PostHog
	var phClient posthog.Client
	if PostHogKey != "" && cfg.Telemetry.Enabled {
		phConfig := posthog.Config{
			Endpoint: PostHogHost,
		}
		client, err := posthog.NewWithConfig(PostHogKey, phConfig)
		if err != nil {
			log.Printf("[App] Failed to initialize PostHog: %v", err)
		} else {
			phClient = client
		}
	}

	a := &App{
		cfg:        cfg,
		configPath: configPath,
		state:      state,
		tileCache:  tileCache,
		sched:      sched,
		manager:    manager,
		compositor: compositor,
		phClient:   phClient,
		distinct:   installID(),
	}
	a.controller = input.NewController(state, sched)

	manager.SetOnTile(sched.HandleTile)
	manager.SetOnConnected(sched.Replay)
	manager.SetOnFullFrame(a.handleFullFrame)
	sched.SetOnRedraw(state.MarkDirty)

	return a, nil
}

// Run connects to the render server and drives the frame loop until the
// context is cancelled.
func (a *App) Run(ctx context.Context) {
	go a.manager.Run(ctx)

	a.sched.Prime(a.state.Viewport(), a.state.Params())
	a.TrackEvent("app_started", map[string]interface{}{
		"version": AppVersion,
	})

	// Snapshot the interval: SaveSettings swaps the config pointer under
	// a.mu, and a new frame interval applies on restart anyway.
	a.mu.Lock()
	interval := config.Duration(a.cfg.Render.FrameIntervalMS)
	a.mu.Unlock()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if a.state.ConsumeDirty() {
				a.compose()
			}
		}
	}
}

// compose rebuilds the output frame from the cache, coarse tiles first so
// finer ones paint over them.
func (a *App) compose() {
	v := a.state.Viewport()
	panX, panY := a.state.PanOffset()
	ordered := a.tileCache.OrderedByLOD()

	a.mu.Lock()
	defer a.mu.Unlock()
	if len(ordered) == 0 && a.fullFrame != nil {
		a.frame = a.compositor.FullFrame(v, a.fullFrame)
		return
	}
	a.frame = a.compositor.Frame(v, ordered, panX, panY)
}

// handleFullFrame stores a binary full-frame buffer; it is shown whenever
// no tiles are cached for the current parameters.
func (a *App) handleFullFrame(f *protocol.FullFrame) {
	a.mu.Lock()
	a.fullFrame = f.Image
	a.mu.Unlock()
	a.state.MarkDirty()
}

// Frame returns the most recently composed output frame, or nil before the
// first compose.
func (a *App) Frame() *image.RGBA {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.frame
}

// PointerDown forwards a press event to the input controller.
func (a *App) PointerDown(x, y float64) { a.controller.PointerDown(x, y) }

// PointerMove forwards a move event to the input controller.
func (a *App) PointerMove(x, y float64) { a.controller.PointerMove(x, y) }

// PointerUp forwards a release event to the input controller.
func (a *App) PointerUp(x, y float64) { a.controller.PointerUp(x, y) }

// Wheel forwards a scroll event to the input controller.
func (a *App) Wheel(x, y, steps float64) { a.controller.Wheel(x, y, steps) }

// SetParameters applies new fractal parameters. The scheduler clears the
// cache and re-requests once the edits settle.
func (a *App) SetParameters(p fractal.Parameters) error {
	if err := a.state.SetParams(p); err != nil {
		return err
	}
	a.sched.ParamsChanged(a.state.Viewport(), p)
	a.TrackEvent("parameters_changed", map[string]interface{}{
		"maxIterations": p.MaxIterations,
		"coloring":      p.Coloring,
	})
	return nil
}

// Resize updates the canvas dimensions and schedules a request for the
// newly exposed area.
func (a *App) Resize(width, height int) {
	v := a.state.Viewport()
	v.Width = width
	v.Height = height
	a.state.SetViewport(v)
	a.sched.ViewportChanged(a.state.Viewport())
}

// Snapshot composes the current frame and writes it as a PNG file.
func (a *App) Snapshot(path string) error {
	a.state.MarkDirty()
	a.state.ConsumeDirty()
	a.compose()

	frame := a.Frame()
	if frame == nil {
		return fmt.Errorf("no frame to snapshot")
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create snapshot file: %w", err)
	}
	defer f.Close()

	if err := png.Encode(f, frame); err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	log.Printf("[App] Snapshot written to %s", path)
	return nil
}

// Idle reports whether all requested tiles have arrived.
func (a *App) Idle() bool {
	return a.sched.PendingCount() == 0 && a.tileCache.Len() > 0
}

// TrackEvent sends an event to PostHog
func (a *App) TrackEvent(event string, props map[string]interface{}) {
	if a.phClient != nil {
		a.phClient.Enqueue(posthog.Capture{
			DistinctId: a.distinct,
			Event:      event,
			Properties: props,
		})
	}
}

// Shutdown flushes telemetry and releases resources.
func (a *App) Shutdown() {
	if a.phClient != nil {
		a.phClient.Close()
	}
}

// installID returns a stable anonymous identifier for this install,
// generating and persisting one on first run.
func installID() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return uuid.NewString()
	}
	dir := filepath.Join(homeDir, ".fractal-desktop")
	path := filepath.Join(dir, "install_id")

	if data, err := os.ReadFile(path); err == nil {
		if id := strings.TrimSpace(string(data)); id != "" {
			return id
		}
	}

	id := uuid.NewString()
	if err := os.MkdirAll(dir, 0755); err == nil {
		os.WriteFile(path, []byte(id+"\n"), 0644)
	}
	return id
}
