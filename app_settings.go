package main

import (
	"fmt"
	"log"

	"fractal-desktop/internal/config"
)

// ===================
// Settings Management
// ===================

// GetSettings returns the current configuration
func (a *App) GetSettings() *config.Config {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Return a copy to prevent external modifications
	cfgCopy := *a.cfg
	return &cfgCopy
}

// SaveSettings persists updated configuration and applies what can change
// at runtime. Connection and scheduler settings take effect on restart.
func (a *App) SaveSettings(cfg *config.Config) error {
	// Validate settings
	if cfg.Server.URL == "" {
		return fmt.Errorf("server URL cannot be empty")
	}
	if cfg.Tiles.Size <= 0 {
		return fmt.Errorf("tile size must be positive")
	}
	if cfg.Tiles.CacheCapacity <= 0 {
		return fmt.Errorf("cache capacity must be positive")
	}

	if a.configPath != "" {
		if err := config.Save(a.configPath, cfg); err != nil {
			return err
		}
	}

	a.mu.Lock()
	a.cfg = cfg
	a.mu.Unlock()

	// Overlay toggles apply immediately.
	a.compositor.SetOverlay(cfg.Render.ShowTileGrid, cfg.Render.ShowCoordinates)
	a.state.MarkDirty()

	log.Printf("[App] Settings saved. Connection settings will apply on next restart.")
	return nil
}

// SetOverlay toggles the tile grid and coordinate overlays.
func (a *App) SetOverlay(grid, coords bool) {
	a.compositor.SetOverlay(grid, coords)
	a.state.MarkDirty()
}

// CacheStats returns the tile cache entry count and capacity.
func (a *App) CacheStats() (entries, capacity int) {
	return a.tileCache.Stats()
}
