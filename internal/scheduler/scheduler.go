// Package scheduler decides when and what to request from the remote
// renderer. It debounces rapid viewport and parameter changes into settle
// events, issues a coarse pass immediately followed by a delayed fine pass,
// and deduplicates against the tile cache and in-flight requests.
package scheduler

import (
	"log"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/google/uuid"

	"fractal-desktop/internal/cache"
	"fractal-desktop/internal/fractal"
	"fractal-desktop/internal/geometry"
	"fractal-desktop/internal/protocol"
	"fractal-desktop/internal/tiles"
)

// Sender delivers an encoded request to the remote renderer. Implementations
// may drop requests while disconnected; the next connect replays state.
type Sender interface {
	Send(req protocol.Request) error
}

// Config contains scheduler timing and addressing settings.
type Config struct {
	TileSize    int
	CoarseLOD   int
	FastSettle  time.Duration // quiet window after pan/zoom input
	SlowSettle  time.Duration // quiet window after parameter edits
	RefineDelay time.Duration // gap between the coarse and fine pass
	RequestTTL  time.Duration // in-flight request expiry
}

// DefaultConfig returns the default scheduler settings.
func DefaultConfig() Config {
	return Config{
		TileSize:    tiles.DefaultTileSize,
		CoarseLOD:   fractal.DefaultCoarseLOD,
		FastSettle:  30 * time.Millisecond,
		SlowSettle:  500 * time.Millisecond,
		RefineDelay: 150 * time.Millisecond,
		RequestTTL:  10 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.TileSize <= 0 {
		c.TileSize = d.TileSize
	}
	if c.CoarseLOD <= 0 {
		c.CoarseLOD = d.CoarseLOD
	}
	if c.FastSettle <= 0 {
		c.FastSettle = d.FastSettle
	}
	if c.SlowSettle <= 0 {
		c.SlowSettle = d.SlowSettle
	}
	if c.RefineDelay <= 0 {
		c.RefineDelay = d.RefineDelay
	}
	if c.RequestTTL <= 0 {
		c.RequestTTL = d.RequestTTL
	}
	return c
}

// pendingRequest tracks one sent batch so its keys are not re-requested
// until the batch resolves or times out.
type pendingRequest struct {
	id     string
	keys   []tiles.Key
	zoom   float64
	sentAt time.Time
	expiry *time.Timer
}

// Scheduler owns the settle timers and the in-flight request table.
type Scheduler struct {
	cfg    Config
	cache  *cache.TileCache
	sender Sender

	fastSettle func(func())
	slowSettle func(func())

	mu        sync.Mutex
	viewport  geometry.Viewport
	params    fractal.Parameters
	newParams fractal.Parameters
	haveState bool

	// generation counts settled viewport states; a scheduled fine pass
	// carries the generation it was planned for and is dropped if another
	// settle supersedes it before it fires.
	generation  uint64
	fineTimer   *time.Timer
	pending     map[string]*pendingRequest
	pendingKeys map[tiles.Key]string

	onRedraw func()
}

// New creates a scheduler writing requests to sender and resolved tiles
// into c.
func New(cfg Config, c *cache.TileCache, sender Sender) *Scheduler {
	cfg = cfg.withDefaults()
	return &Scheduler{
		cfg:         cfg,
		cache:       c,
		sender:      sender,
		fastSettle:  debounce.New(cfg.FastSettle),
		slowSettle:  debounce.New(cfg.SlowSettle),
		pending:     make(map[string]*pendingRequest),
		pendingKeys: make(map[tiles.Key]string),
	}
}

// SetOnRedraw registers the callback invoked whenever a received tile
// changes what a redraw would show.
func (s *Scheduler) SetOnRedraw(f func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onRedraw = f
}

// Prime seeds the scheduler with the session's initial viewport and
// parameters without triggering a settle. The first dispatch happens when
// the connection manager replays state on connect.
func (s *Scheduler) Prime(v geometry.Viewport, p fractal.Parameters) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.viewport = v
	s.params = p
	s.newParams = p
	s.haveState = true
}

// ViewportChanged records a new viewport and arms the fast settle class.
// Only the most recent value within the window is dispatched.
func (s *Scheduler) ViewportChanged(v geometry.Viewport) {
	s.mu.Lock()
	s.viewport = v
	s.haveState = true
	s.mu.Unlock()

	s.fastSettle(s.dispatch)
}

// ParamsChanged records new fractal parameters and arms the slow settle
// class. When the settle fires and the parameters changed pixel content,
// the whole tile cache is invalidated before re-requesting.
func (s *Scheduler) ParamsChanged(v geometry.Viewport, p fractal.Parameters) {
	s.mu.Lock()
	s.viewport = v
	s.newParams = p
	s.haveState = true
	s.mu.Unlock()

	s.slowSettle(s.settleParams)
}

// Replay re-issues the current viewport and parameters immediately,
// bypassing the settle windows. Called on reconnect: everything in flight
// before the drop is presumed lost.
func (s *Scheduler) Replay() {
	s.mu.Lock()
	for _, pr := range s.pending {
		pr.expiry.Stop()
	}
	s.pending = make(map[string]*pendingRequest)
	s.pendingKeys = make(map[tiles.Key]string)
	s.mu.Unlock()

	s.dispatch()
}

// HandleTile accepts a received tile into the cache and resolves the
// pending entry for its key. The entry is stamped with the zoom of the
// batch that requested it, so a later zoom change sees it as stale. Tiles
// for keys nobody is waiting on are cached against the current zoom.
func (s *Scheduler) HandleTile(msg *protocol.TileMessage) {
	s.mu.Lock()
	zoom := s.viewport.Zoom
	if id, ok := s.pendingKeys[msg.Key]; ok {
		delete(s.pendingKeys, msg.Key)
		if pr, ok := s.pending[id]; ok {
			zoom = pr.zoom
			remaining := pr.keys[:0]
			for _, k := range pr.keys {
				if k != msg.Key {
					remaining = append(remaining, k)
				}
			}
			pr.keys = remaining
			if len(pr.keys) == 0 {
				pr.expiry.Stop()
				delete(s.pending, id)
			}
		}
	}
	s.cache.Put(&cache.Tile{
		Key:        msg.Key,
		Image:      msg.Image,
		Zoom:       zoom,
		ReceivedAt: time.Now(),
	})
	redraw := s.onRedraw
	s.mu.Unlock()

	if redraw != nil {
		redraw()
	}
}

// PendingCount returns the number of unresolved in-flight batches.
func (s *Scheduler) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// settleParams applies the latest parameter edit: invalidate the cache if
// pixel content changed, then dispatch as usual.
func (s *Scheduler) settleParams() {
	s.mu.Lock()
	changed := !s.newParams.Equal(s.params)
	s.params = s.newParams
	s.mu.Unlock()

	if changed {
		s.cache.Clear()
		log.Printf("[Scheduler] parameters changed, tile cache invalidated")
	}
	s.dispatch()
}

// dispatch runs one settled change: send the coarse pass now, schedule the
// fine pass after the refine delay. Coarse-before-fine is a strict
// priority; the fine request only goes out after the coarse one was sent.
func (s *Scheduler) dispatch() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.haveState {
		return
	}

	s.generation++
	gen := s.generation
	if s.fineTimer != nil {
		s.fineTimer.Stop()
	}

	if s.cfg.CoarseLOD != s.fineLODLocked() {
		coarse := s.wantLocked(s.cfg.CoarseLOD)
		if len(coarse) > 0 {
			s.sendLocked(coarse, s.cfg.CoarseLOD)
		}
	}

	s.fineTimer = time.AfterFunc(s.cfg.RefineDelay, func() {
		s.refine(gen)
	})
}

// refine sends the fine pass planned for generation gen unless a newer
// settle superseded it. A stale fine pass is cancelled, not sent: painting
// outdated fine tiles over a current coarse layer is worse than waiting.
func (s *Scheduler) refine(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		return
	}

	lod := s.fineLODLocked()
	fine := s.wantLocked(lod)
	if len(fine) > 0 {
		s.sendLocked(fine, lod)
	}
}

// fineLODLocked returns the detail tier of the fine pass; the user may have
// selected a coarser-than-full tier in the parameters. Caller holds s.mu.
func (s *Scheduler) fineLODLocked() int {
	if s.params.LOD >= fractal.FineLOD {
		return s.params.LOD
	}
	return fractal.FineLOD
}

// wantLocked returns the visible keys at lod that are neither cached nor
// already in flight for the current zoom. Grid indices are zoom-scaled, so
// an entry requested at a different zoom holds different pixel content
// under the same key: it counts as missing and is re-requested, with the
// fresh delivery replacing it wholesale. Caller holds s.mu.
func (s *Scheduler) wantLocked(lod int) []tiles.Key {
	visible := tiles.Visible(s.viewport, s.cfg.TileSize, lod)
	want := visible[:0]
	for _, k := range visible {
		if t, ok := s.cache.Get(k); ok && t.Zoom == s.viewport.Zoom {
			continue
		}
		if id, inFlight := s.pendingKeys[k]; inFlight {
			if pr, ok := s.pending[id]; ok && pr.zoom == s.viewport.Zoom {
				continue
			}
		}
		want = append(want, k)
	}
	return want
}

// sendLocked ships one batch and registers it as pending. Caller holds s.mu.
func (s *Scheduler) sendLocked(keys []tiles.Key, lod int) {
	req := protocol.NewTileRequest(s.viewport, s.params, lod, keys)
	if err := s.sender.Send(req); err != nil {
		log.Printf("[Scheduler] failed to send %d-tile request: %v", len(keys), err)
		return
	}

	id := uuid.NewString()
	pr := &pendingRequest{
		id:     id,
		keys:   append([]tiles.Key(nil), keys...),
		zoom:   s.viewport.Zoom,
		sentAt: time.Now(),
	}
	pr.expiry = time.AfterFunc(s.cfg.RequestTTL, func() {
		s.expire(id)
	})

	s.pending[id] = pr
	for _, k := range keys {
		s.pendingKeys[k] = id
	}
}

// expire abandons a request that never fully resolved; its keys become
// requestable again at the next settle.
func (s *Scheduler) expire(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pr, ok := s.pending[id]
	if !ok {
		return
	}
	for _, k := range pr.keys {
		if s.pendingKeys[k] == id {
			delete(s.pendingKeys, k)
		}
	}
	delete(s.pending, id)
	log.Printf("[Scheduler] request %s timed out with %d tiles unresolved", id, len(pr.keys))
}
