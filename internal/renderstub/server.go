package renderstub

import (
	"log"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"

	"fractal-desktop/internal/protocol"
)

// Server serves the render protocol over a websocket endpoint.
type Server struct {
	renderer *Renderer
	upgrader websocket.Upgrader
}

// NewServer creates a stub render server for the given tile size.
func NewServer(tileSize int) *Server {
	return &Server{
		renderer: NewRenderer(tileSize),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Routes builds the HTTP router: the websocket endpoint plus a health check.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Recoverer)

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Get("/ws", s.handleWS)

	return r
}

// handleWS upgrades the connection and answers render requests until the
// client goes away.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[RenderStub] Failed to upgrade connection: %v", err)
		return
	}
	defer ws.Close()

	// Concurrent tile computation, serialized writes.
	var writeMu sync.Mutex

	for {
		msgType, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		req, err := protocol.DecodeRequest(data)
		if err != nil {
			log.Printf("[RenderStub] Dropping malformed request: %v", err)
			continue
		}

		if len(req.Tiles) == 0 {
			s.sendFrame(ws, &writeMu, req)
			continue
		}
		s.sendTiles(ws, &writeMu, req)
	}
}

// sendTiles computes each requested tile and replies with one JSON message
// per tile, cycling through the supported payload encodings.
func (s *Server) sendTiles(ws *websocket.Conn, writeMu *sync.Mutex, req protocol.Request) {
	keys, err := req.Keys()
	if err != nil {
		log.Printf("[RenderStub] Dropping request with bad tile list: %v", err)
		return
	}

	encodings := []string{protocol.EncodingPNG, protocol.EncodingRaw, protocol.EncodingRawZstd}

	var wg sync.WaitGroup
	for i, key := range keys {
		i, key := i, key
		wg.Add(1)
		go func() {
			defer wg.Done()

			img := s.renderer.Tile(key, req)
			msg, err := protocol.EncodeTile(key, img, encodings[i%len(encodings)])
			if err != nil {
				log.Printf("[RenderStub] Failed to encode tile %s: %v", key, err)
				return
			}

			writeMu.Lock()
			defer writeMu.Unlock()
			if err := ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Printf("[RenderStub] Failed to write tile %s: %v", key, err)
			}
		}()
	}
	wg.Wait()
}

// sendFrame computes a full-canvas image and replies with one binary frame.
func (s *Server) sendFrame(ws *websocket.Conn, writeMu *sync.Mutex, req protocol.Request) {
	img := s.renderer.Frame(req)

	writeMu.Lock()
	defer writeMu.Unlock()
	if err := ws.WriteMessage(websocket.BinaryMessage, img.Pix); err != nil {
		log.Printf("[RenderStub] Failed to write frame: %v", err)
	}
}
