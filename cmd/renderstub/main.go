// Command renderstub runs the local development render server. It answers
// the client's websocket requests with locally computed Julia set tiles.
package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"

	"fractal-desktop/internal/renderstub"
	"fractal-desktop/internal/tiles"
)

func main() {
	port := flag.Int("port", 8090, "listen port")
	tileSize := flag.Int("tile-size", tiles.DefaultTileSize, "full-detail tile edge in pixels")
	flag.Parse()

	srv := renderstub.NewServer(*tileSize)
	addr := fmt.Sprintf(":%d", *port)

	log.Printf("[RenderStub] Listening on %s (tile size %d)", addr, *tileSize)
	if err := http.ListenAndServe(addr, srv.Routes()); err != nil {
		log.Fatalf("[RenderStub] Server failed: %v", err)
	}
}
