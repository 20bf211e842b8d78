package renderstub

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"fractal-desktop/internal/fractal"
	"fractal-desktop/internal/geometry"
	"fractal-desktop/internal/protocol"
	"fractal-desktop/internal/tiles"
)

func dialStub(t *testing.T) *websocket.Conn {
	t.Helper()

	srv := httptest.NewServer(NewServer(128).Routes())
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("failed to dial stub: %v", err)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func TestServerAnswersTileRequest(t *testing.T) {
	ws := dialStub(t)

	v := geometry.Viewport{Zoom: 256, Width: 256, Height: 256}
	req := protocol.NewTileRequest(v, fractal.DefaultParameters(), 2,
		[]tiles.Key{{X: 1, Y: -1, LOD: 2}})
	data, err := req.Encode()
	if err != nil {
		t.Fatalf("failed to encode request: %v", err)
	}
	if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("failed to send request: %v", err)
	}

	ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	msgType, resp, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("failed to read response: %v", err)
	}
	if msgType != websocket.TextMessage {
		t.Fatalf("response type = %d, want text", msgType)
	}

	msg, err := protocol.DecodeTileMessage(resp, 128)
	if err != nil {
		t.Fatalf("failed to decode tile: %v", err)
	}
	if msg.Key != (tiles.Key{X: 1, Y: -1, LOD: 2}) {
		t.Errorf("tile key = %+v", msg.Key)
	}
	if got := msg.Image.Bounds().Dx(); got != 64 {
		t.Errorf("tile edge = %d, want 64", got)
	}
}

func TestServerAnswersEveryRequestedTile(t *testing.T) {
	ws := dialStub(t)

	keys := []tiles.Key{
		{X: 0, Y: 0, LOD: 4}, {X: 1, Y: 0, LOD: 4},
		{X: 0, Y: 1, LOD: 4}, {X: 1, Y: 1, LOD: 4},
	}
	v := geometry.Viewport{Zoom: 256, Width: 256, Height: 256}
	req := protocol.NewTileRequest(v, fractal.DefaultParameters(), 4, keys)
	data, _ := req.Encode()
	if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("failed to send request: %v", err)
	}

	got := make(map[tiles.Key]bool)
	ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	for range keys {
		_, resp, err := ws.ReadMessage()
		if err != nil {
			t.Fatalf("failed to read response: %v", err)
		}
		msg, err := protocol.DecodeTileMessage(resp, 128)
		if err != nil {
			t.Fatalf("failed to decode tile: %v", err)
		}
		got[msg.Key] = true
	}
	for _, k := range keys {
		if !got[k] {
			t.Errorf("no response for tile %+v", k)
		}
	}
}

func TestServerAnswersFrameRequest(t *testing.T) {
	ws := dialStub(t)

	v := geometry.Viewport{Zoom: 256, Width: 64, Height: 48}
	req := protocol.NewFrameRequest(v, fractal.DefaultParameters())
	data, _ := req.Encode()
	if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("failed to send request: %v", err)
	}

	ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	msgType, resp, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("failed to read response: %v", err)
	}
	if msgType != websocket.BinaryMessage {
		t.Fatalf("response type = %d, want binary", msgType)
	}
	if len(resp) != 64*48*4 {
		t.Errorf("frame = %d bytes, want %d", len(resp), 64*48*4)
	}
}

func TestServerSurvivesMalformedRequest(t *testing.T) {
	ws := dialStub(t)

	if err := ws.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatalf("failed to send garbage: %v", err)
	}

	// The connection must still answer a valid request afterwards.
	v := geometry.Viewport{Zoom: 256, Width: 256, Height: 256}
	req := protocol.NewTileRequest(v, fractal.DefaultParameters(), 4,
		[]tiles.Key{{X: 0, Y: 0, LOD: 4}})
	data, _ := req.Encode()
	if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("failed to send request: %v", err)
	}

	ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := ws.ReadMessage(); err != nil {
		t.Fatalf("connection died after malformed request: %v", err)
	}
}
