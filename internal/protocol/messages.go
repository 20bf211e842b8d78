// Package protocol defines the messages exchanged with the remote renderer
// and their encoding. Outbound requests are JSON; inbound traffic is either
// a JSON tile message or a raw binary full-frame buffer.
package protocol

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/zstd"

	"fractal-desktop/internal/fractal"
	"fractal-desktop/internal/geometry"
	"fractal-desktop/internal/tiles"
)

// Tile payload encodings accepted on the wire.
const (
	EncodingPNG     = "png"
	EncodingRaw     = "raw"
	EncodingRawZstd = "raw+zstd"
)

// ErrUnknownMessage marks an inbound message whose type field is not
// recognized. Callers log and drop it; it never affects connection state.
var ErrUnknownMessage = errors.New("unknown message type")

// RequestParams are the renderer-facing parameters: the fractal parameters
// plus the canvas size, which fixes the full-frame buffer dimensions.
type RequestParams struct {
	fractal.Parameters
	Width  int `json:"width"`
	Height int `json:"height"`
}

// ViewportRef is the viewport portion of a request.
type ViewportRef struct {
	Center geometry.Complex `json:"center"`
	Zoom   float64          `json:"zoom"`
}

// Request asks the renderer for a batch of tiles (or, with an empty tile
// list, one full-frame buffer). The LOD of every listed tile is implied by
// Params.LOD.
type Request struct {
	Params   RequestParams `json:"params"`
	Viewport ViewportRef   `json:"viewport"`
	Tiles    []string      `json:"tiles,omitempty"`
}

// NewTileRequest builds a request for keys at the given LOD tier.
func NewTileRequest(v geometry.Viewport, p fractal.Parameters, lod int, keys []tiles.Key) Request {
	p.LOD = lod
	list := make([]string, len(keys))
	for i, k := range keys {
		list[i] = k.String()
	}
	return Request{
		Params:   RequestParams{Parameters: p, Width: v.Width, Height: v.Height},
		Viewport: ViewportRef{Center: v.Center, Zoom: v.Zoom},
		Tiles:    list,
	}
}

// NewFrameRequest builds a full-frame request: params only, no tile list.
func NewFrameRequest(v geometry.Viewport, p fractal.Parameters) Request {
	return Request{
		Params:   RequestParams{Parameters: p, Width: v.Width, Height: v.Height},
		Viewport: ViewportRef{Center: v.Center, Zoom: v.Zoom},
	}
}

// Encode serializes the request for the wire.
func (r Request) Encode() ([]byte, error) {
	return json.Marshal(r)
}

// DecodeRequest parses an outbound request; used by the renderer side.
func DecodeRequest(data []byte) (Request, error) {
	var r Request
	if err := json.Unmarshal(data, &r); err != nil {
		return Request{}, fmt.Errorf("failed to decode request: %w", err)
	}
	return r, nil
}

// Keys parses the request's tile list back into keys, applying the LOD
// implied by the params.
func (r Request) Keys() ([]tiles.Key, error) {
	keys := make([]tiles.Key, 0, len(r.Tiles))
	for _, s := range r.Tiles {
		parts := strings.SplitN(s, ",", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("malformed tile key %q", s)
		}
		x, err := strconv.Atoi(parts[0])
		if err != nil {
			return nil, fmt.Errorf("malformed tile key %q: %w", s, err)
		}
		y, err := strconv.Atoi(parts[1])
		if err != nil {
			return nil, fmt.Errorf("malformed tile key %q: %w", s, err)
		}
		keys = append(keys, tiles.Key{X: x, Y: y, LOD: r.Params.LOD})
	}
	return keys, nil
}

// TileMessage is one decoded inbound tile.
type TileMessage struct {
	Key   tiles.Key
	Image *image.RGBA
}

// FullFrame is one decoded full-frame buffer.
type FullFrame struct {
	Image *image.RGBA
}

// envelope is the raw shape of an inbound JSON message, distinguished by
// the type field.
type envelope struct {
	Type     string `json:"type"`
	X        int    `json:"x"`
	Y        int    `json:"y"`
	LOD      int    `json:"lod"`
	Encoding string `json:"encoding,omitempty"`
	Image    string `json:"image"`
}

// DecodeTileMessage parses an inbound JSON message carrying one tile.
// tileSize is the full-detail tile edge; a tile at LOD n carries a
// (tileSize/n)-pixel payload. Returns ErrUnknownMessage for unrecognized
// type fields so the caller can route them to the malformed-message path.
func DecodeTileMessage(data []byte, tileSize int) (*TileMessage, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}

	switch env.Type {
	case "tile":
		// Handled below.
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessage, env.Type)
	}

	if env.LOD < fractal.FineLOD || env.LOD > fractal.MaxLOD {
		return nil, fmt.Errorf("tile (%d,%d) has invalid lod %d", env.X, env.Y, env.LOD)
	}

	edge := tileSize / env.LOD
	img, err := decodePayload(env.Encoding, env.Image, edge)
	if err != nil {
		return nil, fmt.Errorf("failed to decode tile (%d,%d,%d): %w", env.X, env.Y, env.LOD, err)
	}

	return &TileMessage{
		Key:   tiles.Key{X: env.X, Y: env.Y, LOD: env.LOD},
		Image: img,
	}, nil
}

// DecodeFullFrame interprets a binary frame as a raw RGBA buffer of the
// given canvas dimensions.
func DecodeFullFrame(data []byte, width, height int) (*FullFrame, error) {
	img, err := rawToImage(data, width, height)
	if err != nil {
		return nil, fmt.Errorf("failed to decode full frame: %w", err)
	}
	return &FullFrame{Image: img}, nil
}

var (
	zstdDecoder, _ = zstd.NewReader(nil)
	zstdEncoder, _ = zstd.NewWriter(nil)
)

// EncodeTile serializes one tile image as the JSON message a renderer sends
// back, in the given payload encoding.
func EncodeTile(key tiles.Key, img *image.RGBA, encoding string) ([]byte, error) {
	var payload []byte
	switch encoding {
	case EncodingPNG, "":
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("failed to encode png payload: %w", err)
		}
		payload = buf.Bytes()
	case EncodingRaw:
		payload = img.Pix
	case EncodingRawZstd:
		payload = zstdEncoder.EncodeAll(img.Pix, nil)
	default:
		return nil, fmt.Errorf("unsupported encoding %q", encoding)
	}

	return json.Marshal(envelope{
		Type:     "tile",
		X:        key.X,
		Y:        key.Y,
		LOD:      key.LOD,
		Encoding: encoding,
		Image:    base64.StdEncoding.EncodeToString(payload),
	})
}

// decodePayload decodes a base64 tile payload in one of the supported
// encodings into a square RGBA image with the given edge length.
func decodePayload(encoding, payload string, edge int) (*image.RGBA, error) {
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 payload: %w", err)
	}

	switch encoding {
	case EncodingPNG, "":
		img, err := png.Decode(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("invalid png payload: %w", err)
		}
		return toRGBA(img), nil

	case EncodingRaw:
		return rawToImage(raw, edge, edge)

	case EncodingRawZstd:
		plain, err := zstdDecoder.DecodeAll(raw, nil)
		if err != nil {
			return nil, fmt.Errorf("invalid zstd payload: %w", err)
		}
		return rawToImage(plain, edge, edge)

	default:
		return nil, fmt.Errorf("unsupported encoding %q", encoding)
	}
}

// rawToImage wraps a width*height*4 RGBA byte buffer as an image.
func rawToImage(data []byte, width, height int) (*image.RGBA, error) {
	want := width * height * 4
	if len(data) != want {
		return nil, fmt.Errorf("raw buffer is %d bytes, want %d for %dx%d", len(data), want, width, height)
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	copy(img.Pix, data)
	return img, nil
}

// toRGBA converts any decoded image to RGBA without re-encoding.
func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}
