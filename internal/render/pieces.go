package render

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"sync"

	"github.com/park285/Cheese-ChessFront/internal/board"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

//go:embed assets/pieces/*.svg
var pieceFiles embed.FS

// ErrPieceAsset is returned when a piece has no usable SVG.
var ErrPieceAsset = errors.New("render: piece asset")

type pieceKey struct {
	piece board.Piece
	size  int
}

type pieceCache struct {
	mu     sync.RWMutex
	images map[pieceKey]image.Image
}

func newPieceCache() *pieceCache {
	return &pieceCache{images: make(map[pieceKey]image.Image)}
}

// ValidateAssets parses every piece SVG once so a broken table fails at
// startup rather than on the first snapshot.
func ValidateAssets() error {
	for _, p := range board.AllPieces {
		if _, err := loadIcon(p); err != nil {
			return err
		}
	}
	return nil
}

func (c *pieceCache) get(p board.Piece, size int) (image.Image, error) {
	key := pieceKey{piece: p, size: size}
	c.mu.RLock()
	img, ok := c.images[key]
	c.mu.RUnlock()
	if ok {
		return img, nil
	}

	icon, err := loadIcon(p)
	if err != nil {
		return nil, err
	}
	icon.SetTarget(0, 0, float64(size), float64(size))

	rgba := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(rgba, rgba.Bounds(), image.Transparent, image.Point{}, draw.Src)
	scanner := rasterx.NewScannerGV(size, size, rgba, rgba.Bounds())
	icon.Draw(rasterx.NewDasher(size, size, scanner), 1.0)

	c.mu.Lock()
	c.images[key] = rgba
	c.mu.Unlock()
	return rgba, nil
}

func loadIcon(p board.Piece) (*oksvg.SvgIcon, error) {
	if p.IsEmpty() {
		return nil, fmt.Errorf("%w: empty cell", ErrPieceAsset)
	}
	name := assetName(p)
	data, err := pieceFiles.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrPieceAsset, name, err)
	}
	icon, err := oksvg.ReadIconStream(bytes.NewReader(sanitizeSVG(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrPieceAsset, name, err)
	}
	if icon.ViewBox.W <= 0 || icon.ViewBox.H <= 0 {
		return nil, fmt.Errorf("%w: %s has no view box", ErrPieceAsset, name)
	}
	return icon, nil
}

// assetName maps a piece to its embedded file, "assets/pieces/wK.svg".
func assetName(p board.Piece) string {
	return "assets/pieces/" + p.String() + ".svg"
}

// sanitizeSVG normalises style attributes oksvg refuses to parse.
func sanitizeSVG(svg []byte) []byte {
	out := bytes.ReplaceAll(svg, []byte("fill:000000"), []byte("fill:#000000"))
	for _, attr := range []string{"fill", "stroke", "stop-color"} {
		out = bytes.ReplaceAll(out, []byte(attr+": #"), []byte(attr+":#"))
	}
	return out
}
