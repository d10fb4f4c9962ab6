// Package render draws a board snapshot as a PNG for the presentation
// bridge's /snapshot push.
package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"strings"

	"github.com/park285/Cheese-ChessFront/internal/board"
	"github.com/srwiley/rasterx"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Highlight marks the last committed move.
type Highlight struct {
	From board.Cell
	To   board.Cell
}

type Options struct {
	Highlight *Highlight
	// Caption is drawn above the board; multi-line text keeps its first line.
	Caption string
	// Flip draws the board from Black's side.
	Flip bool
}

const (
	DefaultSquareSize = 64

	margin       = 24
	captionBand  = 36
	panelPadding = 12
)

var (
	lightSquare    = color.RGBA{233, 207, 163, 255}
	darkSquare     = color.RGBA{187, 136, 96, 255}
	moveFill       = color.NRGBA{R: 255, G: 228, B: 120, A: 140}
	moveArrow      = color.NRGBA{R: 148, G: 207, B: 255, A: 170}
	background     = color.RGBA{24, 26, 38, 255}
	captionPanel   = color.NRGBA{R: 40, G: 44, B: 64, A: 255}
	captionText    = color.NRGBA{R: 236, G: 239, B: 255, A: 255}
	coordinateText = color.NRGBA{R: 8, G: 214, B: 120, A: 255}
)

// Renderer is safe for concurrent use; rasterised pieces are cached per size.
type Renderer struct {
	squareSize int
	face       font.Face
	pieces     *pieceCache
}

func NewRenderer(squareSize int) (*Renderer, error) {
	if squareSize <= 0 {
		squareSize = DefaultSquareSize
	}
	if err := ValidateAssets(); err != nil {
		return nil, err
	}
	return &Renderer{squareSize: squareSize, face: basicfont.Face7x13, pieces: newPieceCache()}, nil
}

func (r *Renderer) RenderPNG(ctx context.Context, cells [64]board.Piece, opts Options) ([]byte, error) {
	if r == nil {
		return nil, errors.New("render: nil renderer")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	size := r.squareSize * 8
	width := size + margin*2
	height := size + captionBand + margin*2
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(background), image.Point{}, draw.Src)

	origin := image.Pt(margin, margin+captionBand)
	r.drawCaption(img, image.Rect(margin, margin/2, margin+size, margin/2+captionBand-6), opts.Caption)
	r.drawSquares(img, origin, opts.Flip)
	if h := opts.Highlight; h != nil && h.From.Valid() && h.To.Valid() {
		fill := image.NewUniform(moveFill)
		draw.Draw(img, r.cellRect(h.From, origin, opts.Flip), fill, image.Point{}, draw.Over)
		draw.Draw(img, r.cellRect(h.To, origin, opts.Flip), fill, image.Point{}, draw.Over)
	}
	for c := board.Cell(0); c < 64; c++ {
		p := cells[c]
		if p.IsEmpty() {
			continue
		}
		pimg, err := r.pieces.get(p, r.squareSize)
		if err != nil {
			return nil, err
		}
		draw.Draw(img, r.cellRect(c, origin, opts.Flip), pimg, image.Point{}, draw.Over)
	}
	if h := opts.Highlight; h != nil && h.From.Valid() && h.To.Valid() {
		r.drawArrow(img, r.cellRect(h.From, origin, opts.Flip), r.cellRect(h.To, origin, opts.Flip))
	}
	r.drawCoordinates(img, origin, opts.Flip)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) cellRect(c board.Cell, origin image.Point, flip bool) image.Rectangle {
	col, row := c.File(), 7-c.Rank()
	if flip {
		col, row = 7-col, c.Rank()
	}
	x := origin.X + col*r.squareSize
	y := origin.Y + row*r.squareSize
	return image.Rect(x, y, x+r.squareSize, y+r.squareSize)
}

func (r *Renderer) drawSquares(img *image.RGBA, origin image.Point, flip bool) {
	for c := board.Cell(0); c < 64; c++ {
		clr := lightSquare
		if (c.File()+c.Rank())%2 == 0 {
			clr = darkSquare
		}
		draw.Draw(img, r.cellRect(c, origin, flip), image.NewUniform(clr), image.Point{}, draw.Src)
	}
}

func (r *Renderer) drawCaption(img *image.RGBA, rect image.Rectangle, caption string) {
	line, _, _ := strings.Cut(strings.TrimSpace(caption), "\n")
	if line == "" {
		return
	}
	draw.Draw(img, rect, image.NewUniform(captionPanel), image.Point{}, draw.Over)
	line = truncate(r.face, line, rect.Dx()-panelPadding*2)
	d := &font.Drawer{Dst: img, Src: image.NewUniform(captionText), Face: r.face}
	m := r.face.Metrics()
	baseline := rect.Min.Y + (rect.Dy()+m.Ascent.Ceil()-m.Descent.Ceil())/2
	d.Dot = fixed.P(rect.Min.X+panelPadding, baseline)
	d.DrawString(line)
}

func (r *Renderer) drawCoordinates(img *image.RGBA, origin image.Point, flip bool) {
	d := &font.Drawer{Dst: img, Src: image.NewUniform(coordinateText), Face: r.face}
	ascent := r.face.Metrics().Ascent.Ceil()
	bottom := origin.Y + 8*r.squareSize
	for i := 0; i < 8; i++ {
		file, rank := i, 7-i
		if flip {
			file, rank = 7-i, i
		}
		center := origin.X + i*r.squareSize + r.squareSize/2
		centered(d, string(rune('a'+file)), center, bottom+ascent+2)
		middle := origin.Y + i*r.squareSize + r.squareSize/2
		centered(d, string(rune('1'+rank)), origin.X-margin/2, middle+ascent/2)
	}
}

// drawArrow fills a shaft and head polygon from the centre of one cell to
// the other.
func (r *Renderer) drawArrow(img *image.RGBA, from, to image.Rectangle) {
	sx, sy := center(from)
	ex, ey := center(to)
	dx, dy := ex-sx, ey-sy
	length := math.Hypot(dx, dy)
	if length == 0 {
		return
	}
	ux, uy := dx/length, dy/length
	px, py := -uy, ux

	sq := float64(r.squareSize)
	half := sq * 0.09
	head := sq * 0.22
	base := math.Max(length-sq*0.4, length*0.6)
	bx, by := sx+ux*base, sy+uy*base

	b := img.Bounds()
	f := rasterx.NewFiller(b.Dx(), b.Dy(), rasterx.NewScannerGV(b.Dx(), b.Dy(), img, b))
	f.SetColor(moveArrow)
	f.Start(pt(sx-px*half, sy-py*half))
	f.Line(pt(bx-px*half, by-py*half))
	f.Line(pt(bx-px*head, by-py*head))
	f.Line(pt(ex, ey))
	f.Line(pt(bx+px*head, by+py*head))
	f.Line(pt(bx+px*half, by+py*half))
	f.Line(pt(sx+px*half, sy+py*half))
	f.Stop(true)
	f.Draw()
}

func center(rect image.Rectangle) (float64, float64) {
	return float64(rect.Min.X+rect.Max.X) / 2, float64(rect.Min.Y+rect.Max.Y) / 2
}

func pt(x, y float64) fixed.Point26_6 {
	return fixed.Point26_6{X: fixed.Int26_6(x * 64), Y: fixed.Int26_6(y * 64)}
}

func centered(d *font.Drawer, text string, x, baseline int) {
	w := d.MeasureString(text).Round()
	d.Dot = fixed.P(x-w/2, baseline)
	d.DrawString(text)
}

func truncate(face font.Face, text string, maxWidth int) string {
	d := font.Drawer{Face: face}
	if maxWidth <= 0 || d.MeasureString(text).Round() <= maxWidth {
		return text
	}
	runes := []rune(text)
	for len(runes) > 0 {
		runes = runes[:len(runes)-1]
		if s := string(runes) + "..."; d.MeasureString(s).Round() <= maxWidth {
			return s
		}
	}
	return ""
}
