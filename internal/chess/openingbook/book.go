// Package openingbook answers early positions from a Polyglot book before
// any search runs.
package openingbook

import (
	"fmt"
	"io"
	"os"
	"strings"

	chesslib "github.com/corentings/chess/v2"
	"github.com/park285/Cheese-ChessFront/internal/board"
)

// Entry is one book continuation.
type Entry struct {
	Src    board.Cell
	Dst    board.Cell
	Promo  board.Kind
	Weight uint16
}

func (e Entry) Move() board.PendingMove {
	return board.PendingMove{Src: e.Src, Dst: e.Dst, Promo: e.Promo}
}

// Book wraps a loaded Polyglot file.
type Book struct {
	book *chesslib.PolyglotBook
}

func Load(path string) (*Book, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("polyglot book path required")
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open polyglot book %q: %w", path, err)
	}
	defer file.Close()
	b, err := LoadFrom(file)
	if err != nil {
		return nil, fmt.Errorf("load polyglot book %q: %w", path, err)
	}
	return b, nil
}

func LoadFrom(r io.Reader) (*Book, error) {
	pb, err := chesslib.LoadFromReader(r)
	if err != nil {
		return nil, err
	}
	return &Book{book: pb}, nil
}

// Moves lists the book continuations of g's position that are legal there.
func (b *Book) Moves(g *board.Game) ([]Entry, error) {
	hashStr, err := chesslib.NewZobristHasher().HashPosition(g.FEN())
	if err != nil {
		return nil, fmt.Errorf("compute polyglot hash: %w", err)
	}
	found := b.book.FindMoves(chesslib.ZobristHashToUint64(hashStr))
	out := make([]Entry, 0, len(found))
	for _, pe := range found {
		move := chesslib.DecodeMove(pe.Move).ToMove()
		mv, err := board.ParseUCIMove(move.String())
		if err != nil {
			continue
		}
		mv.Dst = normalizeCastle(g, mv.Src, mv.Dst)
		if !g.IsLegalMove(mv) {
			continue
		}
		out = append(out, Entry{Src: mv.Src, Dst: mv.Dst, Promo: mv.Promo, Weight: pe.Weight})
	}
	return out, nil
}

// normalizeCastle turns Polyglot's king-takes-rook castling (e1h1) into the
// king's two-cell step (e1g1).
func normalizeCastle(g *board.Game, src, dst board.Cell) board.Cell {
	if g.At(src).Kind() != board.King || src.File() != 4 || src.Rank() != dst.Rank() {
		return dst
	}
	switch dst.File() {
	case 7:
		return board.CellAt(6, dst.Rank())
	case 0:
		return board.CellAt(2, dst.Rank())
	}
	return dst
}
