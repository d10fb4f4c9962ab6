package board

import (
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

// Side is the player to move. White moves on even counters, Black on odd ones.
type Side uint8

const (
	White Side = iota
	Black
)

func (s Side) String() string {
	if s == Black {
		return "Black"
	}
	return "White"
}

// Opponent returns the other side.
func (s Side) Opponent() Side {
	if s == White {
		return Black
	}
	return White
}

// SideFromCounter derives the side to move from a move counter.
func SideFromCounter(counter int) Side {
	if counter%2 == 0 {
		return White
	}
	return Black
}

// Kind is a piece type without color.
type Kind uint8

const (
	NoKind Kind = iota
	Pawn
	Knight
	Bishop
	Rook
	Queen
	King
)

var kindLetters = [...]string{"", "P", "N", "B", "R", "Q", "K"}

func (k Kind) String() string {
	if int(k) < len(kindLetters) {
		return kindLetters[k]
	}
	return "?"
}

// Piece is the content of one board cell: a kind+color code, or Empty.
type Piece uint8

const (
	Empty Piece = iota
	WhitePawn
	WhiteKnight
	WhiteBishop
	WhiteRook
	WhiteQueen
	WhiteKing
	BlackPawn
	BlackKnight
	BlackBishop
	BlackRook
	BlackQueen
	BlackKing
)

// AllPieces lists every non-empty piece code.
var AllPieces = [...]Piece{
	WhitePawn, WhiteKnight, WhiteBishop, WhiteRook, WhiteQueen, WhiteKing,
	BlackPawn, BlackKnight, BlackBishop, BlackRook, BlackQueen, BlackKing,
}

// NewPiece combines a side and kind. NoKind yields Empty.
func NewPiece(s Side, k Kind) Piece {
	if k == NoKind || k > King {
		return Empty
	}
	if s == Black {
		return Piece(uint8(k) + 6)
	}
	return Piece(k)
}

func (p Piece) Kind() Kind {
	switch {
	case p == Empty || p > BlackKing:
		return NoKind
	case p > WhiteKing:
		return Kind(p - 6)
	default:
		return Kind(p)
	}
}

func (p Piece) Side() Side {
	if p > WhiteKing {
		return Black
	}
	return White
}

func (p Piece) IsEmpty() bool { return p == Empty }

// String renders "wK", "bN" and so on; "--" for an empty cell.
func (p Piece) String() string {
	if p.Kind() == NoKind {
		return "--"
	}
	prefix := "w"
	if p.Side() == Black {
		prefix = "b"
	}
	return prefix + p.Kind().String()
}

func pieceFromLib(p nchess.Piece) Piece {
	if p == nchess.NoPiece {
		return Empty
	}
	side := White
	if p.Color() == nchess.Black {
		side = Black
	}
	return NewPiece(side, kindFromLib(p.Type()))
}

// KindOf maps a rules-library piece type to a Kind.
func KindOf(t nchess.PieceType) Kind { return kindFromLib(t) }

func kindFromLib(t nchess.PieceType) Kind {
	switch t {
	case nchess.Pawn:
		return Pawn
	case nchess.Knight:
		return Knight
	case nchess.Bishop:
		return Bishop
	case nchess.Rook:
		return Rook
	case nchess.Queen:
		return Queen
	case nchess.King:
		return King
	default:
		return NoKind
	}
}

// Cell indexes the 64 board cells, a1 = 0 through h8 = 63.
type Cell int8

const NoCell Cell = -1

// CellAt builds a cell from zero-based file and rank.
func CellAt(file, rank int) Cell {
	if file < 0 || file > 7 || rank < 0 || rank > 7 {
		return NoCell
	}
	return Cell(rank*8 + file)
}

func (c Cell) Valid() bool { return c >= 0 && c < 64 }
func (c Cell) File() int   { return int(c) % 8 }
func (c Cell) Rank() int   { return int(c) / 8 }

func (c Cell) String() string {
	if !c.Valid() {
		return "-"
	}
	return string([]byte{byte('a' + c.File()), byte('1' + c.Rank())})
}

func (c Cell) square() nchess.Square { return nchess.Square(c) }

// ParseCell accepts algebraic cell names such as "e4".
func ParseCell(s string) (Cell, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != 2 {
		return NoCell, fmt.Errorf("%w: %q", ErrInvalidCell, s)
	}
	file := int(s[0]) - 'a'
	rank := int(s[1]) - '1'
	c := CellAt(file, rank)
	if c == NoCell {
		return NoCell, fmt.Errorf("%w: %q", ErrInvalidCell, s)
	}
	return c, nil
}
