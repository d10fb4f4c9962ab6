package board

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	nchess "github.com/corentings/chess/v2"
	"github.com/corentings/chess/v2/opening"
)

// Score sentinels shared with the searchers. A move that delivers mate scores
// KingValue; anything above MateThreshold announces a forced mate.
const (
	KingValue     = 30000
	MateThreshold = KingValue / 2
)

const DefaultSecsPerMove = 2.0

var (
	ErrInvalidCell = errors.New("invalid cell")
	ErrNoPiece     = errors.New("no piece on source cell")
	ErrIllegalMove = errors.New("illegal move")
	ErrInvalidMove = errors.New("malformed move")
)

// Flag describes what a committed move did to the position.
type Flag uint16

const (
	FlagCapture Flag = 1 << iota
	FlagCheck
	FlagCheckmate
	FlagStalemate
	FlagDraw
	FlagKingCastle
	FlagQueenCastle
	FlagEnPassant
	FlagPromotion
)

func (f Flag) Has(o Flag) bool { return f&o != 0 }

// Over reports whether the move ended the game.
func (f Flag) Over() bool { return f&(FlagCheckmate|FlagStalemate|FlagDraw) != 0 }

// PendingMove is a search result waiting to be committed. Promo is NoKind
// for ordinary moves; a pawn reaching the last rank without one promotes to
// a queen.
type PendingMove struct {
	Src   Cell
	Dst   Cell
	Promo Kind
	Score int
}

func (m PendingMove) String() string {
	s := m.Src.String() + m.Dst.String()
	if m.Promo != NoKind {
		s += strings.ToLower(m.Promo.String())
	}
	return s
}

// ParseUCIMove reads long algebraic moves such as "e2e4" or "f7f8n".
func ParseUCIMove(s string) (PendingMove, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != 4 && len(s) != 5 {
		return PendingMove{}, fmt.Errorf("%w: %q", ErrInvalidMove, s)
	}
	src, err := ParseCell(s[:2])
	if err != nil {
		return PendingMove{}, err
	}
	dst, err := ParseCell(s[2:4])
	if err != nil {
		return PendingMove{}, err
	}
	m := PendingMove{Src: src, Dst: dst}
	if len(s) == 5 {
		switch s[4] {
		case 'n':
			m.Promo = Knight
		case 'b':
			m.Promo = Bishop
		case 'r':
			m.Promo = Rook
		case 'q':
			m.Promo = Queen
		default:
			return PendingMove{}, fmt.Errorf("%w: promotion %q", ErrInvalidMove, s)
		}
	}
	return m, nil
}

// MoveRecord is what Apply reports back about a committed move.
type MoveRecord struct {
	Ply      int
	Src      Cell
	Dst      Cell
	Mover    Piece
	Captured Piece
	// CapturedAt differs from Dst only for en passant.
	CapturedAt Cell
	Promoted   Piece
	RookFrom   Cell
	RookTo     Cell
	SAN        string
	UCI        string
	Flags      Flag
	Method     string
}

// Game is the authoritative game session: board, move counter and the
// per-move time budget handed to searchers. It is not safe for concurrent use.
type Game struct {
	game        *nchess.Game
	counter     int
	secsPerMove float64
	history     []MoveRecord
}

func NewGame() *Game {
	return &Game{
		game:        nchess.NewGame(),
		secsPerMove: DefaultSecsPerMove,
	}
}

// NewGameFromFEN starts from an arbitrary position. The counter starts at the
// parity matching the side to move.
func NewGameFromFEN(fen string) (*Game, error) {
	opt, err := nchess.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("parse fen: %w", err)
	}
	g := &Game{game: nchess.NewGame(opt), secsPerMove: DefaultSecsPerMove}
	if g.game.Position().Turn() == nchess.Black {
		g.counter = 1
	}
	return g, nil
}

// Reset restores the starting position and zeroes the counter. The time
// budget survives a reset.
func (g *Game) Reset() {
	g.game = nchess.NewGame()
	g.counter = 0
	g.history = nil
}

func (g *Game) MoveCounter() int     { return g.counter }
func (g *Game) SideToMove() Side     { return SideFromCounter(g.counter) }
func (g *Game) SecsPerMove() float64 { return g.secsPerMove }

func (g *Game) SetSecsPerMove(secs float64) { g.secsPerMove = secs }

func (g *Game) FEN() string { return g.game.FEN() }

// Position exposes the library position for searchers. Positions are
// immutable; Update returns a new one.
func (g *Game) Position() *nchess.Position { return g.game.Position() }

// Snapshot returns the 64 cells, indexed by Cell.
func (g *Game) Snapshot() [64]Piece {
	var out [64]Piece
	b := g.game.Position().Board()
	for sq, p := range b.SquareMap() {
		if sq >= 0 && int(sq) < len(out) {
			out[sq] = pieceFromLib(p)
		}
	}
	return out
}

func (g *Game) At(c Cell) Piece {
	if !c.Valid() {
		return Empty
	}
	return pieceFromLib(g.game.Position().Board().Piece(c.square()))
}

// IsLegal reports whether src→dst is a legal move for the side to move.
// Pawn moves onto the last rank are treated as queen promotions.
func (g *Game) IsLegal(src, dst Cell) bool {
	return g.IsLegalMove(PendingMove{Src: src, Dst: dst})
}

// IsLegalMove also checks the promotion piece when m names one.
func (g *Game) IsLegalMove(m PendingMove) bool {
	_, ok := g.findMove(m.Src, m.Dst, m.Promo)
	return ok
}

// LegalMoves lists the legal moves of the current position in UCI notation.
func (g *Game) LegalMoves() []string {
	moves := g.game.ValidMoves()
	out := make([]string, 0, len(moves))
	for i := range moves {
		out = append(out, moves[i].String())
	}
	return out
}

// Apply commits src→dst, promoting to a queen where a pawn reaches the last
// rank.
func (g *Game) Apply(src, dst Cell) (MoveRecord, error) {
	return g.ApplyMove(PendingMove{Src: src, Dst: dst})
}

// ApplyMove commits m, increments the counter and reports the effects.
func (g *Game) ApplyMove(m PendingMove) (MoveRecord, error) {
	src, dst := m.Src, m.Dst
	if !src.Valid() || !dst.Valid() {
		return MoveRecord{}, fmt.Errorf("%w: %d->%d", ErrInvalidCell, src, dst)
	}
	pos := g.game.Position()
	mover := pieceFromLib(pos.Board().Piece(src.square()))
	if mover == Empty {
		return MoveRecord{}, fmt.Errorf("%w: %s", ErrNoPiece, src)
	}
	mv, ok := g.findMove(src, dst, m.Promo)
	if !ok {
		return MoveRecord{}, fmt.Errorf("%w: %s", ErrIllegalMove, m)
	}

	rec := MoveRecord{
		Ply:        g.counter,
		Src:        src,
		Dst:        dst,
		Mover:      mover,
		CapturedAt: NoCell,
		RookFrom:   NoCell,
		RookTo:     NoCell,
		SAN:        nchess.AlgebraicNotation{}.Encode(pos, &mv),
		UCI:        mv.String(),
	}
	if target := pieceFromLib(pos.Board().Piece(dst.square())); target != Empty {
		rec.Captured = target
		rec.CapturedAt = dst
		rec.Flags |= FlagCapture
	}
	if mv.HasTag(nchess.EnPassant) {
		rec.CapturedAt = CellAt(dst.File(), src.Rank())
		rec.Captured = NewPiece(mover.Side().Opponent(), Pawn)
		rec.Flags |= FlagEnPassant | FlagCapture
	}
	if mv.HasTag(nchess.KingSideCastle) {
		rec.RookFrom = CellAt(7, src.Rank())
		rec.RookTo = CellAt(5, src.Rank())
		rec.Flags |= FlagKingCastle
	}
	if mv.HasTag(nchess.QueenSideCastle) {
		rec.RookFrom = CellAt(0, src.Rank())
		rec.RookTo = CellAt(3, src.Rank())
		rec.Flags |= FlagQueenCastle
	}
	if promo := kindFromLib(mv.Promo()); promo != NoKind {
		rec.Promoted = NewPiece(mover.Side(), promo)
		rec.Flags |= FlagPromotion
	}
	if mv.HasTag(nchess.Check) {
		rec.Flags |= FlagCheck
	}

	if err := g.game.Move(&mv, nil); err != nil {
		return MoveRecord{}, fmt.Errorf("%w: %s: %v", ErrIllegalMove, rec.UCI, err)
	}
	g.counter++

	if g.game.Outcome() != nchess.NoOutcome {
		method := g.game.Method()
		rec.Method = method.String()
		switch method {
		case nchess.Checkmate:
			rec.Flags |= FlagCheckmate
		case nchess.Stalemate:
			rec.Flags |= FlagStalemate
		default:
			rec.Flags |= FlagDraw
		}
	}
	g.history = append(g.history, rec)
	return rec, nil
}

// History returns the committed moves since the last reset.
func (g *Game) History() []MoveRecord {
	return append([]MoveRecord(nil), g.history...)
}

// Describe renders a committed move as "12. Nf3" or "12... Nc6".
func (g *Game) Describe(rec MoveRecord) string {
	num := rec.Ply/2 + 1
	if SideFromCounter(rec.Ply) == Black {
		return fmt.Sprintf("%d... %s", num, rec.SAN)
	}
	return fmt.Sprintf("%d. %s", num, rec.SAN)
}

var (
	ecoOnce sync.Once
	ecoBook *opening.BookECO
)

// Opening names the ECO opening reached by the current move list, if any.
func (g *Game) Opening() (code, title string) {
	ecoOnce.Do(func() { ecoBook = opening.NewBookECO() })
	if ecoBook == nil {
		return "", ""
	}
	if eco := ecoBook.Find(g.game.Moves()); eco != nil {
		return eco.Code(), eco.Title()
	}
	return "", ""
}

// Clone copies the session so a searcher can explore without touching it.
func (g *Game) Clone() *Game {
	return &Game{
		game:        g.game.Clone(),
		counter:     g.counter,
		secsPerMove: g.secsPerMove,
		history:     append([]MoveRecord(nil), g.history...),
	}
}

// findMove matches src→dst among the legal moves. A promo of NoKind picks
// the queen promotion when the move promotes; any other promo must match.
func (g *Game) findMove(src, dst Cell, promo Kind) (nchess.Move, bool) {
	if !src.Valid() || !dst.Valid() || src == dst {
		return nchess.Move{}, false
	}
	var fallback nchess.Move
	found := false
	for _, mv := range g.game.ValidMoves() {
		if mv.S1() != src.square() || mv.S2() != dst.square() {
			continue
		}
		if promo != NoKind {
			if kindFromLib(mv.Promo()) == promo {
				return mv, true
			}
			continue
		}
		switch mv.Promo() {
		case nchess.NoPieceType, nchess.Queen:
			return mv, true
		default:
			if !found {
				fallback = mv
				found = true
			}
		}
	}
	return fallback, found
}
