package board

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func cell(t *testing.T, s string) Cell {
	t.Helper()
	c, err := ParseCell(s)
	require.NoError(t, err)
	return c
}

func play(t *testing.T, g *Game, moves ...string) []MoveRecord {
	t.Helper()
	out := make([]MoveRecord, 0, len(moves))
	for _, m := range moves {
		rec, err := g.Apply(cell(t, m[:2]), cell(t, m[2:4]))
		require.NoError(t, err, m)
		out = append(out, rec)
	}
	return out
}

func TestStartingSnapshot(t *testing.T) {
	snap := NewGame().Snapshot()

	require.Equal(t, WhiteRook, snap[cell(t, "a1")])
	require.Equal(t, WhiteKing, snap[cell(t, "e1")])
	require.Equal(t, BlackQueen, snap[cell(t, "d8")])
	require.Equal(t, BlackPawn, snap[cell(t, "h7")])
	require.Equal(t, Empty, snap[cell(t, "e4")])

	count := 0
	for _, p := range snap {
		if !p.IsEmpty() {
			count++
		}
	}
	require.Equal(t, 32, count)
}

func TestCounterParityAlternates(t *testing.T) {
	g := NewGame()
	require.Equal(t, White, g.SideToMove())

	for i, m := range []string{"e2e4", "e7e5", "g1f3", "b8c6"} {
		play(t, g, m)
		require.Equal(t, i+1, g.MoveCounter())
		require.Equal(t, SideFromCounter(i+1), g.SideToMove())
	}
}

func TestIsLegal(t *testing.T) {
	g := NewGame()
	require.True(t, g.IsLegal(cell(t, "e2"), cell(t, "e4")))
	require.True(t, g.IsLegal(cell(t, "g1"), cell(t, "f3")))
	require.False(t, g.IsLegal(cell(t, "e2"), cell(t, "e5")))
	require.False(t, g.IsLegal(cell(t, "e7"), cell(t, "e5")), "black cannot move first")
	require.False(t, g.IsLegal(cell(t, "e2"), cell(t, "e2")))
	require.False(t, g.IsLegal(NoCell, cell(t, "e2")))
}

func TestApplyRejectsIllegal(t *testing.T) {
	g := NewGame()
	before := g.Snapshot()

	_, err := g.Apply(cell(t, "e2"), cell(t, "e5"))
	require.ErrorIs(t, err, ErrIllegalMove)

	_, err = g.Apply(cell(t, "e4"), cell(t, "e5"))
	require.ErrorIs(t, err, ErrNoPiece)

	require.Equal(t, before, g.Snapshot())
	require.Equal(t, 0, g.MoveCounter())
}

func TestApplyCapture(t *testing.T) {
	g := NewGame()
	recs := play(t, g, "e2e4", "d7d5", "e4d5")
	rec := recs[2]

	require.True(t, rec.Flags.Has(FlagCapture))
	require.Equal(t, BlackPawn, rec.Captured)
	require.Equal(t, cell(t, "d5"), rec.CapturedAt)
	require.Equal(t, "exd5", rec.SAN)
	require.Equal(t, WhitePawn, g.At(cell(t, "d5")))
	require.Equal(t, Empty, g.At(cell(t, "e4")))
}

func TestApplyEnPassant(t *testing.T) {
	g := NewGame()
	recs := play(t, g, "e2e4", "a7a6", "e4e5", "d7d5", "e5d6")
	rec := recs[4]

	require.True(t, rec.Flags.Has(FlagEnPassant))
	require.Equal(t, cell(t, "d5"), rec.CapturedAt)
	require.Equal(t, Empty, g.At(cell(t, "d5")))
}

func TestApplyCastling(t *testing.T) {
	g := NewGame()
	recs := play(t, g, "e2e4", "e7e5", "g1f3", "b8c6", "f1c4", "g8f6", "e1g1")
	rec := recs[6]

	require.True(t, rec.Flags.Has(FlagKingCastle))
	require.Equal(t, cell(t, "h1"), rec.RookFrom)
	require.Equal(t, cell(t, "f1"), rec.RookTo)
	require.Equal(t, WhiteRook, g.At(cell(t, "f1")))
	require.Equal(t, WhiteKing, g.At(cell(t, "g1")))
}

func TestApplyPromotesToQueen(t *testing.T) {
	g, err := NewGameFromFEN("8/P6k/8/8/8/8/8/K7 w - - 0 1")
	require.NoError(t, err)

	rec, err := g.Apply(cell(t, "a7"), cell(t, "a8"))
	require.NoError(t, err)
	require.True(t, rec.Flags.Has(FlagPromotion))
	require.Equal(t, WhiteQueen, rec.Promoted)
	require.Equal(t, WhiteQueen, g.At(cell(t, "a8")))
}

func TestApplyMoveUnderpromotion(t *testing.T) {
	const fen = "6br/5Ppk/6pp/8/8/8/8/K7 w - - 0 1"
	g, err := NewGameFromFEN(fen)
	require.NoError(t, err)

	mv, err := ParseUCIMove("f7f8n")
	require.NoError(t, err)
	require.Equal(t, Knight, mv.Promo)
	require.True(t, g.IsLegalMove(mv))

	rec, err := g.ApplyMove(mv)
	require.NoError(t, err)
	require.Equal(t, WhiteKnight, rec.Promoted)
	require.Equal(t, WhiteKnight, g.At(cell(t, "f8")))
	require.Equal(t, "f7f8n", rec.UCI)
	require.True(t, rec.Flags.Has(FlagCheckmate))

	// the same squares without a piece still promote to a queen
	g, err = NewGameFromFEN(fen)
	require.NoError(t, err)
	rec, err = g.Apply(cell(t, "f7"), cell(t, "f8"))
	require.NoError(t, err)
	require.Equal(t, WhiteQueen, rec.Promoted)
	require.False(t, rec.Flags.Has(FlagCheckmate))
}

func TestApplyMoveRejectsPromotionOnPlainMove(t *testing.T) {
	g := NewGame()
	mv := PendingMove{Src: cell(t, "e2"), Dst: cell(t, "e4"), Promo: Queen}
	require.False(t, g.IsLegalMove(mv))
	_, err := g.ApplyMove(mv)
	require.ErrorIs(t, err, ErrIllegalMove)
}

func TestParseUCIMove(t *testing.T) {
	mv, err := ParseUCIMove("e2e4")
	require.NoError(t, err)
	require.Equal(t, PendingMove{Src: cell(t, "e2"), Dst: cell(t, "e4")}, mv)
	require.Equal(t, "e2e4", mv.String())

	mv, err = ParseUCIMove("a2a1R")
	require.NoError(t, err)
	require.Equal(t, Rook, mv.Promo)
	require.Equal(t, "a2a1r", mv.String())

	for _, bad := range []string{"", "e2", "e2e4k", "e2e4qq", "z2e4"} {
		_, err := ParseUCIMove(bad)
		require.Error(t, err, bad)
	}
	_, err = ParseUCIMove("e7e8x")
	require.ErrorIs(t, err, ErrInvalidMove)
}

func TestCheckmateFlag(t *testing.T) {
	g := NewGame()
	recs := play(t, g, "f2f3", "e7e5", "g2g4", "d8h4")
	last := recs[3]

	require.True(t, last.Flags.Has(FlagCheckmate))
	require.True(t, last.Flags.Over())
	require.Contains(t, g.Describe(last), "4... Qh4")
	require.Len(t, g.LegalMoves(), 0)
}

func TestResetRestoresStart(t *testing.T) {
	g := NewGame()
	g.SetSecsPerMove(1.5)
	play(t, g, "e2e4", "e7e5")

	g.Reset()
	require.Equal(t, NewGame().Snapshot(), g.Snapshot())
	require.Equal(t, 0, g.MoveCounter())
	require.Empty(t, g.History())
	require.InDelta(t, 1.5, g.SecsPerMove(), 1e-9)
}

func TestDescribeNumbersMoves(t *testing.T) {
	g := NewGame()
	recs := play(t, g, "e2e4", "c7c5")
	require.Equal(t, "1. e4", g.Describe(recs[0]))
	require.Equal(t, "1... c5", g.Describe(recs[1]))

	code, title := g.Opening()
	require.NotEmpty(t, code)
	require.Contains(t, title, "Sicilian")
}

func TestCloneIsIndependent(t *testing.T) {
	g := NewGame()
	c := g.Clone()
	play(t, c, "e2e4")
	require.Equal(t, 0, g.MoveCounter())
	require.Equal(t, WhitePawn, g.At(cell(t, "e2")))
}

func TestPieceCodes(t *testing.T) {
	for _, p := range AllPieces {
		require.Equal(t, p, NewPiece(p.Side(), p.Kind()), p.String())
	}
	require.Equal(t, "bN", BlackKnight.String())
	require.Equal(t, "--", Empty.String())
	require.Equal(t, NoKind, Empty.Kind())

	_, err := ParseCell("i9")
	require.ErrorIs(t, err, ErrInvalidCell)
	require.Equal(t, "h8", Cell(63).String())
}
