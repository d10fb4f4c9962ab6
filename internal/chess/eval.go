package chess

import (
	nchess "github.com/corentings/chess/v2"
)

// Centipawn material values.
var pieceValue = map[nchess.PieceType]int{
	nchess.Pawn:   100,
	nchess.Knight: 320,
	nchess.Bishop: 330,
	nchess.Rook:   500,
	nchess.Queen:  900,
	nchess.King:   0,
}

// Piece-square tables from White's point of view, a1 first. Black reads
// them through sq^56.
var pst = map[nchess.PieceType][64]int{
	nchess.Pawn: {
		0, 0, 0, 0, 0, 0, 0, 0,
		-6, 6, 6, -14, -14, 6, 6, -6,
		-6, 0, -8, 6, 6, -8, 0, -6,
		0, 2, 10, 22, 22, 10, 2, 0,
		6, 6, 16, 26, 26, 16, 6, 6,
		10, 12, 20, 30, 30, 20, 12, 10,
		50, 50, 50, 50, 50, 50, 50, 50,
		0, 0, 0, 0, 0, 0, 0, 0,
	},
	nchess.Knight: {
		-50, -40, -30, -30, -30, -30, -40, -50,
		-40, -20, 0, 6, 6, 0, -20, -40,
		-30, 6, 12, 16, 16, 12, 6, -30,
		-30, 0, 16, 22, 22, 16, 0, -30,
		-30, 6, 16, 24, 24, 16, 6, -30,
		-30, 0, 12, 16, 16, 12, 0, -30,
		-40, -20, 0, 0, 0, 0, -20, -40,
		-50, -40, -30, -30, -30, -30, -40, -50,
	},
	nchess.Bishop: {
		-20, -10, -10, -10, -10, -10, -10, -20,
		-10, 18, 0, 0, 0, 0, 18, -10,
		-10, 0, 6, 12, 12, 6, 0, -10,
		-10, 6, 6, 12, 12, 6, 6, -10,
		-10, 0, 12, 16, 16, 12, 0, -10,
		-10, 10, 10, 16, 16, 10, 10, -10,
		-10, 6, 0, 0, 0, 0, 6, -10,
		-20, -10, -10, -10, -10, -10, -10, -20,
	},
	nchess.Rook: {
		0, 0, 0, 5, 5, 0, 0, 0,
		-5, 0, 0, 0, 0, 0, 0, -5,
		-5, 0, 0, 0, 0, 0, 0, -5,
		-5, 0, 0, 0, 0, 0, 0, -5,
		-5, 0, 0, 0, 0, 0, 0, -5,
		-5, 0, 0, 0, 0, 0, 0, -5,
		10, 12, 12, 15, 15, 12, 12, 10,
		0, 0, 0, 5, 5, 0, 0, 0,
	},
	nchess.Queen: {
		-20, -10, -10, -5, -5, -10, -10, -20,
		-10, 0, 0, 0, 0, 0, 0, -10,
		-10, 0, 4, 4, 4, 4, 0, -10,
		-5, 0, 4, 4, 4, 4, 0, -5,
		0, 0, 4, 4, 4, 4, 0, -5,
		-10, 4, 4, 4, 4, 4, 0, -10,
		-10, 0, 4, 0, 0, 0, 0, -10,
		-20, -10, -10, -5, -5, -10, -10, -20,
	},
	nchess.King: {
		20, 30, 10, 0, 0, 10, 30, 20,
		10, 10, -15, -30, -30, -15, 10, 10,
		-10, -20, -20, -20, -20, -20, -20, -10,
		-20, -30, -30, -40, -40, -30, -30, -20,
		-30, -40, -40, -50, -50, -40, -40, -30,
		-30, -40, -40, -50, -50, -40, -40, -30,
		-30, -40, -40, -50, -50, -40, -40, -30,
		-30, -40, -40, -50, -50, -40, -40, -30,
	},
}

// evaluate scores pos in centipawns for the side to move.
func evaluate(pos *nchess.Position) int {
	score := 0
	for sq, p := range pos.Board().SquareMap() {
		t := p.Type()
		idx := int(sq)
		v := pieceValue[t]
		if p.Color() == nchess.White {
			score += v + pst[t][idx]
		} else {
			score -= v + pst[t][idx^56]
		}
	}
	if pos.Turn() == nchess.Black {
		return -score
	}
	return score
}

// moveOrder ranks moves for alpha-beta: captures by victim then attacker,
// queen promotions, checks, then everything else.
func moveOrder(pos *nchess.Position, m *nchess.Move) int {
	b := pos.Board()
	score := 0
	if m.HasTag(nchess.Capture) || m.HasTag(nchess.EnPassant) {
		victim := nchess.Pawn
		if p := b.Piece(m.S2()); p != nchess.NoPiece {
			victim = p.Type()
		}
		score += 10*pieceValue[victim] - pieceValue[b.Piece(m.S1()).Type()]/10 + 10000
	}
	if m.Promo() == nchess.Queen {
		score += 9000
	}
	if m.HasTag(nchess.Check) {
		score += 500
	}
	return score
}
