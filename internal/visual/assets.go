package visual

import (
	"errors"
	"fmt"

	"github.com/park285/Cheese-ChessFront/internal/board"
)

var (
	ErrAssetTableIncomplete = errors.New("asset table incomplete")
	ErrAssetTableDuplicate  = errors.New("asset table has duplicate asset")
)

// AssetTable maps each piece code to the presentation asset that draws it.
type AssetTable map[board.Piece]string

// DefaultAssets names one mesh per piece inside the board scene file.
func DefaultAssets() AssetTable {
	t := make(AssetTable, len(board.AllPieces))
	for _, p := range board.AllPieces {
		side := "white"
		if p.Side() == board.Black {
			side = "black"
		}
		t[p] = fmt.Sprintf("models/chess_set.glb#%s_%s", side, kindName(p.Kind()))
	}
	return t
}

// Validate checks that every piece has exactly one distinct, non-empty asset.
func (t AssetTable) Validate() error {
	seen := make(map[string]board.Piece, len(t))
	for _, p := range board.AllPieces {
		id, ok := t[p]
		if !ok || id == "" {
			return fmt.Errorf("%w: missing %s", ErrAssetTableIncomplete, p)
		}
		if prev, dup := seen[id]; dup {
			return fmt.Errorf("%w: %q used by %s and %s", ErrAssetTableDuplicate, id, prev, p)
		}
		seen[id] = p
	}
	if _, ok := t[board.Empty]; ok {
		return fmt.Errorf("%w: empty cell must not map to an asset", ErrAssetTableDuplicate)
	}
	return nil
}

func (t AssetTable) Asset(p board.Piece) string { return t[p] }

func kindName(k board.Kind) string {
	switch k {
	case board.Pawn:
		return "pawn"
	case board.Knight:
		return "knight"
	case board.Bishop:
		return "bishop"
	case board.Rook:
		return "rook"
	case board.Queen:
		return "queen"
	case board.King:
		return "king"
	default:
		return "none"
	}
}
