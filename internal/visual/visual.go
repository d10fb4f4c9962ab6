// Package visual keeps the presentation-side record of every piece and moves
// it smoothly toward its logical cell.
package visual

import (
	"sort"

	"github.com/park285/Cheese-ChessFront/internal/board"
)

// PieceVisual is one drawn piece. Cell is where the rules say it stands; Pos
// is where it is drawn right now, and Lift its height above the board.
type PieceVisual struct {
	ID    int
	Piece board.Piece
	Asset string
	Cell  board.Cell
	Pos   Vec3
	Lift  float64
	Speed float64
}

// Rendered is the drawn position including the vertical offset.
func (p PieceVisual) Rendered() Vec3 {
	return Vec3{X: p.Pos.X, Y: p.Lift, Z: p.Pos.Z}
}

// ChangeKind tells the presentation what to do with a visual.
type ChangeKind uint8

const (
	Spawned ChangeKind = iota + 1
	Despawned
	Retyped
)

func (k ChangeKind) String() string {
	switch k {
	case Spawned:
		return "spawn"
	case Despawned:
		return "despawn"
	case Retyped:
		return "retype"
	default:
		return "unknown"
	}
}

// Change is a creation/destruction request queued for the presentation.
type Change struct {
	Kind   ChangeKind
	Visual PieceVisual
}

// Set holds the visuals of the current game. Only the interactive loop
// touches it.
type Set struct {
	assets  AssetTable
	nextID  int
	pieces  map[int]*PieceVisual
	pending []Change
}

func NewSet(assets AssetTable) *Set {
	if assets == nil {
		assets = DefaultAssets()
	}
	return &Set{assets: assets, pieces: make(map[int]*PieceVisual)}
}

// Populate drops every visual and creates one per occupied cell, resting on
// its cell.
func (s *Set) Populate(cells [64]board.Piece) {
	s.Clear()
	for i, p := range cells {
		if p.IsEmpty() {
			continue
		}
		c := board.Cell(i)
		s.nextID++
		v := &PieceVisual{
			ID:    s.nextID,
			Piece: p,
			Asset: s.assets.Asset(p),
			Cell:  c,
			Pos:   CellCenter(c),
		}
		s.pieces[v.ID] = v
		s.pending = append(s.pending, Change{Kind: Spawned, Visual: *v})
	}
}

// Clear despawns every visual.
func (s *Set) Clear() {
	for _, id := range s.ids() {
		s.remove(id)
	}
}

// Sync applies a committed move: the visual on the destination goes away,
// the one on the source is retargeted and keeps its drawn position so the
// animator can carry it over. Castling, en passant and promotion side
// effects are applied the same way.
func (s *Set) Sync(rec board.MoveRecord) {
	if v := s.findAt(rec.Dst); v != nil {
		s.remove(v.ID)
	}
	if rec.CapturedAt.Valid() && rec.CapturedAt != rec.Dst {
		if v := s.findAt(rec.CapturedAt); v != nil {
			s.remove(v.ID)
		}
	}
	if v := s.findAt(rec.Src); v != nil {
		v.Cell = rec.Dst
		if rec.Flags.Has(board.FlagPromotion) && !rec.Promoted.IsEmpty() {
			v.Piece = rec.Promoted
			v.Asset = s.assets.Asset(rec.Promoted)
			s.pending = append(s.pending, Change{Kind: Retyped, Visual: *v})
		}
	}
	if rec.RookFrom.Valid() && rec.RookTo.Valid() {
		if v := s.findAt(rec.RookFrom); v != nil {
			v.Cell = rec.RookTo
		}
	}
}

// At returns a copy of the visual whose logical cell is c.
func (s *Set) At(c board.Cell) (PieceVisual, bool) {
	if v := s.findAt(c); v != nil {
		return *v, true
	}
	return PieceVisual{}, false
}

func (s *Set) Len() int { return len(s.pieces) }

// Pieces returns copies ordered by id.
func (s *Set) Pieces() []PieceVisual {
	out := make([]PieceVisual, 0, len(s.pieces))
	for _, id := range s.ids() {
		out = append(out, *s.pieces[id])
	}
	return out
}

// DrainChanges hands the queued spawn/despawn requests to the caller.
func (s *Set) DrainChanges() []Change {
	out := s.pending
	s.pending = nil
	return out
}

// Step advances every visual by dt seconds and reports whether any moved.
func (s *Set) Step(a Animator, dt float64) bool {
	moved := false
	for _, id := range s.ids() {
		if a.Step(s.pieces[id], dt) {
			moved = true
		}
	}
	return moved
}

func (s *Set) findAt(c board.Cell) *PieceVisual {
	if !c.Valid() {
		return nil
	}
	for _, id := range s.ids() {
		if v := s.pieces[id]; v.Cell == c {
			return v
		}
	}
	return nil
}

func (s *Set) remove(id int) {
	v, ok := s.pieces[id]
	if !ok {
		return
	}
	delete(s.pieces, id)
	s.pending = append(s.pending, Change{Kind: Despawned, Visual: *v})
}

func (s *Set) ids() []int {
	ids := make([]int, 0, len(s.pieces))
	for id := range s.pieces {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
