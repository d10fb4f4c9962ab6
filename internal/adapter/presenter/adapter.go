package presenter

import (
	"fmt"

	"github.com/park285/Cheese-ChessFront/internal/board"
	"github.com/park285/Cheese-ChessFront/internal/orchestrator"
	"github.com/park285/Cheese-ChessFront/internal/visual"
	"github.com/park285/Cheese-ChessFront/pkg/framedto"
)

func ToSpawn(gameID string, v visual.PieceVisual) framedto.Spawn {
	pos := v.Rendered()
	return framedto.Spawn{
		Type:   framedto.TypeSpawn,
		GameID: gameID,
		Piece: framedto.Piece{
			ID:    v.ID,
			Kind:  v.Piece.String(),
			Asset: v.Asset,
			Cell:  v.Cell.String(),
			X:     pos.X,
			Y:     pos.Y,
			Z:     pos.Z,
		},
	}
}

func ToDespawn(gameID string, v visual.PieceVisual) framedto.Despawn {
	return framedto.Despawn{Type: framedto.TypeDespawn, GameID: gameID, ID: v.ID}
}

func ToFrame(gameID string, tick uint64, pieces []visual.PieceVisual) framedto.Frame {
	out := make([]framedto.FramePiece, len(pieces))
	for i, v := range pieces {
		pos := v.Rendered()
		out[i] = framedto.FramePiece{ID: v.ID, X: pos.X, Y: pos.Y, Z: pos.Z}
	}
	return framedto.Frame{Type: framedto.TypeFrame, GameID: gameID, Tick: tick, Pieces: out}
}

func ToStatus(gameID string, state orchestrator.State, st orchestrator.Status) framedto.Status {
	return framedto.Status{
		Type:   framedto.TypeStatus,
		GameID: gameID,
		State:  state.String(),
		UI:     st.UI,
		Turn:   st.Turn,
		Time:   st.Time,
		Next:   st.Next,
	}
}

// ToInput converts an inbound bridge event into a queue entry.
func ToInput(in framedto.Input) (orchestrator.Input, error) {
	kind, err := orchestrator.ParseInputKind(in.Kind)
	if err != nil {
		return orchestrator.Input{}, err
	}
	switch kind {
	case orchestrator.InputClick:
		c, err := board.ParseCell(in.Cell)
		if err != nil {
			return orchestrator.Input{}, err
		}
		return orchestrator.Click(c), nil
	case orchestrator.InputToggleSide:
		switch in.Side {
		case 1:
			return orchestrator.ToggleSide(board.White), nil
		case 2:
			return orchestrator.ToggleSide(board.Black), nil
		}
		return orchestrator.Input{}, fmt.Errorf("toggle_side: side must be 1 or 2, got %d", in.Side)
	case orchestrator.InputSetTime:
		return orchestrator.SetTime(in.Seconds), nil
	default:
		return orchestrator.Input{Kind: kind}, nil
	}
}
