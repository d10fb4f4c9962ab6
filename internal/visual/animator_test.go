package visual

import (
	"testing"

	"github.com/park285/Cheese-ChessFront/internal/board"
	"github.com/stretchr/testify/require"
)

func TestAnimatorConvergesWithoutExceedingMaxSpeed(t *testing.T) {
	a := DefaultAnimator()
	for _, tc := range []struct {
		name     string
		from, to string
		dt       float64
	}{
		{"one cell", "e2", "e3", 1.0 / 60},
		{"long diagonal", "a1", "h8", 1.0 / 60},
		{"knight hop", "g1", "f3", 1.0 / 30},
		{"coarse ticks", "a1", "a8", 0.25},
	} {
		t.Run(tc.name, func(t *testing.T) {
			p := &PieceVisual{Cell: mustCell(t, tc.from)}
			p.Pos = CellCenter(p.Cell)
			p.Cell = mustCell(t, tc.to)

			rested := false
			for i := 0; i < 20000; i++ {
				moving := a.Step(p, tc.dt)
				require.LessOrEqual(t, p.Speed, a.MaxSpeed)
				require.GreaterOrEqual(t, p.Speed, 0.0)
				if !moving {
					rested = true
					break
				}
			}
			require.True(t, rested, "piece never came to rest")
			require.True(t, p.Pos.Near(CellCenter(p.Cell), a.Epsilon))
			require.Zero(t, p.Speed)
			require.Zero(t, p.Lift)
		})
	}
}

func TestAnimatorLiftFollowsSpeed(t *testing.T) {
	a := DefaultAnimator()
	p := &PieceVisual{Cell: mustCell(t, "h8")}
	p.Pos = CellCenter(mustCell(t, "a1"))

	for i := 0; i < 30; i++ {
		require.True(t, a.Step(p, 1.0/60))
	}
	require.Greater(t, p.Speed, 0.0)
	require.InDelta(t, p.Lift*p.Lift, p.Speed, 1e-9)
}

func TestAnimatorAtRestSnaps(t *testing.T) {
	a := DefaultAnimator()
	c := mustCell(t, "d4")
	p := &PieceVisual{Cell: c, Pos: CellCenter(c).Add(Vec3{X: 0.01})}

	require.False(t, a.Step(p, 1.0/60))
	require.Equal(t, CellCenter(c), p.Pos)
}

func TestSetStepReportsMovement(t *testing.T) {
	s := NewSet(nil)
	s.Populate(board.NewGame().Snapshot())
	require.False(t, s.Step(DefaultAnimator(), 1.0/60))

	g := board.NewGame()
	rec, err := g.Apply(mustCell(t, "e2"), mustCell(t, "e4"))
	require.NoError(t, err)
	s.Sync(rec)
	require.True(t, s.Step(DefaultAnimator(), 1.0/60))
}
