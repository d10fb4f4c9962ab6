package visual

import (
	"math"

	"github.com/park285/Cheese-ChessFront/internal/board"
)

// Vec3 is a world-space point. Y is the vertical axis; the board lies in the
// X/Z plane with one unit per cell.
type Vec3 struct {
	X, Y, Z float64
}

func (v Vec3) Add(o Vec3) Vec3      { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vec3) Sub(o Vec3) Vec3      { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }
func (v Vec3) Scale(f float64) Vec3 { return Vec3{v.X * f, v.Y * f, v.Z * f} }
func (v Vec3) Len() float64         { return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z) }
func (v Vec3) Ground() Vec3         { return Vec3{X: v.X, Z: v.Z} }

// Near reports whether v is within eps of o.
func (v Vec3) Near(o Vec3, eps float64) bool { return v.Sub(o).Len() <= eps }

// CellCenter is the resting point of a piece on c: x follows the file, z the rank.
func CellCenter(c board.Cell) Vec3 {
	return Vec3{X: float64(c.File()), Z: float64(c.Rank())}
}
