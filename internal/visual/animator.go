package visual

import "math"

const (
	DefaultAccel    = 1.0
	DefaultMaxSpeed = 3.0
	DefaultEpsilon  = 0.05
)

// Animator moves a visual toward its cell with a constant-acceleration
// profile: speed up by Accel until the stopping distance speed²/(2·Accel)
// covers what is left, then brake so it arrives with zero speed. The height
// follows sqrt(speed), which gives the hop.
type Animator struct {
	Accel    float64
	MaxSpeed float64
	Epsilon  float64
}

func DefaultAnimator() Animator {
	return Animator{Accel: DefaultAccel, MaxSpeed: DefaultMaxSpeed, Epsilon: DefaultEpsilon}
}

// Step advances p by dt seconds. It returns false when p is at rest.
func (a Animator) Step(p *PieceVisual, dt float64) bool {
	if p == nil {
		return false
	}
	target := CellCenter(p.Cell)
	delta := target.Sub(p.Pos.Ground())
	dist := delta.Len()

	if dist <= a.Epsilon && p.Speed <= a.Epsilon {
		p.Pos = target
		p.Lift = 0
		p.Speed = 0
		return false
	}

	if dist > 0 {
		step := p.Speed * dt
		if step >= dist {
			p.Pos = target
		} else {
			p.Pos = p.Pos.Ground().Add(delta.Scale(step / dist))
		}
	}

	stopping := p.Speed * p.Speed / (2 * a.Accel)
	if dist <= stopping {
		p.Speed = math.Sqrt(dist * 2 * a.Accel)
	} else {
		p.Speed += dt * a.Accel
	}
	p.Speed = math.Max(0, math.Min(p.Speed, a.MaxSpeed))
	p.Lift = math.Sqrt(p.Speed)
	return true
}
