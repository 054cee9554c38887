package systems

import "github.com/pthm-cable/petri/components"

// ResolveBoundary clamps a post-movement position into the interior band and
// reflects the offending velocity component, scaled by the bounce factor.
func ResolveBoundary(pos *components.Position, vel *components.Velocity, halfWorld float32, p *Params) {
	limit := halfWorld - p.BoundaryMargin

	if pos.X <= -limit {
		pos.X = -limit
		vel.X = absf32(vel.X) * p.VelocityBounceFactor
	} else if pos.X >= limit {
		pos.X = limit
		vel.X = -absf32(vel.X) * p.VelocityBounceFactor
	}

	if pos.Y <= -limit {
		pos.Y = -limit
		vel.Y = absf32(vel.Y) * p.VelocityBounceFactor
	} else if pos.Y >= limit {
		pos.Y = limit
		vel.Y = -absf32(vel.Y) * p.VelocityBounceFactor
	}
}
