package geometry

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

type Mode string

const (
	Parabolic Mode = "parabolic"
	Catenary  Mode = "catenary"
)

// Shape describes how a conductor hangs between its two attachment points.
type Shape struct {
	Mode Mode
	// SagRatio is the mid-span drop per unit of horizontal distance.
	SagRatio float64
}

func DefaultShape() Shape {
	return Shape{Mode: Parabolic, SagRatio: 0.1}
}

func HorizontalDistance(a, b mgl64.Vec3) float64 {
	return math.Hypot(b.X()-a.X(), b.Z()-a.Z())
}

// Sag is the vertical drop at mid-span.
func (s Shape) Sag(from, to mgl64.Vec3) float64 {
	return s.SagRatio * HorizontalDistance(from, to)
}

// Curve returns n+1 points from from to to. The first and last points equal the
// endpoints exactly.
func (s Shape) Curve(from, to mgl64.Vec3, n int) []mgl64.Vec3 {
	if n < 1 {
		n = 1
	}
	pts := make([]mgl64.Vec3, n+1)
	for i := 0; i <= n; i++ {
		pts[i] = s.Point(from, to, float64(i)/float64(n))
	}
	pts[0] = from
	pts[n] = to
	return pts
}

// Point evaluates the curve at t in [0,1].
func (s Shape) Point(from, to mgl64.Vec3, t float64) mgl64.Vec3 {
	p := lerp(from, to, t)
	sag := s.Sag(from, to)
	if sag == 0 {
		return p
	}
	if s.Mode == Catenary {
		return mgl64.Vec3{p.X(), p.Y() - catenaryDrop(HorizontalDistance(from, to), sag, t), p.Z()}
	}
	return mgl64.Vec3{p.X(), p.Y() - 4*sag*t*(1-t), p.Z()}
}

// SagCurve is the parabolic curve with the default sag ratio.
func SagCurve(from, to mgl64.Vec3, n int) []mgl64.Vec3 {
	return DefaultShape().Curve(from, to, n)
}

func lerp(a, b mgl64.Vec3, t float64) mgl64.Vec3 {
	return a.Add(b.Sub(a).Mul(t))
}

const (
	newtonIterations = 20
	newtonTolerance  = 1e-6
)

// catenaryDrop returns how far below the chord a catenary of span l and mid-span
// sag s hangs at parameter t. The drop is zero at both ends and s at t=0.5.
func catenaryDrop(l, s, t float64) float64 {
	a := catenaryParam(l, s)
	if a <= 0 || math.IsInf(a, 0) || math.IsNaN(a) {
		return 4 * s * t * (1 - t)
	}
	x := (t - 0.5) * l
	return s - a*(math.Cosh(x/a)-1)
}

// catenaryParam solves a*(cosh(l/(2a)) - 1) = s for a by Newton iteration,
// starting from the parabolic estimate l^2/(8s).
func catenaryParam(l, s float64) float64 {
	if l <= 0 || s <= 0 {
		return 0
	}
	half := l / 2
	a := l * l / (8 * s)
	for i := 0; i < newtonIterations; i++ {
		u := half / a
		f := a*(math.Cosh(u)-1) - s
		df := math.Cosh(u) - 1 - u*math.Sinh(u)
		if df == 0 {
			break
		}
		next := a - f/df
		if next <= 0 {
			next = a / 2
		}
		if math.Abs(next-a) < newtonTolerance {
			return next
		}
		a = next
	}
	return a
}
