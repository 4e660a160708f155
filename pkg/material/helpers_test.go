package material

import (
	"math"

	"github.com/df07/go-sphere-tracer/pkg/core"
)

// sequenceSampler replays a fixed list of values, wrapping around at the end
type sequenceSampler struct {
	values []float64
	index  int
}

func (s *sequenceSampler) next() float64 {
	v := s.values[s.index%len(s.values)]
	s.index++
	return v
}

func (s *sequenceSampler) Get1D() float64 { return s.next() }
func (s *sequenceSampler) Get2D() core.Vec2 {
	return core.NewVec2(s.next(), s.next())
}
func (s *sequenceSampler) Get3D() core.Vec3 {
	return core.NewVec3(s.next(), s.next(), s.next())
}

func vecNear(a, b core.Vec3, tolerance float64) bool {
	return math.Abs(a.X-b.X) <= tolerance &&
		math.Abs(a.Y-b.Y) <= tolerance &&
		math.Abs(a.Z-b.Z) <= tolerance
}
