package force

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

// Kind selects a force law.
type Kind int

const (
	Idle Kind = iota
	ToCenter
	FrictionlessRepel
	ConstrainedRepel
)

const (
	DefaultStiffness            = 1.0
	DefaultConstrainedStiffness = 0.025
)

var kindNames = []string{"idle", "center", "sphere", "constrained"}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// ProducesForce reports whether the variant ever commands a force.
func (k Kind) ProducesForce() bool { return k != Idle }

// ParseKind maps a model name to its Kind. A few long-form aliases are accepted.
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "idle", "none":
		return Idle, nil
	case "center", "to_center", "tocenter":
		return ToCenter, nil
	case "sphere", "frictionless", "repel":
		return FrictionlessRepel, nil
	case "constrained", "force", "vertical":
		return ConstrainedRepel, nil
	}
	return Idle, fmt.Errorf("unknown force model: %s (available: %s)", name, strings.Join(kindNames, ", "))
}

// Kinds lists every variant in declaration order.
func Kinds() []Kind {
	return []Kind{Idle, ToCenter, FrictionlessRepel, ConstrainedRepel}
}

// Sphere is the rendered target.
type Sphere struct {
	Center r3.Vec
	Radius float64
}

// Model is one configured force law.
type Model struct {
	Kind      Kind
	Stiffness float64

	// ScaleToCenter makes ToCenter output k*depth*direction instead of the
	// bare unit direction.
	ScaleToCenter bool
}

// New returns the variant with its default stiffness.
func New(kind Kind) Model {
	k := DefaultStiffness
	if kind == ConstrainedRepel {
		k = DefaultConstrainedStiffness
	}
	return Model{Kind: kind, Stiffness: k}
}

// Penetration returns the distance used by the model's contact test and
// whether the cursor is inside the sphere.
func (m Model) Penetration(cursor r3.Vec, s Sphere) (distance float64, inside bool) {
	offset := m.offset(cursor, s)
	distance = r3.Norm(offset)
	return distance, distance < s.Radius
}

// Force evaluates the law for one frame. The bool result is false when no
// force should be commanded.
func (m Model) Force(cursor r3.Vec, s Sphere) (r3.Vec, bool) {
	if m.Kind == Idle {
		return r3.Vec{}, false
	}

	offset := m.offset(cursor, s)
	distance := r3.Norm(offset)
	if !(distance < s.Radius) || distance == 0 {
		return r3.Vec{}, false
	}
	depth := s.Radius - distance

	switch m.Kind {
	case ToCenter:
		dir := r3.Scale(1/distance, r3.Sub(s.Center, cursor))
		if !m.ScaleToCenter {
			return dir, true
		}
		return r3.Scale(m.Stiffness*depth, dir), true

	case FrictionlessRepel:
		dir := r3.Scale(1/distance, r3.Sub(cursor, s.Center))
		return r3.Scale(m.Stiffness*depth, dir), true

	case ConstrainedRepel:
		dir := r3.Vec{Z: (cursor.Z - s.Center.Z) / distance}
		if dir.Z < 0 {
			dir.Z = 0
		}
		return r3.Vec{Z: m.Stiffness * depth * dir.Z}, true
	}

	return r3.Vec{}, false
}

// offset is cursor minus center, restricted to Z for the constrained law.
func (m Model) offset(cursor r3.Vec, s Sphere) r3.Vec {
	d := r3.Sub(cursor, s.Center)
	if m.Kind == ConstrainedRepel {
		d.X, d.Y = 0, 0
	}
	return d
}
