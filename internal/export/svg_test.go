package export

import (
	"strings"
	"testing"

	"github.com/san-kum/touchy/internal/force"
	"github.com/san-kum/touchy/internal/simdevice"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestParsePlane(t *testing.T) {
	for _, s := range []string{"xy", "XZ", "yz"} {
		if _, err := ParsePlane(s); err != nil {
			t.Errorf("ParsePlane(%q): %v", s, err)
		}
	}
	if _, err := ParsePlane("xw"); err == nil {
		t.Error("expected error for unknown plane")
	}
}

func TestProject(t *testing.T) {
	v := r3.Vec{X: 1, Y: 2, Z: 3}
	tests := []struct {
		plane Plane
		a, b  float64
	}{
		{PlaneXY, 1, 2},
		{PlaneXZ, 1, 3},
		{PlaneYZ, 2, 3},
	}
	for _, tt := range tests {
		a, b := tt.plane.project(v)
		if a != tt.a || b != tt.b {
			t.Errorf("%s: got (%g, %g), want (%g, %g)", tt.plane, a, b, tt.a, tt.b)
		}
	}
}

func TestTrajectorySVG(t *testing.T) {
	frames := []simdevice.Sample{
		{Position: r3.Vec{X: 0.10}},
		{Position: r3.Vec{X: 0.04}, Force: r3.Vec{X: 0.01}},
		{Position: r3.Vec{X: 0.03}, Force: r3.Vec{X: 0.02}},
		{Position: r3.Vec{X: 0.06}},
	}
	sphere := force.Sphere{Radius: 0.05}

	svg := TrajectorySVG(frames, sphere, PlaneXY, 400, 300)
	if !strings.HasPrefix(svg, "<?xml") || !strings.Contains(svg, "</svg>") {
		t.Fatalf("not an svg document:\n%s", svg)
	}
	if got := strings.Count(svg, " L"); got != len(frames)-1 {
		t.Errorf("path segments = %d, want %d", got, len(frames)-1)
	}
	// sphere outline plus one dot per contact frame
	if got := strings.Count(svg, "<circle"); got != 3 {
		t.Errorf("circles = %d, want 3", got)
	}
}

func TestTrajectorySVGDegenerate(t *testing.T) {
	if svg := TrajectorySVG(nil, force.Sphere{}, PlaneXY, 100, 100); svg != "" {
		t.Error("expected empty output for no frames")
	}

	still := []simdevice.Sample{{}, {}}
	svg := TrajectorySVG(still, force.Sphere{}, PlaneXZ, 100, 100)
	if strings.Contains(svg, "NaN") || strings.Contains(svg, "Inf") {
		t.Errorf("non-finite coordinates:\n%s", svg)
	}
	if strings.Contains(svg, "stroke-dasharray") {
		t.Error("zero-radius sphere should not be drawn")
	}
}
