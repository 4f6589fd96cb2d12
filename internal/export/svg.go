// Package export renders recorded runs for use outside the terminal.
package export

import (
	"fmt"
	"math"
	"strings"

	"github.com/san-kum/touchy/internal/force"
	"github.com/san-kum/touchy/internal/simdevice"
	"gonum.org/v1/gonum/spatial/r3"
)

// Plane selects the two axes a trajectory is projected onto.
type Plane string

const (
	PlaneXY Plane = "xy"
	PlaneXZ Plane = "xz"
	PlaneYZ Plane = "yz"
)

func ParsePlane(s string) (Plane, error) {
	switch p := Plane(strings.ToLower(s)); p {
	case PlaneXY, PlaneXZ, PlaneYZ:
		return p, nil
	}
	return "", fmt.Errorf("unknown plane: %s (want xy, xz or yz)", s)
}

func (p Plane) project(v r3.Vec) (float64, float64) {
	switch p {
	case PlaneXZ:
		return v.X, v.Z
	case PlaneYZ:
		return v.Y, v.Z
	default:
		return v.X, v.Y
	}
}

// TrajectorySVG draws the end-effector path projected onto plane, the
// sphere outline, and a red dot on every frame that commanded a force. Both
// axes share one scale so the sphere stays round. Fewer than two frames
// yield an empty string.
func TrajectorySVG(frames []simdevice.Sample, sphere force.Sphere, plane Plane, width, height int) string {
	if len(frames) < 2 {
		return ""
	}

	cx, cy := plane.project(sphere.Center)
	r := math.Abs(sphere.Radius)
	minX, maxX := cx-r, cx+r
	minY, maxY := cy-r, cy+r
	for _, f := range frames {
		x, y := plane.project(f.Position)
		minX, maxX = math.Min(minX, x), math.Max(maxX, x)
		minY, maxY = math.Min(minY, y), math.Max(maxY, y)
	}

	span := math.Max(maxX-minX, maxY-minY)
	if span == 0 {
		span = 1
	}
	pad := span * 0.1
	minX -= pad
	minY -= pad
	span += 2 * pad
	scale := math.Min(float64(width), float64(height)) / span

	toPx := func(x, y float64) (float64, float64) {
		return (x - minX) * scale, float64(height) - (y-minY)*scale
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`, width, height, width, height)

	if sphere.Radius > 0 {
		px, py := toPx(cx, cy)
		fmt.Fprintf(&sb, `<circle cx="%.1f" cy="%.1f" r="%.1f" fill="none" stroke="#5f87af" stroke-dasharray="4 3"/>
`, px, py, r*scale)
	}

	sb.WriteString(`<path fill="none" stroke="#00ff00" stroke-width="1.5" d="M`)
	for i, f := range frames {
		px, py := toPx(plane.project(f.Position))
		if i == 0 {
			fmt.Fprintf(&sb, "%.1f,%.1f", px, py)
		} else {
			fmt.Fprintf(&sb, " L%.1f,%.1f", px, py)
		}
	}
	sb.WriteString("\"/>\n<g fill=\"#ff5f5f\">\n")

	for _, f := range frames {
		if r3.Norm(f.Force) == 0 {
			continue
		}
		px, py := toPx(plane.project(f.Position))
		fmt.Fprintf(&sb, `<circle cx="%.1f" cy="%.1f" r="1.5"/>
`, px, py)
	}

	sb.WriteString("</g>\n</svg>\n")
	return sb.String()
}
