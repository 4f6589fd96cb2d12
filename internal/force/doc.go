// Package force implements the force laws rendered against the target sphere.
//
// A [Model] is a tagged variant selected at start time. All variants share
// one penetration test: the cursor penetrates when its distance to the
// sphere center is strictly less than the radius, and the penetration
// depth is radius minus distance.
//
//   - [Idle]: never produces a force
//   - [ToCenter]: pulls toward the center (unit output unless ScaleToCenter)
//   - [FrictionlessRepel]: Hooke's law push out of the sphere
//   - [ConstrainedRepel]: vertical-only push, never downward
//
// # Degenerate Input
//
// A cursor exactly at the center has no defined direction; every variant
// returns no force there.
package force
