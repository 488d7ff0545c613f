// Package pose contains the pose-observation value types consumed by the
// analysis engine. Keypoints arrive from an external landmark provider as
// image-normalized 2-D coordinates; this package never talks to a camera
// or a pose model.
package pose

import "math"

// Keypoint is a single body landmark in normalized image coordinates.
// X and Y are in [0,1]; Present is false when the provider had no
// detection for this landmark on this frame.
type Keypoint struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Present bool    `json:"present"`
}

// Absent is the zero keypoint, kept for readable call sites.
var Absent = Keypoint{}

// At builds a present keypoint.
func At(x, y float64) Keypoint {
	return Keypoint{X: x, Y: y, Present: true}
}

// DistanceTo returns the Euclidean distance to other in image space.
func (k Keypoint) DistanceTo(other Keypoint) float64 {
	dx := k.X - other.X
	dy := k.Y - other.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Midpoint returns the point halfway between k and other.
func (k Keypoint) Midpoint(other Keypoint) Keypoint {
	return At((k.X+other.X)/2, (k.Y+other.Y)/2)
}

// Sample is one frame worth of landmarks with its capture timestamp in
// monotonic seconds. Samples are immutable values; the engine keeps no
// reference to them beyond the current tick.
type Sample struct {
	LeftWrist     Keypoint `json:"left_wrist"`
	RightWrist    Keypoint `json:"right_wrist"`
	LeftShoulder  Keypoint `json:"left_shoulder"`
	RightShoulder Keypoint `json:"right_shoulder"`
	Timestamp     float64  `json:"timestamp"`
}

// HasWrists reports whether both wrist landmarks were detected.
func (s Sample) HasWrists() bool {
	return s.LeftWrist.Present && s.RightWrist.Present
}

// HasShoulders reports whether both shoulder landmarks were detected.
func (s Sample) HasShoulders() bool {
	return s.LeftShoulder.Present && s.RightShoulder.Present
}
