package drill

import (
	"crypto/rand"
	"math"
	"math/big"
)

// Constants for random number generation.
const (
	randomFloatDivisor = 1000000
	profileTypeDivisor = 6
)

// Trainee technique profiles. Each tier sets the simulated compression
// tempo, how hard the trainee presses and how centered their hands are.
const (
	caseSteadyPerformer  = 0
	caseSlowPerformer    = 1
	caseFastPerformer    = 2
	caseShallowPerformer = 3
	caseOffCenterHands   = 4
	caseErraticPerformer = 5
)

// Profile bounds per tier.
const (
	steadyTempoMin   = 105.0
	steadyTempoRange = 10.0
	slowTempoMin     = 70.0
	slowTempoRange   = 20.0
	fastTempoMin     = 130.0
	fastTempoRange   = 20.0

	fullDepthAmp    = 0.10
	shallowDepthAmp = 0.07

	centeredOffset  = 0.01
	offCenterOffset = 0.12
)

// profile describes one trainee's simulated technique.
type profile struct {
	tempoBPM    float64 // compression rate
	depthAmp    float64 // wrist travel amplitude in image space
	handsOffset float64 // horizontal wrist offset from the shoulder midpoint
	jitter      float64 // per-sample depth noise amplitude
}

// getRandomFloat returns a random float64 between 0.0 and 1.0 using crypto/rand.
func getRandomFloat() float64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(randomFloatDivisor))
	return float64(n.Int64()) / float64(randomFloatDivisor)
}

// randomProfile picks a technique tier with varied distribution.
func randomProfile() profile {
	randNum, _ := rand.Int(rand.Reader, big.NewInt(profileTypeDivisor))
	switch randNum.Int64() {
	case caseSteadyPerformer:
		// Near the reference tempo, deep, centered - the good trainee
		return profile{
			tempoBPM:    steadyTempoMin + getRandomFloat()*steadyTempoRange,
			depthAmp:    fullDepthAmp,
			handsOffset: centeredOffset,
			jitter:      0.01,
		}
	case caseSlowPerformer:
		// Too slow but otherwise sound
		return profile{
			tempoBPM:    slowTempoMin + getRandomFloat()*slowTempoRange,
			depthAmp:    fullDepthAmp,
			handsOffset: centeredOffset,
			jitter:      0.01,
		}
	case caseFastPerformer:
		// Rushing
		return profile{
			tempoBPM:    fastTempoMin + getRandomFloat()*fastTempoRange,
			depthAmp:    fullDepthAmp,
			handsOffset: centeredOffset,
			jitter:      0.01,
		}
	case caseShallowPerformer:
		// Good tempo, not pressing hard enough
		return profile{
			tempoBPM:    steadyTempoMin + getRandomFloat()*steadyTempoRange,
			depthAmp:    shallowDepthAmp,
			handsOffset: centeredOffset,
			jitter:      0.01,
		}
	case caseOffCenterHands:
		// Good tempo and depth, hands drifted sideways
		return profile{
			tempoBPM:    steadyTempoMin + getRandomFloat()*steadyTempoRange,
			depthAmp:    fullDepthAmp,
			handsOffset: offCenterOffset,
			jitter:      0.01,
		}
	default:
		// Erratic: everything wobbles
		return profile{
			tempoBPM:    slowTempoMin + getRandomFloat()*(fastTempoMin+fastTempoRange-slowTempoMin),
			depthAmp:    shallowDepthAmp + getRandomFloat()*(fullDepthAmp-shallowDepthAmp),
			handsOffset: getRandomFloat() * offCenterOffset,
			jitter:      0.04,
		}
	}
}

// keypointPayload mirrors the landmark shape in the sample request body.
type keypointPayload struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// samplePayload mirrors the POST /sessions/{id}/samples request schema.
type samplePayload struct {
	Timestamp     float64          `json:"timestamp"`
	LeftWrist     *keypointPayload `json:"left_wrist"`
	RightWrist    *keypointPayload `json:"right_wrist"`
	LeftShoulder  *keypointPayload `json:"left_shoulder"`
	RightShoulder *keypointPayload `json:"right_shoulder"`
}

// generateSamples synthesizes one session's pose stream: the wrists ride
// a pulse train at the profile's tempo, while the shoulders stay fixed.
// The pulse is narrow (cos^8) so each cycle exceeds the press threshold
// for only a frame or two, which is what the debounce logic expects from
// a real compression peak.
func generateSamples(p profile, drillSecs, sampleRate float64) []samplePayload {
	count := int(drillSecs * sampleRate)
	samples := make([]samplePayload, 0, count)

	freq := p.tempoBPM / 60.0 // compressions per second
	for i := 0; i < count; i++ {
		t := float64(i) / sampleRate

		// Narrow pulse in [0,1], peaking once per cycle.
		c := math.Cos(2 * math.Pi * freq * t)
		pulse := 0.0
		if c > 0 {
			pulse = math.Pow(c, 8)
		}

		// Wrists rise toward the shoulder line on each press; a smaller y
		// reads as a deeper compression downstream.
		wristY := 0.55 - p.depthAmp*pulse
		wristY += (getRandomFloat() - 0.5) * 2 * p.jitter

		wristX := 0.5 + p.handsOffset

		samples = append(samples, samplePayload{
			Timestamp:     t,
			LeftWrist:     &keypointPayload{X: wristX - 0.02, Y: wristY},
			RightWrist:    &keypointPayload{X: wristX + 0.02, Y: wristY},
			LeftShoulder:  &keypointPayload{X: 0.4, Y: 0.45},
			RightShoulder: &keypointPayload{X: 0.6, Y: 0.45},
		})
	}

	return samples
}
