package guidance

// NumMotors is the number of thrust outputs of the X-configuration frame.
const NumMotors = 4

const (
	baseThrust = 0.5
	mixGain    = 0.25
)

// MixMotors maps an acceleration command onto the four motors. Each axis
// contributes ±mixGain around the hover base thrust; the z component is
// collective and raises all four. Motor order is front-left, front-right,
// rear-left, rear-right. Outputs are clamped to [0, 1].
func MixMotors(cmd Command) [NumMotors]float64 {
	a := cmd.Accel
	thrust := [NumMotors]float64{
		baseThrust + mixGain*a.X + mixGain*a.Y + mixGain*a.Z,
		baseThrust - mixGain*a.X + mixGain*a.Y + mixGain*a.Z,
		baseThrust + mixGain*a.X - mixGain*a.Y + mixGain*a.Z,
		baseThrust - mixGain*a.X - mixGain*a.Y + mixGain*a.Z,
	}
	for i, v := range thrust {
		if v < 0 {
			thrust[i] = 0
		} else if v > 1 {
			thrust[i] = 1
		}
	}
	return thrust
}
