package scale

import "errors"

// ErrCalibration reports a degenerate calibration where both anchors are
// the same raw reading, which makes the linear model undefined.
var ErrCalibration = errors.New("degenerate calibration: x1 == x0")

// Calibration maps raw load-cell readings to grams using two anchors:
// X0 is the raw reading at zero load, X1 the raw reading with the known
// reference weight on the scale.
type Calibration struct {
	X0             float64
	X1             float64
	ReferenceGrams float64
}

// Validate checks that the anchors define a usable line.
func (c Calibration) Validate() error {
	if c.X1 == c.X0 {
		return ErrCalibration
	}
	return nil
}

// WeightGrams converts a raw reading to grams. The result can be negative
// when the load is lighter than the tare point; callers that want a
// display value apply abs at the presentation boundary, not here.
func (c Calibration) WeightGrams(raw float64) (float64, error) {
	if err := c.Validate(); err != nil {
		return 0, err
	}
	return c.ReferenceGrams * (raw - c.X0) / (c.X1 - c.X0), nil
}
