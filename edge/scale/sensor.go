package scale

// Sensor reads raw values from a load cell. Implementations wrap the
// actual hardware driver; the sampler only needs raw readings.
type Sensor interface {
	// Sample returns one raw reading.
	Sample() (float64, error)
	// Close releases the underlying sensor handle.
	Close() error
}

// StaticSensor always returns the same raw reading. Used on bench setups
// and in tests where no load cell is attached.
type StaticSensor struct {
	Raw float64
}

func (s *StaticSensor) Sample() (float64, error) { return s.Raw, nil }
func (s *StaticSensor) Close() error             { return nil }
