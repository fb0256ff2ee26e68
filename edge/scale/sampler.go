package scale

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// WeightState is the single shared cell between the sampling loop and
// request handlers. The lock is held only for the read or write itself,
// never across sensor or network I/O.
type WeightState struct {
	mu    sync.Mutex
	grams float64
}

// Set publishes a new weight.
func (s *WeightState) Set(grams float64) {
	s.mu.Lock()
	s.grams = grams
	s.mu.Unlock()
}

// Get returns the latest published weight.
func (s *WeightState) Get() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.grams
}

// Sampler runs the perpetual background loop that reads the sensor,
// converts via the calibration model and publishes into WeightState.
type Sampler struct {
	state *WeightState

	// sensorMu guards the sensor and calibration. Tare re-anchors the
	// calibration while the loop is running, so both go through it.
	sensorMu sync.Mutex
	sensor   Sensor
	cal      Calibration

	samples  int
	interval time.Duration

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewSampler creates a sampler. The calibration must be non-degenerate;
// samples and interval fall back to 10 readings every 200ms when unset.
func NewSampler(sensor Sensor, cal Calibration, samples int, interval time.Duration) (*Sampler, error) {
	if err := cal.Validate(); err != nil {
		return nil, err
	}
	if samples <= 0 {
		samples = 10
	}
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	return &Sampler{
		state:    &WeightState{},
		sensor:   sensor,
		cal:      cal,
		samples:  samples,
		interval: interval,
		stopChan: make(chan struct{}),
	}, nil
}

// Start begins the sampling loop.
func (s *Sampler) Start() {
	s.wg.Add(1)
	go s.loop()
}

// Stop halts the loop and releases the sensor.
func (s *Sampler) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
	s.sensorMu.Lock()
	if err := s.sensor.Close(); err != nil {
		log.Printf("scale: close sensor: %v", err)
	}
	s.sensorMu.Unlock()
}

// CurrentWeight returns the latest converted weight in grams.
func (s *Sampler) CurrentWeight() float64 {
	return s.state.Get()
}

// Calibration returns the current calibration anchors.
func (s *Sampler) Calibration() Calibration {
	s.sensorMu.Lock()
	defer s.sensorMu.Unlock()
	return s.cal
}

func (s *Sampler) loop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Immediate first reading so CurrentWeight is meaningful at startup.
	s.tick()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *Sampler) tick() {
	s.sensorMu.Lock()
	raw, err := s.meanRaw(s.samples)
	if err != nil {
		s.sensorMu.Unlock()
		// A single misread must not kill the loop; try again next tick.
		log.Printf("scale: sensor read: %v", err)
		return
	}
	grams, err := s.cal.WeightGrams(raw)
	s.sensorMu.Unlock()
	if err != nil {
		log.Printf("scale: convert: %v", err)
		return
	}
	s.state.Set(grams)
}

// meanRaw averages n raw readings. Caller holds sensorMu.
func (s *Sampler) meanRaw(n int) (float64, error) {
	var sum float64
	for i := 0; i < n; i++ {
		r, err := s.sensor.Sample()
		if err != nil {
			return 0, fmt.Errorf("sample %d/%d: %w", i+1, n, err)
		}
		sum += r
	}
	return sum / float64(n), nil
}

// Tare re-zeros the scale by capturing a fresh x0 anchor from the sensor.
// The span (x1 - x0) is preserved so the reference slope stays valid.
func (s *Sampler) Tare() error {
	s.sensorMu.Lock()
	defer s.sensorMu.Unlock()

	raw, err := s.meanRaw(s.samples)
	if err != nil {
		return fmt.Errorf("tare: %w", err)
	}
	span := s.cal.X1 - s.cal.X0
	s.cal.X0 = raw
	s.cal.X1 = raw + span
	s.state.Set(0)
	return nil
}
