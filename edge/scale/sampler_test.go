package scale

import (
	"errors"
	"math"
	"sync"
	"testing"
	"time"
)

// flakySensor fails for the first failN samples, then returns raw.
type flakySensor struct {
	mu    sync.Mutex
	raw   float64
	failN int
	reads int
}

func (s *flakySensor) Sample() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	if s.reads <= s.failN {
		return 0, errors.New("hx711 timeout")
	}
	return s.raw, nil
}

func (s *flakySensor) Close() error { return nil }

func (s *flakySensor) setRaw(raw float64) {
	s.mu.Lock()
	s.raw = raw
	s.mu.Unlock()
}

func waitForWeight(t *testing.T, s *Sampler, want float64) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if math.Abs(s.CurrentWeight()-want) < 1e-9 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("CurrentWeight = %v, want %v", s.CurrentWeight(), want)
}

func TestSamplerPublishesWeight(t *testing.T) {
	sensor := &flakySensor{raw: 1100}
	cal := Calibration{X0: 100, X1: 1100, ReferenceGrams: 500}

	s, err := NewSampler(sensor, cal, 4, 5*time.Millisecond)
	if err != nil {
		t.Fatalf("NewSampler: %v", err)
	}
	s.Start()
	defer s.Stop()

	waitForWeight(t, s, 500)

	sensor.setRaw(600)
	waitForWeight(t, s, 250)
}

func TestSamplerToleratesMisreads(t *testing.T) {
	// First two full windows fail; the loop must keep going.
	sensor := &flakySensor{raw: 600, failN: 2}
	cal := Calibration{X0: 100, X1: 1100, ReferenceGrams: 500}

	s, err := NewSampler(sensor, cal, 1, 5*time.Millisecond)
	if err != nil {
		t.Fatalf("NewSampler: %v", err)
	}
	s.Start()
	defer s.Stop()

	waitForWeight(t, s, 250)
}

func TestSamplerRejectsDegenerateCalibration(t *testing.T) {
	_, err := NewSampler(&StaticSensor{}, Calibration{X0: 5, X1: 5, ReferenceGrams: 100}, 1, time.Millisecond)
	if !errors.Is(err, ErrCalibration) {
		t.Fatalf("NewSampler = %v, want ErrCalibration", err)
	}
}

func TestSamplerTare(t *testing.T) {
	sensor := &flakySensor{raw: 600}
	cal := Calibration{X0: 100, X1: 1100, ReferenceGrams: 500}

	s, err := NewSampler(sensor, cal, 2, time.Hour) // no ticks during the test
	if err != nil {
		t.Fatalf("NewSampler: %v", err)
	}

	if err := s.Tare(); err != nil {
		t.Fatalf("Tare: %v", err)
	}
	if got := s.CurrentWeight(); got != 0 {
		t.Errorf("weight after tare = %v, want 0", got)
	}

	got := s.Calibration()
	if got.X0 != 600 {
		t.Errorf("x0 after tare = %v, want 600", got.X0)
	}
	// The span must be preserved so the slope is unchanged.
	if got.X1-got.X0 != 1000 {
		t.Errorf("span after tare = %v, want 1000", got.X1-got.X0)
	}

	g, err := got.WeightGrams(1100)
	if err != nil {
		t.Fatalf("WeightGrams: %v", err)
	}
	if math.Abs(g-250) > 1e-9 {
		t.Errorf("re-anchored weight = %v, want 250", g)
	}
}

func TestWeightStateConcurrentAccess(t *testing.T) {
	var st WeightState
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func(v float64) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				st.Set(v)
			}
		}(float64(i))
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = st.Get()
			}
		}()
	}
	wg.Wait()
}
