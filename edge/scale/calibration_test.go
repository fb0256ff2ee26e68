package scale

import (
	"errors"
	"math"
	"testing"
)

func TestCalibrationAnchors(t *testing.T) {
	cal := Calibration{X0: 10, X1: 393600, ReferenceGrams: 227}

	got, err := cal.WeightGrams(cal.X0)
	if err != nil {
		t.Fatalf("WeightGrams(x0): %v", err)
	}
	if got != 0 {
		t.Errorf("weight at x0 = %v, want 0", got)
	}

	got, err = cal.WeightGrams(cal.X1)
	if err != nil {
		t.Fatalf("WeightGrams(x1): %v", err)
	}
	if math.Abs(got-227) > 1e-9 {
		t.Errorf("weight at x1 = %v, want 227", got)
	}
}

func TestCalibrationFormula(t *testing.T) {
	cal := Calibration{X0: 100, X1: 1100, ReferenceGrams: 500}

	cases := []struct {
		raw  float64
		want float64
	}{
		{600, 250},
		{1100, 500},
		{2100, 1000},
		{100, 0},
		{-400, -250}, // lighter than tare: negative, not clamped
	}
	for _, c := range cases {
		got, err := cal.WeightGrams(c.raw)
		if err != nil {
			t.Fatalf("WeightGrams(%v): %v", c.raw, err)
		}
		if math.Abs(got-c.want) > 1e-9 {
			t.Errorf("WeightGrams(%v) = %v, want %v", c.raw, got, c.want)
		}
	}
}

func TestCalibrationDegenerate(t *testing.T) {
	cal := Calibration{X0: 42, X1: 42, ReferenceGrams: 227}

	if err := cal.Validate(); !errors.Is(err, ErrCalibration) {
		t.Errorf("Validate = %v, want ErrCalibration", err)
	}
	if _, err := cal.WeightGrams(100); !errors.Is(err, ErrCalibration) {
		t.Errorf("WeightGrams = %v, want ErrCalibration", err)
	}
}
