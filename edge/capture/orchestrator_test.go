package capture

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"checkweigh/edge/classify"
	"checkweigh/edge/store"
)

type fixedWeights struct{ grams float64 }

func (f fixedWeights) CurrentWeight() float64 { return f.grams }

type fakeCamera struct {
	img []byte
	err error
}

func (c fakeCamera) Capture(context.Context) ([]byte, error) { return c.img, c.err }

type fakeSubmitter struct {
	verdict string
	err     error

	gotKey     string
	gotProduct int64
	gotLabel   int
	gotWeight  float64
}

func (s *fakeSubmitter) Validate(_ context.Context, apiKey string, productID int64, label int, weight float64) (string, error) {
	s.gotKey = apiKey
	s.gotProduct = productID
	s.gotLabel = label
	s.gotWeight = weight
	if s.err != nil {
		return "", s.err
	}
	return s.verdict, nil
}

type fixedKey string

func (k fixedKey) APIKey() string { return string(k) }

func testStore(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "edge.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestVerificationSuccess(t *testing.T) {
	db := testStore(t)
	sub := &fakeSubmitter{verdict: "correct"}
	o := New(
		fixedWeights{510.04},
		fakeCamera{img: []byte("jpeg")},
		classify.Func(func([]byte) (int, error) { return 3, nil }),
		sub,
		fixedKey("key-1"),
		db,
	)

	res := o.HandleVerification(context.Background(), 7)
	if res.Status != "correct" {
		t.Fatalf("status = %q, want correct", res.Status)
	}
	if sub.gotKey != "key-1" || sub.gotProduct != 7 || sub.gotLabel != 3 {
		t.Errorf("submitted claim = %+v", sub)
	}
	if sub.gotWeight != 510.0 {
		t.Errorf("submitted weight = %v, want 510.0 (rounded)", sub.gotWeight)
	}

	attempts, _ := db.ListRecentAttempts(10)
	if len(attempts) != 1 || attempts[0].Status != "correct" {
		t.Errorf("attempt log = %+v", attempts)
	}
}

func TestVerificationNegativeWeightAbs(t *testing.T) {
	sub := &fakeSubmitter{verdict: "incorrect"}
	o := New(
		fixedWeights{-12.36},
		fakeCamera{img: []byte("jpeg")},
		classify.Func(func([]byte) (int, error) { return 0, nil }),
		sub,
		fixedKey("k"),
		nil,
	)
	o.HandleVerification(context.Background(), 1)
	if sub.gotWeight != 12.4 {
		t.Errorf("submitted weight = %v, want 12.4", sub.gotWeight)
	}
}

func TestVerificationCaptureFailure(t *testing.T) {
	db := testStore(t)
	sub := &fakeSubmitter{verdict: "correct"}
	o := New(
		fixedWeights{500},
		fakeCamera{err: errors.New("no camera")},
		classify.Func(func([]byte) (int, error) { return 3, nil }),
		sub,
		fixedKey("k"),
		db,
	)

	res := o.HandleVerification(context.Background(), 7)
	if res.Status != "error" {
		t.Fatalf("status = %q, want error", res.Status)
	}
	if res.Detail == "" {
		t.Error("error result is missing a diagnostic")
	}
	if sub.gotKey != "" {
		t.Error("claim was submitted despite capture failure")
	}

	attempts, _ := db.ListRecentAttempts(10)
	if len(attempts) != 1 || attempts[0].Status != "error" || attempts[0].PredictedLabel != -1 {
		t.Errorf("attempt log = %+v", attempts)
	}
}

func TestVerificationSubmissionFailure(t *testing.T) {
	sub := &fakeSubmitter{err: errors.New("connection refused")}
	o := New(
		fixedWeights{500},
		fakeCamera{img: []byte("jpeg")},
		classify.Func(func([]byte) (int, error) { return 3, nil }),
		sub,
		fixedKey("k"),
		nil,
	)

	res := o.HandleVerification(context.Background(), 7)
	if res.Status != "error" {
		t.Fatalf("status = %q, want error", res.Status)
	}
	// Exactly one attempt: no internal retry.
	if sub.gotProduct != 7 {
		t.Errorf("claim parameters = %+v", sub)
	}
}

func TestVerificationClassifierFailure(t *testing.T) {
	o := New(
		fixedWeights{500},
		fakeCamera{img: []byte("jpeg")},
		classify.Func(func([]byte) (int, error) { return 0, errors.New("model not loaded") }),
		&fakeSubmitter{},
		fixedKey("k"),
		nil,
	)
	res := o.HandleVerification(context.Background(), 7)
	if res.Status != "error" {
		t.Fatalf("status = %q, want error", res.Status)
	}
}
