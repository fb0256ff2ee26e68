package classify

import (
	"errors"
	"sync"
	"testing"
)

func TestReloadableBeforeFirstLoad(t *testing.T) {
	r := NewReloadable("model.bin", func(string) (Classifier, error) {
		return Func(func([]byte) (int, error) { return 1, nil }), nil
	})
	if r.Loaded() {
		t.Error("Loaded before Reload")
	}
	if _, err := r.Classify(nil); !errors.Is(err, ErrNoModel) {
		t.Errorf("Classify = %v, want ErrNoModel", err)
	}
}

func TestReloadableSwap(t *testing.T) {
	label := 3
	r := NewReloadable("model.bin", func(string) (Classifier, error) {
		l := label
		return Func(func([]byte) (int, error) { return l, nil }), nil
	})

	if err := r.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if got, _ := r.Classify(nil); got != 3 {
		t.Errorf("label = %d, want 3", got)
	}

	label = 5
	if err := r.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if got, _ := r.Classify(nil); got != 5 {
		t.Errorf("label after reload = %d, want 5", got)
	}
}

func TestReloadFailureKeepsOldModel(t *testing.T) {
	fail := false
	r := NewReloadable("model.bin", func(string) (Classifier, error) {
		if fail {
			return nil, errors.New("corrupt artifact")
		}
		return Func(func([]byte) (int, error) { return 7, nil }), nil
	})

	if err := r.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	fail = true
	if err := r.Reload(); err == nil {
		t.Fatal("expected reload error")
	}
	// Old classifier still serves.
	if got, err := r.Classify(nil); err != nil || got != 7 {
		t.Errorf("Classify = (%d, %v), want (7, nil)", got, err)
	}
}

func TestReloadConcurrentWithClassify(t *testing.T) {
	r := NewReloadable("model.bin", func(string) (Classifier, error) {
		return Func(func([]byte) (int, error) { return 1, nil }), nil
	})
	if err := r.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if _, err := r.Classify(nil); err != nil {
					t.Errorf("Classify during reload: %v", err)
					return
				}
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				r.Reload()
			}
		}()
	}
	wg.Wait()
}
