package concurrency

import (
	"errors"
	"testing"
)

func TestRunOrderedPreservesSubmissionOrder(t *testing.T) {
	p := New(8)
	results, ok, err := RunOrdered(p, 5, func(i int) (int, error) {
		return i * i, nil
	})
	if !ok || err != nil {
		t.Fatalf("unexpected ok=%v err=%v", ok, err)
	}
	want := []int{0, 1, 4, 9, 16}
	for i, v := range want {
		if results[i] != v {
			t.Fatalf("index %d: got %d want %d", i, results[i], v)
		}
	}
}

func TestRunOrderedFallsBackWithoutThreads(t *testing.T) {
	p := New(0)
	_, ok, err := RunOrdered(p, 3, func(i int) (int, error) { return i, nil })
	if ok || err != nil {
		t.Fatalf("expected serial fallback signal, got ok=%v err=%v", ok, err)
	}
}

func TestRunOrderedRefusesPartialBatch(t *testing.T) {
	p := New(2)
	_, ok, _ := RunOrdered(p, 3, func(i int) (int, error) { return i, nil })
	if ok {
		t.Fatalf("a batch larger than the free slots must not be accepted piecemeal")
	}
}

func TestRunOrderedPropagatesError(t *testing.T) {
	p := New(4)
	boom := errors.New("boom")
	_, ok, err := RunOrdered(p, 3, func(i int) (int, error) {
		if i == 1 {
			return 0, boom
		}
		return i, nil
	})
	if !ok {
		t.Fatalf("expected the batch to have been accepted")
	}
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom error, got %v", err)
	}
}
