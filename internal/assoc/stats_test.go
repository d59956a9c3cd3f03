package assoc

import (
	"errors"
	"math"
	"testing"
)

func TestSummarize(t *testing.T) {
	s, err := Summarize([]float64{0, 1, 2, 3, 4})
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if s.Mean != 2.0 {
		t.Errorf("Mean = %v, want 2.0", s.Mean)
	}
	// Population standard deviation, not sample.
	want := 1.4142135623730951
	if math.Abs(s.StdDev-want) > 1e-15 {
		t.Errorf("StdDev = %v, want %v", s.StdDev, want)
	}
	if s.N != 5 {
		t.Errorf("N = %d, want 5", s.N)
	}
}

func TestSummarizeSingleSample(t *testing.T) {
	s, err := Summarize([]float64{3.5})
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if s.Mean != 3.5 {
		t.Errorf("Mean = %v, want 3.5", s.Mean)
	}
	if !math.IsNaN(s.StdDev) {
		t.Errorf("StdDev = %v, want NaN for one sample", s.StdDev)
	}
}

func TestSummarizeIgnoresNaN(t *testing.T) {
	s, err := Summarize([]float64{math.NaN(), 1.0, math.NaN(), 3.0})
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if s.Mean != 2.0 {
		t.Errorf("Mean = %v, want 2.0", s.Mean)
	}
	if s.N != 2 {
		t.Errorf("N = %d, want 2", s.N)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	_, err := Summarize(nil)
	if !errors.Is(err, ErrInsufficientData) {
		t.Errorf("error = %v, want ErrInsufficientData", err)
	}
	_, err = Summarize([]float64{math.NaN(), math.NaN()})
	if !errors.Is(err, ErrInsufficientData) {
		t.Errorf("all-NaN error = %v, want ErrInsufficientData", err)
	}
}

func TestSummarizeOrNaN(t *testing.T) {
	s := summarizeOrNaN(nil)
	if !math.IsNaN(s.Mean) || !math.IsNaN(s.StdDev) {
		t.Errorf("summarizeOrNaN(nil) = %+v, want NaN fields", s)
	}
}
