package floatutils

import (
	"testing"

	"gonum.org/v1/gonum/spatial/r1"
)

func TestClip(t *testing.T) {
	tests := []struct {
		value, min, max, want float64
	}{
		{0.5, -1, 1, 0.5},
		{2, -1, 1, 1},
		{-3, -1, 1, -1},
		{1, 1, 1, 1},
	}
	for _, test := range tests {
		if got := Clip(test.value, test.min, test.max); got != test.want {
			t.Errorf("Clip(%v, %v, %v): want(%v) have(%v)", test.value,
				test.min, test.max, test.want, got)
		}
		interval := r1.Interval{Min: test.min, Max: test.max}
		if got := ClipInterval(test.value, interval); got != test.want {
			t.Errorf("ClipInterval(%v, %v): want(%v) have(%v)", test.value,
				interval, test.want, got)
		}
	}
}

func TestClipSlice(t *testing.T) {
	values := []float64{-2, -0.5, 0, 0.5, 2}
	ClipSlice(values, -1, 1)
	want := []float64{-1, -0.5, 0, 0.5, 1}
	for i := range want {
		if values[i] != want[i] {
			t.Errorf("index %d: want(%v) have(%v)", i, want[i], values[i])
		}
	}
}
