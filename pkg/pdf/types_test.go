package pdf

import "testing"

func TestRectDimensions(t *testing.T) {
	r := Rect{X0: 10, Y0: 20, X1: 110, Y1: 220}
	if r.Width() != 100 {
		t.Errorf("Width = %v", r.Width())
	}
	if r.Height() != 200 {
		t.Errorf("Height = %v", r.Height())
	}
}

func TestContainsPoint(t *testing.T) {
	r := Rect{X0: 0, Y0: 0, X1: 100, Y1: 100}

	tests := []struct {
		name string
		x, y float64
		tol  float64
		want bool
	}{
		{"interior", 50, 50, 0, true},
		{"on edge", 0, 100, 0, true},
		{"outside", 101, 50, 0, false},
		{"within tolerance", 100.0000001, 50, 1e-6, true},
		{"beyond tolerance", 100.1, 50, 1e-6, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := r.ContainsPoint(tc.x, tc.y, tc.tol); got != tc.want {
				t.Errorf("ContainsPoint(%v, %v, %v) = %v, want %v", tc.x, tc.y, tc.tol, got, tc.want)
			}
		})
	}
}

func TestContainsRect(t *testing.T) {
	r := Rect{X0: 0, Y0: 0, X1: 100, Y1: 100}

	if !r.ContainsRect(r, 0) {
		t.Error("a rectangle must contain itself")
	}
	if !r.ContainsRect(Rect{X0: 10, Y0: 10, X1: 90, Y1: 90}, 0) {
		t.Error("interior rectangle must be contained")
	}
	if r.ContainsRect(Rect{X0: 50, Y0: 50, X1: 150, Y1: 90}, 0) {
		t.Error("overlapping rectangle must not be contained")
	}
	if !r.ContainsRect(Rect{X0: -0.0000001, Y0: 0, X1: 100, Y1: 100}, 1e-6) {
		t.Error("sub-tolerance overhang must be contained")
	}
}
