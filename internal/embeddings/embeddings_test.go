package embeddings

import (
	"math"
	"testing"
)

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"scaled parallel", []float32{1, 1}, []float32{3, 3}, 1},
		{"length mismatch", []float32{1, 2}, []float32{1, 2, 3}, 0},
		{"empty", nil, nil, 0},
		{"zero norm", []float32{0, 0}, []float32{1, 1}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Cosine(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("Cosine(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestMean(t *testing.T) {
	got := Mean([][]float32{{1, 0}, {3, 2}})
	want := []float32{2, 1}
	if len(got) != len(want) {
		t.Fatalf("Mean length = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if math.Abs(float64(got[i]-want[i])) > 1e-6 {
			t.Errorf("Mean[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestMeanSkipsMismatchedLengths(t *testing.T) {
	got := Mean([][]float32{{2, 4}, {1, 2, 3}})
	want := []float32{2, 4}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("Mean = %v, want %v (mismatched vector skipped)", got, want)
	}
}

func TestMeanEmptyInput(t *testing.T) {
	if got := Mean(nil); got != nil {
		t.Errorf("Mean(nil) = %v, want nil", got)
	}
}
