package images

import (
	"math"
	"testing"
)

// TestIoU_Correctness validates the IoU implementation against known cases.
func TestIoU_Correctness(t *testing.T) {
	tests := []struct {
		name     string
		r1       Rect
		r2       Rect
		expected float32
		epsilon  float32
	}{
		{
			name:     "Identical rectangles",
			r1:       Rect{0, 0, 100, 100},
			r2:       Rect{0, 0, 100, 100},
			expected: 1.0,
			epsilon:  0.001,
		},
		{
			name:     "No overlap",
			r1:       Rect{0, 0, 100, 100},
			r2:       Rect{200, 200, 300, 300},
			expected: 0.0,
			epsilon:  0.001,
		},
		{
			name:     "Touching edges",
			r1:       Rect{0, 0, 100, 100},
			r2:       Rect{100, 0, 200, 100},
			expected: 0.0,
			epsilon:  0.001,
		},
		{
			name:     "Half overlap",
			r1:       Rect{0, 0, 100, 100},
			r2:       Rect{50, 50, 150, 150},
			expected: 0.142857, // intersection=2500, union=17500
			epsilon:  0.001,
		},
		{
			name:     "One inside other",
			r1:       Rect{0, 0, 100, 100},
			r2:       Rect{25, 25, 75, 75},
			expected: 0.25, // intersection=2500, union=10000
			epsilon:  0.001,
		},
		{
			name:     "Both degenerate",
			r1:       Rect{10, 10, 10, 10},
			r2:       Rect{10, 10, 10, 10},
			expected: 0.0,
			epsilon:  0.001,
		},
		{
			name:     "Sub-pixel boxes",
			r1:       Rect{0.5, 0.5, 1.5, 1.5},
			r2:       Rect{1.0, 0.5, 2.0, 1.5},
			expected: 1.0 / 3.0, // intersection=0.5, union=1.5
			epsilon:  0.001,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CalculateIoU(tt.r1, tt.r2)
			if math.Abs(float64(result-tt.expected)) > float64(tt.epsilon) {
				t.Errorf("IoU() = %v, expected %v (±%v)", result, tt.expected, tt.epsilon)
			}

			// IoU(A, B) must equal IoU(B, A)
			reverse := CalculateIoU(tt.r2, tt.r1)
			if math.Abs(float64(result-reverse)) > float64(tt.epsilon) {
				t.Errorf("IoU not symmetric: IoU(A,B)=%v != IoU(B,A)=%v", result, reverse)
			}
		})
	}
}

// TestGIoU_BoundedByIoU verifies GIoU <= IoU everywhere, with equality once
// the enclosing box adds nothing beyond the union.
func TestGIoU_BoundedByIoU(t *testing.T) {
	pairs := []struct {
		name  string
		r1    Rect
		r2    Rect
		equal bool
	}{
		{name: "Identical", r1: Rect{0, 0, 10, 10}, r2: Rect{0, 0, 10, 10}, equal: true},
		{name: "Contained", r1: Rect{0, 0, 10, 10}, r2: Rect{2, 2, 8, 8}, equal: true},
		{name: "Offset overlap", r1: Rect{0, 0, 10, 10}, r2: Rect{5, 5, 15, 15}, equal: false},
		{name: "Disjoint diagonal", r1: Rect{0, 0, 10, 10}, r2: Rect{20, 20, 30, 30}, equal: false},
		{name: "Side by side", r1: Rect{0, 0, 10, 10}, r2: Rect{10, 0, 20, 10}, equal: true},
	}

	for _, tt := range pairs {
		t.Run(tt.name, func(t *testing.T) {
			iou := CalculateIoU(tt.r1, tt.r2)
			giou := CalculateGIoU(tt.r1, tt.r2)
			if giou > iou+1e-6 {
				t.Errorf("GIoU %v exceeds IoU %v", giou, iou)
			}
			if tt.equal && math.Abs(float64(giou-iou)) > 1e-6 {
				t.Errorf("expected GIoU == IoU, got %v vs %v", giou, iou)
			}
			if !tt.equal && giou >= iou {
				t.Errorf("expected GIoU < IoU, got %v vs %v", giou, iou)
			}
		})
	}
}

// TestGIoU_DisjointIsNegative checks the property that makes GIoU usable as
// a loss: separated boxes get a penalty proportional to the gap.
func TestGIoU_DisjointIsNegative(t *testing.T) {
	near := CalculateGIoU(Rect{0, 0, 10, 10}, Rect{12, 0, 22, 10})
	far := CalculateGIoU(Rect{0, 0, 10, 10}, Rect{100, 0, 110, 10})
	if near >= 0 {
		t.Errorf("disjoint GIoU should be negative, got %v", near)
	}
	if far >= near {
		t.Errorf("farther box should score lower: far=%v near=%v", far, near)
	}
}

func TestGIoU_DegenerateReturnsZero(t *testing.T) {
	zero := Rect{5, 5, 5, 5}
	if got := CalculateGIoU(zero, zero); got != 0 {
		t.Errorf("GIoU of two zero-area boxes = %v, want 0", got)
	}
	if got := CalculateIoU(zero, zero); got != 0 {
		t.Errorf("IoU of two zero-area boxes = %v, want 0", got)
	}
}

func TestFromCenter(t *testing.T) {
	r := FromCenter(10, 20, 4, 6)
	want := Rect{8, 17, 12, 23}
	if r != want {
		t.Errorf("FromCenter = %+v, want %+v", r, want)
	}
}
