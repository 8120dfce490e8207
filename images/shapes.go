// Package images - Box geometry shared by detection post-processing and the loss.
package images

// Rect is a lightweight bounding box in corner form.
// Coordinates are float32 because decoded detections carry sub-pixel
// positions; X2,Y2 are exclusive (like image.Rectangle).
type Rect struct {
	X1, Y1, X2, Y2 float32
}

// Width returns the horizontal extent of the box. Negative for inverted boxes.
func (r Rect) Width() float32 {
	return r.X2 - r.X1
}

// Height returns the vertical extent of the box. Negative for inverted boxes.
func (r Rect) Height() float32 {
	return r.Y2 - r.Y1
}

// Area returns the area of the box, or 0 for degenerate/inverted boxes.
func (r Rect) Area() float32 {
	w := r.Width()
	h := r.Height()
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// FromCenter builds a Rect from a (center, size) box, the form the decoder
// produces before corner conversion.
func FromCenter(cx, cy, w, h float32) Rect {
	return Rect{
		X1: cx - w/2,
		Y1: cy - h/2,
		X2: cx + w/2,
		Y2: cy + h/2,
	}
}

// CalculateIoU computes the Intersection-over-Union of two boxes.
//
// IoU = Area of Intersection / Area of Union, a value in [0, 1]:
//   - 1.0 means the boxes are identical.
//   - 0.0 means the boxes do not overlap at all.
//
// Disjoint boxes return 0 (intersection dims clamp to zero before the area
// is taken), and a degenerate pair whose areas sum to zero also returns 0
// instead of dividing by zero.
//
// Arguments:
//   - r: The first box.
//   - o: The other box to compare against.
//
// Returns:
//   - float32: The IoU score.
func CalculateIoU(r, o Rect) float32 {
	// Intersection corners: the overlap starts at the max of the top-left
	// corners and ends at the min of the bottom-right corners.
	ix1 := max(r.X1, o.X1)
	iy1 := max(r.Y1, o.Y1)
	ix2 := min(r.X2, o.X2)
	iy2 := min(r.Y2, o.Y2)

	interW := ix2 - ix1
	interH := iy2 - iy1
	if interW <= 0 || interH <= 0 {
		return 0
	}
	interArea := interW * interH

	// Inclusion-exclusion: Union(A, B) = Area(A) + Area(B) - Intersection(A, B)
	union := r.Area() + o.Area() - interArea
	if union <= 0 {
		return 0
	}
	return interArea / union
}

// CalculateGIoU computes the Generalized IoU of two boxes:
//
//	GIoU = IoU - (enclose - union) / enclose
//
// where enclose is the area of the smallest axis-aligned box containing both
// inputs. Unlike IoU it stays informative (negative) for disjoint boxes,
// which is what makes it usable as a localization loss. Range is (-1, 1].
// Degenerate geometry (zero enclosing area or zero area sum) returns 0.
func CalculateGIoU(r, o Rect) float32 {
	areaR := r.Area()
	areaO := o.Area()
	if areaR+areaO == 0 {
		return 0
	}

	ix1 := max(r.X1, o.X1)
	iy1 := max(r.Y1, o.Y1)
	ix2 := min(r.X2, o.X2)
	iy2 := min(r.Y2, o.Y2)

	interArea := float32(0)
	if ix2 > ix1 && iy2 > iy1 {
		interArea = (ix2 - ix1) * (iy2 - iy1)
	}
	union := areaR + areaO - interArea

	// Smallest axis-aligned box enclosing both inputs.
	ex1 := min(r.X1, o.X1)
	ey1 := min(r.Y1, o.Y1)
	ex2 := max(r.X2, o.X2)
	ey2 := max(r.Y2, o.Y2)
	enclose := (ex2 - ex1) * (ey2 - ey1)
	if enclose <= 0 || union <= 0 {
		return 0
	}

	iou := interArea / union
	return iou - (enclose-union)/enclose
}
