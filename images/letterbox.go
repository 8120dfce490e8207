// Package images - Box geometry shared by detection post-processing and the loss.
package images

// Letterbox records how an image of arbitrary aspect ratio was fit onto a
// square network input: scaled by Ratio (aspect preserved) and centered with
// PadX/PadY border on each side. The same record is used to project decoded
// boxes back into original-image coordinates.
type Letterbox struct {
	Ratio float32 // scale factor min(input/w, input/h)
	PadX  float32 // horizontal border on each side, in input pixels
	PadY  float32 // vertical border on each side, in input pixels
}

// FitLetterbox computes the letterbox placement of an orgW×orgH image inside
// an inputSize×inputSize square.
func FitLetterbox(inputSize, orgW, orgH int) Letterbox {
	in := float32(inputSize)
	ratio := min(in/float32(orgW), in/float32(orgH))
	return Letterbox{
		Ratio: ratio,
		PadX:  (in - ratio*float32(orgW)) / 2,
		PadY:  (in - ratio*float32(orgH)) / 2,
	}
}

// ScaledSize returns the pixel size of the image content inside the square
// input (before padding).
func (l Letterbox) ScaledSize(orgW, orgH int) (int, int) {
	return int(l.Ratio * float32(orgW)), int(l.Ratio * float32(orgH))
}

// ToOriginal maps a box from network-input coordinates back to
// original-image coordinates: the pad is subtracted before dividing by the
// scale factor.
func (l Letterbox) ToOriginal(r Rect) Rect {
	return Rect{
		X1: (r.X1 - l.PadX) / l.Ratio,
		Y1: (r.Y1 - l.PadY) / l.Ratio,
		X2: (r.X2 - l.PadX) / l.Ratio,
		Y2: (r.Y2 - l.PadY) / l.Ratio,
	}
}

// ToInput maps a box from original-image coordinates into network-input
// coordinates. Inverse of ToOriginal.
func (l Letterbox) ToInput(r Rect) Rect {
	return Rect{
		X1: r.X1*l.Ratio + l.PadX,
		Y1: r.Y1*l.Ratio + l.PadY,
		X2: r.X2*l.Ratio + l.PadX,
		Y2: r.Y2*l.Ratio + l.PadY,
	}
}

// Clip constrains a box to [0, w]×[0, h]. Boxes entirely outside the range
// come back inverted (negative extent), which callers treat as empty.
func (r Rect) Clip(w, h float32) Rect {
	return Rect{
		X1: max(r.X1, 0),
		Y1: max(r.Y1, 0),
		X2: min(r.X2, w),
		Y2: min(r.Y2, h),
	}
}
