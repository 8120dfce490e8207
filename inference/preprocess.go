package inference

import (
	"image"

	"github.com/nfnt/resize"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-yolov4/images"
)

// grayFill is the letterbox border value: 128/255, matching the reference
// preprocessing so pretrained weights see the padding they were trained on.
const grayFill = float32(128) / 255

// PrepareInput letterboxes a frame onto the square network input: the image
// is scaled preserving aspect ratio, centered on a gray canvas, and written
// as an HWC float32 tensor [1, size, size, 3] with values in [0, 1].
//
// The returned Letterbox records the scale and padding; feed it back into
// the post-processing step so decoded boxes land in original-image
// coordinates.
func PrepareInput(img image.Image, inputSize int) (*tensor.Dense, images.Letterbox) {
	bounds := img.Bounds()
	orgW := bounds.Dx()
	orgH := bounds.Dy()
	lb := images.FitLetterbox(inputSize, orgW, orgH)
	newW, newH := lb.ScaledSize(orgW, orgH)

	// Nearest-neighbor, for parity with the reference pipeline's resize.
	scaled := resize.Resize(uint(newW), uint(newH), img, resize.NearestNeighbor)

	data := make([]float32, inputSize*inputSize*3)
	for i := range data {
		data[i] = grayFill
	}

	offX := (inputSize - newW) / 2
	offY := (inputSize - newH) / 2
	sb := scaled.Bounds()
	for y := 0; y < newH; y++ {
		for x := 0; x < newW; x++ {
			r, g, b, _ := scaled.At(sb.Min.X+x, sb.Min.Y+y).RGBA()
			o := ((offY+y)*inputSize + offX + x) * 3
			data[o+0] = float32(r>>8) / 255
			data[o+1] = float32(g>>8) / 255
			data[o+2] = float32(b>>8) / 255
		}
	}

	return tensor.New(
		tensor.WithShape(1, inputSize, inputSize, 3),
		tensor.WithBacking(data),
	), lb
}
