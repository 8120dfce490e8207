package yolov4

import (
	"github.com/chewxy/math32"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// DecodeTrain converts one scale's raw head output into finished predictions
// for the loss: absolute-pixel box centers and sizes, objectness and class
// probabilities. The result has the same [batch, gh, gw, anchors, 5+classes]
// shape as the input; the raw tensor itself is left untouched since the loss
// also needs the pre-sigmoid logits.
//
// The center transform is
//
//	xy = (sigmoid(raw_xy)*xyScale - 0.5*(xyScale-1) + cell) * stride
//
// The -0.5*(scale-1) term recenters the scaled sigmoid so that the
// correction does not bias coordinates upward; it has to match the
// pretrained weights bit for bit, so don't "simplify" it.
func DecodeTrain(raw *tensor.Dense, cfg Config, scale int) (*tensor.Dense, error) {
	batch, err := checkRawShape(raw, cfg, scale)
	if err != nil {
		return nil, err
	}
	out := decodeBacking(rawData(raw), batch, cfg, scale)
	gs := cfg.GridSize(scale)
	return tensor.New(
		tensor.WithShape(batch, gs, gs, AnchorsPerScale, cfg.Channels()),
		tensor.WithBacking(out),
	), nil
}

// DecodeInference converts one scale's raw head output into finished
// predictions flattened over the grid and anchor dimensions:
// [batch, gh*gw*anchors, 5+classes]. Same math as DecodeTrain.
func DecodeInference(raw *tensor.Dense, cfg Config, scale int) (*tensor.Dense, error) {
	batch, err := checkRawShape(raw, cfg, scale)
	if err != nil {
		return nil, err
	}
	out := decodeBacking(rawData(raw), batch, cfg, scale)
	gs := cfg.GridSize(scale)
	return tensor.New(
		tensor.WithShape(batch, gs*gs*AnchorsPerScale, cfg.Channels()),
		tensor.WithBacking(out),
	), nil
}

// decodeBacking runs the decode transform over a raw backing slice laid out
// [batch, gh, gw, anchor, channel].
func decodeBacking(src []float32, batch int, cfg Config, scale int) []float32 {
	gs := cfg.GridSize(scale)
	ch := cfg.Channels()
	stride := float32(cfg.Strides[scale])
	xyScale := cfg.XYScale[scale]
	anchors := cfg.Anchors[scale]

	out := make([]float32, len(src))
	o := 0
	for b := 0; b < batch; b++ {
		for gy := 0; gy < gs; gy++ {
			for gx := 0; gx < gs; gx++ {
				for a := 0; a < AnchorsPerScale; a++ {
					out[o+0] = (sigmoid(src[o+0])*xyScale - 0.5*(xyScale-1) + float32(gx)) * stride
					out[o+1] = (sigmoid(src[o+1])*xyScale - 0.5*(xyScale-1) + float32(gy)) * stride
					out[o+2] = math32.Exp(src[o+2]) * anchors[a].W
					out[o+3] = math32.Exp(src[o+3]) * anchors[a].H
					// Objectness and per-class probabilities are independent
					// sigmoids, not a softmax: classes are multi-label.
					for c := 4; c < ch; c++ {
						out[o+c] = sigmoid(src[o+c])
					}
					o += ch
				}
			}
		}
	}
	return out
}

// checkRawShape validates a raw output tensor against the configuration and
// returns the batch size. A bad shape is a caller contract violation and
// fails fast.
func checkRawShape(raw *tensor.Dense, cfg Config, scale int) (int, error) {
	if scale < 0 || scale >= ScaleCount {
		return 0, errors.Errorf("yolov4: scale index %d out of range", scale)
	}
	shape := raw.Shape()
	gs := cfg.GridSize(scale)
	if len(shape) != 5 || shape[1] != gs || shape[2] != gs ||
		shape[3] != AnchorsPerScale || shape[4] != cfg.Channels() {
		return 0, errors.Errorf(
			"yolov4: raw output at scale %d has shape %v, want [batch %d %d %d %d]",
			scale, shape, gs, gs, AnchorsPerScale, cfg.Channels())
	}
	return shape[0], nil
}

// rawData returns the float32 backing of a dense tensor.
func rawData(t *tensor.Dense) []float32 {
	return t.Data().([]float32)
}

func sigmoid(x float32) float32 {
	return 1 / (1 + math32.Exp(-x))
}
