// Package yolov4 - YOLOv4 detection decode, post-processing, and loss.
package yolov4

import (
	"fmt"

	"github.com/nvr-ai/go-yolov4/models/postprocess"
)

const (
	// ScaleCount is the number of detection scales the network emits.
	ScaleCount = 3
	// AnchorsPerScale is the number of anchor boxes predicted per grid cell.
	AnchorsPerScale = 3
	// BoxFields is the per-anchor channel count before the class logits:
	// tx, ty, tw, th, objectness.
	BoxFields = 5
)

// Anchor is a fixed (width, height) size prior, in pixels at the network's
// native input resolution.
type Anchor struct {
	W float32 `json:"w" yaml:"w"`
	H float32 `json:"h" yaml:"h"`
}

// Config is the static description of the three detection scales plus the
// post-processing and loss parameters. It is fixed at model construction and
// passed explicitly into the decode/loss functions, which keeps them pure.
type Config struct {
	// Square network input resolution in pixels.
	InputSize int `json:"input_size" yaml:"input_size"`
	// Number of object classes the head predicts.
	NumClasses int `json:"num_classes" yaml:"num_classes"`
	// Per-scale downsampling factor relating grid cell to input pixel.
	Strides [ScaleCount]int `json:"strides" yaml:"strides"`
	// Anchor sizes, three per scale, smallest stride first.
	Anchors [ScaleCount][AnchorsPerScale]Anchor `json:"anchors" yaml:"anchors"`
	// Per-scale multiplicative correction on the sigmoid center offset,
	// countering the grid-boundary bias of a plain sigmoid.
	XYScale [ScaleCount]float32 `json:"xy_scale" yaml:"xy_scale"`
	// Candidates scoring below this are dropped (boundary inclusive: equal keeps).
	ScoreThreshold float32 `json:"score_threshold" yaml:"score_threshold"`
	// Non-Max Suppression parameters.
	NMS postprocess.NMSConfig `json:"nms" yaml:"nms"`
	// Unassigned cells whose best IoU against ground truth is below this are
	// trained as negatives; at or above it they are left out of the
	// objectness loss.
	IoULossThreshold float32 `json:"iou_loss_threshold" yaml:"iou_loss_threshold"`
}

// DefaultConfig returns the YOLOv4 reference configuration for the given
// class count: 608×608 input, strides 8/16/32, the nine pretrained anchor
// sizes, and the reference thresholds.
func DefaultConfig(numClasses int) Config {
	return Config{
		InputSize:  608,
		NumClasses: numClasses,
		Strides:    [ScaleCount]int{8, 16, 32},
		Anchors: [ScaleCount][AnchorsPerScale]Anchor{
			{{W: 12, H: 16}, {W: 19, H: 36}, {W: 40, H: 28}},
			{{W: 36, H: 75}, {W: 76, H: 55}, {W: 72, H: 146}},
			{{W: 142, H: 110}, {W: 192, H: 243}, {W: 459, H: 401}},
		},
		XYScale:          [ScaleCount]float32{1.2, 1.1, 1.05},
		ScoreThreshold:   0.25,
		NMS:              postprocess.DefaultNMSConfig(),
		IoULossThreshold: 0.5,
	}
}

// GridSize returns the feature-map side length at the given scale index.
func (c Config) GridSize(scale int) int {
	return c.InputSize / c.Strides[scale]
}

// Channels returns the per-anchor channel count (box fields + class logits).
func (c Config) Channels() int {
	return BoxFields + c.NumClasses
}

// Validate rejects configurations the decode and loss math cannot work with.
func (c Config) Validate() error {
	if c.NumClasses <= 0 {
		return fmt.Errorf("config: num_classes must be positive, got %d", c.NumClasses)
	}
	if c.InputSize <= 0 {
		return fmt.Errorf("config: input_size must be positive, got %d", c.InputSize)
	}
	for i, s := range c.Strides {
		if s <= 0 || c.InputSize%s != 0 {
			return fmt.Errorf("config: stride %d at scale %d does not divide input size %d", s, i, c.InputSize)
		}
	}
	switch c.NMS.Method {
	case postprocess.MethodHard, postprocess.MethodSoft:
	default:
		return fmt.Errorf("config: unknown nms method %q", c.NMS.Method)
	}
	return nil
}
