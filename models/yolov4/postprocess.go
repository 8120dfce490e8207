package yolov4

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-yolov4/images"
	"github.com/nvr-ai/go-yolov4/models/postprocess"
)

// Detector turns raw multi-scale network output into final detections. It
// holds only configuration; every call is a pure function of its inputs.
type Detector struct {
	cfg Config
}

// NewDetector validates the configuration and returns a detector.
func NewDetector(cfg Config) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Detector{cfg: cfg}, nil
}

// Config returns the detector's configuration.
func (d *Detector) Config() Config {
	return d.cfg
}

// Detect runs the full inference post-processing chain for one frame: decode
// each scale, aggregate, score-filter, and suppress. raw must hold one
// batch-1 output tensor per scale in stride order; orgW/orgH are the
// original frame dimensions before letterbox preprocessing.
//
// Returns the surviving detections in original-image coordinates.
func (d *Detector) Detect(raw []*tensor.Dense, orgW, orgH int) ([]postprocess.Result, error) {
	if len(raw) != ScaleCount {
		return nil, errors.Errorf("yolov4: want %d raw output tensors, got %d", ScaleCount, len(raw))
	}
	decoded := make([]*tensor.Dense, ScaleCount)
	for i, r := range raw {
		dec, err := DecodeInference(r, d.cfg, i)
		if err != nil {
			return nil, err
		}
		decoded[i] = dec
	}
	return d.PostProcess(decoded, orgW, orgH)
}

// PostProcess aggregates inference-decoded scales into candidate detections
// and suppresses duplicates. Each tensor must be [1, N_i, 5+classes]; batch
// post-processing is a per-frame affair so batch sizes above 1 are rejected.
//
// Candidates are built by:
//   - converting (center, size) to corner form,
//   - projecting from network-input coordinates back to the original image,
//     undoing the letterbox padding,
//   - clipping to the image and discarding empty or fully-outside boxes,
//   - scoring as objectness × best class probability and dropping scores
//     below the threshold (a score equal to the threshold is kept).
func (d *Detector) PostProcess(decoded []*tensor.Dense, orgW, orgH int) ([]postprocess.Result, error) {
	if len(decoded) != ScaleCount {
		return nil, errors.Errorf("yolov4: want %d decoded tensors, got %d", ScaleCount, len(decoded))
	}

	ch := d.cfg.Channels()
	lb := images.FitLetterbox(d.cfg.InputSize, orgW, orgH)
	w := float32(orgW)
	h := float32(orgH)

	var candidates []postprocess.Result
	for i, t := range decoded {
		shape := t.Shape()
		if len(shape) != 3 || shape[0] != 1 || shape[2] != ch {
			return nil, errors.Errorf(
				"yolov4: decoded tensor at scale %d has shape %v, want [1 n %d]", i, shape, ch)
		}
		data := rawData(t)
		for o := 0; o < len(data); o += ch {
			box := lb.ToOriginal(images.FromCenter(data[o], data[o+1], data[o+2], data[o+3]))
			box = box.Clip(w, h)
			if box.Area() <= 0 {
				continue
			}

			class := 0
			best := data[o+BoxFields]
			for c := 1; c < d.cfg.NumClasses; c++ {
				if p := data[o+BoxFields+c]; p > best {
					best = p
					class = c
				}
			}
			score := data[o+4] * best
			if score < d.cfg.ScoreThreshold {
				continue
			}
			candidates = append(candidates, postprocess.Result{Box: box, Score: score, Class: class})
		}
	}

	return postprocess.Apply(candidates, d.cfg.NMS), nil
}
