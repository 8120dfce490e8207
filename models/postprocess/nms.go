// Package postprocess - provides Non-Maximum Suppression for detection results.
package postprocess

import (
	"github.com/chewxy/math32"

	"github.com/nvr-ai/go-yolov4/images"
)

// Method selects the suppression rule applied to overlapping boxes.
type Method string

const (
	// MethodHard removes an overlapping candidate outright once its IoU with
	// a kept detection reaches the threshold.
	MethodHard Method = "nms"
	// MethodSoft decays an overlapping candidate's score by a Gaussian factor
	// instead of removing it; candidates only drop out once their decayed
	// score falls below scoreEpsilon.
	MethodSoft Method = "soft-nms"
)

// Candidates whose soft-decayed score falls below this are discarded before
// the next max-pick. Kept strictly positive so a fully-overlapping box
// (IoU 1.0) with a Gaussian weight that never reaches exact zero still dies.
const scoreEpsilon = 1e-6

// NMSConfig defines parameters for Non-Maximum Suppression.
type NMSConfig struct {
	// Suppression rule, MethodHard or MethodSoft.
	Method Method `json:"method" yaml:"method"`
	// Overlap threshold for hard suppression.
	IoUThreshold float32 `json:"iou_threshold" yaml:"iou_threshold"`
	// Gaussian decay width for soft suppression.
	Sigma float32 `json:"sigma" yaml:"sigma"`
}

// DefaultNMSConfig returns the YOLOv4 reference parameters.
func DefaultNMSConfig() NMSConfig {
	return NMSConfig{
		Method:       MethodHard,
		IoUThreshold: 0.213,
		Sigma:        0.3,
	}
}

// Apply filters overlapping detections class by class. Suppression never
// crosses class boundaries: two overlapping boxes of different classes both
// survive. Classes are processed in first-seen input order and within a
// class the usual greedy highest-score-first loop runs, so the output is
// deterministic for any input ordering, including tied scores (the earliest
// of equal-score candidates wins).
//
// Arguments:
//   - detections: Candidate detections, any order.
//   - config: NMS configuration.
//
// Returns:
//   - Filtered slice of detections. If no detections are provided, returns nil.
func Apply(detections []Result, config NMSConfig) []Result {
	if len(detections) == 0 {
		return nil
	}

	// Bucket by class, preserving input order inside each bucket.
	order := make([]int, 0, 8)
	byClass := make(map[int][]Result, 8)
	for _, d := range detections {
		if _, ok := byClass[d.Class]; !ok {
			order = append(order, d.Class)
		}
		byClass[d.Class] = append(byClass[d.Class], d)
	}

	filtered := make([]Result, 0, len(detections))
	for _, class := range order {
		filtered = append(filtered, suppressClass(byClass[class], config)...)
	}
	return filtered
}

// suppressClass runs one greedy suppression pass over same-class candidates.
func suppressClass(candidates []Result, config NMSConfig) []Result {
	work := make([]Result, len(candidates))
	copy(work, candidates)

	kept := make([]Result, 0, len(work))
	for len(work) > 0 {
		// Strictly-greater comparison keeps the earliest of tied scores,
		// making tie-breaking stable in input order.
		best := 0
		for i := 1; i < len(work); i++ {
			if work[i].Score > work[best].Score {
				best = i
			}
		}
		anchor := work[best]
		kept = append(kept, anchor)

		next := make([]Result, 0, len(work)-1)
		for i, d := range work {
			if i == best {
				continue
			}
			iou := images.CalculateIoU(anchor.Box, d.Box)
			switch config.Method {
			case MethodSoft:
				d.Score *= math32.Exp(-(iou * iou) / config.Sigma)
				if d.Score < scoreEpsilon {
					continue
				}
			default:
				if iou >= config.IoUThreshold {
					continue
				}
			}
			next = append(next, d)
		}
		work = next
	}
	return kept
}
