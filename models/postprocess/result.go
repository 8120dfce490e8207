// Package postprocess - Postprocessing utilities for models.
package postprocess

import "github.com/nvr-ai/go-yolov4/images"

// Result represents a single detection result.
type Result struct {
	// The bounding box of the result, in original-image coordinates.
	Box images.Rect
	// The combined confidence score (objectness × best class probability).
	Score float32
	// The predicted class index of the result.
	Class int
}
