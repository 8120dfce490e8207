package main

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-yolov4/models/postprocess"
)

// drawDetections paints boxes and "name score" labels onto the frame.
func drawDetections(frame *gocv.Mat, results []postprocess.Result, names []string) {
	for _, r := range results {
		col := classColor(r.Class, len(names))
		rect := image.Rect(int(r.Box.X1), int(r.Box.Y1), int(r.Box.X2), int(r.Box.Y2))
		gocv.Rectangle(frame, rect, col, 2)

		label := fmt.Sprintf("#%d %.2f", r.Class, r.Score)
		if r.Class >= 0 && r.Class < len(names) {
			label = fmt.Sprintf("%s %.2f", names[r.Class], r.Score)
		}
		origin := image.Pt(rect.Min.X, rect.Min.Y-4)
		if origin.Y < 12 {
			origin.Y = rect.Min.Y + 14
		}
		gocv.PutText(frame, label, origin, gocv.FontHersheySimplex, 0.5, col, 1)
	}
}

// classColor spreads class ids around the hue circle so neighboring ids get
// visibly different box colors.
func classColor(class, total int) color.RGBA {
	if total <= 0 {
		total = 1
	}
	h := float64(class%total) / float64(total) * 360
	x := 1 - math.Abs(math.Mod(h/60, 2)-1)

	var r, g, b float64
	switch {
	case h < 60:
		r, g, b = 1, x, 0
	case h < 120:
		r, g, b = x, 1, 0
	case h < 180:
		r, g, b = 0, 1, x
	case h < 240:
		r, g, b = 0, x, 1
	case h < 300:
		r, g, b = x, 0, 1
	default:
		r, g, b = 1, 0, x
	}
	return color.RGBA{R: uint8(r * 255), G: uint8(g * 255), B: uint8(b * 255)}
}
