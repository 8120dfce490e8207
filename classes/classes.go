// Package classes - class-name tables for detection output labeling.
package classes

import (
	"bufio"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// Load reads a class-name file, one name per line, blank lines skipped.
// The line index is the class id the model predicts.
func Load(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "classes: opening name file")
	}
	defer f.Close()

	var names []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		name := strings.TrimSpace(scanner.Text())
		if name == "" {
			continue
		}
		names = append(names, name)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "classes: reading name file")
	}
	if len(names) == 0 {
		return nil, errors.Errorf("classes: no names in %s", path)
	}
	return names, nil
}

// COCO returns the 80 COCO class names in model id order.
func COCO() []string {
	return []string{
		"person", "bicycle", "car", "motorbike", "aeroplane", "bus", "train",
		"truck", "boat", "traffic light", "fire hydrant", "stop sign",
		"parking meter", "bench", "bird", "cat", "dog", "horse", "sheep",
		"cow", "elephant", "bear", "zebra", "giraffe", "backpack", "umbrella",
		"handbag", "tie", "suitcase", "frisbee", "skis", "snowboard",
		"sports ball", "kite", "baseball bat", "baseball glove", "skateboard",
		"surfboard", "tennis racket", "bottle", "wine glass", "cup", "fork",
		"knife", "spoon", "bowl", "banana", "apple", "sandwich", "orange",
		"broccoli", "carrot", "hot dog", "pizza", "donut", "cake", "chair",
		"sofa", "pottedplant", "bed", "diningtable", "toilet", "tvmonitor",
		"laptop", "mouse", "remote", "keyboard", "cell phone", "microwave",
		"oven", "toaster", "sink", "refrigerator", "book", "clock", "vase",
		"scissors", "teddy bear", "hair drier", "toothbrush",
	}
}
