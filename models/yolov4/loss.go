package yolov4

import (
	"github.com/chewxy/math32"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-yolov4/images"
)

// ScaleTarget is one detection scale's ground truth, produced by the
// external data loader.
type ScaleTarget struct {
	// Label is the dense assignment grid, [batch, gh, gw, anchors,
	// 5+classes]: assigned box in center (x, y, w, h) form and absolute
	// input pixels, objectness indicator, class one-hot. Unassigned cells
	// are all zero.
	Label *tensor.Dense
	// Boxes is the sparse per-image ground-truth list, [batch, maxBoxes, 4]
	// in center form; all-zero rows are padding. Used for the best-match IoU
	// lookup that decides which unassigned cells count as negatives.
	Boxes *tensor.Dense
}

// Losses holds one scale's three loss terms, each summed over the
// grid/anchor/class axes and averaged over the batch.
type Losses struct {
	GIoU float32 // localization
	Conf float32 // objectness
	Prob float32 // classification
}

// Total returns the sum of the three terms.
func (l Losses) Total() float32 {
	return l.GIoU + l.Conf + l.Prob
}

// Add accumulates another scale's terms.
func (l Losses) Add(o Losses) Losses {
	return Losses{GIoU: l.GIoU + o.GIoU, Conf: l.Conf + o.Conf, Prob: l.Prob + o.Prob}
}

// ComputeLoss evaluates one scale's training loss from the raw head output
// (logits), the training-decoded predictions, and the scale's ground truth.
//
//   - Localization: (1 - GIoU(pred, gt)) weighted by 2 - gtArea/inputArea so
//     small boxes count more, on assigned cells only.
//   - Objectness: sigmoid cross-entropy on the raw logit over all cells.
//     Assigned cells always contribute. Unassigned cells contribute with
//     weight 1 only when their predicted box's best IoU against every
//     ground-truth box in the image stays below the IoU loss threshold;
//     near-misses at or above it are excluded rather than punished.
//   - Classification: per-class sigmoid cross-entropy against the one-hot
//     target on assigned cells only.
//
// raw and pred must both be [batch, gh, gw, anchors, 5+classes] for the
// given scale. The function is pure: nothing is retained between calls.
func ComputeLoss(raw, pred *tensor.Dense, target ScaleTarget, cfg Config, scale int) (Losses, error) {
	batch, err := checkRawShape(raw, cfg, scale)
	if err != nil {
		return Losses{}, err
	}
	if _, err := checkRawShape(pred, cfg, scale); err != nil {
		return Losses{}, errors.WithMessage(err, "pred")
	}
	if target.Label == nil || target.Boxes == nil {
		return Losses{}, errors.New("yolov4: scale target missing label grid or box list")
	}
	if _, err := checkRawShape(target.Label, cfg, scale); err != nil {
		return Losses{}, errors.WithMessage(err, "target label")
	}
	boxShape := target.Boxes.Shape()
	if len(boxShape) != 3 || boxShape[0] != batch || boxShape[2] != 4 {
		return Losses{}, errors.Errorf(
			"yolov4: ground-truth boxes have shape %v, want [%d maxBoxes 4]", boxShape, batch)
	}
	maxBoxes := boxShape[1]

	rawS := rawData(raw)
	predS := rawData(pred)
	labelS := rawData(target.Label)
	boxesS := rawData(target.Boxes)

	ch := cfg.Channels()
	gs := cfg.GridSize(scale)
	cellsPerImage := gs * gs * AnchorsPerScale
	inputArea := float32(cfg.InputSize) * float32(cfg.InputSize)

	var total Losses
	for b := 0; b < batch; b++ {
		// Ground-truth corner boxes for this image, padding rows skipped.
		gt := make([]images.Rect, 0, maxBoxes)
		for n := 0; n < maxBoxes; n++ {
			g := (b*maxBoxes + n) * 4
			if boxesS[g+2] <= 0 || boxesS[g+3] <= 0 {
				continue
			}
			gt = append(gt, images.FromCenter(boxesS[g], boxesS[g+1], boxesS[g+2], boxesS[g+3]))
		}

		var giouSum, confSum, probSum float32
		base := b * cellsPerImage * ch
		for cell := 0; cell < cellsPerImage; cell++ {
			o := base + cell*ch
			predBox := images.FromCenter(predS[o], predS[o+1], predS[o+2], predS[o+3])
			assigned := labelS[o+4]

			if assigned > 0 {
				gtBox := images.FromCenter(labelS[o], labelS[o+1], labelS[o+2], labelS[o+3])
				giou := images.CalculateGIoU(predBox, gtBox)
				lossScale := 2 - labelS[o+2]*labelS[o+3]/inputArea
				giouSum += assigned * lossScale * (1 - giou)

				confSum += assigned * bceLogits(rawS[o+4], assigned)
				for c := 0; c < cfg.NumClasses; c++ {
					probSum += assigned * bceLogits(rawS[o+BoxFields+c], labelS[o+BoxFields+c])
				}
				continue
			}

			// Hard-negative mining: an unassigned cell is a confirmed
			// negative only when nothing in the image overlaps it well.
			maxIoU := float32(0)
			for _, g := range gt {
				if iou := images.CalculateIoU(predBox, g); iou > maxIoU {
					maxIoU = iou
				}
			}
			if maxIoU < cfg.IoULossThreshold {
				confSum += bceLogits(rawS[o+4], 0)
			}
		}

		total.GIoU += giouSum
		total.Conf += confSum
		total.Prob += probSum
	}

	n := float32(batch)
	total.GIoU /= n
	total.Conf /= n
	total.Prob /= n
	return total, nil
}

// bceLogits is sigmoid cross-entropy computed from the logit x and target z
// in the numerically stable form max(x,0) - x*z + log(1 + exp(-|x|)).
func bceLogits(x, z float32) float32 {
	return math32.Max(x, 0) - x*z + math32.Log1p(math32.Exp(-math32.Abs(x)))
}
