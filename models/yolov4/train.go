package yolov4

import (
	"log"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// Optimizer applies one gradient step at a given learning rate. The actual
// gradient computation and parameter storage live with the network
// implementation; the trainer only tells it when to step and at what rate.
type Optimizer interface {
	Step(lr float32) error
}

// StepLosses reports one training step's losses and schedule state.
type StepLosses struct {
	GIoU  float32
	Conf  float32
	Prob  float32
	Total float32
	LR    float32
	Step  int64
}

// Trainer drives the loss contract over training steps: per-scale loss
// computation, term summation, learning-rate scheduling, and the optimizer
// callout. Dataset iteration, layer freezing, and checkpointing stay with
// the caller.
type Trainer struct {
	cfg   Config
	sched Schedule
	opt   Optimizer
	step  int64

	// Logf receives the per-step progress line. Defaults to log.Printf;
	// set to nil to silence.
	Logf func(format string, v ...any)
}

// NewTrainer validates the configuration and returns a trainer starting at
// step zero. opt may be nil when only loss evaluation is wanted (e.g. a
// validation pass).
func NewTrainer(cfg Config, sched Schedule, opt Optimizer) (*Trainer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Trainer{cfg: cfg, sched: sched, opt: opt, Logf: log.Printf}, nil
}

// GlobalStep returns the number of training steps taken so far.
func (t *Trainer) GlobalStep() int64 {
	return t.step
}

// TrainStep computes the three loss terms across all scales for one batch,
// advances the global step, updates the learning rate per the schedule, and
// hands the rate to the optimizer. raw and pred hold one tensor per scale in
// stride order (raw logits and training-decoded predictions respectively);
// targets pairs each scale with its dense grid and sparse box list.
func (t *Trainer) TrainStep(raw, pred []*tensor.Dense, targets []ScaleTarget) (StepLosses, error) {
	sum, err := t.evaluate(raw, pred, targets)
	if err != nil {
		return StepLosses{}, err
	}

	t.step++
	lr := t.sched.At(t.step)
	if t.opt != nil {
		if err := t.opt.Step(lr); err != nil {
			return StepLosses{}, errors.Wrap(err, "optimizer step")
		}
	}

	res := StepLosses{
		GIoU:  sum.GIoU,
		Conf:  sum.Conf,
		Prob:  sum.Prob,
		Total: sum.Total(),
		LR:    lr,
		Step:  t.step,
	}
	if t.Logf != nil {
		t.Logf("=> STEP %4d   lr: %.6f   giou_loss: %4.2f   conf_loss: %4.2f   prob_loss: %4.2f   total_loss: %4.2f",
			res.Step, res.LR, res.GIoU, res.Conf, res.Prob, res.Total)
	}
	return res, nil
}

// TestStep evaluates the loss without touching the step counter, learning
// rate, or optimizer.
func (t *Trainer) TestStep(raw, pred []*tensor.Dense, targets []ScaleTarget) (StepLosses, error) {
	sum, err := t.evaluate(raw, pred, targets)
	if err != nil {
		return StepLosses{}, err
	}
	return StepLosses{
		GIoU:  sum.GIoU,
		Conf:  sum.Conf,
		Prob:  sum.Prob,
		Total: sum.Total(),
		LR:    t.sched.At(t.step),
		Step:  t.step,
	}, nil
}

func (t *Trainer) evaluate(raw, pred []*tensor.Dense, targets []ScaleTarget) (Losses, error) {
	if len(raw) != ScaleCount || len(pred) != ScaleCount || len(targets) != ScaleCount {
		return Losses{}, errors.Errorf(
			"yolov4: want %d tensors per argument, got raw=%d pred=%d targets=%d",
			ScaleCount, len(raw), len(pred), len(targets))
	}
	var sum Losses
	for i := 0; i < ScaleCount; i++ {
		l, err := ComputeLoss(raw[i], pred[i], targets[i], t.cfg, i)
		if err != nil {
			return Losses{}, errors.WithMessagef(err, "scale %d", i)
		}
		sum = sum.Add(l)
	}
	return sum, nil
}
