package yolov4

import "github.com/chewxy/math32"

// Schedule is the cosine-decay-with-linear-warmup learning-rate schedule the
// reference trainer uses: a linear ramp from 0 to InitLR over the warmup
// steps, then cosine decay from InitLR down to EndLR over the remainder.
type Schedule struct {
	InitLR      float32 `json:"lr_init" yaml:"lr_init"`
	EndLR       float32 `json:"lr_end" yaml:"lr_end"`
	WarmupSteps int64   `json:"warmup_steps" yaml:"warmup_steps"`
	TotalSteps  int64   `json:"total_steps" yaml:"total_steps"`
}

// NewSchedule builds the reference schedule from epoch counts: warmup is two
// epochs, total is the full run.
func NewSchedule(initLR, endLR float32, stepsPerEpoch, epochs int) Schedule {
	return Schedule{
		InitLR:      initLR,
		EndLR:       endLR,
		WarmupSteps: 2 * int64(stepsPerEpoch),
		TotalSteps:  int64(epochs) * int64(stepsPerEpoch),
	}
}

// DefaultSchedule returns the reference hyperparameters (1e-3 → 1e-6).
func DefaultSchedule(stepsPerEpoch, epochs int) Schedule {
	return NewSchedule(1e-3, 1e-6, stepsPerEpoch, epochs)
}

// At returns the learning rate for a 1-based global step. The two pieces
// meet continuously at the warmup boundary: the ramp ends at InitLR and the
// cosine starts there.
func (s Schedule) At(step int64) float32 {
	if step < s.WarmupSteps {
		return float32(step) / float32(s.WarmupSteps) * s.InitLR
	}
	progress := float32(step-s.WarmupSteps) / float32(s.TotalSteps-s.WarmupSteps)
	return s.EndLR + 0.5*(s.InitLR-s.EndLR)*(1+math32.Cos(progress*math32.Pi))
}
