package yolov4

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

// recordingOptimizer captures the learning rates handed to Step.
type recordingOptimizer struct {
	rates []float32
}

func (o *recordingOptimizer) Step(lr float32) error {
	o.rates = append(o.rates, lr)
	return nil
}

func trainInputs(cfg Config) (raw, pred []*tensor.Dense, targets []ScaleTarget) {
	raw = make([]*tensor.Dense, ScaleCount)
	pred = make([]*tensor.Dense, ScaleCount)
	targets = make([]ScaleTarget, ScaleCount)
	for i := 0; i < ScaleCount; i++ {
		raw[i] = zeroRaw(cfg, i, 1)
		p, err := DecodeTrain(raw[i], cfg, i)
		if err != nil {
			panic(err)
		}
		pred[i] = p
		targets[i] = zeroTarget(cfg, i, 1, 4)
	}
	return raw, pred, targets
}

func TestTrainer_StepAdvancesScheduleAndOptimizer(t *testing.T) {
	cfg := testConfig()
	sched := DefaultSchedule(10, 5) // warmup 20
	opt := &recordingOptimizer{}

	tr, err := NewTrainer(cfg, sched, opt)
	require.NoError(t, err)
	tr.Logf = nil

	raw, pred, targets := trainInputs(cfg)
	for i := 1; i <= 3; i++ {
		res, err := tr.TrainStep(raw, pred, targets)
		require.NoError(t, err)
		assert.Equal(t, int64(i), res.Step)
		assert.InDelta(t, float64(sched.At(int64(i))), float64(res.LR), 1e-9)
		assert.InDelta(t, float64(res.GIoU+res.Conf+res.Prob), float64(res.Total), 1e-5)
	}

	require.Len(t, opt.rates, 3)
	assert.Less(t, opt.rates[0], opt.rates[1], "warmup rates should climb")
	assert.Equal(t, int64(3), tr.GlobalStep())
}

func TestTrainer_TestStepLeavesStateAlone(t *testing.T) {
	cfg := testConfig()
	opt := &recordingOptimizer{}
	tr, err := NewTrainer(cfg, DefaultSchedule(10, 5), opt)
	require.NoError(t, err)
	tr.Logf = nil

	raw, pred, targets := trainInputs(cfg)
	res, err := tr.TestStep(raw, pred, targets)
	require.NoError(t, err)

	assert.Equal(t, int64(0), res.Step)
	assert.Empty(t, opt.rates)
	assert.Equal(t, int64(0), tr.GlobalStep())
}

// TestTrainer_SumsScales plants a cost on a single scale and verifies it
// shows up in the cross-scale sum.
func TestTrainer_SumsScales(t *testing.T) {
	cfg := testConfig()
	tr, err := NewTrainer(cfg, DefaultSchedule(10, 5), nil)
	require.NoError(t, err)
	tr.Logf = nil

	raw, pred, targets := trainInputs(cfg)
	base, err := tr.TestStep(raw, pred, targets)
	require.NoError(t, err)

	perScale := make([]Losses, ScaleCount)
	for i := 0; i < ScaleCount; i++ {
		l, err := ComputeLoss(raw[i], pred[i], targets[i], cfg, i)
		require.NoError(t, err)
		perScale[i] = l
	}
	var want float32
	for _, l := range perScale {
		want += l.Total()
	}
	assert.InDelta(t, float64(want), float64(base.Total), 1e-4)
}

func TestTrainer_RejectsShortArguments(t *testing.T) {
	cfg := testConfig()
	tr, err := NewTrainer(cfg, DefaultSchedule(10, 5), nil)
	require.NoError(t, err)
	tr.Logf = nil

	raw, pred, targets := trainInputs(cfg)
	_, err = tr.TrainStep(raw[:2], pred, targets)
	assert.Error(t, err)
	_, err = tr.TrainStep(raw, pred[:1], targets)
	assert.Error(t, err)
	_, err = tr.TrainStep(raw, pred, targets[:0])
	assert.Error(t, err)
}
