package yolov4

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nvr-ai/go-yolov4/models/postprocess"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig(80)
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, 608, cfg.InputSize)
	assert.Equal(t, 85, cfg.Channels())
	assert.Equal(t, [ScaleCount]int{8, 16, 32}, cfg.Strides)
	assert.Equal(t, 76, cfg.GridSize(0))
	assert.Equal(t, 38, cfg.GridSize(1))
	assert.Equal(t, 19, cfg.GridSize(2))
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "No classes", mutate: func(c *Config) { c.NumClasses = 0 }},
		{name: "Zero input", mutate: func(c *Config) { c.InputSize = 0 }},
		{name: "Stride does not divide input", mutate: func(c *Config) { c.Strides[1] = 17 }},
		{name: "Unknown NMS method", mutate: func(c *Config) { c.NMS.Method = postprocess.Method("fuzzy") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig(80)
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
