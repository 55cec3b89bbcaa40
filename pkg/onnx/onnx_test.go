package onnx

import (
	"context"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/itohio/mlbench/pkg/config"
	"github.com/itohio/mlbench/pkg/harness"
	"github.com/itohio/mlbench/pkg/scenario"
)

func TestSoftmax(t *testing.T) {
	x := []float32{1, 2, 3}
	Softmax(x)

	var sum float32
	for _, v := range x {
		sum += v
	}
	assert.InDelta(t, 1.0, sum, 1e-5)
	assert.Greater(t, x[2], x[1])
	assert.Greater(t, x[1], x[0])
	assert.InDelta(t, 0.66524, x[2], 1e-4)
}

func TestSoftmax_Probabilities(t *testing.T) {
	x := []float32{0.25, 0.75}
	Softmax(x)
	assert.Equal(t, []float32{0.25, 0.75}, x)
}

func TestSoftmax_LargeLogits(t *testing.T) {
	x := []float32{1000, 1000}
	Softmax(x)
	assert.InDelta(t, 0.5, x[0], 1e-6)
	assert.InDelta(t, 0.5, x[1], 1e-6)
}

func TestLabels(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, Labels(2, nil, []string{"x"}, []string{"a", "b"}))
	assert.Equal(t, []string{"class_0", "class_1", "class_2"}, Labels(3, []string{"a"}))
}

func TestFixedShape(t *testing.T) {
	s, err := fixedShape(ort.NewShape(-1, 49, 10))
	require.NoError(t, err)
	assert.Equal(t, ort.NewShape(1, 49, 10), s)
	assert.EqualValues(t, 490, s.FlattenedSize())

	_, err = fixedShape(ort.NewShape(1, -1))
	assert.ErrorIs(t, err, ErrShape)

	_, err = fixedShape(nil)
	assert.ErrorIs(t, err, ErrShape)
}

func TestDetectLayout(t *testing.T) {
	vww, err := scenario.Lookup(scenario.VWW)
	require.NoError(t, err)
	kws, err := scenario.Lookup(scenario.KWS)
	require.NoError(t, err)

	tests := []struct {
		name  string
		shape ort.Shape
		s     scenario.Scenario
		want  Layout
	}{
		{"nhwc", ort.NewShape(1, 96, 96, 3), vww, Interleaved},
		{"nchw", ort.NewShape(1, 3, 96, 96), vww, Planar},
		{"packed pixels", ort.NewShape(1, 9216), vww, Raw},
		{"other resolution", ort.NewShape(1, 32, 32, 3), vww, Raw},
		{"audio", ort.NewShape(1, 16000), kws, Raw},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectLayout(tt.shape, tt.s))
		})
	}
}

func TestUnpackRGB(t *testing.T) {
	src := []float32{float32(0x102030), float32(0xFF007F)}

	dst := make([]float32, 6)
	unpackRGB(dst, src, false)
	assert.Equal(t, []float32{0x10, 0x20, 0x30, 0xFF, 0x00, 0x7F}, dst)

	unpackRGB(dst, src, true)
	assert.Equal(t, []float32{0x10, 0xFF, 0x20, 0x00, 0x30, 0x7F}, dst)
}

func TestUnpackRGB_SynthesizedFrame(t *testing.T) {
	img, err := scenario.Lookup(scenario.IMG)
	require.NoError(t, err)
	frame := scenario.Synthesize(img)

	dst := make([]float32, 3*len(frame))
	unpackRGB(dst, frame, false)

	// Bottom-right pixel of the gradient is full red and green.
	last := dst[len(dst)-3:]
	assert.Equal(t, []float32{255, 255, 255}, last)
	for _, v := range dst {
		assert.True(t, v >= 0 && v <= 255)
	}
}

func TestClassifier_Model(t *testing.T) {
	path := os.Getenv("MLBENCH_ONNX_MODEL")
	if path == "" {
		t.Skip("MLBENCH_ONNX_MODEL not set, skipping integration test")
	}
	if _, err := os.Stat(path); err != nil {
		t.Skip("ONNX model not available, skipping integration test")
	}

	c, err := New(&config.ONNXConfig{ModelPath: path, IntraOpThreads: 1, Scale: 1}, scenario.Scenario{})
	require.NoError(t, err)
	defer c.Close()

	cfg := harness.DefaultConfig()
	cfg.Trials = 5
	cfg.StartupDelay = 0
	cfg.YieldInterval = 0
	h := harness.New(c, nil, nil, harness.WriterSink{W: io.Discard}, cfg)

	report, err := h.Run(context.Background(), make(harness.FeatureBuffer, c.FrameSize()))
	require.NoError(t, err)
	assert.Equal(t, 5, report.Successful)
	assert.Len(t, report.Warmup.Classification, len(c.Labels()))
	assert.Zero(t, report.Means.Anomaly)
}
