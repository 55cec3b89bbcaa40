// Package onnx runs a classification model through ONNX Runtime so the
// harness can be exercised on a host.
package onnx

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/chewxy/math32"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/itohio/mlbench/pkg/config"
	"github.com/itohio/mlbench/pkg/harness"
	"github.com/itohio/mlbench/pkg/scenario"
)

// LibraryName is the runtime library looked up next to the model.
const LibraryName = "libonnxruntime.so"

// ErrShape is returned for models this classifier cannot drive.
var ErrShape = errors.New("onnx: unsupported model shape")

// ortEnv manages global ONNX Runtime initialization.
var ortEnv struct {
	once sync.Once
	err  error
}

// initORT initializes the ONNX Runtime environment. Only the first call has
// any effect.
func initORT(libPath string) error {
	ortEnv.once.Do(func() {
		ort.SetSharedLibraryPath(libPath)
		ortEnv.err = ort.InitializeEnvironment()
	})
	return ortEnv.err
}

var _ harness.Classifier = (*Classifier)(nil)

// Layout tells how a frame maps onto the model input tensor.
type Layout int

const (
	// Raw copies the frame into the tensor one to one.
	Raw Layout = iota
	// Interleaved unpacks 0xRRGGBB pixels into HWC order (NHWC models).
	Interleaved
	// Planar unpacks 0xRRGGBB pixels into CHW order (NCHW models).
	Planar
)

// Classifier owns one session with preallocated input and output tensors.
// Pre-processing is the copy (or RGB unpacking) and scaling of the frame into
// the input tensor; classification is the session run. Models have no
// anomaly block.
type Classifier struct {
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
	labels  []string
	scale   float32
	logits  []float32

	layout Layout
	pixels []float32 // Packed frame, image layouts only
}

// New loads the model described by cfg for scenario s. Empty labels fall back
// to the scenario labels, then to "class_<i>". Image scenarios feed models
// with a 3-channel input of the scenario resolution.
func New(cfg *config.ONNXConfig, s scenario.Scenario) (*Classifier, error) {
	libPath := cfg.LibraryPath
	if libPath == "" {
		libPath = filepath.Join(filepath.Dir(cfg.ModelPath), LibraryName)
	}
	if err := initORT(libPath); err != nil {
		return nil, fmt.Errorf("onnx: failed to initialize runtime: %w", err)
	}

	inputs, outputs, err := ort.GetInputOutputInfo(cfg.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to read model info: %w", err)
	}
	if len(inputs) != 1 || len(outputs) == 0 {
		return nil, fmt.Errorf("%w: %d inputs, %d outputs", ErrShape, len(inputs), len(outputs))
	}
	inShape, err := fixedShape(inputs[0].Dimensions)
	if err != nil {
		return nil, fmt.Errorf("input %q: %w", inputs[0].Name, err)
	}
	outShape, err := fixedShape(outputs[0].Dimensions)
	if err != nil {
		return nil, fmt.Errorf("output %q: %w", outputs[0].Name, err)
	}

	input, err := ort.NewEmptyTensor[float32](inShape)
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to create input tensor: %w", err)
	}
	output, err := ort.NewEmptyTensor[float32](outShape)
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("onnx: failed to create output tensor: %w", err)
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("onnx: failed to create session options: %w", err)
	}
	defer opts.Destroy()
	if cfg.IntraOpThreads > 0 {
		opts.SetIntraOpNumThreads(cfg.IntraOpThreads)
	}
	opts.SetInterOpNumThreads(1)

	session, err := ort.NewAdvancedSession(
		cfg.ModelPath,
		[]string{inputs[0].Name},
		[]string{outputs[0].Name},
		[]ort.Value{input},
		[]ort.Value{output},
		opts,
	)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("onnx: failed to create session: %w", err)
	}

	classes := int(outShape.FlattenedSize())
	scale := cfg.Scale
	if scale == 0 {
		scale = 1
	}
	c := &Classifier{
		session: session,
		input:   input,
		output:  output,
		labels:  Labels(classes, cfg.Labels, s.Labels),
		scale:   scale,
		logits:  make([]float32, classes),
		layout:  DetectLayout(inShape, s),
	}
	if c.layout != Raw {
		c.pixels = make([]float32, s.FrameSize)
	}
	return c, nil
}

// DetectLayout picks how frames of s fill a model input of the given shape.
// A packed image frame is unpacked when the input holds exactly three
// channels per pixel, channel-last unless the second dimension is 3.
func DetectLayout(shape ort.Shape, s scenario.Scenario) Layout {
	if s.Kind != scenario.Image || len(shape) < 3 || shape.FlattenedSize() != 3*int64(s.FrameSize) {
		return Raw
	}
	if shape[len(shape)-1] == 3 {
		return Interleaved
	}
	if shape[1] == 3 {
		return Planar
	}
	return Raw
}

// FrameSize is the number of frame samples the model consumes: one per
// pixel for image layouts, the flattened input size otherwise.
func (c *Classifier) FrameSize() int {
	if c.layout != Raw {
		return len(c.pixels)
	}
	return len(c.input.GetData())
}

// Labels returns the class names.
func (c *Classifier) Labels() []string {
	return c.labels
}

// Classify implements harness.Classifier.
func (c *Classifier) Classify(sig *harness.Signal, res *harness.Result, debug bool) error {
	start := time.Now()
	data := c.input.GetData()
	if c.layout == Raw {
		if err := sig.Get(0, len(data), data); err != nil {
			return err
		}
	} else {
		if err := sig.Get(0, len(c.pixels), c.pixels); err != nil {
			return err
		}
		unpackRGB(data, c.pixels, c.layout == Planar)
	}
	if c.scale != 1 {
		for i := range data {
			data[i] *= c.scale
		}
	}
	res.Timing.DSP = time.Since(start).Microseconds()

	start = time.Now()
	if err := c.session.Run(); err != nil {
		return fmt.Errorf("onnx: inference failed: %w", err)
	}
	res.Timing.Classification = time.Since(start).Microseconds()

	copy(c.logits, c.output.GetData())
	Softmax(c.logits)
	for i, p := range c.logits {
		res.Classification = append(res.Classification, harness.LabelScore{Label: c.labels[i], Score: p})
	}
	return nil
}

// Close releases the session and its tensors.
func (c *Classifier) Close() error {
	err := c.session.Destroy()
	c.input.Destroy()
	c.output.Destroy()
	return err
}

// unpackRGB splits 0xRRGGBB pixels of src into 0..255 channel values in dst,
// which must hold 3*len(src) values.
func unpackRGB(dst, src []float32, planar bool) {
	n := len(src)
	for i, v := range src {
		p := uint32(v)
		r, g, b := float32(p>>16&0xFF), float32(p>>8&0xFF), float32(p&0xFF)
		if planar {
			dst[i], dst[n+i], dst[2*n+i] = r, g, b
		} else {
			dst[3*i], dst[3*i+1], dst[3*i+2] = r, g, b
		}
	}
}

// fixedShape replaces a dynamic batch dimension with 1 and rejects any other
// dynamic dimension.
func fixedShape(dims ort.Shape) (ort.Shape, error) {
	if len(dims) == 0 {
		return nil, fmt.Errorf("%w: scalar tensor", ErrShape)
	}
	shape := make(ort.Shape, len(dims))
	for i, d := range dims {
		switch {
		case d > 0:
			shape[i] = d
		case i == 0:
			shape[i] = 1
		default:
			return nil, fmt.Errorf("%w: dynamic dimension %d in %v", ErrShape, i, dims)
		}
	}
	return shape, nil
}

// Labels picks n class names from the first list of exactly n entries.
func Labels(n int, lists ...[]string) []string {
	for _, l := range lists {
		if len(l) == n {
			return append([]string(nil), l...)
		}
	}
	labels := make([]string, n)
	for i := range labels {
		labels[i] = "class_" + strconv.Itoa(i)
	}
	return labels
}

// Softmax normalizes x in place. Inputs that already sum to one are left
// untouched up to rounding.
func Softmax(x []float32) {
	if len(x) == 0 {
		return
	}
	if isDistribution(x) {
		return
	}
	mx := x[0]
	for _, v := range x[1:] {
		mx = math32.Max(mx, v)
	}
	var sum float32
	for i, v := range x {
		x[i] = math32.Exp(v - mx)
		sum += x[i]
	}
	for i := range x {
		x[i] /= sum
	}
}

func isDistribution(x []float32) bool {
	var sum float32
	for _, v := range x {
		if v < 0 || v > 1 {
			return false
		}
		sum += v
	}
	return math32.Abs(sum-1) < 1e-4
}
