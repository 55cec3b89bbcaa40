//go:build tinygo && eisdk

package main

/*
#include "shim/ei_shim.h"
*/
import "C"

import (
	"unsafe"

	"github.com/itohio/mlbench/pkg/harness"
	"github.com/itohio/mlbench/pkg/scenario"
)

// current is the signal of the classification in flight. The SDK pulls
// samples from it through mlbench_get_data.
var current *harness.Signal

//export mlbench_get_data
func mlbenchGetData(offset, length C.size_t, out *C.float) C.int {
	if current == nil {
		return -1
	}
	dst := unsafe.Slice((*float32)(unsafe.Pointer(out)), int(length))
	if err := current.Get(int(offset), int(length), dst); err != nil {
		return -1
	}
	return 0
}

// sdkClassifier drives the inference SDK linked into the image.
type sdkClassifier struct {
	labels []string
	res    C.ei_shim_result_t
}

func newClassifier(scenario.Scenario) classifier {
	n := int(C.ei_shim_label_count())
	labels := make([]string, n)
	for i := range labels {
		labels[i] = C.GoString(C.ei_shim_label(C.int(i)))
	}
	return &sdkClassifier{labels: labels}
}

func (c *sdkClassifier) FrameSize() int {
	return int(C.ei_shim_frame_size())
}

func (c *sdkClassifier) Quantized() bool {
	return C.ei_shim_quantized() != 0
}

func (c *sdkClassifier) Classify(sig *harness.Signal, res *harness.Result, debug bool) error {
	var dbg C.int
	if debug {
		dbg = 1
	}

	current = sig
	status := C.ei_shim_run(C.size_t(sig.TotalLength), dbg, &c.res)
	current = nil
	if status != 0 {
		return &harness.StatusError{Code: int(status)}
	}

	for i, label := range c.labels {
		res.Classification = append(res.Classification, harness.LabelScore{
			Label: label,
			Score: float32(c.res.scores[i]),
		})
	}
	if C.ei_shim_has_anomaly() != 0 {
		res.HasAnomaly = true
		res.Anomaly = float32(c.res.anomaly)
	}
	res.Timing = harness.Timing{
		DSP:            int64(c.res.dsp_us),
		Classification: int64(c.res.classification_us),
		Anomaly:        int64(c.res.anomaly_us),
	}
	return nil
}
