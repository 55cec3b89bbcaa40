package harness

// FeatureBuffer is a fixed frame of raw feature samples. It is treated as
// immutable once handed to the harness.
type FeatureBuffer []float32

// LabelScore is one output class of a classification.
type LabelScore struct {
	Label string
	Score float32
}

// Timing holds the stage durations reported by the classifier itself, in
// microseconds.
type Timing struct {
	DSP            int64 // Pre-processing / feature extraction
	Classification int64
	Anomaly        int64
}

// Result is populated by a Classifier on every call.
type Result struct {
	Classification []LabelScore
	Anomaly        float32
	HasAnomaly     bool // Only set when the loaded model has an anomaly block
	Timing         Timing
}

// Reset zeroes the result while keeping the label slice capacity.
func (r *Result) Reset() {
	r.Classification = r.Classification[:0]
	r.Anomaly = 0
	r.HasAnomaly = false
	r.Timing = Timing{}
}

// Clone returns a deep copy of the result.
func (r *Result) Clone() Result {
	c := *r
	c.Classification = make([]LabelScore, len(r.Classification))
	copy(c.Classification, r.Classification)
	return c
}

// Classifier is the external inference engine. Classify must populate res for
// the frame read through sig; a non-nil error marks the call as failed.
type Classifier interface {
	FrameSize() int
	Classify(sig *Signal, res *Result, debug bool) error
}

// Trial describes one timed classifier invocation.
type Trial struct {
	Index  int    // 1-based attempt number
	Timing Timing // Stage durations reported by the classifier
	Total  int64  // Wall clock measured by the harness, us
	Err    error
}

// Observer receives every timed trial, failed ones included.
type Observer interface {
	ObserveTrial(t Trial)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(t Trial)

// ObserveTrial calls f(t).
func (f ObserverFunc) ObserveTrial(t Trial) {
	f(t)
}
