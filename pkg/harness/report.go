package harness

// Line formats of the console report. The serial monitor parses the same
// strings, so keep both sides in sync through these constants.
const (
	FormatHeader         = "MLSys %s timing test\r\n"
	FormatScenario       = "Test: %s\r\n"
	FormatQuantization   = "Quantization: %d\r\n"
	LineClassification   = "Classification results:"
	FormatLabel          = "    %s: %.5f\r\n"
	FormatAnomaly        = "    anomaly score: %.3f\r\n"
	FormatProgress       = "Running test %d / %d\r\n"
	LineTimingResults    = "Timing results"
	LineSeparator        = "---"
	FormatPreprocessing  = "Pre-processing: %d us\r\n"
	FormatClassification = "Classification: %d us\r\n"
	FormatAnomalyTiming  = "Anomaly: %d us\r\n"
	FormatTotal          = "Total: %d us\r\n"
	FormatTrials         = "Trials: %d / %d, failed: %d\r\n"
	FormatSizeMismatch   = "The size of your 'features' array is not correct. Expected %d items, but had %d\r\n"
)

// Accumulator holds the running sums of one harness run.
type Accumulator struct {
	DSP            int64
	Classification int64
	Anomaly        int64
	Total          int64

	Successful int
	Failed     int
}

// Add records one successful trial.
func (a *Accumulator) Add(t Timing, total int64) {
	a.DSP += t.DSP
	a.Classification += t.Classification
	a.Anomaly += t.Anomaly
	a.Total += total
	a.Successful++
}

// Means integer-divides every sum by the number of successful trials.
func (a *Accumulator) Means() (Timing, int64) {
	if a.Successful == 0 {
		return Timing{}, 0
	}
	n := int64(a.Successful)
	return Timing{
		DSP:            a.DSP / n,
		Classification: a.Classification / n,
		Anomaly:        a.Anomaly / n,
	}, a.Total / n
}

// Report is the outcome of a harness run.
type Report struct {
	Target    string
	Scenario  string
	Quantized bool

	Trials     int // Requested
	Attempts   int // Timed calls made
	Successful int
	Failed     int

	Means     Timing
	MeanTotal int64

	Warmup Result // Classification of the warm-up call
}

// PrintTiming writes the timing block that ends every report.
func (r *Report) PrintTiming(s Sink) {
	s.Printf("\r\n")
	s.Printf(LineTimingResults + "\r\n")
	s.Printf(LineSeparator + "\r\n")
	s.Printf(FormatTrials, r.Successful, r.Trials, r.Failed)
	s.Printf(FormatPreprocessing, r.Means.DSP)
	s.Printf(FormatClassification, r.Means.Classification)
	s.Printf(FormatAnomalyTiming, r.Means.Anomaly)
	s.Printf(FormatTotal, r.MeanTotal)
}

func printHeader(s Sink, cfg *Config) {
	s.Printf(FormatHeader, cfg.Target)
	if cfg.Scenario != "" {
		s.Printf(FormatScenario, cfg.Scenario)
	}
	q := 0
	if cfg.Quantized {
		q = 1
	}
	s.Printf(FormatQuantization, q)
}

func printClassification(s Sink, res *Result) {
	s.Printf(LineClassification + "\r\n")
	for _, c := range res.Classification {
		s.Printf(FormatLabel, c.Label, c.Score)
	}
	if res.HasAnomaly {
		s.Printf(FormatAnomaly, res.Anomaly)
	}
}
