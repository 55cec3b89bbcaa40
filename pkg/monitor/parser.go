package monitor

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/itohio/mlbench/pkg/harness"
)

// Event is either a completed report or a run that aborted on the board.
type Event struct {
	Report *harness.Report
	Err    error
}

// Parser turns console lines printed by the harness back into reports.
// Unrecognized lines are ignored.
type Parser struct {
	cur      *harness.Report
	inLabels bool
}

// NewParser returns a parser waiting for a report header.
func NewParser() *Parser {
	return &Parser{}
}

func format(f string) string {
	return strings.TrimSuffix(f, "\r\n")
}

// Feed consumes one line and returns an event when a report completes.
func (p *Parser) Feed(line string) *Event {
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return nil
	}

	var (
		s    string
		n, m int
		k    int
		v    int64
	)

	if strings.HasPrefix(line, "MLSys ") && strings.HasSuffix(line, " timing test") {
		p.cur = &harness.Report{
			Target: strings.TrimSuffix(strings.TrimPrefix(line, "MLSys "), " timing test"),
		}
		p.inLabels = false
		return nil
	}
	if p.cur == nil {
		return nil
	}

	if p.inLabels && strings.HasPrefix(line, "    ") {
		p.parseLabel(strings.TrimSpace(line))
		return nil
	}
	p.inLabels = false

	switch {
	case line == harness.LineClassification:
		p.inLabels = true
		p.cur.Warmup = harness.Result{}
	case scan(line, format(harness.FormatScenario), &s):
		p.cur.Scenario = s
	case scan(line, format(harness.FormatQuantization), &n):
		p.cur.Quantized = n != 0
	case scan(line, format(harness.FormatProgress), &n, &m):
		p.cur.Trials = m
	case scan(line, format(harness.FormatTrials), &n, &m, &k):
		p.cur.Successful = n
		p.cur.Trials = m
		p.cur.Failed = k
		p.cur.Attempts = n + k
	case scan(line, format(harness.FormatPreprocessing), &v):
		p.cur.Means.DSP = v
	case scan(line, format(harness.FormatClassification), &v):
		p.cur.Means.Classification = v
	case scan(line, format(harness.FormatAnomalyTiming), &v):
		p.cur.Means.Anomaly = v
	case scan(line, format(harness.FormatTotal), &v):
		p.cur.MeanTotal = v
		r := p.cur
		p.cur = nil
		return &Event{Report: r}
	case scan(line, format(harness.FormatSizeMismatch), &n, &m):
		p.cur = nil
		return &Event{Err: &harness.FrameSizeError{Expected: n, Actual: m}}
	case strings.HasPrefix(line, "Warm-up failed: "):
		p.cur = nil
		return &Event{Err: fmt.Errorf("%w: %s", harness.ErrWarmup, strings.TrimPrefix(line, "Warm-up failed: "))}
	}
	return nil
}

// parseLabel handles "label: 0.12345" and "anomaly score: 0.123".
func (p *Parser) parseLabel(line string) {
	i := strings.LastIndex(line, ": ")
	if i < 0 {
		return
	}
	score, err := strconv.ParseFloat(line[i+2:], 32)
	if err != nil {
		return
	}
	label := line[:i]
	if label == "anomaly score" {
		p.cur.Warmup.Anomaly = float32(score)
		p.cur.Warmup.HasAnomaly = true
		return
	}
	p.cur.Warmup.Classification = append(p.cur.Warmup.Classification, harness.LabelScore{
		Label: label,
		Score: float32(score),
	})
}

// scan reports whether line matches f exactly.
func scan(line, f string, args ...any) bool {
	n, err := fmt.Sscanf(line, f, args...)
	return err == nil && n == len(args)
}

// Scan reads lines from r until EOF and calls fn for every event.
func Scan(r io.Reader, fn func(Event)) error {
	p := NewParser()
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if ev := p.Feed(sc.Text()); ev != nil {
			fn(*ev)
		}
	}
	return sc.Err()
}
