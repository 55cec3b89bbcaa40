package scenario

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/chewxy/math32"

	"github.com/itohio/mlbench/pkg/harness"
)

// ErrInvalidSample is returned for NaN or infinite samples.
var ErrInvalidSample = errors.New("invalid feature sample")

// Synthesize builds a deterministic frame for s: a 1 kHz tone at 16 kHz for
// audio, a diagonal RGB gradient for images. Inference timing does not depend
// on the content, so this stands in for a captured sample.
func Synthesize(s Scenario) harness.FeatureBuffer {
	buf := make(harness.FeatureBuffer, s.FrameSize)
	switch s.Kind {
	case Image:
		for y := 0; y < s.Height; y++ {
			for x := 0; x < s.Width; x++ {
				r := uint32(x * 255 / max(s.Width-1, 1))
				g := uint32(y * 255 / max(s.Height-1, 1))
				b := (r + g) / 2
				buf[y*s.Width+x] = float32(r<<16 | g<<8 | b)
			}
		}
	default:
		const (
			rate      = 16000
			frequency = 1000
			amplitude = 8192
		)
		for i := range buf {
			phase := 2 * math32.Pi * frequency * float32(i) / rate
			buf[i] = math32.Floor(amplitude*math32.Sin(phase) + 0.5)
		}
	}
	return buf
}

// ParseFeatures reads raw features as exported by the studio: decimal or 0x
// hex values separated by commas and/or whitespace.
func ParseFeatures(r io.Reader) (harness.FeatureBuffer, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16<<20)
	sc.Split(splitFeatures)

	var buf harness.FeatureBuffer
	for sc.Scan() {
		tok := sc.Text()
		v, err := parseSample(tok)
		if err != nil {
			return nil, fmt.Errorf("sample %d: %w", len(buf), err)
		}
		buf = append(buf, v)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read features: %w", err)
	}
	if err := Validate(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// LoadFeatures parses the features file at path.
func LoadFeatures(path string) (harness.FeatureBuffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open features file: %w", err)
	}
	defer f.Close()
	return ParseFeatures(f)
}

// Validate rejects NaN and infinite samples.
func Validate(buf harness.FeatureBuffer) error {
	for i, v := range buf {
		if math32.IsNaN(v) || math32.IsInf(v, 0) {
			return fmt.Errorf("%w at index %d: %v", ErrInvalidSample, i, v)
		}
	}
	return nil
}

func parseSample(tok string) (float32, error) {
	if strings.HasPrefix(tok, "0x") || strings.HasPrefix(tok, "0X") {
		u, err := strconv.ParseUint(tok[2:], 16, 32)
		if err != nil {
			return 0, fmt.Errorf("invalid hex value %q: %w", tok, err)
		}
		return float32(u), nil
	}
	f, err := strconv.ParseFloat(tok, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid value %q: %w", tok, err)
	}
	return float32(f), nil
}

func isSeparator(b byte) bool {
	switch b {
	case ',', ' ', '\t', '\r', '\n':
		return true
	}
	return false
}

// splitFeatures is a bufio.SplitFunc yielding tokens between separators.
func splitFeatures(data []byte, atEOF bool) (int, []byte, error) {
	start := 0
	for start < len(data) && isSeparator(data[start]) {
		start++
	}
	for i := start; i < len(data); i++ {
		if isSeparator(data[i]) {
			return i + 1, data[start:i], nil
		}
	}
	if atEOF && len(data) > start {
		return len(data), data[start:], nil
	}
	return start, nil, nil
}
