// Package scenario names the fixed benchmark inputs and produces their
// feature buffers.
package scenario

import (
	"fmt"
	"sort"
	"strings"
)

// Kind tells how a frame is laid out.
type Kind int

const (
	// Audio frames are raw PCM samples.
	Audio Kind = iota
	// Image frames hold one packed 0xRRGGBB value per pixel.
	Image
)

func (k Kind) String() string {
	if k == Image {
		return "image"
	}
	return "audio"
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Scenario is one named benchmark input.
type Scenario struct {
	Name      string   `json:"name"`
	Kind      Kind     `json:"kind"`
	FrameSize int      `json:"frame_size"`
	Width     int      `json:"width,omitempty"`  // Image only
	Height    int      `json:"height,omitempty"` // Image only
	Labels    []string `json:"labels"`
}

const (
	KWS = "kws" // Keyword spotting
	VWW = "vww" // Visual wake words
	IMG = "img" // Image classification
)

var registry = map[string]Scenario{
	KWS: {
		Name:      KWS,
		Kind:      Audio,
		FrameSize: 16000,
		Labels: []string{
			"down", "go", "left", "no", "off", "on", "right",
			"stop", "up", "yes", "silence", "unknown",
		},
	},
	VWW: {
		Name:      VWW,
		Kind:      Image,
		FrameSize: 96 * 96,
		Width:     96,
		Height:    96,
		Labels:    []string{"no_person", "person"},
	},
	IMG: {
		Name:      IMG,
		Kind:      Image,
		FrameSize: 32 * 32,
		Width:     32,
		Height:    32,
		Labels: []string{
			"airplane", "automobile", "bird", "cat", "deer",
			"dog", "frog", "horse", "ship", "truck",
		},
	},
}

// Names returns the known scenario names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the scenario registered under name (case-insensitive).
func Lookup(name string) (Scenario, error) {
	s, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Scenario{}, fmt.Errorf("unknown scenario %q (choices: %s)", name, strings.Join(Names(), ", "))
	}
	s.Labels = append([]string(nil), s.Labels...)
	return s, nil
}
