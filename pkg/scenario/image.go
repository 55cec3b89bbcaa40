//go:build !tinygo

package scenario

import (
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/itohio/mlbench/pkg/harness"
)

// ErrNotImage is returned when an image is loaded for an audio scenario.
var ErrNotImage = errors.New("scenario does not take images")

// FromImage center-crops and resizes img to the scenario resolution and packs
// every pixel as 0xRRGGBB, the layout image models read from the signal.
func FromImage(img image.Image, s Scenario) (harness.FeatureBuffer, error) {
	if s.Kind != Image {
		return nil, fmt.Errorf("%w: %s", ErrNotImage, s.Name)
	}
	dst := imaging.Fill(img, s.Width, s.Height, imaging.Center, imaging.Linear)

	buf := make(harness.FeatureBuffer, 0, s.FrameSize)
	for y := 0; y < s.Height; y++ {
		for x := 0; x < s.Width; x++ {
			i := dst.PixOffset(x, y)
			r, g, b := uint32(dst.Pix[i]), uint32(dst.Pix[i+1]), uint32(dst.Pix[i+2])
			buf = append(buf, float32(r<<16|g<<8|b))
		}
	}
	return buf, nil
}

// LoadImage decodes the image file at path into a frame for s.
func LoadImage(path string, s Scenario) (harness.FeatureBuffer, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	return FromImage(img, s)
}

// Load reads a frame for s from path: images by extension, anything else as
// raw features. An empty path synthesizes the frame.
func Load(path string, s Scenario) (harness.FeatureBuffer, error) {
	if path == "" {
		return Synthesize(s), nil
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".jpg", ".jpeg", ".bmp", ".gif", ".tif", ".tiff":
		return LoadImage(path, s)
	}
	return LoadFeatures(path)
}
