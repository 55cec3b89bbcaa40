//go:build tinygo

package main

import "github.com/itohio/mlbench/pkg/harness"

// classifier is the engine binding a target image is built with.
type classifier interface {
	harness.Classifier
	Quantized() bool
}
