//go:build tinygo && rp2040

package main

import (
	"machine"
	"time"
)

const targetName = "RP2040"

// On-board LED of the Pico.
const ledPin = machine.Pin(25)

// setup waits for the USB CDC console and lights the LED while the benchmark
// runs.
func setup() {
	ledPin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	ledPin.High()

	// USB CDC takes a moment to enumerate; the harness adds its own startup
	// delay after this.
	time.Sleep(time.Second)
}

// status shows the outcome: steady off on success, fast blink on failure.
func status(ok bool) {
	if ok {
		ledPin.Low()
		return
	}
	go func() {
		for {
			ledPin.Set(!ledPin.Get())
			time.Sleep(100 * time.Millisecond)
		}
	}()
}
