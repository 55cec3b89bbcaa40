//go:build tinygo && esp32

package main

import "machine"

const targetName = "ESP32"

// UART_BAUD_RATE matches the monitor default.
const UART_BAUD_RATE = 115200

func setup() {
	machine.Serial.Configure(machine.UARTConfig{BaudRate: UART_BAUD_RATE})
}

// status is a no-op: the dev boards have no user LED wired by default.
func status(bool) {}
