//go:build tinygo && !rp2040 && !esp32

package main

const targetName = "TinyGo"

func setup() {}

func status(bool) {}
