// Package qrgen renders reference identifiers as QR PNGs.
package qrgen

import (
	"errors"

	qrcode "github.com/skip2/go-qrcode"
)

// Pixel sizes for the interactive view and the print layout. Print renders
// larger, and larger still when the sheet holds a single code.
const (
	DisplaySize     = 160
	PrintSizeSingle = 512
	PrintSizeMulti  = 256
)

var ErrEmptyPayload = errors.New("empty payload")

// PNG encodes payload at the given pixel size with high error correction,
// matching what handheld scanners read most reliably.
func PNG(payload string, size int) ([]byte, error) {
	if payload == "" {
		return nil, ErrEmptyPayload
	}
	if size <= 0 {
		size = DisplaySize
	}
	return qrcode.Encode(payload, qrcode.High, size)
}

// PrintSize picks the print resolution for a sheet of n codes.
func PrintSize(n int) int {
	if n <= 1 {
		return PrintSizeSingle
	}
	return PrintSizeMulti
}
