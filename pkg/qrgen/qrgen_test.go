package qrgen

import (
	"bytes"
	"errors"
	"image/png"
	"testing"
)

func TestPNGDimensions(t *testing.T) {
	b, err := PNG("ref-b113a", DisplaySize)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(b))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if img.Bounds().Dx() != DisplaySize || img.Bounds().Dy() != DisplaySize {
		t.Fatalf("expected %dpx square got %v", DisplaySize, img.Bounds())
	}
}

func TestPNGDefaultsSize(t *testing.T) {
	b, err := PNG("ref", 0)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(b))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if img.Bounds().Dx() != DisplaySize {
		t.Fatalf("zero size should default to %d, got %d", DisplaySize, img.Bounds().Dx())
	}
}

func TestPNGEmptyPayload(t *testing.T) {
	if _, err := PNG("", DisplaySize); !errors.Is(err, ErrEmptyPayload) {
		t.Fatalf("expected ErrEmptyPayload got %v", err)
	}
}

func TestPrintSize(t *testing.T) {
	if PrintSize(1) != PrintSizeSingle {
		t.Fatal("single result should print large")
	}
	if PrintSize(2) != PrintSizeMulti {
		t.Fatal("multiple results should print at the smaller size")
	}
}
