// Package recognize wraps the OCR collaborator and filters its noisy output
// into location-code candidates.
package recognize

import (
	"errors"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/otiai10/gosseract/v2"
)

// Whitelist restricts recognition to the characters that can appear in a
// location label.
const Whitelist = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789- ."

// ErrEngineClosed is returned when Recognize is called after Close.
var ErrEngineClosed = errors.New("ocr engine closed")

// Engine is the OCR collaborator contract. Implementations may be long-lived
// workers or per-call services; either way Close must be safe to call once
// the owner tears down.
type Engine interface {
	Recognize(imagePath string) (string, error)
	Close() error
}

// TesseractEngine is a long-lived Tesseract worker: one client initialized
// up front, reused across frames, torn down explicitly. The client is not
// safe for concurrent use, hence the mutex; the capture loop never overlaps
// calls anyway.
type TesseractEngine struct {
	mu     sync.Mutex
	client *gosseract.Client
	closed bool
}

// NewTesseractEngine initializes the worker with the location whitelist.
func NewTesseractEngine() (*TesseractEngine, error) {
	client := gosseract.NewClient()
	if err := client.SetLanguage("eng"); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("set language: %w", err)
	}
	if err := client.SetWhitelist(Whitelist); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("set whitelist: %w", err)
	}
	return &TesseractEngine{client: client}, nil
}

// Recognize runs one frame through Tesseract after preprocessing. The
// preprocessed temp file is removed before returning.
func (e *TesseractEngine) Recognize(imagePath string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return "", ErrEngineClosed
	}

	src := imagePath
	if prepped, err := preprocess(imagePath); err == nil {
		src = prepped
		defer os.Remove(prepped)
	} else {
		log.Printf("WARN preprocess %s failed, using raw frame: %v", imagePath, err)
	}

	if err := e.client.SetImage(src); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}
	text, err := e.client.Text()
	if err != nil {
		return "", fmt.Errorf("ocr error: %w", err)
	}
	return text, nil
}

// Close tears the worker down. Idempotent.
func (e *TesseractEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	return e.client.Close()
}
