package main

import (
	"flag"
	"fmt"
	"log"
	"path/filepath"

	"stationcodes/pkg/normalize"
	"stationcodes/pkg/recognize"
)

func main() {
	img := flag.String("img", "tmp/test.png", "image file to run OCR on")
	flag.Parse()
	p, _ := filepath.Abs(*img)
	fmt.Printf("Running OCR on %s\n", p)

	engine, err := recognize.NewTesseractEngine()
	if err != nil {
		log.Fatalf("engine init error: %v", err)
	}
	defer engine.Close()

	text, err := engine.Recognize(p)
	if err != nil {
		log.Fatalf("Recognize error: %v", err)
	}
	fmt.Printf("raw text: %q\n", text)

	candidate, ok := recognize.Extract(text)
	if !ok {
		fmt.Println("no location candidate found")
		return
	}
	fmt.Printf("candidate: %s\n", candidate)
	codes, err := normalize.Normalize(candidate)
	if err != nil {
		log.Fatalf("normalize error: %v", err)
	}
	fmt.Printf("canonical: %v\n", codes)
}
