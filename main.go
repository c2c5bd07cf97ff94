package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"stationcodes/pkg/capture"
	"stationcodes/pkg/history"
	"stationcodes/pkg/index"
	"stationcodes/pkg/normalize"
	"stationcodes/pkg/recognize"

	"github.com/gin-gonic/gin"
)

var jwtSecret []byte // loaded from env JWT_SECRET (fallback to dev default)

// Shared app state wired up in main before routes are served.
var (
	locIndex  *index.Index
	ocrEngine recognize.Engine
	scanLoop  *capture.Loop
)

func main() {
	// Auto-load ./.env if present (no external dependency) before reading vars
	loadDotEnv()
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "dev-insecure-secret-change" // development fallback
	}
	jwtSecret = []byte(secret)

	// Support a lightweight migrate command: `./stationcodes migrate`
	// It runs AutoMigrate and seeding then exits. Useful for CI or manual DB setup.
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		initDB()
		fmt.Println("migration and seeding completed")
		return
	}

	initDB()

	var err error
	locIndex, err = loadIndex()
	if err != nil {
		log.Fatal("failed to load location index:", err)
	}
	log.Printf("location index loaded: %d entries", locIndex.Len())

	eng, err := recognize.NewTesseractEngine()
	if err != nil {
		log.Fatal("failed to init ocr engine:", err)
	}
	defer eng.Close()
	ocrEngine = eng

	scanLoop = capture.NewLoop(capture.Config{}, openSource, ocrEngine, resolveCandidate, history.NewLog())

	r := gin.Default()

	setupRoutes(r)

	r.Run(":8081")
}

// resolveCandidate turns an OCR candidate into a lookup hit. Candidates go
// through the same normalization as typed input; ranges never come out of a
// single scanned label, so only the first canonical code matters.
func resolveCandidate(candidate string) (capture.Result, bool) {
	codes, err := normalize.Normalize(candidate)
	if err != nil || len(codes) == 0 {
		return capture.Result{}, false
	}
	entry, ok := locIndex.Find(codes[0])
	if !ok {
		return capture.Result{}, false
	}
	return capture.Result{Location: entry.Location, ReferenceID: entry.ReferenceID, Area: entry.Area}, true
}

// openSource picks the frame source. FRAMES_DIR switches to a directory
// watcher (frames dropped by an external grabber); otherwise frames come
// straight off the v4l2 device via ffmpeg.
func openSource(deviceID string) (capture.FrameSource, error) {
	if dir := os.Getenv("FRAMES_DIR"); dir != "" {
		return capture.OpenDirSource(dir)
	}
	return capture.OpenFFmpegSource(deviceID)
}

// loadDotEnv loads key=value pairs from a local .env file into the environment
// without overwriting variables that are already set. Lines starting with # are ignored.
func loadDotEnv() {
	path := ".env"
	if _, err := os.Stat(path); err != nil {
		return // no .env file
	}
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		// split on first '='
		if eq := strings.IndexByte(line, '='); eq > 0 {
			key := strings.TrimSpace(line[:eq])
			val := strings.TrimSpace(line[eq+1:])
			if _, exists := os.LookupEnv(key); !exists {
				_ = os.Setenv(key, val)
			}
		}
	}
}
