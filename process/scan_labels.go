package main

import (
	"flag"
	"io"
	"log"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/fsnotify/fsnotify"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"stationcodes/models"
	"stationcodes/pkg/index"
	"stationcodes/pkg/normalize"
	"stationcodes/pkg/recognize"
)

// Global DB handle for helper funcs
var db *gorm.DB

// global flags (parsed in main)
var verbose bool

var engine recognize.Engine

func mustInitDBFromEnv() *gorm.DB {
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		log.Fatalf("DB_DSN must be set in environment to run this tool")
	}
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	return gdb
}

// Main: scans a directory of label photos, OCRs each one, resolves the code
// against the locations table and reports the match. Optional watch mode.
func main() {
	dirFlag := flag.String("dir", "frames/inbox", "directory to scan for label photos")
	dryRun := flag.Bool("dry-run", false, "Skip DB lookups; just OCR and print candidates")
	watch := flag.Bool("watch", false, "Watch directory for new files")
	workers := flag.Int("workers", 0, "Worker pool size (default NumCPU)")
	flag.BoolVar(&verbose, "verbose", false, "Verbose per-file logging")
	flag.Parse()

	var err error
	engine, err = recognize.NewTesseractEngine()
	if err != nil {
		log.Fatalf("failed to init ocr engine: %v", err)
	}
	defer engine.Close()

	if *dryRun {
		log.Printf("Dry-run: scanning %s (no DB interaction)", *dirFlag)
		files := listImageFiles(*dirFlag)
		log.Printf("Found %d candidate files", len(files))
		for _, f := range files {
			text, err := engine.Recognize(filepath.Join(*dirFlag, f))
			if err != nil {
				logV("OCR fail %s: %v", f, err)
				continue
			}
			if cand, ok := recognize.Extract(text); ok {
				log.Printf("OCR %s candidate=%s", f, cand)
			}
		}
		return
	}

	db = mustInitDBFromEnv()
	idx := loadLocations()
	log.Printf("Preloaded: locations=%d", idx.Len())

	files := listImageFiles(*dirFlag)
	log.Printf("Scanning %d files (workers=%d)", len(files), effectiveWorkers(*workers))
	runWorkerPool(*dirFlag, idx, files, effectiveWorkers(*workers))

	if *watch {
		if err := watchDirectory(*dirFlag, idx, effectiveWorkers(*workers)); err != nil {
			log.Fatalf("watch failed: %v", err)
		}
	}
}

func effectiveWorkers(w int) int {
	if w <= 0 {
		return runtime.NumCPU()
	}
	return w
}

func logV(format string, args ...any) {
	if verbose {
		log.Printf(format, args...)
	}
}

// loadLocations fetches the whole locations table once so per-file lookups
// stay in memory.
func loadLocations() *index.Index {
	var rows []models.Location
	if err := db.Order("id").Find(&rows).Error; err != nil {
		log.Fatalf("failed to load locations: %v", err)
	}
	recs := make([]index.Record, 0, len(rows))
	for _, r := range rows {
		recs = append(recs, index.Record{
			Location:    r.Location,
			ReferenceID: r.ReferenceID,
			Type:        r.Type,
		})
	}
	return index.Build(recs)
}

func listImageFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !isSupportedExt(e.Name()) {
			continue
		}
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out
}

func watchDirectory(dir string, idx *index.Index, workers int) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		return err
	}
	log.Printf("Watching %s (debounced) ...", dir)

	fileCh := make(chan string, 256)
	go func() {
		// simple debounce map of pending files
		pending := map[string]time.Time{}
		ticker := time.NewTicker(250 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					close(fileCh)
					return
				}
				if ev.Op&fsnotify.Create == fsnotify.Create {
					name := filepath.Base(ev.Name)
					if !isSupportedExt(name) {
						continue
					}
					pending[name] = time.Now()
				}
			case <-ticker.C:
				now := time.Now()
				for name, t := range pending {
					if now.Sub(t) > 300*time.Millisecond { // stable
						fileCh <- name
						delete(pending, name)
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					close(fileCh)
					return
				}
				log.Printf("watch error: %v", err)
			}
		}
	}()

	// Use worker pool for watch events too
	go runWorkerPool(dir, idx, nil, workers, fileCh)
	// block forever (Ctrl+C to exit)
	select {}
}

func isSupportedExt(name string) bool {
	// ignore preprocessing temp files to avoid recursive processing
	if strings.Contains(name, ".prep.") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".png", ".jpg", ".jpeg", ".gif", ".webp":
		return true
	}
	return false
}

// worker pool orchestrator
func runWorkerPool(dir string, idx *index.Index, initial []string, workers int, extraCh ...<-chan string) {
	fileCh := make(chan string, 1024)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for name := range fileCh {
				processSingleFile(dir, name, idx)
			}
		}()
	}
	// feed initial
	go func() {
		for _, f := range initial {
			fileCh <- f
		}
		// also relay from extra channels if provided
		for _, ch := range extraCh {
			go func(c <-chan string) {
				for n := range c {
					fileCh <- n
				}
			}(ch)
		}
		// if no extraCh (scan only) close when done
		if len(extraCh) == 0 {
			close(fileCh)
		}
	}()
	if len(extraCh) == 0 {
		wg.Wait()
	}
}

// processSingleFile OCRs one label photo, resolves its code and archives the
// file once handled so watch mode never processes it twice.
func processSingleFile(dir, name string, idx *index.Index) {
	filePath := filepath.Join(dir, name)

	text, err := engine.Recognize(filePath)
	if err != nil {
		logV("OCR fail %s: %v", name, err)
		return
	}
	candidate, ok := recognize.Extract(text)
	if !ok {
		logV("SKIP no candidate %s", name)
		return
	}
	codes, err := normalize.Normalize(candidate)
	if err != nil || len(codes) == 0 {
		logV("SKIP unnormalizable %s candidate=%s", name, candidate)
		return
	}
	entry, found := idx.Find(codes[0])
	if !found {
		log.Printf("MISS %s candidate=%s code=%s", name, candidate, codes[0])
		return
	}
	log.Printf("MATCH %s -> %s ref=%s type=%s", name, entry.Location, entry.ReferenceID, entry.Area.Tag())

	if err := moveToProcessed(filePath, name); err != nil {
		log.Printf("WARN failed to move processed file %s: %v", name, err)
	} else {
		logV("moved processed %s", name)
	}
}

// moveToProcessed moves a file into <dir>/../processed/<name>, downscaling
// large photos so the archive stays small. It attempts an atomic rename and
// falls back to copy+remove when necessary.
func moveToProcessed(srcFullPath, name string) error {
	const maxBytes = 1_000_000 // 1 MB budget
	processedDir := filepath.Join(filepath.Dir(filepath.Dir(srcFullPath)), "processed")
	if err := os.MkdirAll(processedDir, 0o755); err != nil {
		return err
	}
	dst := filepath.Join(processedDir, name)

	fi, err := os.Stat(srcFullPath)
	if err != nil {
		return err
	}
	// Fast path: already small enough -> attempt rename/copy
	if fi.Size() <= maxBytes {
		if err := os.Rename(srcFullPath, dst); err == nil {
			return nil
		}
		return copyRemove(srcFullPath, dst)
	}
	img, err := imaging.Open(srcFullPath)
	if err != nil { // fallback to raw move if cannot decode
		if err := os.Rename(srcFullPath, dst); err == nil {
			return nil
		}
		return copyRemove(srcFullPath, dst)
	}
	// Estimate scale factor based on sqrt(max/current) (size roughly scales with area)
	scale := math.Sqrt(float64(maxBytes) / float64(fi.Size()))
	if scale > 0.95 {
		scale = 0.95
	}
	if scale < 0.1 { // avoid absurd downscale
		scale = 0.1
	}
	w := img.Bounds().Dx()
	h := img.Bounds().Dy()
	newW := int(math.Max(1, math.Round(float64(w)*scale)))
	newH := int(math.Max(1, math.Round(float64(h)*scale)))
	img = imaging.Resize(img, newW, newH, imaging.Lanczos)
	if err := imaging.Save(img, dst); err != nil {
		if err := os.Rename(srcFullPath, dst); err == nil {
			return nil
		}
		return copyRemove(srcFullPath, dst)
	}
	_ = os.Remove(srcFullPath)
	return nil
}

func copyRemove(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	_ = out.Close()
	if err := os.Remove(src); err != nil {
		return err
	}
	return nil
}
