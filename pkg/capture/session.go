// Package capture owns the camera lifecycle: it acquires a frame source,
// grabs frames on a fixed interval, pipes them through OCR, filters and
// de-duplicates recognized text, and pauses on a resolved hit until the
// result is cleared.
package capture

import (
	"context"
	"errors"
	"log"
	"os"
	"sync"
	"time"

	"stationcodes/pkg/history"
	"stationcodes/pkg/index"
	"stationcodes/pkg/recognize"
)

// State of the capture session.
type State string

const (
	StateIdle     State = "idle"
	StateStarting State = "starting"
	StateActive   State = "active"
	StatePaused   State = "paused"
	StateStopped  State = "stopped"
)

// Result is a resolved scan shown to the user.
type Result struct {
	Location    string         `json:"location"`
	ReferenceID string         `json:"reference_id"`
	Area        index.AreaType `json:"-"`
}

// Resolver joins an extracted candidate against the normalization+lookup
// pipeline. ok is false when the candidate resolves to no known location.
type Resolver func(candidate string) (Result, bool)

// SourceOpener acquires a frame source for a device identifier.
type SourceOpener func(deviceID string) (FrameSource, error)

// FrameSource produces frame image files on demand. Grab returns ErrNoFrame
// when nothing new is available; the tick is skipped.
type FrameSource interface {
	Grab(ctx context.Context) (string, error)
	Close() error
}

// Config tunes the loop. Zero values take the defaults below.
type Config struct {
	// Interval between frame grabs. 2s balances responsiveness against OCR
	// load; observed deployments ran between 1.5s and 3s.
	Interval time.Duration
	// ReadyTimeout bounds the wait for the first usable frame.
	ReadyTimeout time.Duration
	// SettleDelay between releasing one device and opening the next, so the
	// previous hardware handle is fully released.
	SettleDelay time.Duration
}

const (
	defaultInterval     = 2 * time.Second
	defaultReadyTimeout = 10 * time.Second
	defaultSettleDelay  = 500 * time.Millisecond
)

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = defaultInterval
	}
	if c.ReadyTimeout <= 0 {
		c.ReadyTimeout = defaultReadyTimeout
	}
	if c.SettleDelay < 0 {
		c.SettleDelay = defaultSettleDelay
	}
	return c
}

// Status is a read-only snapshot of the session for the UI.
type Status struct {
	State     State   `json:"state"`
	DeviceID  string  `json:"device_id,omitempty"`
	Detected  string  `json:"detected,omitempty"`
	Result    *Result `json:"result,omitempty"`
	LastError string  `json:"last_error,omitempty"`
}

// Loop is the capture state machine. All session state lives here rather
// than in scattered globals; one Loop owns at most one live frame source.
type Loop struct {
	cfg     Config
	open    SourceOpener
	engine  recognize.Engine
	resolve Resolver
	hist    *history.Log

	mu           sync.Mutex
	state        State
	token        uint64
	deviceID     string
	source       FrameSource
	cancel       context.CancelFunc
	inFlight     bool
	lastAccepted string
	detected     string
	result       *Result
	lastErr      string
	manualCh     chan struct{}
}

// NewLoop wires the collaborators. The engine is owned by the caller and
// survives across sessions; Stop never closes it.
func NewLoop(cfg Config, open SourceOpener, engine recognize.Engine, resolve Resolver, hist *history.Log) *Loop {
	return &Loop{
		cfg:     cfg.withDefaults(),
		open:    open,
		engine:  engine,
		resolve: resolve,
		hist:    hist,
		state:   StateIdle,
	}
}

// History exposes the scan history shared with the rest of the interface.
func (l *Loop) History() *history.Log { return l.hist }

// Start acquires the device (or the default when deviceID is empty) and
// begins periodic capture. Returns an error if a session is already running.
func (l *Loop) Start(deviceID string) error {
	l.mu.Lock()
	switch l.state {
	case StateStarting, StateActive, StatePaused:
		l.mu.Unlock()
		return errors.New("capture session already running")
	}
	if deviceID == "" {
		deviceID = DefaultDevice()
	}
	l.token++
	token := l.token
	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	l.state = StateStarting
	l.deviceID = deviceID
	l.lastErr = ""
	l.manualCh = make(chan struct{}, 1)
	manual := l.manualCh
	l.mu.Unlock()

	go l.run(ctx, token, deviceID, manual)
	return nil
}

// run owns the session from acquisition to teardown. Every state write
// re-checks the session token so completions from a stale session are
// discarded.
func (l *Loop) run(ctx context.Context, token uint64, deviceID string, manual <-chan struct{}) {
	source, err := l.open(deviceID)
	if err != nil {
		l.failStart(token, err)
		return
	}

	// readiness probe: the source must produce one usable frame before the
	// loop goes active
	readyCtx, cancelReady := context.WithTimeout(ctx, l.cfg.ReadyTimeout)
	framePath, err := l.waitReady(readyCtx, source)
	cancelReady()
	if err != nil {
		_ = source.Close()
		if ctx.Err() != nil {
			return // stopped during startup
		}
		if errors.Is(err, context.DeadlineExceeded) {
			err = cameraErr(CameraTimeout, err)
		}
		l.failStart(token, err)
		return
	}

	l.mu.Lock()
	if l.token != token {
		l.mu.Unlock()
		_ = source.Close()
		if framePath != "" {
			_ = os.Remove(framePath)
		}
		return
	}
	l.source = source
	l.state = StateActive
	l.mu.Unlock()
	log.Printf("capture started device=%s interval=%s", deviceID, l.cfg.Interval)

	// the readiness frame is a real frame; process it rather than waiting a
	// full interval
	if framePath != "" {
		l.processFrame(token, framePath)
	}

	ticker := time.NewTicker(l.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.tick(ctx, token)
		case _, ok := <-manual:
			if !ok {
				return
			}
			l.tick(ctx, token)
		}
	}
}

// waitReady polls the source until it yields a frame or the deadline hits.
func (l *Loop) waitReady(ctx context.Context, source FrameSource) (string, error) {
	for {
		path, err := source.Grab(ctx)
		if err == nil {
			return path, nil
		}
		if !errors.Is(err, ErrNoFrame) {
			return "", err
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}

func (l *Loop) failStart(token uint64, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.token != token {
		return
	}
	log.Printf("ERROR capture start: %v", err)
	l.state = StateIdle
	l.lastErr = err.Error()
	l.source = nil
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
}

// tick runs one capture attempt. Overlapping ticks and ticks while a result
// is displayed are skipped, never queued; this is the loop's only
// backpressure.
func (l *Loop) tick(ctx context.Context, token uint64) {
	l.mu.Lock()
	if l.token != token || l.state != StateActive || l.inFlight || l.result != nil {
		l.mu.Unlock()
		return
	}
	l.inFlight = true
	source := l.source
	l.mu.Unlock()

	framePath, err := source.Grab(ctx)
	if err != nil {
		l.clearInFlight(token)
		if !errors.Is(err, ErrNoFrame) && ctx.Err() == nil {
			log.Printf("WARN frame grab: %v", err)
		}
		return
	}
	l.mu.Lock()
	l.inFlight = false
	l.mu.Unlock()
	l.processFrame(token, framePath)
}

// processFrame OCRs one frame file and applies the result if the session is
// still the live one. The frame file is removed afterwards.
func (l *Loop) processFrame(token uint64, framePath string) {
	l.mu.Lock()
	if l.token != token || l.inFlight {
		l.mu.Unlock()
		_ = os.Remove(framePath)
		return
	}
	l.inFlight = true
	l.mu.Unlock()

	text, err := l.engine.Recognize(framePath)
	_ = os.Remove(framePath)

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.token != token {
		// session stopped or replaced while OCR was in flight; discard
		return
	}
	l.inFlight = false
	if err != nil {
		// a bad frame never stops the loop
		log.Printf("WARN ocr frame: %v", err)
		return
	}

	candidate, ok := recognize.Extract(text)
	if !ok {
		return
	}
	l.detected = candidate
	if candidate == l.lastAccepted {
		log.Printf("SKIP repeat detection %s", candidate)
		return
	}
	l.lastAccepted = candidate

	res, found := l.resolve(candidate)
	if !found {
		log.Printf("SKIP unresolved detection %s", candidate)
		return
	}
	log.Printf("SCAN resolved %s -> %s", candidate, res.Location)
	l.result = &res
	l.state = StatePaused
	l.hist.Record(res.Location, res.Area)
}

func (l *Loop) clearInFlight(token uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.token == token {
		l.inFlight = false
	}
}

// CaptureNow requests a single immediate capture. Permitted only while
// active with no capture in flight and no result displayed.
func (l *Loop) CaptureNow() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != StateActive {
		return ErrNotRunning
	}
	if l.result != nil {
		return ErrResultDisplayed
	}
	if l.inFlight {
		return ErrBusy
	}
	select {
	case l.manualCh <- struct{}{}:
	default:
	}
	return nil
}

// ClearResult dismisses the displayed result and resumes periodic capture.
func (l *Loop) ClearResult() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.result = nil
	l.detected = ""
	l.lastAccepted = ""
	if l.state == StatePaused {
		l.state = StateActive
	}
}

// Stop tears the session down: cancels the timer, releases the source, and
// clears all transient capture state. Idempotent, and safe while an OCR call
// is in flight: the stale completion is discarded by the token guard.
func (l *Loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopLocked()
}

func (l *Loop) stopLocked() {
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	if l.source != nil {
		_ = l.source.Close()
		l.source = nil
	}
	l.token++
	l.state = StateStopped
	l.inFlight = false
	l.lastAccepted = ""
	l.detected = ""
	l.result = nil
	l.deviceID = ""
}

// SwitchDevice stops the current session, waits the settle delay so the old
// hardware handle is released, and restarts on the new device.
func (l *Loop) SwitchDevice(deviceID string) error {
	l.mu.Lock()
	running := l.state == StateStarting || l.state == StateActive || l.state == StatePaused
	if running {
		l.stopLocked()
	}
	l.mu.Unlock()
	if running {
		time.Sleep(l.cfg.SettleDelay)
	}
	return l.Start(deviceID)
}

// Status snapshots the session for display.
func (l *Loop) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	st := Status{
		State:     l.state,
		DeviceID:  l.deviceID,
		Detected:  l.detected,
		LastError: l.lastErr,
	}
	if l.result != nil {
		r := *l.result
		st.Result = &r
	}
	return st
}
