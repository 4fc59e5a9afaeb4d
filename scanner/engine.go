package scanner

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Phase is the debounce state of a scan session.
type Phase int

const (
	// Accepting emits the next raw decode as an accepted scan event.
	Accepting Phase = iota
	// Cooldown drops raw decodes until the cooldown timer elapses.
	Cooldown
	// Closed drops everything; the decode source has been released.
	Closed
)

func (p Phase) String() string {
	switch p {
	case Accepting:
		return "accepting"
	case Cooldown:
		return "cooldown"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// ErrDevice is returned by Start when the decode source cannot be acquired.
var ErrDevice = errors.New("scan device unavailable")

// ErrActive is returned by Start when a session is already running.
var ErrActive = errors.New("scanner already active")

// DecodeSource is the camera analogue: once opened it pushes raw decoded
// strings into the engine until released. "No barcode in frame" is simply
// the absence of a push, never an error.
type DecodeSource interface {
	Open(emit func(code string)) error
	Close() error
}

// Beeper is the audible-feedback resource owned by one scan session. It is
// constructed on Start and closed on Close, never shared between sessions.
type Beeper interface {
	Beep()
	Close() error
}

// Config tunes a scan session.
type Config struct {
	// Cooldown is the window after an accepted scan during which repeat
	// decodes are suppressed. Defaults to 800ms.
	Cooldown time.Duration
	// Continuous re-arms the engine after each cooldown. When false the
	// session accepts a single scan and then stays in cooldown until closed.
	Continuous bool
	// NewBeeper builds the session's beeper. Optional.
	NewBeeper func() (Beeper, error)
}

// Engine turns the noisy, continuous stream of raw decode callbacks into a
// clean stream of accepted scan events, at most one per cooldown window.
// The generation counter is bumped on every Close so consumers can discard
// lookups that were still in flight when the session ended.
type Engine struct {
	mu         sync.Mutex
	phase      Phase
	cooldown   time.Duration
	continuous bool
	generation uint64
	timer      *time.Timer
	src        DecodeSource
	beeper     Beeper
	newBeeper  func() (Beeper, error)
	onEvent    func(code string, generation uint64)
}

func New(cfg Config) *Engine {
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 800 * time.Millisecond
	}
	return &Engine{
		phase:      Closed,
		cooldown:   cfg.Cooldown,
		continuous: cfg.Continuous,
		newBeeper:  cfg.NewBeeper,
	}
}

// Start opens the decode source and begins a session in Accepting.
// Acquisition failure is reported as ErrDevice wrapping the cause.
func (e *Engine) Start(src DecodeSource, onEvent func(code string, generation uint64)) error {
	e.mu.Lock()
	if e.phase != Closed {
		e.mu.Unlock()
		return ErrActive
	}

	var beeper Beeper
	if e.newBeeper != nil {
		b, err := e.newBeeper()
		if err != nil {
			e.mu.Unlock()
			return fmt.Errorf("%w: %v", ErrDevice, err)
		}
		beeper = b
	}

	e.phase = Accepting
	e.src = src
	e.beeper = beeper
	e.onEvent = onEvent
	e.mu.Unlock()

	if err := src.Open(e.HandleDecode); err != nil {
		_ = e.Close()
		return fmt.Errorf("%w: %v", ErrDevice, err)
	}
	return nil
}

// HandleDecode is the raw-decode callback. In Accepting it beeps, emits the
// accepted scan event and enters Cooldown; in any other phase the decode is
// dropped silently.
func (e *Engine) HandleDecode(code string) {
	if code == "" {
		return
	}

	e.mu.Lock()
	if e.phase != Accepting {
		e.mu.Unlock()
		return
	}
	e.phase = Cooldown
	if e.continuous {
		e.timer = time.AfterFunc(e.cooldown, e.cooldownElapsed)
	}
	emit := e.onEvent
	beeper := e.beeper
	generation := e.generation
	e.mu.Unlock()

	if beeper != nil {
		beeper.Beep()
	}
	if emit != nil {
		emit(code, generation)
	}
}

func (e *Engine) cooldownElapsed() {
	e.mu.Lock()
	if e.phase == Cooldown {
		e.phase = Accepting
	}
	e.mu.Unlock()
}

// Close ends the session: decodes are dropped from this point on, the
// decode source and beeper are released, and the generation counter is
// bumped so in-flight lookup results are discarded. Idempotent.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.phase == Closed {
		e.mu.Unlock()
		return nil
	}
	e.phase = Closed
	e.generation++
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	src := e.src
	beeper := e.beeper
	e.src = nil
	e.beeper = nil
	e.onEvent = nil
	e.mu.Unlock()

	var err error
	if src != nil {
		err = src.Close()
	}
	if beeper != nil {
		if cerr := beeper.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// Generation reports the current session generation. A consumer that
// captured the generation with an accepted scan compares it against this
// value before applying the lookup result.
func (e *Engine) Generation() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.generation
}

// State reports the current phase.
func (e *Engine) State() Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase
}
