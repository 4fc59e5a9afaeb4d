package notify

import "log"

// Notifier is the side-channel feedback port: toast messages plus the beep
// and buzz cues the scan UI plays. Implementations hold no state; callers
// fire and forget.
type Notifier interface {
	Toast(msg string)
	Beep()
	Buzz()
}

// LogNotifier writes feedback events to a standard logger.
type LogNotifier struct {
	Logger *log.Logger
}

func NewLogNotifier(l *log.Logger) *LogNotifier { return &LogNotifier{Logger: l} }

func (n *LogNotifier) Toast(msg string) { n.Logger.Printf("toast: %s", msg) }
func (n *LogNotifier) Beep()            { n.Logger.Print("beep") }
func (n *LogNotifier) Buzz()            { n.Logger.Print("buzz") }

// Nop discards all feedback. Used in tests.
type Nop struct{}

func (Nop) Toast(string) {}
func (Nop) Beep()        {}
func (Nop) Buzz()        {}

// LogBeeper is an audible-feedback resource backed by a logger. One is
// constructed per scan session and closed with it.
type LogBeeper struct {
	Logger *log.Logger
}

func (b *LogBeeper) Beep()        { b.Logger.Print("beep") }
func (b *LogBeeper) Close() error { return nil }
