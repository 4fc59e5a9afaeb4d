package scanner

import "sync"

// PushSource is a DecodeSource fed from outside the process — an HTTP
// endpoint, a serial scanner bridge, or a test. Pushes before Open or after
// Close are dropped, matching a camera that is not running.
type PushSource struct {
	mu   sync.Mutex
	emit func(code string)
}

func NewPushSource() *PushSource { return &PushSource{} }

func (s *PushSource) Open(emit func(code string)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emit = emit
	return nil
}

func (s *PushSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emit = nil
	return nil
}

// Push delivers one raw decoded string to the engine.
func (s *PushSource) Push(code string) {
	s.mu.Lock()
	emit := s.emit
	s.mu.Unlock()
	if emit != nil {
		emit(code)
	}
}
