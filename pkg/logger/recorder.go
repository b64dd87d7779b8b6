package logger

import "sync"

// Entry is one message captured by a Recorder.
type Entry struct {
	Level   string
	Message string
	Keyvals []any
}

// Recorder is a LoggerInstance that keeps messages in memory. Tests use
// it to assert that degradations are logged.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
}

func (r *Recorder) add(level, message string, keyvals []any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, Entry{Level: level, Message: message, Keyvals: keyvals})
}

func (r *Recorder) Log(message string, keyvals ...any)   { r.add("log", message, keyvals) }
func (r *Recorder) Debug(message string, keyvals ...any) { r.add("debug", message, keyvals) }
func (r *Recorder) Info(message string, keyvals ...any)  { r.add("info", message, keyvals) }
func (r *Recorder) Warn(message string, keyvals ...any)  { r.add("warn", message, keyvals) }
func (r *Recorder) Error(message string, keyvals ...any) { r.add("error", message, keyvals) }
func (r *Recorder) Fatal(message string, keyvals ...any) { r.add("fatal", message, keyvals) }

// Entries returns a copy of everything recorded so far.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry(nil), r.entries...)
}

// Count returns how many entries were recorded at level.
func (r *Recorder) Count(level string) int {
	n := 0
	for _, e := range r.Entries() {
		if e.Level == level {
			n++
		}
	}
	return n
}
