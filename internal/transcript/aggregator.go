// Package transcript accumulates partial speech transcriptions into a
// turn-ordered conversation history.
package transcript

import (
	"strings"
	"sync"
)

// Role identifies the speaker of a transcript entry.
type Role string

const (
	RoleStudent Role = "student"
	RoleMentor  Role = "mentor"
)

// InterruptionMarker is appended to a mentor partial whose speech was cut off
// by the student.
const InterruptionMarker = " [interrupted]"

// Entry is one committed turn half.
type Entry struct {
	Role Role
	Text string
}

// Aggregator buffers partial transcriptions for both directions and commits
// them as entries when a turn completes. Partials arrive as fragments; the
// aggregator concatenates them verbatim since the service includes its own
// spacing. Safe for concurrent use.
type Aggregator struct {
	mu          sync.Mutex
	student     strings.Builder
	mentor      strings.Builder
	interrupted bool
	history     []Entry
}

// New creates an empty aggregator.
func New() *Aggregator {
	return &Aggregator{}
}

// AppendStudent adds a partial transcription of the student's speech.
func (a *Aggregator) AppendStudent(text string) {
	if text == "" {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.student.WriteString(text)
}

// AppendMentor adds a partial transcription of the mentor's speech.
func (a *Aggregator) AppendMentor(text string) {
	if text == "" {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.mentor.WriteString(text)
}

// MarkInterrupted tags the buffered mentor partial as cut off. A turn is
// tagged at most once; calls with an empty mentor buffer are ignored.
func (a *Aggregator) MarkInterrupted() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.interrupted || a.mentor.Len() == 0 {
		return
	}
	a.mentor.WriteString(InterruptionMarker)
	a.interrupted = true
}

// CompleteTurn commits the buffered partials to history, student first, and
// returns the committed entries. Whitespace-only buffers produce no entry.
// The buffers are cleared for the next turn.
func (a *Aggregator) CompleteTurn() []Entry {
	a.mu.Lock()
	defer a.mu.Unlock()

	var committed []Entry
	if text := strings.TrimSpace(a.student.String()); text != "" {
		committed = append(committed, Entry{Role: RoleStudent, Text: text})
	}
	if text := strings.TrimSpace(a.mentor.String()); text != "" {
		committed = append(committed, Entry{Role: RoleMentor, Text: text})
	}
	a.history = append(a.history, committed...)
	a.resetBuffersLocked()
	return committed
}

// Partials returns the uncommitted buffer contents.
func (a *Aggregator) Partials() (student, mentor string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.student.String(), a.mentor.String()
}

// History returns a copy of all committed entries in turn order.
func (a *Aggregator) History() []Entry {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Entry, len(a.history))
	copy(out, a.history)
	return out
}

// ResetBuffers drops uncommitted partials. Committed history is untouched;
// it must survive session teardown so a grading pass can still read it.
func (a *Aggregator) ResetBuffers() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.resetBuffersLocked()
}

func (a *Aggregator) resetBuffersLocked() {
	a.student.Reset()
	a.mentor.Reset()
	a.interrupted = false
}
