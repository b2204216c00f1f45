package toast

import (
	"fmt"
	"io"
	"sync"

	"github.com/highspring/timesheets/internal/rest"
	log "github.com/sirupsen/logrus"
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

type Toast struct {
	Level   Level
	Message string
}

// Notifier shows transient, non-blocking messages to the user.
type Notifier interface {
	Notify(level Level, message string)
}

// WriterNotifier prints toasts as single lines, e.g. "✓ Timesheet submitted".
type WriterNotifier struct {
	mu  sync.Mutex
	out io.Writer
}

func NewWriterNotifier(out io.Writer) *WriterNotifier {
	return &WriterNotifier{out: out}
}

func (n *WriterNotifier) Notify(level Level, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	log.WithField("level", level).Debug(message)
	if _, err := fmt.Fprintf(n.out, "%s %s\n", symbol(level), message); err != nil {
		log.Errorf("failed to print notification: %v", err)
	}
}

func symbol(level Level) string {
	switch level {
	case LevelSuccess:
		return "✓"
	case LevelWarning:
		return "!"
	case LevelError:
		return "✗"
	default:
		return "i"
	}
}

// Recorder keeps every toast in memory.
type Recorder struct {
	mu     sync.RWMutex
	toasts []Toast
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Notify(level Level, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toasts = append(r.toasts, Toast{Level: level, Message: message})
}

func (r *Recorder) All() []Toast {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Toast(nil), r.toasts...)
}

// Last returns the most recent toast, or a zero Toast when nothing was recorded.
func (r *Recorder) Last() Toast {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.toasts) == 0 {
		return Toast{}
	}
	return r.toasts[len(r.toasts)-1]
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toasts = nil
}

// Failure reports a failed server call, preferring the server supplied message.
func Failure(n Notifier, err error, fallback string) {
	n.Notify(LevelError, rest.MessageOf(err, fallback))
}

// Invalid reports input rejected before anything was sent.
func Invalid(n Notifier, err error) {
	n.Notify(LevelWarning, err.Error())
}
