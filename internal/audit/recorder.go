package audit

import (
	"context"
	"sync"
	"time"
)

// defaultBuffer is the number of entries a Recorder holds before dropping.
const defaultBuffer = 256

// Logger is the logging interface used by the Recorder.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Recorder queues entries and writes them to a Repository from one
// goroutine. It satisfies router.Auditor.
type Recorder struct {
	repo   Repository
	source string
	ch     chan *Entry
	logger Logger
	now    func() time.Time

	done chan struct{}
	once sync.Once
}

// NewRecorder creates a Recorder tagging entries with source. buffer <= 0
// selects the default.
func NewRecorder(repo Repository, source string, buffer int) *Recorder {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Recorder{
		repo:   repo,
		source: source,
		ch:     make(chan *Entry, buffer),
		logger: noopLogger{},
		now:    time.Now,
		done:   make(chan struct{}),
	}
}

// SetLogger sets the logger.
func (r *Recorder) SetLogger(logger Logger) {
	r.logger = logger
}

// Record enqueues an entry. A full queue drops it with a warning.
func (r *Recorder) Record(_ context.Context, action, entityType, entityID string, details map[string]any) {
	e := &Entry{
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Source:     r.source,
		Details:    details,
		CreatedAt:  r.now(),
	}
	select {
	case r.ch <- e:
	default:
		r.logger.Warn("audit queue full, dropping entry", "action", action, "entity_type", entityType)
	}
}

// Run writes queued entries until ctx is cancelled, then drains what is
// left. It returns nil.
func (r *Recorder) Run(ctx context.Context) error {
	defer r.once.Do(func() { close(r.done) })
	for {
		select {
		case e := <-r.ch:
			r.write(e)
		case <-ctx.Done():
			for {
				select {
				case e := <-r.ch:
					r.write(e)
				default:
					return nil
				}
			}
		}
	}
}

// Done is closed when Run has returned.
func (r *Recorder) Done() <-chan struct{} {
	return r.done
}

func (r *Recorder) write(e *Entry) {
	// The request or event that produced e may be long gone.
	if err := r.repo.Create(context.Background(), e); err != nil {
		r.logger.Error("audit write failed", "action", e.Action, "entity_type", e.EntityType, "error", err)
	}
}
