// Package sink adapts outbound signals to the rendering and speech
// collaborators. The variants that used to be separate applications
// (audio+voice, visual-only, narrated) are capability implementations of
// one Sink interface; actual audio/video rendering stays external, so
// these adapters emit formatted text on a writer the collaborator owns.
package sink

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/resqlab/pulsecoach/internal/domain/model"
)

// Sink consumes outbound signals. Implementations must tolerate beats
// and feedback interleaving and must never block indefinitely.
type Sink interface {
	// Name identifies the sink in logs and stats.
	Name() string

	// Deliver hands one signal to the collaborator.
	Deliver(ctx context.Context, signal model.Signal) error
}

// Option applies a configuration option to the text sinks.
type Option func(*textSink)

// WithWriter sets the destination writer. Defaults to stdout.
func WithWriter(w io.Writer) Option {
	return func(s *textSink) {
		if w != nil {
			s.w = w
		}
	}
}

// textSink is the shared base for the writer-backed variants.
type textSink struct {
	name   string
	w      io.Writer
	format func(model.Signal) (string, bool)

	mu sync.Mutex
}

func (s *textSink) Name() string {
	return s.name
}

func (s *textSink) Deliver(ctx context.Context, signal model.Signal) error {
	line, ok := s.format(signal)
	if !ok {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintln(s.w, line); err != nil {
		return fmt.Errorf("sink %s write: %w", s.name, err)
	}
	return nil
}

// NewSpoken creates the speech-style sink: coaching messages become
// utterance lines for the external speech collaborator; metronome beats
// are skipped because the audible click is the collaborator's own job.
func NewSpoken(opts ...Option) Sink {
	s := &textSink{
		name: "spoken",
		w:    os.Stdout,
		format: func(signal model.Signal) (string, bool) {
			if signal.IsBeat() {
				return "", false
			}
			return fmt.Sprintf("say[%s]: %s", signal.SessionID, signal.Feedback.Message), true
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewVisual creates the display-style sink: short overlay lines with a
// flash marker on each beat.
func NewVisual(opts ...Option) Sink {
	s := &textSink{
		name: "visual",
		w:    os.Stdout,
		format: func(signal model.Signal) (string, bool) {
			if signal.IsBeat() {
				return fmt.Sprintf("flash[%s]: beat %d", signal.SessionID, signal.Beat.Sequence), true
			}
			return fmt.Sprintf("overlay[%s] %s: %s", signal.SessionID, signal.Feedback.Kind, signal.Feedback.Message), true
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Broadcaster fans one signal out to several sinks. It implements Sink
// itself so compositions nest.
type Broadcaster struct {
	mu    sync.RWMutex
	sinks []Sink
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster(sinks ...Sink) *Broadcaster {
	return &Broadcaster{sinks: sinks}
}

// Name implements Sink.
func (b *Broadcaster) Name() string {
	return "broadcast"
}

// Add registers another sink. Safe to call while delivering.
func (b *Broadcaster) Add(s Sink) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sinks = append(b.sinks, s)
}

// Deliver hands the signal to every registered sink, returning the first
// error after all deliveries are attempted.
func (b *Broadcaster) Deliver(ctx context.Context, signal model.Signal) error {
	b.mu.RLock()
	sinks := make([]Sink, len(b.sinks))
	copy(sinks, b.sinks)
	b.mu.RUnlock()

	var firstErr error
	for _, s := range sinks {
		if err := s.Deliver(ctx, signal); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
