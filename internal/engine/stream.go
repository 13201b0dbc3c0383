package engine

import (
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/san-kum/porosim/internal/grid"
	"github.com/san-kum/porosim/internal/timer"
)

// Step is one accepted simulation step as seen by the stream's caller.
type Step struct {
	State    *grid.State
	StepSize float64
	Diag     Diagnostics
}

// Diagnostics describes how an accepted step was obtained.
type Diagnostics struct {
	AttemptedDt  float64 // dt of the accepted attempt
	Attempts     int     // attempts spent on this step, including the accepted one
	CFL          float64
	RejectsSoFar int // total rejects across the run
	Solver       string
	Iterations   int
}

// Sink consumes accepted steps, typically persisting them. It runs on a
// background goroutine and only ever sees fully validated states cloned
// from the step loop's working buffers.
type Sink interface {
	Consume(step *Step) error
}

// Observer is notified synchronously inside the step loop.
type Observer interface {
	OnAccept(step *Step)
	OnReject(class timer.Class, dt float64)
}

// Stream drives the propose/attempt/classify loop as a pull iterator: one
// accepted step is computed per Next call, so the caller controls pacing
// and cancellation between steps is free. A step itself is atomic; there
// is no mid-step cancellation.
type Stream struct {
	eng        *Engine
	ctrl       *timer.Controller
	classifier timer.Classifier
	state      *grid.State
	horizon    float64
	logger     *slog.Logger
	observers  []Observer

	sinkCh  chan *Step
	sinkWG  sync.WaitGroup
	sinkMu  sync.Mutex
	sinkErr error

	closed bool
	done   bool
}

// Option configures a Stream.
type Option func(*Stream)

func WithLogger(l *slog.Logger) Option {
	return func(s *Stream) { s.logger = l }
}

// WithSink attaches a background consumer with the given channel depth.
func WithSink(sink Sink, buffer int) Option {
	return func(s *Stream) {
		if buffer < 1 {
			buffer = 1
		}
		s.sinkCh = make(chan *Step, buffer)
		s.sinkWG.Add(1)
		go func() {
			defer s.sinkWG.Done()
			for step := range s.sinkCh {
				if err := sink.Consume(step); err != nil {
					s.sinkMu.Lock()
					if s.sinkErr == nil {
						s.sinkErr = err
					}
					s.sinkMu.Unlock()
				}
			}
		}()
	}
}

func WithObserver(o Observer) Option {
	return func(s *Stream) { s.observers = append(s.observers, o) }
}

// NewStream builds the pull iterator over a run. initial is cloned, so the
// caller keeps ownership of its copy.
func NewStream(eng *Engine, ctrl *timer.Controller, initial *grid.State, horizon float64, opts ...Option) (*Stream, error) {
	if horizon <= initial.Time {
		return nil, fmt.Errorf("engine: horizon %g not after initial time %g", horizon, initial.Time)
	}
	if err := initial.CheckShape(); err != nil {
		return nil, err
	}
	s := &Stream{
		eng:        eng,
		ctrl:       ctrl,
		classifier: timer.NewClassifier(ctrl.Config()),
		state:      initial.Clone(),
		horizon:    horizon,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Next computes and returns the next accepted step. It returns ErrDone
// once the horizon is reached and a terminal *timer.ExhaustedError when
// the controller gives up.
func (s *Stream) Next() (*Step, error) {
	if s.closed {
		return nil, ErrStreamClosed
	}
	if s.done || s.state.Time >= s.horizon*(1-1e-12) {
		s.done = true
		return nil, ErrDone
	}

	attempts := 0
	for {
		prop, err := s.ctrl.Propose(s.state.Time)
		if err != nil {
			s.done = true
			return nil, err
		}

		// The final step is truncated to land exactly on the horizon.
		dt := math.Min(prop.Dt, s.horizon-s.state.Time)
		attempts++

		outcome := s.eng.Advance(s.state, dt)
		class := s.classifier.Classify(outcome.Attempt, s.ctrl.LastChance())
		recErr := s.ctrl.Record(class, outcome.CFL)

		if class == timer.Accept {
			s.state = outcome.State
			step := &Step{
				State:    outcome.State,
				StepSize: dt,
				Diag: Diagnostics{
					AttemptedDt:  dt,
					Attempts:     attempts,
					CFL:          outcome.CFL,
					RejectsSoFar: s.ctrl.TotalRejects(),
					Solver:       outcome.SolverName,
					Iterations:   outcome.Iterations,
				},
			}
			s.logger.Debug("step accepted",
				"step", outcome.State.Step, "t", outcome.State.Time,
				"dt", dt, "cfl", outcome.CFL, "solver", outcome.SolverName)
			for _, o := range s.observers {
				o.OnAccept(step)
			}
			s.handoff(step)
			return step, nil
		}

		for _, o := range s.observers {
			o.OnReject(class, dt)
		}
		s.logger.Warn("step rejected",
			"dt", dt, "class", class.String(), "reason", outcome.Reason,
			"consecutive", s.ctrl.ConsecutiveRejects())

		if recErr != nil {
			s.done = true
			return nil, recErr
		}
	}
}

// handoff clones the accepted state for the background consumer so the
// step loop's buffers are never shared.
func (s *Stream) handoff(step *Step) {
	if s.sinkCh == nil {
		return
	}
	s.sinkCh <- &Step{State: step.State.Clone(), StepSize: step.StepSize, Diag: step.Diag}
}

// Drain pulls steps until the run completes or fails. It returns the
// number of accepted steps and the terminal error (nil for a clean ErrDone
// completion).
func (s *Stream) Drain() (int, error) {
	n := 0
	for {
		_, err := s.Next()
		if err == ErrDone {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		n++
	}
}

// State returns the most recently accepted state.
func (s *Stream) State() *grid.State { return s.state }

// Close flushes the background sink and releases the stream. It reports
// the first sink error, if any.
func (s *Stream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.sinkCh != nil {
		close(s.sinkCh)
		s.sinkWG.Wait()
	}
	s.sinkMu.Lock()
	defer s.sinkMu.Unlock()
	return s.sinkErr
}
