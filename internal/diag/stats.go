package diag

import (
	"math"

	"github.com/san-kum/porosim/internal/engine"
	"github.com/san-kum/porosim/internal/timer"
)

// Stats accumulates run-level statistics as an in-loop observer on the
// step stream. It is not safe for concurrent use; the stream calls it
// synchronously.
type Stats struct {
	accepts       int
	mildRejects   int
	severeRejects int
	fatalRejects  int

	solverWins map[string]int

	dtMin, dtMax float64
	dtSum        float64
	cflMax       float64
	cflSum       float64
	iterations   int
}

func NewStats() *Stats {
	return &Stats{
		solverWins: make(map[string]int),
		dtMin:      math.Inf(1),
	}
}

func (s *Stats) OnAccept(step *engine.Step) {
	s.accepts++
	s.solverWins[step.Diag.Solver]++
	s.iterations += step.Diag.Iterations

	dt := step.StepSize
	s.dtSum += dt
	if dt < s.dtMin {
		s.dtMin = dt
	}
	if dt > s.dtMax {
		s.dtMax = dt
	}

	s.cflSum += step.Diag.CFL
	if step.Diag.CFL > s.cflMax {
		s.cflMax = step.Diag.CFL
	}
}

func (s *Stats) OnReject(class timer.Class, dt float64) {
	switch class {
	case timer.RetryMild:
		s.mildRejects++
	case timer.RetrySevere:
		s.severeRejects++
	case timer.Fatal:
		s.fatalRejects++
	}
}

// Summary is a point-in-time snapshot of the accumulated statistics.
type Summary struct {
	Accepts       int
	MildRejects   int
	SevereRejects int
	FatalRejects  int
	SolverWins    map[string]int

	MinDt  float64
	MaxDt  float64
	MeanDt float64

	MaxCFL  float64
	MeanCFL float64

	MeanIterations float64
}

func (s *Stats) Summary() Summary {
	sum := Summary{
		Accepts:       s.accepts,
		MildRejects:   s.mildRejects,
		SevereRejects: s.severeRejects,
		FatalRejects:  s.fatalRejects,
		SolverWins:    make(map[string]int, len(s.solverWins)),
		MaxDt:         s.dtMax,
		MaxCFL:        s.cflMax,
	}
	for name, wins := range s.solverWins {
		sum.SolverWins[name] = wins
	}
	if s.accepts > 0 {
		sum.MinDt = s.dtMin
		sum.MeanDt = s.dtSum / float64(s.accepts)
		sum.MeanCFL = s.cflSum / float64(s.accepts)
		sum.MeanIterations = float64(s.iterations) / float64(s.accepts)
	}
	return sum
}

// Rejects returns the total reject count across severities.
func (s *Stats) Rejects() int {
	return s.mildRejects + s.severeRejects + s.fatalRejects
}

func (s *Stats) Reset() {
	*s = Stats{solverWins: make(map[string]int), dtMin: math.Inf(1)}
}
