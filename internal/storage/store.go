package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/san-kum/porosim/internal/engine"
	"github.com/san-kum/porosim/internal/grid"
)

// Store persists simulation runs under a base directory, one subdirectory
// per run holding metadata.json, steps.csv and the final state.
type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

// RunMetadata describes one persisted run.
type RunMetadata struct {
	ID             string        `json:"id"`
	Scenario       string        `json:"scenario"`
	Timestamp      time.Time     `json:"timestamp"`
	Geometry       grid.Geometry `json:"geometry"`
	Horizon        float64       `json:"horizon"`
	SolverChain    []string      `json:"solver_chain"`
	Preconditioner string        `json:"preconditioner"`
	AcceptedSteps  int           `json:"accepted_steps"`
	TotalRejects   int           `json:"total_rejects"`
	FinalTime      float64       `json:"final_time"`
}

// StepRecord is one row of steps.csv.
type StepRecord struct {
	Step         int
	Time         float64
	Dt           float64
	CFL          float64
	Attempts     int
	Solver       string
	Iterations   int
	MeanPressure float64
	MeanSw       float64
}

var stepHeader = []string{"step", "time", "dt", "cfl", "attempts", "solver", "iterations", "mean_pressure", "mean_sw"}

// RunWriter persists accepted steps incrementally. It satisfies the step
// stream's sink interface, so it can run on the background consumer
// goroutine; Finish must be called after the stream is closed.
type RunWriter struct {
	runDir string
	meta   RunMetadata

	file *os.File
	csv  *csv.Writer
}

// Begin creates the run directory and opens steps.csv. The returned
// writer owns the open file until Finish. An empty ID is derived from
// the scenario and start time; a counter suffix keeps concurrent runs
// of the same scenario apart.
func (s *Store) Begin(meta RunMetadata) (*RunWriter, error) {
	meta.Timestamp = time.Now()

	var runDir string
	if meta.ID == "" {
		if err := os.MkdirAll(s.baseDir, 0755); err != nil {
			return nil, err
		}
		base := fmt.Sprintf("%s_%d", meta.Scenario, meta.Timestamp.Unix())
		meta.ID = base
		runDir = filepath.Join(s.baseDir, meta.ID)
		// Mkdir doubles as the uniqueness check, so two runs started
		// within the same second never share a directory.
		for n := 1; ; n++ {
			err := os.Mkdir(runDir, 0755)
			if err == nil {
				break
			}
			if !os.IsExist(err) {
				return nil, err
			}
			meta.ID = fmt.Sprintf("%s_%d", base, n)
			runDir = filepath.Join(s.baseDir, meta.ID)
		}
	} else {
		runDir = filepath.Join(s.baseDir, meta.ID)
		if err := os.MkdirAll(runDir, 0755); err != nil {
			return nil, err
		}
	}

	file, err := os.Create(filepath.Join(runDir, "steps.csv"))
	if err != nil {
		return nil, err
	}
	w := csv.NewWriter(file)
	if err := w.Write(stepHeader); err != nil {
		file.Close()
		return nil, err
	}

	return &RunWriter{runDir: runDir, meta: meta, file: file, csv: w}, nil
}

// ID returns the run identifier assigned at Begin.
func (w *RunWriter) ID() string { return w.meta.ID }

// Consume appends one accepted step to steps.csv.
func (w *RunWriter) Consume(step *engine.Step) error {
	st := step.State
	row := []string{
		strconv.Itoa(st.Step),
		strconv.FormatFloat(st.Time, 'g', -1, 64),
		strconv.FormatFloat(step.StepSize, 'g', -1, 64),
		strconv.FormatFloat(step.Diag.CFL, 'g', -1, 64),
		strconv.Itoa(step.Diag.Attempts),
		step.Diag.Solver,
		strconv.Itoa(step.Diag.Iterations),
		strconv.FormatFloat(mean(st.Pressure), 'g', -1, 64),
		strconv.FormatFloat(mean(st.Sw), 'g', -1, 64),
	}
	if err := w.csv.Write(row); err != nil {
		return err
	}

	w.meta.AcceptedSteps++
	w.meta.FinalTime = st.Time
	return nil
}

// Finish writes metadata.json and the final per-cell state, then closes
// the run. totalRejects comes from the step controller.
func (w *RunWriter) Finish(final *grid.State, totalRejects int) error {
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		w.file.Close()
		return err
	}
	if err := w.file.Close(); err != nil {
		return err
	}

	if final != nil {
		if err := writeFinalState(filepath.Join(w.runDir, "state.csv"), final); err != nil {
			return err
		}
	}

	w.meta.TotalRejects = totalRejects
	metaFile, err := os.Create(filepath.Join(w.runDir, "metadata.json"))
	if err != nil {
		return err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	return enc.Encode(w.meta)
}

func writeFinalState(path string, s *grid.State) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	defer w.Flush()

	if err := w.Write([]string{"cell", "pressure", "sw", "so", "sg"}); err != nil {
		return err
	}
	for i := range s.Pressure {
		row := []string{
			strconv.Itoa(i),
			strconv.FormatFloat(s.Pressure[i], 'g', -1, 64),
			strconv.FormatFloat(s.Sw[i], 'g', -1, 64),
			strconv.FormatFloat(s.So[i], 'g', -1, 64),
			strconv.FormatFloat(s.Sg[i], 'g', -1, 64),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return w.Error()
}

// List returns the metadata of every readable run, skipping directories
// without valid metadata rather than failing the listing.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, "metadata.json"))
	if err != nil {
		return nil, err
	}
	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// LoadSteps reads back the per-step diagnostics of a run.
func (s *Store) LoadSteps(runID string) ([]StepRecord, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, "steps.csv"))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return []StepRecord{}, nil
	}

	steps := make([]StepRecord, 0, len(records)-1)
	for _, rec := range records[1:] {
		if len(rec) != len(stepHeader) {
			continue
		}
		step, err := parseStepRecord(rec)
		if err != nil {
			continue
		}
		steps = append(steps, step)
	}
	return steps, nil
}

func parseStepRecord(rec []string) (StepRecord, error) {
	var s StepRecord
	var err error
	if s.Step, err = strconv.Atoi(rec[0]); err != nil {
		return s, err
	}
	if s.Time, err = strconv.ParseFloat(rec[1], 64); err != nil {
		return s, err
	}
	if s.Dt, err = strconv.ParseFloat(rec[2], 64); err != nil {
		return s, err
	}
	if s.CFL, err = strconv.ParseFloat(rec[3], 64); err != nil {
		return s, err
	}
	if s.Attempts, err = strconv.Atoi(rec[4]); err != nil {
		return s, err
	}
	s.Solver = rec[5]
	if s.Iterations, err = strconv.Atoi(rec[6]); err != nil {
		return s, err
	}
	if s.MeanPressure, err = strconv.ParseFloat(rec[7], 64); err != nil {
		return s, err
	}
	if s.MeanSw, err = strconv.ParseFloat(rec[8], 64); err != nil {
		return s, err
	}
	return s, nil
}

// LoadFinalState reads back the final per-cell state of a run. The
// geometry comes from the run's metadata.
func (s *Store) LoadFinalState(runID string) (*grid.State, error) {
	meta, err := s.Load(runID)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(filepath.Join(s.baseDir, runID, "state.csv"))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, err
	}

	state := grid.NewState(meta.Geometry)
	state.Time = meta.FinalTime
	state.Step = meta.AcceptedSteps
	for _, rec := range records[1:] {
		if len(rec) != 5 {
			continue
		}
		cell, err := strconv.Atoi(rec[0])
		if err != nil || cell < 0 || cell >= meta.Geometry.Cells() {
			continue
		}
		state.Pressure[cell], _ = strconv.ParseFloat(rec[1], 64)
		state.Sw[cell], _ = strconv.ParseFloat(rec[2], 64)
		state.So[cell], _ = strconv.ParseFloat(rec[3], 64)
		state.Sg[cell], _ = strconv.ParseFloat(rec[4], 64)
	}
	return state, nil
}

func mean(f grid.Field) float64 {
	if len(f) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range f {
		sum += v
	}
	return sum / float64(len(f))
}
