package sim

import (
	"fmt"
	"log/slog"

	"github.com/san-kum/porosim/internal/config"
	"github.com/san-kum/porosim/internal/diag"
	"github.com/san-kum/porosim/internal/engine"
	"github.com/san-kum/porosim/internal/grid"
	"github.com/san-kum/porosim/internal/precond"
	"github.com/san-kum/porosim/internal/reservoir"
	"github.com/san-kum/porosim/internal/solver"
	"github.com/san-kum/porosim/internal/storage"
	"github.com/san-kum/porosim/internal/timer"
)

// Run is one fully wired simulation: model, engine, controller and
// statistics, built from a validated config and ready to execute.
type Run struct {
	Config     *config.Config
	Model      *reservoir.Model
	Engine     *engine.Engine
	Controller *timer.Controller
	Stats      *diag.Stats

	logger *slog.Logger
}

// Result summarizes one executed run.
type Result struct {
	RunID     string
	FinalTime float64
	Final     *grid.State
	Summary   diag.Summary
}

// Build wires a run from its configuration. Registries are constructed
// here; nothing global is touched.
func Build(cfg *config.Config, logger *slog.Logger) (*Run, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	geom := cfg.Geometry()
	model, err := reservoir.NewModel(geom,
		reservoir.UniformRock(geom.Cells(), cfg.Rock.Porosity, cfg.Rock.Permeability),
		reservoir.Fluid{
			WaterViscosity:  cfg.Fluid.WaterViscosity,
			OilViscosity:    cfg.Fluid.OilViscosity,
			Compressibility: cfg.Fluid.Compressibility,
		},
		wellsFromConfig(cfg, geom))
	if err != nil {
		return nil, err
	}

	chain, err := solver.NewRegistry().Resolve(cfg.Solver.Chain, solver.Options{
		Tolerance:     cfg.Solver.Tolerance,
		MaxIterations: cfg.Solver.MaxIterations,
	})
	if err != nil {
		return nil, fmt.Errorf("resolve solver chain: %w", err)
	}

	pcf, err := preconditionerFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	eng, err := engine.New(engine.Params{
		Provider:       model,
		Updater:        model,
		Chain:          chain,
		Preconditioner: pcf,
		MaxCFL:         cfg.Timer.MaxCFL,
		MildCFLRatio:   cfg.Timer.MildCFLRatio,
		SaturationTol:  cfg.Solver.SaturationTol,
		Logger:         logger,
	})
	if err != nil {
		return nil, err
	}

	ctrl, err := timer.NewController(cfg.TimerConfig())
	if err != nil {
		return nil, err
	}

	return &Run{
		Config:     cfg,
		Model:      model,
		Engine:     eng,
		Controller: ctrl,
		Stats:      diag.NewStats(),
		logger:     logger,
	}, nil
}

func wellsFromConfig(cfg *config.Config, geom grid.Geometry) []reservoir.Well {
	wells := make([]reservoir.Well, 0, len(cfg.Wells))
	for _, w := range cfg.Wells {
		kind := reservoir.Injector
		if w.Kind == "producer" {
			kind = reservoir.Producer
		}
		wells = append(wells, reservoir.Well{
			Name: w.Name,
			Kind: kind,
			Cell: geom.Index(w.I, w.J, w.K),
			Rate: w.Rate,
		})
	}
	return wells
}

func preconditionerFromConfig(cfg *config.Config) (precond.Factory, error) {
	name := cfg.Solver.Preconditioner
	if name == "" || name == "none" {
		return nil, nil
	}
	pcf, err := precond.NewRegistry().Get(name)
	if err != nil {
		return nil, err
	}
	if cfg.Solver.Cache.Enabled {
		pcf = precond.NewCachedFactory(pcf,
			cfg.Solver.Cache.UpdateFrequency,
			cfg.Solver.Cache.RecomputeThreshold)
	}
	return pcf, nil
}

// InitialState builds the uniform starting state of the configured scenario.
func (r *Run) InitialState() *grid.State {
	s := grid.NewState(r.Config.Geometry())
	for i := range s.Pressure {
		s.Pressure[i] = r.Config.Initial.Pressure
		s.Sw[i] = r.Config.Initial.WaterSat
		s.So[i] = 1 - r.Config.Initial.WaterSat
	}
	return s
}

// Stream opens the step iterator for this run with the given extra
// options. Stats observation is always attached.
func (r *Run) Stream(opts ...engine.Option) (*engine.Stream, error) {
	opts = append([]engine.Option{
		engine.WithLogger(r.logger),
		engine.WithObserver(r.Stats),
	}, opts...)
	return engine.NewStream(r.Engine, r.Controller, r.InitialState(), r.Config.Horizon, opts...)
}

// Execute drives the run to completion, persisting it through store when
// store is non-nil. Persistence runs on the stream's background consumer
// when the config asks for it.
func (r *Run) Execute(store *storage.Store) (*Result, error) {
	var writer *storage.RunWriter
	var opts []engine.Option

	if store != nil {
		if err := store.Init(); err != nil {
			return nil, err
		}
		var err error
		writer, err = store.Begin(storage.RunMetadata{
			Scenario:       r.Config.Scenario,
			Geometry:       r.Config.Geometry(),
			Horizon:        r.Config.Horizon,
			SolverChain:    r.Config.Solver.Chain,
			Preconditioner: r.Config.Solver.Preconditioner,
		})
		if err != nil {
			return nil, err
		}
		if r.Config.Output.BackgroundIO {
			opts = append(opts, engine.WithSink(writer, r.Config.Output.Buffer))
		}
	}

	stream, err := r.Stream(opts...)
	if err != nil {
		return nil, err
	}

	inline := writer != nil && !r.Config.Output.BackgroundIO
	runErr := func() error {
		for {
			step, err := stream.Next()
			if err == engine.ErrDone {
				return nil
			}
			if err != nil {
				return err
			}
			if inline {
				if err := writer.Consume(step); err != nil {
					return err
				}
			}
		}
	}()

	if err := stream.Close(); err != nil && runErr == nil {
		runErr = err
	}

	final := stream.State()
	result := &Result{
		FinalTime: final.Time,
		Final:     final,
		Summary:   r.Stats.Summary(),
	}

	if writer != nil {
		result.RunID = writer.ID()
		if err := writer.Finish(final, r.Controller.TotalRejects()); err != nil && runErr == nil {
			runErr = err
		}
	}

	if runErr != nil {
		return result, runErr
	}
	r.logger.Info("run complete",
		"scenario", r.Config.Scenario,
		"t", final.Time,
		"steps", result.Summary.Accepts,
		"rejects", r.Controller.TotalRejects())
	return result, nil
}
