package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/porosim/internal/config"
	"github.com/san-kum/porosim/internal/storage"
)

func smallConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Scenario = "small-flood"
	cfg.Grid = config.GridConfig{Nx: 6, Ny: 6, Nz: 1, Dx: 10, Dy: 10, Dz: 2}
	cfg.Wells = []config.WellConfig{
		{Name: "inj", Kind: "injector", I: 0, J: 0, K: 0, Rate: 1e-5},
		{Name: "prod", Kind: "producer", I: 5, J: 5, K: 0, Rate: 1e-5},
	}
	cfg.Horizon = 7200
	cfg.Timer.InitialStep = 60
	cfg.Timer.MaxStep = 600
	return cfg
}

func TestBuildRejectsInvalidConfig(t *testing.T) {
	cfg := smallConfig()
	cfg.Horizon = 0
	_, err := Build(cfg, nil)
	assert.Error(t, err, "invalid config must fail the build")

	cfg = smallConfig()
	cfg.Solver.Chain = []string{"gmres"}
	_, err = Build(cfg, nil)
	assert.Error(t, err, "unknown solver must fail the build")

	cfg = smallConfig()
	cfg.Solver.Preconditioner = "amg"
	_, err = Build(cfg, nil)
	assert.Error(t, err, "unknown preconditioner must fail the build")
}

func TestExecuteWithoutStore(t *testing.T) {
	run, err := Build(smallConfig(), nil)
	require.NoError(t, err)

	res, err := run.Execute(nil)
	require.NoError(t, err)

	assert.Equal(t, 7200.0, res.FinalTime, "run must reach the horizon")
	assert.NotZero(t, res.Summary.Accepts)
	assert.Empty(t, res.RunID, "run id must be empty without a store")

	// Injection must have raised the water saturation at the heel.
	injCell := run.Config.Geometry().Index(0, 0, 0)
	assert.Greater(t, res.Final.Sw[injCell], run.Config.Initial.WaterSat)
}

func TestExecutePersistsRun(t *testing.T) {
	cfg := smallConfig()
	cfg.Output.Dir = t.TempDir()
	run, err := Build(cfg, nil)
	require.NoError(t, err)

	store := storage.New(cfg.Output.Dir)
	res, err := run.Execute(store)
	require.NoError(t, err)
	require.NotEmpty(t, res.RunID)

	meta, err := store.Load(res.RunID)
	require.NoError(t, err)
	assert.Equal(t, res.Summary.Accepts, meta.AcceptedSteps)

	steps, err := store.LoadSteps(res.RunID)
	require.NoError(t, err)
	assert.Len(t, steps, res.Summary.Accepts)

	final, err := store.LoadFinalState(res.RunID)
	require.NoError(t, err)
	assert.Equal(t, res.FinalTime, final.Time)
}

func TestExecuteInlineIO(t *testing.T) {
	cfg := smallConfig()
	cfg.Output.Dir = t.TempDir()
	cfg.Output.BackgroundIO = false
	run, err := Build(cfg, nil)
	require.NoError(t, err)

	store := storage.New(cfg.Output.Dir)
	res, err := run.Execute(store)
	require.NoError(t, err)

	steps, err := store.LoadSteps(res.RunID)
	require.NoError(t, err)
	assert.Len(t, steps, res.Summary.Accepts, "inline io must write every accepted step")
}

func TestBatchRunsAllScenarios(t *testing.T) {
	a := smallConfig()
	b := smallConfig()
	b.Scenario = "second"
	b.Horizon = 3600

	dir := t.TempDir()
	a.Output.Dir = dir
	b.Output.Dir = dir

	store := storage.New(dir)
	results, err := NewBatch([]*config.Config{a, b}, nil).Run(store)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, 7200.0, results[0].FinalTime)
	assert.Equal(t, 3600.0, results[1].FinalTime)

	runs, err := store.List()
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestBatchReportsFirstError(t *testing.T) {
	good := smallConfig()
	bad := smallConfig()
	bad.Solver.Chain = nil

	_, err := NewBatch([]*config.Config{good, bad}, nil).Run(nil)
	assert.Error(t, err, "batch must surface the failing run")
}
