package sim

import (
	"log/slog"
	"sync"

	"github.com/san-kum/porosim/internal/config"
	"github.com/san-kum/porosim/internal/storage"
)

// Batch executes several scenarios concurrently, one goroutine per run.
// Runs are fully independent: each gets its own model, registries and
// controller, so there is no shared mutable state between them.
type Batch struct {
	configs []*config.Config
	logger  *slog.Logger
}

func NewBatch(configs []*config.Config, logger *slog.Logger) *Batch {
	if logger == nil {
		logger = slog.Default()
	}
	return &Batch{configs: configs, logger: logger}
}

// Run executes every scenario and returns the results in config order.
// The first error is returned after all runs have finished; partial
// results stay available to the caller.
func (b *Batch) Run(store *storage.Store) ([]*Result, error) {
	results := make([]*Result, len(b.configs))
	errs := make([]error, len(b.configs))

	var wg sync.WaitGroup
	for i, cfg := range b.configs {
		wg.Add(1)
		go func(idx int, cfg *config.Config) {
			defer wg.Done()

			run, err := Build(cfg, b.logger.With("scenario", cfg.Scenario))
			if err != nil {
				errs[idx] = err
				return
			}
			results[idx], errs[idx] = run.Execute(store)
		}(i, cfg)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return results, err
		}
	}
	return results, nil
}
