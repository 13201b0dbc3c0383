package precond

import (
	"math"

	"github.com/san-kum/porosim/internal/linsys"
)

// CachedFactory wraps another factory and reuses a previously built
// preconditioner across steps. On every Build it compares a cheap matrix
// fingerprint against the cached entry and rebuilds only when the entry is
// old enough or the system has drifted enough; otherwise the cached object
// is returned unchanged. Purely an optimization: correctness never depends
// on the cache being warm.
type CachedFactory struct {
	inner Factory

	// UpdateFrequency bounds the age in steps of a cached entry;
	// RecomputeThreshold bounds the relative fingerprint drift.
	// Whichever bound is hit first forces a rebuild.
	updateFrequency    int
	recomputeThreshold float64

	entry    *cacheEntry
	rebuilds int
	builds   int
}

type cacheEntry struct {
	fingerprint float64
	age         int
	pc          Preconditioner
}

func NewCachedFactory(inner Factory, updateFrequency int, recomputeThreshold float64) *CachedFactory {
	return &CachedFactory{
		inner:              inner,
		updateFrequency:    updateFrequency,
		recomputeThreshold: recomputeThreshold,
	}
}

func (c *CachedFactory) Name() string { return "cached_" + c.inner.Name() }

func (c *CachedFactory) Build(a *linsys.Matrix, prev Preconditioner) (Preconditioner, error) {
	fp := a.Fingerprint()

	if c.entry == nil {
		pc, err := c.inner.Build(a, prev)
		if err != nil {
			return nil, err
		}
		c.builds++
		c.entry = &cacheEntry{fingerprint: fp, pc: pc}
		return pc, nil
	}

	c.entry.age++
	if c.entry.age < c.updateFrequency && c.drift(fp) < c.recomputeThreshold {
		return c.entry.pc, nil
	}

	pc, err := c.inner.Build(a, c.entry.pc)
	if err != nil {
		// A stale entry that failed to refresh must not be served again.
		c.entry = nil
		return nil, err
	}
	c.builds++
	c.rebuilds++
	c.entry = &cacheEntry{fingerprint: fp, pc: pc}
	return pc, nil
}

func (c *CachedFactory) drift(fp float64) float64 {
	ref := math.Abs(c.entry.fingerprint)
	if ref == 0 {
		if fp == 0 {
			return 0
		}
		return math.Inf(1)
	}
	return math.Abs(fp-c.entry.fingerprint) / ref
}

// Invalidate drops the cached entry so the next Build always rebuilds.
// The engine forces this after a preconditioner-related solve failure.
func (c *CachedFactory) Invalidate() { c.entry = nil }

// Rebuilds counts cache refreshes, excluding the initial build.
func (c *CachedFactory) Rebuilds() int { return c.rebuilds }

// Builds counts every construction performed by the inner factory.
func (c *CachedFactory) Builds() int { return c.builds }

// Age reports the current entry's age in steps, or -1 with a cold cache.
func (c *CachedFactory) Age() int {
	if c.entry == nil {
		return -1
	}
	return c.entry.age
}
