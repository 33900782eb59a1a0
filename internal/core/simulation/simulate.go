// Package simulation estimates attack tree compromise probabilities by Monte
// Carlo sampling, cross-validating the analytic evaluator.
package simulation

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/solhaga/threatlens/internal/core/domain"
)

// z975 is the 97.5th normal percentile used for the two-sided 95% interval.
const z975 = 1.959963984540054

// Options controls a simulation run.
type Options struct {
	Trials  int   // Number of independent trials, must be positive
	Seed    int64 // Base seed; a fixed seed and worker count reproduce the run exactly
	Workers int   // Parallel workers; <= 1 means single-threaded
}

// Result is the outcome of a Monte Carlo run. The confidence interval uses the
// standard binomial-proportion normal approximation at the 95% level, so more
// trials always produce a narrower interval.
type Result struct {
	Trials       int
	Successes    int
	Estimate     float64
	IntervalLow  float64
	IntervalHigh float64
}

// Run performs opts.Trials independent trials against a validated tree. Each
// trial draws one Bernoulli outcome per distinct leaf threat id and propagates
// booleans bottom-up (AND/OR). Trials are split into fixed per-worker shares
// with per-worker sub-seeds derived from the base seed, so parallel runs stay
// reproducible for a fixed seed and worker count. Cancellation via ctx stops
// at a trial boundary; the partial count is discarded and the context error
// returned, since callers asked for exactly opts.Trials.
func Run(ctx context.Context, root domain.Node, catalog *domain.Catalog, opts Options) (Result, error) {
	if opts.Trials <= 0 {
		return Result{}, fmt.Errorf("trial count must be positive, got %d", opts.Trials)
	}
	if err := domain.ValidateTree(root, catalog); err != nil {
		return Result{}, err
	}

	ids := domain.LeafThreatIDs(root)
	probs := make([]float64, len(ids))
	index := make(map[string]int, len(ids))
	for i, id := range ids {
		rec, ok := catalog.Get(id)
		if !ok {
			// ValidateTree already resolved every leaf; reaching this is a defect.
			return Result{}, &domain.DanglingReferenceError{ThreatID: id}
		}
		probs[i] = rec.Probability
		index[id] = i
	}

	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > opts.Trials {
		workers = opts.Trials
	}

	// Fixed partition: worker i runs share trials (the first remainder workers
	// run one extra) with sub-seed seed+i. Private counters, summed at the end.
	share := opts.Trials / workers
	remainder := opts.Trials % workers

	type partial struct {
		successes int
		err       error
	}
	results := make(chan partial, workers)

	for w := 0; w < workers; w++ {
		trials := share
		if w < remainder {
			trials++
		}
		go func(worker, trials int) {
			rng := rand.New(rand.NewSource(opts.Seed + int64(worker)))
			outcomes := make([]bool, len(probs))
			successes := 0

			for t := 0; t < trials; t++ {
				if err := ctx.Err(); err != nil {
					results <- partial{err: err}
					return
				}
				for i, p := range probs {
					outcomes[i] = rng.Float64() < p
				}
				if evalBool(root, index, outcomes) {
					successes++
				}
			}
			results <- partial{successes: successes}
		}(w, trials)
	}

	successes := 0
	for w := 0; w < workers; w++ {
		p := <-results
		if p.err != nil {
			return Result{}, p.err
		}
		successes += p.successes
	}

	estimate := float64(successes) / float64(opts.Trials)
	half := z975 * math.Sqrt(estimate*(1-estimate)/float64(opts.Trials))

	return Result{
		Trials:       opts.Trials,
		Successes:    successes,
		Estimate:     estimate,
		IntervalLow:  math.Max(0, estimate-half),
		IntervalHigh: math.Min(1, estimate+half),
	}, nil
}

// evalBool propagates sampled leaf outcomes bottom-up. The tree was validated,
// so every leaf id is present in the index.
func evalBool(n domain.Node, index map[string]int, outcomes []bool) bool {
	switch node := n.(type) {
	case *domain.Leaf:
		return outcomes[index[node.ThreatID]]
	case *domain.AndNode:
		for _, child := range node.Children {
			if !evalBool(child, index, outcomes) {
				return false
			}
		}
		return true
	case *domain.OrNode:
		for _, child := range node.Children {
			if evalBool(child, index, outcomes) {
				return true
			}
		}
		return false
	}
	return false
}
