package engine

import (
	"context"
	"sync"
)

// RunPool launches N Process Runners concurrently against the same
// argv and waits for all of them to finish before returning — a
// failing peer never cancels the others, so their failure tags remain
// informative.
func RunPool(ctx context.Context, n int, argv []string) PoolOutcome {
	type workerResult struct {
		stderrText string
		failure    *FailureReason
	}

	results := make([]workerResult, n)

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(idx int) {
			defer wg.Done()
			stderrText, failure := RunWorker(ctx, argv)
			results[idx] = workerResult{stderrText: stderrText, failure: failure}
		}(i)
	}
	wg.Wait()

	var tags []FailureReason
	for _, r := range results {
		if r.failure != nil {
			tags = append(tags, *r.failure)
		}
	}

	if len(tags) > 0 {
		return PoolOutcome{Failed: true, Tags: dedupeTags(tags)}
	}

	workerStats := make([]WorkerStats, n)
	for i, r := range results {
		workerStats[i] = ParseWorkerStats(r.stderrText)
	}

	return PoolOutcome{Failed: false, Stats: aggregate(workerStats)}
}

// aggregate folds N WorkerStats into a single AggregatedStats record
// per the Worker Pool's fold rule: max frame, mean speed, mean time,
// max rss, mean fps.
func aggregate(workers []WorkerStats) AggregatedStats {
	n := len(workers)
	if n == 0 {
		return AggregatedStats{}
	}

	maxFrame := workers[0].Frame
	var maxRSS int64 = workers[0].RSSKB
	var speedSum, timeSum, fpsSum float64

	for _, w := range workers {
		if w.Frame > maxFrame {
			maxFrame = w.Frame
		}
		if w.RSSKB > maxRSS {
			maxRSS = w.RSSKB
		}
		speedSum += w.Speed
		timeSum += w.TimeS
		fpsSum += w.AvgFPS
	}

	return AggregatedStats{
		Workers: n,
		Frame:   maxFrame,
		Speed:   speedSum / float64(n),
		TimeS:   timeSum / float64(n),
		RSSKB:   maxRSS,
		AvgFPS:  fpsSum / float64(n),
	}
}

// dedupeTags removes duplicate failure tags while preserving the first
// occurrence order, forming the union-of-failure-tags the Worker Pool
// contract requires.
func dedupeTags(tags []FailureReason) []FailureReason {
	seen := make(map[FailureReason]bool, len(tags))
	out := make([]FailureReason, 0, len(tags))
	for _, t := range tags {
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
