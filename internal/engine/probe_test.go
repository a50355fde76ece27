package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedPool returns a PoolFunc driven by a map of worker-count to
// canned outcomes, recording the sequence of N values it was invoked
// with so tests can assert on the probe's search path.
func scriptedPool(t *testing.T, script map[int]PoolOutcome) (PoolFunc, *[]int) {
	t.Helper()
	var calls []int
	fn := func(_ context.Context, n int, _ []string) PoolOutcome {
		calls = append(calls, n)
		outcome, ok := script[n]
		require.True(t, ok, "unscripted probe level %d", n)
		return outcome
	}
	return fn, &calls
}

func succeed(speed float64, workers int) PoolOutcome {
	return PoolOutcome{Stats: AggregatedStats{Workers: workers, Speed: speed, Frame: 1000}}
}

func fail(tags ...FailureReason) PoolOutcome {
	return PoolOutcome{Failed: true, Tags: tags}
}

// Scenario 1: linear growth, speed=2.0 repeatedly takes N through
// 1, 3, 5, 7; N=7 fails, the probe scales back to N=6, which succeeds
// and terminates the search tagged limited.
func TestLinearProbe_Scenario1_LinearGrowth(t *testing.T) {
	script := map[int]PoolOutcome{
		1: succeed(2.0, 1),
		3: succeed(2.0, 3),
		5: succeed(2.0, 5),
		7: fail(FailureGeneric),
		6: succeed(2.0, 6),
	}
	pool, calls := scriptedPool(t, script)

	runs, failures := linearProbe(context.Background(), nil, pool)

	assert.Equal(t, []int{1, 3, 5, 7, 6}, *calls)
	require.Len(t, runs, 4)
	assert.Equal(t, 1, runs[0].Workers)
	assert.Equal(t, 3, runs[1].Workers)
	assert.Equal(t, 5, runs[2].Workers)
	assert.Equal(t, 6, runs[3].Workers)
	assert.Contains(t, failures, FailureLimited)
}

// Scenario 2: NVIDIA enumerated, N=1 speed=3.0, N=2 speed=2.5, N=3 fails
// with failed_nvenc_limit -> runs=[{1},{2}], max_streams=2, tags include
// limited.
func TestEnumeratedProbe_Scenario2_NVENCLimit(t *testing.T) {
	script := map[int]PoolOutcome{
		1: succeed(3.0, 1),
		2: succeed(2.5, 2),
		3: fail(FailureNVENCLimit),
	}
	pool, calls := scriptedPool(t, script)

	runs, failures := enumeratedProbe(context.Background(), nil, pool)

	assert.Equal(t, []int{1, 2, 3}, *calls)
	require.Len(t, runs, 2)
	assert.Equal(t, 1, runs[0].Workers)
	assert.Equal(t, 2, runs[1].Workers)
	summary := BuildSummary(runs, failures)
	assert.Equal(t, 2, summary.MaxStreams)
	assert.Contains(t, failures, FailureLimited)
	assert.Contains(t, failures, FailureNVENCLimit)
}

// Scenario 3: performance floor. N=1 speed=4.0 -> N=5; N=5 speed=2.0 ->
// N=7; N=7 speed=0.7 with last_speed=2.0>=2.0 triggers scaleback to
// N=6; N=6 succeeds at speed=1.1 -> scaleback success, max_streams=6,
// tags include performance.
func TestLinearProbe_Scenario3_PerformanceFloorThenScalebackSuccess(t *testing.T) {
	script := map[int]PoolOutcome{
		1: succeed(4.0, 1),
		5: succeed(2.0, 5),
		7: succeed(0.7, 7),
		6: succeed(1.1, 6),
	}
	pool, calls := scriptedPool(t, script)

	runs, failures := linearProbe(context.Background(), nil, pool)

	assert.Equal(t, []int{1, 5, 7, 6}, *calls)
	require.Len(t, runs, 3)
	summary := BuildSummary(runs, failures)
	assert.Equal(t, 6, summary.MaxStreams)
	assert.Contains(t, failures, FailurePerformance)
}

// Scenario 4: first-level failure. N=1 fails generic_ffmpeg_failure ->
// empty runs, tags {generic_ffmpeg_failure}.
func TestLinearProbe_Scenario4_FirstLevelFailure(t *testing.T) {
	script := map[int]PoolOutcome{
		1: fail(FailureGeneric),
	}
	pool, calls := scriptedPool(t, script)

	runs, failures := linearProbe(context.Background(), nil, pool)

	assert.Equal(t, []int{1}, *calls)
	assert.Empty(t, runs)
	assert.Equal(t, []FailureReason{FailureGeneric}, failures)
}

// sequencedPool returns outcomes from a fixed list in call order,
// regardless of the N the probe invokes it with, and records the N
// sequence observed. Used where the same worker count is revisited
// with a different outcome on each visit (e.g. repeated scaleback).
func sequencedPool(t *testing.T, outcomes []PoolOutcome) (PoolFunc, *[]int) {
	t.Helper()
	var calls []int
	i := 0
	fn := func(_ context.Context, n int, _ []string) PoolOutcome {
		calls = append(calls, n)
		require.Less(t, i, len(outcomes), "probe invoked more times than scripted")
		o := outcomes[i]
		i++
		return o
	}
	return fn, &calls
}

// Scenario 5: infinity scaleback. A failing sequence drives N down from
// 2 to 0 with no intervening success, terminating with
// infinity_scaleback; the N=1 run recorded before growth is kept.
func TestLinearProbe_Scenario5_InfinityScaleback(t *testing.T) {
	// N=1 succeeds, N=2 fails (scaleback to N=1), N=1 fails again
	// (scaleback to N=0), which must terminate without a further pool
	// call at N=0.
	outcomes := []PoolOutcome{
		succeed(1.0, 1),
		fail(FailureGeneric),
		fail(FailureGeneric),
	}
	pool, calls := sequencedPool(t, outcomes)

	runs, failures := linearProbe(context.Background(), nil, pool)

	assert.Equal(t, []int{1, 2, 1}, *calls)
	// N=1's initial success is recorded by rule 6 before growth ever
	// takes n past 1, so one run survives even though every subsequent
	// level fails all the way down to the N=0 termination.
	require.Len(t, runs, 1)
	assert.Equal(t, 1, runs[0].Workers)
	summary := BuildSummary(runs, failures)
	assert.Equal(t, 1, summary.MaxStreams)
	assert.Contains(t, failures, FailureInfinityScaleback)
}

func TestLinearProbe_NeverRunsAtZeroWorkers(t *testing.T) {
	outcomes := []PoolOutcome{
		succeed(1.0, 1),
		fail(FailureGeneric),
		fail(FailureGeneric),
	}
	pool, calls := sequencedPool(t, outcomes)

	_, _ = linearProbe(context.Background(), nil, pool)

	for _, n := range *calls {
		assert.NotEqual(t, 0, n, "probe must never invoke the pool at N=0")
	}
}

func TestBuildSummary_EmptyRuns(t *testing.T) {
	summary := BuildSummary(nil, []FailureReason{FailureTimeout})
	assert.Equal(t, 0, summary.MaxStreams)
	assert.Equal(t, []FailureReason{FailureTimeout}, summary.FailureReasons)
}

func TestBuildSummary_SingleWorkerFieldsFromFirstRun(t *testing.T) {
	runs := []RunStats{
		{Workers: 1, Speed: 3.0, RSSKB: 500},
		{Workers: 3, Speed: 2.0, RSSKB: 900},
	}
	summary := BuildSummary(runs, nil)
	assert.Equal(t, 3, summary.MaxStreams)
	assert.Equal(t, 3.0, summary.SingleWorkerSpeed)
	assert.Equal(t, int64(500), summary.SingleWorkerRSSKB)
}

func TestEnumeratedProbe_NeverReentersLinearGrowth(t *testing.T) {
	script := map[int]PoolOutcome{
		1: succeed(3.0, 1),
		2: succeed(3.0, 2),
		3: succeed(3.0, 3),
		4: succeed(3.0, 4),
		8: succeed(3.0, 8),
	}
	pool, calls := scriptedPool(t, script)

	runs, failures := enumeratedProbe(context.Background(), nil, pool)

	assert.Equal(t, []int{1, 2, 3, 4, 8}, *calls)
	assert.Len(t, runs, 5)
	assert.Empty(t, failures)
}

func TestEnumeratedProbe_NonNVENCFailurePropagatesImmediately(t *testing.T) {
	script := map[int]PoolOutcome{
		1: fail(FailureDeviceNotFound),
	}
	pool, calls := scriptedPool(t, script)

	runs, failures := enumeratedProbe(context.Background(), nil, pool)

	assert.Equal(t, []int{1}, *calls)
	assert.Empty(t, runs)
	assert.Equal(t, []FailureReason{FailureDeviceNotFound}, failures)
}

func TestProbe_DispatchesByAccelerator(t *testing.T) {
	pool, calls := scriptedPool(t, map[int]PoolOutcome{
		1: succeed(3.0, 1),
		2: fail(FailureNVENCLimit),
	})

	runs, failures := Probe(context.Background(), AcceleratorNVIDIA, nil, pool)

	assert.Equal(t, []int{1, 2}, *calls)
	assert.Len(t, runs, 1)
	assert.Contains(t, failures, FailureLimited)
}

func TestLinearProbe_RunsAreStrictlyIncreasing(t *testing.T) {
	script := map[int]PoolOutcome{
		1: succeed(2.0, 1),
		3: succeed(2.0, 3),
		5: fail(FailureGeneric),
		4: succeed(0.9, 4),
	}
	pool, _ := scriptedPool(t, script)

	runs, _ := linearProbe(context.Background(), nil, pool)

	for i := 1; i < len(runs); i++ {
		assert.Greater(t, runs[i].Workers, runs[i-1].Workers)
	}
}
