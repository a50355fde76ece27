package engine

import (
	"context"
	"math"
)

// nvidiaLevels is the fixed discrete enumeration NVIDIA consumer
// drivers cap concurrent encoder sessions at.
var nvidiaLevels = []int{1, 2, 3, 4, 8}

// PoolFunc runs one probe level. Production code passes RunPool;
// tests substitute a scripted stub.
type PoolFunc func(ctx context.Context, n int, argv []string) PoolOutcome

// sentinelKind replaces the overloaded numeric last_speed sentinels
// (-0.5 "never ran", -1 "scaleback from failure") with a tagged
// variant, so a real speed measurement can never collide with a
// control value.
type sentinelKind int

const (
	sentinelNeverRan sentinelKind = iota
	sentinelScalebackPending
	sentinelMeasured
)

type lastSpeed struct {
	kind  sentinelKind
	value float64
}

func neverRan() lastSpeed               { return lastSpeed{kind: sentinelNeverRan} }
func scalebackPending() lastSpeed       { return lastSpeed{kind: sentinelScalebackPending} }
func measuredSpeed(v float64) lastSpeed { return lastSpeed{kind: sentinelMeasured, value: v} }

// Probe runs the adaptive search for one (file, conversion, template)
// triple and returns the recorded runs and accumulated failure tags.
// The accelerator type selects the search strategy; the caller (Plan
// Driver) assembles the ProbeResult after the search terminates.
func Probe(ctx context.Context, accel AcceleratorType, argv []string, pool PoolFunc) (runs []RunStats, failures []FailureReason) {
	if accel == AcceleratorNVIDIA {
		return enumeratedProbe(ctx, argv, pool)
	}
	return linearProbe(ctx, argv, pool)
}

// linearProbe implements the scaleback search for cpu/intel/amd
// accelerators.
//
// Rule 1 ("abort on first-level failure") is scoped to the very first
// invocation of the whole search (last == NeverRan). A failure at N=1
// reached later via repeated scaleback instead falls through to rule 3
// and keeps decrementing, which is the only way the search can ever
// reach N=0 and terminate via rule 4 — see DESIGN.md for this
// disambiguation.
func linearProbe(ctx context.Context, argv []string, pool PoolFunc) (runs []RunStats, failures []FailureReason) {
	n := 1
	last := neverRan()

	for {
		if n == 0 {
			// Rule 4: infinite scaleback. No real pool invocation at N=0.
			failures = append(failures, FailureInfinityScaleback)
			return runs, failures
		}

		outcome := pool(ctx, n, argv)
		speed := outcome.Stats.Speed

		switch {
		case outcome.Failed && n == 1 && last.kind == sentinelNeverRan:
			// Rule 1: abort on first-level failure.
			failures = append(failures, outcome.Tags...)
			return nil, failures

		case !outcome.Failed && (last.kind == sentinelScalebackPending ||
			(last.kind == sentinelMeasured && last.value < 1.0)):
			// Rule 2: scaleback success.
			runs = append(runs, outcome.Stats.ToRunStats())
			if last.kind == sentinelScalebackPending {
				failures = append(failures, FailureLimited)
			} else {
				failures = append(failures, FailurePerformance)
			}
			return runs, failures

		case (outcome.Failed && (n > 1 || last.kind != sentinelNeverRan)) ||
			(!outcome.Failed && speed < 1.0 && last.kind == sentinelMeasured && last.value >= 2.0):
			// Rule 3: scaleback trigger. A standalone
			// last.kind == sentinelScalebackPending disjunct would be dead
			// here: on failure it's already covered by this case's first
			// disjunct (last.kind != sentinelNeverRan), and on success
			// Rule 2 above always matches first.
			n--
			if outcome.Failed {
				last = scalebackPending()
			} else {
				last = measuredSpeed(speed)
			}
			continue

		case !outcome.Failed && speed < 1.0:
			// Rule 5: performance floor.
			failures = append(failures, FailurePerformance)
			return runs, failures

		default:
			// Rule 6: growth.
			runs = append(runs, outcome.Stats.ToRunStats())
			last = measuredSpeed(speed)
			n += int(math.Floor(speed))
			continue
		}
	}
}

// enumeratedProbe implements the NVIDIA discrete-level search. It
// never re-enters linear growth once its enumeration ends.
func enumeratedProbe(ctx context.Context, argv []string, pool PoolFunc) (runs []RunStats, failures []FailureReason) {
	for _, n := range nvidiaLevels {
		outcome := pool(ctx, n, argv)

		if outcome.Failed {
			if containsTag(outcome.Tags, FailureNVENCLimit) {
				failures = append(append([]FailureReason{}, outcome.Tags...), FailureLimited)
			} else {
				failures = append([]FailureReason{}, outcome.Tags...)
			}
			return runs, failures
		}

		if outcome.Stats.Speed < 1.0 {
			failures = append(failures, FailurePerformance)
			return runs, failures
		}

		runs = append(runs, outcome.Stats.ToRunStats())
	}
	return runs, failures
}

func containsTag(tags []FailureReason, target FailureReason) bool {
	for _, t := range tags {
		if t == target {
			return true
		}
	}
	return false
}

// BuildSummary constructs the terminal Summary from a probe's recorded
// runs and accumulated failure tags.
func BuildSummary(runs []RunStats, failures []FailureReason) Summary {
	if len(runs) == 0 {
		return Summary{FailureReasons: failures}
	}

	maxStreams := runs[0].Workers
	for _, r := range runs[1:] {
		if r.Workers > maxStreams {
			maxStreams = r.Workers
		}
	}

	first := runs[0]
	return Summary{
		MaxStreams:        maxStreams,
		FailureReasons:    failures,
		SingleWorkerSpeed: first.Speed,
		SingleWorkerRSSKB: first.RSSKB,
	}
}
