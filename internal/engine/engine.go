package engine

import "context"

// RunBenchmark is the External Interfaces entry point: given a staged
// plan and execution context, it runs the full engine with the
// production Worker Pool and returns the ordered ProbeResults.
func RunBenchmark(ctx context.Context, plan BenchmarkPlan, execCtx ExecutionContext) []ProbeResult {
	return RunPlan(ctx, plan, execCtx, RunPool)
}
