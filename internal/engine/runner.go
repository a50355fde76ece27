package engine

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"
)

// RunDeadline is the hard wall-clock deadline for a single transcoder
// child process. It defaults to 120s but is overridden at startup from
// transcoder.run_timeout (see SetRunDeadline).
var RunDeadline = 120 * time.Second

// SetRunDeadline overrides RunDeadline. Call it once at startup, before
// any RunWorker call, with the configured transcoder.run_timeout; d<=0
// is ignored and the current deadline is kept.
func SetRunDeadline(d time.Duration) {
	if d <= 0 {
		return
	}
	RunDeadline = d
}

// nvencLimitMarkers are matched case-insensitively against stderr to
// recognize an encoder-session-limit failure.
var nvencLimitMarkers = []string{
	"no free encoding sessions",
	"cannot open encoder",
	"resource temporarily unavailable",
	"initialization failed",
}

// RunWorker launches one transcoder child with argv, waits for it to
// exit or hit RunDeadline, and classifies the outcome. argv has
// already had {gpu} substituted by the Plan Driver.
func RunWorker(ctx context.Context, argv []string) (stderrText string, failure *FailureReason) {
	if len(argv) == 0 {
		tag := FailureUnknownFFmpegError
		return "process has no argv", &tag
	}

	runCtx, cancel := context.WithTimeout(ctx, RunDeadline)
	defer cancel()

	cmd := exec.CommandContext(runCtx, argv[0], argv[1:]...) //nolint:gosec // argv is built from a plan-supplied template
	cmd.Stdin = nil

	var stderrBuf bytes.Buffer
	cmd.Stderr = &stderrBuf

	err := cmd.Run()
	stderrText = stderrBuf.String()

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		tag := FailureTimeout
		return stderrText, &tag
	}

	if err == nil {
		return stderrText, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		tag := classifyFailure(stderrText)
		return stderrText, &tag
	}

	// The process never ran at all (spawn failure): surface the system
	// message rather than attempt stderr-marker classification, since
	// no transcoder stderr was ever produced.
	tag := FailureUnknownFFmpegError
	return err.Error(), &tag
}

// classifyFailure applies the priority-ordered substring rules to a
// captured stderr stream to determine a FailureReason.
func classifyFailure(stderrText string) FailureReason {
	lower := strings.ToLower(stderrText)

	for _, marker := range nvencLimitMarkers {
		if strings.Contains(lower, marker) {
			return FailureNVENCLimit
		}
	}
	if strings.Contains(lower, "no such device") {
		return FailureDeviceNotFound
	}
	if strings.Contains(lower, "invalid device ordinal") {
		return FailureInvalidDevice
	}
	return FailureUnknownFFmpegError
}
