package engine

import (
	"regexp"
	"strconv"
	"strings"
)

// minRetainedFrame is the frame-count threshold below which a progress
// line is treated as warmup noise and discarded.
const minRetainedFrame = 500

// progressLinePattern selects candidate progress lines (those starting
// with "frame="); parseProgressLine then extracts frame, fps, and speed
// from the 1st, 2nd, and 6th fields.
var progressLinePattern = regexp.MustCompile(`^frame=`)

// benchMaxRSSPattern matches a "bench: maxrss=<N>kB ..." summary line.
var benchMaxRSSPattern = regexp.MustCompile(`^bench:\s*maxrss`)

// benchUtimePattern matches a "bench: ... utime=<T>s ..." summary line.
var benchUtimePattern = regexp.MustCompile(`^bench:.*\butime`)

// kvPattern extracts the value out of a normalized key=value token,
// tolerating trailing unit suffixes like "x", "kB", or "s".
var kvPattern = regexp.MustCompile(`=\s*([0-9.]+)`)

// ParseWorkerStats extracts a WorkerStats record from one captured
// transcoder stderr stream. Progress lines with frame < minRetainedFrame
// are discarded as warmup; malformed or absent lines degrade to zero
// values rather than erroring, per the parser's tolerant-defaults
// design.
func ParseWorkerStats(stderrText string) WorkerStats {
	var frames []int
	var speeds []float64
	var fpsValues []float64

	var rssKB int64
	var timeS float64

	for _, line := range strings.Split(stderrText, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		switch {
		case progressLinePattern.MatchString(line):
			frame, fps, speed, ok := parseProgressLine(line)
			if ok && frame >= minRetainedFrame {
				frames = append(frames, frame)
				speeds = append(speeds, speed)
				fpsValues = append(fpsValues, fps)
			}
		case benchMaxRSSPattern.MatchString(line):
			if v, ok := parseFirstFloat(line); ok {
				rssKB = int64(v)
			}
		case benchUtimePattern.MatchString(line):
			if v, ok := parseUtime(line); ok {
				timeS = v
			}
		}
	}

	count := len(frames)
	denom := count
	if denom == 0 {
		denom = 1
	}

	maxFrame := 1
	if count > 0 {
		maxFrame = frames[0]
		for _, f := range frames[1:] {
			if f > maxFrame {
				maxFrame = f
			}
		}
	}

	var speedSum, fpsSum float64
	for _, s := range speeds {
		speedSum += s
	}
	for _, f := range fpsValues {
		fpsSum += f
	}

	return WorkerStats{
		Frame:  maxFrame,
		Speed:  speedSum / float64(denom),
		TimeS:  timeS,
		RSSKB:  rssKB,
		AvgFPS: fpsSum / float64(denom),
	}
}

// parseProgressLine normalizes a "frame=... fps=... ... speed=...x ..."
// line (whitespace-tolerant around '=') and extracts the 1st, 2nd, and
// 6th whitespace-separated fields.
func parseProgressLine(line string) (frame int, fps float64, speed float64, ok bool) {
	normalized := kvPattern.ReplaceAllString(line, "=$1")
	fields := strings.Fields(normalized)
	const (
		frameField = 0
		fpsField   = 1
		speedField = 5
	)
	if len(fields) <= speedField {
		return 0, 0, 0, false
	}

	frameVal, err := fieldValue(fields[frameField])
	if err != nil {
		return 0, 0, 0, false
	}
	fpsVal, err := fieldValue(fields[fpsField])
	if err != nil {
		return 0, 0, 0, false
	}
	speedVal, err := fieldValue(strings.TrimSuffix(fields[speedField], "x"))
	if err != nil {
		return 0, 0, 0, false
	}

	return int(frameVal), fpsVal, speedVal, true
}

// fieldValue parses the numeric value out of a "key=value" token.
func fieldValue(kv string) (float64, error) {
	idx := strings.Index(kv, "=")
	if idx < 0 {
		return 0, strconv.ErrSyntax
	}
	return strconv.ParseFloat(strings.TrimSuffix(kv[idx+1:], "x"), 64)
}

// parseFirstFloat extracts the first key=value numeric value on a line,
// used for "bench: maxrss=<N>kB" lines.
func parseFirstFloat(line string) (float64, bool) {
	m := kvPattern.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// parseUtime extracts the seconds value from the token at word index 3
// of a "bench: ... utime=<T>s ..." line, post-whitespace-split.
func parseUtime(line string) (float64, bool) {
	fields := strings.Fields(line)
	const utimeField = 3
	if len(fields) <= utimeField {
		return 0, false
	}
	token := fields[utimeField]
	idx := strings.Index(token, "=")
	if idx < 0 {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSuffix(token[idx+1:], "s"), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
