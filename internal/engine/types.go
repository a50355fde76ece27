// Package engine implements the adaptive concurrency-probe benchmark
// engine: it drives a BenchmarkPlan through the Process Runner, Stat
// Parser, Worker Pool, and Probe Engine to produce ProbeResult records.
package engine

// AcceleratorType identifies the compute device a CommandTemplate targets.
type AcceleratorType string

// Supported accelerator types.
const (
	AcceleratorCPU    AcceleratorType = "cpu"
	AcceleratorIntel  AcceleratorType = "intel"
	AcceleratorAMD    AcceleratorType = "amd"
	AcceleratorNVIDIA AcceleratorType = "nvidia"
)

// FailureReason is a failure tag attached to a ProbeResult. Failures are
// data, never exceptions.
type FailureReason string

// Recognized failure tags.
const (
	FailureGeneric            FailureReason = "generic_ffmpeg_failure"
	FailureTimeout            FailureReason = "failed_timeout"
	FailureNVENCLimit         FailureReason = "failed_nvenc_limit"
	FailureLimited            FailureReason = "limited"
	FailurePerformance        FailureReason = "performance"
	FailureInfinityScaleback  FailureReason = "infinity_scaleback"
	FailureDeviceNotFound     FailureReason = "device_not_found"
	FailureInvalidDevice      FailureReason = "invalid_device"
	FailureUnknownFFmpegError FailureReason = "unknown_ffmpeg_error"
)

// CommandTemplate describes one transcoder invocation shape for a given
// accelerator type.
type CommandTemplate struct {
	Accelerator AcceleratorType `json:"accelerator"`
	OutputCodec string          `json:"output_codec"`
	ArgTemplate string          `json:"arg_template"`
}

// Conversion groups the command templates that realize a single source
// resolution to target resolution/bitrate transform.
type Conversion struct {
	ID               string            `json:"id"`
	SourceResolution string            `json:"source_resolution"`
	TargetResolution string            `json:"target_resolution"`
	TargetBitrateBPS int64             `json:"target_bitrate_bps"`
	CommandTemplates []CommandTemplate `json:"command_templates"`
}

// File is one staged media input and the conversions to run against it.
type File struct {
	Name        string       `json:"name"`
	Path        string       `json:"path"`
	Conversions []Conversion `json:"conversions"`
}

// BenchmarkPlan is the ordered input to the Plan Driver.
type BenchmarkPlan struct {
	Files []File `json:"files"`
}

// ExecutionContext carries the host-specific facts the Plan Driver needs
// to filter templates and build argv.
type ExecutionContext struct {
	EnabledAccelerators map[AcceleratorType]bool
	TranscoderPath      string
	GPUIndex            int
}

// NewExecutionContext builds an ExecutionContext with the given
// accelerator set enabled.
func NewExecutionContext(transcoderPath string, gpuIndex int, accelerators ...AcceleratorType) ExecutionContext {
	enabled := make(map[AcceleratorType]bool, len(accelerators))
	for _, a := range accelerators {
		enabled[a] = true
	}
	return ExecutionContext{
		EnabledAccelerators: enabled,
		TranscoderPath:      transcoderPath,
		GPUIndex:            gpuIndex,
	}
}

// RunStats records one successful probe level.
type RunStats struct {
	Workers int     `json:"workers"`
	Frame   int     `json:"frame"`
	Speed   float64 `json:"speed"`
	TimeS   float64 `json:"time_s"`
	RSSKB   int64   `json:"rss_kb"`
	AvgFPS  float64 `json:"avg_fps"`
}

// Summary is the terminal judgement of a probe.
type Summary struct {
	MaxStreams        int             `json:"max_streams"`
	FailureReasons    []FailureReason `json:"failure_reasons"`
	SingleWorkerSpeed float64         `json:"single_worker_speed"`
	SingleWorkerRSSKB int64           `json:"single_worker_rss_kb"`
}

// ProbeResult is the per-triple output of the Probe Engine.
type ProbeResult struct {
	Accelerator  AcceleratorType `json:"accelerator"`
	ConversionID string          `json:"conversion_id"`
	GPUIndex     *int            `json:"gpu_index"`
	CPUIndex     *int            `json:"cpu_index"`
	Runs         []RunStats      `json:"runs"`
	Summary      Summary         `json:"summary"`
}

// WorkerStats is the per-worker record produced by the Stat Parser from
// one captured stderr stream.
type WorkerStats struct {
	Frame  int
	Speed  float64
	TimeS  float64
	RSSKB  int64
	AvgFPS float64
}

// AggregatedStats is the Worker Pool's fold over N WorkerStats.
type AggregatedStats struct {
	Workers int
	Frame   int
	Speed   float64
	TimeS   float64
	RSSKB   int64
	AvgFPS  float64
}

// ToRunStats converts an AggregatedStats into the RunStats shape
// appended to a ProbeResult.
func (a AggregatedStats) ToRunStats() RunStats {
	return RunStats{
		Workers: a.Workers,
		Frame:   a.Frame,
		Speed:   a.Speed,
		TimeS:   a.TimeS,
		RSSKB:   a.RSSKB,
		AvgFPS:  a.AvgFPS,
	}
}

// PoolOutcome is the Worker Pool's verdict for one probe level.
type PoolOutcome struct {
	Failed bool
	Tags   []FailureReason
	Stats  AggregatedStats
}
