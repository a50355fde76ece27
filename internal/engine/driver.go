package engine

import (
	"context"
	"strconv"
	"strings"
)

// RunPlan iterates a BenchmarkPlan's files, conversions, and command
// templates in declaration order, skipping any template whose
// accelerator is not enabled in ctx, and runs the Probe Engine for
// each surviving triple. Only ProbeResults with at least one recorded
// run are emitted, in plan order.
func RunPlan(ctx context.Context, plan BenchmarkPlan, execCtx ExecutionContext, pool PoolFunc) []ProbeResult {
	var results []ProbeResult

	for _, file := range plan.Files {
		for _, conversion := range file.Conversions {
			for _, tmpl := range conversion.CommandTemplates {
				if !execCtx.EnabledAccelerators[tmpl.Accelerator] {
					continue
				}

				argv := buildArgv(tmpl.ArgTemplate, execCtx.TranscoderPath, file.Path, execCtx.GPUIndex)

				runs, failures := Probe(ctx, tmpl.Accelerator, argv, pool)
				if len(runs) == 0 {
					continue
				}

				result := ProbeResult{
					Accelerator:  tmpl.Accelerator,
					ConversionID: conversion.ID,
					Runs:         runs,
					Summary:      BuildSummary(runs, failures),
				}
				if tmpl.Accelerator == AcceleratorNVIDIA {
					gpu := execCtx.GPUIndex
					result.GPUIndex = &gpu
				}
				results = append(results, result)
			}
		}
	}

	return results
}

// buildArgv substitutes the {video_file} and {gpu} placeholders in an
// argument template, prepends the transcoder executable path, and
// splits the result on runs of ASCII whitespace to form argv.
func buildArgv(argTemplate, transcoderPath, videoFile string, gpuIndex int) []string {
	substituted := strings.NewReplacer(
		"{video_file}", videoFile,
		"{gpu}", strconv.Itoa(gpuIndex),
	).Replace(argTemplate)

	argv := []string{transcoderPath}
	argv = append(argv, strings.Fields(substituted)...)
	return argv
}
