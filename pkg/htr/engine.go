package htr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os/exec"
	"strings"
	"time"
)

// DefaultTimeout bounds a single engine invocation. The external engine has
// no timeout of its own; without this a hung process hangs the whole run.
const DefaultTimeout = 10 * time.Minute

// commandResult is one captured process execution.
type commandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// commandRunner abstracts process execution for testability.
type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) (commandResult, error)
}

type execRunner struct{}

// Run executes one command via an argument vector (never a shell string) and
// captures stdout, stderr and the exit code.
func (execRunner) Run(ctx context.Context, name string, args ...string) (commandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := commandResult{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		return result, err
	}
	return result, nil
}

// NativeFunc executes the constructed in-process recognizer against a set of
// images.
type NativeFunc func(ctx context.Context, images []string) error

// nativeConstructor builds the in-process entry point for a pipeline.
// Construction failure is the signal to fall back to the subprocess form.
type nativeConstructor func(spec *PipelineSpec) (NativeFunc, error)

// FlowEngine invokes the real recognition engine: first through the
// in-process recognizer, then through the engine binary with the serialized
// pipeline. Every failure mode ends up in the InvocationResult; nothing
// escapes to the caller.
type FlowEngine struct {
	bin       string
	timeout   time.Duration
	ws        *Workspace
	avail     Availability
	newNative nativeConstructor
	runner    commandRunner
}

// NewFlowEngine builds the production engine for one workspace. bin and
// timeout fall back to DefaultEngineBin and DefaultTimeout when zero.
func NewFlowEngine(ws *Workspace, avail Availability, bin string, timeout time.Duration) *FlowEngine {
	if bin == "" {
		bin = DefaultEngineBin
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &FlowEngine{
		bin:       bin,
		timeout:   timeout,
		ws:        ws,
		avail:     avail,
		newNative: NewTesseractRecognizer,
		runner:    execRunner{},
	}
}

// Invoke attempts the native entry point and falls back to the subprocess
// form. A failure to construct the native recognizer only triggers the
// fallback; a failure while it runs, or a non-zero subprocess exit, is final.
func (e *FlowEngine) Invoke(ctx context.Context, images []string, spec *PipelineSpec) InvocationResult {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	if e.avail.Native && e.newNative != nil {
		run, err := e.newNative(spec)
		if err == nil {
			if runErr := run(ctx, images); runErr != nil {
				return InvocationResult{Stderr: fmt.Sprintf("native recognizer failed: %v", runErr)}
			}
			return InvocationResult{Succeeded: true, Stdout: "native recognizer completed"}
		}
		log.Printf("native recognizer not constructible, falling back to %s: %v", e.bin, err)
	}

	if !e.avail.Subprocess {
		return InvocationResult{Stderr: ErrEngineUnavailable.Error()}
	}

	cfgPath := e.ws.PipelinePath()
	if err := spec.WriteFile(cfgPath); err != nil {
		return InvocationResult{Stderr: fmt.Sprintf("serialize pipeline: %v", err)}
	}

	args := append([]string{"pipeline", cfgPath}, images...)
	res, err := e.runner.Run(ctx, e.bin, args...)
	out := InvocationResult{Succeeded: err == nil, Stdout: res.Stdout, Stderr: res.Stderr}
	if err != nil && strings.TrimSpace(out.Stderr) == "" {
		out.Stderr = err.Error()
	}
	return out
}
