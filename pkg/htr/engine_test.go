package htr

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"
)

type fakeRunner struct {
	result   commandResult
	err      error
	lastName string
	lastArgs []string
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) (commandResult, error) {
	f.lastName = name
	f.lastArgs = args
	return f.result, f.err
}

func newTestEngine(t *testing.T, avail Availability, runner commandRunner, native nativeConstructor) (*FlowEngine, *Workspace) {
	t.Helper()
	ws, err := NewWorkspace()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(ws.Remove)
	return &FlowEngine{
		bin:       "htrflow",
		timeout:   time.Minute,
		ws:        ws,
		avail:     avail,
		newNative: native,
		runner:    runner,
	}, ws
}

func TestInvokeNativeSuccess(t *testing.T) {
	called := false
	native := func(spec *PipelineSpec) (NativeFunc, error) {
		return func(ctx context.Context, images []string) error {
			called = true
			return nil
		}, nil
	}
	runner := &fakeRunner{}
	e, _ := newTestEngine(t, Availability{Native: true, Subprocess: true}, runner, native)

	res := e.Invoke(context.Background(), []string{"a.png"}, DefaultPipeline())
	if !res.Succeeded || !called {
		t.Fatalf("native path not taken: %+v called=%v", res, called)
	}
	if runner.lastName != "" {
		t.Fatal("subprocess should not run when native succeeds")
	}
}

func TestInvokeNativeConstructionFailureFallsBack(t *testing.T) {
	native := func(spec *PipelineSpec) (NativeFunc, error) {
		return nil, errors.New("no tesseract")
	}
	runner := &fakeRunner{result: commandResult{Stdout: "ok"}}
	e, ws := newTestEngine(t, Availability{Native: true, Subprocess: true}, runner, native)

	spec := DefaultPipeline()
	spec.BindExport(ws.OutputDir())
	res := e.Invoke(context.Background(), []string{"a.png", "b.png"}, spec)
	if !res.Succeeded {
		t.Fatalf("fallback failed: %+v", res)
	}
	if runner.lastName != "htrflow" {
		t.Fatalf("expected htrflow subprocess, got %q", runner.lastName)
	}
	want := []string{"pipeline", ws.PipelinePath(), "a.png", "b.png"}
	if len(runner.lastArgs) != len(want) {
		t.Fatalf("args mismatch: %v", runner.lastArgs)
	}
	for i, a := range want {
		if runner.lastArgs[i] != a {
			t.Fatalf("arg %d: expected %q got %q", i, a, runner.lastArgs[i])
		}
	}
	// fallback must have serialized the pipeline for the subprocess
	if _, err := os.Stat(ws.PipelinePath()); err != nil {
		t.Fatalf("pipeline.yaml not written: %v", err)
	}
}

func TestInvokeNativeRunFailureIsFinal(t *testing.T) {
	native := func(spec *PipelineSpec) (NativeFunc, error) {
		return func(ctx context.Context, images []string) error {
			return fmt.Errorf("model blew up")
		}, nil
	}
	runner := &fakeRunner{result: commandResult{Stdout: "ok"}}
	e, _ := newTestEngine(t, Availability{Native: true, Subprocess: true}, runner, native)

	res := e.Invoke(context.Background(), []string{"a.png"}, DefaultPipeline())
	if res.Succeeded {
		t.Fatal("native run failure must not be retried via subprocess")
	}
	if runner.lastName != "" {
		t.Fatal("subprocess must not run after native run failure")
	}
	if !strings.Contains(res.Stderr, "model blew up") {
		t.Fatalf("diagnostic lost: %q", res.Stderr)
	}
}

func TestInvokeSubprocessFailure(t *testing.T) {
	runner := &fakeRunner{
		result: commandResult{Stderr: "boom", ExitCode: 2},
		err:    errors.New("exit status 2"),
	}
	e, _ := newTestEngine(t, Availability{Subprocess: true}, runner, nil)

	res := e.Invoke(context.Background(), []string{"a.png"}, DefaultPipeline())
	if res.Succeeded {
		t.Fatal("expected failure result")
	}
	if res.Stderr != "boom" {
		t.Fatalf("stderr not captured verbatim: %q", res.Stderr)
	}
}

func TestInvokeNothingAvailable(t *testing.T) {
	runner := &fakeRunner{}
	e, _ := newTestEngine(t, Availability{}, runner, nil)
	res := e.Invoke(context.Background(), []string{"a.png"}, DefaultPipeline())
	if res.Succeeded {
		t.Fatal("expected failure when no engine path exists")
	}
	if !strings.Contains(res.Stderr, ErrEngineUnavailable.Error()) {
		t.Fatalf("expected unavailable diagnostic, got %q", res.Stderr)
	}
}
