package htr

import "context"

// InvocationResult is the outcome of exactly one engine invocation attempt.
// All failure modes are folded into Succeeded=false with the diagnostic in
// Stderr; invokers never panic or leak errors past this boundary.
type InvocationResult struct {
	Succeeded bool
	Stdout    string
	Stderr    string
}

// Invoker runs the recognition engine over a set of images. FlowEngine and
// MockEngine are interchangeable behind it.
type Invoker interface {
	Invoke(ctx context.Context, images []string, spec *PipelineSpec) InvocationResult
}
