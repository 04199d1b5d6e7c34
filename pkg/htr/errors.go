package htr

import "errors"

// ErrEngineUnavailable means neither the in-process recognizer nor the
// engine binary could be reached. Callers fall back to the mock engine.
var ErrEngineUnavailable = errors.New("recognition engine unavailable")

// ErrOutputNotFound means the engine reported success but the expected
// transcript file never appeared under the output tree.
var ErrOutputNotFound = errors.New("transcription output not found")

// ErrPipelineParse marks an unusable pipeline document. Recovered locally by
// substituting the default pipeline.
var ErrPipelineParse = errors.New("invalid pipeline document")
