package htr

import (
	"os/exec"

	"github.com/otiai10/gosseract/v2"
)

// DefaultEngineBin is the htrflow CLI looked up on PATH for the subprocess
// fallback.
const DefaultEngineBin = "htrflow"

// Availability records which engine entry points exist. It is probed once at
// process start and passed to whatever needs it, instead of re-checking the
// environment before every run.
type Availability struct {
	Native     bool
	Subprocess bool
	BinPath    string
}

// Detect probes the in-process recognizer and the engine binary.
func Detect(bin string) Availability {
	if bin == "" {
		bin = DefaultEngineBin
	}
	a := Availability{}
	if langs, err := gosseract.GetAvailableLanguages(); err == nil && len(langs) > 0 {
		a.Native = true
	}
	if path, err := exec.LookPath(bin); err == nil {
		a.Subprocess = true
		a.BinPath = path
	}
	return a
}

// EngineUsable reports whether any real engine path exists. When false the
// workflow substitutes the mock engine.
func (a Availability) EngineUsable() bool {
	return a.Native || a.Subprocess
}
