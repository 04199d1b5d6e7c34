package htr

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// TranscriptionOutcome is the per-image result surfaced to the UI. Either
// Text or Err is set, never both.
type TranscriptionOutcome struct {
	ImageID string `json:"image_id"`
	Text    string `json:"text,omitempty"`
	Err     string `json:"error,omitempty"`
}

// OK reports whether a transcript was produced.
func (o TranscriptionOutcome) OK() bool { return o.Err == "" }

// Resolve searches the whole tree under outputRoot for `<imageID>.txt` and
// returns its UTF-8 contents. The engine may nest outputs arbitrarily, so the
// walk is recursive; with duplicates the first file in lexical walk order
// wins. A miss is a failure outcome, never a panic.
func Resolve(imageID, outputRoot string) TranscriptionOutcome {
	target := imageID + ".txt"
	var found string
	err := filepath.WalkDir(outputRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && d.Name() == target {
			found = path
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return TranscriptionOutcome{ImageID: imageID, Err: fmt.Sprintf("search outputs: %v", err)}
	}
	if found == "" {
		return TranscriptionOutcome{ImageID: imageID, Err: fmt.Sprintf("%v: %s", ErrOutputNotFound, target)}
	}
	data, err := os.ReadFile(found)
	if err != nil {
		return TranscriptionOutcome{ImageID: imageID, Err: fmt.Sprintf("read transcript: %v", err)}
	}
	return TranscriptionOutcome{ImageID: imageID, Text: string(data)}
}

// ListOutputs returns every file under outputRoot, relative to it, for
// diagnostics when resolution fails.
func ListOutputs(outputRoot string) []string {
	var out []string
	_ = filepath.WalkDir(outputRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(outputRoot, path)
		if relErr != nil {
			rel = path
		}
		out = append(out, rel)
		return nil
	})
	return out
}
