package htr

import (
	"context"
	"fmt"
	"strings"
)

// Transcribe runs one image through the invoker and resolves its transcript.
// Every failure comes back as a failed outcome; the workflow never aborts the
// session.
func Transcribe(ctx context.Context, imagePath string, spec *PipelineSpec, inv Invoker) TranscriptionOutcome {
	id := ImageID(imagePath)
	res := inv.Invoke(ctx, []string{imagePath}, spec)
	if !res.Succeeded {
		msg := strings.TrimSpace(res.Stderr)
		if msg == "" {
			msg = "engine invocation failed"
		}
		return TranscriptionOutcome{ImageID: id, Err: msg}
	}
	outDir := spec.ExportDest()
	if outDir == "" {
		outDir = SiblingOutputs(imagePath)
	}
	return Resolve(id, outDir)
}

// ProgressFunc is called after each image of a batch completes.
type ProgressFunc func(completed, total int)

// BatchReport aggregates one sequential batch run. Outcomes is keyed by image
// id; Order preserves input order for the combined report.
type BatchReport struct {
	Outcomes  map[string]TranscriptionOutcome
	Order     []string
	Succeeded int
	Total     int
}

// RunBatch processes images strictly one at a time, in input order. A failed
// image is recorded and the run moves on; progress fires after every image.
func RunBatch(ctx context.Context, images []string, spec *PipelineSpec, inv Invoker, progress ProgressFunc) *BatchReport {
	report := &BatchReport{
		Outcomes: make(map[string]TranscriptionOutcome, len(images)),
		Total:    len(images),
	}
	for i, img := range images {
		outcome := Transcribe(ctx, img, spec, inv)
		report.Outcomes[outcome.ImageID] = outcome
		report.Order = append(report.Order, outcome.ImageID)
		if outcome.OK() {
			report.Succeeded++
		}
		if progress != nil {
			progress(i+1, len(images))
		}
	}
	return report
}

// Combined renders the multi-section report: one labeled section per
// successful image, failures omitted (they still count in the summary).
func (r *BatchReport) Combined() string {
	var sections []string
	for _, id := range r.Order {
		o := r.Outcomes[id]
		if !o.OK() {
			continue
		}
		sections = append(sections, fmt.Sprintf("=== TRANSCRIPTION OF %s ===\n\n%s", id, o.Text))
	}
	return strings.Join(sections, "\n\n")
}

// Summary is the "succeeded/total" line shown after a batch.
func (r *BatchReport) Summary() string {
	return fmt.Sprintf("%d/%d", r.Succeeded, r.Total)
}
