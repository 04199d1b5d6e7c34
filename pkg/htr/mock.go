package htr

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// cannedTexts is the demo transcription corpus. The filename hash below is
// stable against this corpus version; reorder it and golden outputs change.
var cannedTexts = []string{
	"Anno 1784 den 12 martii inkom till rätten ett brev\nfrån kyrkoherden i socknen, vari anhölls att\nförsamlingen måtte tillåtas reparera klockstapeln\nsom av ålder och röta illa skadad var.",
	"Till minne av min kära hustru, som avled den\n3 augusti efter långvarig sjukdom. Hon var mig\nett troget stöd i fyrtio år, och hennes bortgång\nlämnar ett tomrum som aldrig kan fyllas.",
	"Räkenskap för gårdens utgifter under vintern:\ntvå tunnor råg om fyra riksdaler, salt och sill\nför en riksdaler åtta skilling, samt till smeden\nför hästskor och spik sexton skilling.",
}

// Mock latency range; tunable, not part of any contract.
const (
	mockDelayMin = 150 * time.Millisecond
	mockDelayMax = 400 * time.Millisecond
)

// MockEngine fabricates transcriptions when the real engine is missing or
// demo mode is on. It follows the same output convention as the real engine
// and is deterministic per filename, so tests can assert exact output.
type MockEngine struct {
	Corpus   []string
	MinDelay time.Duration
	MaxDelay time.Duration
}

// NewMockEngine returns a mock with the built-in corpus and default latency.
func NewMockEngine() *MockEngine {
	return &MockEngine{Corpus: cannedTexts, MinDelay: mockDelayMin, MaxDelay: mockDelayMax}
}

// Invoke writes one canned transcript per image under the pipeline's Export
// dest (or a sibling outputs dir when none is named), pausing briefly to
// mimic engine latency.
func (m *MockEngine) Invoke(ctx context.Context, images []string, spec *PipelineSpec) InvocationResult {
	if len(m.Corpus) == 0 {
		return InvocationResult{Stderr: "mock engine has an empty corpus"}
	}
	outDir := spec.ExportDest()
	if outDir == "" && len(images) > 0 {
		outDir = SiblingOutputs(images[0])
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return InvocationResult{Stderr: fmt.Sprintf("create output dir: %v", err)}
	}

	var lines []string
	for _, img := range images {
		if err := m.pause(ctx); err != nil {
			return InvocationResult{Stderr: err.Error()}
		}
		id := ImageID(img)
		text := m.Corpus[cannedIndex(id, len(m.Corpus))]
		outPath := filepath.Join(outDir, id+".txt")
		if err := os.WriteFile(outPath, []byte(text), 0o644); err != nil {
			return InvocationResult{Stderr: fmt.Sprintf("write transcript: %v", err)}
		}
		lines = append(lines, "transcribed "+filepath.Base(img))
	}
	return InvocationResult{Succeeded: true, Stdout: strings.Join(lines, "\n")}
}

// pause sleeps a random duration inside the configured range, honoring ctx.
func (m *MockEngine) pause(ctx context.Context) error {
	d := m.MinDelay
	if jitter := m.MaxDelay - m.MinDelay; jitter > 0 {
		d += time.Duration(rand.Int63n(int64(jitter)))
	}
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// cannedIndex maps an image id to a corpus entry: the sum of the id's
// character codes, mod the corpus size. Same filename, same text.
func cannedIndex(imageID string, corpusLen int) int {
	sum := 0
	for _, r := range imageID {
		sum += int(r)
	}
	return sum % corpusLen
}
