package htr

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Step names understood by the htrflow engine.
const (
	StepSegmentation    = "Segmentation"
	StepTextRecognition = "TextRecognition"
	StepOrderLines      = "OrderLines"
	StepExport          = "Export"
)

// Default model identifiers for Swedish historical handwriting.
const (
	DefaultSegmentationModel = "Riksarkivet/yolov9-lines-within-regions-1"
	DefaultTextModel         = "Riksarkivet/trocr-base-handwritten-hist-swe-2"
)

// Step is one named processing stage with free-form settings. The settings
// nesting belongs to the engine's schema and must be passed through untouched;
// only the Export dest is ever rewritten on our side.
type Step struct {
	Name     string         `yaml:"step"`
	Settings map[string]any `yaml:"settings,omitempty"`
}

// PipelineSpec is the ordered pipeline document handed to the engine.
type PipelineSpec struct {
	Steps []Step `yaml:"steps"`
}

// DefaultPipeline returns the stock four-step pipeline.
func DefaultPipeline() *PipelineSpec {
	return CustomPipelineUnchecked(DefaultSegmentationModel, DefaultTextModel)
}

// CustomPipeline returns the stock pipeline shape with the two model
// identifiers substituted. Both identifiers are required.
func CustomPipeline(segModel, textModel string) (*PipelineSpec, error) {
	if segModel == "" || textModel == "" {
		return nil, fmt.Errorf("segmentation and text recognition models are required")
	}
	return CustomPipelineUnchecked(segModel, textModel), nil
}

// CustomPipelineUnchecked builds the stock shape without validating the model ids.
func CustomPipelineUnchecked(segModel, textModel string) *PipelineSpec {
	return &PipelineSpec{Steps: []Step{
		{Name: StepSegmentation, Settings: map[string]any{
			"model":          "yolo",
			"model_settings": map[string]any{"model": segModel},
		}},
		{Name: StepTextRecognition, Settings: map[string]any{
			"model":          "TrOCR",
			"model_settings": map[string]any{"model": textModel},
		}},
		{Name: StepOrderLines},
		{Name: StepExport, Settings: map[string]any{"format": "txt"}},
	}}
}

// ParsePipeline parses a user-supplied pipeline document. It always returns a
// usable spec: on any parse or shape problem the default pipeline is returned
// together with an error wrapping ErrPipelineParse, which callers surface as a
// warning rather than aborting.
func ParsePipeline(doc []byte) (*PipelineSpec, error) {
	var spec PipelineSpec
	if err := yaml.Unmarshal(doc, &spec); err != nil {
		return DefaultPipeline(), fmt.Errorf("%w: %v", ErrPipelineParse, err)
	}
	if len(spec.Steps) == 0 {
		return DefaultPipeline(), fmt.Errorf("%w: document has no steps", ErrPipelineParse)
	}
	for i, s := range spec.Steps {
		if s.Name == "" {
			return DefaultPipeline(), fmt.Errorf("%w: step %d has no name", ErrPipelineParse, i+1)
		}
	}
	return &spec, nil
}

// BindExport rewrites the Export step's dest to the given directory so the
// output stays discoverable regardless of what the document asked for. When
// the document carries no Export step one is appended; the returned bool
// reports that synthesis so callers can warn about it.
func (p *PipelineSpec) BindExport(dest string) bool {
	for i := range p.Steps {
		if p.Steps[i].Name != StepExport {
			continue
		}
		if p.Steps[i].Settings == nil {
			p.Steps[i].Settings = map[string]any{}
		}
		p.Steps[i].Settings["dest"] = dest
		return false
	}
	p.Steps = append(p.Steps, Step{Name: StepExport, Settings: map[string]any{
		"format": "txt",
		"dest":   dest,
	}})
	return true
}

// ExportDest returns the Export step's dest setting, or "" when unset.
func (p *PipelineSpec) ExportDest() string {
	for _, s := range p.Steps {
		if s.Name != StepExport || s.Settings == nil {
			continue
		}
		if dest, ok := s.Settings["dest"].(string); ok {
			return dest
		}
	}
	return ""
}

// Marshal renders the pipeline in the engine's wire format.
func (p *PipelineSpec) Marshal() ([]byte, error) {
	return yaml.Marshal(p)
}

// WriteFile serializes the pipeline to the given path.
func (p *PipelineSpec) WriteFile(path string) error {
	data, err := p.Marshal()
	if err != nil {
		return fmt.Errorf("marshal pipeline: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write pipeline: %w", err)
	}
	return nil
}
