package main

import (
	"fmt"
	"os"
	"time"

	"htrweb/pkg/htr"

	"github.com/spf13/cobra"
)

var opts struct {
	engineBin string
	demo      bool
	timeout   time.Duration
	segModel  string
	textModel string
	pipeline  string
	lang      string
	output    string
}

func main() {
	root := &cobra.Command{
		Use:           "htrctl",
		Short:         "Transcribe handwritten documents from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&opts.engineBin, "engine-bin", htr.DefaultEngineBin, "recognition engine binary")
	pf.BoolVar(&opts.demo, "demo", false, "serve canned transcriptions, never invoke an engine")
	pf.DurationVar(&opts.timeout, "timeout", htr.DefaultTimeout, "per-invocation engine timeout")
	pf.StringVar(&opts.segModel, "seg-model", "", "segmentation model (with --text-model)")
	pf.StringVar(&opts.textModel, "text-model", "", "text recognition model (with --seg-model)")
	pf.StringVar(&opts.pipeline, "pipeline", "", "pipeline YAML file (overrides model flags)")
	pf.StringVar(&opts.lang, "lang", "", "recognition language hint")
	pf.StringVarP(&opts.output, "output", "o", "", "write the transcript to a file instead of stdout")

	root.AddCommand(newTranscribeCmd(), newBatchCmd(), newWatchCmd())

	if err := root.Execute(); err != nil {
		out.fail("%v", err)
		os.Exit(1)
	}
}

// buildSpec assembles the pipeline for this run, export bound to the
// workspace. A broken --pipeline file degrades to the default with a warning,
// same as the service.
func buildSpec(ws *htr.Workspace) (*htr.PipelineSpec, error) {
	var spec *htr.PipelineSpec
	switch {
	case opts.pipeline != "":
		doc, err := os.ReadFile(opts.pipeline)
		if err != nil {
			return nil, fmt.Errorf("read pipeline: %w", err)
		}
		spec, err = htr.ParsePipeline(doc)
		if err != nil {
			out.warn("pipeline rejected, default applied: %v", err)
		}
	case opts.segModel != "" || opts.textModel != "":
		var err error
		spec, err = htr.CustomPipeline(opts.segModel, opts.textModel)
		if err != nil {
			return nil, err
		}
	default:
		spec = htr.DefaultPipeline()
	}
	applyLanguage(spec, opts.lang)
	spec.BindExport(ws.OutputDir())
	return spec, nil
}

func applyLanguage(spec *htr.PipelineSpec, lang string) {
	if lang == "" {
		return
	}
	for i := range spec.Steps {
		if spec.Steps[i].Name != htr.StepTextRecognition {
			continue
		}
		if spec.Steps[i].Settings == nil {
			spec.Steps[i].Settings = map[string]any{}
		}
		spec.Steps[i].Settings["lang"] = lang
	}
}

// pickInvoker mirrors the service: canned transcriptions in demo mode or when
// no engine is installed.
func pickInvoker(ws *htr.Workspace) htr.Invoker {
	if opts.demo {
		out.warn("demo mode: canned transcriptions")
		return htr.NewMockEngine()
	}
	avail := htr.Detect(opts.engineBin)
	if !avail.EngineUsable() {
		out.warn("no usable recognition engine found, serving canned transcriptions")
		return htr.NewMockEngine()
	}
	return htr.NewFlowEngine(ws, avail, opts.engineBin, opts.timeout)
}

// writeResult sends text to --output or stdout.
func writeResult(text string) error {
	if opts.output == "" {
		fmt.Println(text)
		return nil
	}
	if err := os.WriteFile(opts.output, []byte(text), 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	out.ok("wrote %s", opts.output)
	return nil
}
