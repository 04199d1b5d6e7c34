package htr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"
)

// DefaultLanguage is the Tesseract language used when the pipeline names none.
const DefaultLanguage = "swe"

// NewTesseractRecognizer constructs the in-process entry point: a recognizer
// that interprets the pipeline's Export dest and TextRecognition settings and
// writes one `<base>.txt` per image, matching the engine binary's output
// convention. Construction fails when no Tesseract installation is usable,
// which callers treat as the fallback signal, not a final error.
func NewTesseractRecognizer(spec *PipelineSpec) (NativeFunc, error) {
	langs, err := gosseract.GetAvailableLanguages()
	if err != nil {
		return nil, fmt.Errorf("tesseract unavailable: %w", err)
	}
	if len(langs) == 0 {
		return nil, fmt.Errorf("tesseract has no language data installed")
	}

	lang := recognitionLanguage(spec)
	if !contains(langs, lang) {
		lang = "eng"
	}
	dest := spec.ExportDest()

	return func(ctx context.Context, images []string) error {
		outDir := dest
		if outDir == "" && len(images) > 0 {
			outDir = SiblingOutputs(images[0])
		}
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
		for _, img := range images {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			outPath := filepath.Join(outDir, ImageID(img)+".txt")
			if err := recognizeOne(img, lang, outPath); err != nil {
				return fmt.Errorf("%s: %w", filepath.Base(img), err)
			}
		}
		return nil
	}, nil
}

// recognizeOne preprocesses one scan and runs Tesseract over it.
func recognizeOne(imagePath, lang, outPath string) error {
	tmp, cleanup, err := preprocessScan(imagePath)
	if err != nil {
		return err
	}
	defer cleanup()

	client := gosseract.NewClient()
	defer client.Close()
	if err := client.SetLanguage(lang); err != nil {
		return fmt.Errorf("set language: %w", err)
	}
	if err := client.SetImage(tmp); err != nil {
		return fmt.Errorf("set image: %w", err)
	}
	text, err := client.Text()
	if err != nil {
		return fmt.Errorf("recognize: %w", err)
	}
	return os.WriteFile(outPath, []byte(text+"\n"), 0o644)
}

// preprocessScan grayscales the scan and upscales small images so Tesseract
// has enough pixels per line. Returns the path to feed the client and a
// cleanup func; when preprocessing cannot improve things the original path is
// returned.
func preprocessScan(path string) (string, func(), error) {
	img, err := imaging.Open(path)
	if err != nil {
		return "", nil, fmt.Errorf("open image: %w", err)
	}
	gray := imaging.Grayscale(img)
	if gray.Bounds().Dy() < 800 {
		gray = imaging.Resize(gray, 0, 1200, imaging.Lanczos)
	}
	tmpFile, err := os.CreateTemp("", "htr-scan-*.png")
	if err != nil {
		return path, func() {}, nil
	}
	tmp := tmpFile.Name()
	_ = tmpFile.Close()
	if err := imaging.Save(gray, tmp); err != nil {
		_ = os.Remove(tmp)
		return path, func() {}, nil
	}
	return tmp, func() { _ = os.Remove(tmp) }, nil
}

// recognitionLanguage reads an optional "lang" setting from the
// TextRecognition step.
func recognitionLanguage(spec *PipelineSpec) string {
	for _, s := range spec.Steps {
		if s.Name != StepTextRecognition || s.Settings == nil {
			continue
		}
		if lang, ok := s.Settings["lang"].(string); ok && lang != "" {
			return lang
		}
	}
	return DefaultLanguage
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
