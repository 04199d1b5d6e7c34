package htr

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Workspace is the scratch directory tree for one session: uploaded images at
// the root, pipeline.yaml next to them, transcripts under outputs/. It is
// owned by exactly one session and removed (best-effort) when that session
// ends.
type Workspace struct {
	ID   string
	Root string
}

// NewWorkspace creates a fresh scratch tree under the system temp dir.
func NewWorkspace() (*Workspace, error) {
	root, err := os.MkdirTemp("", "htr-session-*")
	if err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	w := &Workspace{ID: uuid.NewString(), Root: root}
	if err := os.MkdirAll(w.OutputDir(), 0o755); err != nil {
		_ = os.RemoveAll(root)
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return w, nil
}

// OutputDir is where the Export step is forced to write.
func (w *Workspace) OutputDir() string {
	return filepath.Join(w.Root, "outputs")
}

// PipelinePath is the serialized pipeline handed to the engine binary.
func (w *Workspace) PipelinePath() string {
	return filepath.Join(w.Root, "pipeline.yaml")
}

// SaveImage stores an uploaded image under the workspace root, keeping only
// the base filename so uploads cannot escape the tree.
func (w *Workspace) SaveImage(name string, r io.Reader) (string, error) {
	base := filepath.Base(name)
	if base == "" || base == "." || base == string(filepath.Separator) {
		return "", fmt.Errorf("invalid image name %q", name)
	}
	path := filepath.Join(w.Root, base)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("save image: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("save image: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("save image: %w", err)
	}
	return path, nil
}

// Remove deletes the whole tree. Failure is logged, never fatal.
func (w *Workspace) Remove() {
	if w == nil || w.Root == "" {
		return
	}
	if err := os.RemoveAll(w.Root); err != nil {
		log.Printf("workspace %s cleanup failed: %v", w.ID, err)
	}
}

// SiblingOutputs derives an output directory next to an input image, used
// when a pipeline names no Export dest.
func SiblingOutputs(imagePath string) string {
	return filepath.Join(filepath.Dir(imagePath), "outputs")
}

// ImageID is the output naming key: the base filename without its extension.
func ImageID(imagePath string) string {
	base := filepath.Base(imagePath)
	return base[:len(base)-len(filepath.Ext(base))]
}
