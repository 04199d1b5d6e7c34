package htr

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWorkspaceLayout(t *testing.T) {
	ws, err := NewWorkspace()
	if err != nil {
		t.Fatal(err)
	}
	defer ws.Remove()

	if ws.ID == "" {
		t.Fatal("workspace must carry an id")
	}
	if fi, err := os.Stat(ws.OutputDir()); err != nil || !fi.IsDir() {
		t.Fatalf("outputs dir missing: %v", err)
	}
	if filepath.Dir(ws.PipelinePath()) != ws.Root {
		t.Fatalf("pipeline.yaml not at workspace root: %s", ws.PipelinePath())
	}
}

func TestSaveImageStripsPath(t *testing.T) {
	ws, err := NewWorkspace()
	if err != nil {
		t.Fatal(err)
	}
	defer ws.Remove()

	path, err := ws.SaveImage("../../etc/passwd.png", strings.NewReader("pixels"))
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Dir(path) != ws.Root {
		t.Fatalf("upload escaped workspace: %s", path)
	}
	got, err := os.ReadFile(filepath.Join(ws.Root, "passwd.png"))
	if err != nil || string(got) != "pixels" {
		t.Fatalf("content mismatch: %q %v", got, err)
	}
}

func TestRemoveDeletesTree(t *testing.T) {
	ws, err := NewWorkspace()
	if err != nil {
		t.Fatal(err)
	}
	ws.Remove()
	if _, err := os.Stat(ws.Root); !os.IsNotExist(err) {
		t.Fatalf("workspace survived removal: %v", err)
	}
	// second removal is a no-op
	ws.Remove()
}

func TestImageID(t *testing.T) {
	cases := map[string]string{
		"/tmp/a/brev_1700.png": "brev_1700",
		"page.jpeg":            "page",
		"noext":                "noext",
	}
	for in, want := range cases {
		if got := ImageID(in); got != want {
			t.Fatalf("ImageID(%q) = %q, want %q", in, got, want)
		}
	}
}
