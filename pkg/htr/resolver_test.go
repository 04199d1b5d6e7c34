package htr

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestResolveRoundTripNested(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "run_1", "pages")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	content := "Detta är en transkription.\nRad två.\n"
	if err := os.WriteFile(filepath.Join(nested, "brev.txt"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	o := Resolve("brev", root)
	if !o.OK() {
		t.Fatalf("resolve failed: %s", o.Err)
	}
	if o.Text != content {
		t.Fatalf("content mismatch: %q", o.Text)
	}
}

func TestResolveEmptyRoot(t *testing.T) {
	o := Resolve("missing", t.TempDir())
	if o.OK() {
		t.Fatal("expected failure outcome on empty root")
	}
	if !strings.Contains(o.Err, "missing.txt") {
		t.Fatalf("error should name the expected file: %s", o.Err)
	}
}

func TestResolveIgnoresOtherFiles(t *testing.T) {
	root := t.TempDir()
	_ = os.WriteFile(filepath.Join(root, "brev.json"), []byte("{}"), 0o644)
	_ = os.WriteFile(filepath.Join(root, "annat.txt"), []byte("nope"), 0o644)
	if o := Resolve("brev", root); o.OK() {
		t.Fatalf("expected miss, got %q", o.Text)
	}
}

func TestListOutputs(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "sub")
	_ = os.MkdirAll(sub, 0o755)
	_ = os.WriteFile(filepath.Join(root, "a.txt"), nil, 0o644)
	_ = os.WriteFile(filepath.Join(sub, "b.txt"), nil, 0o644)

	got := ListOutputs(root)
	if len(got) != 2 {
		t.Fatalf("expected 2 entries got %v", got)
	}
}

func TestListOutputsMissingRoot(t *testing.T) {
	if got := ListOutputs(filepath.Join(t.TempDir(), "nope")); len(got) != 0 {
		t.Fatalf("expected empty listing got %v", got)
	}
}
