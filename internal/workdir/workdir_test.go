package workdir

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewAndCleanup(t *testing.T) {
	base := t.TempDir()
	d, err := New(base)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if filepath.Dir(d.Path) != base || filepath.Base(d.Path) != d.RunID {
		t.Errorf("unexpected layout: %s (run %s)", d.Path, d.RunID)
	}

	tmp := d.Temp("Scope of Work.pdf")
	if !strings.HasSuffix(tmp, "temp_Scope_of_Work.pdf") {
		t.Errorf("Temp = %s", tmp)
	}
	if err := os.WriteFile(tmp, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !d.Owns(tmp) {
		t.Error("expected run to own its temp file")
	}

	if err := d.Cleanup(); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if _, err := os.Stat(d.Path); !os.IsNotExist(err) {
		t.Errorf("expected run dir to be removed, got %v", err)
	}
}

func TestRunsAreIsolated(t *testing.T) {
	base := t.TempDir()
	a, _ := New(base)
	b, _ := New(base)
	if a.RunID == b.RunID {
		t.Fatal("expected distinct run ids")
	}
	if a.Owns(b.Temp("x.pdf")) {
		t.Error("run a should not own run b's artifacts")
	}
}

func TestIsTemp(t *testing.T) {
	if !IsTemp("/w/run/temp_front.pdf") {
		t.Error("expected temp artifact")
	}
	if IsTemp("/templates/intro.pdf") {
		t.Error("template reported as temp artifact")
	}
}
