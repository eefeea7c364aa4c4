package utils_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/KaramelBytes/fairloan-cli/internal/utils"
)

func TestSafeWriteFileReplacesAndLeavesNoTemp(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "metadata.json")
	if err := utils.SafeWriteFile(p, []byte("one")); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := utils.SafeWriteFile(p, []byte("two")); err != nil {
		t.Fatalf("second write: %v", err)
	}
	b, err := os.ReadFile(p)
	if err != nil || string(b) != "two" {
		t.Fatalf("content = %q err=%v", b, err)
	}
	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}
}

func TestSafeWriteFileMissingDir(t *testing.T) {
	p := filepath.Join(t.TempDir(), "nope", "x.json")
	if err := utils.SafeWriteFile(p, []byte("x")); err == nil {
		t.Fatalf("expected error for missing directory")
	}
}

func TestExpandHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	got, err := utils.ExpandHome("~/models")
	if err != nil {
		t.Fatalf("ExpandHome: %v", err)
	}
	if got != filepath.Join(home, "models") {
		t.Fatalf("got %q", got)
	}
	if got, _ := utils.ExpandHome("/abs/path"); got != "/abs/path" {
		t.Fatalf("absolute path changed: %q", got)
	}
}

func TestPrettyJSON(t *testing.T) {
	b, err := utils.PrettyJSON(map[string]int{"a": 1})
	if err != nil {
		t.Fatalf("PrettyJSON: %v", err)
	}
	if string(b) != "{\n  \"a\": 1\n}" {
		t.Fatalf("got %q", b)
	}
}
