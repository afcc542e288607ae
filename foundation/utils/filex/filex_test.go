package filex

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	mdwerror "github.com/msto63/flatset/foundation/core/error"
)

func TestReadLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "script.txt")
	if err := os.WriteFile(path, []byte("show\n\n# comment\ninfo"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := ReadLines(path)
	if err != nil {
		t.Fatalf("ReadLines() error = %v", err)
	}
	want := []string{"show", "", "# comment", "info"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ReadLines() = %q, want %q", got, want)
	}
}

func TestReadLinesMissingFile(t *testing.T) {
	_, err := ReadLines(filepath.Join(t.TempDir(), "missing.txt"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !mdwerror.HasCode(err, mdwerror.CodeIOError) {
		t.Errorf("code = %v, want IO_ERROR", mdwerror.GetCode(err))
	}
}

func TestWriteAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "flats.json")

	if err := WriteAtomic(path, []byte("[]"), 0o600); err != nil {
		t.Fatalf("WriteAtomic() error = %v", err)
	}
	if err := WriteAtomic(path, []byte("[1]"), 0o600); err != nil {
		t.Fatalf("WriteAtomic() overwrite error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "[1]" {
		t.Errorf("content = %q, want [1]", data)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %v", entries)
	}
	if !Exists(path) {
		t.Error("Exists() = false after write")
	}
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{512, "512 B"},
		{2048, "2.0 KB"},
		{5 * 1024 * 1024, "5.0 MB"},
	}
	for _, tt := range tests {
		if got := FormatSize(tt.bytes); got != tt.want {
			t.Errorf("FormatSize(%d) = %q, want %q", tt.bytes, got, tt.want)
		}
	}
}
