package storage

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWriteAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.csv")

	err := WriteAtomic(path, func(w io.Writer) error {
		_, err := io.WriteString(w, "Title\nShow\n")
		return err
	})
	if err != nil {
		t.Fatalf("WriteAtomic failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "Title\nShow\n" {
		t.Errorf("unexpected content %q", data)
	}
	if Exists(path + ".tmp") {
		t.Error("temp file should be gone after success")
	}
}

func TestWriteAtomic_FailureLeavesNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.tsv")

	err := WriteAtomic(path, func(w io.Writer) error {
		io.WriteString(w, "partial")
		return errors.New("truncated stream")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if Exists(path) {
		t.Error("destination must not exist after a failed write")
	}
	if Exists(path + ".tmp") {
		t.Error("temp file must be removed after a failed write")
	}
}

func TestWriteAtomic_FailureKeepsPreviousFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.tsv")
	if err := os.WriteFile(path, []byte("old"), 0644); err != nil {
		t.Fatal(err)
	}

	_ = WriteAtomic(path, func(w io.Writer) error {
		return errors.New("boom")
	})

	data, _ := os.ReadFile(path)
	if string(data) != "old" {
		t.Errorf("previous content should survive, got %q", data)
	}
}

func TestRemoveIfExists(t *testing.T) {
	dir := t.TempDir()
	if err := RemoveIfExists(filepath.Join(dir, "missing")); err != nil {
		t.Errorf("missing file should not error: %v", err)
	}

	path := filepath.Join(dir, "present")
	os.WriteFile(path, []byte("x"), 0644)
	if err := RemoveIfExists(path); err != nil {
		t.Fatalf("RemoveIfExists failed: %v", err)
	}
	if Exists(path) {
		t.Error("file should be removed")
	}
}

func TestOutdated(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "raw.json")
	out := filepath.Join(dir, "clean.json")

	if !Outdated(nil, nil) {
		t.Error("tasks without outputs are always outdated")
	}

	os.WriteFile(in, []byte("{}"), 0644)
	if !Outdated([]string{out}, []string{in}) {
		t.Error("missing output should be outdated")
	}

	os.WriteFile(out, []byte("{}"), 0644)
	old := time.Now().Add(-time.Hour)
	os.Chtimes(in, old, old)
	if Outdated([]string{out}, []string{in}) {
		t.Error("output newer than input should be fresh")
	}

	newer := time.Now().Add(time.Hour)
	os.Chtimes(in, newer, newer)
	if !Outdated([]string{out}, []string{in}) {
		t.Error("input modified after output should be outdated")
	}
}
