package fsutil

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestReadFileLimited(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "venues.yaml")
	if err := os.WriteFile(p, []byte("hello"), 0o600); err != nil {
		t.Fatal(err)
	}

	data, err := ReadFileLimited(p, 5)
	if err != nil {
		t.Fatalf("ReadFileLimited: %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("got %q, want hello", data)
	}
}

func TestReadFileLimited_TooLarge(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "big.yaml")
	if err := os.WriteFile(p, []byte("0123456789"), 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := ReadFileLimited(p, 4)
	if !errors.Is(err, ErrTooLarge) {
		t.Errorf("err = %v, want ErrTooLarge", err)
	}
}

func TestReadFileLimited_Missing(t *testing.T) {
	if _, err := ReadFileLimited(filepath.Join(t.TempDir(), "nope"), 10); err == nil {
		t.Error("expected error for nonexistent file")
	}
	if _, err := ReadFileLimited(filepath.Join(t.TempDir(), "nodir", "f"), 10); err == nil {
		t.Error("expected error for nonexistent directory")
	}
}

func TestReadFileLimited_SymlinkEscape(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	outside := t.TempDir()
	secret := filepath.Join(outside, "secret")
	if err := os.WriteFile(secret, []byte("s"), 0o600); err != nil {
		t.Fatal(err)
	}
	inside := t.TempDir()
	link := filepath.Join(inside, "link")
	if err := os.Symlink(secret, link); err != nil {
		t.Fatal(err)
	}

	if _, err := ReadFileLimited(link, 10); err == nil {
		t.Error("expected symlink escaping the directory to be rejected")
	}
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "nested", "out.yaml")

	if err := WriteFileAtomic(p, []byte("first"), 0o600); err != nil {
		t.Fatalf("WriteFileAtomic: %v", err)
	}
	if err := WriteFileAtomic(p, []byte("second"), 0o600); err != nil {
		t.Fatalf("WriteFileAtomic overwrite: %v", err)
	}

	data, err := os.ReadFile(p)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "second" {
		t.Errorf("content = %q, want second", data)
	}

	entries, err := os.ReadDir(filepath.Dir(p))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected no leftover temp files, got %d entries", len(entries))
	}
}
