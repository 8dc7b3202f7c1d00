package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLockDryRun(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "validation:\n  secret: x\n")

	report, err := Lock(path, true)
	if err != nil {
		t.Fatalf("Lock() failed: %v", err)
	}
	if report.Written {
		t.Fatal("report.Written = true, want false in dry-run")
	}
	if report.Hash == "" {
		t.Fatal("dry-run should still compute the hash")
	}
	if _, err := os.Stat(filepath.Join(dir, ChecksumFilename)); !os.IsNotExist(err) {
		t.Fatal(".checksums should not be written in dry-run mode")
	}
}

func TestLockWritesChecksums(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "validation:\n  secret: x\n")

	report, err := Lock(dir, false)
	if err != nil {
		t.Fatalf("Lock() failed: %v", err)
	}
	if !report.Written {
		t.Fatal("report.Written = false, want true")
	}

	manifest, err := LoadChecksums(dir)
	if err != nil {
		t.Fatalf("LoadChecksums() failed: %v", err)
	}
	if manifest.Hashes[DefaultFilename] != report.Hash {
		t.Fatalf("manifest hash = %q, want %q", manifest.Hashes[DefaultFilename], report.Hash)
	}
	if err := VerifyFileHash(path, report.Hash); err != nil {
		t.Fatalf("VerifyFileHash() failed: %v", err)
	}
}

func TestLoadVerifiesLockedConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "validation:\n  secret: x\n")

	if _, err := Lock(path, false); err != nil {
		t.Fatalf("Lock() failed: %v", err)
	}
	if _, err := Load(path); err != nil {
		t.Fatalf("Load() of locked config failed: %v", err)
	}

	// Tamper after locking.
	if err := os.WriteFile(path, []byte("validation:\n  secret: y\n"), 0600); err != nil {
		t.Fatal(err)
	}
	_, err := Load(path)
	if err == nil {
		t.Fatal("Load() succeeded on tampered config")
	}
	if !strings.Contains(err.Error(), "hash mismatch") {
		t.Fatalf("error = %v, want hash mismatch", err)
	}
}

func TestLoadRejectsUnlistedConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "validation:\n  secret: x\n")
	manifest := "version: 1\nhashes:\n  other.yaml: abc\n"
	if err := os.WriteFile(filepath.Join(dir, ChecksumFilename), []byte(manifest), 0600); err != nil {
		t.Fatal(err)
	}

	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "has no hash in checksums") {
		t.Fatalf("Load() error = %v, want missing hash error", err)
	}
}

func TestLoadChecksumsVersion(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ChecksumFilename), []byte("version: 2\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadChecksums(dir); err == nil {
		t.Fatal("expected unsupported version error")
	}
}
