package appid

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
)

func TestFromPackage(t *testing.T) {
	app := FromPackage("org.mozilla.firefox")
	if app.Primary != "org.mozilla.firefox" {
		t.Fatalf("Primary = %q", app.Primary)
	}
	if app.BinaryHash != "" {
		t.Fatalf("BinaryHash = %q, want empty", app.BinaryHash)
	}
	if app.Key() != "org.mozilla.firefox" {
		t.Fatalf("Key = %q", app.Key())
	}
}

func TestFromExecutableResolvesSymlinks(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "app-bin")
	if err := os.WriteFile(target, []byte("#!/bin/sh\necho hi\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(dir, "app-link")
	if err := os.Symlink(target, link); err != nil {
		t.Fatal(err)
	}

	direct, err := FromExecutable(target, false)
	if err != nil {
		t.Fatal(err)
	}
	viaLink, err := FromExecutable(link, false)
	if err != nil {
		t.Fatal(err)
	}
	if direct != viaLink {
		t.Fatalf("identities differ: %+v vs %+v", direct, viaLink)
	}
}

func TestFromExecutableWithHash(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bin")
	contents := []byte("binary contents")
	if err := os.WriteFile(path, contents, 0o755); err != nil {
		t.Fatal(err)
	}

	app, err := FromExecutable(path, true)
	if err != nil {
		t.Fatal(err)
	}
	sum := sha256.Sum256(contents)
	if want := hex.EncodeToString(sum[:]); app.BinaryHash != want {
		t.Fatalf("BinaryHash = %q, want %q", app.BinaryHash, want)
	}

	// Key stays stable regardless of the recorded hash.
	plain, err := FromExecutable(path, false)
	if err != nil {
		t.Fatal(err)
	}
	if app.Key() != plain.Key() {
		t.Fatalf("Key with hash = %q, without = %q", app.Key(), plain.Key())
	}
}

func TestFromExecutableMissing(t *testing.T) {
	if _, err := FromExecutable(filepath.Join(t.TempDir(), "absent"), false); err == nil {
		t.Fatal("expected error for missing executable")
	}
}

func TestVerifyHash(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bin")
	if err := os.WriteFile(path, []byte("v1"), 0o755); err != nil {
		t.Fatal(err)
	}

	app, err := FromExecutable(path, true)
	if err != nil {
		t.Fatal(err)
	}

	ok, err := app.VerifyHash(path)
	if err != nil || !ok {
		t.Fatalf("VerifyHash unchanged = (%v, %v), want (true, nil)", ok, err)
	}

	// Replacing the binary must be detected.
	if err := os.WriteFile(path, []byte("v2"), 0o755); err != nil {
		t.Fatal(err)
	}
	ok, err = app.VerifyHash(path)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("VerifyHash = true after binary replacement")
	}

	// No recorded hash trivially verifies.
	ok, err = FromPackage("x").VerifyHash(path)
	if err != nil || !ok {
		t.Fatalf("VerifyHash without recorded hash = (%v, %v), want (true, nil)", ok, err)
	}
}
