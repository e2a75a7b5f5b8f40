// Package appid identifies sandboxed applications.
//
// An AppID pairs a primary identifier (package name, desktop file, or
// canonical executable path) with an optional SHA-256 digest of the binary.
// The digest lets a broker detect that a previously trusted executable has
// been replaced on disk.
package appid

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// AppID identifies an application. Two AppIDs are equal iff both fields
// are equal; values are comparable and usable as map keys.
type AppID struct {
	// Primary is the stable identifier: a package name, a desktop file
	// name, or a canonical absolute executable path.
	Primary string `json:"primary"`

	// BinaryHash is the lowercase hex SHA-256 of the executable contents,
	// or empty when no hash was recorded.
	BinaryHash string `json:"binary_hash,omitempty"`
}

// FromPackage wraps a package name (e.g. "org.mozilla.firefox") verbatim.
func FromPackage(name string) AppID {
	return AppID{Primary: name}
}

// FromDesktop wraps a desktop entry name (e.g. "firefox.desktop") verbatim.
func FromDesktop(name string) AppID {
	return AppID{Primary: name}
}

// FromExecutable identifies an application by its executable path. The
// path is canonicalized (symlinks resolved, made absolute) so that all
// spellings of the same binary map to one identity. When withHash is set
// the file contents are digested with SHA-256.
func FromExecutable(path string, withHash bool) (AppID, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return AppID{}, fmt.Errorf("appid: resolve %q: %w", path, err)
	}
	abs, err := filepath.Abs(resolved)
	if err != nil {
		return AppID{}, fmt.Errorf("appid: absolutize %q: %w", resolved, err)
	}

	app := AppID{Primary: abs}
	if withHash {
		sum, err := hashFile(abs)
		if err != nil {
			return AppID{}, err
		}
		app.BinaryHash = sum
	}
	return app, nil
}

// Key returns the policy/audit storage key for this application.
// The hash is deliberately excluded: a rehashed binary keeps its identity
// for lookup and is caught by VerifyHash instead.
func (a AppID) Key() string { return a.Primary }

// String returns the primary identifier.
func (a AppID) String() string { return a.Primary }

// IsZero reports whether the AppID is empty.
func (a AppID) IsZero() bool { return a.Primary == "" }

// VerifyHash re-digests the file at path and compares it against the
// recorded BinaryHash. An AppID without a recorded hash trivially
// verifies.
func (a AppID) VerifyHash(path string) (bool, error) {
	if a.BinaryHash == "" {
		return true, nil
	}
	sum, err := hashFile(path)
	if err != nil {
		return false, err
	}
	return sum == a.BinaryHash, nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("appid: open %q: %w", path, err)
	}
	defer f.Close() //nolint:errcheck // read-only file

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("appid: hash %q: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
