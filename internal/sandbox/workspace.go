// Package sandbox canonicalises candidate filesystem paths against a
// workspace root and rejects anything that resolves outside it, including
// symlink escapes, per spec.md §4.4.
package sandbox

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/nupi-ai/gitdaemon/internal/apierr"
)

const maxCandidateLength = 4096

// ErrMissingPath is returned by ResolveInsideWorkspace when the resolved
// path does not exist and allowMissing is false. Callers remap it to the
// route-specific repo_not_found/path_not_found codes (spec.md §4.4).
var ErrMissingPath = errors.New("sandbox: path does not exist")

// ResolveInsideWorkspace canonicalises candidate against root and returns
// the absolute path, following the algorithm in spec.md §4.4:
//  1. reject overlong candidates
//  2. canonicalise root
//  3. join candidate onto the canonical root
//  4. canonicalise the joined path (or its parent, if the path itself does
//     not yet exist) to defeat symlink-escape attacks
//  5. require the canonical result to be root or a strict descendant
//  6. unless allowMissing, require the final path to exist
func ResolveInsideWorkspace(root, candidate string, allowMissing bool) (string, error) {
	if len(candidate) > maxCandidateLength {
		return "", apierr.PathOutsideWorkspace()
	}

	canonicalRoot, err := canonicalise(root)
	if err != nil {
		return "", apierr.PathOutsideWorkspace()
	}

	joined := filepath.Join(canonicalRoot, candidate)

	canonicalCandidate, err := canonicalise(joined)
	existed := err == nil
	if err != nil {
		if !os.IsNotExist(err) {
			return "", apierr.PathOutsideWorkspace()
		}
		// The target itself doesn't exist yet (e.g. a clone destination):
		// canonicalise its parent instead, so a symlinked parent directory
		// still can't be used to escape the workspace.
		parent := filepath.Dir(joined)
		canonicalParent, parentErr := canonicalise(parent)
		if parentErr != nil {
			return "", apierr.PathOutsideWorkspace()
		}
		if !isWithin(canonicalParent, canonicalRoot) {
			return "", apierr.PathOutsideWorkspace()
		}
		canonicalCandidate = filepath.Join(canonicalParent, filepath.Base(joined))
	}

	if !isWithin(canonicalCandidate, canonicalRoot) {
		return "", apierr.PathOutsideWorkspace()
	}

	if !allowMissing && !existed {
		return "", ErrMissingPath
	}

	return canonicalCandidate, nil
}

// EnsureRelative rejects absolute paths and any path that, after
// normalisation, is "." or begins with "..".
func EnsureRelative(candidate string) error {
	if len(candidate) > maxCandidateLength {
		return apierr.PathOutsideWorkspace()
	}
	if filepath.IsAbs(candidate) {
		return apierr.PathOutsideWorkspace()
	}
	cleaned := filepath.Clean(candidate)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return apierr.PathOutsideWorkspace()
	}
	return nil
}

// canonicalise resolves symlinks in path. If path does not exist it returns
// the os.IsNotExist error unchanged so callers can fall back to resolving
// the parent directory.
func canonicalise(path string) (string, error) {
	return filepath.EvalSymlinks(path)
}

// isWithin reports whether path is equal to root or a strict descendant of
// it. A plain strings.HasPrefix(path, root) would wrongly match a sibling
// like root+"-evil", so the comparison requires a path separator boundary.
func isWithin(path, root string) bool {
	if path == root {
		return true
	}
	return strings.HasPrefix(path, root+string(filepath.Separator))
}
