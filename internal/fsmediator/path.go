// Package fsmediator implements path confinement, host-error translation
// and the directory/file operations of spec.md §4.4.
package fsmediator

import (
	"os"
	"path/filepath"
	"strings"

	"gotnfs/internal/protocol"
)

// Confine resolves a client-supplied, slash-separated path against root,
// enforcing spec.md §4.4.1:
//
//   - the path is treated as absolute within root regardless of a leading
//     slash;
//   - "." and ".." segments are collapsed textually, before any host call;
//   - a path whose ".." segments would climb above root, or that contains
//     a NUL byte, is rejected outright;
//   - after the host resolves symlinks, the realpath must still lie
//     beneath root, or the operation fails with access denied.
//
// The returned path is an absolute, OS-native path suitable for host
// filesystem calls. It does not need to exist yet (callers that create new
// files or directories still get a confined, symlink-checked parent).
func Confine(root, clientPath string) (string, error) {
	normalized, err := normalize(clientPath)
	if err != nil {
		return "", err
	}

	full := filepath.Join(root, filepath.FromSlash(normalized))

	if err := verifyUnderRoot(root, full); err != nil {
		return "", err
	}
	return full, nil
}

// normalize collapses "." and ".." segments of a POSIX-style client path,
// erroring if a ".." segment would climb above the (implicit) root. It
// never touches the host filesystem.
func normalize(p string) (string, error) {
	segments := strings.Split(p, "/")
	stack := make([]string, 0, len(segments))
	for _, seg := range segments {
		if strings.IndexByte(seg, 0) >= 0 {
			return "", protocol.StatusEINVAL.AsError()
		}
		switch seg {
		case "", ".":
			continue
		case "..":
			if len(stack) == 0 {
				return "", protocol.StatusEACCES.AsError()
			}
			stack = stack[:len(stack)-1]
		default:
			stack = append(stack, seg)
		}
	}
	return "/" + strings.Join(stack, "/"), nil
}

// verifyUnderRoot resolves symlinks along full (or, if full does not yet
// exist, along the nearest existing ancestor) and confirms the result is
// root or a descendant of it.
func verifyUnderRoot(root, full string) error {
	rootReal, err := filepath.EvalSymlinks(root)
	if err != nil {
		// The configured root itself must exist; if it doesn't, every
		// operation will fail at the host call anyway.
		rootReal = root
	}

	probe := full
	var tail []string
	for {
		real, err := filepath.EvalSymlinks(probe)
		if err == nil {
			resolved := real
			for i := len(tail) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, tail[i])
			}
			if !isWithin(rootReal, resolved) {
				return protocol.StatusEACCES.AsError()
			}
			return nil
		}
		if !os.IsNotExist(err) {
			// Some other host error (e.g. permission denied walking the
			// path); let the caller's subsequent host call surface it.
			return nil
		}
		parent := filepath.Dir(probe)
		if parent == probe {
			// Reached the filesystem root without finding an existing
			// ancestor; nothing left to resolve.
			return nil
		}
		tail = append(tail, filepath.Base(probe))
		probe = parent
	}
}

// isWithin reports whether candidate is root or a descendant of it.
func isWithin(root, candidate string) bool {
	rel, err := filepath.Rel(root, candidate)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
