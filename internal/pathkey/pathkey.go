// internal/pathkey/pathkey.go
package pathkey

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"changeview/shared/types"

	lru "github.com/hashicorp/golang-lru/v2"
)

var ErrUnsupportedItem = errors.New("unsupported change item kind")

// canonCache memoizes canonicalization results. Relative local paths
// resolve against the process working directory, so the cache assumes the
// working directory never changes for the life of the process; entries are
// otherwise deterministic and never go stale.
var canonCache, _ = lru.New[string, string](1024)

// PathKey is an immutable, canonical identifier for one file location.
// Equality is by canonical path string only; the directory flag classifies
// the key for caching but does not participate in identity.
type PathKey struct {
	dir  bool
	path string
	file *shared.VirtualFile
}

// From resolves any recognized change item to its path key. Unrecognized
// kinds are a contract violation and fail immediately.
func From(item shared.Item) (PathKey, error) {
	switch v := item.(type) {
	case shared.Change:
		return fromFilePath(v.FilePath()), nil
	case shared.FilePath:
		return fromFilePath(v), nil
	case shared.VirtualFile:
		return fromVirtualFile(v), nil
	case shared.LocallyDeletedChange:
		return fromFilePath(v.Path), nil
	case shared.LogicallyLockedFile:
		return fromVirtualFile(v.File), nil
	case shared.SwitchedRoot:
		return fromVirtualFile(v.Root), nil
	default:
		return PathKey{}, fmt.Errorf("%w: %T", ErrUnsupportedItem, item)
	}
}

func fromFilePath(fp shared.FilePath) PathKey {
	return PathKey{
		dir:  fp.IsDir,
		path: Canonical(fp.Path, fp.NonLocal),
		file: fp.File,
	}
}

func fromVirtualFile(vf shared.VirtualFile) PathKey {
	f := vf
	return PathKey{
		dir:  vf.IsDir,
		path: strings.ReplaceAll(vf.Path, `\`, "/"),
		file: &f,
	}
}

// Canonical normalizes a raw path. Remote and non-absolute non-local paths
// keep their forward-slash form as-is; local paths become absolute with
// backslashes converted to forward slashes. Idempotent. Relative local
// paths resolve against the process working directory, which must stay
// fixed for results to be memoizable.
func Canonical(raw string, nonLocal bool) string {
	kind := "l:"
	if nonLocal {
		kind = "n:"
	}
	if cached, ok := canonCache.Get(kind + raw); ok {
		return cached
	}

	s := strings.ReplaceAll(raw, `\`, "/")
	if !(nonLocal && (!filepath.IsAbs(s) || IsRemote(s))) {
		if abs, err := filepath.Abs(s); err == nil {
			s = strings.ReplaceAll(abs, `\`, "/")
		}
	}

	canonCache.Add(kind+raw, s)
	return s
}

// IsRemote reports whether a path carries a URL-style scheme.
func IsRemote(p string) bool {
	return strings.Contains(p, "://")
}

// Key returns the canonical string used for cache lookups.
func (k PathKey) Key() string { return k.path }

// IsDir reports whether the key was built from a directory.
func (k PathKey) IsDir() bool { return k.dir }

// File returns the backing virtual file handle, if any.
func (k PathKey) File() *shared.VirtualFile { return k.file }

// Parent returns the key of the containing directory, or false at a
// filesystem root.
func (k PathKey) Parent() (PathKey, bool) {
	p := path.Dir(k.path)
	if p == k.path || p == "." || p == "/" {
		return PathKey{}, false
	}
	return PathKey{dir: true, path: p}, true
}

// FilePath converts the key back into a file path object, preferring the
// live file handle when one is attached.
func (k PathKey) FilePath() shared.FilePath {
	if k.file != nil {
		return shared.FilePath{Path: k.path, IsDir: k.file.IsDir, File: k.file}
	}
	return shared.FilePath{Path: k.path, IsDir: true}
}
