// internal/scan/scan.go
package scan

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"changeview/shared/types"
	"changeview/shared/utils"

	ignore "github.com/sabhiram/go-gitignore"
	"go.uber.org/zap"
)

// alwaysSkip directories are never scanned regardless of ignore rules.
var alwaysSkip = map[string]bool{
	".git":         true,
	".changeview":  true,
	"node_modules": true,
	"vendor":       true,
}

// Result groups a working-tree scan into the collections the tree builder
// consumes.
type Result struct {
	Changes     []shared.Change
	Deleted     []shared.LocallyDeletedChange
	Unversioned []shared.VirtualFile
	Ignored     []shared.VirtualFile
}

// Scanner classifies working-tree files against a tracked-file index and
// the workspace's .gitignore rules.
type Scanner struct {
	root    string
	ignore  *ignore.GitIgnore
	tracked map[string]string // relative path -> content hash
	logger  *zap.Logger
}

// New creates a scanner rooted at root. The tracked index maps relative
// paths to the content hash they had when last recorded; nil means nothing
// is tracked.
func New(root string, tracked map[string]string, logger *zap.Logger) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{
		root:    root,
		ignore:  loadGitignore(root),
		tracked: tracked,
		logger:  logger,
	}
}

// Scan walks the working tree once and classifies every entry as modified,
// unversioned, or ignored, and reports tracked files that disappeared.
func (s *Scanner) Scan() (*Result, error) {
	result := &Result{}
	seen := make(map[string]bool, len(s.tracked))

	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == s.root {
			return nil
		}

		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return fmt.Errorf("getting relative path: %w", err)
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if alwaysSkip[d.Name()] {
				return filepath.SkipDir
			}
			if s.ignore != nil && s.ignore.MatchesPath(rel+"/") {
				result.Ignored = append(result.Ignored,
					shared.VirtualFile{Path: path, IsDir: true, Valid: true})
				return filepath.SkipDir
			}
			return nil
		}

		if s.ignore != nil && s.ignore.MatchesPath(rel) {
			result.Ignored = append(result.Ignored,
				shared.VirtualFile{Path: path, Valid: true})
			return nil
		}

		vf := shared.VirtualFile{Path: path, Valid: true}

		oldHash, tracked := s.tracked[rel]
		if !tracked {
			result.Unversioned = append(result.Unversioned, vf)
			return nil
		}
		seen[rel] = true

		content, err := os.ReadFile(path)
		if err != nil {
			s.logger.Warn("failed to read file", zap.String("path", rel), zap.Error(err))
			return nil
		}
		newHash := utils.HashContent(content)
		if newHash == oldHash {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			s.logger.Warn("failed to stat file", zap.String("path", rel), zap.Error(err))
			return nil
		}
		result.Changes = append(result.Changes, shared.Change{
			Path:    path,
			Status:  shared.StatusModified,
			File:    &vf,
			OldHash: oldHash,
			NewHash: newHash,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking working tree: %w", err)
	}

	for rel := range s.tracked {
		if !seen[rel] {
			result.Deleted = append(result.Deleted, shared.LocallyDeletedChange{
				Path: shared.FilePath{Path: filepath.Join(s.root, filepath.FromSlash(rel))},
			})
		}
	}

	s.logger.Debug("scanned working tree",
		zap.Int("changes", len(result.Changes)),
		zap.Int("deleted", len(result.Deleted)),
		zap.Int("unversioned", len(result.Unversioned)),
		zap.Int("ignored", len(result.Ignored)))
	return result, nil
}

// loadGitignore compiles the workspace's .gitignore, or returns nil when
// there is none.
func loadGitignore(root string) *ignore.GitIgnore {
	gi, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		return nil
	}
	return gi
}
