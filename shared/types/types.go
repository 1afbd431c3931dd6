// shared/types/types.go
package shared

import (
	"time"
)

// FileStatus classifies a change relative to the last recorded state.
type FileStatus string

const (
	StatusAdded    FileStatus = "add"
	StatusModified FileStatus = "modify"
	StatusDeleted  FileStatus = "delete"
)

// Item is the closed set of change-like objects the tree builder accepts.
// Every variant resolves to a single filesystem path. The set is sealed;
// adding a variant means implementing the marker and extending the path-key
// dispatch in internal/pathkey.
type Item interface {
	isChangeItem()
}

// VirtualFile is a handle to a live file in the workspace.
type VirtualFile struct {
	Path  string `json:"path"`
	IsDir bool   `json:"is_dir"`
	Valid bool   `json:"valid"`
}

func (VirtualFile) isChangeItem() {}

// FilePath identifies a file location that may no longer exist on disk.
type FilePath struct {
	Path     string       `json:"path"`
	IsDir    bool         `json:"is_dir"`
	NonLocal bool         `json:"non_local"`
	File     *VirtualFile `json:"file,omitempty"` // backing handle, if any
}

func (FilePath) isChangeItem() {}

// Change pairs the before/after state of a single file.
type Change struct {
	Path    string       `json:"path"`
	OldPath string       `json:"old_path,omitempty"`
	Status  FileStatus   `json:"status"`
	IsDir   bool         `json:"is_dir"`
	File    *VirtualFile `json:"file,omitempty"`
	OldHash string       `json:"old_hash,omitempty"`
	NewHash string       `json:"new_hash,omitempty"`
	Size    int64        `json:"size"`
	ModTime time.Time    `json:"mod_time"`
}

func (Change) isChangeItem() {}

// FilePath resolves the change to the location it should be shown at:
// the after-path, falling back to the before-path for deletions.
func (c Change) FilePath() FilePath {
	p := c.Path
	if p == "" {
		p = c.OldPath
	}
	return FilePath{Path: p, IsDir: c.IsDir, File: c.File}
}

// LocallyDeletedChange marks a file deleted in the working tree but still
// known to the VCS.
type LocallyDeletedChange struct {
	Path FilePath `json:"path"`
}

func (LocallyDeletedChange) isChangeItem() {}

// LogicalLock describes a lock taken through the VCS rather than the OS.
type LogicalLock struct {
	Owner   string    `json:"owner"`
	Local   bool      `json:"local"`
	Created time.Time `json:"created"`
}

// LogicallyLockedFile is a live file annotated with its logical lock.
type LogicallyLockedFile struct {
	File VirtualFile `json:"file"`
	Lock LogicalLock `json:"lock"`
}

func (LogicallyLockedFile) isChangeItem() {}

// SwitchedRoot is a VCS root checked out on a different branch than the
// rest of the workspace.
type SwitchedRoot struct {
	Root   VirtualFile `json:"root"`
	Branch string      `json:"branch"`
}

func (SwitchedRoot) isChangeItem() {}

// ChangeList groups related changes together
type ChangeList struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	Comment string    `json:"comment,omitempty"`
	Default bool      `json:"default"`
	Changes []Change  `json:"changes"`
	Created time.Time `json:"created_at"`
}
