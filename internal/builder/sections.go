// internal/builder/sections.go
package builder

import (
	"sort"
	"strings"

	"changeview/internal/pathkey"
	"changeview/internal/tree"
	"changeview/shared/types"

	"go.uber.org/zap"
)

// Counts carries the file/directory totals shown on a section's summary
// node. The totals may exceed the number of materialized leaves when the
// section is oversized.
type Counts struct {
	Files int
	Dirs  int
}

// SetChanges inserts plain changes directly under the root, shortest paths
// first so cached directory nodes exist before deeper entries need them.
func (b *Builder) SetChanges(changes []shared.Change, decorator tree.Decorator) *Builder {
	if b.err != nil || len(changes) == 0 {
		return b
	}
	for _, c := range sortedByPathLength(changes) {
		leaf := b.tree.NewNode(tree.Node{Kind: tree.KindChange, Value: c, Decorator: decorator})
		if err := b.Insert(c, b.tree.Root(), leaf); err != nil {
			b.setErr(err)
			return b
		}
	}
	return b
}

// SetChangeLists builds one top-level node per changelist with the list's
// changes grouped beneath it. Each list is its own section.
func (b *Builder) SetChangeLists(lists []shared.ChangeList) *Builder {
	if b.err != nil {
		return b
	}
	for _, list := range lists {
		listNode := b.tree.NewNode(tree.Node{Kind: tree.KindChangelist, Value: list})
		b.tree.InsertAt(listNode, b.tree.Root(), 0)
		b.resetGrouping()
		for _, c := range sortedByPathLength(list.Changes) {
			leaf := b.tree.NewNode(tree.Node{Kind: tree.KindChange, Value: c})
			if err := b.Insert(c, listNode, leaf); err != nil {
				b.setErr(err)
				return b
			}
		}
		b.logger.Debug("built changelist section",
			zap.String("changelist", list.Name), zap.Int("changes", len(list.Changes)))
	}
	return b
}

// SetUnversioned builds the unversioned-files section. Oversized
// collections keep only the summary node; no individual leaves are
// materialized.
func (b *Builder) SetUnversioned(files []shared.VirtualFile, counts Counts) *Builder {
	if b.err != nil || len(files) == 0 {
		return b
	}
	return b.insertSpecificNode(files, tree.Node{
		Kind:      tree.KindTag,
		Value:     TagUnversioned,
		FileCount: counts.Files,
		DirCount:  counts.Dirs,
		ManyFiles: len(files) > b.threshold,
	})
}

// SetIgnored builds the ignored-files section, with the same oversized
// handling as SetUnversioned.
func (b *Builder) SetIgnored(files []shared.VirtualFile, counts Counts, updating bool) *Builder {
	if b.err != nil || len(files) == 0 {
		return b
	}
	return b.insertSpecificNode(files, tree.Node{
		Kind:      tree.KindTag,
		Value:     TagIgnored,
		FileCount: counts.Files,
		DirCount:  counts.Dirs,
		ManyFiles: len(files) > b.threshold,
		Updating:  updating,
	})
}

func (b *Builder) insertSpecificNode(files []shared.VirtualFile, n tree.Node) *Builder {
	b.resetGrouping()
	section := b.tree.NewNode(n)
	b.tree.Insert(section, b.tree.Root())

	if n.ManyFiles {
		b.logger.Debug("summarized oversized section",
			zap.Any("section", n.Value), zap.Int("files", len(files)))
		return b
	}
	b.insertFiles(files, section)
	return b
}

// SetModifiedWithoutEditing builds the section for files changed on disk
// without a checkout.
func (b *Builder) SetModifiedWithoutEditing(files []shared.VirtualFile) *Builder {
	if b.err != nil || len(files) == 0 {
		return b
	}
	b.resetGrouping()
	return b.buildVirtualFiles(files, TagModifiedWithoutEditing)
}

// SetSwitchedRoots builds the section of VCS roots checked out on another
// branch.
func (b *Builder) SetSwitchedRoots(roots map[shared.VirtualFile]string) *Builder {
	if b.err != nil || len(roots) == 0 {
		return b
	}
	b.resetGrouping()
	head := b.createTagNode(TagSwitchedRoots)

	files := make([]shared.VirtualFile, 0, len(roots))
	for vf := range roots {
		files = append(files, vf)
	}
	for _, vf := range sortedHierarchically(files) {
		item := shared.SwitchedRoot{Root: vf, Branch: roots[vf]}
		leaf := b.tree.NewNode(tree.Node{Kind: tree.KindSwitchedRoot, Value: item})
		if err := b.Insert(item, head, leaf); err != nil {
			b.setErr(err)
			return b
		}
	}
	return b
}

// SetSwitchedFiles builds the switched-files section, one branch group per
// branch. Branches share the section's directory cache.
func (b *Builder) SetSwitchedFiles(switched map[string][]shared.VirtualFile) *Builder {
	if b.err != nil || len(switched) == 0 {
		return b
	}
	b.resetGrouping()
	base := b.createTagNode(TagSwitchedFiles)

	branches := make([]string, 0, len(switched))
	for branch := range switched {
		branches = append(branches, branch)
	}
	sort.Strings(branches)

	for _, branch := range branches {
		files := switched[branch]
		if len(files) == 0 {
			continue
		}
		branchNode := b.tree.NewNode(tree.Node{Kind: tree.KindBranch, Value: branch})
		b.tree.Insert(branchNode, base)
		b.insertFiles(files, branchNode)
		if b.err != nil {
			return b
		}
	}
	return b
}

// SetLockedFolders builds the locked-folders section.
func (b *Builder) SetLockedFolders(files []shared.VirtualFile) *Builder {
	if b.err != nil || len(files) == 0 {
		return b
	}
	b.resetGrouping()
	return b.buildVirtualFiles(files, TagLockedFolders)
}

// SetLogicallyLocked builds the section of files locked through the VCS.
func (b *Builder) SetLogicallyLocked(locks map[shared.VirtualFile]shared.LogicalLock) *Builder {
	if b.err != nil || len(locks) == 0 {
		return b
	}
	b.resetGrouping()
	base := b.createTagNode(TagLogicallyLocked)

	files := make([]shared.VirtualFile, 0, len(locks))
	for vf := range locks {
		files = append(files, vf)
	}
	for _, vf := range sortedHierarchically(files) {
		item := shared.LogicallyLockedFile{File: vf, Lock: locks[vf]}
		leaf := b.tree.NewNode(tree.Node{Kind: tree.KindLockedFile, Value: item})
		if err := b.Insert(item, base, leaf); err != nil {
			b.setErr(err)
			return b
		}
	}
	return b
}

// SetLocallyDeleted builds the locally-deleted section. Entries are
// deduplicated by path key within the section.
func (b *Builder) SetLocallyDeleted(deleted []shared.LocallyDeletedChange) *Builder {
	if b.err != nil || len(deleted) == 0 {
		return b
	}
	b.resetGrouping()
	base := b.createTagNode(TagLocallyDeleted)

	for _, d := range deleted {
		key, err := pathkey.From(d)
		if err != nil {
			b.setErr(err)
			return b
		}
		if _, seen := b.sess.cache[key.Key()]; seen {
			continue
		}
		leaf := b.tree.NewNode(tree.Node{Kind: tree.KindLocallyDeleted, Value: d})
		parent := b.resolveParent(key, base)
		b.tree.Insert(leaf, parent)
		b.sess.cache[key.Key()] = leaf
	}
	return b
}

// Set builds every section of a full changes view in display order.
// Nil or empty collections are skipped.
func (b *Builder) Set(
	lists []shared.ChangeList,
	locallyDeleted []shared.LocallyDeletedChange,
	modifiedWithoutEditing []shared.VirtualFile,
	switchedFiles map[string][]shared.VirtualFile,
	switchedRoots map[shared.VirtualFile]string,
	lockedFolders []shared.VirtualFile,
	logicallyLocked map[shared.VirtualFile]shared.LogicalLock,
) *Builder {
	b.resetGrouping()
	b.SetChangeLists(lists)
	b.SetModifiedWithoutEditing(modifiedWithoutEditing)
	b.SetSwitchedRoots(switchedRoots)
	b.SetSwitchedFiles(switchedFiles)
	b.SetLockedFolders(lockedFolders)
	b.SetLogicallyLocked(logicallyLocked)
	b.SetLocallyDeleted(locallyDeleted)
	return b
}

// BuildModel is the one-shot form of SetChanges + Build.
func (b *Builder) BuildModel(changes []shared.Change, decorator tree.Decorator) (*tree.Tree, error) {
	return b.SetChanges(changes, decorator).Build()
}

// BuildModelFromFiles builds a model of bare virtual files attached under
// the root.
func (b *Builder) BuildModelFromFiles(files []shared.VirtualFile) (*tree.Tree, error) {
	b.insertFiles(files, b.tree.Root())
	return b.Build()
}

// BuildModelFromFilePaths builds a model from file path objects, e.g. for
// a commit dialog. Paths are deduplicated by key within the build.
func (b *Builder) BuildModelFromFilePaths(paths []shared.FilePath) (*tree.Tree, error) {
	for _, fp := range paths {
		// Whether this is a folder does not matter for the key; for
		// deleted files the answer would be unreliable anyway.
		flat := fp
		flat.IsDir = false
		key, err := pathkey.From(flat)
		if err != nil {
			b.setErr(err)
			break
		}
		if _, seen := b.sess.cache[key.Key()]; seen {
			continue
		}
		leaf := b.tree.NewNode(tree.Node{Kind: tree.KindPath, Value: fp})
		parent := b.resolveParent(key, b.tree.Root())
		b.tree.InsertAt(leaf, parent, 0)
		b.sess.cache[key.Key()] = leaf
	}
	return b.Build()
}

func (b *Builder) buildVirtualFiles(files []shared.VirtualFile, tag string) *Builder {
	b.insertFiles(files, b.createTagNode(tag))
	return b
}

// createTagNode appends a named group node under the root; an empty tag
// addresses the root itself.
func (b *Builder) createTagNode(tag string) tree.NodeID {
	if tag == "" {
		return b.tree.Root()
	}
	id := b.tree.NewNode(tree.Node{Kind: tree.KindTag, Value: tag})
	b.tree.Insert(id, b.tree.Root())
	return id
}

func (b *Builder) insertFiles(files []shared.VirtualFile, base tree.NodeID) {
	for _, vf := range sortedHierarchically(files) {
		leaf := b.tree.NewNode(tree.Node{Kind: tree.KindFile, Value: vf})
		if err := b.Insert(vf, base, leaf); err != nil {
			b.setErr(err)
			return
		}
	}
}

// sortedByPathLength orders changes by path-string length ascending, so
// shallow paths are inserted before anything nested under them.
func sortedByPathLength(changes []shared.Change) []shared.Change {
	out := make([]shared.Change, len(changes))
	copy(out, changes)
	sort.SliceStable(out, func(i, j int) bool {
		return len(out[i].FilePath().Path) < len(out[j].FilePath().Path)
	})
	return out
}

// sortedHierarchically orders files parents-first: by path depth, then by
// path string for determinism.
func sortedHierarchically(files []shared.VirtualFile) []shared.VirtualFile {
	out := make([]shared.VirtualFile, len(files))
	copy(out, files)
	sort.SliceStable(out, func(i, j int) bool {
		di, dj := pathDepth(out[i].Path), pathDepth(out[j].Path)
		if di != dj {
			return di < dj
		}
		return out[i].Path < out[j].Path
	})
	return out
}

func pathDepth(p string) int {
	return strings.Count(p, "/") + strings.Count(p, `\`)
}
