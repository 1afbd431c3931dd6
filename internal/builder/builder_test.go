package builder

import (
	"strings"
	"testing"

	"changeview/internal/pathkey"
	"changeview/internal/tree"
	"changeview/shared/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func change(path string) shared.Change {
	return shared.Change{Path: path, Status: shared.StatusModified}
}

func file(path string) shared.VirtualFile {
	return shared.VirtualFile{Path: path, Valid: true}
}

// dump renders the tree as "text(child child ...)" for structural
// comparisons.
func dump(tr *tree.Tree, id tree.NodeID) string {
	text := tr.Text(id)
	if tr.IsLeaf(id) {
		return text
	}
	parts := make([]string, 0, tr.ChildCount(id))
	for _, c := range tr.Children(id) {
		parts = append(parts, dump(tr, c))
	}
	return text + "(" + strings.Join(parts, " ") + ")"
}

func countText(tr *tree.Tree, id tree.NodeID, text string) int {
	n := 0
	if tr.Text(id) == text {
		n++
	}
	for _, c := range tr.Children(id) {
		n += countText(tr, c, text)
	}
	return n
}

func countKind(tr *tree.Tree, id tree.NodeID, kind tree.Kind) int {
	n := 0
	if tr.Node(id).Kind == kind {
		n++
	}
	for _, c := range tr.Children(id) {
		n += countKind(tr, c, kind)
	}
	return n
}

func childTexts(tr *tree.Tree, id tree.NodeID) []string {
	var texts []string
	for _, c := range tr.Children(id) {
		texts = append(texts, tr.Text(c))
	}
	return texts
}

func TestBuildDeterminism(t *testing.T) {
	build := func() string {
		b := New(Options{})
		tr, err := b.SetChanges([]shared.Change{
			change("/work/a/b/one.txt"),
			change("/work/a/two.txt"),
			change("/work/c/three.txt"),
		}, nil).
			SetUnversioned([]shared.VirtualFile{
				file("/work/u/new.txt"), file("/work/u/also.txt"),
			}, Counts{Files: 2}).
			SetSwitchedFiles(map[string][]shared.VirtualFile{
				"feature": {file("/work/s/f.txt")},
				"release": {file("/work/s/r.txt")},
			}).
			Build()
		require.NoError(t, err)
		return dump(tr, tr.Root())
	}

	first := build()
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, build())
	}
}

func TestNoDuplicateDirectoryNodes(t *testing.T) {
	b := New(Options{})
	tr, err := b.SetChanges([]shared.Change{
		change("/work/a/b/one.txt"),
		change("/work/a/b/two.txt"),
		change("/work/a/c.txt"),
	}, nil).Build()
	require.NoError(t, err)

	assert.Equal(t, 1, countText(tr, tr.Root(), "b"))
	assert.Equal(t, 1, countText(tr, tr.Root(), "a"))
	assert.Equal(t, 1, countText(tr, tr.Root(), "one.txt"))
	assert.Equal(t, 1, countText(tr, tr.Root(), "two.txt"))
}

func TestCollapseSingleChildChains(t *testing.T) {
	b := New(Options{})
	tr, err := b.SetChanges([]shared.Change{
		change("/work/a/b/c/leaf.txt"),
	}, nil).Build()
	require.NoError(t, err)

	// work -> a -> b -> c all collapse into the deepest directory.
	require.Equal(t, 1, tr.ChildCount(tr.Root()))
	dir := tr.Children(tr.Root())[0]
	assert.Equal(t, "c", tr.Text(dir))
	assert.Equal(t, "/work/a/b/c", tr.PathOf(dir))

	require.Equal(t, 1, tr.ChildCount(dir))
	leaf := tr.Children(dir)[0]
	assert.Equal(t, "leaf.txt", tr.Text(leaf))
	assert.True(t, tr.IsLeaf(leaf))
}

func TestCollapseKeepsBranchingNodes(t *testing.T) {
	b := New(Options{})
	tr, err := b.SetChanges([]shared.Change{
		change("/work/a/b/one.txt"),
		change("/work/a/c/two.txt"),
	}, nil).Build()
	require.NoError(t, err)

	// "a" has two child directories, so it must survive the collapse.
	require.Equal(t, 1, tr.ChildCount(tr.Root()))
	a := tr.Children(tr.Root())[0]
	assert.Equal(t, "a", tr.Text(a))
	assert.Equal(t, []string{"b", "c"}, childTexts(tr, a))
}

func TestSortByWeight(t *testing.T) {
	b := New(Options{})
	tr := b.Tree()

	// Insert in reverse weight order; build must reorder them. Weight 0 is
	// included deliberately: an explicit zero must sort first, not fall back
	// to the kind's default weight.
	for _, w := range []int{2, 1, 0} {
		id := tr.NewNode(tree.Node{Kind: tree.KindFile, Value: file("/work/x.txt")})
		tr.Node(id).Weight = w
		tr.Insert(id, tr.Root())
	}
	_, err := b.Build()
	require.NoError(t, err)

	var weights []int
	for _, c := range tr.Children(tr.Root()) {
		weights = append(weights, tr.Node(c).Weight)
	}
	assert.Equal(t, []int{0, 1, 2}, weights)
}

func TestSortSameKindNaturalOrder(t *testing.T) {
	b := New(Options{})
	tr, err := b.SetChanges([]shared.Change{
		change("/work/zcc.txt"),
		change("/work/abb.txt"),
		change("/work/maa.txt"),
	}, nil).Build()
	require.NoError(t, err)

	work := tr.Children(tr.Root())[0]
	assert.Equal(t, []string{"abb.txt", "maa.txt", "zcc.txt"}, childTexts(tr, work))
}

func TestFlattenMode(t *testing.T) {
	b := New(Options{Flatten: true})
	tr, err := b.SetChanges([]shared.Change{
		change("/work/a/b/c.txt"),
		change("/work/a/d.txt"),
	}, nil).Build()
	require.NoError(t, err)

	assert.Equal(t, []string{"c.txt", "d.txt"}, childTexts(tr, tr.Root()))
	assert.Zero(t, countKind(tr, tr.Root(), tree.KindPath))
}

func TestOversizedSummarization(t *testing.T) {
	files := func(n int) []shared.VirtualFile {
		out := make([]shared.VirtualFile, n)
		for i := range out {
			out[i] = file("/work/u/file" + string(rune('a'+i%26)) + strings.Repeat("x", i) + ".txt")
		}
		return out
	}

	t.Run("above threshold keeps only the summary node", func(t *testing.T) {
		b := New(Options{})
		tr, err := b.SetUnversioned(files(51), Counts{Files: 51}).Build()
		require.NoError(t, err)

		require.Equal(t, 1, tr.ChildCount(tr.Root()))
		section := tr.Children(tr.Root())[0]
		assert.Equal(t, TagUnversioned, tr.Text(section))
		assert.True(t, tr.Node(section).ManyFiles)
		assert.True(t, tr.IsLeaf(section))
		assert.Zero(t, countKind(tr, tr.Root(), tree.KindFile))
	})

	t.Run("at threshold materializes every leaf", func(t *testing.T) {
		b := New(Options{})
		tr, err := b.SetUnversioned(files(50), Counts{Files: 50}).Build()
		require.NoError(t, err)

		section := tr.Children(tr.Root())[0]
		assert.False(t, tr.Node(section).ManyFiles)
		assert.Equal(t, 50, countKind(tr, tr.Root(), tree.KindFile))
	})

	t.Run("custom threshold", func(t *testing.T) {
		b := New(Options{Threshold: 2})
		tr, err := b.SetUnversioned(files(3), Counts{Files: 3}).Build()
		require.NoError(t, err)
		assert.Zero(t, countKind(tr, tr.Root(), tree.KindFile))
	})
}

func TestSectionIsolation(t *testing.T) {
	b := New(Options{})
	tr, err := b.
		SetUnversioned([]shared.VirtualFile{file("/work/src/x.txt"), file("/work/src/y.txt")}, Counts{Files: 2}).
		SetIgnored([]shared.VirtualFile{file("/work/src/x.txt"), file("/work/src/z.txt")}, Counts{Files: 2}, false).
		Build()
	require.NoError(t, err)

	// One "src" group per section, never shared across sections.
	assert.Equal(t, 2, countText(tr, tr.Root(), "src"))
	assert.Equal(t, 2, countText(tr, tr.Root(), "x.txt"))
}

func TestClearIdempotent(t *testing.T) {
	b := New(Options{})
	_, err := b.SetChanges([]shared.Change{change("/work/a.txt")}, nil).Build()
	require.NoError(t, err)
	require.False(t, b.IsEmpty())

	first := b.ClearAndGetModel()
	assert.Zero(t, first.ChildCount(first.Root()))
	assert.True(t, b.IsEmpty())

	second := b.ClearAndGetModel()
	assert.Zero(t, second.ChildCount(second.Root()))
	assert.True(t, b.IsEmpty())
}

// modulePolicy groups .go files under one synthetic module node per
// section.
type modulePolicy struct {
	t    *tree.Tree
	node tree.NodeID
}

func (p *modulePolicy) ParentFor(key pathkey.PathKey, sectionRoot tree.NodeID) tree.NodeID {
	if !strings.HasSuffix(key.Key(), ".go") {
		return tree.None
	}
	if p.node == tree.None {
		p.node = p.t.NewNode(tree.Node{Kind: tree.KindModule, Value: "go sources"})
		p.t.Insert(p.node, sectionRoot)
	}
	return p.node
}

type moduleFactory struct {
	created int
}

func (f *moduleFactory) NewPolicy(t *tree.Tree) Policy {
	f.created++
	return &modulePolicy{t: t, node: tree.None}
}

func TestGroupingPolicy(t *testing.T) {
	t.Run("policy overrides directory grouping", func(t *testing.T) {
		b := New(Options{Policy: &moduleFactory{}})
		tr, err := b.SetChanges([]shared.Change{
			change("/work/a/main.go"),
			change("/work/a/readme.md"),
		}, nil).Build()
		require.NoError(t, err)

		assert.Equal(t, 1, countText(tr, tr.Root(), "go sources"))
		assert.Equal(t, 1, countText(tr, tr.Root(), "main.go"))
		// The .md file still follows plain directory grouping.
		assert.Equal(t, 1, countText(tr, tr.Root(), "readme.md"))
	})

	t.Run("policy instantiated once per section", func(t *testing.T) {
		factory := &moduleFactory{}
		b := New(Options{Policy: factory})
		_, err := b.
			SetUnversioned([]shared.VirtualFile{file("/work/a.go")}, Counts{Files: 1}).
			SetLockedFolders([]shared.VirtualFile{file("/work/b.go")}).
			Build()
		require.NoError(t, err)
		assert.Equal(t, 2, factory.created)
	})
}

func TestSwitchedSections(t *testing.T) {
	b := New(Options{})
	tr, err := b.
		SetSwitchedFiles(map[string][]shared.VirtualFile{
			"release": {file("/work/s/r.txt")},
			"feature": {file("/work/s/f.txt")},
			"empty":   {},
		}).
		SetSwitchedRoots(map[shared.VirtualFile]string{
			{Path: "/work/mod", IsDir: true, Valid: true}: "hotfix",
		}).
		Build()
	require.NoError(t, err)

	roots := childTexts(tr, tr.Root())
	require.Equal(t, []string{TagSwitchedFiles, TagSwitchedRoots}, roots)

	switched := tr.Children(tr.Root())[0]
	assert.Equal(t, []string{"feature", "release"}, childTexts(tr, switched))

	switchedRoots := tr.Children(tr.Root())[1]
	require.Equal(t, 1, tr.ChildCount(switchedRoots))
	workDir := tr.Children(switchedRoots)[0]
	assert.Equal(t, "work", tr.Text(workDir))
	require.Equal(t, 1, tr.ChildCount(workDir))
	assert.Equal(t, "[hotfix] mod", tr.Text(tr.Children(workDir)[0]))
}

func TestLogicallyLockedSection(t *testing.T) {
	b := New(Options{})
	tr, err := b.SetLogicallyLocked(map[shared.VirtualFile]shared.LogicalLock{
		{Path: "/work/locked.txt", Valid: true}: {Owner: "alice", Local: false},
	}).Build()
	require.NoError(t, err)

	assert.Equal(t, 1, countText(tr, tr.Root(), TagLogicallyLocked))
	assert.Equal(t, 1, countKind(tr, tr.Root(), tree.KindLockedFile))
}

func TestLocallyDeletedDeduplicates(t *testing.T) {
	b := New(Options{})
	deleted := shared.LocallyDeletedChange{Path: shared.FilePath{Path: "/work/gone.txt"}}
	tr, err := b.SetLocallyDeleted([]shared.LocallyDeletedChange{deleted, deleted}).Build()
	require.NoError(t, err)

	assert.Equal(t, 1, countText(tr, tr.Root(), "gone.txt"))
}

func TestBuildModelFromFilePathsDeduplicates(t *testing.T) {
	b := New(Options{})
	tr, err := b.BuildModelFromFilePaths([]shared.FilePath{
		{Path: "/work/a/x.txt"},
		{Path: "/work/a/x.txt"},
		{Path: "/work/a/y.txt"},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, countText(tr, tr.Root(), "x.txt"))
	assert.Equal(t, 1, countText(tr, tr.Root(), "y.txt"))
}

func TestChangeListOrdering(t *testing.T) {
	b := New(Options{})
	tr, err := b.SetChangeLists([]shared.ChangeList{
		{Name: "zeta", Changes: []shared.Change{change("/work/z.txt")}},
		{Name: "Default", Default: true, Changes: []shared.Change{change("/work/d.txt")}},
		{Name: "alpha", Changes: []shared.Change{change("/work/a.txt")}},
	}).Build()
	require.NoError(t, err)

	// Default list first, then the rest by name.
	assert.Equal(t, []string{"Default", "alpha", "zeta"}, childTexts(tr, tr.Root()))
}

func TestInsertUnsupportedItem(t *testing.T) {
	b := New(Options{})
	tr := b.Tree()
	leaf := tr.NewNode(tree.Node{Kind: tree.KindFile, Value: file("/work/x.txt")})

	err := b.Insert(nil, tr.Root(), leaf)
	require.Error(t, err)
	assert.ErrorIs(t, err, pathkey.ErrUnsupportedItem)
}

func TestBuildReportsRecordedError(t *testing.T) {
	b := New(Options{})
	b.setErr(pathkey.ErrUnsupportedItem)

	b.SetChanges([]shared.Change{change("/work/skipped.txt")}, nil)
	tr, err := b.Build()
	assert.ErrorIs(t, err, pathkey.ErrUnsupportedItem)
	// Failed builds leave the partial tree as-is; callers rebuild from a
	// clean state.
	assert.Zero(t, tr.ChildCount(tr.Root()))
}

type recordingListener struct {
	inserted  int
	removed   int
	structure int
}

func (l *recordingListener) NodeInserted(tree.NodeID, int, tree.NodeID) { l.inserted++ }
func (l *recordingListener) NodeRemoved(tree.NodeID, int, tree.NodeID)  { l.removed++ }
func (l *recordingListener) StructureChanged(tree.NodeID)               { l.structure++ }

func TestBuildNotifiesStructureChanged(t *testing.T) {
	b := New(Options{})
	listener := &recordingListener{}
	b.Tree().AddListener(listener)

	_, err := b.SetChanges([]shared.Change{change("/work/a/b.txt")}, nil).Build()
	require.NoError(t, err)

	assert.Positive(t, listener.inserted)
	assert.Equal(t, 1, listener.structure)
}
