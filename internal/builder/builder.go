// internal/builder/builder.go
package builder

import (
	"changeview/internal/pathkey"
	"changeview/internal/tree"
	"changeview/shared/types"

	"go.uber.org/zap"
)

// ManyFilesThreshold is the default number of files above which a section
// is shown as a single summary node instead of individual leaves.
const ManyFilesThreshold = 50

// Group node labels for the named sections.
const (
	TagUnversioned            = "Unversioned Files"
	TagIgnored                = "Ignored Files"
	TagModifiedWithoutEditing = "Modified Without Editing"
	TagSwitchedRoots          = "Switched Roots"
	TagSwitchedFiles          = "Switched Files"
	TagLockedFolders          = "Locked Folders"
	TagLogicallyLocked        = "Logically Locked"
	TagLocallyDeleted         = "Locally Deleted Files"
)

// Policy overrides default directory-based parent resolution for a key.
// Returning tree.None falls back to the directory walk.
type Policy interface {
	ParentFor(key pathkey.PathKey, sectionRoot tree.NodeID) tree.NodeID
}

// PolicyFactory creates a grouping policy bound to one tree. A nil factory
// means plain directory grouping.
type PolicyFactory interface {
	NewPolicy(t *tree.Tree) Policy
}

// Options configures a Builder.
type Options struct {
	// Flatten disables hierarchical grouping: every leaf attaches directly
	// to its section root.
	Flatten bool
	// Policy is the optional grouping policy factory.
	Policy PolicyFactory
	// Threshold overrides ManyFilesThreshold when > 0.
	Threshold int
	Logger    *zap.Logger
}

// session holds the state that is valid for exactly one build section: the
// directory-node cache and the lazily created grouping policy. A new section
// gets a fresh session, so path collisions across sections never merge
// nodes and a policy cannot leak cached tree state between sections.
type session struct {
	cache      map[string]tree.NodeID
	policy     Policy
	policyInit bool
}

// Builder incrementally constructs the changes tree from heterogeneous
// change collections, then normalizes it into the final display model.
// It is not safe for concurrent use; callers serialize access externally.
type Builder struct {
	tree      *tree.Tree
	flatten   bool
	factory   PolicyFactory
	threshold int
	logger    *zap.Logger

	sess *session
	err  error
}

// New creates a builder around a fresh single-root tree.
func New(opts Options) *Builder {
	if opts.Threshold <= 0 {
		opts.Threshold = ManyFilesThreshold
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	b := &Builder{
		tree:      tree.New(),
		flatten:   opts.Flatten,
		factory:   opts.Policy,
		threshold: opts.Threshold,
		logger:    opts.Logger,
	}
	b.resetGrouping()
	return b
}

// NewEmptyModel returns a tree holding only a root, for widgets that need
// a model before the first build.
func NewEmptyModel() *tree.Tree {
	return tree.New()
}

// Tree exposes the model under construction.
func (b *Builder) Tree() *tree.Tree { return b.tree }

// Err returns the first error encountered while building, if any.
func (b *Builder) Err() error { return b.err }

// resetGrouping starts a new section: fresh directory cache, policy
// recreated on first use.
func (b *Builder) resetGrouping() {
	b.sess = &session{cache: make(map[string]tree.NodeID)}
}

// groupingPolicy lazily instantiates the policy once per section.
func (b *Builder) groupingPolicy() Policy {
	s := b.sess
	if !s.policyInit {
		s.policyInit = true
		if b.factory != nil {
			s.policy = b.factory.NewPolicy(b.tree)
		}
	}
	return s.policy
}

// Insert places a prebuilt leaf under the parent resolved for the item's
// path key. Directory items are cached as group nodes so later, deeper
// items in the same section attach beneath them.
func (b *Builder) Insert(item shared.Item, sectionRoot, leaf tree.NodeID) error {
	key, err := pathkey.From(item)
	if err != nil {
		return err
	}
	parent := b.resolveParent(key, sectionRoot)
	b.tree.Insert(leaf, parent)

	if key.IsDir() {
		b.sess.cache[key.Key()] = leaf
	}
	return nil
}

// resolveParent finds or creates the node an item with this key hangs
// under. Recursion terminates because Parent() strictly shortens the path
// until it reports no parent.
func (b *Builder) resolveParent(key pathkey.PathKey, sectionRoot tree.NodeID) tree.NodeID {
	if b.flatten {
		return sectionRoot
	}

	if policy := b.groupingPolicy(); policy != nil {
		if n := policy.ParentFor(key, sectionRoot); n != tree.None {
			return n
		}
	}

	parentKey, ok := key.Parent()
	if !ok {
		return sectionRoot
	}

	if n, ok := b.sess.cache[parentKey.Key()]; ok {
		return n
	}

	grandparent := b.resolveParent(parentKey, sectionRoot)
	parent := b.tree.NewNode(tree.Node{Kind: tree.KindPath, Value: parentKey.FilePath()})
	b.tree.Insert(parent, grandparent)
	b.sess.cache[parentKey.Key()] = parent
	return parent
}

// setErr records the first failure. Later sections are skipped: a failed
// build leaves a partial tree and callers rebuild from a clean state.
func (b *Builder) setErr(err error) {
	if b.err == nil {
		b.err = err
	}
}

// Build finalizes the model: collapses single-child directory chains,
// sorts every sibling list, and notifies listeners that the structure
// changed.
func (b *Builder) Build() (*tree.Tree, error) {
	if b.err != nil {
		return b.tree, b.err
	}
	b.collapseDirectories(b.tree.Root())
	b.sortSiblings()
	b.logger.Debug("built changes tree",
		zap.Int("top_level_nodes", b.tree.ChildCount(b.tree.Root())))
	return b.tree, nil
}

// ClearAndGetModel detaches everything from the root and returns the empty
// model. Grouping state is reset alongside.
func (b *Builder) ClearAndGetModel() *tree.Tree {
	b.tree.DetachChildren(b.tree.Root())
	b.resetGrouping()
	b.err = nil
	return b.tree
}

// IsEmpty reports whether the root has no children.
func (b *Builder) IsEmpty() bool {
	return b.tree.ChildCount(b.tree.Root()) == 0
}
