// internal/tree/tree.go
package tree

import (
	"path"

	"changeview/shared/types"
)

// NodeID addresses a node inside a Tree's arena. Parent/child edges are
// stored as IDs so re-parenting during normalization is an index rewrite,
// never a dangling pointer.
type NodeID int

// None is the null node reference.
const None NodeID = -1

// Kind tags the closed set of node variants.
type Kind int

const (
	KindRoot Kind = iota
	KindChangelist
	KindTag
	KindModule
	KindBranch
	KindPath
	KindSwitchedRoot
	KindChange
	KindFile
	KindLocallyDeleted
	KindLockedFile
)

// SortWeight returns the fixed ordering weight for a node kind. Group kinds
// sort before leaf kinds; siblings with equal weight fall back to natural
// ordering.
func (k Kind) SortWeight() int {
	switch k {
	case KindRoot:
		return 0
	case KindChangelist:
		return 1
	case KindTag:
		return 2
	case KindModule:
		return 3
	case KindBranch:
		return 4
	case KindPath:
		return 5
	case KindSwitchedRoot:
		return 6
	case KindChange:
		return 7
	case KindFile:
		return 8
	case KindLocallyDeleted:
		return 9
	case KindLockedFile:
		return 10
	default:
		return 11
	}
}

// Decorator annotates a change leaf with extra presentation text.
type Decorator interface {
	// Prefix is prepended to the node's display text.
	Prefix(change shared.Change) string
}

// Node is one tree entry. Value holds the user object for the kind:
// string for tags and branches, shared.FilePath for path groups and path
// leaves, shared.Change, shared.VirtualFile, shared.LocallyDeletedChange,
// shared.LogicallyLockedFile, shared.SwitchedRoot, shared.ChangeList.
type Node struct {
	Kind     Kind
	Parent   NodeID
	Children []NodeID
	Weight   int
	Value    any

	Decorator Decorator

	// Summary state for oversized sections.
	FileCount int
	DirCount  int
	ManyFiles bool
	Updating  bool
}

// Listener receives tree-widget update notifications.
type Listener interface {
	NodeInserted(parent NodeID, index int, node NodeID)
	NodeRemoved(parent NodeID, index int, node NodeID)
	StructureChanged(node NodeID)
}

// Tree owns all nodes reachable from its root. It doubles as the display
// model: structural mutations notify registered listeners the way a tree
// widget expects.
type Tree struct {
	nodes     []Node
	root      NodeID
	listeners []Listener
}

// New creates a tree holding only the root node.
func New() *Tree {
	t := &Tree{root: None}
	t.root = t.NewNode(Node{Kind: KindRoot, Value: "root"})
	return t
}

// Root returns the root node ID.
func (t *Tree) Root() NodeID { return t.root }

// Node returns a mutable reference to the node. The reference is only valid
// until the next NewNode call.
func (t *Tree) Node(id NodeID) *Node { return &t.nodes[id] }

// NewNode appends a detached node to the arena and returns its ID. The
// weight is always the kind's fixed sort weight; callers needing a custom
// order, including an explicit weight of zero, set it through Node
// afterwards.
func (t *Tree) NewNode(n Node) NodeID {
	n.Parent = None
	n.Weight = n.Kind.SortWeight()
	t.nodes = append(t.nodes, n)
	return NodeID(len(t.nodes) - 1)
}

// AddListener registers a widget listener.
func (t *Tree) AddListener(l Listener) {
	t.listeners = append(t.listeners, l)
}

// Insert appends node as the last child of parent.
func (t *Tree) Insert(node, parent NodeID) {
	t.InsertAt(node, parent, len(t.nodes[parent].Children))
}

// InsertAt places node under parent at the given sibling index.
func (t *Tree) InsertAt(node, parent NodeID, index int) {
	p := &t.nodes[parent]
	p.Children = append(p.Children, None)
	copy(p.Children[index+1:], p.Children[index:])
	p.Children[index] = node
	t.nodes[node].Parent = parent
	for _, l := range t.listeners {
		l.NodeInserted(parent, index, node)
	}
}

// RemoveFromParent detaches node from its parent and returns the sibling
// index it occupied, or -1 if it was not attached.
func (t *Tree) RemoveFromParent(node NodeID) int {
	parent := t.nodes[node].Parent
	if parent == None {
		return -1
	}
	p := &t.nodes[parent]
	for i, c := range p.Children {
		if c == node {
			p.Children = append(p.Children[:i], p.Children[i+1:]...)
			t.nodes[node].Parent = None
			for _, l := range t.listeners {
				l.NodeRemoved(parent, i, node)
			}
			return i
		}
	}
	return -1
}

// DetachChildren removes every child of node. Detached subtrees stay in the
// arena but are no longer reachable from the root.
func (t *Tree) DetachChildren(node NodeID) {
	for len(t.nodes[node].Children) > 0 {
		t.RemoveFromParent(t.nodes[node].Children[0])
	}
}

// StructureChanged tells listeners the whole subtree under node changed.
func (t *Tree) StructureChanged(node NodeID) {
	for _, l := range t.listeners {
		l.StructureChanged(node)
	}
}

// ChildCount returns the number of children of node.
func (t *Tree) ChildCount(node NodeID) int {
	return len(t.nodes[node].Children)
}

// Children returns the child IDs of node in their current order.
func (t *Tree) Children(node NodeID) []NodeID {
	return t.nodes[node].Children
}

// IsLeaf reports whether node has no children.
func (t *Tree) IsLeaf(node NodeID) bool {
	return len(t.nodes[node].Children) == 0
}

// Text returns the node's display string.
func (t *Tree) Text(id NodeID) string {
	n := &t.nodes[id]
	switch v := n.Value.(type) {
	case string:
		return v
	case shared.FilePath:
		return path.Base(v.Path)
	case shared.VirtualFile:
		return path.Base(v.Path)
	case shared.Change:
		fp := v.FilePath()
		text := path.Base(fp.Path)
		if n.Decorator != nil {
			text = n.Decorator.Prefix(v) + text
		}
		return text
	case shared.LocallyDeletedChange:
		return path.Base(v.Path.Path)
	case shared.LogicallyLockedFile:
		return path.Base(v.File.Path)
	case shared.SwitchedRoot:
		return "[" + v.Branch + "] " + path.Base(v.Root.Path)
	case shared.ChangeList:
		return v.Name
	default:
		return ""
	}
}

// PathOf returns the full path a node represents, or "" for non-path nodes.
// Used for natural ordering among siblings of the same kind.
func (t *Tree) PathOf(id NodeID) string {
	switch v := t.nodes[id].Value.(type) {
	case shared.FilePath:
		return v.Path
	case shared.VirtualFile:
		return v.Path
	case shared.Change:
		return v.FilePath().Path
	case shared.LocallyDeletedChange:
		return v.Path.Path
	case shared.LogicallyLockedFile:
		return v.File.Path
	case shared.SwitchedRoot:
		return v.Root.Path
	default:
		return ""
	}
}
