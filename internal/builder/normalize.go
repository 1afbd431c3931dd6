// internal/builder/normalize.go
package builder

import (
	"sort"
	"strings"

	"changeview/internal/tree"
	"changeview/shared/types"
)

// collapseDirectories removes redundant single-child directory chains: a
// path-group node whose only child is another non-leaf path node is spliced
// out and its child takes its sibling slot. Implemented as an explicit
// worklist; after a splice the parent is re-examined so longer chains keep
// collapsing upward.
func (b *Builder) collapseDirectories(root tree.NodeID) {
	t := b.tree
	stack := []tree.NodeID{root}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		n := t.Node(node)
		if n.Kind == tree.KindPath && n.Parent != tree.None && len(n.Children) == 1 {
			child := n.Children[0]
			if t.Node(child).Kind == tree.KindPath && !t.IsLeaf(child) {
				parent := n.Parent
				idx := t.RemoveFromParent(node)
				t.RemoveFromParent(child)
				t.InsertAt(child, parent, idx)
				stack = append(stack, parent)
				continue
			}
		}
		stack = append(stack, n.Children...)
	}
}

// sortSiblings orders every sibling list by sort weight, breaking ties by
// the variant's natural order when both siblings are the same kind and by
// display text otherwise. The sort is stable, then listeners are told the
// whole structure changed.
func (b *Builder) sortSiblings() {
	t := b.tree
	var walk func(id tree.NodeID)
	walk = func(id tree.NodeID) {
		children := t.Node(id).Children
		sort.SliceStable(children, func(i, j int) bool {
			return b.compareSiblings(children[i], children[j]) < 0
		})
		for _, c := range children {
			walk(c)
		}
	}
	walk(t.Root())
	t.StructureChanged(t.Root())
}

func (b *Builder) compareSiblings(x, y tree.NodeID) int {
	nx, ny := b.tree.Node(x), b.tree.Node(y)
	if d := nx.Weight - ny.Weight; d != 0 {
		return d
	}
	if nx.Kind == ny.Kind {
		if c := b.naturalCompare(x, y); c != 0 {
			return c
		}
	}
	return strings.Compare(b.tree.Text(x), b.tree.Text(y))
}

// naturalCompare orders two nodes of the same kind.
func (b *Builder) naturalCompare(x, y tree.NodeID) int {
	nx, ny := b.tree.Node(x), b.tree.Node(y)
	switch nx.Kind {
	case tree.KindChangelist:
		lx, ly := nx.Value.(shared.ChangeList), ny.Value.(shared.ChangeList)
		if lx.Default != ly.Default {
			if lx.Default {
				return -1
			}
			return 1
		}
		return strings.Compare(strings.ToLower(lx.Name), strings.ToLower(ly.Name))
	case tree.KindTag, tree.KindBranch:
		return strings.Compare(b.tree.Text(x), b.tree.Text(y))
	default:
		px, py := b.tree.PathOf(x), b.tree.PathOf(y)
		if c := strings.Compare(strings.ToLower(px), strings.ToLower(py)); c != 0 {
			return c
		}
		return strings.Compare(px, py)
	}
}
