package thread

import "github.com/nao1215/ebcrawl/internal/model"

// Node is one comment in a rebuilt thread.
type Node struct {
	Comment  model.FlatComment
	Parent   *Node
	Children []*Node
}

// Forest is the set of comment trees of one post.
type Forest struct {
	Roots []*Node
	// Adopted lists ids of comments whose parent could not be resolved to an
	// earlier comment and which were attached as roots instead.
	Adopted []int64
	size    int
}

// Len returns the number of comments in the forest.
func (f *Forest) Len() int {
	return f.size
}

// Build rebuilds the comment forest from a flat list in document order.
//
// A comment with ParentID zero is a root. A comment whose parent is missing,
// is itself, or appears later in the document is also made a root and
// recorded in Adopted. Children keep their document order. When an id occurs
// more than once, replies attach to its first occurrence.
func Build(flat []model.FlatComment) *Forest {
	f := &Forest{size: len(flat)}

	nodes := make([]*Node, len(flat))
	position := make(map[int64]int, len(flat))
	for i, c := range flat {
		nodes[i] = &Node{Comment: c}
		if _, dup := position[c.ID]; !dup {
			position[c.ID] = i
		}
	}

	for i, n := range nodes {
		pid := n.Comment.ParentID
		if pid == 0 {
			f.Roots = append(f.Roots, n)
			continue
		}
		at, ok := position[pid]
		if !ok || at >= i {
			f.Roots = append(f.Roots, n)
			f.Adopted = append(f.Adopted, n.Comment.ID)
			continue
		}
		parent := nodes[at]
		n.Parent = parent
		parent.Children = append(parent.Children, n)
	}
	return f
}

// Walk visits every node depth-first, parents before children, roots and
// siblings in document order. depth is 0 for roots. Returning false stops the walk.
func (f *Forest) Walk(fn func(n *Node, depth int) bool) {
	type frame struct {
		node  *Node
		depth int
	}

	stack := make([]frame, 0, len(f.Roots))
	for i := len(f.Roots) - 1; i >= 0; i-- {
		stack = append(stack, frame{f.Roots[i], 0})
	}

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !fn(top.node, top.depth) {
			return
		}
		for i := len(top.node.Children) - 1; i >= 0; i-- {
			stack = append(stack, frame{top.node.Children[i], top.depth + 1})
		}
	}
}

// Records flattens the forest into storable records in depth-first order.
// Each record's Parent is the index of its parent record, so the site's
// numeric ids are not needed to persist the thread.
func (f *Forest) Records() []model.CommentRecord {
	out := make([]model.CommentRecord, 0, f.size)
	index := make(map[*Node]int, f.size)

	f.Walk(func(n *Node, _ int) bool {
		parent := model.NoParent
		if n.Parent != nil {
			parent = index[n.Parent]
		}
		index[n] = len(out)
		out = append(out, model.CommentRecord{
			Parent:    parent,
			Author:    n.Comment.Author,
			Published: n.Comment.Published,
			Content:   n.Comment.Content,
		})
		return true
	})
	return out
}
