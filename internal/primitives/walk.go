package primitives

// Walk traverses the tree rooted at root depth first.
//
// pre is called on a node before its children are requested, so it may
// create whatever children returns. post is called once every descendant has
// been posted, which makes post-order lifecycle hooks explicit: the deepest
// nodes finish first and root finishes last. Either callback may be nil.
func Walk[N any](root N, children func(N) []N, pre, post func(N)) {
	if pre != nil {
		pre(root)
	}
	if children != nil {
		for _, child := range children(root) {
			Walk(child, children, pre, post)
		}
	}
	if post != nil {
		post(root)
	}
}

// PreOrder returns the nodes of the tree rooted at root in pre-order.
func PreOrder[N any](root N, children func(N) []N) []N {
	var out []N
	Walk(root, children, func(n N) { out = append(out, n) }, nil)
	return out
}
