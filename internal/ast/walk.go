package ast

// Walk traverses the tree rooted at n in depth-first pre-order, calling fn
// for every node. If fn returns false the children of that node are skipped.
// The walk visits every branch unconditionally; it performs no evaluation and
// no short-circuiting.
func Walk(n Node, fn func(Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	switch e := n.(type) {
	case *BinaryExpr:
		Walk(e.X, fn)
		Walk(e.Y, fn)
	case *UnaryExpr:
		Walk(e.X, fn)
	case *CallExpr:
		for _, arg := range e.Args {
			Walk(arg, fn)
		}
	}
}
