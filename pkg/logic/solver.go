package logic

import (
	"iter"
	"math"
)

// rootPred names the synthetic clause that wraps a query. It can never
// collide with stored predicates because it is only ever matched by
// pointer identity with the queue's root goal.
const rootPred = "__query__"

// goalNode is one search-frontier entry: the clause being proved, a
// cursor into its goal list, its own variable environment, and the
// goal that spawned it.
type goalNode struct {
	clause   *Clause
	cursor   int
	bindings Bindings
	parent   *goalNode
}

// MaxIterations returns the search bound for a program of n clauses:
// max(100, (n+1)^1.5). Deeply recursive rule sets end the answer
// sequence when the bound is hit; running out of budget is not an
// error.
func MaxIterations(n int) int {
	bound := math.Pow(float64(n+1), 1.5)
	if bound < 100 {
		return 100
	}
	return int(bound)
}

// Solve answers query against the clause list using breadth-first SLD
// resolution. It returns a lazy sequence of environments, one per
// proof of the query; a ground proof yields an empty environment.
// Ranging the sequence again restarts the search from scratch.
//
// The search is an explicit FIFO work queue, never native recursion,
// and stops after MaxIterations(len(clauses)) queue pops.
//
// Example:
//
//	q, _ := logic.ParseQuery("knows(X, Y)")
//	for env := range logic.Solve(q, clauses) {
//		fmt.Println(env["X"], env["Y"])
//	}
func Solve(query *Term, clauses []*Clause) iter.Seq[Bindings] {
	return func(yield func(Bindings) bool) {
		root := &goalNode{
			clause:   &Clause{Head: Atom(rootPred), Goals: []*Term{query}},
			bindings: Bindings{},
		}
		queue := []*goalNode{root}
		budget := MaxIterations(len(clauses))
		for len(queue) > 0 && budget > 0 {
			budget--
			g := queue[0]
			queue = queue[1:]
			if g.cursor >= len(g.clause.Goals) {
				if g.parent == nil {
					if !yield(g.bindings.Clone()) {
						return
					}
					continue
				}
				// Propagate the proved head into the parent's current
				// goal. The parent is copied so sibling proofs keep
				// their own view of its environment.
				parent := &goalNode{
					clause:   g.parent.clause,
					cursor:   g.parent.cursor,
					bindings: g.parent.bindings.Clone(),
					parent:   g.parent.parent,
				}
				Unify(g.clause.Head, g.bindings, parent.clause.Goals[parent.cursor], parent.bindings)
				parent.cursor++
				queue = append(queue, parent)
				continue
			}
			goal := g.clause.Goals[g.cursor]
			for _, c := range clauses {
				if c == nil || c.Head.Pred != goal.Pred || len(c.Head.Args) != len(goal.Args) {
					continue
				}
				child := &goalNode{clause: c, bindings: Bindings{}, parent: g}
				if Unify(goal, g.bindings, c.Head, child.bindings) {
					queue = append(queue, child)
				}
			}
		}
	}
}
