package munindb

import (
	"strconv"

	"go.uber.org/zap"

	"github.com/orneryd/munindb/pkg/graph"
	"github.com/orneryd/munindb/pkg/logic"
)

// ChangeHook reacts to attribute changes on the nodes a rule binds, or
// on the rule itself. It receives the rule, the nodes currently bound
// by the rule's head, the object that changed, and the change.
type ChangeHook func(r *Rule, affected []*Node, changed Attributed, attr string, value, prev Value)

// Rule is a live handle onto one stored statement, fact or inference
// rule. Rules carry their own attribute bag, separate from the graph,
// and an optional on-change hook.
type Rule struct {
	kb     *KB
	index  int
	clause *logic.Clause

	attrs     Attrs
	onChange  ChangeHook
	executing bool
}

// Rule returns the handle for a stored statement by ID. Negative
// example IDs and deleted or unknown indexes fail with ErrUnknownRule.
func (kb *KB) Rule(id RuleID) (*Rule, error) {
	n, ok := id.Index()
	if !ok || n < 0 || n >= len(kb.rules) || kb.rules[n] == nil {
		return nil, ErrUnknownRule
	}
	return kb.rules[n], nil
}

// RuleByHead returns the first live rule whose head prints as head,
// e.g. "outfit(X, Y)".
func (kb *KB) RuleByHead(head string) (*Rule, error) {
	want, err := logic.ParseQuery(head)
	if err != nil {
		return nil, err
	}
	for _, r := range kb.rules {
		if r != nil && r.clause.Head.Equal(want) {
			return r, nil
		}
	}
	return nil, ErrUnknownRule
}

// Rules returns every live rule in storage order.
func (kb *KB) Rules() []*Rule {
	var out []*Rule
	for _, r := range kb.rules {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

// ID returns the rule's stable storage ID.
func (r *Rule) ID() RuleID { return RuleID(strconv.Itoa(r.index)) }

// Name returns the rule's head, e.g. "outfit(X, Y)".
func (r *Rule) Name() string { return r.clause.Head.String() }

// String returns the full statement text.
func (r *Rule) String() string {
	if r.clause.IsFact() {
		return r.clause.Head.String()
	}
	s := r.clause.Head.String() + " :- "
	for i, g := range r.clause.Goals {
		if i > 0 {
			s += ", "
		}
		s += g.String()
	}
	return s
}

// IsFact reports whether the statement has no body.
func (r *Rule) IsFact() bool { return r.clause.IsFact() }

// OnChange registers the rule's hook. One slot: registering again
// replaces the previous hook; nil clears it.
func (r *Rule) OnChange(hook ChangeHook) { r.onChange = hook }

// Get reads one rule attribute.
func (r *Rule) Get(attr string) (Value, bool) {
	v, ok := r.attrs[attr]
	return v, ok
}

// Set writes one rule attribute and returns the previous value. The
// first write to an attribute only seeds it; once a previous value
// exists, a registered hook runs before the new value commits, inside
// a suppressed-propagation scope, so the hook observes the old state
// and its own writes do not cascade. A hook that sets rule attributes
// does not re-trigger itself.
func (r *Rule) Set(attr string, value any) (Value, bool) {
	v := graph.FromAny(value)
	prev, existed := r.attrs[attr]
	if r.onChange != nil && existed && !r.executing {
		r.executing = true
		func() {
			defer func() { r.executing = false }()
			defer r.kb.budget.Suppress()()
			r.onChange(r, r.AffectedNodes(), r, attr, v, prev)
		}()
	}
	r.attrs[attr] = v
	return prev, true
}

// executeChange fires the hook for a change elsewhere (a node or edge
// the rule covers). The guard stops a hook whose writes loop back into
// the same rule.
func (r *Rule) executeChange(changed Attributed, attr string, value, prev Value) bool {
	if r.onChange == nil || r.executing {
		return false
	}
	r.executing = true
	defer func() { r.executing = false }()
	r.onChange(r, r.AffectedNodes(), changed, attr, value, prev)
	return true
}

// AffectedNodes resolves the rule's head against the current knowledge
// base and returns the nodes bound by the first answer, in
// head-argument order. A ground head yields its own argument entities.
func (r *Rule) AffectedNodes() []*Node {
	var out []*Node
	seen := make(map[string]bool)
	add := func(name string) {
		if seen[name] {
			return
		}
		seen[name] = true
		n, err := r.kb.Node(name)
		if err != nil {
			return
		}
		out = append(out, n)
	}
	for env := range r.kb.queryTerm(r.clause.Head) {
		for _, arg := range r.clause.Head.Args {
			if !arg.IsVariable() {
				add(arg.String())
				continue
			}
			if bound := logic.Resolve(arg, env); bound != nil {
				add(bound.String())
			}
		}
		break
	}
	if len(out) == 0 {
		r.kb.logger.Debug("rule binds no nodes", zap.String("rule", r.Name()))
	}
	return out
}
