package munindb

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/orneryd/munindb/pkg/graph"
)

// Attributed is the common surface of the three handle types (Node,
// Edge, Rule): a stable name plus attribute access. Rule hooks receive
// the changed object through this interface.
type Attributed interface {
	Name() string
	Get(attr string) (Value, bool)
	Set(attr string, value any) (Value, bool)
}

// WatchID identifies one registered watch callback.
type WatchID string

// WatchFunc observes one attribute of a node. It receives the node and
// the attribute's previous value; the new value is readable off the
// node itself.
type WatchFunc func(n *Node, prev Value)

// NewNeighborFunc observes new graph neighbors of a node.
type NewNeighborFunc func(neighbor *Node)

type watchEntry struct {
	id WatchID
	fn WatchFunc
}

// Node is a live handle onto one graph entity. Handles are cached per
// KB, so two lookups of the same name observe each other's watches.
// A node survives the deletion of the facts that created it; entities
// are never destroyed.
type Node struct {
	kb   *KB
	name string

	watches     map[string][]watchEntry
	newNeighbor NewNeighborFunc
}

// Node returns the handle for a stored entity. Looking up a name that
// was never stored fails with ErrUnknownEntity.
func (kb *KB) Node(name string) (*Node, error) {
	if n, ok := kb.nodes[name]; ok {
		return n, nil
	}
	if !kb.store.HasEntity(name) {
		return nil, ErrUnknownEntity
	}
	n := &Node{kb: kb, name: name, watches: make(map[string][]watchEntry)}
	kb.nodes[name] = n
	return n, nil
}

// MustNode is Node for entities known to exist; it panics on error.
func (kb *KB) MustNode(name string) *Node {
	n, err := kb.Node(name)
	if err != nil {
		panic(err)
	}
	return n
}

// Name returns the entity name.
func (n *Node) Name() string { return n.name }

func (n *Node) String() string { return n.name }

// Get reads one attribute. ok is false when the attribute is unset.
func (n *Node) Get(attr string) (Value, bool) {
	v, ok, err := n.kb.store.EntityAttr(n.name, attr)
	if err != nil {
		return Value{}, false
	}
	return v, ok
}

// Attrs returns a copy of the node's attribute bag.
func (n *Node) Attrs() Attrs {
	attrs, err := n.kb.store.EntityAttrs(n.name)
	if err != nil {
		return Attrs{}
	}
	return attrs
}

// Set writes one attribute through the propagation gate and returns
// the previous value. ok is false when the write was dropped by the
// recursion or propagation limit; a dropped write commits nothing and
// dispatches nothing.
//
// An admitted write commits immediately, then (unless suppressed)
// dispatches the attribute's watch callbacks and the on-change hooks
// of rules that reference one of this node's types. Dispatches run
// from a queue, so deep chains do not grow the call stack.
func (n *Node) Set(attr string, value any) (Value, bool) {
	kb := n.kb
	if !kb.budget.Admit("n\x00" + n.name) {
		kb.logger.Debug("write dropped by propagation budget",
			zap.String("node", n.name), zap.String("attr", attr))
		return Value{}, false
	}
	v := graph.FromAny(value)
	prev, err := kb.store.SetEntityAttr(n.name, attr, v)
	if err != nil {
		kb.logger.Warn("node write failed", zap.String("node", n.name), zap.Error(err))
		return Value{}, false
	}
	if !kb.budget.Suppressed() {
		kb.budget.Enqueue(func() { n.dispatch(attr, v, prev) })
	}
	kb.budget.Drain()
	return prev, true
}

// dispatch runs inside the drain loop: watch callbacks for the changed
// attribute in registration order, then the hooks of affected rules.
// The watch list is snapshotted so a callback that registers or
// removes watches does not disturb this round.
func (n *Node) dispatch(attr string, v, prev Value) {
	watchers := make([]watchEntry, len(n.watches[attr]))
	copy(watchers, n.watches[attr])
	for _, w := range watchers {
		w.fn(n, prev)
	}
	for _, r := range n.kb.rulesAffecting(n) {
		r.executeChange(n, attr, v, prev)
	}
}

// DeleteAttr removes one attribute without propagation.
func (n *Node) DeleteAttr(attr string) error {
	return n.kb.store.DeleteEntityAttr(n.name, attr)
}

// Watch registers fn on one attribute and returns its ID. Callbacks
// fire in registration order.
func (n *Node) Watch(attr string, fn WatchFunc) WatchID {
	id := WatchID(uuid.NewString())
	n.watches[attr] = append(n.watches[attr], watchEntry{id: id, fn: fn})
	return id
}

// RemoveWatch unregisters one watch by ID. Removing an unknown ID
// returns false.
func (n *Node) RemoveWatch(attr string, id WatchID) bool {
	list := n.watches[attr]
	for i, w := range list {
		if w.id == id {
			n.watches[attr] = append(list[:i], list[i+1:]...)
			return true
		}
	}
	return false
}

// WatchForNewNeighbor sets the node's new-neighbor callback. One slot:
// setting it again replaces the previous callback. The callback fires
// synchronously when a stored fact links a newly created entity to
// this node.
func (n *Node) WatchForNewNeighbor(fn NewNeighborFunc) {
	n.newNeighbor = fn
}

// Types returns the node's type atoms: every predicate p for which the
// fact p(name) is stored, in storage order.
func (n *Node) Types() []string {
	var out []string
	seen := make(map[string]bool)
	for _, r := range n.kb.rules {
		if r == nil || !r.clause.IsFact() {
			continue
		}
		h := r.clause.Head
		if len(h.Args) == 1 && h.Args[0].String() == n.name && !seen[h.Pred] {
			seen[h.Pred] = true
			out = append(out, h.Pred)
		}
	}
	return out
}

// Neighbors returns the node's forward adjacency.
func (n *Node) Neighbors() []graph.Neighbor { return n.kb.store.Neighbors(n.name) }

// Predecessors returns the node's reverse adjacency.
func (n *Node) Predecessors() []graph.Neighbor { return n.kb.store.Predecessors(n.name) }

// Rules returns the rules whose goals reference one of the node's
// types; their hooks fire when this node's attributes change.
func (n *Node) Rules() []*Rule { return n.kb.rulesAffecting(n) }

// rulesAffecting matches a node to rules by type atoms: a rule is
// affected when any goal predicate equals one of the node's type
// predicates.
func (kb *KB) rulesAffecting(n *Node) []*Rule {
	types := n.Types()
	if len(types) == 0 {
		return nil
	}
	typeSet := make(map[string]bool, len(types))
	for _, t := range types {
		typeSet[t] = true
	}
	var out []*Rule
	for _, r := range kb.rules {
		if r == nil || r.clause.IsFact() {
			continue
		}
		for _, goal := range r.clause.Goals {
			if typeSet[goal.Pred] {
				out = append(out, r)
				break
			}
		}
	}
	return out
}

// Nodes returns handles for every entity, in insertion order, that
// passes the filter. A nil filter passes everything.
func (kb *KB) Nodes(filter func(*Node) bool) []*Node {
	var out []*Node
	for _, name := range kb.store.Entities() {
		n, err := kb.Node(name)
		if err != nil {
			continue
		}
		if filter == nil || filter(n) {
			out = append(out, n)
		}
	}
	return out
}

// Filter returns the names of the entities the condition accepts, in
// insertion order.
//
// Example:
//
//	rich := kb.Filter(func(n *munindb.Node) bool {
//		v, ok := n.Get("grains")
//		if !ok {
//			return false
//		}
//		f, _ := v.Float()
//		return f > 4
//	})
func (kb *KB) Filter(cond func(*Node) bool) []string {
	nodes := kb.Nodes(cond)
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.Name()
	}
	return out
}
