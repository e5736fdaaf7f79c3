package munindb

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/orneryd/munindb/pkg/graph"
)

// EdgeWatchFunc observes one attribute of an edge.
type EdgeWatchFunc func(e *Edge, prev Value)

type edgeWatchEntry struct {
	id WatchID
	fn EdgeWatchFunc
}

// Edge is a live handle onto one relation. Like nodes, edge handles
// are cached per KB so watches registered through one lookup fire for
// writes made through another.
type Edge struct {
	kb     *KB
	triple graph.Triple

	watches map[string][]edgeWatchEntry
}

// Edge returns the handle for a stored relation. Looking up a triple
// that was never stored fails with ErrUnknownRelation.
func (kb *KB) Edge(sub, pred, ob string) (*Edge, error) {
	t := graph.Triple{Subject: sub, Predicate: pred, Object: ob}
	if e, ok := kb.edges[t]; ok {
		return e, nil
	}
	if !kb.store.HasRelation(sub, pred, ob) {
		return nil, ErrUnknownRelation
	}
	e := &Edge{kb: kb, triple: t, watches: make(map[string][]edgeWatchEntry)}
	kb.edges[t] = e
	return e, nil
}

// MustEdge is Edge for relations known to exist; it panics on error.
func (kb *KB) MustEdge(sub, pred, ob string) *Edge {
	e, err := kb.Edge(sub, pred, ob)
	if err != nil {
		panic(err)
	}
	return e
}

// Name identifies the edge as subject___predicate___object.
func (e *Edge) Name() string {
	return e.triple.Subject + "___" + e.triple.Predicate + "___" + e.triple.Object
}

func (e *Edge) String() string { return e.Name() }

// Subject returns the edge's source entity name.
func (e *Edge) Subject() string { return e.triple.Subject }

// Predicate returns the edge's relation name.
func (e *Edge) Predicate() string { return e.triple.Predicate }

// Object returns the edge's destination entity name.
func (e *Edge) Object() string { return e.triple.Object }

// Nodes returns handles for the edge's endpoints.
func (e *Edge) Nodes() (sub, ob *Node, err error) {
	sub, err = e.kb.Node(e.triple.Subject)
	if err != nil {
		return nil, nil, err
	}
	ob, err = e.kb.Node(e.triple.Object)
	if err != nil {
		return nil, nil, err
	}
	return sub, ob, nil
}

// Get reads one attribute. ok is false when the attribute is unset.
func (e *Edge) Get(attr string) (Value, bool) {
	v, ok, err := e.kb.store.RelationAttr(e.triple, attr)
	if err != nil {
		return Value{}, false
	}
	return v, ok
}

// Attrs returns a copy of the edge's attribute bag.
func (e *Edge) Attrs() Attrs {
	attrs, err := e.kb.store.RelationAttrs(e.triple)
	if err != nil {
		return Attrs{}
	}
	return attrs
}

// Set writes one attribute through the propagation gate and returns
// the previous value; ok is false when the write was dropped by a
// limit. Edges are budgeted like entities, keyed by their triple, and
// an admitted write dispatches the attribute's watch callbacks.
func (e *Edge) Set(attr string, value any) (Value, bool) {
	kb := e.kb
	key := "e\x00" + e.triple.Subject + "\x00" + e.triple.Predicate + "\x00" + e.triple.Object
	if !kb.budget.Admit(key) {
		kb.logger.Debug("write dropped by propagation budget",
			zap.String("edge", e.Name()), zap.String("attr", attr))
		return Value{}, false
	}
	v := graph.FromAny(value)
	prev, err := kb.store.SetRelationAttr(e.triple, attr, v)
	if err != nil {
		kb.logger.Warn("edge write failed", zap.String("edge", e.Name()), zap.Error(err))
		return Value{}, false
	}
	if !kb.budget.Suppressed() {
		kb.budget.Enqueue(func() { e.dispatch(attr, prev) })
	}
	kb.budget.Drain()
	return prev, true
}

func (e *Edge) dispatch(attr string, prev Value) {
	watchers := make([]edgeWatchEntry, len(e.watches[attr]))
	copy(watchers, e.watches[attr])
	for _, w := range watchers {
		w.fn(e, prev)
	}
}

// DeleteAttr removes one attribute without propagation.
func (e *Edge) DeleteAttr(attr string) error {
	return e.kb.store.DeleteRelationAttr(e.triple, attr)
}

// Watch registers fn on one attribute and returns its ID.
func (e *Edge) Watch(attr string, fn EdgeWatchFunc) WatchID {
	id := WatchID(uuid.NewString())
	e.watches[attr] = append(e.watches[attr], edgeWatchEntry{id: id, fn: fn})
	return id
}

// RemoveWatch unregisters one watch by ID.
func (e *Edge) RemoveWatch(attr string, id WatchID) bool {
	list := e.watches[attr]
	for i, w := range list {
		if w.id == id {
			e.watches[attr] = append(list[:i], list[i+1:]...)
			return true
		}
	}
	return false
}

// Edges returns handles for every relation, in insertion order.
func (kb *KB) Edges() []*Edge {
	triples := kb.store.Relations()
	out := make([]*Edge, 0, len(triples))
	for _, t := range triples {
		e, err := kb.Edge(t.Subject, t.Predicate, t.Object)
		if err != nil {
			continue
		}
		out = append(out, e)
	}
	return out
}
