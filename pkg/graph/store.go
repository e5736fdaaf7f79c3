// Package graph implements the attributed directed multigraph that
// backs a MuninDB knowledge base: entities keyed by name, relations
// keyed by (subject, predicate, object), and per-entity / per-relation
// attribute bags with typed values.
//
// The store is passive. It never invokes callbacks and knows nothing
// about rules or propagation; the reactive layer lives in pkg/munindb.
// All operations are guarded by an RWMutex so read-only consumers
// (export, visualization mirrors) can snapshot between mutations.
//
// Example:
//
//	s := graph.NewStore()
//	s.AddRelation("tom", "knows", "shamala")
//	for _, n := range s.Neighbors("tom") {
//		fmt.Println(n.Name, n.Predicates) // shamala [knows]
//	}
package graph

import (
	"errors"
	"sync"
)

var (
	// ErrUnknownEntity reports an attribute operation on a name that
	// was never stored.
	ErrUnknownEntity = errors.New("unknown entity")

	// ErrUnknownRelation reports an attribute operation on a
	// (subject, predicate, object) triple that was never stored.
	ErrUnknownRelation = errors.New("unknown relation")
)

// Triple identifies one relation instance.
type Triple struct {
	Subject   string
	Predicate string
	Object    string
}

// Neighbor is one adjacency entry: the neighboring entity plus every
// predicate connecting it to the queried entity.
type Neighbor struct {
	Name       string
	Predicates []string
}

type entityRec struct {
	attrs Attrs
}

type relationRec struct {
	triple Triple
	attrs  Attrs
}

// Store is the attributed directed multigraph. Entities are created
// implicitly and never destroyed; at most one relation exists per
// (subject, predicate, object) triple, while distinct predicates
// between the same pair coexist.
type Store struct {
	mu sync.RWMutex

	entities    map[string]*entityRec
	entityOrder []string

	relations map[Triple]*relationRec
	relOrder  []Triple
	outgoing  map[string][]Triple
	incoming  map[string][]Triple
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		entities:  make(map[string]*entityRec),
		relations: make(map[Triple]*relationRec),
		outgoing:  make(map[string][]Triple),
		incoming:  make(map[string][]Triple),
	}
}

// AddEntity creates the entity if needed and reports whether it was
// newly created. Re-adding an existing entity is a no-op.
func (s *Store) AddEntity(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addEntityLocked(name)
}

func (s *Store) addEntityLocked(name string) bool {
	if _, ok := s.entities[name]; ok {
		return false
	}
	s.entities[name] = &entityRec{attrs: Attrs{}}
	s.entityOrder = append(s.entityOrder, name)
	return true
}

// HasEntity reports whether name has been stored.
func (s *Store) HasEntity(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entities[name]
	return ok
}

// Entities returns all entity names in insertion order.
func (s *Store) Entities() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.entityOrder))
	copy(out, s.entityOrder)
	return out
}

// EntityCount returns the number of stored entities.
func (s *Store) EntityCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entities)
}

// AddRelation creates the (sub, pred, ob) relation, creating missing
// endpoint entities on the way, and reports whether the relation was
// newly created. A duplicate triple leaves the existing record (and
// its attributes) untouched.
func (s *Store) AddRelation(sub, pred, ob string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addEntityLocked(sub)
	s.addEntityLocked(ob)
	t := Triple{Subject: sub, Predicate: pred, Object: ob}
	if _, ok := s.relations[t]; ok {
		return false
	}
	s.relations[t] = &relationRec{triple: t, attrs: Attrs{}}
	s.relOrder = append(s.relOrder, t)
	s.outgoing[sub] = append(s.outgoing[sub], t)
	s.incoming[ob] = append(s.incoming[ob], t)
	return true
}

// HasRelation reports whether the exact triple exists.
func (s *Store) HasRelation(sub, pred, ob string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.relations[Triple{Subject: sub, Predicate: pred, Object: ob}]
	return ok
}

// RemoveRelation deletes the triple and reports whether it existed.
// Removing a missing relation is a no-op returning false.
func (s *Store) RemoveRelation(sub, pred, ob string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := Triple{Subject: sub, Predicate: pred, Object: ob}
	if _, ok := s.relations[t]; !ok {
		return false
	}
	delete(s.relations, t)
	s.relOrder = removeTriple(s.relOrder, t)
	s.outgoing[sub] = removeTriple(s.outgoing[sub], t)
	s.incoming[ob] = removeTriple(s.incoming[ob], t)
	return true
}

func removeTriple(list []Triple, t Triple) []Triple {
	for i, x := range list {
		if x == t {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

// Relations returns every triple in insertion order.
func (s *Store) Relations() []Triple {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Triple, len(s.relOrder))
	copy(out, s.relOrder)
	return out
}

// RelationCount returns the number of stored relations.
func (s *Store) RelationCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.relations)
}

// Neighbors returns the forward adjacency of name: each distinct
// object entity in first-link order, with the predicates that connect
// it. Unknown entities have no neighbors.
func (s *Store) Neighbors(name string) []Neighbor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return groupByEndpoint(s.outgoing[name], func(t Triple) string { return t.Object })
}

// Predecessors returns the reverse adjacency of name: each subject
// entity pointing at it, with the connecting predicates.
func (s *Store) Predecessors(name string) []Neighbor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return groupByEndpoint(s.incoming[name], func(t Triple) string { return t.Subject })
}

func groupByEndpoint(list []Triple, endpoint func(Triple) string) []Neighbor {
	var out []Neighbor
	index := make(map[string]int)
	for _, t := range list {
		name := endpoint(t)
		i, ok := index[name]
		if !ok {
			index[name] = len(out)
			out = append(out, Neighbor{Name: name})
			i = len(out) - 1
		}
		out[i].Predicates = append(out[i].Predicates, t.Predicate)
	}
	return out
}

// EntityAttr reads one entity attribute.
func (s *Store) EntityAttr(name, key string) (Value, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.entities[name]
	if !ok {
		return Value{}, false, ErrUnknownEntity
	}
	v, ok := rec.attrs[key]
	return v, ok, nil
}

// SetEntityAttr writes one entity attribute and returns the previous
// value (zero Value when the attribute was unset).
func (s *Store) SetEntityAttr(name, key string, v Value) (Value, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.entities[name]
	if !ok {
		return Value{}, ErrUnknownEntity
	}
	prev := rec.attrs[key]
	rec.attrs[key] = v
	return prev, nil
}

// DeleteEntityAttr removes one entity attribute.
func (s *Store) DeleteEntityAttr(name, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.entities[name]
	if !ok {
		return ErrUnknownEntity
	}
	delete(rec.attrs, key)
	return nil
}

// EntityAttrs returns a copy of the entity's attribute bag.
func (s *Store) EntityAttrs(name string) (Attrs, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.entities[name]
	if !ok {
		return nil, ErrUnknownEntity
	}
	return rec.attrs.Clone(), nil
}

// RelationAttr reads one relation attribute.
func (s *Store) RelationAttr(t Triple, key string) (Value, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.relations[t]
	if !ok {
		return Value{}, false, ErrUnknownRelation
	}
	v, ok := rec.attrs[key]
	return v, ok, nil
}

// SetRelationAttr writes one relation attribute and returns the
// previous value. Writes replace; the triple record is never
// duplicated.
func (s *Store) SetRelationAttr(t Triple, key string, v Value) (Value, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.relations[t]
	if !ok {
		return Value{}, ErrUnknownRelation
	}
	prev := rec.attrs[key]
	rec.attrs[key] = v
	return prev, nil
}

// DeleteRelationAttr removes one relation attribute.
func (s *Store) DeleteRelationAttr(t Triple, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.relations[t]
	if !ok {
		return ErrUnknownRelation
	}
	delete(rec.attrs, key)
	return nil
}

// RelationAttrs returns a copy of the relation's attribute bag.
func (s *Store) RelationAttrs(t Triple) (Attrs, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.relations[t]
	if !ok {
		return nil, ErrUnknownRelation
	}
	return rec.attrs.Clone(), nil
}
