// Package embed defines the boundary between a knowledge base and an
// external knowledge-graph embedding model. The engine's side of the
// boundary is small: it exports triples in dense integer form and
// consumes probability estimates. How a model is trained and scored is
// entirely the scorer's concern.
//
// Example:
//
//	table := embed.NewTable()
//	for _, td := range kb.ToTriples(false) {
//		enc := table.Encode(td.Subject, td.Predicate, td.Object, td.Negative)
//		feedModel(enc)
//	}
package embed

import "errors"

// ErrModelNotReady reports a probability request made before a scorer
// has been attached or its model trained.
var ErrModelNotReady = errors.New("embedding model not ready")

// Scorer estimates the probability that a triple holds.
// Implementations wrap a trained embedding model, local or remote.
type Scorer interface {
	EstimateTripleProb(sub, pred, ob string) (float64, error)
}

// EncodedTriple is one triple in model input form: the dense integer
// IDs assigned by a Table.
type EncodedTriple struct {
	Subject  int
	Relation int
	Object   int
	Negative bool
}

// Table assigns dense integer IDs to entity and relation names in
// first-seen order, the layout embedding models train against. An
// assigned ID is stable for the lifetime of the table.
type Table struct {
	entityID   map[string]int
	entities   []string
	relationID map[string]int
	relations  []string
}

// NewTable returns an empty ID table.
func NewTable() *Table {
	return &Table{
		entityID:   make(map[string]int),
		relationID: make(map[string]int),
	}
}

// EntityID returns the entity's ID, assigning the next free one on
// first sight.
func (t *Table) EntityID(name string) int {
	if id, ok := t.entityID[name]; ok {
		return id
	}
	id := len(t.entities)
	t.entityID[name] = id
	t.entities = append(t.entities, name)
	return id
}

// RelationID returns the relation's ID, assigning on first sight.
func (t *Table) RelationID(name string) int {
	if id, ok := t.relationID[name]; ok {
		return id
	}
	id := len(t.relations)
	t.relationID[name] = id
	t.relations = append(t.relations, name)
	return id
}

// LookupEntity returns an already-assigned entity ID without assigning
// a new one.
func (t *Table) LookupEntity(name string) (int, bool) {
	id, ok := t.entityID[name]
	return id, ok
}

// LookupRelation returns an already-assigned relation ID without
// assigning a new one.
func (t *Table) LookupRelation(name string) (int, bool) {
	id, ok := t.relationID[name]
	return id, ok
}

// Entity returns the name behind an entity ID.
func (t *Table) Entity(id int) (string, bool) {
	if id < 0 || id >= len(t.entities) {
		return "", false
	}
	return t.entities[id], true
}

// Relation returns the name behind a relation ID.
func (t *Table) Relation(id int) (string, bool) {
	if id < 0 || id >= len(t.relations) {
		return "", false
	}
	return t.relations[id], true
}

// Entities returns every entity name in ID order.
func (t *Table) Entities() []string {
	out := make([]string, len(t.entities))
	copy(out, t.entities)
	return out
}

// Relations returns every relation name in ID order.
func (t *Table) Relations() []string {
	out := make([]string, len(t.relations))
	copy(out, t.relations)
	return out
}

// EntityCount returns the number of assigned entity IDs.
func (t *Table) EntityCount() int { return len(t.entities) }

// RelationCount returns the number of assigned relation IDs.
func (t *Table) RelationCount() int { return len(t.relations) }

// Encode maps one triple through the table, assigning IDs as needed.
func (t *Table) Encode(sub, pred, ob string, negative bool) EncodedTriple {
	return EncodedTriple{
		Subject:  t.EntityID(sub),
		Relation: t.RelationID(pred),
		Object:   t.EntityID(ob),
		Negative: negative,
	}
}
