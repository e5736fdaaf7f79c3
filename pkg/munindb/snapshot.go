package munindb

import (
	"fmt"

	"github.com/orneryd/munindb/pkg/graph"
)

// Snapshot is the serializable state of a knowledge base: the
// statements in storage order, the negative examples, every attribute
// bag, and the configured limits. pkg/storage persists snapshots.
type Snapshot struct {
	RecursionLimit   int                `json:"recursion_limit"`
	PropagationLimit int                `json:"propagation_limit"`
	Statements       []string           `json:"statements"`
	Negatives        []string           `json:"negatives"`
	Entities         []SnapshotEntity   `json:"entities"`
	Relations        []SnapshotRelation `json:"relations"`
}

// SnapshotEntity is one entity and its attributes.
type SnapshotEntity struct {
	Name  string `json:"name"`
	Attrs Attrs  `json:"attrs,omitempty"`
}

// SnapshotRelation is one relation and its attributes.
type SnapshotRelation struct {
	Subject   string `json:"subject"`
	Predicate string `json:"predicate"`
	Object    string `json:"object"`
	Attrs     Attrs  `json:"attrs,omitempty"`
}

// Export captures the knowledge base's current state. Tombstoned
// statements are gone from the snapshot; restored IDs therefore may
// differ from the originals.
func (kb *KB) Export() *Snapshot {
	snap := &Snapshot{
		RecursionLimit:   kb.budget.RecursionLimit(),
		PropagationLimit: kb.budget.PropagationLimit(),
	}
	for _, r := range kb.rules {
		if r != nil {
			snap.Statements = append(snap.Statements, r.String())
		}
	}
	for _, neg := range kb.negatives {
		if neg != nil {
			snap.Negatives = append(snap.Negatives, neg.String())
		}
	}
	for _, name := range kb.store.Entities() {
		attrs, err := kb.store.EntityAttrs(name)
		if err != nil {
			continue
		}
		if len(attrs) == 0 {
			attrs = nil
		}
		snap.Entities = append(snap.Entities, SnapshotEntity{Name: name, Attrs: attrs})
	}
	for _, t := range kb.store.Relations() {
		attrs, err := kb.store.RelationAttrs(t)
		if err != nil {
			continue
		}
		if len(attrs) == 0 {
			attrs = nil
		}
		snap.Relations = append(snap.Relations, SnapshotRelation{
			Subject: t.Subject, Predicate: t.Predicate, Object: t.Object, Attrs: attrs,
		})
	}
	return snap
}

// Restore replays a snapshot into the knowledge base. Statements are
// replayed in order with propagation suppressed, then attribute bags
// and limits are applied. Restoring into a non-empty KB merges;
// restore into a fresh one for an exact copy.
func (kb *KB) Restore(snap *Snapshot) error {
	var err error
	kb.DontPropagate(func() {
		for i, stmt := range snap.Statements {
			if _, e := kb.Store(stmt); e != nil {
				err = fmt.Errorf("statement %d %q: %w", i, stmt, e)
				return
			}
		}
		for i, neg := range snap.Negatives {
			if _, e := kb.Store("~" + neg); e != nil {
				err = fmt.Errorf("negative %d %q: %w", i, neg, e)
				return
			}
		}
	})
	if err != nil {
		return err
	}
	for _, ent := range snap.Entities {
		kb.store.AddEntity(ent.Name)
		if e := kb.Attr(ent.Name, ent.Attrs); e != nil {
			return fmt.Errorf("entity %q: %w", ent.Name, e)
		}
	}
	for _, rel := range snap.Relations {
		kb.store.AddRelation(rel.Subject, rel.Predicate, rel.Object)
		t := graph.Triple{Subject: rel.Subject, Predicate: rel.Predicate, Object: rel.Object}
		for k, v := range rel.Attrs {
			if _, e := kb.store.SetRelationAttr(t, k, v); e != nil {
				return fmt.Errorf("relation %s %s %s: %w", rel.Subject, rel.Predicate, rel.Object, e)
			}
		}
	}
	if snap.RecursionLimit > 0 {
		kb.SetRecursionLimit(snap.RecursionLimit)
	}
	if snap.PropagationLimit > 0 {
		kb.SetPropagationLimit(snap.PropagationLimit)
	}
	return nil
}
