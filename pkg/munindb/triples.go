package munindb

import (
	"fmt"
	"unicode"

	"github.com/orneryd/munindb/pkg/graph"
)

// TripleData is one (subject, predicate, object) fact in export form,
// optionally carrying the attribute bags of the edge and its
// endpoints. Negative marks a negative example.
type TripleData struct {
	Subject   string
	Predicate string
	Object    string

	SubjectAttrs Attrs
	EdgeAttrs    Attrs
	ObjectAttrs  Attrs

	Negative bool
}

// lowerFirst lowercases the first rune, folding variable names into
// atom form for export.
func lowerFirst(s string) string {
	for i, r := range s {
		return string(unicode.ToLower(r)) + s[i+len(string(r)):]
	}
	return s
}

// ToTriples exports every two-argument fact, plus the negative
// examples, as triples. The first letter of each entity name is
// lowercased, so variables in stored heads export as atoms. With
// withData set, each triple carries the current attribute bags.
// Inference rules and facts of other arities are not representable as
// triples and are skipped.
func (kb *KB) ToTriples(withData bool) []TripleData {
	var out []TripleData
	for _, r := range kb.rules {
		if r == nil || !r.clause.IsFact() || len(r.clause.Head.Args) != 2 {
			continue
		}
		h := r.clause.Head
		sub, ob := h.Args[0].String(), h.Args[1].String()
		td := TripleData{
			Subject:   lowerFirst(sub),
			Predicate: h.Pred,
			Object:    lowerFirst(ob),
		}
		if withData {
			td.SubjectAttrs = kb.entityAttrsOrEmpty(sub)
			td.ObjectAttrs = kb.entityAttrsOrEmpty(ob)
			td.EdgeAttrs = kb.relationAttrsOrEmpty(graph.Triple{Subject: sub, Predicate: h.Pred, Object: ob})
		}
		out = append(out, td)
	}
	for _, neg := range kb.negatives {
		if neg == nil || len(neg.Args) != 2 {
			continue
		}
		out = append(out, TripleData{
			Subject:   lowerFirst(neg.Args[0].String()),
			Predicate: neg.Pred,
			Object:    lowerFirst(neg.Args[1].String()),
			Negative:  true,
		})
	}
	return out
}

func (kb *KB) entityAttrsOrEmpty(name string) Attrs {
	attrs, err := kb.store.EntityAttrs(name)
	if err != nil {
		return Attrs{}
	}
	return attrs
}

func (kb *KB) relationAttrsOrEmpty(t graph.Triple) Attrs {
	attrs, err := kb.store.RelationAttrs(t)
	if err != nil {
		return Attrs{}
	}
	return attrs
}

// FromTriples stores each triple as a fact, attributes included. It
// returns the number of statements stored (idempotent re-stores do not
// count against anything; the count is of triples processed).
func (kb *KB) FromTriples(triples []TripleData) (int, error) {
	stored := 0
	for _, td := range triples {
		statement := fmt.Sprintf("%s(%s, %s)", td.Predicate, td.Subject, td.Object)
		if td.Negative {
			statement = "~" + statement
		}
		var nodeAttrs []Attrs
		if len(td.SubjectAttrs) > 0 || len(td.ObjectAttrs) > 0 {
			nodeAttrs = []Attrs{td.SubjectAttrs, td.ObjectAttrs}
		}
		if _, err := kb.StoreWithAttributes(statement, nodeAttrs, td.EdgeAttrs); err != nil {
			return stored, fmt.Errorf("triple %d: %w", stored, err)
		}
		stored++
	}
	return stored, nil
}

// Attr bulk-sets node attributes without propagation; initial state,
// not a change.
func (kb *KB) Attr(node string, attrs Attrs) error {
	for k, v := range attrs {
		if _, err := kb.store.SetEntityAttr(node, k, v); err != nil {
			return err
		}
	}
	return nil
}

// EdgeAttr bulk-sets edge attributes without propagation.
func (kb *KB) EdgeAttr(sub, pred, ob string, attrs Attrs) error {
	t := graph.Triple{Subject: sub, Predicate: pred, Object: ob}
	for k, v := range attrs {
		if _, err := kb.store.SetRelationAttr(t, k, v); err != nil {
			return err
		}
	}
	return nil
}

// DeleteEdgeAttr removes edge attributes without propagation.
func (kb *KB) DeleteEdgeAttr(sub, pred, ob string, keys ...string) error {
	t := graph.Triple{Subject: sub, Predicate: pred, Object: ob}
	for _, k := range keys {
		if err := kb.store.DeleteRelationAttr(t, k); err != nil {
			return err
		}
	}
	return nil
}
