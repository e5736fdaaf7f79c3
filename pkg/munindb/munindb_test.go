package munindb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
	t.Run("fact is queryable", func(t *testing.T) {
		kb := New(nil)
		id, err := kb.Store("knows(tom, shamala)")
		require.NoError(t, err)
		assert.Equal(t, RuleID("0"), id)

		results, err := kb.QueryAll("knows(X, Y)")
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "tom", results[0].Bindings["X"])
		assert.Equal(t, "shamala", results[0].Bindings["Y"])
	})

	t.Run("ground query answers with truth", func(t *testing.T) {
		kb := New(nil)
		kb.MustStore("knows(tom, shamala)")
		results, err := kb.QueryAll("knows(tom, shamala)")
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.True(t, results[0].Truth)
		assert.Empty(t, results[0].Bindings)
	})

	t.Run("unprovable query has no answers", func(t *testing.T) {
		kb := New(nil)
		kb.MustStore("knows(tom, shamala)")
		results, err := kb.QueryAll("knows(shamala, tom)")
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("storage populates the graph", func(t *testing.T) {
		kb := New(nil)
		kb.MustStore("knows(tom, shamala)")
		n, err := kb.Neighbors("tom")
		require.NoError(t, err)
		require.Len(t, n, 1)
		assert.Equal(t, "shamala", n[0].Name)
		assert.Equal(t, []string{"knows"}, n[0].Predicates)
	})

	t.Run("re-storing is idempotent", func(t *testing.T) {
		kb := New(nil)
		id1 := kb.MustStore("knows(tom, shamala)")
		id2 := kb.MustStore("knows(tom,shamala)") // whitespace-insensitive
		assert.Equal(t, id1, id2)
		assert.Len(t, kb.Rules(), 1)
		assert.Equal(t, 1, kb.Stats().Relations)
	})

	t.Run("syntax error leaves no partial state", func(t *testing.T) {
		kb := New(nil)
		_, err := kb.Store("knows(tom, shamala")
		assert.ErrorIs(t, err, ErrSyntax)
		assert.Zero(t, kb.Stats().Entities)
	})

	t.Run("rule head materializes entities", func(t *testing.T) {
		kb := New(nil)
		kb.MustStore("wears(tom, jacket)")
		kb.MustStore("outfit(X, Y) :- wears(X, Y)")
		// Head variables become entities too.
		_, err := kb.Node("X")
		assert.NoError(t, err)
	})
}

func TestNegativeExamples(t *testing.T) {
	t.Run("tilde prefix", func(t *testing.T) {
		kb := New(nil)
		id, err := kb.Store("~likes(tom, mondays)")
		require.NoError(t, err)
		assert.Equal(t, RuleID("~0"), id)
		_, ok := id.Index()
		assert.False(t, ok)
	})

	t.Run("negative truthiness converts", func(t *testing.T) {
		kb := New(nil)
		id, err := kb.StoreWithAttributes("likes(tom, mondays)", nil, Attrs{"truthiness": FromAny(-1.0)})
		require.NoError(t, err)
		assert.Equal(t, RuleID("~0"), id)
	})

	t.Run("not queryable", func(t *testing.T) {
		kb := New(nil)
		kb.MustStore("~likes(tom, mondays)")
		results, err := kb.QueryAll("likes(X, Y)")
		require.NoError(t, err)
		assert.Empty(t, results)
		assert.Equal(t, 1, kb.Stats().Negatives)
	})

	t.Run("negatives stay out of the graph", func(t *testing.T) {
		kb := New(nil)
		kb.MustStore("~likes(tom, mondays)")
		_, err := kb.Node("tom")
		assert.ErrorIs(t, err, ErrUnknownEntity)
	})
}

func TestRules(t *testing.T) {
	t.Run("backward chaining", func(t *testing.T) {
		kb := New(nil)
		kb.MustStore("bought_ticket(tom)")
		kb.MustStore("bought_ticket(shamala)")
		kb.MustStore("had_correct_numbers(shamala)")
		kb.MustStore("winner(X) :- bought_ticket(X), had_correct_numbers(X)")

		results, err := kb.QueryAll("winner(X)")
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "shamala", results[0].Bindings["X"])
	})

	t.Run("answers are lazy and restartable", func(t *testing.T) {
		kb := New(nil)
		kb.MustStore("knows(a, b)")
		kb.MustStore("knows(a, c)")
		seq := kb.MustQuery("knows(a, X)")
		first := 0
		for range seq {
			first++
			break
		}
		assert.Equal(t, 1, first)
		total := 0
		for range seq {
			total++
		}
		assert.Equal(t, 2, total)
	})

	t.Run("edge attrs rejected on rules", func(t *testing.T) {
		kb := New(nil)
		_, err := kb.StoreWithAttributes("a(X) :- b(X)", nil, Attrs{"w": FromAny(1)})
		assert.ErrorIs(t, err, ErrEdgeAttrsOnRule)
	})

	t.Run("lookup by head", func(t *testing.T) {
		kb := New(nil)
		kb.MustStore("winner(X) :- bought_ticket(X)")
		r, err := kb.RuleByHead("winner(X)")
		require.NoError(t, err)
		assert.Equal(t, "winner(X) :- bought_ticket(X)", r.String())
		_, err = kb.RuleByHead("loser(X)")
		assert.ErrorIs(t, err, ErrUnknownRule)
	})
}

func TestDelete(t *testing.T) {
	t.Run("deleted fact stops answering", func(t *testing.T) {
		kb := New(nil)
		id := kb.MustStore("knows(tom, shamala)")
		assert.True(t, kb.Delete(id))
		results, err := kb.QueryAll("knows(X, Y)")
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("double delete returns false", func(t *testing.T) {
		kb := New(nil)
		id := kb.MustStore("knows(tom, shamala)")
		assert.True(t, kb.Delete(id))
		assert.False(t, kb.Delete(id))
		assert.False(t, kb.Delete(RuleID("99")))
	})

	t.Run("indexes stay stable across deletes", func(t *testing.T) {
		kb := New(nil)
		kb.MustStore("a(x)")
		idB := kb.MustStore("b(y)")
		kb.Delete(RuleID("0"))
		r, err := kb.Rule(idB)
		require.NoError(t, err)
		assert.Equal(t, "b(y)", r.String())
	})

	t.Run("deleting a ground fact removes its edge", func(t *testing.T) {
		kb := New(nil)
		id := kb.MustStore("knows(tom, shamala)")
		kb.Delete(id)
		_, err := kb.Edge("tom", "knows", "shamala")
		assert.ErrorIs(t, err, ErrUnknownRelation)
		// Entities outlive their facts.
		_, err = kb.Node("tom")
		assert.NoError(t, err)
	})

	t.Run("re-store after delete creates a fresh entry", func(t *testing.T) {
		kb := New(nil)
		id := kb.MustStore("knows(tom, shamala)")
		kb.Delete(id)
		id2 := kb.MustStore("knows(tom, shamala)")
		assert.NotEqual(t, id, id2)
		results, err := kb.QueryAll("knows(tom, shamala)")
		require.NoError(t, err)
		assert.Len(t, results, 1)
	})

	t.Run("delete negative example", func(t *testing.T) {
		kb := New(nil)
		id := kb.MustStore("~likes(tom, mondays)")
		assert.True(t, kb.Delete(id))
		assert.False(t, kb.Delete(id))
		assert.Zero(t, kb.Stats().Negatives)
	})
}

func TestAttributes(t *testing.T) {
	t.Run("store with attributes", func(t *testing.T) {
		kb := New(nil)
		_, err := kb.StoreWithAttributes("knows(tom, shamala)",
			[]Attrs{{"grains": FromAny(3)}, {"grains": FromAny(5)}},
			Attrs{"since": FromAny(2019)})
		require.NoError(t, err)

		v, ok := kb.MustNode("tom").Get("grains")
		require.True(t, ok)
		i, _ := v.Int()
		assert.Equal(t, int64(3), i)

		v, ok = kb.MustNode("shamala").Get("grains")
		require.True(t, ok)
		i, _ = v.Int()
		assert.Equal(t, int64(5), i)

		v, ok = kb.MustEdge("tom", "knows", "shamala").Get("since")
		require.True(t, ok)
		i, _ = v.Int()
		assert.Equal(t, int64(2019), i)
	})

	t.Run("bulk attr does not propagate", func(t *testing.T) {
		kb := New(nil)
		kb.MustStore("node(a)")
		fired := false
		kb.MustNode("a").Watch("x", func(n *Node, prev Value) { fired = true })
		require.NoError(t, kb.Attr("a", Attrs{"x": FromAny(1)}))
		assert.False(t, fired)
		_, ok := kb.MustNode("a").Get("x")
		assert.True(t, ok)
	})

	t.Run("edge attr helpers", func(t *testing.T) {
		kb := New(nil)
		kb.MustStore("knows(a, b)")
		require.NoError(t, kb.EdgeAttr("a", "knows", "b", Attrs{"w": FromAny(0.5)}))
		e := kb.MustEdge("a", "knows", "b")
		_, ok := e.Get("w")
		assert.True(t, ok)
		require.NoError(t, kb.DeleteEdgeAttr("a", "knows", "b", "w"))
		_, ok = e.Get("w")
		assert.False(t, ok)
	})

	t.Run("unknown names error", func(t *testing.T) {
		kb := New(nil)
		assert.ErrorIs(t, kb.Attr("ghost", Attrs{"x": FromAny(1)}), ErrUnknownEntity)
		assert.ErrorIs(t, kb.EdgeAttr("a", "r", "b", Attrs{"x": FromAny(1)}), ErrUnknownRelation)
	})
}

func TestToTriples(t *testing.T) {
	t.Run("two-argument facts only", func(t *testing.T) {
		kb := New(nil)
		kb.MustStore("knows(tom, shamala)")
		kb.MustStore("person(tom)")
		kb.MustStore("gave(tom, book, shamala)")
		triples := kb.ToTriples(false)
		require.Len(t, triples, 1)
		assert.Equal(t, "knows", triples[0].Predicate)
		assert.Nil(t, triples[0].SubjectAttrs)
	})

	t.Run("first letter lowercased", func(t *testing.T) {
		kb := New(nil)
		kb.MustStore("eats(Tom, rice)")
		triples := kb.ToTriples(false)
		require.Len(t, triples, 1)
		assert.Equal(t, "tom", triples[0].Subject)
		assert.Equal(t, "rice", triples[0].Object)
	})

	t.Run("with data", func(t *testing.T) {
		kb := New(nil)
		kb.MustStore("knows(tom, shamala)")
		require.NoError(t, kb.Attr("tom", Attrs{"grains": FromAny(3)}))
		require.NoError(t, kb.EdgeAttr("tom", "knows", "shamala", Attrs{"since": FromAny(2019)}))
		triples := kb.ToTriples(true)
		require.Len(t, triples, 1)
		_, ok := triples[0].SubjectAttrs["grains"]
		assert.True(t, ok)
		_, ok = triples[0].EdgeAttrs["since"]
		assert.True(t, ok)
	})

	t.Run("negatives flagged", func(t *testing.T) {
		kb := New(nil)
		kb.MustStore("knows(tom, shamala)")
		kb.MustStore("~knows(shamala, tom)")
		triples := kb.ToTriples(false)
		require.Len(t, triples, 2)
		assert.False(t, triples[0].Negative)
		assert.True(t, triples[1].Negative)
	})

	t.Run("round trip", func(t *testing.T) {
		kb := New(nil)
		kb.MustStore("knows(tom, shamala)")
		kb.MustStore("~likes(tom, mondays)")

		kb2 := New(nil)
		n, err := kb2.FromTriples(kb.ToTriples(true))
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		results, err := kb2.QueryAll("knows(tom, shamala)")
		require.NoError(t, err)
		assert.Len(t, results, 1)
		assert.Equal(t, 1, kb2.Stats().Negatives)
	})
}

func TestSolidify(t *testing.T) {
	kb := New(nil)
	kb.MustStore("wears(tom, jacket)")
	kb.MustStore("wears(shamala, hat)")
	kb.MustStore("outfit(X, Y) :- wears(X, Y)")

	n, err := kb.Solidify("outfit")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, kb.store.HasRelation("tom", "outfit", "jacket"))

	// Already solid; nothing new.
	n, err = kb.Solidify("outfit")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestBFS(t *testing.T) {
	kb := New(nil)
	kb.MustStore("connected(a, b)")
	kb.MustStore("connected(b, c)")
	kb.MustStore("links(a, c)")
	kb.MustStore("connected(c, d)")

	t.Run("all simple paths within depth", func(t *testing.T) {
		paths, err := kb.BFS("a", "c", 5, false)
		require.NoError(t, err)
		require.Len(t, paths, 2)
		// Breadth first: the direct hop comes out before the two-hop path.
		assert.Equal(t, []PathStep{{"links", "c"}}, paths[0])
		assert.Equal(t, []PathStep{{"connected", "b"}, {"connected", "c"}}, paths[1])
	})

	t.Run("depth bound", func(t *testing.T) {
		paths, err := kb.BFS("a", "c", 1, false)
		require.NoError(t, err)
		assert.Len(t, paths, 1)
	})

	t.Run("reverse", func(t *testing.T) {
		paths, err := kb.BFS("d", "b", 5, true)
		require.NoError(t, err)
		require.Len(t, paths, 1)
		assert.Equal(t, []PathStep{{"connected", "c"}, {"connected", "b"}}, paths[0])
	})

	t.Run("unknown start", func(t *testing.T) {
		_, err := kb.BFS("ghost", "a", 5, false)
		assert.ErrorIs(t, err, ErrUnknownEntity)
	})
}

func TestNodesFilter(t *testing.T) {
	kb := New(nil)
	kb.MustStore("person(tom)")
	kb.MustStore("person(shamala)")
	kb.MustStore("city(oslo)")
	require.NoError(t, kb.Attr("tom", Attrs{"age": FromAny(40)}))

	all := kb.Nodes(nil)
	assert.Len(t, all, 3)

	withAge := kb.Nodes(func(n *Node) bool {
		_, ok := n.Get("age")
		return ok
	})
	require.Len(t, withAge, 1)
	assert.Equal(t, "tom", withAge[0].Name())

	names := kb.Filter(func(n *Node) bool {
		v, ok := n.Get("age")
		if !ok {
			return false
		}
		i, _ := v.Int()
		return i >= 40
	})
	assert.Equal(t, []string{"tom"}, names)
}

func TestSnapshotRoundTrip(t *testing.T) {
	kb := New(nil)
	kb.SetRecursionLimit(3)
	kb.MustStore("knows(tom, shamala)")
	kb.MustStore("winner(X) :- bought_ticket(X), had_correct_numbers(X)")
	kb.MustStore("~likes(tom, mondays)")
	require.NoError(t, kb.Attr("tom", Attrs{"grains": FromAny(3)}))
	require.NoError(t, kb.EdgeAttr("tom", "knows", "shamala", Attrs{"since": FromAny(2019)}))

	snap := kb.Export()
	kb2 := New(nil)
	require.NoError(t, kb2.Restore(snap))

	results, err := kb2.QueryAll("knows(X, Y)")
	require.NoError(t, err)
	assert.Len(t, results, 1)
	v, ok := kb2.MustNode("tom").Get("grains")
	require.True(t, ok)
	i, _ := v.Int()
	assert.Equal(t, int64(3), i)
	_, ok = kb2.MustEdge("tom", "knows", "shamala").Get("since")
	assert.True(t, ok)
	assert.Equal(t, 1, kb2.Stats().Negatives)
	assert.Equal(t, kb.Stats(), kb2.Stats())
}

func TestEstimateTripleProb(t *testing.T) {
	kb := New(nil)
	kb.MustStore("knows(tom, shamala)")

	t.Run("no scorer attached", func(t *testing.T) {
		_, err := kb.EstimateTripleProb("tom", "knows", "shamala")
		assert.Error(t, err)
	})

	t.Run("delegates to scorer", func(t *testing.T) {
		kb.SetScorer(scorerFunc(func(sub, pred, ob string) (float64, error) {
			return 0.75, nil
		}))
		p, err := kb.EstimateTripleProb("tom", "knows", "shamala")
		require.NoError(t, err)
		assert.Equal(t, 0.75, p)
	})

	t.Run("unknown entity", func(t *testing.T) {
		_, err := kb.EstimateTripleProb("ghost", "knows", "shamala")
		assert.ErrorIs(t, err, ErrUnknownEntity)
	})
}

type scorerFunc func(sub, pred, ob string) (float64, error)

func (f scorerFunc) EstimateTripleProb(sub, pred, ob string) (float64, error) {
	return f(sub, pred, ob)
}
