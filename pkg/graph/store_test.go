package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreEntities(t *testing.T) {
	t.Run("add is idempotent", func(t *testing.T) {
		s := NewStore()
		assert.True(t, s.AddEntity("tom"))
		assert.False(t, s.AddEntity("tom"))
		assert.True(t, s.HasEntity("tom"))
		assert.Equal(t, 1, s.EntityCount())
	})

	t.Run("insertion order preserved", func(t *testing.T) {
		s := NewStore()
		s.AddEntity("c")
		s.AddEntity("a")
		s.AddEntity("b")
		assert.Equal(t, []string{"c", "a", "b"}, s.Entities())
	})
}

func TestStoreRelations(t *testing.T) {
	t.Run("relation creates endpoints", func(t *testing.T) {
		s := NewStore()
		assert.True(t, s.AddRelation("tom", "knows", "shamala"))
		assert.True(t, s.HasEntity("tom"))
		assert.True(t, s.HasEntity("shamala"))
		assert.True(t, s.HasRelation("tom", "knows", "shamala"))
	})

	t.Run("duplicate triple is a no-op", func(t *testing.T) {
		s := NewStore()
		s.AddRelation("a", "r", "b")
		_, err := s.SetRelationAttr(Triple{"a", "r", "b"}, "w", Int(1))
		require.NoError(t, err)
		assert.False(t, s.AddRelation("a", "r", "b"))
		// Attributes survive the duplicate add.
		v, ok, err := s.RelationAttr(Triple{"a", "r", "b"}, "w")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, Int(1), v)
		assert.Equal(t, 1, s.RelationCount())
	})

	t.Run("multigraph by predicate", func(t *testing.T) {
		s := NewStore()
		assert.True(t, s.AddRelation("a", "knows", "b"))
		assert.True(t, s.AddRelation("a", "likes", "b"))
		assert.Equal(t, 2, s.RelationCount())
		n := s.Neighbors("a")
		require.Len(t, n, 1)
		assert.Equal(t, "b", n[0].Name)
		assert.Equal(t, []string{"knows", "likes"}, n[0].Predicates)
	})

	t.Run("remove missing relation returns false", func(t *testing.T) {
		s := NewStore()
		assert.False(t, s.RemoveRelation("a", "r", "b"))
	})

	t.Run("remove existing relation", func(t *testing.T) {
		s := NewStore()
		s.AddRelation("a", "r", "b")
		assert.True(t, s.RemoveRelation("a", "r", "b"))
		assert.False(t, s.HasRelation("a", "r", "b"))
		assert.Empty(t, s.Neighbors("a"))
		assert.Empty(t, s.Predecessors("b"))
		// Entities outlive their relations.
		assert.True(t, s.HasEntity("a"))
	})
}

func TestStoreAdjacency(t *testing.T) {
	s := NewStore()
	s.AddRelation("n1", "connected", "n2")
	s.AddRelation("n1", "connected", "n3")
	s.AddRelation("n4", "connected", "n1")

	t.Run("forward", func(t *testing.T) {
		n := s.Neighbors("n1")
		require.Len(t, n, 2)
		assert.Equal(t, "n2", n[0].Name)
		assert.Equal(t, "n3", n[1].Name)
	})

	t.Run("reverse", func(t *testing.T) {
		p := s.Predecessors("n1")
		require.Len(t, p, 1)
		assert.Equal(t, "n4", p[0].Name)
		assert.Equal(t, []string{"connected"}, p[0].Predicates)
	})

	t.Run("unknown entity has no adjacency", func(t *testing.T) {
		assert.Empty(t, s.Neighbors("ghost"))
		assert.Empty(t, s.Predecessors("ghost"))
	})
}

func TestStoreAttrs(t *testing.T) {
	t.Run("set returns previous value", func(t *testing.T) {
		s := NewStore()
		s.AddEntity("tom")
		prev, err := s.SetEntityAttr("tom", "grains", Int(1))
		require.NoError(t, err)
		assert.True(t, prev.IsNil())
		prev, err = s.SetEntityAttr("tom", "grains", Int(2))
		require.NoError(t, err)
		assert.Equal(t, Int(1), prev)
	})

	t.Run("unknown entity errors", func(t *testing.T) {
		s := NewStore()
		_, err := s.SetEntityAttr("ghost", "x", Int(1))
		assert.ErrorIs(t, err, ErrUnknownEntity)
		_, _, err = s.EntityAttr("ghost", "x")
		assert.ErrorIs(t, err, ErrUnknownEntity)
	})

	t.Run("unknown relation errors", func(t *testing.T) {
		s := NewStore()
		_, err := s.SetRelationAttr(Triple{"a", "r", "b"}, "x", Int(1))
		assert.ErrorIs(t, err, ErrUnknownRelation)
	})

	t.Run("attr bags are copies", func(t *testing.T) {
		s := NewStore()
		s.AddEntity("tom")
		_, err := s.SetEntityAttr("tom", "cats", Int(0))
		require.NoError(t, err)
		attrs, err := s.EntityAttrs("tom")
		require.NoError(t, err)
		attrs["cats"] = Int(99)
		v, _, err := s.EntityAttr("tom", "cats")
		require.NoError(t, err)
		assert.Equal(t, Int(0), v)
	})

	t.Run("delete attr", func(t *testing.T) {
		s := NewStore()
		s.AddEntity("b")
		_, err := s.SetEntityAttr("b", "is_letter", Float(2.0))
		require.NoError(t, err)
		require.NoError(t, s.DeleteEntityAttr("b", "is_letter"))
		_, ok, err := s.EntityAttr("b", "is_letter")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestValueRoundTrip(t *testing.T) {
	t.Run("numeric equality across kinds", func(t *testing.T) {
		assert.True(t, Int(3).Equal(Float(3.0)))
		assert.False(t, Int(3).Equal(Float(3.5)))
	})

	t.Run("json round trip", func(t *testing.T) {
		cases := []Value{Int(42), Float(1.5), Bool(true), String("rice"), {}}
		for _, in := range cases {
			data, err := in.MarshalJSON()
			require.NoError(t, err)
			var out Value
			require.NoError(t, out.UnmarshalJSON(data))
			assert.True(t, in.Equal(out), in.String())
		}
	})

	t.Run("from any collapses widths", func(t *testing.T) {
		v, ok := FromAny(7).Int()
		require.True(t, ok)
		assert.Equal(t, int64(7), v)
		f, ok := FromAny(float32(2)).Float()
		require.True(t, ok)
		assert.Equal(t, 2.0, f)
	})
}
