package logic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustTerm(t *testing.T, expr string) *Term {
	t.Helper()
	term, err := ParseTerm(expr)
	require.NoError(t, err)
	return term
}

func TestUnifyGround(t *testing.T) {
	t.Run("ground term unifies with itself", func(t *testing.T) {
		for _, expr := range []string{"tom", "knows(tom,shamala)", "f(g(a),h(b,c))", "[a,b,c]"} {
			src := mustTerm(t, expr)
			dst := mustTerm(t, expr)
			srcEnv, dstEnv := Bindings{}, Bindings{}
			assert.True(t, Unify(src, srcEnv, dst, dstEnv), expr)
			assert.Empty(t, srcEnv)
			assert.Empty(t, dstEnv)
		}
	})

	t.Run("different atoms fail", func(t *testing.T) {
		assert.False(t, Unify(mustTerm(t, "tom"), Bindings{}, mustTerm(t, "jerry"), Bindings{}))
	})

	t.Run("arity mismatch fails", func(t *testing.T) {
		assert.False(t, Unify(mustTerm(t, "a(x)"), Bindings{}, mustTerm(t, "a(x,y)"), Bindings{}))
	})

	t.Run("predicate mismatch fails", func(t *testing.T) {
		assert.False(t, Unify(mustTerm(t, "a(x)"), Bindings{}, mustTerm(t, "b(x)"), Bindings{}))
	})
}

func TestUnifyVariables(t *testing.T) {
	t.Run("dst variable binds to src constant", func(t *testing.T) {
		dstEnv := Bindings{}
		ok := Unify(mustTerm(t, "knows(tom,shamala)"), Bindings{}, mustTerm(t, "knows(X,Y)"), dstEnv)
		require.True(t, ok)
		assert.Equal(t, "tom", dstEnv["X"].Pred)
		assert.Equal(t, "shamala", dstEnv["Y"].Pred)
	})

	t.Run("bound dst variable must agree", func(t *testing.T) {
		dstEnv := Bindings{"X": Atom("jerry")}
		ok := Unify(mustTerm(t, "knows(tom)"), Bindings{}, mustTerm(t, "knows(X)"), dstEnv)
		assert.False(t, ok)
	})

	t.Run("src side resolves through its environment", func(t *testing.T) {
		srcEnv := Bindings{"W": Atom("tom")}
		dstEnv := Bindings{}
		ok := Unify(mustTerm(t, "knows(W)"), srcEnv, mustTerm(t, "knows(X)"), dstEnv)
		require.True(t, ok)
		assert.Equal(t, "tom", dstEnv["X"].Pred)
	})

	t.Run("unbound src variable constrains nothing", func(t *testing.T) {
		dstEnv := Bindings{}
		ok := Unify(mustTerm(t, "knows(Q)"), Bindings{}, mustTerm(t, "knows(tom)"), dstEnv)
		require.True(t, ok)
		assert.Empty(t, dstEnv)
	})

	t.Run("same name in both environments stays independent", func(t *testing.T) {
		srcEnv := Bindings{"X": Atom("tom")}
		dstEnv := Bindings{}
		ok := Unify(mustTerm(t, "p(X)"), srcEnv, mustTerm(t, "p(X)"), dstEnv)
		require.True(t, ok)
		assert.Equal(t, "tom", dstEnv["X"].Pred)
		assert.Equal(t, "tom", srcEnv["X"].Pred)
	})

	t.Run("structural binding into list pattern", func(t *testing.T) {
		dstEnv := Bindings{}
		ok := Unify(mustTerm(t, "member(a,[a,b])"), Bindings{}, mustTerm(t, "member(H,[H|T])"), dstEnv)
		require.True(t, ok)
		assert.Equal(t, "a", dstEnv["H"].Pred)
		require.NotNil(t, dstEnv["T"])
		assert.Equal(t, "[b]", dstEnv["T"].String())
	})
}

func TestResolve(t *testing.T) {
	t.Run("chain resolution", func(t *testing.T) {
		env := Bindings{"X": &Term{Pred: "Y"}, "Y": Atom("tom")}
		got := Resolve(&Term{Pred: "X"}, env)
		require.NotNil(t, got)
		assert.Equal(t, "tom", got.Pred)
	})

	t.Run("unbound variable is nil", func(t *testing.T) {
		assert.Nil(t, Resolve(&Term{Pred: "X"}, Bindings{}))
	})

	t.Run("compound substitution", func(t *testing.T) {
		env := Bindings{"X": Atom("tom")}
		got := Resolve(mustTerm(t, "knows(X,Y)"), env)
		require.NotNil(t, got)
		assert.Equal(t, "knows(tom, Y)", got.String())
	})
}
