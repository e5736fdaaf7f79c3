package logic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustClause(t *testing.T, stmt string) *Clause {
	t.Helper()
	parsed, err := ParseStatement(stmt)
	require.NoError(t, err)
	return parsed.Clause
}

func collect(t *testing.T, query string, clauses []*Clause) []Bindings {
	t.Helper()
	q, err := ParseQuery(query)
	require.NoError(t, err)
	var out []Bindings
	for env := range Solve(q, clauses) {
		out = append(out, env)
	}
	return out
}

func TestSolveFacts(t *testing.T) {
	clauses := []*Clause{
		mustClause(t, "knows(tom, shamala)"),
	}

	t.Run("single binding", func(t *testing.T) {
		answers := collect(t, "knows(X, Y)", clauses)
		require.Len(t, answers, 1)
		assert.Equal(t, "tom", answers[0]["X"].Pred)
		assert.Equal(t, "shamala", answers[0]["Y"].Pred)
	})

	t.Run("ground query yields empty environment", func(t *testing.T) {
		answers := collect(t, "knows(tom, shamala)", clauses)
		require.Len(t, answers, 1)
		assert.Empty(t, answers[0])
	})

	t.Run("ground mismatch yields nothing", func(t *testing.T) {
		assert.Empty(t, collect(t, "knows(tom, jerry)", clauses))
	})

	t.Run("unknown predicate yields nothing", func(t *testing.T) {
		assert.Empty(t, collect(t, "hates(X, Y)", clauses))
	})

	t.Run("arity must match", func(t *testing.T) {
		assert.Empty(t, collect(t, "knows(X)", clauses))
	})
}

func TestSolveRuleChaining(t *testing.T) {
	clauses := []*Clause{
		mustClause(t, "bought_ticket(tom)"),
		mustClause(t, "winner(X) :- bought_ticket(X), had_correct_numbers(X)"),
	}

	t.Run("incomplete body proves nothing", func(t *testing.T) {
		assert.Empty(t, collect(t, "winner(X)", clauses))
	})

	t.Run("completing the body proves the head", func(t *testing.T) {
		withFact := append(clauses, mustClause(t, "had_correct_numbers(tom)"))
		answers := collect(t, "winner(X)", withFact)
		require.Len(t, answers, 1)
		assert.Equal(t, "tom", answers[0]["X"].Pred)
	})

	t.Run("tombstoned clause is skipped", func(t *testing.T) {
		withFact := append(clauses, mustClause(t, "had_correct_numbers(tom)"))
		withFact[2] = nil
		assert.Empty(t, collect(t, "winner(X)", withFact))
	})
}

func TestSolveMultipleAnswers(t *testing.T) {
	clauses := []*Clause{
		mustClause(t, "locatedin(fiji, melanesia)"),
		mustClause(t, "locatedin(fiji, oceania)"),
		mustClause(t, "locatedin(peru, south_america)"),
	}

	answers := collect(t, "locatedin(fiji, Where)", clauses)
	require.Len(t, answers, 2)
	got := []string{answers[0]["Where"].Pred, answers[1]["Where"].Pred}
	assert.ElementsMatch(t, []string{"melanesia", "oceania"}, got)
}

func TestSolveTwoHopRule(t *testing.T) {
	clauses := []*Clause{
		mustClause(t, "parent(abe, homer)"),
		mustClause(t, "parent(homer, bart)"),
		mustClause(t, "grandparent(X, Z) :- parent(X, Y), parent(Y, Z)"),
	}

	answers := collect(t, "grandparent(A, B)", clauses)
	require.Len(t, answers, 1)
	assert.Equal(t, "abe", answers[0]["A"].Pred)
	assert.Equal(t, "bart", answers[0]["B"].Pred)
}

func TestSolveBoundedSearch(t *testing.T) {
	t.Run("self recursive rule set terminates", func(t *testing.T) {
		clauses := []*Clause{
			mustClause(t, "loop(X) :- loop(X)"),
			mustClause(t, "loop(a)"),
		}
		// The bound ends the walk; any answers produced before the
		// budget runs out are still valid.
		answers := collect(t, "loop(X)", clauses)
		for _, env := range answers {
			assert.Equal(t, "a", env["X"].Pred)
		}
	})

	t.Run("restartable sequence", func(t *testing.T) {
		clauses := []*Clause{mustClause(t, "a(b)")}
		q, err := ParseQuery("a(X)")
		require.NoError(t, err)
		seq := Solve(q, clauses)
		first := 0
		for range seq {
			first++
		}
		second := 0
		for range seq {
			second++
		}
		assert.Equal(t, first, second)
		assert.Equal(t, 1, first)
	})
}

func TestMaxIterations(t *testing.T) {
	assert.Equal(t, 100, MaxIterations(0))
	assert.Equal(t, 100, MaxIterations(10))
	// (99+1)^1.5 = 1000, modulo floating point truncation.
	assert.InDelta(t, 1000, MaxIterations(99), 1)
}
