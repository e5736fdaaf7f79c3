// Package munindb provides the main API for embedded MuninDB usage.
//
// MuninDB is a knowledge base: a directed, attributed multigraph of
// entities and relations combined with a Prolog-style rule engine and
// a reactive attribute-propagation layer. Facts and inference rules go
// in as plain statements; queries come back out as variable bindings;
// attribute changes ripple through watch callbacks and rule hooks with
// explicit bounds on cycles and fan-out.
//
// Key features:
//   - Facts and rules: "knows(tom, shamala)", "winner(X) :- bought_ticket(X), had_correct_numbers(X)"
//   - Backward-chaining queries with lazy answer sequences
//   - Live Node/Edge handles with per-attribute watch callbacks
//   - Rule on-change hooks over the nodes a rule binds
//   - Per-entity recursion limits and a global propagation budget
//
// Example:
//
//	kb := munindb.New(nil)
//	kb.Store("knows(tom, shamala)")
//
//	for res := range kb.MustQuery("knows(X, Y)") {
//		fmt.Println(res.Bindings["X"], res.Bindings["Y"])
//	}
//
//	tom, _ := kb.Node("tom")
//	tom.Watch("grains", func(n *munindb.Node, prev munindb.Value) {
//		fmt.Println("grains changed")
//	})
//	tom.Set("grains", 3)
//
// The knowledge base and every handle derived from it are confined to
// one goroutine. The reactive chain is synchronous and re-entrant by
// design; see pkg/propagation for the guards that keep it finite.
package munindb

import (
	"errors"
	"fmt"
	"iter"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/orneryd/munindb/pkg/embed"
	"github.com/orneryd/munindb/pkg/graph"
	"github.com/orneryd/munindb/pkg/logic"
	"github.com/orneryd/munindb/pkg/propagation"
)

// Value is an attribute value. See graph.Value for the kinds.
type Value = graph.Value

// Attrs is an attribute bag.
type Attrs = graph.Attrs

// FromAny converts a Go value into an attribute Value.
func FromAny(v any) Value { return graph.FromAny(v) }

// Re-exported error kinds. Parse and lookup errors surface
// immediately; limit violations are signals, not failures.
var (
	ErrSyntax          = logic.ErrSyntax
	ErrUnknownEntity   = graph.ErrUnknownEntity
	ErrUnknownRelation = graph.ErrUnknownRelation

	// ErrLimitExceeded marks a write dropped by the recursion or
	// propagation limit. Handle setters return ok=false instead of
	// this error; it exists for boundaries that need an error value.
	ErrLimitExceeded = errors.New("propagation limit exceeded")

	// ErrUnknownRule reports a rule lookup by an index or head that
	// was never stored (or was deleted).
	ErrUnknownRule = errors.New("unknown rule")

	// ErrEdgeAttrsOnRule rejects edge attributes on an inference
	// rule, which has no stable edge to attach them to.
	ErrEdgeAttrsOnRule = errors.New("cannot set edge attributes on a rule")
)

// RuleID addresses one stored statement: the decimal rule index, or
// "~N" for the N-th negative example.
type RuleID string

// Index returns the numeric rule index. ok is false for negative
// example IDs.
func (id RuleID) Index() (int, bool) {
	if strings.HasPrefix(string(id), "~") {
		return 0, false
	}
	n, err := strconv.Atoi(string(id))
	if err != nil {
		return 0, false
	}
	return n, true
}

// Config carries the knowledge base's tunables.
type Config struct {
	// RecursionLimit caps re-entrant writes to the same entity or
	// relation within one propagation chain. Default 1.
	RecursionLimit int

	// PropagationLimit caps total writes triggered by one external
	// mutation. Default unlimited.
	PropagationLimit int

	// DispatchCeiling is the engine's hard cap on callback dispatches
	// per chain, applied regardless of the configured limits.
	DispatchCeiling int

	// Logger receives engine diagnostics. Defaults to a nop logger.
	Logger *zap.Logger
}

// DefaultConfig returns the default limits: recursion 1, unlimited
// propagation.
func DefaultConfig() *Config {
	return &Config{
		RecursionLimit:   propagation.DefaultRecursionLimit,
		PropagationLimit: propagation.Unlimited,
		DispatchCeiling:  propagation.DefaultDispatchCeiling,
	}
}

// KB is one knowledge base instance. Handles (Node, Edge, Rule) hold a
// reference back to their owning KB; there is no implicit global
// state, and two KBs never share anything.
type KB struct {
	store  *graph.Store
	budget *propagation.Budget
	logger *zap.Logger

	// rules is append-ordered; deleted entries are tombstoned so
	// later indexes stay stable.
	rules     []*Rule
	ruleIndex map[string]int // canonical statement -> index

	// negatives are auxiliary training signal, never in the graph.
	negatives []*logic.Term

	nodes map[string]*Node
	edges map[graph.Triple]*Edge

	scorer embed.Scorer
}

// New creates an empty knowledge base. A nil config uses defaults.
func New(cfg *Config) *KB {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	budget := propagation.New()
	if cfg.RecursionLimit > 0 {
		budget.SetRecursionLimit(cfg.RecursionLimit)
	}
	if cfg.PropagationLimit > 0 {
		budget.SetPropagationLimit(cfg.PropagationLimit)
	}
	budget.SetDispatchCeiling(cfg.DispatchCeiling)
	return &KB{
		store:     graph.NewStore(),
		budget:    budget,
		logger:    logger,
		ruleIndex: make(map[string]int),
		nodes:     make(map[string]*Node),
		edges:     make(map[graph.Triple]*Edge),
	}
}

// SetRecursionLimit caps re-entrant writes to the same entity within
// one propagation chain. Complex arrangements can propagate back to
// themselves; this permits it only so many times.
func (kb *KB) SetRecursionLimit(n int) { kb.budget.SetRecursionLimit(n) }

// SetPropagationLimit caps how far one attribute change may ripple
// through the graph. Zero behaves like a permanent DontPropagate;
// propagation.Unlimited restores full network effects.
func (kb *KB) SetPropagationLimit(n int) { kb.budget.SetPropagationLimit(n) }

// DontPropagate runs fn with watch and rule-hook dispatch suppressed.
// The suppression flag is restored even when fn panics.
func (kb *KB) DontPropagate(fn func()) {
	defer kb.budget.Suppress()()
	fn()
}

// Store parses and stores one statement: a fact, an inference rule, or
// a negative example ("~fact"). It returns the statement's ID.
// Re-storing an identical statement returns the existing ID without
// duplicating the rule or its edge.
func (kb *KB) Store(statement string) (RuleID, error) {
	return kb.StoreWithAttributes(statement, nil, nil)
}

// StoreWithAttributes stores a statement and sets initial attributes:
// nodeAttrs applies positionally to the head's arguments, edgeAttrs to
// the fact's edge. Attribute application here does not propagate; it
// is initial state, not a change. An edgeAttrs "truthiness" below zero
// turns the statement into a negative example. Edge attributes on an
// inference rule are rejected.
func (kb *KB) StoreWithAttributes(statement string, nodeAttrs []Attrs, edgeAttrs Attrs) (RuleID, error) {
	stmt, err := logic.ParseStatement(statement)
	if err != nil {
		return "", err
	}
	if tr, ok := edgeAttrs["truthiness"]; ok {
		if f, isNum := tr.Float(); isNum && f < 0 {
			stmt.Negative = true
		}
	}
	if stmt.Negative {
		kb.negatives = append(kb.negatives, stmt.Clause.Head)
		id := RuleID("~" + strconv.Itoa(len(kb.negatives)-1))
		kb.logger.Debug("stored negative example", zap.String("head", stmt.Clause.Head.String()))
		return id, nil
	}
	if !stmt.Clause.IsFact() && len(edgeAttrs) > 0 {
		return "", ErrEdgeAttrsOnRule
	}

	canonical := canonicalStatement(stmt.Clause)
	if idx, ok := kb.ruleIndex[canonical]; ok && kb.rules[idx] != nil {
		kb.applyStatementAttrs(stmt.Clause, nodeAttrs, edgeAttrs)
		return RuleID(strconv.Itoa(idx)), nil
	}

	idx := len(kb.rules)
	rule := &Rule{kb: kb, index: idx, clause: stmt.Clause, attrs: Attrs{}}
	kb.rules = append(kb.rules, rule)
	kb.ruleIndex[canonical] = idx

	kb.materialize(stmt.Clause.Head)
	for _, goal := range stmt.Clause.Goals {
		kb.materialize(goal)
	}
	kb.applyStatementAttrs(stmt.Clause, nodeAttrs, edgeAttrs)
	kb.logger.Debug("stored statement",
		zap.String("head", stmt.Clause.Head.String()),
		zap.Int("goals", len(stmt.Clause.Goals)),
		zap.Int("index", idx))
	return RuleID(strconv.Itoa(idx)), nil
}

// MustStore is Store for statements known to be well formed; it panics
// on error. Intended for fixtures and examples.
func (kb *KB) MustStore(statement string) RuleID {
	id, err := kb.Store(statement)
	if err != nil {
		panic(err)
	}
	return id
}

// canonicalStatement is the dedup key for idempotent storage: the
// parsed, whitespace-normalized clause text.
func canonicalStatement(c *logic.Clause) string {
	if c.IsFact() {
		return c.Head.String()
	}
	goals := make([]string, len(c.Goals))
	for i, g := range c.Goals {
		goals[i] = g.String()
	}
	return c.Head.String() + ":-" + strings.Join(goals, ",")
}

// materialize applies a stored term's graph side effects: an entity
// for every top-level argument and, for two-argument terms, a relation
// edge tagged with the predicate. When an edge endpoint is newly
// created, the other endpoint's new-neighbor callback fires
// synchronously unless propagation is suppressed.
func (kb *KB) materialize(t *logic.Term) {
	if len(t.Args) == 0 {
		return
	}
	created := make([]bool, len(t.Args))
	for i, arg := range t.Args {
		created[i] = kb.store.AddEntity(arg.String())
	}
	if len(t.Args) != 2 {
		return
	}
	sub, ob := t.Args[0].String(), t.Args[1].String()
	kb.store.AddRelation(sub, t.Pred, ob)
	if kb.budget.Suppressed() {
		return
	}
	// A fresh endpoint is announced to the existing one.
	if created[0] {
		kb.notifyNewNeighbor(ob, sub)
	}
	if created[1] {
		kb.notifyNewNeighbor(sub, ob)
	}
}

// notifyNewNeighbor fires owner's new-neighbor callback with the node
// that just appeared next to it. A panicking callback is contained; it
// must not fail the Store call that triggered it.
func (kb *KB) notifyNewNeighbor(owner, neighbor string) {
	n, ok := kb.nodes[owner]
	if !ok || n.newNeighbor == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			kb.logger.Warn("new-neighbor callback panicked",
				zap.String("node", owner), zap.Any("panic", r))
		}
	}()
	arrived, err := kb.Node(neighbor)
	if err != nil {
		return
	}
	n.newNeighbor(arrived)
}

// applyStatementAttrs sets the initial attributes supplied with a
// stored statement. These writes bypass propagation.
func (kb *KB) applyStatementAttrs(c *logic.Clause, nodeAttrs []Attrs, edgeAttrs Attrs) {
	for i, attrs := range nodeAttrs {
		if i >= len(c.Head.Args) {
			break
		}
		name := c.Head.Args[i].String()
		for k, v := range attrs {
			if _, err := kb.store.SetEntityAttr(name, k, v); err != nil {
				kb.logger.Warn("node attribute skipped", zap.String("node", name), zap.Error(err))
			}
		}
	}
	if len(edgeAttrs) > 0 && len(c.Head.Args) == 2 {
		t := graph.Triple{
			Subject:   c.Head.Args[0].String(),
			Predicate: c.Head.Pred,
			Object:    c.Head.Args[1].String(),
		}
		for k, v := range edgeAttrs {
			if _, err := kb.store.SetRelationAttr(t, k, v); err != nil {
				kb.logger.Warn("edge attribute skipped", zap.Error(err))
			}
		}
	}
}

// Delete removes a stored statement by ID. Rule entries are
// tombstoned, so other rules keep their indexes; the edge of a ground
// two-argument fact is removed with it. Deleting an unknown or
// already-deleted ID returns false.
func (kb *KB) Delete(id RuleID) bool {
	if rest, ok := strings.CutPrefix(string(id), "~"); ok {
		n, err := strconv.Atoi(rest)
		if err != nil || n < 0 || n >= len(kb.negatives) || kb.negatives[n] == nil {
			return false
		}
		kb.negatives[n] = nil
		return true
	}
	n, ok := id.Index()
	if !ok || n < 0 || n >= len(kb.rules) || kb.rules[n] == nil {
		return false
	}
	rule := kb.rules[n]
	kb.rules[n] = nil
	delete(kb.ruleIndex, canonicalStatement(rule.clause))
	head := rule.clause.Head
	if rule.clause.IsFact() && len(head.Args) == 2 && !head.Args[0].IsVariable() && !head.Args[1].IsVariable() {
		kb.store.RemoveRelation(head.Args[0].String(), head.Pred, head.Args[1].String())
	}
	return true
}

// Result is one query answer: either a map of variable bindings, or a
// ground proof with no variables (Truth set, empty bindings).
type Result struct {
	Truth    bool
	Bindings map[string]string
}

// Query parses statement and returns the lazy answer sequence. The
// sequence is restartable: ranging it again re-runs the search against
// the rules stored at that point. Parse errors surface immediately.
//
// Example:
//
//	answers, err := kb.Query("winner(X)")
//	if err != nil {
//		return err
//	}
//	for res := range answers {
//		fmt.Println(res.Bindings["X"])
//	}
func (kb *KB) Query(statement string) (iter.Seq[Result], error) {
	q, err := logic.ParseQuery(statement)
	if err != nil {
		return nil, err
	}
	return func(yield func(Result) bool) {
		for env := range logic.Solve(q, kb.clauses()) {
			if !yield(resultFromEnv(env)) {
				return
			}
		}
	}, nil
}

// MustQuery is Query for statements known to be well formed; it panics
// on error.
func (kb *KB) MustQuery(statement string) iter.Seq[Result] {
	seq, err := kb.Query(statement)
	if err != nil {
		panic(err)
	}
	return seq
}

// QueryAll drains a query into a slice.
func (kb *KB) QueryAll(statement string) ([]Result, error) {
	seq, err := kb.Query(statement)
	if err != nil {
		return nil, err
	}
	var out []Result
	for res := range seq {
		out = append(out, res)
	}
	return out, nil
}

func resultFromEnv(env logic.Bindings) Result {
	if len(env) == 0 {
		return Result{Truth: true}
	}
	bindings := make(map[string]string, len(env))
	for name, term := range env {
		bindings[name] = term.String()
	}
	return Result{Bindings: bindings}
}

// clauses snapshots the live rule list for one resolution run.
// Tombstones are skipped.
func (kb *KB) clauses() []*logic.Clause {
	out := make([]*logic.Clause, 0, len(kb.rules))
	for _, r := range kb.rules {
		if r != nil {
			out = append(out, r.clause)
		}
	}
	return out
}

// queryTerm answers an already-parsed term; used by rule bookkeeping.
func (kb *KB) queryTerm(t *logic.Term) iter.Seq[logic.Bindings] {
	return logic.Solve(t, kb.clauses())
}

// Solidify queries pred(X, Y) and stores every inferred answer as a
// plain fact, making rule conclusions part of the graph. It returns
// the number of new facts stored.
func (kb *KB) Solidify(pred string) (int, error) {
	results, err := kb.QueryAll(fmt.Sprintf("%s(X, Y)", pred))
	if err != nil {
		return 0, err
	}
	stored := 0
	for _, res := range results {
		x, okX := res.Bindings["X"]
		y, okY := res.Bindings["Y"]
		if !okX || !okY {
			continue
		}
		statement := fmt.Sprintf("%s(%s, %s)", pred, x, y)
		if _, ok := kb.ruleIndex[canonicalStatement(&logic.Clause{Head: mustParseTerm(statement)})]; ok {
			continue
		}
		if _, err := kb.Store(statement); err != nil {
			return stored, err
		}
		stored++
	}
	return stored, nil
}

func mustParseTerm(s string) *logic.Term {
	t, err := logic.ParseQuery(s)
	if err != nil {
		panic(err)
	}
	return t
}

// SetScorer attaches the external embedding model's probability
// estimator. The engine neither knows nor cares how the probability is
// computed.
func (kb *KB) SetScorer(s embed.Scorer) { kb.scorer = s }

// EstimateTripleProb asks the attached scorer for the probability of
// (sub, pred, ob). It fails with embed.ErrModelNotReady before a
// scorer is attached, and with ErrUnknownEntity for names that were
// never stored.
func (kb *KB) EstimateTripleProb(sub, pred, ob string) (float64, error) {
	if kb.scorer == nil {
		return 0, embed.ErrModelNotReady
	}
	if !kb.store.HasEntity(sub) {
		return 0, fmt.Errorf("subject %q: %w", sub, ErrUnknownEntity)
	}
	if !kb.store.HasEntity(ob) {
		return 0, fmt.Errorf("object %q: %w", ob, ErrUnknownEntity)
	}
	return kb.scorer.EstimateTripleProb(sub, pred, ob)
}

// Stats summarizes the knowledge base.
type Stats struct {
	Entities  int
	Relations int
	Rules     int
	Facts     int
	Negatives int
}

// Stats returns current counts. Tombstoned entries are excluded.
func (kb *KB) Stats() Stats {
	s := Stats{
		Entities:  kb.store.EntityCount(),
		Relations: kb.store.RelationCount(),
	}
	for _, r := range kb.rules {
		if r == nil {
			continue
		}
		if r.clause.IsFact() {
			s.Facts++
		} else {
			s.Rules++
		}
	}
	for _, n := range kb.negatives {
		if n != nil {
			s.Negatives++
		}
	}
	return s
}
