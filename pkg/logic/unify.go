package logic

// Bindings is one variable environment: variable name to bound term.
// Query and rule sides keep independent environments, so the same
// variable name can stand for different things in different clauses.
type Bindings map[string]*Term

// Clone returns a shallow copy. Terms are immutable, so sharing them
// between environments is safe.
func (b Bindings) Clone() Bindings {
	c := make(Bindings, len(b))
	for k, v := range b {
		c[k] = v
	}
	return c
}

// substituteDepthCap bounds substitution through binding chains. There
// is no occurs-check, so a pathological self-referential binding would
// otherwise recurse forever.
const substituteDepthCap = 512

// Resolve follows a variable's binding chain in env and returns the
// fully substituted term, or nil if t is an unbound variable. Inner
// variables that have no binding are left in place.
func Resolve(t *Term, env Bindings) *Term {
	return resolve(t, env, 0)
}

func resolve(t *Term, env Bindings, depth int) *Term {
	if depth > substituteDepthCap {
		return t
	}
	for t.IsVariable() {
		bound, ok := env[t.Pred]
		if !ok {
			return nil
		}
		t = bound
		depth++
		if depth > substituteDepthCap {
			return t
		}
	}
	if len(t.Args) == 0 {
		return t
	}
	args := make([]*Term, len(t.Args))
	for i, a := range t.Args {
		if sub := resolve(a, env, depth+1); sub != nil {
			args[i] = sub
		} else {
			args[i] = a
		}
	}
	return &Term{Pred: t.Pred, Args: args}
}

// Unify attempts first-order unification of src (under srcEnv) with
// dst (under dstEnv). Predicate name and arity must match; arguments
// unify pairwise, short-circuiting on the first failure. On success
// dstEnv has been extended in place; a failed attempt may leave
// partial bindings behind, matching the engine's one-shot use of
// environments (a failed candidate goal is discarded together with
// its environment).
//
// The handling of variables is deliberately asymmetric: an unbound
// variable on the src side constrains nothing and its binding flows
// back later, when the proved head is unified into the parent goal.
// There is no occurs-check. Both quirks are load-bearing for the
// resolution engine's scoping behavior and are kept as is.
func Unify(src *Term, srcEnv Bindings, dst *Term, dstEnv Bindings) bool {
	if src.Pred != dst.Pred || len(src.Args) != len(dst.Args) {
		return false
	}
	for i := range src.Args {
		if !unifyArg(src.Args[i], srcEnv, dst.Args[i], dstEnv) {
			return false
		}
	}
	return true
}

func unifyArg(sa *Term, srcEnv Bindings, da *Term, dstEnv Bindings) bool {
	sv := Resolve(sa, srcEnv)
	if sv == nil {
		// Unbound query-side variable: leave the goal unconstrained.
		return true
	}
	if da.IsVariable() {
		dv := Resolve(da, dstEnv)
		if dv == nil {
			dstEnv[da.Pred] = sv
			return true
		}
		da = dv
	}
	if sv.IsVariable() {
		// Resolve capped out on a cyclic chain; treat as mismatch.
		return false
	}
	return Unify(sv, srcEnv, da, dstEnv)
}
