// Package logic implements the deductive core of MuninDB: Prolog-style
// terms, two-environment unification, and a bounded breadth-first SLD
// resolution engine.
//
// The package is deliberately pure: parsing and solving never touch the
// graph store. Statement storage side effects (entity and relation
// creation) are the knowledge base's job, not the parser's.
//
// Terms follow the conventional textual form:
//
//	pred(arg1, arg2, ...)    compound term
//	atom                     zero-argument constant
//	Variable                 uppercase-initial identifier, unbound
//	[a, b|Rest]              list literal (desugars to cons cells)
//
// Example:
//
//	clause, err := logic.ParseStatement("outfit(X, Y) :- top(X), bottom(Y)")
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println(clause.Head) // outfit(X, Y)
package logic

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ErrSyntax reports malformed statement text: unbalanced delimiters,
// an empty predicate, or more than one ":-" in a statement.
var ErrSyntax = errors.New("syntax error")

// ListPred is the reserved predicate for the right-nested cons
// representation of list literals. The empty list is a ListPred term
// with no arguments.
const ListPred = "__list__"

// Term is a predicate name plus an ordered sequence of argument terms.
// A zero-argument term whose name starts with an uppercase letter is a
// variable; every other zero-argument term is an atom.
//
// Terms are treated as immutable once constructed. Unification never
// rewrites a term in place; bindings live in a separate environment.
type Term struct {
	Pred string
	Args []*Term
}

// Atom returns a zero-argument constant term.
func Atom(name string) *Term {
	return &Term{Pred: name}
}

// IsVariable reports whether t is an unbound-variable placeholder
// (zero arguments, uppercase first rune).
func (t *Term) IsVariable() bool {
	if t == nil || len(t.Args) != 0 || t.Pred == "" {
		return false
	}
	r, _ := utf8.DecodeRuneInString(t.Pred)
	return unicode.IsUpper(r)
}

// IsList reports whether t is a cons cell or the empty list.
func (t *Term) IsList() bool {
	return t != nil && t.Pred == ListPred
}

// Equal reports structural equality.
func (t *Term) Equal(other *Term) bool {
	if t == nil || other == nil {
		return t == other
	}
	if t.Pred != other.Pred || len(t.Args) != len(other.Args) {
		return false
	}
	for i := range t.Args {
		if !t.Args[i].Equal(other.Args[i]) {
			return false
		}
	}
	return true
}

// String renders the term back into statement syntax. List cons cells
// are re-sugared into literal form, so parsing and printing round-trip.
func (t *Term) String() string {
	if t == nil {
		return ""
	}
	if t.Pred == ListPred {
		if len(t.Args) == 0 {
			return "[]"
		}
		tail := t.Args[1]
		switch {
		case tail.IsList() && len(tail.Args) == 0:
			return fmt.Sprintf("[%s]", t.Args[0])
		case tail.IsList():
			inner := tail.String()
			return fmt.Sprintf("[%s,%s", t.Args[0], inner[1:])
		default:
			return fmt.Sprintf("[%s|%s]", t.Args[0], tail)
		}
	}
	if len(t.Args) == 0 {
		return t.Pred
	}
	parts := make([]string, len(t.Args))
	for i, a := range t.Args {
		parts[i] = a.String()
	}
	return fmt.Sprintf("%s(%s)", t.Pred, strings.Join(parts, ", "))
}

// Clause is a rule head with an optional body. A clause with no goals
// is a fact.
type Clause struct {
	Head  *Term
	Goals []*Term
}

// IsFact reports whether the clause has an empty body.
func (c *Clause) IsFact() bool {
	return len(c.Goals) == 0
}

// String renders the clause as its head, matching the lookup form used
// by rule-by-definition addressing.
func (c *Clause) String() string {
	return c.Head.String()
}

// Statement is one parsed line of input: a clause plus the negative
// marker. Negative statements (leading "~") are auxiliary training
// signal only; they are never materialized in the graph and cannot be
// queried.
type Statement struct {
	Clause   *Clause
	Negative bool
}

// stripWhitespace removes every whitespace rune. Identifiers carry no
// embedded spaces, so this is a plain normalization pass before
// splitting.
func stripWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if !unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// balanced verifies that parentheses and brackets nest correctly.
func balanced(s string) bool {
	depth := 0
	for _, r := range s {
		switch r {
		case '(', '[':
			depth++
		case ')', ']':
			depth--
			if depth < 0 {
				return false
			}
		}
	}
	return depth == 0
}

// splitTop splits s on sep at nesting depth zero. Separators inside
// parentheses or brackets are left alone.
func splitTop(s string, sep byte) []string {
	var parts []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '[':
			depth++
		case ')', ']':
			depth--
		case sep:
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, s[start:])
	return parts
}

// ParseTerm parses a single term: an atom, a variable, a compound
// term, or a list literal. The input must already be whitespace-free;
// use ParseStatement for raw statement text.
func ParseTerm(expr string) (*Term, error) {
	if expr == "" {
		return nil, fmt.Errorf("empty term: %w", ErrSyntax)
	}
	if !balanced(expr) {
		return nil, fmt.Errorf("unbalanced delimiters in %q: %w", expr, ErrSyntax)
	}
	switch {
	case expr[len(expr)-1] == ']':
		return parseList(expr)
	case expr[len(expr)-1] == ')':
		open := strings.IndexByte(expr, '(')
		if open <= 0 {
			return nil, fmt.Errorf("missing predicate in %q: %w", expr, ErrSyntax)
		}
		pred := expr[:open]
		if strings.ContainsAny(pred, "[]") {
			return nil, fmt.Errorf("invalid predicate %q: %w", pred, ErrSyntax)
		}
		body := expr[open+1 : len(expr)-1]
		if body == "" {
			return nil, fmt.Errorf("empty argument list in %q: %w", expr, ErrSyntax)
		}
		args, err := parseArgs(body)
		if err != nil {
			return nil, err
		}
		return &Term{Pred: pred, Args: args}, nil
	case strings.ContainsAny(expr, "()[]"):
		return nil, fmt.Errorf("stray delimiter in %q: %w", expr, ErrSyntax)
	default:
		return Atom(expr), nil
	}
}

func parseArgs(body string) ([]*Term, error) {
	raw := splitTop(body, ',')
	args := make([]*Term, 0, len(raw))
	for _, part := range raw {
		arg, err := ParseTerm(part)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}
	return args, nil
}

// parseList desugars "[a, b|Tail]" into cons cells. A proper list
// folds right into nested ListPred pairs terminated by the empty list;
// a "|" tail becomes the second argument of the final cell.
func parseList(expr string) (*Term, error) {
	if expr[0] != '[' {
		return nil, fmt.Errorf("malformed list %q: %w", expr, ErrSyntax)
	}
	inner := expr[1 : len(expr)-1]
	if inner == "" {
		return &Term{Pred: ListPred}, nil
	}
	headtail := splitTop(inner, '|')
	if len(headtail) > 2 {
		return nil, fmt.Errorf("multiple tails in %q: %w", expr, ErrSyntax)
	}
	list := &Term{Pred: ListPred}
	if len(headtail) == 2 {
		tail, err := ParseTerm(headtail[1])
		if err != nil {
			return nil, err
		}
		list = tail
	}
	elems := splitTop(headtail[0], ',')
	for i := len(elems) - 1; i >= 0; i-- {
		elem, err := ParseTerm(elems[i])
		if err != nil {
			return nil, err
		}
		list = &Term{Pred: ListPred, Args: []*Term{elem, list}}
	}
	return list, nil
}

// ParseQuery parses a bare term for querying, stripping whitespace
// first.
func ParseQuery(text string) (*Term, error) {
	return ParseTerm(stripWhitespace(text))
}

// ParseStatement parses one stored statement: a fact, an inference
// rule ("head :- goal, goal, ..."), or a negative example ("~fact").
func ParseStatement(text string) (*Statement, error) {
	s := stripWhitespace(text)
	if s == "" {
		return nil, fmt.Errorf("empty statement: %w", ErrSyntax)
	}
	stmt := &Statement{}
	if s[0] == '~' {
		stmt.Negative = true
		s = s[1:]
		if s == "" {
			return nil, fmt.Errorf("bare negative marker: %w", ErrSyntax)
		}
	}
	parts := strings.Split(s, ":-")
	if len(parts) > 2 {
		return nil, fmt.Errorf("statement %q has %d clause separators: %w", text, len(parts)-1, ErrSyntax)
	}
	head, err := ParseTerm(parts[0])
	if err != nil {
		return nil, err
	}
	clause := &Clause{Head: head}
	if len(parts) == 2 {
		if stmt.Negative {
			return nil, fmt.Errorf("negative examples must be facts: %w", ErrSyntax)
		}
		if parts[1] == "" {
			return nil, fmt.Errorf("empty rule body in %q: %w", text, ErrSyntax)
		}
		goals, err := parseArgs(parts[1])
		if err != nil {
			return nil, err
		}
		clause.Goals = goals
	}
	stmt.Clause = clause
	return stmt, nil
}
