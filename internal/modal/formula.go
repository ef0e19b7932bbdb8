// Package modal implements the propositional modal logic used for belief
// rules: a formula AST, a recursive-descent parser for the textual grammar and
// an evaluator over any frame that exposes valuations and successors.
//
// Grammar, lowest precedence first:
//
//	equivalence  := implication ("<->" implication)*
//	implication  := disjunction ("->" disjunction)*
//	disjunction  := conjunction ("|" conjunction)*
//	conjunction  := negation ("&" negation)*
//	negation     := "~" negation | modal
//	modal        := "[]" negation | "<>" negation | atom
//	atom         := IDENT | "(" equivalence ")"
//
// Chains of one binary operator fold to the left.
package modal

// Formula is an immutable modal logic formula. The set of implementations is
// closed to this package.
type Formula interface {
	// String renders the formula fully parenthesized; the output parses back
	// to an equal formula.
	String() string
	isFormula()
}

// Proposition is an atomic proposition, true in a world whose valuation lists it.
type Proposition struct {
	Name string
}

// Negation is ~F.
type Negation struct {
	F Formula
}

// Conjunction is Left & Right.
type Conjunction struct {
	Left, Right Formula
}

// Disjunction is Left | Right.
type Disjunction struct {
	Left, Right Formula
}

// Implication is Left -> Right.
type Implication struct {
	Left, Right Formula
}

// Equivalence is Left <-> Right.
type Equivalence struct {
	Left, Right Formula
}

// Necessity is []F: F holds in every accessible world.
type Necessity struct {
	F Formula
}

// Possibility is <>F: F holds in some accessible world.
type Possibility struct {
	F Formula
}

func (Proposition) isFormula() {}
func (Negation) isFormula()    {}
func (Conjunction) isFormula() {}
func (Disjunction) isFormula() {}
func (Implication) isFormula() {}
func (Equivalence) isFormula() {}
func (Necessity) isFormula()   {}
func (Possibility) isFormula() {}

func (p Proposition) String() string { return p.Name }
func (n Negation) String() string    { return "~" + n.F.String() }
func (c Conjunction) String() string { return binary(c.Left, "&", c.Right) }
func (d Disjunction) String() string { return binary(d.Left, "|", d.Right) }
func (i Implication) String() string { return binary(i.Left, "->", i.Right) }
func (e Equivalence) String() string { return binary(e.Left, "<->", e.Right) }
func (n Necessity) String() string   { return "[]" + n.F.String() }
func (p Possibility) String() string { return "<>" + p.F.String() }

func binary(l Formula, op string, r Formula) string {
	return "(" + l.String() + " " + op + " " + r.String() + ")"
}

// Propositions returns the distinct proposition names in f, in first-seen order.
func Propositions(f Formula) []string {
	var out []string
	seen := make(map[string]bool)
	var walk func(Formula)
	walk = func(f Formula) {
		switch n := f.(type) {
		case Proposition:
			if !seen[n.Name] {
				seen[n.Name] = true
				out = append(out, n.Name)
			}
		case Negation:
			walk(n.F)
		case Necessity:
			walk(n.F)
		case Possibility:
			walk(n.F)
		case Conjunction:
			walk(n.Left)
			walk(n.Right)
		case Disjunction:
			walk(n.Left)
			walk(n.Right)
		case Implication:
			walk(n.Left)
			walk(n.Right)
		case Equivalence:
			walk(n.Left)
			walk(n.Right)
		}
	}
	walk(f)
	return out
}
