package modal

import "fmt"

// Frame is the read-only view of a Kripke model the evaluator needs.
type Frame interface {
	// Holds reports whether prop is in the valuation of world. Worlds without
	// a valuation hold nothing.
	Holds(world, prop string) bool
	// Successors returns the worlds accessible from world.
	Successors(world string) []string
}

// CurrentFrame is a Frame with a designated current world.
type CurrentFrame interface {
	Frame
	CurrentWorld() string
}

// Evaluate computes the truth of f at world. It has no side effects.
// Necessity with no accessible worlds is vacuously true; possibility with no
// accessible worlds is false.
func Evaluate(m Frame, world string, f Formula) bool {
	switch n := f.(type) {
	case Proposition:
		return m.Holds(world, n.Name)
	case Negation:
		return !Evaluate(m, world, n.F)
	case Conjunction:
		l := Evaluate(m, world, n.Left)
		r := Evaluate(m, world, n.Right)
		return l && r
	case Disjunction:
		l := Evaluate(m, world, n.Left)
		r := Evaluate(m, world, n.Right)
		return l || r
	case Implication:
		return !Evaluate(m, world, n.Left) || Evaluate(m, world, n.Right)
	case Equivalence:
		return Evaluate(m, world, n.Left) == Evaluate(m, world, n.Right)
	case Necessity:
		for _, u := range m.Successors(world) {
			if !Evaluate(m, u, n.F) {
				return false
			}
		}
		return true
	case Possibility:
		for _, u := range m.Successors(world) {
			if Evaluate(m, u, n.F) {
				return true
			}
		}
		return false
	}
	panic(fmt.Sprintf("modal: unknown formula type %T", f))
}

// Check parses source and evaluates it at the frame's current world.
func Check(m CurrentFrame, source string) (bool, error) {
	f, err := Parse(source)
	if err != nil {
		return false, err
	}
	return Evaluate(m, m.CurrentWorld(), f), nil
}
