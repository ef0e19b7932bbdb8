// Package diagnose correlates pending anomaly reports into a single causal
// explanation. A Diagnoser asks the oracle for a theory, validates the root
// cause against the rule set, verifies the direction against the connectivity
// index and, when the direction is physically impossible, retries once with
// root cause and symptom swapped.
package diagnose

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"plantdiag/internal/kripke"
	"plantdiag/internal/lattice"
	"plantdiag/internal/logging"
	"plantdiag/internal/oracle"
	"plantdiag/internal/rules"
)

// State is a node of the diagnosis state machine.
type State string

const (
	StateCollect         State = "COLLECT"
	StateHypothesize     State = "HYPOTHESIZE"
	StateValidate        State = "VALIDATE"
	StateVerify          State = "VERIFY"
	StateReverseValidate State = "REVERSE_VALIDATE"
	StateReverseVerify   State = "REVERSE_VERIFY"
	StateResolved        State = "RESOLVED"
	StateRejected        State = "REJECTED"
)

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool { return s == StateResolved || s == StateRejected }

// Report is one pending anomaly report.
type Report struct {
	Sender          string  `json:"sender"`
	PV              string  `json:"pv"`
	Text            string  `json:"report"`
	SuspectedSystem string  `json:"suspected_system,omitempty"`
	Value           float64 `json:"value"`
	Tick            int     `json:"tick"`
}

// Transition records one step of the state machine and why it was taken.
type Transition struct {
	From   State  `json:"from"`
	To     State  `json:"to"`
	Reason string `json:"reason"`
}

// Outcome is the result of one diagnosis attempt.
type Outcome struct {
	State         State         `json:"state"`
	Root          string        `json:"root,omitempty"`
	Symptom       string        `json:"symptom,omitempty"`
	Theory        oracle.Theory `json:"theory"`
	Reversed      bool          `json:"reversed"`
	BeliefUpdated bool          `json:"belief_updated"`
	Trail         []Transition  `json:"trail"`
}

// Resolved returns [root, symptom] for a resolved outcome and nil otherwise.
func (o Outcome) Resolved() []string {
	if o.State != StateResolved {
		return nil
	}
	return []string{o.Root, o.Symptom}
}

// Reason returns the reason of the last transition.
func (o Outcome) Reason() string {
	if len(o.Trail) == 0 {
		return ""
	}
	return o.Trail[len(o.Trail)-1].Reason
}

// Config holds the collaborators of a Diagnoser. Rules, Index and Oracle are
// required; nil Senders means DefaultSenders.
type Config struct {
	Rules   *rules.Set
	Index   *lattice.Index
	Oracle  oracle.Oracle
	Senders SenderMap
	Logger  *slog.Logger
	Metrics *Metrics
}

// Diagnoser runs the diagnosis state machine. It holds no mutable state and
// may be shared by concurrent attempts over different beliefs.
type Diagnoser struct {
	rules   *rules.Set
	index   *lattice.Index
	oracle  oracle.Oracle
	senders SenderMap
	logger  *slog.Logger
	metrics *Metrics
}

// New creates a Diagnoser.
func New(cfg Config) *Diagnoser {
	d := &Diagnoser{
		rules:   cfg.Rules,
		index:   cfg.Index,
		oracle:  cfg.Oracle,
		senders: cfg.Senders,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
	}
	if d.senders == nil {
		d.senders = DefaultSenders()
	}
	if d.index == nil {
		d.index = lattice.Default()
	}
	if d.logger == nil {
		d.logger = logging.Discard()
	}
	return d
}

// attempt carries one run of the state machine.
type attempt struct {
	d      *Diagnoser
	ctx    context.Context
	belief *Belief
	out    Outcome
	state  State
}

func (a *attempt) to(next State, format string, args ...any) {
	reason := fmt.Sprintf(format, args...)
	a.out.Trail = append(a.out.Trail, Transition{From: a.state, To: next, Reason: reason})
	a.d.logger.DebugContext(a.ctx, "diagnosis transition", "from", a.state, "to", next, "reason", reason)
	a.state = next
}

func (a *attempt) finish() Outcome {
	a.out.State = a.state
	a.d.metrics.finished(a.state)
	if a.state == StateResolved {
		a.d.logger.InfoContext(a.ctx, "diagnosis resolved", "root", a.out.Root, "symptom", a.out.Symptom, "reversed", a.out.Reversed)
	} else {
		a.d.logger.InfoContext(a.ctx, "diagnosis rejected", "reason", a.out.Reason())
	}
	return a.out
}

func (a *attempt) model() *kripke.Model {
	if a.belief == nil {
		return kripke.New(nil, nil, nil, "")
	}
	return a.belief.Model()
}

// Diagnose runs one attempt over the pending reports, keyed by sender. The
// reports map is not modified; on RESOLVED the caller removes the two resolved
// senders. belief receives the oracle's updated model on success and is left
// untouched otherwise.
func (d *Diagnoser) Diagnose(ctx context.Context, belief *Belief, reports map[string]Report) Outcome {
	a := &attempt{d: d, ctx: ctx, belief: belief, state: StateCollect}

	if len(reports) < 2 {
		a.to(StateRejected, "need at least two pending reports to correlate, have %d", len(reports))
		return a.finish()
	}
	senders := make([]string, 0, len(reports))
	for s := range reports {
		senders = append(senders, s)
	}
	sort.Strings(senders)
	a.to(StateHypothesize, "collected %d reports from %v", len(senders), senders)

	theory, ok := a.hypothesize(senders, reports)
	if !ok {
		return a.finish()
	}
	a.out.Theory = theory
	root, symptom := theory.RootCause, theory.Symptom

	a.to(StateValidate, "theory: %s causes %s", root, symptom)
	if !a.validate(root) {
		return a.finish()
	}
	a.to(StateVerify, "%s is consistent with the rule set", rules.FaultProposition(root))
	verified, conn := a.verify(root, symptom)
	if verified {
		a.resolve(root, symptom, conn.Reason, theory.Explanation)
		return a.finish()
	}
	if a.state.Terminal() {
		return a.finish()
	}

	d.metrics.reversed()
	a.to(StateReverseValidate, "forward direction failed (%s); trying %s causes %s", conn.Reason, symptom, root)
	root, symptom = symptom, root
	a.out.Reversed = true
	if !a.validate(root) {
		return a.finish()
	}
	a.to(StateReverseVerify, "%s is consistent with the rule set", rules.FaultProposition(root))
	verified, conn = a.verify(root, symptom)
	if !verified {
		if !a.state.Terminal() {
			a.to(StateRejected, "reversed direction failed too: %s", conn.Reason)
		}
		return a.finish()
	}
	narrative := fmt.Sprintf("After reversing the initial theory, the corrected root cause is %s and the symptom is %s. This is physically plausible.", root, symptom)
	a.out.Theory = oracle.Theory{RootCause: root, Symptom: symptom, Explanation: narrative}
	a.resolve(root, symptom, conn.Reason, narrative)
	return a.finish()
}

func (a *attempt) hypothesize(senders []string, reports map[string]Report) (oracle.Theory, bool) {
	connectivity := a.d.index.RelationContext(a.d.senders.Components(senders))
	summaries := make(map[string]oracle.ReportSummary, len(reports))
	for s, r := range reports {
		summaries[s] = oracle.ReportSummary{Report: r.Text, SuspectedSystem: r.SuspectedSystem}
	}

	theory, err := a.d.oracle.SynthesizeTheory(a.ctx, summaries, connectivity)
	if err != nil {
		a.d.metrics.oracleFailed("synthesize theory")
		a.to(StateRejected, "oracle could not synthesize a theory: %v", err)
		return oracle.Theory{}, false
	}
	switch {
	case theory.RootCause == "" || theory.Symptom == "":
		a.to(StateRejected, "oracle theory is missing a root cause or symptom")
		return theory, false
	case theory.RootCause == theory.Symptom:
		a.to(StateRejected, "oracle theory names %s as both root cause and symptom", theory.RootCause)
		return theory, false
	}
	for _, s := range []string{theory.RootCause, theory.Symptom} {
		if _, ok := reports[s]; !ok {
			a.to(StateRejected, "oracle theory names %q, which has no pending report", s)
			return theory, false
		}
	}
	return theory, true
}

func (a *attempt) validate(root string) bool {
	v := a.d.rules.Check(a.model(), rules.FaultProposition(root))
	if !v.Consistent {
		a.to(StateRejected, "%s violates rules %q", v.Candidate, v.Violated)
		return false
	}
	return true
}

// verify checks root -> symptom against the connectivity index. A sender with
// no configuration rejects the attempt outright, since swapping cannot help.
func (a *attempt) verify(root, symptom string) (bool, lattice.Connection) {
	up, ok := a.d.senders[root]
	if !ok {
		a.to(StateRejected, "no connectivity configuration for sender %q", root)
		return false, lattice.Connection{}
	}
	down, ok := a.d.senders[symptom]
	if !ok {
		a.to(StateRejected, "no connectivity configuration for sender %q", symptom)
		return false, lattice.Connection{}
	}
	conn := a.d.index.AreConnected(up.PV, down.PV, a.d.senders.RelationOf(root))
	return conn.Connected, conn
}

func (a *attempt) resolve(root, symptom, reason, info string) {
	a.out.Root, a.out.Symptom = root, symptom
	a.out.BeliefUpdated = a.updateBelief(info)
	a.to(StateResolved, "%s", reason)
}

// updateBelief replaces the belief with the oracle's revision. Any failure
// keeps the prior model and does not change the verdict.
func (a *attempt) updateBelief(info string) bool {
	if a.belief == nil {
		return false
	}
	next, err := a.d.oracle.UpdateBelief(a.ctx, a.belief.Model().ToSerializable(), info)
	if err != nil {
		a.d.metrics.oracleFailed("update belief")
		a.d.logger.WarnContext(a.ctx, "belief update failed, keeping prior model", "error", err)
		return false
	}
	if err := a.belief.ReplaceSerialized(next); err != nil {
		a.d.logger.WarnContext(a.ctx, "belief update rejected, keeping prior model", "error", err)
		return false
	}
	return true
}
