package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"plantdiag/internal/kripke"
	"plantdiag/internal/logging"
)

// Completer sends one system + user prompt pair to a chat model that answers
// with a JSON object, and returns the raw answer text.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

const hypothesisSystemPrompt = `You are an expert accelerator physicist. Based on an anomaly report, hypothesize the likely upstream cause.
Respond with a JSON object with one key, "suspected_system", whose value is one of:
'Cooling', 'Power', 'Vacuum', 'Klystron', 'Magnet', 'Beam Instability', or 'Unknown'.
Example: a report of high RF cavity temperature suggests 'Cooling'.
Example: a report of low RF forward power suggests 'Klystron'.`

const theorySystemPrompt = `You are the diagnostics engine of a particle accelerator. Based on the agent reports below,
determine the most likely causal chain. Use the physical connection context, when given, to choose the causal
direction: a component providing a service is the upstream cause. Respond with a JSON object with three keys:
"root_cause_agent": the name of the agent reporting the root cause.
"symptom_agent": the name of the agent reporting the downstream symptom.
"causal_theory": a brief, human-readable explanation of the failure chain.`

const updateSystemPrompt = `You are a precise reasoning engine. Update a Kripke model based on new, definitive information.
Prune worlds and relations that are now impossible.
Respond only with the complete updated Kripke model as one JSON object with the keys
"worlds", "relations", "valuations" and "current_world".
"valuations" must map each world to a list of strings.`

// ChatOracle implements Oracle on top of any JSON-answering chat Completer.
type ChatOracle struct {
	completer Completer
	logger    *slog.Logger
}

// NewChatOracle wraps c. A nil logger discards output.
func NewChatOracle(c Completer, logger *slog.Logger) *ChatOracle {
	if logger == nil {
		logger = logging.Discard()
	}
	return &ChatOracle{completer: c, logger: logger}
}

// Hypothesize implements Oracle.
func (o *ChatOracle) Hypothesize(ctx context.Context, report string) (Hypothesis, error) {
	prompt := fmt.Sprintf("Anomaly Report: '%s'. What is the suspected upstream system?", report)
	raw, err := o.completer.Complete(ctx, hypothesisSystemPrompt, prompt)
	if err != nil {
		return Hypothesis{}, err
	}
	h, err := ParseHypothesis(raw).Get()
	if err != nil {
		o.logger.WarnContext(ctx, "hypothesis answer rejected", "error", err, "raw", raw)
		return Hypothesis{}, err
	}
	o.logger.InfoContext(ctx, "hypothesis", "suspected_system", h.SuspectedSystem)
	return h, nil
}

// SynthesizeTheory implements Oracle. Reports are listed in sender order.
func (o *ChatOracle) SynthesizeTheory(ctx context.Context, reports map[string]ReportSummary, connectivity string) (Theory, error) {
	raw, err := o.completer.Complete(ctx, theorySystemPrompt, TheoryPrompt(reports, connectivity))
	if err != nil {
		return Theory{}, err
	}
	th, err := ParseTheory(raw).Get()
	if err != nil {
		o.logger.WarnContext(ctx, "theory answer rejected", "error", err, "raw", raw)
		return Theory{}, err
	}
	o.logger.InfoContext(ctx, "causal theory", "root", th.RootCause, "symptom", th.Symptom)
	return th, nil
}

// TheoryPrompt renders the user prompt for theory synthesis.
func TheoryPrompt(reports map[string]ReportSummary, connectivity string) string {
	senders := make([]string, 0, len(reports))
	for s := range reports {
		senders = append(senders, s)
	}
	sort.Strings(senders)

	var b strings.Builder
	b.WriteString("Synthesize these reports into a single root cause theory:\n")
	for _, s := range senders {
		r := reports[s]
		suspected := r.SuspectedSystem
		if suspected == "" {
			suspected = "None"
		}
		fmt.Fprintf(&b, "- Report from '%s': %s. Suspected cause: '%s'.\n", s, r.Report, suspected)
	}
	if connectivity != "" {
		b.WriteString("\n")
		b.WriteString(connectivity)
		b.WriteString("\n")
	}
	return b.String()
}

// UpdateBelief implements Oracle.
func (o *ChatOracle) UpdateBelief(ctx context.Context, current kripke.Serialized, info string) (kripke.Serialized, error) {
	model, err := json.MarshalIndent(current, "", "  ")
	if err != nil {
		return kripke.Serialized{}, fmt.Errorf("encode current model: %w", err)
	}
	prompt := fmt.Sprintf("Current Kripke Model:\n%s\n\nNew Information:\n%q\n\nUpdate the model. What is the new Kripke model?", model, info)
	raw, err := o.completer.Complete(ctx, updateSystemPrompt, prompt)
	if err != nil {
		return kripke.Serialized{}, err
	}
	s, err := ParseModel(raw).Get()
	if err != nil {
		o.logger.WarnContext(ctx, "belief update answer rejected", "error", err, "raw", raw)
		return kripke.Serialized{}, err
	}
	return s, nil
}
