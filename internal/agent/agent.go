package agent

import (
	"context"
	"fmt"
	"log/slog"

	"plantdiag/internal/diagnose"
	"plantdiag/internal/kripke"
	"plantdiag/internal/logging"
	"plantdiag/internal/oracle"
)

// Agent monitors its role's process variables and holds a belief model.
type Agent struct {
	cfg    RoleConfig
	belief *diagnose.Belief
	oracle oracle.Oracle
	logger *slog.Logger
}

// New creates an agent for role, starting from the role's template model.
// A nil logger logs under the agent's name.
func New(role Role, o oracle.Oracle, logger *slog.Logger) (*Agent, error) {
	cfg := role.Config()
	m, err := kripke.FromSerializable(cfg.Template)
	if err != nil {
		return nil, fmt.Errorf("agent %s: template: %w", cfg.Name, err)
	}
	b, err := diagnose.NewBelief(m)
	if err != nil {
		return nil, fmt.Errorf("agent %s: %w", cfg.Name, err)
	}
	if logger == nil {
		logger = logging.New(cfg.Name)
	}
	return &Agent{cfg: cfg, belief: b, oracle: o, logger: logger}, nil
}

// Name is the sender name used on reports.
func (a *Agent) Name() string { return a.cfg.Name }

// Role returns the agent's role.
func (a *Agent) Role() Role { return a.cfg.Role }

// Config returns the agent's role configuration.
func (a *Agent) Config() RoleConfig { return a.cfg }

// Belief returns the agent's live belief.
func (a *Agent) Belief() *diagnose.Belief { return a.belief }

// CheckSignals reports the first monitored process variable in readings that
// lies outside its bounds, with the oracle's guess at the upstream system.
// An oracle failure degrades the guess to Unknown. Readings without a
// monitored variable are ignored.
func (a *Agent) CheckSignals(ctx context.Context, readings map[string]float64, tick int) (diagnose.Report, bool) {
	for _, th := range a.cfg.Monitored {
		v, ok := readings[th.PV]
		if !ok || th.Contains(v) {
			continue
		}
		text := AnomalyText(th, v)
		a.logger.InfoContext(ctx, "threshold breached", "pv", th.PV, "value", v, "tick", tick)

		h, err := oracle.HypothesisOrUnknown(ctx, a.oracle, text)
		if err != nil {
			a.logger.WarnContext(ctx, "hypothesis unavailable, using Unknown", "error", err)
		}
		return diagnose.Report{
			Sender:          a.cfg.Name,
			PV:              th.PV,
			Text:            text,
			SuspectedSystem: h.SuspectedSystem,
			Value:           v,
			Tick:            tick,
		}, true
	}
	return diagnose.Report{}, false
}

// AnomalyText renders the report text for a breached threshold.
func AnomalyText(th Threshold, v float64) string {
	return fmt.Sprintf("Anomaly detected on %s. Value is %g, which is outside the normal range (%g, %g).", th.PV, v, th.Low, th.High)
}

// UpdateBelief asks the oracle to revise the belief with info. The revision
// replaces the model only if it passes validation; otherwise the prior model
// is kept and the error returned.
func (a *Agent) UpdateBelief(ctx context.Context, info string) error {
	next, err := a.oracle.UpdateBelief(ctx, a.belief.Model().ToSerializable(), info)
	if err != nil {
		return fmt.Errorf("agent %s: update belief: %w", a.cfg.Name, err)
	}
	if err := a.belief.ReplaceSerialized(next); err != nil {
		return fmt.Errorf("agent %s: rejected belief update: %w", a.cfg.Name, err)
	}
	a.logger.InfoContext(ctx, "belief updated", "current_world", a.belief.Model().CurrentWorld())
	return nil
}
