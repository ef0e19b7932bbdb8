// Package mcp exposes the plant reasoning tools over the Model Context
// Protocol: modal formula evaluation, rule checks, lattice queries and
// background scenario runs.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"plantdiag/internal/diagnose"
	"plantdiag/internal/format"
	"plantdiag/internal/kripke"
	"plantdiag/internal/lattice"
	"plantdiag/internal/logging"
	"plantdiag/internal/modal"
	"plantdiag/internal/oracle"
	"plantdiag/internal/plant"
	"plantdiag/internal/rules"
)

// DefaultGetRunTimeout bounds how long get_run waits for a running session.
var DefaultGetRunTimeout = 10 * time.Second

// Options configures the reasoning collaborators behind the tools. Zero
// fields get the built-in defaults.
type Options struct {
	Rules     *rules.Set
	Index     *lattice.Index
	Senders   diagnose.SenderMap
	Scenarios []plant.Scenario
	Oracle    oracle.Oracle
	Ticks     int
	Seed      uint64
	Version   string
	Logger    *slog.Logger
}

// Server wraps the MCP SDK server and the single active run session.
type Server struct {
	MCPServer *sdkmcp.Server

	opts      Options
	diagnoser *diagnose.Diagnoser
	logger    *slog.Logger

	mu      sync.Mutex
	session *Session
}

// NewServer creates an MCP server with the reasoning and run tools registered.
func NewServer(opts Options) *Server {
	if opts.Rules == nil {
		opts.Rules = rules.Default()
	}
	if opts.Index == nil {
		opts.Index = lattice.Default()
	}
	if opts.Scenarios == nil {
		opts.Scenarios = plant.DefaultScenarios()
	}
	if opts.Oracle == nil {
		opts.Oracle = &oracle.Stub{}
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	if opts.Logger == nil {
		opts.Logger = logging.New("mcp")
	}

	s := &Server{
		opts:   opts,
		logger: opts.Logger,
		diagnoser: diagnose.New(diagnose.Config{
			Rules:   opts.Rules,
			Index:   opts.Index,
			Oracle:  opts.Oracle,
			Senders: opts.Senders,
			Logger:  opts.Logger,
		}),
	}
	s.MCPServer = sdkmcp.NewServer(
		&sdkmcp.Implementation{Name: "plantdiag", Version: opts.Version},
		nil,
	)
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "evaluate_formula",
		Description: "Evaluate a modal logic formula ([] necessity, <> possibility, ~ & | -> <->) at a world of a Kripke model.",
	}, s.handleEvaluateFormula)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "check_rules",
		Description: "Check whether adding a candidate proposition to the current world of a model keeps every physical rule true.",
	}, s.handleCheckRules)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "check_connection",
		Description: "Check whether the component owning an upstream sensor feeds a downstream component through a relation.",
	}, s.handleCheckConnection)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "resolve_component",
		Description: "Find the lattice component that owns a sensor or process variable.",
	}, s.handleResolveComponent)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "run_scenario",
		Description: "Start a fault scenario in the background. Returns a session ID for get_run and get_signals.",
	}, s.handleRunScenario)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "get_run",
		Description: "Get the result of a scenario run: resolved root/symptom pairs, unresolved reports and every diagnosis outcome.",
	}, s.handleGetRun)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "get_signals",
		Description: "Read the event log of a scenario run (faults, anomaly reports, diagnoses), optionally from an index onward.",
	}, s.handleGetSignals)
}

// --- Tool input/output types ---

type evaluateFormulaInput struct {
	Model   kripke.Serialized `json:"model" jsonschema:"Kripke model: worlds, relations as [from, to] pairs, valuations per world, current_world"`
	Formula string            `json:"formula" jsonschema:"modal formula, e.g. [] (cooling_ok -> rf_ok)"`
	World   string            `json:"world,omitempty" jsonschema:"world to evaluate at (default: the model's current world)"`
}

type evaluateFormulaOutput struct {
	Holds        bool     `json:"holds"`
	World        string   `json:"world"`
	Formula      string   `json:"formula"`
	Propositions []string `json:"propositions"`
}

type checkRulesInput struct {
	Model     kripke.Serialized `json:"model" jsonschema:"Kripke model to check against"`
	Candidate string            `json:"candidate,omitempty" jsonschema:"proposition to add to the current world"`
	Sender    string            `json:"sender,omitempty" jsonschema:"agent name; its fault proposition is used when candidate is empty"`
}

type checkRulesOutput struct {
	Candidate  string   `json:"candidate"`
	Consistent bool     `json:"consistent"`
	Violated   []string `json:"violated"`
	Rules      int      `json:"rules"`
}

type checkConnectionInput struct {
	Upstream   string `json:"upstream" jsonschema:"upstream sensor or process variable, e.g. COOL:valve_position"`
	Downstream string `json:"downstream" jsonschema:"downstream component id, e.g. RF:cavity"`
	Relation   string `json:"relation" jsonschema:"relation type: cooling, power, vacuum, beamline"`
}

type checkConnectionOutput struct {
	Connected bool   `json:"connected"`
	Reason    string `json:"reason"`
}

type resolveComponentInput struct {
	Sensor string `json:"sensor" jsonschema:"sensor or process variable id"`
}

type resolveComponentOutput struct {
	Found       bool     `json:"found"`
	Component   string   `json:"component,omitempty"`
	Type        string   `json:"type,omitempty"`
	Description string   `json:"description,omitempty"`
	Services    []string `json:"services,omitempty"`
}

type runScenarioInput struct {
	Scenario string `json:"scenario" jsonschema:"scenario id, name or key (e.g. 1, cooling_failure, 1_cooling_failure)"`
	Ticks    int    `json:"ticks,omitempty" jsonschema:"number of ticks (default from server config)"`
	Seed     int    `json:"seed,omitempty" jsonschema:"simulator noise seed"`
	Force    bool   `json:"force,omitempty" jsonschema:"cancel any running session and start fresh"`
}

type runScenarioOutput struct {
	SessionID string `json:"session_id"`
	Scenario  string `json:"scenario"`
	Status    string `json:"status"`
}

type getRunInput struct {
	SessionID string `json:"session_id" jsonschema:"session ID from run_scenario"`
	TimeoutMS int    `json:"timeout_ms,omitempty" jsonschema:"max wait in milliseconds for a running session"`
}

type outcomeOutput struct {
	State    string `json:"state"`
	Root     string `json:"root,omitempty"`
	Symptom  string `json:"symptom,omitempty"`
	Reversed bool   `json:"reversed"`
	Reason   string `json:"reason"`
}

type getRunOutput struct {
	Status     string          `json:"status"`
	Scenario   string          `json:"scenario"`
	Ticks      int             `json:"ticks"`
	Resolved   [][]string      `json:"resolved"`
	Unresolved []string        `json:"unresolved"`
	Outcomes   []outcomeOutput `json:"outcomes"`
	Summary    string          `json:"summary,omitempty"`
	Error      string          `json:"error,omitempty"`
}

type getSignalsInput struct {
	SessionID string `json:"session_id" jsonschema:"session ID from run_scenario"`
	Since     int    `json:"since,omitempty" jsonschema:"return signals from this index onward (0-based)"`
}

type getSignalsOutput struct {
	Signals []Signal `json:"signals"`
	Total   int      `json:"total"`
}

// --- Tool handlers ---

func (s *Server) handleEvaluateFormula(_ context.Context, _ *sdkmcp.CallToolRequest, input evaluateFormulaInput) (*sdkmcp.CallToolResult, evaluateFormulaOutput, error) {
	m, err := modelFrom(input.Model)
	if err != nil {
		return nil, evaluateFormulaOutput{}, err
	}
	f, err := modal.Parse(input.Formula)
	if err != nil {
		return nil, evaluateFormulaOutput{}, err
	}
	world := input.World
	if world == "" {
		world = m.CurrentWorld()
	}
	if !m.HasWorld(world) {
		return nil, evaluateFormulaOutput{}, fmt.Errorf("world %q is not in the model", world)
	}
	props := modal.Propositions(f)
	if props == nil {
		props = []string{}
	}
	return nil, evaluateFormulaOutput{
		Holds:        modal.Evaluate(m, world, f),
		World:        world,
		Formula:      f.String(),
		Propositions: props,
	}, nil
}

func (s *Server) handleCheckRules(_ context.Context, _ *sdkmcp.CallToolRequest, input checkRulesInput) (*sdkmcp.CallToolResult, checkRulesOutput, error) {
	candidate := input.Candidate
	if candidate == "" {
		if input.Sender == "" {
			return nil, checkRulesOutput{}, fmt.Errorf("candidate or sender is required")
		}
		candidate = rules.FaultProposition(input.Sender)
	}
	m, err := modelFrom(input.Model)
	if err != nil {
		return nil, checkRulesOutput{}, err
	}
	v := s.opts.Rules.Check(m, candidate)
	violated := v.Violated
	if violated == nil {
		violated = []string{}
	}
	return nil, checkRulesOutput{
		Candidate:  v.Candidate,
		Consistent: v.Consistent,
		Violated:   violated,
		Rules:      s.opts.Rules.Len(),
	}, nil
}

func (s *Server) handleCheckConnection(_ context.Context, _ *sdkmcp.CallToolRequest, input checkConnectionInput) (*sdkmcp.CallToolResult, checkConnectionOutput, error) {
	if input.Upstream == "" || input.Downstream == "" {
		return nil, checkConnectionOutput{}, fmt.Errorf("upstream and downstream are required")
	}
	c := s.opts.Index.AreConnected(input.Upstream, input.Downstream, input.Relation)
	return nil, checkConnectionOutput{Connected: c.Connected, Reason: c.Reason}, nil
}

func (s *Server) handleResolveComponent(_ context.Context, _ *sdkmcp.CallToolRequest, input resolveComponentInput) (*sdkmcp.CallToolResult, resolveComponentOutput, error) {
	id, ok := s.opts.Index.ResolveComponent(input.Sensor)
	if !ok {
		return nil, resolveComponentOutput{}, nil
	}
	out := resolveComponentOutput{Found: true, Component: id}
	if c, ok := s.opts.Index.Component(id); ok {
		out.Type = c.Type
		out.Description = c.Description
		out.Services = c.Services
	}
	return nil, out, nil
}

func (s *Server) handleRunScenario(_ context.Context, _ *sdkmcp.CallToolRequest, input runScenarioInput) (*sdkmcp.CallToolResult, runScenarioOutput, error) {
	sc, err := plant.FindScenario(s.opts.Scenarios, input.Scenario)
	if err != nil {
		return nil, runScenarioOutput{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session != nil {
		select {
		case <-s.session.Done():
			s.logger.Info("replacing finished session", "old_id", s.session.ID)
		default:
			if !input.Force {
				return nil, runScenarioOutput{}, fmt.Errorf("a scenario run is already in progress (id=%s)", s.session.ID)
			}
			s.logger.Warn("force-replacing active session", "old_id", s.session.ID)
			s.session.Cancel()
		}
	}

	ticks := input.Ticks
	if ticks <= 0 {
		ticks = s.opts.Ticks
	}
	seed := s.opts.Seed
	if input.Seed > 0 {
		seed = uint64(input.Seed)
	}
	s.session = NewSession(plant.RunConfig{
		Scenario:  sc,
		Ticks:     ticks,
		Seed:      seed,
		Oracle:    s.opts.Oracle,
		Diagnoser: s.diagnoser,
		Logger:    s.logger,
	}, s.logger)

	return nil, runScenarioOutput{
		SessionID: s.session.ID,
		Scenario:  s.session.Scenario,
		Status:    string(StateRunning),
	}, nil
}

func (s *Server) handleGetRun(ctx context.Context, _ *sdkmcp.CallToolRequest, input getRunInput) (*sdkmcp.CallToolResult, getRunOutput, error) {
	sess, err := s.getSession(input.SessionID)
	if err != nil {
		return nil, getRunOutput{}, err
	}

	timeout := DefaultGetRunTimeout
	if input.TimeoutMS > 0 {
		timeout = time.Duration(input.TimeoutMS) * time.Millisecond
	}
	finished, err := sess.Wait(ctx, timeout)
	if err != nil {
		return nil, getRunOutput{}, err
	}
	if !finished {
		return nil, getRunOutput{Status: string(StateRunning), Scenario: sess.Scenario}, nil
	}

	out := runOutput(sess.Result())
	out.Status = string(sess.GetState())
	out.Scenario = sess.Scenario
	if runErr := sess.Err(); runErr != nil {
		out.Error = runErr.Error()
	}
	return nil, out, nil
}

func (s *Server) handleGetSignals(_ context.Context, _ *sdkmcp.CallToolRequest, input getSignalsInput) (*sdkmcp.CallToolResult, getSignalsOutput, error) {
	sess, err := s.getSession(input.SessionID)
	if err != nil {
		return nil, getSignalsOutput{}, err
	}
	signals := sess.Bus.Since(input.Since)
	if signals == nil {
		signals = []Signal{}
	}
	return nil, getSignalsOutput{
		Signals: signals,
		Total:   sess.Bus.Len(),
	}, nil
}

func modelFrom(s kripke.Serialized) (*kripke.Model, error) {
	m, err := kripke.FromSerializable(s)
	if err != nil {
		return nil, fmt.Errorf("model: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("model: %w", err)
	}
	return m, nil
}

func runOutput(res *plant.Result) getRunOutput {
	out := getRunOutput{
		Resolved:   [][]string{},
		Unresolved: []string{},
		Outcomes:   []outcomeOutput{},
	}
	if res == nil {
		return out
	}
	out.Ticks = res.Ticks
	out.Resolved = append(out.Resolved, res.Resolved...)
	for sender := range res.Unresolved {
		out.Unresolved = append(out.Unresolved, sender)
	}
	sort.Strings(out.Unresolved)
	for _, o := range res.Outcomes {
		out.Outcomes = append(out.Outcomes, outcomeOutput{
			State:    string(o.State),
			Root:     o.Root,
			Symptom:  o.Symptom,
			Reversed: o.Reversed,
			Reason:   o.Reason(),
		})
	}
	out.Summary = format.SummaryTable([]*plant.Result{res}, format.Markdown)
	return out
}

// SessionID returns the current session's ID, or "" if none.
func (s *Server) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session != nil {
		return s.session.ID
	}
	return ""
}

// Shutdown cancels any active session.
func (s *Server) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session != nil {
		s.session.Cancel()
		s.session = nil
	}
}

func (s *Server) getSession(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return nil, fmt.Errorf("no active session (call run_scenario first)")
	}
	if s.session.ID != id {
		return nil, fmt.Errorf("session_id mismatch: have %s, got %s", s.session.ID, id)
	}
	return s.session, nil
}
