package diagnose

import (
	"context"
	"errors"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"plantdiag/internal/kripke"
	"plantdiag/internal/lattice"
	"plantdiag/internal/oracle"
	"plantdiag/internal/rules"
)

func theoryOf(root, symptom string) func(context.Context, map[string]oracle.ReportSummary, string) (oracle.Theory, error) {
	return func(context.Context, map[string]oracle.ReportSummary, string) (oracle.Theory, error) {
		return oracle.Theory{RootCause: root, Symptom: symptom, Explanation: root + " caused " + symptom}, nil
	}
}

func reportsFrom(senders ...string) map[string]Report {
	out := make(map[string]Report, len(senders))
	for _, s := range senders {
		out[s] = Report{Sender: s, Text: "Anomaly detected on " + DefaultSenders()[s].PV}
	}
	return out
}

func deadEndModel(props ...string) *kripke.Model {
	return kripke.New([]string{"w0", "w1"}, []kripke.Edge{{From: "w1", To: "w0"}}, map[string][]string{"w0": props}, "w0")
}

var _ = ginkgo.Describe("Diagnoser", func() {
	var (
		stub   *oracle.Stub
		belief *Belief
		d      *Diagnoser
		ctx    context.Context
	)

	ginkgo.BeforeEach(func() {
		ctx = context.Background()
		stub = &oracle.Stub{}
		belief = MustBelief(deadEndModel())
		d = New(Config{Rules: rules.Default(), Index: lattice.Default(), Oracle: stub})
	})

	ginkgo.Context("with fewer than two pending reports", func() {
		ginkgo.It("rejects without consulting the oracle", func() {
			out := d.Diagnose(ctx, belief, reportsFrom("RF_Agent"))
			gomega.Expect(out.State).To(gomega.Equal(StateRejected))
			gomega.Expect(out.Resolved()).To(gomega.BeEmpty())
			gomega.Expect(stub.TotalCalls()).To(gomega.Equal(0))
			gomega.Expect(out.Trail).To(gomega.HaveLen(1))
			gomega.Expect(out.Trail[0].From).To(gomega.Equal(StateCollect))
		})

		ginkgo.It("rejects an empty table", func() {
			out := d.Diagnose(ctx, belief, nil)
			gomega.Expect(out.State).To(gomega.Equal(StateRejected))
			gomega.Expect(stub.TotalCalls()).To(gomega.Equal(0))
		})
	})

	ginkgo.Context("when the theory holds in the forward direction", func() {
		ginkgo.It("resolves with the theorized pair and replaces the belief", func() {
			stub.TheoryFunc = theoryOf("Cooling_Agent", "RF_Agent")
			updated := kripke.Serialized{
				Worlds:       []string{"w_cool"},
				Relations:    [][]string{},
				Valuations:   map[string][]string{"w_cool": {"cooling_fault_reported"}},
				CurrentWorld: "w_cool",
			}
			var info string
			stub.UpdateFunc = func(_ context.Context, _ kripke.Serialized, i string) (kripke.Serialized, error) {
				info = i
				return updated, nil
			}

			out := d.Diagnose(ctx, belief, reportsFrom("Cooling_Agent", "RF_Agent"))
			gomega.Expect(out.State).To(gomega.Equal(StateResolved))
			gomega.Expect(out.Resolved()).To(gomega.Equal([]string{"Cooling_Agent", "RF_Agent"}))
			gomega.Expect(out.Reversed).To(gomega.BeFalse())
			gomega.Expect(out.BeliefUpdated).To(gomega.BeTrue())
			gomega.Expect(info).To(gomega.Equal("Cooling_Agent caused RF_Agent"))
			gomega.Expect(belief.Model().CurrentWorld()).To(gomega.Equal("w_cool"))
			gomega.Expect(out.Reason()).To(gomega.ContainSubstring("Connection verified"))
		})

		ginkgo.It("keeps the prior belief when the oracle's model breaks invariants", func() {
			stub.TheoryFunc = theoryOf("Cooling_Agent", "RF_Agent")
			stub.UpdateFunc = func(context.Context, kripke.Serialized, string) (kripke.Serialized, error) {
				return kripke.Serialized{Worlds: []string{"a"}, Relations: [][]string{{"a", "ghost"}}, CurrentWorld: "a"}, nil
			}
			prior := belief.Model()

			out := d.Diagnose(ctx, belief, reportsFrom("Cooling_Agent", "RF_Agent"))
			gomega.Expect(out.State).To(gomega.Equal(StateResolved))
			gomega.Expect(out.BeliefUpdated).To(gomega.BeFalse())
			gomega.Expect(belief.Model()).To(gomega.BeIdenticalTo(prior))
		})

		ginkgo.It("keeps the prior belief when the update call fails", func() {
			stub.TheoryFunc = theoryOf("Cooling_Agent", "RF_Agent")
			stub.UpdateFunc = func(context.Context, kripke.Serialized, string) (kripke.Serialized, error) {
				return kripke.Serialized{}, errors.New("timeout")
			}
			prior := belief.Model()

			out := d.Diagnose(ctx, belief, reportsFrom("Cooling_Agent", "RF_Agent"))
			gomega.Expect(out.State).To(gomega.Equal(StateResolved))
			gomega.Expect(belief.Model()).To(gomega.BeIdenticalTo(prior))
		})
	})

	ginkgo.Context("Scenario D: the forward direction is physically impossible", func() {
		ginkgo.It("returns the swapped pair", func() {
			stub.TheoryFunc = theoryOf("RF_Agent", "Cooling_Agent")
			var info string
			stub.UpdateFunc = func(_ context.Context, s kripke.Serialized, i string) (kripke.Serialized, error) {
				info = i
				return s, nil
			}

			out := d.Diagnose(ctx, belief, reportsFrom("RF_Agent", "Cooling_Agent"))
			gomega.Expect(out.State).To(gomega.Equal(StateResolved))
			gomega.Expect(out.Resolved()).To(gomega.Equal([]string{"Cooling_Agent", "RF_Agent"}))
			gomega.Expect(out.Reversed).To(gomega.BeTrue())
			gomega.Expect(info).To(gomega.Equal("After reversing the initial theory, the corrected root cause is Cooling_Agent and the symptom is RF_Agent. This is physically plausible."))
			gomega.Expect(out.Theory.RootCause).To(gomega.Equal("Cooling_Agent"))

			var states []State
			for _, t := range out.Trail {
				states = append(states, t.To)
			}
			gomega.Expect(states).To(gomega.Equal([]State{
				StateHypothesize, StateValidate, StateVerify,
				StateReverseValidate, StateReverseVerify, StateResolved,
			}))
		})
	})

	ginkgo.Context("when neither direction is connected", func() {
		ginkgo.It("rejects after exactly one reversal", func() {
			stub.TheoryFunc = theoryOf("Klystron_Agent", "Vacuum_Agent")
			out := d.Diagnose(ctx, belief, reportsFrom("Klystron_Agent", "Vacuum_Agent"))
			gomega.Expect(out.State).To(gomega.Equal(StateRejected))
			gomega.Expect(out.Reversed).To(gomega.BeTrue())
			gomega.Expect(out.Trail[len(out.Trail)-1].From).To(gomega.Equal(StateReverseVerify))
			gomega.Expect(stub.Calls("update belief")).To(gomega.Equal(0))
			gomega.Expect(stub.Calls("synthesize theory")).To(gomega.Equal(1))
		})
	})

	ginkgo.Context("when the root cause violates a rule", func() {
		ginkgo.It("rejects at validation without reversing", func() {
			model := kripke.New([]string{"w0"}, []kripke.Edge{{From: "w0", To: "w0"}},
				map[string][]string{"w0": {"klystron_fault_reported"}}, "w0")
			belief = MustBelief(model)
			stub.TheoryFunc = theoryOf("Cooling_Agent", "RF_Agent")

			out := d.Diagnose(ctx, belief, reportsFrom("Cooling_Agent", "RF_Agent"))
			gomega.Expect(out.State).To(gomega.Equal(StateRejected))
			gomega.Expect(out.Reversed).To(gomega.BeFalse())
			gomega.Expect(out.Reason()).To(gomega.ContainSubstring("cooling_fault_reported"))
			gomega.Expect(belief.Model().Valuation("w0")).To(gomega.Equal([]string{"klystron_fault_reported"}))
		})
	})

	ginkgo.DescribeTable("rejects malformed theories",
		func(root, symptom string) {
			stub.TheoryFunc = theoryOf(root, symptom)
			out := d.Diagnose(ctx, belief, reportsFrom("Cooling_Agent", "RF_Agent"))
			gomega.Expect(out.State).To(gomega.Equal(StateRejected))
			gomega.Expect(out.Trail[len(out.Trail)-1].From).To(gomega.Equal(StateHypothesize))
		},
		ginkgo.Entry("missing root", "", "RF_Agent"),
		ginkgo.Entry("missing symptom", "Cooling_Agent", ""),
		ginkgo.Entry("root without a report", "Vacuum_Agent", "RF_Agent"),
		ginkgo.Entry("same sender twice", "RF_Agent", "RF_Agent"),
	)

	ginkgo.It("rejects when the oracle fails", func() {
		stub.TheoryFunc = func(context.Context, map[string]oracle.ReportSummary, string) (oracle.Theory, error) {
			return oracle.Theory{}, errors.New("connection refused")
		}
		prior := belief.Model()
		out := d.Diagnose(ctx, belief, reportsFrom("Cooling_Agent", "RF_Agent"))
		gomega.Expect(out.State).To(gomega.Equal(StateRejected))
		gomega.Expect(out.Reason()).To(gomega.ContainSubstring("connection refused"))
		gomega.Expect(belief.Model()).To(gomega.BeIdenticalTo(prior))
	})

	ginkgo.It("gives the oracle the connectivity context and every report", func() {
		var gotCtx string
		var gotReports map[string]oracle.ReportSummary
		stub.TheoryFunc = func(_ context.Context, r map[string]oracle.ReportSummary, c string) (oracle.Theory, error) {
			gotCtx, gotReports = c, r
			return oracle.Theory{RootCause: "Cooling_Agent", Symptom: "RF_Agent"}, nil
		}
		d.Diagnose(ctx, belief, reportsFrom("Cooling_Agent", "RF_Agent", "Vacuum_Agent"))
		gomega.Expect(gotReports).To(gomega.HaveLen(3))
		gomega.Expect(gotCtx).To(gomega.ContainSubstring("The 'COOL:primary_loop' component provides a service to the 'RF:cavity' component."))
		gomega.Expect(gotCtx).To(gomega.ContainSubstring("The 'VAC:sector1_pump' component provides a service to the 'RF:cavity' component."))
	})

	ginkgo.It("rejects senders without connectivity configuration", func() {
		stub.TheoryFunc = theoryOf("Magnet_Agent", "RF_Agent")
		out := d.Diagnose(ctx, belief, reportsFrom("Magnet_Agent", "RF_Agent"))
		gomega.Expect(out.State).To(gomega.Equal(StateRejected))
		gomega.Expect(out.Reversed).To(gomega.BeFalse())
		gomega.Expect(out.Reason()).To(gomega.ContainSubstring("Magnet_Agent"))
	})
})
