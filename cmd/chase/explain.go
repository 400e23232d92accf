package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/dbchase/chasecore/internal/chase"
	"github.com/dbchase/chasecore/internal/chase/builder"
	"github.com/dbchase/chasecore/internal/store"
	"github.com/dbchase/chasecore/internal/term"
)

var explainCmd = &cobra.Command{
	Use:   "explain [scenario]",
	Short: "Run a scenario and render its step-by-step derivation trace",
	Long: `Runs a built-in scenario to a fixpoint, recording which rule fired and
which facts it created at every step, and renders that trace as formatted
markdown (the "glass box" view of how the saturated facts were derived).`,
	Args: cobra.ExactArgs(1),
	RunE: explainScenario,
}

// traceTreatment is an EndOfStepTreatment that records each step's
// derivation instead of (or alongside) logging it, for explain's report.
type traceTreatment struct {
	steps []stepTrace
}

type stepTrace struct {
	index   int
	rules   []string
	created []string
}

func (t *traceTreatment) Apply(step int, result *chase.StepResult, target store.WritableMaterializedData) error {
	if result == nil {
		return nil
	}
	st := stepTrace{index: step}
	for r := range result.AppliedRules {
		st.rules = append(st.rules, r.Body.String()+" -> "+r.Head.String())
	}
	for _, a := range result.CreatedFacts {
		st.created = append(st.created, a.String())
	}
	t.steps = append(t.steps, st)
	return nil
}

func explainScenario(cmd *cobra.Command, args []string) error {
	s, err := mustScenario(args[0])
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	sess := term.NewSession()
	rb, facts := s.Build(sess)

	target := store.WritableMaterializedData(store.NewInMemoryFactBase())
	if err := seedStore(target, facts); err != nil {
		return fmt.Errorf("seed store: %w", err)
	}

	b, err := builder.FromConfig(sess, &cfg.Chase)
	if err != nil {
		return fmt.Errorf("configure chase: %w", err)
	}

	trace := &traceTreatment{}
	engine, err := b.WithChasable(store.NewChasableData(target)).
		WithRuleBase(rb).
		AddEndOfStepTreatment(trace).
		Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}

	result, err := engine.Run()
	if err != nil {
		return fmt.Errorf("chase failed: %w", err)
	}

	md := renderTrace(s, result.Steps, trace.steps)
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		fmt.Print(md)
		return nil
	}
	out, err := renderer.Render(md)
	if err != nil {
		fmt.Print(md)
		return nil
	}
	fmt.Print(out)
	return nil
}

func renderTrace(s scenario, totalSteps int, steps []stepTrace) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# derivation trace: %s\n\n%s\n\n", s.Name, s.Description)
	fmt.Fprintf(&b, "Saturated in **%d** steps.\n\n", totalSteps)
	for _, st := range steps {
		fmt.Fprintf(&b, "## step %d\n\n", st.index)
		if len(st.rules) == 0 {
			b.WriteString("no rule fired\n\n")
			continue
		}
		b.WriteString("fired:\n\n")
		for _, r := range st.rules {
			fmt.Fprintf(&b, "- `%s`\n", r)
		}
		b.WriteString("\ncreated:\n\n")
		for _, c := range st.created {
			fmt.Fprintf(&b, "- `%s`\n", c)
		}
		b.WriteString("\n")
	}
	return b.String()
}
