package assemble

import "fmt"

// Scenario selects which back end a build targets. It decides which
// fragment set the assembler loads; it is supplied by the CLI driver and
// never inferred here.
type Scenario string

const (
	// ScenarioC is the statically compiled C target.
	ScenarioC Scenario = "c"
	// ScenarioInterp is the interactively interpreted target.
	ScenarioInterp Scenario = "interp"
)

// ParseScenario validates a scenario name from the CLI.
func ParseScenario(s string) (Scenario, error) {
	switch Scenario(s) {
	case ScenarioC, ScenarioInterp:
		return Scenario(s), nil
	}
	return "", fmt.Errorf("unknown scenario %q (want %q or %q)", s, ScenarioC, ScenarioInterp)
}

func (s Scenario) String() string {
	return string(s)
}
