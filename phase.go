package starbatch

import "fmt"

//Phase is a state of a pipeline run; a run only moves forward, one phase at a time
type Phase int

const (
	Pending Phase = iota
	ExtractReady
	DimensionsTransformed
	DimensionsLoaded
	FactsPrepared
	FactsLoaded
	Audited
)

var phaseNames = [...]string{
	Pending:               "Pending",
	ExtractReady:          "ExtractReady",
	DimensionsTransformed: "DimensionsTransformed",
	DimensionsLoaded:      "DimensionsLoaded",
	FactsPrepared:         "FactsPrepared",
	FactsLoaded:           "FactsLoaded",
	Audited:               "Audited",
}

func (p Phase) String() string {
	if p >= Pending && p <= Audited {
		return phaseNames[p]
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

//Next returns the phase following p, or p itself when p is terminal
func (p Phase) Next() Phase {
	if p >= Audited {
		return Audited
	}
	return p + 1
}

//Terminal reports whether no phase follows p
func (p Phase) Terminal() bool {
	return p == Audited
}

//ParsePhase is the inverse of Phase.String
func ParsePhase(s string) (Phase, error) {
	for i, n := range phaseNames {
		if n == s {
			return Phase(i), nil
		}
	}
	return Pending, fmt.Errorf("unknown phase %q", s)
}
