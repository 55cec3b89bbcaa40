package harness

// State is the lifecycle stage of a Harness.
//
//	Uninitialized -> ValidatingInput -> {Aborted | WarmedUp} -> Running -> Reporting -> Idling
//
// Nothing leaves Idling and nothing re-enters Running.
type State int

const (
	Uninitialized State = iota
	ValidatingInput
	Aborted
	WarmedUp
	Running
	Reporting
	Idling
)

var stateNames = [...]string{
	Uninitialized:   "uninitialized",
	ValidatingInput: "validating-input",
	Aborted:         "aborted",
	WarmedUp:        "warmed-up",
	Running:         "running",
	Reporting:       "reporting",
	Idling:          "idling",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}
