// Package screen classifies a captured frame into one of the known game
// screens.
package screen

// State is one distinguishable screen of the game.
type State int

const (
	Unknown State = iota
	BattleSelection
	ExpansionSelection
	BattleSetup
	BattleInProgress
	ResultScreen
	DefeatScreen
	DefeatPopup
	RewardsSequence
	Summary
	OptionalPopup
)

var stateNames = [...]string{
	Unknown:            "Unknown",
	BattleSelection:    "BattleSelection",
	ExpansionSelection: "ExpansionSelection",
	BattleSetup:        "BattleSetup",
	BattleInProgress:   "BattleInProgress",
	ResultScreen:       "ResultScreen",
	DefeatScreen:       "DefeatScreen",
	DefeatPopup:        "DefeatPopup",
	RewardsSequence:    "RewardsSequence",
	Summary:            "Summary",
	OptionalPopup:      "OptionalPopup",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "Unknown"
	}
	return stateNames[s]
}

// States lists every State in declaration order.
func States() []State {
	out := make([]State, len(stateNames))
	for i := range stateNames {
		out[i] = State(i)
	}
	return out
}
