// internal/game/rules.go
package game

import "time"

// Rules are fixed per session once created.
type Rules struct {
	// MaxScore ends the game when any participant reaches it. Zero
	// disables score-based termination.
	MaxScore int `json:"maxScore"`

	// MaxTime is defined in the rule set but not enforced anywhere yet.
	// It is carried so clients can display it and so a future time-based
	// terminator has a home.
	MaxTime time.Duration `json:"maxTime"`

	Theme string `json:"theme,omitempty"`
}

// DefaultRules returns the rule set used when a session is created
// without explicit overrides.
func DefaultRules() Rules {
	return Rules{
		MaxScore: 2,
		MaxTime:  300 * time.Second,
	}
}

// Verdict is the outcome of a rule evaluation.
type Verdict struct {
	Stop     bool
	WinnerID int64
}

// EvaluateRules checks win/termination conditions over a score map.
// Invoked after every scoring event. Winner selection uses strict >
// comparison: when two participants hold the same maximum, the first one
// encountered wins. That ambiguity is inherited behavior, kept on purpose.
func EvaluateRules(score map[int64]int, participants []int64, rules Rules) Verdict {
	if rules.MaxScore <= 0 {
		return Verdict{}
	}
	reached := false
	best := -1
	var winner int64
	for _, id := range participants {
		pts := score[id]
		if pts >= rules.MaxScore {
			reached = true
		}
		if pts > best {
			best = pts
			winner = id
		}
	}
	if !reached {
		return Verdict{}
	}
	return Verdict{Stop: true, WinnerID: winner}
}
