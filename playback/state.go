package playback

import (
	"fmt"
)

// GateState is where a session stands relative to its quiz trigger.
type GateState int

const (
	// Idle sessions have no trigger and never pause.
	Idle GateState = iota
	Armed
	// Paused waits for the completion check.
	Paused
	Countdown
	QuizPresented
	Resumed
	// Blocked stays paused because the quiz deadline has passed.
	Blocked
)

var stateNames = map[GateState]string{
	Idle:          "idle",
	Armed:         "armed",
	Paused:        "paused",
	Countdown:     "countdown",
	QuizPresented: "quiz_presented",
	Resumed:       "resumed",
	Blocked:       "blocked",
}

func (s GateState) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("GateState(%d)", int(s))
}

// transitions lists every legal move of the gate.
var transitions = map[GateState][]GateState{
	Armed:         {Paused},
	Paused:        {Resumed, Countdown, Blocked},
	Countdown:     {QuizPresented},
	QuizPresented: {Resumed},
}

func canTransition(from, to GateState) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Fired reports whether the gate has already paused playback once.
func (s GateState) Fired() bool {
	return s != Idle && s != Armed
}

// Holding reports whether the gate currently keeps playback stopped.
func (s GateState) Holding() bool {
	switch s {
	case Paused, Countdown, QuizPresented, Blocked:
		return true
	}
	return false
}
