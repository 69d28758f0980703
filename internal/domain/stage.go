package domain

import "fmt"

// Stage is a state of the verification coordinator.
//
//	Start -> Extracting -> ExtractionFailed (terminal)
//	                    -> Extracted -> MatchingVerifying -> Decided (terminal)
type Stage int

// Coordinator stages.
const (
	StageStart Stage = iota
	StageExtracting
	StageExtractionFailed
	StageExtracted
	StageMatchingVerifying
	StageDecided
)

var stageNames = [...]string{
	StageStart:             "start",
	StageExtracting:        "extracting",
	StageExtractionFailed:  "extraction_failed",
	StageExtracted:         "extracted",
	StageMatchingVerifying: "matching_verifying",
	StageDecided:           "decided",
}

// String returns the stage name.
func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("stage(%d)", int(s))
	}
	return stageNames[s]
}

// Terminal reports whether no further transition is possible.
func (s Stage) Terminal() bool {
	return s == StageExtractionFailed || s == StageDecided
}

var stageEdges = map[Stage][]Stage{
	StageStart:             {StageExtracting},
	StageExtracting:        {StageExtractionFailed, StageExtracted},
	StageExtracted:         {StageMatchingVerifying},
	StageMatchingVerifying: {StageDecided},
}

// Transition returns next if the move from s is allowed.
func (s Stage) Transition(next Stage) (Stage, error) {
	for _, allowed := range stageEdges[s] {
		if allowed == next {
			return next, nil
		}
	}
	return s, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, s, next)
}
