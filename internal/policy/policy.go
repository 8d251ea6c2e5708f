// Package policy decides what happens to a scanned request given the caller's
// authorized sensitivity ceiling.
package policy

import (
	"errors"
	"fmt"

	"github.com/raaihank/ai-shield/internal/detection"
)

// Action is the outcome of a policy decision
type Action string

const (
	ActionAllow Action = "allow"
	ActionMask  Action = "mask"
	ActionBlock Action = "block"
)

// ErrInvalidCeiling is returned when a ceiling or result level is not a known tier
var ErrInvalidCeiling = errors.New("invalid sensitivity ceiling")

// Reasons shown to the user
const (
	ReasonAllowed = "Request within authorized sensitivity level."
	ReasonMasked  = "Sensitive data will be automatically masked before processing."
	reasonBlocked = "Request contains %s data. Your access level allows up to %s data only."
)

// Decision is the verdict for one request
type Decision struct {
	Allowed bool   `json:"allowed"`
	Action  Action `json:"action"`
	Reason  string `json:"reason"`
}

// Decide compares the classified level against ceiling. Masking is only offered when
// autoMask is set and there is at least one concrete match to redact.
func Decide(result detection.Result, ceiling detection.SensitivityLevel, autoMask bool) (Decision, error) {
	if !ceiling.Valid() {
		return Decision{}, fmt.Errorf("%w: %q", ErrInvalidCeiling, ceiling)
	}
	if !result.SensitivityLevel.Valid() {
		return Decision{}, fmt.Errorf("%w: result level %q", ErrInvalidCeiling, result.SensitivityLevel)
	}

	switch {
	case result.SensitivityLevel.Rank() <= ceiling.Rank():
		return Decision{Allowed: true, Action: ActionAllow, Reason: ReasonAllowed}, nil
	case autoMask && len(result.DetectedPatterns) > 0:
		return Decision{Allowed: true, Action: ActionMask, Reason: ReasonMasked}, nil
	default:
		return Decision{
			Allowed: false,
			Action:  ActionBlock,
			Reason:  fmt.Sprintf(reasonBlocked, result.SensitivityLevel, ceiling),
		}, nil
	}
}

// DecideFor parses ceiling from its name and calls Decide
func DecideFor(result detection.Result, ceiling string, autoMask bool) (Decision, error) {
	level, err := detection.ParseLevel(ceiling)
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrInvalidCeiling, err)
	}
	return Decide(result, level, autoMask)
}

// ForwardText returns the text that may be sent on to the AI tool: the original on allow,
// the masked text on mask and nothing on block.
func ForwardText(result detection.Result, original string, d Decision) (string, bool) {
	switch d.Action {
	case ActionAllow:
		return original, true
	case ActionMask:
		return result.MaskedText, true
	default:
		return "", false
	}
}
