package policy

import (
	"errors"
	"testing"

	"github.com/raaihank/ai-shield/internal/detection"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecideScenarios(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		ceiling    detection.SensitivityLevel
		autoMask   bool
		level      detection.SensitivityLevel
		score      int
		action     Action
		maskedText string
	}{
		{
			name:       "ssn masked for internal user",
			text:       "My SSN is 123-45-6789",
			ceiling:    detection.LevelInternal,
			autoMask:   true,
			level:      detection.LevelRestricted,
			score:      30,
			action:     ActionMask,
			maskedText: "My SSN is XXX-XX-6789",
		},
		{
			name:       "low keyword only is public",
			text:       "Let's schedule the meeting for Friday",
			ceiling:    detection.LevelPublic,
			autoMask:   true,
			level:      detection.LevelPublic,
			score:      3,
			action:     ActionAllow,
			maskedText: "Let's schedule the meeting for Friday",
		},
		{
			name:       "restricted user may send a password",
			text:       "password: Sup3rSecret!",
			ceiling:    detection.LevelRestricted,
			autoMask:   false,
			level:      detection.LevelRestricted,
			score:      30,
			action:     ActionAllow,
			maskedText: "[PASSWORD_REDACTED]",
		},
		{
			name:       "email with salary keyword stays internal",
			text:       "Contact bob@co.com about the salary review",
			ceiling:    detection.LevelInternal,
			autoMask:   true,
			level:      detection.LevelInternal,
			score:      25,
			action:     ActionAllow,
			maskedText: "Contact b***@co.com about the salary review",
		},
		{
			name:       "ssn blocked without auto mask",
			text:       "My SSN is 123-45-6789",
			ceiling:    detection.LevelConfidential,
			autoMask:   false,
			level:      detection.LevelRestricted,
			score:      30,
			action:     ActionBlock,
			maskedText: "My SSN is XXX-XX-6789",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := detection.Detect(tc.text)
			assert.Equal(t, tc.level, result.SensitivityLevel)
			assert.Equal(t, tc.score, result.RiskScore)
			assert.Equal(t, tc.maskedText, result.MaskedText)

			decision, err := Decide(result, tc.ceiling, tc.autoMask)
			require.NoError(t, err)
			assert.Equal(t, tc.action, decision.Action)
			assert.Equal(t, tc.action != ActionBlock, decision.Allowed)
		})
	}
}

func TestDecideReasons(t *testing.T) {
	result := detection.Detect("My SSN is 123-45-6789")

	allow, err := Decide(result, detection.LevelRestricted, false)
	require.NoError(t, err)
	assert.Equal(t, ReasonAllowed, allow.Reason)

	mask, err := Decide(result, detection.LevelPublic, true)
	require.NoError(t, err)
	assert.Equal(t, ReasonMasked, mask.Reason)

	block, err := Decide(result, detection.LevelInternal, false)
	require.NoError(t, err)
	assert.Equal(t, "Request contains restricted data. Your access level allows up to internal data only.", block.Reason)
}

func TestDecideNeverMasksWithoutAutoMask(t *testing.T) {
	texts := []string{
		"",
		"My SSN is 123-45-6789",
		"Q3 revenue forecast for the merger",
		"Contact bob@co.com about the salary review",
		"password: hunter22 and card 4111-1111-1111-1111",
	}

	for _, text := range texts {
		result := detection.Detect(text)
		for _, ceiling := range detection.Levels {
			decision, err := Decide(result, ceiling, false)
			require.NoError(t, err)
			assert.NotEqual(t, ActionMask, decision.Action, "text %q ceiling %s", text, ceiling)
		}
	}
}

func TestDecideNeverMasksWithoutMatches(t *testing.T) {
	// keyword context alone can lift the level above public but leaves nothing to redact
	result := detection.Result{
		HasSensitiveData: true,
		SensitivityLevel: detection.LevelInternal,
		DetectedPatterns: []detection.Match{},
		RiskScore:        20,
	}

	decision, err := Decide(result, detection.LevelPublic, true)
	require.NoError(t, err)
	assert.Equal(t, ActionBlock, decision.Action)
	assert.False(t, decision.Allowed)
}

func TestDecideInvalidCeiling(t *testing.T) {
	result := detection.Detect("hello")

	_, err := Decide(result, detection.SensitivityLevel("top-secret"), true)
	assert.True(t, errors.Is(err, ErrInvalidCeiling))

	_, err = Decide(result, "", true)
	assert.True(t, errors.Is(err, ErrInvalidCeiling))

	_, err = Decide(detection.Result{SensitivityLevel: "weird"}, detection.LevelRestricted, true)
	assert.True(t, errors.Is(err, ErrInvalidCeiling))
}

func TestDecideFor(t *testing.T) {
	result := detection.Detect("My SSN is 123-45-6789")

	decision, err := DecideFor(result, " Restricted ", false)
	require.NoError(t, err)
	assert.Equal(t, ActionAllow, decision.Action)

	_, err = DecideFor(result, "secret", false)
	assert.ErrorIs(t, err, ErrInvalidCeiling)
}

func TestForwardText(t *testing.T) {
	text := "My SSN is 123-45-6789"
	result := detection.Detect(text)

	forward, ok := ForwardText(result, text, Decision{Action: ActionAllow})
	assert.True(t, ok)
	assert.Equal(t, text, forward)

	forward, ok = ForwardText(result, text, Decision{Action: ActionMask})
	assert.True(t, ok)
	assert.Equal(t, "My SSN is XXX-XX-6789", forward)

	forward, ok = ForwardText(result, text, Decision{Action: ActionBlock})
	assert.False(t, ok)
	assert.Empty(t, forward)
}
