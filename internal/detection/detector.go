package detection

import (
	"fmt"
	"sort"
	"strings"

	"github.com/raaihank/ai-shield/internal/config"
	"github.com/raaihank/ai-shield/internal/logger"
	"go.uber.org/zap"
)

// Engine runs a fixed set of detectors. The set is chosen at construction and never
// changes afterwards, so an Engine is safe for concurrent use.
type Engine struct {
	detectors []Detector
	logger    *logger.Logger
}

var defaultEngine = &Engine{detectors: registry}

// New creates an engine with the detectors named in cfg ("all" enables every detector)
func New(cfg config.DetectionConfig, log *logger.Logger) (*Engine, error) {
	detectors, err := selectDetectors(cfg.Detectors)
	if err != nil {
		return nil, fmt.Errorf("failed to configure detectors: %w", err)
	}

	engine := &Engine{
		detectors: detectors,
		logger:    log,
	}

	log.Info("Detection engine initialized",
		zap.Int("total_detectors", len(registry)),
		zap.Int("enabled_detectors", len(detectors)),
	)

	return engine, nil
}

// selectDetectors filters the registry by name, keeping registry order
func selectDetectors(names []string) ([]Detector, error) {
	enabled := make(map[string]bool)
	all := false
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "all" {
			all = true
			continue
		}

		found := false
		for _, d := range registry {
			if d.Name == name {
				enabled[name] = true
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("unknown detector: %s", name)
		}
	}

	if all {
		return Registry(), nil
	}
	if len(enabled) == 0 {
		return nil, fmt.Errorf("no detectors enabled")
	}

	selected := make([]Detector, 0, len(enabled))
	for _, d := range registry {
		if enabled[d.Name] {
			selected = append(selected, d)
		}
	}
	return selected, nil
}

// Detect scans text with every built-in detector
func Detect(text string) Result {
	return defaultEngine.Detect(text)
}

// Scan returns every built-in detector match in text
func Scan(text string) []Match {
	return defaultEngine.Scan(text)
}

// EnabledDetectors returns the names of the detectors this engine runs
func (e *Engine) EnabledDetectors() []string {
	names := make([]string, len(e.detectors))
	for i, d := range e.detectors {
		names[i] = d.Name
	}
	return names
}

// Scan finds all non-overlapping occurrences of each detector in text.
// Offsets always refer to the original text.
func (e *Engine) Scan(text string) []Match {
	matches := make([]Match, 0)
	if text == "" {
		return matches
	}

	for _, d := range e.detectors {
		for _, loc := range d.Pattern.FindAllStringIndex(text, -1) {
			value := text[loc[0]:loc[1]]
			matches = append(matches, Match{
				Type:     d.Type,
				Category: d.Category,
				Value:    value,
				Masked:   d.Mask(value),
				Position: Position{Start: loc[0], End: loc[1]},
				Severity: d.Severity,
			})
		}
	}

	return matches
}

// Detect scans text and builds a fresh Result
func (e *Engine) Detect(text string) Result {
	matches := e.Scan(text)
	keywordSeverity, keywordHit := KeywordTier(text)
	weighted := keywordSeverity
	if !keywordHit {
		weighted = SeverityNone
	}
	score, level, _ := Aggregate(matches, weighted)

	result := Result{
		HasSensitiveData: len(matches) > 0 || keywordSeverity != SeverityLow,
		SensitivityLevel: level,
		DetectedPatterns: matches,
		MaskedText:       MaskText(text, matches),
		RiskScore:        score,
		Recommendations:  Recommendations(matches),
		KeywordSeverity:  keywordSeverity,
	}

	if e.logger != nil && len(matches) > 0 {
		e.logger.Debug("Sensitive data detected",
			zap.Int("match_count", len(matches)),
			zap.Strings("types", result.PatternTypes()),
			zap.Int("risk_score", score),
			zap.String("sensitivity_level", string(level)),
		)
	}

	return result
}

// MaskText replaces every matched span with its masked form. Spans are taken in match
// order and one overlapping an already taken span is skipped. Outside the taken spans any
// other occurrence of a taken value is masked too, longest value first, so a value that
// is a prefix of another never splits it.
func MaskText(text string, matches []Match) string {
	spans := takeSpans(text, matches)
	if len(spans) == 0 {
		return text
	}

	values := make([]Match, len(spans))
	copy(values, spans)
	sort.SliceStable(values, func(i, j int) bool {
		return len(values[i].Value) > len(values[j].Value)
	})

	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, m := range spans {
		maskGap(&b, text[last:m.Position.Start], values)
		b.WriteString(m.Masked)
		last = m.Position.End
	}
	maskGap(&b, text[last:], values)
	return b.String()
}

// takeSpans keeps the matches whose spans are valid for text and do not overlap an
// earlier kept match, sorted by start offset
func takeSpans(text string, matches []Match) []Match {
	taken := make([]Match, 0, len(matches))
	for _, m := range matches {
		p := m.Position
		if p.Start < 0 || p.End > len(text) || p.Start >= p.End || text[p.Start:p.End] != m.Value {
			continue
		}
		overlaps := false
		for _, t := range taken {
			if p.Start < t.Position.End && t.Position.Start < p.End {
				overlaps = true
				break
			}
		}
		if !overlaps {
			taken = append(taken, m)
		}
	}

	sort.Slice(taken, func(i, j int) bool {
		return taken[i].Position.Start < taken[j].Position.Start
	})
	return taken
}

// maskGap copies gap into b, replacing whole occurrences of the values
func maskGap(b *strings.Builder, gap string, values []Match) {
	for i := 0; i < len(gap); {
		replaced := false
		for _, v := range values {
			if strings.HasPrefix(gap[i:], v.Value) {
				b.WriteString(v.Masked)
				i += len(v.Value)
				replaced = true
				break
			}
		}
		if !replaced {
			b.WriteByte(gap[i])
			i++
		}
	}
}
