// Package annotation parses the free-text configuration attached to a
// //sectest:probe directive into a SecurityConfig.
//
// Parsing never fails: any text, including garbage, yields a valid
// configuration. Tokens outside the vocabulary are reported back to the
// caller so it can warn or, in strict mode, reject them.
package annotation

import (
	"strings"

	"github.com/smith-xyz/golang-sectest-generator/pkg/models"
)

// Result is the outcome of parsing one directive's configuration text.
type Result struct {
	Config  models.SecurityConfig
	Unknown []string
}

// threatPriority is the fixed tie-break order when multiple level keywords
// appear in one directive: the first present in this order wins.
var threatPriority = []models.ThreatLevel{
	models.ThreatCritical,
	models.ThreatHigh,
	models.ThreatLow,
	models.ThreatMedium,
}

// Parse scans the directive configuration text and returns the resulting
// security-test configuration.
//
// The text is tokenized and each token is matched whole against the
// vocabulary, so a keyword buried inside an unrelated identifier does not
// set a flag. Empty text yields the defaults: all flags off, medium threat.
func Parse(text string) Result {
	result := Result{Config: models.DefaultSecurityConfig()}

	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return result
	}

	seen := make(map[string]bool, len(tokens))
	for _, tok := range tokens {
		if !setFlag(&result.Config, tok) {
			if _, ok := models.ParseThreatLevel(tok); !ok {
				result.Unknown = append(result.Unknown, tok)
				continue
			}
		}
		seen[tok] = true
	}

	for _, level := range threatPriority {
		if seen[level.String()] {
			result.Config.ThreatLevel = level
			break
		}
	}

	return result
}

// Tokenize splits directive text into candidate keywords. Tokens are maximal
// runs of letters, digits and underscores; everything else is a separator.
func Tokenize(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			return false
		case r >= '0' && r <= '9':
			return false
		case r == '_':
			return false
		}
		return true
	})
}

// setFlag sets the matching class flag and reports whether tok named one.
func setFlag(cfg *models.SecurityConfig, tok string) bool {
	switch tok {
	case "sql_injection":
		cfg.SQLInjection = true
	case "race_condition":
		cfg.RaceCondition = true
	case "timing_attack":
		cfg.TimingAttack = true
	case "buffer_overflow":
		cfg.BufferOverflow = true
	case "integer_overflow":
		cfg.IntegerOverflow = true
	default:
		return false
	}
	return true
}
