package models

// ThreatLevel is the ordinal severity attached to an annotated function.
type ThreatLevel int

const (
	ThreatLow ThreatLevel = iota
	ThreatMedium
	ThreatHigh
	ThreatCritical
)

// DefaultThreatLevel is used when the directive text names no level.
const DefaultThreatLevel = ThreatMedium

func (t ThreatLevel) String() string {
	switch t {
	case ThreatLow:
		return "low"
	case ThreatMedium:
		return "medium"
	case ThreatHigh:
		return "high"
	case ThreatCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Valid reports whether t is one of the four defined ordinals.
func (t ThreatLevel) Valid() bool {
	return t >= ThreatLow && t <= ThreatCritical
}

// ParseThreatLevel maps a keyword to its ordinal. The boolean is false for
// anything outside the four-level vocabulary.
func ParseThreatLevel(s string) (ThreatLevel, bool) {
	switch s {
	case "low":
		return ThreatLow, true
	case "medium":
		return ThreatMedium, true
	case "high":
		return ThreatHigh, true
	case "critical":
		return ThreatCritical, true
	default:
		return DefaultThreatLevel, false
	}
}

// SecurityConfig is the parsed security-test configuration for one annotated
// function. Flags are independent and not mutually exclusive.
type SecurityConfig struct {
	SQLInjection    bool        `yaml:"sql_injection"`
	RaceCondition   bool        `yaml:"race_condition"`
	TimingAttack    bool        `yaml:"timing_attack"`
	BufferOverflow  bool        `yaml:"buffer_overflow"`
	IntegerOverflow bool        `yaml:"integer_overflow"`
	ThreatLevel     ThreatLevel `yaml:"-"`
}

// DefaultSecurityConfig is the configuration for an empty directive: all
// probe classes off, medium threat level.
func DefaultSecurityConfig() SecurityConfig {
	return SecurityConfig{ThreatLevel: DefaultThreatLevel}
}

// TestClasses returns the names of the enabled probe classes in field order.
func (c SecurityConfig) TestClasses() []string {
	var classes []string
	if c.SQLInjection {
		classes = append(classes, "sql_injection")
	}
	if c.RaceCondition {
		classes = append(classes, "race_condition")
	}
	if c.TimingAttack {
		classes = append(classes, "timing_attack")
	}
	if c.BufferOverflow {
		classes = append(classes, "buffer_overflow")
	}
	if c.IntegerOverflow {
		classes = append(classes, "integer_overflow")
	}
	return classes
}
