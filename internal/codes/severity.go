package codes

// Severity classifies a status code's resolved meaning. The numeric
// order matches escalation priority so that combining two severities is
// a plain max.
type Severity int

const (
	SeverityNormal Severity = iota
	SeverityRecovered
	SeverityFault
	SeverityFire
)

// String returns the wire/log name of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityFire:
		return "fire"
	case SeverityFault:
		return "fault"
	case SeverityRecovered:
		return "recovered"
	default:
		return "normal"
	}
}

// ParseSeverity maps a configuration string to a severity.
func ParseSeverity(value string) (Severity, bool) {
	switch value {
	case "fire":
		return SeverityFire, true
	case "fault":
		return SeverityFault, true
	case "recovered":
		return SeverityRecovered, true
	case "normal":
		return SeverityNormal, true
	default:
		return SeverityNormal, false
	}
}

// MaxSeverity combines two severities by escalation priority.
func MaxSeverity(a, b Severity) Severity {
	if a > b {
		return a
	}
	return b
}
