package errors

import "strings"

// Severity is the UX and alerting priority of an error.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// severityRules are checked in order against the raw code; the first rule
// with a matching substring decides. A compound code such as
// "NOT_FOUND_OR_FORBIDDEN" therefore classifies as a warning.
var severityRules = []struct {
	severity Severity
	markers  []Code
}{
	{SeverityCritical, []Code{INTERNAL_SERVER_ERROR, DATABASE_ERROR}},
	{SeverityWarning, []Code{VALIDATION_ERROR, BAD_USER_INPUT, NOT_FOUND}},
	{SeverityInfo, []Code{UNAUTHENTICATED, FORBIDDEN, UNAUTHORIZED}},
}

// Classify maps an error code to its severity. An empty code is an error.
func Classify(code string) Severity {
	if code == "" {
		return SeverityError
	}
	for _, rule := range severityRules {
		for _, marker := range rule.markers {
			if strings.Contains(code, string(marker)) {
				return rule.severity
			}
		}
	}
	return SeverityError
}

// ShouldAlert reports whether s warrants paging an operator.
func (s Severity) ShouldAlert() bool {
	return s == SeverityCritical
}
