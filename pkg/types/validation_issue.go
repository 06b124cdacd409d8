package types

import (
	"database/sql/driver"

	"github.com/angelmondragon/carestaff-backend/pkg/enums"
)

// ValidationIssue is a single finding produced while scoring a timesheet.
type ValidationIssue struct {
	Type     string         `json:"type"`
	Severity enums.Severity `json:"severity"`
	Message  string         `json:"message"`
	Penalty  int            `json:"penalty"`
	Details  map[string]any `json:"details,omitempty"`
}

// ValidationIssues persists as a JSON array.
type ValidationIssues []ValidationIssue

// HighestSeverity returns the most severe entry, or empty when there are none.
func (v ValidationIssues) HighestSeverity() enums.Severity {
	var highest enums.Severity
	for _, issue := range v {
		if issue.Severity.Rank() > highest.Rank() {
			highest = issue.Severity
		}
	}
	return highest
}

// Messages lists the human-readable messages in order.
func (v ValidationIssues) Messages() []string {
	out := make([]string, 0, len(v))
	for _, issue := range v {
		out = append(out, issue.Message)
	}
	return out
}

// Codes lists the issue types in order.
func (v ValidationIssues) Codes() []string {
	out := make([]string, 0, len(v))
	for _, issue := range v {
		out = append(out, issue.Type)
	}
	return out
}

func (v ValidationIssues) Value() (driver.Value, error) {
	if v == nil {
		return "[]", nil
	}
	return encodeJSON([]ValidationIssue(v))
}

func (v *ValidationIssues) Scan(value any) error {
	decoded := ValidationIssues{}
	if err := decodeJSON("validation_issues", value, &decoded); err != nil {
		return err
	}
	*v = decoded
	return nil
}
