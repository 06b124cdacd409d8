package types

import "time"

// DecisionQueryRequest selects the decision rows summarized for a dashboard.
type DecisionQueryRequest struct {
	AgencyID string
	Start    time.Time
	End      time.Time
}

// DecisionCount is the number of timesheets given one decision on one day.
type DecisionCount struct {
	Date     string `json:"date"`
	Decision string `json:"decision"`
	Count    int64  `json:"count"`
}

// LabelValue represents a top-N entry such as an issue code.
type LabelValue struct {
	Label string `json:"label"`
	Value int64  `json:"value"`
}

// DecisionQueryResponse wraps the validation KPIs for the dashboard.
type DecisionQueryResponse struct {
	Daily        []DecisionCount `json:"daily"`
	TopIssues    []LabelValue    `json:"top_issues"`
	Total        int64           `json:"total"`
	Approved     int64           `json:"approved"`
	ApprovalRate float64         `json:"approval_rate"`
	AverageScore float64         `json:"average_score"`
	NoShows      int64           `json:"no_shows"`
	Escalations  int64           `json:"escalations"`
}
