package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/angelmondragon/carestaff-backend/internal/cron"
	"github.com/angelmondragon/carestaff-backend/internal/matching"
	"github.com/angelmondragon/carestaff-backend/internal/shifts"
	"github.com/angelmondragon/carestaff-backend/internal/timesheets"
	"github.com/angelmondragon/carestaff-backend/pkg/types"
)

func newTable(w io.Writer, header table.Row) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)
	if header != nil {
		tw.AppendHeader(header)
	}
	return tw
}

func renderValidation(w io.Writer, resp *timesheets.ValidateResponse) {
	tw := newTable(w, table.Row{"Field", "Value"})
	tw.AppendRow(table.Row{"Timesheet", resp.TimesheetID})
	if !resp.Success {
		tw.AppendRow(table.Row{"Skipped", resp.Reason})
		tw.AppendRow(table.Row{"Message", resp.Message})
		tw.Render()
		return
	}
	score := "-"
	if resp.Score != nil {
		score = fmt.Sprintf("%d", *resp.Score)
	}
	tw.AppendRow(table.Row{"Decision", resp.Decision})
	tw.AppendRow(table.Row{"Action", resp.Action})
	tw.AppendRow(table.Row{"Score", score})
	tw.AppendRow(table.Row{"Auto approved", resp.AutoApproved})
	tw.AppendRow(table.Row{"Requires review", resp.RequiresReview})
	if resp.WorkflowID != nil {
		tw.AppendRow(table.Row{"Workflow", *resp.WorkflowID})
	}
	tw.AppendRow(table.Row{"Message", resp.Message})
	tw.Render()

	renderIssues(w, "Issues", resp.Issues)
	renderIssues(w, "Warnings", resp.Warnings)
}

func renderIssues(w io.Writer, title string, issues types.ValidationIssues) {
	if len(issues) == 0 {
		return
	}
	tw := newTable(w, table.Row{"Type", "Severity", "Penalty", "Message"})
	tw.SetTitle("%s", title)
	for _, issue := range issues {
		tw.AppendRow(table.Row{issue.Type, issue.Severity, issue.Penalty, issue.Message})
	}
	tw.Render()
}

func renderMatches(w io.Writer, resp *matching.Response) {
	if resp.Skipped {
		fmt.Fprintf(w, "matching skipped: %s\n", resp.Message)
		return
	}
	tw := newTable(w, table.Row{"#", "Staff", "Score", "Rel", "Prox", "Exp", "Fresh", "Rating", "Badge", "Distance"})
	for i, m := range resp.Matches {
		b := m.ScoreBreakdown
		tw.AppendRow(table.Row{i + 1, m.StaffName, m.TotalScore, b.Reliability, b.Proximity, b.Experience, b.Freshness, b.Rating, m.BadgeText, m.Distance})
	}
	if resp.AlgorithmInfo != nil {
		tw.AppendFooter(table.Row{"", "evaluated", resp.AlgorithmInfo.TotalCandidatesEvaluated})
	}
	tw.Render()
}

func renderNoShows(w io.Writer, report *shifts.NoShowReport) {
	tw := newTable(w, table.Row{"Shift", "Staff", "Action"})
	tw.SetTitle("No-show scan: %d checked", report.Checked)
	for _, r := range report.Reminded {
		tw.AppendRow(table.Row{r.ShiftID, r.StaffName, r.Action})
	}
	for _, n := range report.NoShows {
		tw.AppendRow(table.Row{n.ShiftID, n.StaffName, n.Action})
	}
	tw.Render()
	renderShiftErrors(w, report.Errors)
}

func renderEscalations(w io.Writer, report *shifts.EscalationReport) {
	res := report.Results
	tw := newTable(w, table.Row{"Checked", "Broadcasts", "Escalations", "Workflows"})
	tw.AppendRow(table.Row{res.ShiftsChecked, res.BroadcastsSent, res.EscalationsTriggered, res.WorkflowsCreated})
	tw.Render()
	renderShiftErrors(w, res.Errors)
}

func renderReminders(w io.Writer, report *shifts.ReminderReport) {
	res := report.Results
	tw := newTable(w, table.Row{"Checked", "24h sent", "2h sent", "Already sent"})
	tw.AppendRow(table.Row{res.Checked, res.Reminders24hSent, res.Reminders2hSent, res.SkippedAlreadySent})
	tw.Render()
	renderShiftErrors(w, res.Errors)
}

func renderBatch(w io.Writer, report *timesheets.BatchReport) {
	tw := newTable(w, table.Row{"Timesheet", "Outcome", "Detail"})
	tw.SetTitle("Auto-approval: %d checked, %.1f%% approved", report.Checked, report.ApprovalRate)
	for _, a := range report.AutoApproved {
		tw.AppendRow(table.Row{a.TimesheetID, "approved", fmt.Sprintf("score %d", a.ValidationScore)})
	}
	for _, f := range report.Flagged {
		tw.AppendRow(table.Row{f.TimesheetID, "flagged", strings.Join(f.Issues, ",")})
	}
	for _, e := range report.Errors {
		tw.AppendRow(table.Row{e.TimesheetID, "error", e.Error})
	}
	tw.Render()
}

func renderShiftErrors(w io.Writer, errs []shifts.ShiftError) {
	if len(errs) == 0 {
		return
	}
	tw := newTable(w, table.Row{"Shift", "Error"})
	tw.SetTitle("Errors")
	for _, e := range errs {
		tw.AppendRow(table.Row{e.ShiftID, e.Error})
	}
	tw.Render()
}

func renderSchedule(w io.Writer, entries []cron.Entry) {
	tw := newTable(w, table.Row{"Job", "Schedule"})
	for _, entry := range entries {
		tw.AppendRow(table.Row{entry.Job.Name(), entry.Spec})
	}
	tw.Render()
}
