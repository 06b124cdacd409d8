package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/carestaff-backend/internal/cron"
	"github.com/angelmondragon/carestaff-backend/internal/matching"
	"github.com/angelmondragon/carestaff-backend/internal/shifts"
	"github.com/angelmondragon/carestaff-backend/internal/timesheets"
	"github.com/angelmondragon/carestaff-backend/pkg/auth"
	"github.com/angelmondragon/carestaff-backend/pkg/config"
	"github.com/angelmondragon/carestaff-backend/pkg/enums"
	"github.com/angelmondragon/carestaff-backend/pkg/types"
	"github.com/angelmondragon/carestaff-backend/pkg/visibility"
)

type stubTimesheets struct {
	req   timesheets.ValidateRequest
	scope visibility.Scope
	resp  *timesheets.ValidateResponse
	batch *timesheets.BatchReport
	err   error
}

func (s *stubTimesheets) Validate(_ context.Context, req timesheets.ValidateRequest) (*timesheets.ValidateResponse, error) {
	s.req = req
	return s.resp, s.err
}

func (s *stubTimesheets) AutoApproveSubmitted(_ context.Context, scope visibility.Scope) (*timesheets.BatchReport, error) {
	s.scope = scope
	return s.batch, s.err
}

type stubMatcher struct {
	req  matching.Request
	resp *matching.Response
}

func (s *stubMatcher) Match(_ context.Context, req matching.Request) (*matching.Response, error) {
	s.req = req
	return s.resp, nil
}

type stubShifts struct {
	scope visibility.Scope
}

func (s *stubShifts) ScanNoShows(_ context.Context, scope visibility.Scope) (*shifts.NoShowReport, error) {
	s.scope = scope
	return &shifts.NoShowReport{
		Success:  true,
		Checked:  2,
		Reminded: []shifts.Reminded{{ShiftID: uuid.New(), StaffName: "Ada Okafor", Action: "reminder_sent"}},
		Errors:   []shifts.ShiftError{{ShiftID: uuid.New(), Error: "journal write failed"}},
	}, nil
}

func (s *stubShifts) ScanEscalations(_ context.Context, scope visibility.Scope) (*shifts.EscalationReport, error) {
	s.scope = scope
	return &shifts.EscalationReport{Success: true, Results: shifts.EscalationResults{ShiftsChecked: 4, BroadcastsSent: 3}}, nil
}

func (s *stubShifts) SendReminders(_ context.Context, scope visibility.Scope) (*shifts.ReminderReport, error) {
	s.scope = scope
	return &shifts.ReminderReport{Success: true, Results: shifts.ReminderResults{Checked: 1, Reminders24hSent: 1}}, nil
}

type stubJobs struct {
	ran []string
	err error
}

func (s *stubJobs) RunNamed(_ context.Context, name string) error {
	s.ran = append(s.ran, name)
	return s.err
}

type namedJob string

func (j namedJob) Name() string { return string(j) }
func (j namedJob) Run(context.Context) error { return nil }

func runCLI(t *testing.T, a *app, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	loads := 0
	root := newRootCmd(func(context.Context) (*app, error) {
		loads++
		return a, nil
	}, &out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	assert.LessOrEqual(t, loads, 1)
	return out.String(), err
}

func TestValidateCommandRendersDecision(t *testing.T) {
	score := 45
	id := uuid.New()
	ts := &stubTimesheets{resp: &timesheets.ValidateResponse{
		Success:        true,
		TimesheetID:    id,
		Decision:       enums.DecisionEscalateToAdmin,
		Score:          &score,
		RequiresReview: true,
		Message:        "escalated",
		Issues: types.ValidationIssues{
			{Type: "geofence_violation", Severity: enums.SeverityHigh, Penalty: 50, Message: "clocked in 900m away"},
		},
	}}

	out, err := runCLI(t, &app{Timesheets: ts}, "validate", id.String())
	require.NoError(t, err)
	assert.Equal(t, id, ts.req.TimesheetID)
	assert.True(t, ts.req.ManualTrigger)
	assert.Equal(t, enums.ActorRoleSystem, ts.req.Scope.Role)
	assert.Contains(t, out, "escalate_to_admin")
	assert.Contains(t, out, "geofence_violation")
	assert.Contains(t, out, "45")
}

func TestValidateCommandScheduledAndAgencyScope(t *testing.T) {
	agency := uuid.New()
	ts := &stubTimesheets{resp: &timesheets.ValidateResponse{Success: false, Reason: "already_processed"}}

	out, err := runCLI(t, &app{Timesheets: ts}, "validate", uuid.NewString(), "--scheduled", "--agency", agency.String())
	require.NoError(t, err)
	assert.False(t, ts.req.ManualTrigger)
	assert.Equal(t, enums.ActorRoleAgencyAdmin, ts.req.Scope.Role)
	require.NotNil(t, ts.req.Scope.AgencyID)
	assert.Equal(t, agency, *ts.req.Scope.AgencyID)
	assert.Contains(t, out, "already_processed")
}

func TestValidateCommandRejectsBadInput(t *testing.T) {
	_, err := runCLI(t, &app{Timesheets: &stubTimesheets{}}, "validate", "not-a-uuid")
	assert.ErrorContains(t, err, "invalid timesheet id")

	_, err = runCLI(t, &app{Timesheets: &stubTimesheets{}}, "validate", uuid.NewString(), "--agency", "nope")
	assert.ErrorContains(t, err, "invalid --agency")

	_, err = runCLI(t, &app{Timesheets: &stubTimesheets{err: errors.New("timesheet not found")}}, "validate", uuid.NewString())
	assert.ErrorContains(t, err, "timesheet not found")
}

func TestMatchCommandJSON(t *testing.T) {
	shiftID := uuid.New()
	matcher := &stubMatcher{resp: &matching.Response{
		Success: true,
		ShiftID: shiftID,
		Matches: []matching.Match{{StaffID: uuid.New(), StaffName: "Ada Okafor", TotalScore: 88, Badge: "TOP_MATCH"}},
	}}

	out, err := runCLI(t, &app{Matcher: matcher}, "match", shiftID.String(), "--limit", "3", "--json")
	require.NoError(t, err)
	assert.Equal(t, 3, matcher.req.Limit)
	assert.Equal(t, shiftID, matcher.req.ShiftID)

	var decoded matching.Response
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	require.Len(t, decoded.Matches, 1)
	assert.Equal(t, 88, decoded.Matches[0].TotalScore)

	_, err = runCLI(t, &app{Matcher: matcher}, "match", shiftID.String(), "--limit", "51")
	assert.ErrorContains(t, err, "--limit must be between 1 and 50")
}

func TestScanCommandsUseScope(t *testing.T) {
	sh := &stubShifts{}
	a := &app{Shifts: sh, Timesheets: &stubTimesheets{batch: &timesheets.BatchReport{Success: true, Checked: 2, ApprovalRate: 50}}}

	out, err := runCLI(t, a, "scan", "no-show")
	require.NoError(t, err)
	assert.Equal(t, enums.ActorRoleSystem, sh.scope.Role)
	assert.Contains(t, out, "Ada Okafor")
	assert.Contains(t, out, "journal write failed")

	out, err = runCLI(t, a, "scan", "escalation")
	require.NoError(t, err)
	assert.Contains(t, out, "4")

	_, err = runCLI(t, a, "scan", "reminders")
	require.NoError(t, err)

	out, err = runCLI(t, a, "scan", "auto-approval")
	require.NoError(t, err)
	assert.Contains(t, out, "50.0% approved")
}

func TestJobsCommands(t *testing.T) {
	jobs := &stubJobs{}
	a := &app{
		Jobs: jobs,
		Schedule: []cron.Entry{
			{Spec: "*/5 * * * *", Job: namedJob("no-show-scan")},
			{Spec: "0 * * * *", Job: namedJob("auto-approval")},
		},
	}

	out, err := runCLI(t, a, "jobs", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "no-show-scan")
	assert.Contains(t, out, "*/5 * * * *")

	out, err = runCLI(t, a, "jobs", "list", "--json")
	require.NoError(t, err)
	var listed []scheduledJob
	require.NoError(t, json.Unmarshal([]byte(out), &listed))
	assert.Equal(t, []scheduledJob{{Name: "no-show-scan", Spec: "*/5 * * * *"}, {Name: "auto-approval", Spec: "0 * * * *"}}, listed)

	out, err = runCLI(t, a, "jobs", "run", "retention")
	require.NoError(t, err)
	assert.Equal(t, []string{"retention"}, jobs.ran)
	assert.Contains(t, out, "job retention finished")

	jobs.err = errors.New(`unknown job "nope"`)
	_, err = runCLI(t, a, "jobs", "run", "nope")
	assert.ErrorContains(t, err, "unknown job")
}

func TestBootstrapErrorsSurface(t *testing.T) {
	var out bytes.Buffer
	root := newRootCmd(func(context.Context) (*app, error) { return nil, errors.New("connect database: refused") }, &out)
	root.SetArgs([]string{"scan", "reminders"})
	err := root.ExecuteContext(context.Background())
	assert.ErrorContains(t, err, "connect database")
}

type stubSessions struct {
	registered []auth.Issued
	revoked    []string
	err        error
}

func (s *stubSessions) Register(_ context.Context, issued auth.Issued, _ string) error {
	if s.err != nil {
		return s.err
	}
	s.registered = append(s.registered, issued)
	return nil
}

func (s *stubSessions) Revoke(_ context.Context, id string) error {
	s.revoked = append(s.revoked, id)
	return nil
}

var (
	opsJWT  = config.JWTConfig{Secret: "ops-secret", Issuer: "carestaff", ExpirationMinutes: 60}
	mintNow = time.Now().UTC().Truncate(time.Second)
)

func testMinter(sessions *stubSessions) tokenMinter {
	return tokenMinter{cfg: opsJWT, sessions: sessions, now: func() time.Time { return mintNow }}
}

func TestTokenMintRegistersSession(t *testing.T) {
	sessions := &stubSessions{}
	agency := uuid.New()

	out, err := runCLI(t, &app{Tokens: testMinter(sessions)}, "token", "mint", "--role", "agency_admin", "--agency", agency.String(), "--ttl", "24h", "--json")
	require.NoError(t, err)

	var issued auth.Issued
	require.NoError(t, json.Unmarshal([]byte(out), &issued))
	require.Len(t, sessions.registered, 1)
	assert.Equal(t, issued.ID, sessions.registered[0].ID)
	assert.True(t, issued.ExpiresAt.Equal(mintNow.Add(24*time.Hour)))

	claims, err := auth.ParseAccessToken(opsJWT, issued.Token)
	require.NoError(t, err)
	require.NotNil(t, claims.AgencyID)
	assert.Equal(t, agency, *claims.AgencyID)
	assert.Equal(t, enums.ActorRoleAgencyAdmin, claims.Role)
}

func TestTokenMintFailures(t *testing.T) {
	_, err := runCLI(t, &app{Tokens: testMinter(&stubSessions{})}, "token", "mint", "--role", "agency_admin")
	assert.ErrorContains(t, err, "require an agency id")

	_, err = runCLI(t, &app{Tokens: testMinter(&stubSessions{})}, "token", "mint", "--role", "nurse")
	assert.ErrorContains(t, err, "invalid --role")

	out, err := runCLI(t, &app{Tokens: testMinter(&stubSessions{err: errors.New("redis down")})}, "token", "mint")
	assert.ErrorContains(t, err, "register session")
	assert.Empty(t, out, "an unregistered token is never printed")
}

func TestTokenRevoke(t *testing.T) {
	sessions := &stubSessions{}
	out, err := runCLI(t, &app{Tokens: testMinter(sessions)}, "token", "revoke", "jti-9")
	require.NoError(t, err)
	assert.Equal(t, []string{"jti-9"}, sessions.revoked)
	assert.Contains(t, out, "token jti-9 revoked")
}
