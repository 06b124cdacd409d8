package workflows

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/carestaff-backend/pkg/db/dbtest"
	"github.com/angelmondragon/carestaff-backend/pkg/db/models"
	"github.com/angelmondragon/carestaff-backend/pkg/enums"
)

func seedWorkflow(t *testing.T, repo Repository, agencyID uuid.UUID, status enums.WorkflowStatus, createdAt time.Time) models.AdminWorkflow {
	t.Helper()
	wf := models.AdminWorkflow{
		ID:              uuid.New(),
		AgencyID:        agencyID,
		Type:            enums.WorkflowTypeTimesheetDiscrepancy,
		Priority:        enums.SeverityHigh,
		Status:          status,
		Title:           "Timesheet Discrepancy",
		Description:     "review",
		RelatedEntity:   enums.RelatedEntityTimesheet,
		RelatedEntityID: uuid.New(),
		IssueCodes:      []string{"missing_signature"},
		AutoCreated:     true,
		CreatedAt:       createdAt,
	}
	require.NoError(t, repo.Create(context.Background(), &wf))
	return wf
}

func TestRepositoryListPagesNewestFirst(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	agencyID := uuid.New()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	var created []models.AdminWorkflow
	for i := 0; i < 3; i++ {
		created = append(created, seedWorkflow(t, repo, agencyID, enums.WorkflowStatusPending, base.Add(time.Duration(i)*time.Minute)))
	}
	seedWorkflow(t, repo, uuid.New(), enums.WorkflowStatusPending, base)

	first, cursor, err := repo.List(context.Background(), listWorkflowsParams{AgencyID: &agencyID, Limit: 2})
	require.NoError(t, err)
	require.Len(t, first, 2)
	require.Equal(t, created[2].ID, first[0].ID)
	require.Equal(t, created[1].ID, first[1].ID)
	require.NotNil(t, cursor)

	second, cursor, err := repo.List(context.Background(), listWorkflowsParams{AgencyID: &agencyID, Limit: 2, Cursor: cursor})
	require.NoError(t, err)
	require.Len(t, second, 1)
	require.Equal(t, created[0].ID, second[0].ID)
	require.Nil(t, cursor)
}

func TestRepositoryListOpenForEntity(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	agencyID := uuid.New()
	open := seedWorkflow(t, repo, agencyID, enums.WorkflowStatusInProgress, time.Now().UTC())
	seedWorkflow(t, repo, agencyID, enums.WorkflowStatusResolved, time.Now().UTC())

	rows, err := repo.ListOpenForEntity(context.Background(), enums.RelatedEntityTimesheet, open.RelatedEntityID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, []string{"missing_signature"}, []string(rows[0].IssueCodes))

	rows, err = repo.ListOpenForEntity(context.Background(), enums.RelatedEntityTimesheet, uuid.New())
	require.NoError(t, err)
	require.Empty(t, rows)
}
