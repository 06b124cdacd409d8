package geofence

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/carestaff-backend/pkg/db/dbtest"
	"github.com/angelmondragon/carestaff-backend/pkg/db/models"
	"github.com/angelmondragon/carestaff-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/carestaff-backend/pkg/errors"
	"github.com/angelmondragon/carestaff-backend/pkg/logger"
	"github.com/angelmondragon/carestaff-backend/pkg/visibility"
)

func floatPtr(v float64) *float64 { return &v }

type fixture struct {
	db       *gorm.DB
	svc      *Service
	agencyID uuid.UUID
	scope    visibility.Scope
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	conn := dbtest.Open(t)
	svc, err := NewService(NewRepository(conn), logger.New(logger.Options{ServiceName: "geofence-test"}))
	require.NoError(t, err)
	agencyID := uuid.New()
	return fixture{
		db:       conn,
		svc:      svc,
		agencyID: agencyID,
		scope:    visibility.Scope{Role: enums.ActorRoleAgencyAdmin, AgencyID: &agencyID},
	}
}

func (f fixture) client(t *testing.T, mutate func(*models.Client)) models.Client {
	t.Helper()
	client := models.Client{
		ID:                   uuid.New(),
		AgencyID:             f.agencyID,
		Name:                 "Oak House",
		Latitude:             floatPtr(51.5007),
		Longitude:            floatPtr(-0.1246),
		GeofenceRadiusMeters: 100,
		GeofenceEnabled:      true,
	}
	if mutate != nil {
		mutate(&client)
	}
	require.NoError(t, f.db.Create(&client).Error)
	// gorm skips zero-valued bools that carry a default
	require.NoError(t, f.db.Model(&models.Client{}).Where("id = ?", client.ID).Update("geofence_enabled", client.GeofenceEnabled).Error)
	return client
}

func (f fixture) timesheet(t *testing.T, clientID uuid.UUID) models.Timesheet {
	t.Helper()
	ts := models.Timesheet{
		ID:       uuid.New(),
		AgencyID: f.agencyID,
		ShiftID:  uuid.New(),
		StaffID:  uuid.New(),
		ClientID: clientID,
		Status:   enums.TimesheetStatusSubmitted,
	}
	require.NoError(t, f.db.Create(&ts).Error)
	return ts
}

func TestValidateWithinGeofenceRecordsResult(t *testing.T) {
	f := newFixture(t)
	client := f.client(t, nil)
	ts := f.timesheet(t, client.ID)

	resp, err := f.svc.Validate(context.Background(), Request{
		StaffLocation: &Location{Latitude: 51.5010, Longitude: -0.1246, Accuracy: floatPtr(8)},
		ClientID:      client.ID,
		TimesheetID:   &ts.ID,
		Scope:         f.scope,
	})
	require.NoError(t, err)
	assert.True(t, resp.Validated)
	assert.Equal(t, ReasonWithin, resp.Reason)
	require.NotNil(t, resp.DistanceMeters)
	assert.Equal(t, 33, *resp.DistanceMeters)
	assert.Equal(t, "✅ Verified: 33m from Oak House", resp.Message)
	assert.Nil(t, resp.RecommendedAction)

	var stored models.Timesheet
	require.NoError(t, f.db.First(&stored, "id = ?", ts.ID).Error)
	require.NotNil(t, stored.GeofenceValidated)
	assert.True(t, *stored.GeofenceValidated)
	require.NotNil(t, stored.LocationVerified)
	assert.True(t, *stored.LocationVerified)
	assert.Nil(t, stored.GeofenceViolationReason)
}

func TestValidateOutsideGeofence(t *testing.T) {
	f := newFixture(t)
	client := f.client(t, nil)
	ts := f.timesheet(t, client.ID)

	resp, err := f.svc.Validate(context.Background(), Request{
		StaffLocation: &Location{Latitude: 51.5100, Longitude: -0.1246},
		ClientID:      client.ID,
		TimesheetID:   &ts.ID,
		Scope:         f.scope,
	})
	require.NoError(t, err)
	assert.False(t, resp.Validated)
	assert.Equal(t, ReasonOutside, resp.Reason)
	assert.Contains(t, resp.Message, "❌ Too far:")
	assert.Contains(t, resp.Message, "(limit: 100m)")
	require.NotNil(t, resp.RecommendedAction)

	var stored models.Timesheet
	require.NoError(t, f.db.First(&stored, "id = ?", ts.ID).Error)
	require.NotNil(t, stored.GeofenceValidated)
	assert.False(t, *stored.GeofenceValidated)
	require.NotNil(t, stored.GeofenceViolationReason)
	assert.Contains(t, *stored.GeofenceViolationReason, "Staff was ")
}

func TestValidateDisabledAndMissingCoordinatesPassByPolicy(t *testing.T) {
	f := newFixture(t)
	disabled := f.client(t, func(c *models.Client) { c.GeofenceEnabled = false })
	unset := f.client(t, func(c *models.Client) {
		c.Latitude = nil
		c.Longitude = nil
	})
	location := &Location{Latitude: 40, Longitude: 0}

	resp, err := f.svc.Validate(context.Background(), Request{StaffLocation: location, ClientID: disabled.ID, Scope: f.scope})
	require.NoError(t, err)
	assert.True(t, resp.Validated)
	assert.Equal(t, ReasonDisabled, resp.Reason)

	resp, err = f.svc.Validate(context.Background(), Request{StaffLocation: location, ClientID: unset.ID, Scope: f.scope})
	require.NoError(t, err)
	assert.True(t, resp.Validated)
	assert.Equal(t, ReasonNoCoordinates, resp.Reason)
	assert.Equal(t, "Please set client coordinates in Client settings", resp.Warning)
}

func TestValidateInputErrors(t *testing.T) {
	f := newFixture(t)
	client := f.client(t, nil)

	_, err := f.svc.Validate(context.Background(), Request{ClientID: client.ID, Scope: f.scope})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.Validate(context.Background(), Request{StaffLocation: &Location{}, ClientID: uuid.New(), Scope: f.scope})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	other := uuid.New()
	_, err = f.svc.Validate(context.Background(), Request{
		StaffLocation: &Location{},
		ClientID:      client.ID,
		Scope:         visibility.Scope{Role: enums.ActorRoleAgencyAdmin, AgencyID: &other},
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}
