package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/carestaff-backend/pkg/migrate"
)

func TestCreateAndValidateNeedNoDatabase(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer

	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"create", "add client geofence radius", "--dir", dir})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "_add_client_geofence_radius.sql")

	out.Reset()
	root = newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"validate", "--dir", dir})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "migrations valid")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.sql"), []byte("-- +goose Up\n"), 0o644))
	root = newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"validate", "--dir", dir})
	assert.ErrorContains(t, root.Execute(), "invalid migration filename")
}

func TestToRequiresVersion(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"to"})
	root.SetOut(&bytes.Buffer{})
	assert.Error(t, root.Execute())
}

func TestPrinters(t *testing.T) {
	var out bytes.Buffer
	printSteps(&out, nil)
	assert.Equal(t, "nothing to do\n", out.String())

	out.Reset()
	printSteps(&out, []migrate.Step{{Version: 20260301090500, File: "20260301090500_create_outbox_events.sql", Duration: 12 * time.Millisecond}})
	assert.Contains(t, out.String(), "create_outbox_events")
	assert.Contains(t, out.String(), "12ms")

	out.Reset()
	printStatus(&out, []migrate.Status{
		{Version: 20260301090000, File: "20260301090000_create_agencies.sql", Applied: true, AppliedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)},
		{Version: 20260301090600, File: "20260301090600_create_notification_deliveries.sql"},
	})
	assert.Contains(t, out.String(), "2026-03-01T09:00:00Z")
	assert.Contains(t, out.String(), "pending")
}
