// Package dbtest opens an in-memory sqlite database carrying the service schema.
package dbtest

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var seq atomic.Int64

var schema = []string{`
CREATE TABLE IF NOT EXISTS agencies (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  contact_email TEXT,
  contact_phone TEXT,
  automation_settings TEXT NOT NULL DEFAULT '{}',
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  agency_id TEXT,
  email TEXT NOT NULL UNIQUE,
  first_name TEXT NOT NULL,
  last_name TEXT NOT NULL,
  phone TEXT,
  user_type TEXT NOT NULL,
  slack_user_id TEXT,
  is_active BOOLEAN NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS clients (
  id TEXT PRIMARY KEY,
  agency_id TEXT NOT NULL,
  name TEXT NOT NULL,
  postcode TEXT,
  billing_email TEXT,
  contact_phone TEXT,
  latitude REAL,
  longitude REAL,
  geofence_radius_meters INTEGER NOT NULL DEFAULT 100,
  geofence_enabled BOOLEAN NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS staff (
  id TEXT PRIMARY KEY,
  agency_id TEXT NOT NULL,
  first_name TEXT NOT NULL,
  last_name TEXT NOT NULL,
  role TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'active',
  email TEXT,
  phone TEXT,
  whatsapp TEXT,
  postcode TEXT,
  rating REAL,
  gps_consent BOOLEAN NOT NULL DEFAULT 0,
  dbs_checked BOOLEAN NOT NULL DEFAULT 0,
  right_to_work BOOLEAN NOT NULL DEFAULT 0,
  nmc_pin TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS shifts (
  id TEXT PRIMARY KEY,
  agency_id TEXT NOT NULL,
  client_id TEXT NOT NULL,
  assigned_staff_id TEXT,
  starts_at DATETIME NOT NULL,
  ends_at DATETIME NOT NULL,
  duration_hours REAL,
  role_required TEXT NOT NULL,
  urgency TEXT NOT NULL DEFAULT 'normal',
  work_location_within_site TEXT,
  pay_rate NUMERIC NOT NULL,
  charge_rate NUMERIC NOT NULL,
  status TEXT NOT NULL DEFAULT 'open',
  cancelled_by TEXT,
  cancelled_at DATETIME,
  cancellation_reason TEXT,
  shift_started_at DATETIME,
  shift_ended_at DATETIME,
  admin_closed_at DATETIME,
  admin_closure_outcome TEXT,
  timesheet_received BOOLEAN NOT NULL DEFAULT 0,
  timesheet_received_at DATETIME,
  journal TEXT NOT NULL DEFAULT '[]',
  reminder_sent BOOLEAN NOT NULL DEFAULT 0,
  reminder_sent_at DATETIME,
  reminder_24h_sent BOOLEAN NOT NULL DEFAULT 0,
  reminder_24h_sent_at DATETIME,
  reminder_2h_sent BOOLEAN NOT NULL DEFAULT 0,
  reminder_2h_sent_at DATETIME,
  broadcast_sent_at DATETIME,
  escalation_deadline DATETIME,
  escalated_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS timesheets (
  id TEXT PRIMARY KEY,
  agency_id TEXT NOT NULL,
  shift_id TEXT NOT NULL,
  staff_id TEXT NOT NULL,
  client_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'draft',
  total_hours REAL NOT NULL DEFAULT 0,
  break_minutes INTEGER NOT NULL DEFAULT 0,
  clock_in_time DATETIME,
  clock_out_time DATETIME,
  clock_in_latitude REAL,
  clock_in_longitude REAL,
  clock_out_latitude REAL,
  clock_out_longitude REAL,
  geofence_validated BOOLEAN,
  geofence_distance_meters REAL,
  geofence_violation_reason TEXT,
  location_verified BOOLEAN,
  staff_signature TEXT,
  client_signature TEXT,
  pay_amount NUMERIC,
  charge_amount NUMERIC,
  validation_completed_at DATETIME,
  validation_decision TEXT,
  validation_score INTEGER,
  validation_issues TEXT,
  validation_warnings TEXT,
  auto_approved BOOLEAN NOT NULL DEFAULT 0,
  client_approved_at DATETIME,
  approval_notes TEXT,
  created_at DATETIME,
  updated_at DATETIME,
  UNIQUE (shift_id, staff_id)
);`, `
CREATE TABLE IF NOT EXISTS admin_workflows (
  id TEXT PRIMARY KEY,
  agency_id TEXT NOT NULL,
  type TEXT NOT NULL,
  priority TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  title TEXT NOT NULL,
  description TEXT NOT NULL,
  related_entity_type TEXT NOT NULL,
  related_entity_id TEXT NOT NULL,
  issue_codes TEXT,
  auto_created BOOLEAN NOT NULL DEFAULT 1,
  escalation_count INTEGER NOT NULL DEFAULT 0,
  deadline DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`, `
CREATE UNIQUE INDEX IF NOT EXISTS ux_outbox_events_event_aggregate
  ON outbox_events (event_type, aggregate_type, aggregate_id) WHERE event_type = 'shift.no_show';`, `
CREATE TABLE IF NOT EXISTS outbox_dlq (
  id TEXT PRIMARY KEY,
  event_id TEXT NOT NULL,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload_json TEXT NOT NULL,
  error_reason TEXT NOT NULL,
  error_message TEXT,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  failed_at DATETIME,
  created_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS notification_deliveries (
  id TEXT PRIMARY KEY,
  event_id TEXT NOT NULL,
  agency_id TEXT NOT NULL,
  template TEXT NOT NULL,
  channel TEXT NOT NULL,
  recipient TEXT NOT NULL,
  subject TEXT,
  body TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  attempts INTEGER NOT NULL DEFAULT 0,
  last_error TEXT,
  next_attempt_at DATETIME,
  sent_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME,
  UNIQUE (event_id, channel, recipient)
);`,
}

// Open returns an isolated in-memory database with every table created.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, seq.Add(1))
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	for _, stmt := range schema {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	// a single connection keeps transactional tests on one sqlite handle
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return conn
}

// Create inserts each value, failing the test on the first error.
func Create(t testing.TB, conn *gorm.DB, values ...any) {
	t.Helper()
	for _, value := range values {
		if err := conn.Create(value).Error; err != nil {
			t.Fatalf("seed %T: %v", value, err)
		}
	}
}
