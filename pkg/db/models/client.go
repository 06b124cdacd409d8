package models

import (
	"time"

	"github.com/google/uuid"
)

// Client is a care site that books shifts.
type Client struct {
	ID                   uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	AgencyID             uuid.UUID `gorm:"column:agency_id;type:uuid;not null"`
	Name                 string    `gorm:"column:name;not null"`
	Postcode             *string   `gorm:"column:postcode"`
	BillingEmail         *string   `gorm:"column:billing_email"`
	ContactPhone         *string   `gorm:"column:contact_phone"`
	Latitude             *float64  `gorm:"column:latitude"`
	Longitude            *float64  `gorm:"column:longitude"`
	GeofenceRadiusMeters int       `gorm:"column:geofence_radius_meters;not null;default:100"`
	GeofenceEnabled      bool      `gorm:"column:geofence_enabled;not null;default:true"`
	CreatedAt            time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// HasCoordinates reports whether the site center is known.
func (c Client) HasCoordinates() bool {
	return c.Latitude != nil && c.Longitude != nil
}
