// Package domain contains persistence models for organizations and sites.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Organization represents a tenant.
type Organization struct {
	ID           snowflake.ID      `gorm:"primaryKey" json:"id"`
	Name         string            `gorm:"type:text;not null" json:"name"`
	Slug         string            `gorm:"type:text;not null;uniqueIndex:ux_organizations_slug" json:"slug"`
	TimezoneName string            `gorm:"column:timezone_name;not null;default:UTC" json:"timezone_name"`
	Metadata     datatypes.JSONMap `gorm:"type:jsonb" json:"metadata"`
	CreatedAt    time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt    time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Organization) TableName() string { return "organizations" }

// Site is a physical location with a geofence reference point. Intake
// validation measures check-in distance against it.
type Site struct {
	ID               snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID            snowflake.ID `gorm:"not null;index;uniqueIndex:ux_sites_org_code,priority:1" json:"org_id"`
	Name             string       `gorm:"type:text;not null" json:"name"`
	Code             string       `gorm:"type:text;not null;uniqueIndex:ux_sites_org_code,priority:2" json:"code"`
	Latitude         float64      `gorm:"not null" json:"latitude"`
	Longitude        float64      `gorm:"not null" json:"longitude"`
	GeofenceRadiusM  float64      `gorm:"column:geofence_radius_m;not null" json:"geofence_radius_m"`
	Active           bool         `gorm:"not null;default:true" json:"active"`
	CreatedAt        time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt        time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Site) TableName() string { return "sites" }
