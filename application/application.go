// Package application defines the registered-application entity.
package application

import (
	"context"
	"time"

	"github.com/appfence/fence/appid"
)

// Record is a known application with first/last observation times.
type Record struct {
	App       appid.AppID `json:"app" db:"app"`
	FirstSeen time.Time   `json:"first_seen" db:"first_seen"`
	LastSeen  time.Time   `json:"last_seen" db:"last_seen"`
}

// Store is the persistence interface for applications.
type Store interface {
	// RegisterApplication records that app was observed now. It is
	// idempotent: a new application gets FirstSeen = LastSeen = now, a
	// known one keeps FirstSeen and has LastSeen and BinaryHash updated.
	RegisterApplication(ctx context.Context, app appid.AppID, now time.Time) error

	// GetApplication returns the record for the application with the
	// given primary identifier, or (nil, nil) when unknown.
	GetApplication(ctx context.Context, primary string) (*Record, error)

	// ListApplications returns all known applications ordered by
	// FirstSeen ascending.
	ListApplications(ctx context.Context) ([]*Record, error)
}
