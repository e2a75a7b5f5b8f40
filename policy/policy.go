// Package policy defines persisted permission decisions and their
// expiry semantics.
package policy

import (
	"context"
	"errors"
	"time"

	"github.com/appfence/fence/appid"
	"github.com/appfence/fence/decision"
	"github.com/appfence/fence/perm"
)

// ErrCorrupt marks a stored policy row whose permission or decision
// payload no longer parses. Readers treat such rows as absent after
// logging; the sentinel keeps corruption distinguishable from I/O errors.
var ErrCorrupt = errors.New("policy: corrupt record")

// Record is one persisted decision for an (application, permission) pair.
// At most one record exists per (App.Primary, Permission.Key()).
type Record struct {
	App        appid.AppID       `json:"app"`
	Permission perm.Permission   `json:"permission"`
	Decision   decision.Decision `json:"decision"`

	// ExpiresAt is set only for time-limited grants. A record is live
	// strictly before this instant and expired at and after it.
	ExpiresAt *time.Time `json:"expires_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Expired reports whether the record is expired at now.
func (r *Record) Expired(now time.Time) bool {
	return r.ExpiresAt != nil && !now.Before(*r.ExpiresAt)
}

// Store is the persistence interface for policies.
type Store interface {
	// GetPolicy returns the live policy for (primary, permission key),
	// or (nil, nil) when no record exists or the record has expired.
	GetPolicy(ctx context.Context, primary, permKey string) (*Record, error)

	// GetAppPolicies returns all live policies for an application.
	GetAppPolicies(ctx context.Context, primary string) ([]*Record, error)

	// StorePolicy upserts a policy, registering the application first.
	// A later record for the same (application, permission) replaces the
	// earlier one entirely, including its expiry.
	StorePolicy(ctx context.Context, rec *Record) error

	// StorePolicies upserts a batch of policies for one application
	// atomically where the backend supports transactions.
	StorePolicies(ctx context.Context, app appid.AppID, recs []*Record) error

	// DeletePolicy removes the policy for (primary, permission key).
	// Deleting an absent policy is not an error.
	DeletePolicy(ctx context.Context, primary, permKey string) error

	// CleanupExpiredPolicies deletes records expired at now and returns
	// how many were removed.
	CleanupExpiredPolicies(ctx context.Context, now time.Time) (int64, error)
}
