// Package audit defines the append-only record of permission checks.
package audit

import (
	"context"
	"time"

	"github.com/appfence/fence/appid"
	"github.com/appfence/fence/decision"
	"github.com/appfence/fence/id"
	"github.com/appfence/fence/perm"
)

// Entry is one permission-check event. Entries are immutable once
// written.
type Entry struct {
	ID         id.AuditID      `json:"id"`
	App        appid.AppID     `json:"app"`
	PID        uint32          `json:"pid"`
	UID        uint32          `json:"uid"`
	Permission perm.Permission `json:"permission"`

	// Decision is the prompt outcome that produced this entry, or nil
	// when no decision applied (deny-by-default, internal failure).
	Decision *decision.Decision `json:"decision,omitempty"`

	// Granted is the effective outcome of the check.
	Granted bool `json:"granted"`

	// WasPrompted records whether the user was asked, as opposed to the
	// outcome coming from cached policy or a default.
	WasPrompted bool `json:"was_prompted"`

	CreatedAt time.Time `json:"created_at"`
}

// Store is the persistence interface for the audit log.
type Store interface {
	// AppendAudit writes an entry, registering the application first.
	AppendAudit(ctx context.Context, e *Entry) error

	// ListAuditEntries returns the most recent entries, newest first.
	// limit <= 0 returns all entries.
	ListAuditEntries(ctx context.Context, limit int) ([]*Entry, error)

	// ListAuditEntriesForApp is ListAuditEntries filtered to one
	// application.
	ListAuditEntriesForApp(ctx context.Context, primary string, limit int) ([]*Entry, error)

	// CountAuditEntries returns the total number of entries.
	CountAuditEntries(ctx context.Context) (int64, error)

	// PurgeAuditEntries deletes entries created before the given time
	// and returns how many were removed.
	PurgeAuditEntries(ctx context.Context, before time.Time) (int64, error)
}
