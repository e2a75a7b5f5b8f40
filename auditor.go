package fence

import (
	"context"
	"log/slog"
	"time"

	"github.com/appfence/fence/audit"
	"github.com/appfence/fence/decision"
	"github.com/appfence/fence/id"
	"github.com/appfence/fence/store"
)

// Auditor records every resolved permission check in the append-only
// audit log and mirrors it to the structured logger. A failed audit
// write is surfaced to the caller, never dropped.
type Auditor struct {
	store  store.Store
	logger *slog.Logger
	now    func() time.Time
}

// LogPermissionCheck appends one resolved check to the audit log.
// The entry's ID and timestamp are assigned here.
func (a *Auditor) LogPermissionCheck(ctx context.Context, req *CheckRequest, d *decision.Decision, granted, prompted bool) error {
	entry := &audit.Entry{
		ID:          id.NewAuditID(),
		App:         req.App,
		PID:         req.PID,
		UID:         req.UID,
		Permission:  req.Permission,
		Decision:    d,
		Granted:     granted,
		WasPrompted: prompted,
		CreatedAt:   a.now(),
	}
	if err := a.store.AppendAudit(ctx, entry); err != nil {
		a.logger.Error("audit write failed",
			slog.String("app", req.App.Primary),
			slog.String("permission", req.Permission.Key()),
			slog.String("error", err.Error()))
		return err
	}

	attrs := []any{
		slog.String("audit_id", entry.ID.String()),
		slog.String("app", req.App.Primary),
		slog.String("permission", req.Permission.Key()),
		slog.Uint64("pid", uint64(req.PID)),
		slog.Uint64("uid", uint64(req.UID)),
		slog.Bool("prompted", prompted),
	}
	if d != nil {
		attrs = append(attrs, slog.String("decision", d.Encode()))
	}
	if granted {
		a.logger.Info("permission granted", attrs...)
	} else {
		a.logger.Warn("permission denied", attrs...)
	}
	return nil
}

// RecentEntries returns the newest audit entries, most recent first.
// limit <= 0 returns everything.
func (a *Auditor) RecentEntries(ctx context.Context, limit int) ([]*audit.Entry, error) {
	return a.store.ListAuditEntries(ctx, limit)
}

// EntriesForApp returns the newest audit entries for one application.
func (a *Auditor) EntriesForApp(ctx context.Context, primary string, limit int) ([]*audit.Entry, error) {
	return a.store.ListAuditEntriesForApp(ctx, primary, limit)
}

// Count returns the total number of audit entries.
func (a *Auditor) Count(ctx context.Context) (int64, error) {
	return a.store.CountAuditEntries(ctx)
}

// Purge deletes audit entries recorded before the cutoff and returns
// how many were removed.
func (a *Auditor) Purge(ctx context.Context, before time.Time) (int64, error) {
	return a.store.PurgeAuditEntries(ctx, before)
}
