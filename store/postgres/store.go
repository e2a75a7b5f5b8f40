// Package postgres provides a PostgreSQL implementation of the fence
// composite store using grove ORM with Go-based migrations. It suits
// deployments where policy is managed centrally for a fleet of hosts.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/migrate"

	"github.com/appfence/fence/appid"
	"github.com/appfence/fence/application"
	"github.com/appfence/fence/audit"
	"github.com/appfence/fence/policy"
	"github.com/appfence/fence/store"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// Postgres error codes worth translating for callers.
const (
	pgForeignKeyViolation = "23503"
	pgUniqueViolation     = "23505"
)

// Store is a PostgreSQL implementation of the composite fence store.
type Store struct {
	db   *grove.DB
	pgdb *pgdriver.PgDB
}

// New creates a new PostgreSQL store.
func New(db *grove.DB) *Store {
	return &Store{
		db:   db,
		pgdb: pgdriver.Unwrap(db),
	}
}

// Migrate runs programmatic migrations via the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pgdb)
	if err != nil {
		return fmt.Errorf("fence/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("fence/postgres: migration failed: %w", err)
	}
	return nil
}

// Ping verifies the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// isPgCode reports whether err carries the given PostgreSQL error code.
func isPgCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

// ──────────────────────────────────────────────────
// Application operations
// ──────────────────────────────────────────────────

func (s *Store) RegisterApplication(ctx context.Context, app appid.AppID, now time.Time) error {
	m := applicationToModel(&application.Record{App: app, FirstSeen: now, LastSeen: now})
	_, err := s.pgdb.NewInsert(m).
		OnConflict("(app_id) DO UPDATE SET binary_hash = EXCLUDED.binary_hash, last_seen = EXCLUDED.last_seen").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("fence: register application: %w", err)
	}
	return nil
}

func (s *Store) GetApplication(ctx context.Context, primary string) (*application.Record, error) {
	m := new(applicationModel)
	err := s.pgdb.NewSelect(m).Where("app_id = ?", primary).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("fence: get application: %w", err)
	}
	return applicationFromModel(m), nil
}

func (s *Store) ListApplications(ctx context.Context) ([]*application.Record, error) {
	var models []applicationModel
	err := s.pgdb.NewSelect(&models).OrderExpr("first_seen ASC").Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("fence: list applications: %w", err)
	}
	result := make([]*application.Record, len(models))
	for i := range models {
		result[i] = applicationFromModel(&models[i])
	}
	return result, nil
}

// ──────────────────────────────────────────────────
// Policy operations
// ──────────────────────────────────────────────────

func (s *Store) GetPolicy(ctx context.Context, primary, permKey string) (*policy.Record, error) {
	m := new(policyModel)
	err := s.pgdb.NewSelect(m).
		Where("app_id = ?", primary).
		Where("permission = ?", permKey).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("fence: get policy: %w", err)
	}
	rec, err := policyFromModel(m, s.binaryHash(ctx, primary))
	if err != nil {
		return nil, fmt.Errorf("fence: get policy: %w", err)
	}
	// Expiry is filtered at read time; stale rows stay until cleanup.
	if rec.Expired(time.Now().UTC()) {
		return nil, nil
	}
	return rec, nil
}

func (s *Store) GetAppPolicies(ctx context.Context, primary string) ([]*policy.Record, error) {
	var models []policyModel
	err := s.pgdb.NewSelect(&models).
		Where("app_id = ?", primary).
		OrderExpr("permission ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("fence: get app policies: %w", err)
	}
	hash := s.binaryHash(ctx, primary)
	now := time.Now().UTC()
	result := make([]*policy.Record, 0, len(models))
	for i := range models {
		rec, err := policyFromModel(&models[i], hash)
		if err != nil {
			return nil, fmt.Errorf("fence: get app policies: %w", err)
		}
		if rec.Expired(now) {
			continue
		}
		result = append(result, rec)
	}
	return result, nil
}

func (s *Store) StorePolicy(ctx context.Context, rec *policy.Record) error {
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if err := s.RegisterApplication(ctx, rec.App, now); err != nil {
		return err
	}
	m := policyToModel(rec)
	_, err := s.pgdb.NewInsert(m).
		OnConflict("(app_id, permission) DO UPDATE SET decision = EXCLUDED.decision, expires_at = EXCLUDED.expires_at, created_at = EXCLUDED.created_at").
		Exec(ctx)
	if err != nil {
		if isPgCode(err, pgForeignKeyViolation) {
			return fmt.Errorf("fence: store policy: application %q vanished: %w", rec.App.Primary, err)
		}
		return fmt.Errorf("fence: store policy: %w", err)
	}
	return nil
}

func (s *Store) StorePolicies(ctx context.Context, app appid.AppID, recs []*policy.Record) error {
	now := time.Now().UTC()

	tx, err := s.pgdb.BeginTxQuery(ctx, nil)
	if err != nil {
		return fmt.Errorf("fence: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback on error is intentional

	am := applicationToModel(&application.Record{App: app, FirstSeen: now, LastSeen: now})
	_, err = tx.NewInsert(am).
		OnConflict("(app_id) DO UPDATE SET binary_hash = EXCLUDED.binary_hash, last_seen = EXCLUDED.last_seen").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("fence: store policies: register application: %w", err)
	}

	for _, rec := range recs {
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = now
		}
		m := policyToModel(rec)
		m.AppID = app.Primary
		_, err = tx.NewInsert(m).
			OnConflict("(app_id, permission) DO UPDATE SET decision = EXCLUDED.decision, expires_at = EXCLUDED.expires_at, created_at = EXCLUDED.created_at").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("fence: store policies: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("fence: commit tx: %w", err)
	}
	return nil
}

func (s *Store) DeletePolicy(ctx context.Context, primary, permKey string) error {
	_, err := s.pgdb.NewDelete((*policyModel)(nil)).
		Where("app_id = ?", primary).
		Where("permission = ?", permKey).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("fence: delete policy: %w", err)
	}
	return nil
}

func (s *Store) CleanupExpiredPolicies(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.pgdb.NewDelete((*policyModel)(nil)).
		Where("expires_at IS NOT NULL").
		Where("expires_at <= ?", now).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("fence: cleanup expired policies: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("fence: cleanup expired policies rows: %w", err)
	}
	return n, nil
}

// binaryHash looks up the recorded hash for an application so policy
// records round-trip with the full AppID. Missing rows yield "".
func (s *Store) binaryHash(ctx context.Context, primary string) string {
	m := new(applicationModel)
	if err := s.pgdb.NewSelect(m).Where("app_id = ?", primary).Scan(ctx); err != nil {
		return ""
	}
	return m.BinaryHash
}

// ──────────────────────────────────────────────────
// Audit operations
// ──────────────────────────────────────────────────

func (s *Store) AppendAudit(ctx context.Context, e *audit.Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if err := s.RegisterApplication(ctx, e.App, e.CreatedAt); err != nil {
		return err
	}
	m := auditToModel(e)
	if _, err := s.pgdb.NewInsert(m).Exec(ctx); err != nil {
		if isPgCode(err, pgUniqueViolation) {
			return fmt.Errorf("fence: append audit: duplicate entry id %s: %w", e.ID, err)
		}
		return fmt.Errorf("fence: append audit: %w", err)
	}
	return nil
}

func (s *Store) ListAuditEntries(ctx context.Context, limit int) ([]*audit.Entry, error) {
	var models []auditModel
	q := s.pgdb.NewSelect(&models).OrderExpr("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("fence: list audit entries: %w", err)
	}
	return auditsFromModels(models)
}

func (s *Store) ListAuditEntriesForApp(ctx context.Context, primary string, limit int) ([]*audit.Entry, error) {
	var models []auditModel
	q := s.pgdb.NewSelect(&models).
		Where("app_id = ?", primary).
		OrderExpr("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("fence: list audit entries for app: %w", err)
	}
	return auditsFromModels(models)
}

func (s *Store) CountAuditEntries(ctx context.Context) (int64, error) {
	count, err := s.pgdb.NewSelect((*auditModel)(nil)).Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("fence: count audit entries: %w", err)
	}
	return count, nil
}

func (s *Store) PurgeAuditEntries(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.pgdb.NewDelete((*auditModel)(nil)).
		Where("created_at < ?", before).Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("fence: purge audit entries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("fence: purge audit entries rows: %w", err)
	}
	return n, nil
}

func auditsFromModels(models []auditModel) ([]*audit.Entry, error) {
	result := make([]*audit.Entry, len(models))
	for i := range models {
		e, err := auditFromModel(&models[i])
		if err != nil {
			return nil, fmt.Errorf("fence: decode audit entry: %w", err)
		}
		result[i] = e
	}
	return result, nil
}
