package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the fence store (PostgreSQL).
var Migrations = migrate.NewGroup("fence")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_applications",
			Version: "20250101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS fence_applications (
    app_id          TEXT PRIMARY KEY,
    binary_hash     TEXT NOT NULL DEFAULT '',
    first_seen      TIMESTAMPTZ NOT NULL,
    last_seen       TIMESTAMPTZ NOT NULL
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS fence_applications`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_policies",
			Version: "20250101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS fence_policies (
    app_id          TEXT NOT NULL REFERENCES fence_applications(app_id) ON DELETE CASCADE,
    permission      TEXT NOT NULL,
    decision        TEXT NOT NULL,
    expires_at      TIMESTAMPTZ,
    created_at      TIMESTAMPTZ NOT NULL,

    PRIMARY KEY (app_id, permission)
);

CREATE INDEX IF NOT EXISTS idx_fence_policies_app ON fence_policies (app_id);
CREATE INDEX IF NOT EXISTS idx_fence_policies_expires ON fence_policies (expires_at);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS fence_policies`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_audit_log",
			Version: "20250101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS fence_audit_log (
    id              TEXT PRIMARY KEY,
    app_id          TEXT NOT NULL,
    pid             BIGINT NOT NULL DEFAULT 0,
    uid             BIGINT NOT NULL DEFAULT 0,
    permission      TEXT NOT NULL,
    decision        TEXT NOT NULL DEFAULT '',
    granted         BOOLEAN NOT NULL DEFAULT FALSE,
    was_prompted    BOOLEAN NOT NULL DEFAULT FALSE,
    created_at      TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_fence_audit_created ON fence_audit_log (created_at DESC);
CREATE INDEX IF NOT EXISTS idx_fence_audit_app ON fence_audit_log (app_id, created_at DESC);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS fence_audit_log`)
				return err
			},
		},
	)
}
