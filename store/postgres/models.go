package postgres

import (
	"fmt"
	"time"

	"github.com/xraph/grove"

	"github.com/appfence/fence/appid"
	"github.com/appfence/fence/application"
	"github.com/appfence/fence/audit"
	"github.com/appfence/fence/decision"
	"github.com/appfence/fence/id"
	"github.com/appfence/fence/perm"
	"github.com/appfence/fence/policy"
)

// ──────────────────────────────────────────────────
// Application model
// ──────────────────────────────────────────────────

type applicationModel struct {
	grove.BaseModel `grove:"table:fence_applications"`
	AppID           string    `grove:"app_id,pk"`
	BinaryHash      string    `grove:"binary_hash"`
	FirstSeen       time.Time `grove:"first_seen,notnull"`
	LastSeen        time.Time `grove:"last_seen,notnull"`
}

func applicationToModel(rec *application.Record) *applicationModel {
	return &applicationModel{
		AppID:      rec.App.Primary,
		BinaryHash: rec.App.BinaryHash,
		FirstSeen:  rec.FirstSeen,
		LastSeen:   rec.LastSeen,
	}
}

func applicationFromModel(m *applicationModel) *application.Record {
	return &application.Record{
		App:       appid.AppID{Primary: m.AppID, BinaryHash: m.BinaryHash},
		FirstSeen: m.FirstSeen,
		LastSeen:  m.LastSeen,
	}
}

// ──────────────────────────────────────────────────
// Policy model
// ──────────────────────────────────────────────────

type policyModel struct {
	grove.BaseModel `grove:"table:fence_policies"`
	AppID           string     `grove:"app_id,pk"`
	Permission      string     `grove:"permission,pk"`
	Decision        string     `grove:"decision,notnull"`
	ExpiresAt       *time.Time `grove:"expires_at"`
	CreatedAt       time.Time  `grove:"created_at,notnull"`
}

func policyToModel(rec *policy.Record) *policyModel {
	return &policyModel{
		AppID:      rec.App.Primary,
		Permission: rec.Permission.Key(),
		Decision:   rec.Decision.Encode(),
		ExpiresAt:  rec.ExpiresAt,
		CreatedAt:  rec.CreatedAt,
	}
}

// policyFromModel decodes a stored row. Undecodable permission or
// decision text surfaces as policy.ErrCorrupt.
func policyFromModel(m *policyModel, hash string) (*policy.Record, error) {
	p, err := perm.ParseKey(m.Permission)
	if err != nil {
		return nil, fmt.Errorf("policy %s/%s: %w: %w", m.AppID, m.Permission, policy.ErrCorrupt, err)
	}
	d, err := decision.Parse(m.Decision)
	if err != nil {
		return nil, fmt.Errorf("policy %s/%s: %w: %w", m.AppID, m.Permission, policy.ErrCorrupt, err)
	}
	return &policy.Record{
		App:        appid.AppID{Primary: m.AppID, BinaryHash: hash},
		Permission: p,
		Decision:   d,
		ExpiresAt:  m.ExpiresAt,
		CreatedAt:  m.CreatedAt,
	}, nil
}

// ──────────────────────────────────────────────────
// Audit model
// ──────────────────────────────────────────────────

type auditModel struct {
	grove.BaseModel `grove:"table:fence_audit_log"`
	ID              string    `grove:"id,pk"`
	AppID           string    `grove:"app_id,notnull"`
	PID             uint32    `grove:"pid,notnull"`
	UID             uint32    `grove:"uid,notnull"`
	Permission      string    `grove:"permission,notnull"`
	Decision        string    `grove:"decision"`
	Granted         bool      `grove:"granted,notnull"`
	WasPrompted     bool      `grove:"was_prompted,notnull"`
	CreatedAt       time.Time `grove:"created_at,notnull"`
}

func auditToModel(e *audit.Entry) *auditModel {
	m := &auditModel{
		ID:          e.ID.String(),
		AppID:       e.App.Primary,
		PID:         e.PID,
		UID:         e.UID,
		Permission:  e.Permission.Key(),
		Granted:     e.Granted,
		WasPrompted: e.WasPrompted,
		CreatedAt:   e.CreatedAt,
	}
	if e.Decision != nil {
		m.Decision = e.Decision.Encode()
	}
	return m
}

func auditFromModel(m *auditModel) (*audit.Entry, error) {
	aid, _ := id.ParseAuditID(m.ID) //nolint:errcheck // stored IDs are always valid
	p, err := perm.ParseKey(m.Permission)
	if err != nil {
		return nil, fmt.Errorf("audit %s: %w", m.ID, err)
	}
	e := &audit.Entry{
		ID:          aid,
		App:         appid.AppID{Primary: m.AppID},
		PID:         m.PID,
		UID:         m.UID,
		Permission:  p,
		Granted:     m.Granted,
		WasPrompted: m.WasPrompted,
		CreatedAt:   m.CreatedAt,
	}
	if m.Decision != "" {
		d, err := decision.Parse(m.Decision)
		if err != nil {
			return nil, fmt.Errorf("audit %s: %w", m.ID, err)
		}
		e.Decision = &d
	}
	return e, nil
}
