package fence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/appfence/fence/appid"
	"github.com/appfence/fence/decision"
	"github.com/appfence/fence/perm"
	"github.com/appfence/fence/policy"
	"github.com/appfence/fence/store"
)

// PolicyEngine answers policy questions for the broker: whether a
// permission needs a prompt, whether a cached decision covers it, and
// how user decisions become persisted policy.
type PolicyEngine struct {
	store  store.Store
	logger *slog.Logger
	config Config
	now    func() time.Time
}

// IsSensitive reports whether a permission warrants a user prompt when
// no policy covers it. Non-sensitive permissions are denied by default
// instead of prompting.
func (e *PolicyEngine) IsSensitive(p perm.Permission) bool {
	switch p.Kind {
	case perm.KindNetwork:
		return p.Net == perm.NetLan || p.Net == perm.NetInternet
	case perm.KindDevice:
		switch p.Device {
		case perm.DeviceMicrophone, perm.DeviceCamera, perm.DeviceScreen:
			return true
		default:
			return false
		}
	case perm.KindFilesystem:
		for _, prefix := range e.config.SensitivePathPrefixes {
			if pathUnder(p.Path, prefix) {
				return true
			}
		}
		return false
	case perm.KindClipboard, perm.KindAutostart:
		return true
	default:
		return false
	}
}

// pathUnder reports whether path is prefix itself or inside its
// subtree. A bare string prefix would also match siblings like
// /etcetera for /etc.
func pathUnder(path, prefix string) bool {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		return strings.HasPrefix(path, "/")
	}
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

// CachedDecision returns the live policy record for (app, permission),
// or nil when none exists. Expired records are treated as absent. A
// corrupt record is logged and treated as absent so one bad row cannot
// wedge an application; the next decision overwrites it.
func (e *PolicyEngine) CachedDecision(ctx context.Context, app appid.AppID, p perm.Permission) (*policy.Record, error) {
	rec, err := e.store.GetPolicy(ctx, app.Primary, p.Key())
	if err != nil {
		if errors.Is(err, policy.ErrCorrupt) {
			e.logger.Warn("corrupt policy record treated as absent",
				slog.String("app", app.Primary),
				slog.String("permission", p.Key()),
				slog.String("error", err.Error()))
			return nil, nil
		}
		return nil, err
	}
	return rec, nil
}

// ShouldPrompt reports whether a request for (app, permission) must go
// to the user: no live policy covers it and the permission is
// sensitive.
func (e *PolicyEngine) ShouldPrompt(ctx context.Context, app appid.AppID, p perm.Permission) (bool, error) {
	rec, err := e.CachedDecision(ctx, app, p)
	if err != nil {
		return false, err
	}
	if rec != nil {
		return false, nil
	}
	return e.IsSensitive(p), nil
}

// StoreDecision persists a user decision as policy for (app,
// permission), replacing any previous record. Only persistent decision
// kinds may be stored; one-shot decisions never become policy.
func (e *PolicyEngine) StoreDecision(ctx context.Context, app appid.AppID, p perm.Permission, d decision.Decision) (*policy.Record, error) {
	if !d.Persistent() {
		return nil, fmt.Errorf("%w: decision %q is not persistent", ErrInvalidArgument, d.Encode())
	}
	rec := &policy.Record{
		App:        app,
		Permission: p,
		Decision:   d,
		CreatedAt:  e.now(),
	}
	if d.Kind == decision.KindAllowFor {
		exp := rec.CreatedAt.Add(d.For)
		rec.ExpiresAt = &exp
	}
	if err := e.store.StorePolicy(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// AppPolicy returns all live policy records for an application.
func (e *PolicyEngine) AppPolicy(ctx context.Context, app appid.AppID) ([]*policy.Record, error) {
	return e.store.GetAppPolicies(ctx, app.Primary)
}

// UpdateAppPolicy applies a batch of persistent decisions for an
// application atomically. Existing records for the named permissions
// are replaced; records for other permissions are untouched.
func (e *PolicyEngine) UpdateAppPolicy(ctx context.Context, app appid.AppID, decisions []PermissionDecision) error {
	if len(decisions) == 0 {
		return nil
	}
	now := e.now()
	recs := make([]*policy.Record, 0, len(decisions))
	for _, pd := range decisions {
		if err := pd.Permission.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
		}
		if err := pd.Decision.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
		}
		if !pd.Decision.Persistent() {
			return fmt.Errorf("%w: decision %q is not persistent", ErrInvalidArgument, pd.Decision.Encode())
		}
		rec := &policy.Record{
			App:        app,
			Permission: pd.Permission,
			Decision:   pd.Decision,
			CreatedAt:  now,
		}
		if pd.Decision.Kind == decision.KindAllowFor {
			exp := now.Add(pd.Decision.For)
			rec.ExpiresAt = &exp
		}
		recs = append(recs, rec)
	}
	return e.store.StorePolicies(ctx, app, recs)
}

// DeletePolicy removes the policy record for (app, permission).
// Removing an absent record is not an error.
func (e *PolicyEngine) DeletePolicy(ctx context.Context, app appid.AppID, p perm.Permission) error {
	return e.store.DeletePolicy(ctx, app.Primary, p.Key())
}

// CleanupExpired deletes policy records whose expiry has passed and
// returns how many were removed.
func (e *PolicyEngine) CleanupExpired(ctx context.Context) (int64, error) {
	return e.store.CleanupExpiredPolicies(ctx, e.now())
}
