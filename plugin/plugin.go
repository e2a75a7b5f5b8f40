// Package plugin defines the plugin system for fence.
// Plugins are notified of lifecycle events (request received, prompt
// requested, decision stored, policy updated) and can react — logging,
// metrics, desktop notifications, etc.
//
// Each lifecycle hook is a separate interface so plugins opt in only
// to the events they care about.
package plugin

import (
	"context"

	"github.com/appfence/fence/appid"
	"github.com/appfence/fence/id"
	"github.com/appfence/fence/policy"
)

// Plugin is the base interface all plugins must implement.
type Plugin interface {
	// Name returns a unique human-readable name for the plugin.
	Name() string
}

// ──────────────────────────────────────────────────
// Request lifecycle hooks
// ──────────────────────────────────────────────────

// BeforeRequest is called before a permission request is evaluated.
// The req parameter is *fence.CheckRequest (passed as any to avoid import cycle).
type BeforeRequest interface {
	OnBeforeRequest(ctx context.Context, req any) error
}

// AfterRequest is called after a permission request resolves without a
// prompt. The req parameter is *fence.CheckRequest; result is
// *fence.CheckResult.
type AfterRequest interface {
	OnAfterRequest(ctx context.Context, req, result any) error
}

// PromptRequested is called when a request needs a user prompt. This is
// the signal a prompt UI subscribes to; the request stays pending until
// a decision for requestID is submitted or the token expires.
type PromptRequested interface {
	OnPromptRequested(ctx context.Context, requestID id.RequestID, req any) error
}

// ──────────────────────────────────────────────────
// Policy lifecycle hooks
// ──────────────────────────────────────────────────

// DecisionStored is called after a persistent prompt decision is written
// as policy.
type DecisionStored interface {
	OnDecisionStored(ctx context.Context, rec *policy.Record) error
}

// PolicyUpdated is called after an application's policy set is replaced
// through the management surface.
type PolicyUpdated interface {
	OnPolicyUpdated(ctx context.Context, app appid.AppID, recs []*policy.Record) error
}

// ──────────────────────────────────────────────────
// Shutdown hook
// ──────────────────────────────────────────────────

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
